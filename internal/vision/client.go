// Package vision is the AI collaborator client: vision OCR for pages
// the local engines cannot read, diagram detection and comparison, and
// AI-assisted grading. Responses are natural language with embedded
// JSON; parsing tolerates fenced code blocks and raw control
// characters, and a response that still cannot be parsed degrades to
// a zero-confidence result instead of failing the caller.
package vision

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/gradepaper/gradepaper/internal/grading"
	"github.com/gradepaper/gradepaper/internal/model"

	openai "github.com/sashabaranov/go-openai"
)

// Client wraps an OpenAI-compatible vision API.
type Client struct {
	api        *openai.Client
	model      string
	embedModel string
	costs      *CostTracker
}

// New creates a vision client. costs may be nil when spend tracking is
// not wanted.
func New(baseURL, apiKey, modelName, embedModel string, costs *CostTracker) *Client {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return &Client{
		api:        openai.NewClientWithConfig(config),
		model:      modelName,
		embedModel: embedModel,
		costs:      costs,
	}
}

func (c *Client) track(usage openai.Usage) {
	if c.costs != nil {
		c.costs.Add(usage.PromptTokens, usage.CompletionTokens)
	}
}

func imagePart(png []byte) openai.ChatMessagePart {
	return openai.ChatMessagePart{
		Type: openai.ChatMessagePartTypeImageURL,
		ImageURL: &openai.ChatMessageImageURL{
			URL: "data:image/png;base64," + base64.StdEncoding.EncodeToString(png),
		},
	}
}

func textPart(text string) openai.ChatMessagePart {
	return openai.ChatMessagePart{Type: openai.ChatMessagePartTypeText, Text: text}
}

func (c *Client) vision(ctx context.Context, maxTokens int, parts []openai.ChatMessagePart) (string, error) {
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     c.model,
		MaxTokens: maxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, MultiContent: parts},
		},
	})
	if err != nil {
		return "", fmt.Errorf("vision API call: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("vision API returned no choices")
	}
	c.track(resp.Usage)
	return resp.Choices[0].Message.Content, nil
}

// VisionOCR reads a page image with the vision model. The model gives
// no confidence score, so one is estimated from the content kind.
func (c *Client) VisionOCR(ctx context.Context, png []byte, handwritten bool) (model.OCRPage, error) {
	text, err := c.vision(ctx, 2048, []openai.ChatMessagePart{
		imagePart(png),
		textPart(handwritingOCRPrompt),
	})
	if err != nil {
		return model.OCRPage{Engine: "vision", Quality: "poor"}, err
	}

	confidence := 0.95
	if handwritten {
		confidence = 0.85
	}
	return model.OCRPage{
		Text:           strings.TrimSpace(text),
		Confidence:     confidence,
		Engine:         "vision",
		HasHandwriting: handwritten,
		HasMath:        strings.Contains(text, "$") || strings.Contains(text, `\`),
		Quality:        "good",
	}, nil
}

type detectedDiagram struct {
	Type        string             `json:"type"`
	BBox        *model.BoundingBox `json:"bbox"`
	Description string             `json:"description"`
	Relevance   string             `json:"relevance"`
}

// DetectDiagrams asks the model to locate figures on a page. A
// response that cannot be parsed counts as no diagrams.
func (c *Client) DetectDiagrams(ctx context.Context, png []byte) ([]model.Diagram, error) {
	text, err := c.vision(ctx, 1024, []openai.ChatMessagePart{
		imagePart(png),
		textPart(diagramDetectionPrompt),
	})
	if err != nil {
		return nil, err
	}

	var payload struct {
		Diagrams []detectedDiagram `json:"diagrams"`
	}
	if err := decodeResponse(text, &payload); err != nil {
		slog.Warn("diagram detection response unparseable", "error", err)
		return nil, nil
	}

	diagrams := make([]model.Diagram, 0, len(payload.Diagrams))
	for _, d := range payload.Diagrams {
		diagrams = append(diagrams, model.Diagram{
			Type:        d.Type,
			BBox:        d.BBox,
			Description: d.Description,
			Relevance:   d.Relevance,
		})
	}
	slog.Info("detected diagrams", "count", len(diagrams))
	return diagrams, nil
}

type gradePayload struct {
	MarksAwarded  float64              `json:"marks_awarded"`
	PartialCredit *model.PartialCredit `json:"partial_credit"`
	Feedback      string               `json:"feedback"`
	Confidence    float64              `json:"confidence"`
}

// GradeAnswer asks the model to grade one answer. A transport failure
// returns an error; an unparseable verdict degrades to a
// zero-confidence response.
func (c *Client) GradeAnswer(ctx context.Context, req grading.GradeRequest) (grading.GradeResponse, error) {
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     c.model,
		MaxTokens: 1024,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: gradingPrompt(req)},
		},
		Temperature: 0.1,
	})
	if err != nil {
		return grading.GradeResponse{}, fmt.Errorf("grading API call: %w", err)
	}
	if len(resp.Choices) == 0 {
		return grading.GradeResponse{}, fmt.Errorf("grading API returned no choices")
	}
	c.track(resp.Usage)

	raw := resp.Choices[0].Message.Content
	slog.Debug("AI grading response", "raw", raw)

	payload := gradePayload{Confidence: 0.8}
	if err := decodeResponse(raw, &payload); err != nil {
		slog.Error("AI grading response unparseable", "error", err)
		return grading.GradeResponse{
			Feedback:   "Grading error: could not parse AI response",
			Confidence: 0.0,
		}, nil
	}
	return grading.GradeResponse{
		MarksAwarded:  payload.MarksAwarded,
		PartialCredit: payload.PartialCredit,
		Feedback:      payload.Feedback,
		Confidence:    payload.Confidence,
	}, nil
}

type comparisonPayload struct {
	SimilarityScore   float64  `json:"similarity_score"`
	StructureCorrect  bool     `json:"structure_correct"`
	LabelsCorrect     bool     `json:"labels_correct"`
	MissingElements   []string `json:"missing_elements"`
	IncorrectElements []string `json:"incorrect_elements"`
	Feedback          string   `json:"feedback"`
	Confidence        float64  `json:"confidence"`
}

// CompareDiagrams shows the model both diagram images and returns its
// similarity judgement. An unparseable verdict reads as zero
// similarity.
func (c *Client) CompareDiagrams(ctx context.Context, referencePath, studentPath string) (grading.DiagramComparison, error) {
	refPNG, err := os.ReadFile(referencePath)
	if err != nil {
		return grading.DiagramComparison{}, fmt.Errorf("read reference diagram: %w", err)
	}
	studentPNG, err := os.ReadFile(studentPath)
	if err != nil {
		return grading.DiagramComparison{}, fmt.Errorf("read student diagram: %w", err)
	}

	text, err := c.vision(ctx, 1024, []openai.ChatMessagePart{
		textPart("Reference Diagram:"),
		imagePart(refPNG),
		textPart("Student Diagram:"),
		imagePart(studentPNG),
		textPart(diagramComparisonPrompt),
	})
	if err != nil {
		return grading.DiagramComparison{}, err
	}

	payload := comparisonPayload{Confidence: 0.8}
	if err := decodeResponse(text, &payload); err != nil {
		slog.Warn("diagram comparison response unparseable", "error", err)
		return grading.DiagramComparison{}, nil
	}
	return grading.DiagramComparison{
		SimilarityScore: payload.SimilarityScore,
		MissingElements: payload.MissingElements,
		Differences:     payload.IncorrectElements,
		Confidence:      payload.Confidence,
	}, nil
}

// Embed returns embedding vectors for the given texts.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	resp, err := c.api.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(c.embedModel),
		Input: texts,
	})
	if err != nil {
		return nil, fmt.Errorf("embeddings API call: %w", err)
	}
	c.track(resp.Usage)

	out := make([][]float32, len(resp.Data))
	for i, d := range resp.Data {
		out[i] = d.Embedding
	}
	if len(out) != len(texts) {
		return nil, fmt.Errorf("embeddings API returned %d vectors for %d texts", len(out), len(texts))
	}
	return out, nil
}

// decodeResponse extracts the JSON object from a model response and
// unmarshals it, repairing raw control characters if the first parse
// fails.
func decodeResponse(text string, v any) error {
	raw := extractJSON(text)
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		repaired := repairJSON(raw)
		if err2 := json.Unmarshal([]byte(repaired), v); err2 != nil {
			return err
		}
		slog.Debug("JSON repair successful")
	}
	return nil
}
