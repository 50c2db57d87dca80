package vision

import (
	"strings"
	"testing"

	"github.com/gradepaper/gradepaper/internal/grading"
	"github.com/gradepaper/gradepaper/internal/model"
)

func TestGradingPromptWithReference(t *testing.T) {
	prompt := gradingPrompt(grading.GradeRequest{
		QuestionType:  model.TypeNumerical,
		Marks:         5,
		CorrectAnswer: "42 ohms",
		StudentAnswer: "about 41 ohms",
	})

	for _, want := range []string{
		"Compare the student's answer with the correct solution.",
		"Question Type: numerical",
		"Marks Available: 5",
		"Correct Answer: 42 ohms",
		"Student Answer: about 41 ohms",
		"marks_awarded",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestGradingPromptWithoutReference(t *testing.T) {
	prompt := gradingPrompt(grading.GradeRequest{
		QuestionType:  model.TypeEssay,
		Marks:         10,
		StudentAnswer: "entropy always increases",
		QuestionText:  "Explain the second law of thermodynamics.",
	})

	if !strings.Contains(prompt, "Evaluate the student's answer based on the question requirements.") {
		t.Error("prompt should switch to question-based evaluation without a reference answer")
	}
	if !strings.Contains(prompt, "Question: Explain the second law of thermodynamics.") {
		t.Error("prompt should carry the question text")
	}
	if strings.Contains(prompt, "Correct Answer:") {
		t.Error("prompt should not mention a correct answer when none exists")
	}
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"json fence", "Here you go:\n```json\n{\"a\": 1}\n```\nDone.", `{"a": 1}`},
		{"plain fence", "```\n{\"a\": 1}\n```", `{"a": 1}`},
		{"prose wrapped", "The result is {\"a\": 1} as requested.", `{"a": 1}`},
		{"bare object", `{"a": 1}`, `{"a": 1}`},
		{"unterminated fence", "```json\n{\"a\": 1}", `{"a": 1}`},
		{"no json at all", "  no object here  ", "no object here"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := extractJSON(tt.in); got != tt.want {
				t.Errorf("extractJSON(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestDecodeResponseRepairsControlCharacters(t *testing.T) {
	raw := "```json\n{\"marks_awarded\": 3.5, \"feedback\": \"line one\nline two\", \"confidence\": 0.9}\n```"

	var payload gradePayload
	if err := decodeResponse(raw, &payload); err != nil {
		t.Fatalf("decodeResponse: %v", err)
	}
	if payload.MarksAwarded != 3.5 {
		t.Errorf("marks = %v, want 3.5", payload.MarksAwarded)
	}
	if payload.Feedback != "line one\nline two" {
		t.Errorf("feedback = %q", payload.Feedback)
	}
}

func TestDecodeResponseFailure(t *testing.T) {
	var payload gradePayload
	if err := decodeResponse("total nonsense, not even braces", &payload); err == nil {
		t.Error("expected an error for an unparseable response")
	}
}

func TestDecodeResponsePartialCredit(t *testing.T) {
	raw := `{"marks_awarded": 7, "partial_credit": {"method": 4, "calculation": 2, "final_answer": 1, "presentation": 0}, "feedback": "ok", "confidence": 0.85}`

	payload := gradePayload{Confidence: 0.8}
	if err := decodeResponse(raw, &payload); err != nil {
		t.Fatalf("decodeResponse: %v", err)
	}
	if payload.PartialCredit == nil || payload.PartialCredit.Method != 4 {
		t.Errorf("partial credit = %+v", payload.PartialCredit)
	}
	if payload.Confidence != 0.85 {
		t.Errorf("confidence = %v, want 0.85", payload.Confidence)
	}
}

func TestDecodeResponseDefaultConfidence(t *testing.T) {
	payload := comparisonPayload{Confidence: 0.8}
	raw := `{"similarity_score": 0.7, "missing_elements": ["axis labels"]}`
	if err := decodeResponse(raw, &payload); err != nil {
		t.Fatalf("decodeResponse: %v", err)
	}
	if payload.Confidence != 0.8 {
		t.Errorf("confidence = %v, want default 0.8 when absent", payload.Confidence)
	}
	if payload.SimilarityScore != 0.7 || len(payload.MissingElements) != 1 {
		t.Errorf("payload = %+v", payload)
	}
}

func TestCostTracker(t *testing.T) {
	tracker := NewCostTracker(0.000003, 0.000015)

	tracker.Add(1000, 200)
	tracker.Add(500, 100)

	wantCost := 1500*0.000003 + 300*0.000015
	if got := tracker.Total(); got < wantCost-1e-9 || got > wantCost+1e-9 {
		t.Errorf("Total() = %v, want %v", got, wantCost)
	}
	if tracker.Calls() != 2 {
		t.Errorf("Calls() = %d, want 2", tracker.Calls())
	}
	in, out := tracker.Tokens()
	if in != 1500 || out != 300 {
		t.Errorf("Tokens() = %d/%d, want 1500/300", in, out)
	}

	tracker.Reset()
	if tracker.Total() != 0 || tracker.Calls() != 0 {
		t.Error("Reset() did not zero the counters")
	}
}

// Client satisfies the grading collaborator interfaces.
var (
	_ grading.AIGrader = (*Client)(nil)
	_ grading.Embedder = (*Client)(nil)
)
