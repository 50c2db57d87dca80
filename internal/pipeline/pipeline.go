// Package pipeline turns a scanned exam document into its persisted
// JSON form: rasterize, enhance, recognize text, locate diagrams, then
// recover structure. Rasterization failure is fatal; everything
// downstream degrades page by page.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gradepaper/gradepaper/internal/model"
	"github.com/gradepaper/gradepaper/internal/structure"
)

// PageImage is one rasterized document page. Number is 1-based.
type PageImage struct {
	Number int
	PNG    []byte
}

// Rasterizer renders a source document into page images.
type Rasterizer interface {
	Rasterize(ctx context.Context, path string) ([]PageImage, error)
}

// Preprocessor cleans up a page image before recognition. Enhance is
// best effort and returns its input unchanged when it cannot help;
// Quality scores the image in [0,1].
type Preprocessor interface {
	Enhance(png []byte) []byte
	Quality(png []byte) float64
}

// DiagramLocator finds figures on a page.
type DiagramLocator interface {
	Locate(ctx context.Context, page PageImage) ([]model.Diagram, error)
}

// Recognizer reads text from a page image.
type Recognizer interface {
	RecognizePage(ctx context.Context, png []byte, handwritten bool) model.OCRPage
}

// CostSource reports accumulated API usage for the metrics summary.
type CostSource interface {
	Total() float64
	Calls() int
}

// Pipeline sequences document processing. The preprocessor, locator
// and cost source are optional.
type Pipeline struct {
	rasterizer Rasterizer
	recognizer Recognizer
	pre        Preprocessor
	locator    DiagramLocator
	costs      CostSource

	qualityThreshold float64
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithPreprocessor enables image cleanup before recognition.
func WithPreprocessor(p Preprocessor) Option {
	return func(pl *Pipeline) { pl.pre = p }
}

// WithDiagramLocator enables figure detection.
func WithDiagramLocator(l DiagramLocator) Option {
	return func(pl *Pipeline) { pl.locator = l }
}

// WithCostSource wires API usage into the processing metrics.
func WithCostSource(c CostSource) Option {
	return func(pl *Pipeline) { pl.costs = c }
}

// WithQualityThreshold sets the score below which a page is logged as
// low quality. Low quality never skips a page.
func WithQualityThreshold(t float64) Option {
	return func(pl *Pipeline) { pl.qualityThreshold = t }
}

// New builds a Pipeline over a rasterizer and a text recognizer.
func New(r Rasterizer, rec Recognizer, opts ...Option) *Pipeline {
	p := &Pipeline{
		rasterizer:       r,
		recognizer:       rec,
		qualityThreshold: 0.5,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// pageResults is the per-page output of the shared front half of the
// pipeline.
type pageResults struct {
	ocr      []model.OCRPage
	diagrams [][]model.Diagram
}

func (p *Pipeline) processPages(ctx context.Context, path string, handwritten bool) (pageResults, error) {
	pages, err := p.rasterizer.Rasterize(ctx, path)
	if err != nil {
		return pageResults{}, fmt.Errorf("rasterize %s: %w", path, err)
	}
	slog.Info("rasterized document", "path", path, "pages", len(pages))

	res := pageResults{
		ocr:      make([]model.OCRPage, len(pages)),
		diagrams: make([][]model.Diagram, len(pages)),
	}
	for i, page := range pages {
		png := page.PNG
		if p.pre != nil {
			if q := p.pre.Quality(png); q < p.qualityThreshold {
				slog.Warn("low image quality", "page", page.Number, "score", q)
			}
			png = p.pre.Enhance(png)
		}

		res.ocr[i] = p.recognizer.RecognizePage(ctx, png, handwritten)

		if p.locator != nil {
			diagrams, err := p.locator.Locate(ctx, PageImage{Number: page.Number, PNG: png})
			if err != nil {
				slog.Warn("diagram detection failed", "page", page.Number, "error", err)
			} else {
				res.diagrams[i] = diagrams
			}
		}
	}
	return res, nil
}

func (p *Pipeline) metrics(res pageResults, elapsed time.Duration) model.ProcessingMetrics {
	m := model.ProcessingMetrics{
		TotalPages:     len(res.ocr),
		ProcessingTime: elapsed.Seconds(),
	}
	sum := 0.0
	for _, page := range res.ocr {
		sum += page.Confidence
		if page.HasHandwriting {
			m.HandwritingPages++
		}
	}
	if len(res.ocr) > 0 {
		m.AvgOCRConfidence = sum / float64(len(res.ocr))
	}
	for _, ds := range res.diagrams {
		m.DiagramsExtracted += len(ds)
	}
	if p.costs != nil {
		m.APICalls = p.costs.Calls()
		m.EstimatedCost = p.costs.Total()
	}
	return m
}

// ProcessQuestionPaper runs the full pipeline over a question paper.
func (p *Pipeline) ProcessQuestionPaper(ctx context.Context, path string) (*model.QuestionPaper, model.ProcessingMetrics, error) {
	start := time.Now()
	res, err := p.processPages(ctx, path, false)
	if err != nil {
		return nil, model.ProcessingMetrics{}, err
	}

	meta, questions := structure.AnalyzeQuestionPaper(res.ocr, res.diagrams)
	m := p.metrics(res, time.Since(start))
	return &model.QuestionPaper{
		Metadata:       meta,
		Questions:      questions,
		TotalQuestions: len(questions),
		ProcessingTime: m.ProcessingTime,
		CreatedAt:      time.Now().UTC(),
	}, m, nil
}

// ProcessSolutionPaper runs the pipeline over a solution paper. The
// document shape matches a question paper; its questions carry the
// reference solutions.
func (p *Pipeline) ProcessSolutionPaper(ctx context.Context, path string) (*model.SolutionPaper, model.ProcessingMetrics, error) {
	start := time.Now()
	res, err := p.processPages(ctx, path, false)
	if err != nil {
		return nil, model.ProcessingMetrics{}, err
	}

	meta, solutions := structure.AnalyzeQuestionPaper(res.ocr, res.diagrams)
	m := p.metrics(res, time.Since(start))
	return &model.SolutionPaper{
		Metadata:       meta,
		Solutions:      solutions,
		TotalQuestions: len(solutions),
		ProcessingTime: m.ProcessingTime,
		CreatedAt:      time.Now().UTC(),
	}, m, nil
}

// ProcessAnswerSheet runs the pipeline over a student answer sheet.
// questionNumbers drives answer extraction; every expected number
// yields one answer, missing ones as the no-answer sentinel.
func (p *Pipeline) ProcessAnswerSheet(ctx context.Context, path string, questionNumbers []string) (*model.AnswerSheet, model.ProcessingMetrics, error) {
	start := time.Now()
	res, err := p.processPages(ctx, path, true)
	if err != nil {
		return nil, model.ProcessingMetrics{}, err
	}

	info, answers := structure.AnalyzeAnswerSheet(res.ocr, res.diagrams, questionNumbers)
	m := p.metrics(res, time.Since(start))
	return &model.AnswerSheet{
		StudentInfo:    info,
		Answers:        answers,
		TotalAnswers:   len(answers),
		ProcessingTime: m.ProcessingTime,
		CreatedAt:      time.Now().UTC(),
	}, m, nil
}
