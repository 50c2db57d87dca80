// Package ocr orchestrates text recognition across two interchangeable
// local engines (printed-optimized and handwriting-optimized) with an
// AI vision fallback for pages neither engine reads well. The engines
// themselves are external collaborators behind the Engine interface.
package ocr

import (
	"context"
	"log/slog"

	"github.com/gradepaper/gradepaper/internal/model"
)

// Engine is a local OCR engine.
type Engine interface {
	Recognize(ctx context.Context, png []byte) (model.OCRPage, error)
}

// VisionFallback reads a page with the AI vision collaborator.
type VisionFallback interface {
	VisionOCR(ctx context.Context, png []byte, handwritten bool) (model.OCRPage, error)
}

// Config holds orchestration thresholds.
type Config struct {
	// ConfidenceThreshold is the minimum acceptable engine confidence;
	// below it the other engine is tried and the vision fallback
	// considered.
	ConfidenceThreshold float64
	// HandwritingThreshold is the stricter minimum for pages flagged
	// as handwritten.
	HandwritingThreshold float64
	// MultiEngine enables retrying with the other engine on low
	// confidence.
	MultiEngine bool
}

// DefaultConfig mirrors the shipped configuration defaults.
func DefaultConfig() Config {
	return Config{
		ConfidenceThreshold:  0.70,
		HandwritingThreshold: 0.60,
		MultiEngine:          true,
	}
}

// Orchestrator picks engines and applies the fallback policy.
type Orchestrator struct {
	printed     Engine
	handwritten Engine
	vision      VisionFallback
	cfg         Config
}

// New builds an Orchestrator. vision may be nil to disable the AI
// fallback.
func New(printed, handwritten Engine, vision VisionFallback, cfg Config) *Orchestrator {
	return &Orchestrator{printed: printed, handwritten: handwritten, vision: vision, cfg: cfg}
}

// RecognizeAll runs RecognizePage over a document's pages.
func (o *Orchestrator) RecognizeAll(ctx context.Context, pages [][]byte, handwritten bool) []model.OCRPage {
	slog.Info("running OCR", "pages", len(pages), "handwritten", handwritten)
	results := make([]model.OCRPage, len(pages))
	sum := 0.0
	for i, png := range pages {
		results[i] = o.RecognizePage(ctx, png, handwritten)
		sum += results[i].Confidence
	}
	if len(results) > 0 {
		slog.Info("OCR complete", "avg_confidence", sum/float64(len(results)))
	}
	return results
}

// RecognizePage reads one page: the content-appropriate engine first,
// the other engine when confidence is low (keeping whichever scored
// higher), then the vision fallback when the local result still looks
// poor. It never fails; a page nothing could read comes back empty
// with zero confidence.
func (o *Orchestrator) RecognizePage(ctx context.Context, png []byte, handwritten bool) model.OCRPage {
	result := o.localOCR(ctx, png, handwritten)

	if o.vision != nil && o.needsVision(result) {
		slog.Info("using vision fallback for OCR", "confidence", result.Confidence)
		visionResult, err := o.vision.VisionOCR(ctx, png, handwritten)
		if err != nil {
			slog.Error("vision OCR failed", "error", err)
			return result
		}
		if visionResult.Confidence > 0 {
			return visionResult
		}
	}
	return result
}

func (o *Orchestrator) localOCR(ctx context.Context, png []byte, handwritten bool) model.OCRPage {
	primary, secondary := o.printed, o.handwritten
	if handwritten {
		primary, secondary = o.handwritten, o.printed
	}

	result := o.runEngine(ctx, primary, png, handwritten)

	if o.cfg.MultiEngine && result.Confidence < o.cfg.ConfidenceThreshold {
		slog.Info("low OCR confidence, trying alternative engine", "confidence", result.Confidence)
		alt := o.runEngine(ctx, secondary, png, handwritten)
		if alt.Confidence > result.Confidence {
			slog.Info("alternative engine performed better", "confidence", alt.Confidence)
			return alt
		}
	}
	return result
}

func (o *Orchestrator) runEngine(ctx context.Context, e Engine, png []byte, handwritten bool) model.OCRPage {
	if e == nil {
		return model.OCRPage{Engine: "none", HasHandwriting: handwritten, Quality: "poor"}
	}
	page, err := e.Recognize(ctx, png)
	if err != nil {
		slog.Error("OCR engine failed", "error", err)
		return model.OCRPage{Engine: "error", HasHandwriting: handwritten, Quality: "poor"}
	}
	return page
}

func (o *Orchestrator) needsVision(p model.OCRPage) bool {
	return p.Confidence < o.cfg.ConfidenceThreshold ||
		(p.HasHandwriting && p.Confidence < o.cfg.HandwritingThreshold) ||
		p.Quality == "poor"
}
