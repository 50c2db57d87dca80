package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/gradepaper/gradepaper/internal/model"
)

// DiagramDetector is the AI collaborator call behind AILocator.
type DiagramDetector interface {
	DetectDiagrams(ctx context.Context, png []byte) ([]model.Diagram, error)
}

// AILocator finds figures with the vision collaborator and, when an
// output directory is set, crops each detected region to its own PNG.
type AILocator struct {
	detector DiagramDetector
	outDir   string
}

// NewAILocator builds a locator. outDir may be empty to skip cropping.
func NewAILocator(detector DiagramDetector, outDir string) *AILocator {
	return &AILocator{detector: detector, outDir: outDir}
}

// Locate detects diagrams on a page and assigns stable per-page IDs.
func (l *AILocator) Locate(ctx context.Context, page PageImage) ([]model.Diagram, error) {
	diagrams, err := l.detector.DetectDiagrams(ctx, page.PNG)
	if err != nil {
		return nil, err
	}

	for i := range diagrams {
		diagrams[i].ID = fmt.Sprintf("page%d_diagram%d", page.Number, i+1)
		if l.outDir == "" || diagrams[i].BBox == nil {
			continue
		}
		path := filepath.Join(l.outDir, diagrams[i].ID+".png")
		if err := cropToFile(page.PNG, *diagrams[i].BBox, path); err != nil {
			slog.Warn("diagram crop failed", "id", diagrams[i].ID, "error", err)
			continue
		}
		diagrams[i].ImagePath = path
	}
	return diagrams, nil
}

// cropToFile cuts the bbox region (page percentages) out of the page
// image and writes it as PNG.
func cropToFile(pagePNG []byte, box model.BoundingBox, path string) error {
	img, _, err := image.Decode(bytes.NewReader(pagePNG))
	if err != nil {
		return fmt.Errorf("decode page image: %w", err)
	}

	b := img.Bounds()
	rect := image.Rect(
		b.Min.X+int(box.XMin/100*float64(b.Dx())),
		b.Min.Y+int(box.YMin/100*float64(b.Dy())),
		b.Min.X+int(box.XMax/100*float64(b.Dx())),
		b.Min.Y+int(box.YMax/100*float64(b.Dy())),
	).Intersect(b)
	if rect.Empty() {
		return fmt.Errorf("bbox outside page bounds")
	}

	sub, ok := img.(interface {
		SubImage(image.Rectangle) image.Image
	})
	if !ok {
		return fmt.Errorf("page image format does not support cropping")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create diagram directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create diagram file: %w", err)
	}
	defer f.Close()
	if err := png.Encode(f, sub.SubImage(rect)); err != nil {
		return fmt.Errorf("encode diagram: %w", err)
	}
	return nil
}
