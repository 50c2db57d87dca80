package pipeline

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/gradepaper/gradepaper/internal/model"
)

type fakeRasterizer struct {
	pages []PageImage
	err   error
}

func (r *fakeRasterizer) Rasterize(_ context.Context, _ string) ([]PageImage, error) {
	return r.pages, r.err
}

// fakeRecognizer returns one canned page per call, in order.
type fakeRecognizer struct {
	pages []model.OCRPage
	calls int
}

func (r *fakeRecognizer) RecognizePage(_ context.Context, _ []byte, handwritten bool) model.OCRPage {
	p := r.pages[r.calls]
	r.calls++
	p.HasHandwriting = handwritten
	return p
}

type fakeLocator struct {
	diagrams []model.Diagram
	err      error
}

func (l *fakeLocator) Locate(_ context.Context, _ PageImage) ([]model.Diagram, error) {
	return l.diagrams, l.err
}

type fakePreprocessor struct {
	quality  float64
	enhanced int
}

func (p *fakePreprocessor) Enhance(png []byte) []byte {
	p.enhanced++
	return png
}

func (p *fakePreprocessor) Quality(_ []byte) float64 { return p.quality }

type fakeCost struct {
	total float64
	calls int
}

func (c *fakeCost) Total() float64 { return c.total }
func (c *fakeCost) Calls() int     { return c.calls }

const paperPage = `EE-207 Circuit Analysis

1. Calculate the total resistance of the circuit. (5 Marks)

2. Explain Kirchhoff's current law. (3 Marks)`

const sheetPage = `Student ID: EE2041
Name: Ada Lovelace

Q1: 120 ohms

Q2: The sum of currents entering a node is zero.`

func twoPages() []PageImage {
	return []PageImage{
		{Number: 1, PNG: []byte("page one")},
		{Number: 2, PNG: []byte("page two")},
	}
}

func TestProcessQuestionPaper(t *testing.T) {
	rasterizer := &fakeRasterizer{pages: twoPages()}
	recognizer := &fakeRecognizer{pages: []model.OCRPage{
		{Text: paperPage, Confidence: 0.9, Engine: "printed", Quality: "good"},
		{Text: "", Confidence: 0.7, Engine: "printed", Quality: "good"},
	}}
	locator := &fakeLocator{diagrams: []model.Diagram{{ID: "d1", Relevance: "low"}}}
	costs := &fakeCost{total: 0.03, calls: 4}
	pre := &fakePreprocessor{quality: 0.9}

	p := New(rasterizer, recognizer,
		WithDiagramLocator(locator),
		WithCostSource(costs),
		WithPreprocessor(pre),
	)

	paper, metrics, err := p.ProcessQuestionPaper(context.Background(), "exam.pdf")
	if err != nil {
		t.Fatalf("ProcessQuestionPaper: %v", err)
	}

	if paper.TotalQuestions != 2 || len(paper.Questions) != 2 {
		t.Fatalf("got %d questions, want 2", len(paper.Questions))
	}
	if paper.Metadata.CourseCode != "EE-207" {
		t.Errorf("course code = %q, want EE-207", paper.Metadata.CourseCode)
	}
	if paper.CreatedAt.IsZero() {
		t.Error("CreatedAt not set")
	}

	if metrics.TotalPages != 2 {
		t.Errorf("TotalPages = %d, want 2", metrics.TotalPages)
	}
	if metrics.AvgOCRConfidence != 0.8 {
		t.Errorf("AvgOCRConfidence = %v, want 0.8", metrics.AvgOCRConfidence)
	}
	if metrics.DiagramsExtracted != 2 {
		t.Errorf("DiagramsExtracted = %d, want 2 (one per page)", metrics.DiagramsExtracted)
	}
	if metrics.APICalls != 4 || metrics.EstimatedCost != 0.03 {
		t.Errorf("metrics cost = %d calls / %v, want 4 / 0.03", metrics.APICalls, metrics.EstimatedCost)
	}
	if pre.enhanced != 2 {
		t.Errorf("preprocessor ran %d times, want 2", pre.enhanced)
	}
}

func TestProcessQuestionPaperRasterizeError(t *testing.T) {
	p := New(&fakeRasterizer{err: errors.New("corrupt pdf")}, &fakeRecognizer{})

	if _, _, err := p.ProcessQuestionPaper(context.Background(), "exam.pdf"); err == nil {
		t.Fatal("expected a rasterization error to be fatal")
	}
}

func TestProcessQuestionPaperLocatorErrorTolerated(t *testing.T) {
	rasterizer := &fakeRasterizer{pages: twoPages()[:1]}
	recognizer := &fakeRecognizer{pages: []model.OCRPage{
		{Text: paperPage, Confidence: 0.9},
	}}
	p := New(rasterizer, recognizer, WithDiagramLocator(&fakeLocator{err: errors.New("api down")}))

	paper, metrics, err := p.ProcessQuestionPaper(context.Background(), "exam.pdf")
	if err != nil {
		t.Fatalf("locator failure should not be fatal: %v", err)
	}
	if len(paper.Questions) != 2 {
		t.Errorf("got %d questions, want 2", len(paper.Questions))
	}
	if metrics.DiagramsExtracted != 0 {
		t.Errorf("DiagramsExtracted = %d, want 0", metrics.DiagramsExtracted)
	}
}

func TestProcessSolutionPaper(t *testing.T) {
	rasterizer := &fakeRasterizer{pages: twoPages()[:1]}
	recognizer := &fakeRecognizer{pages: []model.OCRPage{
		{Text: paperPage, Confidence: 0.9},
	}}
	p := New(rasterizer, recognizer)

	paper, _, err := p.ProcessSolutionPaper(context.Background(), "solutions.pdf")
	if err != nil {
		t.Fatalf("ProcessSolutionPaper: %v", err)
	}
	if paper.TotalQuestions != 2 || len(paper.Solutions) != 2 {
		t.Fatalf("got %d solutions, want 2", len(paper.Solutions))
	}
}

func TestProcessAnswerSheet(t *testing.T) {
	rasterizer := &fakeRasterizer{pages: twoPages()[:1]}
	recognizer := &fakeRecognizer{pages: []model.OCRPage{
		{Text: sheetPage, Confidence: 0.85},
	}}
	p := New(rasterizer, recognizer)

	sheet, metrics, err := p.ProcessAnswerSheet(context.Background(), "sheet.pdf", []string{"1", "2", "3"})
	if err != nil {
		t.Fatalf("ProcessAnswerSheet: %v", err)
	}

	if sheet.StudentInfo["name"] != "Ada Lovelace" {
		t.Errorf("student name = %q", sheet.StudentInfo["name"])
	}
	if sheet.TotalAnswers != 3 {
		t.Fatalf("got %d answers, want 3", sheet.TotalAnswers)
	}
	if sheet.Answers[2].Text != model.NoAnswerSentinel {
		t.Errorf("missing answer text = %q, want sentinel", sheet.Answers[2].Text)
	}
	if metrics.HandwritingPages != 1 {
		t.Errorf("HandwritingPages = %d, want 1", metrics.HandwritingPages)
	}
}

func TestDirRasterizer(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"page-02.png", "page-01.png", "notes.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(name), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	pages, err := DirRasterizer{}.Rasterize(context.Background(), dir)
	if err != nil {
		t.Fatalf("Rasterize: %v", err)
	}
	if len(pages) != 2 {
		t.Fatalf("got %d pages, want 2", len(pages))
	}
	if string(pages[0].PNG) != "page-01.png" || pages[0].Number != 1 {
		t.Errorf("first page = %q (#%d), want page-01.png (#1)", pages[0].PNG, pages[0].Number)
	}
}

func TestDirRasterizerEmpty(t *testing.T) {
	if _, err := (DirRasterizer{}).Rasterize(context.Background(), t.TempDir()); err == nil {
		t.Error("expected an error for a directory with no page images")
	}
}

type fakeDetector struct {
	diagrams []model.Diagram
	err      error
}

func (d *fakeDetector) DetectDiagrams(_ context.Context, _ []byte) ([]model.Diagram, error) {
	return d.diagrams, d.err
}

func pagePNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 100, 100))
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestAILocatorAssignsIDsAndCrops(t *testing.T) {
	outDir := t.TempDir()
	detector := &fakeDetector{diagrams: []model.Diagram{
		{Type: "circuit", BBox: &model.BoundingBox{XMin: 10, YMin: 10, XMax: 50, YMax: 50}, Relevance: "high"},
		{Type: "graph", Relevance: "low"},
	}}
	l := NewAILocator(detector, outDir)

	diagrams, err := l.Locate(context.Background(), PageImage{Number: 3, PNG: pagePNG(t)})
	if err != nil {
		t.Fatalf("Locate: %v", err)
	}
	if len(diagrams) != 2 {
		t.Fatalf("got %d diagrams, want 2", len(diagrams))
	}
	if diagrams[0].ID != "page3_diagram1" || diagrams[1].ID != "page3_diagram2" {
		t.Errorf("ids = %q, %q", diagrams[0].ID, diagrams[1].ID)
	}
	if diagrams[0].ImagePath == "" {
		t.Fatal("diagram with bbox should have a cropped image")
	}
	if _, err := os.Stat(diagrams[0].ImagePath); err != nil {
		t.Errorf("cropped image missing: %v", err)
	}
	if diagrams[1].ImagePath != "" {
		t.Error("diagram without bbox should not be cropped")
	}
}

func TestAILocatorDetectorError(t *testing.T) {
	l := NewAILocator(&fakeDetector{err: errors.New("api down")}, "")
	if _, err := l.Locate(context.Background(), PageImage{Number: 1}); err == nil {
		t.Error("expected the detector error to surface")
	}
}
