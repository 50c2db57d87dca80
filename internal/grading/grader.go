// Package grading scores student answers against a question paper
// using a cascade of strategies: exact matching for MCQs, tolerance
// bands for numerical answers, symbolic equivalence, embedding-based
// semantic similarity, AI-assisted partial credit and diagram
// comparison. Collaborator failures degrade to zero-confidence
// results; grading a sheet never fails outright.
package grading

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/gradepaper/gradepaper/internal/mathexpr"
	"github.com/gradepaper/gradepaper/internal/model"
)

// GradeRequest is one answer handed to the AI grader.
type GradeRequest struct {
	QuestionType  model.QuestionType
	Marks         float64
	CorrectAnswer string
	StudentAnswer string
	QuestionText  string
}

// GradeResponse is the AI grader's verdict.
type GradeResponse struct {
	MarksAwarded  float64
	Feedback      string
	Confidence    float64
	PartialCredit *model.PartialCredit
}

// DiagramComparison is the AI's judgement of two diagrams.
type DiagramComparison struct {
	SimilarityScore float64
	MissingElements []string
	Differences     []string
	Confidence      float64
}

// AIGrader judges answers and diagrams that rule-based strategies
// cannot decide.
type AIGrader interface {
	GradeAnswer(ctx context.Context, req GradeRequest) (GradeResponse, error)
	CompareDiagrams(ctx context.Context, referencePath, studentPath string) (DiagramComparison, error)
}

// Embedder turns texts into vectors for semantic similarity.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// CostSource reports accumulated API spend for the report.
type CostSource interface {
	Total() float64
}

// Grader grades answer sheets.
type Grader struct {
	ai                  AIGrader
	embedder            Embedder
	costs               CostSource
	comparator          *mathexpr.Comparator
	similarityThreshold float64
	partialCredit       bool
}

// Option configures a Grader.
type Option func(*Grader)

// WithEmbedder enables embedding-based semantic similarity. Without
// one, short answers fall through to AI grading.
func WithEmbedder(e Embedder) Option { return func(g *Grader) { g.embedder = e } }

// WithCostSource wires the API cost accumulator into reports.
func WithCostSource(c CostSource) Option { return func(g *Grader) { g.costs = c } }

// WithSimilarityThreshold sets the accept threshold for semantic
// similarity.
func WithSimilarityThreshold(t float64) Option {
	return func(g *Grader) { g.similarityThreshold = t }
}

// WithPartialCredit toggles AI partial-credit grading.
func WithPartialCredit(enabled bool) Option { return func(g *Grader) { g.partialCredit = enabled } }

// WithMathTolerance sets the relative tolerance for symbolic
// comparison.
func WithMathTolerance(t float64) Option {
	return func(g *Grader) { g.comparator = &mathexpr.Comparator{Tolerance: t} }
}

// New builds a Grader around the AI collaborator.
func New(ai AIGrader, opts ...Option) *Grader {
	g := &Grader{
		ai:                  ai,
		comparator:          mathexpr.NewComparator(),
		similarityThreshold: 0.80,
		partialCredit:       true,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// GradeSheet grades every answer against its question and aggregates
// the report. Answers whose question number has no matching question
// are skipped with a warning. The report is recomputed wholesale on
// every call.
func (g *Grader) GradeSheet(ctx context.Context, questions []model.Question, answers []model.Answer, studentInfo map[string]string) model.GradingReport {
	slog.Info("grading answer sheet", "student", studentInfo["name"], "answers", len(answers))

	questionMap := make(map[string]model.Question, len(questions))
	for _, q := range questions {
		questionMap[q.Number] = q
	}

	results := make([]model.GradingResult, 0, len(answers))
	available, awarded := 0.0, 0.0
	for _, a := range answers {
		q, ok := questionMap[a.QuestionNumber]
		if !ok {
			slog.Warn("answer has no matching question", "question", a.QuestionNumber)
			continue
		}
		r := g.gradeOne(ctx, q, a)
		results = append(results, r)
		available += r.MarksAvailable
		awarded += r.MarksAwarded
		slog.Debug("graded answer", "question", a.QuestionNumber,
			"awarded", r.MarksAwarded, "available", r.MarksAvailable, "method", r.Method)
	}

	percentage := 0.0
	if available > 0 {
		percentage = awarded / available * 100
	}

	report := model.GradingReport{
		StudentInfo:    studentInfo,
		Results:        results,
		TotalAvailable: available,
		TotalAwarded:   awarded,
		Percentage:     percentage,
		Grade:          CalculateGrade(percentage),
	}
	if g.costs != nil {
		report.APICost = g.costs.Total()
	}
	slog.Info("grading complete", "awarded", awarded, "available", available,
		"percentage", percentage, "grade", report.Grade)
	return report
}

// gradeOne routes a single answer to its strategy. Route order: the
// no-answer check wins over everything; a question without a correct
// answer goes straight to AI grading; otherwise the question type
// picks the strategy.
func (g *Grader) gradeOne(ctx context.Context, q model.Question, a model.Answer) model.GradingResult {
	if a.Missing() {
		return model.GradingResult{
			QuestionNumber: q.Number,
			MarksAvailable: q.Marks,
			Feedback:       "No answer provided",
			Confidence:     1.0,
			Method:         model.MethodNoAnswer,
		}
	}

	if q.CorrectAnswer == "" {
		slog.Info("no correct answer available, using AI grading", "question", q.Number)
		return g.gradeWithAI(ctx, q, a)
	}

	switch q.Type {
	case model.TypeMCQ:
		return g.gradeMCQ(q, a)
	case model.TypeNumerical:
		return g.gradeNumerical(q, a)
	case model.TypeDerivation, model.TypeProof:
		return g.gradeDerivation(ctx, q, a)
	case model.TypeDiagram:
		return g.gradeDiagram(ctx, q, a)
	default:
		return g.gradeShortAnswer(ctx, q, a)
	}
}

// studentAnswerWithWorking appends the shown working, when present,
// to the final answer handed to the AI grader.
func studentAnswerWithWorking(a model.Answer) string {
	if a.Working == "" {
		return a.Text
	}
	return fmt.Sprintf("%s\n\nWorking:\n%s", a.Text, a.Working)
}

func degradedResult(q model.Question, method model.GradingMethod, err error) model.GradingResult {
	return model.GradingResult{
		QuestionNumber: q.Number,
		MarksAvailable: q.Marks,
		Feedback:       fmt.Sprintf("Grading error: %v", err),
		Confidence:     0.0,
		Method:         method,
	}
}

func cosineSimilarity(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
