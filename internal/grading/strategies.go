package grading

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/gradepaper/gradepaper/internal/mathexpr"
	"github.com/gradepaper/gradepaper/internal/model"
)

// Numerical tolerance bands, in percent error.
const (
	fullMarksError    = 2.0
	partialMarksError = 5.0
)

var mcqOptionRes = []*regexp.Regexp{
	regexp.MustCompile(`\b([a-e])\)`),
	regexp.MustCompile(`\(([a-e])\)`),
	regexp.MustCompile(`\b([a-e])\.`),
	regexp.MustCompile(`\b([a-e])\b`),
}

// gradeWithAI handles questions with no known correct answer: the AI
// grades from the question text alone.
func (g *Grader) gradeWithAI(ctx context.Context, q model.Question, a model.Answer) model.GradingResult {
	resp, err := g.ai.GradeAnswer(ctx, GradeRequest{
		QuestionType:  q.Type,
		Marks:         q.Marks,
		CorrectAnswer: "",
		StudentAnswer: studentAnswerWithWorking(a),
		QuestionText:  q.Text,
	})
	if err != nil {
		slog.Error("AI grading failed", "question", q.Number, "error", err)
		return degradedResult(q, model.MethodAIGrading, err)
	}
	return model.GradingResult{
		QuestionNumber: q.Number,
		MarksAvailable: q.Marks,
		MarksAwarded:   resp.MarksAwarded,
		IsCorrect:      resp.MarksAwarded >= q.Marks*0.9,
		PartialCredit:  resp.PartialCredit,
		Feedback:       resp.Feedback,
		Confidence:     resp.Confidence,
		Method:         model.MethodAIGrading,
	}
}

// gradeMCQ compares extracted option letters. All-or-nothing.
func (g *Grader) gradeMCQ(q model.Question, a model.Answer) model.GradingResult {
	answerLetter := ExtractMCQOption(a.Text)
	correctLetter := ExtractMCQOption(q.CorrectAnswer)

	isCorrect := answerLetter == correctLetter
	marks := 0.0
	if isCorrect {
		marks = q.Marks
	}
	return model.GradingResult{
		QuestionNumber: q.Number,
		MarksAvailable: q.Marks,
		MarksAwarded:   marks,
		IsCorrect:      isCorrect,
		Feedback:       fmt.Sprintf("Selected: %s, Correct: %s", answerLetter, correctLetter),
		Confidence:     1.0,
		Method:         model.MethodExactMatch,
	}
}

// gradeNumerical awards marks by percent error: full within 2%, half
// within 5%, nothing beyond. When either value cannot be extracted it
// falls back to symbolic comparison.
func (g *Grader) gradeNumerical(q model.Question, a model.Answer) model.GradingResult {
	correct, okC := mathexpr.ExtractNumber(q.CorrectAnswer)
	student, okS := mathexpr.ExtractNumber(a.Text)

	if !okC || !okS {
		equiv, kind := g.comparator.Compare(q.CorrectAnswer, a.Text)
		if equiv {
			marks := q.Marks * 0.9
			if kind == mathexpr.EquivExact {
				marks = q.Marks
			}
			return model.GradingResult{
				QuestionNumber: q.Number,
				MarksAvailable: q.Marks,
				MarksAwarded:   marks,
				IsCorrect:      true,
				Feedback:       fmt.Sprintf("Mathematically equivalent (%s)", kind),
				Confidence:     0.9,
				Method:         model.MethodMathEquivalence,
			}
		}
		return model.GradingResult{
			QuestionNumber: q.Number,
			MarksAvailable: q.Marks,
			Feedback:       "Could not extract numerical values for comparison",
			Confidence:     0.5,
			Method:         model.MethodNumericalTolerance,
		}
	}

	var errorPercent float64
	if correct != 0 {
		errorPercent = abs(student-correct) / abs(correct) * 100
	} else {
		errorPercent = abs(student) * 100
	}

	var marks float64
	var isCorrect bool
	var feedback string
	switch {
	case errorPercent <= fullMarksError:
		marks = q.Marks
		isCorrect = true
		feedback = fmt.Sprintf("Correct (error: %.2f%%)", errorPercent)
	case errorPercent <= partialMarksError:
		marks = q.Marks * 0.5
		feedback = fmt.Sprintf("Close answer, 50%% credit (error: %.2f%%)", errorPercent)
	default:
		feedback = fmt.Sprintf("Incorrect (error: %.2f%%)", errorPercent)
	}

	return model.GradingResult{
		QuestionNumber: q.Number,
		MarksAvailable: q.Marks,
		MarksAwarded:   marks,
		IsCorrect:      isCorrect,
		Feedback:       fmt.Sprintf("%s | Correct: %v, Student: %v", feedback, correct, student),
		Confidence:     0.95,
		Method:         model.MethodNumericalTolerance,
	}
}

// gradeDerivation asks the AI for a partial-credit breakdown. With
// partial credit disabled it grades like a short answer; without an
// embedder to hand off to, the AI call happens anyway.
func (g *Grader) gradeDerivation(ctx context.Context, q model.Question, a model.Answer) model.GradingResult {
	if !g.partialCredit && g.embedder != nil {
		return g.gradeShortAnswer(ctx, q, a)
	}

	resp, err := g.ai.GradeAnswer(ctx, GradeRequest{
		QuestionType:  q.Type,
		Marks:         q.Marks,
		CorrectAnswer: q.CorrectAnswer,
		StudentAnswer: studentAnswerWithWorking(a),
	})
	if err != nil {
		slog.Error("AI grading failed", "question", q.Number, "error", err)
		return degradedResult(q, model.MethodAIGrading, err)
	}
	return model.GradingResult{
		QuestionNumber: q.Number,
		MarksAvailable: q.Marks,
		MarksAwarded:   resp.MarksAwarded,
		IsCorrect:      resp.MarksAwarded >= q.Marks*0.9,
		PartialCredit:  resp.PartialCredit,
		Feedback:       resp.Feedback,
		Confidence:     resp.Confidence,
		Method:         model.MethodAIGrading,
	}
}

// gradeDiagram compares the reference and student diagrams and awards
// marks by similarity band. A missing diagram on either side scores
// zero with full confidence.
func (g *Grader) gradeDiagram(ctx context.Context, q model.Question, a model.Answer) model.GradingResult {
	if !q.HasDiagram || !a.HasDiagram {
		feedback := "Missing diagram"
		if !a.HasDiagram {
			feedback = "Student did not provide diagram"
		} else if !q.HasDiagram {
			feedback = "No reference diagram available"
		}
		return model.GradingResult{
			QuestionNumber: q.Number,
			MarksAvailable: q.Marks,
			Feedback:       feedback,
			Confidence:     1.0,
			Method:         model.MethodDiagramComparison,
		}
	}

	cmp, err := g.ai.CompareDiagrams(ctx, q.DiagramPath, a.DiagramPath)
	if err != nil {
		slog.Error("diagram comparison failed", "question", q.Number, "error", err)
		return degradedResult(q, model.MethodDiagramComparison, err)
	}

	var marks float64
	var isCorrect bool
	var feedback string
	switch {
	case cmp.SimilarityScore >= 0.8:
		marks = q.Marks
		isCorrect = true
		feedback = "Diagram is correct"
	case cmp.SimilarityScore >= 0.6:
		marks = q.Marks * 0.7
		feedback = "Diagram is mostly correct with minor issues"
	case cmp.SimilarityScore >= 0.4:
		marks = q.Marks * 0.4
		feedback = "Diagram has significant issues"
	default:
		feedback = "Diagram is incorrect"
	}

	feedback += fmt.Sprintf(" | Similarity: %.2f", cmp.SimilarityScore)
	if len(cmp.MissingElements) > 0 {
		feedback += " | Missing: " + strings.Join(cmp.MissingElements, ", ")
	}

	return model.GradingResult{
		QuestionNumber: q.Number,
		MarksAvailable: q.Marks,
		MarksAwarded:   marks,
		IsCorrect:      isCorrect,
		Feedback:       feedback,
		Confidence:     cmp.Confidence,
		Method:         model.MethodDiagramComparison,
	}
}

// gradeShortAnswer accepts high semantic similarity outright, asks
// the AI to verify the middle band, and in the low band asks for
// partial credit (never marking the answer correct). Without an
// embedder the derivation path handles the answer.
func (g *Grader) gradeShortAnswer(ctx context.Context, q model.Question, a model.Answer) model.GradingResult {
	if g.embedder == nil {
		slog.Info("semantic similarity unavailable, using AI grading", "question", q.Number)
		return g.gradeDerivation(ctx, q, a)
	}

	similarity := g.semanticSimilarity(ctx, q.CorrectAnswer, a.Text)

	var marks, confidence float64
	var isCorrect bool
	var feedback string
	var method model.GradingMethod

	switch {
	case similarity >= g.similarityThreshold:
		marks = q.Marks
		isCorrect = true
		feedback = fmt.Sprintf("Semantically correct (similarity: %.2f)", similarity)
		confidence = 0.9
		method = model.MethodSemanticSimilarity

	case similarity >= 0.6:
		slog.Info("medium similarity, verifying with AI", "question", q.Number, "similarity", similarity)
		resp, err := g.ai.GradeAnswer(ctx, GradeRequest{
			QuestionType:  q.Type,
			Marks:         q.Marks,
			CorrectAnswer: q.CorrectAnswer,
			StudentAnswer: a.Text,
		})
		if err != nil {
			return degradedResult(q, model.MethodAIVerification, err)
		}
		marks = resp.MarksAwarded
		isCorrect = marks >= q.Marks*0.9
		feedback = resp.Feedback
		confidence = resp.Confidence
		method = model.MethodAIVerification

	default:
		if g.partialCredit {
			slog.Info("low similarity, checking for partial credit", "question", q.Number, "similarity", similarity)
			resp, err := g.ai.GradeAnswer(ctx, GradeRequest{
				QuestionType:  q.Type,
				Marks:         q.Marks,
				CorrectAnswer: q.CorrectAnswer,
				StudentAnswer: a.Text,
			})
			if err != nil {
				return degradedResult(q, model.MethodAIPartialCredit, err)
			}
			marks = resp.MarksAwarded
			isCorrect = false
			feedback = resp.Feedback
			confidence = resp.Confidence
			method = model.MethodAIPartialCredit
		} else {
			feedback = fmt.Sprintf("Incorrect (similarity: %.2f)", similarity)
			confidence = 0.85
			method = model.MethodSemanticSimilarity
		}
	}

	return model.GradingResult{
		QuestionNumber: q.Number,
		MarksAvailable: q.Marks,
		MarksAwarded:   marks,
		IsCorrect:      isCorrect,
		Feedback:       feedback,
		Confidence:     confidence,
		Method:         method,
	}
}

// semanticSimilarity is the cosine similarity of the two texts'
// embeddings; any failure reads as zero similarity.
func (g *Grader) semanticSimilarity(ctx context.Context, a, b string) float64 {
	vecs, err := g.embedder.Embed(ctx, []string{a, b})
	if err != nil || len(vecs) != 2 {
		slog.Warn("semantic similarity failed", "error", err)
		return 0.0
	}
	return cosineSimilarity(vecs[0], vecs[1])
}

// ExtractMCQOption pulls the selected option letter out of free text.
// The cascade tries "a)", "(a)", "a." and a bare standalone letter,
// case-insensitively; no match yields the empty string.
func ExtractMCQOption(text string) string {
	lower := strings.ToLower(strings.TrimSpace(text))
	for _, re := range mcqOptionRes {
		if m := re.FindStringSubmatch(lower); m != nil {
			return m[1]
		}
	}
	if len(lower) == 1 && strings.Contains("abcde", lower) {
		return lower
	}
	return ""
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
