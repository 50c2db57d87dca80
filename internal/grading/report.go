package grading

import (
	"log/slog"

	"github.com/gradepaper/gradepaper/internal/model"
)

// gradeTable maps percentage lower bounds (inclusive) to letter
// grades, highest first.
var gradeTable = []struct {
	min   float64
	grade string
}{
	{90, "A+"},
	{85, "A"},
	{80, "A-"},
	{75, "B+"},
	{70, "B"},
	{65, "B-"},
	{60, "C+"},
	{55, "C"},
	{50, "C-"},
	{45, "D"},
}

// CalculateGrade converts a percentage to a letter grade.
func CalculateGrade(percentage float64) string {
	for _, band := range gradeTable {
		if percentage >= band.min {
			return band.grade
		}
	}
	return "F"
}

// MergeSolutions copies reference answers from a solution paper onto
// the matching questions by question number. A solution contributes
// its explicit correct answer when set, otherwise its full worked
// text. Questions without a matching solution are left unchanged.
func MergeSolutions(questions []model.Question, solutions []model.Question) []model.Question {
	byNumber := make(map[string]model.Question, len(solutions))
	for _, s := range solutions {
		byNumber[s.Number] = s
	}

	merged := make([]model.Question, len(questions))
	matched := 0
	for i, q := range questions {
		merged[i] = q
		s, ok := byNumber[q.Number]
		if !ok {
			slog.Warn("no solution for question", "question", q.Number)
			continue
		}
		if s.CorrectAnswer != "" {
			merged[i].CorrectAnswer = s.CorrectAnswer
		} else {
			merged[i].CorrectAnswer = s.Text
		}
		matched++
	}
	slog.Info("merged solutions", "matched", matched, "questions", len(questions))
	return merged
}
