package model

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Document kinds as stored on disk and in the document store.
const (
	KindQuestionPaper = "question_paper"
	KindSolutionPaper = "solution_paper"
	KindAnswerSheet   = "answer_sheet"
	KindReport        = "grading_report"
)

// QuestionPaper is the persisted form of a processed question paper.
type QuestionPaper struct {
	Metadata       ExamMetadata `json:"metadata"`
	Questions      []Question   `json:"questions"`
	TotalQuestions int          `json:"total_questions"`
	ProcessingTime float64      `json:"processing_time"`
	CreatedAt      time.Time    `json:"created_at"`
}

// SolutionPaper mirrors QuestionPaper; its questions carry solutions.
type SolutionPaper struct {
	Metadata       ExamMetadata `json:"metadata"`
	Solutions      []Question   `json:"solutions"`
	TotalQuestions int          `json:"total_questions"`
	ProcessingTime float64      `json:"processing_time"`
	CreatedAt      time.Time    `json:"created_at"`
}

// AnswerSheet is the persisted form of a processed student answer sheet.
type AnswerSheet struct {
	StudentInfo    map[string]string `json:"student_info"`
	Answers        []Answer          `json:"answers"`
	TotalAnswers   int               `json:"total_answers"`
	ProcessingTime float64           `json:"processing_time"`
	CreatedAt      time.Time         `json:"created_at"`
}

// SaveJSON writes v to path as indented JSON.
func SaveJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", path, err)
	}
	data = append(data, '\n')
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// LoadJSON reads path into v.
func LoadJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}
