package structure

import (
	"strings"
	"testing"

	"github.com/gradepaper/gradepaper/internal/model"
)

const samplePaper = `EE-207 Final Exam
Date: 12/05/2024
Total Marks: 20
Duration: 2 hours

1. Calculate the current through the resistor. (5 Marks)

(a) Derive the expression for voltage. (3 Marks)

(b) Compute the power dissipated. (2 Marks)

2. Choose the correct option:
a) 10 V
b) 20 V
c) 30 V (4 Marks)

Show that the system is stable. (6 Marks)`

func TestParseQuestionsGrouping(t *testing.T) {
	questions := ParseQuestions(samplePaper, nil)

	if len(questions) != 4 {
		t.Fatalf("got %d questions, want 4", len(questions))
	}

	wantMarks := []float64{5, 5, 4, 6}
	for i, q := range questions {
		if q.Marks != wantMarks[i] {
			t.Errorf("question %d marks = %v, want %v", i, q.Marks, wantMarks[i])
		}
	}

	// Every marks annotation is counted exactly once.
	total := 0.0
	for _, q := range questions {
		total += q.Marks
	}
	if total != 20 {
		t.Errorf("total marks = %v, want 20", total)
	}

	if questions[0].Number != "1" {
		t.Errorf("question 0 number = %q, want 1", questions[0].Number)
	}
	if questions[2].Number != "2" {
		t.Errorf("question 2 number = %q, want 2", questions[2].Number)
	}

	if got := questions[1].SubParts; len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Errorf("question 1 sub parts = %v, want [a b]", got)
	}

	if questions[0].Type != model.TypeNumerical {
		t.Errorf("question 0 type = %s, want numerical", questions[0].Type)
	}
	if questions[3].Type != model.TypeDerivation {
		t.Errorf("question 3 type = %s, want derivation", questions[3].Type)
	}
}

func TestParseQuestionsNoAnnotations(t *testing.T) {
	if got := ParseQuestions("Answer all questions.\nGood luck!", nil); len(got) != 0 {
		t.Errorf("got %d questions for text without marks annotations, want 0", len(got))
	}
}

func TestParseQuestionsLetteredRuns(t *testing.T) {
	// A fresh (a) after a lettered run starts a new question; (b)
	// never does, even right after a plain question.
	text := "(a) first part (2 Marks)\n(b) second part (2 Marks)\n(a) next question (2 Marks)\n(b) its part (2 Marks)"
	questions := ParseQuestions(text, nil)
	if len(questions) != 2 {
		t.Fatalf("got %d questions, want 2", len(questions))
	}
	if questions[0].Marks != 4 || questions[1].Marks != 4 {
		t.Errorf("marks = %v/%v, want 4/4", questions[0].Marks, questions[1].Marks)
	}

	text = "Evaluate the integral. (5 Marks)\n(b) part without opener (2 Marks)"
	questions = ParseQuestions(text, nil)
	if len(questions) != 1 {
		t.Fatalf("got %d questions, want 1 (lone (b) merges into the open question)", len(questions))
	}
	if questions[0].Marks != 7 {
		t.Errorf("marks = %v, want 7", questions[0].Marks)
	}
}

func TestParseQuestionsHighMarksAfterSubparts(t *testing.T) {
	text := "(a) small part (1 Marks)\n(b) another (1 Marks)\nThe next standalone task. (4 Marks)"
	questions := ParseQuestions(text, nil)
	if len(questions) != 2 {
		t.Fatalf("got %d questions, want 2", len(questions))
	}
	if questions[0].Marks != 2 || questions[1].Marks != 4 {
		t.Errorf("marks = %v/%v, want 2/4", questions[0].Marks, questions[1].Marks)
	}
}

func TestClassifyQuestionType(t *testing.T) {
	tests := []struct {
		name string
		text string
		want model.QuestionType
	}{
		{"mcq options", "Pick one:\na) heat\nb) light", model.TypeMCQ},
		{"mcq keyword", "Select the best description of entropy.", model.TypeMCQ},
		{"derivation", "Derive the wave equation from first principles.", model.TypeDerivation},
		{"proof beats diagram", "Prove that the graph is acyclic.", model.TypeDerivation},
		{"diagram", "Sketch the voltage waveform.", model.TypeDiagram},
		{"code", "Implement a queue using two stacks.", model.TypeCode},
		{"numerical", "Determine the resonant frequency.", model.TypeNumerical},
		{"short answer", "Explain briefly.", model.TypeShortAnswer},
		{"essay", "Discuss the trade-offs involved in distributed consensus protocols, covering consistency, availability, partition tolerance, and the practical engineering consequences of choosing between them in production systems.", model.TypeEssay},
		{"default", "What is the capital of France?", model.TypeShortAnswer},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassifyQuestionType(tt.text); got != tt.want {
				t.Errorf("ClassifyQuestionType(%q) = %s, want %s", tt.text, got, tt.want)
			}
		})
	}
}

func TestExtractMCQOptions(t *testing.T) {
	text := "Choose one:\na) 10 V\nb) 20 V\nc) 30 V"
	options := ExtractMCQOptions(text)
	want := map[string]string{"a": "10 V", "b": "20 V", "c": "30 V"}
	if len(options) != len(want) {
		t.Fatalf("got %d options, want %d: %v", len(options), len(want), options)
	}
	for k, v := range want {
		if options[k] != v {
			t.Errorf("option %s = %q, want %q", k, options[k], v)
		}
	}

	if got := ExtractMCQOptions("no options here"); got != nil {
		t.Errorf("got %v for text without options, want nil", got)
	}
}

const sampleSheet = `ID: A12345
john.smith@example.com
Name: John Smith

Q1: The current is 2 A

Q2. V = IR = 10 V

Solution 3: x = 42`

func TestParseAnswers(t *testing.T) {
	pages := []model.OCRPage{{Text: sampleSheet, Confidence: 0.9}}
	answers := ParseAnswers(sampleSheet, nil, []string{"1", "2", "3", "9"}, pages)

	if len(answers) != 4 {
		t.Fatalf("got %d answers, want 4", len(answers))
	}

	wantText := []string{"The current is 2 A", "V = IR = 10 V", "x = 42", model.NoAnswerSentinel}
	for i, a := range answers {
		if a.Text != wantText[i] {
			t.Errorf("answer %d text = %q, want %q", i, a.Text, wantText[i])
		}
	}

	if answers[3].HandwritingQuality != model.HandwritingUnknown {
		t.Errorf("missing answer quality = %s, want unknown", answers[3].HandwritingQuality)
	}
	if !answers[3].Missing() {
		t.Error("missing answer not reported as missing")
	}
	if answers[0].HandwritingQuality != model.HandwritingGood {
		t.Errorf("answer quality = %s, want good", answers[0].HandwritingQuality)
	}
	if answers[0].OCRConfidence != 0.9 {
		t.Errorf("ocr confidence = %v, want 0.9", answers[0].OCRConfidence)
	}
}

func TestParseAnswersWorkingSplit(t *testing.T) {
	long := "Q1: First I compute the resistance using Ohm's law and then substitute the measured values carefully, step by step, simplifying as I go.\nAnswer: 42 ohms"
	answers := ParseAnswers(long, nil, []string{"1"}, []model.OCRPage{{Text: long, Confidence: 0.8}})
	if len(answers) != 1 {
		t.Fatalf("got %d answers, want 1", len(answers))
	}
	if answers[0].Text != "42 ohms" {
		t.Errorf("final answer = %q, want %q", answers[0].Text, "42 ohms")
	}
	if !strings.Contains(answers[0].Working, "Ohm's law") {
		t.Errorf("working does not contain the derivation: %q", answers[0].Working)
	}
}

func TestHandwritingQualityBands(t *testing.T) {
	tests := []struct {
		confidence float64
		want       model.HandwritingQuality
	}{
		{0.90, model.HandwritingGood},
		{0.75, model.HandwritingGood},
		{0.74, model.HandwritingFair},
		{0.60, model.HandwritingFair},
		{0.59, model.HandwritingPoor},
	}
	for _, tt := range tests {
		if got := handwritingQuality(tt.confidence); got != tt.want {
			t.Errorf("handwritingQuality(%v) = %s, want %s", tt.confidence, got, tt.want)
		}
	}
}

func TestExtractStudentInfo(t *testing.T) {
	info := ExtractStudentInfo(sampleSheet)
	if info["id"] != "A12345" {
		t.Errorf("id = %q, want A12345", info["id"])
	}
	if info["email"] != "john.smith@example.com" {
		t.Errorf("email = %q, want john.smith@example.com", info["email"])
	}
	if info["name"] == "" {
		t.Error("name not extracted")
	}

	if got := ExtractStudentInfo("nothing useful on this page"); len(got) != 0 {
		t.Errorf("got %v for anonymous text, want empty", got)
	}
}

func TestExtractMetadata(t *testing.T) {
	meta := ExtractMetadata(samplePaper)
	if meta.CourseCode != "EE-207" {
		t.Errorf("course code = %q, want EE-207", meta.CourseCode)
	}
	if meta.ExamTitle != "EE-207 Final Exam" {
		t.Errorf("title = %q, want EE-207 Final Exam", meta.ExamTitle)
	}
	if meta.Date != "12/05/2024" {
		t.Errorf("date = %q, want 12/05/2024", meta.Date)
	}
	if meta.TotalMarks != 20 {
		t.Errorf("total marks = %v, want 20", meta.TotalMarks)
	}
	if meta.Duration != "2 hours" {
		t.Errorf("duration = %q, want 2 hours", meta.Duration)
	}

	empty := ExtractMetadata("nothing useful")
	if empty.CourseCode != "" || empty.TotalMarks != 0 {
		t.Errorf("metadata from empty text = %+v, want zero value", empty)
	}
}

func TestAnalyzeAnswerSheet(t *testing.T) {
	pages := []model.OCRPage{{Text: sampleSheet, Confidence: 0.8}}
	info, answers := AnalyzeAnswerSheet(pages, nil, []string{"1", "2"})
	if info["id"] != "A12345" {
		t.Errorf("student id = %q, want A12345", info["id"])
	}
	if len(answers) != 2 {
		t.Fatalf("got %d answers, want 2", len(answers))
	}
}

func TestQuestionNumbers(t *testing.T) {
	qs := []model.Question{{Number: "1"}, {Number: "2"}, {Number: "4"}}
	got := QuestionNumbers(qs)
	if len(got) != 3 || got[2] != "4" {
		t.Errorf("QuestionNumbers = %v, want [1 2 4]", got)
	}
}
