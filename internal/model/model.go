package model

// QuestionType classifies an exam question for grading-strategy dispatch.
type QuestionType string

const (
	TypeMCQ         QuestionType = "mcq"
	TypeNumerical   QuestionType = "numerical"
	TypeShortAnswer QuestionType = "short_answer"
	TypeDerivation  QuestionType = "derivation"
	TypeProof       QuestionType = "proof"
	TypeDiagram     QuestionType = "diagram"
	TypeEssay       QuestionType = "essay"
	TypeCode        QuestionType = "code"
	TypeMixed       QuestionType = "mixed"
)

// GradingMethod identifies the strategy that produced a GradingResult.
type GradingMethod string

const (
	MethodNoAnswer           GradingMethod = "no_answer"
	MethodExactMatch         GradingMethod = "exact_match"
	MethodNumericalTolerance GradingMethod = "numerical_tolerance"
	MethodMathEquivalence    GradingMethod = "math_equivalence"
	MethodSemanticSimilarity GradingMethod = "semantic_similarity"
	MethodAIVerification     GradingMethod = "ai_verification"
	MethodAIPartialCredit    GradingMethod = "ai_partial_credit"
	MethodAIGrading          GradingMethod = "ai_grading"
	MethodDiagramComparison  GradingMethod = "diagram_comparison"
)

// HandwritingQuality is a coarse estimate derived from OCR confidence.
type HandwritingQuality string

const (
	HandwritingGood    HandwritingQuality = "good"
	HandwritingFair    HandwritingQuality = "fair"
	HandwritingPoor    HandwritingQuality = "poor"
	HandwritingUnknown HandwritingQuality = "unknown"
)

// NoAnswerSentinel is the answer text emitted when no answer could be
// located for an expected question number. It is part of the persisted
// document format and must not be changed.
const NoAnswerSentinel = "[No answer provided]"

// BoundingBox holds diagram coordinates as page percentages.
type BoundingBox struct {
	XMin float64 `json:"x_min"`
	YMin float64 `json:"y_min"`
	XMax float64 `json:"x_max"`
	YMax float64 `json:"y_max"`
}

// Diagram is a figure cropped from a document page by the extraction
// collaborator. Diagrams are referenced by questions and answers, never
// owned by them.
type Diagram struct {
	ID           string       `json:"diagram_id"`
	Type         string       `json:"type"`
	Description  string       `json:"description"`
	BBox         *BoundingBox `json:"bbox,omitempty"`
	ImagePath    string       `json:"image_path"`
	Relevance    string       `json:"relevance"` // high, medium, low
	QualityScore float64      `json:"quality_score"`
}

// OCRPage is the recognized text of a single document page.
type OCRPage struct {
	Text           string  `json:"text"`
	Confidence     float64 `json:"confidence"`
	Engine         string  `json:"engine"`
	HasHandwriting bool    `json:"has_handwriting"`
	HasMath        bool    `json:"has_math"`
	Quality        string  `json:"quality"` // good, fair, poor
}

// Question is one logical question recovered from a question paper.
// Marks must be positive; Options is set only for MCQs with detected
// options. CorrectAnswer is populated by a solution-paper pass.
type Question struct {
	Number        string            `json:"question_number"`
	SubParts      []string          `json:"sub_parts"`
	Marks         float64           `json:"marks"`
	Type          QuestionType      `json:"question_type"`
	Text          string            `json:"question_text"`
	Options       map[string]string `json:"options,omitempty"`
	HasDiagram    bool              `json:"has_diagram"`
	DiagramPath   string            `json:"diagram_path,omitempty"`
	Diagrams      []Diagram         `json:"diagrams"`
	CorrectAnswer string            `json:"correct_answer,omitempty"`
}

// Answer is a student's response to one question, extracted from an
// answer sheet.
type Answer struct {
	QuestionNumber     string             `json:"question_number"`
	Text               string             `json:"answer_text"`
	Working            string             `json:"working,omitempty"`
	HasDiagram         bool               `json:"has_diagram"`
	DiagramPath        string             `json:"diagram_path,omitempty"`
	Diagrams           []Diagram          `json:"diagrams"`
	OCRConfidence      float64            `json:"ocr_confidence"`
	HandwritingQuality HandwritingQuality `json:"handwriting_quality"`
}

// Missing reports whether the answer is the no-answer sentinel.
func (a Answer) Missing() bool {
	return a.Text == "" || a.Text == NoAnswerSentinel
}

// PartialCredit breaks a derivation grade into its components.
type PartialCredit struct {
	Method       float64 `json:"method"`
	Calculation  float64 `json:"calculation"`
	FinalAnswer  float64 `json:"final_answer"`
	Presentation float64 `json:"presentation"`
}

// GradingResult is the outcome of grading a single answer.
type GradingResult struct {
	QuestionNumber string         `json:"question_number"`
	MarksAvailable float64        `json:"marks_available"`
	MarksAwarded   float64        `json:"marks_awarded"`
	IsCorrect      bool           `json:"is_correct"`
	PartialCredit  *PartialCredit `json:"partial_credit,omitempty"`
	Feedback       string         `json:"feedback"`
	Confidence     float64        `json:"confidence"`
	Method         GradingMethod  `json:"grading_method"`
}

// GradingReport aggregates all results for one answer sheet. It is
// recomputed wholesale on each grading run, never patched.
type GradingReport struct {
	StudentInfo    map[string]string `json:"student_info"`
	Results        []GradingResult   `json:"results"`
	TotalAvailable float64           `json:"total_marks_available"`
	TotalAwarded   float64           `json:"total_marks_awarded"`
	Percentage     float64           `json:"percentage"`
	Grade          string            `json:"grade"`
	ProcessingTime float64           `json:"processing_time"`
	APICost        float64           `json:"api_cost"`
}

// ExamMetadata holds best-effort exam-level fields. Unset fields stay
// empty; extraction never fails.
type ExamMetadata struct {
	ExamTitle    string  `json:"exam_title,omitempty"`
	CourseCode   string  `json:"course_code,omitempty"`
	Date         string  `json:"date,omitempty"`
	TotalMarks   float64 `json:"total_marks,omitempty"`
	Duration     string  `json:"duration,omitempty"`
	Instructions string  `json:"instructions,omitempty"`
}

// ProcessingMetrics records per-run pipeline statistics for operator
// transparency.
type ProcessingMetrics struct {
	TotalPages        int     `json:"total_pages"`
	DiagramsExtracted int     `json:"diagrams_extracted"`
	AvgOCRConfidence  float64 `json:"avg_ocr_confidence"`
	HandwritingPages  int     `json:"handwriting_pages"`
	ProcessingTime    float64 `json:"processing_time"`
	APICalls          int     `json:"api_calls"`
	EstimatedCost     float64 `json:"estimated_cost"`
}
