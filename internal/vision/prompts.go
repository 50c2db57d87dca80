package vision

import (
	"fmt"
	"strings"

	"github.com/gradepaper/gradepaper/internal/grading"
)

const handwritingOCRPrompt = `You are an expert OCR system specialized in reading handwritten text from exam answer sheets.

Extract ALL text from this image, including:
- Student's handwritten answers
- Mathematical expressions and equations (use LaTeX format: $equation$)
- Any diagrams, tables, or special notation
- Working shown by the student

IMPORTANT:
1. Preserve the structure and layout as much as possible
2. Use LaTeX notation for all mathematical expressions: $x^2 + 3x + 2$
3. If text is unclear or illegible, mark it as [UNCLEAR: approximate_text]
4. Maintain the order of content as it appears
5. Note any diagrams with [DIAGRAM: description]

Return the extracted text in a clean, structured format.`

const diagramDetectionPrompt = `Analyze this image and identify ALL diagrams, figures, charts, or visual elements.

For each diagram found, provide:
1. Type (circuit, graph, flowchart, mechanical drawing, plot, table, etc.)
2. Bounding box coordinates as percentages (x_min, y_min, x_max, y_max) where 0-100%
3. Brief description of the diagram
4. Relevance to the question (high/medium/low)

Return the response in this exact JSON format:
{
  "diagrams": [
    {
      "type": "circuit",
      "bbox": {"x_min": 10, "y_min": 20, "x_max": 45, "y_max": 60},
      "description": "RC circuit with resistor and capacitor",
      "relevance": "high"
    }
  ]
}

If no diagrams are found, return: {"diagrams": []}`

const diagramComparisonPrompt = `Compare these two diagrams/figures for similarity.

Evaluate:
1. Overall similarity (0-1 score)
2. Correctness of structure/components
3. Accuracy of labels and annotations
4. Quality of presentation
5. Missing or incorrect elements

Return JSON:
{
  "similarity_score": float,
  "structure_correct": bool,
  "labels_correct": bool,
  "missing_elements": ["list"],
  "incorrect_elements": ["list"],
  "feedback": "explanation"
}`

// gradingPrompt builds the grading request. With a reference answer
// the model compares against it; without one it evaluates from the
// question text alone.
func gradingPrompt(req grading.GradeRequest) string {
	gradingContext := "Compare the student's answer with the correct solution."
	questionInfo := "Correct Answer: " + req.CorrectAnswer
	if strings.TrimSpace(req.CorrectAnswer) == "" {
		gradingContext = "Evaluate the student's answer based on the question requirements."
		if req.QuestionText != "" {
			questionInfo = "Question: " + req.QuestionText
		} else {
			questionInfo = "Question: [See student answer for context]"
		}
	}

	var sb strings.Builder
	sb.WriteString("You are an expert exam grader. " + gradingContext + "\n\n")
	sb.WriteString(fmt.Sprintf("Question Type: %s\n", req.QuestionType))
	sb.WriteString(fmt.Sprintf("Marks Available: %g\n", req.Marks))
	sb.WriteString(questionInfo + "\n")
	sb.WriteString("Student Answer: " + req.StudentAnswer + "\n\n")
	sb.WriteString(`Grading Guidelines:
- For MCQ: Exact match only (full marks or zero) - but if no correct answer provided, evaluate based on question
- For numerical: ±2% tolerance for full marks, ±5% for 50% marks
- For derivations: Evaluate method, calculations, final answer, presentation
- For diagrams: Check accuracy, completeness, labeling
- For short answers: Check key concepts and accuracy
- When no correct answer is provided: Evaluate based on the question requirements, accuracy of concepts, completeness, and clarity

`)
	sb.WriteString(fmt.Sprintf("Provide:\n1. Marks awarded (out of %g)\n", req.Marks))
	sb.WriteString(`2. Partial credit breakdown if applicable:
   - Method/Approach: X marks
   - Calculations: X marks
   - Final Answer: X marks
   - Presentation: X marks
3. Feedback explaining the grade
4. Confidence in grading (0-1)

IMPORTANT: Return ONLY valid JSON. Escape all special characters in strings (use \n for newlines, \" for quotes).

Return as JSON:
{
  "marks_awarded": float,
  "partial_credit": {"method": X, "calculation": X, "final_answer": X, "presentation": X},
  "feedback": "detailed explanation - use \n for line breaks",
  "confidence": 0.95
}`)
	return sb.String()
}
