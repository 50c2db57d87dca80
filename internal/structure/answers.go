package structure

import (
	"log/slog"
	"regexp"
	"strings"

	"github.com/gradepaper/gradepaper/internal/model"
)

var (
	finalAnswerRe = regexp.MustCompile(`(?i)(?:final\s+)?answer\s*:?\s*([^\n]+)`)
	emailRe       = regexp.MustCompile(`[\w.-]+@[\w.-]+\.\w+`)

	nameRes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)name\s*:?\s*([A-Z][a-z]+(?:\s+[A-Z][a-z]+)+)`),
		regexp.MustCompile(`(?i)student\s+name\s*:?\s*([A-Z][a-z]+(?:\s+[A-Z][a-z]+)+)`),
	}
	idRes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:student\s+)?id\s*:?\s*([A-Z0-9]+)`),
		regexp.MustCompile(`(?i)roll\s+(?:no|number)\s*:?\s*([A-Z0-9]+)`),
	}
)

// answerPattern locates one answer: the prefix regex anchors the
// answer's start, and the span then runs to the first match of the
// boundary regex (the next answer's start) or to the end of text.
type answerPattern struct {
	prefix   *regexp.Regexp
	boundary *regexp.Regexp
}

// answerPatterns builds the per-question match cascade: "Q1" style,
// "Solution 1:" style, bare "1." / "1)" / "1_" markers, then a relaxed
// catch-all. First pattern that matches wins.
func answerPatterns(qNum string) []answerPattern {
	q := regexp.QuoteMeta(qNum)
	qBoundary := regexp.MustCompile(`(?i)\n\s*(?:Q|Solution)\s*\.?\s*\d+`)
	return []answerPattern{
		{
			prefix:   regexp.MustCompile(`(?is)(?:^|\n)\s*Q\.?\s*` + q + `\s*[:.)]?\s*`),
			boundary: qBoundary,
		},
		{
			prefix:   regexp.MustCompile(`(?is)(?:^|\n)\s*Solution\s+` + q + `\s*:\s*`),
			boundary: qBoundary,
		},
		{
			prefix:   regexp.MustCompile(`(?is)(?:^|\n)\s*` + q + `\s*[_:.)\-]\s*`),
			boundary: regexp.MustCompile(`(?i)\n\s*\d+\s*[_:.)\-]`),
		},
		{
			prefix:   regexp.MustCompile(`(?is)(?:^|\n).*?` + q + `.*?[:.)]?\s*`),
			boundary: regexp.MustCompile(`(?i)\n\s*(?:Q|Solution)?\s*\.?\s*\d+[_:.)\-]`),
		},
	}
}

// AnalyzeAnswerSheet extracts student info and one answer per expected
// question number from the OCR pages of an answer sheet. Questions
// with no matching span get the no-answer sentinel.
func AnalyzeAnswerSheet(pages []model.OCRPage, diagramsByPage [][]model.Diagram, questionNumbers []string) (map[string]string, []model.Answer) {
	firstPage := ""
	if len(pages) > 0 {
		firstPage = pages[0].Text
	}
	info := ExtractStudentInfo(firstPage)

	texts := make([]string, len(pages))
	for i, p := range pages {
		texts[i] = p.Text
	}
	fullText := strings.Join(texts, "\n\n")

	answers := ParseAnswers(fullText, flattenDiagrams(diagramsByPage), questionNumbers, pages)
	slog.Info("analyzed answer sheet", "answers", len(answers), "student", info["name"])
	return info, answers
}

// ParseAnswers locates each expected question's answer span in the
// sheet text.
func ParseAnswers(text string, allDiagrams []model.Diagram, questionNumbers []string, pages []model.OCRPage) []model.Answer {
	avgConfidence := 0.5
	if len(pages) > 0 {
		sum := 0.0
		for _, p := range pages {
			sum += p.Confidence
		}
		avgConfidence = sum / float64(len(pages))
	}
	quality := handwritingQuality(avgConfidence)

	answers := make([]model.Answer, 0, len(questionNumbers))
	for _, qNum := range questionNumbers {
		span, found := findAnswerSpan(text, qNum)
		if !found {
			slog.Warn("no answer found", "question", qNum)
			answers = append(answers, model.Answer{
				QuestionNumber:     qNum,
				Text:               model.NoAnswerSentinel,
				Diagrams:           []model.Diagram{},
				OCRConfidence:      avgConfidence,
				HandwritingQuality: model.HandwritingUnknown,
			})
			continue
		}

		answerText := strings.TrimSpace(span)
		working := ""
		if len(answerText) > 100 {
			if m := finalAnswerRe.FindStringSubmatchIndex(answerText); m != nil {
				working = answerText[:m[0]]
				answerText = strings.TrimSpace(answerText[m[2]:m[3]])
			}
		}

		attached := firstN(allDiagrams, 2)
		a := model.Answer{
			QuestionNumber:     qNum,
			Text:               answerText,
			Working:            working,
			Diagrams:           attached,
			OCRConfidence:      avgConfidence,
			HandwritingQuality: quality,
		}
		if len(attached) > 0 {
			a.HasDiagram = true
			a.DiagramPath = attached[0].ImagePath
		}
		answers = append(answers, a)
	}
	return answers
}

func findAnswerSpan(text, qNum string) (string, bool) {
	for _, p := range answerPatterns(qNum) {
		loc := p.prefix.FindStringIndex(text)
		if loc == nil {
			continue
		}
		rest := text[loc[1]:]
		if b := p.boundary.FindStringIndex(rest); b != nil {
			return rest[:b[0]], true
		}
		return rest, true
	}
	return "", false
}

func handwritingQuality(avgConfidence float64) model.HandwritingQuality {
	switch {
	case avgConfidence < 0.6:
		return model.HandwritingPoor
	case avgConfidence < 0.75:
		return model.HandwritingFair
	default:
		return model.HandwritingGood
	}
}

// ExtractStudentInfo pulls name, ID and email from the first page of
// an answer sheet. Missing fields are simply absent from the map.
func ExtractStudentInfo(text string) map[string]string {
	info := map[string]string{}
	for _, re := range nameRes {
		if m := re.FindStringSubmatch(text); m != nil {
			info["name"] = strings.TrimSpace(m[1])
			break
		}
	}
	for _, re := range idRes {
		if m := re.FindStringSubmatch(text); m != nil {
			info["id"] = strings.TrimSpace(m[1])
			break
		}
	}
	if m := emailRe.FindString(text); m != "" {
		info["email"] = m
	}
	return info
}

// QuestionNumbers lists the question numbers of a paper in order, for
// driving answer extraction.
func QuestionNumbers(questions []model.Question) []string {
	nums := make([]string, len(questions))
	for i, q := range questions {
		nums[i] = q.Number
	}
	return nums
}
