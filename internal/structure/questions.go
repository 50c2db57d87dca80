// Package structure recovers exam structure from OCR text: questions
// from a question paper, answers from a student sheet, and exam-level
// metadata. Everything here is regex heuristics over recognized text;
// extraction is best effort and never fails hard.
package structure

import (
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/gradepaper/gradepaper/internal/model"
)

var (
	marksRe     = regexp.MustCompile(`(?i)\((\d+)\s*Marks?\)`)
	subpartRe   = regexp.MustCompile(`^\s*\(([a-z])\)`)
	subpartARe  = regexp.MustCompile(`^\s*\(a\)`)
	numberedRe  = regexp.MustCompile(`(?:^|\n)\s*(\d+)\.\s+`)
	topicCueRe  = regexp.MustCompile(`(?i)(Show that|Prove that|Consider|Calculate|Find the)`)
	mcqMarkerRe = regexp.MustCompile(`(?i)([a-e])\)`)
	mcqBoundRe  = regexp.MustCompile(`(?i)^\s*[a-e]\)`)
	mcqAnyOptRe = regexp.MustCompile(`\b[a-e]\)`)
)

// segment is one marks-annotated span of the question paper.
type segment struct {
	text      string
	marks     float64
	isSubpart bool
	letter    string
}

// AnalyzeQuestionPaper extracts exam metadata and questions from the
// OCR pages of a question paper.
func AnalyzeQuestionPaper(pages []model.OCRPage, diagramsByPage [][]model.Diagram) (model.ExamMetadata, []model.Question) {
	texts := make([]string, len(pages))
	for i, p := range pages {
		texts[i] = p.Text
	}
	fullText := strings.Join(texts, "\n\n")

	meta := ExtractMetadata(fullText)
	questions := ParseQuestions(fullText, flattenDiagrams(diagramsByPage))
	slog.Info("analyzed question paper", "questions", len(questions))
	return meta, questions
}

// ParseQuestions splits text into questions. Spans are delimited by
// "(N Marks)" annotations; adjacent spans are folded into multi-part
// questions by the grouping rules below. A text with no marks
// annotations yields an empty list.
func ParseQuestions(text string, allDiagrams []model.Diagram) []model.Question {
	matches := marksRe.FindAllStringSubmatchIndex(text, -1)
	if len(matches) == 0 {
		slog.Warn("no marks annotations found")
		return nil
	}
	slog.Info("found marks annotations", "count", len(matches))

	segments := make([]segment, 0, len(matches))
	for i, m := range matches {
		marks, _ := strconv.ParseFloat(text[m[2]:m[3]], 64)
		start := 0
		if i > 0 {
			start = matches[i-1][1]
		}
		segText := strings.TrimSpace(text[start:m[1]])
		seg := segment{text: segText, marks: marks}
		if sm := subpartRe.FindStringSubmatch(segText); sm != nil {
			seg.isSubpart = true
			seg.letter = sm[1]
		}
		segments = append(segments, seg)
	}

	groups := groupSegments(segments)

	questions := make([]model.Question, 0, len(groups))
	for idx, g := range groups {
		parts := make([]string, len(g.segments))
		subParts := []string{}
		for i, s := range g.segments {
			parts[i] = s.text
			if s.isSubpart {
				subParts = append(subParts, s.letter)
			}
		}
		fullText := strings.Join(parts, "\n\n")

		number := strconv.Itoa(idx + 1)
		if nm := numberedRe.FindStringSubmatch(fullText); nm != nil {
			number = nm[1]
		}

		qType := ClassifyQuestionType(fullText)
		var options map[string]string
		if qType == model.TypeMCQ {
			options = ExtractMCQOptions(fullText)
		}

		// Diagram association is positional: only the first two
		// extracted diagrams are considered, and only high-relevance
		// ones attach.
		var attached []model.Diagram
		for _, d := range firstN(allDiagrams, 2) {
			if d.Relevance == "high" {
				attached = append(attached, d)
			}
		}

		q := model.Question{
			Number:   number,
			SubParts: subParts,
			Marks:    g.totalMarks,
			Type:     qType,
			Text:     fullText,
			Options:  options,
			Diagrams: attached,
		}
		if len(attached) > 0 {
			q.HasDiagram = true
			q.DiagramPath = attached[0].ImagePath
		}
		questions = append(questions, q)
	}

	total := 0.0
	for _, q := range questions {
		total += q.Marks
	}
	slog.Info("parsed questions", "count", len(questions), "total_marks", total)
	return questions
}

type group struct {
	segments    []segment
	totalMarks  float64
	hasSubparts bool
}

// groupSegments folds marks-delimited spans into question groups.
//
// Rules, in order:
//  1. a numbered prefix ("3. ...") always starts a new question;
//  2. "(a)" starts a new question when the current group already has
//     subparts, or when the previous span was not a subpart;
//     "(b)", "(c)", ... never start a new question;
//  3. a span with marks >= 3 after a group with subparts starts a new
//     question;
//  4. a topic cue (Show that / Prove that / Consider / Calculate /
//     Find the) in the span's first 100 characters starts a new
//     question when a group is open.
func groupSegments(segments []segment) []group {
	var groups []group
	var current *group
	lastWasSubpart := false

	for _, seg := range segments {
		startNew := false
		hasNumber := numberedRe.MatchString(seg.text)

		switch {
		case hasNumber:
			startNew = true
		case seg.isSubpart:
			if subpartARe.MatchString(seg.text) {
				if current != nil && current.hasSubparts {
					startNew = true
				} else {
					startNew = current == nil || !lastWasSubpart
				}
			}
		default:
			if current != nil && current.hasSubparts && seg.marks >= 3 {
				startNew = true
			} else if topicCueRe.MatchString(head(seg.text, 100)) && current != nil {
				startNew = true
			}
		}

		if startNew || current == nil {
			if current != nil {
				groups = append(groups, *current)
			}
			current = &group{
				segments:    []segment{seg},
				totalMarks:  seg.marks,
				hasSubparts: seg.isSubpart,
			}
		} else {
			current.segments = append(current.segments, seg)
			current.totalMarks += seg.marks
			if seg.isSubpart {
				current.hasSubparts = true
			}
		}
		lastWasSubpart = seg.isSubpart
	}
	if current != nil {
		groups = append(groups, *current)
	}
	return groups
}

// ClassifyQuestionType assigns a question type from keyword cues.
// Rule order matters: an MCQ cue wins over everything else, and the
// explain/discuss family becomes essay only for long questions.
func ClassifyQuestionType(text string) model.QuestionType {
	lower := strings.ToLower(text)

	if mcqAnyOptRe.MatchString(lower) || strings.Contains(lower, "choose") || strings.Contains(lower, "select") {
		return model.TypeMCQ
	}
	if containsAny(lower, "derive", "proof", "prove", "show that") {
		return model.TypeDerivation
	}
	if containsAny(lower, "draw", "sketch", "diagram", "plot", "graph") {
		return model.TypeDiagram
	}
	if containsAny(lower, "code", "program", "implement", "algorithm") {
		return model.TypeCode
	}
	if containsAny(lower, "calculate", "compute", "find", "determine") {
		return model.TypeNumerical
	}
	if containsAny(lower, "explain", "discuss", "describe", "compare") {
		if len(text) > 200 {
			return model.TypeEssay
		}
		return model.TypeShortAnswer
	}
	return model.TypeShortAnswer
}

// ExtractMCQOptions pulls "a) ... b) ..." options out of question
// text. An option's text runs to the next option marker; the final
// option must sit at the end of its line and of the text, otherwise
// it is dropped.
func ExtractMCQOptions(text string) map[string]string {
	options := map[string]string{}
	markers := mcqMarkerRe.FindAllStringSubmatchIndex(text, -1)
	lastEnd := 0
	for _, m := range markers {
		if m[0] < lastEnd {
			continue
		}
		letter := strings.ToLower(text[m[2]:m[3]])
		body, end, ok := optionBody(text, m[1])
		if !ok {
			continue
		}
		options[letter] = strings.TrimSpace(body)
		lastEnd = end
	}
	if len(options) == 0 {
		return nil
	}
	return options
}

// optionBody scans forward from an option marker: leading whitespace
// is skipped, then characters accumulate on the current line until the
// next option marker or the end of text.
func optionBody(text string, from int) (string, int, bool) {
	i := from
	sameLine := true
	for i < len(text) && (text[i] == ' ' || text[i] == '\t' || text[i] == '\n' || text[i] == '\r') {
		if text[i] == '\n' {
			sameLine = false
		}
		i++
	}
	if i > from && sameLine && mcqBoundRe.MatchString(text[i:]) {
		return "", i, true
	}
	start := i
	for i < len(text) {
		if text[i] == '\n' {
			return "", i, false
		}
		i++
		if i == len(text) || mcqBoundRe.MatchString(text[i:]) {
			return text[start:i], i, true
		}
	}
	return "", i, false
}

func flattenDiagrams(byPage [][]model.Diagram) []model.Diagram {
	var all []model.Diagram
	for _, page := range byPage {
		all = append(all, page...)
	}
	return all
}

func firstN(ds []model.Diagram, n int) []model.Diagram {
	if len(ds) > n {
		return ds[:n]
	}
	return ds
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func head(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
