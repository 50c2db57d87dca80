package structure

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/gradepaper/gradepaper/internal/model"
)

var (
	courseRe   = regexp.MustCompile(`(?i)([A-Z]{2,4}[-\s]?\d{3,4})`)
	marksTotRe = regexp.MustCompile(`(?i)total\s*marks?\s*:?\s*(\d+)`)
	durationRe = regexp.MustCompile(`(?i)duration\s*:?\s*(\d+\s*(?:hours?|mins?|minutes?))`)

	titleRes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(.*?exam.*?)\n`),
		regexp.MustCompile(`(?i)(.*?test.*?)\n`),
		regexp.MustCompile(`(?i)(.*?quiz.*?)\n`),
		regexp.MustCompile(`(?i)(.*?assignment.*?)\n`),
	}
	dateRes = []*regexp.Regexp{
		regexp.MustCompile(`\b(\d{1,2}[-/]\d{1,2}[-/]\d{2,4})\b`),
		regexp.MustCompile(`\b([A-Z][a-z]+\s+\d{1,2},?\s+\d{4})\b`),
		regexp.MustCompile(`\b(\d{4}[-/]\d{1,2}[-/]\d{1,2})\b`),
	}
)

// ExtractMetadata pulls exam-level fields out of a paper's text. Title
// and date are only looked for near the top of the document; every
// field is best effort and stays empty when not found.
func ExtractMetadata(text string) model.ExamMetadata {
	var meta model.ExamMetadata

	if m := courseRe.FindStringSubmatch(text); m != nil {
		meta.CourseCode = m[1]
	}

	top := head(text, 500)
	for _, re := range titleRes {
		if m := re.FindStringSubmatch(top); m != nil {
			meta.ExamTitle = strings.TrimSpace(m[1])
			break
		}
	}
	for _, re := range dateRes {
		if m := re.FindStringSubmatch(top); m != nil {
			meta.Date = m[1]
			break
		}
	}

	if m := marksTotRe.FindStringSubmatch(text); m != nil {
		v, _ := strconv.ParseFloat(m[1], 64)
		meta.TotalMarks = v
	}
	if m := durationRe.FindStringSubmatch(text); m != nil {
		meta.Duration = m[1]
	}
	return meta
}
