// Package sanitize cleans user-supplied free text before it is stored.
package sanitize

import (
	"html"
	"regexp"
	"strings"
)

var (
	htmlTagRegex   = regexp.MustCompile(`<[^>]*>`)
	blankRunsRegex = regexp.MustCompile(`[ \t]+`)
	newlineRuns    = regexp.MustCompile(`\n{3,}`)
)

// StripHTML removes HTML tags, decodes entities and strips again so encoded
// tags do not survive.
func StripHTML(s string) string {
	result := htmlTagRegex.ReplaceAllString(s, "")
	result = html.UnescapeString(result)
	result = htmlTagRegex.ReplaceAllString(result, "")
	return strings.TrimSpace(result)
}

// Text cleans multi-line text such as conversation notes. Line breaks are
// kept, runs of blanks are collapsed and at most one empty line separates paragraphs.
func Text(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = StripHTML(s)
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(blankRunsRegex.ReplaceAllString(line, " "))
	}
	return newlineRuns.ReplaceAllString(strings.Join(lines, "\n"), "\n\n")
}

// Line cleans single-line text such as titles.
func Line(s string) string {
	return strings.Join(strings.Fields(StripHTML(s)), " ")
}

// TextPtr is Text for optional fields. Nil stays nil.
func TextPtr(s *string) *string {
	if s == nil {
		return nil
	}
	result := Text(*s)
	return &result
}

// LinePtr is Line for optional fields. Nil stays nil.
func LinePtr(s *string) *string {
	if s == nil {
		return nil
	}
	result := Line(*s)
	return &result
}
