package php

import (
	"sort"
	"strings"
	"unicode/utf8"
)

// Source is one PHP text prepared for the detector passes. It is built once
// per analysis and is read-only afterwards.
type Source struct {
	Text      string
	Sanitized string
	Regions   []Region

	docSpans   []docTypeSpan
	templates  map[string]bool
	scan       string
	lineStarts []int
}

func NewSource(text string) *Source {
	sanitized, regions := SanitizeRegions(text)
	s := &Source{
		Text:      text,
		Sanitized: sanitized,
		Regions:   regions,
	}
	s.docSpans, s.templates = parseDocSpans(text, regions)
	s.scan = restoreSpans(sanitized, text, s.docSpans)
	s.lineStarts = lineStarts(text)
	return s
}

// ScanText is the sanitized text with PHPDoc type spans put back. It is the
// text occurrence scans run against: code plus doc tag types, nothing else.
func (s *Source) ScanText() string {
	return s.scan
}

// Position converts a byte offset to a 0-based line and rune column.
func (s *Source) Position(offset int) (int, int) {
	line := sort.Search(len(s.lineStarts), func(i int) bool { return s.lineStarts[i] > offset }) - 1
	if line < 0 {
		line = 0
	}
	start := s.lineStarts[line]
	if offset > len(s.Text) {
		offset = len(s.Text)
	}
	return line, utf8.RuneCountInString(s.Text[start:offset])
}

// LineCount returns the number of '\n'-separated lines.
func (s *Source) LineCount() int {
	return len(s.lineStarts)
}

// ScanLine returns line i (0-based) of the scan text without its terminator.
func (s *Source) ScanLine(i int) string {
	if i < 0 || i >= len(s.lineStarts) {
		return ""
	}
	start := s.lineStarts[i]
	end := len(s.scan)
	if i+1 < len(s.lineStarts) {
		end = s.lineStarts[i+1] - 1
	}
	return strings.TrimRight(s.scan[start:end], "\r")
}

func lineStarts(text string) []int {
	starts := []int{0}
	for i := 0; i < len(text); i++ {
		if text[i] == '\n' {
			starts = append(starts, i+1)
		}
	}
	return starts
}

func restoreSpans(sanitized, original string, spans []docTypeSpan) string {
	if len(spans) == 0 {
		return sanitized
	}
	out := []byte(sanitized)
	for _, span := range spans {
		copy(out[span.Start:span.End], original[span.Start:span.End])
	}
	return string(out)
}
