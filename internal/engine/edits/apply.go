// Package edits produces the text edits behind import, expand, sort and
// cleanup commands, and applies them to plain text.
package edits

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	domainErrors "nsresolve/internal/core/errors"
	"nsresolve/internal/core/ports"
)

// Apply returns text with edits applied. Positions refer to the original
// text; a position past the end of a line or of the text is clamped.
// Overlapping edits are rejected.
func Apply(text string, edits []ports.TextEdit) (string, error) {
	if len(edits) == 0 {
		return text, nil
	}
	starts := lineOffsets(text)

	type span struct {
		start, end int
		newText    string
		order      int
	}
	spans := make([]span, 0, len(edits))
	for i, e := range edits {
		start := offsetOf(text, starts, e.StartLine, e.StartChar)
		end := offsetOf(text, starts, e.EndLine, e.EndChar)
		if end < start {
			return "", domainErrors.Newf(domainErrors.CodeValidationError, "edit %d ends before it starts", i)
		}
		spans = append(spans, span{start: start, end: end, newText: e.NewText, order: i})
	}
	sort.SliceStable(spans, func(i, j int) bool {
		if spans[i].start != spans[j].start {
			return spans[i].start < spans[j].start
		}
		return spans[i].order < spans[j].order
	})
	for i := 1; i < len(spans); i++ {
		if spans[i].start < spans[i-1].end {
			return "", domainErrors.New(domainErrors.CodeConflict, fmt.Sprintf("edits %d and %d overlap", spans[i-1].order, spans[i].order))
		}
	}

	var b strings.Builder
	b.Grow(len(text))
	cursor := 0
	for _, s := range spans {
		b.WriteString(text[cursor:s.start])
		b.WriteString(s.newText)
		cursor = s.end
	}
	b.WriteString(text[cursor:])
	return b.String(), nil
}

func lineOffsets(text string) []int {
	starts := []int{0}
	for i := 0; i < len(text); i++ {
		if text[i] == '\n' {
			starts = append(starts, i+1)
		}
	}
	return starts
}

func offsetOf(text string, starts []int, line, char int) int {
	if line < 0 {
		return 0
	}
	if line >= len(starts) {
		return len(text)
	}
	start := starts[line]
	end := len(text)
	if line+1 < len(starts) {
		end = starts[line+1] - 1
	}
	content := strings.TrimSuffix(text[start:end], "\r")
	offset := start
	for i := 0; i < char && offset < start+len(content); i++ {
		_, size := utf8.DecodeRuneInString(text[offset:])
		offset += size
	}
	return offset
}

func runeLen(s string) int { return utf8.RuneCountInString(s) }
