// Package php holds the lexical heuristics used to read PHP source without a
// grammar: masking of non-code regions, class reference detection, and the
// structural anchors of a file (open tag, namespace, imports, type declaration).
package php

import "strings"

// RegionKind classifies a masked span of source text.
type RegionKind int

const (
	RegionString RegionKind = iota
	RegionLineComment
	RegionBlockComment
	RegionDocComment
	RegionHeredoc
)

func (k RegionKind) String() string {
	switch k {
	case RegionString:
		return "string"
	case RegionLineComment:
		return "line-comment"
	case RegionBlockComment:
		return "block-comment"
	case RegionDocComment:
		return "doc-comment"
	case RegionHeredoc:
		return "heredoc"
	default:
		return "unknown"
	}
}

// Region is a half-open byte range [Start, End) of the original text.
type Region struct {
	Kind  RegionKind
	Start int
	End   int
}

// Sanitize masks strings, comments and heredoc bodies with spaces. The result
// has the same byte length as text and keeps every '\n' and '\r' in place.
func Sanitize(text string) string {
	out, _ := SanitizeRegions(text)
	return out
}

// SanitizeRegions is Sanitize that also reports what it masked.
func SanitizeRegions(text string) (string, []Region) {
	out := []byte(text)
	var regions []Region

	n := len(text)
	i := 0
	for i < n {
		c := text[i]
		switch {
		case c == '\'' || c == '"' || c == '`':
			end, closed := scanQuoted(text, i)
			contentEnd := end
			if closed {
				contentEnd = end - 1
			}
			blank(out, i+1, contentEnd)
			regions = append(regions, Region{Kind: RegionString, Start: i, End: end})
			i = end

		case c == '/' && i+1 < n && text[i+1] == '/',
			c == '#' && (i+1 >= n || text[i+1] != '['):
			end := lineCommentEnd(text, i)
			blank(out, i, end)
			regions = append(regions, Region{Kind: RegionLineComment, Start: i, End: end})
			i = end

		case c == '/' && i+1 < n && text[i+1] == '*':
			kind := RegionBlockComment
			if strings.HasPrefix(text[i:], "/**") && !strings.HasPrefix(text[i:], "/**/") {
				kind = RegionDocComment
			}
			end := n
			if idx := strings.Index(text[i+2:], "*/"); idx >= 0 {
				end = i + 2 + idx + 2
			}
			blank(out, i, end)
			regions = append(regions, Region{Kind: kind, Start: i, End: end})
			i = end

		case c == '<' && strings.HasPrefix(text[i:], "<<<"):
			bodyStart, marker, ok := heredocOpener(text, i)
			if !ok {
				i += 3
				continue
			}
			closeAt := heredocClose(text, bodyStart, marker)
			blank(out, bodyStart, closeAt)
			regions = append(regions, Region{Kind: RegionHeredoc, Start: bodyStart, End: closeAt})
			i = closeAt + len(marker)
			if i > n {
				i = n
			}

		default:
			i++
		}
	}

	return string(out), regions
}

func blank(out []byte, from, to int) {
	if to > len(out) {
		to = len(out)
	}
	for k := from; k < to; k++ {
		if out[k] != '\n' && out[k] != '\r' {
			out[k] = ' '
		}
	}
}

// scanQuoted returns the offset just past the closing quote of the string
// opened at start, honouring backslash escapes.
func scanQuoted(text string, start int) (int, bool) {
	quote := text[start]
	for j := start + 1; j < len(text); j++ {
		switch text[j] {
		case '\\':
			j++
		case quote:
			return j + 1, true
		}
	}
	return len(text), false
}

// lineCommentEnd returns the offset ending a `//` or `#` comment: the next
// line break or a `?>` close tag, which leaves PHP mode even inside a comment.
func lineCommentEnd(text string, from int) int {
	for j := from; j < len(text); j++ {
		switch {
		case text[j] == '\n' || text[j] == '\r':
			return j
		case text[j] == '?' && j+1 < len(text) && text[j+1] == '>':
			return j
		}
	}
	return len(text)
}

// heredocOpener parses `<<<ID`, `<<<"ID"` or `<<<'ID'` at start and returns
// the offset of the first body byte.
func heredocOpener(text string, start int) (int, string, bool) {
	j := start + 3
	for j < len(text) && (text[j] == ' ' || text[j] == '\t') {
		j++
	}
	var quote byte
	if j < len(text) && (text[j] == '\'' || text[j] == '"') {
		quote = text[j]
		j++
	}
	idStart := j
	for j < len(text) && isIdentByte(text[j], j == idStart) {
		j++
	}
	if j == idStart {
		return 0, "", false
	}
	marker := text[idStart:j]
	if quote != 0 {
		if j >= len(text) || text[j] != quote {
			return 0, "", false
		}
		j++
	}
	if j < len(text) && text[j] == '\r' {
		j++
	}
	if j >= len(text) || text[j] != '\n' {
		return 0, "", false
	}
	return j + 1, marker, true
}

// heredocClose finds the closing marker, which may be indented (PHP 7.3+).
// It returns the offset of the marker or len(text) when unterminated.
func heredocClose(text string, bodyStart int, marker string) int {
	lineStart := bodyStart
	for lineStart < len(text) {
		k := lineStart
		for k < len(text) && (text[k] == ' ' || text[k] == '\t') {
			k++
		}
		if strings.HasPrefix(text[k:], marker) {
			after := k + len(marker)
			if after >= len(text) || !isIdentByte(text[after], false) {
				return k
			}
		}
		next := strings.IndexByte(text[lineStart:], '\n')
		if next < 0 {
			break
		}
		lineStart += next + 1
	}
	return len(text)
}

func isIdentByte(c byte, first bool) bool {
	if c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c >= 0x80 {
		return true
	}
	return !first && c >= '0' && c <= '9'
}
