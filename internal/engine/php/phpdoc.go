package php

import (
	"regexp"
	"strings"
)

var (
	docTagPattern  = regexp.MustCompile(`@((?:psalm-|phpstan-)?[a-z][a-z-]*)`)
	docNamePattern = regexp.MustCompile(namePattern)
)

// docTypeTags are the tags whose first argument is a type expression.
var docTypeTags = toSet(
	"param", "return", "var", "throws", "property", "property-read", "property-write",
	"mixin", "extends", "implements", "template-extends", "template-implements", "use",
	"see", "method", "template", "template-covariant", "template-contravariant",
)

// docTypeSpan is the byte range of one tag's type expression in the file.
type docTypeSpan struct {
	Tag   string
	Start int
	End   int
}

// parseDocSpans reads every doc comment and returns the type spans of its
// tags together with the names declared by @template tags.
func parseDocSpans(text string, regions []Region) ([]docTypeSpan, map[string]bool) {
	var spans []docTypeSpan
	templates := make(map[string]bool)
	for _, r := range regions {
		if r.Kind != RegionDocComment {
			continue
		}
		comment := text[r.Start:r.End]
		for _, m := range docTagPattern.FindAllStringSubmatchIndex(comment, -1) {
			if m[0] > 0 {
				prev := comment[m[0]-1]
				if prev != ' ' && prev != '\t' && prev != '*' && prev != '\n' {
					continue
				}
			}
			tag := comment[m[2]:m[3]]
			tag = strings.TrimPrefix(strings.TrimPrefix(tag, "psalm-"), "phpstan-")
			if !docTypeTags[tag] {
				continue
			}
			start, end, ok := docTagType(comment, m[1], tag, templates)
			if !ok {
				continue
			}
			spans = append(spans, docTypeSpan{Tag: tag, Start: r.Start + start, End: r.Start + end})
		}
	}
	return spans, templates
}

func docTagType(comment string, pos int, tag string, templates map[string]bool) (int, int, bool) {
	// The tag name must be followed by whitespace on the same line.
	if pos >= len(comment) || (comment[pos] != ' ' && comment[pos] != '\t') {
		return 0, 0, false
	}
	pos = skipBlanks(comment, pos)

	switch tag {
	case "template", "template-covariant", "template-contravariant":
		word := leadingWord(comment[pos:])
		if word == "" {
			return 0, 0, false
		}
		templates[word] = true
		pos = skipBlanks(comment, pos+len(word))
		bound := leadingWord(comment[pos:])
		if bound != "of" && bound != "as" {
			return 0, 0, false
		}
		pos = skipBlanks(comment, pos+len(bound))
	case "method":
		if strings.HasPrefix(comment[pos:], "static ") {
			pos = skipBlanks(comment, pos+len("static"))
		}
		end := readDocType(comment, pos)
		rest := skipBlanks(comment, end)
		word := leadingWord(comment[rest:])
		if word != "" && rest+len(word) < len(comment) && comment[rest+len(word)] == '(' {
			if closeAt := matchClose(comment, rest+len(word), '(', ')'); closeAt >= 0 {
				end = closeAt + 1
			}
		}
		return pos, end, end > pos
	}

	end := readDocType(comment, pos)
	if end == pos {
		return 0, 0, false
	}
	if tag == "see" && strings.Contains(comment[pos:end], "://") {
		return 0, 0, false
	}
	return pos, end, true
}

func skipBlanks(s string, pos int) int {
	for pos < len(s) && (s[pos] == ' ' || s[pos] == '\t') {
		pos++
	}
	return pos
}

// readDocType reads one type expression. Whitespace ends it unless it is
// inside generics or braces, or sits around a union or intersection operator.
func readDocType(comment string, pos int) int {
	depth := 0
	for j := pos; j < len(comment); j++ {
		c := comment[j]
		switch c {
		case '<', '{', '(', '[':
			depth++
		case '>', '}', ')', ']':
			if depth > 0 {
				depth--
			}
		case '\n', '\r':
			return j
		case '*':
			if depth == 0 && j+1 < len(comment) && comment[j+1] == '/' {
				return j
			}
		case ' ', '\t':
			if depth > 0 {
				continue
			}
			next := skipBlanks(comment, j)
			if j > pos && (comment[j-1] == '|' || comment[j-1] == '&') {
				j = next - 1
				continue
			}
			if next < len(comment) && (comment[next] == '|' || comment[next] == '&') {
				j = next - 1
				continue
			}
			return j
		}
	}
	return len(comment)
}

// GetFromPhpDoc returns class names referenced by PHPDoc tag types.
// Fully-qualified references contribute their last segment, template
// parameters and variable names are ignored.
func (s *Source) GetFromPhpDoc() []string {
	var names nameSet
	for _, span := range s.docSpans {
		typ := s.Text[span.Start:span.End]
		for _, loc := range docNamePattern.FindAllStringIndex(typ, -1) {
			if loc[0] > 0 && typ[loc[0]-1] == '$' {
				continue
			}
			name := typ[loc[0]:loc[1]]
			if idx := strings.LastIndexByte(name, '\\'); idx >= 0 {
				name = name[idx+1:]
			}
			if s.templates[name] {
				continue
			}
			names.add(name)
		}
	}
	return names.list()
}
