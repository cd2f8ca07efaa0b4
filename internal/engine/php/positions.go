package php

import (
	"regexp"
	"sort"
	"strings"
)

var importLinePattern = regexp.MustCompile(`^\s*(?:namespace|use)\b`)

// Occurrence is one bare use of a class name. Offset is a byte offset, Line
// and Character are 0-based and Character counts runes.
type Occurrence struct {
	Name      string `json:"name"`
	Offset    int    `json:"offset"`
	Line      int    `json:"line"`
	Character int    `json:"character"`
}

func isTokenByte(c byte) bool {
	return isIdentByte(c, false) || c == '$' || c == '\\'
}

// tokenOffsets returns the offsets of whole-token occurrences of name. A
// token touching an identifier byte, '$' or '\' on either side does not count.
func tokenOffsets(text, name string) []int {
	if name == "" {
		return nil
	}
	var out []int
	for from := 0; from < len(text); {
		idx := strings.Index(text[from:], name)
		if idx < 0 {
			break
		}
		at := from + idx
		end := at + len(name)
		if (at == 0 || !isTokenByte(text[at-1])) && (end >= len(text) || !isTokenByte(text[end])) {
			out = append(out, at)
		}
		from = at + 1
	}
	return out
}

// DetectAllWithPositions returns every bare occurrence of every detected
// name outside namespace and use lines, in file order.
func (s *Source) DetectAllWithPositions() []Occurrence {
	names := s.DetectAll()
	skipped := make(map[int]bool)
	for i := 0; i < s.LineCount(); i++ {
		if importLinePattern.MatchString(s.ScanLine(i)) {
			skipped[i] = true
		}
	}

	type key struct {
		name       string
		line, char int
	}
	seen := make(map[key]bool)
	type hit struct {
		offset int
		occ    Occurrence
	}
	var hits []hit
	for _, name := range names {
		for _, offset := range tokenOffsets(s.scan, name) {
			line, char := s.Position(offset)
			if skipped[line] {
				continue
			}
			k := key{name, line, char}
			if seen[k] {
				continue
			}
			seen[k] = true
			hits = append(hits, hit{offset, Occurrence{Name: name, Offset: offset, Line: line, Character: char}})
		}
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].offset < hits[j].offset })

	out := make([]Occurrence, 0, len(hits))
	for _, h := range hits {
		out = append(out, h.occ)
	}
	return out
}

// DetectAllWithPositions is a convenience wrapper over a fresh Source.
func DetectAllWithPositions(text string) []Occurrence {
	return NewSource(text).DetectAllWithPositions()
}

// HasPrefixReference reports whether `name\` starts a qualified reference in
// code, as in `Models\User` after `use App\Models;`.
func (s *Source) HasPrefixReference(name string) bool {
	prefix := name + `\`
	for from := 0; from < len(s.scan); {
		idx := strings.Index(s.scan[from:], prefix)
		if idx < 0 {
			return false
		}
		at := from + idx
		from = at + 1
		if at > 0 && isTokenByte(s.scan[at-1]) {
			continue
		}
		line, _ := s.Position(at)
		if !importLinePattern.MatchString(s.ScanLine(line)) {
			return true
		}
	}
	return false
}
