package php

import (
	"regexp"
	"sort"
	"strings"
)

const (
	identPattern = `[A-Za-z_][A-Za-z0-9_]*`
	namePattern  = `\\?` + identPattern + `(?:\\` + identPattern + `)*`
	typeAtom     = `\??\(?\s*\??` + namePattern + `\s*\)?`
	typePattern  = typeAtom + `(?:\s*[|&]\s*` + typeAtom + `)*`
	nameList     = namePattern + `(?:\s*,\s*` + namePattern + `)*`
)

var (
	extendsPattern     = regexp.MustCompile(`\bextends\s+(` + nameList + `)`)
	implementsPattern  = regexp.MustCompile(`\bimplements\s+(` + nameList + `)`)
	newPattern         = regexp.MustCompile(`\bnew\s+(` + namePattern + `)`)
	staticPattern      = regexp.MustCompile(`(?:^|[^\w$\\:>])(` + namePattern + `)\s*::`)
	instanceofPattern  = regexp.MustCompile(`\binstanceof\s+(` + namePattern + `)`)
	catchPattern       = regexp.MustCompile(`\bcatch\s*\(\s*(` + namePattern + `(?:\s*\|\s*` + namePattern + `)*)`)
	constPattern       = regexp.MustCompile(`\bconst\s+(` + typePattern + `)\s+` + identPattern + `\s*=`)
	functionPattern    = regexp.MustCompile(`\b(?:function|fn)\b\s*&?\s*(?:` + identPattern + `)?\s*\(`)
	returnTypePattern  = regexp.MustCompile(`^\s*:\s*(` + typePattern + `)`)
	closureUsePattern  = regexp.MustCompile(`^\s*use\s*\(`)
	traitUsePattern    = regexp.MustCompile(`\buse\s+(` + nameList + `)\s*[;{]`)
	typeHeadPattern    = regexp.MustCompile(`\b(?:class|trait|enum|interface)\b`)
	leadingNamePattern = regexp.MustCompile(`^` + namePattern)
	propertyPattern    = regexp.MustCompile(`(?m)(?:^|[{;}\]])[ \t]*(?:(?:(?:public|protected|private)(?:\(set\))?|var|static|readonly|final|abstract)\s+)+(` +
		typePattern + `)\s+&?\$` + identPattern)
)

var paramModifiers = map[string]bool{
	"public":    true,
	"protected": true,
	"private":   true,
	"readonly":  true,
	"final":     true,
	"var":       true,
}

// nameSet collects accepted class names in first-seen order.
type nameSet struct {
	seen map[string]bool
	out  []string
}

func (n *nameSet) add(names ...string) {
	if n.seen == nil {
		n.seen = make(map[string]bool)
	}
	for _, name := range names {
		name = strings.TrimSpace(name)
		if !acceptName(name) || n.seen[name] {
			continue
		}
		n.seen[name] = true
		n.out = append(n.out, name)
	}
}

func (n *nameSet) list() []string {
	if n.out == nil {
		return []string{}
	}
	return n.out
}

// acceptName keeps bare, capitalized, non-reserved identifiers. Qualified
// names are resolved by PHP itself and never need an import.
func acceptName(name string) bool {
	if name == "" || strings.Contains(name, `\`) {
		return false
	}
	if name[0] < 'A' || name[0] > 'Z' {
		return false
	}
	if IsReservedType(name) {
		return false
	}
	return leadingNamePattern.FindString(name) == name
}

// splitNames splits a comma or pipe separated list of names.
func splitNames(list string) []string {
	return strings.FieldsFunc(list, func(r rune) bool {
		return r == ',' || r == '|' || r == ' ' || r == '\t' || r == '\r' || r == '\n'
	})
}

// typeNames returns the atoms of a type expression such as `?(A&B)|C`.
func typeNames(typ string) []string {
	return strings.FieldsFunc(typ, func(r rune) bool {
		return strings.ContainsRune("|&()?,<>[]{}: \t\r\n.", r)
	})
}

func (s *Source) collectGroup(pattern *regexp.Regexp, split func(string) []string) []string {
	var names nameSet
	for _, m := range pattern.FindAllStringSubmatch(s.Sanitized, -1) {
		names.add(split(m[1])...)
	}
	return names.list()
}

func single(v string) []string { return []string{v} }

// GetExtended returns parents named in `extends`, including interface lists.
func (s *Source) GetExtended() []string {
	return s.collectGroup(extendsPattern, splitNames)
}

// GetImplemented returns interfaces named in `implements` lists.
func (s *Source) GetImplemented() []string {
	return s.collectGroup(implementsPattern, splitNames)
}

// GetInstantiated returns classes used with `new`.
func (s *Source) GetInstantiated() []string {
	return s.collectGroup(newPattern, single)
}

// GetStaticAccess returns classes used on the left of `::`.
func (s *Source) GetStaticAccess() []string {
	return s.collectGroup(staticPattern, single)
}

// GetInstanceOf returns classes on the right of `instanceof`.
func (s *Source) GetInstanceOf() []string {
	return s.collectGroup(instanceofPattern, single)
}

// GetCaught returns exception classes of catch blocks, multi-catch included.
func (s *Source) GetCaught() []string {
	return s.collectGroup(catchPattern, splitNames)
}

// GetTypedConstants returns types of typed class constants.
func (s *Source) GetTypedConstants() []string {
	return s.collectGroup(constPattern, typeNames)
}

// GetPropertyTypes returns declared property types.
func (s *Source) GetPropertyTypes() []string {
	return s.collectGroup(propertyPattern, typeNames)
}

type signature struct {
	params     string
	returnType string
}

// signatures finds every function, method, closure and arrow function head.
func (s *Source) signatures() []signature {
	text := s.Sanitized
	var out []signature
	for _, loc := range functionPattern.FindAllStringIndex(text, -1) {
		open := loc[1] - 1
		closeAt := matchClose(text, open, '(', ')')
		if closeAt < 0 {
			continue
		}
		sig := signature{params: text[open+1 : closeAt]}
		rest := text[closeAt+1:]
		if m := closureUsePattern.FindStringIndex(rest); m != nil {
			useOpen := closeAt + 1 + m[1] - 1
			useClose := matchClose(text, useOpen, '(', ')')
			if useClose < 0 {
				out = append(out, sig)
				continue
			}
			rest = text[useClose+1:]
		}
		if m := returnTypePattern.FindStringSubmatch(rest); m != nil {
			sig.returnType = m[1]
		}
		out = append(out, sig)
	}
	return out
}

// GetFromFunctionParameters returns parameter types, including promoted
// constructor properties and parameters carrying attributes.
func (s *Source) GetFromFunctionParameters() []string {
	var names nameSet
	for _, sig := range s.signatures() {
		for _, param := range splitTopLevel(sig.params, ',') {
			names.add(typeNames(parameterType(param))...)
		}
	}
	return names.list()
}

// GetReturnTypes returns declared return types.
func (s *Source) GetReturnTypes() []string {
	var names nameSet
	for _, sig := range s.signatures() {
		names.add(typeNames(sig.returnType)...)
	}
	return names.list()
}

// parameterType strips attributes, modifiers, by-ref and variadic markers and
// returns the bare type expression of one parameter ("" when untyped).
func parameterType(param string) string {
	p := strings.TrimSpace(param)
	for strings.HasPrefix(p, "#[") {
		closeAt := matchClose(p, 1, '[', ']')
		if closeAt < 0 {
			return ""
		}
		p = strings.TrimSpace(p[closeAt+1:])
	}
	for {
		word := leadingWord(p)
		if !paramModifiers[strings.ToLower(word)] {
			break
		}
		p = p[len(word):]
		if strings.HasPrefix(p, "(set)") {
			p = p[len("(set)"):]
		}
		p = strings.TrimSpace(p)
	}
	idx := strings.IndexByte(p, '$')
	if idx < 0 {
		return ""
	}
	typ := strings.TrimRight(p[:idx], " \t\r\n&")
	typ = strings.TrimSuffix(typ, "...")
	return strings.TrimRight(typ, " \t\r\n&")
}

func leadingWord(s string) string {
	end := 0
	for end < len(s) && isIdentByte(s[end], end == 0) {
		end++
	}
	return s[:end]
}

// GetAttributes returns attribute classes of `#[A, B(...)]` groups.
func (s *Source) GetAttributes() []string {
	var names nameSet
	text := s.Sanitized
	for from := 0; ; {
		idx := strings.Index(text[from:], "#[")
		if idx < 0 {
			break
		}
		open := from + idx + 1
		closeAt := matchClose(text, open, '[', ']')
		if closeAt < 0 {
			break
		}
		for _, part := range splitTopLevel(text[open+1:closeAt], ',') {
			names.add(leadingNamePattern.FindString(strings.TrimSpace(part)))
		}
		from = open + 1
	}
	return names.list()
}

// GetTraitUses returns traits imported with `use A, B;` directly inside a
// class-like body. Namespace imports and closure `use (...)` are skipped.
func (s *Source) GetTraitUses() []string {
	text := s.Sanitized
	bodies := typeBodies(text)
	if len(bodies) == 0 {
		return []string{}
	}
	var names nameSet
	for _, m := range traitUsePattern.FindAllStringSubmatchIndex(text, -1) {
		pos := m[0]
		body, ok := innermostBody(bodies, pos)
		if !ok || braceDepth(text[body[0]:pos]) != 0 {
			continue
		}
		names.add(splitNames(text[m[2]:m[3]])...)
	}
	return names.list()
}

// typeBodies returns [start, end) of every class, trait, enum and interface
// body, anonymous classes included.
func typeBodies(text string) [][2]int {
	var bodies [][2]int
	for _, loc := range typeHeadPattern.FindAllStringIndex(text, -1) {
		before := strings.TrimRight(text[:loc[0]], " \t\r\n")
		if strings.HasSuffix(before, "::") || strings.HasSuffix(before, "->") || strings.HasSuffix(before, "$") {
			continue
		}
		rest := text[loc[1]:]
		brace := strings.IndexByte(rest, '{')
		if brace < 0 {
			continue
		}
		if semi := strings.IndexAny(rest, ";"); semi >= 0 && semi < brace {
			continue
		}
		open := loc[1] + brace
		closeAt := matchClose(text, open, '{', '}')
		if closeAt < 0 {
			closeAt = len(text)
		}
		bodies = append(bodies, [2]int{open + 1, closeAt})
	}
	return bodies
}

func innermostBody(bodies [][2]int, pos int) ([2]int, bool) {
	var best [2]int
	found := false
	for _, b := range bodies {
		if pos >= b[0] && pos < b[1] && (!found || b[0] > best[0]) {
			best = b
			found = true
		}
	}
	return best, found
}

func braceDepth(s string) int {
	return strings.Count(s, "{") - strings.Count(s, "}")
}

// matchClose returns the index of the bracket closing the one at open, or -1.
func matchClose(text string, open int, openCh, closeCh byte) int {
	depth := 0
	for i := open; i < len(text); i++ {
		switch text[i] {
		case openCh:
			depth++
		case closeCh:
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// splitTopLevel splits s on sep outside of any bracket nesting.
func splitTopLevel(s string, sep byte) []string {
	var parts []string
	depth := 0
	start := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			if depth > 0 {
				depth--
			}
		case sep:
			if depth == 0 {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	if strings.TrimSpace(s[start:]) != "" {
		parts = append(parts, s[start:])
	}
	return parts
}

// passes is the battery DetectAll unions. Each entry is independently
// callable so new syntax can be added without touching the others.
func (s *Source) passes() []func() []string {
	return []func() []string{
		s.GetExtended,
		s.GetImplemented,
		s.GetFromFunctionParameters,
		s.GetReturnTypes,
		s.GetPropertyTypes,
		s.GetInstantiated,
		s.GetStaticAccess,
		s.GetInstanceOf,
		s.GetCaught,
		s.GetAttributes,
		s.GetTraitUses,
		s.GetTypedConstants,
		s.GetFromPhpDoc,
	}
}

// DetectAll returns the distinct class-like names the file uses by short
// name, sorted. Names that only ever appear fully-qualified are dropped.
func (s *Source) DetectAll() []string {
	var names nameSet
	for _, pass := range s.passes() {
		names.add(pass()...)
	}
	out := make([]string, 0, len(names.out))
	for _, name := range names.out {
		if len(tokenOffsets(s.scan, name)) > 0 {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// DetectAll is a convenience wrapper around NewSource(text).DetectAll().
func DetectAll(text string) []string {
	return NewSource(text).DetectAll()
}

func GetExtended(text string) []string    { return NewSource(text).GetExtended() }
func GetImplemented(text string) []string { return NewSource(text).GetImplemented() }
func GetFromFunctionParameters(text string) []string {
	return NewSource(text).GetFromFunctionParameters()
}
func GetFromPhpDoc(text string) []string { return NewSource(text).GetFromPhpDoc() }
