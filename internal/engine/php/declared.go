package php

import (
	"regexp"
	"sort"
)

var (
	declaredNamespacePattern = regexp.MustCompile(`(?m)^[ \t]*(?:<\?php\s+)?namespace\s+\\?([A-Za-z_][\w\\]*)\s*[;{]`)
	declaredTypePattern      = regexp.MustCompile(`(?m)^[ \t]*(?:<\?php\s+)?(?:(?:abstract|final|readonly)\s+)*(?:class|interface|trait|enum)\s+([A-Za-z_]\w*)`)
)

// Declared is one class, interface, trait or enum declared by a file.
type Declared struct {
	FQCN      string `json:"fqcn"`
	ClassName string `json:"className"`
}

// ExtractDeclarations returns the types text declares, qualified by the
// namespace in effect at each declaration. Files with several namespace
// blocks are handled in order.
func ExtractDeclarations(text string) []Declared {
	code := Sanitize(text)

	type mark struct {
		offset int
		ns     string
		name   string
	}
	var marks []mark
	for _, m := range declaredNamespacePattern.FindAllStringSubmatchIndex(code, -1) {
		marks = append(marks, mark{offset: m[0], ns: code[m[2]:m[3]]})
	}
	for _, m := range declaredTypePattern.FindAllStringSubmatchIndex(code, -1) {
		marks = append(marks, mark{offset: m[0], name: code[m[2]:m[3]]})
	}
	sort.SliceStable(marks, func(i, j int) bool { return marks[i].offset < marks[j].offset })

	var out []Declared
	seen := make(map[string]bool)
	namespace := ""
	for _, m := range marks {
		if m.name == "" {
			namespace = m.ns
			continue
		}
		fqcn := m.name
		if namespace != "" {
			fqcn = namespace + `\` + m.name
		}
		if seen[fqcn] {
			continue
		}
		seen[fqcn] = true
		out = append(out, Declared{FQCN: fqcn, ClassName: m.name})
	}
	return out
}

// ExtractNamespace returns the first namespace declared by text, or "".
func ExtractNamespace(text string) string {
	if m := declaredNamespacePattern.FindStringSubmatch(Sanitize(text)); m != nil {
		return m[1]
	}
	return ""
}
