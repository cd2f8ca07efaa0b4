// Package report renders diagnostics for CI tooling.
package report

import (
	"encoding/json"
	"path/filepath"
	"sort"

	"nsresolve/internal/engine/diagnostics"
)

// SARIF v2.1.0 schema – see https://schemastore.azurewebsites.net/schemas/json/sarif-2.1.0-rtm.5.json

const (
	sarifSchema  = "https://schemastore.azurewebsites.net/schemas/json/sarif-2.1.0-rtm.5.json"
	sarifVersion = "2.1.0"

	ruleIDNotImported = "NSR001"
	ruleIDNotUsed     = "NSR002"
)

type sarifReport struct {
	Schema  string     `json:"$schema"`
	Version string     `json:"version"`
	Runs    []sarifRun `json:"runs"`
}

type sarifRun struct {
	Tool    sarifTool     `json:"tool"`
	Results []sarifResult `json:"results"`
}

type sarifTool struct {
	Driver sarifDriver `json:"driver"`
}

type sarifDriver struct {
	Name    string      `json:"name"`
	Version string      `json:"version"`
	Rules   []sarifRule `json:"rules"`
}

type sarifRule struct {
	ID               string                 `json:"id"`
	Name             string                 `json:"name"`
	ShortDescription sarifMessage           `json:"shortDescription"`
	DefaultConfig    sarifRuleDefaultConfig `json:"defaultConfiguration"`
}

type sarifRuleDefaultConfig struct {
	Level string `json:"level"`
}

type sarifResult struct {
	RuleID    string          `json:"ruleId"`
	Level     string          `json:"level"`
	Message   sarifMessage    `json:"message"`
	Locations []sarifLocation `json:"locations,omitempty"`
}

type sarifMessage struct {
	Text string `json:"text"`
}

type sarifLocation struct {
	PhysicalLocation sarifPhysicalLocation `json:"physicalLocation"`
}

type sarifPhysicalLocation struct {
	ArtifactLocation sarifArtifactLocation `json:"artifactLocation"`
	Region           *sarifRegion          `json:"region,omitempty"`
}

type sarifArtifactLocation struct {
	URI       string `json:"uri"`
	URIBaseID string `json:"uriBaseId"`
}

type sarifRegion struct {
	StartLine   int `json:"startLine"`
	StartColumn int `json:"startColumn"`
	EndColumn   int `json:"endColumn,omitempty"`
}

var rulesByKind = map[diagnostics.Kind]sarifRule{
	diagnostics.KindNotImported: {
		ID:               ruleIDNotImported,
		Name:             "ClassNotImported",
		ShortDescription: sarifMessage{Text: "A class is referenced by its short name without a matching use statement."},
		DefaultConfig:    sarifRuleDefaultConfig{Level: "warning"},
	},
	diagnostics.KindNotUsed: {
		ID:               ruleIDNotUsed,
		Name:             "UnusedImport",
		ShortDescription: sarifMessage{Text: "A use statement imports a class the file never references."},
		DefaultConfig:    sarifRuleDefaultConfig{Level: "note"},
	},
}

// GenerateSARIF builds a SARIF v2.1.0 document from per-file diagnostics.
// File URIs are made relative to projectRoot so reports are safe to share.
// Positions become 1-based.
func GenerateSARIF(projectRoot, toolVersion string, byFile map[string][]diagnostics.Diagnostic) ([]byte, error) {
	files := make([]string, 0, len(byFile))
	for f := range byFile {
		files = append(files, f)
	}
	sort.Strings(files)

	results := make([]sarifResult, 0)
	seen := make(map[diagnostics.Kind]bool)
	for _, file := range files {
		uri := relativeURI(projectRoot, file)
		for _, d := range byFile[file] {
			rule, ok := rulesByKind[d.Kind]
			if !ok {
				continue
			}
			seen[d.Kind] = true
			results = append(results, sarifResult{
				RuleID:  rule.ID,
				Level:   rule.DefaultConfig.Level,
				Message: sarifMessage{Text: d.Message},
				Locations: []sarifLocation{{
					PhysicalLocation: sarifPhysicalLocation{
						ArtifactLocation: sarifArtifactLocation{
							URI:       uri,
							URIBaseID: "%SRCROOT%",
						},
						Region: &sarifRegion{
							StartLine:   d.Line + 1,
							StartColumn: d.Character + 1,
							EndColumn:   d.EndCharacter + 1,
						},
					},
				}},
			})
		}
	}

	// Only rules with findings are listed.
	rules := make([]sarifRule, 0, len(seen))
	for _, kind := range []diagnostics.Kind{diagnostics.KindNotImported, diagnostics.KindNotUsed} {
		if seen[kind] {
			rules = append(rules, rulesByKind[kind])
		}
	}

	report := sarifReport{
		Schema:  sarifSchema,
		Version: sarifVersion,
		Runs: []sarifRun{
			{
				Tool: sarifTool{
					Driver: sarifDriver{
						Name:    "nsresolve",
						Version: toolVersion,
						Rules:   rules,
					},
				},
				Results: results,
			},
		},
	}

	return json.MarshalIndent(report, "", "  ")
}

// relativeURI converts an absolute file path to a forward-slash relative URI
// anchored at projectRoot. Relative paths are returned with forward slashes.
func relativeURI(projectRoot, filePath string) string {
	filePath = filepath.FromSlash(filePath)
	if projectRoot != "" && filepath.IsAbs(filePath) {
		if rel, err := filepath.Rel(projectRoot, filePath); err == nil {
			filePath = rel
		}
	}
	return filepath.ToSlash(filePath)
}
