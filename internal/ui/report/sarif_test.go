package report

import (
	"encoding/json"
	"testing"

	"nsresolve/internal/engine/diagnostics"
)

func TestGenerateSARIF_EmptyResults(t *testing.T) {
	data, err := GenerateSARIF("", "1.0.0", nil)
	if err != nil {
		t.Fatalf("GenerateSARIF returned error: %v", err)
	}
	var report sarifReport
	if err := json.Unmarshal(data, &report); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if report.Schema != sarifSchema {
		t.Errorf("$schema = %q, want %q", report.Schema, sarifSchema)
	}
	if report.Version != sarifVersion {
		t.Errorf("version = %q, want %q", report.Version, sarifVersion)
	}
	if len(report.Runs) != 1 {
		t.Fatalf("len(runs) = %d, want 1", len(report.Runs))
	}
	if len(report.Runs[0].Results) != 0 {
		t.Errorf("expected 0 results, got %d", len(report.Runs[0].Results))
	}
	if len(report.Runs[0].Tool.Driver.Rules) != 0 {
		t.Errorf("expected no rules, got %d", len(report.Runs[0].Tool.Driver.Rules))
	}
}

func TestGenerateSARIF_Diagnostics(t *testing.T) {
	byFile := map[string][]diagnostics.Diagnostic{
		"/project/src/Http/Controller.php": {
			{
				Kind:         diagnostics.KindNotImported,
				ClassName:    "Mailer",
				Line:         8,
				Character:    19,
				EndCharacter: 25,
				Message:      "Class 'Mailer' is not imported.",
			},
		},
		"/project/src/Admin/Panel.php": {
			{
				Kind:         diagnostics.KindNotUsed,
				ClassName:    "User",
				Line:         4,
				Character:    4,
				EndCharacter: 19,
				Message:      "Class 'User' is not used.",
			},
		},
	}

	data, err := GenerateSARIF("/project", "1.0.0", byFile)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var report sarifReport
	if err := json.Unmarshal(data, &report); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	run := report.Runs[0]
	if len(run.Tool.Driver.Rules) != 2 {
		t.Fatalf("expected 2 rules, got %d", len(run.Tool.Driver.Rules))
	}
	if len(run.Results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(run.Results))
	}

	// Files are reported in path order.
	unused := run.Results[0]
	if unused.RuleID != ruleIDNotUsed || unused.Level != "note" {
		t.Errorf("first result = %s/%s, want %s/note", unused.RuleID, unused.Level, ruleIDNotUsed)
	}
	if got := unused.Locations[0].PhysicalLocation.ArtifactLocation.URI; got != "src/Admin/Panel.php" {
		t.Errorf("uri = %q, want src/Admin/Panel.php", got)
	}

	missing := run.Results[1]
	if missing.RuleID != ruleIDNotImported {
		t.Errorf("ruleId = %q, want %q", missing.RuleID, ruleIDNotImported)
	}
	region := missing.Locations[0].PhysicalLocation.Region
	if region == nil || region.StartLine != 9 || region.StartColumn != 20 || region.EndColumn != 26 {
		t.Errorf("unexpected region %+v", region)
	}
}
