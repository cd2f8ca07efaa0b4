package mcp

import (
	"nsresolve/internal/core/app"
	"nsresolve/internal/engine/diagnostics"
	"nsresolve/internal/engine/index"
	"nsresolve/internal/engine/resolver"
)

const (
	ToolResolveClass = "resolve_class"
	ToolDiagnoseFile = "diagnose_file"
	ToolImportClass  = "import_class"
	ToolIndexStatus  = "index_status"
)

type ResolveClassInput struct {
	Class string `json:"class"`
}

type ResolveClassOutput struct {
	Class       string                       `json:"class"`
	Candidates  []resolver.ResolvedNamespace `json:"candidates"`
	Suggestions []string                     `json:"suggestions,omitempty"`
}

type DiagnoseFileInput struct {
	Path string `json:"path"`
}

type DiagnoseFileOutput struct {
	Path        string                   `json:"path"`
	Diagnostics []diagnostics.Diagnostic `json:"diagnostics"`
}

type ImportClassInput struct {
	Path  string `json:"path"`
	Class string `json:"class"`
	Alias string `json:"alias,omitempty"`
	Write bool   `json:"write,omitempty"`
}

type ImportClassOutput struct {
	app.Result
	Candidates []string `json:"candidates,omitempty"`
}

type IndexStatusOutput struct {
	Index  index.Status     `json:"index"`
	Health app.HealthStatus `json:"health"`
}

// ToolError is the body of a failed tool call.
type ToolError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

func (e ToolError) Error() string {
	return e.Message
}

const (
	ErrorInvalidArgument = "invalid_argument"
	ErrorUnavailable     = "unavailable"
)
