package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"nsresolve/internal/core/app"
	"nsresolve/internal/core/config"
	domainErrors "nsresolve/internal/core/errors"
	"nsresolve/internal/engine/diagnostics"
	"nsresolve/internal/engine/resolver"
	"nsresolve/internal/shared/util"
)

func (s *Server) handleResolveClass(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var in ResolveClassInput
	if err := decodeArgs(req.Params.Arguments, &in); err != nil {
		return createErrorResponse(ToolResolveClass, err)
	}
	class, err := requireString("class", in.Class)
	if err != nil {
		return createErrorResponse(ToolResolveClass, err)
	}

	out := ResolveClassOutput{Class: class}
	candidates, err := s.app.Resolve(ctx, class)
	switch {
	case domainErrors.IsCode(err, domainErrors.CodeNotFound):
		out.Suggestions = s.app.Resolver.Suggest(class, 5)
	case err != nil:
		return createErrorResponse(ToolResolveClass, err)
	}
	out.Candidates = candidates
	if out.Candidates == nil {
		out.Candidates = []resolver.ResolvedNamespace{}
	}
	return createJSONResponse(out)
}

func (s *Server) handleDiagnoseFile(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var in DiagnoseFileInput
	if err := decodeArgs(req.Params.Arguments, &in); err != nil {
		return createErrorResponse(ToolDiagnoseFile, err)
	}
	path, err := s.workspacePath(in.Path)
	if err != nil {
		return createErrorResponse(ToolDiagnoseFile, err)
	}
	diags, err := s.app.Diagnose(ctx, path)
	if err != nil {
		return createErrorResponse(ToolDiagnoseFile, err)
	}
	if diags == nil {
		diags = []diagnostics.Diagnostic{}
	}
	return createJSONResponse(DiagnoseFileOutput{Path: path, Diagnostics: diags})
}

func (s *Server) handleImportClass(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var in ImportClassInput
	if err := decodeArgs(req.Params.Arguments, &in); err != nil {
		return createErrorResponse(ToolImportClass, err)
	}
	path, err := s.workspacePath(in.Path)
	if err != nil {
		return createErrorResponse(ToolImportClass, err)
	}
	class, err := requireString("class", in.Class)
	if err != nil {
		return createErrorResponse(ToolImportClass, err)
	}
	if in.Write && !s.opts.AllowWrites {
		return createErrorResponse(ToolImportClass, ToolError{
			Code:    ErrorUnavailable,
			Message: "writes are disabled; start the server with --allow-writes",
		})
	}

	if !strings.Contains(strings.TrimPrefix(class, `\`), `\`) {
		candidates, err := s.app.Resolve(ctx, class)
		if err != nil {
			return createErrorResponse(ToolImportClass, err)
		}
		if len(candidates) > 1 {
			names := make([]string, 0, len(candidates))
			for _, c := range candidates {
				names = append(names, c.FQCN)
			}
			return createErrorResponse(ToolImportClass, ToolError{
				Code:    string(domainErrors.CodeConflict),
				Message: fmt.Sprintf("%s is ambiguous; call again with one of the candidates", class),
				Details: map[string]any{"candidates": names},
			})
		}
		class = candidates[0].FQCN
	}

	res, err := s.app.ImportClass(ctx, app.ImportRequest{
		Path:  path,
		Class: class,
		Alias: in.Alias,
		Write: in.Write,
	})
	if err != nil {
		return createErrorResponse(ToolImportClass, err)
	}
	return createJSONResponse(ImportClassOutput{Result: res})
}

func (s *Server) handleIndexStatus(ctx context.Context, _ *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return createJSONResponse(IndexStatusOutput{
		Index:  s.app.Status(),
		Health: s.health.Check(ctx),
	})
}

// workspacePath resolves p against the project root and rejects paths
// outside of it.
func (s *Server) workspacePath(p string) (string, error) {
	p, err := requireString("path", p)
	if err != nil {
		return "", err
	}
	root := s.app.Paths.ProjectRoot
	abs := config.ResolveRelative(root, filepath.FromSlash(p))
	if !util.HasPathPrefix(util.FileID(abs), util.FileID(root)) {
		return "", ToolError{Code: ErrorInvalidArgument, Message: "path is outside the workspace"}
	}
	return abs, nil
}

func createJSONResponse(data any) (*mcp.CallToolResult, error) {
	content, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("marshal response: %w", err)
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(content)},
		},
	}, nil
}

// createErrorResponse reports err inside the result with IsError set, so the
// client sees the failure instead of a protocol error.
func createErrorResponse(operation string, err error) (*mcp.CallToolResult, error) {
	body := map[string]any{
		"success":   false,
		"operation": operation,
		"code":      errorCode(err),
		"error":     domainErrors.Message(err),
	}
	var te ToolError
	if errors.As(err, &te) && len(te.Details) > 0 {
		body["details"] = te.Details
	}
	var de *domainErrors.DomainError
	if errors.As(err, &de) && len(de.Context) > 0 {
		body["details"] = de.Context
	}

	res, marshalErr := createJSONResponse(body)
	if marshalErr != nil {
		return nil, marshalErr
	}
	res.IsError = true
	return res, nil
}

func errorCode(err error) string {
	var te ToolError
	if errors.As(err, &te) {
		return te.Code
	}
	var de *domainErrors.DomainError
	if errors.As(err, &de) {
		return string(de.Code)
	}
	return "internal"
}
