// Package mcp exposes namespace resolution to editors and agents as Model
// Context Protocol tools over stdio.
package mcp

import (
	"context"
	"log/slog"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"nsresolve/internal/core/app"
)

type Options struct {
	Version string
	// AllowWrites lets import_class write files. Without it edits are only
	// returned.
	AllowWrites bool
}

type Server struct {
	app    *app.App
	health *app.HealthService
	opts   Options
	server *mcp.Server
}

func NewServer(a *app.App, opts Options) *Server {
	if opts.Version == "" {
		opts.Version = "dev"
	}
	s := &Server{
		app:    a,
		health: app.NewHealthService(a),
		opts:   opts,
		server: mcp.NewServer(&mcp.Implementation{
			Name:    "nsresolve",
			Version: opts.Version,
		}, nil),
	}
	s.registerTools()
	return s
}

// Run serves tool calls on stdin/stdout until ctx is done or the client
// disconnects.
func (s *Server) Run(ctx context.Context) error {
	slog.Info("mcp server starting", "version", s.opts.Version, "allow_writes", s.opts.AllowWrites)
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

func (s *Server) registerTools() {
	s.server.AddTool(&mcp.Tool{
		Name:        ToolResolveClass,
		Description: "List the fully qualified PHP classes a short class name can refer to.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"class": {
					Type:        "string",
					Description: "Short class name, e.g. User",
				},
			},
			Required: []string{"class"},
		},
	}, s.handleResolveClass)

	s.server.AddTool(&mcp.Tool{
		Name:        ToolDiagnoseFile,
		Description: "Report classes a PHP file uses without importing and imports it never uses.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"path": {
					Type:        "string",
					Description: "File path, absolute or relative to the project root",
				},
			},
			Required: []string{"path"},
		},
	}, s.handleDiagnoseFile)

	s.server.AddTool(&mcp.Tool{
		Name:        ToolImportClass,
		Description: "Add a use statement to a PHP file. Ambiguous short names return the candidates instead.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"path": {
					Type:        "string",
					Description: "File path, absolute or relative to the project root",
				},
				"class": {
					Type:        "string",
					Description: "Short or fully qualified class name",
				},
				"alias": {
					Type:        "string",
					Description: "Alias to import the class under",
				},
				"write": {
					Type:        "boolean",
					Description: "Write the file instead of only returning the edits",
				},
			},
			Required: []string{"path", "class"},
		},
	}, s.handleImportClass)

	s.server.AddTool(&mcp.Tool{
		Name:        ToolIndexStatus,
		Description: "Report the namespace index state and component health.",
		InputSchema: &jsonschema.Schema{
			Type:       "object",
			Properties: map[string]*jsonschema.Schema{},
		},
	}, s.handleIndexStatus)
}
