package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/urfave/cli/v2"

	"nsresolve/internal/core/app"
	"nsresolve/internal/core/config"
	"nsresolve/internal/engine/diagnostics"
	"nsresolve/internal/mcp"
	"nsresolve/internal/shared/observability"
	"nsresolve/internal/ui/picker"
	"nsresolve/internal/ui/report"
)

// env is one command's initialized workspace.
type env struct {
	app     *app.App
	cwd     string
	cfgPath string
	out     io.Writer
	json    bool
}

// openApp loads configuration, builds the App and brings its index up to
// date with the disk.
func openApp(c *cli.Context, opts app.Options) (*env, error) {
	cwd := c.String("root")
	if cwd == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("detect working directory: %w", err)
		}
		cwd = wd
	}
	cwd, err := filepath.Abs(cwd)
	if err != nil {
		return nil, err
	}

	cfg, cfgPath, err := loadConfig(c.String("config"), cwd)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	paths, err := config.ResolvePaths(cfg, cwd)
	if err != nil {
		return nil, fmt.Errorf("resolve paths: %w", err)
	}

	if c.Bool("interactive") {
		term := picker.New(picker.Options{Output: c.App.ErrWriter})
		opts.Picker = term
		opts.Prompter = term
	}

	a, err := app.New(cfg, paths, opts)
	if err != nil {
		return nil, err
	}
	if err := a.Initialize(c.Context); err != nil {
		_ = a.Close(context.WithoutCancel(c.Context))
		return nil, err
	}
	slog.Debug("workspace ready", "root", paths.ProjectRoot, "config", cfgPath)

	return &env{
		app:     a,
		cwd:     cwd,
		cfgPath: cfgPath,
		out:     c.App.Writer,
		json:    c.Bool("json"),
	}, nil
}

func withApp(c *cli.Context, fn func(context.Context, *env) error) error {
	e, err := openApp(c, app.Options{})
	if err != nil {
		return err
	}
	runErr := fn(c.Context, e)
	return errors.Join(runErr, e.app.Close(context.WithoutCancel(c.Context)))
}

func (e *env) path(arg string) string {
	return config.ResolveRelative(e.cwd, arg)
}

// rel shortens p to a project-relative path for display.
func (e *env) rel(p string) string {
	r, err := filepath.Rel(e.app.Paths.ProjectRoot, filepath.FromSlash(p))
	if err != nil || strings.HasPrefix(r, "..") {
		return p
	}
	return filepath.ToSlash(r)
}

func requireArgs(c *cli.Context, n int) error {
	if c.Args().Len() != n {
		return usageError(fmt.Sprintf("usage: nsresolve %s %s", c.Command.Name, c.Command.ArgsUsage))
	}
	return nil
}

func indexCommand(c *cli.Context) error {
	if err := requireArgs(c, 0); err != nil {
		return err
	}
	return withApp(c, func(ctx context.Context, e *env) error {
		st := e.app.Status()
		if e.json {
			return writeJSON(e.out, st)
		}
		fmt.Fprintf(e.out, "state:      %s\n", st.State)
		fmt.Fprintf(e.out, "files:      %d\n", st.Files)
		fmt.Fprintf(e.out, "classes:    %d\n", st.Classes)
		fmt.Fprintf(e.out, "entries:    %d\n", st.Entries)
		fmt.Fprintf(e.out, "last build: %s\n", st.LastBuild.Round(time.Millisecond))
		return nil
	})
}

func resolveCommand(c *cli.Context) error {
	if err := requireArgs(c, 1); err != nil {
		return err
	}
	return withApp(c, func(ctx context.Context, e *env) error {
		candidates, err := e.app.Resolve(ctx, c.Args().First())
		if err != nil {
			return err
		}
		if e.json {
			return writeJSON(e.out, candidates)
		}
		for _, cand := range candidates {
			if cand.URI != "" {
				fmt.Fprintf(e.out, "%s\t%s\t%s\n", cand.FQCN, cand.Source, e.rel(cand.URI))
				continue
			}
			fmt.Fprintf(e.out, "%s\t%s\n", cand.FQCN, cand.Source)
		}
		return nil
	})
}

func diagnoseCommand(c *cli.Context) error {
	if c.Args().Len() == 0 {
		return usageError("usage: nsresolve diagnose <file>...")
	}
	format := c.String("format")
	if c.Bool("json") && format == "text" {
		format = "json"
	}
	switch format {
	case "text", "json", "sarif":
	default:
		return usageError(fmt.Sprintf("unknown format %q; use text, json or sarif", format))
	}
	return withApp(c, func(ctx context.Context, e *env) error {
		all := make(map[string][]diagnostics.Diagnostic)
		for _, arg := range c.Args().Slice() {
			path := e.path(arg)
			diags, err := e.app.Diagnose(ctx, path)
			if err != nil {
				return err
			}
			if diags == nil {
				diags = []diagnostics.Diagnostic{}
			}
			all[path] = diags
			if format == "text" {
				printDiagnostics(e.out, e.rel(path), diags)
			}
		}
		switch format {
		case "json":
			byName := make(map[string][]diagnostics.Diagnostic, len(all))
			for path, diags := range all {
				byName[e.rel(path)] = diags
			}
			return writeJSON(e.out, byName)
		case "sarif":
			data, err := report.GenerateSARIF(e.app.Paths.ProjectRoot, versionString, all)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(e.out, string(data))
			return err
		}
		return nil
	})
}

func importCommand(c *cli.Context) error {
	if err := requireArgs(c, 2); err != nil {
		return err
	}
	return withApp(c, func(ctx context.Context, e *env) error {
		res, err := e.app.ImportClass(ctx, app.ImportRequest{
			Path:  e.path(c.Args().Get(0)),
			Class: c.Args().Get(1),
			Alias: c.String("alias"),
			Write: c.Bool("write"),
		})
		if err != nil {
			return err
		}
		return e.printResult(res, c.Bool("write"))
	})
}

func importAllCommand(c *cli.Context) error {
	if err := requireArgs(c, 1); err != nil {
		return err
	}
	return withApp(c, func(ctx context.Context, e *env) error {
		res, err := e.app.ImportAll(ctx, e.path(c.Args().First()), c.Bool("write"))
		if err != nil {
			return err
		}
		return e.printResult(res, c.Bool("write"))
	})
}

func expandCommand(c *cli.Context) error {
	if err := requireArgs(c, 3); err != nil {
		return err
	}
	line, err := positiveInt(c.Args().Get(1), "line")
	if err != nil {
		return err
	}
	column, err := positiveInt(c.Args().Get(2), "column")
	if err != nil {
		return err
	}
	return withApp(c, func(ctx context.Context, e *env) error {
		res, err := e.app.Expand(ctx, e.path(c.Args().First()), line-1, column-1, c.Bool("write"))
		if err != nil {
			return err
		}
		return e.printResult(res, c.Bool("write"))
	})
}

func sortCommand(c *cli.Context) error {
	if err := requireArgs(c, 1); err != nil {
		return err
	}
	return withApp(c, func(ctx context.Context, e *env) error {
		res, err := e.app.Sort(ctx, e.path(c.Args().First()), c.String("mode"), c.Bool("write"))
		if err != nil {
			return err
		}
		return e.printResult(res, c.Bool("write"))
	})
}

func removeUnusedCommand(c *cli.Context) error {
	if err := requireArgs(c, 1); err != nil {
		return err
	}
	return withApp(c, func(ctx context.Context, e *env) error {
		res, err := e.app.RemoveUnused(ctx, e.path(c.Args().First()), c.Bool("write"))
		if err != nil {
			return err
		}
		return e.printResult(res, c.Bool("write"))
	})
}

func namespaceCommand(c *cli.Context) error {
	if err := requireArgs(c, 1); err != nil {
		return err
	}
	return withApp(c, func(ctx context.Context, e *env) error {
		res, err := e.app.GenerateNamespace(ctx, e.path(c.Args().First()), c.Bool("write"))
		if err != nil {
			return err
		}
		return e.printResult(res, c.Bool("write"))
	})
}

func serveCommand(c *cli.Context) error {
	if err := requireArgs(c, 0); err != nil {
		return err
	}
	return withApp(c, func(ctx context.Context, e *env) error {
		if err := e.app.StartWatcher(ctx); err != nil {
			slog.Warn("file watching unavailable; the index will not follow edits", "error", err)
		}
		server := mcp.NewServer(e.app, mcp.Options{
			Version:     versionString,
			AllowWrites: c.Bool("allow-writes"),
		})
		err := server.Run(ctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
}

// watchCommand runs watch sessions until interrupted, starting a new one
// whenever the config file changes.
func watchCommand(c *cli.Context) error {
	for {
		restart, err := watchSession(c)
		if err != nil || !restart {
			return err
		}
		slog.Info("configuration changed, restarting watch")
	}
}

func watchSession(c *cli.Context) (bool, error) {
	ctx, cancel := context.WithCancel(c.Context)
	defer cancel()

	var (
		mu sync.Mutex
		e  *env
	)
	publish := func(uri string, diags []diagnostics.Diagnostic) {
		mu.Lock()
		defer mu.Unlock()
		name := uri
		if e != nil {
			name = e.rel(uri)
		}
		if len(diags) == 0 {
			fmt.Fprintf(c.App.Writer, "%s: no issues\n", name)
			return
		}
		printDiagnostics(c.App.Writer, name, diags)
	}

	opened, err := openApp(c, app.Options{OnDiagnostics: publish})
	if err != nil {
		return false, err
	}
	mu.Lock()
	e = opened
	mu.Unlock()
	closeCtx := context.WithoutCancel(c.Context)
	defer func() {
		if err := e.app.Close(closeCtx); err != nil {
			slog.Warn("shutdown failed", "error", err)
		}
	}()

	obs := e.app.Config.Observability
	shutdownTracing, err := observability.InitTracing(ctx, obs.OTLPEndpoint)
	if err != nil {
		return false, fmt.Errorf("init tracing: %w", err)
	}
	defer func() { _ = shutdownTracing(closeCtx) }()

	if obs.MetricsAddress != "" {
		srv := NewObservabilityServer(obs.MetricsAddress, app.NewHealthService(e.app))
		if err := srv.Start(ctx); err != nil {
			return false, fmt.Errorf("start observability server: %w", err)
		}
		defer func() {
			stopCtx, stop := context.WithTimeout(closeCtx, 5*time.Second)
			defer stop()
			_ = srv.Stop(stopCtx)
		}()
	}

	reloaded := make(chan struct{}, 1)
	if e.cfgPath != "" {
		cw := config.NewWatcher(e.cfgPath, func(*config.Config) {
			select {
			case reloaded <- struct{}{}:
			default:
			}
		})
		if err := cw.Start(ctx); err != nil {
			slog.Warn("config watching unavailable", "path", e.cfgPath, "error", err)
		} else {
			defer cw.Stop()
		}
	}

	for _, arg := range c.Args().Slice() {
		if _, err := e.app.Diagnose(ctx, e.path(arg)); err != nil {
			return false, err
		}
	}
	if err := e.app.StartWatcher(ctx); err != nil {
		return false, err
	}

	select {
	case <-ctx.Done():
		return false, nil
	case <-reloaded:
		return true, nil
	}
}

func positiveInt(arg, name string) (int, error) {
	n, err := strconv.Atoi(arg)
	if err != nil || n < 1 {
		return 0, usageError(fmt.Sprintf("%s must be a positive number, got %q", name, arg))
	}
	return n, nil
}
