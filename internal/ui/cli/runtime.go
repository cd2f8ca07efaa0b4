package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"nsresolve/internal/core/config"
	domainErrors "nsresolve/internal/core/errors"
)

const versionString = "0.4.0"

// Run executes the command line and returns the process exit code.
func Run(args []string) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return run(ctx, args, os.Stdout, os.Stderr)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	err := newApp(stdout, stderr).RunContext(ctx, args)
	if err == nil {
		return 0
	}
	if errors.Is(err, context.Canceled) {
		return 130
	}
	fmt.Fprintln(stderr, formatError(err))
	return exitCode(err)
}

// exitCode maps failures to exit statuses: 2 for bad input, 3 for
// lookups that found nothing, 1 for everything else.
func exitCode(err error) int {
	switch {
	case domainErrors.IsCode(err, domainErrors.CodeValidationError):
		return 2
	case domainErrors.IsCode(err, domainErrors.CodeNotFound):
		return 3
	case errors.As(err, new(usageError)):
		return 2
	default:
		return 1
	}
}

func formatError(err error) string {
	var de *domainErrors.DomainError
	if !errors.As(err, &de) {
		return "error: " + err.Error()
	}
	msg := "error: " + de.Message
	if s, ok := de.Context["suggestions"].(string); ok && s != "" {
		msg += "\ndid you mean: " + s
	}
	return msg
}

type usageError string

func (e usageError) Error() string { return string(e) }

// configureLogging installs the default slog logger. Logs go to stderr
// unless toFile is set, in which case they are appended to the state log so
// they do not interfere with a terminal UI or the stdio protocol.
func configureLogging(stderr io.Writer, toFile, verbose bool) func() {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}

	output := stderr
	closeFn := func() {}
	if toFile {
		logPath := resolveLogPath()
		if err := os.MkdirAll(filepath.Dir(logPath), 0o700); err != nil {
			fmt.Fprintf(stderr, "warning: failed to create log dir for %s: %v\n", logPath, err)
		} else if fi, err := os.Lstat(logPath); err == nil && (fi.Mode()&os.ModeSymlink) != 0 {
			fmt.Fprintf(stderr, "warning: refusing to write logs to symlink path %s\n", logPath)
		} else {
			f, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
			if err == nil {
				output = f
				closeFn = func() { _ = f.Close() }
			} else {
				fmt.Fprintf(stderr, "warning: failed to open log file %s: %v\n", logPath, err)
			}
		}
	}

	logger := slog.New(slog.NewTextHandler(output, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)
	return closeFn
}

func resolveLogPath() string {
	if xdg := os.Getenv("XDG_STATE_HOME"); xdg != "" {
		return filepath.Join(xdg, "nsresolve", "nsresolve.log")
	}

	home, err := os.UserHomeDir()
	if err == nil && home != "" {
		return filepath.Join(home, ".local", "state", "nsresolve", "nsresolve.log")
	}

	return "nsresolve.log"
}

// loadConfig loads path when given. Otherwise it looks for a config file in
// the project root above cwd and falls back to defaults. The returned path
// is empty when no file was used.
func loadConfig(path, cwd string) (*config.Config, string, error) {
	if strings.TrimSpace(path) != "" {
		path = config.ResolveRelative(cwd, path)
		cfg, err := config.Load(path)
		if err != nil {
			return nil, "", err
		}
		return cfg, path, nil
	}

	root, err := config.DetectProjectRoot([]string{cwd})
	if err != nil {
		return nil, "", err
	}
	candidate := config.FindConfigFile(root)
	cfg, err := config.LoadOrDefault(candidate)
	if err != nil {
		return nil, "", err
	}
	return cfg, candidate, nil
}
