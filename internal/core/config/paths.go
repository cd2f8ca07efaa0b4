package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

type ResolvedPaths struct {
	ProjectRoot string
	Roots       []string
	IndexPath   string
}

// ResolvePaths makes workspace roots and the index path absolute. Relative
// values are taken from the project root, found by walking up from cwd.
func ResolvePaths(cfg *Config, cwd string) (ResolvedPaths, error) {
	if strings.TrimSpace(cwd) == "" {
		return ResolvedPaths{}, fmt.Errorf("cwd must not be empty")
	}

	projectRoot, err := DetectProjectRoot([]string{cwd})
	if err != nil {
		return ResolvedPaths{}, err
	}

	roots := make([]string, 0, len(cfg.Workspace.Roots))
	for _, root := range cfg.Workspace.Roots {
		roots = append(roots, ResolveRelative(projectRoot, root))
	}

	return ResolvedPaths{
		ProjectRoot: filepath.Clean(projectRoot),
		Roots:       roots,
		IndexPath:   ResolveRelative(projectRoot, cfg.Index.Path),
	}, nil
}

func ResolveRelative(base, value string) string {
	raw := strings.TrimSpace(value)
	if raw == "" {
		return filepath.Clean(base)
	}
	if filepath.IsAbs(raw) {
		return filepath.Clean(raw)
	}
	return filepath.Clean(filepath.Join(base, raw))
}

// DetectProjectRoot walks up from each candidate looking for a project
// marker and falls back to the first candidate itself.
func DetectProjectRoot(candidates []string) (string, error) {
	markers := []string{
		"composer.json",
		"nsresolve.toml",
		"nsresolve.yaml",
		".git",
	}

	for _, candidate := range candidates {
		if strings.TrimSpace(candidate) == "" {
			continue
		}

		abs, err := filepath.Abs(candidate)
		if err != nil {
			continue
		}
		root := abs
		if info, err := os.Stat(abs); err == nil && !info.IsDir() {
			root = filepath.Dir(abs)
		}

		for {
			for _, marker := range markers {
				if _, err := os.Stat(filepath.Join(root, marker)); err == nil {
					return filepath.Clean(root), nil
				}
			}
			parent := filepath.Dir(root)
			if parent == root {
				break
			}
			root = parent
		}
	}

	for _, candidate := range candidates {
		if abs, err := filepath.Abs(candidate); err == nil && strings.TrimSpace(candidate) != "" {
			return filepath.Clean(abs), nil
		}
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return filepath.Clean(cwd), nil
}

// FindConfigFile returns the first nsresolve config file in dir, or "".
func FindConfigFile(dir string) string {
	for _, name := range []string{"nsresolve.toml", "nsresolve.yaml", "nsresolve.yml"} {
		candidate := filepath.Join(dir, name)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return ""
}
