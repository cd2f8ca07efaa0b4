package resolver

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"sort"
	"strings"

	domainErrors "nsresolve/internal/core/errors"
	"nsresolve/internal/core/ports"
	"nsresolve/internal/shared/util"
)

const composerJSONName = "composer.json"

// PsrMapping maps a namespace prefix to the directories holding it.
type PsrMapping struct {
	Namespace string
	Paths     []string
}

type ComposerAutoload struct {
	PSR4 []PsrMapping
	PSR0 []PsrMapping
}

type composerManifest struct {
	Autoload    composerSection `json:"autoload"`
	AutoloadDev composerSection `json:"autoload-dev"`
}

type composerSection struct {
	PSR4 map[string]any `json:"psr-4"`
	PSR0 map[string]any `json:"psr-0"`
}

// ParseComposer reads the PSR-4 and PSR-0 mappings of a composer.json,
// autoload-dev included.
func ParseComposer(data []byte) (ComposerAutoload, error) {
	var manifest composerManifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return ComposerAutoload{}, fmt.Errorf("parse %s: %w", composerJSONName, err)
	}
	return ComposerAutoload{
		PSR4: append(mappings(manifest.Autoload.PSR4), mappings(manifest.AutoloadDev.PSR4)...),
		PSR0: append(mappings(manifest.Autoload.PSR0), mappings(manifest.AutoloadDev.PSR0)...),
	}, nil
}

func mappings(section map[string]any) []PsrMapping {
	out := make([]PsrMapping, 0, len(section))
	for _, ns := range util.SortedStringKeys(section) {
		m := PsrMapping{Namespace: ns}
		switch v := section[ns].(type) {
		case string:
			m.Paths = []string{v}
		case []any:
			for _, p := range v {
				if s, ok := p.(string); ok {
					m.Paths = append(m.Paths, s)
				}
			}
		}
		out = append(out, m)
	}
	return out
}

// FindComposer walks up from the directory of fileID until it finds a
// composer.json, stopping at stopDir.
func FindComposer(ctx context.Context, fsys ports.FileSystem, fileID, stopDir string) (string, bool) {
	dir := path.Dir(util.FileID(fileID))
	stop := util.FileID(stopDir)
	for {
		candidate := path.Join(dir, composerJSONName)
		if _, err := fsys.Stat(ctx, candidate); err == nil {
			return candidate, true
		}
		if dir == stop || !util.HasPathPrefix(dir, stop) {
			return "", false
		}
		parent := path.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}

// GenerateNamespace derives the namespace fileID should declare from the
// nearest composer.json autoload mappings.
func GenerateNamespace(ctx context.Context, fsys ports.FileSystem, fileID, workspaceRoot string) (string, error) {
	composerPath, ok := FindComposer(ctx, fsys, fileID, workspaceRoot)
	if !ok {
		return "", domainErrors.New(domainErrors.CodeNotFound, "no composer.json found")
	}
	data, err := fsys.ReadFile(ctx, composerPath)
	if err != nil {
		return "", domainErrors.Wrap(err, domainErrors.CodeInternal, "read composer.json")
	}
	autoload, err := ParseComposer(data)
	if err != nil {
		return "", domainErrors.Wrap(err, domainErrors.CodeValidationError, "invalid composer.json")
	}

	relDir := strings.TrimPrefix(path.Dir(util.FileID(fileID)), path.Dir(composerPath))
	relDir = strings.Trim(relDir, "/")

	ns, ok := matchMappings(autoload, relDir)
	if !ok {
		return "", domainErrors.Newf(domainErrors.CodeNotFound, "no autoload mapping covers %q", relDir)
	}
	return ns, nil
}

type mappingHit struct {
	prefix string
	rest   string
	ns     string
	psr4   bool
}

func matchMappings(autoload ComposerAutoload, relDir string) (string, bool) {
	var hits []mappingHit
	collect := func(list []PsrMapping, psr4 bool) {
		for _, m := range list {
			for _, p := range m.Paths {
				prefix := util.NormalizePatternPath(p)
				if !util.HasPathPrefix(relDir, prefix) && prefix != "" {
					continue
				}
				rest := strings.Trim(strings.TrimPrefix(relDir, prefix), "/")
				hits = append(hits, mappingHit{prefix: prefix, rest: rest, ns: m.Namespace, psr4: psr4})
			}
		}
	}
	collect(autoload.PSR4, true)
	collect(autoload.PSR0, false)
	if len(hits) == 0 {
		return "", false
	}
	sort.SliceStable(hits, func(i, j int) bool {
		return len(hits[i].prefix) > len(hits[j].prefix)
	})

	best := hits[0]
	var segments []string
	if best.psr4 {
		if ns := strings.Trim(best.ns, `\`); ns != "" {
			segments = append(segments, ns)
		}
	}
	if best.rest != "" {
		segments = append(segments, strings.Split(best.rest, "/")...)
	}
	return strings.Join(segments, `\`), true
}
