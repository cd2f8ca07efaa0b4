package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nsresolve/internal/core/app"
	"nsresolve/internal/core/config"
)

const controller = "<?php\n\nnamespace App\\Http;\n\nclass Controller\n{\n    public function send()\n    {\n        return new Mailer();\n    }\n}\n"

func writeProject(t *testing.T) string {
	t.Helper()
	root, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	files := map[string]string{
		"composer.json":           `{"autoload":{"psr-4":{"App\\":"src/"}}}`,
		"src/Models/User.php":     "<?php\n\nnamespace App\\Models;\n\nclass User\n{\n}\n",
		"src/Admin/User.php":      "<?php\n\nnamespace App\\Admin;\n\nclass User\n{\n}\n",
		"src/Mail/Mailer.php":     "<?php\n\nnamespace App\\Mail;\n\nclass Mailer\n{\n}\n",
		"src/Http/Controller.php": controller,
	}
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return root
}

func runCLI(t *testing.T, root string, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	argv := append([]string{"nsresolve", "--root", root}, args...)
	code := run(context.Background(), argv, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestRun_Resolve(t *testing.T) {
	root := writeProject(t)

	code, out, _ := runCLI(t, root, "resolve", "Mailer")
	assert.Equal(t, 0, code)
	assert.Equal(t, "App\\Mail\\Mailer\tproject\tsrc/Mail/Mailer.php\n", out)

	code, _, errOut := runCLI(t, root, "resolve", "Mailr")
	assert.Equal(t, 3, code)
	assert.Contains(t, errOut, "error: no namespace found for Mailr")
	assert.Contains(t, errOut, "did you mean: Mailer")

	code, _, errOut = runCLI(t, root, "resolve")
	assert.Equal(t, 2, code)
	assert.Contains(t, errOut, "usage: nsresolve resolve <class>")
}

func TestRun_Diagnose(t *testing.T) {
	root := writeProject(t)

	code, out, _ := runCLI(t, root, "diagnose", "src/Http/Controller.php")
	assert.Equal(t, 0, code)
	assert.Equal(t, "src/Http/Controller.php:9:20: not-imported: Class 'Mailer' is not imported.\n", out)

	code, out, _ = runCLI(t, root, "--json", "diagnose", "src/Http/Controller.php")
	require.Equal(t, 0, code)
	var got map[string][]map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.Len(t, got["src/Http/Controller.php"], 1)
	assert.Equal(t, "Mailer", got["src/Http/Controller.php"][0]["className"])

	code, out, _ = runCLI(t, root, "diagnose", "--format", "sarif", "src/Http/Controller.php")
	require.Equal(t, 0, code)
	assert.Contains(t, out, `"ruleId": "NSR001"`)
	assert.Contains(t, out, `"uri": "src/Http/Controller.php"`)

	code, _, _ = runCLI(t, root, "diagnose", "--format", "xml", "src/Http/Controller.php")
	assert.Equal(t, 2, code)
}

func TestRun_Import(t *testing.T) {
	root := writeProject(t)
	path := filepath.Join(root, "src/Http/Controller.php")

	code, out, _ := runCLI(t, root, "import", "src/Http/Controller.php", "Mailer")
	assert.Equal(t, 0, code)
	assert.Contains(t, out, "namespace App\\Http;\n\nuse App\\Mail\\Mailer;\n")
	assert.Equal(t, controller, readFile(t, path), "file must not change without --write")

	code, out, _ = runCLI(t, root, "import", "--write", "src/Http/Controller.php", "Mailer")
	assert.Equal(t, 0, code)
	assert.Equal(t, "src/Http/Controller.php: updated\n", out)
	assert.Contains(t, readFile(t, path), "use App\\Mail\\Mailer;")

	// Two candidates and no terminal to ask.
	code, _, errOut := runCLI(t, root, "import", "src/Http/Controller.php", "User")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "error:")
}

func TestRun_ExpandRejectsBadPosition(t *testing.T) {
	root := writeProject(t)

	code, _, errOut := runCLI(t, root, "expand", "src/Http/Controller.php", "0", "3")
	assert.Equal(t, 2, code)
	assert.Contains(t, errOut, "line must be a positive number")
}

func TestRun_Namespace(t *testing.T) {
	root := writeProject(t)
	path := filepath.Join(root, "src/Services/Billing.php")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("<?php\n\nclass Billing\n{\n}\n"), 0o644))

	code, out, _ := runCLI(t, root, "--json", "namespace", "src/Services/Billing.php")
	require.Equal(t, 0, code)
	var res app.Result
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, `App\Services`, res.FQCN)
	assert.False(t, res.Written)
}

func TestLoadConfig(t *testing.T) {
	root := writeProject(t)

	cfg, path, err := loadConfig("", root)
	require.NoError(t, err)
	assert.Empty(t, path)
	assert.Equal(t, config.SortLength, cfg.Imports.SortMode)

	cfgPath := filepath.Join(root, "nsresolve.toml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("version = 1\n\n[imports]\nsort_mode = \"alphabetical\"\n"), 0o644))
	cfg, path, err = loadConfig("", filepath.Join(root, "src"))
	require.NoError(t, err)
	assert.Equal(t, cfgPath, path)
	assert.Equal(t, config.SortAlphabetical, cfg.Imports.SortMode)

	_, _, err = loadConfig("missing.toml", root)
	assert.Error(t, err)
}

func TestResolveLogPath(t *testing.T) {
	t.Setenv("XDG_STATE_HOME", "/tmp/state")
	assert.Equal(t, filepath.Join("/tmp/state", "nsresolve", "nsresolve.log"), resolveLogPath())
}

func TestObservabilityServer(t *testing.T) {
	root := writeProject(t)
	a, err := app.New(config.DefaultConfig(), config.ResolvedPaths{
		ProjectRoot: root,
		IndexPath:   filepath.Join(root, ".nsresolve", "index.json"),
	}, app.Options{})
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, a.Initialize(ctx))
	defer func() { assert.NoError(t, a.Close(ctx)) }()

	srv := NewObservabilityServer("127.0.0.1:0", app.NewHealthService(a))
	require.NoError(t, srv.Start(ctx))
	defer func() { assert.NoError(t, srv.Stop(ctx)) }()

	resp, err := http.Get("http://" + srv.Addr() + "/health")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, resp.Body.Close())
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var status app.HealthStatus
	require.NoError(t, json.Unmarshal(body, &status))
	assert.Equal(t, "up", status.Status)

	resp, err = http.Get("http://" + srv.Addr() + "/metrics")
	require.NoError(t, err)
	body, err = io.ReadAll(resp.Body)
	require.NoError(t, resp.Body.Close())
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), "nsresolve_index_files_total"))
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}
