package app

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nsresolve/internal/core/config"
	domainErrors "nsresolve/internal/core/errors"
	"nsresolve/internal/core/watcher"
	"nsresolve/internal/engine/diagnostics"
	"nsresolve/internal/engine/resolver"
)

const homeController = `<?php

namespace App\Http;

class HomeController
{
    public function index()
    {
        $mailer = new Mailer();
        return User::find(1);
    }
}
`

type fakePicker struct {
	choice  string
	ok      bool
	calls   int
	options []string
}

func (p *fakePicker) Pick(_ context.Context, _ string, options []string) (string, bool, error) {
	p.calls++
	p.options = options
	return p.choice, p.ok, nil
}

type fakePrompter struct {
	value string
	ok    bool
	calls int
}

func (p *fakePrompter) Prompt(context.Context, string, string) (string, bool, error) {
	p.calls++
	return p.value, p.ok, nil
}

func writeWorkspace(t *testing.T, files map[string]string) string {
	t.Helper()
	root, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return root
}

func baseWorkspace() map[string]string {
	return map[string]string{
		"composer.json":               `{"autoload":{"psr-4":{"App\\":"src/"}}}`,
		"src/Models/User.php":         "<?php\n\nnamespace App\\Models;\n\nclass User\n{\n}\n",
		"src/Admin/User.php":          "<?php\n\nnamespace App\\Admin;\n\nclass User\n{\n}\n",
		"src/Mail/Mailer.php":         "<?php\n\nnamespace App\\Mail;\n\nclass Mailer\n{\n}\n",
		"src/Http/HomeController.php": homeController,
	}
}

func newTestApp(t *testing.T, root string, opts Options) *App {
	t.Helper()
	cfg := config.DefaultConfig()
	paths := config.ResolvedPaths{
		ProjectRoot: root,
		Roots:       []string{root},
		IndexPath:   filepath.Join(root, ".nsresolve", "index.json"),
	}
	a, err := New(cfg, paths, opts)
	require.NoError(t, err)
	require.NoError(t, a.Initialize(context.Background()))
	t.Cleanup(func() {
		assert.NoError(t, a.Close(context.Background()))
	})
	return a
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestApp_ResolveAndDiagnose(t *testing.T) {
	root := writeWorkspace(t, baseWorkspace())
	a := newTestApp(t, root, Options{})
	ctx := context.Background()

	got, err := a.Resolve(ctx, "Mailer")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, `App\Mail\Mailer`, got[0].FQCN)
	assert.Equal(t, resolver.SourceProject, got[0].Source)

	got, err = a.Resolve(ctx, "User")
	require.NoError(t, err)
	assert.Len(t, got, 2)

	_, err = a.Resolve(ctx, "Mailr")
	require.Error(t, err)
	assert.True(t, domainErrors.IsCode(err, domainErrors.CodeNotFound))
	assert.Contains(t, err.Error(), "Mailer")

	diags, err := a.Diagnose(ctx, filepath.Join(root, "src/Http/HomeController.php"))
	require.NoError(t, err)
	names := make(map[string]bool)
	for _, d := range diags {
		assert.Equal(t, diagnostics.KindNotImported, d.Kind)
		names[d.ClassName] = true
	}
	assert.Equal(t, map[string]bool{"Mailer": true, "User": true}, names)
}

func TestApp_ImportClass_PicksAmongCandidates(t *testing.T) {
	root := writeWorkspace(t, baseWorkspace())
	picker := &fakePicker{choice: `App\Admin\User`, ok: true}
	a := newTestApp(t, root, Options{Picker: picker})
	path := filepath.Join(root, "src/Http/HomeController.php")

	res, err := a.ImportClass(context.Background(), ImportRequest{Path: path, Class: "User", Write: true})
	require.NoError(t, err)
	assert.Equal(t, 1, picker.calls)
	assert.ElementsMatch(t, []string{`App\Admin\User`, `App\Models\User`}, picker.options)
	assert.Equal(t, `App\Admin\User`, res.FQCN)
	assert.True(t, res.Written)
	require.Len(t, res.Edits, 1)

	content := readFile(t, path)
	assert.Equal(t, res.Text, content)
	assert.Contains(t, content, "namespace App\\Http;\n\nuse App\\Admin\\User;\n")

	_, err = a.ImportClass(context.Background(), ImportRequest{Path: path, Class: `App\Admin\User`})
	assert.True(t, domainErrors.IsCode(err, domainErrors.CodeAlreadyImported))
}

func TestApp_ImportClass_Cancelled(t *testing.T) {
	root := writeWorkspace(t, baseWorkspace())
	a := newTestApp(t, root, Options{Picker: &fakePicker{ok: false}})
	path := filepath.Join(root, "src/Http/HomeController.php")

	res, err := a.ImportClass(context.Background(), ImportRequest{Path: path, Class: "User", Write: true})
	require.NoError(t, err)
	assert.True(t, res.Cancelled)
	assert.False(t, res.Written)
	assert.Equal(t, homeController, readFile(t, path))
}

func TestApp_ImportClass_AsksForAlias(t *testing.T) {
	files := baseWorkspace()
	files["src/Http/HomeController.php"] = strings.Replace(homeController,
		"namespace App\\Http;\n", "namespace App\\Http;\n\nuse App\\Models\\User;\n", 1)
	root := writeWorkspace(t, files)
	prompter := &fakePrompter{value: "AdminUser", ok: true}
	a := newTestApp(t, root, Options{Prompter: prompter})
	path := filepath.Join(root, "src/Http/HomeController.php")

	res, err := a.ImportClass(context.Background(), ImportRequest{Path: path, Class: `App\Admin\User`})
	require.NoError(t, err)
	assert.Equal(t, 1, prompter.calls)
	assert.Equal(t, "AdminUser", res.Alias)
	assert.Contains(t, res.Text, "use App\\Admin\\User as AdminUser;")
	assert.False(t, res.Written)
	assert.Equal(t, files["src/Http/HomeController.php"], readFile(t, path))

	noPrompt := newTestApp(t, root, Options{})
	_, err = noPrompt.ImportClass(context.Background(), ImportRequest{Path: path, Class: `App\Admin\User`})
	assert.True(t, domainErrors.IsCode(err, domainErrors.CodeConflict))
}

func TestApp_ImportAll(t *testing.T) {
	root := writeWorkspace(t, baseWorkspace())
	picker := &fakePicker{choice: `App\Models\User`, ok: true}
	a := newTestApp(t, root, Options{Picker: picker})
	path := filepath.Join(root, "src/Http/HomeController.php")

	res, err := a.ImportAll(context.Background(), path, true)
	require.NoError(t, err)
	assert.Equal(t, 1, picker.calls)
	assert.ElementsMatch(t, []string{`App\Mail\Mailer`, `App\Models\User`}, res.Imported)

	content := readFile(t, path)
	assert.Contains(t, content, "use App\\Mail\\Mailer;")
	assert.Contains(t, content, "use App\\Models\\User;")

	diags, err := a.Diagnose(context.Background(), path)
	require.NoError(t, err)
	assert.Empty(t, diags)
}

func TestApp_RemoveUnusedAndSort(t *testing.T) {
	files := baseWorkspace()
	files["src/Http/Mailing.php"] = "<?php\n\nnamespace App\\Http;\n\nuse App\\Models\\User;\nuse App\\Mail\\Mailer;\nuse App\\Admin\\User as Admin;\n\nclass Mailing\n{\n    public function send(Admin $to)\n    {\n        return new Mailer();\n    }\n}\n"
	root := writeWorkspace(t, files)
	a := newTestApp(t, root, Options{})
	path := filepath.Join(root, "src/Http/Mailing.php")
	ctx := context.Background()

	res, err := a.RemoveUnused(ctx, path, true)
	require.NoError(t, err)
	assert.Equal(t, []string{"User"}, res.Removed)
	assert.NotContains(t, readFile(t, path), "use App\\Models\\User;")

	res, err = a.Sort(ctx, path, config.SortAlphabetical, false)
	require.NoError(t, err)
	assert.Contains(t, res.Text, "use App\\Admin\\User as Admin;\nuse App\\Mail\\Mailer;\n")

	_, err = a.Sort(ctx, filepath.Join(root, "src/Models/User.php"), "", false)
	assert.True(t, domainErrors.IsCode(err, domainErrors.CodeNothingToSort))
}

func TestApp_GenerateNamespace(t *testing.T) {
	files := baseWorkspace()
	files["src/Services/Billing.php"] = "<?php\n\nclass Billing\n{\n}\n"
	root := writeWorkspace(t, files)
	a := newTestApp(t, root, Options{})

	res, err := a.GenerateNamespace(context.Background(), filepath.Join(root, "src/Services/Billing.php"), false)
	require.NoError(t, err)
	assert.Equal(t, `App\Services`, res.FQCN)
	assert.Contains(t, res.Text, "namespace App\\Services;")
}

func TestApp_Expand(t *testing.T) {
	root := writeWorkspace(t, baseWorkspace())
	a := newTestApp(t, root, Options{})
	path := filepath.Join(root, "src/Http/HomeController.php")

	// line 8: "        $mailer = new Mailer();"
	res, err := a.Expand(context.Background(), path, 8, 24, false)
	require.NoError(t, err)
	assert.Equal(t, `App\Mail\Mailer`, res.FQCN)
	assert.Contains(t, res.Text, `$mailer = new App\Mail\Mailer();`)
}

func TestApp_HandleChange(t *testing.T) {
	root := writeWorkspace(t, baseWorkspace())
	a := newTestApp(t, root, Options{})
	ctx := context.Background()

	job := filepath.Join(root, "src/Jobs/SendMail.php")
	require.NoError(t, os.MkdirAll(filepath.Dir(job), 0o755))
	require.NoError(t, os.WriteFile(job, []byte("<?php\n\nnamespace App\\Jobs;\n\nclass SendMail\n{\n}\n"), 0o644))
	a.HandleChange(ctx, watcher.Event{Path: job, Op: watcher.OpChanged})

	got, err := a.Resolve(ctx, "SendMail")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, `App\Jobs\SendMail`, got[0].FQCN)

	require.NoError(t, os.Remove(job))
	a.HandleChange(ctx, watcher.Event{Path: job, Op: watcher.OpDeleted})
	assert.Empty(t, a.Index.Lookup("SendMail"))
}

func TestHealthService_Check(t *testing.T) {
	root := writeWorkspace(t, baseWorkspace())
	a := newTestApp(t, root, Options{})

	status := NewHealthService(a).Check(context.Background())
	assert.Equal(t, "up", status.Status)
	assert.Equal(t, "ok (4 files, 3 classes)", status.Components["index"])
	assert.Equal(t, "ok", status.Components["store"])
	assert.Equal(t, "stopped", status.Components["watcher"])
}

func TestDocumentStore_Versions(t *testing.T) {
	root := writeWorkspace(t, map[string]string{"a.php": "<?php\n"})
	a := newTestApp(t, root, Options{})
	path := filepath.Join(root, "a.php")
	ctx := context.Background()

	first, err := a.Docs.Open(ctx, path)
	require.NoError(t, err)
	again, err := a.Docs.Open(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, first.Version(), again.Version())

	changed := a.Docs.Update(path, "<?php\n\nclass A {}\n")
	assert.Equal(t, first.Version()+1, changed.Version())
	assert.Equal(t, 4, changed.LineCount())
	assert.Equal(t, "class A {}", changed.LineAt(2))
	assert.Equal(t, "", changed.LineAt(10))

	a.Docs.Forget(path)
	_, ok := a.Docs.Get(path)
	assert.False(t, ok)
	reopened, err := a.Docs.Open(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, changed.Version()+1, reopened.Version())

	written, err := a.Docs.Write(ctx, path, "<?php\n// saved\n")
	require.NoError(t, err)
	assert.Equal(t, reopened.Version()+1, written.Version())
	assert.Equal(t, "<?php\n// saved\n", readFile(t, path))
}
