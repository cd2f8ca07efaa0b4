package resolver

import (
	"context"
	"path/filepath"
	"testing"

	domainErrors "nsresolve/internal/core/errors"
	"nsresolve/internal/data/fsys"
	"nsresolve/internal/shared/util"
)

const composerJSON = `{
  "autoload": {
    "psr-4": {
      "App\\": "app/",
      "Domain\\Billing\\": ["modules/billing/src", "modules/billing/extra"]
    },
    "psr-0": {"Legacy_": "lib/"}
  },
  "autoload-dev": {
    "psr-4": {"Tests\\": "tests/"}
  }
}`

func TestParseComposer(t *testing.T) {
	autoload, err := ParseComposer([]byte(composerJSON))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(autoload.PSR4) != 3 || len(autoload.PSR0) != 1 {
		t.Fatalf("unexpected mappings %#v", autoload)
	}
	if autoload.PSR4[1].Namespace != `Domain\Billing\` || len(autoload.PSR4[1].Paths) != 2 {
		t.Fatalf("array paths must be kept, got %#v", autoload.PSR4[1])
	}
	if _, err := ParseComposer([]byte("{")); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestGenerateNamespace(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"composer.json":                           composerJSON,
		"app/Http/Controllers/HomeController.php": "",
		"app/Kernel.php":                          "",
		"modules/billing/extra/Tax/Rate.php":      "",
		"tests/Unit/UserTest.php":                 "",
		"lib/Legacy/Old/Thing.php":                "",
		"scripts/run.php":                         "",
	})
	o := fsys.New(fsys.Options{})
	ctx := context.Background()

	tests := []struct {
		file string
		want string
	}{
		{"app/Http/Controllers/HomeController.php", `App\Http\Controllers`},
		{"app/Kernel.php", "App"},
		{"modules/billing/extra/Tax/Rate.php", `Domain\Billing\Tax`},
		{"tests/Unit/UserTest.php", `Tests\Unit`},
		{"lib/Legacy/Old/Thing.php", `Legacy\Old`},
	}
	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			got, err := GenerateNamespace(ctx, o, util.FileID(filepath.Join(root, tt.file)), root)
			if err != nil {
				t.Fatalf("generate: %v", err)
			}
			if got != tt.want {
				t.Fatalf("expected %q, got %q", tt.want, got)
			}
		})
	}

	_, err := GenerateNamespace(ctx, o, util.FileID(filepath.Join(root, "scripts/run.php")), root)
	if !domainErrors.IsCode(err, domainErrors.CodeNotFound) {
		t.Fatalf("expected not found for unmapped dir, got %v", err)
	}

	other := t.TempDir()
	writeTree(t, other, map[string]string{"src/A.php": ""})
	_, err = GenerateNamespace(ctx, o, util.FileID(filepath.Join(other, "src/A.php")), other)
	if !domainErrors.IsCode(err, domainErrors.CodeNotFound) {
		t.Fatalf("expected not found without composer.json, got %v", err)
	}
}
