package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"nsresolve/internal/core/config"
	"nsresolve/internal/core/ports"
)

func TestStores_RoundTrip(t *testing.T) {
	tests := []struct {
		driver string
		file   string
	}{
		{driver: config.DriverJSON, file: "index.json"},
		{driver: config.DriverSQLite, file: "index.db"},
	}
	for _, tt := range tests {
		t.Run(tt.driver, func(t *testing.T) {
			ctx := context.Background()
			path := filepath.Join(t.TempDir(), "nested", tt.file)
			s, err := Open(tt.driver, path, SQLiteOptions{})
			if err != nil {
				t.Fatalf("open: %v", err)
			}
			defer s.Close()

			if _, err := s.Load(ctx); !errors.Is(err, ports.ErrBlobNotFound) {
				t.Fatalf("expected ErrBlobNotFound before first save, got %v", err)
			}
			if err := s.Save(ctx, []byte(`{"version":1,"files":{}}`)); err != nil {
				t.Fatalf("save: %v", err)
			}
			if err := s.Save(ctx, []byte(`{"version":1,"files":{"a":{}}}`)); err != nil {
				t.Fatalf("second save: %v", err)
			}
			got, err := s.Load(ctx)
			if err != nil {
				t.Fatalf("load: %v", err)
			}
			if string(got) != `{"version":1,"files":{"a":{}}}` {
				t.Fatalf("last write must win, got %s", got)
			}
		})
	}
}

func TestOpen_Errors(t *testing.T) {
	if _, err := Open("bolt", "x", SQLiteOptions{}); err == nil {
		t.Fatal("expected unsupported driver error")
	}
	if _, err := NewFileStore("  "); err == nil {
		t.Fatal("expected empty path error")
	}
	dir := t.TempDir()
	if _, err := OpenSQLite(dir, SQLiteOptions{}); err == nil {
		t.Fatal("expected directory path error")
	}
}

func TestFileStore_CancelledContext(t *testing.T) {
	s, err := NewFileStore(filepath.Join(t.TempDir(), "index.json"))
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.Save(ctx, []byte("x")); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context error, got %v", err)
	}
	if _, err := os.Stat(s.Path()); !os.IsNotExist(err) {
		t.Fatalf("nothing may be written after cancellation, stat err %v", err)
	}
}
