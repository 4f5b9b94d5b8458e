package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "storemy.hcl")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestLoad_OverridesApplyOverDefaults(t *testing.T) {
	path := writeConfig(t, `
data_dir = "/var/lib/storemy"
buffer_pool_size = 128
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DataDir != "/var/lib/storemy" {
		t.Errorf("DataDir = %q, want override", cfg.DataDir)
	}
	if cfg.BufferPoolSize != 128 {
		t.Errorf("BufferPoolSize = %d, want 128", cfg.BufferPoolSize)
	}
	if cfg.LogFile != Default().LogFile {
		t.Errorf("LogFile = %q, want default preserved", cfg.LogFile)
	}
}

func TestLoad_MismatchedPageSizeFails(t *testing.T) {
	path := writeConfig(t, `page_size = 8192`)
	if _, err := Load(path); err == nil {
		t.Fatalf("expected an error for a page_size that does not match the compiled constant")
	}
}

func TestLoad_MissingFileFails(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.hcl")); err == nil {
		t.Fatalf("expected an error reading a missing config file")
	}
}
