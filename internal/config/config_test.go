package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestGetDataDirWithExplicitEnv(t *testing.T) {
	tmpDir := t.TempDir()
	customDir := filepath.Join(tmpDir, "custom")

	t.Setenv("DOCFILER_DIR", customDir)
	t.Setenv("XDG_DATA_HOME", "")

	got := GetDataDir()
	if got != customDir {
		t.Fatalf("expected %q, got %q", customDir, got)
	}
}

func TestGetDataDirFallsBackToXDG(t *testing.T) {
	tmpDir := t.TempDir()
	xdgDir := filepath.Join(tmpDir, "xdg")

	t.Setenv("DOCFILER_DIR", "")
	t.Setenv("XDG_DATA_HOME", xdgDir)

	got := GetDataDir()
	want := filepath.Join(xdgDir, "docfiler")
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestGetDBAndObjectsPath(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("DOCFILER_DIR", tmpDir)

	if got, want := GetDBPath(), filepath.Join(tmpDir, "index.db"); got != want {
		t.Fatalf("GetDBPath expected %q, got %q", want, got)
	}

	if got, want := GetObjectsDir(), filepath.Join(tmpDir, "objects"); got != want {
		t.Fatalf("GetObjectsDir expected %q, got %q", want, got)
	}
}

func TestGetConfigPathPrefersEnv(t *testing.T) {
	custom := filepath.Join(t.TempDir(), "custom.hcl")
	t.Setenv("DOCFILER_CONFIG", custom)

	if got := GetConfigPath(); got != custom {
		t.Fatalf("expected %q, got %q", custom, got)
	}
}

func TestLoadWithoutFileUsesDefaults(t *testing.T) {
	t.Setenv("DOCFILER_TOKEN", "")
	t.Setenv("DOCFILER_STORE", "")
	t.Setenv("DOCFILER_SITE_HOST", "")
	t.Setenv("DOCFILER_SITE_PATH", "")

	settings, err := Load(filepath.Join(t.TempDir(), "missing.hcl"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if settings.Store != StoreSQLite {
		t.Fatalf("expected sqlite store, got %q", settings.Store)
	}
	if settings.Cache.StaleThreshold != 6*time.Hour {
		t.Fatalf("expected 6h stale threshold, got %s", settings.Cache.StaleThreshold)
	}
	if settings.Lists["clientes"] != DefaultLists["clientes"] {
		t.Fatalf("expected default clientes list id, got %q", settings.Lists["clientes"])
	}
	if settings.Lists["CARPETA6"] != "" {
		t.Fatalf("expected CARPETA6 to be unprovisioned, got %q", settings.Lists["CARPETA6"])
	}
}

func TestLoadParsesHCLFile(t *testing.T) {
	t.Setenv("DOCFILER_TOKEN", "")
	t.Setenv("DOCFILER_STORE", "")
	t.Setenv("DOCFILER_SITE_HOST", "")
	t.Setenv("DOCFILER_SITE_PATH", "")

	path := filepath.Join(t.TempDir(), "config.hcl")
	content := `
site {
  host = "contoso.sharepoint.com"
  path = "/sites/Docs"
}

store {
  backend = "file"
}

cache {
  stale_threshold = "2h"
  expansion_batch = 4
}

lists = {
  CARPETA6 = "list-6"
}
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	settings, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if settings.Site.Host != "contoso.sharepoint.com" || settings.Site.Path != "/sites/Docs" {
		t.Fatalf("unexpected site: %+v", settings.Site)
	}
	if settings.Store != StoreFile {
		t.Fatalf("expected file store, got %q", settings.Store)
	}
	if settings.Cache.StaleThreshold != 2*time.Hour {
		t.Fatalf("expected 2h stale threshold, got %s", settings.Cache.StaleThreshold)
	}
	if settings.Cache.ExpansionBatch != 4 {
		t.Fatalf("expected batch 4, got %d", settings.Cache.ExpansionBatch)
	}
	if settings.Cache.ExpansionPause != 100*time.Millisecond {
		t.Fatalf("expected default pause to survive, got %s", settings.Cache.ExpansionPause)
	}
	if settings.Lists["CARPETA6"] != "list-6" {
		t.Fatalf("expected CARPETA6 override, got %q", settings.Lists["CARPETA6"])
	}
	if settings.Lists["clientes"] != DefaultLists["clientes"] {
		t.Fatalf("expected untouched lists to keep defaults")
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.hcl")
	if err := os.WriteFile(path, []byte("store {\n  backend = \"file\"\n}\n"), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	t.Setenv("DOCFILER_STORE", "memory")
	t.Setenv("DOCFILER_TOKEN", "secret")
	t.Setenv("DOCFILER_SITE_HOST", "env.sharepoint.com")
	t.Setenv("DOCFILER_SITE_PATH", "")

	settings, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if settings.Store != StoreMemory {
		t.Fatalf("expected memory store, got %q", settings.Store)
	}
	if settings.Token != "secret" {
		t.Fatalf("expected token from env")
	}
	if settings.Site.Host != "env.sharepoint.com" {
		t.Fatalf("expected host from env, got %q", settings.Site.Host)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("DOCFILER_STORE", "")
	t.Setenv("DOCFILER_SITE_HOST", "")

	path := filepath.Join(t.TempDir(), "config.hcl")
	if err := os.WriteFile(path, []byte("cache {\n  stale_threshold = \"soon\"\n}\n"), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected error for invalid duration")
	}

	t.Setenv("DOCFILER_STORE", "redis")
	if _, err := Load(filepath.Join(t.TempDir(), "missing.hcl")); err == nil {
		t.Fatalf("expected error for unknown store backend")
	}
}
