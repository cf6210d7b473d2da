package main

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"

	"github.com/docfiler/docfiler/internal/cache"
	"github.com/docfiler/docfiler/internal/database"
)

func TestStoredValuesCountsSQLiteRows(t *testing.T) {
	t.Setenv("DOCFILER_DIR", t.TempDir())
	dbCtx, err := database.CreateDatabase("")
	if err != nil {
		t.Fatalf("CreateDatabase returned error: %v", err)
	}
	t.Cleanup(func() { _ = database.CloseDatabase(dbCtx) })

	if err := database.NewStore(dbCtx).Write(cache.StorageKey, `{}`); err != nil {
		t.Fatalf("Write returned error: %v", err)
	}

	e := &env{dbCtx: dbCtx}
	n, err := e.storedValues(context.Background())
	if err != nil {
		t.Fatalf("storedValues returned error: %v", err)
	}
	if n == nil || *n != 1 {
		t.Fatalf("expected one stored value, got %v", n)
	}

	n, err = (&env{}).storedValues(context.Background())
	if err != nil || n != nil {
		t.Fatalf("expected no count without sqlite, got %v err=%v", n, err)
	}
}

func TestWriteCacheInfo(t *testing.T) {
	stored := int64(1)
	output := newCacheInfoOutput(&cache.Metadata{
		LastUpdated: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
		Version:     cache.Version,
		RecordCount: 3,
	})
	output.StoredValues = &stored

	var out bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&out)
	if err := writeCacheInfo(cmd, output, "table"); err != nil {
		t.Fatalf("writeCacheInfo: %v", err)
	}
	for _, want := range []string{"Version:      1.0.4", "Records:      3", "Stored:       1 values"} {
		if !strings.Contains(out.String(), want) {
			t.Fatalf("expected %q in output:\n%s", want, out.String())
		}
	}

	out.Reset()
	if err := writeCacheInfo(cmd, newCacheInfoOutput(nil), "json"); err != nil {
		t.Fatalf("writeCacheInfo json: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(out.Bytes(), &decoded); err != nil {
		t.Fatalf("invalid json output: %v", err)
	}
	if decoded["present"] != false {
		t.Fatalf("expected absent cache, got %v", decoded)
	}
	if _, ok := decoded["storedValues"]; ok {
		t.Fatalf("storedValues must be omitted when unknown: %v", decoded)
	}
}
