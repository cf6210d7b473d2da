package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestParseAssignments(t *testing.T) {
	got, err := parseAssignments([]string{"Cliente=ACME", " Asunto =a=b", "S_Tipo="})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got["Cliente"] != "ACME" || got["Asunto"] != "a=b" || got["S_Tipo"] != "" {
		t.Fatalf("unexpected assignments: %v", got)
	}

	for _, bad := range []string{"Cliente", "=value"} {
		if _, err := parseAssignments([]string{bad}); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}

func TestComposeCommand(t *testing.T) {
	var out bytes.Buffer
	cmd := newComposeCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"DOCUMENTOS_CLIENTES_V2", "--set", "Cliente=ACME", "--set", "tipo_doc=T1", "--format", "json"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("compose: %v", err)
	}

	var metadata map[string]string
	if err := json.Unmarshal(out.Bytes(), &metadata); err != nil {
		t.Fatalf("invalid json output: %v", err)
	}
	if metadata["Cliente"] != "ACME" || metadata["Tipo_Doc"] != "T1" || metadata["Asunto"] != "SIN CLASIFICAR" {
		t.Fatalf("unexpected metadata: %v", metadata)
	}
}

func TestComposeCommandRejectsUnknownField(t *testing.T) {
	cmd := newComposeCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"DOCUMENTOS_INTERNO", "--set", "Color=rojo"})
	if err := cmd.Execute(); err == nil || !strings.Contains(err.Error(), "Color") {
		t.Fatalf("expected unknown field error, got %v", err)
	}
}

func TestLibrariesCommand(t *testing.T) {
	var out bytes.Buffer
	cmd := newLibrariesCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--format", "json"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("libraries: %v", err)
	}

	var entries []libraryOutputEntry
	if err := json.Unmarshal(out.Bytes(), &entries); err != nil {
		t.Fatalf("invalid json output: %v", err)
	}
	if len(entries) != 7 {
		t.Fatalf("expected 7 libraries, got %d", len(entries))
	}
	if got := strings.Join(entries[0].Chains[0], ">"); got != "Cliente>Asunto>S_Asunto" {
		t.Fatalf("unexpected first chain: %s", got)
	}
}
