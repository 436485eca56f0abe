package msgcat

import (
	"os"
	"path/filepath"
	"testing"
)

func TestEmbeddedRender(t *testing.T) {
	c, err := New("")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	got, err := c.Render("errors.unknown_type", map[string]any{"type": "ping"})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if got != "Unknown message type ping." {
		t.Fatalf("unexpected text %q", got)
	}
	if _, err := c.Render("errors.unknown_type", map[string]any{}); err == nil {
		t.Fatalf("expected missing key error")
	}
	if s := c.Text("no.such.key", nil, "fallback"); s != "fallback" {
		t.Fatalf("expected fallback, got %q", s)
	}
}

func TestOverrideDir(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.yaml"), []byte("errors:\n  NOT_FOUND: \"gone\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	c, err := New(dir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if s := c.Text("errors.NOT_FOUND", nil, ""); s != "gone" {
		t.Fatalf("override not applied: %q", s)
	}

	if err := os.WriteFile(filepath.Join(dir, "b.yaml"), []byte("errors:\n  NOT_FOUND: \"twice\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := New(dir); err == nil {
		t.Fatalf("expected duplicate key error")
	}
}
