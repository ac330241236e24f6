package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFixtures(t *testing.T) (page, list string) {
	t.Helper()
	dir := t.TempDir()
	page = filepath.Join(dir, "page.html")
	list = filepath.Join(dir, "highlights.json")
	if err := os.WriteFile(page, []byte(`<html><head></head><body><p>Hello brave new world</p></body></html>`), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(list, []byte(`[
		{"id": "hl_1", "color": "yellow", "text": ["brave"],
		 "from": {"path": [1, 0, 0], "offset": 6}, "to": {"path": [1, 0, 0], "offset": 11}}
	]`), 0o644); err != nil {
		t.Fatal(err)
	}
	return page, list
}

func TestRenderFile(t *testing.T) {
	page, list := writeFixtures(t)
	var b strings.Builder
	if err := renderFile(&b, page, list); err != nil {
		t.Fatalf("renderFile: %v", err)
	}
	out := b.String()
	if !strings.Contains(out, `data-mhl-id="hl_1"`) || !strings.Contains(out, "mhl-yellow") {
		t.Errorf("output:\n%s", out)
	}
}

func TestExportFile(t *testing.T) {
	page, list := writeFixtures(t)
	var b strings.Builder
	if err := exportFile(&b, page, list); err != nil {
		t.Fatalf("exportFile: %v", err)
	}
	out := b.String()
	if !strings.Contains(out, "Hello ==brave== new world") {
		t.Errorf("markdown:\n%s", out)
	}
	if !strings.Contains(out, `- (yellow) "brave"`) {
		t.Errorf("quotes:\n%s", out)
	}
}

func TestRenderFile_Missing(t *testing.T) {
	if err := renderFile(&strings.Builder{}, filepath.Join(t.TempDir(), "nope.html"), ""); err == nil {
		t.Error("missing page: want error")
	}
}

func TestResolveConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mhl.yaml")
	os.WriteFile(path, []byte("addr: \":9000\"\nlayout: flow\nflow:\n  columns: 72\n"), 0o644)

	cfg, err := resolveConfig(path, "", "x.db")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Addr != ":9000" || cfg.DBPath != "x.db" || cfg.Flow.Columns != 72 {
		t.Errorf("config: %+v", cfg)
	}
}
