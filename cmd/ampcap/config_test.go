package main

import (
	"os"
	"path/filepath"
	"testing"

	"ampcap/internal/capture"
)

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, configName)
	content := `
[capture]
space = 7
dispatch = [4, 2, 1]

[output]
dir = "captures"

[trace]
level = "phase"
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := loadConfig(path)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Capture.Space != 7 || cfg.dispatch() != (capture.Dispatch{4, 2, 1}) {
		t.Fatalf("capture = %+v", cfg.Capture)
	}
	if cfg.Output.Dir != filepath.Join(dir, "captures") {
		t.Fatalf("output dir = %q", cfg.Output.Dir)
	}
	if cfg.Trace.Level != "phase" {
		t.Fatalf("trace level = %q", cfg.Trace.Level)
	}
}

func TestLoadConfigRejects(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"short dispatch", "[capture]\ndispatch = [1, 2]\n"},
		{"unknown key", "[capture]\nregister = 3\n"},
		{"bad toml", "[capture\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), configName)
			if err := os.WriteFile(path, []byte(tt.content), 0o600); err != nil {
				t.Fatal(err)
			}
			if _, err := loadConfig(path); err == nil {
				t.Fatal("loadConfig accepted an invalid file")
			}
		})
	}
}

func TestFindConfigWalksUp(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0o750); err != nil {
		t.Fatal(err)
	}
	want := filepath.Join(root, configName)
	if err := os.WriteFile(want, nil, 0o600); err != nil {
		t.Fatal(err)
	}
	got, ok, err := findConfig(nested)
	if err != nil || !ok {
		t.Fatalf("findConfig: ok=%v err=%v", ok, err)
	}
	if got != want {
		t.Fatalf("findConfig = %q, want %q", got, want)
	}
}

func TestParseTriple(t *testing.T) {
	got, err := parseTriple("3,2,1")
	if err != nil || got != [3]uint32{3, 2, 1} {
		t.Fatalf("parseTriple = %v, %v", got, err)
	}
	for _, bad := range []string{"", "1,2", "1,2,x", "1,2,3,4"} {
		if _, err := parseTriple(bad); err == nil {
			t.Errorf("parseTriple(%q) accepted", bad)
		}
	}
}

func TestParseIDs(t *testing.T) {
	ids, err := parseIDs(" 0, 2 ")
	if err != nil || len(ids) != 2 || ids[0] != 0 || ids[1] != 2 {
		t.Fatalf("parseIDs = %v, %v", ids, err)
	}
	if ids, err := parseIDs(""); err != nil || ids != nil {
		t.Fatalf("parseIDs(\"\") = %v, %v", ids, err)
	}
	if _, err := parseIDs("1,-1"); err == nil {
		t.Fatal("parseIDs accepted a negative id")
	}
}
