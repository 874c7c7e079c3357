package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := writeJSON(&buf, map[string]int{"pending": 3}); err != nil {
		t.Fatalf("writeJSON: %v", err)
	}

	var out map[string]int
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("output is not valid JSON: %v\n%s", err, buf.String())
	}
	if out["pending"] != 3 {
		t.Errorf("pending = %d", out["pending"])
	}
	if !strings.Contains(buf.String(), "\n  ") {
		t.Error("expected indented output")
	}
}

func TestWriteTable(t *testing.T) {
	var buf bytes.Buffer
	writeTable(&buf, []string{"UUID", "STATE"}, [][]string{
		{"abc", "pending"},
		{"longer-uuid", "synced"},
	})

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 4 {
		t.Fatalf("got %d lines, want 4:\n%s", len(lines), buf.String())
	}

	want := []string{
		"UUID         STATE",
		"-----------  -------",
		"abc          pending",
		"longer-uuid  synced",
	}
	for i, line := range lines {
		if line != want[i] {
			t.Errorf("line %d = %q, want %q", i, line, want[i])
		}
	}
}

func TestOutput_RespectsFormat(t *testing.T) {
	orig := flagFmt
	t.Cleanup(func() { flagFmt = orig })

	var buf bytes.Buffer

	flagFmt = "table"
	if err := output(&buf, map[string]int{"n": 1}, []string{"N"}, [][]string{{"1"}}); err != nil {
		t.Fatalf("output: %v", err)
	}
	if !strings.HasPrefix(buf.String(), "N\n-\n1") {
		t.Errorf("table output = %q", buf.String())
	}

	buf.Reset()
	flagFmt = "json"
	if err := output(&buf, map[string]int{"n": 1}, nil, nil); err != nil {
		t.Fatalf("output: %v", err)
	}
	if !strings.HasPrefix(buf.String(), "{") {
		t.Errorf("json output = %q", buf.String())
	}
}

func TestValidateFormat(t *testing.T) {
	for _, f := range []string{"json", "table"} {
		if err := validateFormat(f); err != nil {
			t.Errorf("validateFormat(%q) = %v", f, err)
		}
	}
	if err := validateFormat("yaml"); err == nil {
		t.Error("expected error for yaml")
	}
}
