package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeGo(t *testing.T, dir, name, src string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestRunAcceptsRepositoryStatements(t *testing.T) {
	var out bytes.Buffer
	if code := run([]string{"../../sqlinline"}, &out); code != 0 {
		t.Fatalf("run = %d, output:\n%s", code, out.String())
	}
}

func TestRunReportsViolations(t *testing.T) {
	dir := t.TempDir()
	writeGo(t, dir, "q.go", "package q\n\n"+
		"const cols = `id, name`\n\n"+
		"const QGood = `--sql 0b8e5c1c-3f57-4a7e-9f0c-6fd0d4b7f3a1\nselect ` + cols + `\nfrom t;`\n\n"+
		"const QNoMarker = `select 1`\n\n"+
		"const QLeadingIdent = cols + `\nselect 1`\n\n"+
		"const QDup = `--sql 0b8e5c1c-3f57-4a7e-9f0c-6fd0d4b7f3a1\nupdate t set x = 1`\n\n"+
		"const notSQL = `hello`\n")

	var out bytes.Buffer
	if code := run([]string{dir}, &out); code != 1 {
		t.Fatalf("run = %d, want 1", code)
	}
	report := out.String()
	for _, want := range []string{"(QNoMarker)", "(QLeadingIdent)", "(QDup)"} {
		if !strings.Contains(report, want) {
			t.Fatalf("report missing %s:\n%s", want, report)
		}
	}
	for _, unwanted := range []string{"(QGood)", "(cols)", "(notSQL)"} {
		if strings.Contains(report, unwanted) {
			t.Fatalf("report should not mention %s:\n%s", unwanted, report)
		}
	}
}

func TestStringLiteralsFlattensConcatenation(t *testing.T) {
	dir := t.TempDir()
	path := writeGo(t, dir, "c.go", "package c\n\nconst QX = (`--sql 0b8e5c1c-3f57-4a7e-9f0c-6fd0d4b7f3a1\n` + \"select \" + `1`)\n")

	l := &linter{markers: map[string]string{}}
	if err := l.lintFile(path); err != nil {
		t.Fatalf("lintFile: %v", err)
	}
	if len(l.violations) != 0 {
		t.Fatalf("violations = %+v", l.violations)
	}
	if len(l.markers) != 1 {
		t.Fatalf("markers = %v", l.markers)
	}
}
