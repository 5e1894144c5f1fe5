// Package testutil provides test utilities for CLI testing.
package testutil

import (
	"bytes"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/leapstack-labs/tmplsync/internal/cli/output"
)

// TemplateDoc is the job document of the "web" template in SetupTestProject.
const TemplateDoc = `kind: template
description: Deploy web for $$REGION
env:
  DEPLOY_ENV: $$ENV
steps:
  - name: deploy
    run: ./deploy.sh $$REGION
`

// OtherDoc is the job document of the "nightly" plain job in SetupTestProject.
const OtherDoc = `kind: job
description: Nightly audit $$REGION
`

// SetupTestProject creates a temporary project with a tmplsync.yaml, a
// "web" template and a "nightly" plain job. The state database lives in
// the project's .tmplsync directory.
func SetupTestProject(t *testing.T) string {
	t.Helper()

	tmpDir := t.TempDir()

	WriteJob(t, tmpDir, "web", TemplateDoc)
	WriteJob(t, tmpDir, "nightly", OtherDoc)

	cfg := "jobs_dir: jobs\nstate_path: .tmplsync/state.db\noutput: json\n"
	if err := os.WriteFile(filepath.Join(tmpDir, "tmplsync.yaml"), []byte(cfg), 0600); err != nil {
		t.Fatalf("failed to create tmplsync.yaml: %v", err)
	}

	return tmpDir
}

// WriteJob writes jobs/<name>/job.yaml under root.
func WriteJob(t *testing.T, root, name, doc string) {
	t.Helper()
	dir := filepath.Join(root, "jobs", name)
	if err := os.MkdirAll(dir, 0750); err != nil {
		t.Fatalf("failed to create directory %s: %v", dir, err)
	}
	if err := os.WriteFile(filepath.Join(dir, "job.yaml"), []byte(doc), 0600); err != nil {
		t.Fatalf("failed to write job %s: %v", name, err)
	}
}

// ReadJob returns the document of jobs/<name>/job.yaml under root.
func ReadJob(t *testing.T, root, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(root, "jobs", name, "job.yaml"))
	if err != nil {
		t.Fatalf("failed to read job %s: %v", name, err)
	}
	return string(data)
}

// TestRenderer wraps a Renderer for testing with captured output buffers.
type TestRenderer struct {
	*output.Renderer
	Out    *bytes.Buffer
	ErrOut *bytes.Buffer
}

// NewTestRenderer creates a new test renderer with the specified mode and TTY state.
// Output is captured in buffers for inspection.
func NewTestRenderer(mode output.Mode, isTTY bool) *TestRenderer {
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	return &TestRenderer{
		Renderer: output.NewRendererWithTTY(out, errOut, isTTY, mode),
		Out:      out,
		ErrOut:   errOut,
	}
}

// Output returns the stdout output as a string.
func (tr *TestRenderer) Output() string {
	return tr.Out.String()
}

// ErrorOutput returns the stderr output as a string.
func (tr *TestRenderer) ErrorOutput() string {
	return tr.ErrOut.String()
}

// ansiPattern matches ANSI escape codes.
var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)

// AssertNoANSI checks that a string contains no ANSI escape codes.
func AssertNoANSI(t *testing.T, s string) {
	t.Helper()
	if ansiPattern.MatchString(s) {
		t.Errorf("string contains ANSI escape codes: %q", s)
	}
}

// AssertValidMarkdown performs basic markdown validation.
// It checks for unclosed code fences and empty headers.
func AssertValidMarkdown(t *testing.T, md string) {
	t.Helper()

	if fenceCount := strings.Count(md, "```"); fenceCount%2 != 0 {
		t.Errorf("unbalanced code fences in markdown: found %d occurrences", fenceCount)
	}

	for i, line := range strings.Split(md, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "#") && strings.TrimLeft(trimmed, "# ") == "" {
			t.Errorf("empty header at line %d: %q", i+1, line)
		}
	}
}
