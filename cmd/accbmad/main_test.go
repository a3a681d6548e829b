package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/accbmad/accbmad/internal/debug"
)

func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	runMu.Lock()
	defer runMu.Unlock()
	code := run(context.Background(), args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func writeProjectFile(t *testing.T, dir, rel, content string) {
	t.Helper()
	p := filepath.Join(dir, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0644))
}

func TestRun_ExitCodes(t *testing.T) {
	dir := t.TempDir()
	writeProjectFile(t, dir, "docs/prd.md", "prd")
	writeProjectFile(t, dir, "ok.txt", "docs/prd.md|accbmad/2-planning/prd.md\n")
	writeProjectFile(t, dir, "bad.txt", "docs/gone.md|accbmad/2-planning/gone.md\n")

	code, _, _ := runCLI(t, "--project="+dir, "migrate", "detect")
	assert.Equal(t, exitOK, code)

	code, stdout, _ := runCLI(t, "--project="+dir, "migrate", "execute", "ok.txt")
	assert.Equal(t, exitOK, code)
	assert.Contains(t, stdout, "copied: 1")

	code, _, stderr := runCLI(t, "--project="+dir, "migrate", "execute", "bad.txt")
	assert.Equal(t, exitPartial, code)
	assert.Contains(t, stderr, "Error: 1 manifest entries failed")

	code, _, stderr = runCLI(t, "--project="+dir, "migrate", "execute", "../bad.txt")
	assert.Equal(t, exitFatal, code)
	assert.Contains(t, stderr, "Hint:")

	code, _, _ = runCLI(t, "--project="+filepath.Join(dir, "nope"), "migrate", "detect")
	assert.Equal(t, exitFatal, code)

	code, _, _ = runCLI(t, "--project="+dir, "migrate", "detect", "--max-depth=0")
	assert.Equal(t, exitFatal, code)
}

func TestRun_UnknownMode(t *testing.T) {
	dir := t.TempDir()

	code, stdout, stderr := runCLI(t, "--project="+dir, "migrate", "bogus")
	assert.Equal(t, exitFatal, code)
	assert.Empty(t, stdout)
	assert.Contains(t, stderr, `Error: configuration error: unknown mode "bogus"`)
	assert.Contains(t, stderr, "Hint: Use 'migrate detect'")

	code, stdout, stderr = runCLI(t, "--project="+dir, "migrate")
	assert.Equal(t, exitFatal, code)
	assert.Empty(t, stdout)
	assert.Contains(t, stderr, "configuration error: no mode given")
}

func TestWarnError_Quiet(t *testing.T) {
	t.Cleanup(func() { debug.SetQuiet(false) })

	var buf bytes.Buffer
	WarnError(&buf, "telemetry disabled: %v", "boom")
	assert.Equal(t, "Warning: telemetry disabled: boom\n", buf.String())

	buf.Reset()
	debug.SetQuiet(true)
	WarnError(&buf, "telemetry disabled: %v", "boom")
	assert.Empty(t, buf.String())
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, exitOK, exitCode(nil))
	assert.Equal(t, exitFatal, exitCode(errors.New("plain")))
	assert.Equal(t, exitPartial, exitCode(PartialFailure(3)))
	assert.Equal(t, exitFatal, exitCode(FatalError("x %d", 1)))

	var buf bytes.Buffer
	reportError(&buf, FatalErrorWithHint(errors.New("boom"), "try again"))
	assert.Equal(t, "Error: boom\nHint: try again\n", buf.String())
}
