package apply

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/accbmad/accbmad/internal/utils"
)

func writeFile(t *testing.T, root, rel, content string) string {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0644))
	return p
}

func readFile(t *testing.T, root, rel string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(rel)))
	require.NoError(t, err)
	return string(data)
}

func parse(t *testing.T, lines ...string) []Entry {
	t.Helper()
	entries, err := ParseManifest(strings.NewReader(strings.Join(lines, "\n")))
	require.NoError(t, err)
	return entries
}

type countingObserver struct {
	outcomes map[Outcome]int
}

func (o *countingObserver) Observe(_ context.Context, r EntryResult) {
	if o.outcomes == nil {
		o.outcomes = make(map[Outcome]int)
	}
	o.outcomes[r.Outcome]++
}

func TestRun_Copies(t *testing.T) {
	dir := t.TempDir()
	src := writeFile(t, dir, "docs/prd-myapp.md", "# PRD\n")
	old := time.Now().Add(-48 * time.Hour).Truncate(time.Second)
	require.NoError(t, os.Chtimes(src, old, old))

	var out bytes.Buffer
	res := NewExecutor(dir).Run(context.Background(),
		parse(t, "docs/prd-myapp.md|accbmad/2-planning/prd-myapp.md"), &out)

	assert.Equal(t, 1, res.Copied)
	assert.Equal(t, 0, res.Skipped)
	assert.Equal(t, 0, res.Errors)
	assert.NotEmpty(t, res.RunID)

	assert.Equal(t, "# PRD\n", readFile(t, dir, "accbmad/2-planning/prd-myapp.md"))

	// Source is untouched.
	assert.Equal(t, "# PRD\n", readFile(t, dir, "docs/prd-myapp.md"))
	info, err := os.Stat(src)
	require.NoError(t, err)
	assert.True(t, info.ModTime().Equal(old), "source mtime changed")

	assert.Equal(t, strings.Join([]string{
		"[COPIED] docs/prd-myapp.md -> accbmad/2-planning/prd-myapp.md",
		"",
		"MIGRATION_SUMMARY",
		"copied: 1",
		"skipped: 0",
		"errors: 0",
		"",
	}, "\n"), out.String())
}

func TestRun_Idempotent(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "docs/prd.md", "prd")
	writeFile(t, dir, "docs/epics.md", "epics")
	entries := parse(t,
		"docs/prd.md|accbmad/2-planning/prd.md",
		"docs/epics.md|accbmad/2-planning/epics.md",
	)

	first := NewExecutor(dir).Run(context.Background(), entries, io.Discard)
	assert.Equal(t, 2, first.Copied)

	second := NewExecutor(dir).Run(context.Background(), entries, io.Discard)
	assert.Equal(t, 0, second.Copied)
	assert.Equal(t, 2, second.Skipped)
	assert.Equal(t, 0, second.Errors)
	assert.NotEqual(t, first.RunID, second.RunID)
}

func TestRun_NeverOverwrites(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "docs/epics.md", "legacy")
	writeFile(t, dir, "accbmad/2-planning/epics.md", "curated")

	var out bytes.Buffer
	res := NewExecutor(dir).Run(context.Background(),
		parse(t, "docs/epics.md|accbmad/2-planning/epics.md"), &out)

	assert.Equal(t, 1, res.Skipped)
	assert.Equal(t, "curated", readFile(t, dir, "accbmad/2-planning/epics.md"))
	assert.Contains(t, out.String(), "[SKIP] accbmad/2-planning/epics.md: already exists")
}

func TestRun_TraversalIsPerEntry(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "docs/prd.md", "prd")

	var out bytes.Buffer
	obs := &countingObserver{}
	res := NewExecutor(dir, WithObserver(obs)).Run(context.Background(), parse(t,
		"../etc/passwd|accbmad/x.md",
		"docs/prd.md|../outside.md",
		"/etc/passwd|accbmad/y.md",
		"docs/prd.md|accbmad/2-planning/prd.md",
	), &out)

	assert.Equal(t, 3, res.Errors)
	assert.Equal(t, 1, res.Copied)
	assert.Equal(t, 3, obs.outcomes[OutcomeTraversalError])
	assert.NoFileExists(t, filepath.Join(filepath.Dir(dir), "outside.md"))

	require.Len(t, res.Entries, 4)
	assert.ErrorIs(t, res.Entries[0].Err, utils.ErrPathTraversal)
	assert.ErrorIs(t, res.Entries[2].Err, utils.ErrAbsolutePath)
	assert.Contains(t, out.String(), "errors: 3")
}

func TestRun_MixedManifest(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "docs/prd.md", "prd")
	writeFile(t, dir, "bmad/workflow-status.yaml", "status")
	writeFile(t, dir, "docs/epics.md", "epics")
	writeFile(t, dir, "accbmad/2-planning/epics.md", "epics")

	var out bytes.Buffer
	res := NewExecutor(dir).Run(context.Background(), parse(t,
		"bmad/workflow-status.yaml|needs_transform",
		"docs/missing.md|accbmad/2-planning/missing.md",
		"not a valid line",
		"docs/epics.md|accbmad/2-planning/epics.md",
		"docs/prd.md|accbmad/2-planning/prd.md",
	), &out)

	assert.Equal(t, 1, res.Copied)
	assert.Equal(t, 2, res.Skipped)
	assert.Equal(t, 2, res.Errors)

	assert.Equal(t, OutcomeTransformSkip, res.Entries[0].Outcome)
	assert.Equal(t, OutcomeMissingSource, res.Entries[1].Outcome)
	assert.ErrorIs(t, res.Entries[1].Err, ErrSourceNotFound)
	assert.Equal(t, OutcomeMalformedError, res.Entries[2].Outcome)
	assert.ErrorIs(t, res.Entries[2].Err, ErrMalformedEntry)

	text := out.String()
	assert.Contains(t, text, "[INFO] bmad/workflow-status.yaml -> needs_transform: not copied, needs manual transformation")
	assert.Contains(t, text, "[ERROR] docs/missing.md: source not found")
	assert.Contains(t, text, `[ERROR] line 3: expected source|destination: "not a valid line"`)
	assert.NoFileExists(t, filepath.Join(dir, "needs_transform"))
}

func TestRun_SymlinkSourceIsMissing(t *testing.T) {
	dir := t.TempDir()
	target := writeFile(t, t.TempDir(), "secret.md", "outside")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "docs"), 0755))
	if err := os.Symlink(target, filepath.Join(dir, "docs", "prd.md")); err != nil {
		t.Skipf("symlinks not supported: %v", err)
	}

	res := NewExecutor(dir).Run(context.Background(),
		parse(t, "docs/prd.md|accbmad/2-planning/prd.md"), io.Discard)
	assert.Equal(t, 1, res.Errors)
	assert.Equal(t, OutcomeMissingSource, res.Entries[0].Outcome)
	assert.NoFileExists(t, filepath.Join(dir, "accbmad", "2-planning", "prd.md"))
}

func TestRun_SymlinkedDestinationParentEscapes(t *testing.T) {
	dir := t.TempDir()
	outside := t.TempDir()
	writeFile(t, dir, "docs/prd.md", "prd")
	if err := os.Symlink(outside, filepath.Join(dir, "accbmad")); err != nil {
		t.Skipf("symlinks not supported: %v", err)
	}

	var out bytes.Buffer
	res := NewExecutor(dir).Run(context.Background(),
		parse(t, "docs/prd.md|accbmad/2-planning/prd.md"), &out)

	assert.Equal(t, 0, res.Copied)
	assert.Equal(t, 1, res.Errors)
	assert.Equal(t, OutcomeTraversalError, res.Entries[0].Outcome)
	assert.ErrorIs(t, res.Entries[0].Err, utils.ErrOutsideRoot)
	assert.NoDirExists(t, filepath.Join(outside, "2-planning"))
	assert.Contains(t, out.String(), "[ERROR] docs/prd.md -> accbmad/2-planning/prd.md")
}

func TestRun_SymlinkedSourceParentEscapes(t *testing.T) {
	dir := t.TempDir()
	outside := t.TempDir()
	writeFile(t, outside, "prd.md", "outside")
	if err := os.Symlink(outside, filepath.Join(dir, "docs")); err != nil {
		t.Skipf("symlinks not supported: %v", err)
	}

	res := NewExecutor(dir, WithDryRun(true)).Run(context.Background(),
		parse(t, "docs/prd.md|accbmad/2-planning/prd.md"), io.Discard)

	assert.Equal(t, 0, res.WouldCopy)
	assert.Equal(t, OutcomeTraversalError, res.Entries[0].Outcome)
	assert.ErrorIs(t, res.Entries[0].Err, utils.ErrOutsideRoot)
}

func TestRun_DryRun(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "docs/prd.md", "prd")
	writeFile(t, dir, "docs/epics.md", "epics")
	writeFile(t, dir, "accbmad/2-planning/epics.md", "epics")

	var out bytes.Buffer
	res := NewExecutor(dir, WithDryRun(true)).Run(context.Background(), parse(t,
		"docs/prd.md|accbmad/2-planning/prd.md",
		"docs/epics.md|accbmad/2-planning/epics.md",
	), &out)

	assert.Equal(t, 1, res.WouldCopy)
	assert.Equal(t, 0, res.Copied)
	assert.Equal(t, 1, res.Skipped)
	assert.NoFileExists(t, filepath.Join(dir, "accbmad", "2-planning", "prd.md"))

	text := out.String()
	assert.Contains(t, text, "[WOULD_COPY] docs/prd.md -> accbmad/2-planning/prd.md")
	assert.Contains(t, text, "MIGRATION_DRY_RUN_SUMMARY\nwould_copy: 1\ncopied: 0\nskipped: 1\nerrors: 0\n")
}

func TestRun_CopyErrorContinues(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "docs/prd.md", "prd")
	writeFile(t, dir, "docs/epics.md", "epics")

	orig := openFileRW
	t.Cleanup(func() { openFileRW = orig })
	openFileRW = func(name string, flag int, perm os.FileMode) (*os.File, error) {
		if strings.HasSuffix(name, "prd.md") {
			return nil, errors.New("disk full")
		}
		return orig(name, flag, perm)
	}

	var out bytes.Buffer
	res := NewExecutor(dir).Run(context.Background(), parse(t,
		"docs/prd.md|accbmad/2-planning/prd.md",
		"docs/epics.md|accbmad/2-planning/epics.md",
	), &out)

	assert.Equal(t, 1, res.Errors)
	assert.Equal(t, 1, res.Copied)
	assert.Equal(t, OutcomeCopyError, res.Entries[0].Outcome)
	assert.ErrorIs(t, res.Entries[0].Err, ErrCopyFailed)
	assert.Contains(t, out.String(), "[ERROR] docs/prd.md -> accbmad/2-planning/prd.md:")
	assert.FileExists(t, filepath.Join(dir, "accbmad", "2-planning", "epics.md"))
}

func TestCopyFileExclusive(t *testing.T) {
	dir := t.TempDir()
	src := writeFile(t, dir, "src.md", "content")
	dst := filepath.Join(dir, "dst.md")

	require.NoError(t, copyFileExclusive(src, dst, 0644))
	assert.Equal(t, "content", readFile(t, dir, "dst.md"))

	// Refuses to replace an existing file.
	require.NoError(t, os.WriteFile(src, []byte("changed"), 0644))
	err := copyFileExclusive(src, dst, 0644)
	assert.ErrorIs(t, err, errDestinationExists)
	assert.Equal(t, "content", readFile(t, dir, "dst.md"))
}

func TestCopyFileExclusive_RemovesPartial(t *testing.T) {
	dir := t.TempDir()
	dst := filepath.Join(dir, "dst.md")

	// A directory opens fine but fails on read, so io.Copy errors after
	// the destination was created.
	srcDir := filepath.Join(dir, "srcdir")
	require.NoError(t, os.Mkdir(srcDir, 0755))

	err := copyFileExclusive(srcDir, dst, 0644)
	require.Error(t, err)
	assert.NoFileExists(t, dst)
}

func TestOutcomeTallies(t *testing.T) {
	for _, o := range []Outcome{OutcomeTraversalError, OutcomeMalformedError, OutcomeMissingSource, OutcomeCopyError} {
		assert.True(t, o.IsError(), o)
		assert.False(t, o.IsSkip(), o)
	}
	for _, o := range []Outcome{OutcomeTransformSkip, OutcomeAlreadyExistsSkip} {
		assert.True(t, o.IsSkip(), o)
		assert.False(t, o.IsError(), o)
	}
	assert.False(t, OutcomeCopied.IsError())
	assert.False(t, OutcomeWouldCopy.IsSkip())
}

func TestRun_TagStyle(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "docs/prd.md", "prd")

	var out bytes.Buffer
	NewExecutor(dir, WithTagStyle(func(tag string) string { return "*" + tag + "*" })).
		Run(context.Background(), parse(t, "docs/prd.md|accbmad/2-planning/prd.md", "docs/gone.md|accbmad/gone.md"), &out)

	assert.Contains(t, out.String(), "*[COPIED]* docs/prd.md -> accbmad/2-planning/prd.md\n")
	assert.Contains(t, out.String(), "*[ERROR]* docs/gone.md: source not found\n")
	assert.Contains(t, out.String(), "\nMIGRATION_SUMMARY\n")
}
