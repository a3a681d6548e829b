// Package apply copies approved legacy artifacts into the canonical tree.
//
// It only acts on an explicit manifest. Every entry is attempted; per-entry
// failures are counted and never stop the run. Sources are never modified or
// moved and existing destinations are never overwritten, so re-running the
// same manifest is safe and picks up where an interrupted run stopped.
package apply

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/accbmad/accbmad/internal/debug"
	"github.com/accbmad/accbmad/internal/migrate"
	"github.com/accbmad/accbmad/internal/utils"
)

var (
	// ErrSourceNotFound is recorded when a source is missing or not a regular file.
	ErrSourceNotFound = errors.New("source not found")
	// ErrCopyFailed wraps I/O failures while copying.
	ErrCopyFailed = errors.New("copy failed")
	// ErrMalformedEntry is recorded for manifest lines that could not be split.
	ErrMalformedEntry = errors.New("malformed manifest entry")
)

// Outcome is the terminal state of one manifest entry.
type Outcome string

const (
	OutcomeTransformSkip     Outcome = "transform_skip"
	OutcomeTraversalError    Outcome = "traversal_error"
	OutcomeMalformedError    Outcome = "malformed_error"
	OutcomeMissingSource     Outcome = "missing_source_error"
	OutcomeAlreadyExistsSkip Outcome = "already_exists_skip"
	OutcomeCopied            Outcome = "copy_success"
	OutcomeCopyError         Outcome = "copy_error"
	OutcomeWouldCopy         Outcome = "would_copy"
)

// IsError reports whether the outcome counts toward the error tally.
func (o Outcome) IsError() bool {
	switch o {
	case OutcomeTraversalError, OutcomeMalformedError, OutcomeMissingSource, OutcomeCopyError:
		return true
	}
	return false
}

// IsSkip reports whether the outcome counts toward the skipped tally.
func (o Outcome) IsSkip() bool {
	return o == OutcomeTransformSkip || o == OutcomeAlreadyExistsSkip
}

// EntryResult records what happened to a single entry.
type EntryResult struct {
	Entry   Entry
	Outcome Outcome
	Err     error
}

// Result is the aggregate tally of one run.
type Result struct {
	RunID     string
	Copied    int
	Skipped   int
	Errors    int
	WouldCopy int
	Entries   []EntryResult
}

// Observer is notified after each entry reaches its outcome.
type Observer interface {
	Observe(ctx context.Context, r EntryResult)
}

// Option configures an Executor.
type Option func(*Executor)

// WithDryRun evaluates every entry without touching the filesystem.
func WithDryRun(dryRun bool) Option {
	return func(e *Executor) { e.dryRun = dryRun }
}

// WithObserver registers an observer for per-entry outcomes.
func WithObserver(o Observer) Option {
	return func(e *Executor) { e.observer = o }
}

// WithTagStyle decorates the leading tag of each printed entry line.
func WithTagStyle(style func(tag string) string) Option {
	return func(e *Executor) { e.style = style }
}

// Executor applies manifest entries relative to a project directory.
// It holds no state between runs. Concurrent runs against the same tree are
// not coordinated; callers should serialize them.
type Executor struct {
	projectDir string
	dryRun     bool
	observer   Observer
	style      func(tag string) string
}

// NewExecutor returns an executor rooted at projectDir.
func NewExecutor(projectDir string, opts ...Option) *Executor {
	e := &Executor{projectDir: projectDir}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run processes entries in order, writing one line per entry and a final
// summary to w. It always attempts every entry.
func (e *Executor) Run(ctx context.Context, entries []Entry, w io.Writer) Result {
	res := Result{RunID: uuid.NewString()}
	log := debug.Logger().With("run", res.RunID)

	for _, entry := range entries {
		er := e.apply(entry)
		res.Entries = append(res.Entries, er)
		switch {
		case er.Outcome.IsError():
			res.Errors++
		case er.Outcome.IsSkip():
			res.Skipped++
		case er.Outcome == OutcomeCopied:
			res.Copied++
		case er.Outcome == OutcomeWouldCopy:
			res.WouldCopy++
		}

		tag, rest := formatEntry(er)
		if e.style != nil {
			tag = e.style(tag)
		}
		fmt.Fprintln(w, tag+" "+rest)
		log.Debug("manifest entry", "line", entry.Line, "outcome", string(er.Outcome), "error", er.Err)
		if e.observer != nil {
			e.observer.Observe(ctx, er)
		}
	}

	writeSummary(w, res, e.dryRun)
	return res
}

func (e *Executor) apply(entry Entry) EntryResult {
	result := func(o Outcome, err error) EntryResult {
		return EntryResult{Entry: entry, Outcome: o, Err: err}
	}

	if entry.Malformed != "" {
		return result(OutcomeMalformedError, fmt.Errorf("%w: line %d: %s", ErrMalformedEntry, entry.Line, entry.Malformed))
	}
	if entry.Destination == migrate.NeedsTransform {
		return result(OutcomeTransformSkip, nil)
	}
	if err := utils.CheckRelative(entry.Source); err != nil {
		return result(OutcomeTraversalError, err)
	}
	if err := utils.CheckRelative(entry.Destination); err != nil {
		return result(OutcomeTraversalError, err)
	}

	src := e.resolve(entry.Source)
	dst := e.resolve(entry.Destination)

	// Parents only: a symlinked source file is reported as missing below and
	// an existing destination link is skipped like any existing file.
	for _, p := range []string{src, dst} {
		if err := utils.CheckWithinRoot(e.projectDir, filepath.Dir(p)); err != nil {
			return result(OutcomeTraversalError, err)
		}
	}

	// Lstat so a symlink is never treated as the regular file it points at.
	info, err := os.Lstat(src)
	if err != nil || !info.Mode().IsRegular() {
		return result(OutcomeMissingSource, fmt.Errorf("%w: %s", ErrSourceNotFound, entry.Source))
	}

	if _, err := os.Lstat(dst); err == nil {
		return result(OutcomeAlreadyExistsSkip, nil)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return result(OutcomeCopyError, fmt.Errorf("%w: stat destination: %v", ErrCopyFailed, err))
	}

	if e.dryRun {
		return result(OutcomeWouldCopy, nil)
	}

	if err := mkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return result(OutcomeCopyError, fmt.Errorf("%w: create parent: %v", ErrCopyFailed, err))
	}
	if err := copyFileExclusive(src, dst, info.Mode().Perm()); err != nil {
		if errors.Is(err, errDestinationExists) {
			return result(OutcomeAlreadyExistsSkip, nil)
		}
		return result(OutcomeCopyError, fmt.Errorf("%w: %v", ErrCopyFailed, err))
	}
	return result(OutcomeCopied, nil)
}

func (e *Executor) resolve(rel string) string {
	return filepath.Join(e.projectDir, filepath.FromSlash(rel))
}

// Entry line tags.
const (
	TagCopied    = "[COPIED]"
	TagWouldCopy = "[WOULD_COPY]"
	TagSkip      = "[SKIP]"
	TagInfo      = "[INFO]"
	TagError     = "[ERROR]"
)

func formatEntry(r EntryResult) (tag, rest string) {
	src, dst := r.Entry.Source, r.Entry.Destination
	switch r.Outcome {
	case OutcomeTransformSkip:
		return TagInfo, fmt.Sprintf("%s -> %s: not copied, needs manual transformation", src, migrate.NeedsTransform)
	case OutcomeTraversalError, OutcomeCopyError:
		return TagError, fmt.Sprintf("%s -> %s: %v", src, dst, r.Err)
	case OutcomeMalformedError:
		return TagError, fmt.Sprintf("line %d: %s: %q", r.Entry.Line, r.Entry.Malformed, src)
	case OutcomeMissingSource:
		return TagError, fmt.Sprintf("%s: source not found", src)
	case OutcomeAlreadyExistsSkip:
		return TagSkip, fmt.Sprintf("%s: already exists", dst)
	case OutcomeWouldCopy:
		return TagWouldCopy, fmt.Sprintf("%s -> %s", src, dst)
	default:
		return TagCopied, fmt.Sprintf("%s -> %s", src, dst)
	}
}

// Summary sentinels for the execution output.
const (
	SummaryHeader       = "MIGRATION_SUMMARY"
	SummaryHeaderDryRun = "MIGRATION_DRY_RUN_SUMMARY"
)

func writeSummary(w io.Writer, res Result, dryRun bool) {
	header := SummaryHeader
	if dryRun {
		header = SummaryHeaderDryRun
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, header)
	if dryRun {
		fmt.Fprintf(w, "would_copy: %d\n", res.WouldCopy)
	}
	fmt.Fprintf(w, "copied: %d\n", res.Copied)
	fmt.Fprintf(w, "skipped: %d\n", res.Skipped)
	fmt.Fprintf(w, "errors: %d\n", res.Errors)
}
