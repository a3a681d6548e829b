// Package migrate detects artifacts left by earlier documentation layouts and
// classifies them into the canonical accbmad tree.
//
// Detection is read-only: Scan enumerates candidate files under the legacy
// roots, Classify maps each relative path to a category and destination, and
// BuildReport resolves destinations and statuses into a Report. Copying is the
// job of package apply, which only acts on an explicit manifest.
package migrate

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/accbmad/accbmad/internal/utils"
)

// ErrConfiguration marks whole-run configuration failures.
var ErrConfiguration = errors.New("configuration error")

// Defaults for the fixed layout. They are injectable through Options so tests
// can run against temporary trees.
const (
	DefaultDestRoot = "accbmad"
	DefaultMaxDepth = 3
)

// DefaultLegacyRoots are the directory names scanned for legacy artifacts.
var DefaultLegacyRoots = []string{"docs", "bmad", ".bmad"}

// Options configures a detection pass.
type Options struct {
	// ProjectDir anchors legacy roots and the destination root.
	ProjectDir string
	// LegacyRoots are directory names (relative to ProjectDir) to scan.
	LegacyRoots []string
	// DestRoot is the canonical destination root (relative to ProjectDir).
	DestRoot string
	// MaxDepth bounds how many path segments below a root a file may have.
	MaxDepth int
	// Exclude adds doublestar patterns to DefaultExcludes.
	Exclude []string
	// RespectGitignore skips files ignored by the project's .gitignore.
	RespectGitignore bool
}

// DefaultOptions returns the standard layout rooted at projectDir.
func DefaultOptions(projectDir string) Options {
	return Options{
		ProjectDir:  projectDir,
		LegacyRoots: append([]string(nil), DefaultLegacyRoots...),
		DestRoot:    DefaultDestRoot,
		MaxDepth:    DefaultMaxDepth,
	}
}

// Validate rejects layouts that would let a detection or copy escape the project.
func (o Options) Validate() error {
	if o.ProjectDir == "" {
		return fmt.Errorf("%w: project directory is required", ErrConfiguration)
	}
	if len(o.LegacyRoots) == 0 {
		return fmt.Errorf("%w: at least one legacy root is required", ErrConfiguration)
	}
	if o.MaxDepth < 1 {
		return fmt.Errorf("%w: max depth must be at least 1, got %d", ErrConfiguration, o.MaxDepth)
	}
	if o.DestRoot == "" {
		return fmt.Errorf("%w: destination root is required", ErrConfiguration)
	}
	if err := utils.CheckRelative(o.DestRoot); err != nil {
		return fmt.Errorf("%w: destination root: %v", ErrConfiguration, err)
	}
	for _, root := range o.LegacyRoots {
		if root == "" {
			return fmt.Errorf("%w: empty legacy root", ErrConfiguration)
		}
		if err := utils.CheckRelative(root); err != nil {
			return fmt.Errorf("%w: legacy root: %v", ErrConfiguration, err)
		}
		if utils.PathsEqual(filepath.Join(o.ProjectDir, root), filepath.Join(o.ProjectDir, o.DestRoot)) {
			return fmt.Errorf("%w: legacy root %q is the destination root", ErrConfiguration, root)
		}
	}
	return nil
}
