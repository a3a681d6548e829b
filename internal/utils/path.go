// Package utils provides path handling shared by the scanner and the manifest executor.
package utils

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// ErrPathTraversal is returned when a path contains a parent-directory segment.
var ErrPathTraversal = errors.New("path traversal detected")

// ErrAbsolutePath is returned when a path that must be project-relative is absolute.
var ErrAbsolutePath = errors.New("absolute path not allowed")

// ErrOutsideRoot is returned when a path leaves its root through a symlinked
// directory.
var ErrOutsideRoot = errors.New("path resolves outside project")

// HasTraversal reports whether p contains a ".." segment. Both separators are
// checked so a manifest written on Windows is judged the same way everywhere.
func HasTraversal(p string) bool {
	if p == "" {
		return false
	}
	for _, seg := range strings.FieldsFunc(p, isSeparator) {
		if seg == ".." {
			return true
		}
	}
	return false
}

func isSeparator(r rune) bool {
	return r == '/' || r == '\\'
}

// CheckTraversal returns ErrPathTraversal (wrapped with the offending path)
// when p contains a parent-directory segment.
func CheckTraversal(p string) error {
	if HasTraversal(p) {
		return fmt.Errorf("%w: %s", ErrPathTraversal, p)
	}
	return nil
}

// CheckRelative validates a path that must stay inside the project tree:
// no ".." segment and not absolute.
func CheckRelative(p string) error {
	if err := CheckTraversal(p); err != nil {
		return err
	}
	if filepath.IsAbs(p) || strings.HasPrefix(p, "/") || strings.HasPrefix(p, `\`) {
		return fmt.Errorf("%w: %s", ErrAbsolutePath, p)
	}
	return nil
}

// CheckWithinRoot resolves symlinks in the deepest existing ancestor of p and
// returns ErrOutsideRoot when the result is not inside root. Components of p
// that do not exist yet are appended unresolved, so a destination can be
// checked before its parent directories are created.
func CheckWithinRoot(root, p string) error {
	base := CanonicalizePath(root)
	abs, err := filepath.Abs(p)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", p, err)
	}

	existing := abs
	var rest []string
	for {
		if _, err := os.Lstat(existing); err == nil {
			break
		}
		parent := filepath.Dir(existing)
		if parent == existing {
			break
		}
		rest = append([]string{filepath.Base(existing)}, rest...)
		existing = parent
	}

	resolved, err := filepath.EvalSymlinks(existing)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", p, err)
	}
	full := filepath.Join(append([]string{resolved}, rest...)...)

	rel, err := filepath.Rel(base, full)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return fmt.Errorf("%w: %s", ErrOutsideRoot, p)
	}
	return nil
}

// CanonicalizePath converts a path to its canonical form by:
// 1. Converting to absolute path
// 2. Resolving symlinks
//
// If either step fails, it falls back to the best available form.
func CanonicalizePath(path string) string {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return path
	}

	canonical, err := filepath.EvalSymlinks(absPath)
	if err != nil {
		return absPath
	}

	return canonical
}

// NormalizePathForComparison returns a normalized path suitable for comparison.
// On case-insensitive filesystems (darwin, windows), the path is lowercased.
// Use it for comparing, not for storing or displaying paths.
func NormalizePathForComparison(path string) string {
	if path == "" {
		return ""
	}
	canonical := CanonicalizePath(path)
	if runtime.GOOS == "darwin" || runtime.GOOS == "windows" {
		canonical = strings.ToLower(canonical)
	}
	return canonical
}

// PathsEqual compares two paths for equality, handling case-insensitive
// filesystems and symlinks.
func PathsEqual(path1, path2 string) bool {
	return NormalizePathForComparison(path1) == NormalizePathForComparison(path2)
}

// ToSlashRel joins root-relative segments with forward slashes, which is the
// form used in reports and manifests regardless of platform.
func ToSlashRel(elem ...string) string {
	return filepath.ToSlash(filepath.Join(elem...))
}
