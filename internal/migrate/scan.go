package migrate

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	ignore "github.com/sabhiram/go-gitignore"

	"github.com/accbmad/accbmad/internal/debug"
	"github.com/accbmad/accbmad/internal/utils"
)

// Candidate is a regular file found below a legacy root.
type Candidate struct {
	Root       string // legacy root name, e.g. "docs"
	SourcePath string // absolute path on disk
	RelPath    string // slash-separated path relative to Root
}

// Source returns the project-relative display path, e.g. "docs/prd.md".
func (c Candidate) Source() string {
	return utils.ToSlashRel(c.Root, c.RelPath)
}

// Scan enumerates regular files up to opts.MaxDepth segments below each legacy
// root. Missing roots are skipped, and so are roots that are symbolic links, so
// a link cannot pull files from outside the tree. Symlinked files and
// directories inside a root are not followed either.
//
// A relative path containing a parent-directory segment aborts the whole scan.
func Scan(ctx context.Context, opts Options) ([]Candidate, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	var ignored *ignore.GitIgnore
	if opts.RespectGitignore {
		ignored = loadGitignore(opts.ProjectDir)
	}

	var out []Candidate
	for _, root := range opts.LegacyRoots {
		found, err := scanRoot(ctx, opts, root, ignored)
		if err != nil {
			return nil, err
		}
		out = append(out, found...)
	}
	return out, nil
}

func scanRoot(ctx context.Context, opts Options, root string, ignored *ignore.GitIgnore) ([]Candidate, error) {
	rootPath := filepath.Join(opts.ProjectDir, root)
	info, err := os.Lstat(rootPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("stat legacy root %s: %w", root, err)
	}
	if info.Mode()&os.ModeSymlink != 0 {
		debug.Logger().Warn("skipping symlinked legacy root", "root", root)
		return nil, nil
	}
	if !info.IsDir() {
		return nil, nil
	}

	var out []Candidate
	err = filepath.WalkDir(rootPath, func(p string, d fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if walkErr != nil {
			// Unreadable subtrees are skipped, not fatal
			debug.Logger().Debug("skipping unreadable path", "path", p, "error", walkErr)
			if d != nil && d.IsDir() && p != rootPath {
				return filepath.SkipDir
			}
			return nil
		}
		if p == rootPath {
			return nil
		}

		rel, err := filepath.Rel(rootPath, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if err := utils.CheckTraversal(rel); err != nil {
			return err
		}
		depth := strings.Count(rel, "/") + 1

		if d.IsDir() {
			if depth >= opts.MaxDepth {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if ignored != nil && ignored.MatchesPath(utils.ToSlashRel(root, rel)) {
			debug.Logger().Debug("skipping gitignored file", "path", utils.ToSlashRel(root, rel))
			return nil
		}

		out = append(out, Candidate{Root: root, SourcePath: p, RelPath: rel})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", root, err)
	}
	return out, nil
}

func loadGitignore(projectDir string) *ignore.GitIgnore {
	data, err := os.ReadFile(filepath.Join(projectDir, ".gitignore")) // #nosec G304 -- fixed name under project dir
	if err != nil {
		return nil
	}
	return ignore.CompileIgnoreLines(strings.Split(string(data), "\n")...)
}
