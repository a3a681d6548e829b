package migrate

import (
	"fmt"
	"path"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/accbmad/accbmad/internal/utils"
)

// DestKind describes how a destination template is turned into a path.
type DestKind int

const (
	// DestDir is a directory template; the caller appends the original file name.
	DestDir DestKind = iota
	// DestFile is already a complete path (subpath preservation chose the leaf).
	DestFile
	// DestTransform is the needs_transform sentinel; nothing is copied.
	DestTransform
)

// Destination is a template relative to the canonical destination root.
type Destination struct {
	Kind DestKind
	Path string
}

// Resolve returns the project-relative destination for a file with the given
// base name under destRoot, or NeedsTransform for the sentinel.
func (d Destination) Resolve(destRoot, base string) string {
	switch d.Kind {
	case DestTransform:
		return NeedsTransform
	case DestFile:
		return path.Join(destRoot, d.Path)
	default:
		return path.Join(destRoot, d.Path, base)
	}
}

// Match is the classifier's answer for a path that matched a rule.
type Match struct {
	Rule        string
	Category    Category
	Destination Destination
}

// DefaultExcludes lists non-project content that is never migrated:
// vendor scrapes, confidential material, screenshots and generated report dumps.
var DefaultExcludes = []string{
	"**/vendor/**",
	"**/vendor-docs/**",
	"**/scraped/**",
	"**/scrapes/**",
	"**/confidential/**",
	"**/private/**",
	"**/screenshots/**",
	"**/generated-reports/**",
	"**/reports/generated/**",
}

var migratableExtensions = map[string]bool{
	".md":       true,
	".markdown": true,
	".yaml":     true,
	".yml":      true,
}

// placeholderNames are generic files that carry no project content of their own.
var placeholderNames = map[string]bool{
	"readme.md":       true,
	"readme.markdown": true,
	"readme":          true,
	"index.md":        true,
	"_index.md":       true,
}

// Classifier maps relative paths to categories and destination templates.
// It performs no I/O and holds no mutable state, so a single value can be
// shared freely.
type Classifier struct {
	excludes []string
	status   Rule
	rules    []Rule
}

// NewClassifier builds a classifier with DefaultExcludes plus any extra
// doublestar patterns.
func NewClassifier(extraExcludes ...string) (*Classifier, error) {
	excludes := make([]string, 0, len(DefaultExcludes)+len(extraExcludes))
	excludes = append(excludes, DefaultExcludes...)
	for _, pattern := range extraExcludes {
		pattern = strings.ToLower(strings.TrimSpace(pattern))
		if pattern == "" {
			continue
		}
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("%w: invalid exclude pattern %q", ErrConfiguration, pattern)
		}
		excludes = append(excludes, pattern)
	}
	return &Classifier{
		excludes: excludes,
		status:   statusRule(),
		rules:    defaultRules(),
	}, nil
}

var defaultClassifier, _ = NewClassifier()

// Classify runs the default classifier.
func Classify(rel string) (Match, bool) {
	return defaultClassifier.Classify(rel)
}

// Rules returns the default rule table in evaluation order, status rule first.
func Rules() []Rule {
	return defaultClassifier.Rules()
}

// Rules returns the rule table in evaluation order, status rule first.
func (c *Classifier) Rules() []Rule {
	out := make([]Rule, 0, len(c.rules)+1)
	out = append(out, c.status)
	return append(out, c.rules...)
}

// Excludes returns the exclusion patterns in effect.
func (c *Classifier) Excludes() []string {
	return append([]string(nil), c.excludes...)
}

// Classify maps a path relative to a legacy root to exactly one match, or
// reports false. The result depends only on rel.
func (c *Classifier) Classify(rel string) (Match, bool) {
	rel = normalizeRel(rel)
	if rel == "" || utils.HasTraversal(rel) {
		return Match{}, false
	}
	if c.excluded(rel) {
		return Match{}, false
	}

	base := path.Base(rel)
	if _, ok := c.status.Match(rel, base); ok {
		return c.matchOf(c.status, ""), true
	}

	if !eligible(base) {
		return Match{}, false
	}

	for _, r := range c.rules {
		if sub, ok := r.Match(rel, base); ok {
			return c.matchOf(r, sub), true
		}
	}
	return Match{}, false
}

func (c *Classifier) matchOf(r Rule, subpath string) Match {
	return Match{
		Rule:        r.Name,
		Category:    r.Category,
		Destination: r.destination(subpath),
	}
}

func (c *Classifier) excluded(rel string) bool {
	lower := strings.ToLower(rel)
	for _, pattern := range c.excludes {
		if ok, _ := doublestar.Match(pattern, lower); ok {
			return true
		}
	}
	return false
}

// eligible applies the extension filter and rejects placeholder names.
func eligible(base string) bool {
	lower := strings.ToLower(base)
	if placeholderNames[lower] {
		return false
	}
	return migratableExtensions[path.Ext(lower)]
}

func normalizeRel(rel string) string {
	rel = strings.ReplaceAll(rel, `\`, "/")
	for strings.HasPrefix(rel, "./") {
		rel = rel[2:]
	}
	return strings.TrimPrefix(rel, "/")
}
