package migrate

import (
	"path"
	"regexp"
	"strings"

	"github.com/gobwas/glob"
)

// NeedsTransform is the destination sentinel for artifacts that must be
// reinterpreted by a content-aware collaborator instead of being copied.
const NeedsTransform = "needs_transform"

// Stage identifies which phase of classification a rule belongs to.
type Stage string

const (
	StageStatus   Stage = "status"
	StageSubdir   Stage = "subdir"
	StageFilename Stage = "filename"
)

// Rule is one row of the ordered classification table.
//
// Dest is relative to the destination root. Subdirectory rules capture the
// path below the matched directory and preserve it beneath Dest; filename
// rules treat Dest as a directory and the caller appends the file name.
type Rule struct {
	Name     string
	Stage    Stage
	Category Category
	Dest     string
	Pattern  string

	match func(rel, base string) (subpath string, ok bool)
}

// Match reports whether the rule applies and, for subdirectory rules, the
// captured subpath.
func (r Rule) Match(rel, base string) (string, bool) {
	return r.match(rel, base)
}

func (r Rule) destination(subpath string) Destination {
	switch r.Stage {
	case StageStatus:
		return Destination{Kind: DestTransform, Path: NeedsTransform}
	case StageSubdir:
		return Destination{Kind: DestFile, Path: path.Join(r.Dest, subpath)}
	default:
		return Destination{Kind: DestDir, Path: r.Dest}
	}
}

// subdirRule matches name/ anywhere in the relative path and captures everything below it.
func subdirRule(name string, category Category, dirPattern, dest string) Rule {
	re := regexp.MustCompile(`(?i)(?:^|/)(?:` + dirPattern + `)/(.+)$`)
	return Rule{
		Name:     name,
		Stage:    StageSubdir,
		Category: category,
		Dest:     dest,
		Pattern:  dirPattern + "/**",
		match: func(rel, _ string) (string, bool) {
			m := re.FindStringSubmatch(rel)
			if m == nil {
				return "", false
			}
			return m[1], true
		},
	}
}

// filenameRule matches a case-insensitive regular expression against the base name.
func filenameRule(name string, category Category, pattern, dest string) Rule {
	re := regexp.MustCompile(`(?i)` + pattern)
	return Rule{
		Name:     name,
		Stage:    StageFilename,
		Category: category,
		Dest:     dest,
		Pattern:  pattern,
		match: func(_, base string) (string, bool) {
			return "", re.MatchString(base)
		},
	}
}

// statusPatterns are matched against the lowercased base name.
var statusPatterns = []string{
	"*-status.yaml",
	"*-status.yml",
	"status.yaml",
	"status.yml",
	"sprint-status.yaml",
	"sprint-docs.yaml",
}

func statusRule() Rule {
	globs := make([]glob.Glob, 0, len(statusPatterns))
	for _, p := range statusPatterns {
		globs = append(globs, glob.MustCompile(p))
	}
	return Rule{
		Name:     "status-file",
		Stage:    StageStatus,
		Category: CategoryStatus,
		Dest:     NeedsTransform,
		Pattern:  strings.Join(statusPatterns, ", "),
		match: func(_, base string) (string, bool) {
			lower := strings.ToLower(base)
			for _, g := range globs {
				if g.Match(lower) {
					return "", true
				}
			}
			return "", false
		},
	}
}

// Word boundary used by filename rules: start/end of name or one of - _ . space.
const (
	wb  = `(?:^|[-_. ])`
	wbe = `(?:[-_. ]|$)`
)

// defaultRules is the ordered table evaluated after the status and extension
// checks. Subdirectory rules come first because a nested path is more specific
// than a file name. Within each stage the first match wins, so overlapping
// keywords are resolved by position: prd before the generic spec rule,
// architecture before review, guardrails before anything that would keep the
// file in project-local storage.
func defaultRules() []Rule {
	return []Rule{
		subdirRule("adr-dir", CategoryADR, `adrs?`, "3-solutioning/adrs"),
		subdirRule("archive-dir", CategoryArchive, `archive`, "outputs/archive"),
		subdirRule("operations-dir", CategoryOperations, `operations`, "context/operations"),
		subdirRule("guides-dir", CategoryGuide, `guides`, "context/guides"),
		subdirRule("reference-dir", CategoryReference, `reference`, "context/reference"),
		subdirRule("api-dir", CategoryAPI, `api`, "3-solutioning/api"),
		subdirRule("integrations-dir", CategoryIntegration, `integrations`, "3-solutioning/integrations"),
		subdirRule("architecture-dir", CategoryArchitecture, `architecture`, "3-solutioning/architecture"),
		subdirRule("stories-dir", CategoryStory, `stories`, "4-implementation/stories"),
		subdirRule("testing-dir", CategoryTesting, `testing|tests`, "4-implementation/testing"),

		filenameRule("story", CategoryStory, wb+`story`+wbe, "4-implementation/stories/"),
		filenameRule("sprint-plan", CategorySprintPlan, `sprint[-_ ]?plan`, "4-implementation/"),
		filenameRule("prd", CategoryPRD, wb+`prd`+wbe+`|product[-_ ]?requirements`, "2-planning/"),
		filenameRule("architecture", CategoryArchitecture, `architecture`, "3-solutioning/"),
		filenameRule("readiness-report", CategoryReadinessReport, `readiness`, "3-solutioning/"),
		filenameRule("gate-check", CategoryGateCheck, `gate[-_ ]?check`, "3-solutioning/"),
		filenameRule("e2e-test-plan", CategoryE2ETestPlan, `e2e.*(?:test|plan)|end[-_ ]to[-_ ]end`, "4-implementation/"),
		filenameRule("guardrails", CategoryPackageManaged, `guardrails|development[-_ ]rules|dev[-_ ]rules`, "context/package-managed/"),
		filenameRule("optimization", CategoryOptimization, `optimi[sz]ation`, "outputs/"),
		filenameRule("epics", CategoryEpics, wb+`epics?`+wbe, "2-planning/"),
		filenameRule("product-brief", CategoryProductBrief, `product[-_ ]?brief|`+wb+`brief`+wbe, "1-analysis/"),
		filenameRule("ux-design", CategoryUXDesign, wb+`ux`+wbe+`|ux[-_ ]?design|user[-_ ]experience`, "2-planning/"),
		filenameRule("tech-spec", CategoryTechSpec, `tech[-_ ]?spec|`+wb+`spec(?:ification)?s?`+wbe, "3-solutioning/"),
		filenameRule("research", CategoryResearch, `research`, "1-analysis/"),
		filenameRule("brainstorm", CategoryBrainstorm, `brainstorm`, "1-analysis/"),
		filenameRule("project-context", CategoryProjectContext, `project[-_ ]?context`, "context/"),
		filenameRule("review", CategoryReview, `review|retrospective|`+wb+`retro`+wbe, "4-implementation/"),
		filenameRule("user-guide", CategoryUserGuide, `user[-_ ]?guide`, "context/"),
		filenameRule("test-plan", CategoryTestPlan, `test[-_ ]?(?:plan|design|strategy)`, "4-implementation/"),
		filenameRule("changelog", CategoryChangelog, `change[-_ ]?log`, "context/"),
	}
}
