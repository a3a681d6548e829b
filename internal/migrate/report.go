package migrate

import (
	"context"
	"os"
	"path"
	"path/filepath"
	"sort"

	"github.com/accbmad/accbmad/internal/debug"
)

// Status is the per-artifact outcome of a detection pass.
type Status string

const (
	StatusReady          Status = "ready"
	StatusAlreadyExists  Status = "already_exists"
	StatusNeedsTransform Status = "needs_transform"
)

// Artifact is a classified legacy file. It only lives for one report.
type Artifact struct {
	Source      string   `json:"source"`      // project-relative, e.g. docs/prd.md
	SourcePath  string   `json:"-"`           // absolute path on disk
	RelPath     string   `json:"relative_path"`
	Category    Category `json:"category"`
	Phase       Phase    `json:"phase"`
	Rule        string   `json:"rule"`
	Destination string   `json:"destination"` // project-relative or NeedsTransform
	Status      Status   `json:"status"`
	// SharedWith names an earlier ready artifact resolving to the same
	// destination. Only one of them can be copied; execute skips the other.
	SharedWith string `json:"destination_shared_with,omitempty"`
}

// Group is one phase section of a report.
type Group struct {
	Phase     Phase      `json:"phase"`
	Artifacts []Artifact `json:"artifacts"`
}

// Report is the result of a detection pass.
type Report struct {
	Artifacts      []Artifact
	Ready          int
	AlreadyExists  int
	NeedsTransform int
}

// Found reports whether any artifact was classified.
func (r *Report) Found() bool {
	return len(r.Artifacts) > 0
}

// Groups returns the artifacts grouped by phase in PhaseOrder, sorted by source
// within each group. Empty groups are omitted.
func (r *Report) Groups() []Group {
	byPhase := make(map[Phase][]Artifact)
	for _, a := range r.Artifacts {
		byPhase[a.Phase] = append(byPhase[a.Phase], a)
	}

	var groups []Group
	for _, p := range PhaseOrder {
		items := byPhase[p]
		if len(items) == 0 {
			continue
		}
		groups = append(groups, Group{Phase: p, Artifacts: items})
	}
	return groups
}

// BuildReport scans every legacy root, classifies each file, resolves its
// destination and computes its status. It never modifies the filesystem.
func BuildReport(ctx context.Context, opts Options, c *Classifier) (*Report, error) {
	if c == nil {
		c = defaultClassifier
	}
	candidates, err := Scan(ctx, opts)
	if err != nil {
		return nil, err
	}

	report := &Report{}
	for _, cand := range candidates {
		m, ok := c.Classify(cand.RelPath)
		if !ok {
			continue
		}

		a := Artifact{
			Source:      cand.Source(),
			SourcePath:  cand.SourcePath,
			RelPath:     cand.RelPath,
			Category:    m.Category,
			Phase:       PhaseOf(m.Category),
			Rule:        m.Rule,
			Destination: m.Destination.Resolve(opts.DestRoot, path.Base(cand.RelPath)),
		}

		switch {
		case m.Category == CategoryStatus:
			a.Status = StatusNeedsTransform
			report.NeedsTransform++
		case exists(filepath.Join(opts.ProjectDir, filepath.FromSlash(a.Destination))):
			a.Status = StatusAlreadyExists
			report.AlreadyExists++
		default:
			a.Status = StatusReady
			report.Ready++
		}
		report.Artifacts = append(report.Artifacts, a)
	}

	sort.SliceStable(report.Artifacts, func(i, j int) bool {
		ri, rj := phaseRank(report.Artifacts[i].Phase), phaseRank(report.Artifacts[j].Phase)
		if ri != rj {
			return ri < rj
		}
		return report.Artifacts[i].Source < report.Artifacts[j].Source
	})
	markSharedDestinations(report.Artifacts)
	return report, nil
}

// markSharedDestinations flags ready artifacts whose destination is already
// claimed by an earlier ready artifact in report order.
func markSharedDestinations(artifacts []Artifact) {
	claimed := make(map[string]string)
	for i := range artifacts {
		a := &artifacts[i]
		if a.Status != StatusReady {
			continue
		}
		if first, ok := claimed[a.Destination]; ok {
			a.SharedWith = first
			debug.Logger().Warn("legacy artifacts share a destination",
				"destination", a.Destination, "first", first, "also", a.Source)
			continue
		}
		claimed[a.Destination] = a.Source
	}
}

func exists(p string) bool {
	_, err := os.Lstat(p)
	return err == nil
}
