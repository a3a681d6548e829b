package migrate

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// Report protocol sentinels. The orchestration layer parses these verbatim.
const (
	SentinelNotFound = "NO_LEGACY_ARTIFACTS_FOUND"
	SentinelDetected = "LEGACY_ARTIFACTS_DETECTED"
	SentinelEnd      = "END_REPORT"
)

// Per-artifact tags in the text report.
const (
	TagReady = "[READY]"
	TagSkip  = "[SKIP]"
	TagInfo  = "[INFO]"
)

// TagStyler decorates a tag for display (e.g. colour). It must not change the
// tag text itself.
type TagStyler func(status Status, tag string) string

// WriteText renders the line-oriented detection report. style may be nil.
func (r *Report) WriteText(w io.Writer, style TagStyler) error {
	bw := bufio.NewWriter(w)
	if !r.Found() {
		fmt.Fprintln(bw, SentinelNotFound)
		return bw.Flush()
	}

	fmt.Fprintln(bw, SentinelDetected)
	fmt.Fprintf(bw, "total_migratable: %d\n", r.Ready)
	fmt.Fprintf(bw, "total_already_exists: %d\n", r.AlreadyExists)
	fmt.Fprintf(bw, "total_needs_transform: %d\n", r.NeedsTransform)
	fmt.Fprintln(bw)

	for _, g := range r.Groups() {
		fmt.Fprintf(bw, "### %s (%d files)\n", g.Phase, len(g.Artifacts))
		for _, a := range g.Artifacts {
			fmt.Fprintln(bw, artifactLine(a, style))
		}
		fmt.Fprintln(bw)
	}

	fmt.Fprintln(bw, SentinelEnd)
	return bw.Flush()
}

func artifactLine(a Artifact, style TagStyler) string {
	tag := tagFor(a.Status)
	if style != nil {
		tag = style(a.Status, tag)
	}
	switch a.Status {
	case StatusNeedsTransform:
		return fmt.Sprintf("%s %s -> %s (status file, needs manual review)", tag, a.Source, NeedsTransform)
	case StatusAlreadyExists:
		return fmt.Sprintf("%s %s -> %s (already exists)", tag, a.Source, a.Destination)
	}
	var notes []string
	if a.Category == CategoryPackageManaged {
		notes = append(notes, "package-managed, superseded by installed resource")
	}
	if a.SharedWith != "" {
		notes = append(notes, "destination shared with "+a.SharedWith)
	}
	line := fmt.Sprintf("%s %s -> %s", tag, a.Source, a.Destination)
	if len(notes) > 0 {
		line += " (" + strings.Join(notes, "; ") + ")"
	}
	return line
}

func tagFor(s Status) string {
	switch s {
	case StatusAlreadyExists:
		return TagSkip
	case StatusNeedsTransform:
		return TagInfo
	default:
		return TagReady
	}
}

type jsonReport struct {
	Found               bool    `json:"found"`
	TotalMigratable     int     `json:"total_migratable"`
	TotalAlreadyExists  int     `json:"total_already_exists"`
	TotalNeedsTransform int     `json:"total_needs_transform"`
	Groups              []Group `json:"groups"`
}

// WriteJSON renders the report as a single JSON document with the same
// ordering as the text protocol.
func (r *Report) WriteJSON(w io.Writer) error {
	out := jsonReport{
		Found:               r.Found(),
		TotalMigratable:     r.Ready,
		TotalAlreadyExists:  r.AlreadyExists,
		TotalNeedsTransform: r.NeedsTransform,
		Groups:              r.Groups(),
	}
	if out.Groups == nil {
		out.Groups = []Group{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
