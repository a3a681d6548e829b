package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/accbmad/accbmad/internal/config"
	"github.com/accbmad/accbmad/internal/debug"
	"github.com/accbmad/accbmad/internal/migrate"
	"github.com/accbmad/accbmad/internal/migrate/apply"
	"github.com/accbmad/accbmad/internal/telemetry"
	"github.com/accbmad/accbmad/internal/ui"
	"github.com/accbmad/accbmad/internal/utils"
)

// migrate flag name -> config key
var migrateFlagKeys = map[string]string{
	"legacy-root":       config.KeyLegacyRoots,
	"dest-root":         config.KeyDestRoot,
	"max-depth":         config.KeyMaxDepth,
	"exclude":           config.KeyExclude,
	"respect-gitignore": config.KeyRespectGitignore,
}

const modeHint = "Use 'migrate detect' or 'migrate execute MANIFEST'"

func newMigrateCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Detect and migrate legacy planning artifacts",
		Long: `Two modes, always run in order with a human review in between:

  accbmad migrate detect             read-only report of what would move where
  accbmad migrate execute MANIFEST   copy the approved source|destination pairs

Sources are never modified and existing destinations are never overwritten,
so execute can be re-run safely.`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return FatalErrorWithHint(fmt.Errorf("%w: no mode given", migrate.ErrConfiguration), modeHint)
			}
			return FatalErrorWithHint(fmt.Errorf("%w: unknown mode %q", migrate.ErrConfiguration, args[0]), modeHint)
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringSlice("legacy-root", nil, "Legacy root directory to scan (repeatable; default: docs, bmad, .bmad)")
	pf.String("dest-root", migrate.DefaultDestRoot, "Canonical destination root")
	pf.Int("max-depth", migrate.DefaultMaxDepth, "Maximum path segments below a legacy root")
	pf.StringSlice("exclude", nil, "Additional exclusion glob (repeatable, doublestar syntax)")
	pf.Bool("respect-gitignore", false, "Skip files ignored by the project's .gitignore")

	cmd.AddCommand(newDetectCmd(c), newExecuteCmd(c), newRulesCmd(c))
	return cmd
}

// applyMigrateFlagOverrides copies explicitly set migrate flags into config so
// they win over env and file values.
func applyMigrateFlagOverrides(cmd *cobra.Command) {
	flags := cmd.Flags()
	for name, key := range migrateFlagKeys {
		f := flags.Lookup(name)
		if f == nil || !f.Changed {
			continue
		}
		switch f.Value.Type() {
		case "stringSlice":
			v, _ := flags.GetStringSlice(name)
			config.Set(key, v)
		case "int":
			v, _ := flags.GetInt(name)
			config.Set(key, v)
		case "bool":
			v, _ := flags.GetBool(name)
			config.Set(key, v)
		default:
			config.Set(key, f.Value.String())
		}
	}
}

func (c *cli) migrationOptions() (migrate.Options, *migrate.Classifier, error) {
	opts := config.MigrationSettings(c.projectDir)
	if err := opts.Validate(); err != nil {
		return opts, nil, FatalErrorWithHint(err, "Check legacy-roots, dest-root and max-depth in .accbmad.yaml or flags")
	}
	classifier, err := migrate.NewClassifier(opts.Exclude...)
	if err != nil {
		return opts, nil, FatalErrorWithHint(err, "Exclusion patterns use doublestar syntax, e.g. 'drafts/**'")
	}
	return opts, classifier, nil
}

func (c *cli) tagStyle() func(string) string {
	if !ui.ShouldUseColor() {
		return nil
	}
	return ui.RenderTag
}

func newDetectCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "detect",
		Short: "Report legacy artifacts and where they would go (read-only)",
		Long: `Scans the legacy roots, classifies every candidate file and prints a report.
Nothing on disk is changed.

Text output is a line protocol:

  NO_LEGACY_ARTIFACTS_FOUND              (nothing classified; nothing else follows)
  LEGACY_ARTIFACTS_DETECTED              (followed by totals, phase groups, END_REPORT)`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, classifier, err := c.migrationOptions()
			if err != nil {
				return err
			}

			ctx, span := telemetry.Tracer("").Start(cmd.Context(), "migrate.detect")
			defer span.End()
			start := time.Now()

			report, err := migrate.BuildReport(ctx, opts, classifier)
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
				if errors.Is(err, migrate.ErrConfiguration) || errors.Is(err, utils.ErrPathTraversal) {
					return FatalErrorWithHint(err, "Legacy roots must be project-relative without '..'")
				}
				return FatalError("detection failed: %v", err)
			}
			span.SetAttributes(
				attribute.Int("accbmad.ready", report.Ready),
				attribute.Int("accbmad.already_exists", report.AlreadyExists),
				attribute.Int("accbmad.needs_transform", report.NeedsTransform),
			)
			if c.metrics != nil {
				c.metrics.RecordRun(ctx, "detect", time.Since(start))
			}
			debug.Logger().Debug("detection complete",
				"artifacts", len(report.Artifacts), "ready", report.Ready, "elapsed", time.Since(start))

			if c.jsonOutput() {
				return report.WriteJSON(c.stdout)
			}
			var style migrate.TagStyler
			if s := c.tagStyle(); s != nil {
				style = func(_ migrate.Status, tag string) string { return s(tag) }
			}
			return report.WriteText(c.stdout, style)
		},
	}
}

type jsonEntry struct {
	Line        int    `json:"line"`
	Source      string `json:"source"`
	Destination string `json:"destination,omitempty"`
	Outcome     string `json:"outcome"`
	Error       string `json:"error,omitempty"`
}

type jsonResult struct {
	RunID     string      `json:"run_id"`
	DryRun    bool        `json:"dry_run"`
	Copied    int         `json:"copied"`
	Skipped   int         `json:"skipped"`
	Errors    int         `json:"errors"`
	WouldCopy int         `json:"would_copy,omitempty"`
	Entries   []jsonEntry `json:"entries"`
}

func newExecuteCmd(c *cli) *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "execute MANIFEST",
		Short: "Copy the approved manifest entries into the canonical tree",
		Long: `Reads MANIFEST, one "source|destination" pair per line (blank lines and
lines starting with # are ignored), and copies each source to its destination.

Every entry is attempted. Existing destinations are skipped, never
overwritten. Entries whose destination is needs_transform are reported and
left for manual transformation.

A relative MANIFEST path is resolved against the project directory.
Exit status is 0 when no entry failed, 2 when some entries failed and 1 when
the run could not start.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			manifestArg := args[0]
			if err := utils.CheckTraversal(manifestArg); err != nil {
				return FatalErrorWithHint(fmt.Errorf("manifest path: %w", err),
					"Pass a manifest path without '..' segments")
			}
			manifestPath := manifestArg
			if !filepath.IsAbs(manifestPath) {
				manifestPath = filepath.Join(c.projectDir, filepath.FromSlash(manifestPath))
			}
			entries, err := apply.LoadManifest(manifestPath)
			if err != nil {
				return FatalError("%v", err)
			}

			opts := []apply.Option{apply.WithDryRun(dryRun)}
			if c.metrics != nil {
				opts = append(opts, apply.WithObserver(c.metrics))
			}
			if s := c.tagStyle(); s != nil {
				opts = append(opts, apply.WithTagStyle(s))
			}

			ctx, span := telemetry.Tracer("").Start(cmd.Context(), "migrate.execute")
			defer span.End()
			start := time.Now()

			var out io.Writer = c.stdout
			if c.jsonOutput() {
				out = io.Discard
			}
			res := apply.NewExecutor(c.projectDir, opts...).Run(ctx, entries, out)

			span.SetAttributes(
				attribute.String("accbmad.run.id", res.RunID),
				attribute.Bool("accbmad.dry_run", dryRun),
				attribute.Int("accbmad.copied", res.Copied),
				attribute.Int("accbmad.skipped", res.Skipped),
				attribute.Int("accbmad.errors", res.Errors),
			)
			if c.metrics != nil {
				c.metrics.RecordRun(ctx, "execute", time.Since(start))
			}

			if c.jsonOutput() {
				if err := writeJSONResult(c.stdout, res, dryRun); err != nil {
					return FatalError("encoding JSON: %v", err)
				}
			}
			if res.Errors > 0 {
				span.SetStatus(codes.Error, "manifest entries failed")
				return PartialFailure(res.Errors)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Report what would be copied without writing anything")
	return cmd
}

func writeJSONResult(w io.Writer, res apply.Result, dryRun bool) error {
	out := jsonResult{
		RunID:     res.RunID,
		DryRun:    dryRun,
		Copied:    res.Copied,
		Skipped:   res.Skipped,
		Errors:    res.Errors,
		WouldCopy: res.WouldCopy,
		Entries:   make([]jsonEntry, 0, len(res.Entries)),
	}
	for _, er := range res.Entries {
		e := jsonEntry{
			Line:        er.Entry.Line,
			Source:      er.Entry.Source,
			Destination: er.Entry.Destination,
			Outcome:     string(er.Outcome),
		}
		if er.Err != nil {
			e.Error = er.Err.Error()
		}
		out.Entries = append(out.Entries, e)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func newRulesCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "rules",
		Short: "List the classification rules in evaluation order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, classifier, err := c.migrationOptions()
			if err != nil {
				return err
			}
			if c.jsonOutput() {
				return writeJSONRules(c.stdout, classifier)
			}

			w := tabwriter.NewWriter(c.stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "#\tSTAGE\tRULE\tCATEGORY\tPHASE\tDESTINATION\tPATTERN")
			for i, r := range classifier.Rules() {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
					i+1, r.Stage, r.Name, r.Category, migrate.PhaseOf(r.Category), r.Dest, r.Pattern)
			}
			if err := w.Flush(); err != nil {
				return err
			}

			if debug.IsQuiet() {
				return nil
			}
			fmt.Fprintln(c.stdout)
			fmt.Fprintln(c.stdout, ui.RenderCategory("excluded"))
			fmt.Fprintln(c.stdout, "  "+strings.Join(classifier.Excludes(), "\n  "))
			return nil
		},
	}
}

type jsonRule struct {
	Order    int    `json:"order"`
	Stage    string `json:"stage"`
	Name     string `json:"name"`
	Category string `json:"category"`
	Phase    string `json:"phase"`
	Dest     string `json:"destination"`
	Pattern  string `json:"pattern"`
}

func writeJSONRules(w io.Writer, classifier *migrate.Classifier) error {
	out := struct {
		Rules    []jsonRule `json:"rules"`
		Excludes []string   `json:"excludes"`
	}{Excludes: classifier.Excludes()}
	for i, r := range classifier.Rules() {
		out.Rules = append(out.Rules, jsonRule{
			Order:    i + 1,
			Stage:    string(r.Stage),
			Name:     r.Name,
			Category: string(r.Category),
			Phase:    string(migrate.PhaseOf(r.Category)),
			Dest:     r.Dest,
			Pattern:  r.Pattern,
		})
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
