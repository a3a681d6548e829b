package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/accbmad/accbmad/internal/config"
	"github.com/accbmad/accbmad/internal/debug"
	"github.com/accbmad/accbmad/internal/telemetry"
	"github.com/accbmad/accbmad/internal/ui"
)

// cli holds per-invocation state shared by subcommands.
type cli struct {
	stdout io.Writer
	stderr io.Writer

	projectFlag string
	jsonFlag    bool
	verbose     bool
	quiet       bool

	// Resolved in PersistentPreRunE.
	projectDir string
	metrics    *telemetry.MigrationMetrics
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run executes one CLI invocation and returns the exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	c := &cli{stdout: stdout, stderr: stderr}
	root := newRootCmd(c)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	telemetry.Shutdown(shutdownCtx)
	cancel()

	if err != nil {
		reportError(stderr, err)
	}
	return exitCode(err)
}

func newRootCmd(c *cli) *cobra.Command {
	root := &cobra.Command{
		Use:   "accbmad",
		Short: "accbmad - legacy planning artifact migration",
		Long: `Detects planning artifacts left in legacy documentation layouts (docs/, bmad/, .bmad/)
and migrates an approved manifest of them into the canonical accbmad/ tree.`,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.setup(cmd)
		},
		Run: func(cmd *cobra.Command, args []string) {
			if v, _ := cmd.Flags().GetBool("version"); v {
				fmt.Fprintf(c.stdout, "accbmad version %s (%s)\n", Version, Build)
				return
			}
			_ = cmd.Help()
		},
	}

	root.PersistentFlags().StringVar(&c.projectFlag, "project", "", "Project directory (default: current directory)")
	root.PersistentFlags().BoolVar(&c.jsonFlag, "json", false, "Output in JSON format")
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "Enable verbose/debug output")
	root.PersistentFlags().BoolVarP(&c.quiet, "quiet", "q", false, "Suppress non-essential output (errors only)")
	root.Flags().BoolP("version", "V", false, "Print version information")

	root.AddCommand(newMigrateCmd(c), newVersionCmd(c))
	return root
}

// setup runs before every command: verbosity, config, color and telemetry.
func (c *cli) setup(cmd *cobra.Command) error {
	debug.SetOutput(c.stderr)
	debug.SetVerbose(c.verbose)
	debug.SetQuiet(c.quiet)

	dir := c.projectFlag
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return FatalError("cannot determine working directory: %v", err)
		}
		dir = wd
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return FatalError("invalid project directory %q: %v", dir, err)
	}
	info, err := os.Stat(abs)
	if err != nil || !info.IsDir() {
		return FatalErrorWithHint(fmt.Errorf("project directory %s does not exist", abs),
			"Pass an existing directory with --project")
	}
	c.projectDir = abs

	if err := config.InitializeFrom(abs); err != nil {
		return FatalErrorWithHint(err, "Fix or remove the config file")
	}
	if cmd.Flags().Changed("json") {
		config.Set(config.KeyJSON, c.jsonFlag)
	}
	applyMigrateFlagOverrides(cmd)
	debug.Logger().Debug("config loaded", "project", abs, "file", config.ConfigFileUsed())

	ui.InitColor()

	err = telemetry.Init(cmd.Context(), "accbmad", Version, telemetry.Settings{
		Enabled:  config.GetBool(config.KeyOTelEnabled),
		Stdout:   config.GetBool(config.KeyOTelStdout),
		Endpoint: telemetry.EndpointFromEnv(),
		Out:      c.stderr,
	})
	if err != nil {
		WarnError(c.stderr, "telemetry disabled: %v", err)
	}
	if c.metrics, err = telemetry.NewMigrationMetrics(); err != nil {
		WarnError(c.stderr, "migration metrics unavailable: %v", err)
	}
	return nil
}

func (c *cli) jsonOutput() bool {
	return config.GetBool(config.KeyJSON)
}
