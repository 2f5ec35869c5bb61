// Package commands implements CLI command handlers for statweave.
package commands

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/statweave/statweave/internal/aggregate"
	"github.com/statweave/statweave/internal/build"
	"github.com/statweave/statweave/internal/config"
	"github.com/statweave/statweave/internal/discovery"
	"github.com/statweave/statweave/internal/export"
	"github.com/statweave/statweave/internal/modules"
	"github.com/statweave/statweave/internal/orchestrator"
	"github.com/statweave/statweave/internal/templates"
	"github.com/statweave/statweave/internal/version"
)

// ErrModuleFailures is returned when a report was produced but at least one
// module failed. main maps it to a distinct exit status.
var ErrModuleFailures = errors.New("one or more modules failed")

// RunCommand holds flag state for the run command.
type RunCommand struct {
	configPath     string
	title          string
	moduleIDs      []string
	excludeModules []string
	template       string
	outputDir      string
	filename       string
	force          bool
	noDataDir      bool
	dataFormat     string
	zipDataDir     bool
	fileList       string
	ignore         []string
	ignoreDirs     []string
	verbose        bool
	quiet          bool

	// stdout and stderr are injectable for tests.
	stdout io.Writer
	stderr io.Writer
}

// NewRunCommand creates the run command.
func NewRunCommand() *cobra.Command {
	return newRunCommandWithStreams(os.Stdout, os.Stderr)
}

func newRunCommandWithStreams(stdout, stderr io.Writer) *cobra.Command {
	rc := &RunCommand{stdout: stdout, stderr: stderr}

	cmd := &cobra.Command{
		Use:   "run [root...]",
		Short: "Aggregate analysis tool logs into a report",
		Long: "Discover tool output logs under the given roots, run the extraction\n" +
			"modules over them, and build a single report plus an optional data export.",
		Args: cobra.ArbitraryArgs,
		RunE: rc.run,
	}

	cmd.Flags().StringVarP(&rc.configPath, "config", "c", "", "Explicit config file path")
	cmd.Flags().StringVar(&rc.title, "title", "", "Report title")
	cmd.Flags().StringSliceVarP(&rc.moduleIDs, "modules", "m", nil, "Module IDs or glob patterns to run (default: all)")
	cmd.Flags().StringSliceVar(&rc.excludeModules, "exclude-modules", nil, "Module IDs or glob patterns to exclude")
	cmd.Flags().StringVarP(&rc.template, "template", "t", "", "Report template (default, slim)")
	cmd.Flags().StringVarP(&rc.outputDir, "output-dir", "o", "", "Directory for the report and data export")
	cmd.Flags().StringVarP(&rc.filename, "filename", "n", "", "Report file name; '-' writes the report to stdout")
	cmd.Flags().BoolVarP(&rc.force, "force", "f", false, "Overwrite an existing report and data directory")
	cmd.Flags().BoolVar(&rc.noDataDir, "no-data-dir", false, "Skip the machine-readable data export")
	cmd.Flags().StringVar(&rc.dataFormat, "data-format", "", "Data export format: tsv, json, yaml")
	cmd.Flags().BoolVarP(&rc.zipDataDir, "zip-data-dir", "z", false, "Archive the data export after promotion")
	cmd.Flags().StringVarP(&rc.fileList, "file-list", "l", "", "Read candidate file paths from this file instead of walking roots")
	cmd.Flags().StringSliceVar(&rc.ignore, "ignore", nil, "File name glob patterns to ignore during discovery")
	cmd.Flags().StringSliceVar(&rc.ignoreDirs, "ignore-dirs", nil, "Directory base names to prune during discovery")
	cmd.Flags().BoolVarP(&rc.verbose, "verbose", "v", false, "Verbose logging")
	cmd.Flags().BoolVarP(&rc.quiet, "quiet", "q", false, "Only log warnings and errors")

	return cmd
}

// run is the RunE handler: resolve configuration, then drive the full
// discover / extract / aggregate / build sequence.
func (rc *RunCommand) run(cmd *cobra.Command, args []string) error {
	log := rc.newLogger()

	cfg, err := config.Load(rc.configPath)
	if err != nil {
		return err
	}

	runCfg, err := rc.resolveRunConfig(cmd, cfg, args)
	if err != nil {
		return err
	}

	return rc.execute(cmd, log, runCfg)
}

// execute runs the core sequence against a resolved RunConfig. The build
// workspace is released on every exit path.
func (rc *RunCommand) execute(cmd *cobra.Command, log *slog.Logger, runCfg *config.RunConfig) error {
	registry, err := modules.Builtin()
	if err != nil {
		return err
	}

	runSet, err := registry.Resolve(runCfg.Modules, runCfg.ExcludeModules)
	if err != nil {
		return err
	}

	tmplRegistry, err := templates.NewRegistry()
	if err != nil {
		return err
	}

	files, err := discovery.Discover(runCfg)
	if err != nil {
		return err
	}

	log.Info("discovery finished", "files", len(files), "modules", len(runSet))

	ws, err := build.NewWorkspace(runCfg.ExportData)
	if err != nil {
		return err
	}
	defer func() {
		closeErr := ws.Close()
		if closeErr != nil {
			log.Warn("workspace cleanup failed", "error", closeErr)
		}
	}()

	pipeline := build.NewPipeline(runCfg, tmplRegistry, log, version.Version, rc.stdout)

	// The template is assembled before the module loop so module-declared
	// assets staged during the loop overlay template files on collision.
	tmpl, err := pipeline.AssembleTemplate(ws)
	if err != nil {
		return err
	}

	report, runErr := orchestrator.New(runCfg, log).Run(cmd.Context(), runSet, files, ws)
	if runErr != nil {
		if errors.Is(runErr, orchestrator.ErrNoResults) && report.HasFailures() {
			return fmt.Errorf("%w: %w", ErrModuleFailures, runErr)
		}

		return runErr
	}

	buildErr := rc.buildReport(ws, runCfg, pipeline, tmpl, report)
	if buildErr != nil {
		return buildErr
	}

	rc.printSummary(runCfg, report)

	if report.HasFailures() {
		return fmt.Errorf("%w: %v", ErrModuleFailures, report.FailedModules())
	}

	return nil
}

// buildReport drives the build pipeline stages past module execution:
// pre-flight, data export staging, render, promote.
func (rc *RunCommand) buildReport(
	ws *build.Workspace,
	runCfg *config.RunConfig,
	pipeline *build.Pipeline,
	tmpl templates.Template,
	report *aggregate.Report,
) error {
	err := pipeline.Preflight()
	if err != nil {
		return err
	}

	if runCfg.ExportData {
		err = export.WriteDir(ws.DataDir, report, runCfg.DataFormat)
		if err != nil {
			return err
		}
	}

	rendered, err := pipeline.Render(ws, tmpl, report)
	if err != nil {
		return err
	}

	return pipeline.Promote(ws, tmpl, rendered)
}

// newLogger builds the slog logger per verbosity flags, writing to stderr.
func (rc *RunCommand) newLogger() *slog.Logger {
	level := slog.LevelInfo
	if rc.verbose {
		level = slog.LevelDebug
	}

	if rc.quiet {
		level = slog.LevelWarn
	}

	return slog.New(slog.NewTextHandler(rc.stderr, &slog.HandlerOptions{Level: level}))
}

// resolveRunConfig merges CLI flags over the file configuration into the
// immutable RunConfig. A changed flag always wins over the file value.
func (rc *RunCommand) resolveRunConfig(cmd *cobra.Command, cfg *config.Config, roots []string) (*config.RunConfig, error) {
	flags := cmd.Flags()

	pick := func(name, flagValue, cfgValue string) string {
		if flags.Changed(name) {
			return flagValue
		}

		return cfgValue
	}

	pickSlice := func(name string, flagValue, cfgValue []string) []string {
		if flags.Changed(name) {
			return flagValue
		}

		return cfgValue
	}

	outputDir := pick("output-dir", rc.outputDir, cfg.OutputDir)
	filename := pick("filename", rc.filename, cfg.Filename)
	stdout := filename == config.StdoutFilename

	runCfg := &config.RunConfig{
		Roots:          roots,
		FileList:       rc.fileList,
		Modules:        pickSlice("modules", rc.moduleIDs, cfg.Modules),
		ExcludeModules: pickSlice("exclude-modules", rc.excludeModules, cfg.ExcludeModules),
		IgnorePatterns: pickSlice("ignore", rc.ignore, cfg.IgnorePatterns),
		IgnoreDirs:     pickSlice("ignore-dirs", rc.ignoreDirs, cfg.IgnoreDirs),
		Template:       pick("template", rc.template, cfg.Template),
		Title:          pick("title", rc.title, cfg.Title),
		Stdout:         stdout,
		Force:          rc.force || cfg.Force,
		ExportData:     cfg.MakeDataDir && !rc.noDataDir,
		DataFormat:     pick("data-format", rc.dataFormat, cfg.DataFormat),
		ZipData:        rc.zipDataDir || cfg.ZipDataDir,
		SampleNames:    cfg.SampleNames,
	}

	if !stdout {
		runCfg.ReportPath = filepath.Join(outputDir, filename)
	}

	if runCfg.ExportData {
		runCfg.DataDir = filepath.Join(outputDir, config.DefaultDataDirName)
	}

	err := runCfg.Validate()
	if err != nil {
		return nil, err
	}

	return runCfg, nil
}

// printSummary writes the end-of-run summary table to stderr.
func (rc *RunCommand) printSummary(runCfg *config.RunConfig, report *aggregate.Report) {
	w := table.NewWriter()
	w.SetOutputMirror(rc.stderr)
	w.AppendRow(table.Row{"Samples", len(report.GeneralStats.Samples())})
	w.AppendRow(table.Row{"Modules with results", len(report.Results())})

	if runCfg.Stdout {
		w.AppendRow(table.Row{"Report", "(stdout)"})
	} else {
		w.AppendRow(table.Row{"Report", runCfg.ReportPath})
	}

	if runCfg.ExportData {
		w.AppendRow(table.Row{"Data export", runCfg.DataDir})
	}

	if report.HasFailures() {
		w.AppendRow(table.Row{"Failed modules", color.RedString("%v", report.FailedModules())})
	}

	w.Render()
}
