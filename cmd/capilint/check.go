package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/nao1215/capilint/internal/checker"
	"github.com/nao1215/capilint/internal/config"
	"github.com/nao1215/capilint/internal/database"
	"github.com/nao1215/capilint/internal/log"
	"github.com/nao1215/capilint/internal/model"
	"github.com/nao1215/capilint/internal/pipeline"
	"github.com/nao1215/capilint/internal/report"
	"github.com/nao1215/capilint/internal/rules"
	"github.com/nao1215/capilint/internal/source"
)

// errNoInputs is returned when no path yielded a file to check.
var errNoInputs = errors.New("no source files to check")

// NewCheckCmd creates the check command.
func NewCheckCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check [path...]",
		Short: "Check C and Cython sources for macros used as l-values",
		Long: `Check scans files, directories and source archives for Python C-API
macros used as assignment targets, increment operands or address-of operands.

Directories are walked recursively. Tarballs, zips and wheels are opened and
their C and Cython members are checked as "archive!member".

Examples:
  # Check a source tree
  capilint check src/

  # Check an sdist without unpacking it
  capilint check dist/mypkg-1.0.tar.gz

  # Write a Markdown report for a CI job summary
  capilint check --markdown -o report.md .

  # Ignore one rule and everything in the "datetime" category
  capilint check --disable Py_REFCNT --disable datetime .

Configuration file (.capilint.yaml) example:
  defaults:
    exclude: ["third_party/**"]
  paths:
    src/compat:
      disable: [Py_SIZE]
  rules:
    - name: MY_OBJECT_FIELD
      replacement: my_set_object_field`,
		Args: cobra.ArbitraryArgs,
		RunE: runCheckCmd,
	}

	// Scan behavior flags
	cmd.Flags().IntP("workers", "w", config.DefaultWorkers,
		"Number of files checked concurrently")
	cmd.Flags().Duration("file-timeout", config.DefaultFileTimeout,
		"Time limit for one file (0 disables the limit)")
	cmd.Flags().Int64("max-file-size", config.DefaultMaxFileSize,
		"Skip files larger than this many bytes")
	cmd.Flags().Bool("text", false,
		"Check files that look binary")
	cmd.Flags().Bool("include-generated", false,
		"Check files generated by Cython")
	cmd.Flags().Bool("no-archives", false,
		"Do not look inside tarballs, zips and wheels")
	cmd.Flags().StringSlice("ext", nil,
		"File extensions to check, replacing the defaults (e.g. --ext .c,.h)")
	cmd.Flags().StringSliceP("exclude", "x", nil,
		"Glob pattern of paths to skip (repeatable)")

	// Rule flags
	cmd.Flags().StringP("rules", "r", "",
		"Additional YAML rule table")
	cmd.Flags().Bool("no-default-rules", false,
		"Do not load the built-in rule table")
	cmd.Flags().StringSliceP("disable", "d", nil,
		"Rule name or category to disable (repeatable)")

	// Report flags
	cmd.Flags().BoolP("json", "j", false,
		"Output JSON report (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown report (mutually exclusive with --json)")
	cmd.Flags().StringP("output", "o", "",
		"Write report to specified file path (creates directories if needed)")
	cmd.Flags().Bool("tee", false,
		"Also print diagnostics to stdout when --output is set")

	// History flags
	cmd.Flags().String("db-dir", config.XDGDataDir(),
		"Directory of the run history database")
	cmd.Flags().Bool("no-history", false,
		"Do not save this run to the history database")
	cmd.Flags().StringP("label", "l", "",
		"Name of this run in history (default: the absolute input paths)")

	return cmd
}

// runCheckCmd executes the check command.
func runCheckCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := log.NewLogger(cmd.ErrOrStderr(), log.LevelFor(cfg.Verbose, cfg.Quiet), cfg.LogJSON)
	slog.SetDefault(logger)

	return runCheck(cmd.Context(), cfg, cmd.OutOrStdout(), cmd.ErrOrStderr(), logger)
}

// loadConfigFile finds and loads the configuration file into cfg.
// An explicitly named file that does not exist is an error; otherwise a
// missing file leaves cfg unchanged.
func loadConfigFile(cfg *config.Config) error {
	explicitConfigPath := cfg.ConfigFilePath != ""
	configPath := config.FindConfigFile(cfg.ConfigFilePath)

	switch {
	case configPath != "":
		file, err := config.LoadConfigFile(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
		cfg.ApplyFile(file)
	case explicitConfigPath:
		return fmt.Errorf("%w: %s", config.ErrConfigNotFound, cfg.ConfigFilePath)
	}
	return nil
}

// buildConfig creates a Config from the config file and cobra flags.
// Flags are applied after the file so they take precedence.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()
	cfg.Paths = args

	cfg.Verbose = boolFlag(cmd, "verbose")
	cfg.Quiet = boolFlag(cmd, "quiet")
	cfg.LogJSON = boolFlag(cmd, "log-json")
	cfg.NoColor = boolFlag(cmd, "no-color")
	cfg.ConfigFilePath = stringFlag(cmd, "config")

	if err := loadConfigFile(cfg); err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	var err error

	if cfg.Workers, err = flags.GetInt("workers"); err != nil {
		return nil, err
	}
	if cfg.FileTimeout, err = flags.GetDuration("file-timeout"); err != nil {
		return nil, err
	}
	if cfg.MaxFileSize, err = flags.GetInt64("max-file-size"); err != nil {
		return nil, err
	}
	if cfg.Text, err = flags.GetBool("text"); err != nil {
		return nil, err
	}
	if cfg.Generated, err = flags.GetBool("include-generated"); err != nil {
		return nil, err
	}

	noArchives, err := flags.GetBool("no-archives")
	if err != nil {
		return nil, err
	}
	cfg.Archives = !noArchives

	if flags.Changed("ext") {
		exts, err := flags.GetStringSlice("ext")
		if err != nil {
			return nil, err
		}
		cfg.Extensions = normalizeExtensions(exts)
	}

	exclude, err := flags.GetStringSlice("exclude")
	if err != nil {
		return nil, err
	}
	cfg.Exclude = append(cfg.Exclude, exclude...)

	if err := applyRuleFlags(cmd, cfg); err != nil {
		return nil, err
	}

	if cfg.JSONReport, err = flags.GetBool("json"); err != nil {
		return nil, err
	}
	if cfg.MarkdownReport, err = flags.GetBool("markdown"); err != nil {
		return nil, err
	}
	if cfg.ReportFile, err = flags.GetString("output"); err != nil {
		return nil, err
	}
	if cfg.Tee, err = flags.GetBool("tee"); err != nil {
		return nil, err
	}

	if cfg.DBDir, err = flags.GetString("db-dir"); err != nil {
		return nil, err
	}
	noHistory, err := flags.GetBool("no-history")
	if err != nil {
		return nil, err
	}
	cfg.SaveToDB = !noHistory

	if cfg.Label, err = flags.GetString("label"); err != nil {
		return nil, err
	}
	if cfg.Label == "" {
		cfg.Label = defaultLabel(cfg.Paths)
	}

	return cfg, nil
}

// applyRuleFlags applies --rules, --no-default-rules and --disable.
// The check and rules commands share them.
func applyRuleFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()

	if flags.Changed("rules") {
		rulesFile, err := flags.GetString("rules")
		if err != nil {
			return err
		}
		cfg.RulesFile = rulesFile
	}

	noDefaults, err := flags.GetBool("no-default-rules")
	if err != nil {
		return err
	}
	if noDefaults {
		cfg.NoDefaultRules = true
	}

	disable, err := flags.GetStringSlice("disable")
	if err != nil {
		return err
	}
	cfg.Disable = append(cfg.Disable, disable...)
	return nil
}

// normalizeExtensions adds a leading dot where missing.
func normalizeExtensions(exts []string) []string {
	out := make([]string, 0, len(exts))
	for _, ext := range exts {
		ext = strings.TrimSpace(ext)
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		out = append(out, ext)
	}
	return out
}

// defaultLabel names a run after its sorted absolute input paths, so that
// repeated runs over the same tree land under the same label.
func defaultLabel(paths []string) string {
	abs := make([]string, 0, len(paths))
	for _, p := range paths {
		if a, err := filepath.Abs(p); err == nil {
			p = a
		}
		abs = append(abs, filepath.ToSlash(p))
	}
	slices.Sort(abs)
	return strings.Join(slices.Compact(abs), " ")
}

// loadRuleSet combines the rule sources named in cfg.
func loadRuleSet(cfg *config.Config) (*rules.RuleSet, error) {
	var inline []rules.SymbolRule
	if cfg.File != nil {
		inline = cfg.File.Rules
	}
	rs, err := rules.Load(rules.LoadOptions{
		NoDefaults: cfg.NoDefaultRules,
		File:       cfg.RulesFile,
		Inline:     inline,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load rules: %w", err)
	}
	return rs, nil
}

// checkerCache hands out one Checker per distinct set of disabled rules.
// Files under the same configured directory share a Checker.
type checkerCache struct {
	mu    sync.Mutex
	base  *rules.RuleSet
	file  *config.File
	byKey map[string]*checker.Checker
}

func newCheckerCache(base *rules.RuleSet, file *config.File) *checkerCache {
	return &checkerCache{
		base:  base,
		file:  file,
		byKey: map[string]*checker.Checker{"": checker.New(base)},
	}
}

// forPath returns the Checker for a file on disk.
func (cc *checkerCache) forPath(path string) *checker.Checker {
	var disable []string
	if cc.file != nil {
		disable = cc.file.GetPathConfig(path).Disable
	}
	key := strings.Join(disable, "\x00")

	cc.mu.Lock()
	defer cc.mu.Unlock()
	if c, ok := cc.byKey[key]; ok {
		return c
	}
	c := checker.New(cc.base.Without(disable...))
	cc.byKey[key] = c
	return c
}

// warnUnknownDisables logs every disable entry, from the flags or the
// configuration file, that names neither a rule nor a category of rs.
func warnUnknownDisables(logger *slog.Logger, rs *rules.RuleSet, cfg *config.Config) {
	for _, name := range rs.Unknown(cfg.Disable...) {
		logger.Warn("disable entry matches no rule or category", "name", name)
	}
	if cfg.File == nil {
		return
	}
	for _, dir := range slices.Sorted(maps.Keys(cfg.File.Paths)) {
		for _, name := range rs.Unknown(cfg.File.Paths[dir].Disable...) {
			logger.Warn("disable entry matches no rule or category", "name", name, "dir", dir)
		}
	}
}

// runCheck collects the inputs, checks them and writes the report.
func runCheck(ctx context.Context, cfg *config.Config, stdout, stderr io.Writer, logger *slog.Logger) error {
	rs, err := loadRuleSet(cfg)
	if err != nil {
		return err
	}
	warnUnknownDisables(logger, rs, cfg)
	base := rs.Without(cfg.Disable...)
	if base.Len() == 0 {
		return fmt.Errorf("every rule is disabled: %w", rules.ErrNoRules)
	}

	logger.Debug("starting check",
		"paths", cfg.Paths,
		"rules", base.Len(),
		"workers", cfg.Workers,
		"saveToDB", cfg.SaveToDB,
	)

	srcOpts := source.Options{
		Extensions:  cfg.Extensions,
		Exclude:     cfg.Exclude,
		Archives:    cfg.Archives,
		MaxFileSize: cfg.MaxFileSize,
	}
	if cfg.File != nil {
		srcOpts.Excluded = cfg.File.Excluded
	}
	collector := source.NewCollector(srcOpts, source.WithLogger(logger))

	rpt := model.NewReport(cfg.Label)
	rpt.RuleCount = base.Len()
	startTime := time.Now()

	inputs, pathErrs := collector.Collect(cfg.Paths)
	for _, err := range pathErrs {
		logger.Debug("input problem", "error", err)
		rpt.AddError(err)
	}

	checkers := newCheckerCache(base, cfg.File)
	bp := pipeline.NewBatchProcessor(
		func(input source.Input) *pipeline.Pipeline {
			return pipeline.DefaultPipeline(input, checkers.forPath(input.Path),
				[]pipeline.Option{pipeline.WithLogger(logger)},
				pipeline.WithPipelineMaxFileSize(cfg.MaxFileSize),
				pipeline.WithPipelineText(cfg.Text),
				pipeline.WithPipelineGenerated(cfg.Generated),
				pipeline.WithPipelineLogger(logger),
			)
		},
		pipeline.WithConcurrency(cfg.Workers),
		pipeline.WithFileTimeout(cfg.FileTimeout),
		pipeline.WithBatchLogger(logger),
	)

	results, batchErr := bp.ProcessBatch(ctx, inputs)
	for _, result := range results {
		rpt.Add(result)
	}
	rpt.Elapsed = time.Since(startTime)

	if err := outputReport(cfg, rpt, stdout); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	if batchErr != nil {
		return fmt.Errorf("check interrupted: %w", batchErr)
	}

	if cfg.SaveToDB {
		if err := saveRun(ctx, cfg.DBDir, rpt, logger); err != nil {
			logger.Warn("run not saved to history", "error", err)
		}
	}

	if !cfg.Quiet {
		writeSummary(stderr, rpt)
	}

	switch {
	case len(inputs) == 0:
		return errNoInputs
	case rpt.HasFindings():
		return errFindings
	default:
		return nil
	}
}

// outputReport writes rpt in the requested format to the report file or
// stdout.
func outputReport(cfg *config.Config, rpt *model.Report, stdout io.Writer) error {
	output := stdout
	if cfg.ReportFile != "" {
		// Create directories if they don't exist
		dir := filepath.Dir(cfg.ReportFile)
		if dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return fmt.Errorf("failed to create output directory: %w", err)
			}
		}

		f, err := os.OpenFile(cfg.ReportFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		output = f
	}

	var writer report.Writer
	switch {
	case cfg.JSONReport:
		writer = report.NewJSONWriter(output, report.WithPrettyPrint(), report.WithVersion(getVersion()))
	case cfg.MarkdownReport:
		writer = report.NewMarkdownWriter(output)
	default:
		f, _ := output.(*os.File)
		writer = report.NewTextWriter(output,
			report.WithVerbose(cfg.Verbose),
			report.WithColor(report.ColorEnabled(f, cfg.NoColor)),
		)
	}

	if cfg.Tee && cfg.ReportFile != "" {
		writer = report.NewMultiWriter(writer, report.NewTextWriter(stdout, report.WithVerbose(cfg.Verbose)))
	}

	_, err := writer.Write(rpt)
	return err
}

// saveRun stores rpt in the history database under dbDir.
func saveRun(ctx context.Context, dbDir string, rpt *model.Report, logger *slog.Logger) error {
	db, err := database.Open(dbDir, database.DefaultOptions())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	id, err := db.SaveRun(ctx, rpt)
	if err != nil {
		return err
	}
	logger.Debug("run saved to history", "id", id, "label", rpt.Label, "path", db.Path())
	return nil
}

// writeSummary prints the one-line run summary.
func writeSummary(w io.Writer, rpt *model.Report) {
	fmt.Fprintf(w, "Found %s finding(s) in %s file(s) (scanned %s files, %s) in %s\n",
		humanize.Comma(int64(rpt.TotalFindings())),
		humanize.Comma(int64(rpt.FilesWithFindings())),
		humanize.Comma(int64(rpt.ScannedFiles())),
		humanize.Bytes(uint64(max(rpt.ScannedBytes, 0))),
		rpt.Elapsed.Round(time.Millisecond),
	)
}
