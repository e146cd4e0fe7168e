// csvtrans — batch CSV field translation with an offline engine.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/localekit/csvtrans/batch"
	"github.com/localekit/csvtrans/columns"
	"github.com/localekit/csvtrans/config"
	"github.com/localekit/csvtrans/csvfile"
	"github.com/localekit/csvtrans/engine"
	"github.com/localekit/csvtrans/i18n"
	"github.com/localekit/csvtrans/langmeta"
	"github.com/localekit/csvtrans/lockfile"
	"github.com/localekit/csvtrans/output"
)

// Version information (set via -ldflags during build)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// ANSI colors
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[0;31m"
	colorGreen  = "\033[0;32m"
	colorYellow = "\033[1;33m"
	colorBlue   = "\033[0;34m"
)

func logInfo(format string, args ...any) {
	fmt.Fprintf(os.Stderr, colorBlue+"[INFO]"+colorReset+" "+format+"\n", args...)
}

func logSuccess(format string, args ...any) {
	fmt.Fprintf(os.Stderr, colorGreen+"[OK]"+colorReset+" "+format+"\n", args...)
}

func logWarning(format string, args ...any) {
	fmt.Fprintf(os.Stderr, colorYellow+"[WARN]"+colorReset+" "+format+"\n", args...)
}

func logError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, colorRed+"[ERROR]"+colorReset+" "+format+"\n", args...)
}

// ---------------------------------------------------------------------------
// Global flag
// ---------------------------------------------------------------------------

var rootDir string

// ---------------------------------------------------------------------------
// Root command
// ---------------------------------------------------------------------------

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "csvtrans",
		Short: "Batch CSV field translation with an offline engine",
		Long: `csvtrans — batch CSV field translation with an offline engine.

Reads CSV files from the input directory, translates the columns selected
in column_data.json, and writes one JSON file per input file under
output/<target-lang>/. HTML markup in fields is preserved; emoji survive
the engine untouched.

Commands:
  translate    Translate configured CSV files
  list         Show configured input files and supported languages
  interactive  Pick languages and files through a menu
  version      Show version information`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global persistent flag — inherited by all subcommands
	root.PersistentFlags().StringVar(&rootDir, "root", ".", "Project root directory")

	root.AddCommand(
		newTranslateCmd(),
		newListCmd(),
		newInteractiveCmd(),
		newVersionCmd(),
	)

	return root
}

func main() {
	i18n.Init("")

	if err := newRootCmd().Execute(); err != nil {
		logError("%v", err)
		os.Exit(1)
	}
}

// ---------------------------------------------------------------------------
// version (display version information)
// ---------------------------------------------------------------------------

func newVersionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long:  `Display version, commit hash, and build date.`,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("csvtrans version %s\n", version)
			fmt.Printf("  commit:    %s\n", commit)
			fmt.Printf("  built:     %s\n", date)
		},
	}

	return cmd
}

// ---------------------------------------------------------------------------
// list (read-only: configured files + supported languages)
// ---------------------------------------------------------------------------

func newListCmd() *cobra.Command {
	var showLangs bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Show configured input files and supported languages",
		Long: `List the CSV files that are both present in the input directory and
configured in column_data.json, with their translate column counts.

With --langs, also print the supported language table.`,
		Run: func(cmd *cobra.Command, args []string) {
			runList(showLangs)
		},
	}

	cmd.Flags().BoolVar(&showLangs, "langs", false, "Also list supported languages")

	return cmd
}

func runList(showLangs bool) {
	cfg, colCfg := loadProject()

	files := configuredFiles(cfg, colCfg)
	if len(files) == 0 {
		logInfo(i18n.T("No CSV files found in %s"), cfg.InputDir)
	} else {
		fmt.Fprintf(os.Stderr, "\n%s%s%s\n", colorBlue, i18n.T("Files"), colorReset)
		fmt.Fprintln(os.Stderr, strings.Repeat("─", 60))
		for _, f := range files {
			spec, err := colCfg.Resolve(f)
			if err != nil {
				fmt.Fprintf(os.Stderr, "  %-30s %sinvalid config%s\n", f, colorRed, colorReset)
				continue
			}
			fmt.Fprintf(os.Stderr, "  %-30s %d translate, %d skip\n",
				f, len(spec.Translate), len(spec.Skip))
		}
		fmt.Fprintln(os.Stderr)
	}

	if showLangs {
		fmt.Fprintf(os.Stderr, "%sLanguages%s\n", colorBlue, colorReset)
		fmt.Fprintln(os.Stderr, strings.Repeat("─", 60))
		for _, code := range langmeta.Supported {
			m := langmeta.Registry[code]
			fmt.Fprintf(os.Stderr, "  %-4s %-14s %s\n", code, m.Name, m.Native)
		}
		fmt.Fprintln(os.Stderr)
	}
}

// configuredFiles returns the CSV files that exist in the input directory
// and have a routing entry, sorted by name.
func configuredFiles(cfg *config.Config, colCfg *columns.Config) []string {
	var files []string
	for _, f := range colCfg.Files() {
		if _, err := os.Stat(filepath.Join(cfg.InputDir, f)); err == nil {
			files = append(files, f)
		}
	}
	sort.Strings(files)
	return files
}

// ---------------------------------------------------------------------------
// translate
// ---------------------------------------------------------------------------

func newTranslateCmd() *cobra.Command {
	var (
		source string
		target string
		files  []string
		auto   bool
	)

	cmd := &cobra.Command{
		Use:   "translate",
		Short: "Translate configured CSV files",
		Long: `Translate the configured columns of CSV files from the input directory.

Each output is one JSON array per input file, written atomically under
output/<target-lang>/. Columns listed under "skip" in column_data.json are
copied verbatim; rows whose translation fails keep their original text.

Examples:
  # All configured files with the default pair
  csvtrans translate --auto

  # One file, English to Spanish
  csvtrans translate -s en -t es -f products.csv`,
		Run: func(cmd *cobra.Command, args []string) {
			runTranslate(source, target, files, auto)
		},
	}

	cmd.Flags().StringVarP(&source, "source", "s", "", "Source language code")
	cmd.Flags().StringVarP(&target, "target", "t", "", "Target language code")
	cmd.Flags().StringSliceVarP(&files, "file", "f", nil, "CSV file(s) to translate (default: all configured)")
	cmd.Flags().BoolVarP(&auto, "auto", "a", false, "Use defaults for everything not specified")

	_ = cmd.RegisterFlagCompletionFunc("source", completeLangs)
	_ = cmd.RegisterFlagCompletionFunc("target", completeLangs)

	return cmd
}

func completeLangs(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	out := make([]string, 0, len(langmeta.Supported))
	for _, code := range langmeta.Supported {
		out = append(out, code+"\t"+langmeta.Registry[code].Name)
	}
	return out, cobra.ShellCompDirectiveNoFileComp
}

func runTranslate(source, target string, files []string, auto bool) {
	cfg, colCfg := loadProject()

	if source == "" {
		source = cfg.SourceLang
	}
	if target == "" {
		target = cfg.TargetLang
	}
	if auto {
		// --auto overrides any explicit file selection.
		files = nil
	}

	if !langmeta.IsSupported(source) {
		logWarning("Unknown source language %q, passing through to the engine", source)
	}
	if !langmeta.IsSupported(target) {
		logWarning("Unknown target language %q, passing through to the engine", target)
	}
	if source == target {
		logError("Source and target language are both %q", source)
		os.Exit(1)
	}

	if len(files) == 0 {
		files = configuredFiles(cfg, colCfg)
		if len(files) == 0 {
			logError(i18n.T("No CSV files found in %s"), cfg.InputDir)
			os.Exit(1)
		}
	}

	os.Exit(runJobs(cfg, colCfg, source, target, files))
}

// ---------------------------------------------------------------------------
// interactive
// ---------------------------------------------------------------------------

func newInteractiveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "interactive",
		Short: "Pick languages and files through a menu",
		Long: `Interactively choose the source language, target language, and input
files, then run the translation.`,
		Run: func(cmd *cobra.Command, args []string) {
			runInteractive()
		},
	}

	return cmd
}

func runInteractive() {
	cfg, colCfg := loadProject()

	available := configuredFiles(cfg, colCfg)
	if len(available) == 0 {
		logError(i18n.T("No CSV files found in %s"), cfg.InputDir)
		os.Exit(1)
	}

	sel, err := runMenu(cfg, available)
	if err != nil {
		if errors.Is(err, errMenuCancelled) {
			logWarning(i18n.T("Program cancelled"))
			os.Exit(0)
		}
		logError("%v", err)
		os.Exit(1)
	}

	os.Exit(runJobs(cfg, colCfg, sel.source, sel.target, sel.files))
}

// ---------------------------------------------------------------------------
// job runner (shared by translate and interactive)
// ---------------------------------------------------------------------------

// loadProject reads csvtrans.yaml and column_data.json from the root
// directory, exiting on errors that make any run impossible.
func loadProject() (*config.Config, *columns.Config) {
	cfg, err := config.Load(rootDir)
	if err != nil {
		logError("%v", err)
		os.Exit(1)
	}

	colCfg, err := columns.Load(cfg.ColumnConfigPath())
	if err != nil {
		logError("%v", err)
		os.Exit(1)
	}

	return cfg, colCfg
}

// runJobs translates each file in sequence and returns the process exit
// code: 0 when every file succeeded, 1 otherwise.
func runJobs(cfg *config.Config, colCfg *columns.Config, source, target string, files []string) int {
	lock, err := lockfile.Acquire(cfg.OutputDir)
	if err != nil {
		logError("%v", err)
		return 1
	}
	defer lock.Release()

	// Shared translation cache; the engine guards it internally.
	var cache *engine.Cache
	if !cfg.NoCache {
		cache = engine.OpenCache("csvtrans")
	}

	newEngine := func() (engine.Engine, error) {
		return &engine.Argos{Command: cfg.EngineCommand, Cache: cache}, nil
	}

	// Preflight: catch a missing binary or an uninstalled language pair
	// before any file is touched.
	probe := &engine.Argos{Command: cfg.EngineCommand, Cache: cache}
	if err := probe.Verify(context.Background(), source, target); err != nil {
		logError("%v", err)
		return 1
	}

	// Graceful cancellation: first interrupt cancels dispatch, in-flight
	// batches drain and partial results are kept.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	go func() {
		<-sigCh
		logWarning("Interrupted, finishing in-flight batches...")
		cancel()
	}()

	logInfo("%s: %s (%s)", i18n.T("Source language"), source, langmeta.Resolve(source).Name)
	logInfo("%s: %s (%s)", i18n.T("Target language"), target, langmeta.Resolve(target).Name)

	failed := 0
	for _, fileID := range files {
		if ctx.Err() != nil {
			break
		}
		if err := runFile(ctx, cfg, colCfg, source, target, fileID, newEngine); err != nil {
			logError("%s: %v", fileID, err)
			failed++
		}
	}

	if cache != nil {
		hits, misses := cache.Stats()
		if hits+misses > 0 {
			logInfo("Cache: %d hits, %d misses", hits, misses)
		}
		if err := cache.Save(); err != nil {
			logWarning("Saving translation cache: %v", err)
		}
	}

	if ctx.Err() != nil {
		logWarning("Interrupted, %d of %d file(s) done", len(files)-failed, len(files))
		return 1
	}
	if failed > 0 {
		logError("%d of %d file(s) failed", failed, len(files))
		return 1
	}
	logSuccess(i18n.T("Done"))
	return 0
}

// runFile translates one CSV file and writes its JSON output.
func runFile(ctx context.Context, cfg *config.Config, colCfg *columns.Config, source, target, fileID string, newEngine engine.Factory) error {
	spec, err := colCfg.Resolve(fileID)
	if err != nil {
		// A column in both translate and skip aborts this file only.
		return err
	}

	file, err := csvfile.ParseFile(filepath.Join(cfg.InputDir, fileID))
	if err != nil {
		return err
	}
	if file.Degraded {
		logWarning("%s: non-UTF-8 input, decoded as Latin-1", fileID)
	}
	if len(file.Rows) == 0 {
		logInfo("%s: no data rows", fileID)
	}

	bar := progressbar.NewOptions(len(file.Rows),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription(fmt.Sprintf("[cyan]%s[reset]", fileID)),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}))

	job := &batch.Job{
		FileID: fileID,
		Source: source,
		Target: target,
		Header: file.Header,
		Rows:   file.Rows,
		Spec:   spec,
	}
	opts := batch.Options{
		Workers:   cfg.Workers,
		MaxRows:   cfg.BatchRows,
		MaxBytes:  cfg.BatchBytes,
		NewEngine: newEngine,
		OnProgress: func(done, total int) {
			_ = bar.Set(done)
		},
		Logf: logWarning,
	}

	start := time.Now()
	res, err := batch.Run(ctx, job, opts)
	_ = bar.Finish()
	fmt.Fprintln(os.Stderr)
	if res == nil {
		return err
	}

	path, werr := output.Write(cfg.OutputDir, target, fileID, file.Header, res.Rows)
	if werr != nil {
		return werr
	}

	printSummary(fileID, path, res, time.Since(start))
	return err
}

// printSummary logs the per-file job outcome.
func printSummary(fileID, path string, res *batch.Result, elapsed time.Duration) {
	rate := 0.0
	if sec := elapsed.Seconds(); sec > 0 {
		rate = float64(len(res.Rows)) / sec
	}
	logInfo("%s: "+i18n.N("%d row translated", "%d rows translated", len(res.Rows))+" in %s (%.1f rows/s)",
		fileID, len(res.Rows), elapsed.Round(time.Millisecond), rate)

	if res.PartialRows > 0 {
		logWarning(i18n.N("%d row kept original text", "%d rows kept original text", res.PartialRows), res.PartialRows)
	}
	if res.DegradedRows > 0 {
		logWarning("%d row(s) used a degraded path (markup stripped or Latin-1 decode)", res.DegradedRows)
	}
	if len(res.FailedBatches) > 0 {
		logError(i18n.N("%d batch failed", "%d batches failed", len(res.FailedBatches)), len(res.FailedBatches))
	}

	logSuccess(i18n.T("Output written to %s"), path)
}
