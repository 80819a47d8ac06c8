package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/ledgertools/beanport/dedup"
	"github.com/ledgertools/beanport/institution"
	"github.com/ledgertools/beanport/ledgerstate"
	"github.com/ledgertools/beanport/pipeline"
	"github.com/ledgertools/beanport/reader"
	csvreader "github.com/ledgertools/beanport/reader/csv"
	ofxreader "github.com/ledgertools/beanport/reader/ofx"
	"github.com/ledgertools/beanport/scan"
	"github.com/ledgertools/beanport/ui"
)

const version = "0.1.0"

var (
	versionFlag = flag.Bool("version", false, "Show version")

	configFile = flag.String("config", "", "Institution config file (required)")
	inputDir   = flag.String("input", "", "Input directory containing statements (required)")
	dryRun     = flag.Bool("dry-run", false, "Show what would be imported without writing")
	verbose    = flag.Bool("verbose", false, "Show detailed import logs")

	outputFile = flag.String("output", "", "Output ledger file (default: stdout)")

	stateFile  = flag.String("state", "", "Fingerprint state file (JSON)")
	sqliteFile = flag.String("sqlite", "", "Fingerprint store database (SQLite)")
)

func main() {
	flag.Usage = func() {
		fmt.Fprint(os.Stderr, `beanport - Statement importer generating plain-text ledger entries

Usage:
  beanport [flags]

Flags:
`)
		flag.PrintDefaults()
		fmt.Fprint(os.Stderr, `
Examples:
  # Import all statements to stdout
  beanport -config schwab.yaml -input ~/statements

  # Import to file with fingerprint tracking
  beanport -config schwab.yaml -input ~/statements -output imported.beancount -state state.json

  # Dry run with verbose output
  beanport -config schwab.yaml -input ~/statements -dry-run -verbose

`)
	}

	flag.Parse()

	if *versionFlag {
		fmt.Printf("beanport version %s\n", version)
		os.Exit(0)
	}

	if *configFile == "" {
		fmt.Fprintf(os.Stderr, "Error: -config flag is required\n\n")
		flag.Usage()
		os.Exit(1)
	}
	if *inputDir == "" {
		fmt.Fprintf(os.Stderr, "Error: -input flag is required\n\n")
		flag.Usage()
		os.Exit(1)
	}
	if *stateFile != "" && *sqliteFile != "" {
		fmt.Fprintf(os.Stderr, "Error: -state and -sqlite are mutually exclusive\n\n")
		flag.Usage()
		os.Exit(1)
	}

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cfg, err := institution.Load(*configFile)
	if err != nil {
		return fmt.Errorf("failed to load config %s: %w", *configFile, err)
	}

	pipe, err := pipeline.New(cfg)
	if err != nil {
		return fmt.Errorf("failed to build pipeline: %w", err)
	}

	if !*verbose {
		ui.Header("Importing Financial Statements")
		ui.Step(1, 4, "Scanning directory")
	} else {
		fmt.Fprintf(os.Stderr, "Scanning directory: %s\n", *inputDir)
	}

	files, err := scan.New(*inputDir).Scan()
	if err != nil {
		return fmt.Errorf("failed to scan directory %s: %w", *inputDir, err)
	}
	paths := matchingPaths(files, cfg.FilenamePattern)

	if *verbose {
		fmt.Fprintf(os.Stderr, "Found %d statement files (%d matching)\n", len(files), len(paths))
		for _, p := range paths {
			fmt.Fprintf(os.Stderr, "  - %s\n", p)
		}
	} else {
		ui.Success(fmt.Sprintf("Found %d statement files", len(paths)))
	}

	if *dryRun {
		fmt.Printf("Dry run complete. Would process %d files.\n", len(paths))
		return nil
	}

	if len(paths) == 0 {
		return fmt.Errorf("no statement files found in %s\n\nPlease check:\n  - Directory path is correct\n  - Files have supported extensions (.qfx, .ofx, .csv)\n  - The institution filename pattern %q matches your files\n\nRun with -verbose to see file discovery details", *inputDir, cfg.FilenamePattern)
	}

	reg, err := buildRegistry()
	if err != nil {
		return fmt.Errorf("failed to build reader registry: %w", err)
	}
	if *verbose {
		fmt.Fprintf(os.Stderr, "Registered readers: %v\n", reg.Names())
	}

	if !*verbose {
		ui.Step(2, 4, "Loading fingerprint state")
	}
	existing, record, saveState, err := openState()
	if err != nil {
		return err
	}

	if !*verbose {
		ui.Step(3, 4, "Processing statements")
	} else {
		fmt.Fprintln(os.Stderr, "\nProcessing statements...")
	}

	result := pipe.ProcessFiles(ctx, reg, paths, existing)
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("import interrupted: %w", err)
	}

	// State is saved before the output is written. If the output write
	// fails afterwards the next run skips the already recorded entries
	// instead of emitting them twice.
	now := time.Now()
	for _, fp := range result.Fingerprints {
		if err := record(fp, filepath.Base(*inputDir), now); err != nil {
			return fmt.Errorf("failed to record fingerprint: %w", err)
		}
	}
	if err := saveState(); err != nil {
		return fmt.Errorf("failed to save fingerprint state before writing output: %w", err)
	}

	if !*verbose {
		ui.Step(4, 4, "Writing ledger entries")
	}
	if err := writeEntriesOutput(result); err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "\n")
	result.Report.Render(os.Stderr)

	if n := len(result.Report.FileFailures); n > 0 {
		return fmt.Errorf("%d file(s) failed to import", n)
	}
	if !*verbose {
		ui.Success(fmt.Sprintf("Imported %d entries", result.Report.Emitted))
	}
	return nil
}

// matchingPaths filters scan results against the institution's filename
// pattern. An empty pattern matches everything.
func matchingPaths(files []scan.Result, pattern string) []string {
	paths := make([]string, 0, len(files))
	for _, f := range files {
		if pattern != "" {
			ok, err := filepath.Match(pattern, filepath.Base(f.Path))
			if err != nil || !ok {
				continue
			}
		}
		paths = append(paths, f.Path)
	}
	return paths
}

func buildRegistry() (*reader.Registry, error) {
	csvr, err := csvreader.New(csvreader.BrokerageSchema())
	if err != nil {
		return nil, err
	}
	return reader.NewRegistry(ofxreader.New(), csvr), nil
}

// openState wires the configured fingerprint backend: the JSON state file,
// the SQLite store, or a throwaway in-memory set. It returns the read-only
// set for the run, a record function for new fingerprints, and a final save.
func openState() (dedup.Set, func(fp, sourceID string, ts time.Time) error, func() error, error) {
	switch {
	case *stateFile != "":
		state, err := ledgerstate.LoadState(*stateFile)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, nil, nil, fmt.Errorf("failed to load state file %q: %w\n\nThe state file exists but cannot be loaded. Deleting it would cause\nall transactions to be reprocessed as new. Back it up and inspect it\nbefore resetting", *stateFile, err)
			}
			state = ledgerstate.NewState()
			if *verbose {
				fmt.Fprintf(os.Stderr, "State file not found, creating new state\n")
			}
		} else if *verbose {
			fmt.Fprintf(os.Stderr, "Loaded state with %d fingerprints\n", len(state.Fingerprints))
		}
		save := func() error { return ledgerstate.SaveState(state, *stateFile) }
		return state, state.Record, save, nil

	case *sqliteFile != "":
		store, err := ledgerstate.OpenSQLite(*sqliteFile)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to open fingerprint store %q: %w", *sqliteFile, err)
		}
		snapshot, err := store.Snapshot()
		if err != nil {
			store.Close()
			return nil, nil, nil, fmt.Errorf("failed to snapshot fingerprint store: %w", err)
		}
		if *verbose {
			fmt.Fprintf(os.Stderr, "Loaded store with %d fingerprints\n", len(snapshot))
		}
		return snapshot, store.Record, store.Close, nil

	default:
		set := make(dedup.MapSet)
		record := func(fp, sourceID string, ts time.Time) error {
			set.Add(fp)
			return nil
		}
		return set, record, func() error { return nil }, nil
	}
}

// writeEntriesOutput renders the run's entries to the output file or stdout.
func writeEntriesOutput(result *pipeline.Result) error {
	var w io.Writer = os.Stdout
	if *outputFile != "" {
		f, err := os.Create(*outputFile)
		if err != nil {
			return fmt.Errorf("failed to create output file %s: %w", *outputFile, err)
		}
		defer f.Close()
		w = f
	}

	for i := range result.Entries {
		if i > 0 {
			if _, err := fmt.Fprintln(w); err != nil {
				return fmt.Errorf("failed to write output: %w", err)
			}
		}
		if err := result.Entries[i].Render(w); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
	}

	if *outputFile != "" && *verbose {
		fmt.Fprintf(os.Stderr, "Output written to %s\n", *outputFile)
	}
	return nil
}
