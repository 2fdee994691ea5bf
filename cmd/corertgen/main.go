// Package main implements the CLI driver for the corertgen dependency
// analyzer and import table generator.
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"runtime/pprof"
	"time"

	"github.com/spf13/cobra"

	"github.com/robot9706/corert/pkg/compile"
)

// Config holds all command-line configuration options for corertgen.
type Config struct {
	Manifest string // path to the compilation manifest
	Verbose  bool   // enables detailed output and statistics
	JSON     bool   // enables JSON output format
	Profile  bool   // enables CPU and memory profiling
	Workers  int    // parallel compilation/discovery workers (0 = NumCPU)
	Out      string // output path ("" = stdout)
}

const exitError = 2

var (
	// Set via ldflags during build.
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

var cfg Config

func main() {
	var rootCmd = &cobra.Command{
		Use:   "corertgen <manifest>",
		Short: "Build the dependency graph and import table for a native image",
		Long: `corertgen loads a compilation manifest, compiles its method bodies into
artifacts, computes the node set reachable from the manifest's roots, and
assigns delay-load import slots in deterministic emission order.`,
		Example: `  corertgen build.yaml                 # Print the node layout
  corertgen -v build.yaml              # Verbose output with statistics
  corertgen --json build.yaml          # Machine-readable layout
  corertgen --out layout.txt build.yaml`,
		Args:               cobra.ExactArgs(1),
		RunE:               runCommand,
		PersistentPreRunE:  setup,
		PersistentPostRunE: teardown,
		SilenceUsage:       true,
		SilenceErrors:      true,
		Version:            version,
	}

	rootCmd.SetVersionTemplate(fmt.Sprintf("corertgen version %s\n  commit: %s\n  built:  %s\n", version, gitCommit, buildTime))

	rootCmd.PersistentFlags().BoolVarP(&cfg.Verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&cfg.JSON, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().BoolVar(&cfg.Profile, "profile", false, "Enable CPU and memory profiling (writes cpu.prof and mem.prof to current directory)")
	rootCmd.PersistentFlags().IntVar(&cfg.Workers, "workers", 0, "Parallel workers for compilation and discovery (0 = NumCPU)")
	rootCmd.PersistentFlags().StringVar(&cfg.Out, "out", "", "Write output to file instead of stdout")

	if err := rootCmd.Execute(); err != nil {
		_ = teardown(nil, nil)
		if err.Error() != "" {
			fmt.Fprintln(os.Stderr, err.Error())
		}
		var cErr codedError
		if errors.As(err, &cErr) {
			os.Exit(cErr.code)
		}
		os.Exit(exitError)
	}
}

func runCommand(cmd *cobra.Command, args []string) error {
	cfg.Manifest = args[0]

	start := time.Now()
	slog.Info("loading manifest", "path", cfg.Manifest)

	manifest, err := compile.LoadManifest(cfg.Manifest)
	if err != nil {
		return errWithCode(fmt.Errorf("load manifest: %w", err), exitError)
	}
	slog.Info("loaded manifest", "module", manifest.Module, "methods", len(manifest.Methods))

	builder := compile.NewBuilder(compile.Options{Workers: cfg.Workers})
	emission, err := builder.Build(manifest)
	if err != nil {
		return errWithCode(fmt.Errorf("build: %w", err), exitError)
	}
	duration := time.Since(start)
	slog.Info("build completed",
		"nodes", len(emission.Nodes),
		"slots", emission.Table.Len(),
		"artifacts", len(emission.Artifacts()),
		"dur", duration)

	if err := writeResults(emission, duration); err != nil {
		return errWithCode(fmt.Errorf("format results: %w", err), exitError)
	}
	return nil
}

func writeResults(emission *compile.Emission, dur time.Duration) error {
	var output string
	if cfg.JSON {
		data, err := json.MarshalIndent(jOutput{
			Module:    emission.Module,
			Nodes:     emission.Layout(),
			SlotCount: emission.Table.Len(),
			Stats: jStats{
				NodeCount:     len(emission.Nodes),
				ArtifactCount: len(emission.Artifacts()),
				BuildDuration: dur,
			},
			Version:   version,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		}, "", "  ")
		if err != nil {
			return fmt.Errorf("marshaling json output: %w", err)
		}
		output = string(data)
	} else {
		output = emission.Render()
	}

	if cfg.Out != "" {
		return os.WriteFile(cfg.Out, []byte(output), 0o644)
	}
	fmt.Print(output)
	return nil
}

type jOutput struct {
	Module    string                `json:"module"`
	Nodes     []compile.LayoutEntry `json:"nodes"`
	SlotCount int                   `json:"slot_count"`
	Stats     jStats                `json:"stats"`
	Version   string                `json:"version"`
	Timestamp string                `json:"timestamp"`
}

type jStats struct {
	NodeCount     int           `json:"node_count"`
	ArtifactCount int           `json:"artifact_count"`
	BuildDuration time.Duration `json:"build_duration"`
}

var cpuProfile *os.File

func setup(_ *cobra.Command, _ []string) error {
	// Disable logger unless verbose flag is set.
	slog.SetDefault(slog.New(slog.DiscardHandler))
	if cfg.Verbose {
		opts := &slog.HandlerOptions{Level: slog.LevelDebug}
		var handler slog.Handler = slog.NewTextHandler(os.Stderr, opts)
		if cfg.JSON {
			handler = slog.NewJSONHandler(os.Stderr, opts)
		}
		logger := slog.New(handler)
		slog.SetDefault(logger)
	}

	if !cfg.Profile {
		return nil
	}

	// Start CPU profiling.
	var err error
	cpuProfile, err = os.Create("cpu.prof")
	if err != nil {
		return fmt.Errorf("creating cpu.prof: %w", err)
	}
	if err := pprof.StartCPUProfile(cpuProfile); err != nil {
		_ = cpuProfile.Close()
		return fmt.Errorf("starting CPU profile: %w", err)
	}
	slog.Info("cpu profiling started", "file", "cpu.prof")
	return nil
}

func teardown(_ *cobra.Command, _ []string) error {
	if !cfg.Profile || cpuProfile == nil {
		return nil
	}

	// Stop CPU profiling and close file.
	pprof.StopCPUProfile()
	defer cpuProfile.Close()
	slog.Info("cpu profiling stopped", "file", "cpu.prof")

	// Write memory profile.
	memFile, err := os.Create("mem.prof")
	if err != nil {
		return fmt.Errorf("creating mem.prof: %w", err)
	}
	defer memFile.Close()
	runtime.GC() // Get up-to-date statistics
	if err := pprof.WriteHeapProfile(memFile); err != nil {
		return fmt.Errorf("writing memory profile: %w", err)
	}
	slog.Info("memory profiling completed", "file", "mem.prof")
	return nil
}

func errWithCode(err error, code int) error {
	return codedError{err: err, code: code}
}

type codedError struct {
	err  error
	code int
}

func (e codedError) Error() string {
	if e.err != nil {
		return e.err.Error()
	}
	return ""
}
