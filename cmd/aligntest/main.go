// Command aligntest runs the plate alignment pipeline headless, prints the
// registration report and writes the intermediate images to disk.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"

	"plate-aligner/internal/app"
	"plate-aligner/internal/config"
	"plate-aligner/internal/display"
	"plate-aligner/internal/report"
	"plate-aligner/internal/version"
)

func main() {
	envFile := flag.String("env", ".env", "Optional .env file with PLATE_* settings")
	flag.String(flagImage, "", "Path to the stacked plate scan (overrides PLATE_IMAGE)")
	flag.String(flagOut, "", "Directory for output images (overrides PLATE_OUTPUT_DIR)")
	flag.Int(flagFeatures, 0, "ORB features per band (overrides PLATE_MAX_FEATURES)")
	flag.Float64(flagKeep, 0, "Fraction of best matches kept (overrides PLATE_KEEP_FRACTION)")
	flag.String(flagModel, "", "Motion model: homography or affine (overrides PLATE_MODEL)")
	flag.Float64(flagThreshold, 0, "RANSAC reprojection threshold in pixels (overrides PLATE_RANSAC_THRESHOLD)")
	flag.Int(flagIterations, 0, "RANSAC iterations for the affine model (overrides PLATE_RANSAC_ITERATIONS)")
	flag.Bool(flagMatches, true, "Write the kept-match visualisations (overrides PLATE_DRAW_MATCHES)")
	separate := flag.Bool("separate", true, "Also write the naive and aligned composites on their own")
	hist := flag.Bool("hist", false, "Write a histogram of kept match distances")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("aligntest %s\n", version.String())
		return
	}

	log.SetFlags(log.LstdFlags | log.Lshortfile)

	cfg, err := config.Load(*envFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}
	cfg = applyFlags(cfg, flag.CommandLine)
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid flags: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	state := app.NewState(cfg)
	defer state.Close()

	fmt.Printf("=== Loading plate: %s ===\n", cfg.ImagePath)
	if err := state.LoadPlate(cfg.ImagePath); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load plate: %v\n", err)
		os.Exit(1)
	}

	sink, err := display.NewFileSink(cfg.OutputDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to prepare output: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("\n=== Aligning (%s, %d features, keep %.0f%%) ===\n",
		cfg.Model, cfg.MaxFeatures, cfg.KeepFraction*100)
	if err := state.Run(ctx, sink, *separate); err != nil {
		fmt.Fprintf(os.Stderr, "Alignment failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("\n=== Result ===\n")
	if err := report.Summary(os.Stdout, state.Plate, state.Result); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to print report: %v\n", err)
		os.Exit(1)
	}

	if *hist {
		path := filepath.Join(cfg.OutputDir, "histogram.png")
		if err := writeHistogram(path, state); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to write histogram: %v\n", err)
			os.Exit(1)
		}
		sink.Written = append(sink.Written, path)
	}

	fmt.Printf("\nWrote %d file(s) to %s\n", len(sink.Written), cfg.OutputDir)
	for _, p := range sink.Written {
		fmt.Printf("  %s\n", p)
	}
}

func writeHistogram(path string, state *app.State) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := report.MatchHistogram(f, state.Result); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
