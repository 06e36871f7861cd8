// Package main provides the interactive viewer for aligning stacked plate scans.
package main

import (
	"context"
	"log"
	"os"

	"plate-aligner/internal/app"
	"plate-aligner/internal/config"
	"plate-aligner/internal/display"
	"plate-aligner/internal/prefs"
	"plate-aligner/internal/version"
)

const appTitle = "Plate Aligner"

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Printf("Starting %s %s", appTitle, version.String())

	cfg, err := config.Load(".env")
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	appPrefs := prefs.Load()

	// Command line wins, then PLATE_IMAGE, then the last plate opened, then the default.
	imagePath := cfg.ImagePath
	last := appPrefs.Get()
	if os.Getenv(config.EnvImage) == "" {
		if remembered, ok := last.ExistingLastImage(); ok {
			imagePath = remembered
		} else if last.LastImage != "" {
			log.Printf("Session: last plate %s is gone, using %s", last.LastImage, imagePath)
		}
	}
	if last.LastModel != "" {
		log.Printf("Session: last run used %s model, keep %.2f", last.LastModel, last.KeepFraction)
	}
	if len(os.Args) > 1 {
		imagePath = os.Args[1]
	}

	state := app.NewState(cfg)
	defer state.Close()

	state.On(app.EventPlateLoaded, func(interface{}) {
		appPrefs.Update(func(v *prefs.Values) { v.SetLastImage(imagePath) })
	})
	state.On(app.EventAlignmentComplete, func(interface{}) {
		appPrefs.Update(func(v *prefs.Values) {
			v.LastModel = cfg.Model
			v.KeepFraction = cfg.KeepFraction
		})
	})

	if err := state.LoadPlate(imagePath); err != nil {
		log.Fatalf("Failed to load plate %s: %v", imagePath, err)
	}

	var sink display.Sink = display.NewWindowSink()
	// An explicit output directory also keeps a copy of every window on disk.
	if os.Getenv(config.EnvOutputDir) != "" {
		files, err := display.NewFileSink(cfg.OutputDir)
		if err != nil {
			log.Fatalf("Failed to prepare %s: %v", cfg.OutputDir, err)
		}
		sink = display.Multi{files, sink}
	}
	defer sink.Close()

	if err := state.Run(context.Background(), sink, false); err != nil {
		log.Printf("Alignment failed: %v", err)
	}

	if err := appPrefs.SaveIfChanged(); err != nil {
		log.Printf("Failed to save preferences to %s: %v", appPrefs.Path(), err)
	}
}
