package main

import (
	"flag"

	"plate-aligner/internal/config"
)

// Flags that override a config.Config field.
const (
	flagImage      = "image"
	flagOut        = "out"
	flagFeatures   = "features"
	flagKeep       = "keep"
	flagModel      = "model"
	flagThreshold  = "threshold"
	flagIterations = "iterations"
	flagMatches    = "matches"
)

// applyFlags overlays the flags given on the command line onto cfg. Flags
// left at their defaults do not touch the value from the environment.
func applyFlags(cfg config.Config, fs *flag.FlagSet) config.Config {
	fs.Visit(func(f *flag.Flag) {
		g, ok := f.Value.(flag.Getter)
		if !ok {
			return
		}
		switch v := g.Get().(type) {
		case string:
			switch f.Name {
			case flagImage:
				cfg.ImagePath = v
			case flagOut:
				cfg.OutputDir = v
			case flagModel:
				cfg.Model = v
			}
		case int:
			switch f.Name {
			case flagFeatures:
				cfg.MaxFeatures = v
			case flagIterations:
				cfg.RansacIterations = v
			}
		case float64:
			switch f.Name {
			case flagKeep:
				cfg.KeepFraction = v
			case flagThreshold:
				cfg.RansacThreshold = v
			}
		case bool:
			if f.Name == flagMatches {
				cfg.DrawMatches = v
			}
		}
	})
	return cfg
}
