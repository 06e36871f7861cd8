// Package config holds the tuning knobs for plate alignment and loads them
// from defaults, an optional .env file and the process environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Environment variable names.
const (
	EnvImage            = "PLATE_IMAGE"
	EnvMaxFeatures      = "PLATE_MAX_FEATURES"
	EnvKeepFraction     = "PLATE_KEEP_FRACTION"
	EnvModel            = "PLATE_MODEL"
	EnvRansacThreshold  = "PLATE_RANSAC_THRESHOLD"
	EnvRansacIterations = "PLATE_RANSAC_ITERATIONS"
	EnvDrawMatches      = "PLATE_DRAW_MATCHES"
	EnvOutputDir        = "PLATE_OUTPUT_DIR"
)

// Motion model names accepted by Config.Model.
const (
	ModelHomography = "homography"
	ModelAffine     = "affine"
)

// Config carries every setting the pipeline and the front-ends read.
type Config struct {
	ImagePath        string  // Plate scan to open when none is given on the command line
	MaxFeatures      int     // ORB feature budget per band
	KeepFraction     float64 // Share of best matches kept after sorting (0, 1]
	Model            string  // "homography" or "affine"
	RansacThreshold  float64 // Max reprojection error for an inlier, pixels
	RansacIterations int     // Iterations for the affine RANSAC fit
	DrawMatches      bool    // Render the kept matches for each pair
	OutputDir        string  // Where headless runs write their images
}

// Default returns the stock settings: 5000 ORB features, keep the best 10% of matches, homography model.
func Default() Config {
	return Config{
		ImagePath:        "images/emir.jpg",
		MaxFeatures:      5000,
		KeepFraction:     0.1,
		Model:            ModelHomography,
		RansacThreshold:  3.0,
		RansacIterations: 2000,
		DrawMatches:      true,
		OutputDir:        "out",
	}
}

// Validate checks every field and reports the first invalid one.
func (c Config) Validate() error {
	if c.MaxFeatures <= 0 {
		return fmt.Errorf("invalid MaxFeatures %d, must be positive", c.MaxFeatures)
	}
	if !(c.KeepFraction > 0 && c.KeepFraction <= 1) {
		return fmt.Errorf("invalid KeepFraction %v, must be in (0, 1]", c.KeepFraction)
	}
	switch c.Model {
	case ModelHomography, ModelAffine:
	default:
		return fmt.Errorf("invalid Model %q, has to be %q or %q", c.Model, ModelHomography, ModelAffine)
	}
	if !(c.RansacThreshold > 0) || math.IsInf(c.RansacThreshold, 0) {
		return fmt.Errorf("invalid RansacThreshold %v, must be positive and finite", c.RansacThreshold)
	}
	if c.RansacIterations <= 0 {
		return fmt.Errorf("invalid RansacIterations %d, must be positive", c.RansacIterations)
	}
	return nil
}

// LoadEnvFile loads KEY=VALUE pairs from path into the process environment
// without overriding variables that are already set. A missing file is not an error.
func LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

// FromEnv overlays PLATE_* environment variables onto base.
// Malformed numeric or boolean values are reported rather than ignored.
func FromEnv(base Config) (Config, error) {
	c := base
	var err error

	if v := os.Getenv(EnvImage); v != "" {
		c.ImagePath = v
	}
	if v := os.Getenv(EnvOutputDir); v != "" {
		c.OutputDir = v
	}
	if v := os.Getenv(EnvModel); v != "" {
		c.Model = strings.ToLower(strings.TrimSpace(v))
	}
	if c.MaxFeatures, err = envInt(EnvMaxFeatures, c.MaxFeatures); err != nil {
		return base, err
	}
	if c.RansacIterations, err = envInt(EnvRansacIterations, c.RansacIterations); err != nil {
		return base, err
	}
	if c.KeepFraction, err = envFloat(EnvKeepFraction, c.KeepFraction); err != nil {
		return base, err
	}
	if c.RansacThreshold, err = envFloat(EnvRansacThreshold, c.RansacThreshold); err != nil {
		return base, err
	}
	if v := os.Getenv(EnvDrawMatches); v != "" {
		b, perr := strconv.ParseBool(v)
		if perr != nil {
			return base, fmt.Errorf("%s: %w", EnvDrawMatches, perr)
		}
		c.DrawMatches = b
	}
	return c, nil
}

// Load returns defaults overlaid with envFile and then the process environment, validated.
func Load(envFile string) (Config, error) {
	if err := LoadEnvFile(envFile); err != nil {
		return Config{}, err
	}
	c, err := FromEnv(Default())
	if err != nil {
		return Config{}, err
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func envInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return fallback, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func envFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return fallback, fmt.Errorf("%s: %w", key, err)
	}
	return f, nil
}
