package main

import (
	"flag"
	"io"
	"testing"

	"plate-aligner/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testFlagSet() *flag.FlagSet {
	fs := flag.NewFlagSet("aligntest", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.String(flagImage, "", "")
	fs.String(flagOut, "", "")
	fs.Int(flagFeatures, 0, "")
	fs.Float64(flagKeep, 0, "")
	fs.String(flagModel, "", "")
	fs.Float64(flagThreshold, 0, "")
	fs.Int(flagIterations, 0, "")
	fs.Bool(flagMatches, true, "")
	fs.Bool("separate", true, "")
	return fs
}

func TestApplyFlags(t *testing.T) {
	fromEnv := config.Default()
	fromEnv.DrawMatches = false
	fromEnv.KeepFraction = 0.2

	tests := []struct {
		name string
		args []string
		want func(*config.Config)
	}{
		{
			name: "no flags keep environment",
			args: nil,
			want: func(*config.Config) {},
		},
		{
			name: "unrelated flag keeps draw matches off",
			args: []string{"-separate=false"},
			want: func(*config.Config) {},
		},
		{
			name: "explicit matches wins",
			args: []string{"-matches"},
			want: func(c *config.Config) { c.DrawMatches = true },
		},
		{
			name: "numeric and string overrides",
			args: []string{"-features", "800", "-keep", "0.5", "-threshold", "1.5", "-iterations", "50", "-model", "affine", "-image", "a.png", "-out", "o"},
			want: func(c *config.Config) {
				c.MaxFeatures = 800
				c.KeepFraction = 0.5
				c.RansacThreshold = 1.5
				c.RansacIterations = 50
				c.Model = config.ModelAffine
				c.ImagePath = "a.png"
				c.OutputDir = "o"
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := testFlagSet()
			require.NoError(t, fs.Parse(tt.args))

			want := fromEnv
			tt.want(&want)
			assert.Equal(t, want, applyFlags(fromEnv, fs))
		})
	}
}

func TestApplyFlagsExplicitZeroIsRejectedLater(t *testing.T) {
	fs := testFlagSet()
	require.NoError(t, fs.Parse([]string{"-keep", "0"}))

	cfg := applyFlags(config.Default(), fs)
	assert.Zero(t, cfg.KeepFraction)
	assert.Error(t, cfg.Validate())
}
