// Package report prints registration statistics and plots match quality.
package report

import (
	"fmt"
	"image/color"
	"io"
	"math"

	"plate-aligner/internal/alignment"
	"plate-aligner/internal/features"
	"plate-aligner/internal/plate"
	"plate-aligner/pkg/geometry"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// Histogram defaults.
const (
	histogramBins   = 32
	histogramWidth  = 6 * vg.Inch
	histogramHeight = 4 * vg.Inch
)

var pairColors = map[plate.Channel]color.RGBA{
	plate.Blue: {R: 40, G: 90, B: 220, A: 160},
	plate.Red:  {R: 220, G: 50, B: 40, A: 160},
}

// Summary writes a per-pair description of the registration.
func Summary(w io.Writer, p *plate.Plate, res *alignment.Result) error {
	size := p.Size()
	if _, err := fmt.Fprintf(w, "Plate: %s\nBand size: %dx%d\nReference: %s\n",
		p.Path, size.X, size.Y, res.Reference); err != nil {
		return err
	}
	for _, ch := range plate.Channels {
		if s := res.Features[ch]; s != nil {
			fmt.Fprintf(w, "Keypoints %-5s %d\n", ch, s.Len())
		}
	}

	for _, pr := range res.Pairs {
		h := pr.Transform
		t := h.Translation()
		fmt.Fprintf(w, "\n=== %s -> %s ===\n", pr.Channel, res.Reference)
		fmt.Fprintf(w, "Matches: %d raw, %d kept, %d inliers\n", pr.RawMatches, len(pr.Matches), pr.Inliers)
		if math.IsInf(pr.RMSError, 1) {
			fmt.Fprintf(w, "RMS error: n/a\n")
		} else {
			fmt.Fprintf(w, "RMS error: %.3f px\n", pr.RMSError)
		}
		fmt.Fprintf(w, "Translation: (%.2f, %.2f)\n", t.X, t.Y)
		fmt.Fprintf(w, "Overlap: %.1f%%\n", pr.Overlap*100)
		if err := writeMatrix(w, "Homography", h); err != nil {
			return err
		}
		if inv, err := h.Inverse(); err != nil {
			fmt.Fprintf(w, "Inverse (%s -> %s): n/a (%v)\n", res.Reference, pr.Channel, err)
		} else if err := writeMatrix(w, fmt.Sprintf("Inverse (%s -> %s)", res.Reference, pr.Channel), inv); err != nil {
			return err
		}
	}

	// Residual misregistration between the two outer bands, through the reference.
	blue, okB := res.Pair(plate.Blue)
	red, okR := res.Pair(plate.Red)
	if okB && okR {
		if toRed, err := red.Transform.Inverse(); err == nil {
			t := toRed.Compose(blue.Transform).Normalize().Translation()
			if _, err := fmt.Fprintf(w, "\nBlue -> red translation: (%.2f, %.2f)\n", t.X, t.Y); err != nil {
				return err
			}
		}
	}
	return nil
}

func writeMatrix(w io.Writer, title string, h geometry.Homography) error {
	if _, err := fmt.Fprintf(w, "%s:\n", title); err != nil {
		return err
	}
	for r := 0; r < 3; r++ {
		if _, err := fmt.Fprintf(w, "  [% 12.6f % 12.6f % 12.6f]\n", h[r*3], h[r*3+1], h[r*3+2]); err != nil {
			return err
		}
	}
	return nil
}

// MatchHistogram plots the Hamming distances of the kept matches of every
// pair and writes the chart as PNG.
func MatchHistogram(w io.Writer, res *alignment.Result) error {
	p := plot.New()
	p.Title.Text = "Kept match distances"
	p.X.Label.Text = "Hamming distance"
	p.Y.Label.Text = "Matches"

	added := 0
	for _, pr := range res.Pairs {
		if len(pr.Matches) == 0 {
			continue
		}
		h, err := plotter.NewHist(plotter.Values(features.Distances(pr.Matches)), histogramBins)
		if err != nil {
			return fmt.Errorf("histogram %s: %w", pr.Channel, err)
		}
		h.FillColor = pairColors[pr.Channel]
		p.Add(h)
		p.Legend.Add(fmt.Sprintf("%s -> %s", pr.Channel, res.Reference), h)
		added++
	}
	if added == 0 {
		return fmt.Errorf("histogram: no matches to plot")
	}

	wt, err := p.WriterTo(histogramWidth, histogramHeight, "png")
	if err != nil {
		return fmt.Errorf("histogram: %w", err)
	}
	_, err = wt.WriteTo(w)
	return err
}
