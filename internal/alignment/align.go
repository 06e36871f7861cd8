// Package alignment registers the blue and red plate bands onto the green band.
package alignment

import (
	"context"
	"fmt"
	"image"
	"log"
	"strings"

	"plate-aligner/internal/config"
	"plate-aligner/internal/features"
	"plate-aligner/internal/plate"
	"plate-aligner/pkg/geometry"

	"gocv.io/x/gocv"
	"golang.org/x/sync/errgroup"
)

// Model selects the motion model fitted between bands.
type Model int

const (
	ModelHomography Model = iota
	ModelAffine
)

func (m Model) String() string {
	switch m {
	case ModelHomography:
		return config.ModelHomography
	case ModelAffine:
		return config.ModelAffine
	default:
		return "unknown"
	}
}

// ParseModel maps a config name to a Model.
func ParseModel(name string) (Model, error) {
	switch strings.ToLower(name) {
	case config.ModelHomography, "":
		return ModelHomography, nil
	case config.ModelAffine:
		return ModelAffine, nil
	default:
		return 0, fmt.Errorf("unknown motion model %q", name)
	}
}

// Options configures the alignment process.
type Options struct {
	MaxFeatures      int     // ORB features per band
	KeepFraction     float64 // Share of sorted matches kept
	Model            Model
	RansacThreshold  float64 // Inlier reprojection threshold, pixels
	RansacIterations int     // Affine model only
}

// DefaultOptions returns default alignment options.
func DefaultOptions() Options {
	opts, _ := OptionsFromConfig(config.Default())
	return opts
}

// OptionsFromConfig converts validated settings into Options.
func OptionsFromConfig(c config.Config) (Options, error) {
	model, err := ParseModel(c.Model)
	if err != nil {
		return Options{}, err
	}
	return Options{
		MaxFeatures:      c.MaxFeatures,
		KeepFraction:     c.KeepFraction,
		Model:            model,
		RansacThreshold:  c.RansacThreshold,
		RansacIterations: c.RansacIterations,
	}, nil
}

// PairResult describes the registration of one band onto the reference band.
type PairResult struct {
	Channel    plate.Channel
	RawMatches int
	Matches    []gocv.DMatch // Kept matches, ascending distance; query = Channel, train = reference
	Inliers    int
	Transform  geometry.Homography // Channel -> reference
	RMSError   float64             // Over inliers, pixels
	Overlap    float64             // Fraction of the reference frame covered after warping
}

// Below this coverage the warped band leaves large empty borders in the composite.
const minOverlap = 0.5

// Result holds everything produced by Align.
type Result struct {
	Reference plate.Channel
	Features  [3]*features.Set // Indexed by plate.Channel
	Pairs     []PairResult     // Blue then red
	Warped    [3]gocv.Mat      // Blue and red warped into the reference frame; reference slot unused
}

// Pair returns the registration for ch.
func (r *Result) Pair(ch plate.Channel) (PairResult, bool) {
	for _, p := range r.Pairs {
		if p.Channel == ch {
			return p, true
		}
	}
	return PairResult{}, false
}

// Close releases the descriptor and warped matrices.
func (r *Result) Close() error {
	closeSets(r.Features)
	for _, p := range r.Pairs {
		r.Warped[p.Channel].Close()
	}
	return nil
}

// DetectAll runs ORB on the three bands concurrently.
func DetectAll(ctx context.Context, p *plate.Plate, maxFeatures int) ([3]*features.Set, error) {
	var sets [3]*features.Set
	g, gctx := errgroup.WithContext(ctx)
	for _, ch := range plate.Channels {
		ch := ch
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			set, err := features.Detect(p.Band(ch), maxFeatures)
			if err != nil {
				return fmt.Errorf("%s band: %w", ch, err)
			}
			sets[ch] = set
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		closeSets(sets)
		return [3]*features.Set{}, err
	}
	return sets, nil
}

// Register matches src against ref and fits the configured motion model src -> ref.
func Register(ctx context.Context, ch plate.Channel, src, ref *features.Set, opts Options) (PairResult, error) {
	if err := ctx.Err(); err != nil {
		return PairResult{}, err
	}

	kept, raw, err := features.Match(src, ref, opts.KeepFraction)
	if err != nil {
		return PairResult{}, fmt.Errorf("%s: %w", ch, err)
	}
	srcPts, refPts, err := features.Points(kept, src, ref)
	if err != nil {
		return PairResult{}, fmt.Errorf("%s: %w", ch, err)
	}

	result := PairResult{Channel: ch, RawMatches: raw, Matches: kept}

	var inliers []int
	switch opts.Model {
	case ModelAffine:
		var t geometry.AffineTransform
		t, inliers, err = EstimateAffine(srcPts, refPts, opts.RansacIterations, opts.RansacThreshold)
		result.Transform = geometry.HomographyFromAffine(t)
	default:
		result.Transform, inliers, err = EstimateHomography(srcPts, refPts, opts.RansacThreshold)
	}
	if err != nil {
		return PairResult{}, fmt.Errorf("%s (%d of %d matches kept): %w", ch, len(kept), raw, err)
	}

	result.Inliers = len(inliers)
	inSrc := make([]geometry.Point2D, len(inliers))
	inRef := make([]geometry.Point2D, len(inliers))
	for i, idx := range inliers {
		inSrc[i] = srcPts[idx]
		inRef[i] = refPts[idx]
	}
	result.RMSError = geometry.RMSError(inSrc, inRef, result.Transform.Apply)

	log.Printf("Align: %s -> %s: %d raw, %d kept, %d inliers, rms %.2f px",
		ch, plate.Green, raw, len(kept), result.Inliers, result.RMSError)
	return result, nil
}

// Align detects features on every band, registers blue and red onto green
// and warps them into the green frame. The caller must close the Result.
func Align(ctx context.Context, p *plate.Plate, opts Options) (*Result, error) {
	for _, ch := range plate.Channels {
		band := p.Band(ch)
		if band.Empty() {
			return nil, fmt.Errorf("%s band is empty", ch)
		}
	}

	sets, err := DetectAll(ctx, p, opts.MaxFeatures)
	if err != nil {
		return nil, fmt.Errorf("detect features: %w", err)
	}
	log.Printf("Align: keypoints blue=%d green=%d red=%d",
		sets[plate.Blue].Len(), sets[plate.Green].Len(), sets[plate.Red].Len())

	result := &Result{Reference: plate.Green, Features: sets}

	movers := []plate.Channel{plate.Blue, plate.Red}
	pairs := make([]PairResult, len(movers))
	g, gctx := errgroup.WithContext(ctx)
	for i, ch := range movers {
		i, ch := i, ch
		g.Go(func() error {
			pr, err := Register(gctx, ch, sets[ch], sets[plate.Green], opts)
			if err != nil {
				return err
			}
			pairs[i] = pr
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		result.Close()
		return nil, fmt.Errorf("register: %w", err)
	}
	if err := ctx.Err(); err != nil {
		result.Close()
		return nil, err
	}

	size := p.Size()
	for i := range pairs {
		pr := &pairs[i]
		pr.Overlap = geometry.Overlap(pr.Transform, float64(size.X), float64(size.Y))
		if pr.Overlap < minOverlap {
			log.Printf("Align: %s covers only %.0f%% of the %s frame", pr.Channel, pr.Overlap*100, plate.Green)
		}
		result.Warped[pr.Channel] = warpInto(p.Band(pr.Channel), pr.Transform, opts.Model, size)
	}
	result.Pairs = pairs
	return result, nil
}

func warpInto(src gocv.Mat, h geometry.Homography, model Model, size image.Point) gocv.Mat {
	if model == ModelAffine {
		if t, ok := h.ToAffine(); ok {
			return WarpAffine(src, t, size.X, size.Y)
		}
	}
	return WarpPerspective(src, h, size.X, size.Y)
}

func closeSets(sets [3]*features.Set) {
	for _, s := range sets {
		if s != nil {
			s.Close()
		}
	}
}
