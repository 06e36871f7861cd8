// Package plate loads a three-exposure plate scan and splits it into its
// blue, green and red bands.
//
// The scan is a single grayscale image with the three exposures stacked
// vertically: blue on top, green in the middle, red at the bottom.
package plate

import (
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"log"
	"os"
	"path/filepath"
	"strings"

	"gocv.io/x/gocv"
	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
)

// Channel identifies one of the three stacked exposures.
type Channel int

const (
	Blue  Channel = iota // Top band
	Green                // Middle band, the registration reference
	Red                  // Bottom band
)

// Channels lists the bands in stacking order.
var Channels = [3]Channel{Blue, Green, Red}

func (c Channel) String() string {
	switch c {
	case Blue:
		return "blue"
	case Green:
		return "green"
	case Red:
		return "red"
	default:
		return "unknown"
	}
}

var (
	// ErrUnsupportedFormat is returned for files whose extension is not an image format we decode.
	ErrUnsupportedFormat = errors.New("unsupported image format")
	// ErrBadPlateSize is returned when the scan cannot hold three non-empty bands.
	ErrBadPlateSize = errors.New("plate too small to split into three bands")
)

// Plate is a loaded scan and its three band views.
type Plate struct {
	Path       string
	Gray       gocv.Mat    // Full scan, single channel 8-bit
	Bands      [3]gocv.Mat // Regions of Gray, indexed by Channel
	BandHeight int
	Width      int
}

// Load decodes the image at path, converts it to 8-bit grayscale and splits it.
func Load(path string) (*Plate, error) {
	if !IsSupportedFormat(path) {
		return nil, fmt.Errorf("%s: %w", path, ErrUnsupportedFormat)
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer file.Close()

	img, format, err := image.Decode(file)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	gray := toGray(img)
	mat, err := grayToMat(gray)
	if err != nil {
		return nil, fmt.Errorf("failed to convert image: %w", err)
	}
	defer mat.Close()

	log.Printf("Plate: loaded %s %s (%dx%d)", format, path, gray.Rect.Dx(), gray.Rect.Dy())
	return FromMat(path, mat)
}

// FromMat splits a single-channel 8-bit Mat into bands. The input is copied;
// the caller keeps ownership of gray.
func FromMat(path string, gray gocv.Mat) (*Plate, error) {
	if gray.Empty() {
		return nil, fmt.Errorf("empty image: %w", ErrBadPlateSize)
	}
	if gray.Channels() != 1 || gray.Type() != gocv.MatTypeCV8U {
		return nil, fmt.Errorf("expected 8-bit single channel image, got %d channels type %v", gray.Channels(), gray.Type())
	}

	rows, cols := gray.Rows(), gray.Cols()
	bandHeight := rows / 3
	if bandHeight == 0 || cols == 0 {
		return nil, fmt.Errorf("%dx%d: %w", cols, rows, ErrBadPlateSize)
	}
	if rem := rows - 3*bandHeight; rem != 0 {
		log.Printf("Plate: height %d not divisible by 3, dropping %d bottom row(s)", rows, rem)
	}

	p := &Plate{
		Path:       path,
		Gray:       gray.Clone(),
		BandHeight: bandHeight,
		Width:      cols,
	}
	for i := range p.Bands {
		rect := image.Rect(0, i*bandHeight, cols, (i+1)*bandHeight)
		p.Bands[i] = p.Gray.Region(rect)
	}
	return p, nil
}

// Band returns the view for a channel. The Mat is owned by the Plate.
func (p *Plate) Band(c Channel) gocv.Mat {
	return p.Bands[c]
}

// Size returns the band size as (width, height).
func (p *Plate) Size() image.Point {
	return image.Point{X: p.Width, Y: p.BandHeight}
}

// Strip returns the three bands side by side in B, G, R order.
// The caller must close the result.
func (p *Plate) Strip() gocv.Mat {
	bg := gocv.NewMat()
	defer bg.Close()
	gocv.Hconcat(p.Bands[Blue], p.Bands[Green], &bg)

	strip := gocv.NewMat()
	gocv.Hconcat(bg, p.Bands[Red], &strip)
	return strip
}

// Close releases the band views and the underlying scan.
func (p *Plate) Close() error {
	for i := range p.Bands {
		p.Bands[i].Close()
	}
	return p.Gray.Close()
}

func toGray(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok && g.Rect.Min == (image.Point{}) && g.Stride == g.Rect.Dx() {
		return g
	}
	b := img.Bounds()
	gray := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(gray, gray.Bounds(), img, b.Min, draw.Src)
	return gray
}

func grayToMat(g *image.Gray) (gocv.Mat, error) {
	view, err := gocv.NewMatFromBytes(g.Rect.Dy(), g.Rect.Dx(), gocv.MatTypeCV8U, g.Pix)
	if err != nil {
		return gocv.Mat{}, err
	}
	defer view.Close()
	// Detach from the Go-owned pixel buffer.
	return view.Clone(), nil
}

// SupportedFormats returns the list of supported image formats.
func SupportedFormats() []string {
	return []string{".jpg", ".jpeg", ".png", ".tif", ".tiff", ".bmp"}
}

// IsSupportedFormat checks if the given path has a supported image format.
func IsSupportedFormat(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, format := range SupportedFormats() {
		if ext == format {
			return true
		}
	}
	return false
}
