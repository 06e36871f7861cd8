// Package display routes pipeline images to highgui windows or to PNG files.
package display

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gocv.io/x/gocv"
)

// Sink receives named images from the pipeline. Wait marks the end of a
// group of images; interactive sinks block there until the user reacts.
type Sink interface {
	Show(name string, img gocv.Mat) error
	Wait() error
	Close() error
}

// WindowSink opens one window per name and blocks on a key press in Wait.
type WindowSink struct {
	windows map[string]*gocv.Window
	order   []string
	last    *gocv.Window
}

// NewWindowSink creates an interactive sink.
func NewWindowSink() *WindowSink {
	return &WindowSink{windows: make(map[string]*gocv.Window)}
}

// Show displays img in the window called name.
func (s *WindowSink) Show(name string, img gocv.Mat) error {
	if img.Empty() {
		return fmt.Errorf("show %s: empty image", name)
	}
	w, ok := s.windows[name]
	if !ok {
		w = gocv.NewWindow(name)
		// Only the Qt highgui backend honours this; GTK keeps a resizable window.
		w.SetWindowProperty(gocv.WindowPropertyAutosize, gocv.WindowAutosize)
		s.windows[name] = w
		s.order = append(s.order, name)
	}
	w.IMShow(img)
	s.last = w
	return nil
}

// Wait blocks until a key is pressed in any open window.
func (s *WindowSink) Wait() error {
	if s.last == nil {
		return nil
	}
	s.last.WaitKey(0)
	return nil
}

// Close destroys every window opened by the sink.
func (s *WindowSink) Close() error {
	var errs []error
	for _, name := range s.order {
		if err := s.windows[name].Close(); err != nil {
			errs = append(errs, fmt.Errorf("close window %s: %w", name, err))
		}
	}
	s.windows = make(map[string]*gocv.Window)
	s.order = nil
	s.last = nil
	return errors.Join(errs...)
}

// FileSink writes every image as <dir>/<name>.png.
type FileSink struct {
	Dir     string
	Written []string
}

// NewFileSink creates dir if needed.
func NewFileSink(dir string) (*FileSink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	return &FileSink{Dir: dir}, nil
}

var unsafeName = regexp.MustCompile(`[^a-z0-9_-]+`)

// FileName turns a window title into a file name.
func FileName(name string) string {
	slug := unsafeName.ReplaceAllString(strings.ToLower(name), "-")
	slug = strings.Trim(slug, "-")
	if slug == "" {
		slug = "image"
	}
	return slug + ".png"
}

// Show writes img to disk.
func (s *FileSink) Show(name string, img gocv.Mat) error {
	if img.Empty() {
		return fmt.Errorf("write %s: empty image", name)
	}
	path := filepath.Join(s.Dir, FileName(name))
	if !gocv.IMWrite(path, img) {
		return fmt.Errorf("write %s: encoder failed", path)
	}
	log.Printf("Display: wrote %s", path)
	s.Written = append(s.Written, path)
	return nil
}

// Wait is a no-op for files.
func (s *FileSink) Wait() error {
	return nil
}

// Close is a no-op for files.
func (s *FileSink) Close() error {
	return nil
}

// Multi fans every image out to several sinks and stops at the first error.
type Multi []Sink

// Show forwards img to each sink in order.
func (m Multi) Show(name string, img gocv.Mat) error {
	for _, s := range m {
		if err := s.Show(name, img); err != nil {
			return err
		}
	}
	return nil
}

// Wait waits on each sink in order.
func (m Multi) Wait() error {
	for _, s := range m {
		if err := s.Wait(); err != nil {
			return err
		}
	}
	return nil
}

// Close closes every sink and joins their errors.
func (m Multi) Close() error {
	var errs []error
	for _, s := range m {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
