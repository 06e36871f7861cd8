// Package prefs remembers the last viewer session between runs in a JSON file.
package prefs

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

const prefsFile = "preferences.json"

// Values is what the viewer remembers.
type Values struct {
	LastImage    string  `json:"last_image,omitempty"`
	LastModel    string  `json:"last_model,omitempty"`
	KeepFraction float64 `json:"keep_fraction,omitempty"`
}

// SetLastImage records path in absolute form so it resolves from any working directory.
func (v *Values) SetLastImage(path string) {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	v.LastImage = path
}

// ExistingLastImage returns LastImage if the file is still there.
func (v Values) ExistingLastImage() (string, bool) {
	if v.LastImage == "" {
		return "", false
	}
	if _, err := os.Stat(v.LastImage); err != nil {
		return "", false
	}
	return v.LastImage, true
}

// Prefs is a Values snapshot bound to its backing file. Safe for concurrent use.
type Prefs struct {
	mu     sync.Mutex
	path   string
	values Values
	dirty  bool
}

// Load reads $UserConfigDir/plate-aligner/preferences.json.
func Load() *Prefs {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = filepath.Join(os.Getenv("HOME"), ".config")
	}
	return LoadFrom(filepath.Join(dir, "plate-aligner", prefsFile))
}

// LoadFrom reads preferences from path. A missing or unreadable file yields
// empty Values; the file is rewritten on the next Save.
func LoadFrom(path string) *Prefs {
	p := &Prefs{path: path}
	if data, err := os.ReadFile(path); err == nil {
		if err := json.Unmarshal(data, &p.values); err != nil {
			p.values = Values{}
		}
	}
	return p
}

// Path returns the backing file.
func (p *Prefs) Path() string {
	return p.path
}

// Get returns a copy of the current values.
func (p *Prefs) Get() Values {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.values
}

// Update applies fn to the values and marks them dirty if anything changed.
func (p *Prefs) Update(fn func(*Values)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	next := p.values
	fn(&next)
	if next != p.values {
		p.values = next
		p.dirty = true
	}
}

// Save writes the values to disk, creating the parent directory.
func (p *Prefs) Save() error {
	p.mu.Lock()
	data, err := json.MarshalIndent(p.values, "", "  ")
	p.mu.Unlock()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p.path), 0o755); err != nil {
		return fmt.Errorf("create prefs dir: %w", err)
	}
	if err := os.WriteFile(p.path, data, 0o644); err != nil {
		return err
	}
	p.mu.Lock()
	p.dirty = false
	p.mu.Unlock()
	return nil
}

// SaveIfChanged calls Save only when Update changed something since the last save.
func (p *Prefs) SaveIfChanged() error {
	p.mu.Lock()
	dirty := p.dirty
	p.mu.Unlock()
	if !dirty {
		return nil
	}
	return p.Save()
}
