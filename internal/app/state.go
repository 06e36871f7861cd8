// Package app ties loading, alignment and presentation of a plate together.
package app

import (
	"context"
	"fmt"
	"log"
	"sync"

	"plate-aligner/internal/alignment"
	"plate-aligner/internal/compose"
	"plate-aligner/internal/config"
	"plate-aligner/internal/display"
	"plate-aligner/internal/features"
	"plate-aligner/internal/plate"
)

// Window names, also used to derive output file names.
const (
	WindowBands      = "BGR"
	WindowBlueGreen  = "BlueGreenMatches"
	WindowRedGreen   = "RedGreenMatches"
	WindowComparison = "comparison"
	WindowAligned    = "aligned"
	WindowNaive      = "naive"
)

// EventType identifies different session events.
type EventType int

const (
	EventPlateLoaded EventType = iota
	EventAlignmentComplete
	EventClosed
)

// EventListener is called when an event occurs.
type EventListener func(data interface{})

// State holds the current plate, its alignment and the settings used.
type State struct {
	mu sync.RWMutex

	Config config.Config
	Plate  *plate.Plate
	Result *alignment.Result

	listeners map[EventType][]EventListener
}

// NewState creates a session with the given settings.
func NewState(cfg config.Config) *State {
	return &State{
		Config:    cfg,
		listeners: make(map[EventType][]EventListener),
	}
}

// On registers an event listener for the specified event type.
func (s *State) On(event EventType, listener EventListener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners[event] = append(s.listeners[event], listener)
}

// Emit triggers all listeners for the specified event type.
func (s *State) Emit(event EventType, data interface{}) {
	s.mu.RLock()
	listeners := s.listeners[event]
	s.mu.RUnlock()

	for _, listener := range listeners {
		listener(data)
	}
}

// LoadPlate replaces the current plate, discarding any previous alignment.
func (s *State) LoadPlate(path string) error {
	p, err := plate.Load(path)
	if err != nil {
		return fmt.Errorf("load plate %s: %w", path, err)
	}

	s.mu.Lock()
	s.release()
	s.Plate = p
	s.mu.Unlock()

	s.Emit(EventPlateLoaded, p)
	return nil
}

// SetPlate installs an already loaded plate. The State takes ownership.
func (s *State) SetPlate(p *plate.Plate) {
	s.mu.Lock()
	s.release()
	s.Plate = p
	s.mu.Unlock()

	s.Emit(EventPlateLoaded, p)
}

// Align registers the current plate with the session settings.
func (s *State) Align(ctx context.Context) (*alignment.Result, error) {
	s.mu.RLock()
	p := s.Plate
	cfg := s.Config
	s.mu.RUnlock()

	if p == nil {
		return nil, fmt.Errorf("no plate loaded")
	}
	opts, err := alignment.OptionsFromConfig(cfg)
	if err != nil {
		return nil, err
	}

	res, err := alignment.Align(ctx, p, opts)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.Result != nil {
		s.Result.Close()
	}
	s.Result = res
	s.mu.Unlock()

	s.Emit(EventAlignmentComplete, res)
	return res, nil
}

// ShowBands sends the three bands side by side to sink.
func (s *State) ShowBands(sink display.Sink) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.Plate == nil {
		return fmt.Errorf("no plate loaded")
	}

	strip := s.Plate.Strip()
	defer strip.Close()
	return sink.Show(WindowBands, strip)
}

// ShowMatches sends the kept matches of both pairs to sink.
func (s *State) ShowMatches(sink display.Sink) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.Plate == nil || s.Result == nil {
		return fmt.Errorf("nothing aligned yet")
	}

	ref := plate.Green
	for _, item := range []struct {
		ch   plate.Channel
		name string
	}{
		{plate.Blue, WindowBlueGreen},
		{plate.Red, WindowRedGreen},
	} {
		pr, ok := s.Result.Pair(item.ch)
		if !ok {
			continue
		}
		vis := features.DrawMatches(s.Plate.Band(item.ch), s.Result.Features[item.ch],
			s.Plate.Band(ref), s.Result.Features[ref], pr.Matches)
		err := sink.Show(item.name, vis)
		vis.Close()
		if err != nil {
			return err
		}
	}
	return nil
}

// ShowComparison sends the naive | aligned composite to sink. With
// separate set, the two merges are also sent on their own.
func (s *State) ShowComparison(sink display.Sink, separate bool) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.Plate == nil || s.Result == nil {
		return fmt.Errorf("nothing aligned yet")
	}

	if separate {
		naive, err := compose.Naive(s.Plate)
		if err != nil {
			return err
		}
		err = sink.Show(WindowNaive, naive)
		naive.Close()
		if err != nil {
			return err
		}

		aligned, err := compose.Aligned(s.Plate, s.Result)
		if err != nil {
			return err
		}
		err = sink.Show(WindowAligned, aligned)
		aligned.Close()
		if err != nil {
			return err
		}
	}

	cmp, err := compose.Comparison(s.Plate, s.Result)
	if err != nil {
		return err
	}
	defer cmp.Close()
	return sink.Show(WindowComparison, cmp)
}

// Run performs the whole viewer sequence: bands, alignment, matches
// (if enabled) and the comparison. The sink waits once after each group.
func (s *State) Run(ctx context.Context, sink display.Sink, separate bool) error {
	if err := s.ShowBands(sink); err != nil {
		return err
	}
	if err := sink.Wait(); err != nil {
		return err
	}
	if _, err := s.Align(ctx); err != nil {
		return err
	}
	if s.Config.DrawMatches {
		if err := s.ShowMatches(sink); err != nil {
			return err
		}
		if err := sink.Wait(); err != nil {
			return err
		}
	}
	if err := s.ShowComparison(sink, separate); err != nil {
		return err
	}
	return sink.Wait()
}

// Close releases the plate and alignment.
func (s *State) Close() error {
	s.mu.Lock()
	s.release()
	s.mu.Unlock()
	s.Emit(EventClosed, nil)
	return nil
}

// release must be called with mu held.
func (s *State) release() {
	if s.Result != nil {
		s.Result.Close()
		s.Result = nil
	}
	if s.Plate != nil {
		if err := s.Plate.Close(); err != nil {
			log.Printf("Session: closing plate: %v", err)
		}
		s.Plate = nil
	}
}
