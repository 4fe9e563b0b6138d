package dither

import (
	"fmt"
	"log/slog"
	"math"
	"sync"

	"camdither/palette"
)

const (
	MinExposure    = -2.0
	MaxExposure    = 2.0
	MinTemperature = -1.0
	MaxTemperature = 1.0
)

// Params is one frame's worth of render parameters. Values are copied out of
// Settings so a frame never sees a half-applied change.
type Params struct {
	Exposure    float64
	Strength    float64
	Temperature float64
	PaletteName string
	Base        palette.Palette
	Palette     palette.Palette
}

// Settings is the shared, mutable render state. Setters clamp out-of-range
// values instead of rejecting them. The last write wins.
type Settings struct {
	mu     sync.RWMutex
	store  *palette.Store
	params Params
}

// NewSettings starts at EV 0, full dither strength, neutral temperature and
// the named palette.
func NewSettings(store *palette.Store, paletteName string) (*Settings, error) {
	s := &Settings{
		store: store,
		params: Params{
			Strength: 1,
		},
	}
	if err := s.SetActivePalette(paletteName, 0); err != nil {
		return nil, err
	}
	return s, nil
}

// clamp bounds x to [lo, hi]. NaN falls back to neutral.
func clamp(x, lo, hi, neutral float64) float64 {
	if math.IsNaN(x) {
		return neutral
	}
	if x < lo {
		return lo
	} else if x > hi {
		return hi
	}
	return x
}

func (s *Settings) SetExposureCompensation(ev float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.params.Exposure = clamp(ev, MinExposure, MaxExposure, 0)
}

func (s *Settings) SetDitherStrength(strength float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.params.Strength = clamp(strength, 0, 1, 1)
}

// SetActivePalette resolves a palette by name (or file path), shifts it by
// temp and installs it for subsequent frames. On error nothing changes.
func (s *Settings) SetActivePalette(name string, temp float64) error {
	resolved, base, err := s.store.Resolve(name)
	if err != nil {
		return fmt.Errorf("could not set palette: %w", err)
	}
	temp = clamp(temp, MinTemperature, MaxTemperature, 0)
	derived := palette.ApplyTemperature(base, temp)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.params.PaletteName = resolved
	s.params.Base = base
	s.params.Temperature = temp
	s.params.Palette = derived

	slog.Debug("palette changed", "palette", resolved, "colors", base.Len(), "temperature", temp)
	return nil
}

// SetTemperature re-derives the active palette from its base palette.
func (s *Settings) SetTemperature(temp float64) {
	temp = clamp(temp, MinTemperature, MaxTemperature, 0)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.params.Temperature = temp
	s.params.Palette = palette.ApplyTemperature(s.params.Base, temp)
}

// Snapshot returns the current parameters. Palettes are immutable values, so
// the copy is safe to use for the whole frame.
func (s *Settings) Snapshot() Params {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.params
}
