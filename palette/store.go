package palette

import (
	"fmt"
	"slices"
	"strings"
	"sync"
)

var vga = mustNew(
	RGB{0, 0, 0},       // black
	RGB{0, 0, 170},     // blue
	RGB{0, 170, 0},     // green
	RGB{0, 170, 170},   // cyan
	RGB{170, 0, 0},     // red
	RGB{170, 0, 170},   // magenta
	RGB{170, 85, 0},    // brown
	RGB{170, 170, 170}, // light gray
	RGB{85, 85, 85},    // dark gray
	RGB{85, 85, 255},   // light blue
	RGB{85, 255, 85},   // light green
	RGB{85, 255, 255},  // light cyan
	RGB{255, 85, 85},   // light red
	RGB{255, 85, 255},  // light magenta
	RGB{255, 255, 85},  // yellow
	RGB{255, 255, 255}, // white
)

func ramp(a, b RGB) Palette {
	p, err := Interpolate(a, b, 16, Linear)
	if err != nil {
		panic(err)
	}
	return p
}

// Builtin returns the palettes shipped with the camera, in menu order.
func Builtin() *Store {
	s := NewStore()
	black := RGB{0, 0, 0}
	amber := RGB{255, 176, 0}
	green := RGB{0, 255, 0}

	s.Register("VGA", vga)
	s.Register("CGA_CYAN", mustNew(black, RGB{0, 255, 255}, RGB{255, 0, 255}, RGB{255, 255, 255}))
	s.Register("CGA_RGBY", mustNew(black, RGB{255, 0, 0}, green, RGB{255, 255, 0}))
	s.Register("AMBER", mustNew(black, amber))
	s.Register("AMBER_STEP", ramp(black, amber))
	s.Register("GREEN_PHOSPHOR", mustNew(black, green))
	s.Register("GREEN_STEP", ramp(black, green))
	s.Register("GRAYSCALE", ramp(black, RGB{255, 255, 255}))
	s.reserve()
	return s
}

// Store holds named palettes. Names are case-insensitive. Reserved names
// cannot be replaced.
type Store struct {
	mu       sync.RWMutex
	pals     map[string]Palette
	names    []string
	reserved map[string]bool
}

func NewStore() *Store {
	return &Store{pals: make(map[string]Palette), reserved: make(map[string]bool)}
}

// reserve locks every name registered so far.
func (s *Store) reserve() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range s.names {
		s.reserved[k] = true
	}
}

func (s *Store) Reserved(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.reserved[key(name)]
}

func key(name string) string {
	return strings.ToUpper(strings.TrimSpace(name))
}

// Register adds or replaces a palette. Empty palettes and reserved names are
// rejected.
func (s *Store) Register(name string, p Palette) error {
	k := key(name)
	if k == "" {
		return fmt.Errorf("palette name is empty")
	}
	if p.Len() == 0 {
		return fmt.Errorf("could not register palette %q: %w", name, ErrEmptyPalette)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.reserved[k] {
		return fmt.Errorf("could not register palette %q: %w", name, ErrReservedPalette)
	}
	if _, ok := s.pals[k]; !ok {
		s.names = append(s.names, k)
	}
	s.pals[k] = p
	return nil
}

func (s *Store) Lookup(name string) (Palette, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.pals[key(name)]
	if !ok {
		return Palette{}, fmt.Errorf("%w: %q", ErrUnknownPalette, name)
	}
	return p, nil
}

func (s *Store) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.names)
}

// Next returns the palette name following name in menu order, wrapping
// around. step may be negative.
func (s *Store) Next(name string, step int) string {
	names := s.Names()
	if len(names) == 0 {
		return ""
	}
	i := slices.Index(names, key(name))
	if i < 0 {
		return names[0]
	}
	n := len(names)
	return names[((i+step)%n+n)%n]
}
