package ui

import "math"

// Gesture tuning, in pixels.
const (
	GestureThreshold  = 30
	ExposureTravel    = 150
	TemperatureTravel = 200
)

type GestureMode int

const (
	GestureNone GestureMode = iota
	GestureExposure
	GestureTemperature
)

func (m GestureMode) String() string {
	switch m {
	case GestureExposure:
		return "exposure"
	case GestureTemperature:
		return "temperature"
	}
	return "none"
}

// Gesture tracks a single drag. The direction is decided once the pointer
// has travelled past GestureThreshold along one axis and stays locked until
// the drag ends. Values are absolute from the drag origin, so releasing and
// dragging again starts over from zero.
type Gesture struct {
	active         bool
	startX, startY float64
	mode           GestureMode
}

func (g *Gesture) Start(x, y float64) {
	g.active = true
	g.startX, g.startY = x, y
	g.mode = GestureNone
}

// Move reports the mode and the value it maps to: EV for vertical drags
// (up is brighter) and temperature for horizontal drags (right is warmer).
// ok is false while no direction is locked.
func (g *Gesture) Move(x, y float64) (mode GestureMode, value float64, ok bool) {
	if !g.active {
		return GestureNone, 0, false
	}

	dx := x - g.startX
	dy := g.startY - y

	if g.mode == GestureNone {
		absX, absY := math.Abs(dx), math.Abs(dy)
		if absY > GestureThreshold && absY > absX {
			g.mode = GestureExposure
		} else if absX > GestureThreshold && absX > absY {
			g.mode = GestureTemperature
		}
	}

	switch g.mode {
	case GestureExposure:
		return g.mode, dy / ExposureTravel * 2, true
	case GestureTemperature:
		return g.mode, dx / TemperatureTravel, true
	}
	return GestureNone, 0, false
}

// End finishes the drag and reports whether it was a plain tap, i.e. no
// direction was ever locked.
func (g *Gesture) End() (tap bool) {
	tap = g.active && g.mode == GestureNone
	g.active = false
	g.mode = GestureNone
	return tap
}

func (g *Gesture) Active() bool {
	return g.active
}

func (g *Gesture) Mode() GestureMode {
	return g.mode
}
