package ui

import (
	"errors"
	"fmt"
	"image"
	"log/slog"
	"math"
	"slices"
	"time"

	"camdither/dither"
	"camdither/export"
	"camdither/frame"
	"camdither/gallery"
	"camdither/palette"

	"github.com/lucasb-eyer/go-colorful"
)

// Resolutions are the selectable long edges, in pixels.
var Resolutions = []int{320, 480, 640, 800, 1024}

const (
	ExposureStep    = 0.1
	TemperatureStep = 0.05
)

var ErrNoFrame = errors.New("no frame rendered yet")

// Controller applies user intents to the shared render settings and the
// frame driver. It is safe to call from the event loop while frames are
// rendering.
type Controller struct {
	Settings  *dither.Settings
	Store     *palette.Store
	Driver    *frame.Driver
	Gallery   *gallery.Store
	Clicker   *Clicker
	Downloads string
	Now       func() time.Time
}

func (c *Controller) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

// SelectPalette switches to the named palette keeping the current
// temperature. Unknown names leave everything unchanged.
func (c *Controller) SelectPalette(name string) error {
	temp := c.Settings.Snapshot().Temperature
	return c.Settings.SetActivePalette(name, temp)
}

func (c *Controller) CyclePalette(step int) error {
	next := c.Store.Next(c.Settings.Snapshot().PaletteName, step)
	if next == "" {
		return palette.ErrUnknownPalette
	}
	return c.SelectPalette(next)
}

func (c *Controller) SetExposure(ev float64) {
	c.Settings.SetExposureCompensation(ev)
}

func (c *Controller) SetTemperature(temp float64) {
	c.Settings.SetTemperature(temp)
}

func (c *Controller) NudgeExposure(steps int) {
	ev := c.Settings.Snapshot().Exposure + float64(steps)*ExposureStep
	c.Settings.SetExposureCompensation(roundTenth(ev))
}

func (c *Controller) NudgeTemperature(steps int) {
	temp := c.Settings.Snapshot().Temperature + float64(steps)*TemperatureStep
	c.Settings.SetTemperature(roundHundredth(temp))
}

// Key steps are rounded so repeated nudges land on exact readouts.
func roundTenth(v float64) float64 {
	return math.Round(v*10) / 10
}

func roundHundredth(v float64) float64 {
	return math.Round(v*100) / 100
}

// ApplyGesture routes a locked drag to exposure or temperature.
func (c *Controller) ApplyGesture(mode GestureMode, value float64) {
	switch mode {
	case GestureExposure:
		c.SetExposure(value)
	case GestureTemperature:
		c.SetTemperature(value)
	}
}

// SetResolution changes the long edge; the stream restarts with the new
// canvas size before the next frame.
func (c *Controller) SetResolution(longEdge int) error {
	if longEdge < 1 {
		return fmt.Errorf("invalid resolution: %d", longEdge)
	}
	c.Driver.SetLongEdge(longEdge)
	slog.Info("resolution changed", "long_edge", longEdge)
	return nil
}

// CycleResolution steps through Resolutions, wrapping around. A long edge
// outside the list moves to the nearest larger entry.
func (c *Controller) CycleResolution(step int) error {
	cur := c.Driver.LongEdge()
	n := len(Resolutions)
	i, found := slices.BinarySearch(Resolutions, cur)
	if !found && step > 0 {
		step--
	}
	i = ((i+step)%n + n) % n
	return c.SetResolution(Resolutions[i])
}

// Reset restores neutral exposure, temperature and full dither strength.
func (c *Controller) Reset() {
	c.Settings.SetExposureCompensation(0)
	c.Settings.SetTemperature(0)
	c.Settings.SetDitherStrength(1)
}

// Shutter saves the last rendered frame to the gallery and, when Downloads
// is set, as dither-<id>.png in that folder. A gallery storage failure is
// logged and does not stop the download.
func (c *Controller) Shutter() (gallery.Snapshot, error) {
	img := c.Driver.LastFrame()
	if img == nil {
		return gallery.Snapshot{}, ErrNoFrame
	}

	snap, err := c.Gallery.Add(img, c.now())
	if snap.ID == 0 {
		return snap, fmt.Errorf("snapshot failed: %w", err)
	}
	if err != nil {
		slog.Warn("snapshot kept in memory only", "id", snap.ID, "error", err)
	}

	if c.Downloads != "" {
		path, err := export.Save(img, "png", nil, c.Downloads, snap.Name())
		if err != nil {
			return snap, fmt.Errorf("snapshot failed: %w", err)
		}
		slog.Info("snapshot saved", "id", snap.ID, "file", path)
	}

	c.Clicker.Click()
	return snap, nil
}

// Sample describes the rendered pixel under the pointer.
type Sample struct {
	X, Y  int
	Color palette.RGB
	Index int
	Hue   float64
}

func (s Sample) String() string {
	return fmt.Sprintf("%s #%d hue %.0f°", s.Color, s.Index, s.Hue)
}

// Sample reads the last rendered frame at (x, y) and matches it against the
// active palette.
func (c *Controller) Sample(x, y int) (Sample, error) {
	img := c.Driver.LastFrame()
	if img == nil {
		return Sample{}, ErrNoFrame
	}
	if !(image.Point{x, y}.In(img.Rect)) {
		return Sample{}, fmt.Errorf("sample point %d,%d outside the %dx%d frame", x, y, img.Rect.Dx(), img.Rect.Dy())
	}

	px := img.RGBAAt(x, y)
	idx, err := palette.NearestIndex(float64(px.R), float64(px.G), float64(px.B), c.Settings.Snapshot().Palette)
	if err != nil {
		return Sample{}, err
	}
	h, _, _ := colorful.Color{R: float64(px.R) / 255, G: float64(px.G) / 255, B: float64(px.B) / 255}.Hsv()
	return Sample{
		X:     x,
		Y:     y,
		Color: palette.RGB{R: px.R, G: px.G, B: px.B},
		Index: idx,
		Hue:   h,
	}, nil
}

// Status is the one-line readout shown under the preview.
func (c *Controller) Status() string {
	p := c.Settings.Snapshot()
	st := c.Driver.Stats()
	w, h := c.Driver.Size()
	return fmt.Sprintf("EV %+.1f  TEMP %+d%%  %s  %dx%d  %d fps  %s",
		p.Exposure, int(math.Round(p.Temperature*100)), p.PaletteName, w, h, st.FPS,
		st.LastDither.Round(time.Millisecond))
}
