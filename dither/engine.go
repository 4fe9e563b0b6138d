// Package dither turns camera frames into ordered-dithered, palette-limited
// images.
//
// Each pixel is exposure-scaled, offset by the 4x4 Bayer threshold at its
// position and then replaced by the nearest colour of the active palette.
// Buffers are processed in place and alpha is left untouched.
package dither

import (
	"errors"
	"fmt"
	"image"
	"math"

	"camdither/palette"
)

var ErrBufferSize = errors.New("buffer does not match frame dimensions")

type Engine struct {
	settings *Settings
	matrix   *Matrix
}

func NewEngine(settings *Settings) *Engine {
	return &Engine{
		settings: settings,
		matrix:   &Thresholds,
	}
}

func (e *Engine) Settings() *Settings {
	return e.settings
}

// RenderFrame dithers a packed RGBA buffer of width*height pixels in place.
func (e *Engine) RenderFrame(buf []byte, width, height int) error {
	if width < 0 || height < 0 || len(buf) < width*height*4 {
		return fmt.Errorf("%w: %d bytes for %dx%d", ErrBufferSize, len(buf), width, height)
	}
	return e.render(e.settings.Snapshot(), buf, width, height, width*4)
}

// Render dithers img in place, honouring its stride and bounds.
func (e *Engine) Render(img *image.RGBA) error {
	b := img.Bounds()
	if b.Empty() {
		return nil
	}
	buf := img.Pix[img.PixOffset(b.Min.X, b.Min.Y):]
	return e.render(e.settings.Snapshot(), buf, b.Dx(), b.Dy(), img.Stride)
}

// RenderWith dithers using explicit parameters instead of the shared
// settings.
func (e *Engine) RenderWith(p Params, img *image.RGBA) error {
	b := img.Bounds()
	if b.Empty() {
		return nil
	}
	buf := img.Pix[img.PixOffset(b.Min.X, b.Min.Y):]
	return e.render(p, buf, b.Dx(), b.Dy(), img.Stride)
}

func (e *Engine) render(p Params, buf []byte, width, height, stride int) error {
	pal := p.Palette
	if pal.Len() == 0 {
		return fmt.Errorf("could not render frame: %w", palette.ErrEmptyPalette)
	}

	evMultiplier := math.Pow(2, clamp(p.Exposure, MinExposure, MaxExposure))
	offsets := e.matrix.offsets(clamp(p.Strength, 0, 1))

	for y := range height {
		row := buf[y*stride : y*stride+width*4]
		tile := &offsets[y&3]
		for x := 0; x < len(row); x += 4 {
			d := tile[(x>>2)&3]
			r := clamp(min(255, float64(row[x])*evMultiplier)+d, 0, 255)
			g := clamp(min(255, float64(row[x+1])*evMultiplier)+d, 0, 255)
			b := clamp(min(255, float64(row[x+2])*evMultiplier)+d, 0, 255)

			c := pal.At(pal.Index(r, g, b))
			row[x] = c.R
			row[x+1] = c.G
			row[x+2] = c.B
		}
	}
	return nil
}
