package export

import (
	"image"
	"image/color"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const stampMargin = 4

// Stamp draws a one-line caption in the bottom-left corner of img on a solid
// backing strip, so it stays readable over dithered noise.
func Stamp(img draw.Image, text string, fg, bg color.Color) {
	if text == "" {
		return
	}
	face := basicfont.Face7x13
	b := img.Bounds()

	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(fg),
		Face: face,
	}
	width := d.MeasureString(text).Ceil()
	metrics := face.Metrics()
	height := (metrics.Ascent + metrics.Descent).Ceil()

	strip := image.Rect(b.Min.X, b.Max.Y-height-2*stampMargin, b.Min.X+width+2*stampMargin, b.Max.Y).Intersect(b)
	draw.Draw(img, strip, image.NewUniform(bg), image.Point{}, draw.Src)

	d.Dot = fixed.Point26_6{
		X: fixed.I(b.Min.X + stampMargin),
		Y: fixed.I(b.Max.Y-stampMargin) - metrics.Descent,
	}
	d.DrawString(text)
}
