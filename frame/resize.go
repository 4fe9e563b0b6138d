package frame

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"golang.org/x/image/draw"
)

type FitMode string

const (
	// FitStretch scales the whole source onto the canvas, like a video
	// element drawn onto a canvas of a different aspect.
	FitStretch FitMode = "stretch"
	// FitCrop keeps the source aspect and trims the overflow evenly.
	FitCrop FitMode = "crop"
	// FitPad keeps the source aspect and fills the borders.
	FitPad FitMode = "pad"
)

func ParseFitMode(s string) (FitMode, error) {
	switch m := FitMode(s); m {
	case FitStretch, FitCrop, FitPad:
		return m, nil
	}
	return "", fmt.Errorf("unsupported fit mode: %s", s)
}

// Fit scales src into the whole of dst. The scaler trades quality for speed:
// live frames use ApproxBiLinear, stills CatmullRom.
func Fit(dst *image.RGBA, src image.Image, mode FitMode, fill color.Color, scaler draw.Scaler) {
	srcBounds := src.Bounds()
	destBounds := dst.Bounds()
	if srcBounds.Empty() || destBounds.Empty() {
		return
	}
	if scaler == nil {
		scaler = draw.ApproxBiLinear
	}

	srcWidth := float64(srcBounds.Dx())
	srcHeight := float64(srcBounds.Dy())
	destWidth := float64(destBounds.Dx())
	destHeight := float64(destBounds.Dy())

	srcAR := srcWidth / srcHeight
	destAR := destWidth / destHeight

	switch mode {
	case FitCrop:
		if srcAR < destAR {
			dh := int(math.Round((srcHeight - srcWidth/destAR) / 2))
			srcBounds.Min.Y += dh
			srcBounds.Max.Y -= dh
		} else if srcAR > destAR {
			dw := int(math.Round((srcWidth - srcHeight*destAR) / 2))
			srcBounds.Min.X += dw
			srcBounds.Max.X -= dw
		}
	case FitPad:
		if fill == nil {
			fill = color.Black
		}
		draw.Draw(dst, destBounds, image.NewUniform(fill), image.Point{}, draw.Src)
		if srcAR < destAR {
			idw := int(math.Round((destWidth - destHeight*srcAR) / 2))
			destBounds.Min.X += idw
			destBounds.Max.X -= idw
		} else if srcAR > destAR {
			idh := int(math.Round((destHeight - destWidth/srcAR) / 2))
			destBounds.Min.Y += idh
			destBounds.Max.Y -= idh
		}
	}

	scaler.Scale(dst, destBounds, src, srcBounds, draw.Src, nil)
}

// Dimensions returns the canvas size for a long edge and a viewport aspect
// (width/height). Portrait viewports put the long edge vertically.
func Dimensions(longEdge int, aspect float64) (int, int) {
	if aspect <= 0 || math.IsNaN(aspect) || math.IsInf(aspect, 0) {
		aspect = 4.0 / 3.0
	}
	if aspect < 1 {
		return max(1, int(math.Round(float64(longEdge)*aspect))), longEdge
	}
	return longEdge, max(1, int(math.Round(float64(longEdge)/aspect)))
}
