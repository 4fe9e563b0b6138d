package palette

import (
	"errors"
	"fmt"
	"image/color"
	"math"
)

var (
	ErrEmptyPalette    = errors.New("empty palette")
	ErrUnknownPalette  = errors.New("unknown palette")
	ErrReservedPalette = errors.New("palette name is reserved")
)

// RGB is a single palette entry.
type RGB struct {
	R, G, B uint8
}

// NewRGB builds an RGB from integer channels, rejecting anything outside 0-255.
func NewRGB(r, g, b int) (RGB, error) {
	for _, v := range [3]int{r, g, b} {
		if v < 0 || v > 255 {
			return RGB{}, fmt.Errorf("channel value out of range: %d", v)
		}
	}
	return RGB{R: uint8(r), G: uint8(g), B: uint8(b)}, nil
}

func (c RGB) RGBA() (uint32, uint32, uint32, uint32) {
	return color.RGBA{R: c.R, G: c.G, B: c.B, A: 0xFF}.RGBA()
}

func (c RGB) String() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// Palette is an immutable, ordered, non-empty list of colours. Derived
// palettes are always new values.
type Palette struct {
	colors []RGB
}

func New(colors ...RGB) (Palette, error) {
	if len(colors) == 0 {
		return Palette{}, ErrEmptyPalette
	}
	return Palette{colors: append([]RGB(nil), colors...)}, nil
}

func mustNew(colors ...RGB) Palette {
	p, err := New(colors...)
	if err != nil {
		panic(err)
	}
	return p
}

func (p Palette) Len() int {
	return len(p.colors)
}

func (p Palette) At(i int) RGB {
	return p.colors[i]
}

// Colors returns a copy of the palette entries.
func (p Palette) Colors() []RGB {
	return append([]RGB(nil), p.colors...)
}

func (p Palette) Equal(o Palette) bool {
	if len(p.colors) != len(o.colors) {
		return false
	}
	for i, c := range p.colors {
		if o.colors[i] != c {
			return false
		}
	}
	return true
}

// Color converts to a standard library palette, e.g. for image.Paletted.
func (p Palette) Color() color.Palette {
	pal := make(color.Palette, len(p.colors))
	for i, c := range p.colors {
		pal[i] = color.RGBA{R: c.R, G: c.G, B: c.B, A: 0xFF}
	}
	return pal
}

func FromColor(pal color.Palette) (Palette, error) {
	colors := make([]RGB, len(pal))
	for i, col := range pal {
		c := color.RGBAModel.Convert(col).(color.RGBA)
		colors[i] = RGB{R: c.R, G: c.G, B: c.B}
	}
	return New(colors...)
}

// NearestIndex returns the index of the palette colour closest to (r, g, b) by
// squared Euclidean distance. Ties go to the lowest index.
func NearestIndex(r, g, b float64, p Palette) (int, error) {
	if len(p.colors) == 0 {
		return 0, ErrEmptyPalette
	}
	return p.Index(r, g, b), nil
}

// Index is NearestIndex without the empty check. It panics on an empty
// palette. A NaN channel matches no colour and yields index 0.
func (p Palette) Index(r, g, b float64) int {
	if len(p.colors) == 0 {
		panic(ErrEmptyPalette)
	}
	ret, bestSum := 0, math.Inf(1)
	for i, v := range p.colors {
		dr := r - float64(v.R)
		dg := g - float64(v.G)
		db := b - float64(v.B)
		sum := dr*dr + dg*dg + db*db
		if sum < bestSum {
			if sum == 0 {
				return i
			}
			ret, bestSum = i, sum
		}
	}
	return ret
}

// Curve maps the linear position t in [0,1] onto the interpolation position.
type Curve func(t float64) float64

const DefaultGamma = 2.2

func Linear(t float64) float64 {
	return t
}

func Gamma(gamma float64) Curve {
	return func(t float64) float64 {
		return math.Pow(t, gamma)
	}
}

// SCurve clusters samples near both ends of the ramp.
func SCurve(t float64) float64 {
	if t < 0.5 {
		return 2 * t * t
	}
	u := -2*t + 2
	return 1 - u*u/2
}

// ParseCurve resolves the curve names used on the command line.
func ParseCurve(name string) (Curve, error) {
	switch name {
	case "", "linear":
		return Linear, nil
	case "gamma":
		return Gamma(DefaultGamma), nil
	case "custom", "s-curve":
		return SCurve, nil
	}
	return nil, fmt.Errorf("unsupported curve: %s", name)
}

// Interpolate returns steps colours from a to b inclusive. A single step
// yields just a.
func Interpolate(a, b RGB, steps int, curve Curve) (Palette, error) {
	switch {
	case steps < 1:
		return Palette{}, fmt.Errorf("invalid number of steps: %d", steps)
	case steps == 1:
		return mustNew(a), nil
	}
	if curve == nil {
		curve = Linear
	}

	colors := make([]RGB, steps)
	for i := range steps {
		t := curve(float64(i) / float64(steps-1))
		colors[i] = RGB{
			R: lerp(a.R, b.R, t),
			G: lerp(a.G, b.G, t),
			B: lerp(a.B, b.B, t),
		}
	}
	return Palette{colors: colors}, nil
}

func lerp(a, b uint8, t float64) uint8 {
	return round(float64(a) + (float64(b)-float64(a))*t)
}

// round rounds half up and clamps into a channel.
func round(v float64) uint8 {
	return uint8(clamp(math.Floor(v+0.5), 0, 255))
}

// clamp bounds x to [lo, hi]; NaN maps to lo.
func clamp(x, lo, hi float64) float64 {
	if math.IsNaN(x) || x < lo {
		return lo
	} else if x > hi {
		return hi
	}
	return x
}

// Blend mixes a and b per index, weighting a by ratio. The shorter palette
// repeats its last colour. A NaN ratio mixes evenly.
func Blend(a, b Palette, ratio float64) (Palette, error) {
	if a.Len() == 0 || b.Len() == 0 {
		return Palette{}, ErrEmptyPalette
	}
	if math.IsNaN(ratio) {
		ratio = 0.5
	}
	ratio = clamp(ratio, 0, 1)

	n := max(a.Len(), b.Len())
	colors := make([]RGB, n)
	for i := range n {
		ca := a.colors[min(i, a.Len()-1)]
		cb := b.colors[min(i, b.Len()-1)]
		colors[i] = RGB{
			R: round(float64(ca.R)*ratio + float64(cb.R)*(1-ratio)),
			G: round(float64(ca.G)*ratio + float64(cb.G)*(1-ratio)),
			B: round(float64(ca.B)*ratio + float64(cb.B)*(1-ratio)),
		}
	}
	return Palette{colors: colors}, nil
}

const temperatureShift = 0.3

// ApplyTemperature shifts energy between the red and blue channels. Positive
// temperatures warm the palette, negative ones cool it; zero or NaN returns p as is.
func ApplyTemperature(p Palette, temp float64) Palette {
	if math.IsNaN(temp) {
		return p
	}
	temp = clamp(temp, -1, 1)
	if temp == 0 {
		return p
	}

	rScale, bScale := 1+temp*temperatureShift, 1-temp*temperatureShift
	colors := make([]RGB, len(p.colors))
	for i, c := range p.colors {
		colors[i] = RGB{
			R: round(float64(c.R) * rScale),
			G: c.G,
			B: round(float64(c.B) * bScale),
		}
	}
	return Palette{colors: colors}
}
