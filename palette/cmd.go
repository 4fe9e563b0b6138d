package palette

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/charmbracelet/lipgloss"
	"github.com/lucasb-eyer/go-colorful"
)

type CLICmd struct {
	Ls     LsCmd     `cmd:"" help:"List available palettes"`
	Export ExportCmd `cmd:"" help:"Write a palette to a file (.pal, .svg or .hex)"`
	Ramp   RampCmd   `cmd:"" help:"Build a palette by interpolating between two colours"`
	Blend  BlendCmd  `cmd:"" help:"Blend two palettes index by index"`
}

type LsCmd struct {
	Swatches bool `help:"Show colour swatches" default:"true" negatable:""`
}

func (c *LsCmd) Run(store *Store) error {
	return list(os.Stdout, store, c.Swatches)
}

func list(w io.Writer, store *Store, swatches bool) error {
	for _, name := range store.Names() {
		p, err := store.Lookup(name)
		if err != nil {
			return err
		}
		line := fmt.Sprintf("%-16s %3d colours", name, p.Len())
		if swatches {
			line += "  " + Swatch(p)
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

// Swatch renders the palette as a strip of coloured terminal cells.
func Swatch(p Palette) string {
	var sb strings.Builder
	for _, c := range p.colors {
		sb.WriteString(lipgloss.NewStyle().Background(lipgloss.Color(c.String())).Render("  "))
	}
	return sb.String()
}

type ExportCmd struct {
	Name        string  `arg:"" help:"Palette name or file"`
	Out         string  `help:"Destination file; format follows the extension" short:"o" required:""`
	Temperature float64 `help:"Colour temperature shift (-1 cool .. 1 warm)" default:"0"`
}

func (c *ExportCmd) Run(store *Store) error {
	_, p, err := store.Resolve(c.Name)
	if err != nil {
		return err
	}
	return Save(c.Out, ApplyTemperature(p, c.Temperature))
}

type RampCmd struct {
	From  string `help:"First colour (#rrggbb)" required:""`
	To    string `help:"Last colour (#rrggbb)" required:""`
	Steps int    `help:"Number of colours" default:"16"`
	Curve string `help:"Interpolation curve" enum:"linear,gamma,custom" default:"linear"`
	Out   string `help:"Destination file; format follows the extension" short:"o"`
}

func (c *RampCmd) Validate(kctx *kong.Context) error {
	if c.Steps < 1 {
		return fmt.Errorf("invalid number of steps: %d", c.Steps)
	}
	return nil
}

func (c *RampCmd) Run(store *Store) error {
	from, err := parseHex(c.From)
	if err != nil {
		return err
	}
	to, err := parseHex(c.To)
	if err != nil {
		return err
	}
	curve, err := ParseCurve(c.Curve)
	if err != nil {
		return err
	}

	p, err := Interpolate(from, to, c.Steps, curve)
	if err != nil {
		return err
	}
	if c.Out == "" {
		return WriteHex(os.Stdout, p)
	}
	return Save(c.Out, p)
}

type BlendCmd struct {
	A     string  `arg:"" help:"First palette name or file"`
	B     string  `arg:"" help:"Second palette name or file"`
	Ratio float64 `help:"Weight of the first palette (0..1)" default:"0.5"`
	Out   string  `help:"Destination file; format follows the extension" short:"o"`
}

func (c *BlendCmd) Run(store *Store) error {
	_, a, err := store.Resolve(c.A)
	if err != nil {
		return err
	}
	_, b, err := store.Resolve(c.B)
	if err != nil {
		return err
	}

	p, err := Blend(a, b, c.Ratio)
	if err != nil {
		return err
	}
	if c.Out == "" {
		return WriteHex(os.Stdout, p)
	}
	return Save(c.Out, p)
}

func parseHex(s string) (RGB, error) {
	if !strings.HasPrefix(s, "#") {
		s = "#" + s
	}
	c, err := colorful.Hex(s)
	if err != nil {
		return RGB{}, fmt.Errorf("could not read colour %q: %w", s, err)
	}
	r, g, b := c.RGB255()
	return RGB{R: r, G: g, B: b}, nil
}

func WriteHex(w io.Writer, p Palette) error {
	for _, c := range p.colors {
		if _, err := fmt.Fprintln(w, c.String()); err != nil {
			return err
		}
	}
	return nil
}

// Save writes p to path, choosing RIFF, SVG or hex text by extension.
func Save(path string, p Palette) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("could not create palette file %q: %w", path, err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("could not close palette file %q: %w", path, closeErr)
		}
	}()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".pal":
		_, err = WriteRIFF(f, p)
	case ".svg":
		err = WriteSVG(f, p)
	default:
		err = WriteHex(f, p)
	}
	if err != nil {
		return fmt.Errorf("could not write palette file %q: %w", path, err)
	}

	slog.Info("palette saved", "file", path, "colors", p.Len())
	return nil
}
