package batch

import (
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"camdither/dither"
	"camdither/export"
	"camdither/frame"
	"camdither/palette"
	"camdither/parallel"

	"github.com/alecthomas/kong"
	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

type CLICmd struct {
	Scan        string  `help:"Source folder to scan" default:"."`
	Dest        string  `help:"Destination folder for dithered pictures. Relative to scan dir if not absolute." default:"dithered"`
	LongEdge    int     `help:"Resize so the longer side has this many pixels (0 keeps the size)" default:"0"`
	Palette     string  `help:"Palette name or palette file" default:"VGA"`
	Temperature float64 `help:"Palette temperature shift (-1 cool .. 1 warm)" default:"0"`
	Exposure    float64 `help:"Exposure compensation in EV (-2 .. 2)" default:"0"`
	Strength    float64 `help:"Dither strength (0 .. 1)" default:"1"`
	Format      string  `help:"Output format. 'same' keeps the source format where it can be written" enum:"same,png,gif,jpeg,bmp,tiff" default:"png"`
	Stamp       bool    `help:"Caption each picture with its render settings" default:"false"`
}

func (c *CLICmd) Validate(kctx *kong.Context) error {
	scanDir, err := filepath.Abs(c.Scan)
	var info os.FileInfo
	if err == nil {
		if info, err = os.Stat(scanDir); err == nil && !info.IsDir() {
			err = fmt.Errorf("not a directory")
		}
	}
	if err != nil {
		return fmt.Errorf("invalid scan path %q: %w", c.Scan, err)
	}
	c.Scan = scanDir

	if !filepath.IsAbs(c.Dest) {
		c.Dest = filepath.Join(scanDir, c.Dest)
	}
	if c.Dest == c.Scan {
		return fmt.Errorf("destination folder must differ from the scan folder")
	}

	if c.LongEdge < 0 {
		return fmt.Errorf("invalid long edge: %d", c.LongEdge)
	}
	return nil
}

// Params resolves the command's render settings the same way the live view
// does, clamping out of range values.
func (c *CLICmd) Params(store *palette.Store) (dither.Params, error) {
	settings, err := dither.NewSettings(store, c.Palette)
	if err != nil {
		return dither.Params{}, err
	}
	settings.SetTemperature(c.Temperature)
	settings.SetExposureCompensation(c.Exposure)
	settings.SetDitherStrength(c.Strength)
	return settings.Snapshot(), nil
}

func (c *CLICmd) Run(store *palette.Store, worker parallel.WorkerFunc, wait parallel.WaitFunc) error {
	params, err := c.Params(store)
	if err != nil {
		return err
	}
	engine := dither.NewEngine(nil)

	if err := os.MkdirAll(c.Dest, 0o755); err != nil {
		return fmt.Errorf("unable to create destination folder %q: %w", c.Dest, err)
	}

	files, err := os.ReadDir(c.Scan)
	if err != nil {
		return fmt.Errorf("unable to read folder %q: %w", c.Scan, err)
	}

	slog.Info("rendering", "scan", c.Scan, "dest", c.Dest, "palette", params.PaletteName,
		"ev", params.Exposure, "temperature", params.Temperature, "strength", params.Strength)

	for _, file := range files {
		if file.IsDir() {
			continue
		}

		worker(func(fileName string) func() error {
			return func() error {
				logger := slog.Default().With("file", filepath.Join(c.Scan, fileName))
				path, err := c.renderFile(engine, params, fileName)
				if err != nil {
					logger.Error("could not render image", "error", err)
					return err
				}
				logger.Info("rendered", "to", path)
				return nil
			}
		}(file.Name()))
	}

	res := wait(true)
	slog.Info("stats", "processed", res.Done, "errors", res.Failed, "total", res.Total())

	if res.Failed > 0 {
		return fmt.Errorf("error processing %d files", res.Failed)
	}
	return nil
}

func (c *CLICmd) renderFile(engine *dither.Engine, params dither.Params, fileName string) (string, error) {
	imgFile, err := os.Open(filepath.Join(c.Scan, fileName))
	if err != nil {
		return "", fmt.Errorf("could not open image: %w", err)
	}
	img, imgType, err := image.Decode(imgFile)
	if closeErr := imgFile.Close(); closeErr != nil {
		slog.Error("could not close image", "file", fileName, "error", closeErr)
	}
	if err != nil {
		return "", fmt.Errorf("could not decode image: %w", err)
	}

	rgba := toRGBA(img, c.LongEdge)
	if err := engine.RenderWith(params, rgba); err != nil {
		return "", err
	}
	if c.Stamp {
		export.Stamp(rgba, caption(params), color.White, color.Black)
	}

	name := strings.TrimSuffix(fileName, filepath.Ext(fileName))
	return export.Save(rgba, outputFormat(c.Format, imgType), params.Palette.Color(), c.Dest, name)
}

// toRGBA copies img into a fresh RGBA canvas, scaled so its longer side is
// longEdge pixels when longEdge is positive.
func toRGBA(img image.Image, longEdge int) *image.RGBA {
	b := img.Bounds()
	if longEdge <= 0 || b.Empty() {
		dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
		draw.Draw(dst, dst.Rect, img, b.Min, draw.Src)
		return dst
	}

	w, h := frame.Dimensions(longEdge, float64(b.Dx())/float64(b.Dy()))
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	frame.Fit(dst, img, frame.FitStretch, nil, draw.CatmullRom)
	return dst
}

func outputFormat(format, imgType string) string {
	if format != "same" {
		return format
	}
	if slices.Contains(export.Formats, imgType) {
		return imgType
	}
	return "png"
}

func caption(p dither.Params) string {
	return fmt.Sprintf("%s EV %+.1f TEMP %+.0f%%", p.PaletteName, p.Exposure, p.Temperature*100)
}
