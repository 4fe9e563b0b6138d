package ui

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"

	"camdither/dither"
	"camdither/frame"
	"camdither/gallery"
	"camdither/palette"

	"github.com/alecthomas/kong"
	"github.com/gdamore/tcell/v2"
)

type CLICmd struct {
	Input        string  `help:"Camera device or video file read through ffmpeg" default:"/dev/video0" group:"source"`
	InputFormat  string  `help:"ffmpeg input format, e.g. v4l2, avfoundation, dshow. Empty to autodetect" default:"v4l2" group:"source"`
	Framerate    string  `help:"Requested camera frame rate" default:"30" group:"source"`
	Image        string  `help:"Preview a still image instead of a camera" type:"existingfile" group:"source"`
	Fit          string  `help:"How a still image fills the canvas" enum:"stretch,crop,pad" default:"stretch" group:"source"`
	SourceAspect bool    `help:"Size the canvas from the source aspect ratio instead of the terminal" default:"false" group:"source"`
	LongEdge     int     `help:"Canvas long edge in pixels" default:"640" group:"render"`
	Palette      string  `help:"Palette name or palette file" default:"VGA" group:"render"`
	Temperature  float64 `help:"Palette temperature shift (-1 cool .. 1 warm)" default:"0" group:"render"`
	Exposure     float64 `help:"Exposure compensation in EV (-2 .. 2)" default:"0" group:"render"`
	Strength     float64 `help:"Dither strength (0 .. 1)" default:"1" group:"render"`
	Downloads    string  `help:"Also write every snapshot as dither-<id>.png into this folder" type:"path"`
	Sound        bool    `help:"Play a shutter click" default:"true" negatable:""`
}

func (c *CLICmd) Validate(kctx *kong.Context) error {
	if c.LongEdge < 1 {
		return fmt.Errorf("invalid long edge: %d", c.LongEdge)
	}
	if c.Downloads != "" {
		if err := os.MkdirAll(c.Downloads, 0o755); err != nil {
			return fmt.Errorf("unable to create downloads folder %q: %w", c.Downloads, err)
		}
	}
	return nil
}

// source picks the frame source and the aspect the canvas starts with.
func (c *CLICmd) source() (frame.Source, float64, error) {
	if c.Image != "" {
		mode, err := frame.ParseFitMode(c.Fit)
		if err != nil {
			return nil, 0, err
		}
		src, err := frame.LoadImageSource(c.Image, mode)
		if err != nil {
			return nil, 0, err
		}
		return src, src.Aspect(), nil
	}

	src := &frame.FFmpegSource{Input: c.Input, Format: c.InputFormat}
	if c.Framerate != "" {
		src.Options = map[string]any{"framerate": c.Framerate}
	}
	aspect := 4.0 / 3.0
	if c.SourceAspect {
		var err error
		if aspect, err = src.Aspect(); err != nil {
			return nil, 0, err
		}
	}
	return src, aspect, nil
}

func (c *CLICmd) Run(store *palette.Store, gal *gallery.Store) error {
	settings, err := dither.NewSettings(store, c.Palette)
	if err != nil {
		return err
	}
	settings.SetTemperature(c.Temperature)
	settings.SetExposureCompensation(c.Exposure)
	settings.SetDitherStrength(c.Strength)

	src, aspect, err := c.source()
	if err != nil {
		return err
	}

	screen, err := tcell.NewScreen()
	if err != nil {
		return fmt.Errorf("could not open terminal: %w", err)
	}
	if err := screen.Init(); err != nil {
		return fmt.Errorf("could not open terminal: %w", err)
	}
	defer screen.Fini()

	driver := frame.NewDriver(src, dither.NewEngine(settings), nil, c.LongEdge, aspect)
	ctrl := &Controller{
		Settings:  settings,
		Store:     store,
		Driver:    driver,
		Gallery:   gal,
		Downloads: c.Downloads,
	}
	if c.Sound {
		clicker, err := NewClicker()
		if err != nil {
			slog.Warn("audio initialization failed, shutter is silent", "error", err)
		}
		defer clicker.Close()
		ctrl.Clicker = clicker
	}

	viewer := NewViewer(screen, ctrl)
	viewer.FollowTerminal = !c.SourceAspect
	driver.Sink = viewer

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	driverErr := make(chan error, 1)
	go func() {
		err := driver.Run(ctx)
		if err != nil {
			cancel()
		}
		driverErr <- err
	}()

	slog.Info("live view started", "source", sourceName(c), "palette", c.Palette, "long_edge", c.LongEdge)
	if err := viewer.Run(ctx); err != nil {
		return err
	}
	cancel()

	if err := <-driverErr; err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	slog.Info("live view stopped", "snapshots", gal.Len())
	return nil
}

func sourceName(c *CLICmd) string {
	if c.Image != "" {
		return filepath.Base(c.Image)
	}
	return c.Input
}
