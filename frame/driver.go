package frame

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"camdither/dither"
)

const (
	DefaultLongEdge  = 640
	DefaultInterval  = time.Second / 30
	DefaultSlowFrame = 100 * time.Millisecond
)

// Sink receives every rendered frame. The image is reused for the next frame
// once Present returns.
type Sink interface {
	Present(img *image.RGBA) error
}

type SinkFunc func(img *image.RGBA) error

func (f SinkFunc) Present(img *image.RGBA) error {
	return f(img)
}

type Stats struct {
	Width, Height int
	FPS           int
	Frames        uint64
	LastDither    time.Duration
}

var errRestart = errors.New("stream restart requested")

// Driver pulls frames from a Source at the current canvas size, dithers
// them and hands them to a Sink. Size changes restart the stream between
// frames; a frame that has started rendering always completes.
type Driver struct {
	Source    Source
	Engine    *dither.Engine
	Sink      Sink
	Interval  time.Duration
	SlowFrame time.Duration
	// Now times renders and FPS windows; nil uses time.Now.
	Now func() time.Time

	longEdge atomic.Int64
	aspect   atomic.Uint64
	restart  chan struct{}

	mu    sync.Mutex
	last  *image.RGBA
	stats Stats
}

func NewDriver(src Source, engine *dither.Engine, sink Sink, longEdge int, aspect float64) *Driver {
	d := &Driver{
		Source:    src,
		Engine:    engine,
		Sink:      sink,
		Interval:  DefaultInterval,
		SlowFrame: DefaultSlowFrame,
		restart:   make(chan struct{}, 1),
	}
	d.longEdge.Store(int64(longEdge))
	d.aspect.Store(math.Float64bits(aspect))
	return d
}

func (d *Driver) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

func (d *Driver) requestRestart() {
	select {
	case d.restart <- struct{}{}:
	default:
	}
}

// SetLongEdge changes the output resolution, effective from the next frame.
func (d *Driver) SetLongEdge(n int) {
	if n < 1 || int64(n) == d.longEdge.Load() {
		return
	}
	d.longEdge.Store(int64(n))
	d.requestRestart()
}

func (d *Driver) LongEdge() int {
	return int(d.longEdge.Load())
}

// SetAspect changes the viewport aspect (width/height), e.g. after the
// display was resized.
func (d *Driver) SetAspect(aspect float64) {
	bits := math.Float64bits(aspect)
	if d.aspect.Swap(bits) != bits {
		d.requestRestart()
	}
}

func (d *Driver) Size() (int, int) {
	return Dimensions(d.LongEdge(), math.Float64frombits(d.aspect.Load()))
}

// LastFrame returns a copy of the most recent rendered frame, or nil before
// the first one.
func (d *Driver) LastFrame() *image.RGBA {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.last == nil {
		return nil
	}
	img := image.NewRGBA(d.last.Rect)
	copy(img.Pix, d.last.Pix)
	return img
}

func (d *Driver) Stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stats
}

// Run drives frames until ctx is done or the source ends.
func (d *Driver) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return nil
		}

		w, h := d.Size()
		stream, err := d.Source.Open(ctx, w, h)
		if err != nil {
			return fmt.Errorf("could not open frame source: %w", err)
		}

		err = d.stream(ctx, stream, w, h)
		if closeErr := stream.Close(); closeErr != nil {
			slog.Error("could not close frame source", "error", closeErr)
		}

		switch {
		case errors.Is(err, errRestart):
			slog.Info("restarting stream", "long_edge", d.LongEdge())
			continue
		case errors.Is(err, io.EOF):
			slog.Info("frame source ended")
			return nil
		}
		return err
	}
}

func (d *Driver) stream(ctx context.Context, stream Stream, w, h int) error {
	interval := d.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	buf := image.NewRGBA(image.Rect(0, 0, w, h))
	frames, lastFPS := 0, d.now()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-d.restart:
			return errRestart
		case <-ticker.C:
		}

		if err := stream.ReadFrame(buf); err != nil {
			return err
		}

		start := d.now()
		params := d.Engine.Settings().Snapshot()
		if err := d.Engine.RenderWith(params, buf); err != nil {
			return err
		}
		elapsed := d.now().Sub(start)
		if d.SlowFrame > 0 && elapsed > d.SlowFrame {
			slog.Warn("slow dither detected", "duration", elapsed, "palette", params.PaletteName,
				"colors", params.Palette.Len(), "width", w, "height", h)
		}

		frames++
		now := d.now()
		d.publish(buf, elapsed, func(s *Stats) {
			if now.Sub(lastFPS) >= time.Second {
				s.FPS = frames
				frames, lastFPS = 0, now
			}
		})

		if d.Sink != nil {
			if err := d.Sink.Present(buf); err != nil {
				return fmt.Errorf("could not present frame: %w", err)
			}
		}
	}
}

func (d *Driver) publish(buf *image.RGBA, elapsed time.Duration, update func(*Stats)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.last == nil || d.last.Rect != buf.Rect {
		d.last = image.NewRGBA(buf.Rect)
	}
	copy(d.last.Pix, buf.Pix)

	d.stats.Width, d.stats.Height = buf.Rect.Dx(), buf.Rect.Dy()
	d.stats.Frames++
	d.stats.LastDither = elapsed
	update(&d.stats)
}
