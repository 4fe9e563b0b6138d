package frame

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"camdither/dither"
	"camdither/palette"

	"golang.org/x/image/draw"
)

func TestDimensions(t *testing.T) {
	tests := []struct {
		name     string
		longEdge int
		aspect   float64
		w, h     int
	}{
		{"landscape 16:9", 640, 16.0 / 9.0, 640, 360},
		{"landscape 4:3", 800, 4.0 / 3.0, 800, 600},
		{"portrait phone", 640, 390.0 / 844.0, 296, 640},
		{"square", 320, 1, 320, 320},
		{"invalid aspect", 640, 0, 640, 480},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, h := Dimensions(tt.longEdge, tt.aspect)
			if w != tt.w || h != tt.h {
				t.Errorf("Dimensions(%d, %v) = %dx%d, want %dx%d", tt.longEdge, tt.aspect, w, h, tt.w, tt.h)
			}
		})
	}
}

func TestParseFitMode(t *testing.T) {
	for _, s := range []string{"stretch", "crop", "pad"} {
		if _, err := ParseFitMode(s); err != nil {
			t.Errorf("ParseFitMode(%q) error = %v", s, err)
		}
	}
	if _, err := ParseFitMode("zoom"); err == nil {
		t.Error("ParseFitMode(zoom) should fail")
	}
}

// halves returns a 20x10 image, left half red, right half blue.
func halves() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, 20, 10))
	for y := range 10 {
		for x := range 20 {
			c := color.RGBA{R: 255, A: 255}
			if x >= 10 {
				c = color.RGBA{B: 255, A: 255}
			}
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func TestFitPad(t *testing.T) {
	dst := image.NewRGBA(image.Rect(0, 0, 10, 10))
	Fit(dst, halves(), FitPad, color.RGBA{G: 255, A: 255}, draw.NearestNeighbor)

	if c := dst.RGBAAt(5, 0); c.G != 255 {
		t.Errorf("top border = %v, want fill", c)
	}
	if c := dst.RGBAAt(0, 5); c.R != 255 {
		t.Errorf("left centre = %v, want red", c)
	}
	if c := dst.RGBAAt(9, 5); c.B != 255 {
		t.Errorf("right centre = %v, want blue", c)
	}
}

func TestFitCrop(t *testing.T) {
	dst := image.NewRGBA(image.Rect(0, 0, 10, 10))
	Fit(dst, halves(), FitCrop, nil, draw.NearestNeighbor)

	// The middle 10x10 of the source remains: still half red, half blue.
	if c := dst.RGBAAt(0, 0); c.R != 255 {
		t.Errorf("left = %v, want red", c)
	}
	if c := dst.RGBAAt(9, 9); c.B != 255 {
		t.Errorf("right = %v, want blue", c)
	}
}

func TestFitStretch(t *testing.T) {
	dst := image.NewRGBA(image.Rect(0, 0, 4, 8))
	Fit(dst, halves(), FitStretch, nil, draw.NearestNeighbor)
	if c := dst.RGBAAt(0, 0); c.R != 255 {
		t.Errorf("left = %v, want red", c)
	}
	if c := dst.RGBAAt(3, 7); c.B != 255 {
		t.Errorf("right = %v, want blue", c)
	}
}

func newEngine(t *testing.T) *dither.Engine {
	t.Helper()
	s, err := dither.NewSettings(palette.Builtin(), "VGA")
	if err != nil {
		t.Fatal(err)
	}
	return dither.NewEngine(s)
}

type collector struct {
	mu     sync.Mutex
	sizes  []image.Point
	notify chan struct{}
}

func (c *collector) Present(img *image.RGBA) error {
	c.mu.Lock()
	c.sizes = append(c.sizes, img.Bounds().Size())
	c.mu.Unlock()
	select {
	case c.notify <- struct{}{}:
	default:
	}
	return nil
}

func (c *collector) wait(t *testing.T) {
	t.Helper()
	select {
	case <-c.notify:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for a frame")
	}
}

func TestDriverRendersFrames(t *testing.T) {
	src := &ImageSource{Image: halves(), Mode: FitStretch}
	sink := &collector{notify: make(chan struct{}, 1)}
	d := NewDriver(src, newEngine(t), sink, 40, 2)
	d.Interval = time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	sink.wait(t)
	last := d.LastFrame()
	if last == nil || last.Bounds().Size() != (image.Point{40, 20}) {
		t.Fatalf("LastFrame() = %v", last)
	}
	// Rendered pixels are VGA colours: pure red becomes light red or red.
	if c := last.RGBAAt(0, 0); c.G > 85 || c.R < 170 {
		t.Errorf("rendered pixel = %v", c)
	}

	d.SetLongEdge(20)
	deadline := time.After(5 * time.Second)
	for {
		sink.wait(t)
		if d.Stats().Width == 20 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("resolution change never applied")
		default:
		}
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Run() = %v", err)
	}
	if st := d.Stats(); st.Width != 20 || st.Height != 10 || st.Frames < 2 {
		t.Errorf("Stats() = %+v", st)
	}
}

type finiteSource struct {
	frames int
}

func (s *finiteSource) Open(ctx context.Context, w, h int) (Stream, error) {
	return &finiteStream{left: s.frames}, nil
}

type finiteStream struct {
	left int
}

func (s *finiteStream) ReadFrame(dst *image.RGBA) error {
	if s.left == 0 {
		return io.EOF
	}
	s.left--
	return nil
}

func (s *finiteStream) Close() error { return nil }

func TestDriverStopsAtEOF(t *testing.T) {
	var n int
	sink := SinkFunc(func(*image.RGBA) error {
		n++
		return nil
	})
	d := NewDriver(&finiteSource{frames: 3}, newEngine(t), sink, 16, 1)
	d.Interval = time.Millisecond

	if err := d.Run(context.Background()); err != nil {
		t.Fatalf("Run() = %v", err)
	}
	if n != 3 {
		t.Errorf("presented %d frames, want 3", n)
	}
}

func TestDriverSinkError(t *testing.T) {
	boom := errors.New("boom")
	sink := SinkFunc(func(*image.RGBA) error { return boom })
	d := NewDriver(&finiteSource{frames: 3}, newEngine(t), sink, 16, 1)
	d.Interval = time.Millisecond

	if err := d.Run(context.Background()); !errors.Is(err, boom) {
		t.Errorf("Run() = %v, want %v", err, boom)
	}
}

func TestLastFrameIsACopy(t *testing.T) {
	d := NewDriver(&finiteSource{frames: 1}, newEngine(t), nil, 8, 1)
	d.Interval = time.Millisecond
	if d.LastFrame() != nil {
		t.Fatal("LastFrame() before any frame should be nil")
	}
	if err := d.Run(context.Background()); err != nil {
		t.Fatal(err)
	}

	a := d.LastFrame()
	a.Pix[0] = 123
	if b := d.LastFrame(); b.Pix[0] == 123 {
		t.Error("LastFrame() shares memory with the driver")
	}
}

// stepClock advances by step on every reading.
type stepClock struct {
	now  time.Time
	step time.Duration
}

func (c *stepClock) Now() time.Time {
	c.now = c.now.Add(c.step)
	return c.now
}

func TestDriverTiming(t *testing.T) {
	tests := []struct {
		name     string
		step     time.Duration
		wantSlow bool
		wantFPS  int
	}{
		// Each frame reads the clock three times: render start, render end
		// and publish.
		{"fast frames", 10 * time.Millisecond, false, 0},
		{"slow frames", 250 * time.Millisecond, true, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var logs bytes.Buffer
			prev := slog.Default()
			slog.SetDefault(slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelWarn})))
			t.Cleanup(func() { slog.SetDefault(prev) })

			clock := &stepClock{now: time.Unix(1_700_000_000, 0), step: tt.step}
			d := NewDriver(&finiteSource{frames: 3}, newEngine(t), nil, 16, 1)
			d.Interval = time.Millisecond
			d.Now = clock.Now

			if err := d.Run(context.Background()); err != nil {
				t.Fatal(err)
			}

			if slow := strings.Contains(logs.String(), "slow dither detected"); slow != tt.wantSlow {
				t.Errorf("slow frame warning = %v, want %v (logs %q)", slow, tt.wantSlow, logs.String())
			}
			st := d.Stats()
			if st.FPS != tt.wantFPS || st.Frames != 3 || st.LastDither != tt.step {
				t.Errorf("Stats() = %+v, want FPS %d after 3 frames", st, tt.wantFPS)
			}
		})
	}
}
