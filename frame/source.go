package frame

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"os"
	"sync"

	"golang.org/x/image/draw"
)

// Source produces streams of frames at a requested canvas size.
type Source interface {
	Open(ctx context.Context, width, height int) (Stream, error)
}

// Stream fills frames of the size it was opened with. ReadFrame blocks until
// the next frame is available and returns io.EOF when the source ends.
type Stream interface {
	ReadFrame(dst *image.RGBA) error
	Close() error
}

// ImageSource repeats a still image forever, scaled to the canvas. Useful
// without a camera and in tests.
type ImageSource struct {
	Image image.Image
	Mode  FitMode
	Fill  color.Color
}

func LoadImageSource(path string, mode FitMode) (*ImageSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("could not open image %q: %w", path, err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("could not decode image %q: %w", path, err)
	}
	return &ImageSource{Image: img, Mode: mode}, nil
}

func (s *ImageSource) Aspect() float64 {
	b := s.Image.Bounds()
	if b.Empty() {
		return 0
	}
	return float64(b.Dx()) / float64(b.Dy())
}

func (s *ImageSource) Open(ctx context.Context, width, height int) (Stream, error) {
	if s.Image == nil {
		return nil, fmt.Errorf("no image to stream")
	}
	return &imageStream{src: s, width: width, height: height}, nil
}

type imageStream struct {
	src           *ImageSource
	width, height int

	once   sync.Once
	scaled *image.RGBA
}

func (s *imageStream) ReadFrame(dst *image.RGBA) error {
	if dst.Bounds().Dx() != s.width || dst.Bounds().Dy() != s.height {
		return fmt.Errorf("frame is %v, stream produces %dx%d", dst.Bounds().Size(), s.width, s.height)
	}
	s.once.Do(func() {
		s.scaled = image.NewRGBA(image.Rect(0, 0, s.width, s.height))
		Fit(s.scaled, s.src.Image, s.src.Mode, s.src.Fill, draw.CatmullRom)
	})
	draw.Copy(dst, dst.Bounds().Min, s.scaled, s.scaled.Bounds(), draw.Src, nil)
	return nil
}

func (s *imageStream) Close() error {
	return nil
}
