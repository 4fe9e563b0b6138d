package export

import (
	"fmt"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	"golang.org/x/image/tiff"
)

// Formats lists the supported output formats.
var Formats = []string{"png", "gif", "jpeg", "bmp", "tiff"}

func Ext(format string) string {
	if format == "jpeg" {
		return "jpg"
	}
	return format
}

// Encode writes img in the given format. For GIF, pal (if not empty) is used
// as the colour table, so dithered frames keep their exact colours.
func Encode(w io.Writer, img image.Image, format string, pal color.Palette) error {
	switch format {
	case "gif":
		opts := &gif.Options{NumColors: 256, Drawer: draw.Src}
		if len(pal) > 0 && len(pal) <= 256 {
			opts.NumColors = len(pal)
			opts.Quantizer = paletteQuantizer(pal)
		}
		if err := gif.Encode(w, img, opts); err != nil {
			return fmt.Errorf("could not encode GIF: %w", err)
		}
	case "jpeg":
		if err := jpeg.Encode(w, img, &jpeg.Options{Quality: 100}); err != nil {
			return fmt.Errorf("could not encode JPEG: %w", err)
		}
	case "png":
		enc := png.Encoder{
			CompressionLevel: png.BestCompression,
			BufferPool:       pngPool,
		}
		if err := enc.Encode(w, img); err != nil {
			return fmt.Errorf("could not encode PNG: %w", err)
		}
	case "bmp":
		if err := bmp.Encode(w, img); err != nil {
			return fmt.Errorf("could not encode BMP: %w", err)
		}
	case "tiff":
		if err := tiff.Encode(w, img, nil); err != nil {
			return fmt.Errorf("could not encode TIFF: %w", err)
		}
	default:
		return fmt.Errorf("unsupported output format: %s", format)
	}
	return nil
}

// Save encodes img into destDir/name.<ext> through a temporary file that is
// renamed into place only once encoding succeeded.
func Save(img image.Image, format string, pal color.Palette, destDir, name string) (path string, err error) {
	destName := fmt.Sprintf("%s.%s", name, Ext(format))
	path = filepath.Join(destDir, destName)

	outFile, err := os.CreateTemp(destDir, "."+destName+".*")
	if err != nil {
		return "", fmt.Errorf("could not create temporary destination %q: %w", destName, err)
	}
	canRename := false
	defer func() {
		if defErr := outFile.Sync(); defErr != nil && err == nil {
			err = fmt.Errorf("could not flush temporary destination %q: %w", destName, defErr)
		}
		if defErr := outFile.Close(); defErr != nil && err == nil {
			err = fmt.Errorf("could not close temporary destination %q: %w", destName, defErr)
		}

		if canRename && err == nil {
			if defErr := os.Rename(outFile.Name(), path); defErr != nil {
				err = fmt.Errorf("could not rename destination file %q: %w", destName, defErr)
			}
		}
		if err != nil {
			os.Remove(outFile.Name())
			path = ""
		}
	}()

	if err = Encode(outFile, img, format, pal); err != nil {
		return "", fmt.Errorf("%q: %w", destName, err)
	}

	canRename = true
	return path, nil
}

// FormatFromName picks the format from a file extension, falling back to
// def.
func FormatFromName(name, def string) string {
	switch ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(name), ".")); ext {
	case "jpg", "jpeg":
		return "jpeg"
	case "png", "gif", "bmp", "tiff":
		return ext
	case "tif":
		return "tiff"
	}
	return def
}

// paletteQuantizer implements draw.Quantizer by ignoring the image and
// returning a fixed palette.
type paletteQuantizer color.Palette

func (q paletteQuantizer) Quantize(p color.Palette, m image.Image) color.Palette {
	return append(p[:0], q...)
}

type pngEncoderBufferPool struct {
	pool sync.Pool
}

func (p *pngEncoderBufferPool) Get() *png.EncoderBuffer {
	return p.pool.Get().(*png.EncoderBuffer)
}

func (p *pngEncoderBufferPool) Put(buf *png.EncoderBuffer) {
	p.pool.Put(buf)
}

var pngPool = &pngEncoderBufferPool{
	pool: sync.Pool{
		New: func() any {
			return &png.EncoderBuffer{}
		},
	},
}
