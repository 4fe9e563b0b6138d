package export

import (
	"bytes"
	"image"
	"image/color"
	"image/gif"
	"os"
	"path/filepath"
	"testing"

	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
)

func checker(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			c := color.RGBA{A: 255}
			if (x+y)%2 == 0 {
				c = color.RGBA{R: 255, G: 176, A: 255}
			}
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func TestEncodeFormats(t *testing.T) {
	img := checker(8, 6)
	for _, format := range Formats {
		t.Run(format, func(t *testing.T) {
			var buf bytes.Buffer
			if err := Encode(&buf, img, format, nil); err != nil {
				t.Fatal(err)
			}
			decoded, name, err := image.Decode(&buf)
			if err != nil {
				t.Fatalf("decode %s: %v", format, err)
			}
			if name != format {
				t.Errorf("decoded format = %s, want %s", name, format)
			}
			if decoded.Bounds() != img.Bounds() {
				t.Errorf("bounds = %v, want %v", decoded.Bounds(), img.Bounds())
			}
		})
	}

	if err := Encode(&bytes.Buffer{}, img, "webp", nil); err == nil {
		t.Error("Encode(webp) should fail")
	}
}

func TestEncodeGIFKeepsPalette(t *testing.T) {
	img := checker(4, 4)
	pal := color.Palette{color.RGBA{A: 255}, color.RGBA{R: 255, G: 176, A: 255}}

	var buf bytes.Buffer
	if err := Encode(&buf, img, "gif", pal); err != nil {
		t.Fatal(err)
	}
	g, err := gif.Decode(&buf)
	if err != nil {
		t.Fatal(err)
	}
	p, ok := g.(*image.Paletted)
	if !ok {
		t.Fatalf("decoded %T, want *image.Paletted", g)
	}
	if len(p.Palette) != 2 {
		t.Errorf("palette has %d colours, want 2", len(p.Palette))
	}
	r, gr, b, _ := p.At(0, 0).RGBA()
	if r>>8 != 255 || gr>>8 != 176 || b != 0 {
		t.Errorf("pixel (0,0) = %v", p.At(0, 0))
	}
}

func TestSave(t *testing.T) {
	dir := t.TempDir()
	path, err := Save(checker(4, 4), "jpeg", nil, dir, "dither-1700000000000")
	if err != nil {
		t.Fatal(err)
	}
	if want := filepath.Join(dir, "dither-1700000000000.jpg"); path != want {
		t.Errorf("Save() path = %s, want %s", path, want)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("directory has %d entries, want only the saved file", len(entries))
	}

	if _, err := Save(checker(4, 4), "xcf", nil, dir, "bad"); err == nil {
		t.Error("Save(xcf) should fail")
	}
	entries, _ = os.ReadDir(dir)
	if len(entries) != 1 {
		t.Errorf("failed save left %d entries behind", len(entries))
	}
}

func TestFormatFromName(t *testing.T) {
	tests := map[string]string{
		"a.PNG":  "png",
		"b.jpg":  "jpeg",
		"c.tif":  "tiff",
		"d.webp": "png",
		"e":      "png",
	}
	for name, want := range tests {
		if got := FormatFromName(name, "png"); got != want {
			t.Errorf("FormatFromName(%q) = %s, want %s", name, got, want)
		}
	}
}

func TestStamp(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 120, 40))
	Stamp(img, "EV +1.0", color.White, color.Black)

	var lit int
	for y := 20; y < 40; y++ {
		for x := range 60 {
			if img.RGBAAt(x, y).R == 255 {
				lit++
			}
		}
	}
	if lit == 0 {
		t.Error("caption drew no pixels")
	}
	if c := img.RGBAAt(119, 0); c.A != 0 {
		t.Errorf("pixel outside the caption strip changed: %v", c)
	}
}
