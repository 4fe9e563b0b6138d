package palette

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	svg "github.com/ajstarks/svgo"
)

// Load reads a palette file: RIFF PAL for ".pal", otherwise one hex colour
// per line, #rrggbb or #rgb with the '#' optional. Lines starting with ';',
// or with '#' not followed by a hex colour, are comments.
// Multiple RIFF chunks are concatenated.
func Load(path string) (Palette, error) {
	f, err := os.Open(path)
	if err != nil {
		return Palette{}, fmt.Errorf("could not open palette %q: %w", path, err)
	}
	defer f.Close()

	if strings.EqualFold(filepath.Ext(path), ".pal") {
		pals, err := ReadRIFF(f)
		if err != nil {
			return Palette{}, fmt.Errorf("could not load palette %q: %w", path, err)
		}
		var colors []RGB
		for _, p := range pals {
			colors = append(colors, p.colors...)
		}
		return New(colors...)
	}

	p, err := ReadHex(f)
	if err != nil {
		return Palette{}, fmt.Errorf("could not load palette %q: %w", path, err)
	}
	return p, nil
}

func ReadHex(rd io.Reader) (Palette, error) {
	var colors []RGB
	sc := bufio.NewScanner(rd)
	for line := 1; sc.Scan(); line++ {
		s := strings.TrimSpace(sc.Text())
		if s == "" || s[0] == ';' || (s[0] == '#' && !isHexColor(s[1:])) {
			continue
		}
		c, err := parseHex(s)
		if err != nil {
			return Palette{}, fmt.Errorf("line %d: %w", line, err)
		}
		colors = append(colors, c)
	}
	if err := sc.Err(); err != nil {
		return Palette{}, err
	}
	return New(colors...)
}

func isHexColor(s string) bool {
	if len(s) != 3 && len(s) != 6 {
		return false
	}
	for _, r := range s {
		if !strings.ContainsRune("0123456789abcdefABCDEF", r) {
			return false
		}
	}
	return true
}

// Resolve looks a palette up by name and falls back to loading it as a file.
// Palettes loaded from disk are registered under their base name, prefixed
// with FILE_ when that name belongs to a built-in palette.
func (s *Store) Resolve(nameOrPath string) (string, Palette, error) {
	if p, err := s.Lookup(nameOrPath); err == nil {
		return key(nameOrPath), p, nil
	}

	if _, err := os.Stat(nameOrPath); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", Palette{}, fmt.Errorf("%w: %q", ErrUnknownPalette, nameOrPath)
		}
		return "", Palette{}, fmt.Errorf("cannot stat palette file %q: %w", nameOrPath, err)
	}

	p, err := Load(nameOrPath)
	if err != nil {
		return "", Palette{}, err
	}
	base := filepath.Base(nameOrPath)
	name := key(strings.TrimSuffix(base, filepath.Ext(base)))
	if s.Reserved(name) {
		name = "FILE_" + name
	}
	if err := s.Register(name, p); err != nil {
		return "", Palette{}, err
	}
	return name, p, nil
}

const swatchSize = 32

// WriteSVG draws the palette as a row of square swatches.
func WriteSVG(w io.Writer, p Palette) error {
	ew := &errWriter{w: w}
	canvas := svg.New(ew)
	canvas.Start(p.Len()*swatchSize, swatchSize)
	for i, c := range p.colors {
		canvas.Rect(i*swatchSize, 0, swatchSize, swatchSize, "fill:"+c.String())
	}
	canvas.End()
	return ew.err
}

// errWriter keeps the first write error; svgo does not report them.
type errWriter struct {
	w   io.Writer
	err error
}

func (e *errWriter) Write(b []byte) (int, error) {
	if e.err != nil {
		return 0, e.err
	}
	n, err := e.w.Write(b)
	e.err = err
	return n, err
}
