package palette

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"golang.org/x/image/riff"
)

/*
typedef struct tagLOGPALETTE {
  WORD         palVersion;
  WORD         palNumEntries;
  PALETTEENTRY palPalEntry[1];
} LOGPALETTE;

typedef struct tagPALETTEENTRY {
  BYTE peRed;
  BYTE peGreen;
  BYTE peBlue;
  BYTE peFlags;
} PALETTEENTRY;
*/

var (
	riffType = riff.FourCC{'R', 'I', 'F', 'F'}
	palType  = riff.FourCC{'P', 'A', 'L', ' '}
	dataType = riff.FourCC{'d', 'a', 't', 'a'}
)

const palVersion = 0x0300

// ReadRIFF reads every palette chunk of a RIFF PAL document.
func ReadRIFF(r io.Reader) ([]Palette, error) {
	formType, rd, err := riff.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("could not open RIFF stream: %w", err)
	} else if formType != palType {
		return nil, fmt.Errorf("unsupported RIFF content type: %s", string(formType[:]))
	}

	return readPalettes(rd, string(formType[:]))
}

func readPalettes(r *riff.Reader, ident string) ([]Palette, error) {
	var res []Palette

	for {
		id, size, data, err := r.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return res, fmt.Errorf("could not read chunk %q#%d: %w", ident, len(res), err)
		}

		switch id {
		case riff.LIST:
			listType, list, lerr := riff.NewListReader(size, data)
			if lerr != nil {
				return res, fmt.Errorf("could not read list from chunk %q#%d: %w", ident, len(res), lerr)
			} else if listType != palType {
				return res, fmt.Errorf("chunk %q#%d unsupported type: %s", ident, len(res), string(listType[:]))
			}

			listRes, lerr := readPalettes(list, fmt.Sprintf("%s%d.%s", ident, len(res), listType[:]))
			res = append(res, listRes...)
			if lerr != nil {
				return res, lerr
			}
		case dataType:
			pal, err := readPalette(data, fmt.Sprintf("%s%d", ident, len(res)))
			if err != nil {
				return res, err
			}
			res = append(res, pal)
		default:
			return res, fmt.Errorf("unsupported chunk type in %q#%d: %s", ident, len(res), id)
		}
	}

	return res, nil
}

func readPalette(r io.Reader, ident string) (Palette, error) {
	buf := make([]byte, 4)
	if _, err := io.ReadFull(r, buf); err != nil {
		return Palette{}, fmt.Errorf("could not read header from chunk %s: %w", ident, err)
	}

	if ver := binary.LittleEndian.Uint16(buf); ver != palVersion {
		return Palette{}, fmt.Errorf("unsupported palette version in chunk %s: %#x", ident, ver)
	}

	count := binary.LittleEndian.Uint16(buf[2:])
	colors := make([]RGB, count)
	for i := range count {
		if _, err := io.ReadFull(r, buf); err != nil {
			return Palette{}, fmt.Errorf("could not read color %d/%d from chunk %s: %w", i, count, ident, err)
		}
		colors[i] = RGB{R: buf[0], G: buf[1], B: buf[2]}
	}

	p, err := New(colors...)
	if err != nil {
		return Palette{}, fmt.Errorf("chunk %s: %w", ident, err)
	}
	return p, nil
}

// WriteRIFF writes the palettes as consecutive data chunks of one RIFF PAL
// document and returns the number of colours written.
func WriteRIFF(w io.Writer, pals ...Palette) (int64, error) {
	n := 4
	for _, pal := range pals {
		n += 4 + 4 + 4 + pal.Len()*4 // chunk id + chunk size + palVersion + palNumEntries + 4 bytes/color
	}

	if err := writeBytes(w, riffType[:]); err != nil {
		return 0, fmt.Errorf("could not write RIFF magic: %w", err)
	}

	if err := writeBytes(w, binary.LittleEndian.AppendUint32(nil, uint32(n))); err != nil {
		return 0, fmt.Errorf("could not write document size: %w", err)
	}

	if err := writeBytes(w, palType[:]); err != nil {
		return 0, fmt.Errorf("could not write content type: %w", err)
	}

	var count int64
	for i, pal := range pals {
		n, err := writePalette(w, pal)
		count += n
		if err != nil {
			return count, fmt.Errorf("could not write chunk %d: %w", i, err)
		}
	}

	return count, nil
}

func writePalette(w io.Writer, pal Palette) (int64, error) {
	if err := writeBytes(w, dataType[:]); err != nil {
		return 0, fmt.Errorf("could not write type: %w", err)
	}

	n := 4 + pal.Len()*4
	if err := writeBytes(w, binary.LittleEndian.AppendUint32(nil, uint32(n))); err != nil {
		return 0, fmt.Errorf("could not write chunk size: %w", err)
	}

	hdr := binary.LittleEndian.AppendUint16(nil, palVersion)
	hdr = binary.LittleEndian.AppendUint16(hdr, uint16(pal.Len()))
	if err := writeBytes(w, hdr); err != nil {
		return 0, fmt.Errorf("could not write palette header: %w", err)
	}

	for i, c := range pal.colors {
		if err := writeBytes(w, []byte{c.R, c.G, c.B, 0x00}); err != nil {
			return int64(i), fmt.Errorf("could not write color %d/%d: %w", i, pal.Len(), err)
		}
	}

	return int64(pal.Len()), nil
}

func writeBytes(w io.Writer, b []byte) error {
	n, err := w.Write(b)
	if err != nil {
		return err
	} else if n != len(b) {
		return fmt.Errorf("wrote only %d/%d bytes", n, len(b))
	}

	return nil
}
