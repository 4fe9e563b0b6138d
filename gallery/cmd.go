package gallery

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"camdither/export"

	"github.com/alecthomas/kong"
)

type CLICmd struct {
	Ls     LsCmd     `cmd:"" help:"List saved snapshots, newest first"`
	Export ExportCmd `cmd:"" help:"Write snapshots to a folder"`
	Rm     RmCmd     `cmd:"" help:"Delete snapshots"`
}

type LsCmd struct{}

func (c *LsCmd) Run(store *Store) error {
	return list(os.Stdout, store)
}

func list(w io.Writer, store *Store) error {
	for _, snap := range store.List() {
		size := "?"
		if conf, err := png.DecodeConfig(bytes.NewReader(snap.PNG)); err == nil {
			size = fmt.Sprintf("%dx%d", conf.Width, conf.Height)
		}
		if _, err := fmt.Fprintf(w, "%d  %s  %9s  %6d bytes\n", snap.ID,
			snap.Created.Local().Format(time.DateTime), size, len(snap.PNG)); err != nil {
			return err
		}
	}
	return nil
}

type ExportCmd struct {
	IDs    []int64 `arg:"" optional:"" name:"id" help:"Snapshot ids; all snapshots when omitted"`
	Dest   string  `help:"Destination folder" default:"."`
	Format string  `help:"Output format" enum:"png,gif,jpeg,bmp,tiff" default:"png"`
}

func (c *ExportCmd) Validate(kctx *kong.Context) error {
	dest, err := filepath.Abs(c.Dest)
	if err != nil {
		return fmt.Errorf("invalid destination path %q: %w", c.Dest, err)
	}
	c.Dest = dest
	return nil
}

func (c *ExportCmd) Run(store *Store) error {
	if err := os.MkdirAll(c.Dest, 0o755); err != nil {
		return fmt.Errorf("unable to create destination folder %q: %w", c.Dest, err)
	}

	snaps, err := selectSnapshots(store, c.IDs)
	if err != nil {
		return err
	}

	var exported, errCount int
	for _, snap := range snaps {
		if err := exportSnapshot(snap, c.Format, c.Dest); err != nil {
			errCount++
			slog.Error("could not export snapshot", "id", snap.ID, "error", err)
			continue
		}
		exported++
	}

	slog.Info("stats", "exported", exported, "errors", errCount, "total", exported+errCount)
	if errCount > 0 {
		return fmt.Errorf("error exporting %d snapshots", errCount)
	}
	return nil
}

func selectSnapshots(store *Store, ids []int64) ([]Snapshot, error) {
	if len(ids) == 0 {
		return store.List(), nil
	}
	snaps := make([]Snapshot, 0, len(ids))
	for _, id := range ids {
		snap, err := store.Get(id)
		if err != nil {
			return nil, err
		}
		snaps = append(snaps, snap)
	}
	return snaps, nil
}

func exportSnapshot(snap Snapshot, format, destDir string) error {
	dest := filepath.Join(destDir, snap.Name()+"."+export.Ext(format))
	if err := checkDest(dest); err != nil {
		return err
	}

	// PNG snapshots are written as stored.
	if format == "png" {
		return writeFile(dest, snap.PNG)
	}

	img, err := snap.Image()
	if err != nil {
		return err
	}
	path, err := export.Save(img, format, paletteOf(img), destDir, snap.Name())
	if err != nil {
		return err
	}
	slog.Info("exported", "id", snap.ID, "to", path)
	return nil
}

func writeFile(dest string, data []byte) error {
	outFile, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("could not open destination file %q: %w", dest, err)
	}
	defer func() {
		if closeErr := outFile.Close(); closeErr != nil {
			slog.Error("could not close destination file", "name", dest, "error", closeErr)
		}
	}()

	if _, err = outFile.Write(data); err != nil {
		return fmt.Errorf("could not write %q: %w", dest, err)
	}
	if err = outFile.Sync(); err != nil {
		return fmt.Errorf("could not flush destination file %q: %w", dest, err)
	}
	slog.Info("exported", "to", dest)
	return nil
}

func checkDest(dest string) error {
	destFileInfo, err := os.Stat(dest)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("cannot stat destination file %q: %w", dest, err)
		}
		return nil
	}
	return fmt.Errorf("destination file already exists: %q", destFileInfo.Name())
}

type RmCmd struct {
	IDs []int64 `arg:"" name:"id" help:"Snapshot ids"`
}

func (c *RmCmd) Run(store *Store) error {
	for _, id := range c.IDs {
		if err := store.Delete(id); err != nil {
			return err
		}
		slog.Info("deleted", "id", id)
	}
	return nil
}

func decodePNG(data []byte) (image.Image, error) {
	return png.Decode(bytes.NewReader(data))
}

// paletteOf collects the distinct colours of a dithered snapshot so GIF
// exports keep them exactly. Images with more than 256 colours return nil.
func paletteOf(img image.Image) color.Palette {
	if p, ok := img.(*image.Paletted); ok {
		return p.Palette
	}

	seen := make(map[color.RGBA]struct{})
	var pal color.Palette
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := color.RGBAModel.Convert(img.At(x, y)).(color.RGBA)
			if _, ok := seen[c]; ok {
				continue
			}
			if len(pal) == 256 {
				return nil
			}
			seen[c] = struct{}{}
			pal = append(pal, c)
		}
	}
	return pal
}
