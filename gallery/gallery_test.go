package gallery

import (
	"errors"
	"image"
	"image/color"
	"image/gif"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func frame(c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, 6, 4))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	return img
}

var epoch = time.UnixMilli(1_700_000_000_000)

func TestAddNewestFirst(t *testing.T) {
	s := Open("", 3)
	for i := range 5 {
		if _, err := s.Add(frame(color.RGBA{R: uint8(i), A: 255}), epoch.Add(time.Duration(i)*time.Second)); err != nil {
			t.Fatal(err)
		}
	}

	list := s.List()
	if len(list) != 3 {
		t.Fatalf("List() has %d items, want 3", len(list))
	}
	for i, want := range []int64{4, 3, 2} {
		if got := list[i].ID; got != epoch.UnixMilli()+want*1000 {
			t.Errorf("List()[%d].ID = %d, want %d", i, got, epoch.UnixMilli()+want*1000)
		}
	}

	img, err := list[0].Image()
	if err != nil {
		t.Fatal(err)
	}
	if r, _, _, _ := img.At(0, 0).RGBA(); r>>8 != 4 {
		t.Errorf("newest snapshot pixel red = %d, want 4", r>>8)
	}
}

func TestDefaultCapacity(t *testing.T) {
	s := Open("", 0)
	for i := range DefaultCapacity + 5 {
		if _, err := s.Add(frame(color.RGBA{A: 255}), epoch.Add(time.Duration(i)*time.Millisecond)); err != nil {
			t.Fatal(err)
		}
	}
	if s.Len() != DefaultCapacity {
		t.Errorf("Len() = %d, want %d", s.Len(), DefaultCapacity)
	}
}

func TestPersistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "gallery.json.zst")

	s := Open(path, 10)
	a, err := s.Add(frame(color.RGBA{G: 200, A: 255}), epoch)
	if err != nil {
		t.Fatal(err)
	}
	b, err := s.Add(frame(color.RGBA{B: 200, A: 255}), epoch.Add(time.Second))
	if err != nil {
		t.Fatal(err)
	}

	reopened := Open(path, 10)
	list := reopened.List()
	if len(list) != 2 || list[0].ID != b.ID || list[1].ID != a.ID {
		t.Fatalf("reopened gallery = %v", list)
	}
	if !list[1].Created.Equal(a.Created) {
		t.Errorf("Created = %v, want %v", list[1].Created, a.Created)
	}

	if err := reopened.Delete(a.ID); err != nil {
		t.Fatal(err)
	}
	if got := Open(path, 10).Len(); got != 1 {
		t.Errorf("after Delete, reopened Len() = %d, want 1", got)
	}

	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Errorf("gallery folder has %d entries, want 1", len(entries))
	}
}

func TestCorruptFileStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gallery.json.zst")
	if err := os.WriteFile(path, []byte("not zstd"), 0o644); err != nil {
		t.Fatal(err)
	}
	if s := Open(path, 10); s.Len() != 0 {
		t.Errorf("Len() = %d, want 0", s.Len())
	}
}

func TestPersistFailureKeepsSnapshot(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	if err := os.WriteFile(blocker, nil, 0o644); err != nil {
		t.Fatal(err)
	}

	s := Open(filepath.Join(blocker, "gallery.json.zst"), 10)
	snap, err := s.Add(frame(color.RGBA{A: 255}), epoch)
	if err == nil {
		t.Fatal("Add() should report the storage failure")
	}
	if _, err := s.Get(snap.ID); err != nil {
		t.Errorf("snapshot not kept in memory: %v", err)
	}
}

func TestGetDeleteMissing(t *testing.T) {
	s := Open("", 10)
	if _, err := s.Get(1); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() error = %v, want ErrNotFound", err)
	}
	if err := s.Delete(1); !errors.Is(err, ErrNotFound) {
		t.Errorf("Delete() error = %v, want ErrNotFound", err)
	}
}

func TestExportCmd(t *testing.T) {
	s := Open("", 10)
	snap, err := s.Add(frame(color.RGBA{R: 255, G: 176, A: 255}), epoch)
	if err != nil {
		t.Fatal(err)
	}

	dest := t.TempDir()
	cmd := &ExportCmd{Dest: dest, Format: "gif"}
	if err := cmd.Run(s); err != nil {
		t.Fatal(err)
	}

	f, err := os.Open(filepath.Join(dest, snap.Name()+".gif"))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	g, err := gif.Decode(f)
	if err != nil {
		t.Fatal(err)
	}
	if r, gr, _, _ := g.At(0, 0).RGBA(); r>>8 != 255 || gr>>8 != 176 {
		t.Errorf("exported pixel = %v", g.At(0, 0))
	}

	if err := cmd.Run(s); err == nil {
		t.Error("exporting over an existing file should fail")
	}

	png := &ExportCmd{IDs: []int64{snap.ID}, Dest: dest, Format: "png"}
	if err := png.Run(s); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(dest, "dither-1700000000000.png")); err != nil {
		t.Error(err)
	}

	missing := &ExportCmd{IDs: []int64{42}, Dest: dest, Format: "png"}
	if err := missing.Run(s); !errors.Is(err, ErrNotFound) {
		t.Errorf("Run() error = %v, want ErrNotFound", err)
	}
}

func TestList(t *testing.T) {
	s := Open("", 10)
	if _, err := s.Add(frame(color.RGBA{A: 255}), epoch); err != nil {
		t.Fatal(err)
	}
	var sb strings.Builder
	if err := list(&sb, s); err != nil {
		t.Fatal(err)
	}
	if out := sb.String(); !strings.Contains(out, "1700000000000") || !strings.Contains(out, "6x4") {
		t.Errorf("list output = %q", out)
	}
}
