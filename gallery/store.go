package gallery

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"camdither/export"

	"github.com/klauspost/compress/zstd"
)

const DefaultCapacity = 50

var ErrNotFound = errors.New("snapshot not found")

// Snapshot is a saved, PNG encoded frame. ID is the capture time in unix
// milliseconds.
type Snapshot struct {
	ID      int64     `json:"id"`
	Created time.Time `json:"created"`
	PNG     []byte    `json:"png"`
}

func (s Snapshot) Name() string {
	return fmt.Sprintf("dither-%d", s.ID)
}

func (s Snapshot) Image() (image.Image, error) {
	img, err := decodePNG(s.PNG)
	if err != nil {
		return nil, fmt.Errorf("could not decode snapshot %d: %w", s.ID, err)
	}
	return img, nil
}

// Store keeps snapshots newest first and persists them best effort into a
// single zstd compressed JSON file. An empty path keeps everything in memory.
type Store struct {
	mu       sync.RWMutex
	path     string
	capacity int
	items    []Snapshot
}

// Open loads the gallery at path. A missing or unreadable file starts an
// empty gallery.
func Open(path string, capacity int) *Store {
	if capacity < 1 {
		capacity = DefaultCapacity
	}
	s := &Store{path: path, capacity: capacity}
	if path == "" {
		return s
	}

	items, err := load(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			slog.Warn("could not load gallery, starting empty", "file", path, "error", err)
		}
		return s
	}
	if len(items) > capacity {
		items = items[:capacity]
	}
	s.items = items
	return s
}

func load(path string) ([]Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("could not open gallery stream: %w", err)
	}
	defer dec.Close()

	var items []Snapshot
	if err := json.NewDecoder(dec).Decode(&items); err != nil {
		return nil, fmt.Errorf("could not decode gallery: %w", err)
	}
	return items, nil
}

// Add encodes img and puts it at the front of the gallery, evicting the
// oldest snapshots past capacity. The snapshot stays in memory even when
// persisting fails; the error is returned for the caller to report.
func (s *Store) Add(img image.Image, at time.Time) (Snapshot, error) {
	var buf bytes.Buffer
	if err := export.Encode(&buf, img, "png", nil); err != nil {
		return Snapshot{}, err
	}
	snap := Snapshot{ID: at.UnixMilli(), Created: at, PNG: buf.Bytes()}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.items = slices.DeleteFunc(s.items, func(it Snapshot) bool { return it.ID == snap.ID })
	s.items = slices.Insert(s.items, 0, snap)
	if len(s.items) > s.capacity {
		s.items = s.items[:s.capacity]
	}

	if err := s.persist(); err != nil {
		slog.Warn("gallery storage failed, removing oldest", "error", err)
		if len(s.items) > 1 {
			s.items = s.items[:len(s.items)-1]
		}
		if err := s.persist(); err != nil {
			return snap, fmt.Errorf("could not save gallery: %w", err)
		}
	}
	return snap, nil
}

func (s *Store) List() []Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.items)
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

func (s *Store) Get(id int64) (Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := slices.IndexFunc(s.items, func(it Snapshot) bool { return it.ID == id })
	if i < 0 {
		return Snapshot{}, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	return s.items[i], nil
}

func (s *Store) Delete(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.items)
	s.items = slices.DeleteFunc(s.items, func(it Snapshot) bool { return it.ID == id })
	if len(s.items) == n {
		return fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	return s.persist()
}

// persist writes the gallery next to its final location and renames it into
// place. Callers hold the lock.
func (s *Store) persist() (err error) {
	if s.path == "" {
		return nil
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("unable to create gallery folder %q: %w", dir, err)
	}

	outFile, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*")
	if err != nil {
		return fmt.Errorf("could not create temporary gallery file: %w", err)
	}
	defer func() {
		if err != nil {
			outFile.Close()
			os.Remove(outFile.Name())
		}
	}()

	enc, err := zstd.NewWriter(outFile)
	if err != nil {
		return fmt.Errorf("could not open gallery stream: %w", err)
	}
	if err = json.NewEncoder(enc).Encode(s.items); err != nil {
		enc.Close()
		return fmt.Errorf("could not encode gallery: %w", err)
	}
	if err = enc.Close(); err != nil {
		return fmt.Errorf("could not flush gallery stream: %w", err)
	}
	if err = outFile.Sync(); err != nil {
		return fmt.Errorf("could not flush gallery file: %w", err)
	}
	if err = outFile.Close(); err != nil {
		return fmt.Errorf("could not close gallery file: %w", err)
	}
	if err = os.Rename(outFile.Name(), s.path); err != nil {
		return fmt.Errorf("could not rename gallery file: %w", err)
	}
	return nil
}
