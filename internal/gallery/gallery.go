// Package gallery stores shared event photos.
package gallery

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// MaxUploadBytes caps a single photo upload.
const MaxUploadBytes = 10 << 20

// ErrTooLarge reports an upload body over MaxUploadBytes. The oversized file
// is never kept.
var ErrTooLarge = errors.New("photo exceeds the upload limit")

// Store is the photo storage boundary.
type Store interface {
	Save(name string, r io.Reader) (string, error)
	List() ([]string, error)
	Open(name string) (io.ReadCloser, error)
}

// DiskStore keeps photos in a flat directory, prefixing each file with its
// upload time so listings come back newest first.
type DiskStore struct {
	dir string
	now func() time.Time
}

func NewDiskStore(dir string) (*DiskStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating gallery dir %s: %w", dir, err)
	}
	return &DiskStore{dir: dir, now: time.Now}, nil
}

func (s *DiskStore) Save(name string, r io.Reader) (string, error) {
	base := sanitize(filepath.Base(name))
	if base == "" || base == "." {
		return "", fmt.Errorf("invalid photo name %q", name)
	}
	stored := fmt.Sprintf("%d_%s", s.now().UnixNano(), base)

	f, err := os.Create(filepath.Join(s.dir, stored))
	if err != nil {
		return "", fmt.Errorf("creating photo %s: %w", stored, err)
	}
	defer f.Close()

	// Read one byte past the cap so a lying Content-Length or multipart
	// size can't sneak a truncated file into the gallery.
	n, err := io.Copy(f, io.LimitReader(r, MaxUploadBytes+1))
	if err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("writing photo %s: %w", stored, err)
	}
	if n > MaxUploadBytes {
		os.Remove(f.Name())
		return "", ErrTooLarge
	}
	return stored, nil
}

func (s *DiskStore) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("listing gallery: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	// Timestamp prefixes make lexicographic descending == newest first.
	sort.Sort(sort.Reverse(sort.StringSlice(names)))
	return names, nil
}

func (s *DiskStore) Open(name string) (io.ReadCloser, error) {
	clean := filepath.Base(name)
	if clean != name {
		return nil, fmt.Errorf("invalid photo name %q", name)
	}
	f, err := os.Open(filepath.Join(s.dir, clean))
	if err != nil {
		return nil, fmt.Errorf("opening photo %s: %w", name, err)
	}
	return f, nil
}

func sanitize(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.' || r == '-' || r == '_':
			return r
		default:
			return '_'
		}
	}, name)
}
