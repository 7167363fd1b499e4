// Package snapshot keeps exported chart pages on disk next to a JSON sidecar
// that records which chart and selection they were taken from.
package snapshot

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dgnsrekt/chartsync/internal/bus"
	"github.com/dgnsrekt/chartsync/internal/render"
)

var uuidRe = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)

var (
	ErrNotFound  = errors.New("snapshot not found")
	ErrInvalidID = errors.New("invalid snapshot id")
)

// Stored page formats.
const (
	FormatHTML = "html"
	FormatPNG  = "png"
)

// ContentType returns the MIME type of a stored page.
func (m Meta) ContentType() string {
	if m.Format == FormatPNG {
		return "image/png"
	}
	return "text/html; charset=utf-8"
}

// Meta describes a stored snapshot.
type Meta struct {
	ID        string      `json:"id"`
	ChartID   string      `json:"chart_id"`
	Key       string      `json:"key"`
	Kind      render.Kind `json:"kind"`
	Title     string      `json:"title,omitempty"`
	Format    string      `json:"format"`
	SizeBytes int         `json:"size_bytes"`
	CreatedAt time.Time   `json:"created_at"`
	Selection bus.Value   `json:"selection"`
	Notes     string      `json:"notes,omitempty"`
}

// Store manages snapshot files in one directory.
type Store struct {
	dir string
	mu  sync.RWMutex
}

// NewStore creates a Store and ensures the directory exists.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("snapshot store: mkdir %s: %w", dir, err)
	}
	return &Store{dir: dir}, nil
}

// Dir is the directory snapshots are written to.
func (s *Store) Dir() string { return s.dir }

func (s *Store) validateID(id string) error {
	if !uuidRe.MatchString(id) {
		return fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return nil
}

// Save assigns an ID and creation time when missing, then writes the page
// and its sidecar. A failed sidecar write removes the page again.
func (s *Store) Save(meta Meta, page []byte) (Meta, error) {
	if meta.ID == "" {
		meta.ID = uuid.NewString()
	}
	if err := s.validateID(meta.ID); err != nil {
		return Meta{}, err
	}
	if meta.Format == "" {
		meta.Format = FormatHTML
	}
	if meta.CreatedAt.IsZero() {
		meta.CreatedAt = time.Now().UTC()
	}
	meta.SizeBytes = len(page)

	s.mu.Lock()
	defer s.mu.Unlock()

	pagePath := filepath.Join(s.dir, meta.ID+"."+meta.Format)
	metaPath := filepath.Join(s.dir, meta.ID+".json")

	if err := os.WriteFile(pagePath, page, 0o644); err != nil {
		return Meta{}, fmt.Errorf("snapshot store: write page: %w", err)
	}
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		_ = os.Remove(pagePath)
		return Meta{}, fmt.Errorf("snapshot store: marshal meta: %w", err)
	}
	if err := os.WriteFile(metaPath, data, 0o644); err != nil {
		_ = os.Remove(pagePath)
		return Meta{}, fmt.Errorf("snapshot store: write meta: %w", err)
	}
	slog.Debug("snapshot saved", "id", meta.ID, "key", meta.Key, "size_bytes", meta.SizeBytes)
	return meta, nil
}

// Get reads snapshot metadata by ID.
func (s *Store) Get(id string) (Meta, error) {
	if err := s.validateID(id); err != nil {
		return Meta{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.readMeta(id)
}

func (s *Store) readMeta(id string) (Meta, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, id+".json"))
	if err != nil {
		if os.IsNotExist(err) {
			return Meta{}, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return Meta{}, fmt.Errorf("snapshot store: read meta: %w", err)
	}
	var meta Meta
	if err := json.Unmarshal(data, &meta); err != nil {
		return Meta{}, fmt.Errorf("snapshot store: unmarshal meta: %w", err)
	}
	return meta, nil
}

// List returns all snapshots, newest first. Unreadable sidecars are skipped.
func (s *Store) List() ([]Meta, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matches, err := filepath.Glob(filepath.Join(s.dir, "*.json"))
	if err != nil {
		return nil, fmt.Errorf("snapshot store: glob: %w", err)
	}
	metas := make([]Meta, 0, len(matches))
	for _, path := range matches {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		var meta Meta
		if err := json.Unmarshal(data, &meta); err != nil {
			slog.Debug("snapshot sidecar skipped", "path", path, "error", err)
			continue
		}
		metas = append(metas, meta)
	}
	sort.Slice(metas, func(i, j int) bool {
		return metas[i].CreatedAt.After(metas[j].CreatedAt)
	})
	return metas, nil
}

// Read returns the stored page and its metadata.
func (s *Store) Read(id string) ([]byte, Meta, error) {
	if err := s.validateID(id); err != nil {
		return nil, Meta{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	meta, err := s.readMeta(id)
	if err != nil {
		return nil, Meta{}, err
	}
	data, err := os.ReadFile(filepath.Join(s.dir, id+"."+meta.Format))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, Meta{}, fmt.Errorf("%w: page for %s", ErrNotFound, id)
		}
		return nil, Meta{}, fmt.Errorf("snapshot store: read page: %w", err)
	}
	return data, meta, nil
}

// Delete removes the page and the sidecar. A page that is already gone is
// logged and otherwise ignored.
func (s *Store) Delete(id string) error {
	if err := s.validateID(id); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	meta, err := s.readMeta(id)
	if err != nil {
		return err
	}
	if err := os.Remove(filepath.Join(s.dir, id+"."+meta.Format)); err != nil {
		slog.Debug("snapshot image cleanup failed", "id", id, "error", err)
	}
	if err := os.Remove(filepath.Join(s.dir, id+".json")); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("snapshot store: remove meta: %w", err)
	}
	return nil
}
