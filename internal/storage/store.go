package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// Backend holds the serialized catalog document. Read returns ErrNotFound when nothing
// has been stored yet.
type Backend interface {
	Read(ctx context.Context) ([]byte, error)
	Write(ctx context.Context, data []byte) error
}

// Store owns the catalog document. Writes are serialized through one mutex; reads are
// served from the snapshot taken after the last successful save or refresh.
type Store struct {
	backend Backend
	logger  zerolog.Logger

	writeMu sync.Mutex

	mu   sync.RWMutex
	snap *Catalog
}

func NewStore(backend Backend, logger zerolog.Logger) *Store {
	return &Store{backend: backend, logger: logger.With().Str("component", "storage").Logger()}
}

// Load returns a private copy of the current catalog. It never fails: a missing or
// unparseable document yields a fresh seeded catalog. When the backend cannot be read no
// snapshot is kept, so the next call tries again.
func (s *Store) Load(ctx context.Context) *Catalog {
	s.mu.RLock()
	snap := s.snap
	s.mu.RUnlock()
	if snap != nil {
		return snap.Clone()
	}
	c, err := s.read(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("catalog read failed, serving an empty catalog")
		return NewCatalog()
	}
	s.setSnapshot(c)
	return c.Clone()
}

// Refresh re-reads the backend and replaces the snapshot. A failed read keeps the old one.
func (s *Store) Refresh(ctx context.Context) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	c, err := s.read(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("catalog refresh failed, keeping the previous snapshot")
		return
	}
	s.setSnapshot(c)
}

// read loads the document. Only a missing or corrupt document is replaced by a fresh
// catalog; any other backend error is returned.
func (s *Store) read(ctx context.Context) (*Catalog, error) {
	data, err := s.backend.Read(ctx)
	if errors.Is(err, ErrNotFound) {
		return NewCatalog(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	c, err := Decode(data)
	if err != nil {
		s.logger.Warn().Err(err).Msg("catalog is corrupt, starting from an empty catalog")
		return NewCatalog(), nil
	}
	return c, nil
}

func (s *Store) setSnapshot(c *Catalog) {
	s.mu.Lock()
	s.snap = c
	s.mu.Unlock()
}

// Save persists c as the whole catalog.
func (s *Store) Save(ctx context.Context, c *Catalog) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.save(ctx, c)
}

func (s *Store) save(ctx context.Context, c *Catalog) error {
	cp := c.Clone()
	data, err := Encode(cp)
	if err != nil {
		return err
	}
	if err := s.backend.Write(ctx, data); err != nil {
		return fmt.Errorf("write catalog: %w", err)
	}
	s.setSnapshot(cp)
	return nil
}

// Mutate runs a serialized read-modify-write. The catalog is re-read from the backend so
// changes made outside this process are not overwritten. A read error or fn's error
// aborts the save.
func (s *Store) Mutate(ctx context.Context, fn func(c *Catalog) error) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	c, err := s.read(ctx)
	if err != nil {
		return err
	}
	if err := fn(c); err != nil {
		return err
	}
	return s.save(ctx, c)
}

func (s *Store) Find(ctx context.Context, cat Category, title string) (*Item, error) {
	it, ok := s.Load(ctx).Find(cat, title)
	if !ok {
		return nil, fmt.Errorf("%s / %s: %w", cat, title, ErrNotFound)
	}
	return it, nil
}

func (s *Store) ListTitles(ctx context.Context, cat Category) []string {
	return s.Load(ctx).ListTitles(cat)
}

func (s *Store) Search(ctx context.Context, q string) []Ref {
	return s.Load(ctx).Search(q)
}

// BumpStat increments a usage counter.
func (s *Store) BumpStat(ctx context.Context, keys ...StatKey) error {
	return s.Mutate(ctx, func(c *Catalog) error {
		for _, k := range keys {
			c.bump(k)
		}
		return nil
	})
}

func Encode(c *Catalog) ([]byte, error) {
	c.normalize()
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode catalog: %w", err)
	}
	return append(data, '\n'), nil
}

func Decode(data []byte) (*Catalog, error) {
	var c Catalog
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	c.normalize()
	return &c, nil
}
