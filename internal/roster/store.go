package roster

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
)

// Store holds the current roster snapshot and can swap it on reload.
type Store struct {
	path    string
	sheet   string
	logger  *slog.Logger
	current atomic.Pointer[Roster]
}

// NewStore returns an empty store reading from path.
func NewStore(path, sheet string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{path: path, sheet: sheet, logger: logger.With("component", "roster")}
}

// NewStaticStore wraps an already built roster. It has no source, so Reload fails.
func NewStaticStore(r *Roster) *Store {
	s := &Store{logger: slog.Default().With("component", "roster")}
	s.current.Store(r)
	return s
}

// Reload reads the source file and atomically replaces the snapshot.
// On failure the previous snapshot stays in place.
func (s *Store) Reload(ctx context.Context) (*Roster, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.path == "" {
		return nil, fmt.Errorf("roster store has no source path")
	}

	r, err := Load(s.path, s.sheet, s.logger)
	if err != nil {
		return nil, err
	}

	prev := s.current.Swap(r)
	if prev != nil && prev.Fingerprint() == r.Fingerprint() {
		s.logger.Info("roster reloaded, unchanged", "hosts", r.Len(), "fingerprint", r.Fingerprint())
	} else {
		s.logger.Info("roster loaded", "hosts", r.Len(), "source", r.Source(), "fingerprint", r.Fingerprint())
	}
	return r, nil
}

// Current returns the active snapshot, or nil before the first load.
func (s *Store) Current() *Roster {
	return s.current.Load()
}

// Authorize returns the entry for id or ErrUnknownHost.
func (s *Store) Authorize(id string) (Entry, error) {
	e, ok := s.Current().Lookup(id)
	if !ok {
		return Entry{}, fmt.Errorf("%w: %q", ErrUnknownHost, id)
	}
	return e, nil
}
