// Package reload publishes validated configuration snapshots and swaps them
// atomically when a new version is accepted.
package reload

import (
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/caasmo/acmeconfig"
)

// ErrNoPrevious is returned by Rollback when there is nothing to go back to.
var ErrNoPrevious = errors.New("reload: no previous configuration")

// Archiver keeps a record of every published snapshot.
type Archiver interface {
	Archive(cfg *acme.Config, description string) error
}

// Store holds the live configuration. Readers call Current and never
// mutate what they get back; writers go through Publish or Update.
type Store struct {
	current atomic.Pointer[acme.Config]

	mu       sync.Mutex // serialises writers
	previous *acme.Config
	archiver Archiver
	logger   *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithArchiver records every published snapshot with a.
func WithArchiver(a Archiver) Option {
	return func(s *Store) {
		s.archiver = a
	}
}

// NewStore returns an empty store. Current returns nil until the first
// successful Publish.
func NewStore(logger *slog.Logger, opts ...Option) *Store {
	if logger == nil {
		panic("reload.NewStore: received nil logger")
	}
	s := &Store{logger: logger.With("component", "config_store")}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Current returns the live snapshot, or nil if none was published yet.
func (s *Store) Current() *acme.Config {
	return s.current.Load()
}

// Publish validates a private copy of candidate and, if it is valid, makes
// it the live snapshot. The caller keeps ownership of candidate. On a
// validation error the live snapshot is left untouched. The returned
// changes describe the certificates affected by the swap.
func (s *Store) Publish(candidate *acme.Config, description string) ([]acme.CertificateChange, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.publishLocked(candidate.Clone(), description)
}

// Update derives a new version from the live snapshot: fn edits a copy,
// which is then validated and published. With no live snapshot fn starts
// from an empty Config.
func (s *Store) Update(fn func(cfg *acme.Config) error, description string) ([]acme.CertificateChange, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.current.Load().Clone()
	if next == nil {
		next = &acme.Config{}
	}
	if err := fn(next); err != nil {
		return nil, err
	}
	return s.publishLocked(next, description)
}

// Rollback republishes the snapshot that was live before the last Publish.
func (s *Store) Rollback() ([]acme.CertificateChange, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.previous == nil {
		return nil, ErrNoPrevious
	}
	return s.publishLocked(s.previous, "rollback")
}

func (s *Store) publishLocked(next *acme.Config, description string) ([]acme.CertificateChange, error) {
	if next == nil {
		return nil, &acme.MissingFieldError{Field: "configuration"}
	}
	if err := next.Validate(); err != nil {
		s.logger.Error("rejected configuration", "description", description, "error", err)
		return nil, err
	}

	old := s.current.Swap(next)
	if old != nil {
		s.previous = old
	}
	changes := acme.Diff(old, next)
	s.logChanges(description, changes)

	if s.archiver != nil {
		if err := s.archiver.Archive(next, description); err != nil {
			// The snapshot is live regardless.
			s.logger.Warn("failed to archive configuration", "description", description, "error", err)
		}
	}
	return changes, nil
}

func (s *Store) logChanges(description string, changes []acme.CertificateChange) {
	var reissue int
	for _, c := range changes {
		if c.Kind != acme.Unchanged {
			s.logger.Info("certificate changed", "account", c.Ref.Account, "certificate", c.Ref.Certificate, "change", c.Kind)
		}
		if c.NeedsIssuance() {
			reissue++
		}
	}
	s.logger.Info("published configuration", "description", description, "certificates", len(changes), "reissue", reissue)
}
