// ABOUTME: Graph store bound to a storage backend
// ABOUTME: Persists entities, nodes and edges and keeps entity indexes in step with node writes

package store

import (
	"context"
	"time"

	"github.com/nainya/graphstore/internal/logger"
	"github.com/nainya/graphstore/internal/metrics"
	"github.com/nainya/graphstore/pkg/storage"
)

// Store is a named handle over a backend. It is safe for concurrent use.
type Store struct {
	key     string
	backend storage.Backend
	log     *logger.Logger
	metrics *metrics.Metrics
}

// Option configures a Store
type Option func(*Store)

// WithLogger sets the logger; the default discards everything
func WithLogger(l *logger.Logger) Option {
	return func(s *Store) { s.log = l }
}

// WithMetrics enables prometheus instrumentation
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Store) { s.metrics = m }
}

// New binds a store to backend and checks that every partition is reachable
func New(ctx context.Context, key string, backend storage.Backend, opts ...Option) (*Store, error) {
	if backend == nil {
		return nil, wrap(OpConnect, "", key, ErrNilBackend)
	}

	s := &Store{key: key, backend: backend, log: logger.Nop()}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With("store", key)

	err := backend.View(ctx, func(r storage.Reader) error {
		for _, p := range storage.Partitions {
			if _, err := r.Get(p, ""); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, wrap(OpConnect, "", key, err)
	}

	s.log.Info("store connected").Str("backend", backend.Name()).Send()
	return s, nil
}

// Key returns the handle name
func (s *Store) Key() string { return s.key }

// Backend returns the underlying backend
func (s *Store) Backend() storage.Backend { return s.backend }

// Logger returns the store logger
func (s *Store) Logger() *logger.Logger { return s.log }

// Metrics returns the store metrics, which may be nil
func (s *Store) Metrics() *metrics.Metrics { return s.metrics }

// Close closes the backend
func (s *Store) Close() error {
	return s.backend.Close()
}

// observe logs and counts a finished operation. Gets of absent records
// are not failures.
func (s *Store) observe(op Op, res Resource, count int, start time.Time, err error) {
	dur := time.Since(start)
	name := string(op) + "_" + string(res)

	logErr := err
	if IsNotFound(err) {
		logErr = nil
	}
	s.log.DbLogger(name).LogDbOperation(dur, count, logErr)

	if s.metrics != nil {
		s.metrics.RecordDbOperation(string(op), string(res), logErr, dur)
	}
}
