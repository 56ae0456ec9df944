// Package store models the shared, cross-context-observable key/value
// namespace that simulated mode is built on: durable full-value writes,
// JSON payloads under well-known keys, and change notifications scoped
// to writes originating in another context. The own-write suppression
// is what prevents self-delivery echo loops; a sender never receives a
// notification for its own write and must self-deliver instead.
package store

import (
	"log/slog"
	"sync"

	"chat-sync/errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

type ObserveFunc func(value []byte)

type observer struct {
	id        int
	contextID string
	fn        ObserveFunc
}

// Store owns the BadgerDB handle and the observer registry shared by
// all contexts. Writes from different contexts are not serialized
// relative to each other; see the transport for the consequences.
type Store struct {
	db  *badger.DB
	log *slog.Logger

	mu        sync.Mutex
	nextID    int
	observers map[string][]observer
}

func Open(path string, log *slog.Logger) (*Store, error) {
	db, err := badger.Open(badger.DefaultOptions(path).
		WithLoggingLevel(badger.ERROR))
	if err != nil {
		return nil, err
	}
	return &Store{
		db:        db,
		log:       log,
		observers: make(map[string][]observer),
	}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// RunGC triggers one round of value-log garbage collection.
// badger.ErrNoRewrite simply means there was nothing to reclaim.
func (s *Store) RunGC() error {
	return s.db.RunValueLogGC(0.5)
}

// NewContext returns an independent handle on the shared namespace,
// the analog of one browsing context. Writes through a context never
// trigger that same context's observers.
func (s *Store) NewContext() *Context {
	return &Context{store: s, id: uuid.NewString()}
}

type Context struct {
	store *Store
	id    string
}

// Write durably replaces the full value under key and notifies
// observers registered by other contexts.
func (c *Context) Write(key string, value []byte) error {
	err := c.store.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), value)
	})
	if err != nil {
		return err
	}
	c.store.notify(key, c.id, value)
	return nil
}

// Read returns the last written value, or ErrKeyAbsent.
func (c *Context) Read(key string) ([]byte, error) {
	var out []byte
	err := c.store.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err == badger.ErrKeyNotFound {
			return errors.ErrKeyAbsent
		}
		if err != nil {
			return err
		}
		out, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Observe fires fn whenever another context writes to key. The
// returned cancel is idempotent and must be called on session
// teardown so handlers don't leak across restarts.
func (c *Context) Observe(key string, fn ObserveFunc) func() {
	s := c.store
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	id := s.nextID
	s.observers[key] = append(s.observers[key], observer{
		id:        id,
		contextID: c.id,
		fn:        fn,
	})
	return func() { s.removeObserver(key, id) }
}

func (s *Store) notify(key, originContext string, value []byte) {
	s.mu.Lock()
	observers := make([]observer, len(s.observers[key]))
	copy(observers, s.observers[key])
	s.mu.Unlock()

	for _, o := range observers {
		if o.contextID == originContext {
			continue
		}
		o.fn(value)
	}
}

func (s *Store) removeObserver(key string, id int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	observers := s.observers[key]
	for i, o := range observers {
		if o.id == id {
			s.observers[key] = append(observers[:i], observers[i+1:]...)
			return
		}
	}
}
