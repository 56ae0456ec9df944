package workers

import (
	"context"
	"log/slog"
	"time"

	"chat-sync/store"

	"github.com/dgraph-io/badger/v4"
)

// StoreGCWorker reclaims Badger value-log space for the shared store.
// The message log only ever grows during a session, but presence and
// typing keys are rewritten constantly.
type StoreGCWorker struct {
	log      *slog.Logger
	store    *store.Store
	interval time.Duration
}

func NewStoreGCWorker(log *slog.Logger, s *store.Store, interval time.Duration) *StoreGCWorker {
	return &StoreGCWorker{log: log, store: s, interval: interval}
}

func (w *StoreGCWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			switch err := w.store.RunGC(); err {
			case nil:
				w.log.Debug("Shared store value log compacted")
			case badger.ErrNoRewrite:
				// Nothing to reclaim this round
			default:
				w.log.Warn("Shared store GC failed", "err", err)
			}
		}
	}
}
