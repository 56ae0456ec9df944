package workers

import (
	"context"
	"log/slog"
	"os"
	"time"

	"chat-sync/session"

	"github.com/shirou/gopsutil/process"
)

// HeartbeatWorker periodically logs the session state alongside the
// process's own resource usage. Purely observational; the session is
// never mutated from here.
type HeartbeatWorker struct {
	log      *slog.Logger
	session  *session.Session
	interval time.Duration
}

func NewHeartbeatWorker(log *slog.Logger, s *session.Session, interval time.Duration) *HeartbeatWorker {
	return &HeartbeatWorker{log: log, session: s, interval: interval}
}

func (w *HeartbeatWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			rss, cpu, err := selfStats(p)
			if err != nil {
				w.log.Error("Failed to collect self stats", "err", err)
				continue
			}
			w.log.Debug("Session heartbeat",
				"state", w.session.State().String(),
				"badge", w.session.StatusBadge(),
				"messages", len(w.session.Messages()),
				"peers", len(w.session.Presence()),
				"rss_bytes", rss,
				"cpu_percent", cpu)
		}
	}
}

// selfStats retrieves memory and CPU usage for the given process.
func selfStats(p *process.Process) (uint64, float64, error) {
	memInfo, err := p.MemoryInfo()
	if err != nil {
		return 0, 0, err
	}
	cpuPercent, err := p.CPUPercent()
	if err != nil {
		return 0, 0, err
	}
	return memInfo.RSS, cpuPercent, nil
}
