// Package audit appends orchestration outcomes to the audit log without
// blocking the request that produced them.
package audit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"ContractsOrchestrator/internal/domain"
	"ContractsOrchestrator/internal/ports"
)

const defaultWriteTimeout = 5 * time.Second

// Recorder writes audit entries on background goroutines. Failures are
// logged and dropped.
type Recorder struct {
	store   ports.AuditStore
	timeout time.Duration
	logger  *slog.Logger
	now     func() time.Time

	wg sync.WaitGroup
}

// NewRecorder wraps store. A non-positive timeout uses 5s per write.
func NewRecorder(store ports.AuditStore, timeout time.Duration, logger *slog.Logger) *Recorder {
	if timeout <= 0 {
		timeout = defaultWriteTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{store: store, timeout: timeout, logger: logger, now: time.Now}
}

// Record schedules entry for writing and returns immediately.
func (r *Recorder) Record(entry domain.AuditEntry) {
	if r.store == nil {
		return
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = r.now().UTC()
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		defer cancel()
		if err := r.store.AppendAudit(ctx, entry); err != nil {
			r.logger.Warn("audit write failed", "tool", entry.ToolCalled, "idempotency_key", entry.IdempotencyKey, "error", err)
		}
	}()
}

// Close waits for pending writes or for ctx to expire.
func (r *Recorder) Close(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
