package events

import (
	"context"
	"log/slog"
	"time"
)

// Submitter runs f asynchronously and reports whether it was accepted.
type Submitter interface {
	Submit(f func()) bool
}

// Dispatcher hands events to a Publisher on a worker pool.
type Dispatcher struct {
	pub     Publisher
	pool    Submitter
	log     *slog.Logger
	timeout time.Duration
	now     func() time.Time
}

func NewDispatcher(pub Publisher, pool Submitter, log *slog.Logger) *Dispatcher {
	return &Dispatcher{pub: pub, pool: pool, log: log, timeout: 5 * time.Second, now: time.Now}
}

// Emit stamps ev and queues it. Errors are logged, never returned.
func (d *Dispatcher) Emit(ev Event) {
	if d == nil {
		return
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = d.now().UTC()
	}
	ok := d.pool.Submit(func() {
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()
		if err := d.pub.Publish(ctx, ev); err != nil {
			d.log.Warn("event publish failed", "type", ev.Type, "err", err)
		}
	})
	if !ok {
		d.log.Warn("event dropped, worker queue full or stopped", "type", ev.Type)
	}
}
