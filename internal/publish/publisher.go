package publish

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/banshee-data/markertrack/internal/monitoring"
	"github.com/banshee-data/markertrack/internal/queue"
)

// Sink delivers one payload. A Sink that loses its peer returns an error
// and reconnects on the next Send.
type Sink interface {
	Send(ctx context.Context, payload []byte) error
	Close() error
}

// DefaultLogInterval bounds how often send failures are logged.
const DefaultLogInterval = 5 * time.Second

// Publisher is the consumer half of a tracking session.
type Publisher struct {
	Queue *queue.Latest[[]byte]
	Sink  Sink
	// LogInterval throttles failure logging; zero means DefaultLogInterval.
	LogInterval time.Duration

	sent   atomic.Uint64
	failed atomic.Uint64
}

// Stats reports delivered and failed payloads.
func (p *Publisher) Stats() (sent, failed uint64) {
	return p.sent.Load(), p.failed.Load()
}

// Run sends queued payloads until ctx ends. Send failures are counted and
// logged but do not stop the publisher. The sink is closed on return.
func (p *Publisher) Run(ctx context.Context) error {
	defer func() {
		if err := p.Sink.Close(); err != nil {
			monitoring.Logf("[publish] failed to close sink: %v", err)
		}
	}()

	interval := p.LogInterval
	if interval <= 0 {
		interval = DefaultLogInterval
	}
	failures := monitoring.NewThrottle(interval)

	for {
		payload, err := p.Queue.Pop(ctx)
		if err != nil {
			return err
		}
		err = p.Sink.Send(ctx, payload)
		if err == nil {
			p.sent.Add(1)
			continue
		}
		if ctx.Err() != nil || errors.Is(err, context.Canceled) {
			return ctx.Err()
		}
		p.failed.Add(1)
		failures.Logf("[publish] dropped result: %v", err)
	}
}
