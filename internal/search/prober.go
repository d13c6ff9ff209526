package search

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// DefaultProbeInterval is how often the prober checks the vector backend.
const DefaultProbeInterval = 30 * time.Second

// Prober drives the façade's recovery on a fixed schedule so individual
// requests never pay probe latency while the backend is down.
type Prober struct {
	facade   *Resilient
	interval time.Duration

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	started bool
}

// NewProber creates a prober for the given façade. interval <= 0 selects
// the default.
func NewProber(facade *Resilient, interval time.Duration) *Prober {
	if interval <= 0 {
		interval = DefaultProbeInterval
	}
	return &Prober{
		facade:   facade,
		interval: interval,
	}
}

// Start launches the probe loop. Calling Start twice is a no-op.
func (p *Prober) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started {
		return
	}
	p.started = true

	loopCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})

	go p.loop(loopCtx)
}

// Stop cancels the probe loop and waits for it to exit.
func (p *Prober) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	cancel := p.cancel
	done := p.done
	p.started = false
	p.mu.Unlock()

	cancel()
	<-done
}

func (p *Prober) loop(ctx context.Context) {
	defer close(p.done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	slog.Debug("health_prober_started", slog.Duration("interval", p.interval))

	for {
		select {
		case <-ctx.Done():
			slog.Debug("health_prober_stopped")
			return
		case <-ticker.C:
			p.facade.CheckHealth(ctx)
		}
	}
}
