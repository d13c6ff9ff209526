package llm

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	deverrors "github.com/devmind-ai/devmind/internal/errors"
)

// Rate limiter defaults
const (
	DefaultMaxRPM       = 60
	DefaultRateWindow   = 60 * time.Second
	DefaultQueueSize    = 10
	DefaultQueueTimeout = 30 * time.Second
	DefaultPollInterval = 100 * time.Millisecond
)

// RateLimitConfig configures admission control for the generation client.
type RateLimitConfig struct {
	// MaxRPM caps requests admitted per trailing Window.
	MaxRPM int

	// Window is the trailing admission window.
	Window time.Duration

	// QueueSize bounds the overflow queue. Zero disables queueing: over-limit
	// requests go straight to the fallback or fail.
	QueueSize int

	// QueueTimeout is how long a queued request waits before giving up.
	QueueTimeout time.Duration

	// PollInterval is how often the dispatcher and streaming path re-check
	// admission capacity.
	PollInterval time.Duration
}

// DefaultRateLimitConfig returns the standard limits.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		MaxRPM:       DefaultMaxRPM,
		Window:       DefaultRateWindow,
		QueueSize:    DefaultQueueSize,
		QueueTimeout: DefaultQueueTimeout,
		PollInterval: DefaultPollInterval,
	}
}

// ClientStatus is the limiter's admission snapshot.
type ClientStatus struct {
	QueueSize         int     `json:"queue_size"`
	QueueCapacity     int     `json:"queue_capacity"`
	CapacityRemaining int     `json:"capacity_remaining"`
	Utilization       float64 `json:"utilization"`
	FallbackAvailable bool    `json:"fallback_available"`
}

type generateResult struct {
	text string
	err  error
}

// queuedRequest is consumed exactly once by the dispatcher or expired on
// timeout; never re-queued. The result channel is buffered so a departed
// waiter never blocks the dispatcher. abandoned is set when the waiter gave
// up (timeout or cancellation) so the dispatcher skips the request instead
// of spending an admission slot on an answer nobody reads.
type queuedRequest struct {
	prompt    string
	opts      GenerateOptions
	enqueued  time.Time
	result    chan generateResult
	abandoned atomic.Bool
}

// RateLimitedClient wraps a primary generation provider with trailing-window
// admission control, a bounded FIFO overflow queue drained by a single
// background dispatcher, and timeout-driven fallback to a secondary provider.
type RateLimitedClient struct {
	primary  Provider
	fallback Provider // may be nil
	config   RateLimitConfig

	mu         sync.Mutex
	timestamps []time.Time
	now        func() time.Time

	queue  chan *queuedRequest
	cancel context.CancelFunc
	done   chan struct{}

	stopOnce sync.Once
}

// NewRateLimitedClient creates the client and starts its dispatcher.
// fallback may be nil.
func NewRateLimitedClient(primary, fallback Provider, cfg RateLimitConfig) *RateLimitedClient {
	if cfg.MaxRPM <= 0 {
		cfg.MaxRPM = DefaultMaxRPM
	}
	if cfg.Window <= 0 {
		cfg.Window = DefaultRateWindow
	}
	if cfg.QueueSize < 0 {
		cfg.QueueSize = 0
	}
	if cfg.QueueTimeout <= 0 {
		cfg.QueueTimeout = DefaultQueueTimeout
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}

	dispatchCtx, cancel := context.WithCancel(context.Background())
	c := &RateLimitedClient{
		primary:  primary,
		fallback: fallback,
		config:   cfg,
		now:      time.Now,
		queue:    make(chan *queuedRequest, cfg.QueueSize),
		cancel:   cancel,
		done:     make(chan struct{}),
	}

	go c.dispatch(dispatchCtx)
	return c
}

// Generate runs one admission-controlled generation call.
//
// Under capacity the primary is called directly. Over capacity with a full
// queue, the fallback answers (or the caller gets an overloaded error).
// Otherwise the request queues and waits for the dispatcher, falling back
// on queue timeout.
func (c *RateLimitedClient) Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error) {
	if c.tryAdmit() {
		return c.primary.Generate(ctx, prompt, opts)
	}

	req := &queuedRequest{
		prompt:   prompt,
		opts:     opts,
		enqueued: c.now(),
		result:   make(chan generateResult, 1),
	}

	select {
	case c.queue <- req:
	default:
		// Queue full
		if c.fallback != nil {
			slog.Warn("generation_queue_full_using_fallback",
				slog.String("fallback", c.fallback.Name()))
			return c.fallback.Generate(ctx, prompt, opts)
		}
		return "", deverrors.New(deverrors.ErrCodeOverloaded, "generation queue is full", deverrors.ErrOverloaded)
	}

	timer := time.NewTimer(c.config.QueueTimeout)
	defer timer.Stop()

	select {
	case res := <-req.result:
		// The dispatcher reports expiry with the same timeout error the
		// waiter-side timer produces; the fallback applies either way.
		if res.err != nil && errors.Is(res.err, deverrors.ErrQueueTimeout) && c.fallback != nil {
			slog.Warn("generation_queue_timeout_using_fallback",
				slog.String("fallback", c.fallback.Name()))
			return c.fallback.Generate(ctx, prompt, opts)
		}
		return res.text, res.err
	case <-timer.C:
		req.abandoned.Store(true)
		if c.fallback != nil {
			slog.Warn("generation_queue_timeout_using_fallback",
				slog.String("fallback", c.fallback.Name()))
			return c.fallback.Generate(ctx, prompt, opts)
		}
		return "", deverrors.New(deverrors.ErrCodeQueueTimeout, "queued request timed out", deverrors.ErrQueueTimeout)
	case <-ctx.Done():
		req.abandoned.Store(true)
		return "", ctx.Err()
	}
}

// Stream bypasses the queue: it polls for admission capacity and then
// streams directly from the primary provider.
func (c *RateLimitedClient) Stream(ctx context.Context, prompt string, opts GenerateOptions) (<-chan StreamDelta, error) {
	for !c.tryAdmit() {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.config.PollInterval):
		}
	}
	return c.primary.Stream(ctx, prompt, opts)
}

// Status reports admission and queue state.
func (c *RateLimitedClient) Status() ClientStatus {
	c.mu.Lock()
	c.pruneLocked(c.now())
	used := len(c.timestamps)
	c.mu.Unlock()

	remaining := c.config.MaxRPM - used
	if remaining < 0 {
		remaining = 0
	}

	return ClientStatus{
		QueueSize:         len(c.queue),
		QueueCapacity:     c.config.QueueSize,
		CapacityRemaining: remaining,
		Utilization:       float64(used) / float64(c.config.MaxRPM),
		FallbackAvailable: c.fallback != nil,
	}
}

// Stop cancels the dispatcher and drains the queue, failing any remaining
// waiters. Safe to call more than once.
func (c *RateLimitedClient) Stop() {
	c.stopOnce.Do(func() {
		c.cancel()
		<-c.done
	})
}

// tryAdmit records a timestamp and returns true when under capacity.
// The window is pruned lazily on every check.
func (c *RateLimitedClient) tryAdmit() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	c.pruneLocked(now)

	if len(c.timestamps) >= c.config.MaxRPM {
		return false
	}
	c.timestamps = append(c.timestamps, now)
	return true
}

// pruneLocked drops timestamps older than the trailing window. Caller holds
// the mutex.
func (c *RateLimitedClient) pruneLocked(now time.Time) {
	cutoff := now.Add(-c.config.Window)
	i := 0
	for i < len(c.timestamps) && !c.timestamps[i].After(cutoff) {
		i++
	}
	if i > 0 {
		c.timestamps = c.timestamps[i:]
	}
}

// dispatch is the single background loop draining the overflow queue. It
// never blocks the admission-check path; on shutdown it drains remaining
// waiters with a timeout error.
func (c *RateLimitedClient) dispatch(ctx context.Context) {
	defer close(c.done)

	for {
		select {
		case <-ctx.Done():
			c.drain()
			return
		case req := <-c.queue:
			if c.waitForCapacity(ctx, req) {
				text, err := c.primary.Generate(ctx, req.prompt, req.opts)
				req.result <- generateResult{text: text, err: err}
			}
		}
	}
}

// waitForCapacity polls until the request can be admitted. Returns false when
// the request expired or the dispatcher is shutting down; expired requests
// get a timeout error so a still-present waiter is not left hanging.
func (c *RateLimitedClient) waitForCapacity(ctx context.Context, req *queuedRequest) bool {
	for {
		if req.abandoned.Load() {
			return false
		}
		if c.now().Sub(req.enqueued) > c.config.QueueTimeout {
			req.result <- generateResult{err: deverrors.New(deverrors.ErrCodeQueueTimeout, "request expired in queue", deverrors.ErrQueueTimeout)}
			return false
		}
		if c.tryAdmit() {
			return true
		}
		select {
		case <-ctx.Done():
			req.result <- generateResult{err: deverrors.New(deverrors.ErrCodeQueueTimeout, "client shutting down", deverrors.ErrQueueTimeout)}
			return false
		case <-time.After(c.config.PollInterval):
		}
	}
}

// drain fails every request still queued at shutdown.
func (c *RateLimitedClient) drain() {
	for {
		select {
		case req := <-c.queue:
			req.result <- generateResult{err: deverrors.New(deverrors.ErrCodeQueueTimeout, "client shutting down", deverrors.ErrQueueTimeout)}
		default:
			return
		}
	}
}
