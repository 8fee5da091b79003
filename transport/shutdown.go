package transport

import (
	"context"
	"sync"
	"time"
)

// DefaultShutdownTimeout bounds how long the HTTP transport waits for
// in-flight requests when its context is canceled.
const DefaultShutdownTimeout = 30 * time.Second

// drainer counts in-flight HTTP requests. Once draining starts it refuses
// new ones and signals when the last one leaves.
type drainer struct {
	timeout time.Duration
	delay   time.Duration

	mu       sync.Mutex
	draining bool
	inFlight int
	idle     chan struct{}
}

func newDrainer(timeout, delay time.Duration) *drainer {
	if timeout <= 0 {
		timeout = DefaultShutdownTimeout
	}
	return &drainer{timeout: timeout, delay: delay, idle: make(chan struct{})}
}

// enter admits a request. It reports false once draining has begun.
func (d *drainer) enter() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.draining {
		return false
	}
	d.inFlight++
	return true
}

func (d *drainer) leave() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.inFlight--
	if d.draining && d.inFlight == 0 {
		close(d.idle)
	}
}

func (d *drainer) active() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.inFlight
}

// drain waits out the delay, stops admitting requests and waits for the
// in-flight ones. It returns context.DeadlineExceeded if requests were
// still running after the timeout. Call it once.
func (d *drainer) drain(ctx context.Context) error {
	if d.delay > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(d.delay):
		}
	}

	d.mu.Lock()
	d.draining = true
	if d.inFlight == 0 {
		close(d.idle)
	}
	d.mu.Unlock()

	timer := time.NewTimer(d.timeout)
	defer timer.Stop()
	select {
	case <-d.idle:
		return nil
	case <-timer.C:
		return context.DeadlineExceeded
	case <-ctx.Done():
		return ctx.Err()
	}
}

// WithShutdownTimeout sets how long the HTTP transport waits for in-flight
// requests on shutdown.
func WithShutdownTimeout(d time.Duration) HTTPOption {
	return func(h *HTTP) {
		h.shutdownTimeout = d
	}
}

// WithShutdownDrainDelay keeps serving for d after shutdown starts, giving
// load balancers time to stop routing to the server.
func WithShutdownDrainDelay(d time.Duration) HTTPOption {
	return func(h *HTTP) {
		h.drainDelay = d
	}
}
