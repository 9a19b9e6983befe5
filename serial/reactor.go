package serial

import (
	"log/slog"
	"sync"

	"github.com/llhlol/IWR1443-data-collection/errors"
)

// completionQueueDepth bounds outstanding completions. Each endpoint holds
// at most one in-flight read and one in-flight write, so the queue only
// needs to absorb a few endpoints' worth of results plus the sentinel.
const completionQueueDepth = 128

// Reactor owns the completion queue and dispatches each dequeued
// completion to the endpoint that submitted the operation. Dispatch is
// single-threaded: Run is the only caller of OnIOComplete.
type Reactor struct {
	logger *slog.Logger

	mu          sync.Mutex
	completions chan completion
	handles     map[AsyncHandle]struct{}
	done        chan struct{}
}

// NewReactor creates an uninitialized reactor.
func NewReactor(logger *slog.Logger) *Reactor {
	if logger == nil {
		logger = slog.Default().With("component", "reactor")
	}
	return &Reactor{logger: logger}
}

// Initialize creates the completion queue. Calling Initialize on an
// already-initialized reactor succeeds and logs a warning.
func (r *Reactor) Initialize() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.completions != nil {
		r.logger.Warn("reactor already initialized")
		return nil
	}

	r.completions = make(chan completion, completionQueueDepth)
	r.handles = make(map[AsyncHandle]struct{})
	r.done = make(chan struct{})
	return nil
}

// Register associates an endpoint with the completion queue and invokes
// its OnRegister callback exactly once. A registered endpoint stays
// registered for the reactor's lifetime.
func (r *Reactor) Register(h AsyncHandle) error {
	if h == nil {
		return errors.WrapInvalid(errors.ErrRegistrationFailed,
			"Reactor", "Register", "nil endpoint")
	}

	r.mu.Lock()
	if r.completions == nil {
		r.mu.Unlock()
		return errors.WrapFatal(errors.ErrNotInitialized,
			"Reactor", "Register", "completion queue not created")
	}
	if _, exists := r.handles[h]; exists {
		r.mu.Unlock()
		return errors.WrapInvalid(errors.ErrRegistrationFailed,
			"Reactor", "Register", "endpoint registered twice")
	}
	r.handles[h] = struct{}{}
	r.mu.Unlock()

	h.OnRegister()
	return nil
}

// Run dequeues completions until the quit sentinel arrives, dispatching
// each to the owning endpoint. Completions for one endpoint are delivered
// in dequeue order; across endpoints no order is guaranteed.
func (r *Reactor) Run() error {
	r.mu.Lock()
	queue := r.completions
	done := r.done
	r.mu.Unlock()

	if queue == nil {
		return errors.WrapFatal(errors.ErrNotInitialized,
			"Reactor", "Run", "completion queue not created")
	}
	defer close(done)

	for c := range queue {
		if c.handle == nil {
			// Quit sentinel.
			return nil
		}
		c.handle.OnIOComplete(c.n, c.tag, c.err)
	}
	return nil
}

// Quit posts the sentinel completion; Run observes it and returns.
// Outstanding I/O is not cancelled.
func (r *Reactor) Quit() {
	r.post(completion{handle: nil})
}

// post enqueues a completion. Posts after Run has returned are dropped so
// endpoint goroutines draining their last operation never block on a dead
// queue.
func (r *Reactor) post(c completion) {
	r.mu.Lock()
	queue := r.completions
	done := r.done
	r.mu.Unlock()

	if queue == nil {
		return
	}

	select {
	case queue <- c:
	case <-done:
	}
}
