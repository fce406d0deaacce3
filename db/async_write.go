package db

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultChannelCapacity is the default buffer size for async write channels.
const DefaultChannelCapacity = 256

// DefaultDrainTimeout is the maximum time to wait for pending writes during shutdown.
const DefaultDrainTimeout = 30 * time.Second

// ErrDrainTimeout is returned by Close when pending writes did not finish in time.
var ErrDrainTimeout = errors.New("async writer: drain timed out")

// WriteOperation is one queued write.
type WriteOperation struct {
	Data      any
	Timestamp time.Time
}

// WriteHandler processes one operation on the writer goroutine.
type WriteHandler func(op WriteOperation) error

// AsyncWriter moves database writes off the time loop: Write never blocks,
// and Close drains what is queued.
type AsyncWriter struct {
	writeChan    chan WriteOperation
	handler      WriteHandler
	onError      func(error)
	drainTimeout time.Duration

	wg        sync.WaitGroup
	ctx       context.Context
	cancel    context.CancelFunc
	mu        sync.Mutex
	started   bool
	closed    bool
	closeOnce sync.Once
	closeErr  error

	written atomic.Int64
	dropped atomic.Int64
	failed  atomic.Int64
}

// AsyncWriterConfig holds configuration for the async writer.
type AsyncWriterConfig struct {
	// ChannelCapacity is the buffer size for pending writes
	ChannelCapacity int
	// DrainTimeout is the maximum wait time during Close
	DrainTimeout time.Duration
	// OnError is called on the writer goroutine for each failed write.
	OnError func(error)
}

// DefaultAsyncWriterConfig returns the default configuration.
func DefaultAsyncWriterConfig() AsyncWriterConfig {
	return AsyncWriterConfig{
		ChannelCapacity: DefaultChannelCapacity,
		DrainTimeout:    DefaultDrainTimeout,
	}
}

// NewAsyncWriter creates a new async writer with default configuration.
func NewAsyncWriter(handler WriteHandler) *AsyncWriter {
	return NewAsyncWriterWithConfig(handler, DefaultAsyncWriterConfig())
}

// NewAsyncWriterWithConfig creates a new async writer with custom configuration.
func NewAsyncWriterWithConfig(handler WriteHandler, config AsyncWriterConfig) *AsyncWriter {
	if config.ChannelCapacity <= 0 {
		config.ChannelCapacity = DefaultChannelCapacity
	}
	if config.DrainTimeout <= 0 {
		config.DrainTimeout = DefaultDrainTimeout
	}
	ctx, cancel := context.WithCancel(context.Background())

	return &AsyncWriter{
		writeChan:    make(chan WriteOperation, config.ChannelCapacity),
		handler:      handler,
		onError:      config.OnError,
		drainTimeout: config.DrainTimeout,
		ctx:          ctx,
		cancel:       cancel,
	}
}

// Start begins the background goroutine. Calling it twice is a no-op.
func (w *AsyncWriter) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.started || w.closed {
		return
	}
	w.started = true
	w.wg.Add(1)
	go w.processWrites()
}

func (w *AsyncWriter) processWrites() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			w.drainChannel()
			return
		case op := <-w.writeChan:
			w.handle(op)
		}
	}
}

func (w *AsyncWriter) drainChannel() {
	for {
		select {
		case op := <-w.writeChan:
			w.handle(op)
		default:
			return
		}
	}
}

func (w *AsyncWriter) handle(op WriteOperation) {
	if err := w.handler(op); err != nil {
		w.failed.Add(1)
		if w.onError != nil {
			w.onError(err)
		}
		return
	}
	w.written.Add(1)
}

// Write queues data. It returns false without blocking when the buffer is
// full or the writer is closed; the drop is counted.
func (w *AsyncWriter) Write(data any) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		w.dropped.Add(1)
		return false
	}
	select {
	case w.writeChan <- WriteOperation{Data: data, Timestamp: time.Now()}:
		return true
	default:
		w.dropped.Add(1)
		return false
	}
}

// Pending returns the number of operations waiting in the buffer.
func (w *AsyncWriter) Pending() int {
	return len(w.writeChan)
}

// Written, Dropped and Failed count handled, rejected and failed writes.
func (w *AsyncWriter) Written() int64 { return w.written.Load() }
func (w *AsyncWriter) Dropped() int64 { return w.dropped.Load() }
func (w *AsyncWriter) Failed() int64  { return w.failed.Load() }

// IsStarted returns whether the background processor is running.
func (w *AsyncWriter) IsStarted() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.started && !w.closed
}

// Close stops accepting writes and waits up to the drain timeout for the
// queue to empty. A writer that was never started drains on the caller's
// goroutine. Later calls return the first result.
func (w *AsyncWriter) Close() error {
	w.closeOnce.Do(func() {
		w.mu.Lock()
		w.closed = true
		started := w.started
		w.mu.Unlock()

		w.cancel()
		if !started {
			w.drainChannel()
			return
		}

		done := make(chan struct{})
		go func() {
			w.wg.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(w.drainTimeout):
			w.closeErr = ErrDrainTimeout
		}
	})
	return w.closeErr
}
