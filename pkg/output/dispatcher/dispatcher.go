// Package dispatcher provides the central event routing for output.
// It receives events from the runner and routes them to registered writers
// and hooks. Writers handle file output (JSON, SARIF, PDF, etc.), while
// hooks handle real-time integrations (webhooks, Prometheus, OTLP, etc.).
//
// The dispatcher is the hub all run output flows through, decoupling event
// generation from event consumption.
package dispatcher

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/depgate/depgate/pkg/output/events"
)

// Writer is the interface for all output writers.
// Writers persist events to output formats such as JSON, SARIF, JUnit,
// or console output.
type Writer interface {
	// Write writes an event to the output.
	Write(event events.Event) error

	// Flush ensures all buffered events are written.
	Flush() error

	// Close closes the writer and releases any resources.
	Close() error

	// SupportsEvent returns true if the writer handles this event type.
	SupportsEvent(eventType events.EventType) bool
}

// Hook is the interface for event hooks.
// Hooks are used for real-time integrations such as webhooks,
// metrics exporters, or trace collectors.
type Hook interface {
	// OnEvent is called for each matching event.
	OnEvent(ctx context.Context, event events.Event) error

	// EventTypes returns the event types this hook handles.
	// Return nil or empty slice to receive all events.
	EventTypes() []events.EventType
}

// Dispatcher routes events to writers and hooks.
// It is safe for concurrent use.
type Dispatcher struct {
	writers []Writer
	hooks   []Hook
	mu      sync.RWMutex

	// hookWg tracks async hook goroutines so Close can wait for them.
	hookWg sync.WaitGroup

	// closed is set by Close. Dispatches after that are dropped.
	closed atomic.Bool

	batchSize  int
	async      bool
	eventCount atomic.Int64
}

// Config configures the dispatcher behavior.
type Config struct {
	// BatchSize sets how many events may pass between automatic writer
	// flushes. A value of 0 or less defaults to 100.
	BatchSize int

	// Async enables asynchronous hook processing.
	// When true, hooks are called in goroutines.
	Async bool
}

// New creates a new event dispatcher with the given configuration.
func New(cfg Config) *Dispatcher {
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 100
	}
	return &Dispatcher{
		writers:   make([]Writer, 0),
		hooks:     make([]Hook, 0),
		batchSize: batchSize,
		async:     cfg.Async,
	}
}

// RegisterWriter adds a writer to the dispatcher.
// Writers will receive events that match their SupportsEvent filter.
func (d *Dispatcher) RegisterWriter(w Writer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.writers = append(d.writers, w)
}

// RegisterHook adds a hook to the dispatcher.
// Hooks will receive events that match their EventTypes filter.
func (d *Dispatcher) RegisterHook(h Hook) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.hooks = append(d.hooks, h)
}

// Dispatch sends an event to all registered writers and hooks.
// It returns nil even if individual writers or hooks fail, so every
// consumer gets a chance to receive the event. Events dispatched after
// Close are silently dropped.
func (d *Dispatcher) Dispatch(ctx context.Context, event events.Event) error {
	if d.closed.Load() {
		return nil
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	// Re-check under the lock. Close sets the flag while holding the
	// write lock, so a dispatch that got past the lock either completes
	// before Close proceeds or sees the flag here.
	if d.closed.Load() {
		return nil
	}

	for _, w := range d.writers {
		if w.SupportsEvent(event.EventType()) {
			if err := w.Write(event); err != nil {
				// Other writers should still receive the event.
				continue
			}
		}
	}

	for _, h := range d.hooks {
		if !d.hookSupportsEvent(h, event.EventType()) {
			continue
		}
		if d.async {
			d.hookWg.Add(1)
			go func(hook Hook) {
				defer d.hookWg.Done()
				_ = hook.OnEvent(ctx, event)
			}(h)
		} else {
			if err := h.OnEvent(ctx, event); err != nil {
				continue
			}
		}
	}

	// Periodic writer flush keeps streaming outputs current during long
	// runs without flushing on every event.
	if n := d.eventCount.Add(1); n%int64(d.batchSize) == 0 {
		for _, w := range d.writers {
			_ = w.Flush()
		}
	}

	return nil
}

// hookSupportsEvent checks if a hook handles the given event type.
func (d *Dispatcher) hookSupportsEvent(h Hook, eventType events.EventType) bool {
	types := h.EventTypes()
	// Empty slice means hook receives all events
	if len(types) == 0 {
		return true
	}
	for _, et := range types {
		if et == eventType {
			return true
		}
	}
	return false
}

// Flush flushes all registered writers.
func (d *Dispatcher) Flush() error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	for _, w := range d.writers {
		_ = w.Flush()
	}

	return nil
}

// Close waits for outstanding async hooks, then flushes and closes all
// writers. Close is idempotent; after it returns the dispatcher drops
// further events.
func (d *Dispatcher) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed.Load() {
		return nil
	}
	d.closed.Store(true)

	// Holding the write lock here guarantees no Dispatch is mid-flight,
	// so every hookWg.Add has happened before this Wait.
	d.hookWg.Wait()

	for _, w := range d.writers {
		_ = w.Flush()
		_ = w.Close()
	}

	// Hooks holding resources (metric servers, exporters, stores)
	// implement an optional Close.
	for _, h := range d.hooks {
		if closer, ok := h.(interface{ Close() error }); ok {
			_ = closer.Close()
		}
	}

	return nil
}
