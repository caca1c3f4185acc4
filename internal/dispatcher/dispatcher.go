package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// DefaultInboxSize is the serial inbox capacity used when New is given zero.
const DefaultInboxSize = 4096

// ErrClosed is returned for events dispatched after Close.
var ErrClosed = errors.New("dispatcher closed")

// Event is one message for a registered handler.
type Event struct {
	Command   string
	Payload   any
	Timestamp time.Time
}

// HandlerFunc processes an event and returns a result.
type HandlerFunc func(Event) (any, error)

// Logger interface for pluggable logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Option configures handler registration.
type Option func(*config)

type config struct {
	bufferSize int
	blocking   bool
	logged     bool
	serial     bool
}

// Buffered makes the handler async with a queue of the given size.
func Buffered(size int) Option {
	return func(c *config) {
		c.bufferSize = size
	}
}

// Blocking makes a buffered handler block when the queue is full instead of dropping.
func Blocking() Option {
	return func(c *config) {
		c.blocking = true
	}
}

// Logged adds debug logging to the handler.
func Logged() Option {
	return func(c *config) {
		c.logged = true
	}
}

// Serial runs the handler on the dispatcher's single inbox goroutine. All
// Serial handlers see their events strictly in arrival order and never run
// concurrently with each other. Sends to a full inbox block.
func Serial() Option {
	return func(c *config) {
		c.serial = true
	}
}

type result struct {
	value any
	err   error
}

type inboxItem struct {
	event   Event
	handler HandlerFunc
	reply   chan result
}

// Dispatcher routes events to registered handlers.
type Dispatcher struct {
	handlers map[string]HandlerFunc
	serial   map[string]bool
	logger   Logger

	// OTEL metrics
	queueSize metric.Int64ObservableGauge
	processed metric.Int64Counter
	dropped   metric.Int64Counter

	// Track buffers for gauge callback
	mu      sync.RWMutex
	buffers map[string]chan Event

	inbox    chan inboxItem
	closeMu  sync.RWMutex
	closed   bool
	loopDone chan struct{}
}

// New creates a new Dispatcher with the given logger and serial inbox size.
// Uses the global OTel meter for metrics (no-op if not configured).
func New(logger Logger, inboxSize int) (*Dispatcher, error) {
	if inboxSize <= 0 {
		inboxSize = DefaultInboxSize
	}
	d := &Dispatcher{
		handlers: make(map[string]HandlerFunc),
		serial:   make(map[string]bool),
		buffers:  make(map[string]chan Event),
		logger:   logger,
		inbox:    make(chan inboxItem, inboxSize),
		loopDone: make(chan struct{}),
	}

	// Get meter from global OTel provider (returns no-op if not configured)
	m := meter()

	var err error

	d.queueSize, err = m.Int64ObservableGauge(
		"dispatcher.queue.size",
		metric.WithDescription("Current number of events in queue"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating queue size gauge: %w", err)
	}

	_, err = m.RegisterCallback(
		func(ctx context.Context, o metric.Observer) error {
			o.ObserveInt64(d.queueSize, int64(len(d.inbox)),
				metric.WithAttributes(attribute.String("command", "inbox")))
			d.mu.RLock()
			defer d.mu.RUnlock()
			for cmd, buf := range d.buffers {
				o.ObserveInt64(d.queueSize, int64(len(buf)),
					metric.WithAttributes(attribute.String("command", cmd)))
			}
			return nil
		},
		d.queueSize,
	)
	if err != nil {
		return nil, fmt.Errorf("registering queue callback: %w", err)
	}

	d.processed, err = m.Int64Counter(
		"dispatcher.events.processed",
		metric.WithDescription("Total events processed"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating processed counter: %w", err)
	}

	d.dropped, err = m.Int64Counter(
		"dispatcher.events.dropped",
		metric.WithDescription("Total events dropped due to full queue"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating dropped counter: %w", err)
	}

	go d.runInbox()

	return d, nil
}

// Register adds a handler for the given command with optional configuration.
// Register is not safe to call concurrently with Dispatch.
func (d *Dispatcher) Register(command string, h HandlerFunc, opts ...Option) {
	cfg := &config{}
	for _, opt := range opts {
		opt(cfg)
	}

	handler := h

	if cfg.logged {
		handler = d.withLogging(command, handler)
	}

	switch {
	case cfg.serial:
		d.serial[command] = true
	case cfg.bufferSize > 0:
		handler = d.withBuffer(command, cfg.bufferSize, cfg.blocking, handler)
	}

	d.handlers[command] = handler
}

// Dispatch routes an event to its registered handler. Serial and buffered
// handlers return "queued" immediately.
func (d *Dispatcher) Dispatch(e Event) (any, error) {
	h, ok := d.handlers[e.Command]
	if !ok {
		return nil, fmt.Errorf("unknown command: %s", e.Command)
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	if d.serial[e.Command] {
		if err := d.enqueue(context.Background(), inboxItem{event: e, handler: h}); err != nil {
			return nil, err
		}
		return "queued", nil
	}
	return h(e)
}

// Call routes an event and waits for its result. For Serial handlers the
// handler still runs on the inbox goroutine, so Call must never be used from
// inside a Serial handler. ctx bounds both the wait for inbox space and the
// wait for the result.
func (d *Dispatcher) Call(ctx context.Context, e Event) (any, error) {
	h, ok := d.handlers[e.Command]
	if !ok {
		return nil, fmt.Errorf("unknown command: %s", e.Command)
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	if !d.serial[e.Command] {
		return h(e)
	}

	reply := make(chan result, 1)
	if err := d.enqueue(ctx, inboxItem{event: e, handler: h, reply: reply}); err != nil {
		return nil, err
	}
	select {
	case r := <-reply:
		return r.value, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// HasHandler returns true if a handler is registered for the command.
func (d *Dispatcher) HasHandler(command string) bool {
	_, ok := d.handlers[command]
	return ok
}

// InboxLen returns the number of serial events waiting to be processed.
func (d *Dispatcher) InboxLen() int {
	return len(d.inbox)
}

// Close stops accepting events, drains the serial inbox and waits for the
// inbox goroutine to exit.
func (d *Dispatcher) Close() {
	d.closeMu.Lock()
	if d.closed {
		d.closeMu.Unlock()
		<-d.loopDone
		return
	}
	d.closed = true
	close(d.inbox)
	d.closeMu.Unlock()
	<-d.loopDone
}

func (d *Dispatcher) enqueue(ctx context.Context, item inboxItem) error {
	d.closeMu.RLock()
	defer d.closeMu.RUnlock()
	if d.closed {
		return ErrClosed
	}
	select {
	case d.inbox <- item:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) runInbox() {
	defer close(d.loopDone)
	for item := range d.inbox {
		value, err := item.handler(item.event)
		d.processed.Add(context.Background(), 1,
			metric.WithAttributes(attribute.String("command", item.event.Command)))
		if item.reply != nil {
			item.reply <- result{value: value, err: err}
		}
	}
}

func (d *Dispatcher) withBuffer(command string, size int, blocking bool, h HandlerFunc) HandlerFunc {
	buffer := make(chan Event, size)

	d.mu.Lock()
	d.buffers[command] = buffer
	d.mu.Unlock()

	cmdAttr := attribute.String("command", command)

	go func() {
		for e := range buffer {
			h(e)
			d.processed.Add(context.Background(), 1, metric.WithAttributes(cmdAttr))
		}
	}()

	if blocking {
		return func(e Event) (any, error) {
			buffer <- e
			return "queued", nil
		}
	}

	return func(e Event) (any, error) {
		select {
		case buffer <- e:
			return "queued", nil
		default:
			d.dropped.Add(context.Background(), 1, metric.WithAttributes(cmdAttr))
			return nil, fmt.Errorf("queue full: %s", command)
		}
	}
}

func (d *Dispatcher) withLogging(command string, h HandlerFunc) HandlerFunc {
	return func(e Event) (any, error) {
		start := time.Now()
		d.logger.Debug("handling event", "command", command)

		result, err := h(e)

		if err != nil {
			d.logger.Error("event failed", "command", command, "duration", time.Since(start), "error", err)
		} else {
			d.logger.Debug("event complete", "command", command, "duration", time.Since(start))
		}

		return result, err
	}
}
