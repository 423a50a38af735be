package events

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Publisher is the interface the services emit through.
type Publisher interface {
	Publish(ev Event)
}

// Sink receives events; the chat collaborator plugs in here.
type Sink interface {
	Deliver(ctx context.Context, ev Event) error
}

// Bus fans events out to sinks from a bounded queue drained by a small
// worker pool. Publish never blocks a request: when the queue is full
// the event is dropped with a warning. Every accepted emission is
// delivered, including repeats of an earlier notification; sinks use
// Event.Key to update an existing message rather than repost.
type Bus struct {
	ch      chan Event
	sinks   []Sink
	timeout time.Duration
	wg      sync.WaitGroup
}

func NewBus(queueSize, workers int, timeout time.Duration, sinks ...Sink) *Bus {
	if queueSize <= 0 {
		queueSize = 256
	}
	if workers <= 0 {
		workers = 4
	}
	b := &Bus{
		ch:      make(chan Event, queueSize),
		sinks:   sinks,
		timeout: timeout,
	}
	for i := 0; i < workers; i++ {
		b.wg.Add(1)
		go b.worker()
	}
	return b
}

func (b *Bus) Publish(ev Event) {
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}
	select {
	case b.ch <- ev:
	default:
		slog.Warn("event queue full, dropping event", "kind", ev.Kind, "submission_id", ev.SubmissionID)
	}
}

func (b *Bus) worker() {
	defer b.wg.Done()
	for ev := range b.ch {
		for _, sink := range b.sinks {
			ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
			if err := sink.Deliver(ctx, ev); err != nil {
				slog.Error("event delivery failed", "kind", ev.Kind, "submission_id", ev.SubmissionID, "error", err)
			}
			cancel()
		}
	}
}

// Stop drains the queue and waits for in-flight deliveries.
func (b *Bus) Stop() {
	close(b.ch)
	b.wg.Wait()
}

// Noop discards all events. Test default.
type Noop struct{}

func (Noop) Publish(Event) {}

// Recorder collects published events in order. Test use only.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Publish(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// LogSink writes delivered events to the structured log. It stands in
// for the chat collaborator when none is configured.
type LogSink struct{}

func (LogSink) Deliver(_ context.Context, ev Event) error {
	slog.Info("review event", "kind", ev.Kind, "submission_id", ev.SubmissionID, "reason", ev.Reason)
	return nil
}
