package events

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Handler consumes one envelope delivered on topic.
type Handler func(ctx context.Context, topic string, env Envelope) error

type delivery struct {
	topic string
	env   Envelope
}

// LocalBus is the in-process Publisher used when no kafka broker is
// configured. Envelopes are queued and handed to the subscribers by a single
// goroutine, in publish order.
type LocalBus struct {
	log     *zap.Logger
	inbox   chan delivery
	closeCh chan struct{}

	mu   sync.RWMutex
	subs []Handler

	// guards inbox against a send after Close
	closeMu sync.RWMutex
	closed  bool
}

func NewLocalBus(log *zap.Logger, buf int) *LocalBus {
	return &LocalBus{
		log:     log.Named("bus"),
		inbox:   make(chan delivery, buf),
		closeCh: make(chan struct{}),
	}
}

func (b *LocalBus) Subscribe(h Handler) {
	b.mu.Lock()
	b.subs = append(b.subs, h)
	b.mu.Unlock()
}

func (b *LocalBus) Start(ctx context.Context) {
	go func() {
		defer close(b.closeCh)
		for d := range b.inbox {
			b.dispatch(ctx, d)
		}
	}()
}

func (b *LocalBus) dispatch(ctx context.Context, d delivery) {
	b.mu.RLock()
	subs := append([]Handler(nil), b.subs...)
	b.mu.RUnlock()
	for _, h := range subs {
		if err := h(context.WithoutCancel(ctx), d.topic, d.env); err != nil {
			b.log.Warn("handler failed",
				zap.String("topic", d.topic),
				zap.String("event_id", d.env.EventID),
				zap.Error(err))
		}
	}
}

func (b *LocalBus) Publish(ctx context.Context, topic string, env Envelope) error {
	b.closeMu.RLock()
	defer b.closeMu.RUnlock()
	if b.closed {
		return ErrClosed
	}
	select {
	case b.inbox <- delivery{topic: topic, env: env}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting envelopes; queued ones are still delivered.
func (b *LocalBus) Close() {
	b.closeMu.Lock()
	defer b.closeMu.Unlock()
	if !b.closed {
		b.closed = true
		close(b.inbox)
	}
}

func (b *LocalBus) WaitClosed() { <-b.closeCh }

// Recorder keeps published envelopes in memory.
type Recorder struct {
	mu   sync.Mutex
	sent []Published
}

type Published struct {
	Topic    string
	Envelope Envelope
}

func (r *Recorder) Publish(_ context.Context, topic string, env Envelope) error {
	r.mu.Lock()
	r.sent = append(r.sent, Published{Topic: topic, Envelope: env})
	r.mu.Unlock()
	return nil
}

func (r *Recorder) Published() []Published {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Published(nil), r.sent...)
}

// Topic returns the envelopes sent on one topic.
func (r *Recorder) Topic(topic string) []Envelope {
	var out []Envelope
	for _, p := range r.Published() {
		if p.Topic == topic {
			out = append(out, p.Envelope)
		}
	}
	return out
}
