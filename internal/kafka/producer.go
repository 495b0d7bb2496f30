package kafka

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/kmercart/kmercart-api/internal/events"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Producer buffers messages in an inbox and writes them from one goroutine.
// The writer has no fixed topic; every message names its own.
type Producer struct {
	w       *kafka.Writer
	log     *zap.Logger
	inbox   chan kafka.Message
	closeCh chan struct{}
	onError func(topic string)

	mu     sync.RWMutex
	closed bool
}

func NewProducer(brokers []string, buf int, log *zap.Logger) *Producer {
	return &Producer{
		w: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			BatchTimeout: 50 * time.Millisecond,
		},
		log:     log.Named("producer"),
		inbox:   make(chan kafka.Message, buf),
		closeCh: make(chan struct{}),
	}
}

// OnError registers a callback run after a failed write.
func (p *Producer) OnError(fn func(topic string)) { p.onError = fn }

func (p *Producer) Start(ctx context.Context) {
	go func() {
		defer close(p.closeCh)
		for {
			select {
			case <-ctx.Done():
				// drain what is already queued, then stop
				for {
					select {
					case m, ok := <-p.inbox:
						if !ok {
							p.closeWriter()
							return
						}
						p.write(m)
					default:
						p.closeWriter()
						return
					}
				}
			case m, ok := <-p.inbox:
				if !ok {
					p.closeWriter()
					return
				}
				p.write(m)
			}
		}
	}()
}

func (p *Producer) write(m kafka.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := p.w.WriteMessages(ctx, m); err != nil {
		p.log.Error("write message",
			zap.String("topic", m.Topic),
			zap.ByteString("key", m.Key),
			zap.Error(err))
		if p.onError != nil {
			p.onError(m.Topic)
		}
	}
}

func (p *Producer) closeWriter() {
	if err := p.w.Close(); err != nil {
		p.log.Warn("close writer", zap.Error(err))
	}
}

// Publish enqueues env on topic keyed by its correlation id.
func (p *Producer) Publish(ctx context.Context, topic string, env events.Envelope) error {
	value, err := MarshalEnvelope(env)
	if err != nil {
		return err
	}
	m := kafka.Message{
		Topic: topic,
		Key:   events.PartitionKey(env.CorrelationID),
		Value: value,
		Time:  time.Now(),
		Headers: []kafka.Header{
			{Key: "x-event-type", Value: []byte(env.EventType)},
			{Key: "x-event-version", Value: []byte(strconv.Itoa(env.EventVersion))},
		},
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return events.ErrClosed
	}
	select {
	case p.inbox <- m:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close closes the inbox so the goroutine flushes what is left and exits.
// Publish calls that arrive later get events.ErrClosed.
func (p *Producer) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.closed {
		p.closed = true
		close(p.inbox)
	}
}

// WaitClosed blocks until the writer is closed.
func (p *Producer) WaitClosed() { <-p.closeCh }
