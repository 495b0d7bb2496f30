package kafka

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Handler returns nil only when the message is processed.
type Handler func(ctx context.Context, m kafka.Message) error

type ConsumerConfig struct {
	Brokers []string
	GroupID string
	Topics  []string
	Workers int
	// MaxAttempts bounds handler calls per message; after that the message is
	// logged and committed so one bad event cannot wedge its lane.
	MaxAttempts int
	Backoff     time.Duration
}

type Consumer struct {
	r       *kafka.Reader
	cfg     ConsumerConfig
	log     *zap.Logger
	commits *commitTracker
}

func NewConsumer(cfg ConsumerConfig, log *zap.Logger) *Consumer {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = 200 * time.Millisecond
	}
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.Brokers,
		GroupID:        cfg.GroupID,
		GroupTopics:    cfg.Topics,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: 0, // manual commit
	})
	return &Consumer{r: r, cfg: cfg, log: log.Named("consumer"), commits: newCommitTracker(r.CommitMessages)}
}

// Start fetches until ctx is done. Messages sharing a key land on the same
// worker, so events for one order are handled in the order they were written.
// Offsets are committed per partition in fetch order whatever lane finishes
// first, so a restart never skips a message that was still in flight.
func (c *Consumer) Start(ctx context.Context, h Handler) error {
	defer c.r.Close()

	lanes := make([]chan kafka.Message, c.cfg.Workers)
	var wg sync.WaitGroup
	for i := range lanes {
		lanes[i] = make(chan kafka.Message, 64)
		wg.Add(1)
		go func(in <-chan kafka.Message) {
			defer wg.Done()
			for m := range in {
				c.process(ctx, h, m)
			}
		}(lanes[i])
	}
	stop := func() {
		for _, l := range lanes {
			close(l)
		}
		wg.Wait()
	}

	for {
		m, err := c.r.FetchMessage(ctx)
		if err != nil {
			stop()
			if ctx.Err() != nil {
				return nil
			}
			return errors.Wrap(err, "fetch message")
		}
		c.commits.fetched(m)
		select {
		case lanes[laneFor(m.Key, len(lanes))] <- m:
		case <-ctx.Done():
			stop()
			return nil
		}
	}
}

func (c *Consumer) process(ctx context.Context, h Handler, m kafka.Message) {
	log := c.log.With(zap.String("topic", m.Topic), zap.Int("partition", m.Partition), zap.Int64("offset", m.Offset))

	var err error
	for attempt := 1; attempt <= c.cfg.MaxAttempts; attempt++ {
		if err = h(ctx, m); err == nil {
			break
		}
		log.Warn("handler failed", zap.Int("attempt", attempt), zap.Error(err))
		if attempt == c.cfg.MaxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(c.cfg.Backoff * time.Duration(attempt)):
		}
	}
	if err != nil {
		log.Error("skipping message after retries", zap.Error(err))
	}
	if _, err := c.commits.finished(ctx, m); err != nil && ctx.Err() == nil {
		log.Warn("commit failed", zap.Error(err))
	}
}

// laneFor picks a worker for key. Keyless messages all go to lane 0.
func laneFor(key []byte, n int) int {
	if n <= 1 || len(key) == 0 {
		return 0
	}
	h := fnv.New32a()
	_, _ = h.Write(key)
	return int(h.Sum32() % uint32(n))
}
