package kafka

import (
	"context"
	"sync"

	"github.com/segmentio/kafka-go"
)

type partition struct {
	topic string
	id    int
}

type partitionLog struct {
	pending []int64
	done    map[int64]bool
}

// commitTracker commits a partition's offsets only in fetch order. Lanes
// finish out of order, so a message is held back until every earlier
// message of its partition is finished too.
type commitTracker struct {
	mu     sync.Mutex
	parts  map[partition]*partitionLog
	commit func(ctx context.Context, msgs ...kafka.Message) error
}

func newCommitTracker(commit func(ctx context.Context, msgs ...kafka.Message) error) *commitTracker {
	return &commitTracker{parts: map[partition]*partitionLog{}, commit: commit}
}

// fetched must be called in fetch order, before the message reaches a lane.
func (t *commitTracker) fetched(m kafka.Message) {
	t.mu.Lock()
	defer t.mu.Unlock()
	k := partition{m.Topic, m.Partition}
	pl := t.parts[k]
	if pl == nil {
		pl = &partitionLog{done: map[int64]bool{}}
		t.parts[k] = pl
	}
	pl.pending = append(pl.pending, m.Offset)
}

// finished marks m done and commits the highest offset whose predecessors
// are all done. It reports whether a commit was sent.
func (t *commitTracker) finished(ctx context.Context, m kafka.Message) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	pl := t.parts[partition{m.Topic, m.Partition}]
	if pl == nil {
		return false, nil
	}
	pl.done[m.Offset] = true

	last := int64(-1)
	for len(pl.pending) > 0 && pl.done[pl.pending[0]] {
		last = pl.pending[0]
		delete(pl.done, last)
		pl.pending = pl.pending[1:]
	}
	if last < 0 {
		return false, nil
	}
	// held under the lock so commits of one partition never go backwards
	return true, t.commit(ctx, kafka.Message{Topic: m.Topic, Partition: m.Partition, Offset: last})
}
