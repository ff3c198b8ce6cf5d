package kafka

import (
	"context"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Handler must return nil only when the message was processed and its offset may be committed.
type Handler func(ctx context.Context, m kafka.Message) error

const (
	retryBase = 200 * time.Millisecond
	retryMax  = 5 * time.Second
)

type Consumer struct {
	r       *kafka.Reader
	workers int
	log     *zap.Logger

	commitMu sync.Mutex
	offsets  *commitTracker
}

func NewConsumer(brokers []string, group, topic string, workers int, log *zap.Logger) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		GroupID:        group,
		Topic:          topic,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: 0, // manual commit
	})
	if workers <= 0 {
		workers = 1
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Consumer{r: r, workers: workers, log: log.With(zap.String("topic", topic)), offsets: newCommitTracker()}
}

// Start fetches until ctx is done. A failing message is retried in place and
// no offset past it is committed while it is outstanding.
func (c *Consumer) Start(ctx context.Context, h Handler) error {
	defer c.r.Close()

	jobs := make(chan kafka.Message, 1024)
	var wg sync.WaitGroup
	for i := 0; i < c.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for m := range jobs {
				if err := handleWithRetry(ctx, h, m, c.log); err != nil {
					continue
				}
				c.commit(ctx, m)
			}
		}()
	}
	defer wg.Wait()
	defer close(jobs)

	for {
		m, err := c.r.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		c.offsets.fetched(m)
		select {
		case jobs <- m:
		case <-ctx.Done():
			return nil
		}
	}
}

func (c *Consumer) commit(ctx context.Context, m kafka.Message) {
	c.commitMu.Lock()
	defer c.commitMu.Unlock()
	upTo, ok := c.offsets.done(m)
	if !ok {
		return
	}
	if err := c.r.CommitMessages(ctx, upTo); err != nil {
		c.log.Warn("commit failed", zap.Int("partition", upTo.Partition), zap.Int64("offset", upTo.Offset), zap.Error(err))
	}
}

// handleWithRetry calls h until it succeeds or ctx is done, backing off between attempts.
func handleWithRetry(ctx context.Context, h Handler, m kafka.Message, log *zap.Logger) error {
	wait := retryBase
	for attempt := 1; ; attempt++ {
		err := h(ctx, m)
		if err == nil {
			return nil
		}
		log.Warn("handler error",
			zap.Int("partition", m.Partition), zap.Int64("offset", m.Offset),
			zap.Int("attempt", attempt), zap.Error(err))
		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
		if wait *= 2; wait > retryMax {
			wait = retryMax
		}
	}
}

// commitTracker orders completions per partition so that only a prefix of
// fetched messages that are all done is ever committed.
type commitTracker struct {
	mu         sync.Mutex
	partitions map[int]*partitionOffsets
}

type partitionOffsets struct {
	pending  []kafka.Message // fetch order
	finished map[int64]bool
}

func newCommitTracker() *commitTracker {
	return &commitTracker{partitions: map[int]*partitionOffsets{}}
}

func (t *commitTracker) fetched(m kafka.Message) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p := t.partitions[m.Partition]
	if p == nil {
		p = &partitionOffsets{finished: map[int64]bool{}}
		t.partitions[m.Partition] = p
	}
	p.pending = append(p.pending, m)
}

// done records m as processed and returns the last message of the leading
// run of processed messages in its partition, if that run moved.
func (t *commitTracker) done(m kafka.Message) (kafka.Message, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p := t.partitions[m.Partition]
	if p == nil {
		return kafka.Message{}, false
	}
	p.finished[m.Offset] = true

	var upTo kafka.Message
	n := 0
	for n < len(p.pending) && p.finished[p.pending[n].Offset] {
		upTo = p.pending[n]
		delete(p.finished, upTo.Offset)
		n++
	}
	if n == 0 {
		return kafka.Message{}, false
	}
	p.pending = p.pending[n:]
	return upTo, true
}
