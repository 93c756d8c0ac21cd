package worker

import (
	"context"
	"sync"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/pkg/kmsg"
	"go.uber.org/zap"
)

// Committer is the subset of *kgo.Client the offset coordinator needs,
// narrowed from the real CommitOffsets signature (which hands the raw
// kmsg request/response back) down to just the error a caller cares about.
type Committer interface {
	CommitOffsets(ctx context.Context, offsets map[string]map[int32]kgo.EpochOffset, onDone func(*kgo.Client, map[string]map[int32]kgo.EpochOffset, error))
}

// KgoCommitter adapts a real *kgo.Client to the Committer interface.
type KgoCommitter struct {
	Client *kgo.Client
}

// CommitOffsets implements Committer by delegating to the real client and
// translating away the kmsg request/response pair.
func (k KgoCommitter) CommitOffsets(ctx context.Context, offsets map[string]map[int32]kgo.EpochOffset, onDone func(*kgo.Client, map[string]map[int32]kgo.EpochOffset, error)) {
	k.Client.CommitOffsets(ctx, offsets, func(cl *kgo.Client, _ *kmsg.OffsetCommitRequest, _ *kmsg.OffsetCommitResponse, err error) {
		onDone(cl, offsets, err)
	})
}

type topicPartition struct {
	Topic     string
	Partition int32
}

// OffsetCoordinator tracks the highest durably-applied offset per
// topic-partition and commits it periodically, ported from the original
// service's commit_coordinator.rs. Commits always route through the
// registered consumer for a topic -- the topic/consumer directory is fixed
// at startup precisely so a commit can never be issued against a client
// not subscribed to that topic.
type OffsetCoordinator struct {
	mu      sync.Mutex
	highest map[topicPartition]int64

	topicToConsumer map[string]string
	consumers       map[string]Committer

	log *zap.Logger
}

// NewOffsetCoordinator builds a coordinator routing commits through
// consumers, keyed by consumer name via topicToConsumer.
func NewOffsetCoordinator(topicToConsumer map[string]string, consumers map[string]Committer, log *zap.Logger) *OffsetCoordinator {
	return &OffsetCoordinator{
		highest:         make(map[topicPartition]int64),
		topicToConsumer: topicToConsumer,
		consumers:       consumers,
		log:             log,
	}
}

// MarkProcessed records that offset has been durably applied (indexed or
// routed to the DLQ) for topic/partition. Max-merges with any pending
// value so an out-of-order completion can never regress the tracked offset.
func (o *OffsetCoordinator) MarkProcessed(topic string, partition int32, offset int64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	key := topicPartition{topic, partition}
	if cur, ok := o.highest[key]; !ok || offset > cur {
		o.highest[key] = offset
	}
}

// Run commits tracked offsets every interval until ctx is canceled.
func (o *OffsetCoordinator) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			o.commit(ctx, false)
		}
	}
}

// Flush performs one final, synchronous commit of whatever remains tracked.
// Called once during the Flushing shutdown phase, after the task pool has
// drained.
func (o *OffsetCoordinator) Flush(ctx context.Context) {
	o.commit(ctx, true)
}

func (o *OffsetCoordinator) swapOut() map[topicPartition]int64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.highest) == 0 {
		return nil
	}
	batch := o.highest
	o.highest = make(map[topicPartition]int64)
	return batch
}

func (o *OffsetCoordinator) remerge(batch map[topicPartition]int64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for key, offset := range batch {
		if cur, ok := o.highest[key]; !ok || offset > cur {
			o.highest[key] = offset
		}
	}
}

func (o *OffsetCoordinator) commit(ctx context.Context, sync bool) {
	batch := o.swapOut()
	if len(batch) == 0 {
		return
	}

	byTopic := make(map[string]map[topicPartition]int64)
	for tp, offset := range batch {
		if byTopic[tp.Topic] == nil {
			byTopic[tp.Topic] = make(map[topicPartition]int64)
		}
		byTopic[tp.Topic][tp] = offset
	}

	for topic, tps := range byTopic {
		o.commitTopic(ctx, topic, tps, sync)
	}
}

func (o *OffsetCoordinator) commitTopic(ctx context.Context, topic string, tps map[topicPartition]int64, waitForResult bool) {
	consumerName, ok := o.topicToConsumer[topic]
	if !ok {
		o.log.Error("no consumer registered for topic, re-merging offsets", zap.String("topic", topic))
		o.remerge(tps)
		return
	}
	client, ok := o.consumers[consumerName]
	if !ok {
		o.log.Error("consumer not registered, re-merging offsets",
			zap.String("consumer", consumerName), zap.String("topic", topic))
		o.remerge(tps)
		return
	}

	offsets := map[string]map[int32]kgo.EpochOffset{topic: make(map[int32]kgo.EpochOffset, len(tps))}
	for tp, offset := range tps {
		offsets[topic][tp.Partition] = kgo.EpochOffset{Epoch: -1, Offset: offset + 1}
	}

	var wg sync.WaitGroup
	if waitForResult {
		wg.Add(1)
	}
	client.CommitOffsets(ctx, offsets, func(_ *kgo.Client, _ map[string]map[int32]kgo.EpochOffset, err error) {
		if err != nil {
			o.log.Error("offset commit failed, re-merging", zap.Error(err), zap.String("topic", topic))
			o.remerge(tps)
		}
		if waitForResult {
			wg.Done()
		}
	})
	if waitForResult {
		wg.Wait()
	}
}
