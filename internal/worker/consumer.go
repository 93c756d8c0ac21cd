package worker

import (
	"context"

	"github.com/twmb/franz-go/pkg/kgo"
	"go.uber.org/zap"

	"github.com/ahmad-khatib0-org/chaty-backend/search-worker/internal/cdc"
	"github.com/ahmad-khatib0-org/chaty-backend/search-worker/internal/dlq"
	"github.com/ahmad-khatib0-org/chaty-backend/search-worker/internal/metrics"
	"github.com/ahmad-khatib0-org/chaty-backend/search-worker/internal/processor"
)

// Consumer runs the poll/process/commit-offset-tracking loop for a single
// Kafka client subscribed to one topic, grounded on the high-level
// kgo.Client usage in hermes's indexer Consumer (PollFetches/EachPartition)
// and the source Rust worker's usernames_consumer.rs for the
// accepting-vs-draining branch and per-message DLQ/offset bookkeeping.
type Consumer struct {
	Name     string
	Topic    string
	DLQTopic string

	client *kgo.Client
	pool   *Pool
	proc   *processor.Processor
	router *dlq.Router
	offs   *OffsetCoordinator
	log    *zap.Logger
	met    metrics.Recorder
}

// NewConsumer builds a Consumer. client must already be subscribed to
// Topic; name is the key this consumer is registered under in the offset
// coordinator's consumer directory, not the consumer group id.
func NewConsumer(name, topic, dlqTopic string, client *kgo.Client, pool *Pool,
	proc *processor.Processor, router *dlq.Router, offs *OffsetCoordinator,
	log *zap.Logger, met metrics.Recorder) *Consumer {
	return &Consumer{
		Name: name, Topic: topic, DLQTopic: dlqTopic,
		client: client, pool: pool, proc: proc, router: router, offs: offs,
		log: log, met: met,
	}
}

// Run polls fetches until ctx is canceled. Each record is, by default,
// handed to the bounded task pool; once the pool stops accepting work
// (during shutdown draining) records are processed inline on this
// goroutine instead of being dropped.
func (c *Consumer) Run(ctx context.Context) {
	for ctx.Err() == nil {
		fetches := c.client.PollFetches(ctx)
		if ctx.Err() != nil {
			return
		}

		fetches.EachError(func(topic string, partition int32, err error) {
			c.log.Error("fetch error", zap.String("topic", topic), zap.Int32("partition", partition), zap.Error(err))
		})

		fetches.EachPartition(func(p kgo.FetchTopicPartition) {
			for _, record := range p.Records {
				c.dispatch(ctx, record)
			}
		})
	}
}

func (c *Consumer) dispatch(ctx context.Context, record *kgo.Record) {
	submitted := c.pool.Go(func() {
		c.process(ctx, record)
	})
	if !submitted {
		c.process(ctx, record)
	}
}

func (c *Consumer) process(ctx context.Context, record *kgo.Record) {
	env, err := cdc.Decode(record.Value)
	if err != nil {
		c.router.Send(ctx, c.Topic, c.DLQTopic, record.Value, err)
		c.met.MessageFailed(c.Topic)
		c.offs.MarkProcessed(record.Topic, record.Partition, record.Offset)
		return
	}

	if env.Classify() == cdc.KindHeartbeat {
		// A liveness beacon: advance the offset and do nothing else, per
		// the resolved-marker contract -- no indexer call, no DLQ publish,
		// no processed/failed metric.
		c.offs.MarkProcessed(record.Topic, record.Partition, record.Offset)
		return
	}

	if err := c.proc.Handle(ctx, env); err != nil {
		c.router.Send(ctx, c.Topic, c.DLQTopic, record.Value, err)
		c.met.MessageFailed(c.Topic)
	} else {
		c.met.MessageProcessed(c.Topic)
	}
	c.offs.MarkProcessed(record.Topic, record.Partition, record.Offset)
}

// PauseFetching pauses all assigned partitions for Topic without
// unsubscribing, matching the source Rust worker's shutdown.rs (which pauses
// rather than drops the assignment so a restart doesn't trigger a
// rebalance mid-drain).
func (c *Consumer) PauseFetching() {
	c.client.PauseFetchTopics(c.Topic)
}

// Close unsubscribes and closes the underlying client, called once the
// final offset flush has completed.
func (c *Consumer) Close() {
	c.client.CloseAllowingRebalance()
}
