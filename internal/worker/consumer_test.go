package worker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"
	"go.uber.org/zap"

	"github.com/ahmad-khatib0-org/chaty-backend/search-worker/internal/dlq"
	"github.com/ahmad-khatib0-org/chaty-backend/search-worker/internal/processor"
)

type fakeWorkerIndexer struct {
	upsertCalls int
	deleteCalls int
}

func (f *fakeWorkerIndexer) Upsert(ctx context.Context, indexUID string, doc interface{}) error {
	f.upsertCalls++
	return nil
}

func (f *fakeWorkerIndexer) Delete(ctx context.Context, indexUID, id string) error {
	f.deleteCalls++
	return nil
}

type fakeProducer struct {
	produceCalls int
	lastTopic    string
}

func (f *fakeProducer) ProduceSync(ctx context.Context, r *kgo.Record) kgo.ProduceResults {
	f.produceCalls++
	f.lastTopic = r.Topic
	return kgo.ProduceResults{{Record: r, Err: nil}}
}

type fakeRecorder struct {
	processed int
	failed    int
}

func (f *fakeRecorder) MessageProcessed(string)                   { f.processed++ }
func (f *fakeRecorder) MessageFailed(string)                      { f.failed++ }
func (f *fakeRecorder) MeiliIndexingDuration(string, time.Duration) {}
func (f *fakeRecorder) MeiliRetry(string)                         {}
func (f *fakeRecorder) DLQPublishFailed(string)                   {}

func newTestConsumer(t *testing.T, indexer *fakeWorkerIndexer, producer *fakeProducer, rec *fakeRecorder, pool *Pool) *Consumer {
	t.Helper()
	log := zap.NewNop()
	proc := processor.New(indexer, "usernames", log, rec)
	router := dlq.New(producer, log, rec, time.Second)
	offs := NewOffsetCoordinator(nil, nil, log)
	return NewConsumer("usernames-consumer", "users.changes", "users.changes.dlq", nil, pool, proc, router, offs, log, rec)
}

func TestProcessHeartbeatAdvancesOffsetWithoutIndexerDLQOrMetrics(t *testing.T) {
	indexer := &fakeWorkerIndexer{}
	producer := &fakeProducer{}
	rec := &fakeRecorder{}
	c := newTestConsumer(t, indexer, producer, rec, NewPool(1))

	record := &kgo.Record{
		Topic:     "users.changes",
		Partition: 0,
		Offset:    7,
		Value:     []byte(`{"key":[],"after":null,"before":null,"resolved":"1700000000000"}`),
	}

	c.process(context.Background(), record)

	assert.Zero(t, indexer.upsertCalls)
	assert.Zero(t, indexer.deleteCalls)
	assert.Zero(t, producer.produceCalls)
	assert.Zero(t, rec.processed)
	assert.Zero(t, rec.failed)
	assert.Equal(t, int64(7), c.offs.highest[topicPartition{"users.changes", 0}])
}

func TestProcessPoisonPayloadRoutesToDLQWithoutProcessor(t *testing.T) {
	indexer := &fakeWorkerIndexer{}
	producer := &fakeProducer{}
	rec := &fakeRecorder{}
	c := newTestConsumer(t, indexer, producer, rec, NewPool(1))

	record := &kgo.Record{
		Topic:     "users.changes",
		Partition: 1,
		Offset:    3,
		Value:     []byte(`not valid json`),
	}

	c.process(context.Background(), record)

	assert.Zero(t, indexer.upsertCalls)
	assert.Zero(t, indexer.deleteCalls)
	require.Equal(t, 1, producer.produceCalls)
	assert.Equal(t, "users.changes.dlq", producer.lastTopic)
	assert.Equal(t, 1, rec.failed)
	assert.Zero(t, rec.processed)
	assert.Equal(t, int64(3), c.offs.highest[topicPartition{"users.changes", 1}])
}

func TestDispatchAcceptingRunsThroughPool(t *testing.T) {
	indexer := &fakeWorkerIndexer{}
	producer := &fakeProducer{}
	rec := &fakeRecorder{}
	pool := NewPool(1)
	c := newTestConsumer(t, indexer, producer, rec, pool)

	record := &kgo.Record{
		Topic: "users.changes", Partition: 0, Offset: 1,
		Value: []byte(`{"key":[],"after":{"id":"u1","username":"ada"},"before":null}`),
	}

	c.dispatch(context.Background(), record)

	assert.Eventually(t, func() bool { return indexer.upsertCalls == 1 }, time.Second, time.Millisecond)
}

func TestDispatchDrainingRunsInline(t *testing.T) {
	indexer := &fakeWorkerIndexer{}
	producer := &fakeProducer{}
	rec := &fakeRecorder{}
	pool := NewPool(1)
	pool.StopAccepting()
	c := newTestConsumer(t, indexer, producer, rec, pool)

	record := &kgo.Record{
		Topic: "users.changes", Partition: 0, Offset: 1,
		Value: []byte(`{"key":[],"after":{"id":"u1","username":"ada"},"before":null}`),
	}

	c.dispatch(context.Background(), record)

	// A draining pool's Go returns false synchronously, so dispatch must
	// have already run process inline by the time it returns -- no wait.
	assert.Equal(t, 1, indexer.upsertCalls)
}
