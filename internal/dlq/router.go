// Package dlq routes permanently-failed CDC records to a dead-letter topic,
// the DLQ envelope shape matches the source Rust worker's usernames_consumer.rs branch.
package dlq

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"time"
	"unicode/utf8"

	"github.com/twmb/franz-go/pkg/kgo"
	"go.uber.org/zap"

	"github.com/ahmad-khatib0-org/chaty-backend/search-worker/internal/metrics"
)

// producer is the subset of *kgo.Client the router needs, so tests can
// substitute a fake without a real broker.
type producer interface {
	ProduceSync(ctx context.Context, r *kgo.Record) kgo.ProduceResults
}

// envelope is the JSON shape published to the DLQ topic.
type envelope struct {
	Original      string `json:"original,omitempty"`
	OriginalBytes string `json:"original_bytes_base64,omitempty"`
	Error         string `json:"error"`
	Timestamp     int64  `json:"ts"`
}

// Router publishes failed records to their topic's DLQ.
type Router struct {
	client  producer
	log     *zap.Logger
	metrics metrics.Recorder
	timeout time.Duration
	now     func() time.Time
}

// New builds a Router that stamps each envelope's ts with time.Now.
func New(client producer, log *zap.Logger, rec metrics.Recorder, timeout time.Duration) *Router {
	return &Router{client: client, log: log, metrics: rec, timeout: timeout, now: time.Now}
}

// Send publishes original (the raw record value) and procErr (the
// processing failure) to dlqTopic. Publish failures are logged and counted,
// never propagated -- the pipeline must keep moving.
func (r *Router) Send(ctx context.Context, sourceTopic, dlqTopic string, original []byte, procErr error) {
	env := envelope{
		Error:     procErr.Error(),
		Timestamp: r.now().UnixMilli(),
	}
	if utf8.Valid(original) {
		env.Original = string(original)
	} else {
		env.OriginalBytes = base64.StdEncoding.EncodeToString(original)
	}

	payload, err := json.Marshal(env)
	if err != nil {
		r.log.Error("failed to marshal DLQ envelope", zap.Error(err), zap.String("topic", dlqTopic))
		r.metrics.DLQPublishFailed(sourceTopic)
		return
	}

	pubCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	results := r.client.ProduceSync(pubCtx, &kgo.Record{Topic: dlqTopic, Value: payload})
	if err := results.FirstErr(); err != nil {
		r.log.Error("failed to publish to DLQ", zap.Error(err), zap.String("topic", dlqTopic))
		r.metrics.DLQPublishFailed(sourceTopic)
	}
}
