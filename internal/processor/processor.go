// Package processor turns a decoded CDC envelope into an idempotent
// upsert or delete against the search engine, with bounded retry --
// the classification and retry policy match the source Rust worker's
// usernames_message_processor.rs.
package processor

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/ahmad-khatib0-org/chaty-backend/search-worker/internal/cdc"
	"github.com/ahmad-khatib0-org/chaty-backend/search-worker/internal/classify"
	"github.com/ahmad-khatib0-org/chaty-backend/search-worker/internal/metrics"
)

// Indexer is the subset of *search.Client the processor depends on.
type Indexer interface {
	Upsert(ctx context.Context, indexUID string, doc interface{}) error
	Delete(ctx context.Context, indexUID, id string) error
}

const maxRetries = 3

// Processor handles decoded envelopes for a single index.
type Processor struct {
	indexer  Indexer
	indexUID string
	log      *zap.Logger
	metrics  metrics.Recorder
	clock    func() time.Time
}

// New builds a Processor writing into indexUID.
func New(indexer Indexer, indexUID string, log *zap.Logger, rec metrics.Recorder) *Processor {
	return &Processor{indexer: indexer, indexUID: indexUID, log: log, metrics: rec, clock: time.Now}
}

// Handle classifies env and applies it to the search engine, retrying
// transient failures up to maxRetries times with exponential backoff
// (100ms doubling, capped at 5s -- matching the source Rust worker's policy).
// A non-nil error means the caller should route the record to the DLQ.
func (p *Processor) Handle(ctx context.Context, env cdc.Envelope) error {
	var apply func() error
	switch env.Classify() {
	case cdc.KindHeartbeat:
		// A resolved-only message carries no row image: acknowledge it
		// without an indexer call or a DLQ publish.
		return nil
	case cdc.KindUpsert:
		apply = func() error { return p.indexer.Upsert(ctx, p.indexUID, env.After) }
	case cdc.KindDelete:
		apply = func() error { return p.indexer.Delete(ctx, p.indexUID, env.Before.ID) }
	default:
		return errors.New("CDC message has neither after nor before state")
	}

	start := p.clock()

	err := p.retry(ctx, apply)
	p.metrics.MeiliIndexingDuration(p.indexUID, p.clock().Sub(start))
	return err
}

func (p *Processor) retry(ctx context.Context, apply func() error) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 100 * time.Millisecond
	policy.Multiplier = 2
	policy.MaxInterval = 5 * time.Second
	policy.MaxElapsedTime = 0 // bounded by WithMaxRetries below, not elapsed time

	bounded := backoff.WithMaxRetries(policy, maxRetries)
	bounded = backoff.WithContext(bounded, ctx)

	var lastErr error
	attempt := 0
	err := backoff.Retry(func() error {
		attempt++
		lastErr = apply()
		if lastErr == nil {
			return nil
		}
		if !classify.Classify(lastErr).Retriable() {
			return backoff.Permanent(lastErr)
		}
		if p.metrics != nil {
			p.metrics.MeiliRetry(p.indexUID)
		}
		p.log.Warn("retrying indexing attempt",
			zap.Int("attempt", attempt), zap.Error(lastErr), zap.String("index", p.indexUID))
		return lastErr
	}, bounded)

	if err != nil {
		return lastErr
	}
	return nil
}
