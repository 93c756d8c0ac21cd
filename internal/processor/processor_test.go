package processor

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ahmad-khatib0-org/chaty-backend/search-worker/internal/cdc"
	"github.com/ahmad-khatib0-org/chaty-backend/search-worker/internal/classify"
	"github.com/ahmad-khatib0-org/chaty-backend/search-worker/internal/metrics"
)

type fakeIndexer struct {
	upsertCalls int
	deleteCalls int
	failTimes   int
	err         error
}

func (f *fakeIndexer) Upsert(ctx context.Context, indexUID string, doc interface{}) error {
	f.upsertCalls++
	if f.upsertCalls <= f.failTimes {
		return f.err
	}
	return nil
}

func (f *fakeIndexer) Delete(ctx context.Context, indexUID, id string) error {
	f.deleteCalls++
	return nil
}

func TestHandleUpsert(t *testing.T) {
	idx := &fakeIndexer{}
	p := New(idx, "usernames", zap.NewNop(), metrics.Noop{})

	err := p.Handle(context.Background(), cdc.Envelope{After: &cdc.UserDocument{ID: "u1", Username: "ada"}})
	require.NoError(t, err)
	assert.Equal(t, 1, idx.upsertCalls)
}

func TestHandleDelete(t *testing.T) {
	idx := &fakeIndexer{}
	p := New(idx, "usernames", zap.NewNop(), metrics.Noop{})

	err := p.Handle(context.Background(), cdc.Envelope{Before: &cdc.UserDocument{ID: "u1"}})
	require.NoError(t, err)
	assert.Equal(t, 1, idx.deleteCalls)
}

func TestHandleHeartbeatIsAcknowledgedWithoutIndexerCall(t *testing.T) {
	idx := &fakeIndexer{}
	p := New(idx, "usernames", zap.NewNop(), metrics.Noop{})

	resolved := "1700000000000"
	err := p.Handle(context.Background(), cdc.Envelope{Resolved: &resolved})
	require.NoError(t, err)
	assert.Zero(t, idx.upsertCalls)
	assert.Zero(t, idx.deleteCalls)
}

func TestHandleInvalidEnvelope(t *testing.T) {
	p := New(&fakeIndexer{}, "usernames", zap.NewNop(), metrics.Noop{})
	err := p.Handle(context.Background(), cdc.Envelope{})
	require.Error(t, err)
}

func TestHandleRetriesTransientThenSucceeds(t *testing.T) {
	idx := &fakeIndexer{failTimes: 2, err: classify.Wrap(classify.TransientHTTP, errors.New("503"))}
	p := New(idx, "usernames", zap.NewNop(), metrics.Noop{})

	err := p.Handle(context.Background(), cdc.Envelope{After: &cdc.UserDocument{ID: "u1"}})
	require.NoError(t, err)
	assert.Equal(t, 3, idx.upsertCalls)
}

func TestHandleGivesUpAfterMaxRetries(t *testing.T) {
	idx := &fakeIndexer{failTimes: 10, err: classify.Wrap(classify.TransientHTTP, errors.New("503"))}
	p := New(idx, "usernames", zap.NewNop(), metrics.Noop{})

	err := p.Handle(context.Background(), cdc.Envelope{After: &cdc.UserDocument{ID: "u1"}})
	require.Error(t, err)
	assert.Equal(t, maxRetries+1, idx.upsertCalls)
}

func TestHandlePermanentFailureDoesNotRetry(t *testing.T) {
	idx := &fakeIndexer{failTimes: 10, err: classify.Wrap(classify.PermanentHTTP, errors.New("400"))}
	p := New(idx, "usernames", zap.NewNop(), metrics.Noop{})

	err := p.Handle(context.Background(), cdc.Envelope{After: &cdc.UserDocument{ID: "u1"}})
	require.Error(t, err)
	assert.Equal(t, 1, idx.upsertCalls)
}
