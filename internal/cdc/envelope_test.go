package cdc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeUpsert(t *testing.T) {
	raw := []byte(`{"key":[{"type":"string","value":"u1"}],"after":{"id":"u1","username":"ada"},"before":null}`)
	env, err := Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, KindUpsert, env.Classify())
	assert.Equal(t, "ada", env.After.Username)
}

func TestDecodeDelete(t *testing.T) {
	raw := []byte(`{"key":[],"after":null,"before":{"id":"u1","username":"ada"}}`)
	env, err := Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, KindDelete, env.Classify())
}

func TestClassifyInvalid(t *testing.T) {
	var env Envelope
	assert.Equal(t, KindInvalid, env.Classify())
}

func TestDecodeHeartbeat(t *testing.T) {
	raw := []byte(`{"key":[],"after":null,"before":null,"resolved":"1700000000000"}`)
	env, err := Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, KindHeartbeat, env.Classify())
}

func TestClassifyResolvedTakesPriorityOverRowImages(t *testing.T) {
	resolved := "1700000000000"
	env := Envelope{Resolved: &resolved, After: &UserDocument{ID: "u1"}}
	assert.Equal(t, KindHeartbeat, env.Classify())
}
