// Package cdc defines the wire shape of a change-data-capture event
// consumed from the users-changes topic, ported from the original
// service's UserCDCMessage/UserDocument models.
package cdc

import "encoding/json"

// UserDocument is the row image indexed into the search engine.
type UserDocument struct {
	ID                    string `json:"id"`
	Username              string `json:"username"`
	DisplayName           string `json:"display_name,omitempty"`
	ProfileBackgroundID   string `json:"profile_background_id,omitempty"`
}

// Envelope is a single CDC change event. A Resolved-only message is a
// heartbeat carrying no row image; otherwise exactly one of After/Before is
// expected to be set in a well-formed message: After-only is a create or
// update (upsert), Before-only (After nil) is a delete, both nil is
// malformed.
type Envelope struct {
	Key      []json.RawMessage `json:"key"`
	After    *UserDocument     `json:"after"`
	Before   *UserDocument     `json:"before"`
	Resolved *string           `json:"resolved,omitempty"`
}

// Kind classifies an Envelope for the message processor.
type Kind int

const (
	// KindUpsert means After is set: create or update.
	KindUpsert Kind = iota
	// KindDelete means only Before is set.
	KindDelete
	// KindHeartbeat means Resolved is set and carries no row image: the
	// message is acknowledged without an indexer call or a DLQ publish.
	KindHeartbeat
	// KindInvalid means neither Resolved, After, nor Before is set.
	KindInvalid
)

// Classify reports which case of the Resolved/After/Before triple this
// envelope is. Resolved is checked first: a heartbeat carries a resolved
// timestamp and no row image, so it must not fall through to KindInvalid.
func (e Envelope) Classify() Kind {
	switch {
	case e.Resolved != nil:
		return KindHeartbeat
	case e.After != nil:
		return KindUpsert
	case e.Before != nil:
		return KindDelete
	default:
		return KindInvalid
	}
}

// Decode parses a raw Kafka record value into an Envelope.
func Decode(raw []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Envelope{}, err
	}
	return env, nil
}
