package bot

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMalformedEnvelope marks a callback payload that is not parseable or
// carries none of the known tags.
var ErrMalformedEnvelope = errors.New("malformed envelope")

// EnvelopeKind tags the three envelope variants.
type EnvelopeKind int

const (
	EnvelopeAcceptMovie EnvelopeKind = iota + 1
	EnvelopeAcceptSeries
	EnvelopeAdvance
)

// Envelope is the compact payload round-tripped through the callback-data
// channel: either "accept this candidate" (movie or series id) or "advance
// paging to this index". Exactly one tag is set.
type Envelope struct {
	kind EnvelopeKind
	id   string
	idx  int
}

// AcceptMovie builds an accept envelope for a movie candidate.
func AcceptMovie(movieID string) Envelope {
	return Envelope{kind: EnvelopeAcceptMovie, id: movieID}
}

// AcceptSeries builds an accept envelope for a series candidate.
func AcceptSeries(serieID string) Envelope {
	return Envelope{kind: EnvelopeAcceptSeries, id: serieID}
}

// Advance builds a paging envelope for the given store index.
func Advance(idx int) Envelope {
	return Envelope{kind: EnvelopeAdvance, idx: idx}
}

// Kind returns the variant tag.
func (e Envelope) Kind() EnvelopeKind { return e.kind }

// ID returns the candidate id of an accept envelope.
func (e Envelope) ID() string { return e.id }

// Idx returns the store index of an advance envelope.
func (e Envelope) Idx() int { return e.idx }

// envelopeWire is the JSON shape on the wire. Pointer fields distinguish an
// absent tag from a zero value.
type envelopeWire struct {
	MovieID *string `json:"movieId,omitempty"`
	SerieID *string `json:"serieId,omitempty"`
	Idx     *int    `json:"idx,omitempty"`
}

// Encode serializes the envelope. The result must stay within the
// transport's 64-byte callback-data limit; with numeric ids it always does.
func (e Envelope) Encode() (string, error) {
	var wire envelopeWire
	switch e.kind {
	case EnvelopeAcceptMovie:
		wire.MovieID = &e.id
	case EnvelopeAcceptSeries:
		wire.SerieID = &e.id
	case EnvelopeAdvance:
		wire.Idx = &e.idx
	default:
		return "", fmt.Errorf("%w: no variant set", ErrMalformedEnvelope)
	}

	data, err := json.Marshal(wire)
	if err != nil {
		return "", fmt.Errorf("failed to encode envelope: %w", err)
	}
	return string(data), nil
}

// Decode parses a callback payload. Tag precedence is movieId, then serieId,
// then idx; a payload with none of the three is malformed.
func Decode(payload string) (Envelope, error) {
	var wire envelopeWire
	if err := json.Unmarshal([]byte(payload), &wire); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}

	switch {
	case wire.MovieID != nil:
		return AcceptMovie(*wire.MovieID), nil
	case wire.SerieID != nil:
		return AcceptSeries(*wire.SerieID), nil
	case wire.Idx != nil:
		return Advance(*wire.Idx), nil
	default:
		return Envelope{}, fmt.Errorf("%w: no known tag present", ErrMalformedEnvelope)
	}
}
