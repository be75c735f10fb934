package dataclient

import (
	"bytes"
	"encoding/json"

	"deltactl/internal/apperr"
)

// Payload is a JSON document returned by an endpoint. Its bytes are exactly
// what the server sent; callers get copies.
type Payload struct {
	raw []byte
}

// NewPayload wraps a copy of raw. It does not check that raw is JSON.
func NewPayload(raw []byte) *Payload {
	return &Payload{raw: bytes.Clone(raw)}
}

// Bytes returns a copy of the raw JSON.
func (p *Payload) Bytes() []byte {
	if p == nil {
		return nil
	}
	return bytes.Clone(p.raw)
}

// String returns the raw JSON as text.
func (p *Payload) String() string {
	if p == nil {
		return ""
	}
	return string(p.raw)
}

// Decode unmarshals the payload into v.
func (p *Payload) Decode(v any) error {
	if p == nil {
		return apperr.New(apperr.KindMalformedPayload, "decode payload", "empty payload")
	}
	if err := json.Unmarshal(p.raw, v); err != nil {
		return apperr.Wrap(apperr.KindMalformedPayload, "decode payload", err)
	}
	return nil
}

// Map decodes the payload as a JSON object.
func (p *Payload) Map() (map[string]any, error) {
	var m map[string]any
	if err := p.Decode(&m); err != nil {
		return nil, err
	}
	if m == nil {
		return nil, apperr.New(apperr.KindMalformedPayload, "decode payload", "payload is not a JSON object")
	}
	return m, nil
}

// MarshalJSON emits the payload unchanged.
func (p *Payload) MarshalJSON() ([]byte, error) {
	if p == nil || len(p.raw) == 0 {
		return []byte("null"), nil
	}
	return bytes.Clone(p.raw), nil
}

// Document is a user-delta document submitted with SaveUserData.
type Document map[string]any
