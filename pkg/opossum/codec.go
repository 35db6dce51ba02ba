package opossum

import (
	"bytes"
	"encoding/json"
)

// Codec is the user-supplied encode/decode strategy for event payloads. The
// store is generic over it rather than reflecting on payload shapes.
//
// Payloads that round-trip through Encode/Decode are opaque []byte to the
// store itself. Store never inspects payload contents, only type names and
// tags.
type Codec interface {
	// Encode validates that v is well-formed for storage. The JSON codec
	// requires v to already be valid JSON bytes (self-describing, with
	// whatever type-discriminator field the caller's domain event envelope
	// uses) and re-encodes it minified.
	Encode(v []byte) ([]byte, error)
	// Decode validates stored bytes before they are handed back to a
	// reader.
	Decode(v []byte) ([]byte, error)
}

// JSONCodec is the default Codec: payloads are caller-supplied JSON bytes,
// carried through minified (no pretty-printing). It relies on the caller's
// payload already embedding a type-discriminator field; the store does not
// add one.
type JSONCodec struct{}

// Encode re-serializes v in minified form, validating it is well-formed
// JSON along the way.
func (JSONCodec) Encode(v []byte) ([]byte, error) {
	if !json.Valid(v) {
		return nil, &StoreError{Kind: InvalidArgument, Op: "encode", Err: errInvalidJSONPayload}
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, v); err != nil {
		return nil, &StoreError{Kind: InvalidArgument, Op: "encode", Err: err}
	}
	return buf.Bytes(), nil
}

// Decode validates that v is well-formed JSON and returns it unchanged.
func (JSONCodec) Decode(v []byte) ([]byte, error) {
	if !json.Valid(v) {
		return nil, &StoreError{Kind: CorruptedPayload, Op: "decode", Err: errInvalidJSONPayload}
	}
	return v, nil
}
