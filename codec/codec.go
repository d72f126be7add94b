// Package codec defines the message codec consumed by the RPC pipeline.
//
// A Codec translates request and response messages between their in-memory
// representation and the two wire encodings every Twirp endpoint speaks: a
// compact binary form and a JSON form. The pipeline never encodes or decodes
// messages itself; it constructs a zero value of the declared message type
// and hands it to the codec together with the raw request body.
//
// Two implementations ship with this module:
//   - protocodec: protobuf wire format and protojson, for services whose
//     messages are generated protobuf types.
//   - cborcodec: CBOR and encoding/json, for services whose messages are
//     plain Go structs.
package codec

// Codec encodes and decodes RPC messages.
//
// Unmarshal methods decode into v, which is always a non-nil pointer to a
// zero value of the declared message type. Decode failures are returned
// unwrapped; the pipeline classifies them.
type Codec interface {
	MarshalBinary(v any) ([]byte, error)
	UnmarshalBinary(data []byte, v any) error

	MarshalJSON(v any) ([]byte, error)
	UnmarshalJSON(data []byte, v any) error

	// WireName reports the protocol-level name of the message type of v,
	// e.g. "example.SearchResponse". Used for the proto= content-type
	// parameter on binary responses.
	WireName(v any) string
}
