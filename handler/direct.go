package handler

import (
	"io"
	"net/http"
	"reflect"

	"github.com/mnehpets/twirpserve/codec"
	"github.com/mnehpets/twirpserve/twerr"
)

// ReadRequest decodes a Twirp request body into msg, for hand-written
// endpoints that want strict Twirp request semantics without the registry:
// POST only, Content-Type exactly application/json or exactly
// application/protobuf. msg must be a non-nil pointer to the expected
// message type; it is up to the caller to pass the right one. Failures are
// canonical *twerr.Error values.
func ReadRequest(r *http.Request, c codec.Codec, msg any) error {
	if r.Method != http.MethodPost {
		return twerr.Newf(twerr.BadRoute, "Method %s not allowed.", r.Method)
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return twerr.Wrap(twerr.Internal, "Internal request parse error.", err)
	}
	switch r.Header.Get("Content-Type") {
	case "application/json":
		if err := c.UnmarshalJSON(body, msg); err != nil {
			return twerr.Wrap(twerr.Malformed,
				"Unable to deserialize "+reflect.TypeOf(msg).String()+" from JSON format.", err)
		}
	case "application/protobuf":
		if err := c.UnmarshalBinary(body, msg); err != nil {
			return twerr.Wrap(twerr.Malformed,
				"Unable to deserialize "+reflect.TypeOf(msg).String()+" from binary format.", err)
		}
	default:
		return twerr.New(twerr.Malformed, "Missing content-type application/protobuf or application/json")
	}
	return nil
}

// WriteResponse encodes msg as a Twirp success response, mirroring the
// request's encoding: JSON for JSON requests, binary otherwise.
func WriteResponse(w http.ResponseWriter, r *http.Request, c codec.Codec, msg any) error {
	if r.Header.Get("Content-Type") == "application/json" {
		data, err := c.MarshalJSON(msg)
		if err != nil {
			return twerr.Wrap(twerr.Internal,
				"Unable to serialize "+reflect.TypeOf(msg).String()+" to JSON format.", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write(data)
		return nil
	}
	data, err := c.MarshalBinary(msg)
	if err != nil {
		return twerr.Wrap(twerr.Internal,
			"Unable to serialize "+reflect.TypeOf(msg).String()+" to binary format.", err)
	}
	w.Header().Set("Content-Type", "application/protobuf")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
	return nil
}
