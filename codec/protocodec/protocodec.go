// Package protocodec implements codec.Codec for protobuf message types,
// using the protobuf wire format as the binary encoding and protojson for
// the JSON encoding.
package protocodec

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
)

// Codec is a codec.Codec over proto and protojson. The zero value is ready
// to use. All message values must implement proto.Message.
type Codec struct{}

func New() *Codec {
	return &Codec{}
}

func message(v any) (proto.Message, error) {
	m, ok := v.(proto.Message)
	if !ok {
		return nil, fmt.Errorf("protocodec: %T does not implement proto.Message", v)
	}
	return m, nil
}

func (*Codec) MarshalBinary(v any) ([]byte, error) {
	m, err := message(v)
	if err != nil {
		return nil, err
	}
	return proto.Marshal(m)
}

func (*Codec) UnmarshalBinary(data []byte, v any) error {
	m, err := message(v)
	if err != nil {
		return err
	}
	return proto.Unmarshal(data, m)
}

func (*Codec) MarshalJSON(v any) ([]byte, error) {
	m, err := message(v)
	if err != nil {
		return nil, err
	}
	return protojson.Marshal(m)
}

func (*Codec) UnmarshalJSON(data []byte, v any) error {
	m, err := message(v)
	if err != nil {
		return err
	}
	return protojson.Unmarshal(data, m)
}

func (*Codec) WireName(v any) string {
	m, ok := v.(proto.Message)
	if !ok {
		return ""
	}
	return string(proto.MessageName(m))
}
