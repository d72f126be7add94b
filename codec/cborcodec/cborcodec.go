// Package cborcodec implements codec.Codec for plain Go struct messages,
// using CBOR as the compact binary encoding and encoding/json for the JSON
// encoding.
package cborcodec

import (
	"encoding/json"
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

// WireNamer is implemented by message types that declare their own
// protocol-level name. Types that do not implement it fall back to
// "<package>.<TypeName>" derived from reflection.
type WireNamer interface {
	WireName() string
}

// Codec is a codec.Codec over CBOR and JSON. The zero value is ready to use.
type Codec struct{}

func New() *Codec {
	return &Codec{}
}

func (*Codec) MarshalBinary(v any) ([]byte, error) {
	return cbor.Marshal(v)
}

func (*Codec) UnmarshalBinary(data []byte, v any) error {
	return cbor.Unmarshal(data, v)
}

func (*Codec) MarshalJSON(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (*Codec) UnmarshalJSON(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

func (*Codec) WireName(v any) string {
	if n, ok := v.(WireNamer); ok {
		return n.WireName()
	}
	t := reflect.TypeOf(v)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil {
		return ""
	}
	if t.PkgPath() == "" {
		return t.Name()
	}
	// Last path element of the package, matching how protobuf packages
	// commonly map to Go packages.
	pkg := t.PkgPath()
	for i := len(pkg) - 1; i >= 0; i-- {
		if pkg[i] == '/' {
			pkg = pkg[i+1:]
			break
		}
	}
	return pkg + "." + t.Name()
}
