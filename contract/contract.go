// Package contract builds static service contract descriptors from declared
// Go interface types.
//
// A contract is an interface whose methods all have the shape
//
//	Method(ctx context.Context, req *Req) (*Resp, error)
//
// where Req and Resp are struct types. Describe reflects over the interface
// once, at startup, and produces an immutable Descriptor; all later routing
// and validation works against the descriptor table, never against live
// values.
package contract

import (
	"context"
	"fmt"
	"reflect"
)

var (
	ctxType = reflect.TypeOf((*context.Context)(nil)).Elem()
	errType = reflect.TypeOf((*error)(nil)).Elem()
)

// Descriptor describes one service contract: its protocol-level wire name
// and its ordered set of method descriptors. Immutable after Describe.
type Descriptor struct {
	wireName string
	iface    reflect.Type
	methods  []*Method
}

// Method describes one contract method. Immutable after Describe.
type Method struct {
	// Name is the declared Go method name, used for routing.
	Name string

	// ParamName is a diagnostics-only stand-in for the formal parameter
	// name, which Go reflection does not expose. It is derived from the
	// parameter type name.
	ParamName string

	// ParamType is the declared parameter type, a pointer to a struct.
	ParamType reflect.Type

	// ReturnType is the declared return type, a pointer to a struct.
	ReturnType reflect.Type
}

// Signature renders the method for diagnostic listings, e.g.
// "Search(*example.SearchRequest searchRequest): *example.SearchResponse".
func (m *Method) Signature() string {
	return fmt.Sprintf("%s(%s %s): %s", m.Name, m.ParamType, m.ParamName, m.ReturnType)
}

// Describe builds a Descriptor for the contract interface pointed to by
// ifacePtr, which must be a nil pointer to the interface type, e.g.
//
//	desc, err := contract.Describe("example.SearchService", (*SearchService)(nil))
//
// Describe fails if the type is not an interface, if any method does not
// have exactly one message parameter and one message return alongside the
// context and error, or if two method names collide under ASCII case
// folding. These are programmer errors and are detected eagerly so they
// cannot surface at request time.
func Describe(wireName string, ifacePtr any) (*Descriptor, error) {
	t := reflect.TypeOf(ifacePtr)
	if t == nil || t.Kind() != reflect.Pointer || t.Elem().Kind() != reflect.Interface {
		return nil, fmt.Errorf("contract %s: %T is not an interface pointer", wireName, ifacePtr)
	}
	iface := t.Elem()
	if iface.NumMethod() == 0 {
		return nil, fmt.Errorf("contract %s: interface %s declares no methods", wireName, iface)
	}

	d := &Descriptor{
		wireName: wireName,
		iface:    iface,
		methods:  make([]*Method, 0, iface.NumMethod()),
	}
	for i := 0; i < iface.NumMethod(); i++ {
		m := iface.Method(i)
		method, err := describeMethod(m)
		if err != nil {
			return nil, fmt.Errorf("contract %s: %w", wireName, err)
		}
		if prev := d.findMethod(method.Name, false); prev != nil {
			return nil, fmt.Errorf("contract %s: method name %q collides with %q under case folding", wireName, method.Name, prev.Name)
		}
		d.methods = append(d.methods, method)
	}
	return d, nil
}

// MustDescribe is like Describe but panics on error. For use in variable
// initializers of generated or hand-maintained contract declarations.
func MustDescribe(wireName string, ifacePtr any) *Descriptor {
	d, err := Describe(wireName, ifacePtr)
	if err != nil {
		panic(err)
	}
	return d
}

func describeMethod(m reflect.Method) (*Method, error) {
	ft := m.Type
	if ft.NumIn() != 2 || ft.In(0) != ctxType {
		return nil, fmt.Errorf("method %s must take exactly (context.Context, *Message)", m.Name)
	}
	if ft.NumOut() != 2 || ft.Out(1) != errType {
		return nil, fmt.Errorf("method %s must return exactly (*Message, error)", m.Name)
	}
	param := ft.In(1)
	if !isMessageType(param) {
		return nil, fmt.Errorf("method %s: parameter type %s is not a pointer to a struct", m.Name, param)
	}
	ret := ft.Out(0)
	if !isMessageType(ret) {
		return nil, fmt.Errorf("method %s: return type %s is not a pointer to a struct", m.Name, ret)
	}
	return &Method{
		Name:       m.Name,
		ParamName:  paramName(param),
		ParamType:  param,
		ReturnType: ret,
	}, nil
}

func isMessageType(t reflect.Type) bool {
	return t.Kind() == reflect.Pointer && t.Elem().Kind() == reflect.Struct
}

func paramName(t reflect.Type) string {
	name := t.Elem().Name()
	if name == "" {
		return "param"
	}
	b := []byte(name)
	if b[0] >= 'A' && b[0] <= 'Z' {
		b[0] += 'a' - 'A'
	}
	return string(b)
}

// WireName returns the protocol-level service name used for routing and in
// error messages, e.g. "example.SearchService".
func (d *Descriptor) WireName() string {
	return d.wireName
}

// Interface returns the declared contract interface type.
func (d *Descriptor) Interface() reflect.Type {
	return d.iface
}

// Methods returns the method descriptors in declaration order. The returned
// slice must not be modified.
func (d *Descriptor) Methods() []*Method {
	return d.methods
}

// FindMethod looks up a method by name. When caseSensitive is false the
// comparison folds ASCII letters only. Returns nil if no method matches.
func (d *Descriptor) FindMethod(name string, caseSensitive bool) *Method {
	return d.findMethod(name, caseSensitive)
}

func (d *Descriptor) findMethod(name string, caseSensitive bool) *Method {
	for _, m := range d.methods {
		if caseSensitive {
			if m.Name == name {
				return m
			}
		} else if EqualFold(m.Name, name) {
			return m
		}
	}
	return nil
}

// ValidateImplementation checks that impl structurally satisfies the
// contract interface. It does not need to be called before registering an
// implementation, but the registry's ValidateAll uses it to fail early on
// wiring mistakes.
func (d *Descriptor) ValidateImplementation(impl any) error {
	t := reflect.TypeOf(impl)
	if t == nil || !t.Implements(d.iface) {
		return fmt.Errorf("service implementation %T does not implement %s (contract %s)", impl, d.iface, d.wireName)
	}
	return nil
}

// EqualFold reports whether s and t are equal under ASCII case folding
// only. Unlike strings.EqualFold it never applies Unicode folding; wire
// names and method names are ASCII identifiers.
func EqualFold(s, t string) bool {
	if len(s) != len(t) {
		return false
	}
	for i := 0; i < len(s); i++ {
		a, b := s[i], t[i]
		if a >= 'A' && a <= 'Z' {
			a += 'a' - 'A'
		}
		if b >= 'A' && b <= 'Z' {
			b += 'a' - 'A'
		}
		if a != b {
			return false
		}
	}
	return true
}
