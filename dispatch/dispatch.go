// Package dispatch performs the validated invocation of a resolved service
// method.
//
// Invoke is deliberately policy-free: failures raised by the implementation
// itself are passed through unchanged, because the generic HTTP handler and
// the strict Twirp handler classify them differently. Only contract
// violations (wrong parameter type, missing method, bad result) are
// reported by this package, as *UnexpectedValueError or *LogicError. Those
// signal a deployment bug, not a client error.
package dispatch

import (
	"context"
	"fmt"
	"reflect"

	"github.com/mnehpets/twirpserve/contract"
	"github.com/mnehpets/twirpserve/registry"
)

// UnexpectedValueError reports a value that violates the contract at call
// time: a parameter whose runtime type does not match the declared
// parameter type, or an implementation result that is nil or of the wrong
// type.
type UnexpectedValueError struct {
	Message string
}

func (e *UnexpectedValueError) Error() string {
	return e.Message
}

// LogicError reports an implementation object that does not expose the
// resolved method with the declared signature. This cannot happen after
// Registry.ValidateAll, but implementations may be registered without
// validation, so it is re-checked on every call.
type LogicError struct {
	Message string
}

func (e *LogicError) Error() string {
	return e.Message
}

var ctxType = reflect.TypeOf((*context.Context)(nil)).Elem()

// Invoke calls method on the service implementation with param and returns
// the result.
//
// The parameter must match the declared parameter type exactly, and the
// result must be non-nil and match the declared return type exactly.
// Invocation is at-most-once: Invoke never retries, since the call is
// assumed to have side effects.
func Invoke(ctx context.Context, svc *registry.Service, method *contract.Method, param any) (any, error) {
	pt := reflect.TypeOf(param)
	if pt != method.ParamType {
		return nil, &UnexpectedValueError{
			Message: fmt.Sprintf("Expected parameter to be a %s. Got a %s instead.", method.ParamType, pt),
		}
	}

	impl := svc.Impl()
	fn := reflect.ValueOf(impl).MethodByName(method.Name)
	if !fn.IsValid() {
		return nil, &LogicError{
			Message: fmt.Sprintf("Method %q of service %T is unknown.", method.Name, impl),
		}
	}
	ft := fn.Type()
	if ft.NumIn() != 2 || ft.In(0) != ctxType || ft.In(1) != method.ParamType ||
		ft.NumOut() != 2 || ft.Out(0) != method.ReturnType {
		return nil, &LogicError{
			Message: fmt.Sprintf("Method %T.%s has signature %s, want func(context.Context, %s) (%s, error).",
				impl, method.Name, ft, method.ParamType, method.ReturnType),
		}
	}

	out := fn.Call([]reflect.Value{reflect.ValueOf(ctx), reflect.ValueOf(param)})
	if errv := out[1]; !errv.IsNil() {
		// Implementation failure, classified by the pipeline.
		return nil, errv.Interface().(error)
	}

	res := out[0]
	if res.IsNil() {
		return nil, &UnexpectedValueError{
			Message: fmt.Sprintf("Faulty service implementation. Expected return value of %T.%s() to be a %s. Got NULL instead.",
				impl, method.Name, method.ReturnType),
		}
	}
	if res.Type() != method.ReturnType {
		return nil, &UnexpectedValueError{
			Message: fmt.Sprintf("Faulty service implementation. Expected return value of %T.%s() to be a %s. Got a %s instead.",
				impl, method.Name, method.ReturnType, res.Type()),
		}
	}
	return res.Interface(), nil
}
