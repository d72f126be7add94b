// Package registry maps contract wire names to bound service
// implementations.
//
// A Registry is populated once during startup wiring and treated as
// immutable afterwards; concurrent reads from request handlers need no
// locking provided Register is not called after traffic begins.
package registry

import (
	"fmt"

	"github.com/mnehpets/twirpserve/contract"
)

// Service is one registered (contract, implementation) pair. The registry
// owns the mapping; the implementation is an opaque handle supplied by the
// caller.
type Service struct {
	desc *contract.Descriptor
	impl any
}

// Descriptor returns the contract descriptor of the service.
func (s *Service) Descriptor() *contract.Descriptor {
	return s.desc
}

// Impl returns the bound implementation handle.
func (s *Service) Impl() any {
	return s.impl
}

// AlreadyRegisteredError reports an attempt to register the same contract
// wire name twice. Re-registration is a wiring bug, never a silent
// overwrite.
type AlreadyRegisteredError struct {
	WireName string
}

func (e *AlreadyRegisteredError) Error() string {
	return fmt.Sprintf("registry: service %s already registered", e.WireName)
}

// InvalidImplementationError reports a ValidateAll failure, naming the
// offending contract.
type InvalidImplementationError struct {
	WireName string
	Cause    error
}

func (e *InvalidImplementationError) Error() string {
	return fmt.Sprintf("registry: invalid implementation for %s: %v", e.WireName, e.Cause)
}

func (e *InvalidImplementationError) Unwrap() error {
	return e.Cause
}

// Registry holds registered services in insertion order.
type Registry struct {
	services []*Service
}

func New() *Registry {
	return &Registry{}
}

// Register binds impl to the contract described by desc. It checks identity
// uniqueness only; structural conformance is deferred to ValidateAll so
// that registration order does not matter and partial registries can still
// be listed for diagnostics.
func (r *Registry) Register(desc *contract.Descriptor, impl any) error {
	if existing := r.Find(desc.WireName(), false); existing != nil {
		return &AlreadyRegisteredError{WireName: desc.WireName()}
	}
	r.services = append(r.services, &Service{desc: desc, impl: impl})
	return nil
}

// MustRegister is like Register but panics on error. For use in startup
// wiring where a duplicate registration must abort the process.
func (r *Registry) MustRegister(desc *contract.Descriptor, impl any) {
	if err := r.Register(desc, impl); err != nil {
		panic(err)
	}
}

// ValidateAll checks every registered implementation against its contract,
// in registration order, and returns an InvalidImplementationError for the
// first violation found.
func (r *Registry) ValidateAll() error {
	for _, s := range r.services {
		if err := s.desc.ValidateImplementation(s.impl); err != nil {
			return &InvalidImplementationError{WireName: s.desc.WireName(), Cause: err}
		}
	}
	return nil
}

// Find looks up a service by wire name. When caseSensitive is false the
// comparison folds ASCII letters only. Returns nil if no service matches.
func (r *Registry) Find(wireName string, caseSensitive bool) *Service {
	for _, s := range r.services {
		if caseSensitive {
			if s.desc.WireName() == wireName {
				return s
			}
		} else if contract.EqualFold(s.desc.WireName(), wireName) {
			return s
		}
	}
	return nil
}

// All returns the registered services in registration order. Used for
// diagnostic listings only. The returned slice must not be modified.
func (r *Registry) All() []*Service {
	return r.services
}
