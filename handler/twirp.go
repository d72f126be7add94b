package handler

import (
	"net/http"

	"github.com/mnehpets/twirpserve/codec"
	"github.com/mnehpets/twirpserve/contract"
	"github.com/mnehpets/twirpserve/registry"
	"github.com/mnehpets/twirpserve/twerr"
)

// Twirp is the strict pipeline variant, following the Twirp protocol:
// only POST is ever allowed, the request Content-Type must be exactly the
// binary or exactly the JSON wire type (no Accept-based negotiation), and
// every failure is a canonical twerr error rendered as the JSON error
// envelope. Service and method lookup is always ASCII case-insensitive.
//
// Fields must not be modified once the handler is serving.
type Twirp struct {
	Registry *registry.Registry
	Codec    codec.Codec

	// Prefix is the routing prefix ServeHTTP strips before resolving
	// <service>/<method>. Defaults to "twirp".
	Prefix string

	// JSONContentType and BinaryContentType are the exact wire types.
	// Defaults: "application/json" and "application/protobuf".
	JSONContentType   string
	BinaryContentType string

	// Translator writes error envelopes for ServeHTTP. nil means a zero
	// translator sharing Prefix: no request tag, no debug output.
	Translator *twerr.Translator
}

// Handle runs one call against the named service and method. On success
// the response has been written to w and Handle returns nil. On failure
// nothing has been written and the returned error is a canonical
// *twerr.Error for the translator to render.
func (h *Twirp) Handle(serviceName, methodName string, w http.ResponseWriter, r *http.Request) error {
	p := &pipeline{
		reg:    h.Registry,
		policy: (*twirpPolicy)(h),
	}
	return p.run(w, r, serviceName, methodName)
}

// ServeHTTP resolves the service and method from the request path under
// Prefix, delegates to Handle, and renders any failure through the
// translator.
func (h *Twirp) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	serviceName, methodName, ok := parseRoute(r.URL.Path, h.Prefix)
	if !ok {
		h.translator().WriteError(w, r, twerr.Newf(twerr.BadRoute, "No service route for path %q.", r.URL.Path))
		return
	}
	if err := h.Handle(serviceName, methodName, w, r); err != nil {
		h.translator().WriteError(w, r, err)
	}
}

func (h *Twirp) translator() *twerr.Translator {
	if h.Translator != nil {
		return h.Translator
	}
	return &twerr.Translator{Prefix: h.Prefix}
}

func (h *Twirp) jsonType() string {
	if h.JSONContentType != "" {
		return h.JSONContentType
	}
	return "application/json"
}

func (h *Twirp) binaryType() string {
	if h.BinaryContentType != "" {
		return h.BinaryContentType
	}
	return "application/protobuf"
}

// twirpPolicy adapts *Twirp to the pipeline policy.
type twirpPolicy Twirp

func (p *twirpPolicy) h() *Twirp { return (*Twirp)(p) }

func (p *twirpPolicy) serviceNotFound(r *http.Request, name string) error {
	return twerr.New(twerr.BadRoute, "Service is unknown.")
}

func (p *twirpPolicy) methodNotFound(r *http.Request, svc *registry.Service, name string) error {
	return twerr.Newf(twerr.BadRoute, "Method %q is unknown for service %s.", name, svc.Descriptor().WireName())
}

func (p *twirpPolicy) checkHTTPMethod(r *http.Request, svc *registry.Service) error {
	if r.Method != http.MethodPost {
		return twerr.Newf(twerr.BadRoute, "Method %s not allowed.", r.Method)
	}
	return nil
}

func (p *twirpPolicy) decode(r *http.Request, body []byte, readErr error, svc *registry.Service, method *contract.Method, param any) error {
	h := p.h()
	if readErr != nil {
		return twerr.Wrap(twerr.Internal, "Internal request parse error.", readErr)
	}
	switch r.Header.Get("Content-Type") {
	case h.jsonType():
		if err := h.Codec.UnmarshalJSON(body, param); err != nil {
			return twerr.Wrap(twerr.Malformed,
				"Unable to deserialize "+method.ParamType.String()+" from JSON format.", err)
		}
	case h.binaryType():
		if err := h.Codec.UnmarshalBinary(body, param); err != nil {
			return twerr.Wrap(twerr.Malformed,
				"Unable to deserialize "+method.ParamType.String()+" from binary format.", err)
		}
	default:
		return twerr.New(twerr.Malformed,
			"Missing content-type "+h.binaryType()+" or "+h.jsonType())
	}
	return nil
}

func (p *twirpPolicy) invokeError(err error) error {
	// Canonical errors raised by the implementation pass through with
	// their classification intact; everything else is an internal fault.
	return twerr.Wrap(twerr.Internal, "Internal service error", err)
}

func (p *twirpPolicy) respond(w http.ResponseWriter, r *http.Request, method *contract.Method, result any) error {
	h := p.h()
	if r.Header.Get("Content-Type") == h.jsonType() {
		data, err := h.Codec.MarshalJSON(result)
		if err != nil {
			return twerr.Wrap(twerr.Internal,
				"Unable to serialize "+method.ReturnType.String()+" to JSON format.", err)
		}
		w.Header().Set("Content-Type", h.jsonType())
		w.WriteHeader(http.StatusOK)
		w.Write(data)
		return nil
	}
	data, err := h.Codec.MarshalBinary(result)
	if err != nil {
		return twerr.Wrap(twerr.Internal,
			"Unable to serialize "+method.ReturnType.String()+" to binary format.", err)
	}
	w.Header().Set("Content-Type", h.binaryType())
	w.WriteHeader(http.StatusOK)
	w.Write(data)
	return nil
}
