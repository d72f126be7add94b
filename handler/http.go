package handler

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/mnehpets/twirpserve/codec"
	"github.com/mnehpets/twirpserve/contract"
	"github.com/mnehpets/twirpserve/registry"
)

// HTTP is the permissive pipeline variant. Routing failures, disallowed
// request methods and undecodable bodies are answered directly with
// plain-text responses; failures raised by service implementations are
// returned to the host (via Handle) or passed to ErrorHandler (via
// ServeHTTP) instead of being classified here.
//
// The zero value of every optional field selects the documented default.
// Fields must not be modified once the handler is serving.
type HTTP struct {
	Registry *registry.Registry
	Codec    codec.Codec

	// Logger receives one error entry per request decode failure. nil
	// discards them.
	Logger Logger

	// Debug leaks internals into responses: available-service listings,
	// method signatures, allow-lists, decode error detail. Off by
	// default.
	Debug bool

	// Prefix is the routing prefix ServeHTTP strips before resolving
	// <service>/<method>. Defaults to "twirp".
	Prefix string

	// Name lookup is ASCII case-insensitive unless configured otherwise.
	ServiceNamesCaseSensitive bool
	MethodNamesCaseSensitive  bool

	// AllowedMethods is the inbound HTTP method allow-list. Defaults to
	// PATCH, POST and PUT.
	AllowedMethods []string

	// JSONContentTypes and BinaryContentTypes select the request decoder
	// (by Content-Type) and the response encoder (by negotiation). The
	// first element of each is used on responses. Defaults:
	// {"application/json"} and {"application/protobuf"}.
	JSONContentTypes   []string
	BinaryContentTypes []string

	// ErrorHandler receives failures that this variant deliberately does
	// not classify: errors raised by service implementations, contract
	// violations detected during dispatch, and response encoding
	// failures. nil means a plain 500 carrying the error message.
	ErrorHandler func(w http.ResponseWriter, r *http.Request, err error)
}

// Handle runs one call against the named service and method. Short-circuit
// responses (404, 405, 400) are written to w and reported as nil; any
// returned error has not written to w and is the host's responsibility.
func (h *HTTP) Handle(serviceName, methodName string, w http.ResponseWriter, r *http.Request) error {
	p := &pipeline{
		reg:      h.Registry,
		svcCase:  h.ServiceNamesCaseSensitive,
		methCase: h.MethodNamesCaseSensitive,
		policy:   (*httpPolicy)(h),
	}
	err := p.run(w, r, serviceName, methodName)
	var tr *textResponse
	if errors.As(err, &tr) {
		tr.write(w)
		return nil
	}
	return err
}

// ServeHTTP resolves the service and method from the request path under
// Prefix and delegates to Handle. Paths that do not parse yield a plain
// 404.
func (h *HTTP) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	serviceName, methodName, ok := parseRoute(r.URL.Path, h.Prefix)
	if !ok {
		(&textResponse{status: http.StatusNotFound, body: "Resource not found"}).write(w)
		return
	}
	if err := h.Handle(serviceName, methodName, w, r); err != nil {
		if h.ErrorHandler != nil {
			h.ErrorHandler(w, r, err)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (h *HTTP) allowedMethods() []string {
	if len(h.AllowedMethods) > 0 {
		return h.AllowedMethods
	}
	return []string{http.MethodPatch, http.MethodPost, http.MethodPut}
}

func (h *HTTP) jsonTypes() []string {
	if len(h.JSONContentTypes) > 0 {
		return h.JSONContentTypes
	}
	return []string{"application/json"}
}

func (h *HTTP) binaryTypes() []string {
	if len(h.BinaryContentTypes) > 0 {
		return h.BinaryContentTypes
	}
	return []string{"application/protobuf"}
}

func (h *HTTP) logger() Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return nopLogger{}
}

// textResponse is a short-circuit plain-text response carried through the
// pipeline as an error value.
type textResponse struct {
	status int
	body   string
}

func (t *textResponse) Error() string {
	return t.body
}

func (t *textResponse) write(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(t.status)
	io.WriteString(w, t.body)
}

// httpPolicy adapts *HTTP to the pipeline policy.
type httpPolicy HTTP

func (p *httpPolicy) h() *HTTP { return (*HTTP)(p) }

func (p *httpPolicy) serviceNotFound(r *http.Request, name string) error {
	h := p.h()
	body := "Resource not found"
	if h.Debug {
		var b strings.Builder
		b.WriteString(body)
		b.WriteString("\n\nAvailable services: \n")
		for _, svc := range h.Registry.All() {
			fmt.Fprintf(&b, "   %s\n", svc.Descriptor().WireName())
		}
		body = b.String()
	}
	return &textResponse{status: http.StatusNotFound, body: body}
}

func (p *httpPolicy) methodNotFound(r *http.Request, svc *registry.Service, name string) error {
	h := p.h()
	body := "Resource not found"
	if h.Debug {
		var b strings.Builder
		b.WriteString(body)
		fmt.Fprintf(&b, "\n\nService: %s", svc.Descriptor().WireName())
		b.WriteString("\n\nAvailable methods: \n")
		for _, m := range svc.Descriptor().Methods() {
			fmt.Fprintf(&b, "   %s\n", m.Signature())
		}
		body = b.String()
	}
	return &textResponse{status: http.StatusNotFound, body: body}
}

func (p *httpPolicy) checkHTTPMethod(r *http.Request, svc *registry.Service) error {
	h := p.h()
	allowed := h.allowedMethods()
	for _, m := range allowed {
		if r.Method == m {
			return nil
		}
	}
	body := fmt.Sprintf("Method %s not allowed.", r.Method)
	if h.Debug {
		var b strings.Builder
		b.WriteString(body)
		fmt.Fprintf(&b, "\n\nService: %s", svc.Descriptor().WireName())
		fmt.Fprintf(&b, "\n\nAllowed request methods: %s", strings.Join(allowed, ", "))
		body = b.String()
	}
	return &textResponse{status: http.StatusMethodNotAllowed, body: body}
}

func (p *httpPolicy) decode(r *http.Request, body []byte, readErr error, svc *registry.Service, method *contract.Method, param any) error {
	h := p.h()
	derr := readErr
	if derr == nil {
		if contentTypeMatches(r, h.jsonTypes()) {
			derr = h.Codec.UnmarshalJSON(body, param)
		} else {
			derr = h.Codec.UnmarshalBinary(body, param)
		}
	}
	if derr == nil {
		return nil
	}

	route := svc.Descriptor().WireName() + "/" + method.Name
	h.logger().Error("Bad Request for "+route,
		"parameterName", method.ParamName,
		"parameterType", method.ParamType.String(),
		"error", derr.Error(),
	)

	text := "Bad Request"
	if h.Debug {
		text += fmt.Sprintf("\n\nInvalid parameter %q for method %s.", method.ParamName, route)
		text += "\n\n" + derr.Error()
	}
	return &textResponse{status: http.StatusBadRequest, body: text}
}

func (p *httpPolicy) invokeError(err error) error {
	// Deliberately unclassified: the host framework owns the policy for
	// implementation failures in this variant.
	return err
}

func (p *httpPolicy) respond(w http.ResponseWriter, r *http.Request, method *contract.Method, result any) error {
	h := p.h()
	if p.shouldRespondJSON(r) {
		data, err := h.Codec.MarshalJSON(result)
		if err != nil {
			return err
		}
		w.Header().Set("Content-Type", h.jsonTypes()[0])
		w.WriteHeader(http.StatusOK)
		_, err = w.Write(data)
		return err
	}
	data, err := h.Codec.MarshalBinary(result)
	if err != nil {
		return err
	}
	w.Header().Set("Content-Type", h.binaryTypes()[0]+"; proto="+h.Codec.WireName(result))
	w.WriteHeader(http.StatusOK)
	_, err = w.Write(data)
	return err
}

// shouldRespondJSON performs content negotiation. If the client accepts
// both a JSON and a binary content type the response mirrors the request's
// own encoding; if it accepts JSON only, the response is JSON; otherwise
// the request's encoding is mirrored.
func (p *httpPolicy) shouldRespondJSON(r *http.Request) bool {
	h := p.h()
	accepted := acceptedTypes(r)
	acceptsJSON := acceptsAny(accepted, h.jsonTypes())
	acceptsBinary := acceptsAny(accepted, h.binaryTypes())
	if acceptsJSON && !acceptsBinary {
		return true
	}
	return contentTypeMatches(r, h.jsonTypes())
}
