// Package handler serves registered service contracts over HTTP.
//
// Requests are routed by path segments of the form
// <prefix>/<package.Service>/<Method>. One pipeline skeleton performs the
// call end-to-end: resolve service, resolve method, authorize the HTTP
// method, negotiate the encoding, decode the request body, dispatch, and
// encode the response. The skeleton is shared by two policy variants:
//
//   - HTTP, a permissive handler that answers routing and decoding
//     failures with plain-text responses and hands implementation
//     failures back to the host.
//   - Twirp, a strict handler that follows the Twirp protocol: POST only,
//     exact content types, and every failure expressed as a canonical
//     twerr error rendered as the JSON error envelope.
package handler

import (
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/mnehpets/twirpserve/contract"
	"github.com/mnehpets/twirpserve/dispatch"
	"github.com/mnehpets/twirpserve/registry"
)

// Logger is the sink used to report request decode failures. It is
// satisfied by zap's SugaredLogger Errorw method via zaplog.Adapter, or by
// any comparable structured logger.
type Logger interface {
	Error(msg string, keyvals ...any)
}

// nopLogger discards everything.
type nopLogger struct{}

func (nopLogger) Error(string, ...any) {}

// policy supplies the decision points on which the two pipeline variants
// diverge. Every method either returns nil to continue the pipeline or an
// error that short-circuits it; the owning handler decides how that error
// reaches the wire.
type policy interface {
	serviceNotFound(r *http.Request, name string) error
	methodNotFound(r *http.Request, svc *registry.Service, name string) error
	checkHTTPMethod(r *http.Request, svc *registry.Service) error
	decode(r *http.Request, body []byte, readErr error, svc *registry.Service, method *contract.Method, param any) error
	invokeError(err error) error
	respond(w http.ResponseWriter, r *http.Request, method *contract.Method, result any) error
}

// pipeline is the shared request skeleton. It holds no per-request state;
// one pipeline value serves any number of concurrent requests.
type pipeline struct {
	reg      *registry.Registry
	svcCase  bool
	methCase bool
	policy   policy
}

func (p *pipeline) run(w http.ResponseWriter, r *http.Request, serviceName, methodName string) error {
	svc := p.reg.Find(serviceName, p.svcCase)
	if svc == nil {
		return p.policy.serviceNotFound(r, serviceName)
	}
	method := svc.Descriptor().FindMethod(methodName, p.methCase)
	if method == nil {
		return p.policy.methodNotFound(r, svc, methodName)
	}
	if err := p.policy.checkHTTPMethod(r, svc); err != nil {
		return err
	}

	body, readErr := io.ReadAll(r.Body)
	param := reflect.New(method.ParamType.Elem()).Interface()
	if err := p.policy.decode(r, body, readErr, svc, method, param); err != nil {
		return err
	}

	result, err := dispatch.Invoke(r.Context(), svc, method, param)
	if err != nil {
		return p.policy.invokeError(err)
	}
	return p.policy.respond(w, r, method, result)
}

// parseRoute splits a request path into service and method names,
// expecting the form <prefix>/<service>/<method>. The prefix is normalized
// to a leading and trailing slash.
func parseRoute(path, prefix string) (service, method string, ok bool) {
	prefix = NormalizePrefix(prefix)
	if !strings.HasPrefix(path, prefix) {
		return "", "", false
	}
	rest := path[len(prefix):]
	i := strings.IndexByte(rest, '/')
	if i <= 0 || i == len(rest)-1 {
		return "", "", false
	}
	service, method = rest[:i], rest[i+1:]
	if strings.ContainsRune(method, '/') {
		return "", "", false
	}
	return service, method, true
}

// NormalizePrefix gives a routing prefix both a leading and a trailing
// slash, so "twirp", "/twirp" and "/twirp/" are equivalent.
func NormalizePrefix(prefix string) string {
	if prefix == "" {
		prefix = "twirp"
	}
	if !strings.HasPrefix(prefix, "/") {
		prefix = "/" + prefix
	}
	if !strings.HasSuffix(prefix, "/") {
		prefix = prefix + "/"
	}
	return prefix
}

// contentTypeMatches reports whether the request Content-Type header is
// exactly one of types. Matching is deliberately exact: a type with
// parameters such as "application/json; charset=utf-8" only matches when
// configured verbatim.
func contentTypeMatches(r *http.Request, types []string) bool {
	ct := r.Header.Get("Content-Type")
	for _, t := range types {
		if ct == t {
			return true
		}
	}
	return false
}

// acceptedTypes parses the Accept header into its media types, dropping
// parameters such as q-values.
func acceptedTypes(r *http.Request) []string {
	raw := r.Header.Get("Accept")
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	types := make([]string, 0, len(parts))
	for _, p := range parts {
		if i := strings.IndexByte(p, ';'); i >= 0 {
			p = p[:i]
		}
		p = strings.TrimSpace(p)
		if p != "" {
			types = append(types, p)
		}
	}
	return types
}

func acceptsAny(accepted, types []string) bool {
	for _, a := range accepted {
		for _, t := range types {
			if a == t {
				return true
			}
		}
	}
	return false
}
