package twerr

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"
	"strings"
)

// StatusError is implemented by transport-level failures that carry their
// own HTTP status code, such as errors produced by host-framework
// middleware. The translator remaps them onto canonical codes instead of
// collapsing everything to internal.
type StatusError interface {
	error
	HTTPStatus() int
}

// envelope is the wire form of a translated error.
type envelope struct {
	Msg  string            `json:"msg"`
	Code string            `json:"code"`
	Meta map[string]string `json:"meta,omitempty"`
}

// Translator converts failures surfaced at the transport boundary into the
// Twirp JSON error envelope. The zero value is usable: no request tag, no
// debug output, prefix "twirp".
type Translator struct {
	// RequestTag, when set, is consulted per request; a non-empty result
	// is attached to every envelope as meta "request_tag".
	RequestTag func(r *http.Request) string

	// Debug controls whether the failure's stack trace is attached as
	// meta "stack". Off by default; internals must not leak.
	Debug bool

	// Prefix is the routing prefix the translator is responsible for.
	// Requests outside the normalized prefix are left to other handlers.
	// Defaults to "twirp".
	Prefix string
}

// Matches reports whether the translator is responsible for the request.
// The prefix is normalized to have both a leading and a trailing slash, so
// "twirp", "/twirp" and "/twirp/" gate the same path set.
func (t *Translator) Matches(r *http.Request) bool {
	prefix := t.Prefix
	if prefix == "" {
		prefix = "twirp"
	}
	if !strings.HasPrefix(prefix, "/") {
		prefix = "/" + prefix
	}
	if !strings.HasSuffix(prefix, "/") {
		prefix = prefix + "/"
	}
	return strings.HasPrefix(r.URL.Path, prefix)
}

// WriteError translates err and writes the JSON envelope plus mapped
// status to w. Canonical errors pass their code, message and meta through
// unchanged. Errors implementing StatusError are remapped: 401 becomes
// unauthenticated, 403 becomes permission_denied, anything else internal.
// All other errors become internal with their raw message.
func (t *Translator) WriteError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		code Code
		msg  string
		meta map[string]string
	)

	var te *Error
	var se StatusError
	switch {
	case errors.As(err, &te):
		code = te.Code
		msg = te.Msg
		meta = make(map[string]string, len(te.Meta)+2)
		for k, v := range te.Meta {
			meta[k] = v
		}
	case errors.As(err, &se):
		code = Internal
		switch se.HTTPStatus() {
		case http.StatusUnauthorized:
			code = Unauthenticated
		case http.StatusForbidden:
			code = PermissionDenied
		}
		msg = se.Error()
		if msg == "" {
			msg = fmt.Sprintf("HTTP %d", se.HTTPStatus())
		}
		meta = make(map[string]string, 2)
	default:
		code = Internal
		msg = err.Error()
		meta = make(map[string]string, 2)
	}

	if t.RequestTag != nil {
		if tag := t.RequestTag(r); tag != "" {
			meta["request_tag"] = tag
		}
	}
	if t.Debug && meta["stack"] == "" {
		meta["stack"] = errStack(err)
	}
	if len(meta) == 0 {
		meta = nil
	}

	body, merr := json.Marshal(envelope{Msg: msg, Code: string(code), Meta: meta})
	if merr != nil {
		// The envelope is built from strings only; this cannot happen
		// short of memory corruption.
		http.Error(w, "internal", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(ServerHTTPStatus(code))
	w.Write(body)
}

// Middleware returns next wrapped so that panics escaping handlers under
// the translator's prefix are rendered as canonical internal envelopes.
// Requests outside the prefix pass through untouched.
func (t *Translator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !t.Matches(r) {
			next.ServeHTTP(w, r)
			return
		}
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			err, ok := rec.(error)
			if !ok {
				err = fmt.Errorf("%v", rec)
			}
			t.WriteError(w, r, &panicError{cause: err, stack: string(debug.Stack())})
		}()
		next.ServeHTTP(w, r)
	})
}

// panicError carries the stack captured at recover time through the
// translator.
type panicError struct {
	cause error
	stack string
}

func (e *panicError) Error() string {
	return e.cause.Error()
}

func (e *panicError) Unwrap() error {
	return e.cause
}

func errStack(err error) string {
	var pe *panicError
	if errors.As(err, &pe) {
		return pe.stack
	}
	// Returned errors carry no trace in Go; record the full error chain
	// instead.
	return errChain(err)
}

func errChain(err error) string {
	var b strings.Builder
	for err != nil {
		if b.Len() > 0 {
			b.WriteString("\ncaused by: ")
		}
		fmt.Fprintf(&b, "%T: %s", err, err.Error())
		err = errors.Unwrap(err)
	}
	return b.String()
}
