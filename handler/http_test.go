package handler

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/fxamacker/cbor/v2"

	"github.com/mnehpets/twirpserve/codec/cborcodec"
)

func newHTTP(t *testing.T, impl any) (*HTTP, *captureLogger) {
	t.Helper()
	logger := &captureLogger{}
	return &HTTP{
		Registry: newSearchRegistry(t, impl),
		Codec:    cborcodec.New(),
		Logger:   logger,
	}, logger
}

func binaryBody(t *testing.T, v any) []byte {
	t.Helper()
	data, err := cbor.Marshal(v)
	if err != nil {
		t.Fatalf("cbor.Marshal: %v", err)
	}
	return data
}

func wantText(t *testing.T, rec *httptest.ResponseRecorder, status int, body string) {
	t.Helper()
	if rec.Code != status {
		t.Errorf("status = %d, want %d", rec.Code, status)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/plain; charset=utf-8" {
		t.Errorf("Content-Type = %q, want text/plain; charset=utf-8", ct)
	}
	if rec.Body.String() != body {
		t.Errorf("body = %q, want %q", rec.Body.String(), body)
	}
}

func TestHTTPServiceNotFound(t *testing.T) {
	h, _ := newHTTP(t, searchService{})
	rec := httptest.NewRecorder()
	if err := h.Handle("xxx.xx", "xxx", rec, newRequest(http.MethodPut, "/", nil, "")); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	wantText(t, rec, http.StatusNotFound, "Resource not found")
}

func TestHTTPServiceNotFoundDebug(t *testing.T) {
	h, _ := newHTTP(t, searchService{})
	h.Debug = true
	rec := httptest.NewRecorder()
	if err := h.Handle("xxx.xx", "xxx", rec, newRequest(http.MethodPut, "/", nil, "")); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "Resource not found") {
		t.Errorf("body = %q, want Resource not found", body)
	}
	if !strings.Contains(body, "Available services:") || !strings.Contains(body, "example.SearchService") {
		t.Errorf("body = %q, want listing of registered services", body)
	}
}

func TestHTTPMethodNotFound(t *testing.T) {
	h, _ := newHTTP(t, searchService{})
	rec := httptest.NewRecorder()
	if err := h.Handle("example.SearchService", "xxx", rec, newRequest(http.MethodPut, "/", nil, "")); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	wantText(t, rec, http.StatusNotFound, "Resource not found")
}

func TestHTTPMethodNotFoundDebug(t *testing.T) {
	h, _ := newHTTP(t, searchService{})
	h.Debug = true
	rec := httptest.NewRecorder()
	if err := h.Handle("example.SearchService", "xxx", rec, newRequest(http.MethodPut, "/", nil, "")); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "Service: example.SearchService") {
		t.Errorf("body = %q, want the service name", body)
	}
	if !strings.Contains(body, "Search(*handler.SearchRequest searchRequest): *handler.SearchResponse") {
		t.Errorf("body = %q, want a listing of declared methods with type names", body)
	}
}

func TestHTTPRequestMethodNotAllowed(t *testing.T) {
	h, _ := newHTTP(t, searchService{})
	rec := httptest.NewRecorder()
	if err := h.Handle("example.SearchService", "search", rec, newRequest(http.MethodGet, "/", nil, "")); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	wantText(t, rec, http.StatusMethodNotAllowed, "Method GET not allowed.")
}

func TestHTTPRequestMethodNotAllowedDebug(t *testing.T) {
	h, _ := newHTTP(t, searchService{})
	h.Debug = true
	rec := httptest.NewRecorder()
	if err := h.Handle("example.SearchService", "search", rec, newRequest(http.MethodGet, "/", nil, "")); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "Method GET not allowed.") {
		t.Errorf("body = %q, want Method GET not allowed.", body)
	}
	if !strings.Contains(body, "Service: example.SearchService") {
		t.Errorf("body = %q, want the service name", body)
	}
	if !strings.Contains(body, "Allowed request methods: PATCH, POST, PUT") {
		t.Errorf("body = %q, want the allow-list", body)
	}
}

func TestHTTPBadRequest(t *testing.T) {
	h, logger := newHTTP(t, searchService{})
	rec := httptest.NewRecorder()
	err := h.Handle("example.SearchService", "search", rec,
		newRequest(http.MethodPut, "/", []byte("garbage"), "application/protobuf"))
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	wantText(t, rec, http.StatusBadRequest, "Bad Request")
	if len(logger.entries) != 1 {
		t.Fatalf("logged %d error entries, want exactly 1", len(logger.entries))
	}
	if !strings.Contains(logger.entries[0], "Bad Request for example.SearchService/Search") {
		t.Errorf("log entry = %q", logger.entries[0])
	}
}

func TestHTTPBadRequestDebug(t *testing.T) {
	h, logger := newHTTP(t, searchService{})
	h.Debug = true
	rec := httptest.NewRecorder()
	if err := h.Handle("example.SearchService", "search", rec,
		newRequest(http.MethodPut, "/", []byte("garbage"), "application/protobuf")); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	body := rec.Body.String()
	if !strings.Contains(body, `Invalid parameter "searchRequest" for method example.SearchService/Search.`) {
		t.Errorf("body = %q, want parameter detail", body)
	}
	if len(logger.entries) != 1 {
		t.Errorf("logged %d error entries, want exactly 1", len(logger.entries))
	}
}

func TestHTTPSearch(t *testing.T) {
	h, _ := newHTTP(t, searchService{})
	rec := httptest.NewRecorder()
	body := binaryBody(t, &SearchRequest{Text: "foo"})
	if err := h.Handle("example.SearchService", "search", rec,
		newRequest(http.MethodPut, "/", body, "application/protobuf")); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/protobuf; proto=example.SearchResponse" {
		t.Errorf("Content-Type = %q, want binary type with proto parameter", ct)
	}
	var resp SearchResponse
	if err := cbor.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("response not decodable: %v", err)
	}
	if len(resp.Hits) != 3 {
		t.Errorf("len(Hits) = %d, want 3", len(resp.Hits))
	}
}

func TestHTTPResponseNegotiation(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		accept      string
		wantJSON    bool
	}{
		{"binary request, no accept", "application/protobuf", "", false},
		{"json request, no accept", "application/json", "", true},
		{"binary request, accepts json only", "application/protobuf", "application/json", true},
		{"binary request, accepts both", "application/protobuf", "application/json, application/protobuf", false},
		{"json request, accepts both", "application/json", "application/json, application/protobuf", true},
		{"binary request, accepts unrelated", "application/protobuf", "text/html", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, _ := newHTTP(t, searchService{})
			var body []byte
			if tt.contentType == "application/json" {
				body = []byte(`{"text":"foo"}`)
			} else {
				body = binaryBody(t, &SearchRequest{Text: "foo"})
			}
			req := newRequest(http.MethodPost, "/", body, tt.contentType)
			if tt.accept != "" {
				req.Header.Set("Accept", tt.accept)
			}
			rec := httptest.NewRecorder()
			if err := h.Handle("example.SearchService", "Search", rec, req); err != nil {
				t.Fatalf("Handle: %v", err)
			}
			gotJSON := rec.Header().Get("Content-Type") == "application/json"
			if gotJSON != tt.wantJSON {
				t.Errorf("json response = %v (Content-Type %q), want %v",
					gotJSON, rec.Header().Get("Content-Type"), tt.wantJSON)
			}
		})
	}
}

func TestHTTPImplementationErrorPropagates(t *testing.T) {
	h, _ := newHTTP(t, searchServiceError{})
	rec := httptest.NewRecorder()
	body := binaryBody(t, &SearchRequest{Text: "foo"})
	err := h.Handle("example.SearchService", "search", rec,
		newRequest(http.MethodPut, "/", body, "application/protobuf"))
	if err == nil {
		t.Fatal("Handle = nil, want the implementation error")
	}
	if err.Error() != "search exception" {
		t.Errorf("err = %q, want the implementation error unchanged", err)
	}
	if rec.Body.Len() != 0 {
		t.Error("Handle wrote a response body despite returning an error")
	}
}

func TestHTTPServeHTTP(t *testing.T) {
	h, _ := newHTTP(t, searchService{})
	body := binaryBody(t, &SearchRequest{Text: "foo"})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, newRequest(http.MethodPost, "/twirp/example.SearchService/Search", body, "application/protobuf"))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestHTTPServeHTTPUnroutablePath(t *testing.T) {
	h, _ := newHTTP(t, searchService{})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, newRequest(http.MethodPost, "/twirp/oops", nil, ""))
	wantText(t, rec, http.StatusNotFound, "Resource not found")
}

func TestHTTPServeHTTPImplementationError(t *testing.T) {
	h, _ := newHTTP(t, searchServiceError{})
	body := binaryBody(t, &SearchRequest{Text: "foo"})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, newRequest(http.MethodPost, "/twirp/example.SearchService/Search", body, "application/protobuf"))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "search exception") {
		t.Errorf("body = %q, want the error message", rec.Body.String())
	}
}

func TestHTTPCaseSensitiveNames(t *testing.T) {
	h, _ := newHTTP(t, searchService{})
	h.ServiceNamesCaseSensitive = true
	h.MethodNamesCaseSensitive = true

	rec := httptest.NewRecorder()
	if err := h.Handle("example.SEARCHservice", "Search", rec, newRequest(http.MethodPut, "/", nil, "")); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	wantText(t, rec, http.StatusNotFound, "Resource not found")

	rec = httptest.NewRecorder()
	if err := h.Handle("example.SearchService", "search", rec, newRequest(http.MethodPut, "/", nil, "")); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404 for case-mismatched method", rec.Code)
	}
}
