package handler

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mnehpets/twirpserve/contract"
	"github.com/mnehpets/twirpserve/registry"
	"github.com/mnehpets/twirpserve/twerr"
)

func newRequest(method, path string, body []byte, contentType string) *http.Request {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	return req
}

type SearchRequest struct {
	Text string `json:"text,omitempty"`
}

func (*SearchRequest) WireName() string { return "example.SearchRequest" }

type SearchResponse struct {
	Hits []string `json:"hits,omitempty"`
}

func (*SearchResponse) WireName() string { return "example.SearchResponse" }

type SearchService interface {
	Search(ctx context.Context, req *SearchRequest) (*SearchResponse, error)
}

type searchService struct{}

func (searchService) Search(ctx context.Context, req *SearchRequest) (*SearchResponse, error) {
	return &SearchResponse{Hits: []string{"a", "b", "c"}}, nil
}

var errSearch = errors.New("search exception")

type searchServiceError struct{}

func (searchServiceError) Search(ctx context.Context, req *SearchRequest) (*SearchResponse, error) {
	return nil, errSearch
}

type searchServiceNil struct{}

func (searchServiceNil) Search(ctx context.Context, req *SearchRequest) (*SearchResponse, error) {
	return nil, nil
}

type searchServiceNotFound struct{}

func (searchServiceNotFound) Search(ctx context.Context, req *SearchRequest) (*SearchResponse, error) {
	return nil, twerr.New(twerr.NotFound, "no hits for you")
}

var searchDesc = contract.MustDescribe("example.SearchService", (*SearchService)(nil))

func newSearchRegistry(t *testing.T, impl any) *registry.Registry {
	t.Helper()
	r := registry.New()
	r.MustRegister(searchDesc, impl)
	return r
}

// captureLogger records error entries for assertions.
type captureLogger struct {
	entries []string
}

func (l *captureLogger) Error(msg string, keyvals ...any) {
	l.entries = append(l.entries, msg)
}

func TestParseRoute(t *testing.T) {
	tests := []struct {
		path            string
		prefix          string
		service, method string
		ok              bool
	}{
		{"/twirp/example.SearchService/Search", "twirp", "example.SearchService", "Search", true},
		{"/twirp/example.SearchService/Search", "/twirp", "example.SearchService", "Search", true},
		{"/twirp/example.SearchService/Search", "/twirp/", "example.SearchService", "Search", true},
		{"/api/rpc/example.SearchService/Search", "api/rpc", "example.SearchService", "Search", true},
		{"/twirp/example.SearchService", "twirp", "", "", false},
		{"/twirp/example.SearchService/", "twirp", "", "", false},
		{"/twirp//Search", "twirp", "", "", false},
		{"/twirp/a/b/c", "twirp", "", "", false},
		{"/other/example.SearchService/Search", "twirp", "", "", false},
	}
	for _, tt := range tests {
		service, method, ok := parseRoute(tt.path, tt.prefix)
		if ok != tt.ok || service != tt.service || method != tt.method {
			t.Errorf("parseRoute(%q, %q) = (%q, %q, %v), want (%q, %q, %v)",
				tt.path, tt.prefix, service, method, ok, tt.service, tt.method, tt.ok)
		}
	}
}

func TestNormalizePrefix(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"twirp", "/twirp/"},
		{"/twirp", "/twirp/"},
		{"/twirp/", "/twirp/"},
		{"", "/twirp/"},
		{"api/rpc", "/api/rpc/"},
	}
	for _, tt := range tests {
		if got := NormalizePrefix(tt.in); got != tt.want {
			t.Errorf("NormalizePrefix(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestAcceptedTypes(t *testing.T) {
	r := newRequest("GET", "/x", nil, "")
	r.Header.Set("Accept", "application/json; q=0.9, application/protobuf,text/html")
	got := acceptedTypes(r)
	want := []string{"application/json", "application/protobuf", "text/html"}
	if len(got) != len(want) {
		t.Fatalf("acceptedTypes = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("acceptedTypes[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}
