// Command searchservice runs a small search RPC service exposing the same
// contract through both pipeline variants: the strict Twirp handler under
// /twirp/ and the permissive HTTP handler under /rpc/.
package main

import (
	"context"
	"log"
	"net/http"
	"strings"

	"github.com/NYTimes/gziphandler"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/mnehpets/twirpserve/codec/cborcodec"
	"github.com/mnehpets/twirpserve/contract"
	"github.com/mnehpets/twirpserve/handler"
	"github.com/mnehpets/twirpserve/registry"
	"github.com/mnehpets/twirpserve/twerr"
	"github.com/mnehpets/twirpserve/zaplog"
)

// Config is read from the environment, optionally seeded from a .env file.
type Config struct {
	Addr         string `default:":8080"`
	TwirpPrefix  string `split_words:"true" default:"twirp"`
	HTTPPrefix   string `split_words:"true" default:"rpc"`
	Debug        bool   `default:"false"`
	RequestIDKey string `split_words:"true" default:"X-Request-Id"`
}

type SearchRequest struct {
	Text     string `json:"text" cbor:"1,keyasint"`
	PageSize int    `json:"page_size,omitempty" cbor:"2,keyasint,omitempty"`
}

type SearchResponse struct {
	Hits []string `json:"hits" cbor:"1,keyasint"`
}

func (*SearchRequest) WireName() string  { return "example.SearchRequest" }
func (*SearchResponse) WireName() string { return "example.SearchResponse" }

// SearchService finds documents matching a query.
type SearchService interface {
	Search(ctx context.Context, req *SearchRequest) (*SearchResponse, error)
}

type searchService struct {
	documents []string
}

func (s *searchService) Search(ctx context.Context, req *SearchRequest) (*SearchResponse, error) {
	if req.Text == "" {
		return nil, twerr.New(twerr.InvalidArgument, "text is required")
	}
	resp := &SearchResponse{Hits: []string{}}
	for _, doc := range s.documents {
		if strings.Contains(strings.ToLower(doc), strings.ToLower(req.Text)) {
			resp.Hits = append(resp.Hits, doc)
			if req.PageSize > 0 && len(resp.Hits) >= req.PageSize {
				break
			}
		}
	}
	return resp, nil
}

func main() {
	// Missing .env is fine; the environment alone is enough.
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file loaded:", err)
	}
	var cfg Config
	if err := envconfig.Process("searchservice", &cfg); err != nil {
		log.Fatal(err)
	}

	logger, err := zaplog.New("searchservice")
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	reg := registry.New()
	reg.MustRegister(
		contract.MustDescribe("example.SearchService", (*SearchService)(nil)),
		&searchService{documents: []string{
			"A Pattern Language",
			"The Art of Computer Programming",
			"Programming Pearls",
			"The Practice of Programming",
		}},
	)
	if err := reg.ValidateAll(); err != nil {
		log.Fatal(err)
	}

	c := cborcodec.New()

	translator := &twerr.Translator{
		Prefix: cfg.TwirpPrefix,
		Debug:  cfg.Debug,
		RequestTag: func(r *http.Request) string {
			return r.Header.Get(cfg.RequestIDKey)
		},
	}

	strict := &handler.Twirp{
		Registry:   reg,
		Codec:      c,
		Prefix:     cfg.TwirpPrefix,
		Translator: translator,
	}
	permissive := &handler.HTTP{
		Registry: reg,
		Codec:    c,
		Logger:   logger,
		Debug:    cfg.Debug,
		Prefix:   cfg.HTTPPrefix,
	}

	mux := http.NewServeMux()
	mux.Handle("/"+cfg.TwirpPrefix+"/", translator.Middleware(strict))
	mux.Handle("/"+cfg.HTTPPrefix+"/", permissive)

	log.Println("Listening on", cfg.Addr)
	if err := http.ListenAndServe(cfg.Addr, gziphandler.GzipHandler(mux)); err != nil {
		log.Fatal(err)
	}
}
