// Package router wires the matcher's routes and applies the middleware
// chain (RequestID → Metrics → CORS → Auth → RateLimit → Timeout).
package router

import (
	"net/http"
	"time"

	"github.com/Adithya-Monish-Kumar-K/quiz-answer-matcher/internal/analytics"
	apihandler "github.com/Adithya-Monish-Kumar-K/quiz-answer-matcher/internal/api/handler"
	apimw "github.com/Adithya-Monish-Kumar-K/quiz-answer-matcher/internal/api/middleware"
	"github.com/Adithya-Monish-Kumar-K/quiz-answer-matcher/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/quiz-answer-matcher/internal/highlight"
	searchhandler "github.com/Adithya-Monish-Kumar-K/quiz-answer-matcher/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/quiz-answer-matcher/internal/selection"
	"github.com/Adithya-Monish-Kumar-K/quiz-answer-matcher/internal/settings"
	"github.com/Adithya-Monish-Kumar-K/quiz-answer-matcher/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/quiz-answer-matcher/pkg/metrics"
	pkgmw "github.com/Adithya-Monish-Kumar-K/quiz-answer-matcher/pkg/middleware"
)

// streamPath is exempt from the request timeout.
const streamPath = "/api/v1/selection/stream"

// Handlers are the route targets. Keys and Analytics may be nil, which
// drops their routes.
type Handlers struct {
	Corpus    *corpus.Handler
	Settings  *settings.Handler
	Search    *searchhandler.Handler
	Selection *selection.Handler
	Highlight *highlight.Handler
	Analytics *analytics.Handler
	Keys      *apihandler.Keys
	Health    *health.Checker
}

// Options configure the middleware chain. A nil Validator disables auth and
// rate limiting; a nil Metrics disables request metrics.
type Options struct {
	Validator      apimw.KeyValidator
	Limiter        apimw.Allower
	Metrics        *metrics.Metrics
	AllowedOrigins []string
	Timeout        time.Duration
}

// New builds the HTTP handler.
//
// Route table:
//
//	GET    /health/live, /health/ready
//	GET    /api/v1/corpus                 list records with their index
//	POST   /api/v1/corpus                 add a record
//	PUT    /api/v1/corpus/{index}         update a record
//	DELETE /api/v1/corpus/{index}         delete a record
//	POST   /api/v1/corpus/import          replace the corpus from qa_data.json
//	GET    /api/v1/corpus/export          download qa_data.json
//	GET    /api/v1/search                 ranked matches (?q=&policy=&limit=)
//	GET    /api/v1/search/best            best match and its answer tokens
//	GET    /api/v1/cache/stats
//	POST   /api/v1/cache/invalidate
//	GET    /api/v1/settings
//	PUT    /api/v1/settings
//	POST   /api/v1/settings/reset
//	GET    /api/v1/selection
//	PUT    /api/v1/selection
//	GET    /api/v1/selection/matches      toolbar matches for the selection
//	GET    /api/v1/selection/stream       server-sent toolbar matches
//	POST   /api/v1/highlight              mark answers on a quiz page
//	POST   /api/v1/highlight/clear        remove marks from a quiz page
//	GET    /api/v1/analytics
//	GET    /api/v1/analytics/snapshots
//	POST   /api/v1/admin/keys
//	GET    /api/v1/admin/keys
//	DELETE /api/v1/admin/keys/{id}
func New(h Handlers, opts Options) http.Handler {
	mux := http.NewServeMux()

	if h.Health != nil {
		mux.HandleFunc("GET /health/live", h.Health.LiveHandler())
		mux.HandleFunc("GET /health/ready", h.Health.ReadyHandler())
	}

	mux.HandleFunc("GET /api/v1/corpus", h.Corpus.List)
	mux.HandleFunc("POST /api/v1/corpus", h.Corpus.Create)
	mux.HandleFunc("PUT /api/v1/corpus/{index}", h.Corpus.Update)
	mux.HandleFunc("DELETE /api/v1/corpus/{index}", h.Corpus.Delete)
	mux.HandleFunc("POST /api/v1/corpus/import", h.Corpus.Import)
	mux.HandleFunc("GET /api/v1/corpus/export", h.Corpus.Export)

	mux.HandleFunc("GET /api/v1/search", h.Search.Search)
	mux.HandleFunc("GET /api/v1/search/best", h.Search.Best)
	mux.HandleFunc("GET /api/v1/cache/stats", h.Search.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.Search.CacheInvalidate)

	mux.HandleFunc("GET /api/v1/settings", h.Settings.Get)
	mux.HandleFunc("PUT /api/v1/settings", h.Settings.Put)
	mux.HandleFunc("POST /api/v1/settings/reset", h.Settings.Reset)

	mux.HandleFunc("GET /api/v1/selection", h.Selection.Get)
	mux.HandleFunc("PUT /api/v1/selection", h.Selection.Put)
	mux.HandleFunc("GET /api/v1/selection/matches", h.Selection.Matches)
	mux.HandleFunc("GET "+streamPath, h.Selection.Stream)

	mux.HandleFunc("POST /api/v1/highlight", h.Highlight.Highlight)
	mux.HandleFunc("POST /api/v1/highlight/clear", h.Highlight.Clear)

	if h.Analytics != nil {
		mux.HandleFunc("GET /api/v1/analytics", h.Analytics.Stats)
		mux.HandleFunc("GET /api/v1/analytics/snapshots", h.Analytics.Snapshots)
	}
	if h.Keys != nil {
		mux.HandleFunc("POST /api/v1/admin/keys", h.Keys.Create)
		mux.HandleFunc("GET /api/v1/admin/keys", h.Keys.List)
		mux.HandleFunc("DELETE /api/v1/admin/keys/{id}", h.Keys.Revoke)
	}

	// Applied inside-out.
	var chain http.Handler = mux
	if opts.Timeout > 0 {
		chain = pkgmw.Timeout(opts.Timeout, streamPath)(chain)
	}
	if opts.Validator != nil {
		if opts.Limiter != nil {
			chain = apimw.RateLimit(opts.Limiter)(chain)
		}
		chain = apimw.Auth(opts.Validator)(chain)
	}
	chain = apimw.CORS(apimw.DefaultCORSConfig(opts.AllowedOrigins))(chain)
	if opts.Metrics != nil {
		chain = pkgmw.Metrics(opts.Metrics)(chain)
	}
	chain = pkgmw.RequestID(chain)
	return chain
}
