// Package api wires the HTTP surface of the catalog: search, collection
// and item management, aggregations and the operational endpoints.
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/mohammed-shakir/stac-search-api/internal/aggregation"
	"github.com/mohammed-shakir/stac-search-api/internal/apperr"
	"github.com/mohammed-shakir/stac-search-api/internal/backend"
	"github.com/mohammed-shakir/stac-search-api/internal/config"
	"github.com/mohammed-shakir/stac-search-api/internal/events"
	"github.com/mohammed-shakir/stac-search-api/internal/health"
	"github.com/mohammed-shakir/stac-search-api/internal/logger"
	"github.com/mohammed-shakir/stac-search-api/internal/middleware"
	"github.com/mohammed-shakir/stac-search-api/internal/observability"
	"github.com/mohammed-shakir/stac-search-api/internal/search"
)

type Server struct {
	cfg    config.Config
	store  backend.Backend
	agg    *aggregation.Compiler
	events events.Publisher
	log    zerolog.Logger
}

func New(cfg config.Config, store backend.Backend, pub events.Publisher, log zerolog.Logger) *Server {
	if pub == nil {
		pub = events.Nop{}
	}
	return &Server{
		cfg:    cfg,
		store:  store,
		agg:    aggregation.New(store),
		events: pub,
		log:    log,
	}
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recover())
	r.Use(middleware.CORS())
	r.Use(middleware.Logging(logger.NewSlog(&s.log)))
	r.Use(s.metricsMiddleware)

	r.Get("/", s.handleLanding)
	r.Get("/conformance", s.handleConformance)
	r.Get("/queryables", s.handleQueryables)

	r.Get("/search", s.handleSearchGet)
	r.Post("/search", s.handleSearchPost)

	r.Get("/aggregations", s.handleAggregations)
	r.Get("/aggregate", s.handleAggregateGet)
	r.Post("/aggregate", s.handleAggregatePost)

	r.Route("/collections", func(r chi.Router) {
		r.Get("/", s.handleListCollections)
		r.Post("/", s.handleCreateCollection)
		r.Route("/{collectionID}", func(r chi.Router) {
			r.Get("/", s.handleGetCollection)
			r.Put("/", s.handleUpdateCollection)
			r.Delete("/", s.handleDeleteCollection)
			r.Get("/queryables", s.handleQueryables)
			r.Get("/aggregations", s.handleAggregations)
			r.Get("/aggregate", s.handleAggregateGet)
			r.Post("/aggregate", s.handleAggregatePost)
			r.Get("/items", s.handleListItems)
			r.Post("/items", s.handleCreateItems)
			r.Route("/items/{itemID}", func(r chi.Router) {
				r.Get("/", s.handleGetItem)
				r.Put("/", s.handleUpdateItem)
				r.Delete("/", s.handleDeleteItem)
			})
		})
	})

	r.Get("/healthz", health.Liveness())
	r.Get("/readyz", health.Readiness(s.store))
	if s.cfg.MetricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}
	return r
}

func (s *Server) metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		route := chi.RouteContext(r.Context()).RoutePattern()
		if route == "" {
			route = "unmatched"
		}
		observability.ObserveHTTP(r.Method, route, ww.Status(), time.Since(start).Seconds())
	})
}

func (s *Server) limits() search.Limits {
	return search.Limits{Default: s.cfg.DefaultLimit, Max: s.cfg.MaxLimit}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, contentType string, v any) {
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error().Err(err).Msg("encoding response")
	}
}

type errorBody struct {
	Code        int    `json:"code"`
	Description string `json:"description"`
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperr.HTTPStatus(err)
	l := logger.FromContext(r.Context(), &s.log)
	if status >= 500 {
		l.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	} else {
		l.Debug().Err(err).Str("path", r.URL.Path).Int("status", status).Msg("request rejected")
	}
	msg := err.Error()
	if status >= 500 {
		msg = "internal server error"
	}
	s.writeJSON(w, status, "application/json", errorBody{Code: status, Description: msg})
}

// baseURL reconstructs the externally visible root from the request.
func baseURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if fwd := r.Header.Get("X-Forwarded-Proto"); fwd != "" {
		scheme = fwd
	}
	return scheme + "://" + r.Host
}
