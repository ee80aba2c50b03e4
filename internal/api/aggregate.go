package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/mohammed-shakir/stac-search-api/internal/apperr"
	"github.com/mohammed-shakir/stac-search-api/internal/search"
	"github.com/mohammed-shakir/stac-search-api/internal/stac"
)

// handleAggregations lists the aggregations the catalog, or one
// collection, supports.
func (s *Server) handleAggregations(w http.ResponseWriter, r *http.Request) {
	col := chi.URLParam(r, "collectionID")
	out, err := s.agg.Describe(r.Context(), col)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out.Links = s.aggregationLinks(r, col, "/aggregations")
	s.writeJSON(w, http.StatusOK, stac.MediaTypeJSON, *out)
}

func (s *Server) handleAggregateGet(w http.ResponseWriter, r *http.Request) {
	req, err := search.ParseGet(r.URL.Query(), s.limits())
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	names := splitNames(r.URL.Query().Get("aggregations"))
	precision := map[string]int{}
	for key, vals := range r.URL.Query() {
		if !strings.HasSuffix(key, "_precision") || len(vals) == 0 {
			continue
		}
		n, err := strconv.Atoi(vals[0])
		if err != nil {
			s.writeError(w, r, apperr.Client("invalid precision %q for %q", vals[0], key))
			return
		}
		precision[strings.TrimSuffix(key, "_precision")] = n
	}

	s.runAggregate(w, r, req, names, precision)
}

// aggregateBody extends the search body with the aggregation selection.
// Grid precisions arrive as "<name>_precision" keys, captured from the
// raw object.
type aggregateBody struct {
	Aggregations []string `json:"aggregations"`
}

func (s *Server) handleAggregatePost(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		s.writeError(w, r, apperr.ClientWrap(err, "reading request body"))
		return
	}

	var ab aggregateBody
	if err := json.Unmarshal(raw, &ab); err != nil {
		s.writeError(w, r, apperr.ClientWrap(err, "invalid aggregate body"))
		return
	}

	var asMap map[string]any
	if err := json.Unmarshal(raw, &asMap); err != nil {
		s.writeError(w, r, apperr.ClientWrap(err, "invalid aggregate body"))
		return
	}
	precision := map[string]int{}
	for key, v := range asMap {
		if !strings.HasSuffix(key, "_precision") {
			continue
		}
		f, ok := v.(float64)
		if !ok {
			s.writeError(w, r, apperr.Client("precision %q must be a number", key))
			return
		}
		precision[strings.TrimSuffix(key, "_precision")] = int(f)
	}

	req, err := search.DecodeBody(bytes.NewReader(raw), s.limits())
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.runAggregate(w, r, req, ab.Aggregations, precision)
}

func (s *Server) runAggregate(w http.ResponseWriter, r *http.Request, req *search.Request, names []string, precision map[string]int) {
	// the allow-list follows the collection when exactly one is in scope
	scope := chi.URLParam(r, "collectionID")
	if scope != "" {
		req.Collections = []string{scope}
	} else if len(req.Collections) == 1 {
		scope = req.Collections[0]
	}

	p, err := buildPredicate(req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.BackendTimeout)
	defer cancel()

	out, err := s.agg.Aggregate(ctx, scope, names, precision, p)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out.Links = s.aggregationLinks(r, chi.URLParam(r, "collectionID"), "/aggregate")
	s.writeJSON(w, http.StatusOK, stac.MediaTypeJSON, *out)
}

func (s *Server) aggregationLinks(r *http.Request, collectionID, suffix string) []stac.Link {
	base := baseURL(r)
	self := base + suffix
	if collectionID != "" {
		self = base + "/collections/" + collectionID + suffix
	}
	return []stac.Link{
		{Rel: "root", Type: stac.MediaTypeJSON, Href: base + "/"},
		{Rel: "self", Type: stac.MediaTypeJSON, Href: self},
	}
}

func splitNames(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, n := range strings.Split(raw, ",") {
		n = strings.TrimSpace(n)
		if n != "" {
			out = append(out, n)
		}
	}
	return out
}
