package api

import (
	"context"
	"net/http"

	"github.com/mohammed-shakir/stac-search-api/internal/apperr"
	"github.com/mohammed-shakir/stac-search-api/internal/backend"
	"github.com/mohammed-shakir/stac-search-api/internal/geo"
	"github.com/mohammed-shakir/stac-search-api/internal/observability"
	"github.com/mohammed-shakir/stac-search-api/internal/query"
	"github.com/mohammed-shakir/stac-search-api/internal/search"
	"github.com/mohammed-shakir/stac-search-api/internal/stac"
)

func (s *Server) handleSearchGet(w http.ResponseWriter, r *http.Request) {
	req, err := search.ParseGet(r.URL.Query(), s.limits())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.runSearch(w, r, req, searchLinkContext{method: http.MethodGet})
}

func (s *Server) handleSearchPost(w http.ResponseWriter, r *http.Request) {
	req, err := search.DecodeBody(r.Body, s.limits())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.runSearch(w, r, req, searchLinkContext{method: http.MethodPost})
}

type searchLinkContext struct {
	method string
	// itemsPath is set when serving /collections/{id}/items, which pages
	// through the same machinery with its own self link
	itemsPath string
}

func (s *Server) runSearch(w http.ResponseWriter, r *http.Request, req *search.Request, lc searchLinkContext) {
	p, err := buildPredicate(req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.BackendTimeout)
	defer cancel()

	res, err := s.store.ExecuteSearch(ctx, p, backend.SearchOptions{
		Limit: req.Limit,
		Sort:  req.Sort,
		Token: req.Token,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	observability.ObserveSearchPage(len(res.Items))

	sel := effectiveSelection(req)
	features := make([]stac.Document, 0, len(res.Items))
	for _, d := range res.Items {
		features = append(features, stac.Project(d, sel))
	}

	out := stac.ItemCollection{
		Type:        "FeatureCollection",
		Features:    features,
		Links:       s.searchLinks(r, req, res, lc),
		NumReturned: len(features),
		NumMatched:  res.Matched,
	}
	s.writeJSON(w, http.StatusOK, stac.MediaTypeGeoJSON, out)
}

// effectiveSelection widens a non-empty include set with the fields the
// structured query filters on, so filtered values stay visible in the
// projected items.
func effectiveSelection(req *search.Request) *stac.FieldSelection {
	sel := req.Fields
	if sel == nil || len(sel.Include) == 0 || len(req.Query) == 0 {
		return sel
	}
	widened := &stac.FieldSelection{
		Include: make(map[string]struct{}, len(sel.Include)+len(req.Query)),
		Exclude: sel.Exclude,
	}
	for k := range sel.Include {
		widened.Include[k] = struct{}{}
	}
	for field := range req.Query {
		widened.Include["properties."+field] = struct{}{}
	}
	return widened
}

// buildPredicate lowers every filter of the request into one predicate
// tree.
func buildPredicate(req *search.Request) (query.Predicate, error) {
	b := query.NewBuilder()
	b.ApplyIDsFilter(req.IDs)
	b.ApplyCollectionsFilter(req.Collections)

	if len(req.BBox) > 0 {
		if err := b.ApplyBBoxFilter(req.BBox); err != nil {
			return query.Predicate{}, err
		}
	}
	if req.Intersects != nil {
		g, err := geo.Decode(req.Intersects)
		if err != nil {
			return query.Predicate{}, apperr.ClientWrap(err, "invalid intersects geometry")
		}
		b.ApplyIntersectsFilter(g)
	}
	if req.Datetime != nil {
		b.ApplyDatetimeFilter(req.Datetime.GTE, req.Datetime.LTE)
	}
	for field, ops := range req.Query {
		for op, val := range ops {
			if err := b.ApplyStacqlFilter(field, op, val); err != nil {
				return query.Predicate{}, err
			}
		}
	}
	if err := b.ApplyCQL2Filter(req.Filter); err != nil {
		return query.Predicate{}, err
	}
	return b.Predicate(), nil
}

func (s *Server) searchLinks(r *http.Request, req *search.Request, res *backend.SearchResult, lc searchLinkContext) []stac.Link {
	base := baseURL(r)
	selfPath := "/search"
	if lc.itemsPath != "" {
		selfPath = lc.itemsPath
	}
	links := []stac.Link{
		{Rel: "root", Type: stac.MediaTypeJSON, Href: base + "/"},
		{Rel: "self", Type: stac.MediaTypeGeoJSON, Href: base + selfPath},
	}
	if res.NextToken == "" {
		return links
	}

	if lc.method == http.MethodPost {
		links = append(links, stac.Link{
			Rel:    "next",
			Type:   stac.MediaTypeGeoJSON,
			Href:   base + selfPath,
			Method: http.MethodPost,
			Body:   map[string]any{"token": res.NextToken},
		})
		return links
	}

	q := r.URL.Query()
	q.Set("token", res.NextToken)
	links = append(links, stac.Link{
		Rel:  "next",
		Type: stac.MediaTypeGeoJSON,
		Href: base + selfPath + "?" + q.Encode(),
	})
	return links
}
