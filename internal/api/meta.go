package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mohammed-shakir/stac-search-api/internal/stac"
)

var conformsTo = []string{
	"https://api.stacspec.org/v1.0.0/core",
	"https://api.stacspec.org/v1.0.0/collections",
	"https://api.stacspec.org/v1.0.0/ogcapi-features",
	"https://api.stacspec.org/v1.0.0/item-search",
	"https://api.stacspec.org/v1.0.0/item-search#fields",
	"https://api.stacspec.org/v1.0.0/item-search#query",
	"https://api.stacspec.org/v1.0.0/item-search#sort",
	"https://api.stacspec.org/v1.0.0/item-search#filter",
	"https://api.stacspec.org/v0.3.0/aggregation",
	"https://api.stacspec.org/v1.0.0/ogcapi-features/extensions/transaction",
	"http://www.opengis.net/spec/cql2/1.0/conf/cql2-text",
	"http://www.opengis.net/spec/cql2/1.0/conf/cql2-json",
}

func (s *Server) handleLanding(w http.ResponseWriter, r *http.Request) {
	base := baseURL(r)
	landing := map[string]any{
		"type":         "Catalog",
		"stac_version": "1.0.0",
		"id":           "stac-search-api",
		"title":        "STAC Search API",
		"description":  "Searchable spatiotemporal asset catalog",
		"conformsTo":   conformsTo,
		"links": []stac.Link{
			{Rel: "self", Type: stac.MediaTypeJSON, Href: base + "/"},
			{Rel: "root", Type: stac.MediaTypeJSON, Href: base + "/"},
			{Rel: "conformance", Type: stac.MediaTypeJSON, Href: base + "/conformance"},
			{Rel: "data", Type: stac.MediaTypeJSON, Href: base + "/collections"},
			{Rel: "search", Type: stac.MediaTypeGeoJSON, Href: base + "/search", Method: http.MethodGet},
			{Rel: "search", Type: stac.MediaTypeGeoJSON, Href: base + "/search", Method: http.MethodPost},
			{Rel: "aggregate", Type: stac.MediaTypeJSON, Href: base + "/aggregate"},
			{Rel: "aggregations", Type: stac.MediaTypeJSON, Href: base + "/aggregations"},
			{Rel: "queryables", Type: stac.MediaTypeJSON, Href: base + "/queryables"},
		},
	}
	s.writeJSON(w, http.StatusOK, stac.MediaTypeJSON, landing)
}

func (s *Server) handleConformance(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, stac.MediaTypeJSON, map[string]any{"conformsTo": conformsTo})
}

// handleQueryables publishes the filterable properties as a JSON schema.
// Served for the catalog and per collection; the property set is the
// same either way since every backend indexes the common fields.
func (s *Server) handleQueryables(w http.ResponseWriter, r *http.Request) {
	base := baseURL(r)
	self := base + "/queryables"
	title := "Queryables"
	if col := chi.URLParam(r, "collectionID"); col != "" {
		if _, err := s.store.FindCollection(r.Context(), col); err != nil {
			s.writeError(w, r, err)
			return
		}
		self = base + "/collections/" + col + "/queryables"
		title = "Queryables for " + col
	}

	schema := map[string]any{
		"$schema": "https://json-schema.org/draft/2019-09/schema",
		"$id":     self,
		"type":    "object",
		"title":   title,
		"properties": map[string]any{
			"id":         map[string]any{"type": "string"},
			"collection": map[string]any{"type": "string"},
			"geometry":   map[string]any{"$ref": "https://geojson.org/schema/Geometry.json"},
			"datetime": map[string]any{
				"type":   "string",
				"format": "date-time",
			},
			"eo:cloud_cover": map[string]any{
				"type":    "number",
				"minimum": 0,
				"maximum": 100,
			},
			"platform":           map[string]any{"type": "string"},
			"grid:code":          map[string]any{"type": "string"},
			"view:sun_elevation": map[string]any{"type": "number"},
			"view:sun_azimuth":   map[string]any{"type": "number"},
			"view:off_nadir":     map[string]any{"type": "number"},
		},
		"additionalProperties": true,
	}
	s.writeJSON(w, http.StatusOK, stac.MediaTypeJSON, schema)
}
