package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/mohammed-shakir/stac-search-api/internal/apperr"
	"github.com/mohammed-shakir/stac-search-api/internal/stac"
)

func (s *Server) handleListCollections(w http.ResponseWriter, r *http.Request) {
	limit := s.cfg.DefaultLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			s.writeError(w, r, apperr.Client("invalid limit %q", raw))
			return
		}
		if n > s.cfg.MaxLimit {
			n = s.cfg.MaxLimit
		}
		limit = n
	}

	cols, next, err := s.store.ListCollections(r.Context(), limit, r.URL.Query().Get("token"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	base := baseURL(r)
	links := []stac.Link{
		{Rel: "root", Type: stac.MediaTypeJSON, Href: base + "/"},
		{Rel: "self", Type: stac.MediaTypeJSON, Href: base + "/collections"},
	}
	if next != "" {
		q := r.URL.Query()
		q.Set("token", next)
		links = append(links, stac.Link{Rel: "next", Type: stac.MediaTypeJSON, Href: base + "/collections?" + q.Encode()})
	}
	s.writeJSON(w, http.StatusOK, stac.MediaTypeJSON, stac.Collections{Collections: cols, Links: links})
}

func (s *Server) handleGetCollection(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "collectionID")
	col, err := s.store.FindCollection(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, stac.MediaTypeJSON, col)
}

func (s *Server) handleCreateCollection(w http.ResponseWriter, r *http.Request) {
	doc, err := decodeDocument(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.store.CreateCollection(r.Context(), doc); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, stac.MediaTypeJSON, doc)
}

func (s *Server) handleUpdateCollection(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "collectionID")
	doc, err := decodeDocument(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if got := stac.DocID(doc); got != "" && got != id {
		s.writeError(w, r, apperr.Client("collection id %q does not match path %q", got, id))
		return
	}
	doc["id"] = id
	if err := s.store.UpdateCollection(r.Context(), doc); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, stac.MediaTypeJSON, doc)
}

func (s *Server) handleDeleteCollection(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "collectionID")
	if err := s.store.DeleteCollection(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func decodeDocument(r *http.Request) (stac.Document, error) {
	var doc stac.Document
	if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
		return nil, apperr.ClientWrap(err, "invalid json body")
	}
	return doc, nil
}
