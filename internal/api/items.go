package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mohammed-shakir/stac-search-api/internal/apperr"
	"github.com/mohammed-shakir/stac-search-api/internal/events"
	"github.com/mohammed-shakir/stac-search-api/internal/logger"
	"github.com/mohammed-shakir/stac-search-api/internal/search"
	"github.com/mohammed-shakir/stac-search-api/internal/stac"
)

// handleListItems serves GET /collections/{id}/items as a search scoped
// to the collection, so it pages and filters the same way /search does.
func (s *Server) handleListItems(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "collectionID")
	if _, err := s.store.FindCollection(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}

	req, err := search.ParseGet(r.URL.Query(), s.limits())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	req.Collections = []string{id}

	r = r.WithContext(logger.WithCollection(r.Context(), id))
	s.runSearch(w, r, req, searchLinkContext{
		method:    http.MethodGet,
		itemsPath: "/collections/" + id + "/items",
	})
}

func (s *Server) handleGetItem(w http.ResponseWriter, r *http.Request) {
	col := chi.URLParam(r, "collectionID")
	id := chi.URLParam(r, "itemID")
	doc, err := s.store.GetItem(r.Context(), col, id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, stac.MediaTypeGeoJSON, doc)
}

// handleCreateItems accepts a single Feature or a FeatureCollection for
// bulk insertion.
func (s *Server) handleCreateItems(w http.ResponseWriter, r *http.Request) {
	col := chi.URLParam(r, "collectionID")
	doc, err := decodeDocument(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if t, _ := doc["type"].(string); t == "FeatureCollection" {
		s.bulkInsert(w, r, col, doc)
		return
	}

	if stac.DocCollection(doc) == "" {
		doc["collection"] = col
	} else if stac.DocCollection(doc) != col {
		s.writeError(w, r, apperr.Client("item collection %q does not match path %q", stac.DocCollection(doc), col))
		return
	}
	if err := s.store.CreateItem(r.Context(), doc); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.publishItemEvent(r, events.ActionCreated, col, stac.DocID(doc))
	s.writeJSON(w, http.StatusCreated, stac.MediaTypeGeoJSON, doc)
}

func (s *Server) bulkInsert(w http.ResponseWriter, r *http.Request, col string, fc stac.Document) {
	rawFeatures, _ := fc["features"].([]any)
	docs := make([]stac.Document, 0, len(rawFeatures))
	for _, f := range rawFeatures {
		d, ok := f.(map[string]any)
		if !ok {
			s.writeError(w, r, apperr.Client("feature collection contains a non-object feature"))
			return
		}
		if stac.DocCollection(d) == "" {
			d["collection"] = col
		}
		docs = append(docs, d)
	}

	n, err := s.store.BulkInsert(r.Context(), docs)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	for _, d := range docs {
		s.publishItemEvent(r, events.ActionCreated, stac.DocCollection(d), stac.DocID(d))
	}
	s.writeJSON(w, http.StatusCreated, stac.MediaTypeJSON, map[string]any{"inserted": n})
}

func (s *Server) handleUpdateItem(w http.ResponseWriter, r *http.Request) {
	col := chi.URLParam(r, "collectionID")
	id := chi.URLParam(r, "itemID")
	doc, err := decodeDocument(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	doc["id"] = id
	doc["collection"] = col
	props, ok := doc["properties"].(map[string]any)
	if !ok {
		props = map[string]any{}
		doc["properties"] = props
	}
	props["updated"] = time.Now().UTC().Format(time.RFC3339)
	if err := s.store.UpdateItem(r.Context(), doc); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.publishItemEvent(r, events.ActionUpdated, col, id)
	s.writeJSON(w, http.StatusOK, stac.MediaTypeGeoJSON, doc)
}

func (s *Server) handleDeleteItem(w http.ResponseWriter, r *http.Request) {
	col := chi.URLParam(r, "collectionID")
	id := chi.URLParam(r, "itemID")
	if err := s.store.DeleteItem(r.Context(), col, id); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.publishItemEvent(r, events.ActionDeleted, col, id)
	w.WriteHeader(http.StatusNoContent)
}

// publishItemEvent is best effort; a failed notification must not fail
// the write that already happened.
func (s *Server) publishItemEvent(r *http.Request, action events.Action, col, id string) {
	ev := events.ItemEvent{Action: action, Collection: col, ItemID: id}
	if err := s.events.PublishItemEvent(r.Context(), ev); err != nil {
		l := logger.FromContext(r.Context(), &s.log)
		l.Warn().Err(err).
			Str("action", string(action)).
			Str("collection", col).
			Str("item", id).
			Msg("item event not published")
	}
}
