// Package memstore is the in-memory storage adapter. It backs tests and
// single-node deployments where durability is not needed.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/mohammed-shakir/stac-search-api/internal/apperr"
	"github.com/mohammed-shakir/stac-search-api/internal/backend"
	"github.com/mohammed-shakir/stac-search-api/internal/observability"
	"github.com/mohammed-shakir/stac-search-api/internal/query"
	"github.com/mohammed-shakir/stac-search-api/internal/stac"
)

type Store struct {
	mu          sync.RWMutex
	collections map[string]stac.Document
	items       map[string]map[string]stac.Document
}

var _ backend.Backend = (*Store)(nil)

func New() *Store {
	return &Store{
		collections: map[string]stac.Document{},
		items:       map[string]map[string]stac.Document{},
	}
}

func (s *Store) ExecuteSearch(ctx context.Context, p query.Predicate, opts backend.SearchOptions) (*backend.SearchResult, error) {
	start := time.Now()
	docs := s.snapshotItems()
	res, err := backend.RunSearch(docs, p, opts)
	observability.ObserveBackendOp("search", err, time.Since(start).Seconds())
	return res, err
}

func (s *Store) ExecuteAggregation(ctx context.Context, q backend.AggregationQuery) (*backend.RawAggregations, error) {
	start := time.Now()
	docs := s.snapshotItems()
	res, err := backend.RunAggregation(docs, q)
	observability.ObserveBackendOp("aggregate", err, time.Since(start).Seconds())
	return res, err
}

func (s *Store) snapshotItems() []stac.Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var docs []stac.Document
	for _, byID := range s.items {
		for _, d := range byID {
			docs = append(docs, d)
		}
	}
	return docs
}

func (s *Store) ListCollections(ctx context.Context, limit int, token string) ([]stac.Document, string, error) {
	s.mu.RLock()
	ids := make([]string, 0, len(s.collections))
	for id := range s.collections {
		ids = append(ids, id)
	}
	s.mu.RUnlock()
	sort.Strings(ids)

	if token != "" {
		cur, err := backend.DecodeToken(token)
		if err != nil {
			return nil, "", err
		}
		i := sort.SearchStrings(ids, cur.ID)
		if i < len(ids) && ids[i] == cur.ID {
			i++
		}
		ids = ids[i:]
	}

	var next string
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
		t, err := backend.EncodeToken(stac.Document{"id": ids[len(ids)-1]}, nil)
		if err != nil {
			return nil, "", err
		}
		next = t
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]stac.Document, 0, len(ids))
	for _, id := range ids {
		if d, ok := s.collections[id]; ok {
			out = append(out, d)
		}
	}
	return out, next, nil
}

func (s *Store) FindCollection(ctx context.Context, id string) (stac.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.collections[id]
	if !ok {
		return nil, apperr.NotFound("collection %q not found", id)
	}
	return d, nil
}

func (s *Store) CreateCollection(ctx context.Context, doc stac.Document) error {
	id := stac.DocID(doc)
	if id == "" {
		return apperr.Client("collection is missing an id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.collections[id]; ok {
		return apperr.Conflict("collection %q already exists", id)
	}
	s.collections[id] = doc
	return nil
}

func (s *Store) UpdateCollection(ctx context.Context, doc stac.Document) error {
	id := stac.DocID(doc)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.collections[id]; !ok {
		return apperr.NotFound("collection %q not found", id)
	}
	s.collections[id] = doc
	return nil
}

func (s *Store) DeleteCollection(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.collections[id]; !ok {
		return apperr.NotFound("collection %q not found", id)
	}
	delete(s.collections, id)
	delete(s.items, id)
	return nil
}

func (s *Store) GetItem(ctx context.Context, collectionID, itemID string) (stac.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.items[collectionID][itemID]
	if !ok {
		return nil, apperr.NotFound("item %q not found in collection %q", itemID, collectionID)
	}
	return d, nil
}

func (s *Store) CreateItem(ctx context.Context, doc stac.Document) error {
	id, col := stac.DocID(doc), stac.DocCollection(doc)
	if id == "" || col == "" {
		return apperr.Client("item needs id and collection")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.collections[col]; !ok {
		return apperr.NotFound("collection %q not found", col)
	}
	if _, ok := s.items[col][id]; ok {
		return apperr.Conflict("item %q already exists in collection %q", id, col)
	}
	if s.items[col] == nil {
		s.items[col] = map[string]stac.Document{}
	}
	s.items[col][id] = doc
	return nil
}

func (s *Store) UpdateItem(ctx context.Context, doc stac.Document) error {
	id, col := stac.DocID(doc), stac.DocCollection(doc)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[col][id]; !ok {
		return apperr.NotFound("item %q not found in collection %q", id, col)
	}
	s.items[col][id] = doc
	return nil
}

func (s *Store) DeleteItem(ctx context.Context, collectionID, itemID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[collectionID][itemID]; !ok {
		return apperr.NotFound("item %q not found in collection %q", itemID, collectionID)
	}
	delete(s.items[collectionID], itemID)
	return nil
}

// BulkInsert upserts items and reports how many were written. Items whose
// collection does not exist are skipped rather than failing the batch.
func (s *Store) BulkInsert(ctx context.Context, docs []stac.Document) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int
	for _, doc := range docs {
		id, col := stac.DocID(doc), stac.DocCollection(doc)
		if id == "" || col == "" {
			continue
		}
		if _, ok := s.collections[col]; !ok {
			continue
		}
		if s.items[col] == nil {
			s.items[col] = map[string]stac.Document{}
		}
		s.items[col][id] = doc
		n++
	}
	return n, nil
}

func (s *Store) Ping(ctx context.Context) error { return nil }
