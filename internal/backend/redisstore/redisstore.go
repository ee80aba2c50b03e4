// Package redisstore is the Redis storage adapter. Documents are stored
// as JSON values with set-based indexes; search and aggregation fetch the
// candidate set and run the shared evaluation machinery over it.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/redis/go-redis/v9"

	"github.com/mohammed-shakir/stac-search-api/internal/apperr"
	"github.com/mohammed-shakir/stac-search-api/internal/backend"
	"github.com/mohammed-shakir/stac-search-api/internal/observability"
	"github.com/mohammed-shakir/stac-search-api/internal/query"
	"github.com/mohammed-shakir/stac-search-api/internal/stac"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	collectionsKey = "stac:collections"
	collectionKey  = "stac:collection:%s"
	itemsKey       = "stac:items:%s"
	itemKey        = "stac:item:%s|%s"
)

type Store struct {
	rdb *redis.Client
}

var _ backend.Backend = (*Store)(nil)

func New(rdb *redis.Client) *Store { return &Store{rdb: rdb} }

func (s *Store) ExecuteSearch(ctx context.Context, p query.Predicate, opts backend.SearchOptions) (*backend.SearchResult, error) {
	start := time.Now()
	docs, err := s.fetchAllItems(ctx)
	if err != nil {
		observability.ObserveBackendOp("search", err, time.Since(start).Seconds())
		return nil, err
	}
	res, err := backend.RunSearch(docs, p, opts)
	observability.ObserveBackendOp("search", err, time.Since(start).Seconds())
	return res, err
}

func (s *Store) ExecuteAggregation(ctx context.Context, q backend.AggregationQuery) (*backend.RawAggregations, error) {
	start := time.Now()
	docs, err := s.fetchAllItems(ctx)
	if err != nil {
		observability.ObserveBackendOp("aggregate", err, time.Since(start).Seconds())
		return nil, err
	}
	res, err := backend.RunAggregation(docs, q)
	observability.ObserveBackendOp("aggregate", err, time.Since(start).Seconds())
	return res, err
}

func (s *Store) fetchAllItems(ctx context.Context) ([]stac.Document, error) {
	cols, err := s.rdb.SMembers(ctx, collectionsKey).Result()
	if err != nil {
		return nil, apperr.Backend("list collections: %v", err)
	}
	var docs []stac.Document
	for _, col := range cols {
		ids, err := s.rdb.SMembers(ctx, fmt.Sprintf(itemsKey, col)).Result()
		if err != nil {
			return nil, apperr.Backend("list items of %q: %v", col, err)
		}
		if len(ids) == 0 {
			continue
		}
		keys := make([]string, 0, len(ids))
		for _, id := range ids {
			keys = append(keys, fmt.Sprintf(itemKey, col, id))
		}
		vals, err := s.rdb.MGet(ctx, keys...).Result()
		if err != nil {
			return nil, apperr.Backend("fetch items of %q: %v", col, err)
		}
		for _, v := range vals {
			raw, ok := v.(string)
			if !ok {
				continue
			}
			var d stac.Document
			if err := json.Unmarshal([]byte(raw), &d); err != nil {
				return nil, apperr.Backend("decode item: %v", err)
			}
			docs = append(docs, d)
		}
	}
	return docs, nil
}

func (s *Store) ListCollections(ctx context.Context, limit int, token string) ([]stac.Document, string, error) {
	ids, err := s.rdb.SMembers(ctx, collectionsKey).Result()
	if err != nil {
		return nil, "", apperr.Backend("list collections: %v", err)
	}
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

	out := make([]stac.Document, 0, len(ids))
	for _, id := range ids {
		d, err := s.getJSON(ctx, fmt.Sprintf(collectionKey, id))
		if err != nil {
			if apperr.IsNotFound(err) {
				continue
			}
			return nil, "", err
		}
		out = append(out, d)
	}
	return out, next, nil
}

func (s *Store) FindCollection(ctx context.Context, id string) (stac.Document, error) {
	d, err := s.getJSON(ctx, fmt.Sprintf(collectionKey, id))
	if err != nil {
		if apperr.IsNotFound(err) {
			return nil, apperr.NotFound("collection %q not found", id)
		}
		return nil, err
	}
	return d, nil
}

func (s *Store) CreateCollection(ctx context.Context, doc stac.Document) error {
	id := stac.DocID(doc)
	if id == "" {
		return apperr.Client("collection is missing an id")
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return apperr.Backend("encode collection: %v", err)
	}
	ok, err := s.rdb.SetNX(ctx, fmt.Sprintf(collectionKey, id), raw, 0).Result()
	if err != nil {
		return apperr.Backend("store collection: %v", err)
	}
	if !ok {
		return apperr.Conflict("collection %q already exists", id)
	}
	if err := s.rdb.SAdd(ctx, collectionsKey, id).Err(); err != nil {
		return apperr.Backend("index collection: %v", err)
	}
	return nil
}

func (s *Store) UpdateCollection(ctx context.Context, doc stac.Document) error {
	id := stac.DocID(doc)
	exists, err := s.rdb.Exists(ctx, fmt.Sprintf(collectionKey, id)).Result()
	if err != nil {
		return apperr.Backend("check collection: %v", err)
	}
	if exists == 0 {
		return apperr.NotFound("collection %q not found", id)
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return apperr.Backend("encode collection: %v", err)
	}
	if err := s.rdb.Set(ctx, fmt.Sprintf(collectionKey, id), raw, 0).Err(); err != nil {
		return apperr.Backend("store collection: %v", err)
	}
	return nil
}

func (s *Store) DeleteCollection(ctx context.Context, id string) error {
	removed, err := s.rdb.SRem(ctx, collectionsKey, id).Result()
	if err != nil {
		return apperr.Backend("deindex collection: %v", err)
	}
	if removed == 0 {
		return apperr.NotFound("collection %q not found", id)
	}
	itemIDs, err := s.rdb.SMembers(ctx, fmt.Sprintf(itemsKey, id)).Result()
	if err != nil {
		return apperr.Backend("list items of %q: %v", id, err)
	}
	keys := []string{fmt.Sprintf(collectionKey, id), fmt.Sprintf(itemsKey, id)}
	for _, it := range itemIDs {
		keys = append(keys, fmt.Sprintf(itemKey, id, it))
	}
	if err := s.rdb.Del(ctx, keys...).Err(); err != nil {
		return apperr.Backend("delete collection %q: %v", id, err)
	}
	return nil
}

func (s *Store) GetItem(ctx context.Context, collectionID, itemID string) (stac.Document, error) {
	d, err := s.getJSON(ctx, fmt.Sprintf(itemKey, collectionID, itemID))
	if err != nil {
		if apperr.IsNotFound(err) {
			return nil, apperr.NotFound("item %q not found in collection %q", itemID, collectionID)
		}
		return nil, err
	}
	return d, nil
}

func (s *Store) CreateItem(ctx context.Context, doc stac.Document) error {
	id, col := stac.DocID(doc), stac.DocCollection(doc)
	if id == "" || col == "" {
		return apperr.Client("item needs id and collection")
	}
	if _, err := s.FindCollection(ctx, col); err != nil {
		return err
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return apperr.Backend("encode item: %v", err)
	}
	ok, err := s.rdb.SetNX(ctx, fmt.Sprintf(itemKey, col, id), raw, 0).Result()
	if err != nil {
		return apperr.Backend("store item: %v", err)
	}
	if !ok {
		return apperr.Conflict("item %q already exists in collection %q", id, col)
	}
	if err := s.rdb.SAdd(ctx, fmt.Sprintf(itemsKey, col), id).Err(); err != nil {
		return apperr.Backend("index item: %v", err)
	}
	return nil
}

func (s *Store) UpdateItem(ctx context.Context, doc stac.Document) error {
	id, col := stac.DocID(doc), stac.DocCollection(doc)
	exists, err := s.rdb.Exists(ctx, fmt.Sprintf(itemKey, col, id)).Result()
	if err != nil {
		return apperr.Backend("check item: %v", err)
	}
	if exists == 0 {
		return apperr.NotFound("item %q not found in collection %q", id, col)
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return apperr.Backend("encode item: %v", err)
	}
	if err := s.rdb.Set(ctx, fmt.Sprintf(itemKey, col, id), raw, 0).Err(); err != nil {
		return apperr.Backend("store item: %v", err)
	}
	return nil
}

func (s *Store) DeleteItem(ctx context.Context, collectionID, itemID string) error {
	removed, err := s.rdb.SRem(ctx, fmt.Sprintf(itemsKey, collectionID), itemID).Result()
	if err != nil {
		return apperr.Backend("deindex item: %v", err)
	}
	if removed == 0 {
		return apperr.NotFound("item %q not found in collection %q", itemID, collectionID)
	}
	if err := s.rdb.Del(ctx, fmt.Sprintf(itemKey, collectionID, itemID)).Err(); err != nil {
		return apperr.Backend("delete item: %v", err)
	}
	return nil
}

// BulkInsert pipelines the writes. Items pointing at a missing collection
// are skipped rather than failing the batch.
func (s *Store) BulkInsert(ctx context.Context, docs []stac.Document) (int, error) {
	known := map[string]bool{}
	pipe := s.rdb.Pipeline()
	var n int
	for _, doc := range docs {
		id, col := stac.DocID(doc), stac.DocCollection(doc)
		if id == "" || col == "" {
			continue
		}
		ok, checked := known[col]
		if !checked {
			exists, err := s.rdb.Exists(ctx, fmt.Sprintf(collectionKey, col)).Result()
			if err != nil {
				return 0, apperr.Backend("check collection: %v", err)
			}
			ok = exists > 0
			known[col] = ok
		}
		if !ok {
			continue
		}
		raw, err := json.Marshal(doc)
		if err != nil {
			return 0, apperr.Backend("encode item: %v", err)
		}
		pipe.Set(ctx, fmt.Sprintf(itemKey, col, id), raw, 0)
		pipe.SAdd(ctx, fmt.Sprintf(itemsKey, col), id)
		n++
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, apperr.Backend("bulk insert: %v", err)
	}
	return n, nil
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.rdb.Ping(ctx).Err(); err != nil {
		return apperr.Backend("redis ping: %v", err)
	}
	return nil
}

func (s *Store) getJSON(ctx context.Context, key string) (stac.Document, error) {
	raw, err := s.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, apperr.NotFound("key %q not found", key)
	}
	if err != nil {
		return nil, apperr.Backend("fetch %q: %v", key, err)
	}
	var d stac.Document
	if err := json.Unmarshal([]byte(raw), &d); err != nil {
		return nil, apperr.Backend("decode %q: %v", key, err)
	}
	return d, nil
}
