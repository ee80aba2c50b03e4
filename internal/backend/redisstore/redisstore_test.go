package redisstore

import (
	"context"
	"fmt"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/mohammed-shakir/stac-search-api/internal/apperr"
	"github.com/mohammed-shakir/stac-search-api/internal/backend"
	"github.com/mohammed-shakir/stac-search-api/internal/query"
	"github.com/mohammed-shakir/stac-search-api/internal/stac"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return New(rdb)
}

func TestPing(t *testing.T) {
	s := newTestStore(t)
	if err := s.Ping(context.Background()); err != nil {
		t.Fatal(err)
	}
}

func TestCollectionCRUD(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	col := stac.Document{"id": "s2", "type": "Collection", "title": "Sentinel 2"}
	if err := s.CreateCollection(ctx, col); err != nil {
		t.Fatal(err)
	}
	if err := s.CreateCollection(ctx, col); apperr.KindOf(err) != apperr.KindConflict {
		t.Errorf("duplicate create = %v, want conflict", err)
	}

	got, err := s.FindCollection(ctx, "s2")
	if err != nil {
		t.Fatal(err)
	}
	if got["title"] != "Sentinel 2" {
		t.Errorf("title = %v", got["title"])
	}
	if _, err := s.FindCollection(ctx, "nope"); !apperr.IsNotFound(err) {
		t.Errorf("missing = %v, want not found", err)
	}

	col["title"] = "updated"
	if err := s.UpdateCollection(ctx, col); err != nil {
		t.Fatal(err)
	}
	got, _ = s.FindCollection(ctx, "s2")
	if got["title"] != "updated" {
		t.Errorf("title after update = %v", got["title"])
	}

	if err := s.DeleteCollection(ctx, "s2"); err != nil {
		t.Fatal(err)
	}
	if err := s.DeleteCollection(ctx, "s2"); !apperr.IsNotFound(err) {
		t.Errorf("second delete = %v, want not found", err)
	}
}

func TestItemCRUDAndSearch(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.CreateCollection(ctx, stac.Document{"id": "s2", "type": "Collection"}); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 4; i++ {
		err := s.CreateItem(ctx, stac.Document{
			"type":       "Feature",
			"id":         fmt.Sprintf("it-%d", i),
			"collection": "s2",
			"geometry":   map[string]any{"type": "Point", "coordinates": []any{float64(i * 20), 0.0}},
			"properties": map[string]any{"datetime": fmt.Sprintf("2022-0%d-01T00:00:00Z", i+1)},
		})
		if err != nil {
			t.Fatal(err)
		}
	}

	if err := s.CreateItem(ctx, stac.Document{"id": "it-0", "collection": "s2"}); apperr.KindOf(err) != apperr.KindConflict {
		t.Errorf("duplicate item = %v, want conflict", err)
	}
	if err := s.CreateItem(ctx, stac.Document{"id": "x", "collection": "ghost"}); !apperr.IsNotFound(err) {
		t.Errorf("missing collection = %v, want not found", err)
	}

	b := query.NewBuilder()
	if err := b.ApplyBBoxFilter([]float64{-5, -5, 25, 5}); err != nil {
		t.Fatal(err)
	}
	res, err := s.ExecuteSearch(ctx, b.Predicate(), backend.SearchOptions{Limit: 10})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Items) != 2 {
		t.Fatalf("bbox matched %d items, want 2", len(res.Items))
	}

	if err := s.DeleteItem(ctx, "s2", "it-3"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.GetItem(ctx, "s2", "it-3"); !apperr.IsNotFound(err) {
		t.Errorf("get after delete = %v, want not found", err)
	}
}

func TestExecuteAggregation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.CreateCollection(ctx, stac.Document{"id": "s2"}); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		err := s.CreateItem(ctx, stac.Document{
			"id":         fmt.Sprintf("it-%d", i),
			"collection": "s2",
			"properties": map[string]any{"datetime": "2022-05-01T00:00:00Z"},
		})
		if err != nil {
			t.Fatal(err)
		}
	}

	raw, err := s.ExecuteAggregation(ctx, backend.AggregationQuery{
		Names:     []string{"total_count", "datetime_frequency"},
		Predicate: query.Predicate{Kind: query.KindAll},
	})
	if err != nil {
		t.Fatal(err)
	}
	if raw.TotalCount == nil || *raw.TotalCount != 3 {
		t.Errorf("total = %v, want 3", raw.TotalCount)
	}
	fr := raw.Frequencies["datetime_frequency"]
	if len(fr.Buckets) != 1 || fr.Buckets[0].Key != "2022-05" || fr.Buckets[0].Count != 3 {
		t.Errorf("datetime buckets = %+v", fr.Buckets)
	}
}

func TestBulkInsert(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	if err := s.CreateCollection(ctx, stac.Document{"id": "s2"}); err != nil {
		t.Fatal(err)
	}

	n, err := s.BulkInsert(ctx, []stac.Document{
		{"id": "a", "collection": "s2"},
		{"id": "b", "collection": "s2"},
		{"id": "c", "collection": "ghost"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("inserted = %d, want 2", n)
	}
	if _, err := s.GetItem(ctx, "s2", "b"); err != nil {
		t.Errorf("bulk item missing: %v", err)
	}
}
