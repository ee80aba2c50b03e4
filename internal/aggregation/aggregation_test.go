package aggregation

import (
	"context"
	"fmt"
	"testing"

	"github.com/mohammed-shakir/stac-search-api/internal/apperr"
	"github.com/mohammed-shakir/stac-search-api/internal/backend"
	"github.com/mohammed-shakir/stac-search-api/internal/backend/memstore"
	"github.com/mohammed-shakir/stac-search-api/internal/query"
	"github.com/mohammed-shakir/stac-search-api/internal/stac"
)

func seeded(t *testing.T) *memstore.Store {
	t.Helper()
	s := memstore.New()
	ctx := context.Background()
	if err := s.CreateCollection(ctx, stac.Document{"id": "s2"}); err != nil {
		t.Fatal(err)
	}
	if err := s.CreateCollection(ctx, stac.Document{
		"id":           "restricted",
		"aggregations": []any{"total_count", map[string]any{"name": "platform_frequency"}},
	}); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 4; i++ {
		err := s.CreateItem(ctx, stac.Document{
			"id":         fmt.Sprintf("it-%d", i),
			"collection": "s2",
			"geometry":   map[string]any{"type": "Point", "coordinates": []any{10.0, 55.0}},
			"properties": map[string]any{
				"datetime": "2023-02-01T00:00:00Z",
				"platform": "sentinel-2a",
			},
		})
		if err != nil {
			t.Fatal(err)
		}
	}
	return s
}

func all() query.Predicate { return query.Predicate{Kind: query.KindAll} }

func TestAggregateDefaults(t *testing.T) {
	c := New(seeded(t))
	out, err := c.Aggregate(context.Background(), "", nil, nil, all())
	if err != nil {
		t.Fatal(err)
	}
	if out.Type != "AggregationCollection" {
		t.Errorf("type = %q", out.Type)
	}
	if len(out.Aggregations) != len(DefaultNames) {
		t.Fatalf("aggregations = %d, want %d", len(out.Aggregations), len(DefaultNames))
	}
	if out.Aggregations[0].Name != "total_count" || out.Aggregations[0].Value != 4 {
		t.Errorf("total_count = %+v", out.Aggregations[0])
	}
	if out.Aggregations[0].DataType != "integer" {
		t.Errorf("total_count data_type = %q, want integer", out.Aggregations[0].DataType)
	}
}

func TestAggregateUnsupportedName(t *testing.T) {
	c := New(seeded(t))
	_, err := c.Aggregate(context.Background(), "", []string{"bogus_frequency"}, nil, all())
	if apperr.KindOf(err) != apperr.KindUnsupported {
		t.Fatalf("err = %v, want unsupported", err)
	}
}

func TestAggregateCollectionAllowList(t *testing.T) {
	c := New(seeded(t))
	ctx := context.Background()

	// declared on the collection
	if _, err := c.Aggregate(ctx, "restricted", []string{"total_count"}, nil, all()); err != nil {
		t.Fatal(err)
	}
	// supported by the catalog but not declared by this collection
	_, err := c.Aggregate(ctx, "restricted", []string{"datetime_min"}, nil, all())
	if apperr.KindOf(err) != apperr.KindUnsupported {
		t.Fatalf("undeclared aggregation = %v, want unsupported", err)
	}
	// collections without a declaration fall back to the catalog set
	if _, err := c.Aggregate(ctx, "s2", []string{"datetime_min"}, nil, all()); err != nil {
		t.Fatal(err)
	}
	// unknown collection
	if _, err := c.Aggregate(ctx, "ghost", []string{"total_count"}, nil, all()); !apperr.IsNotFound(err) {
		t.Fatalf("unknown collection = %v, want not found", err)
	}
}

func TestAggregatePrecisionBounds(t *testing.T) {
	c := New(seeded(t))
	ctx := context.Background()

	cases := []struct {
		name      string
		agg       string
		precision int
		ok        bool
	}{
		{"geohash below", "centroid_geohash_grid_frequency", 0, false},
		{"geohash min", "centroid_geohash_grid_frequency", 1, true},
		{"geohash max", "centroid_geohash_grid_frequency", 12, true},
		{"geohash above", "centroid_geohash_grid_frequency", 20, false},
		{"geotile max", "centroid_geotile_grid_frequency", 29, true},
		{"geotile above", "centroid_geotile_grid_frequency", 30, false},
		{"geohex max", "centroid_geohex_grid_frequency", 15, true},
		{"geohex above", "centroid_geohex_grid_frequency", 16, false},
		{"grid geohash below", "grid_geohash_frequency", 0, false},
		{"grid geohash min", "grid_geohash_frequency", 1, true},
		{"grid geotile above", "grid_geotile_frequency", 30, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := c.Aggregate(ctx, "", []string{tc.agg}, map[string]int{tc.agg: tc.precision}, all())
			if tc.ok && err != nil {
				t.Fatalf("precision %d: %v", tc.precision, err)
			}
			if !tc.ok {
				if apperr.KindOf(err) != apperr.KindClient {
					t.Fatalf("precision %d = %v, want client error", tc.precision, err)
				}
			}
		})
	}

	// precision on a non-grid aggregation
	_, err := c.Aggregate(ctx, "", []string{"total_count"}, map[string]int{"total_count": 3}, all())
	if apperr.KindOf(err) != apperr.KindClient {
		t.Fatalf("precision on scalar = %v, want client error", err)
	}
}

func TestAggregateShapesBuckets(t *testing.T) {
	c := New(seeded(t))
	out, err := c.Aggregate(context.Background(), "", []string{"platform_frequency", "datetime_frequency"}, nil, all())
	if err != nil {
		t.Fatal(err)
	}

	byName := map[string]stac.Aggregation{}
	for _, a := range out.Aggregations {
		byName[a.Name] = a
	}

	pf := byName["platform_frequency"]
	if pf.DataType != "frequency_distribution" {
		t.Errorf("platform data_type = %q", pf.DataType)
	}
	if len(pf.Buckets) != 1 || pf.Buckets[0].Key != "sentinel-2a" || pf.Buckets[0].Frequency != 4 {
		t.Errorf("platform buckets = %+v", pf.Buckets)
	}
	if pf.Buckets[0].DataType != "string" {
		t.Errorf("bucket data_type = %q", pf.Buckets[0].DataType)
	}

	df := byName["datetime_frequency"]
	if len(df.Buckets) != 1 || df.Buckets[0].Key != "2023-02" || df.Buckets[0].DataType != "datetime" {
		t.Errorf("datetime buckets = %+v", df.Buckets)
	}
}

func TestAggregateGridFrequency(t *testing.T) {
	c := New(seeded(t))
	out, err := c.Aggregate(context.Background(), "", []string{"grid_geohex_frequency"}, nil, all())
	if err != nil {
		t.Fatal(err)
	}
	if len(out.Aggregations) != 1 {
		t.Fatalf("aggregations = %d, want 1", len(out.Aggregations))
	}
	gf := out.Aggregations[0]
	if gf.DataType != "frequency_distribution" {
		t.Errorf("data_type = %q", gf.DataType)
	}
	if len(gf.Buckets) != 1 || gf.Buckets[0].Frequency != 4 {
		t.Errorf("buckets = %+v", gf.Buckets)
	}
}

func TestDescribe(t *testing.T) {
	c := New(seeded(t))
	ctx := context.Background()

	catalog, err := c.Describe(ctx, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(catalog.Aggregations) != len(backend.AllNames) {
		t.Errorf("catalog lists %d aggregations, want %d", len(catalog.Aggregations), len(backend.AllNames))
	}

	restricted, err := c.Describe(ctx, "restricted")
	if err != nil {
		t.Fatal(err)
	}
	if len(restricted.Aggregations) != 2 {
		t.Errorf("restricted lists %d aggregations, want 2", len(restricted.Aggregations))
	}
}
