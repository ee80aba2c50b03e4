package backend

import (
	"fmt"
	"testing"

	"github.com/mohammed-shakir/stac-search-api/internal/query"
	"github.com/mohammed-shakir/stac-search-api/internal/search"
	"github.com/mohammed-shakir/stac-search-api/internal/stac"
)

func testDocs(n int) []stac.Document {
	docs := make([]stac.Document, 0, n)
	for i := 0; i < n; i++ {
		docs = append(docs, stac.Document{
			"type":       "Feature",
			"id":         fmt.Sprintf("item-%02d", i),
			"collection": "c1",
			"geometry": map[string]any{
				"type":        "Point",
				"coordinates": []any{float64(i), float64(i)},
			},
			"properties": map[string]any{
				"datetime": fmt.Sprintf("2020-%02d-01T00:00:00Z", i%12+1),
				"platform": fmt.Sprintf("p%d", i%3),
			},
		})
	}
	return docs
}

func TestRunSearchPagesThroughEverything(t *testing.T) {
	docs := testDocs(7)
	all := query.Predicate{Kind: query.KindAll}

	var seen []string
	token := ""
	pages := 0
	for {
		res, err := RunSearch(docs, all, SearchOptions{Limit: 3, Token: token})
		if err != nil {
			t.Fatal(err)
		}
		if res.Matched == nil || *res.Matched != 7 {
			t.Fatalf("matched = %v, want 7", res.Matched)
		}
		for _, d := range res.Items {
			seen = append(seen, stac.DocID(d))
		}
		pages++
		if res.NextToken == "" {
			break
		}
		token = res.NextToken
	}

	if pages != 3 {
		t.Errorf("pages = %d, want 3", pages)
	}
	if len(seen) != 7 {
		t.Fatalf("saw %d items: %v", len(seen), seen)
	}
	uniq := map[string]bool{}
	for _, id := range seen {
		if uniq[id] {
			t.Errorf("item %q returned twice", id)
		}
		uniq[id] = true
	}
}

func TestRunSearchSortDescending(t *testing.T) {
	docs := testDocs(5)
	res, err := RunSearch(docs, query.Predicate{Kind: query.KindAll}, SearchOptions{
		Limit: 5,
		Sort:  []search.SortKey{{Field: "id", Direction: "desc"}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if got := stac.DocID(res.Items[0]); got != "item-04" {
		t.Errorf("first item = %q, want item-04", got)
	}
	if got := stac.DocID(res.Items[4]); got != "item-00" {
		t.Errorf("last item = %q, want item-00", got)
	}
	if res.NextToken != "" {
		t.Error("exact fit should not produce a next token")
	}
}

func TestRunSearchSortStableAcrossTies(t *testing.T) {
	// every item shares a platform value within its bucket; the id
	// tie-break must keep paging deterministic
	docs := testDocs(6)
	sort := []search.SortKey{{Field: "properties.platform", Direction: "asc"}}

	first, err := RunSearch(docs, query.Predicate{Kind: query.KindAll}, SearchOptions{Limit: 2, Sort: sort})
	if err != nil {
		t.Fatal(err)
	}
	second, err := RunSearch(docs, query.Predicate{Kind: query.KindAll}, SearchOptions{Limit: 2, Sort: sort, Token: first.NextToken})
	if err != nil {
		t.Fatal(err)
	}
	for _, d := range second.Items {
		for _, e := range first.Items {
			if stac.DocID(d) == stac.DocID(e) {
				t.Errorf("item %q appeared on both pages", stac.DocID(d))
			}
		}
	}
}

func TestRunSearchBadToken(t *testing.T) {
	_, err := RunSearch(testDocs(3), query.Predicate{Kind: query.KindAll}, SearchOptions{Limit: 2, Token: "garbage"})
	if err == nil {
		t.Fatal("corrupt token should fail the search")
	}
}

func TestRunAggregationScalars(t *testing.T) {
	docs := testDocs(5)
	raw, err := RunAggregation(docs, AggregationQuery{
		Names:     []string{"total_count", "datetime_min", "datetime_max"},
		Predicate: query.Predicate{Kind: query.KindAll},
	})
	if err != nil {
		t.Fatal(err)
	}
	if raw.TotalCount == nil || *raw.TotalCount != 5 {
		t.Errorf("total = %v", raw.TotalCount)
	}
	if raw.DatetimeMin == nil || *raw.DatetimeMin != "2020-01-01T00:00:00Z" {
		t.Errorf("min = %v", raw.DatetimeMin)
	}
	if raw.DatetimeMax == nil || *raw.DatetimeMax != "2020-05-01T00:00:00Z" {
		t.Errorf("max = %v", raw.DatetimeMax)
	}
}

func TestRunAggregationFrequencyOverflow(t *testing.T) {
	// 12 distinct platforms, one doc each, plus one platform with 3 docs:
	// the cap of 10 buckets forces an overflow
	var docs []stac.Document
	for i := 0; i < 12; i++ {
		docs = append(docs, stac.Document{
			"id":         fmt.Sprintf("u%d", i),
			"properties": map[string]any{"platform": fmt.Sprintf("plat-%02d", i)},
		})
	}
	for i := 0; i < 3; i++ {
		docs = append(docs, stac.Document{
			"id":         fmt.Sprintf("big%d", i),
			"properties": map[string]any{"platform": "plat-top"},
		})
	}

	raw, err := RunAggregation(docs, AggregationQuery{
		Names:     []string{"platform_frequency"},
		Predicate: query.Predicate{Kind: query.KindAll},
	})
	if err != nil {
		t.Fatal(err)
	}
	fr := raw.Frequencies["platform_frequency"]
	if len(fr.Buckets) != 10 {
		t.Fatalf("buckets = %d, want 10", len(fr.Buckets))
	}
	if fr.Buckets[0].Key != "plat-top" || fr.Buckets[0].Count != 3 {
		t.Errorf("top bucket = %+v", fr.Buckets[0])
	}
	if fr.Overflow != 3 {
		t.Errorf("overflow = %d, want 3", fr.Overflow)
	}
}

func TestRunAggregationMonthHistogram(t *testing.T) {
	docs := []stac.Document{
		{"id": "a", "properties": map[string]any{"datetime": "2020-01-05T00:00:00Z"}},
		{"id": "b", "properties": map[string]any{"datetime": "2020-01-20T00:00:00Z"}},
		{"id": "c", "properties": map[string]any{"datetime": "2020-03-01T00:00:00Z"}},
	}
	raw, err := RunAggregation(docs, AggregationQuery{
		Names:     []string{"datetime_frequency"},
		Predicate: query.Predicate{Kind: query.KindAll},
	})
	if err != nil {
		t.Fatal(err)
	}
	fr := raw.Frequencies["datetime_frequency"]
	if len(fr.Buckets) != 2 {
		t.Fatalf("buckets = %+v", fr.Buckets)
	}
	if fr.Buckets[0].Key != "2020-01" || fr.Buckets[0].Count != 2 {
		t.Errorf("top month = %+v", fr.Buckets[0])
	}
}

func TestRunAggregationGrid(t *testing.T) {
	docs := []stac.Document{
		{"id": "a", "geometry": map[string]any{"type": "Point", "coordinates": []any{10.0, 55.0}}},
		{"id": "b", "geometry": map[string]any{"type": "Point", "coordinates": []any{10.0, 55.0}}},
		{"id": "c", "geometry": map[string]any{"type": "Point", "coordinates": []any{-70.0, -30.0}}},
	}
	raw, err := RunAggregation(docs, AggregationQuery{
		Names:     []string{"centroid_geohash_grid_frequency"},
		Predicate: query.Predicate{Kind: query.KindAll},
		Precision: map[string]int{"centroid_geohash_grid_frequency": 2},
	})
	if err != nil {
		t.Fatal(err)
	}
	fr := raw.Frequencies["centroid_geohash_grid_frequency"]
	if len(fr.Buckets) != 2 {
		t.Fatalf("buckets = %+v", fr.Buckets)
	}
	if fr.Buckets[0].Count != 2 {
		t.Errorf("co-located points should share a cell: %+v", fr.Buckets)
	}
}

func TestRunAggregationOverFilteredSet(t *testing.T) {
	docs := testDocs(6)
	raw, err := RunAggregation(docs, AggregationQuery{
		Names: []string{"total_count"},
		Predicate: query.Predicate{
			Kind:   query.KindTerms,
			Field:  "properties.platform",
			Values: []any{"p0"},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	if raw.TotalCount == nil || *raw.TotalCount != 2 {
		t.Errorf("filtered total = %v, want 2", raw.TotalCount)
	}
}
