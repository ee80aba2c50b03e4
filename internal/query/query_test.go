package query

import (
	"testing"

	"github.com/mohammed-shakir/stac-search-api/internal/cql2"
	"github.com/mohammed-shakir/stac-search-api/internal/stac"
)

func item(id, col string, lng, lat float64, props map[string]any) stac.Document {
	if props == nil {
		props = map[string]any{}
	}
	return stac.Document{
		"type":       "Feature",
		"id":         id,
		"collection": col,
		"geometry": map[string]any{
			"type":        "Point",
			"coordinates": []any{lng, lat},
		},
		"properties": props,
	}
}

func TestBuilderIDsAndCollections(t *testing.T) {
	b := NewBuilder()
	b.ApplyIDsFilter([]string{"a", "b"})
	b.ApplyCollectionsFilter([]string{"s2"})
	p := b.Predicate()

	if !Matches(p, item("a", "s2", 0, 0, nil)) {
		t.Error("a/s2 should match")
	}
	if Matches(p, item("c", "s2", 0, 0, nil)) {
		t.Error("c should not match")
	}
	if Matches(p, item("a", "landsat", 0, 0, nil)) {
		t.Error("wrong collection should not match")
	}
}

func TestBuilderEmptyMatchesAll(t *testing.T) {
	p := NewBuilder().Predicate()
	if p.Kind != KindAll {
		t.Fatalf("kind = %v", p.Kind)
	}
	if !Matches(p, item("x", "y", 0, 0, nil)) {
		t.Error("empty predicate should match everything")
	}
}

func TestBBoxFilterSixEqualsFour(t *testing.T) {
	b4 := NewBuilder()
	if err := b4.ApplyBBoxFilter([]float64{-10, -10, 10, 10}); err != nil {
		t.Fatal(err)
	}
	b6 := NewBuilder()
	if err := b6.ApplyBBoxFilter([]float64{-10, -10, 0, 10, 10, 100}); err != nil {
		t.Fatal(err)
	}

	inside := item("in", "c", 5, 5, nil)
	outside := item("out", "c", 50, 5, nil)
	for name, p := range map[string]Predicate{"four": b4.Predicate(), "six": b6.Predicate()} {
		if !Matches(p, inside) {
			t.Errorf("%s: inside point should match", name)
		}
		if Matches(p, outside) {
			t.Errorf("%s: outside point should not match", name)
		}
	}
}

func TestBBoxFilterRejectsInvalid(t *testing.T) {
	if err := NewBuilder().ApplyBBoxFilter([]float64{0, 10, 10, -10}); err == nil {
		t.Error("south above north should be rejected")
	}
	if err := NewBuilder().ApplyBBoxFilter([]float64{0, 1, 2}); err == nil {
		t.Error("arity 3 should be rejected")
	}
}

func TestDatetimeFilter(t *testing.T) {
	gte := "2020-01-01T00:00:00Z"
	lte := "2020-12-31T23:59:59Z"
	p := NewBuilder().ApplyDatetimeFilter(&gte, &lte).Predicate()

	in := item("a", "c", 0, 0, map[string]any{"datetime": "2020-06-15T00:00:00Z"})
	before := item("b", "c", 0, 0, map[string]any{"datetime": "2019-06-15T00:00:00Z"})
	missing := item("d", "c", 0, 0, nil)

	if !Matches(p, in) {
		t.Error("in-range item should match")
	}
	if Matches(p, before) {
		t.Error("earlier item should not match")
	}
	if Matches(p, missing) {
		t.Error("item without datetime should not match")
	}

	openEnd := NewBuilder().ApplyDatetimeFilter(&gte, nil).Predicate()
	if !Matches(openEnd, item("e", "c", 0, 0, map[string]any{"datetime": "2030-01-01T00:00:00Z"})) {
		t.Error("open upper bound should match any later item")
	}
}

func TestStacqlFilter(t *testing.T) {
	b := NewBuilder()
	if err := b.ApplyStacqlFilter("eo:cloud_cover", "lte", 20.0); err != nil {
		t.Fatal(err)
	}
	p := b.Predicate()

	if !Matches(p, item("a", "c", 0, 0, map[string]any{"eo:cloud_cover": 15.0})) {
		t.Error("15 <= 20 should match")
	}
	if Matches(p, item("b", "c", 0, 0, map[string]any{"eo:cloud_cover": 35.0})) {
		t.Error("35 <= 20 should not match")
	}

	if err := NewBuilder().ApplyStacqlFilter("x", "startsWith", "a"); err == nil {
		t.Error("unknown stacql operator should be rejected")
	}
}

func mustText(t *testing.T, s string) *cql2.Node {
	t.Helper()
	n, err := cql2.ParseText(s)
	if err != nil {
		t.Fatalf("ParseText(%q): %v", s, err)
	}
	return n
}

func TestCQL2Filter(t *testing.T) {
	docs := []stac.Document{
		item("a", "s2", 0, 0, map[string]any{"platform": "sentinel-2a", "eo:cloud_cover": 5.0}),
		item("b", "s2", 0, 0, map[string]any{"platform": "sentinel-2b", "eo:cloud_cover": 80.0}),
		item("c", "ls", 0, 0, map[string]any{"platform": "landsat-8"}),
	}

	cases := []struct {
		name string
		expr string
		want []string
	}{
		{"equality", "properties.platform = 'sentinel-2a'", []string{"a"}},
		{"flipped literal first", "20 >= properties.eo:cloud_cover", []string{"a"}},
		{"flipped strict compare", "10 < eo:cloud_cover", []string{"b"}},
		{"flipped equality", "80 = eo:cloud_cover", []string{"b"}},
		{"bare property gets prefixed", "platform = 'landsat-8'", []string{"c"}},
		{"or", "platform = 'sentinel-2a' OR platform = 'landsat-8'", []string{"a", "c"}},
		{"not", "NOT platform = 'sentinel-2a'", []string{"b", "c"}},
		{"like", "platform LIKE 'sentinel%'", []string{"a", "b"}},
		{"like single char", "platform LIKE 'sentinel-2_'", []string{"a", "b"}},
		{"between", "eo:cloud_cover BETWEEN 0 AND 50", []string{"a"}},
		{"in", "platform IN ('landsat-8', 'sentinel-2b')", []string{"b", "c"}},
		{"is null", "eo:cloud_cover IS NULL", []string{"c"}},
		{"is not null", "eo:cloud_cover IS NOT NULL", []string{"a", "b"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			b := NewBuilder()
			if err := b.ApplyCQL2Filter(mustText(t, tc.expr)); err != nil {
				t.Fatal(err)
			}
			p := b.Predicate()
			var got []string
			for _, d := range docs {
				if Matches(p, d) {
					got = append(got, stac.DocID(d))
				}
			}
			if len(got) != len(tc.want) {
				t.Fatalf("matched %v, want %v", got, tc.want)
			}
			for i := range tc.want {
				if got[i] != tc.want[i] {
					t.Fatalf("matched %v, want %v", got, tc.want)
				}
			}
		})
	}
}

func TestCQL2IntersectsFilter(t *testing.T) {
	b := NewBuilder()
	if err := b.ApplyCQL2Filter(mustText(t, "S_INTERSECTS(geometry, POLYGON((0 0, 10 0, 10 10, 0 10, 0 0)))")); err != nil {
		t.Fatal(err)
	}
	p := b.Predicate()

	if !Matches(p, item("in", "c", 5, 5, nil)) {
		t.Error("point inside polygon should match")
	}
	if Matches(p, item("out", "c", 20, 20, nil)) {
		t.Error("point outside polygon should not match")
	}
}
