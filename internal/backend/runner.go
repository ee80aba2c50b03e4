package backend

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/mohammed-shakir/stac-search-api/internal/geo"
	"github.com/mohammed-shakir/stac-search-api/internal/query"
	"github.com/mohammed-shakir/stac-search-api/internal/search"
	"github.com/mohammed-shakir/stac-search-api/internal/stac"
)

// maxFrequencyBuckets caps every distribution; everything past the cap is
// folded into the overflow count.
const maxFrequencyBuckets = 10

// RunSearch evaluates a search over an already-fetched document set. The
// adapters use it after narrowing the candidate set however their store
// allows. Fetches limit+1 to detect a following page and emits a
// continuation token positioned at the last returned item.
func RunSearch(docs []stac.Document, p query.Predicate, opts SearchOptions) (*SearchResult, error) {
	matched := make([]stac.Document, 0, len(docs))
	for _, d := range docs {
		if query.Matches(p, d) {
			matched = append(matched, d)
		}
	}
	total := len(matched)

	effSort := CursorSort(opts.Sort)
	sort.SliceStable(matched, func(i, j int) bool {
		return compareDocs(matched[i], matched[j], effSort) < 0
	})

	if opts.Token != "" {
		cur, err := DecodeToken(opts.Token)
		if err != nil {
			return nil, err
		}
		matched = afterCursor(matched, cur, effSort)
	}

	res := &SearchResult{Matched: &total}
	if len(matched) > opts.Limit {
		page := matched[:opts.Limit]
		token, err := EncodeToken(page[len(page)-1], effSort)
		if err != nil {
			return nil, err
		}
		res.Items = page
		res.NextToken = token
	} else {
		res.Items = matched
	}
	return res, nil
}

// afterCursor drops every document at or before the cursor position under
// the effective sort.
func afterCursor(docs []stac.Document, cur *Cursor, sort []search.SortKey) []stac.Document {
	out := docs[:0:0]
	for _, d := range docs {
		if cursorCompare(d, cur, sort) > 0 {
			out = append(out, d)
		}
	}
	return out
}

func cursorCompare(doc stac.Document, cur *Cursor, sort []search.SortKey) int {
	for i, k := range sort {
		var want any
		if i < len(cur.Sort) {
			want = cur.Sort[i]
		}
		v, _ := stac.Lookup(doc, k.Field)
		c := compareValues(v, want)
		if k.Direction == "desc" {
			c = -c
		}
		if c != 0 {
			return c
		}
	}
	return 0
}

func compareDocs(a, b stac.Document, sort []search.SortKey) int {
	for _, k := range sort {
		av, _ := stac.Lookup(a, k.Field)
		bv, _ := stac.Lookup(b, k.Field)
		c := compareValues(av, bv)
		if k.Direction == "desc" {
			c = -c
		}
		if c != 0 {
			return c
		}
	}
	return 0
}

// compareValues orders mixed-type sort values: nil first, then numbers,
// then everything else by string form.
func compareValues(a, b any) int {
	if a == nil || b == nil {
		switch {
		case a == nil && b == nil:
			return 0
		case a == nil:
			return -1
		default:
			return 1
		}
	}
	af, aok := asFloat(a)
	bf, bok := asFloat(b)
	if aok && bok {
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		default:
			return 0
		}
	}
	return strings.Compare(valueString(a), valueString(b))
}

func asFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	}
	return 0, false
}

func valueString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

// RunAggregation computes the requested aggregations over an
// already-fetched document set.
func RunAggregation(docs []stac.Document, q AggregationQuery) (*RawAggregations, error) {
	matched := make([]stac.Document, 0, len(docs))
	for _, d := range docs {
		if query.Matches(q.Predicate, d) {
			matched = append(matched, d)
		}
	}

	out := &RawAggregations{Frequencies: map[string]FrequencyResult{}}
	for _, name := range q.Names {
		spec, ok := Specs[name]
		if !ok {
			continue
		}
		switch spec.Kind {
		case AggTotalCount:
			n := len(matched)
			out.TotalCount = &n
		case AggDatetimeMin:
			out.DatetimeMin = datetimeBound(matched, spec.Field, true)
		case AggDatetimeMax:
			out.DatetimeMax = datetimeBound(matched, spec.Field, false)
		case AggTerms:
			out.Frequencies[name] = topBuckets(termCounts(matched, spec.Field))
		case AggNumericHist:
			out.Frequencies[name] = topBuckets(histCounts(matched, spec.Field, spec.Interval))
		case AggMonthHist:
			out.Frequencies[name] = topBuckets(monthCounts(matched, spec.Field))
		case AggGrid:
			precision := spec.MinPrecision
			if p, ok := q.Precision[name]; ok {
				precision = p
			}
			fr, err := gridCounts(matched, spec.Grid, precision)
			if err != nil {
				return nil, err
			}
			out.Frequencies[name] = topBuckets(fr)
		}
	}
	return out, nil
}

func datetimeBound(docs []stac.Document, field string, min bool) *string {
	if field == "" {
		field = "properties.datetime"
	}
	var best *string
	for _, d := range docs {
		v, ok := stac.Lookup(d, field)
		if !ok {
			continue
		}
		s, ok := v.(string)
		if !ok || s == "" {
			continue
		}
		if best == nil || (min && s < *best) || (!min && s > *best) {
			v := s
			best = &v
		}
	}
	return best
}

func termCounts(docs []stac.Document, field string) map[any]int {
	counts := map[any]int{}
	for _, d := range docs {
		v, ok := stac.Lookup(d, field)
		if !ok || v == nil {
			continue
		}
		counts[v]++
	}
	return counts
}

func histCounts(docs []stac.Document, field string, interval float64) map[any]int {
	counts := map[any]int{}
	for _, d := range docs {
		v, ok := stac.Lookup(d, field)
		if !ok {
			continue
		}
		f, ok := asFloat(v)
		if !ok {
			continue
		}
		counts[math.Floor(f/interval)*interval]++
	}
	return counts
}

// monthCounts buckets RFC 3339 datetimes by calendar month.
func monthCounts(docs []stac.Document, field string) map[any]int {
	counts := map[any]int{}
	for _, d := range docs {
		v, ok := stac.Lookup(d, field)
		if !ok {
			continue
		}
		s, ok := v.(string)
		if !ok || len(s) < 7 {
			continue
		}
		counts[s[:7]]++
	}
	return counts
}

func gridCounts(docs []stac.Document, grid GridKind, precision int) (map[any]int, error) {
	counts := map[any]int{}
	for _, d := range docs {
		raw, ok := stac.Lookup(d, "geometry")
		if !ok || raw == nil {
			continue
		}
		g, err := geo.Decode(raw)
		if err != nil {
			continue
		}
		lng, lat, ok := g.Centroid()
		if !ok {
			continue
		}
		var key string
		switch grid {
		case GridGeohash:
			key = geo.GeohashKey(lng, lat, precision)
		case GridGeotile:
			key = geo.GeotileKey(lng, lat, precision)
		case GridGeohex:
			k, err := geo.GeohexKey(lng, lat, precision)
			if err != nil {
				return nil, err
			}
			key = k
		}
		counts[key]++
	}
	return counts, nil
}

// topBuckets keeps the most frequent buckets and folds the rest into the
// overflow count. Ties break on the key's string form for determinism.
func topBuckets(counts map[any]int) FrequencyResult {
	buckets := make([]FrequencyBucket, 0, len(counts))
	for k, n := range counts {
		buckets = append(buckets, FrequencyBucket{Key: k, Count: n})
	}
	sort.Slice(buckets, func(i, j int) bool {
		if buckets[i].Count != buckets[j].Count {
			return buckets[i].Count > buckets[j].Count
		}
		return valueString(buckets[i].Key) < valueString(buckets[j].Key)
	})

	var overflow int
	if len(buckets) > maxFrequencyBuckets {
		for _, b := range buckets[maxFrequencyBuckets:] {
			overflow += b.Count
		}
		buckets = buckets[:maxFrequencyBuckets]
	}
	return FrequencyResult{Buckets: buckets, Overflow: overflow}
}
