// Package aggregation validates aggregation requests against the
// collection allow-list and shapes the backend's raw output into the
// response format.
package aggregation

import (
	"context"

	"github.com/mohammed-shakir/stac-search-api/internal/apperr"
	"github.com/mohammed-shakir/stac-search-api/internal/backend"
	"github.com/mohammed-shakir/stac-search-api/internal/query"
	"github.com/mohammed-shakir/stac-search-api/internal/stac"
)

// DefaultNames are computed when a request asks for no aggregation
// explicitly.
var DefaultNames = []string{"total_count", "datetime_max", "datetime_min"}

type Compiler struct {
	store backend.Backend
}

func New(store backend.Backend) *Compiler { return &Compiler{store: store} }

// SupportedNames resolves the allow-list: a collection's declared
// "aggregations" when one collection is in scope and declares any,
// otherwise the catalog-wide set. An unknown collection id is an error.
func (c *Compiler) SupportedNames(ctx context.Context, collectionID string) ([]string, error) {
	if collectionID == "" {
		return backend.AllNames, nil
	}
	col, err := c.store.FindCollection(ctx, collectionID)
	if err != nil {
		return nil, err
	}
	declared := declaredNames(col)
	if len(declared) == 0 {
		return backend.AllNames, nil
	}
	return declared, nil
}

// declaredNames reads a collection's "aggregations" field; entries may be
// plain names or objects with a "name" key.
func declaredNames(col stac.Document) []string {
	raw, ok := col["aggregations"].([]any)
	if !ok {
		return nil
	}
	var out []string
	for _, e := range raw {
		switch t := e.(type) {
		case string:
			out = append(out, t)
		case map[string]any:
			if n, ok := t["name"].(string); ok {
				out = append(out, n)
			}
		}
	}
	return out
}

// Aggregate validates the requested names and precisions, runs the
// backend and shapes the result. A backend NotFound (an index that does
// not exist yet) yields an empty result rather than an error.
func (c *Compiler) Aggregate(ctx context.Context, collectionID string, names []string, precision map[string]int, p query.Predicate) (*stac.AggregationCollection, error) {
	allowed, err := c.SupportedNames(ctx, collectionID)
	if err != nil {
		return nil, err
	}
	allowedSet := make(map[string]bool, len(allowed))
	for _, n := range allowed {
		allowedSet[n] = true
	}

	if len(names) == 0 {
		names = DefaultNames
	}
	for _, n := range names {
		spec, known := backend.Specs[n]
		if !known || !allowedSet[n] {
			return nil, apperr.Unsupported("aggregation %q is not supported", n)
		}
		if pr, ok := precision[n]; ok {
			if spec.Kind != backend.AggGrid {
				return nil, apperr.Client("aggregation %q does not take a precision", n)
			}
			if pr < spec.MinPrecision || pr > spec.MaxPrecision {
				return nil, apperr.Client("precision %d for %q out of range [%d, %d]",
					pr, n, spec.MinPrecision, spec.MaxPrecision)
			}
		}
	}

	raw, err := c.store.ExecuteAggregation(ctx, backend.AggregationQuery{
		Names:     names,
		Predicate: p,
		Precision: precision,
	})
	if err != nil {
		if apperr.IsNotFound(err) {
			return &stac.AggregationCollection{Type: "AggregationCollection", Aggregations: []stac.Aggregation{}}, nil
		}
		return nil, err
	}

	return shape(names, raw), nil
}

func shape(names []string, raw *backend.RawAggregations) *stac.AggregationCollection {
	out := &stac.AggregationCollection{
		Type:         "AggregationCollection",
		Aggregations: make([]stac.Aggregation, 0, len(names)),
	}
	for _, n := range names {
		spec := backend.Specs[n]
		agg := stac.Aggregation{Name: n, DataType: spec.DataType}
		switch spec.Kind {
		case backend.AggTotalCount:
			v := 0
			if raw.TotalCount != nil {
				v = *raw.TotalCount
			}
			agg.Value = v
		case backend.AggDatetimeMin:
			if raw.DatetimeMin != nil {
				agg.Value = *raw.DatetimeMin
			}
		case backend.AggDatetimeMax:
			if raw.DatetimeMax != nil {
				agg.Value = *raw.DatetimeMax
			}
		default:
			fr := raw.Frequencies[n]
			agg.Buckets = make([]stac.Bucket, 0, len(fr.Buckets))
			for _, b := range fr.Buckets {
				agg.Buckets = append(agg.Buckets, stac.Bucket{
					Key:       b.Key,
					DataType:  bucketDataType(spec),
					Frequency: b.Count,
				})
			}
			if fr.Overflow > 0 {
				ov := fr.Overflow
				agg.Overflow = &ov
			}
		}
		out.Aggregations = append(out.Aggregations, agg)
	}
	return out
}

func bucketDataType(spec backend.AggSpec) string {
	switch spec.Kind {
	case backend.AggNumericHist:
		return "numeric"
	case backend.AggMonthHist:
		return "datetime"
	default:
		return "string"
	}
}

// Describe renders the supported-aggregations listing for the
// /aggregations endpoints.
func (c *Compiler) Describe(ctx context.Context, collectionID string) (*stac.AggregationCollection, error) {
	names, err := c.SupportedNames(ctx, collectionID)
	if err != nil {
		return nil, err
	}
	out := &stac.AggregationCollection{
		Type:         "AggregationCollection",
		Aggregations: make([]stac.Aggregation, 0, len(names)),
	}
	for _, n := range names {
		spec, ok := backend.Specs[n]
		if !ok {
			continue
		}
		out.Aggregations = append(out.Aggregations, stac.Aggregation{Name: n, DataType: spec.DataType})
	}
	return out, nil
}
