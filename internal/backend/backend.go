// Package backend defines the storage contract for catalog data and the
// shared query machinery (sorting, cursor paging, raw aggregation) that the
// concrete adapters build on.
package backend

import (
	"context"

	"github.com/mohammed-shakir/stac-search-api/internal/query"
	"github.com/mohammed-shakir/stac-search-api/internal/search"
	"github.com/mohammed-shakir/stac-search-api/internal/stac"
)

// SearchOptions carries the paging and ordering part of a search.
type SearchOptions struct {
	Limit int
	Sort  []search.SortKey
	Token string
}

// SearchResult is one page of matching items. Matched is nil when the
// backend cannot count the full result set for this request.
type SearchResult struct {
	Items     []stac.Document
	Matched   *int
	NextToken string
}

// AggregationQuery names the aggregations to compute over the documents
// matched by the predicate. Precision applies to grid aggregations only.
type AggregationQuery struct {
	Names     []string
	Predicate query.Predicate
	Precision map[string]int
}

type FrequencyBucket struct {
	Key   any
	Count int
}

// FrequencyResult holds the top buckets of one distribution plus the
// count of documents that fell outside them.
type FrequencyResult struct {
	Buckets  []FrequencyBucket
	Overflow int
}

// RawAggregations is the backend-shaped aggregation output before the
// compiler renders it into the response format.
type RawAggregations struct {
	TotalCount  *int
	DatetimeMin *string
	DatetimeMax *string
	Frequencies map[string]FrequencyResult
}

// Backend is the storage contract. All methods report failures through
// the apperr taxonomy so handlers can map them to status codes.
type Backend interface {
	ExecuteSearch(ctx context.Context, p query.Predicate, opts SearchOptions) (*SearchResult, error)
	ExecuteAggregation(ctx context.Context, q AggregationQuery) (*RawAggregations, error)

	ListCollections(ctx context.Context, limit int, token string) ([]stac.Document, string, error)
	FindCollection(ctx context.Context, id string) (stac.Document, error)
	CreateCollection(ctx context.Context, doc stac.Document) error
	UpdateCollection(ctx context.Context, doc stac.Document) error
	DeleteCollection(ctx context.Context, id string) error

	GetItem(ctx context.Context, collectionID, itemID string) (stac.Document, error)
	CreateItem(ctx context.Context, doc stac.Document) error
	UpdateItem(ctx context.Context, doc stac.Document) error
	DeleteItem(ctx context.Context, collectionID, itemID string) error
	BulkInsert(ctx context.Context, docs []stac.Document) (int, error)

	Ping(ctx context.Context) error
}
