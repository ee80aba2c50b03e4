// Package stac defines the wire-level data model of the API: links, item
// collections, aggregations and the fields-extension projection.
package stac

import "strings"

// Document is a raw STAC item or collection as stored by a backend.
type Document = map[string]any

type Link struct {
	Rel    string         `json:"rel"`
	Type   string         `json:"type,omitempty"`
	Title  string         `json:"title,omitempty"`
	Href   string         `json:"href"`
	Method string         `json:"method,omitempty"`
	Body   map[string]any `json:"body,omitempty"`
}

const (
	MediaTypeJSON    = "application/json"
	MediaTypeGeoJSON = "application/geo+json"
)

type ItemCollection struct {
	Type        string     `json:"type"`
	Features    []Document `json:"features"`
	Links       []Link     `json:"links"`
	NumReturned int        `json:"numReturned"`
	NumMatched  *int       `json:"numMatched"`
}

type Bucket struct {
	Key       any      `json:"key"`
	DataType  string   `json:"data_type"`
	Frequency int      `json:"frequency"`
	From      *float64 `json:"from,omitempty"`
	To        *float64 `json:"to,omitempty"`
}

type Aggregation struct {
	Name     string   `json:"name"`
	DataType string   `json:"data_type"`
	Value    any      `json:"value,omitempty"`
	Buckets  []Bucket `json:"buckets,omitempty"`
	Overflow *int     `json:"overflow,omitempty"`
}

type AggregationCollection struct {
	Type         string        `json:"type"`
	Aggregations []Aggregation `json:"aggregations"`
	Links        []Link        `json:"links"`
}

type Collections struct {
	Collections []Document `json:"collections"`
	Links       []Link     `json:"links"`
}

// Lookup resolves a dot path ("properties.eo:cloud_cover") in a document.
func Lookup(doc Document, path string) (any, bool) {
	if doc == nil {
		return nil, false
	}
	parts := strings.Split(path, ".")
	var cur any = doc
	for _, p := range parts {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[p]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// DocID returns the "id" field of a document, or "".
func DocID(doc Document) string {
	if v, ok := doc["id"].(string); ok {
		return v
	}
	return ""
}

// DocCollection returns the "collection" field of a document, or "".
func DocCollection(doc Document) string {
	if v, ok := doc["collection"].(string); ok {
		return v
	}
	return ""
}
