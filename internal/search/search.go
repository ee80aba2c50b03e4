// Package search parses and normalizes search and aggregation requests
// from both the GET query-string form and the POST JSON body form into a
// single canonical request struct.
package search

import (
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"

	"github.com/mohammed-shakir/stac-search-api/internal/apperr"
	"github.com/mohammed-shakir/stac-search-api/internal/cql2"
	"github.com/mohammed-shakir/stac-search-api/internal/stac"
)

// SortKey is one compiled sort clause.
type SortKey struct {
	Field     string
	Direction string // "asc" or "desc"
}

// Request is the canonical search request after parsing either wire form.
type Request struct {
	Collections []string
	IDs         []string
	BBox        []float64
	Intersects  map[string]any
	Datetime    *DateRange
	Limit       int
	Token       string
	Sort        []SortKey
	Fields      *stac.FieldSelection
	Query       map[string]map[string]any
	Filter      *cql2.Node
}

// DateRange is the normalized datetime filter. Both bounds are always
// considered; a nil bound means that side is open.
type DateRange struct {
	GTE *string
	LTE *string
}

// Limits carries the configured paging bounds into the parser.
type Limits struct {
	Default int
	Max     int
}

// body is the POST /search JSON shape.
type body struct {
	Collections []string                  `json:"collections"`
	IDs         []string                  `json:"ids"`
	BBox        []float64                 `json:"bbox"`
	Intersects  map[string]any            `json:"intersects"`
	Datetime    string                    `json:"datetime"`
	Limit       *int                      `json:"limit"`
	Token       string                    `json:"token"`
	SortBy      []bodySortClause          `json:"sortby"`
	Fields      *bodyFields               `json:"fields"`
	Query       map[string]map[string]any `json:"query"`
	FilterLang  string                    `json:"filter-lang"`
	Filter      json.RawMessage           `json:"filter"`
}

type bodySortClause struct {
	Field     string `json:"field"`
	Direction string `json:"direction"`
}

type bodyFields struct {
	Include []string `json:"include"`
	Exclude []string `json:"exclude"`
}

// DecodeBody parses a POST /search request body.
func DecodeBody(r io.Reader, lim Limits) (*Request, error) {
	var b body
	if err := json.NewDecoder(r).Decode(&b); err != nil {
		return nil, apperr.ClientWrap(err, "invalid search body")
	}

	req := &Request{
		Collections: b.Collections,
		IDs:         b.IDs,
		Intersects:  b.Intersects,
		Token:       b.Token,
		Query:       b.Query,
	}

	if len(b.BBox) > 0 {
		req.BBox = b.BBox
	}
	if b.Datetime != "" {
		dr, err := NormalizeDatetime(b.Datetime)
		if err != nil {
			return nil, err
		}
		req.Datetime = dr
	}
	limit, err := normalizeLimit(b.Limit, lim)
	if err != nil {
		return nil, err
	}
	req.Limit = limit

	for _, c := range b.SortBy {
		dir := strings.ToLower(c.Direction)
		if dir == "" {
			dir = "asc"
		}
		if dir != "asc" && dir != "desc" {
			return nil, apperr.Client("invalid sort direction %q", c.Direction)
		}
		if c.Field == "" {
			return nil, apperr.Client("sort clause missing field")
		}
		req.Sort = append(req.Sort, SortKey{Field: c.Field, Direction: dir})
	}

	if b.Fields != nil {
		req.Fields = &stac.FieldSelection{
			Include: toSet(b.Fields.Include),
			Exclude: toSet(b.Fields.Exclude),
		}
	}

	if len(b.Filter) > 0 && string(b.Filter) != "null" {
		lang := b.FilterLang
		if lang == "" {
			lang = "cql2-json"
		}
		node, err := parseFilter(string(b.Filter), lang, true)
		if err != nil {
			return nil, err
		}
		req.Filter = node
	}

	return validate(req)
}

// ParseGet parses GET /search query parameters.
func ParseGet(q url.Values, lim Limits) (*Request, error) {
	req := &Request{
		Collections: splitCSV(q.Get("collections")),
		IDs:         splitCSV(q.Get("ids")),
		Token:       q.Get("token"),
	}

	if raw := q.Get("bbox"); raw != "" {
		bbox, err := parseBBoxCSV(raw)
		if err != nil {
			return nil, err
		}
		req.BBox = bbox
	}

	if raw := q.Get("intersects"); raw != "" {
		var g map[string]any
		if err := json.Unmarshal([]byte(raw), &g); err != nil {
			return nil, apperr.ClientWrap(err, "invalid intersects geometry")
		}
		req.Intersects = g
	}

	if raw := q.Get("datetime"); raw != "" {
		dr, err := NormalizeDatetime(raw)
		if err != nil {
			return nil, err
		}
		req.Datetime = dr
	}

	var limitArg *int
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return nil, apperr.Client("invalid limit %q", raw)
		}
		limitArg = &n
	}
	limit, err := normalizeLimit(limitArg, lim)
	if err != nil {
		return nil, err
	}
	req.Limit = limit

	if raw := q.Get("sortby"); raw != "" {
		sort, err := ParseSortBy(raw)
		if err != nil {
			return nil, err
		}
		req.Sort = sort
	}

	if raw := q.Get("fields"); raw != "" {
		req.Fields = parseFieldsCSV(raw)
	}

	if raw := q.Get("query"); raw != "" {
		var m map[string]map[string]any
		if err := json.Unmarshal([]byte(raw), &m); err != nil {
			return nil, apperr.ClientWrap(err, "invalid query parameter")
		}
		req.Query = m
	}

	if raw := q.Get("filter"); raw != "" {
		lang := q.Get("filter-lang")
		if lang == "" {
			lang = "cql2-text"
		}
		node, err := parseFilter(raw, lang, false)
		if err != nil {
			return nil, err
		}
		req.Filter = node
	}

	return validate(req)
}

func validate(req *Request) (*Request, error) {
	if len(req.BBox) > 0 && req.Intersects != nil {
		return nil, apperr.Client("bbox and intersects are mutually exclusive")
	}
	return req, nil
}

// parseFilter dispatches on filter-lang. POST defaults to cql2-json, GET
// to cql2-text; either endpoint accepts both languages explicitly.
func parseFilter(raw, lang string, isJSONBody bool) (*cql2.Node, error) {
	switch lang {
	case "cql2-json":
		node, err := cql2.ParseJSON([]byte(raw))
		if err != nil {
			return nil, apperr.ClientWrap(err, "invalid cql2-json filter")
		}
		return node, nil
	case "cql2-text":
		if isJSONBody {
			// the body carries the text expression as a JSON string
			var s string
			if err := json.Unmarshal([]byte(raw), &s); err != nil {
				return nil, apperr.Client("cql2-text filter must be a string")
			}
			raw = s
		}
		node, err := cql2.ParseText(raw)
		if err != nil {
			return nil, apperr.ClientWrap(err, "invalid cql2-text filter")
		}
		return node, nil
	default:
		return nil, apperr.Client("unsupported filter-lang %q", lang)
	}
}

// NormalizeDatetime parses an RFC 3339 instant or interval into a
// {gte, lte} pair. A single instant becomes a closed degenerate interval;
// ".." or an empty side leaves that bound open.
func NormalizeDatetime(raw string) (*DateRange, error) {
	parts := strings.Split(raw, "/")
	switch len(parts) {
	case 1:
		v := strings.TrimSpace(parts[0])
		if v == "" || v == ".." {
			return nil, apperr.Client("invalid datetime %q", raw)
		}
		return &DateRange{GTE: &v, LTE: &v}, nil
	case 2:
		start := strings.TrimSpace(parts[0])
		end := strings.TrimSpace(parts[1])
		dr := &DateRange{}
		if start != "" && start != ".." {
			dr.GTE = &start
		}
		if end != "" && end != ".." {
			dr.LTE = &end
		}
		if dr.GTE == nil && dr.LTE == nil {
			return nil, apperr.Client("datetime interval cannot be open on both ends")
		}
		if dr.GTE != nil && dr.LTE != nil && *dr.GTE > *dr.LTE {
			return nil, apperr.Client("datetime interval start is after end")
		}
		return dr, nil
	default:
		return nil, apperr.Client("invalid datetime interval %q", raw)
	}
}

// ParseSortBy parses the GET form "field,-other": a leading "-" means
// descending, an optional leading "+" means ascending.
func ParseSortBy(raw string) ([]SortKey, error) {
	var out []SortKey
	for _, f := range splitCSV(raw) {
		dir := "asc"
		switch {
		case strings.HasPrefix(f, "-"):
			dir = "desc"
			f = f[1:]
		case strings.HasPrefix(f, "+"):
			f = f[1:]
		}
		if f == "" {
			return nil, apperr.Client("empty sortby field")
		}
		out = append(out, SortKey{Field: f, Direction: dir})
	}
	return out, nil
}

func parseFieldsCSV(raw string) *stac.FieldSelection {
	sel := &stac.FieldSelection{
		Include: map[string]struct{}{},
		Exclude: map[string]struct{}{},
	}
	for _, f := range splitCSV(raw) {
		switch {
		case strings.HasPrefix(f, "-"):
			sel.Exclude[f[1:]] = struct{}{}
		case strings.HasPrefix(f, "+"):
			sel.Include[f[1:]] = struct{}{}
		default:
			sel.Include[f] = struct{}{}
		}
	}
	return sel
}

func parseBBoxCSV(raw string) ([]float64, error) {
	parts := splitCSV(raw)
	out := make([]float64, 0, len(parts))
	for _, p := range parts {
		f, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return nil, apperr.Client("invalid bbox value %q", p)
		}
		out = append(out, f)
	}
	return out, nil
}

func normalizeLimit(arg *int, lim Limits) (int, error) {
	if arg == nil {
		return lim.Default, nil
	}
	n := *arg
	if n <= 0 {
		return 0, apperr.Client("limit must be positive, got %d", n)
	}
	if lim.Max > 0 && n > lim.Max {
		n = lim.Max
	}
	return n, nil
}

func splitCSV(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, p := range strings.Split(raw, ",") {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func toSet(items []string) map[string]struct{} {
	if len(items) == 0 {
		return nil
	}
	s := make(map[string]struct{}, len(items))
	for _, it := range items {
		s[it] = struct{}{}
	}
	return s
}

// String renders a DateRange for diagnostics.
func (d *DateRange) String() string {
	g, l := "..", ".."
	if d.GTE != nil {
		g = *d.GTE
	}
	if d.LTE != nil {
		l = *d.LTE
	}
	return fmt.Sprintf("%s/%s", g, l)
}
