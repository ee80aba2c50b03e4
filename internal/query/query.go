// Package query is the backend-neutral predicate accumulator. Filters
// compose as a conjunction; a backend adapter compiles or evaluates the
// resulting tree, never this package's callers.
package query

import (
	"fmt"

	"github.com/mohammed-shakir/stac-search-api/internal/apperr"
	"github.com/mohammed-shakir/stac-search-api/internal/cql2"
	"github.com/mohammed-shakir/stac-search-api/internal/geo"
)

type Kind int

const (
	KindAll Kind = iota
	KindAnd
	KindOr
	KindNot
	KindTerms
	KindCompare
	KindRange
	KindGeoIntersects
	KindLike
	KindIsNull
)

// Predicate is one node of the composed boolean filter.
type Predicate struct {
	Kind     Kind
	Field    string
	Op       string // compare: eq neq gt gte lt lte
	Value    any
	Values   []any
	GTE, LTE *string // range bounds, nil = open
	Geom     *geo.Geometry
	Children []Predicate
}

// Builder accumulates filters. Every Apply method composes onto the
// existing conjunction and can be called in any order.
type Builder struct {
	must []Predicate
}

func NewBuilder() *Builder { return &Builder{} }

func (b *Builder) ApplyIDsFilter(ids []string) *Builder {
	if len(ids) == 0 {
		return b
	}
	b.must = append(b.must, termsPredicate("id", ids))
	return b
}

func (b *Builder) ApplyCollectionsFilter(collectionIDs []string) *Builder {
	if len(collectionIDs) == 0 {
		return b
	}
	b.must = append(b.must, termsPredicate("collection", collectionIDs))
	return b
}

// ApplyBBoxFilter validates the box (4 or 6 values, south <= north) and
// filters on geometry intersection with the box polygon.
func (b *Builder) ApplyBBoxFilter(bbox []float64) error {
	norm, err := geo.ValidateBBox(bbox)
	if err != nil {
		return apperr.ClientWrap(err, "invalid bbox")
	}
	g := geo.Geometry{Type: "Polygon", Coordinates: polyCoords(geo.BBoxPolygon(norm))}
	b.must = append(b.must, Predicate{Kind: KindGeoIntersects, Field: "geometry", Geom: &g})
	return nil
}

// ApplyDatetimeFilter takes an already-normalized {gte, lte} pair; a nil
// bound leaves that side open.
func (b *Builder) ApplyDatetimeFilter(gte, lte *string) *Builder {
	if gte == nil && lte == nil {
		return b
	}
	b.must = append(b.must, Predicate{Kind: KindRange, Field: "properties.datetime", GTE: gte, LTE: lte})
	return b
}

func (b *Builder) ApplyIntersectsFilter(g geo.Geometry) *Builder {
	b.must = append(b.must, Predicate{Kind: KindGeoIntersects, Field: "geometry", Geom: &g})
	return b
}

var stacqlOps = map[string]bool{
	"eq": true, "neq": true, "gt": true, "gte": true, "lt": true, "lte": true,
}

// ApplyStacqlFilter adds one legacy structured-query comparison. The field
// is addressed relative to item properties.
func (b *Builder) ApplyStacqlFilter(field, op string, value any) error {
	if !stacqlOps[op] {
		return apperr.Client("unsupported query operator %q", op)
	}
	b.must = append(b.must, Predicate{
		Kind:  KindCompare,
		Field: "properties." + field,
		Op:    op,
		Value: value,
	})
	return nil
}

// ApplyCQL2Filter lowers a validated CQL2 tree into the accumulator's
// native predicate form.
func (b *Builder) ApplyCQL2Filter(n *cql2.Node) error {
	if n == nil {
		return nil
	}
	p, err := fromCQL2(n)
	if err != nil {
		return apperr.ClientWrap(err, "error with cql2 filter")
	}
	b.must = append(b.must, p)
	return nil
}

// Predicate returns the conjunction accumulated so far.
func (b *Builder) Predicate() Predicate {
	switch len(b.must) {
	case 0:
		return Predicate{Kind: KindAll}
	case 1:
		return b.must[0]
	default:
		return Predicate{Kind: KindAnd, Children: b.must}
	}
}

func termsPredicate(field string, values []string) Predicate {
	vs := make([]any, 0, len(values))
	for _, v := range values {
		vs = append(vs, v)
	}
	return Predicate{Kind: KindTerms, Field: field, Values: vs}
}

func polyCoords(rings [][][]float64) any {
	out := make([]any, 0, len(rings))
	for _, ring := range rings {
		r := make([]any, 0, len(ring))
		for _, pos := range ring {
			r = append(r, []any{pos[0], pos[1]})
		}
		out = append(out, r)
	}
	return out
}

var cql2CompareOps = map[string]string{
	"=":  "eq",
	"<>": "neq",
	"<":  "lt",
	"<=": "lte",
	">":  "gt",
	">=": "gte",
}

func fromCQL2(n *cql2.Node) (Predicate, error) {
	switch n.Op {
	case "and", "or":
		kind := KindAnd
		if n.Op == "or" {
			kind = KindOr
		}
		children := make([]Predicate, 0, len(n.Args))
		for _, a := range n.Args {
			c, err := fromCQL2(a)
			if err != nil {
				return Predicate{}, err
			}
			children = append(children, c)
		}
		return Predicate{Kind: kind, Children: children}, nil

	case "not":
		c, err := fromCQL2(n.Args[0])
		if err != nil {
			return Predicate{}, err
		}
		return Predicate{Kind: KindNot, Children: []Predicate{c}}, nil

	case "s_intersects":
		return Predicate{
			Kind:  KindGeoIntersects,
			Field: cqlField(n.Args[0].Property),
			Geom:  n.Args[1].Geometry,
		}, nil

	case "isNull":
		return Predicate{Kind: KindIsNull, Field: cqlField(n.Args[0].Property)}, nil

	case "like":
		return Predicate{
			Kind:  KindLike,
			Field: cqlField(n.Args[0].Property),
			Value: n.Args[1].Literal,
		}, nil

	case "in":
		return Predicate{
			Kind:   KindTerms,
			Field:  cqlField(n.Args[0].Property),
			Values: n.Args[1].List,
		}, nil

	case "between":
		low := n.Args[1].Literal
		high := n.Args[2].Literal
		return Predicate{Kind: KindAnd, Children: []Predicate{
			{Kind: KindCompare, Field: cqlField(n.Args[0].Property), Op: "gte", Value: low},
			{Kind: KindCompare, Field: cqlField(n.Args[0].Property), Op: "lte", Value: high},
		}}, nil

	default:
		if _, ok := cql2CompareOps[n.Op]; !ok {
			return Predicate{}, fmt.Errorf("unknown operator %q", n.Op)
		}
		cmpOp, prop, lit, err := propAndLiteral(n)
		if err != nil {
			return Predicate{}, err
		}
		return Predicate{Kind: KindCompare, Field: cqlField(prop), Op: cql2CompareOps[cmpOp], Value: lit}, nil
	}
}

// propAndLiteral resolves a comparison's operands, flipping the operator
// when the literal is on the left so the property always ends up on the
// left side of the compiled predicate.
func propAndLiteral(n *cql2.Node) (string, string, any, error) {
	a, b := n.Args[0], n.Args[1]
	if a.Kind == cql2.KindProperty && b.Kind == cql2.KindLiteral {
		return n.Op, a.Property, b.Literal, nil
	}
	if b.Kind == cql2.KindProperty && a.Kind == cql2.KindLiteral {
		flipped := map[string]string{"=": "=", "<>": "<>", "<": ">", "<=": ">=", ">": "<", ">=": "<="}
		return flipped[n.Op], b.Property, a.Literal, nil
	}
	return "", "", nil, fmt.Errorf("operator %q needs a property and a literal", n.Op)
}

// top-level STAC fields are addressed as-is; anything else lives under the
// item's properties
var topLevelFields = map[string]bool{
	"id": true, "collection": true, "geometry": true, "bbox": true,
}

func cqlField(name string) string {
	if topLevelFields[name] {
		return name
	}
	if name == "datetime" {
		return "properties.datetime"
	}
	if len(name) > len("properties.") && name[:len("properties.")] == "properties." {
		return name
	}
	return "properties." + name
}
