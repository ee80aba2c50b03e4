// Package cql2 decodes CQL2 filter expressions. CQL2-JSON is the canonical
// execution form; CQL2-text is lowered to the same tree by the parser in
// text.go and is never evaluated directly.
package cql2

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/mohammed-shakir/stac-search-api/internal/geo"
)

type Kind int

const (
	KindOp Kind = iota
	KindProperty
	KindLiteral
	KindList
	KindGeometry
)

// Node is one vertex of a boolean-predicate tree.
type Node struct {
	Kind     Kind
	Op       string
	Args     []*Node
	Property string
	Literal  any
	List     []any
	Geometry *geo.Geometry
}

// ops accepted in the canonical form, with their required arity (-1 = 2+).
var opArity = map[string]int{
	"and":          -1,
	"or":           -1,
	"not":          1,
	"=":            2,
	"<>":           2,
	"<":            2,
	"<=":           2,
	">":            2,
	">=":           2,
	"like":         2,
	"between":      3,
	"in":           2,
	"isNull":       1,
	"s_intersects": 2,
}

func isBooleanOp(op string) bool {
	return op == "and" || op == "or" || op == "not"
}

// ParseJSON decodes a CQL2-JSON expression and validates operators, arity
// and operand shapes.
func ParseJSON(raw []byte) (*Node, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("cql2-json: %w", err)
	}
	n, err := decodeNode(v)
	if err != nil {
		return nil, err
	}
	if err := Validate(n); err != nil {
		return nil, err
	}
	return n, nil
}

func decodeNode(v any) (*Node, error) {
	switch t := v.(type) {
	case map[string]any:
		if op, ok := t["op"].(string); ok {
			rawArgs, _ := t["args"].([]any)
			args := make([]*Node, 0, len(rawArgs))
			for _, a := range rawArgs {
				an, err := decodeNode(a)
				if err != nil {
					return nil, err
				}
				args = append(args, an)
			}
			return &Node{Kind: KindOp, Op: op, Args: args}, nil
		}
		if p, ok := t["property"].(string); ok {
			return &Node{Kind: KindProperty, Property: p}, nil
		}
		if ts, ok := t["timestamp"].(string); ok {
			return &Node{Kind: KindLiteral, Literal: ts}, nil
		}
		if d, ok := t["date"].(string); ok {
			return &Node{Kind: KindLiteral, Literal: d}, nil
		}
		if _, ok := t["type"]; ok {
			g, err := geo.Decode(t)
			if err != nil {
				return nil, fmt.Errorf("cql2-json: %w", err)
			}
			return &Node{Kind: KindGeometry, Geometry: &g}, nil
		}
		return nil, fmt.Errorf("cql2-json: unrecognized operand object")
	case []any:
		out := make([]any, 0, len(t))
		for _, e := range t {
			out = append(out, normalizeLiteral(e))
		}
		return &Node{Kind: KindList, List: out}, nil
	default:
		return &Node{Kind: KindLiteral, Literal: normalizeLiteral(v)}, nil
	}
}

func normalizeLiteral(v any) any {
	if num, ok := v.(json.Number); ok {
		if f, err := num.Float64(); err == nil {
			return f
		}
	}
	return v
}

// Validate checks operator names, arity and operand shapes over the tree.
func Validate(n *Node) error {
	if n == nil {
		return fmt.Errorf("cql2: empty expression")
	}
	if n.Kind != KindOp {
		return fmt.Errorf("cql2: top-level expression must be an operator")
	}
	return validateOp(n)
}

func validateOp(n *Node) error {
	arity, ok := opArity[n.Op]
	if !ok {
		return fmt.Errorf("cql2: unknown operator %q", n.Op)
	}
	if arity == -1 {
		if len(n.Args) < 2 {
			return fmt.Errorf("cql2: operator %q needs at least 2 arguments", n.Op)
		}
	} else if len(n.Args) != arity {
		return fmt.Errorf("cql2: operator %q needs %d arguments, got %d", n.Op, arity, len(n.Args))
	}

	if isBooleanOp(n.Op) {
		for _, a := range n.Args {
			if a.Kind != KindOp {
				return fmt.Errorf("cql2: operator %q takes boolean sub-expressions", n.Op)
			}
			if err := validateOp(a); err != nil {
				return err
			}
		}
		return nil
	}

	switch n.Op {
	case "s_intersects":
		if n.Args[0].Kind != KindProperty {
			return fmt.Errorf("cql2: s_intersects needs a property as first argument")
		}
		if n.Args[1].Kind != KindGeometry {
			return fmt.Errorf("cql2: s_intersects needs a geometry as second argument")
		}
	case "isNull":
		if n.Args[0].Kind != KindProperty {
			return fmt.Errorf("cql2: isNull needs a property argument")
		}
	case "in":
		if n.Args[0].Kind != KindProperty {
			return fmt.Errorf("cql2: in needs a property as first argument")
		}
		if n.Args[1].Kind != KindList {
			return fmt.Errorf("cql2: in needs a list as second argument")
		}
	case "like":
		if n.Args[0].Kind != KindProperty {
			return fmt.Errorf("cql2: like needs a property as first argument")
		}
		if _, ok := n.Args[1].Literal.(string); n.Args[1].Kind != KindLiteral || !ok {
			return fmt.Errorf("cql2: like needs a string pattern")
		}
	case "between":
		if n.Args[0].Kind != KindProperty {
			return fmt.Errorf("cql2: between needs a property as first argument")
		}
		for _, b := range n.Args[1:] {
			if b.Kind != KindLiteral {
				return fmt.Errorf("cql2: between bounds must be literals")
			}
		}
	default:
		// binary comparison: property on at least one side, no geometry
		hasProp := false
		for _, a := range n.Args {
			switch a.Kind {
			case KindProperty:
				hasProp = true
			case KindGeometry:
				return fmt.Errorf("cql2: operator %q cannot compare a geometry", n.Op)
			case KindOp, KindList:
				return fmt.Errorf("cql2: operator %q takes scalar operands", n.Op)
			}
		}
		if !hasProp {
			return fmt.Errorf("cql2: operator %q needs a property operand", n.Op)
		}
	}
	return nil
}

// MarshalJSON renders the canonical CQL2-JSON encoding of the node.
func (n *Node) MarshalJSON() ([]byte, error) {
	switch n.Kind {
	case KindOp:
		return json.Marshal(struct {
			Op   string  `json:"op"`
			Args []*Node `json:"args"`
		}{n.Op, n.Args})
	case KindProperty:
		return json.Marshal(map[string]string{"property": n.Property})
	case KindList:
		return json.Marshal(n.List)
	case KindGeometry:
		return json.Marshal(n.Geometry)
	default:
		return json.Marshal(n.Literal)
	}
}
