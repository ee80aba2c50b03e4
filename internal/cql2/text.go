package cql2

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/mohammed-shakir/stac-search-api/internal/geo"
)

// ParseText parses a CQL2-text expression and lowers it to the canonical
// tree shared with CQL2-JSON.
func ParseText(s string) (*Node, error) {
	toks, err := lex(s)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	n, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if !p.eof() {
		return nil, fmt.Errorf("cql2-text: unexpected %q at position %d", p.peek().text, p.peek().pos)
	}
	if err := Validate(n); err != nil {
		return nil, err
	}
	return n, nil
}

type tokKind int

const (
	tokIdent tokKind = iota
	tokNumber
	tokString
	tokOp // = <> < <= > >=
	tokLParen
	tokRParen
	tokComma
)

type token struct {
	kind tokKind
	text string
	pos  int
}

func lex(s string) ([]token, error) {
	var out []token
	i := 0
	for i < len(s) {
		c := s[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c == '(':
			out = append(out, token{tokLParen, "(", i})
			i++
		case c == ')':
			out = append(out, token{tokRParen, ")", i})
			i++
		case c == ',':
			out = append(out, token{tokComma, ",", i})
			i++
		case c == '=':
			out = append(out, token{tokOp, "=", i})
			i++
		case c == '<':
			if i+1 < len(s) && s[i+1] == '>' {
				out = append(out, token{tokOp, "<>", i})
				i += 2
			} else if i+1 < len(s) && s[i+1] == '=' {
				out = append(out, token{tokOp, "<=", i})
				i += 2
			} else {
				out = append(out, token{tokOp, "<", i})
				i++
			}
		case c == '>':
			if i+1 < len(s) && s[i+1] == '=' {
				out = append(out, token{tokOp, ">=", i})
				i += 2
			} else {
				out = append(out, token{tokOp, ">", i})
				i++
			}
		case c == '\'':
			start := i
			i++
			var b strings.Builder
			for {
				if i >= len(s) {
					return nil, fmt.Errorf("cql2-text: unterminated string at position %d", start)
				}
				if s[i] == '\'' {
					if i+1 < len(s) && s[i+1] == '\'' { // escaped quote
						b.WriteByte('\'')
						i += 2
						continue
					}
					i++
					break
				}
				b.WriteByte(s[i])
				i++
			}
			out = append(out, token{tokString, b.String(), start})
		case c == '-' || c == '+' || (c >= '0' && c <= '9'):
			start := i
			i++
			for i < len(s) && (s[i] == '.' || s[i] == 'e' || s[i] == 'E' || s[i] == '-' || s[i] == '+' || (s[i] >= '0' && s[i] <= '9')) {
				i++
			}
			out = append(out, token{tokNumber, s[start:i], start})
		case isIdentStart(c):
			start := i
			for i < len(s) && isIdentPart(s[i]) {
				i++
			}
			out = append(out, token{tokIdent, s[start:i], start})
		default:
			return nil, fmt.Errorf("cql2-text: unexpected character %q at position %d", string(c), i)
		}
	}
	return out, nil
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || c == ':' || c == '.' || (c >= '0' && c <= '9')
}

type parser struct {
	toks []token
	i    int
}

func (p *parser) eof() bool { return p.i >= len(p.toks) }

func (p *parser) peek() token {
	if p.eof() {
		return token{kind: tokIdent, text: "<end>", pos: -1}
	}
	return p.toks[p.i]
}

func (p *parser) next() token {
	t := p.peek()
	p.i++
	return t
}

func (p *parser) acceptKeyword(kw string) bool {
	if !p.eof() && p.toks[p.i].kind == tokIdent && strings.EqualFold(p.toks[p.i].text, kw) {
		p.i++
		return true
	}
	return false
}

func (p *parser) expect(kind tokKind, what string) (token, error) {
	t := p.peek()
	if p.eof() || t.kind != kind {
		return token{}, fmt.Errorf("cql2-text: expected %s, got %q at position %d", what, t.text, t.pos)
	}
	p.i++
	return t, nil
}

func (p *parser) parseOr() (*Node, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	args := []*Node{left}
	for p.acceptKeyword("OR") {
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		args = append(args, right)
	}
	if len(args) == 1 {
		return left, nil
	}
	return &Node{Kind: KindOp, Op: "or", Args: args}, nil
}

func (p *parser) parseAnd() (*Node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	args := []*Node{left}
	for p.acceptKeyword("AND") {
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		args = append(args, right)
	}
	if len(args) == 1 {
		return left, nil
	}
	return &Node{Kind: KindOp, Op: "and", Args: args}, nil
}

func (p *parser) parseUnary() (*Node, error) {
	if p.acceptKeyword("NOT") {
		inner, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &Node{Kind: KindOp, Op: "not", Args: []*Node{inner}}, nil
	}
	if p.peek().kind == tokLParen {
		p.next()
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokRParen, ")"); err != nil {
			return nil, err
		}
		return inner, nil
	}
	return p.parsePredicate()
}

func (p *parser) parsePredicate() (*Node, error) {
	// spatial function
	if !p.eof() && p.peek().kind == tokIdent && strings.EqualFold(p.peek().text, "S_INTERSECTS") {
		p.next()
		if _, err := p.expect(tokLParen, "("); err != nil {
			return nil, err
		}
		prop, err := p.parseOperand()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokComma, ","); err != nil {
			return nil, err
		}
		g, err := p.parseOperand()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokRParen, ")"); err != nil {
			return nil, err
		}
		return &Node{Kind: KindOp, Op: "s_intersects", Args: []*Node{prop, g}}, nil
	}

	left, err := p.parseOperand()
	if err != nil {
		return nil, err
	}

	negate := false
	if p.acceptKeyword("IS") {
		if p.acceptKeyword("NOT") {
			negate = true
		}
		if !p.acceptKeyword("NULL") {
			return nil, fmt.Errorf("cql2-text: expected NULL at position %d", p.peek().pos)
		}
		n := &Node{Kind: KindOp, Op: "isNull", Args: []*Node{left}}
		if negate {
			return &Node{Kind: KindOp, Op: "not", Args: []*Node{n}}, nil
		}
		return n, nil
	}

	if p.acceptKeyword("NOT") {
		negate = true
	}

	switch {
	case p.acceptKeyword("LIKE"):
		pat, err := p.parseOperand()
		if err != nil {
			return nil, err
		}
		return maybeNot(&Node{Kind: KindOp, Op: "like", Args: []*Node{left, pat}}, negate), nil

	case p.acceptKeyword("BETWEEN"):
		low, err := p.parseOperand()
		if err != nil {
			return nil, err
		}
		if !p.acceptKeyword("AND") {
			return nil, fmt.Errorf("cql2-text: expected AND in BETWEEN at position %d", p.peek().pos)
		}
		high, err := p.parseOperand()
		if err != nil {
			return nil, err
		}
		return maybeNot(&Node{Kind: KindOp, Op: "between", Args: []*Node{left, low, high}}, negate), nil

	case p.acceptKeyword("IN"):
		if _, err := p.expect(tokLParen, "("); err != nil {
			return nil, err
		}
		var list []any
		for {
			item, err := p.parseOperand()
			if err != nil {
				return nil, err
			}
			if item.Kind != KindLiteral {
				return nil, fmt.Errorf("cql2-text: IN list items must be literals")
			}
			list = append(list, item.Literal)
			if p.peek().kind == tokComma {
				p.next()
				continue
			}
			break
		}
		if _, err := p.expect(tokRParen, ")"); err != nil {
			return nil, err
		}
		lst := &Node{Kind: KindList, List: list}
		return maybeNot(&Node{Kind: KindOp, Op: "in", Args: []*Node{left, lst}}, negate), nil
	}

	if negate {
		return nil, fmt.Errorf("cql2-text: dangling NOT at position %d", p.peek().pos)
	}

	opTok, err := p.expect(tokOp, "comparison operator")
	if err != nil {
		return nil, err
	}
	right, err := p.parseOperand()
	if err != nil {
		return nil, err
	}
	return &Node{Kind: KindOp, Op: opTok.text, Args: []*Node{left, right}}, nil
}

func maybeNot(n *Node, negate bool) *Node {
	if negate {
		return &Node{Kind: KindOp, Op: "not", Args: []*Node{n}}
	}
	return n
}

var wktTypes = map[string]string{
	"POINT":        "Point",
	"LINESTRING":   "LineString",
	"POLYGON":      "Polygon",
	"MULTIPOLYGON": "MultiPolygon",
}

func (p *parser) parseOperand() (*Node, error) {
	t := p.peek()
	switch t.kind {
	case tokString:
		p.next()
		return &Node{Kind: KindLiteral, Literal: t.text}, nil
	case tokNumber:
		p.next()
		f, err := strconv.ParseFloat(t.text, 64)
		if err != nil {
			return nil, fmt.Errorf("cql2-text: bad number %q at position %d", t.text, t.pos)
		}
		return &Node{Kind: KindLiteral, Literal: f}, nil
	case tokIdent:
		upper := strings.ToUpper(t.text)
		if upper == "TRUE" || upper == "FALSE" {
			p.next()
			return &Node{Kind: KindLiteral, Literal: upper == "TRUE"}, nil
		}
		if gjType, ok := wktTypes[upper]; ok && p.i+1 < len(p.toks) && p.toks[p.i+1].kind == tokLParen {
			p.next()
			return p.parseWKT(gjType)
		}
		p.next()
		return &Node{Kind: KindProperty, Property: t.text}, nil
	default:
		return nil, fmt.Errorf("cql2-text: expected operand, got %q at position %d", t.text, t.pos)
	}
}

// parseWKT reads the parenthesized coordinate body of a WKT literal and
// produces the equivalent GeoJSON geometry.
func (p *parser) parseWKT(gjType string) (*Node, error) {
	var coords any
	var err error
	switch gjType {
	case "Point":
		if _, err = p.expect(tokLParen, "("); err != nil {
			return nil, err
		}
		coords, err = p.parseWKTPosition()
		if err != nil {
			return nil, err
		}
		if _, err = p.expect(tokRParen, ")"); err != nil {
			return nil, err
		}
	case "LineString":
		coords, err = p.parseWKTGroup(0)
	case "Polygon":
		coords, err = p.parseWKTGroup(1)
	case "MultiPolygon":
		coords, err = p.parseWKTGroup(2)
	}
	if err != nil {
		return nil, err
	}
	g := geo.Geometry{Type: gjType, Coordinates: coords}
	return &Node{Kind: KindGeometry, Geometry: &g}, nil
}

// parseWKTGroup parses "( ... )" where nest counts the paren levels still
// inside this group before positions; positions are "x y" pairs separated
// by commas.
func (p *parser) parseWKTGroup(nest int) (any, error) {
	if _, err := p.expect(tokLParen, "("); err != nil {
		return nil, err
	}
	var out []any
	for {
		if nest > 0 {
			sub, err := p.parseWKTGroup(nest - 1)
			if err != nil {
				return nil, err
			}
			out = append(out, sub)
		} else {
			pos, err := p.parseWKTPosition()
			if err != nil {
				return nil, err
			}
			out = append(out, pos)
		}
		if p.peek().kind == tokComma {
			p.next()
			continue
		}
		break
	}
	if _, err := p.expect(tokRParen, ")"); err != nil {
		return nil, err
	}
	return out, nil
}

func (p *parser) parseWKTPosition() (any, error) {
	xt, err := p.expect(tokNumber, "coordinate")
	if err != nil {
		return nil, err
	}
	yt, err := p.expect(tokNumber, "coordinate")
	if err != nil {
		return nil, err
	}
	x, err := strconv.ParseFloat(xt.text, 64)
	if err != nil {
		return nil, fmt.Errorf("cql2-text: bad coordinate %q", xt.text)
	}
	y, err := strconv.ParseFloat(yt.text, 64)
	if err != nil {
		return nil, fmt.Errorf("cql2-text: bad coordinate %q", yt.text)
	}
	return []any{x, y}, nil
}
