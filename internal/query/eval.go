package query

import (
	"strings"

	"github.com/mohammed-shakir/stac-search-api/internal/geo"
	"github.com/mohammed-shakir/stac-search-api/internal/stac"
)

// Matches evaluates a predicate against one document.
func Matches(p Predicate, doc stac.Document) bool {
	switch p.Kind {
	case KindAll:
		return true
	case KindAnd:
		for _, c := range p.Children {
			if !Matches(c, doc) {
				return false
			}
		}
		return true
	case KindOr:
		for _, c := range p.Children {
			if Matches(c, doc) {
				return true
			}
		}
		return false
	case KindNot:
		return !Matches(p.Children[0], doc)
	case KindTerms:
		v, ok := stac.Lookup(doc, p.Field)
		if !ok {
			return false
		}
		for _, want := range p.Values {
			if equalValues(v, want) {
				return true
			}
		}
		return false
	case KindCompare:
		v, ok := stac.Lookup(doc, p.Field)
		if !ok {
			return false
		}
		return compare(v, p.Op, p.Value)
	case KindRange:
		v, ok := stac.Lookup(doc, p.Field)
		if !ok {
			return false
		}
		s, ok := v.(string)
		if !ok {
			return false
		}
		if p.GTE != nil && s < *p.GTE {
			return false
		}
		if p.LTE != nil && s > *p.LTE {
			return false
		}
		return true
	case KindGeoIntersects:
		raw, ok := stac.Lookup(doc, p.Field)
		if !ok || raw == nil {
			return false
		}
		g, err := geo.Decode(raw)
		if err != nil {
			return false
		}
		return geo.Intersects(g, *p.Geom)
	case KindLike:
		v, ok := stac.Lookup(doc, p.Field)
		if !ok {
			return false
		}
		s, sok := v.(string)
		pat, pok := p.Value.(string)
		if !sok || !pok {
			return false
		}
		return likeMatch(s, pat)
	case KindIsNull:
		v, ok := stac.Lookup(doc, p.Field)
		return !ok || v == nil
	default:
		return false
	}
}

func equalValues(a, b any) bool {
	if af, aok := toNumber(a); aok {
		if bf, bok := toNumber(b); bok {
			return af == bf
		}
		return false
	}
	return a == b
}

func compare(v any, op string, want any) bool {
	if vf, vok := toNumber(v); vok {
		wf, wok := toNumber(want)
		if !wok {
			return false
		}
		return ordered(op, numCmp(vf, wf))
	}
	vs, vok := v.(string)
	ws, wok := want.(string)
	if vok && wok {
		return ordered(op, strings.Compare(vs, ws))
	}
	if vb, vok := v.(bool); vok {
		wb, wok := want.(bool)
		if !wok {
			return false
		}
		switch op {
		case "eq":
			return vb == wb
		case "neq":
			return vb != wb
		}
		return false
	}
	return false
}

func ordered(op string, cmp int) bool {
	switch op {
	case "eq":
		return cmp == 0
	case "neq":
		return cmp != 0
	case "gt":
		return cmp > 0
	case "gte":
		return cmp >= 0
	case "lt":
		return cmp < 0
	case "lte":
		return cmp <= 0
	}
	return false
}

func numCmp(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func toNumber(v any) (float64, bool) {
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

// likeMatch implements SQL LIKE semantics: % matches any run, _ matches a
// single character, backslash escapes the next character.
func likeMatch(s, pattern string) bool {
	return likeAt(s, pattern, 0, 0)
}

func likeAt(s, pat string, si, pi int) bool {
	for pi < len(pat) {
		switch pat[pi] {
		case '%':
			// collapse consecutive wildcards
			for pi < len(pat) && pat[pi] == '%' {
				pi++
			}
			if pi == len(pat) {
				return true
			}
			for i := si; i <= len(s); i++ {
				if likeAt(s, pat, i, pi) {
					return true
				}
			}
			return false
		case '_':
			if si >= len(s) {
				return false
			}
			si++
			pi++
		case '\\':
			pi++
			if pi >= len(pat) {
				return false
			}
			fallthrough
		default:
			if si >= len(s) || s[si] != pat[pi] {
				return false
			}
			si++
			pi++
		}
	}
	return si == len(s)
}
