package stac

import "strings"

// coreFields can never be projected away; clients depend on them to keep a
// feature a valid STAC item.
var coreFields = map[string]bool{
	"id":         true,
	"type":       true,
	"geometry":   true,
	"bbox":       true,
	"collection": true,
	"links":      true,
	"assets":     true,
}

// FieldSelection is an include/exclude field set per the Fields Extension.
// Paths are dotted ("properties.datetime").
type FieldSelection struct {
	Include map[string]struct{}
	Exclude map[string]struct{}
}

// Project applies the selection to a document and returns a new document.
// With a non-empty include set only included paths plus the protected core
// fields survive; excludes are then removed, except core fields.
func Project(doc Document, sel *FieldSelection) Document {
	if sel == nil || (len(sel.Include) == 0 && len(sel.Exclude) == 0) {
		return doc
	}

	var out Document
	if len(sel.Include) > 0 {
		out = Document{}
		for path := range sel.Include {
			copyPath(doc, out, path)
		}
		for f := range coreFields {
			if v, ok := doc[f]; ok {
				out[f] = v
			}
		}
	} else {
		out = make(Document, len(doc))
		for k, v := range doc {
			out[k] = v
		}
	}

	for path := range sel.Exclude {
		if coreFields[path] {
			continue
		}
		deletePath(out, path)
	}
	return out
}

// copyPath copies the value at a dotted path from src into dst, building
// intermediate maps as needed.
func copyPath(src, dst Document, path string) {
	parts := strings.Split(path, ".")
	var curSrc any = src
	for i, p := range parts {
		m, ok := curSrc.(map[string]any)
		if !ok {
			return
		}
		v, ok := m[p]
		if !ok {
			return
		}
		if i == len(parts)-1 {
			setPath(dst, parts, v)
			return
		}
		curSrc = v
	}
}

func setPath(dst Document, parts []string, v any) {
	cur := dst
	for _, p := range parts[:len(parts)-1] {
		next, ok := cur[p].(map[string]any)
		if !ok {
			next = map[string]any{}
			cur[p] = next
		}
		cur = next
	}
	cur[parts[len(parts)-1]] = v
}

func deletePath(dst Document, path string) {
	parts := strings.Split(path, ".")
	cur := dst
	for i, p := range parts {
		if i == len(parts)-1 {
			// shallow copies share nested maps with the source document;
			// clone the map being mutated before deleting from it
			delete(cur, p)
			return
		}
		next, ok := cur[p].(map[string]any)
		if !ok {
			return
		}
		cloned := make(map[string]any, len(next))
		for k, v := range next {
			cloned[k] = v
		}
		cur[p] = cloned
		cur = cloned
	}
}
