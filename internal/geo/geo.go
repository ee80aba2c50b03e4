// Package geo holds the minimal geometry support the search pipeline needs:
// GeoJSON decoding, bbox validation, intersection tests and centroid
// extraction for grid bucketing. No CRS handling beyond EPSG:4326.
package geo

import (
	"encoding/json"
	"fmt"
	"math"
)

// Rect is a 2D bounding box in lon/lat order.
type Rect struct {
	MinX, MinY, MaxX, MaxY float64
}

func (r Rect) Intersects(o Rect) bool {
	return r.MinX <= o.MaxX && o.MinX <= r.MaxX && r.MinY <= o.MaxY && o.MinY <= r.MaxY
}

// ValidateBBox checks arity and orientation and normalizes a 6-value box to
// 2D by dropping the altitude pair (indices 0,1,3,4).
func ValidateBBox(bbox []float64) ([]float64, error) {
	switch len(bbox) {
	case 4:
	case 6:
		bbox = []float64{bbox[0], bbox[1], bbox[3], bbox[4]}
	default:
		return nil, fmt.Errorf("bbox must have 4 or 6 values, got %d", len(bbox))
	}
	for _, v := range bbox {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("bbox values must be finite")
		}
	}
	if bbox[1] > bbox[3] {
		return nil, fmt.Errorf("bbox south latitude %v exceeds north latitude %v", bbox[1], bbox[3])
	}
	return bbox, nil
}

func BBoxRect(bbox []float64) Rect {
	return Rect{MinX: bbox[0], MinY: bbox[1], MaxX: bbox[2], MaxY: bbox[3]}
}

// BBoxPolygon converts a 4-value bbox to a closed polygon ring.
func BBoxPolygon(bbox []float64) [][][]float64 {
	return [][][]float64{{
		{bbox[0], bbox[1]},
		{bbox[2], bbox[1]},
		{bbox[2], bbox[3]},
		{bbox[0], bbox[3]},
		{bbox[0], bbox[1]},
	}}
}

// Geometry is a decoded GeoJSON geometry. Coordinates keeps the raw nested
// number structure from the JSON document.
type Geometry struct {
	Type        string     `json:"type"`
	Coordinates any        `json:"coordinates,omitempty"`
	Geometries  []Geometry `json:"geometries,omitempty"`
}

var geometryTypes = map[string]bool{
	"Point":              true,
	"MultiPoint":         true,
	"LineString":         true,
	"MultiLineString":    true,
	"Polygon":            true,
	"MultiPolygon":       true,
	"GeometryCollection": true,
}

// Decode accepts a map (already-unmarshalled JSON) or raw JSON bytes and
// rejects anything that is not a bare geometry.
func Decode(v any) (Geometry, error) {
	var raw []byte
	switch t := v.(type) {
	case []byte:
		raw = t
	case json.RawMessage:
		raw = t
	case string:
		raw = []byte(t)
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return Geometry{}, fmt.Errorf("encode geometry: %w", err)
		}
		raw = b
	}

	var g Geometry
	if err := json.Unmarshal(raw, &g); err != nil {
		return Geometry{}, fmt.Errorf("parse geometry: %w", err)
	}
	if g.Type == "Feature" || g.Type == "FeatureCollection" {
		return Geometry{}, fmt.Errorf("expected a GeoJSON geometry, not %s", g.Type)
	}
	if !geometryTypes[g.Type] {
		return Geometry{}, fmt.Errorf("unsupported GeoJSON type %q", g.Type)
	}
	if g.Type != "GeometryCollection" && g.Coordinates == nil {
		return Geometry{}, fmt.Errorf("geometry %s has no coordinates", g.Type)
	}
	return g, nil
}

// BBox computes the bounding rect over every position in the geometry.
func (g Geometry) BBox() (Rect, bool) {
	r := Rect{MinX: math.Inf(1), MinY: math.Inf(1), MaxX: math.Inf(-1), MaxY: math.Inf(-1)}
	found := false
	visit := func(x, y float64) {
		found = true
		r.MinX = math.Min(r.MinX, x)
		r.MinY = math.Min(r.MinY, y)
		r.MaxX = math.Max(r.MaxX, x)
		r.MaxY = math.Max(r.MaxY, y)
	}
	walkPositions(g, visit)
	return r, found
}

// Centroid returns the center of the geometry's bounding rect. Good enough
// for grid-frequency bucketing, which only needs a representative point.
func (g Geometry) Centroid() (lng, lat float64, ok bool) {
	r, found := g.BBox()
	if !found {
		return 0, 0, false
	}
	return (r.MinX + r.MaxX) / 2, (r.MinY + r.MaxY) / 2, true
}

// Intersects reports whether the two geometries intersect. Bounding rects
// decide the general case; a Point against a Polygon is tested exactly.
func Intersects(a, b Geometry) bool {
	if p, ok := asPoint(a); ok {
		if poly, ok := asPolygonRings(b); ok {
			return pointInPolygon(p[0], p[1], poly)
		}
	}
	if p, ok := asPoint(b); ok {
		if poly, ok := asPolygonRings(a); ok {
			return pointInPolygon(p[0], p[1], poly)
		}
	}
	ra, okA := a.BBox()
	rb, okB := b.BBox()
	if !okA || !okB {
		return false
	}
	return ra.Intersects(rb)
}

func walkPositions(g Geometry, visit func(x, y float64)) {
	if g.Type == "GeometryCollection" {
		for _, sub := range g.Geometries {
			walkPositions(sub, visit)
		}
		return
	}
	walkCoords(g.Coordinates, visit)
}

func walkCoords(v any, visit func(x, y float64)) {
	arr, ok := v.([]any)
	if !ok || len(arr) == 0 {
		return
	}
	if x, okX := toFloat(arr[0]); okX {
		if len(arr) >= 2 {
			if y, okY := toFloat(arr[1]); okY {
				visit(x, y)
				return
			}
		}
		return
	}
	for _, sub := range arr {
		walkCoords(sub, visit)
	}
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case int:
		return float64(t), true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

func asPoint(g Geometry) ([]float64, bool) {
	if g.Type != "Point" {
		return nil, false
	}
	arr, ok := g.Coordinates.([]any)
	if !ok || len(arr) < 2 {
		return nil, false
	}
	x, okX := toFloat(arr[0])
	y, okY := toFloat(arr[1])
	if !okX || !okY {
		return nil, false
	}
	return []float64{x, y}, true
}

// asPolygonRings extracts the outer ring of a Polygon (or the first polygon
// of a MultiPolygon).
func asPolygonRings(g Geometry) ([][]float64, bool) {
	var ringsAny any
	switch g.Type {
	case "Polygon":
		ringsAny = g.Coordinates
	case "MultiPolygon":
		arr, ok := g.Coordinates.([]any)
		if !ok || len(arr) == 0 {
			return nil, false
		}
		ringsAny = arr[0]
	default:
		return nil, false
	}
	rings, ok := ringsAny.([]any)
	if !ok || len(rings) == 0 {
		return nil, false
	}
	outer, ok := rings[0].([]any)
	if !ok {
		return nil, false
	}
	ring := make([][]float64, 0, len(outer))
	for _, p := range outer {
		pos, ok := p.([]any)
		if !ok || len(pos) < 2 {
			return nil, false
		}
		x, okX := toFloat(pos[0])
		y, okY := toFloat(pos[1])
		if !okX || !okY {
			return nil, false
		}
		ring = append(ring, []float64{x, y})
	}
	return ring, len(ring) >= 3
}

// ray casting on the outer ring
func pointInPolygon(x, y float64, ring [][]float64) bool {
	inside := false
	n := len(ring)
	j := n - 1
	for i := 0; i < n; i++ {
		xi, yi := ring[i][0], ring[i][1]
		xj, yj := ring[j][0], ring[j][1]
		if (yi > y) != (yj > y) && x < (xj-xi)*(y-yi)/(yj-yi)+xi {
			inside = !inside
		}
		j = i
	}
	return inside
}
