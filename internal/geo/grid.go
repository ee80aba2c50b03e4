package geo

import (
	"fmt"
	"math"

	h3 "github.com/uber/h3-go/v4"
)

const geohashBase32 = "0123456789bcdefghjkmnpqrstuvwxyz"

// GeohashKey encodes a position to a geohash cell id at the given precision
// (1..12 characters).
func GeohashKey(lng, lat float64, precision int) string {
	if precision < 1 {
		precision = 1
	}
	if precision > 12 {
		precision = 12
	}

	latMin, latMax := -90.0, 90.0
	lngMin, lngMax := -180.0, 180.0

	out := make([]byte, 0, precision)
	bit := 0
	ch := 0
	even := true

	for len(out) < precision {
		if even {
			mid := (lngMin + lngMax) / 2
			if lng >= mid {
				ch |= 1 << (4 - bit)
				lngMin = mid
			} else {
				lngMax = mid
			}
		} else {
			mid := (latMin + latMax) / 2
			if lat >= mid {
				ch |= 1 << (4 - bit)
				latMin = mid
			} else {
				latMax = mid
			}
		}
		even = !even
		if bit < 4 {
			bit++
		} else {
			out = append(out, geohashBase32[ch])
			bit = 0
			ch = 0
		}
	}
	return string(out)
}

// GeotileKey returns the "z/x/y" web-mercator tile containing the position,
// matching the key format of geotile grid buckets.
func GeotileKey(lng, lat float64, zoom int) string {
	if zoom < 0 {
		zoom = 0
	}
	if zoom > 29 {
		zoom = 29
	}
	n := float64(int64(1) << uint(zoom))

	x := int64((lng + 180) / 360 * n)
	latRad := lat * math.Pi / 180
	y := int64((1 - math.Log(math.Tan(latRad)+1/math.Cos(latRad))/math.Pi) / 2 * n)

	max := int64(n) - 1
	if x < 0 {
		x = 0
	} else if x > max {
		x = max
	}
	if y < 0 {
		y = 0
	} else if y > max {
		y = max
	}
	return fmt.Sprintf("%d/%d/%d", zoom, x, y)
}

// GeohexKey returns the H3 cell containing the position at the given
// resolution (0..15).
func GeohexKey(lng, lat float64, res int) (string, error) {
	if res < 0 || res > 15 {
		return "", fmt.Errorf("h3 resolution %d out of range [0,15]", res)
	}
	cell, err := h3.LatLngToCell(h3.LatLng{Lat: lat, Lng: lng}, res)
	if err != nil {
		return "", fmt.Errorf("h3 cell: %w", err)
	}
	return cell.String(), nil
}
