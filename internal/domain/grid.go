package domain

import (
	"errors"
	"fmt"
	"math"
)

// PointIndex addresses a single grid cell.
type PointIndex struct {
	Row int
	Col int
}

// RegionIndex addresses an inclusive rectangle of grid cells, expressed in
// the grid's native ordering (rows follow descending latitude).
type RegionIndex struct {
	RowStart int
	RowEnd   int
	ColStart int
	ColEnd   int
}

// Rows returns the number of rows the region spans.
func (r RegionIndex) Rows() int { return r.RowEnd - r.RowStart + 1 }

// Cols returns the number of columns the region spans.
func (r RegionIndex) Cols() int { return r.ColEnd - r.ColStart + 1 }

// Grid holds the fixed latitude/longitude axes of the archive. Axes are
// validated on construction and immutable afterwards.
type Grid struct {
	lats []float64 // descending
	lons []float64 // ascending, 0–360
}

// NewGrid builds a Grid from raw axis values, validating the archive's
// ordering conventions: latitude strictly descending, longitude strictly
// ascending.
func NewGrid(lats, lons []float64) (*Grid, error) {
	if len(lats) == 0 || len(lons) == 0 {
		return nil, errors.New("grid axes must be non-empty")
	}
	for i := 1; i < len(lats); i++ {
		if lats[i] >= lats[i-1] {
			return nil, fmt.Errorf("latitude axis not descending at index %d (%v >= %v)", i, lats[i], lats[i-1])
		}
	}
	for j := 1; j < len(lons); j++ {
		if lons[j] <= lons[j-1] {
			return nil, fmt.Errorf("longitude axis not ascending at index %d (%v <= %v)", j, lons[j], lons[j-1])
		}
	}
	return &Grid{lats: lats, lons: lons}, nil
}

// Rows returns the latitude axis length.
func (g *Grid) Rows() int { return len(g.lats) }

// Cols returns the longitude axis length.
func (g *Grid) Cols() int { return len(g.lons) }

// Lat returns the latitude of row i.
func (g *Grid) Lat(i int) float64 { return g.lats[i] }

// Lon returns the longitude of column j.
func (g *Grid) Lon(j int) float64 { return g.lons[j] }

// LatSlice returns the latitudes covered by a region, in grid order.
func (g *Grid) LatSlice(r RegionIndex) []float64 {
	out := make([]float64, 0, r.Rows())
	for i := r.RowStart; i <= r.RowEnd; i++ {
		out = append(out, g.lats[i])
	}
	return out
}

// LonSlice returns the longitudes covered by a region, in grid order.
func (g *Grid) LonSlice(r RegionIndex) []float64 {
	out := make([]float64, 0, r.Cols())
	for j := r.ColStart; j <= r.ColEnd; j++ {
		out = append(out, g.lons[j])
	}
	return out
}

// NearestIndex resolves a query point to the grid cell whose center is
// closest under independent per-axis search. The longitude must already be
// in the grid's 0–360 convention. Coordinates that cannot address any cell
// (NaN, |lat| > 90, lon outside [0, 360]) are an error, never clamped.
func (g *Grid) NearestIndex(lat, lon float64) (PointIndex, error) {
	if math.IsNaN(lat) || math.IsNaN(lon) || lat < -90 || lat > 90 {
		return PointIndex{}, fmt.Errorf("latitude %v out of range", lat)
	}
	if lon < 0 || lon > 360 {
		return PointIndex{}, fmt.Errorf("longitude %v outside 0-360 convention", lon)
	}
	return PointIndex{Row: argminAbs(g.lats, lat), Col: argminAbs(g.lons, lon)}, nil
}

// RangeIndex returns the smallest contiguous index range covering the box.
// Rows run in the grid's native descending-latitude order: RowStart is the
// northernmost covered row. A box narrower than one cell collapses to the
// nearest cell. Boxes with inverted bounds, or whose normalized longitudes
// straddle the 0/360 seam, are rejected.
func (g *Grid) RangeIndex(minLat, maxLat, minLon, maxLon float64) (RegionIndex, error) {
	if minLat > maxLat {
		return RegionIndex{}, fmt.Errorf("inverted latitude bounds %v..%v", minLat, maxLat)
	}
	if minLon > maxLon {
		return RegionIndex{}, fmt.Errorf("longitude bounds %v..%v cross the 0/360 seam", minLon, maxLon)
	}

	rowStart, rowEnd := -1, -1
	for i, lat := range g.lats {
		if lat > maxLat {
			continue
		}
		if lat < minLat {
			break
		}
		if rowStart < 0 {
			rowStart = i
		}
		rowEnd = i
	}
	if rowStart < 0 {
		// Box falls between two rows; collapse to the nearest one.
		rowStart = argminAbs(g.lats, (minLat+maxLat)/2)
		rowEnd = rowStart
	}

	colStart, colEnd := -1, -1
	for j, lon := range g.lons {
		if lon < minLon {
			continue
		}
		if lon > maxLon {
			break
		}
		if colStart < 0 {
			colStart = j
		}
		colEnd = j
	}
	if colStart < 0 {
		colStart = argminAbs(g.lons, (minLon+maxLon)/2)
		colEnd = colStart
	}

	return RegionIndex{RowStart: rowStart, RowEnd: rowEnd, ColStart: colStart, ColEnd: colEnd}, nil
}

// argminAbs returns the index of the value closest to target. Exact ties
// resolve to the lower index.
func argminAbs(axis []float64, target float64) int {
	best := 0
	bestDist := math.Abs(axis[0] - target)
	for i := 1; i < len(axis); i++ {
		d := math.Abs(axis[i] - target)
		if d < bestDist {
			best = i
			bestDist = d
		}
	}
	return best
}

// NormalizeLon converts a longitude from the -180..180 convention to the
// grid's 0–360 convention. Already-normalized values pass through unchanged.
func NormalizeLon(lon float64) float64 {
	l := math.Mod(lon, 360)
	if l < 0 {
		l += 360
	}
	return l
}
