package domain

import "strings"

// BoundingBox is a geographic rectangle in the -180..180 longitude
// convention, as loaded from the city list.
type BoundingBox struct {
	MinLat float64
	MaxLat float64
	MinLon float64
	MaxLon float64
}

// City is a point of interest from the city list. Lon keeps the list's
// -180..180 convention; grid lookups go through GridLon.
type City struct {
	ID   int64
	Name string
	Lat  float64
	Lon  float64
	Box  *BoundingBox // present only when the list carries bbox columns
}

// GridLon returns the city's longitude in the grid's 0–360 convention.
func (c City) GridLon() float64 {
	return NormalizeLon(c.Lon)
}

// FileName returns the city name in a form safe for artifact file names:
// trimmed, with interior whitespace replaced by underscores.
func (c City) FileName() string {
	return strings.Join(strings.Fields(c.Name), "_")
}
