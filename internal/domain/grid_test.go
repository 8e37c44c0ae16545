package domain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hwer-lab/era5-extract/internal/domain"
)

func testGrid(t *testing.T) *domain.Grid {
	t.Helper()
	g, err := domain.NewGrid([]float64{10, 0, -10}, []float64{0, 90, 180, 270})
	require.NoError(t, err)
	return g
}

func TestNewGrid_RejectsBadAxes(t *testing.T) {
	_, err := domain.NewGrid(nil, []float64{0, 1})
	assert.Error(t, err)

	_, err = domain.NewGrid([]float64{0, 10}, []float64{0, 1}) // ascending lats
	assert.Error(t, err)

	_, err = domain.NewGrid([]float64{10, 0}, []float64{90, 0}) // descending lons
	assert.Error(t, err)
}

func TestGrid_NearestIndex(t *testing.T) {
	g := testGrid(t)

	// City at (2, -10): lon normalizes to 350, whose closest column is 270
	// (distance 80, versus 350 to 0). Latitude 2 is closest to row 0-value.
	idx, err := g.NearestIndex(2, domain.NormalizeLon(-10))
	require.NoError(t, err)
	assert.Equal(t, domain.PointIndex{Row: 1, Col: 3}, idx)

	// Exact midpoint ties resolve to the lower index.
	idx, err = g.NearestIndex(5, 45)
	require.NoError(t, err)
	assert.Equal(t, domain.PointIndex{Row: 0, Col: 0}, idx)
}

func TestGrid_NearestIndex_OutOfRange(t *testing.T) {
	g := testGrid(t)

	_, err := g.NearestIndex(91, 10)
	assert.Error(t, err)

	// Callers must normalize longitude first; raw negative values are rejected,
	// never wrapped.
	_, err = g.NearestIndex(0, -10)
	assert.Error(t, err)
}

func TestNormalizeLon(t *testing.T) {
	assert.InDelta(t, 350, domain.NormalizeLon(-10), 1e-9)
	assert.InDelta(t, 330, domain.NormalizeLon(-30), 1e-9)
	assert.InDelta(t, 330, domain.NormalizeLon(330), 1e-9)
	// Idempotent: renormalizing a normalized value is a no-op.
	assert.Equal(t, domain.NormalizeLon(-30), domain.NormalizeLon(domain.NormalizeLon(-30)))
	assert.InDelta(t, 0, domain.NormalizeLon(360), 1e-9)
}

func TestNormalizedLonsShareIndex(t *testing.T) {
	g := testGrid(t)

	a, err := g.NearestIndex(0, domain.NormalizeLon(-30))
	require.NoError(t, err)
	b, err := g.NearestIndex(0, domain.NormalizeLon(330))
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestGrid_RangeIndex(t *testing.T) {
	g := testGrid(t)

	// Covers the two northern rows and the middle two columns. RowStart is the
	// northernmost row because the latitude axis descends.
	r, err := g.RangeIndex(-2, 11, 80, 190)
	require.NoError(t, err)
	assert.Equal(t, domain.RegionIndex{RowStart: 0, RowEnd: 1, ColStart: 1, ColEnd: 2}, r)
	assert.Equal(t, 2, r.Rows())
	assert.Equal(t, 2, r.Cols())
	assert.Equal(t, []float64{10, 0}, g.LatSlice(r))
	assert.Equal(t, []float64{90, 180}, g.LonSlice(r))
}

func TestGrid_RangeIndex_CollapsesToNearestCell(t *testing.T) {
	g := testGrid(t)

	// Box narrower than the grid spacing contains no cell center.
	r, err := g.RangeIndex(3, 4, 100, 110)
	require.NoError(t, err)
	assert.Equal(t, domain.RegionIndex{RowStart: 1, RowEnd: 1, ColStart: 1, ColEnd: 1}, r)
}

func TestGrid_RangeIndex_Malformed(t *testing.T) {
	g := testGrid(t)

	_, err := g.RangeIndex(5, -5, 0, 90)
	assert.Error(t, err)

	// A box whose normalized longitudes straddle 0/360 cannot be expressed as
	// one contiguous column range.
	_, err = g.RangeIndex(-5, 5, 350, 10)
	assert.Error(t, err)
}
