package extract

import (
	"fmt"

	"github.com/hwer-lab/era5-extract/internal/domain"
)

// PointIndices precomputes the nearest grid cell for every city, preserving
// city order. It runs once per run, before any timestamp is touched; the
// per-timestep loops reuse the result, which is what keeps index cost
// O(cities) instead of O(cities × timestamps).
//
// A city whose coordinate cannot be resolved is a fatal error naming the
// city — indices are never wrapped or clamped silently.
func PointIndices(g *domain.Grid, cities []domain.City) ([]domain.PointIndex, error) {
	out := make([]domain.PointIndex, len(cities))
	for i, c := range cities {
		idx, err := g.NearestIndex(c.Lat, c.GridLon())
		if err != nil {
			return nil, fmt.Errorf("city %d (%s): %w", c.ID, c.Name, err)
		}
		out[i] = idx
	}
	return out, nil
}

// regionTarget pairs a city with its precomputed index range.
type regionTarget struct {
	pos    int // position in the run's city slice / result slice
	city   domain.City
	region domain.RegionIndex
}

// regionIndices precomputes the index range for every city with a usable
// bounding box. Unlike point mode, a bad box is recoverable: the city gets a
// failed Result and the rest of the run proceeds.
func regionIndices(g *domain.Grid, cities []domain.City, results []Result) []regionTarget {
	targets := make([]regionTarget, 0, len(cities))
	for i, c := range cities {
		if c.Box == nil {
			results[i].Err = fmt.Errorf("city %d (%s): no bounding box in city list", c.ID, c.Name)
			continue
		}
		r, err := g.RangeIndex(
			c.Box.MinLat, c.Box.MaxLat,
			domain.NormalizeLon(c.Box.MinLon), domain.NormalizeLon(c.Box.MaxLon),
		)
		if err != nil {
			results[i].Err = fmt.Errorf("city %d (%s): %w", c.ID, c.Name, err)
			continue
		}
		targets = append(targets, regionTarget{pos: i, city: c, region: r})
	}
	return targets
}
