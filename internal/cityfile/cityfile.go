// Package cityfile loads the city list CSV.
package cityfile

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/hwer-lab/era5-extract/internal/domain"
)

// Required columns. The bbox columns are optional as a group: when all four
// are present every city gets a bounding box.
var requiredCols = []string{"ID_UC_G0", "city", "lat", "lon"}

var bboxCols = []string{"min_lat", "max_lat", "min_lon", "max_lon"}

// Load reads the city list, preserving row order. Header names are trimmed
// and stripped of any UTF-8 byte-order mark left behind by spreadsheet
// exports. A malformed row is a hard error naming the row: silently dropping
// a city would skew every downstream analysis.
func Load(path string) ([]domain.City, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open city list: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read city list header: %w", err)
	}

	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))] = i
	}
	for _, name := range requiredCols {
		if _, ok := cols[name]; !ok {
			return nil, fmt.Errorf("city list missing column %q", name)
		}
	}
	hasBbox := true
	for _, name := range bboxCols {
		if _, ok := cols[name]; !ok {
			hasBbox = false
			break
		}
	}

	var cities []domain.City
	for row := 2; ; row++ {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("city list row %d: %w", row, err)
		}

		id, err := strconv.ParseInt(strings.TrimSpace(record[cols["ID_UC_G0"]]), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("city list row %d: bad ID_UC_G0: %w", row, err)
		}
		lat, err := parseFloat(record[cols["lat"]])
		if err != nil {
			return nil, fmt.Errorf("city list row %d: bad lat: %w", row, err)
		}
		lon, err := parseFloat(record[cols["lon"]])
		if err != nil {
			return nil, fmt.Errorf("city list row %d: bad lon: %w", row, err)
		}

		c := domain.City{
			ID:   id,
			Name: strings.TrimSpace(record[cols["city"]]),
			Lat:  lat,
			Lon:  lon,
		}
		if hasBbox {
			box, err := parseBbox(record, cols)
			if err != nil {
				return nil, fmt.Errorf("city list row %d: %w", row, err)
			}
			c.Box = box
		}
		cities = append(cities, c)
	}
	if len(cities) == 0 {
		return nil, fmt.Errorf("city list %s has no rows", path)
	}
	return cities, nil
}

func parseBbox(record []string, cols map[string]int) (*domain.BoundingBox, error) {
	vals := make([]float64, len(bboxCols))
	for i, name := range bboxCols {
		v, err := parseFloat(record[cols[name]])
		if err != nil {
			return nil, fmt.Errorf("bad %s: %w", name, err)
		}
		vals[i] = v
	}
	return &domain.BoundingBox{MinLat: vals[0], MaxLat: vals[1], MinLon: vals[2], MaxLon: vals[3]}, nil
}

func parseFloat(s string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(s), 64)
}
