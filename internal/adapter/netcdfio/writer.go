package netcdfio

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/batchatco/go-native-netcdf/netcdf/api"
	"github.com/batchatco/go-native-netcdf/netcdf/cdf"
	"github.com/batchatco/go-native-netcdf/netcdf/util"

	"github.com/hwer-lab/era5-extract/internal/domain"
)

const timeUnits = "hours since 1900-01-01 00:00:00"

// SeriesVar is one variable's full time series for a point-mode artifact,
// aligned 1:1 with the artifact's time axis. Gap cells hold NaN.
type SeriesVar struct {
	Name   string // netCDF field name, e.g. "t2m"
	Values []float64
}

// CubeVar is one variable's spatiotemporal cube for a region-mode artifact:
// Frames[t][row][col] in grid order, one frame per entry of Times.
type CubeVar struct {
	Name   string
	Times  []time.Time
	Frames [][][]float64
}

// WriteSeries serializes one city's per-variable series into a
// self-describing netCDF artifact. The destination directory is created if
// absent. A failed write is removed so it cannot be mistaken for a complete
// artifact; artifacts of other cities are untouched either way.
func WriteSeries(path string, city domain.City, times []time.Time, vars []SeriesVar) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	cw, err := cdf.OpenWriter(path)
	if err != nil {
		return fmt.Errorf("create artifact %s: %w", path, err)
	}

	err = func() error {
		if err := addTimeVar(cw, "time", times); err != nil {
			return err
		}
		for _, v := range vars {
			if len(v.Values) != len(times) {
				return fmt.Errorf("variable %q has %d values for %d timestamps", v.Name, len(v.Values), len(times))
			}
			attrs, err := util.NewOrderedMap([]string{"_FillValue"}, map[string]any{"_FillValue": nan})
			if err != nil {
				return err
			}
			if err := cw.AddVar(v.Name, api.Variable{
				Values:     v.Values,
				Dimensions: []string{"time"},
				Attributes: attrs,
			}); err != nil {
				return fmt.Errorf("write variable %q: %w", v.Name, err)
			}
		}
		return addCityAttrs(cw, city)
	}()
	if err != nil {
		cw.Close()
		os.Remove(path)
		return err
	}
	if err := cw.Close(); err != nil {
		os.Remove(path)
		return fmt.Errorf("finalize artifact %s: %w", path, err)
	}
	return nil
}

// WriteCube serializes one city's region-mode cubes. lats and lons are the
// grid values covered by the city's index range. Variables whose time axes
// are identical share the "time" dimension; otherwise each variable gets its
// own "<name>_time" coordinate, since region gaps can differ per variable.
func WriteCube(path string, city domain.City, lats, lons []float64, vars []CubeVar) error {
	if len(vars) == 0 {
		return fmt.Errorf("no variables to write for city %d", city.ID)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	cw, err := cdf.OpenWriter(path)
	if err != nil {
		return fmt.Errorf("create artifact %s: %w", path, err)
	}

	err = func() error {
		shared := sharedTimeAxis(vars)
		if shared {
			if err := addTimeVar(cw, "time", vars[0].Times); err != nil {
				return err
			}
		}
		if err := addAxisVar(cw, "latitude", lats); err != nil {
			return err
		}
		if err := addAxisVar(cw, "longitude", lons); err != nil {
			return err
		}

		for _, v := range vars {
			timeDim := "time"
			if !shared {
				timeDim = v.Name + "_time"
				if err := addTimeVar(cw, timeDim, v.Times); err != nil {
					return err
				}
			}
			if len(v.Frames) != len(v.Times) {
				return fmt.Errorf("variable %q has %d frames for %d timestamps", v.Name, len(v.Frames), len(v.Times))
			}
			attrs, err := util.NewOrderedMap([]string{"_FillValue"}, map[string]any{"_FillValue": nan})
			if err != nil {
				return err
			}
			if err := cw.AddVar(v.Name, api.Variable{
				Values:     v.Frames,
				Dimensions: []string{timeDim, "latitude", "longitude"},
				Attributes: attrs,
			}); err != nil {
				return fmt.Errorf("write variable %q: %w", v.Name, err)
			}
		}
		return addCityAttrs(cw, city)
	}()
	if err != nil {
		cw.Close()
		os.Remove(path)
		return err
	}
	if err := cw.Close(); err != nil {
		os.Remove(path)
		return fmt.Errorf("finalize artifact %s: %w", path, err)
	}
	return nil
}

func addTimeVar(cw api.Writer, dim string, times []time.Time) error {
	encoded := make([]int32, len(times))
	for i, t := range times {
		encoded[i] = hoursSince1900(t)
	}
	attrs, err := util.NewOrderedMap(
		[]string{"units", "calendar"},
		map[string]any{"units": timeUnits, "calendar": "gregorian"},
	)
	if err != nil {
		return err
	}
	if err := cw.AddVar(dim, api.Variable{
		Values:     encoded,
		Dimensions: []string{dim},
		Attributes: attrs,
	}); err != nil {
		return fmt.Errorf("write time axis %q: %w", dim, err)
	}
	return nil
}

func addAxisVar(cw api.Writer, name string, values []float64) error {
	if err := cw.AddVar(name, api.Variable{
		Values:     values,
		Dimensions: []string{name},
	}); err != nil {
		return fmt.Errorf("write axis %q: %w", name, err)
	}
	return nil
}

func addCityAttrs(cw api.Writer, city domain.City) error {
	attrs, err := util.NewOrderedMap(
		[]string{"city_id", "city_name", "lat", "lon"},
		map[string]any{
			"city_id":   int32(city.ID),
			"city_name": city.FileName(),
			"lat":       city.Lat,
			"lon":       city.Lon,
		},
	)
	if err != nil {
		return err
	}
	if err := cw.AddAttributes(attrs); err != nil {
		return fmt.Errorf("write city attributes: %w", err)
	}
	return nil
}

// sharedTimeAxis reports whether every cube variable carries the same
// timestamp sequence.
func sharedTimeAxis(vars []CubeVar) bool {
	for _, v := range vars[1:] {
		if len(v.Times) != len(vars[0].Times) {
			return false
		}
		for i, t := range v.Times {
			if !t.Equal(vars[0].Times[i]) {
				return false
			}
		}
	}
	return true
}
