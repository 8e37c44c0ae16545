// Package netcdfio reads ERA5 archive fields and writes per-city artifacts
// using the pure-Go netCDF implementation.
package netcdfio

import (
	"fmt"
	"math"
	"time"

	"github.com/batchatco/go-native-netcdf/netcdf"
	"github.com/batchatco/go-native-netcdf/netcdf/api"

	"github.com/hwer-lab/era5-extract/internal/domain"
)

// TZ=UTC date --date="1900-01-01 00:00:00" +%s
const unixSecs1900 = -2208988800

// nan is the in-memory "no data" sentinel for buffer cells and decoded
// fill values.
var nan = math.NaN()

// hoursSince1900 converts a timestamp to the archive's time encoding.
func hoursSince1900(t time.Time) int32 {
	return int32((t.Unix() - unixSecs1900) / 3600)
}

// timeFrom1900 converts the archive's time encoding back to a timestamp.
func timeFrom1900(h int32) time.Time {
	return time.Unix(int64(h)*3600+unixSecs1900, 0).UTC()
}

// LoadGrid reads the latitude/longitude axes from a reference archive file.
// The grid cannot be established without it, so any failure here is fatal to
// the run.
func LoadGrid(path string) (*domain.Grid, error) {
	nc, err := netcdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open grid reference %s: %w", path, err)
	}
	defer nc.Close()

	lats, err := axisValues(nc, "latitude")
	if err != nil {
		return nil, fmt.Errorf("grid reference %s: %w", path, err)
	}
	lons, err := axisValues(nc, "longitude")
	if err != nil {
		return nil, fmt.Errorf("grid reference %s: %w", path, err)
	}
	return domain.NewGrid(lats, lons)
}

// Field holds one variable's decoded frames from a single archive file:
// scale/offset unpacked, fill values replaced with NaN.
type Field struct {
	Times  []time.Time
	rows   int
	cols   int
	frames [][]float64 // frames[t][row*cols+col]
}

// Rows returns the latitude dimension length.
func (f *Field) Rows() int { return f.rows }

// Cols returns the longitude dimension length.
func (f *Field) Cols() int { return f.cols }

// At returns the decoded value of one cell in one frame.
func (f *Field) At(frame, row, col int) float64 {
	return f.frames[frame][row*f.cols+col]
}

// Subgrid copies the cells covered by a region out of one frame, row-major
// in grid order.
func (f *Field) Subgrid(frame int, r domain.RegionIndex) [][]float64 {
	out := make([][]float64, 0, r.Rows())
	for i := r.RowStart; i <= r.RowEnd; i++ {
		row := make([]float64, 0, r.Cols())
		for j := r.ColStart; j <= r.ColEnd; j++ {
			row = append(row, f.At(frame, i, j))
		}
		out = append(out, row)
	}
	return out
}

// ReadField opens an archive file and decodes the named variable across all
// of its timesteps. ERA5 an_sfc files carry exactly one timestep, but the
// shape is not assumed.
func ReadField(path, fieldName string) (*Field, error) {
	nc, err := netcdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer nc.Close()

	times, err := timeAxis(nc)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	vg, err := nc.GetVarGetter(fieldName)
	if err != nil {
		return nil, fmt.Errorf("%s: variable %q: %w", path, fieldName, err)
	}

	dec := newDecoder(vg.Attributes())
	raw, err := vg.Values()
	if err != nil {
		return nil, fmt.Errorf("%s: read %q: %w", path, fieldName, err)
	}

	f, err := decodeFrames(raw, dec)
	if err != nil {
		return nil, fmt.Errorf("%s: variable %q: %w", path, fieldName, err)
	}
	if len(f.frames) != len(times) {
		return nil, fmt.Errorf("%s: variable %q has %d frames but time axis has %d entries",
			path, fieldName, len(f.frames), len(times))
	}
	f.Times = times
	return f, nil
}

// axisValues reads a 1-D coordinate variable as float64.
func axisValues(nc api.Group, name string) ([]float64, error) {
	vg, err := nc.GetVarGetter(name)
	if err != nil {
		return nil, fmt.Errorf("axis %q: %w", name, err)
	}
	v, err := vg.Values()
	if err != nil {
		return nil, fmt.Errorf("axis %q: %w", name, err)
	}
	switch vals := v.(type) {
	case []float64:
		return vals, nil
	case []float32:
		out := make([]float64, len(vals))
		for i, x := range vals {
			out[i] = float64(x)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("axis %q has unsupported type %T", name, v)
	}
}

// timeAxis reads the file's time coordinate (hours since 1900-01-01).
func timeAxis(nc api.Group) ([]time.Time, error) {
	vg, err := nc.GetVarGetter("time")
	if err != nil {
		return nil, fmt.Errorf("time axis: %w", err)
	}
	v, err := vg.Values()
	if err != nil {
		return nil, fmt.Errorf("time axis: %w", err)
	}
	switch vals := v.(type) {
	case []int32:
		out := make([]time.Time, len(vals))
		for i, h := range vals {
			out[i] = timeFrom1900(h)
		}
		return out, nil
	case []int64:
		out := make([]time.Time, len(vals))
		for i, h := range vals {
			out[i] = timeFrom1900(int32(h))
		}
		return out, nil
	case []float64:
		out := make([]time.Time, len(vals))
		for i, h := range vals {
			out[i] = timeFrom1900(int32(h))
		}
		return out, nil
	default:
		return nil, fmt.Errorf("time axis has unsupported type %T", v)
	}
}

// decoder applies the netCDF packing attributes to raw values.
type decoder struct {
	scale   float64
	offset  float64
	fill    float64
	hasFill bool
}

func newDecoder(attrs api.AttributeMap) decoder {
	d := decoder{scale: 1}
	if s, ok := attrFloat(attrs, "scale_factor"); ok {
		d.scale = s
	}
	if o, ok := attrFloat(attrs, "add_offset"); ok {
		d.offset = o
	}
	if f, ok := attrFloat(attrs, "_FillValue"); ok {
		d.fill = f
		d.hasFill = true
	} else if f, ok := attrFloat(attrs, "missing_value"); ok {
		d.fill = f
		d.hasFill = true
	}
	return d
}

// decode unpacks one raw cell value. The fill comparison happens in packed
// units, before scale/offset are applied.
func (d decoder) decode(raw float64) float64 {
	if d.hasFill && raw == d.fill {
		return nan
	}
	return raw*d.scale + d.offset
}

// attrFloat reads a numeric attribute, tolerating the scalar and
// single-element slice representations attribute values come back in.
func attrFloat(attrs api.AttributeMap, key string) (float64, bool) {
	if attrs == nil {
		return 0, false
	}
	v, ok := attrs.Get(key)
	if !ok {
		return 0, false
	}
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int64:
		return float64(x), true
	case int32:
		return float64(x), true
	case int16:
		return float64(x), true
	case []float64:
		if len(x) > 0 {
			return x[0], true
		}
	case []float32:
		if len(x) > 0 {
			return float64(x[0]), true
		}
	case []int16:
		if len(x) > 0 {
			return float64(x[0]), true
		}
	case []int32:
		if len(x) > 0 {
			return float64(x[0]), true
		}
	}
	return 0, false
}

// decodeFrames flattens the raw variable payload into per-frame row-major
// float64 slices. Archive fields are (time, latitude, longitude); a bare
// 2-D field is treated as a single frame.
func decodeFrames(raw any, dec decoder) (*Field, error) {
	switch v := raw.(type) {
	case [][][]int16:
		return framesFrom(v, dec, func(x int16) float64 { return float64(x) })
	case [][][]float32:
		return framesFrom(v, dec, func(x float32) float64 { return float64(x) })
	case [][][]float64:
		return framesFrom(v, dec, func(x float64) float64 { return x })
	case [][]int16:
		return framesFrom([][][]int16{v}, dec, func(x int16) float64 { return float64(x) })
	case [][]float32:
		return framesFrom([][][]float32{v}, dec, func(x float32) float64 { return float64(x) })
	case [][]float64:
		return framesFrom([][][]float64{v}, dec, func(x float64) float64 { return x })
	default:
		return nil, fmt.Errorf("unsupported field type %T", raw)
	}
}

func framesFrom[T int16 | float32 | float64](v [][][]T, dec decoder, toF func(T) float64) (*Field, error) {
	if len(v) == 0 || len(v[0]) == 0 || len(v[0][0]) == 0 {
		return nil, fmt.Errorf("empty field payload")
	}
	rows, cols := len(v[0]), len(v[0][0])
	f := &Field{rows: rows, cols: cols, frames: make([][]float64, len(v))}
	for t, frame := range v {
		if len(frame) != rows {
			return nil, fmt.Errorf("ragged frame %d: %d rows, want %d", t, len(frame), rows)
		}
		flat := make([]float64, 0, rows*cols)
		for _, row := range frame {
			if len(row) != cols {
				return nil, fmt.Errorf("ragged frame %d: %d cols, want %d", t, len(row), cols)
			}
			for _, x := range row {
				flat = append(flat, dec.decode(toF(x)))
			}
		}
		f.frames[t] = flat
	}
	return f, nil
}
