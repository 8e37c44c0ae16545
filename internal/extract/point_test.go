package extract_test

import (
	"context"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/batchatco/go-native-netcdf/netcdf"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hwer-lab/era5-extract/internal/adapter/netcdfio"
	"github.com/hwer-lab/era5-extract/internal/archive"
	"github.com/hwer-lab/era5-extract/internal/domain"
	"github.com/hwer-lab/era5-extract/internal/extract"
	"github.com/hwer-lab/era5-extract/internal/observability"
)

var (
	testLats = []float64{10, 0, -10}
	testLons = []float64{0, 90, 180, 270}
)

func testGrid(t *testing.T) *domain.Grid {
	t.Helper()
	g, err := domain.NewGrid(testLats, testLons)
	require.NoError(t, err)
	return g
}

// testFrame builds a field frame whose value at (row, col) is
// base + row*10 + col, so gathered cells are easy to predict.
func testFrame(base float64) [][]float64 {
	frame := make([][]float64, len(testLats))
	for r := range frame {
		row := make([]float64, len(testLons))
		for c := range row {
			row[c] = base + float64(r)*10 + float64(c)
		}
		frame[r] = row
	}
	return frame
}

// writeArchiveHour places one archive-shaped file for (code, ts) under the
// locator's naming template.
func writeArchiveHour(t *testing.T, loc *archive.Locator, code string, ts time.Time, frame [][]float64) {
	t.Helper()
	path := loc.Path(code, ts)
	err := netcdfio.WriteCube(path, domain.City{}, testLats, testLons, []netcdfio.CubeVar{
		{Name: loc.Vars().FieldName(code), Times: []time.Time{ts}, Frames: [][][]float64{frame}},
	})
	require.NoError(t, err)
}

func readSeriesArtifact(t *testing.T, path, field string) (times []int32, values []float64) {
	t.Helper()
	nc, err := netcdf.Open(path)
	require.NoError(t, err)
	defer nc.Close()

	tv, err := nc.GetVarGetter("time")
	require.NoError(t, err)
	rawTimes, err := tv.Values()
	require.NoError(t, err)
	times = rawTimes.([]int32)

	vv, err := nc.GetVarGetter(field)
	require.NoError(t, err)
	rawValues, err := vv.Values()
	require.NoError(t, err)
	values = rawValues.([]float64)
	return times, values
}

func newConfig(t *testing.T, cities []domain.City, vars []string) extract.Config {
	t.Helper()
	root := t.TempDir()
	return extract.Config{
		Grid:         testGrid(t),
		Locator:      archive.NewLocator(root, archive.DefaultVars()),
		Cities:       cities,
		Variables:    vars,
		OutputDir:    filepath.Join(root, "out"),
		WriteWorkers: 2,
		Logger:       slog.Default(),
		Metrics:      observability.NewMetricsForTesting(),
	}
}

func TestPointIndices_MatchDirectLookup(t *testing.T) {
	g := testGrid(t)
	cities := []domain.City{
		{ID: 1, Name: "A", Lat: 2, Lon: -10},
		{ID: 2, Name: "B", Lat: 9, Lon: 85},
		{ID: 3, Name: "C", Lat: -8, Lon: 181},
	}

	indices, err := extract.PointIndices(g, cities)
	require.NoError(t, err)
	require.Len(t, indices, len(cities))
	for i, c := range cities {
		want, err := g.NearestIndex(c.Lat, c.GridLon())
		require.NoError(t, err)
		assert.Equal(t, want, indices[i], "city %s", c.Name)
	}
}

func TestPointIndices_OrderIndependent(t *testing.T) {
	g := testGrid(t)
	cities := []domain.City{
		{ID: 1, Name: "A", Lat: 2, Lon: -10},
		{ID: 2, Name: "B", Lat: 9, Lon: 85},
		{ID: 3, Name: "C", Lat: -8, Lon: 181},
	}
	forward, err := extract.PointIndices(g, cities)
	require.NoError(t, err)

	reversed := []domain.City{cities[2], cities[1], cities[0]}
	backward, err := extract.PointIndices(g, reversed)
	require.NoError(t, err)

	assert.Equal(t, forward[0], backward[2])
	assert.Equal(t, forward[1], backward[1])
	assert.Equal(t, forward[2], backward[0])
}

func TestPointIndices_UnresolvableCityFailsLoudly(t *testing.T) {
	g := testGrid(t)
	_, err := extract.PointIndices(g, []domain.City{{ID: 99, Name: "Nowhere", Lat: 95, Lon: 0}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "99")
}

func TestPointEngine_Run(t *testing.T) {
	cities := []domain.City{
		{ID: 1, Name: "Alpha Town", Lat: 2, Lon: -10}, // cell (1, 3)
		{ID: 2, Name: "Beta", Lat: 9, Lon: 85},        // cell (0, 1)
	}
	cfg := newConfig(t, cities, []string{"2t"})

	h0 := time.Date(2021, time.January, 1, 0, 0, 0, 0, time.UTC)
	h1 := h0.Add(time.Hour)
	h2 := h0.Add(2 * time.Hour)
	writeArchiveHour(t, cfg.Locator, "2t", h0, testFrame(0))
	writeArchiveHour(t, cfg.Locator, "2t", h1, testFrame(100))
	// Present but corrupt: must become a counted, recoverable gap.
	corrupt := cfg.Locator.Path("2t", h2)
	require.NoError(t, os.MkdirAll(filepath.Dir(corrupt), 0o755))
	require.NoError(t, os.WriteFile(corrupt, []byte("not netcdf"), 0o644))

	engine := extract.NewPointEngine(cfg)
	assert.Error(t, engine.CheckReadiness(context.Background()))

	summary, err := engine.Run(context.Background(), []int{2021})
	require.NoError(t, err)
	assert.NoError(t, engine.CheckReadiness(context.Background()))

	assert.Equal(t, 2, summary.FilesRead)
	assert.Equal(t, 1, summary.ReadErrors)
	assert.Equal(t, 365*24-3, summary.FilesMissing)
	require.Len(t, summary.Results, 2)
	assert.Equal(t, 2, summary.Written())

	// Alpha Town: nearest cell (1, 3) → values 13 and 113, sentinel elsewhere.
	times, values := readSeriesArtifact(t, summary.Results[0].Path, "t2m")
	require.Len(t, times, 365*24)
	for i := 1; i < len(times); i++ {
		require.Equal(t, int32(1), times[i]-times[i-1], "time axis must be gapless at %d", i)
	}
	assert.Equal(t, 13.0, values[0])
	assert.Equal(t, 113.0, values[1])
	nanCount := 0
	for _, v := range values {
		if math.IsNaN(v) {
			nanCount++
		}
	}
	assert.Equal(t, 365*24-2, nanCount, "every absent or unreadable hour holds the sentinel")

	// Beta: nearest cell (0, 1) → values 1 and 101.
	_, values = readSeriesArtifact(t, summary.Results[1].Path, "t2m")
	assert.Equal(t, 1.0, values[0])
	assert.Equal(t, 101.0, values[1])

	assert.Equal(t, filepath.Join(cfg.OutputDir, "era5_2021_1_Alpha_Town.nc"), summary.Results[0].Path)
}

func TestPointEngine_Run_FatalOnUnresolvableCity(t *testing.T) {
	cfg := newConfig(t, []domain.City{{ID: 7, Name: "Bad", Lat: 95, Lon: 0}}, []string{"2t"})
	engine := extract.NewPointEngine(cfg)

	_, err := engine.Run(context.Background(), []int{2021})
	require.Error(t, err)
	_, statErr := os.Stat(cfg.OutputDir)
	assert.True(t, os.IsNotExist(statErr), "fatal precondition must abort before any artifact is written")
}

func TestPointEngine_Run_WriteFailureIsolatedPerCity(t *testing.T) {
	cities := []domain.City{
		{ID: 1, Name: "Blocked", Lat: 2, Lon: -10},
		{ID: 2, Name: "Fine", Lat: 9, Lon: 85},
	}
	cfg := newConfig(t, cities, []string{"2t"})

	// Occupy the first city's artifact path with a directory so its write fails.
	blocked := filepath.Join(cfg.OutputDir, "era5_2021_1_Blocked.nc")
	require.NoError(t, os.MkdirAll(blocked, 0o755))

	engine := extract.NewPointEngine(cfg)
	summary, err := engine.Run(context.Background(), []int{2021})
	require.NoError(t, err, "a per-city write failure must not abort the run")

	require.Len(t, summary.Results, 2)
	assert.Error(t, summary.Results[0].Err)
	assert.NoError(t, summary.Results[1].Err)
	assert.Equal(t, 1, summary.Written())
	assert.FileExists(t, summary.Results[1].Path)
}

func TestPointEngine_Run_CancelledContext(t *testing.T) {
	cfg := newConfig(t, []domain.City{{ID: 1, Name: "A", Lat: 2, Lon: -10}}, []string{"2t"})
	engine := extract.NewPointEngine(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := engine.Run(ctx, []int{2021})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPointEngine_Run_FrozenClock(t *testing.T) {
	extract.SetClock(clockwork.NewFakeClock())
	t.Cleanup(func() { extract.SetClock(nil) })

	cfg := newConfig(t, []domain.City{{ID: 1, Name: "A", Lat: 2, Lon: -10}}, []string{"2t"})
	engine := extract.NewPointEngine(cfg)

	summary, err := engine.Run(context.Background(), []int{2021})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Written())
}
