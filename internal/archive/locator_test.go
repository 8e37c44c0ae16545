package archive_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hwer-lab/era5-extract/internal/archive"
)

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, nil, 0o644))
}

func TestLocator_Path_Template(t *testing.T) {
	loc := archive.NewLocator("/badc/ecmwf-era5/data/oper/an_sfc", archive.DefaultVars())

	ts := time.Date(2021, time.February, 3, 7, 0, 0, 0, time.UTC)
	want := filepath.Join("/badc/ecmwf-era5/data/oper/an_sfc", "2021", "02", "03",
		"ecmwf-era5_oper_an_sfc_202102030700.2t.nc")
	assert.Equal(t, want, loc.Path("2t", ts))
}

func TestLocator_Resolve(t *testing.T) {
	root := t.TempDir()
	loc := archive.NewLocator(root, archive.DefaultVars())

	ts := time.Date(2020, time.January, 1, 0, 0, 0, 0, time.UTC)
	path, ok := loc.Resolve("2t", ts)
	assert.False(t, ok, "absent file must resolve to not-present, not an error")

	touch(t, path)
	got, ok := loc.Resolve("2t", ts)
	assert.True(t, ok)
	assert.Equal(t, path, got)

	// Same timestamp, different variable: still absent.
	_, ok = loc.Resolve("10u", ts)
	assert.False(t, ok)
}

func TestLocator_GridReference(t *testing.T) {
	loc := archive.NewLocator("/archive", archive.DefaultVars())
	assert.Equal(t,
		filepath.Join("/archive", "2020", "01", "01", "ecmwf-era5_oper_an_sfc_202001010000.2t.nc"),
		loc.GridReference())
}

func TestLocator_MonthFiles_ChronologicalAndFiltered(t *testing.T) {
	root := t.TempDir()
	loc := archive.NewLocator(root, archive.DefaultVars())

	hours := []time.Time{
		time.Date(2021, time.March, 2, 5, 0, 0, 0, time.UTC),
		time.Date(2021, time.March, 1, 23, 0, 0, 0, time.UTC),
		time.Date(2021, time.March, 1, 4, 0, 0, 0, time.UTC),
	}
	for _, ts := range hours {
		touch(t, loc.Path("2t", ts))
	}
	// Other-variable and other-month files must not appear.
	touch(t, loc.Path("10u", hours[0]))
	touch(t, loc.Path("2t", time.Date(2021, time.April, 1, 0, 0, 0, 0, time.UTC)))

	files, err := loc.MonthFiles(2021, time.March, "2t")
	require.NoError(t, err)
	require.Len(t, files, 3)
	assert.Equal(t, loc.Path("2t", hours[2]), files[0])
	assert.Equal(t, loc.Path("2t", hours[1]), files[1])
	assert.Equal(t, loc.Path("2t", hours[0]), files[2])
}

func TestLocator_MonthFiles_MissingMonth(t *testing.T) {
	loc := archive.NewLocator(t.TempDir(), archive.DefaultVars())
	files, err := loc.MonthFiles(1999, time.July, "2t")
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestVarTable_FieldName_FallsBackToIdentity(t *testing.T) {
	vars := archive.DefaultVars()
	assert.Equal(t, "t2m", vars.FieldName("2t"))
	assert.Equal(t, "u10", vars.FieldName("10u"))
	// Unknown codes pass through unchanged.
	assert.Equal(t, "sp", vars.FieldName("sp"))
}
