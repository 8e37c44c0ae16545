// Package archive locates ERA5 source files on the backing filesystem
// without opening them.
package archive

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const filePrefix = "ecmwf-era5_oper_an_sfc_"

// Locator maps (variable, timestamp) pairs to candidate archive paths. The
// root is explicit constructor configuration so test fixtures and the
// production archive can coexist.
type Locator struct {
	root string
	vars VarTable
}

// NewLocator creates a Locator over the archive rooted at root.
func NewLocator(root string, vars VarTable) *Locator {
	return &Locator{root: root, vars: vars}
}

// Vars returns the locator's variable table.
func (l *Locator) Vars() VarTable { return l.vars }

// Path builds the expected archive path for a variable code at a timestamp,
// whether or not the file exists. The template must be reproduced exactly
// (zero padding included) or every resolution silently misses.
func (l *Locator) Path(code string, ts time.Time) string {
	return filepath.Join(
		l.root,
		fmt.Sprintf("%04d", ts.Year()),
		fmt.Sprintf("%02d", ts.Month()),
		fmt.Sprintf("%02d", ts.Day()),
		fmt.Sprintf("%s%04d%02d%02d%02d00.%s.nc", filePrefix, ts.Year(), ts.Month(), ts.Day(), ts.Hour(), code),
	)
}

// Resolve returns the path for (code, ts) and whether that file exists.
// Absence is an expected condition, not an error; the caller records a gap.
func (l *Locator) Resolve(code string, ts time.Time) (string, bool) {
	p := l.Path(code, ts)
	if _, err := os.Stat(p); err != nil {
		return p, false
	}
	return p, true
}

// GridReference returns the archive file used to establish the grid axes:
// the first hour of 2020 for 2m temperature.
func (l *Locator) GridReference() string {
	return l.Path("2t", time.Date(2020, time.January, 1, 0, 0, 0, 0, time.UTC))
}

// MonthFiles enumerates the archive files present for one variable in one
// year/month window, in chronological order (day directories sorted, then
// file names sorted within each day). A month with no directory yields an
// empty slice.
func (l *Locator) MonthFiles(year int, month time.Month, code string) ([]string, error) {
	monthDir := filepath.Join(l.root, fmt.Sprintf("%04d", year), fmt.Sprintf("%02d", month))
	days, err := os.ReadDir(monthDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read month dir %s: %w", monthDir, err)
	}

	suffix := "." + code + ".nc"
	var files []string
	for _, day := range days {
		if !day.IsDir() {
			continue
		}
		entries, err := os.ReadDir(filepath.Join(monthDir, day.Name()))
		if err != nil {
			return nil, fmt.Errorf("read day dir %s: %w", day.Name(), err)
		}
		// os.ReadDir sorts by name, which is chronological under the
		// zero-padded naming scheme.
		for _, e := range entries {
			name := e.Name()
			if strings.HasPrefix(name, filePrefix) && strings.HasSuffix(name, suffix) {
				files = append(files, filepath.Join(monthDir, day.Name(), name))
			}
		}
	}
	return files, nil
}
