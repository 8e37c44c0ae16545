// Command extract pulls per-city time series out of a local ERA5 surface
// archive and writes one netCDF artifact per city.
//
// Usage:
//
//	go run ./cmd/extract \
//	  -city-list data/cities.csv \
//	  -years 2020-2023 \
//	  -mode point \
//	  -variables 2t,2d,msl
//
// Archive root, output directory and the monitor address come from the
// environment (see internal/config); flags of the same name override them
// for a single run.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	httpadapter "github.com/hwer-lab/era5-extract/internal/adapter/http"
	"github.com/hwer-lab/era5-extract/internal/adapter/netcdfio"
	"github.com/hwer-lab/era5-extract/internal/archive"
	"github.com/hwer-lab/era5-extract/internal/cityfile"
	"github.com/hwer-lab/era5-extract/internal/config"
	"github.com/hwer-lab/era5-extract/internal/domain"
	"github.com/hwer-lab/era5-extract/internal/extract"
	"github.com/hwer-lab/era5-extract/internal/observability"
)

const shutdownTimeout = 5 * time.Second

// engine is what both extraction strategies expose to the CLI and the
// monitor server.
type engine interface {
	Run(ctx context.Context, years []int) (*extract.Summary, error)
	CheckReadiness(ctx context.Context) error
}

func main() {
	// A .env file is a development convenience; absence is not an error.
	_ = godotenv.Load()

	if err := run(); err != nil {
		slog.Error("extraction failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cityList := flag.String("city-list", "", "path to the city CSV (required)")
	cityID := flag.Int64("city-id", 0, "restrict the run to one city ID (0 = all)")
	yearsFlag := flag.String("years", "", "year or inclusive range, e.g. 2020 or 2020-2023 (required)")
	mode := flag.String("mode", "point", "extraction mode: point or region")
	variablesFlag := flag.String("variables", "", "comma-separated variable codes (default "+strings.Join(archive.HWERVariables, ",")+")")
	archiveRoot := flag.String("archive-root", "", "override ERA5_ARCHIVE_ROOT")
	outputDir := flag.String("output-dir", "", "override ERA5_OUTPUT_DIR")
	monitorAddr := flag.String("monitor-addr", "", "override MONITOR_ADDR")
	flag.Parse()

	if *cityList == "" || *yearsFlag == "" {
		flag.Usage()
		return fmt.Errorf("missing required flags: -city-list, -years")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if *archiveRoot != "" {
		cfg.ArchiveRoot = *archiveRoot
	}
	if *outputDir != "" {
		cfg.OutputDir = *outputDir
	}
	if *monitorAddr != "" {
		cfg.MonitorAddr = *monitorAddr
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	years, err := parseYears(*yearsFlag)
	if err != nil {
		return err
	}

	variables := archive.HWERVariables
	if *variablesFlag != "" {
		variables = splitVariables(*variablesFlag)
	}

	locator := archive.NewLocator(cfg.ArchiveRoot, archive.DefaultVars())

	gridPath := cfg.GridRefPath
	if gridPath == "" {
		gridPath = locator.GridReference()
	}
	grid, err := netcdfio.LoadGrid(gridPath)
	if err != nil {
		return fmt.Errorf("load grid reference %s: %w", gridPath, err)
	}
	logger.Info("grid loaded", "path", gridPath, "rows", grid.Rows(), "cols", grid.Cols())

	cities, err := cityfile.Load(*cityList)
	if err != nil {
		return fmt.Errorf("load city list: %w", err)
	}
	if *cityID != 0 {
		cities = filterCity(cities, *cityID)
		if len(cities) == 0 {
			return fmt.Errorf("city %d not found in %s", *cityID, *cityList)
		}
	}
	logger.Info("cities loaded", "count", len(cities))

	engCfg := extract.Config{
		Grid:         grid,
		Locator:      locator,
		Cities:       cities,
		Variables:    variables,
		OutputDir:    cfg.OutputDir,
		WriteWorkers: cfg.WriteWorkers,
		Logger:       logger,
		Metrics:      metrics,
	}

	var eng engine
	switch *mode {
	case "point":
		eng = extract.NewPointEngine(engCfg)
	case "region":
		eng = extract.NewRegionEngine(engCfg)
	default:
		return fmt.Errorf("unknown mode %q (want point or region)", *mode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var srv *httpadapter.Server
	if cfg.MonitorAddr != "" {
		srv = httpadapter.NewServer(cfg.MonitorAddr, eng, logger)
		go func() {
			if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("monitor server error", "error", err)
			}
		}()
	}

	summary, runErr := eng.Run(ctx, years)

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("monitor server shutdown error", "error", err)
		}
	}

	if runErr != nil {
		return runErr
	}

	for _, r := range summary.Failed() {
		logger.Warn("city failed", "city_id", r.CityID, "city", r.CityName, "error", r.Err)
	}
	logger.Info("run complete",
		"written", summary.Written(),
		"failed", len(summary.Failed()),
		"files_read", summary.FilesRead,
		"files_missing", summary.FilesMissing,
		"read_errors", summary.ReadErrors,
	)

	if summary.Written() == 0 {
		return errors.New("no artifacts written")
	}
	return nil
}

// parseYears accepts "2020" or an inclusive range "2020-2023".
func parseYears(s string) ([]int, error) {
	parts := strings.SplitN(s, "-", 2)
	start, err := strconv.Atoi(parts[0])
	if err != nil {
		return nil, fmt.Errorf("invalid years %q", s)
	}
	end := start
	if len(parts) == 2 {
		end, err = strconv.Atoi(parts[1])
		if err != nil {
			return nil, fmt.Errorf("invalid years %q", s)
		}
	}
	if end < start {
		return nil, fmt.Errorf("invalid years %q: range end before start", s)
	}
	years := make([]int, 0, end-start+1)
	for y := start; y <= end; y++ {
		years = append(years, y)
	}
	return years, nil
}

func splitVariables(s string) []string {
	var out []string
	for _, v := range strings.Split(s, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func filterCity(cities []domain.City, id int64) []domain.City {
	for _, c := range cities {
		if c.ID == id {
			return []domain.City{c}
		}
	}
	return nil
}
