// Package domain models the ERA5 reanalysis archive and the cities extracted
// from it.
//
// # Archive layout
//
// Hourly surface-analysis fields live on the CEDA/JASMIN filesystem under
// /badc/ecmwf-era5/data/oper/an_sfc, one netCDF file per timestep per
// variable:
//
//	<root>/YYYY/MM/DD/ecmwf-era5_oper_an_sfc_YYYYMMDDHH00.<code>.nc
//
// Every path component is zero-padded. A file that does not exist is an
// expected data gap, not a fault: the archive is sparse in places and a run
// records the gap rather than failing.
//
// # Grid conventions
//
// ERA5 fields share one fixed regular grid: latitude descending from +90 to
// -90, longitude ascending in the 0–360 convention. City coordinates arrive
// in -180..180 and are normalized with [NormalizeLon] before any grid
// lookup; the normalized value is derived on demand, never stored back on
// the city. Nearest-cell lookup is an independent per-axis argmin over
// absolute differences, with exact ties resolved to the lower index.
//
// # Variables
//
// User-facing short codes follow the ECMWF MARS naming ("2t", "10u", "msl").
// Inside the files the fields carry netCDF names ("t2m", "u10", "msl"); the
// static mapping lives in the archive package. Fields are usually packed as
// int16 with scale_factor/add_offset attributes, which the netcdfio adapter
// decodes.
//
// # Time axis
//
// An extraction run's authoritative time axis is the gapless hourly sequence
// over whole calendar years, generated by [YearHours] independently of which
// archive files exist. Buffer cells for absent files hold NaN so the axis
// never shifts, and different variables stay aligned even when their gaps
// differ.
package domain
