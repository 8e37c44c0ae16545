package archive

// VarTable maps user-facing ECMWF short codes to the netCDF field names used
// inside archive files. The table is static configuration; it is never
// mutated at runtime.
type VarTable map[string]string

// DefaultVars returns the variable table for the CEDA an_sfc archive.
// Precipitation and radiation fields are absent on purpose: they are not in
// the CEDA hourly archive and must be obtained from CDS separately.
func DefaultVars() VarTable {
	return VarTable{
		"2t":   "t2m",  // 2m temperature (K)
		"2d":   "d2m",  // 2m dewpoint (K)
		"skt":  "skt",  // skin temperature (K)
		"10u":  "u10",  // 10m u-wind (m/s)
		"10v":  "v10",  // 10m v-wind (m/s)
		"msl":  "msl",  // mean sea level pressure (Pa)
		"tcwv": "tcwv", // total column water vapour (kg/m²)
	}
}

// FieldName resolves a short code to its in-file variable name. Codes not in
// the table pass through unchanged, so new archive variables can be requested
// without a code change. The fallback is a contract, not an accident: callers
// may rely on unknown codes mapping to themselves.
func (t VarTable) FieldName(code string) string {
	if name, ok := t[code]; ok {
		return name
	}
	return code
}

// HWERVariables is the default extraction set for heatwave / extreme-rainfall
// compound-event analysis.
var HWERVariables = []string{"2t", "2d", "10u", "10v", "msl"}
