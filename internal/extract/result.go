package extract

// Result records the outcome of one city's extraction and artifact write.
// A failed city never aborts the run; its failure travels here instead.
type Result struct {
	CityID   int64
	CityName string
	Path     string // artifact path on success
	Err      error  // nil on success
}

// Summary aggregates a run's per-city results and file-level counters.
type Summary struct {
	Results      []Result
	FilesRead    int
	FilesMissing int
	ReadErrors   int
}

// Written returns how many city artifacts were written successfully.
func (s *Summary) Written() int {
	n := 0
	for _, r := range s.Results {
		if r.Err == nil {
			n++
		}
	}
	return n
}

// Failed returns the results that carry an error.
func (s *Summary) Failed() []Result {
	var out []Result
	for _, r := range s.Results {
		if r.Err != nil {
			out = append(out, r)
		}
	}
	return out
}
