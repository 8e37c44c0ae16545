package domain

import "time"

// YearHours generates the gapless hourly time axis for one calendar year:
// every hour of every day, chronological, UTC. The sequence is generated
// independently of which archive files exist; it is the authoritative axis
// every extraction buffer aligns to.
func YearHours(year int) []time.Time {
	start := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(year+1, time.January, 1, 0, 0, 0, 0, time.UTC)
	out := make([]time.Time, 0, int(end.Sub(start)/time.Hour))
	for t := start; t.Before(end); t = t.Add(time.Hour) {
		out = append(out, t)
	}
	return out
}

// HourlyTimeline concatenates YearHours over the given years in order.
func HourlyTimeline(years []int) []time.Time {
	var out []time.Time
	for _, y := range years {
		out = append(out, YearHours(y)...)
	}
	return out
}

// DaysIn returns the number of days in a month.
func DaysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
