package attendance

import (
	"math"

	"github.com/pkg/errors"
)

// ErrInvalidStatus is returned when an event carries a status outside
// {present, absent, late}. It is never coerced to a default.
var ErrInvalidStatus = errors.New("invalid attendance status")

// Percentage thresholds. 75 is the institutional minimum.
const (
	MinRequiredPercent = 75.0
	SafePercent        = 85.0
)

// Risk bands derived from the attendance percentage.
const (
	BandSafe    = "Safe"
	BandWarning = "Warning"
	BandRisk    = "Risk"
)

// BandFor classifies a percentage: <75 Risk, 75-<85 Warning, >=85 Safe.
func BandFor(percentage float64) string {
	switch {
	case percentage < MinRequiredPercent:
		return BandRisk
	case percentage < SafePercent:
		return BandWarning
	default:
		return BandSafe
	}
}

// GroupBy selects the aggregation grouping.
type GroupBy string

const (
	GroupBySubject GroupBy = "subject"
	GroupByNone    GroupBy = "none"
)

// OverallKey is the map key of the single group produced by GroupByNone.
const OverallKey = "_all"

// Counts are raw per-status tallies, either accumulated from events or
// pre-grouped by the store (one GROUP BY query instead of N scans).
type Counts struct {
	Total   int `json:"total"`
	Present int `json:"present"`
	Absent  int `json:"absent"`
	Late    int `json:"late"`
}

// Stats is a Counts plus the derived percentage.
type Stats struct {
	Total      int     `json:"total"`
	Present    int     `json:"present"`
	Absent     int     `json:"absent"`
	Late       int     `json:"late"`
	Percentage float64 `json:"percentage"`
}

// Band returns the risk band for these stats.
func (s Stats) Band() string { return BandFor(s.Percentage) }

// Stats derives the summary for pre-grouped counts:
// round2((present + 0.5*late) / total * 100), 0 when total is 0.
// Late arrivals earn half credit: penalized, but not equivalent to absence.
func (c Counts) Stats() Stats {
	s := Stats{
		Total:   c.Total,
		Present: c.Present,
		Absent:  c.Absent,
		Late:    c.Late,
	}
	if c.Total > 0 {
		s.Percentage = Round2((float64(c.Present) + 0.5*float64(c.Late)) / float64(c.Total) * 100)
	}
	return s
}

// Round2 rounds to 2 decimal places.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Aggregate reduces events into per-group stats. With GroupBySubject the map
// is keyed by subject ID; with GroupByNone all events land under OverallKey.
// Event order is irrelevant. Fails on the first unrecognized status.
func Aggregate(events []Event, groupBy GroupBy) (map[string]Stats, error) {
	counts := make(map[string]Counts)
	for _, ev := range events {
		key := OverallKey
		if groupBy == GroupBySubject {
			key = ev.SubjectID
		}
		c := counts[key]
		c.Total++
		switch ev.Status {
		case StatusPresent:
			c.Present++
		case StatusAbsent:
			c.Absent++
		case StatusLate:
			c.Late++
		default:
			return nil, errors.Wrapf(ErrInvalidStatus, "status %q", ev.Status)
		}
		counts[key] = c
	}

	stats := make(map[string]Stats, len(counts))
	for key, c := range counts {
		stats[key] = c.Stats()
	}
	return stats, nil
}

// Overall is a convenience for the ungrouped aggregate; it returns zero-valued
// stats (not an error) for an empty event set.
func Overall(events []Event) (Stats, error) {
	stats, err := Aggregate(events, GroupByNone)
	if err != nil {
		return Stats{}, err
	}
	return stats[OverallKey], nil
}
