package attendance

import (
	"testing"

	"github.com/pkg/errors"
)

func TestCounts_Stats(t *testing.T) {
	tests := []struct {
		name   string
		counts Counts
		want   float64
	}{
		{name: "no records", counts: Counts{}, want: 0},
		{name: "all present", counts: Counts{Total: 10, Present: 10}, want: 100},
		{name: "all absent", counts: Counts{Total: 10, Absent: 10}, want: 0},
		{name: "half credit for late", counts: Counts{Total: 10, Present: 5, Late: 4, Absent: 1}, want: 70},
		{name: "rounds to 2 decimals", counts: Counts{Total: 7, Present: 5, Late: 1, Absent: 1}, want: 78.57},
		{name: "two thirds", counts: Counts{Total: 3, Present: 2, Absent: 1}, want: 66.67},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.counts.Stats().Percentage; got != tt.want {
				t.Errorf("Stats().Percentage = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBandFor(t *testing.T) {
	tests := []struct {
		percentage float64
		want       string
	}{
		{0, BandRisk},
		{74.99, BandRisk},
		{75, BandWarning},
		{84.99, BandWarning},
		{85, BandSafe},
		{100, BandSafe},
	}
	for _, tt := range tests {
		if got := BandFor(tt.percentage); got != tt.want {
			t.Errorf("BandFor(%v) = %s, want %s", tt.percentage, got, tt.want)
		}
	}
}

func TestAggregate(t *testing.T) {
	events := []Event{
		{SubjectID: "math", Status: StatusPresent},
		{SubjectID: "math", Status: StatusPresent},
		{SubjectID: "math", Status: StatusLate},
		{SubjectID: "math", Status: StatusAbsent},
		{SubjectID: "phys", Status: StatusPresent},
		{SubjectID: "phys", Status: StatusAbsent},
	}

	t.Run("by subject", func(t *testing.T) {
		stats, err := Aggregate(events, GroupBySubject)
		if err != nil {
			t.Fatalf("Aggregate() failed: %v", err)
		}
		if len(stats) != 2 {
			t.Fatalf("expected 2 groups, got %d", len(stats))
		}
		math := stats["math"]
		if math.Percentage != 62.5 {
			t.Errorf("math percentage = %v, want 62.5", math.Percentage)
		}
		if math.Total != 4 || math.Present != 2 || math.Late != 1 || math.Absent != 1 {
			t.Errorf("math counts = %+v", math)
		}
		if phys := stats["phys"]; phys.Percentage != 50 {
			t.Errorf("phys percentage = %v, want 50", phys.Percentage)
		}
	})

	t.Run("overall", func(t *testing.T) {
		stats, err := Overall(events)
		if err != nil {
			t.Fatalf("Overall() failed: %v", err)
		}
		// (3 + 0.5) / 6 * 100
		if stats.Percentage != 58.33 {
			t.Errorf("overall percentage = %v, want 58.33", stats.Percentage)
		}
		if stats.Band() != BandRisk {
			t.Errorf("band = %s, want %s", stats.Band(), BandRisk)
		}
	})

	t.Run("order independent", func(t *testing.T) {
		reversed := make([]Event, 0, len(events))
		for i := len(events) - 1; i >= 0; i-- {
			reversed = append(reversed, events[i])
		}
		s1, _ := Overall(events)
		s2, _ := Overall(reversed)
		if s1 != s2 {
			t.Errorf("Overall() depends on event order: %+v != %+v", s1, s2)
		}
	})

	t.Run("empty set", func(t *testing.T) {
		stats, err := Overall(nil)
		if err != nil {
			t.Fatalf("Overall() failed: %v", err)
		}
		if stats != (Stats{}) {
			t.Errorf("Overall(nil) = %+v, want zero stats", stats)
		}
	})

	t.Run("invalid status", func(t *testing.T) {
		_, err := Overall([]Event{{Status: "maybe"}})
		if errors.Cause(err) != ErrInvalidStatus {
			t.Errorf("Overall() error = %v, want ErrInvalidStatus", err)
		}
	})
}

func TestRound2(t *testing.T) {
	tests := []struct {
		in   float64
		want float64
	}{
		{78.5714285, 78.57},
		{66.666666, 66.67},
		{0.004, 0},
		{100, 100},
	}
	for _, tt := range tests {
		if got := Round2(tt.in); got != tt.want {
			t.Errorf("Round2(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
