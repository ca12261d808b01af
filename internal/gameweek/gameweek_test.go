package gameweek

import (
	"testing"
	"time"
)

func TestCalculatorID(t *testing.T) {
	seasonStart := time.Date(2025, time.August, 1, 0, 0, 0, 0, time.UTC)
	calc := NewCalculator(DefaultConfig(seasonStart))

	tests := []struct {
		name string
		now  time.Time
		want string
	}{
		{
			name: "season start",
			now:  seasonStart,
			want: "GW1",
		},
		{
			name: "day six is still week one",
			now:  seasonStart.AddDate(0, 0, 6),
			want: "GW1",
		},
		{
			name: "day seven closes week one",
			now:  seasonStart.AddDate(0, 0, 7),
			want: "GW1",
		},
		{
			name: "day eight opens week two",
			now:  seasonStart.AddDate(0, 0, 8),
			want: "GW2",
		},
		{
			name: "mid season",
			now:  seasonStart.AddDate(0, 0, 7*19+3),
			want: "GW20",
		},
		{
			name: "three hundred days clamps to season end",
			now:  seasonStart.AddDate(0, 0, 300),
			want: "GW38",
		},
		{
			name: "before season start clamps to week one",
			now:  seasonStart.AddDate(0, 0, -30),
			want: "GW1",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := calc.ID(tc.now); got != tc.want {
				t.Fatalf("ID(%s) = %q, want %q", tc.now.Format(time.DateOnly), got, tc.want)
			}
		})
	}
}

func TestCalculatorIndexNeverDecreasesAcrossSeason(t *testing.T) {
	seasonStart := time.Date(2025, time.August, 1, 0, 0, 0, 0, time.UTC)
	calc := NewCalculator(DefaultConfig(seasonStart))

	prev := 0
	for day := -7; day <= 7*40; day++ {
		idx := calc.Index(seasonStart.AddDate(0, 0, day))
		if idx < prev {
			t.Fatalf("Index() decreased from %d to %d at day %d", prev, idx, day)
		}
		if idx < 1 || idx > 38 {
			t.Fatalf("Index() = %d out of bounds at day %d", idx, day)
		}
		prev = idx
	}
}

func TestNewCalculatorSanitizesConfig(t *testing.T) {
	calc := NewCalculator(Config{SeasonStart: time.Unix(0, 0), Prefix: "W"})
	if got := calc.ID(time.Unix(0, 0).Add(10 * 24 * time.Hour)); got != "W2" {
		t.Fatalf("ID() with defaulted config = %q, want %q", got, "W2")
	}
}
