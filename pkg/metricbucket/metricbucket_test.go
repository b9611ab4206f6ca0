package metricbucket

import (
	"testing"
	"time"

	"github.com/frostguard/core/pkg/threshold"
)

func TestPeriodStartTruncatesToHour(t *testing.T) {
	recordedAt := time.Date(2026, 3, 4, 13, 47, 22, 0, time.UTC)
	got := recordedAt.UTC().Truncate(time.Hour)
	want := time.Date(2026, 3, 4, 13, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("period start = %v, want %v", got, want)
	}
}

func TestOutsideBoundsUsesResolvedTemperatureThresholds(t *testing.T) {
	min, max := int32(-10), int32(40)
	bounds := threshold.Bounds{MinTemp: &min, MaxTemp: &max}

	cases := []struct {
		name string
		temp int32
		want bool
	}{
		{"below min", -11, true},
		{"at min", -10, false},
		{"in range", 20, false},
		{"at max", 40, false},
		{"above max", 41, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := outsideBounds(tc.temp, bounds); got != tc.want {
				t.Errorf("outsideBounds(%d) = %v, want %v", tc.temp, got, tc.want)
			}
		})
	}
}

func TestOutsideBoundsWithOnlyOneSideConfigured(t *testing.T) {
	max := int32(40)
	bounds := threshold.Bounds{MaxTemp: &max}

	if outsideBounds(-1000, bounds) {
		t.Fatal("expected no lower anomaly when MinTemp is unset")
	}
	if !outsideBounds(41, bounds) {
		t.Fatal("expected anomaly above the configured max")
	}
}
