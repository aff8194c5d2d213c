package trend

import (
	"sort"
	"time"

	"github.com/i474232898/green-wellness-tracker/internal/sensor"
)

const (
	DefaultWindow = 24 * time.Hour
	MinWindow     = time.Hour
	MaxWindow     = 7 * 24 * time.Hour
)

// Point is one chart sample. Value is nil for a missing measurement so the chart
// draws a gap.
type Point struct {
	Time  time.Time `json:"time"`
	Value *float64  `json:"value"`
}

// Series is one line on a chart.
type Series struct {
	Name   string  `json:"name"`
	Points []Point `json:"points"`
}

// Recent keeps readings sensed strictly after now-window, oldest first.
func Recent(readings []sensor.Reading, now time.Time, window time.Duration) []sensor.Reading {
	cutoff := now.Add(-window)
	out := make([]sensor.Reading, 0, len(readings))
	for _, r := range readings {
		if r.SensingTime.After(cutoff) {
			out = append(out, r)
		}
	}
	sortByTime(out)
	return out
}

// ByDistricts keeps readings from the selected districts, oldest first.
func ByDistricts(readings []sensor.Reading, districts []string) []sensor.Reading {
	want := make(map[string]struct{}, len(districts))
	for _, d := range districts {
		want[d] = struct{}{}
	}
	out := make([]sensor.Reading, 0, len(readings))
	for _, r := range readings {
		if _, ok := want[r.District]; ok {
			out = append(out, r)
		}
	}
	sortByTime(out)
	return out
}

// AverageSeries shapes readings into one series per metric average.
func AverageSeries(readings []sensor.Reading) []Series {
	out := make([]Series, 0, len(sensor.MetricKinds))
	for _, kind := range sensor.MetricKinds {
		s := Series{Name: string(kind), Points: make([]Point, 0, len(readings))}
		for _, r := range readings {
			s.Points = append(s.Points, point(r, kind))
		}
		out = append(out, s)
	}
	return out
}

// DistrictSeries shapes readings into one series per district for one metric,
// keeping the order of the selection.
func DistrictSeries(readings []sensor.Reading, districts []string, kind sensor.MetricKind) []Series {
	index := make(map[string]int, len(districts))
	out := make([]Series, 0, len(districts))
	for _, d := range districts {
		if _, dup := index[d]; dup {
			continue
		}
		index[d] = len(out)
		out = append(out, Series{Name: d, Points: []Point{}})
	}
	for _, r := range readings {
		i, ok := index[r.District]
		if !ok {
			continue
		}
		out[i].Points = append(out[i].Points, point(r, kind))
	}
	return out
}

func point(r sensor.Reading, kind sensor.MetricKind) Point {
	p := Point{Time: r.SensingTime}
	if m := r.Metric(kind).Avg; m.Valid {
		v := m.Value
		p.Value = &v
	}
	return p
}

func sortByTime(readings []sensor.Reading) {
	sort.SliceStable(readings, func(i, j int) bool {
		return readings[i].SensingTime.Before(readings[j].SensingTime)
	})
}
