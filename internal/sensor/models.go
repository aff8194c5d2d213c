package sensor

import (
	"fmt"
	"math"
	"strconv"
	"time"
)

// MetricKind names one of the four environmental metrics reported by a station.
type MetricKind string

const (
	MetricTemperature MetricKind = "temperature"
	MetricWindSpeed   MetricKind = "wind_speed"
	MetricHumidity    MetricKind = "humidity"
	MetricUV          MetricKind = "uv"
)

// MetricKinds lists the metrics in display order.
var MetricKinds = []MetricKind{MetricTemperature, MetricWindSpeed, MetricHumidity, MetricUV}

// ParseMetricKind accepts the canonical metric name.
func ParseMetricKind(s string) (MetricKind, bool) {
	for _, k := range MetricKinds {
		if string(k) == s {
			return k, true
		}
	}
	return "", false
}

// Measure is a single numeric value that may be missing in the source data.
type Measure struct {
	Value float64
	Valid bool
}

// Known wraps a present value.
func Known(v float64) Measure {
	return Measure{Value: v, Valid: true}
}

// Missing is the fallback for absent or unparseable values.
var Missing = Measure{}

// Or returns the value, or fallback when the measure is missing.
func (m Measure) Or(fallback float64) float64 {
	if !m.Valid {
		return fallback
	}
	return m.Value
}

// Float returns the value or NaN when missing. NaN fails every comparison.
func (m Measure) Float() float64 {
	return m.Or(math.NaN())
}

// MarshalJSON encodes a missing measure as null.
func (m Measure) MarshalJSON() ([]byte, error) {
	if !m.Valid {
		return []byte("null"), nil
	}
	return strconv.AppendFloat(nil, m.Value, 'g', -1, 64), nil
}

// Metric holds the average, minimum and maximum of one metric over the sensing interval.
type Metric struct {
	Avg Measure `json:"avg"`
	Min Measure `json:"min"`
	Max Measure `json:"max"`
}

// Ordered reports whether min <= avg <= max holds for all present values.
func (m Metric) Ordered() bool {
	if m.Min.Valid && m.Avg.Valid && m.Min.Value > m.Avg.Value {
		return false
	}
	if m.Avg.Valid && m.Max.Valid && m.Avg.Value > m.Max.Value {
		return false
	}
	if m.Min.Valid && m.Max.Valid && m.Min.Value > m.Max.Value {
		return false
	}
	return true
}

// Reading is one timestamped measurement row from one station.
type Reading struct {
	District    string    `json:"district"`
	SensingTime time.Time `json:"sensing_time"`
	Temperature Metric    `json:"temperature"`
	WindSpeed   Metric    `json:"wind_speed"`
	Humidity    Metric    `json:"humidity"`
	UV          Metric    `json:"uv"`
}

// Metric returns the metric of the given kind.
func (r Reading) Metric(kind MetricKind) Metric {
	switch kind {
	case MetricTemperature:
		return r.Temperature
	case MetricWindSpeed:
		return r.WindSpeed
	case MetricHumidity:
		return r.Humidity
	case MetricUV:
		return r.UV
	default:
		return Metric{}
	}
}

// Validate returns one message per metric that breaks min <= avg <= max.
func (r Reading) Validate() []string {
	var problems []string
	for _, kind := range MetricKinds {
		if !r.Metric(kind).Ordered() {
			problems = append(problems, fmt.Sprintf("%s at %s: %s min/avg/max out of order",
				r.District, r.SensingTime.Format(time.RFC3339), kind))
		}
	}
	return problems
}

// Dataset is the normalized result of one upstream fetch.
type Dataset struct {
	Readings  []Reading
	Warnings  []string
	FetchedAt time.Time
}

// Snapshot is what the dashboard consumes: either readings, or an empty set plus
// the diagnostic that explains why.
type Snapshot struct {
	Readings  []Reading `json:"readings"`
	Warnings  []string  `json:"warnings,omitempty"`
	FetchedAt time.Time `json:"fetched_at"`
	Error     string    `json:"error,omitempty"`
}

// Empty is true when there is nothing to render.
func (s Snapshot) Empty() bool {
	return len(s.Readings) == 0
}
