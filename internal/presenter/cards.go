package presenter

import (
	"strconv"

	"github.com/i474232898/green-wellness-tracker/internal/sensor"
)

// NotAvailable is shown instead of a number when a value is missing.
const NotAvailable = "N/A"

type metricLabel struct {
	title string
	unit  string
}

var labels = map[sensor.MetricKind]metricLabel{
	sensor.MetricTemperature: {title: "Temperature", unit: "°C"},
	sensor.MetricWindSpeed:   {title: "Wind speed", unit: "m/s"},
	sensor.MetricHumidity:    {title: "Humidity", unit: "%"},
	sensor.MetricUV:          {title: "UV index", unit: " UV"},
}

// Card is one current-condition widget.
type Card struct {
	Metric    sensor.MetricKind `json:"metric"`
	Title     string            `json:"title"`
	Value     string            `json:"value"`
	Min       string            `json:"min"`
	Max       string            `json:"max"`
	Available bool              `json:"available"`
}

// Cards renders one card per metric. A missing value only affects its own card.
func Cards(r sensor.Reading) []Card {
	out := make([]Card, 0, len(sensor.MetricKinds))
	for _, kind := range sensor.MetricKinds {
		out = append(out, NewCard(kind, r.Metric(kind)))
	}
	return out
}

func NewCard(kind sensor.MetricKind, m sensor.Metric) Card {
	l := labels[kind]
	return Card{
		Metric:    kind,
		Title:     l.title,
		Value:     Format(m.Avg, l.unit),
		Min:       Format(m.Min, l.unit),
		Max:       Format(m.Max, l.unit),
		Available: m.Avg.Valid,
	}
}

// Format prints a measure with one decimal and its unit, or NotAvailable.
func Format(m sensor.Measure, unit string) string {
	if !m.Valid {
		return NotAvailable
	}
	return strconv.FormatFloat(m.Value, 'f', 1, 64) + unit
}

// ParkInfo summarizes one district for the park selector.
type ParkInfo struct {
	District    string `json:"district"`
	Temperature string `json:"temperature"`
	Humidity    string `json:"humidity"`
}

func NewParkInfo(r sensor.Reading) ParkInfo {
	return ParkInfo{
		District:    r.District,
		Temperature: Format(r.Temperature.Avg, labels[sensor.MetricTemperature].unit),
		Humidity:    Format(r.Humidity.Avg, labels[sensor.MetricHumidity].unit),
	}
}
