package providers

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/i474232898/green-wellness-tracker/internal/sensor"
)

// Upstream column names.
const (
	colDistrict     = "ADMINISTRATIVE_DISTRICT"
	colSensingTime  = "SENSING_TIME"
	colAvgTemp      = "AVG_TEMP"
	colMinTemp      = "MIN_TEMP"
	colMaxTemp      = "MAX_TEMP"
	colAvgWindSpeed = "AVG_WIND_SPEED"
	colMinWindSpeed = "MIN_WIND_SPEED"
	colMaxWindSpeed = "MAX_WIND_SPEED"
	colAvgHumidity  = "AVG_HUMI"
	colMinHumidity  = "MIN_HUMI"
	colMaxHumidity  = "MAX_HUMI"
	colAvgUV        = "AVG_ULTRA_RAYS"
	colMinUV        = "MIN_ULTRA_RAYS"
	colMaxUV        = "MAX_ULTRA_RAYS"
)

var expectedColumns = []string{
	colDistrict, colSensingTime,
	colAvgTemp, colMinTemp, colMaxTemp,
	colAvgWindSpeed, colMinWindSpeed, colMaxWindSpeed,
	colAvgHumidity, colMinHumidity, colMaxHumidity,
	colAvgUV, colMinUV, colMaxUV,
}

var sensingTimeLayouts = []string{
	"2006-01-02_15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"20060102150405",
	"200601021504",
	time.RFC3339,
}

// maxOrderWarnings caps how many min/avg/max violations are listed individually.
const maxOrderWarnings = 10

type rowParser struct {
	loc *time.Location

	unparsed map[string]int
	badTimes int
	disorder []string
}

// parseRows converts raw upstream rows into readings. It never fails: missing
// columns, unparseable values and min/avg/max violations become warnings.
func parseRows(rows []map[string]any, loc *time.Location) ([]sensor.Reading, []string) {
	if loc == nil {
		loc = time.UTC
	}
	p := &rowParser{loc: loc, unparsed: make(map[string]int)}

	warnings := missingColumns(rows)
	readings := make([]sensor.Reading, 0, len(rows))
	for _, row := range rows {
		readings = append(readings, p.reading(row))
	}

	cols := make([]string, 0, len(p.unparsed))
	for col := range p.unparsed {
		cols = append(cols, col)
	}
	sort.Strings(cols)
	for _, col := range cols {
		warnings = append(warnings, fmt.Sprintf("%s: %d value(s) could not be parsed as numbers", col, p.unparsed[col]))
	}
	if p.badTimes > 0 {
		warnings = append(warnings, fmt.Sprintf("%s: %d value(s) could not be parsed as timestamps", colSensingTime, p.badTimes))
	}
	if n := len(p.disorder); n > 0 {
		shown := p.disorder
		if n > maxOrderWarnings {
			shown = shown[:maxOrderWarnings]
		}
		warnings = append(warnings, shown...)
		if n > maxOrderWarnings {
			warnings = append(warnings, fmt.Sprintf("%d more min/avg/max violation(s) not listed", n-maxOrderWarnings))
		}
	}

	return readings, warnings
}

// missingColumns reports every expected column that no row carries.
func missingColumns(rows []map[string]any) []string {
	if len(rows) == 0 {
		return nil
	}
	present := make(map[string]struct{})
	for _, row := range rows {
		for k := range row {
			present[k] = struct{}{}
		}
	}
	var out []string
	for _, col := range expectedColumns {
		if _, ok := present[col]; !ok {
			out = append(out, fmt.Sprintf("missing expected column %s", col))
		}
	}
	return out
}

func (p *rowParser) reading(row map[string]any) sensor.Reading {
	r := sensor.Reading{
		District:    strings.TrimSpace(text(row[colDistrict])),
		SensingTime: p.sensingTime(row[colSensingTime]),
		Temperature: p.metric(row, colAvgTemp, colMinTemp, colMaxTemp),
		WindSpeed:   p.metric(row, colAvgWindSpeed, colMinWindSpeed, colMaxWindSpeed),
		Humidity:    p.metric(row, colAvgHumidity, colMinHumidity, colMaxHumidity),
		UV:          p.metric(row, colAvgUV, colMinUV, colMaxUV),
	}
	p.disorder = append(p.disorder, r.Validate()...)
	return r
}

func (p *rowParser) metric(row map[string]any, avgCol, minCol, maxCol string) sensor.Metric {
	return sensor.Metric{
		Avg: p.measure(row, avgCol),
		Min: p.measure(row, minCol),
		Max: p.measure(row, maxCol),
	}
}

func (p *rowParser) measure(row map[string]any, col string) sensor.Measure {
	m, ok := toMeasure(row[col])
	if !ok {
		p.unparsed[col]++
	}
	return m
}

func (p *rowParser) sensingTime(v any) time.Time {
	s := strings.TrimSpace(text(v))
	if s == "" {
		return time.Time{}
	}
	for _, layout := range sensingTimeLayouts {
		if t, err := time.ParseInLocation(layout, s, p.loc); err == nil {
			return t
		}
	}
	p.badTimes++
	return time.Time{}
}

// toMeasure coerces a JSON value into a measure. Absent and blank values are
// missing without being an error; ok is false only for values that look present
// but are not finite numbers.
func toMeasure(v any) (sensor.Measure, bool) {
	var (
		f   float64
		err error
	)
	switch val := v.(type) {
	case nil:
		return sensor.Missing, true
	case json.Number:
		f, err = val.Float64()
	case float64:
		f = val
	case string:
		s := strings.TrimSpace(val)
		if s == "" || s == "-" {
			return sensor.Missing, true
		}
		f, err = strconv.ParseFloat(s, 64)
	default:
		return sensor.Missing, false
	}
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return sensor.Missing, false
	}
	return sensor.Known(f), true
}

func text(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case json.Number:
		return val.String()
	default:
		return fmt.Sprint(val)
	}
}
