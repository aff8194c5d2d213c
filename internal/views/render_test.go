package views

import (
	"bytes"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/green-wellness-tracker/internal/advice"
	"github.com/i474232898/green-wellness-tracker/internal/dashboard"
	"github.com/i474232898/green-wellness-tracker/internal/presenter"
	"github.com/i474232898/green-wellness-tracker/internal/profile"
	"github.com/i474232898/green-wellness-tracker/internal/sensor"
	"github.com/i474232898/green-wellness-tracker/internal/trend"
)

func TestLoad(t *testing.T) {
	r, err := Load()
	require.NoError(t, err)
	require.NotNil(t, r.tmpl)
}

func TestLoadFailures(t *testing.T) {
	_, err := loadFromFS(fstest.MapFS{}, "templates")
	assert.Error(t, err)

	_, err = loadFromFS(fstest.MapFS{
		"templates/dashboard.html":        {Data: []byte("{{ .")},
		"templates/partials/profile.html": {Data: []byte("ok")},
	}, "templates")
	assert.Error(t, err)
}

func TestRenderNotLoaded(t *testing.T) {
	var r *Renderer
	assert.Error(t, r.RenderDashboard(&bytes.Buffer{}, &Dashboard{}))
}

func TestRenderErrorState(t *testing.T) {
	r, err := Load()
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, r.RenderDashboard(&buf, &Dashboard{Page: dashboard.Page{
		Error:          "Failed to load sensor data: boom",
		HealthStatuses: profile.HealthStatuses,
	}}))

	html := buf.String()
	assert.Contains(t, html, "Failed to load sensor data: boom")
	assert.NotContains(t, html, `class="cards"`)
	assert.NotContains(t, html, "new Chart(")
	assert.Contains(t, html, `action="/feedback"`)
}

func TestRenderFullPage(t *testing.T) {
	r, err := Load()
	require.NoError(t, err)

	v := 21.5
	page := dashboard.Page{
		FetchedAt: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		Cards: []presenter.Card{
			{Metric: sensor.MetricTemperature, Title: "Temperature", Value: "21.5°C", Min: "19.0°C", Max: "23.1°C", Available: true},
			{Metric: sensor.MetricWindSpeed, Title: "Wind speed", Value: presenter.NotAvailable, Min: presenter.NotAvailable, Max: presenter.NotAvailable},
		},
		Notices:          []advice.Notice{{Level: advice.LevelSuccess, Message: "The UV index is moderate."}},
		Window:           24 * time.Hour,
		Trend:            []trend.Series{{Name: "temperature", Points: []trend.Point{{Time: time.Date(2024, 5, 1, 11, 0, 0, 0, time.UTC), Value: &v}}}},
		Districts:        []string{"Mapo-gu", "Jongno-gu"},
		SelectedDistrict: "Jongno-gu",
		Park:             &presenter.ParkInfo{District: "Jongno-gu", Temperature: "19.0°C", Humidity: "40.0%"},
		CompareDistricts: []string{"Mapo-gu"},
		CompareMetric:    sensor.MetricTemperature,
		Compare:          []trend.Series{},
		Username:         "minji",
		Profile:          &profile.UserProfile{Username: "minji", Age: 40, HealthStatus: profile.HealthCardiac, Height: 160, Weight: 50},
		Recommendation:   advice.GenericIndoor,
		HealthStatuses:   profile.HealthStatuses,
		MetricKinds:      sensor.MetricKinds,
	}

	var buf bytes.Buffer
	require.NoError(t, r.RenderDashboard(&buf, &Dashboard{Page: page, Flash: "Profile saved.", FlashLevel: "success"}))
	html := buf.String()

	assert.Contains(t, html, "21.5°C")
	assert.Contains(t, html, `metric-value na`)
	assert.Contains(t, html, "Trend over the last 24 hours")
	assert.Contains(t, html, "Consult a doctor")
	assert.Contains(t, html, `<option value="Jongno-gu" selected>`)
	assert.Contains(t, html, `<option value="cardiac" selected>`)
	assert.Contains(t, html, "Profile saved.")
	assert.Contains(t, html, "BMI: 19.5")
	assert.Contains(t, html, `"name":"temperature"`)
}

func TestWindowLabel(t *testing.T) {
	for d, want := range map[time.Duration]string{
		24 * time.Hour:             "24 hours",
		time.Hour:                  "1 hour",
		90 * time.Minute:           "1h30m",
		150 * time.Hour:            "150 hours",
		time.Hour + 30*time.Second: "1h0m30s",
	} {
		assert.Equal(t, want, windowLabel(d), d.String())
	}
}

func TestRenderDashboardPartialHourWindow(t *testing.T) {
	r, err := Load()
	require.NoError(t, err)

	page := dashboard.Page{
		FetchedAt: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		Cards:     []presenter.Card{{Metric: sensor.MetricTemperature, Title: "Temperature", Value: "21.5°C", Available: true}},
		Window:    90 * time.Minute,
		Trend:     []trend.Series{},
		Compare:   []trend.Series{},
	}
	var buf bytes.Buffer
	require.NoError(t, r.RenderDashboard(&buf, &Dashboard{Page: page}))

	assert.Contains(t, buf.String(), "Trend over the last 1h30m")
	assert.NotContains(t, buf.String(), "last 1 hours")
}
