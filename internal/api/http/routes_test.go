package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/green-wellness-tracker/internal/advice"
	"github.com/i474232898/green-wellness-tracker/internal/logger"
	"github.com/i474232898/green-wellness-tracker/internal/profile"
	"github.com/i474232898/green-wellness-tracker/internal/sensor"
	"github.com/i474232898/green-wellness-tracker/internal/views"
)

type fixedSnapshot struct{ snap sensor.Snapshot }

func (f *fixedSnapshot) Snapshot(context.Context) sensor.Snapshot { return f.snap }

var testNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func testReadings() []sensor.Reading {
	return []sensor.Reading{
		{
			District:    "Mapo-gu",
			SensingTime: testNow,
			Temperature: sensor.Metric{Avg: sensor.Known(20), Min: sensor.Known(18), Max: sensor.Known(22)},
			WindSpeed:   sensor.Metric{Avg: sensor.Known(2)},
			Humidity:    sensor.Metric{Avg: sensor.Known(50)},
			UV:          sensor.Metric{Avg: sensor.Known(3)},
		},
		{District: "Jongno-gu", SensingTime: testNow.Add(-time.Hour), Temperature: sensor.Metric{Avg: sensor.Known(19)}},
		{District: "Mapo-gu", SensingTime: testNow.Add(-25 * time.Hour), Temperature: sensor.Metric{Avg: sensor.Known(15)}},
	}
}

func newTestApp(t *testing.T, snap sensor.Snapshot) (*fiber.App, profile.Store) {
	t.Helper()
	renderer, err := views.Load()
	require.NoError(t, err)

	store := profile.NewFileStore(t.TempDir())
	app := NewApp(AppOptions{AppName: "test"}, logger.Nop())
	RegisterRoutes(app, Deps{
		Sensors:  &fixedSnapshot{snap: snap},
		Profiles: store,
		Views:    renderer,
		Logger:   logger.Nop(),
		Now:      func() time.Time { return testNow },
	})
	return app, store
}

func do(t *testing.T, app *fiber.App, req *http.Request) (*http.Response, []byte) {
	t.Helper()
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, body
}

func get(t *testing.T, app *fiber.App, target string) (*http.Response, []byte) {
	t.Helper()
	return do(t, app, httptest.NewRequest(http.MethodGet, target, nil))
}

func TestHealthEndpoints(t *testing.T) {
	app, _ := newTestApp(t, sensor.Snapshot{})

	for _, path := range []string{"/health", "/manage/health", "/manage/ready"} {
		resp, _ := get(t, app, path)
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
	}

	resp, body := get(t, app, "/swagger/doc.json")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"/api/v1/recommendation"`)
}

func TestReadyProbe(t *testing.T) {
	ready := false
	app := NewApp(AppOptions{AppName: "test", Ready: func() bool { return ready }}, logger.Nop())

	resp, _ := get(t, app, "/manage/ready")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	ready = true
	resp, _ = get(t, app, "/manage/ready")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestReadingsEmptyIs503(t *testing.T) {
	app, _ := newTestApp(t, sensor.Snapshot{Error: "Failed to load sensor data: boom"})

	resp, body := get(t, app, "/api/v1/readings")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	var snap sensor.Snapshot
	require.NoError(t, json.Unmarshal(body, &snap))
	assert.Equal(t, "Failed to load sensor data: boom", snap.Error)

	for _, path := range []string{"/api/v1/readings/current", "/api/v1/districts", "/api/v1/trend", "/api/v1/compare?district=Mapo-gu", "/api/v1/recommendation"} {
		resp, body := get(t, app, path)
		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode, path)
		assert.Contains(t, string(body), `"error":true`, path)
	}
}

func TestReadings(t *testing.T) {
	app, _ := newTestApp(t, sensor.Snapshot{Readings: testReadings(), FetchedAt: testNow})

	resp, body := get(t, app, "/api/v1/readings")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var raw map[string]any
	require.NoError(t, json.Unmarshal(body, &raw))
	assert.Len(t, raw["readings"], 3)
	assert.NotContains(t, raw, "error")

	resp, body = get(t, app, "/api/v1/readings/current")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var cur CurrentResponse
	require.NoError(t, json.Unmarshal(body, &cur))
	assert.Equal(t, "Mapo-gu", cur.District)
	require.Len(t, cur.Cards, 4)
	assert.Equal(t, "20.0°C", cur.Cards[0].Value)
	assert.Len(t, cur.Notices, 2)

	_, body = get(t, app, "/api/v1/districts")
	assert.JSONEq(t, `{"districts":["Mapo-gu","Jongno-gu"]}`, string(body))
}

func TestTrend(t *testing.T) {
	app, _ := newTestApp(t, sensor.Snapshot{Readings: testReadings()})

	resp, body := get(t, app, "/api/v1/trend")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var tr TrendResponse
	require.NoError(t, json.Unmarshal(body, &tr))
	assert.Equal(t, "24h0m0s", tr.Window)
	require.Len(t, tr.Series, 4)
	assert.Len(t, tr.Series[0].Points, 2)

	_, body = get(t, app, "/api/v1/trend?window=48h")
	require.NoError(t, json.Unmarshal(body, &tr))
	assert.Len(t, tr.Series[0].Points, 3)

	for _, w := range []string{"abc", "30m", "200h"} {
		resp, _ := get(t, app, "/api/v1/trend?window="+w)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, w)
	}
}

func TestCompare(t *testing.T) {
	app, _ := newTestApp(t, sensor.Snapshot{Readings: testReadings()})

	resp, body := get(t, app, "/api/v1/compare?district=Jongno-gu&district=Mapo-gu&metric=temperature")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var cmp CompareResponse
	require.NoError(t, json.Unmarshal(body, &cmp))
	assert.Equal(t, []string{"Jongno-gu", "Mapo-gu"}, cmp.Districts)
	assert.Len(t, cmp.Series[0].Points, 1)
	assert.Len(t, cmp.Series[1].Points, 2)

	resp, _ = get(t, app, "/api/v1/compare")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp, _ = get(t, app, "/api/v1/compare?district=Mapo-gu&metric=pollen")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestProfileAPI(t *testing.T) {
	app, _ := newTestApp(t, sensor.Snapshot{Readings: testReadings()})

	resp, _ := get(t, app, "/api/v1/profiles/minji")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	put := httptest.NewRequest(http.MethodPut, "/api/v1/profiles/minji",
		strings.NewReader(`{"age":65,"health_status":"good","height":160,"weight":70}`))
	put.Header.Set("Content-Type", "application/json")
	resp, _ = do(t, app, put)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := get(t, app, "/api/v1/profiles/minji")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var got ProfileResponse
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, 65, got.Age)
	assert.Equal(t, profile.HealthGood, got.HealthStatus)
	assert.InDelta(t, 27.34, got.BMI, 0.01)

	bad := httptest.NewRequest(http.MethodPut, "/api/v1/profiles/minji",
		strings.NewReader(`{"age":0,"health_status":"sleepy"}`))
	bad.Header.Set("Content-Type", "application/json")
	resp, _ = do(t, app, bad)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = get(t, app, "/api/v1/profiles/.hidden")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRecommendation(t *testing.T) {
	app, store := newTestApp(t, sensor.Snapshot{Readings: testReadings()})
	require.NoError(t, store.Save(context.Background(), profile.UserProfile{
		Username: "minji", Age: 65, HealthStatus: profile.HealthGood, Height: 160, Weight: 70,
	}))

	resp, body := get(t, app, "/api/v1/recommendation?username=minji")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var rec struct {
		Recommendation string   `json:"recommendation"`
		Fragments      []string `json:"fragments"`
	}
	require.NoError(t, json.Unmarshal(body, &rec))
	assert.Equal(t, []string{advice.OutdoorJog, advice.LowIntensity, advice.MoreCardio}, rec.Fragments)

	_, body = get(t, app, "/api/v1/recommendation?health=allergy&height=180&weight=55")
	require.NoError(t, json.Unmarshal(body, &rec))
	assert.Equal(t, []string{advice.LightWalk, advice.StrengthTraining}, rec.Fragments)

	resp, _ = get(t, app, "/api/v1/recommendation?username=nobody")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp, _ = get(t, app, "/api/v1/recommendation?health=sleepy")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestFeedbackAPI(t *testing.T) {
	app, _ := newTestApp(t, sensor.Snapshot{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/feedback", strings.NewReader(`{"message":"Love the charts"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, body := do(t, app, req)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	var ack map[string]string
	require.NoError(t, json.Unmarshal(body, &ack))
	assert.Equal(t, "received", ack["status"])
	assert.Len(t, ack["id"], 36)

	req = httptest.NewRequest(http.MethodPost, "/api/v1/feedback", strings.NewReader(`{"message":""}`))
	req.Header.Set("Content-Type", "application/json")
	resp, _ = do(t, app, req)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestDashboardPage(t *testing.T) {
	app, _ := newTestApp(t, sensor.Snapshot{Readings: testReadings(), FetchedAt: testNow})

	resp, body := get(t, app, "/?district=Jongno-gu")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")
	html := string(body)
	assert.Contains(t, html, "20.0°C")
	assert.Contains(t, html, advice.OutdoorJog)
	assert.Contains(t, html, `<option value="Jongno-gu" selected>`)
}

func TestDashboardErrorState(t *testing.T) {
	app, _ := newTestApp(t, sensor.Snapshot{})

	resp, body := get(t, app, "/")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	html := string(body)
	assert.Contains(t, html, sensor.ErrNoReadings.Error())
	assert.NotContains(t, html, "new Chart(")
}

func postForm(t *testing.T, app *fiber.App, path string, form url.Values) (*http.Response, []byte) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return do(t, app, req)
}

func TestProfileForm(t *testing.T) {
	app, store := newTestApp(t, sensor.Snapshot{Readings: testReadings()})

	resp, _ := postForm(t, app, "/profile", url.Values{
		"username": {"jiwoo"}, "age": {"34"}, "health_status": {"allergy"}, "height": {"172.5"}, "weight": {"68"},
	})
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/?saved=1&username=jiwoo", resp.Header.Get("Location"))

	saved, err := store.Load(context.Background(), "jiwoo")
	require.NoError(t, err)
	assert.Equal(t, profile.UserProfile{Username: "jiwoo", Age: 34, HealthStatus: profile.HealthAllergy, Height: 172.5, Weight: 68}, saved)

	_, body := get(t, app, "/?username=jiwoo&saved=1")
	assert.Contains(t, string(body), "Profile saved.")
	assert.Contains(t, string(body), advice.LightWalk)

	resp, body = postForm(t, app, "/profile", url.Values{"username": {"jiwoo"}, "age": {"old"}, "health_status": {"good"}})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, string(body), "Could not save profile")
}

func TestFeedbackForm(t *testing.T) {
	app, _ := newTestApp(t, sensor.Snapshot{Readings: testReadings()})

	resp, _ := postForm(t, app, "/feedback", url.Values{"message": {"nice"}})
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	loc, err := url.Parse(resp.Header.Get("Location"))
	require.NoError(t, err)
	assert.Len(t, loc.Query().Get("feedback"), 36)

	resp, body := postForm(t, app, "/feedback", url.Values{"message": {"   "}})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, string(body), "Please write")
}
