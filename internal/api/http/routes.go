package httpapi

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/swagger"
	"github.com/google/uuid"

	"github.com/i474232898/green-wellness-tracker/docs"
	"github.com/i474232898/green-wellness-tracker/internal/advice"
	"github.com/i474232898/green-wellness-tracker/internal/dashboard"
	"github.com/i474232898/green-wellness-tracker/internal/logger"
	"github.com/i474232898/green-wellness-tracker/internal/presenter"
	"github.com/i474232898/green-wellness-tracker/internal/profile"
	"github.com/i474232898/green-wellness-tracker/internal/sensor"
	"github.com/i474232898/green-wellness-tracker/internal/trend"
	"github.com/i474232898/green-wellness-tracker/internal/views"
)

var validate = validator.New()

// SnapshotSource is satisfied by sensor.Service.
type SnapshotSource interface {
	Snapshot(ctx context.Context) sensor.Snapshot
}

// Deps are the collaborators the handlers need.
type Deps struct {
	Sensors     SnapshotSource
	Profiles    profile.Store
	Views       *views.Renderer
	TrendWindow time.Duration
	Logger      *logger.Logger
	Now         func() time.Time
}

type routes struct {
	sensors  SnapshotSource
	profiles profile.Store
	builder  *dashboard.Builder
	views    *views.Renderer
	window   time.Duration
	l        *logger.Logger
	now      func() time.Time
}

// RegisterRoutes wires the HTML dashboard, the JSON API and the API docs.
func RegisterRoutes(app *fiber.App, d Deps) {
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.TrendWindow <= 0 {
		d.TrendWindow = trend.DefaultWindow
	}
	r := &routes{
		sensors:  d.Sensors,
		profiles: d.Profiles,
		builder:  dashboard.NewBuilder(d.Sensors, d.Profiles, d.Logger, d.TrendWindow).WithClock(d.Now),
		views:    d.Views,
		window:   d.TrendWindow,
		l:        d.Logger,
		now:      d.Now,
	}

	// Swagger documentation
	app.Get("/swagger/doc.json", func(c *fiber.Ctx) error {
		c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
		return c.Send(docs.SwaggerJSON)
	})
	app.Get("/swagger/*", swagger.New(swagger.Config{
		URL:         "/swagger/doc.json",
		DeepLinking: true,
	}))

	// Dashboard
	app.Get("/", r.handleDashboard)
	app.Post("/profile", r.handleProfileForm)
	app.Post("/feedback", r.handleFeedbackForm)

	v1 := app.Group("/api/v1")
	v1.Get("/readings", r.handleReadings)
	v1.Get("/readings/current", r.handleCurrent)
	v1.Get("/trend", r.handleTrend)
	v1.Get("/compare", r.handleCompare)
	v1.Get("/districts", r.handleDistricts)
	v1.Get("/profiles/:username", r.handleGetProfile)
	v1.Put("/profiles/:username", r.handlePutProfile)
	v1.Get("/recommendation", r.handleRecommendation)
	v1.Post("/feedback", r.handleFeedback)
}

// CurrentResponse is the newest reading rendered as cards.
type CurrentResponse struct {
	District    string           `json:"district"`
	SensingTime time.Time        `json:"sensing_time"`
	Cards       []presenter.Card `json:"cards"`
	Notices     []advice.Notice  `json:"notices"`
	FetchedAt   time.Time        `json:"fetched_at"`
}

// TrendResponse holds one series per average metric.
type TrendResponse struct {
	Window string         `json:"window"`
	From   time.Time      `json:"from"`
	To     time.Time      `json:"to"`
	Series []trend.Series `json:"series"`
}

// CompareResponse holds one series per requested district.
type CompareResponse struct {
	Metric    sensor.MetricKind `json:"metric"`
	Districts []string          `json:"districts"`
	Series    []trend.Series    `json:"series"`
}

// ProfileRequest is the body of PUT /api/v1/profiles/{username}.
type ProfileRequest struct {
	Age          int     `json:"age"`
	HealthStatus string  `json:"health_status"`
	Height       float64 `json:"height"`
	Weight       float64 `json:"weight"`
}

// ProfileResponse is a stored profile plus its BMI.
type ProfileResponse struct {
	Username     string               `json:"username"`
	Age          int                  `json:"age"`
	HealthStatus profile.HealthStatus `json:"health_status"`
	Height       float64              `json:"height"`
	Weight       float64              `json:"weight"`
	BMI          float64              `json:"bmi"`
}

// FeedbackRequest is the body of POST /api/v1/feedback.
type FeedbackRequest struct {
	Username string `json:"username" validate:"max=64"`
	Message  string `json:"message" validate:"required,max=2000"`
}

type recommendationQuery struct {
	Username string  `query:"username"`
	Health   string  `query:"health" validate:"omitempty,oneof=good allergy respiratory cardiac"`
	Age      int     `query:"age" validate:"gte=0,lte=120"`
	Height   float64 `query:"height" validate:"gte=0,lte=300"`
	Weight   float64 `query:"weight" validate:"gte=0,lte=500"`
}

func (r *routes) handleReadings(c *fiber.Ctx) error {
	snap := r.sensors.Snapshot(c.UserContext())
	if snap.Empty() {
		if snap.Error == "" {
			snap.Error = sensor.ErrNoReadings.Error()
		}
		snap.Readings = []sensor.Reading{}
		return c.Status(fiber.StatusServiceUnavailable).JSON(snap)
	}
	return c.JSON(snap)
}

func (r *routes) handleCurrent(c *fiber.Ctx) error {
	snap, err := r.snapshot(c)
	if err != nil {
		return err
	}
	latest, _ := sensor.Latest(snap.Readings)
	return c.JSON(CurrentResponse{
		District:    latest.District,
		SensingTime: latest.SensingTime,
		Cards:       presenter.Cards(latest),
		Notices:     advice.Notices(latest.Temperature.Avg.Float(), latest.UV.Avg.Float()),
		FetchedAt:   snap.FetchedAt,
	})
}

func (r *routes) handleTrend(c *fiber.Ctx) error {
	window := r.window
	if raw := c.Query("window"); raw != "" {
		w, err := time.ParseDuration(raw)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid window; use a duration such as 24h")
		}
		if w < trend.MinWindow || w > trend.MaxWindow {
			return fiber.NewError(fiber.StatusBadRequest,
				fmt.Sprintf("window must be between %s and %s", trend.MinWindow, trend.MaxWindow))
		}
		window = w
	}

	snap, err := r.snapshot(c)
	if err != nil {
		return err
	}
	now := r.now()
	return c.JSON(TrendResponse{
		Window: window.String(),
		From:   now.Add(-window),
		To:     now,
		Series: trend.AverageSeries(trend.Recent(snap.Readings, now, window)),
	})
}

func (r *routes) handleCompare(c *fiber.Ctx) error {
	districts := queryValues(c, "district")
	if len(districts) == 0 {
		return fiber.NewError(fiber.StatusBadRequest, "at least one district query parameter is required")
	}
	metric := sensor.MetricTemperature
	if raw := c.Query("metric"); raw != "" {
		m, ok := sensor.ParseMetricKind(raw)
		if !ok {
			return fiber.NewError(fiber.StatusBadRequest, "metric must be one of temperature, wind_speed, humidity, uv")
		}
		metric = m
	}

	snap, err := r.snapshot(c)
	if err != nil {
		return err
	}
	series := trend.DistrictSeries(trend.ByDistricts(snap.Readings, districts), districts, metric)
	names := make([]string, 0, len(series))
	for _, s := range series {
		names = append(names, s.Name)
	}
	return c.JSON(CompareResponse{Metric: metric, Districts: names, Series: series})
}

func (r *routes) handleDistricts(c *fiber.Ctx) error {
	snap, err := r.snapshot(c)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"districts": sensor.Districts(snap.Readings)})
}

func (r *routes) handleGetProfile(c *fiber.Ctx) error {
	p, err := r.profiles.Load(c.UserContext(), c.Params("username"))
	if err != nil {
		return profileError(err)
	}
	return c.JSON(profileResponse(p))
}

func (r *routes) handlePutProfile(c *fiber.Ctx) error {
	var req ProfileRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid JSON body")
	}
	p := profile.UserProfile{
		Username:     c.Params("username"),
		Age:          req.Age,
		HealthStatus: profile.HealthStatus(req.HealthStatus),
		Height:       req.Height,
		Weight:       req.Weight,
	}
	if err := r.profiles.Save(c.UserContext(), p); err != nil {
		return profileError(err)
	}
	r.l.Info("profile saved", map[string]any{"username": p.Username})
	return c.JSON(profileResponse(p))
}

func (r *routes) handleRecommendation(c *fiber.Ctx) error {
	var q recommendationQuery
	if err := c.QueryParser(&q); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	if err := validate.Struct(q); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	var p profile.UserProfile
	if q.Username != "" {
		loaded, err := r.profiles.Load(c.UserContext(), q.Username)
		if err != nil {
			return profileError(err)
		}
		p = loaded
	} else {
		p = profile.UserProfile{
			Age:          q.Age,
			HealthStatus: profile.HealthStatus(q.Health),
			Height:       q.Height,
			Weight:       q.Weight,
		}
	}

	rec, err := r.builder.Recommend(c.UserContext(), p)
	if err != nil {
		return fiber.NewError(fiber.StatusServiceUnavailable, err.Error())
	}
	return c.JSON(rec)
}

func (r *routes) handleFeedback(c *fiber.Ctx) error {
	var req FeedbackRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid JSON body")
	}
	if err := validate.Struct(req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	id := r.recordFeedback(req.Username, req.Message)
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"status": "received", "id": id})
}

// recordFeedback acknowledges feedback. It is logged, not stored.
func (r *routes) recordFeedback(username, message string) string {
	id := uuid.NewString()
	r.l.Info("feedback received", map[string]any{
		"id":       id,
		"username": username,
		"message":  message,
	})
	return id
}

// snapshot returns the current dataset, or a 503 error when there is nothing to serve.
func (r *routes) snapshot(c *fiber.Ctx) (sensor.Snapshot, error) {
	snap := r.sensors.Snapshot(c.UserContext())
	if snap.Empty() {
		msg := snap.Error
		if msg == "" {
			msg = sensor.ErrNoReadings.Error()
		}
		return snap, fiber.NewError(fiber.StatusServiceUnavailable, msg)
	}
	return snap, nil
}

func profileError(err error) error {
	switch {
	case errors.Is(err, profile.ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, "profile not found")
	case errors.Is(err, profile.ErrInvalidUsername), errors.Is(err, profile.ErrInvalidProfile):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	default:
		return fmt.Errorf("profile store: %w", err)
	}
}

func profileResponse(p profile.UserProfile) ProfileResponse {
	return ProfileResponse{
		Username:     p.Username,
		Age:          p.Age,
		HealthStatus: p.HealthStatus,
		Height:       p.Height,
		Weight:       p.Weight,
		BMI:          p.BMI(),
	}
}

// queryValues returns every non-empty value of a repeated query parameter.
func queryValues(c *fiber.Ctx, key string) []string {
	var out []string
	for _, v := range c.Context().QueryArgs().PeekMulti(key) {
		if s := string(v); s != "" {
			out = append(out, s)
		}
	}
	return out
}
