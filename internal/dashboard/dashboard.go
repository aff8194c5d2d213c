package dashboard

import (
	"context"
	"errors"
	"time"

	"github.com/i474232898/green-wellness-tracker/internal/advice"
	"github.com/i474232898/green-wellness-tracker/internal/logger"
	"github.com/i474232898/green-wellness-tracker/internal/presenter"
	"github.com/i474232898/green-wellness-tracker/internal/profile"
	"github.com/i474232898/green-wellness-tracker/internal/sensor"
	"github.com/i474232898/green-wellness-tracker/internal/trend"
)

// defaultCompareCount is how many districts the comparison chart shows before
// the user picks any.
const defaultCompareCount = 3

// SnapshotSource is satisfied by sensor.Service.
type SnapshotSource interface {
	Snapshot(ctx context.Context) sensor.Snapshot
}

// Request carries the user's selections for one page render.
type Request struct {
	Username         string
	District         string
	CompareDistricts []string
	CompareMetric    sensor.MetricKind
	Window           time.Duration
}

// Page is everything the dashboard template renders.
type Page struct {
	FetchedAt time.Time
	Error     string
	Warnings  []string

	Cards   []presenter.Card
	Notices []advice.Notice

	Window time.Duration
	Trend  []trend.Series

	Districts        []string
	SelectedDistrict string
	Park             *presenter.ParkInfo

	CompareDistricts []string
	CompareMetric    sensor.MetricKind
	Compare          []trend.Series

	Username       string
	Profile        *profile.UserProfile
	ProfileError   string
	Recommendation string

	HealthStatuses []profile.HealthStatus
	MetricKinds    []sensor.MetricKind
}

// Recommendation is the advice for one profile against the newest reading.
type Recommendation struct {
	District       string               `json:"district"`
	SensingTime    time.Time            `json:"sensing_time"`
	HealthStatus   profile.HealthStatus `json:"health_status"`
	Age            int                  `json:"age"`
	BMI            float64              `json:"bmi"`
	Recommendation string               `json:"recommendation"`
	Fragments      []string             `json:"fragments"`
	Notices        []advice.Notice      `json:"notices"`
}

// Builder assembles dashboard pages from the sensor snapshot and profile store.
type Builder struct {
	data     SnapshotSource
	profiles profile.Store
	l        *logger.Logger
	now      func() time.Time
	window   time.Duration
}

func NewBuilder(data SnapshotSource, profiles profile.Store, l *logger.Logger, window time.Duration) *Builder {
	if window <= 0 {
		window = trend.DefaultWindow
	}
	return &Builder{
		data:     data,
		profiles: profiles,
		l:        l,
		now:      time.Now,
		window:   window,
	}
}

// WithClock replaces the wall clock used for the trend window.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// Build never fails. A data problem yields an error page with no cards or charts;
// a profile problem only sets ProfileError.
func (b *Builder) Build(ctx context.Context, req Request) Page {
	page := Page{
		Username:       req.Username,
		HealthStatuses: profile.HealthStatuses,
		MetricKinds:    sensor.MetricKinds,
	}

	user := b.loadProfile(ctx, req.Username, &page)

	snap := b.data.Snapshot(ctx)
	page.FetchedAt = snap.FetchedAt
	page.Warnings = snap.Warnings
	if snap.Empty() {
		page.Error = snap.Error
		if page.Error == "" {
			page.Error = sensor.ErrNoReadings.Error()
		}
		return page
	}

	latest, _ := sensor.Latest(snap.Readings)
	page.Cards = presenter.Cards(latest)
	page.Notices = advice.Notices(latest.Temperature.Avg.Float(), latest.UV.Avg.Float())
	page.Recommendation = advice.Recommend(AdviceInput(latest, user))

	page.Window = b.windowFor(req.Window)
	page.Trend = trend.AverageSeries(trend.Recent(snap.Readings, b.now(), page.Window))

	page.Districts = sensor.Districts(snap.Readings)
	page.SelectedDistrict = b.selectDistrict(req.District, page.Districts)
	if r, ok := sensor.FirstForDistrict(snap.Readings, page.SelectedDistrict); ok {
		info := presenter.NewParkInfo(r)
		page.Park = &info
	}

	page.CompareMetric = req.CompareMetric
	if _, ok := sensor.ParseMetricKind(string(page.CompareMetric)); !ok {
		page.CompareMetric = sensor.MetricTemperature
	}
	page.CompareDistricts = known(req.CompareDistricts, page.Districts)
	if len(page.CompareDistricts) == 0 {
		n := min(defaultCompareCount, len(page.Districts))
		page.CompareDistricts = page.Districts[:n]
	}
	page.Compare = trend.DistrictSeries(
		trend.ByDistricts(snap.Readings, page.CompareDistricts),
		page.CompareDistricts,
		page.CompareMetric,
	)

	return page
}

// Recommend evaluates the advice rules for p against the newest reading.
func (b *Builder) Recommend(ctx context.Context, p profile.UserProfile) (Recommendation, error) {
	snap := b.data.Snapshot(ctx)
	latest, ok := sensor.Latest(snap.Readings)
	if !ok {
		if snap.Error != "" {
			return Recommendation{}, errors.New(snap.Error)
		}
		return Recommendation{}, sensor.ErrNoReadings
	}

	in := AdviceInput(latest, p)
	fragments := advice.Fragments(in)
	return Recommendation{
		District:       latest.District,
		SensingTime:    latest.SensingTime,
		HealthStatus:   in.Health,
		Age:            in.Age,
		BMI:            in.BMI,
		Recommendation: advice.Recommend(in),
		Fragments:      fragments,
		Notices:        advice.Notices(in.Temperature, in.UV),
	}, nil
}

// AdviceInput combines a reading with a profile. Without a health status the
// user is treated as healthy.
func AdviceInput(r sensor.Reading, p profile.UserProfile) advice.Input {
	hs := p.HealthStatus
	if hs == "" {
		hs = profile.HealthGood
	}
	return advice.Input{
		Temperature: r.Temperature.Avg.Float(),
		UV:          r.UV.Avg.Float(),
		WindSpeed:   r.WindSpeed.Avg.Float(),
		Health:      hs,
		Age:         p.Age,
		BMI:         p.BMI(),
	}
}

func (b *Builder) loadProfile(ctx context.Context, username string, page *Page) profile.UserProfile {
	if username == "" || b.profiles == nil {
		return profile.UserProfile{}
	}
	p, err := b.profiles.Load(ctx, username)
	switch {
	case err == nil:
		page.Profile = &p
		return p
	case errors.Is(err, profile.ErrNotFound):
		return profile.UserProfile{Username: username}
	default:
		b.l.Warning("profile load failed", map[string]any{"username": username, "err": err})
		page.ProfileError = "Could not load profile: " + err.Error()
		return profile.UserProfile{Username: username}
	}
}

func (b *Builder) windowFor(w time.Duration) time.Duration {
	if w < trend.MinWindow || w > trend.MaxWindow {
		return b.window
	}
	return w
}

func (b *Builder) selectDistrict(requested string, districts []string) string {
	for _, d := range districts {
		if d == requested {
			return d
		}
	}
	if len(districts) > 0 {
		return districts[0]
	}
	return ""
}

func known(selected, districts []string) []string {
	valid := make(map[string]struct{}, len(districts))
	for _, d := range districts {
		valid[d] = struct{}{}
	}
	var out []string
	seen := make(map[string]struct{}, len(selected))
	for _, s := range selected {
		if _, ok := valid[s]; !ok {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
