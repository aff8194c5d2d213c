package httpapi

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/green-wellness-tracker/internal/common"
	"github.com/i474232898/green-wellness-tracker/internal/dashboard"
	"github.com/i474232898/green-wellness-tracker/internal/profile"
	"github.com/i474232898/green-wellness-tracker/internal/sensor"
	"github.com/i474232898/green-wellness-tracker/internal/views"
)

const maxFeedbackLen = 2000

func (r *routes) handleDashboard(c *fiber.Ctx) error {
	view := &views.Dashboard{}
	switch {
	case c.Query("saved") != "":
		view.Flash, view.FlashLevel = "Profile saved.", "success"
	case c.Query("feedback") != "":
		view.Flash, view.FlashLevel = "Thanks for your feedback! Receipt "+c.Query("feedback")+".", "success"
	}
	return r.renderDashboard(c, fiber.StatusOK, view)
}

func (r *routes) handleProfileForm(c *fiber.Ctx) error {
	p, err := profileFromForm(c)
	if err == nil {
		err = r.profiles.Save(c.UserContext(), p)
	}
	if err != nil {
		status := fiber.StatusInternalServerError
		if errors.Is(err, profile.ErrInvalidProfile) || errors.Is(err, profile.ErrInvalidUsername) {
			status = fiber.StatusBadRequest
		} else {
			r.l.Error(err, map[string]any{"username": p.Username})
		}
		return r.renderDashboard(c, status, &views.Dashboard{
			Flash:      "Could not save profile: " + err.Error(),
			FlashLevel: "warning",
		})
	}

	r.l.Info("profile saved", map[string]any{"username": p.Username})
	return c.Redirect("/?"+url.Values{"username": {p.Username}, "saved": {"1"}}.Encode(), fiber.StatusSeeOther)
}

func (r *routes) handleFeedbackForm(c *fiber.Ctx) error {
	message := strings.TrimSpace(c.FormValue("message"))
	if message == "" || len(message) > maxFeedbackLen {
		return r.renderDashboard(c, fiber.StatusBadRequest, &views.Dashboard{
			Flash:      "Please write between 1 and 2000 characters of feedback.",
			FlashLevel: "warning",
		})
	}

	username := c.FormValue("username")
	id := r.recordFeedback(username, message)
	q := url.Values{"feedback": {id}}
	if username != "" {
		q.Set("username", username)
	}
	return c.Redirect("/?"+q.Encode(), fiber.StatusSeeOther)
}

func (r *routes) renderDashboard(c *fiber.Ctx, status int, view *views.Dashboard) error {
	view.Page = r.builder.Build(c.UserContext(), dashboardRequest(c))
	c.Status(status)
	c.Type("html", "utf-8")
	return r.views.RenderDashboard(c, view)
}

// dashboardRequest reads selections from the query string, falling back to the
// posted form for the username.
func dashboardRequest(c *fiber.Ctx) dashboard.Request {
	req := dashboard.Request{
		Username:         strings.TrimSpace(c.Query("username")),
		District:         c.Query("district"),
		CompareDistricts: queryValues(c, "compare"),
		CompareMetric:    sensor.MetricKind(c.Query("metric")),
	}
	if c.Method() == fiber.MethodPost {
		req.Username = common.FirstNonEmpty(req.Username, c.FormValue("username"))
	}
	if w, err := time.ParseDuration(c.Query("window")); err == nil {
		req.Window = w
	}
	return req
}

func profileFromForm(c *fiber.Ctx) (profile.UserProfile, error) {
	p := profile.UserProfile{Username: strings.TrimSpace(c.FormValue("username"))}

	age, err := strconv.Atoi(strings.TrimSpace(c.FormValue("age")))
	if err != nil {
		return p, fmt.Errorf("%w: age must be a whole number", profile.ErrInvalidProfile)
	}
	p.Age = age

	hs, ok := profile.ParseHealthStatus(c.FormValue("health_status"))
	if !ok {
		return p, fmt.Errorf("%w: unknown health status", profile.ErrInvalidProfile)
	}
	p.HealthStatus = hs

	if p.Height, err = formFloat(c, "height"); err != nil {
		return p, fmt.Errorf("%w: height must be a number", profile.ErrInvalidProfile)
	}
	if p.Weight, err = formFloat(c, "weight"); err != nil {
		return p, fmt.Errorf("%w: weight must be a number", profile.ErrInvalidProfile)
	}
	return p, nil
}

// formFloat parses an optional numeric field; blank means 0.
func formFloat(c *fiber.Ctx, key string) (float64, error) {
	s := strings.TrimSpace(c.FormValue(key))
	if s == "" {
		return 0, nil
	}
	return strconv.ParseFloat(s, 64)
}
