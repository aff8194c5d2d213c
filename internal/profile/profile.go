package profile

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
)

var (
	ErrNotFound        = errors.New("profile not found")
	ErrInvalidUsername = errors.New("invalid username")
	ErrInvalidProfile  = errors.New("invalid profile")
)

const maxUsernameLen = 64

// HealthStatus is the self-reported condition used to personalize advice.
type HealthStatus string

const (
	HealthGood        HealthStatus = "good"
	HealthAllergy     HealthStatus = "allergy"
	HealthRespiratory HealthStatus = "respiratory"
	HealthCardiac     HealthStatus = "cardiac"
)

// HealthStatuses lists every status in form order.
var HealthStatuses = []HealthStatus{HealthGood, HealthAllergy, HealthRespiratory, HealthCardiac}

func ParseHealthStatus(s string) (HealthStatus, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, hs := range HealthStatuses {
		if string(hs) == s {
			return hs, true
		}
	}
	return "", false
}

// UserProfile is the persisted per-user record. The username is the storage key
// and is not part of the stored document.
type UserProfile struct {
	Username     string       `json:"-" validate:"username"`
	Age          int          `json:"age" validate:"gte=1,lte=120"`
	HealthStatus HealthStatus `json:"health_status" validate:"oneof=good allergy respiratory cardiac"`
	Height       float64      `json:"height" validate:"gte=0,lte=300"`
	Weight       float64      `json:"weight" validate:"gte=0,lte=500"`
}

// BMI is weight(kg) / height(m)^2, or 0 when the height is unknown.
func (p UserProfile) BMI() float64 {
	if p.Height <= 0 {
		return 0
	}
	m := p.Height / 100
	return p.Weight / (m * m)
}

// Store persists profiles keyed by username.
type Store interface {
	Load(ctx context.Context, username string) (UserProfile, error)
	Save(ctx context.Context, p UserProfile) error
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		return validUsername(fl.Field().String())
	})
	return v
}

// ValidateUsername rejects names that are empty, too long, or unsafe as a file name.
func ValidateUsername(name string) error {
	if !validUsername(name) {
		return fmt.Errorf("%w: %q", ErrInvalidUsername, name)
	}
	return nil
}

func validUsername(name string) bool {
	if name == "" || len(name) > maxUsernameLen || strings.TrimSpace(name) != name {
		return false
	}
	if strings.HasPrefix(name, ".") || strings.ContainsAny(name, `/\:`) {
		return false
	}
	for _, r := range name {
		if unicode.IsControl(r) {
			return false
		}
	}
	return true
}

// Validate checks the profile before it is written.
func (p UserProfile) Validate() error {
	if err := ValidateUsername(p.Username); err != nil {
		return err
	}
	if err := validate.Struct(p); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s failed %s", strings.ToLower(fe.Field()), fe.Tag()))
			}
			return fmt.Errorf("%w: %s", ErrInvalidProfile, strings.Join(fields, ", "))
		}
		return fmt.Errorf("%w: %v", ErrInvalidProfile, err)
	}
	return nil
}
