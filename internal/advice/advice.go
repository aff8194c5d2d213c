package advice

import (
	"strings"

	"github.com/i474232898/green-wellness-tracker/internal/profile"
)

// Advice fragments.
const (
	OutdoorJog       = "The weather is great. A 30-minute jog in the park is recommended."
	IndoorStretch    = "Indoor yoga or stretching is recommended."
	LightWalk        = "Wind is calm, so there are few airborne allergens. A light walk is recommended."
	AllergyIndoor    = "Allergy symptoms may get worse outside. Indoor exercise is recommended."
	GenericIndoor    = "Given your health status, light indoor exercise is recommended. Consult a doctor before exercising."
	LowIntensity     = "At your age, keep the intensity low."
	MoreCardio       = "Adding more cardio will help manage your weight."
	StrengthTraining = "Strength training is recommended to build muscle."
)

// Input is everything the rules look at. Missing measurements are NaN, which fails
// every comparison.
type Input struct {
	Temperature float64
	UV          float64
	WindSpeed   float64
	Health      profile.HealthStatus
	Age         int
	BMI         float64
}

// Rule pairs a predicate with the fragment it contributes.
type Rule struct {
	Name   string
	When   func(in Input) bool
	Advice string
}

func isGood(in Input) bool    { return in.Health == profile.HealthGood }
func isAllergy(in Input) bool { return in.Health == profile.HealthAllergy }

func pleasant(in Input) bool {
	return in.Temperature >= 15 && in.Temperature <= 25 && in.UV < 6
}

func calm(in Input) bool { return in.WindSpeed < 3 }

// Rules is evaluated top to bottom; every matching fragment is kept. The first
// five rules are mutually exclusive and always yield exactly one base fragment.
var Rules = []Rule{
	{Name: "good-outdoor", When: func(in Input) bool { return isGood(in) && pleasant(in) }, Advice: OutdoorJog},
	{Name: "good-indoor", When: func(in Input) bool { return isGood(in) && !pleasant(in) }, Advice: IndoorStretch},
	{Name: "allergy-walk", When: func(in Input) bool { return isAllergy(in) && calm(in) }, Advice: LightWalk},
	{Name: "allergy-indoor", When: func(in Input) bool { return isAllergy(in) && !calm(in) }, Advice: AllergyIndoor},
	{Name: "other-indoor", When: func(in Input) bool { return !isGood(in) && !isAllergy(in) }, Advice: GenericIndoor},
	{Name: "senior", When: func(in Input) bool { return in.Age > 60 }, Advice: LowIntensity},
	{Name: "overweight", When: func(in Input) bool { return in.BMI > 25 }, Advice: MoreCardio},
	{Name: "underweight", When: func(in Input) bool { return in.BMI > 0 && in.BMI < 18.5 }, Advice: StrengthTraining},
}

// Recommend returns the concatenated advice for the input.
func Recommend(in Input) string {
	return strings.Join(Fragments(in), " ")
}

// Fragments returns the matching fragments in rule order.
func Fragments(in Input) []string {
	var out []string
	for _, r := range Rules {
		if r.When(in) {
			out = append(out, r.Advice)
		}
	}
	return out
}
