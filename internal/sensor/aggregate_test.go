package sensor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLatest(t *testing.T) {
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	_, ok := Latest(nil)
	assert.False(t, ok)

	got, ok := Latest([]Reading{
		{District: "A", SensingTime: base},
		{District: "B", SensingTime: base.Add(time.Hour)},
		{District: "C", SensingTime: base.Add(time.Hour)},
		{District: "D", SensingTime: base.Add(-time.Hour)},
	})
	assert.True(t, ok)
	assert.Equal(t, "B", got.District, "ties keep the earlier row")
}

func TestDistrictsKeepFirstAppearanceOrder(t *testing.T) {
	got := Districts([]Reading{{District: "Mapo-gu"}, {District: "Jongno-gu"}, {District: "Mapo-gu"}, {District: "Gangnam-gu"}})
	assert.Equal(t, []string{"Mapo-gu", "Jongno-gu", "Gangnam-gu"}, got)
}

func TestFirstForDistrict(t *testing.T) {
	readings := []Reading{
		{District: "Mapo-gu", Temperature: Metric{Avg: Known(20)}},
		{District: "Mapo-gu", Temperature: Metric{Avg: Known(22)}},
	}
	got, ok := FirstForDistrict(readings, "Mapo-gu")
	assert.True(t, ok)
	assert.InDelta(t, 20, got.Temperature.Avg.Value, 1e-9)

	_, ok = FirstForDistrict(readings, "Seocho-gu")
	assert.False(t, ok)
}

func TestMetricOrdered(t *testing.T) {
	assert.True(t, Metric{Avg: Known(2), Min: Known(1), Max: Known(3)}.Ordered())
	assert.True(t, Metric{Avg: Missing, Min: Known(1), Max: Known(3)}.Ordered())
	assert.False(t, Metric{Avg: Known(0.5), Min: Known(1), Max: Known(3)}.Ordered())
	assert.False(t, Metric{Avg: Missing, Min: Known(4), Max: Known(3)}.Ordered())
}

func TestMeasureJSON(t *testing.T) {
	b, err := Missing.MarshalJSON()
	assert.NoError(t, err)
	assert.Equal(t, "null", string(b))

	b, err = Known(21.5).MarshalJSON()
	assert.NoError(t, err)
	assert.Equal(t, "21.5", string(b))
}
