package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/isaacp5/OpenBlueFilter/gamma"
)

func TestParseClock(t *testing.T) {
	c, err := ParseClock("20:05")
	require.NoError(t, err)
	assert.Equal(t, Clock{Hour: 20, Minute: 5}, c)

	for _, bad := range []string{"", "25:00", "8pm", "20:00:00"} {
		_, err := ParseClock(bad)
		assert.Error(t, err, "%q", bad)
	}
}

func TestScheduleManualWindow(t *testing.T) {
	start, end := Clock{Hour: 20}, Clock{Hour: 7}
	s := (&Schedule{Start: &start, End: &end}).withDefaults()

	at := func(hour, min int) func() time.Time {
		return func() time.Time { return time.Date(2024, 6, 21, hour, min, 0, 0, time.UTC) }
	}

	s.Now = at(23, 0)
	assert.Equal(t, gamma.Temperature(3000), s.temperature(3000), "inside the overnight window")

	s.Now = at(3, 30)
	assert.Equal(t, gamma.Temperature(3000), s.temperature(3000), "window wraps past midnight")

	s.Now = at(12, 0)
	assert.Equal(t, gamma.NeutralTemperature, s.temperature(3000), "daytime uses the day temperature")

	s.Now = at(20, 0)
	assert.Equal(t, gamma.Temperature(3000), s.temperature(3000), "start bound is inclusive")

	s.Now = at(7, 0)
	assert.Equal(t, gamma.NeutralTemperature, s.temperature(3000), "end bound is exclusive")
}

func TestScheduleManualNextTransition(t *testing.T) {
	start, end := Clock{Hour: 20}, Clock{Hour: 7}
	s := (&Schedule{Start: &start, End: &end}).withDefaults()

	s.Now = func() time.Time { return time.Date(2024, 6, 21, 23, 0, 0, 0, time.UTC) }
	assert.Contains(t, s.nextTransition(), "window ends")

	s.Now = func() time.Time { return time.Date(2024, 6, 21, 12, 0, 0, 0, time.UTC) }
	assert.Contains(t, s.nextTransition(), "window starts")
}

func TestScheduleNextTransition(t *testing.T) {
	s := &Schedule{Latitude: 51.48, Longitude: 0}

	at := func(hour int) *Schedule {
		c := *s
		c.Now = func() time.Time { return time.Date(2024, 6, 21, hour, 0, 0, 0, time.UTC) }
		return c.withDefaults()
	}

	assert.Contains(t, at(12).nextTransition(), "sunset")
	assert.Contains(t, at(2).nextTransition(), "sunrise")
	assert.Contains(t, at(23).nextTransition(), "sunrise", "after sunset the next event is tomorrow's sunrise")
}

func TestScheduleDefaults(t *testing.T) {
	s := (&Schedule{Latitude: 1}).withDefaults()
	assert.Equal(t, 3.0, s.ElevationDay)
	assert.Equal(t, -6.0, s.ElevationNight)
	assert.NotNil(t, s.Now)

	assert.Nil(t, (*Schedule)(nil).withDefaults())
}
