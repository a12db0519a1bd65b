package engine

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/nathan-osman/go-sunrise"

	"github.com/isaacp5/OpenBlueFilter/gamma"
)

// Clock is a wall-clock time of day.
type Clock struct {
	Hour, Minute int
}

// ParseClock parses an "HH:MM" time of day.
func ParseClock(s string) (Clock, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return Clock{}, fmt.Errorf("invalid time %q (want HH:MM): %w", s, err)
	}
	return Clock{Hour: t.Hour(), Minute: t.Minute()}, nil
}

func (c Clock) minutes() int { return c.Hour*60 + c.Minute }

// next returns the first instant after now with this wall-clock time.
func (c Clock) next(now time.Time) time.Time {
	at := time.Date(now.Year(), now.Month(), now.Day(), c.Hour, c.Minute, 0, 0, now.Location())
	if !at.After(now) {
		at = at.AddDate(0, 0, 1)
	}
	return at
}

// Schedule derives the applied color temperature from the time of day. With
// Start and End set, the active profile's temperature applies inside that
// wall-clock window and DayTemperature outside it. Otherwise the sun's
// position at Latitude/Longitude drives a gradual transition: the profile's
// temperature is the night target and the display fades back to
// DayTemperature as the sun rises past ElevationDay.
type Schedule struct {
	// Start and End bound the manual window during which the night
	// temperature applies, e.g. 20:00 to 07:00. The window may wrap past
	// midnight. Both must be set; the manual window takes precedence over
	// the solar position.
	Start, End *Clock

	Latitude  float64
	Longitude float64

	// ElevationDay and ElevationNight are the solar elevations (degrees)
	// bounding the transition. Zero values mean 3 and -6 (civil twilight).
	ElevationDay   float64
	ElevationNight float64

	// DayTemperature is the temperature at full daylight. Zero means
	// neutral (6500K).
	DayTemperature gamma.Temperature

	// Now is the clock, for tests. Nil means time.Now.
	Now func() time.Time
}

func (s *Schedule) withDefaults() *Schedule {
	if s == nil {
		return nil
	}
	out := *s
	if out.ElevationDay == 0 {
		out.ElevationDay = 3
	}
	if out.ElevationNight == 0 {
		out.ElevationNight = -6
	}
	if out.DayTemperature == 0 {
		out.DayTemperature = gamma.NeutralTemperature
	}
	if out.Now == nil {
		out.Now = time.Now
	}
	return &out
}

func (s *Schedule) manual() bool {
	return s.Start != nil && s.End != nil
}

// temperature resolves the temperature for the current time: the manual
// window is a hard switch between the night target and DayTemperature, the
// solar mode interpolates on the sun's elevation.
func (s *Schedule) temperature(night gamma.Temperature) gamma.Temperature {
	if s.manual() {
		if inWindow(s.Now(), *s.Start, *s.End) {
			return night
		}
		return s.DayTemperature
	}
	return gamma.Solar(s.Now(), s.Latitude, s.Longitude, s.ElevationNight, s.ElevationDay, night, s.DayTemperature)
}

// inWindow reports whether now falls inside [start, end), treating
// start > end as a window wrapping past midnight.
func inWindow(now time.Time, start, end Clock) bool {
	m := now.Hour()*60 + now.Minute()
	from, to := start.minutes(), end.minutes()
	if from <= to {
		return m >= from && m < to
	}
	return m >= from || m < to
}

// nextTransition describes the next schedule boundary for logging, e.g.
// "sunset 2 hours from now".
func (s *Schedule) nextTransition() string {
	now := s.Now()
	if s.manual() {
		if inWindow(now, *s.Start, *s.End) {
			return "window ends " + humanize.Time(s.End.next(now))
		}
		return "window starts " + humanize.Time(s.Start.next(now))
	}
	rise, set := sunrise.SunriseSunset(s.Latitude, s.Longitude, now.Year(), now.Month(), now.Day())
	switch {
	case now.Before(rise):
		return "sunrise " + humanize.Time(rise)
	case now.Before(set):
		return "sunset " + humanize.Time(set)
	default:
		rise, _ = sunrise.SunriseSunset(s.Latitude, s.Longitude,
			now.Year(), now.Month(), now.Day()+1)
		return "sunrise " + humanize.Time(rise)
	}
}
