// Package profile owns the persisted set of named filter presets and the
// last active filter state. It is the single source of truth for everything
// that survives a restart.
package profile

import (
	"errors"

	"github.com/isaacp5/OpenBlueFilter/gamma"
)

var (
	// ErrNotFound is returned when a profile id does not resolve.
	ErrNotFound = errors.New("profile: not found")

	// ErrBuiltIn is returned when deleting a seeded profile.
	ErrBuiltIn = errors.New("profile: built-in profiles cannot be deleted")

	// ErrInUse is returned when deleting the currently active profile.
	ErrInUse = errors.New("profile: profile is currently active")
)

// Profile is a named (temperature, intensity) preset. Built-in profiles are
// seeded on first run; their parameters may be edited in place but they can
// never be deleted.
type Profile struct {
	ID                string `yaml:"id"`
	DisplayName       string `yaml:"displayName"`
	TemperatureKelvin int    `yaml:"temperatureKelvin"`
	IntensityPercent  int    `yaml:"intensityPercent"`
	BuiltIn           bool   `yaml:"builtIn"`
}

// Adjustment computes the display adjustment for the profile.
func (p Profile) Adjustment() gamma.Adjustment {
	return gamma.Compute(gamma.Temperature(p.TemperatureKelvin), p.IntensityPercent)
}

func (p Profile) clamped() Profile {
	p.TemperatureKelvin = int(gamma.ClampTemperature(gamma.Temperature(p.TemperatureKelvin)))
	p.IntensityPercent = gamma.ClampIntensity(p.IntensityPercent)
	if p.DisplayName == "" {
		p.DisplayName = p.ID
	}
	return p
}

// DefaultActiveID is the profile activated on a fresh install and the
// fallback when a persisted active id no longer resolves.
const DefaultActiveID = "Evening"

// BuiltIns returns the three seeded profiles.
func BuiltIns() []Profile {
	return []Profile{
		{ID: "Morning", DisplayName: "Morning", TemperatureKelvin: 4500, IntensityPercent: 30, BuiltIn: true},
		{ID: "Evening", DisplayName: "Evening", TemperatureKelvin: 3200, IntensityPercent: 60, BuiltIn: true},
		{ID: "Night", DisplayName: "Night", TemperatureKelvin: 2700, IntensityPercent: 80, BuiltIn: true},
	}
}
