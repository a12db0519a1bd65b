// Package gamma computes per-channel display adjustments for reducing blue
// light output. Adjustments are derived from a color temperature and an
// intensity and are applied to a display as gamma ramps.
package gamma

import "math"

// Temperature is a color temperature in Kelvin.
type Temperature int

const (
	// MinTemperature and MaxTemperature bound the supported temperature
	// range. Values outside the range are clamped, never rejected.
	MinTemperature Temperature = 1000
	MaxTemperature Temperature = 10000

	// NeutralTemperature leaves the display unchanged.
	NeutralTemperature Temperature = 6500
)

// Adjustment describes a per-channel scale in [0, 1] applied on top of the
// display's linear ramp, plus a midtone bias. A zero GammaBias and all scales
// at 1 leave the display untouched.
type Adjustment struct {
	Red, Green, Blue float64
	GammaBias        float64
}

// Neutral is the identity adjustment.
var Neutral = Adjustment{Red: 1, Green: 1, Blue: 1}

// IsNeutral reports whether the adjustment leaves the display unchanged.
func (a Adjustment) IsNeutral() bool {
	return a == Neutral
}

// ClampTemperature clamps t to the supported range.
func ClampTemperature(t Temperature) Temperature {
	return min(max(t, MinTemperature), MaxTemperature)
}

// ClampIntensity clamps an intensity percentage to [0, 100].
func ClampIntensity(intensity int) int {
	return min(max(intensity, 0), 100)
}

// White computes the white point multipliers for a color temperature using
// the Tanner Helland approximation. The result is clamped to [0, 1] per
// channel, so a warm shift reduces green and blue but never boosts red past
// neutral (which would clip).
func White(t Temperature) (r, g, b float64) {
	k := float64(ClampTemperature(t)) / 100

	if k <= 66 {
		r = 1
	} else {
		r = 329.698727446 * math.Pow(k-60, -0.1332047592) / 255
	}

	if k <= 66 {
		g = (99.4708025861*math.Log(k) - 161.1195681661) / 255
	} else {
		g = 288.1221695283 * math.Pow(k-60, -0.0755148492) / 255
	}

	switch {
	case k >= 66:
		b = 1
	case k <= 19:
		b = 0
	default:
		b = (138.5177312231*math.Log(k-10) - 305.0447927307) / 255
	}

	return clamp01(r), clamp01(g), clamp01(b)
}

// Compute derives the adjustment for a color temperature at the given
// intensity percentage. It is pure and total: out-of-range inputs are
// clamped. Intensity linearly interpolates between Neutral (at 0) and the
// full temperature-derived white point (at 100), so Compute(t, 0) is Neutral
// for any t.
func Compute(t Temperature, intensity int) Adjustment {
	wr, wg, wb := White(t)
	f := float64(ClampIntensity(intensity)) / 100
	a := Adjustment{
		Red:   1 - (1-wr)*f,
		Green: 1 - (1-wg)*f,
		Blue:  1 - (1-wb)*f,
	}
	// Lift midtones slightly as the shift dims the screen, scaled by the
	// luminance lost to the channel reduction.
	luma := 0.2126*a.Red + 0.7152*a.Green + 0.0722*a.Blue
	a.GammaBias = midtoneLift * (1 - luma)
	if a.Red == 1 && a.Green == 1 && a.Blue == 1 {
		a.GammaBias = 0
	}
	return a
}

// midtoneLift controls how much the ramp exponent compensates for the
// brightness lost to a warm shift. 0 disables compensation entirely.
const midtoneLift = 0.25

// Ramp fills r, g, and b with a gamma ramp for the adjustment. A neutral
// adjustment produces the identity ramp.
func Ramp[C ~uint8 | uint16 | ~uint32 | uint64](r, g, b []C, a Adjustment) {
	exp := 1 / (1 + a.GammaBias)
	for index := 0; index < len(r); index++ {
		r[index] = C(math.Pow(float64(index)/float64(len(r)-1), exp) * float64(^C(0)) * a.Red)
	}
	for index := 0; index < len(g); index++ {
		g[index] = C(math.Pow(float64(index)/float64(len(g)-1), exp) * float64(^C(0)) * a.Green)
	}
	for index := 0; index < len(b); index++ {
		b[index] = C(math.Pow(float64(index)/float64(len(b)-1), exp) * float64(^C(0)) * a.Blue)
	}
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
