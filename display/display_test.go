package display

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/isaacp5/OpenBlueFilter/gamma"
)

func TestRelayParamsNeutral(t *testing.T) {
	temp, brightness := relayParams(gamma.Neutral)
	assert.Equal(t, gamma.NeutralTemperature, temp)
	assert.Equal(t, 1.0, brightness)
}

func TestRelayParamsRecoversTemperature(t *testing.T) {
	for _, want := range []gamma.Temperature{2000, 2700, 3400, 4500, 5500} {
		temp, brightness := relayParams(gamma.Compute(want, 100))
		assert.InDelta(t, float64(want), float64(temp), 25, "temperature %d", want)
		assert.InDelta(t, 1.0, brightness, 0.01, "brightness at full intensity stays near neutral")
	}
}

func TestRelayParamsPartialIntensityIsWarmSide(t *testing.T) {
	// A half-intensity 2700K blend sits between neutral and 2700K.
	temp, _ := relayParams(gamma.Compute(2700, 50))
	assert.Greater(t, temp, gamma.Temperature(2700))
	assert.Less(t, temp, gamma.NeutralTemperature+200)
}

func TestNoopTracksCurrent(t *testing.T) {
	n := NewNoop(nil)
	adj := gamma.Compute(3200, 60)
	assert.NoError(t, n.Apply(adj))
	assert.Equal(t, adj, n.Current())
	assert.NoError(t, n.Revert())
	assert.Equal(t, gamma.Neutral, n.Current())
}
