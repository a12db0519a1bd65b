package engine

import (
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/isaacp5/OpenBlueFilter/display"
	"github.com/isaacp5/OpenBlueFilter/gamma"
	"github.com/isaacp5/OpenBlueFilter/profile"
)

// fakeAdapter records applies and reverts and can be made to fail.
type fakeAdapter struct {
	mu      sync.Mutex
	applies []gamma.Adjustment
	reverts int
	err     error
}

func (f *fakeAdapter) Apply(adj gamma.Adjustment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.applies = append(f.applies, adj)
	return nil
}

func (f *fakeAdapter) Revert() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reverts++
	return nil
}

func (f *fakeAdapter) Close() {}

func (f *fakeAdapter) fail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func (f *fakeAdapter) applyCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.applies)
}

func (f *fakeAdapter) revertCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reverts
}

func (f *fakeAdapter) lastApply() gamma.Adjustment {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.applies[len(f.applies)-1]
}

func newTestEngine(t *testing.T, cfg Config) (*Engine, *profile.Store, *fakeAdapter) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	store, err := profile.Open(filepath.Join(t.TempDir(), "config.yaml"), nil)
	require.NoError(t, err)
	adapter := &fakeAdapter{}
	e := New(store, adapter, nil, cfg)
	t.Cleanup(e.Close)
	return e, store, adapter
}

func TestToggleAlternatesAndPersists(t *testing.T) {
	e, store, adapter := newTestEngine(t, Config{Interval: time.Hour})

	before := e.Status().ActiveProfile

	assert.True(t, e.Toggle())
	assert.Equal(t, 1, adapter.applyCount(), "enabling applies once")
	assert.True(t, store.Enabled())

	assert.False(t, e.Toggle())
	assert.Equal(t, 1, adapter.revertCount(), "disabling reverts to neutral")
	assert.False(t, store.Enabled())

	assert.Equal(t, 1, adapter.applyCount(), "nothing accumulates across toggles")
	assert.Equal(t, before, e.Status().ActiveProfile, "profile is retained")
}

func TestSetProfileWhileEnabledAppliesExactlyOnce(t *testing.T) {
	e, store, adapter := newTestEngine(t, Config{Interval: time.Hour})
	require.NoError(t, store.Upsert(profile.Profile{ID: "Morning", TemperatureKelvin: 5000, IntensityPercent: 30}))

	e.Toggle()
	applied := adapter.applyCount()

	require.NoError(t, e.SetProfile("Morning"))
	assert.Equal(t, applied+1, adapter.applyCount())
	assert.Equal(t, gamma.Compute(5000, 30), adapter.lastApply())
	assert.Equal(t, "Morning", store.Active().ID, "selection is persisted")
}

func TestSetProfileUnknown(t *testing.T) {
	e, _, adapter := newTestEngine(t, Config{Interval: time.Hour})
	assert.ErrorIs(t, e.SetProfile("Nope"), ErrProfileNotFound)
	assert.Zero(t, adapter.applyCount())
}

func TestSetProfileWhileDisabledDoesNotApply(t *testing.T) {
	e, store, adapter := newTestEngine(t, Config{Interval: time.Hour})
	require.NoError(t, e.SetProfile("Night"))
	assert.Zero(t, adapter.applyCount())
	assert.Equal(t, "Night", store.Active().ID)
}

func TestSetIntensityClampsPersistsApplies(t *testing.T) {
	e, store, adapter := newTestEngine(t, Config{Interval: time.Hour})
	e.Toggle()

	require.NoError(t, e.SetIntensity(150))
	p := store.Active()
	assert.Equal(t, 100, p.IntensityPercent)
	assert.Equal(t, p.Adjustment(), adapter.lastApply())

	require.NoError(t, e.SetTemperature(500))
	assert.Equal(t, 1000, store.Active().TemperatureKelvin)
}

func TestPeriodicReapplySelfHeals(t *testing.T) {
	e, _, adapter := newTestEngine(t, Config{Interval: 10 * time.Millisecond})
	e.Toggle()

	assert.Eventually(t, func() bool { return adapter.applyCount() >= 3 },
		2*time.Second, 5*time.Millisecond, "the same adjustment is re-applied on every tick")
}

func TestDisplayErrorDegradesAndRecovers(t *testing.T) {
	e, _, adapter := newTestEngine(t, Config{Interval: 10 * time.Millisecond})
	e.Toggle()
	require.False(t, e.Status().Degraded)

	adapter.fail(display.ErrUnsupported)
	assert.Eventually(t, func() bool { return e.Status().Degraded },
		2*time.Second, 5*time.Millisecond)
	assert.True(t, e.Status().Enabled, "display errors never disable the engine")

	adapter.fail(nil)
	assert.Eventually(t, func() bool { return !e.Status().Degraded },
		2*time.Second, 5*time.Millisecond, "the next tick retries and recovers")
}

func TestDisableCancelsPendingTicks(t *testing.T) {
	e, _, adapter := newTestEngine(t, Config{Interval: 5 * time.Millisecond})
	e.Toggle()
	assert.Eventually(t, func() bool { return adapter.applyCount() >= 2 }, 2*time.Second, time.Millisecond)

	e.Toggle()
	applied := adapter.applyCount()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, applied, adapter.applyCount(), "no stale tick re-tints after revert")
	assert.Equal(t, 1, adapter.revertCount())
}

func TestStartRestoresPersistedState(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "config.yaml")

	store, err := profile.Open(path, nil)
	require.NoError(t, err)
	store.SetEnabled(true)
	require.NoError(t, store.SetActive("Night"))

	restored, err := profile.Open(path, nil)
	require.NoError(t, err)
	adapter := &fakeAdapter{}
	e := New(restored, adapter, nil, Config{Interval: time.Hour})
	t.Cleanup(e.Close)

	e.Start()
	assert.True(t, e.Status().Enabled)
	assert.Equal(t, 1, adapter.applyCount(), "restore applies once at steady state")
	assert.Equal(t, restored.Active().Adjustment(), adapter.lastApply())
}

func TestCloseWhileEnabledReverts(t *testing.T) {
	e, _, adapter := newTestEngine(t, Config{Interval: time.Hour})
	e.Toggle()
	e.Close()
	assert.GreaterOrEqual(t, adapter.revertCount(), 1)
	assert.False(t, e.Status().Enabled)
}

func TestManualScheduleWindow(t *testing.T) {
	evening := time.Date(2024, 6, 21, 22, 0, 0, 0, time.UTC)
	noon := time.Date(2024, 6, 21, 12, 0, 0, 0, time.UTC)
	now := evening

	start, end := Clock{Hour: 20}, Clock{Hour: 7}
	e, store, adapter := newTestEngine(t, Config{
		Interval: time.Hour,
		Schedule: &Schedule{Start: &start, End: &end, Now: func() time.Time { return now }},
	})
	e.Toggle()

	night := store.Active()
	assert.Equal(t, night.Adjustment(), adapter.lastApply(), "inside the window the profile temperature applies")

	now = noon
	e.Refresh()
	assert.Equal(t, gamma.Compute(gamma.NeutralTemperature, night.IntensityPercent), adapter.lastApply(),
		"outside the window the display returns to the day temperature")
}

func TestScheduleOverridesTemperature(t *testing.T) {
	midnight := time.Date(2024, 6, 21, 0, 0, 0, 0, time.UTC)
	noon := time.Date(2024, 6, 21, 12, 0, 0, 0, time.UTC)
	now := midnight

	e, store, adapter := newTestEngine(t, Config{
		Interval: time.Hour,
		Schedule: &Schedule{Latitude: 51.48, Longitude: 0, Now: func() time.Time { return now }},
	})
	e.Toggle()

	night := store.Active()
	assert.Equal(t, night.Adjustment(), adapter.lastApply(), "night keeps the profile temperature")

	now = noon
	e.Refresh()
	assert.Equal(t, gamma.Compute(gamma.NeutralTemperature, night.IntensityPercent), adapter.lastApply(),
		"daylight fades the temperature back to neutral")
}
