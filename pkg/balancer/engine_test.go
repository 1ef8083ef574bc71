package balancer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/charlie0129/tpbal/pkg/config"
	"github.com/charlie0129/tpbal/pkg/events"
	"github.com/charlie0129/tpbal/pkg/powerinfo"
	"github.com/charlie0129/tpbal/pkg/smapi"
)

type bat struct {
	remaining string
	lastFull  string
	state     string
}

func newStore(ac string, primary, secondary bat) *smapi.Mock {
	return smapi.NewMock(map[string]string{
		"ac_connected":            ac + "\n",
		"BAT0/state":              primary.state + "\n",
		"BAT0/remaining_capacity": primary.remaining + "\n",
		"BAT0/last_full_capacity": primary.lastFull + "\n",
		"BAT1/state":              secondary.state + "\n",
		"BAT1/remaining_capacity": secondary.remaining + "\n",
		"BAT1/last_full_capacity": secondary.lastFull + "\n",
	})
}

func newEngine(store smapi.Store, opts ...Option) *Engine {
	conf := config.Default()
	conf.Delay = 10 * time.Millisecond
	return New(conf, store, opts...)
}

func write(scope smapi.Scope, value string) smapi.WriteRecord {
	return smapi.WriteRecord{Scope: scope, Attr: smapi.ForceDischarge, Value: value}
}

func TestRefresh(t *testing.T) {
	store := newStore("0", bat{"80", "100", "idle"}, bat{"40", "100", "discharging"})
	e := newEngine(store)

	require.Nil(t, e.Snapshot())

	s := e.Refresh()
	require.NotNil(t, s)
	assert.Same(t, s, e.Snapshot())

	require.NotNil(t, s.ACConnected)
	assert.False(t, *s.ACConnected)
	assert.Equal(t, powerinfo.StatusIdle, s.Primary.Status)
	assert.Equal(t, powerinfo.StatusDischarging, s.Secondary.Status)
	require.NotNil(t, s.Primary.Percentage)
	assert.Equal(t, 80.0, *s.Primary.Percentage)
	require.NotNil(t, s.Secondary.Percentage)
	assert.Equal(t, 40.0, *s.Secondary.Percentage)
	assert.False(t, s.TakenAt.IsZero())
	assert.Empty(t, store.Writes(), "refresh must not write")
}

func TestRefreshDegradesFailedReads(t *testing.T) {
	store := newStore("1", bat{"80", "100", "idle"}, bat{"abc", "0", "charging"})
	store.FailRead(smapi.RootScope, smapi.ACConnected, errors.New("gone"))
	store.FailRead("BAT0", smapi.State, errors.New("gone"))
	e := newEngine(store)

	s := e.Refresh()

	assert.Nil(t, s.ACConnected)
	assert.Equal(t, powerinfo.StatusUnknown, s.Primary.Status)
	assert.NotNil(t, s.Primary.Percentage)
	assert.Nil(t, s.Secondary.RemainingCapacity, "unparsable capacity")
	require.NotNil(t, s.Secondary.LastFullCapacity)
	assert.Equal(t, int64(0), *s.Secondary.LastFullCapacity)
	assert.Nil(t, s.Secondary.Percentage)
}

func TestRefreshReplacesSnapshot(t *testing.T) {
	store := newStore("0", bat{"80", "100", "idle"}, bat{"40", "100", "idle"})
	e := newEngine(store)

	first := e.Refresh()
	store.FailRead("BAT0", smapi.RemainingCapacity, errors.New("gone"))
	second := e.Refresh()

	assert.NotSame(t, first, second)
	assert.Nil(t, second.Primary.Percentage, "stale values must not leak into the new snapshot")
	assert.Equal(t, 80.0, *first.Primary.Percentage, "old snapshot is immutable")
}

func TestDecideWorkedExample(t *testing.T) {
	store := newStore("0", bat{"80", "100", "idle"}, bat{"40", "100", "idle"})
	e := newEngine(store)
	e.Refresh()

	d, err := e.Decide()
	require.NoError(t, err)
	assert.Equal(t, powerinfo.Force(powerinfo.Primary), d.Command)
	assert.Equal(t, []smapi.WriteRecord{write("BAT1", "0"), write("BAT0", "1")}, store.Writes())
	assert.Equal(t, &d, e.LastDecision())
}

func TestDecideACPriority(t *testing.T) {
	store := newStore("1", bat{"80", "100", "idle"}, bat{"40", "100", "idle"})
	e := newEngine(store)
	e.Refresh()

	d, err := e.Decide()
	require.NoError(t, err)
	assert.Equal(t, powerinfo.Release(), d.Command)
	assert.Equal(t, []smapi.WriteRecord{write("BAT1", "0"), write("BAT0", "0")}, store.Writes())
}

func TestDecideHoldWritesNothing(t *testing.T) {
	store := newStore("0", bat{"52", "100", "idle"}, bat{"50", "100", "idle"})
	e := newEngine(store)
	e.Refresh()

	d, err := e.Decide()
	require.NoError(t, err)
	assert.Equal(t, powerinfo.Hold(), d.Command)
	assert.Empty(t, store.Writes())
}

func TestDecideClearFailureSkipsForce(t *testing.T) {
	store := newStore("0", bat{"80", "100", "idle"}, bat{"40", "100", "idle"})
	store.FailWrite("BAT1", smapi.ForceDischarge, errors.New("busy"))
	e := newEngine(store)
	e.Refresh()

	d, err := e.Decide()
	require.Error(t, err)
	assert.Equal(t, powerinfo.Force(powerinfo.Primary), d.Command)
	assert.Equal(t, []smapi.WriteRecord{write("BAT1", "0")}, store.Writes())

	// The next cycle tries again.
	store.FailWrite("BAT1", smapi.ForceDischarge, nil)
	store.ResetWrites()
	_, err = e.RunOnce()
	require.NoError(t, err)
	assert.Equal(t, []smapi.WriteRecord{write("BAT1", "0"), write("BAT0", "1")}, store.Writes())
}

func TestDecideReleaseAttemptsBothWrites(t *testing.T) {
	store := newStore("1", bat{"80", "100", "idle"}, bat{"40", "100", "idle"})
	store.FailWrite("BAT1", smapi.ForceDischarge, errors.New("busy"))
	e := newEngine(store)
	e.Refresh()

	_, err := e.Decide()
	require.Error(t, err)
	assert.Len(t, store.Writes(), 2)
}

func TestStopDischargeIdempotent(t *testing.T) {
	store := newStore("0", bat{"80", "100", "idle"}, bat{"40", "100", "idle"})
	e := newEngine(store)

	require.NoError(t, e.StopDischarge())
	require.NoError(t, e.StopDischarge())

	assert.Equal(t, []smapi.WriteRecord{
		write("BAT1", "0"), write("BAT0", "0"),
		write("BAT1", "0"), write("BAT0", "0"),
	}, store.Writes())
	for _, scope := range []smapi.Scope{"BAT0", "BAT1"} {
		v, _ := store.Get(scope, smapi.ForceDischarge)
		assert.Equal(t, "0", v)
	}
}

func TestStopDischargeSwallowsFailures(t *testing.T) {
	store := newStore("0", bat{"80", "100", "idle"}, bat{"40", "100", "idle"})
	store.FailWrite("BAT1", smapi.ForceDischarge, errors.New("busy"))
	e := newEngine(store)

	assert.NotPanics(t, func() { _ = e.StopDischarge() })
	v, _ := store.Get("BAT0", smapi.ForceDischarge)
	assert.Equal(t, "0", v, "primary is still cleared")
}

func TestRunShutsDownOnce(t *testing.T) {
	store := newStore("0", bat{"80", "100", "idle"}, bat{"40", "100", "idle"})
	e := newEngine(store)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() { done <- e.Run(ctx) }()

	require.Eventually(t, func() bool { return len(store.Writes()) >= 4 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}

	writes := store.Writes()
	require.GreaterOrEqual(t, len(writes), 6)
	// The loop always ends with a full release.
	assert.Equal(t, []smapi.WriteRecord{write("BAT1", "0"), write("BAT0", "0")}, writes[len(writes)-2:])
	for i := 0; i+2 <= len(writes)-2; i += 2 {
		assert.Equal(t, []smapi.WriteRecord{write("BAT1", "0"), write("BAT0", "1")}, writes[i:i+2])
	}

	// A second shutdown through Run's path is a no-op.
	n := len(store.Writes())
	e.shutdown()
	assert.Len(t, store.Writes(), n)
}

func TestRunCancelledBeforeStart(t *testing.T) {
	store := newStore("0", bat{"80", "100", "idle"}, bat{"40", "100", "idle"})
	e := newEngine(store)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, e.Run(ctx))

	assert.Equal(t, []smapi.WriteRecord{write("BAT1", "0"), write("BAT0", "0")}, store.Writes())
	assert.Nil(t, e.Snapshot())
}

func TestDecidePublishesChanges(t *testing.T) {
	store := newStore("0", bat{"80", "100", "idle"}, bat{"40", "100", "idle"})
	hub := events.NewHub()
	ch := hub.Subscribe()
	e := newEngine(store, WithEventHub(hub), WithDryRun(true))

	_, _ = e.RunOnce()
	_, _ = e.RunOnce()
	store.Set(smapi.RootScope, smapi.ACConnected, "1")
	_, _ = e.RunOnce()

	ev := <-ch
	assert.Equal(t, events.Switch, ev.Name)
	payload, err := events.DecodeAs[events.SwitchEvent](ev)
	require.NoError(t, err)
	assert.Equal(t, "primary", payload.Target)
	assert.True(t, payload.DryRun)
	assert.True(t, payload.Applied)

	ev = <-ch
	assert.Equal(t, events.Release, ev.Name, "the repeated force is not published again")
	assert.Len(t, ch, 0)
}
