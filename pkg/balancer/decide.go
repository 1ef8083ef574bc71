package balancer

import (
	"fmt"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/charlie0129/tpbal/pkg/events"
	"github.com/charlie0129/tpbal/pkg/powerinfo"
)

// Decide computes the command for snapshot s. It performs no I/O.
//
// AC power wins over everything and releases both batteries. Without both
// percentages nothing is decided. Otherwise the fuller battery is forced
// once it leads by at least hysteresis points and is idle. Inside the band
// the current forced state is kept as it is.
func Decide(s *powerinfo.Snapshot, hysteresis float64) powerinfo.Decision {
	if s == nil {
		return powerinfo.Decision{Command: powerinfo.Hold(), Reason: "no snapshot yet"}
	}

	if s.OnAC() {
		return powerinfo.Decision{Command: powerinfo.Release(), Reason: "AC connected"}
	}

	p, q := s.Primary.Percentage, s.Secondary.Percentage
	if p == nil || q == nil {
		return powerinfo.Decision{Command: powerinfo.Hold(), Reason: "battery percentage unknown"}
	}

	diff := *p - *q
	d := powerinfo.Decision{Diff: &diff}

	switch {
	case diff >= hysteresis && s.Primary.IsIdle():
		d.Command = powerinfo.Force(powerinfo.Primary)
		d.Reason = fmt.Sprintf("primary leads by %.2f points and is idle", diff)
	case -diff >= hysteresis && s.Secondary.IsIdle():
		d.Command = powerinfo.Force(powerinfo.Secondary)
		d.Reason = fmt.Sprintf("secondary leads by %.2f points and is idle", -diff)
	default:
		d.Command = powerinfo.Hold()
		d.Reason = "no idle battery leads by the hysteresis"
	}

	return d
}

// Decide computes a command from the current snapshot and applies it.
// Write failures are returned after being logged; they never stop the
// engine, and a half-applied command is not rolled back.
func (e *Engine) Decide() (powerinfo.Decision, error) {
	e.cycleMu.Lock()
	defer e.cycleMu.Unlock()

	d := Decide(e.Snapshot(), e.conf.Hysteresis)
	err := e.apply(d.Command)

	e.mu.Lock()
	e.decision = &d
	e.lastCycle = time.Now()
	e.mu.Unlock()

	e.rec.ObserveDecision(d)
	e.announce(d, err)

	return d, err
}

func (e *Engine) apply(c powerinfo.Command) error {
	switch c.Action {
	case powerinfo.ActionForce:
		// Clear first so both batteries are never forced at once. If that
		// fails, do not force the target either.
		if err := e.setForceDischarge(c.Target.Other(), false); err != nil {
			return pkgerrors.Wrapf(err, "skipped forcing %s", c.Target)
		}
		return e.setForceDischarge(c.Target, true)
	case powerinfo.ActionRelease:
		return e.releaseAll()
	default:
		return nil
	}
}

func (e *Engine) announce(d powerinfo.Decision, err error) {
	fields := logrus.Fields{
		"command": d.Command.String(),
		"reason":  d.Reason,
	}
	if d.Diff != nil {
		fields["diff"] = fmt.Sprintf("%.2f", *d.Diff)
	}

	if err != nil {
		logrus.WithFields(fields).Errorf("failed to apply command: %v", err)
	}

	if d.Command.Action == powerinfo.ActionHold {
		return
	}

	// Force and release are re-applied every cycle; only log changes.
	changed := e.lastApplied == nil || *e.lastApplied != d.Command
	e.lastApplied = &d.Command
	if changed {
		logrus.WithFields(fields).Info("switching forced discharge")
	} else {
		logrus.WithFields(fields).Trace("re-applied forced discharge")
	}

	if !changed || e.hub == nil {
		return
	}
	name := events.Switch
	target := ""
	if d.Command.Action == powerinfo.ActionRelease {
		name = events.Release
	} else {
		target = d.Command.Target.String()
	}
	e.hub.Publish(name, events.SwitchEvent{
		Target:  target,
		Reason:  d.Reason,
		Diff:    d.Diff,
		DryRun:  e.dryRun,
		Ts:      time.Now().Unix(),
		Applied: err == nil,
	})
}
