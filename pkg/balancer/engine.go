// Package balancer decides which of the two batteries should be forced to
// discharge and applies that decision through smapi.
package balancer

import (
	"errors"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/charlie0129/tpbal/pkg/config"
	"github.com/charlie0129/tpbal/pkg/events"
	"github.com/charlie0129/tpbal/pkg/metrics"
	"github.com/charlie0129/tpbal/pkg/powerinfo"
	"github.com/charlie0129/tpbal/pkg/smapi"
)

// Engine holds the configuration, the store and the latest snapshot.
type Engine struct {
	conf   config.Config
	store  smapi.Store
	rec    metrics.Recorder
	hub    *events.Hub
	dryRun bool

	// cycleMu serializes every access to the store.
	cycleMu sync.Mutex
	// lastApplied is the last non-hold command, guarded by cycleMu.
	lastApplied *powerinfo.Command

	// mu guards the fields below, which API handlers read concurrently.
	mu        sync.RWMutex
	snapshot  *powerinfo.Snapshot
	decision  *powerinfo.Decision
	lastCycle time.Time

	lastStatus loopStatus
	stopOnce   sync.Once
}

// Option customizes an Engine.
type Option func(*Engine)

// WithRecorder sends observations to rec.
func WithRecorder(rec metrics.Recorder) Option {
	return func(e *Engine) {
		if rec != nil {
			e.rec = rec
		}
	}
}

// WithEventHub publishes switch and release events to hub.
func WithEventHub(hub *events.Hub) Option {
	return func(e *Engine) { e.hub = hub }
}

// WithDryRun marks published events as not applied.
func WithDryRun(dryRun bool) Option {
	return func(e *Engine) { e.dryRun = dryRun }
}

// New returns an Engine. It performs no I/O.
func New(conf config.Config, store smapi.Store, opts ...Option) *Engine {
	e := &Engine{
		conf:  conf,
		store: store,
		rec:   metrics.Nop{},
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Config returns the configuration the engine was built with.
func (e *Engine) Config() config.Config {
	return e.conf
}

// Snapshot returns the latest complete snapshot, or nil before the first
// Refresh.
func (e *Engine) Snapshot() *powerinfo.Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.snapshot
}

// LastDecision returns the latest decision, or nil before the first Decide.
func (e *Engine) LastDecision() *powerinfo.Decision {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.decision == nil {
		return nil
	}
	d := *e.decision
	return &d
}

// LastCycle returns when the last full cycle finished.
func (e *Engine) LastCycle() time.Time {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.lastCycle
}

// Refresh reads all seven attributes once and replaces the current
// snapshot with the result. Failed reads leave the matching field unknown.
func (e *Engine) Refresh() *powerinfo.Snapshot {
	e.cycleMu.Lock()
	defer e.cycleMu.Unlock()

	s := &powerinfo.Snapshot{
		ACConnected: e.readACConnected(),
		Primary:     e.readBattery(powerinfo.Primary),
		Secondary:   e.readBattery(powerinfo.Secondary),
		TakenAt:     time.Now(),
	}

	e.mu.Lock()
	e.snapshot = s
	e.mu.Unlock()

	e.rec.ObserveSnapshot(s)

	return s
}

func (e *Engine) readACConnected() *bool {
	raw, ok := e.read(smapi.RootScope, smapi.ACConnected)
	if !ok {
		return nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		logrus.WithField("val", raw).Debug("ac_connected is not a number")
		return nil
	}
	ac := v == 1
	return &ac
}

func (e *Engine) readBattery(id powerinfo.BatteryID) powerinfo.Reading {
	scope := smapi.Scope(id.Dir())

	status := powerinfo.StatusUnknown
	rawStatus, ok := e.read(scope, smapi.State)
	if ok {
		status = powerinfo.ParseStatus(rawStatus)
	}

	remaining := e.readCapacity(scope, smapi.RemainingCapacity)
	lastFull := e.readCapacity(scope, smapi.LastFullCapacity)

	return powerinfo.NewReading(remaining, lastFull, status, rawStatus)
}

func (e *Engine) readCapacity(scope smapi.Scope, attr smapi.Attribute) *int64 {
	raw, ok := e.read(scope, attr)
	if !ok {
		return nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"scope": scope,
			"attr":  attr,
			"val":   raw,
		}).Debug("capacity is not a number")
		return nil
	}
	return &v
}

// read returns the trimmed attribute value, or false if it could not be read.
func (e *Engine) read(scope smapi.Scope, attr smapi.Attribute) (string, bool) {
	v, err := e.store.Read(scope, attr)
	if err != nil {
		e.reportIOError(err)
		return "", false
	}
	return strings.TrimSpace(v), true
}

func (e *Engine) reportIOError(err error) {
	op := "unknown"
	var ioErr *smapi.IOError
	if errors.As(err, &ioErr) {
		op = string(ioErr.Op)
	}
	e.rec.ObserveIOError(op)
	logrus.Warn(err.Error())
}

func (e *Engine) setForceDischarge(id powerinfo.BatteryID, force bool) error {
	v := "0"
	if force {
		v = "1"
	}
	err := e.store.Write(smapi.Scope(id.Dir()), smapi.ForceDischarge, v)
	if err != nil {
		e.reportIOError(err)
	}
	return err
}

// releaseAll clears force_discharge on the secondary, then the primary
// battery. Both writes are attempted even if the first one fails.
func (e *Engine) releaseAll() error {
	var errs []error
	for _, id := range []powerinfo.BatteryID{powerinfo.Secondary, powerinfo.Primary} {
		if err := e.setForceDischarge(id, false); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// StopDischarge clears force_discharge on both batteries. It is safe to call
// any number of times. Failures are logged; the returned error is only
// informational and callers on the shutdown path may ignore it.
func (e *Engine) StopDischarge() error {
	e.cycleMu.Lock()
	defer e.cycleMu.Unlock()

	err := e.releaseAll()
	if err != nil {
		logrus.Errorf("failed to stop forced discharge: %v", err)
		return err
	}
	rel := powerinfo.Release()
	e.lastApplied = &rel
	logrus.Debug("forced discharge stopped on both batteries")
	return nil
}
