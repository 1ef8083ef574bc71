package balancer

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/charlie0129/tpbal/pkg/powerinfo"
)

// Run refreshes and decides every Delay until ctx is cancelled, then stops
// any forced discharge exactly once. Cancellation is only observed between
// cycles, so a cycle is never interrupted halfway through its writes.
func (e *Engine) Run(ctx context.Context) error {
	logrus.WithFields(e.conf.LogrusFields()).Info("balancer loop starts")

	defer e.shutdown()

	for ctx.Err() == nil {
		_, _ = e.RunOnce()

		t := time.NewTimer(e.conf.Delay)
		select {
		case <-ctx.Done():
			t.Stop()
		case <-t.C:
		}
	}

	logrus.Info("balancer loop cancelled")
	return nil
}

func (e *Engine) shutdown() {
	e.stopOnce.Do(func() {
		logrus.Info("stopping forced discharge before exiting")
		_ = e.StopDischarge()
	})
}

// RunOnce performs a single refresh followed by a single decision. It must
// not be called concurrently with itself or Run.
func (e *Engine) RunOnce() (powerinfo.Decision, error) {
	s := e.Refresh()
	d, err := e.Decide()
	e.printStatus(s, d)
	return d, err
}

type loopStatus struct {
	ac        string
	primary   string
	secondary string
	command   string
}

// printStatus logs the cycle at debug level when something changed, and at
// trace level otherwise.
func (e *Engine) printStatus(s *powerinfo.Snapshot, d powerinfo.Decision) {
	current := loopStatus{
		ac:        formatBool(s.ACConnected),
		primary:   formatReading(s.Primary),
		secondary: formatReading(s.Secondary),
		command:   d.Command.String(),
	}

	fields := logrus.Fields{
		"ac":        current.ac,
		"primary":   current.primary,
		"secondary": current.secondary,
		"command":   current.command,
	}

	if current == e.lastStatus {
		logrus.WithFields(fields).Trace("balance loop status")
		return
	}

	logrus.WithFields(fields).Debug("balance loop status")
	e.lastStatus = current
}

func formatBool(b *bool) string {
	if b == nil {
		return "unknown"
	}
	return fmt.Sprintf("%t", *b)
}

func formatReading(r powerinfo.Reading) string {
	if r.Percentage == nil {
		return "?% " + r.Status.String()
	}
	return fmt.Sprintf("%.2f%% %s", *r.Percentage, r.Status)
}
