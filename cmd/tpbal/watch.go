package main

import (
	"context"
	"fmt"
	"time"

	"github.com/mum4k/termdash"
	"github.com/mum4k/termdash/cell"
	"github.com/mum4k/termdash/container"
	"github.com/mum4k/termdash/linestyle"
	"github.com/mum4k/termdash/terminal/tcell"
	"github.com/mum4k/termdash/terminal/terminalapi"
	"github.com/mum4k/termdash/widgets/text"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/charlie0129/tpbal/pkg/events"
	"github.com/charlie0129/tpbal/pkg/powerinfo"
)

// NewWatchCommand .
func NewWatchCommand() *cobra.Command {
	interval := time.Second

	cmd := &cobra.Command{
		Use:     "watch",
		Short:   "Show a live view of both batteries",
		GroupID: gBasic,
		Long: `Show a live view of both batteries and the balancing decision.

The view is refreshed from the daemon every --interval. Recent switches are
listed as they happen. Press q to quit, r to refresh now.`,
		RunE: func(_ *cobra.Command, _ []string) error {
			return runWatch(interval)
		},
	}

	cmd.Flags().DurationVar(&interval, "interval", interval, "refresh interval")

	return cmd
}

func runWatch(interval time.Duration) error {
	// Fail before taking over the terminal if the daemon is unreachable.
	if _, err := apiClient.GetVersion(); err != nil {
		return err
	}

	t, err := tcell.New()
	if err != nil {
		return fmt.Errorf("failed to open terminal: %w", err)
	}
	defer t.Close()

	statusWidget, err := text.New(text.WrapAtWords())
	if err != nil {
		return err
	}
	eventsWidget, err := text.New(text.RollContent(), text.WrapAtWords())
	if err != nil {
		return err
	}

	c, err := container.New(
		t,
		container.Border(linestyle.Light),
		container.BorderTitle("tpbal - press q to quit, r to refresh"),
		container.SplitHorizontal(
			container.Top(
				container.Border(linestyle.Light),
				container.BorderTitle("Batteries"),
				container.PlaceWidget(statusWidget),
			),
			container.Bottom(
				container.Border(linestyle.Light),
				container.BorderTitle("Switches"),
				container.PlaceWidget(eventsWidget),
			),
			container.SplitPercent(65),
		),
	)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	update := func() {
		if err := renderStatus(statusWidget); err != nil {
			logrus.Debugf("refresh failed: %v", err)
		}
	}
	update()

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				update()
			}
		}
	}()

	go func() {
		err := apiClient.StreamEvents(ctx, func(ev events.Event) bool {
			writeEvent(eventsWidget, ev)
			return true
		})
		if err != nil {
			_ = eventsWidget.Write(fmt.Sprintf("event stream closed: %v\n", err), text.WriteCellOpts(cell.FgColor(cell.ColorRed)))
		}
	}()

	keyboard := func(k *terminalapi.Keyboard) {
		switch k.Key {
		case 'q', 'Q':
			cancel()
		case 'r', 'R':
			update()
		}
	}

	return termdash.Run(ctx, t, c, termdash.KeyboardSubscriber(keyboard), termdash.RedrawInterval(interval))
}

type line struct {
	text  string
	color cell.Color
}

func statusLines(snap *powerinfo.Snapshot, d *powerinfo.Decision) []line {
	ac := "unknown"
	acColor := cell.ColorYellow
	if snap.ACConnected != nil {
		ac = "on battery"
		acColor = cell.ColorRed
		if *snap.ACConnected {
			ac = "plugged in"
			acColor = cell.ColorGreen
		}
	}

	lines := []line{
		{text: "AC: " + ac, color: acColor},
		{text: ""},
	}

	for _, id := range powerinfo.BatteryIDs {
		r := snap.Battery(id)
		pct := "?"
		if r.Percentage != nil {
			pct = fmt.Sprintf("%.1f", *r.Percentage)
		}
		color := cell.ColorWhite
		switch r.Status {
		case powerinfo.StatusDischarging, powerinfo.StatusEmpty:
			color = cell.ColorRed
		case powerinfo.StatusCharging:
			color = cell.ColorGreen
		case powerinfo.StatusUnknown:
			color = cell.ColorYellow
		}
		lines = append(lines, line{text: fmt.Sprintf("%-9s %s  %6s%%  %s", id, id.Dir(), pct, r.Status), color: color})
	}

	lines = append(lines, line{text: ""})
	if d != nil {
		lines = append(lines,
			line{text: "Decision: " + d.Command.String(), color: cell.ColorCyan},
			line{text: "  " + d.Reason},
		)
	}
	lines = append(lines, line{text: "Sampled at " + snap.TakenAt.Format(time.TimeOnly)})

	return lines
}

func renderStatus(w *text.Text) error {
	snap, err := apiClient.GetSnapshot()
	if err != nil {
		return w.Write(fmt.Sprintf("Could not get snapshot: %v\n", err), text.WriteReplace(), text.WriteCellOpts(cell.FgColor(cell.ColorRed)))
	}
	d, err := apiClient.GetDecision()
	if err != nil {
		logrus.Debugf("could not get decision: %v", err)
	}

	w.Reset()
	for _, ln := range statusLines(snap, d) {
		if err := w.Write(ln.text+"\n", text.WriteCellOpts(cell.FgColor(ln.color))); err != nil {
			return err
		}
	}
	return nil
}

func writeEvent(w *text.Text, ev events.Event) {
	se, err := events.DecodeAs[events.SwitchEvent](ev)
	if err != nil {
		logrus.Debugf("undecodable event %s: %v", ev.Name, err)
		return
	}

	ts := time.Unix(se.Ts, 0).Format(time.TimeOnly)
	msg := fmt.Sprintf("%s  %s %s: %s", ts, ev.Name, se.Target, se.Reason)
	if se.DryRun {
		msg += " (dry run)"
	}
	if !se.Applied {
		msg += " (failed)"
	}

	color := cell.ColorGreen
	if ev.Name == events.Switch {
		color = cell.ColorCyan
	}
	_ = w.Write(msg+"\n", text.WriteCellOpts(cell.FgColor(color)))
}
