package main

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/charlie0129/tpbal/pkg/config"
	"github.com/charlie0129/tpbal/pkg/powerinfo"
)

type statusData struct {
	snapshot  *powerinfo.Snapshot
	decision  *powerinfo.Decision
	config    *config.Config
	batteries []powerinfo.Battery
}

// fetchStatusData gathers all data required for the status command from the daemon.
func fetchStatusData() (*statusData, error) {
	snap, err := apiClient.GetSnapshot()
	if err != nil {
		return nil, fmt.Errorf("failed to get snapshot: %w", err)
	}

	decision, err := apiClient.GetDecision()
	if err != nil {
		return nil, fmt.Errorf("failed to get decision: %w", err)
	}

	conf, err := apiClient.GetConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to get config: %w", err)
	}

	// Firmware data is informational only.
	bats, err := apiClient.GetBatteryInfo()
	if err != nil {
		logrus.Debugf("battery info unavailable: %v", err)
	}

	return &statusData{
		snapshot:  snap,
		decision:  decision,
		config:    conf,
		batteries: bats,
	}, nil
}

func NewStatusCommand() *cobra.Command {
	jsonOutput := false

	cmd := &cobra.Command{
		Use:     "status",
		GroupID: gBasic,
		Short:   "Get the current status of tpbal",
		Long:    `Get the latest battery readings, the balancing decision, and the configuration of the running daemon.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			data, err := fetchStatusData()
			if err != nil {
				return err
			}

			if jsonOutput {
				return printStatusJSON(cmd, data)
			}

			printStatus(cmd, data)
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print status as JSON")

	return cmd
}

func printStatus(cmd *cobra.Command, data *statusData) {
	snap := data.snapshot

	cmd.Println(bold("Power:"))
	cmd.Printf("  AC connected: %s\n", optBool2Text(snap.ACConnected))
	cmd.Printf("  Sampled: %s ago\n", time.Since(snap.TakenAt).Round(time.Second))
	cmd.Println()

	cmd.Println(bold("Batteries:"))
	for _, id := range powerinfo.BatteryIDs {
		r := snap.Battery(id)
		cmd.Printf("  %s (%s): %s, %s\n", id, id.Dir(), percentText(r.Percentage), statusText(r.Status))
		if r.RemainingCapacity != nil && r.LastFullCapacity != nil {
			cmd.Printf("    Capacity: %d / %d mWh\n", *r.RemainingCapacity, *r.LastFullCapacity)
		}
	}
	for _, b := range data.batteries {
		cmd.Printf("  Firmware #%d: %s, %.0f / %.0f mWh (design %.0f), %+.1f W\n",
			b.Index, b.State, b.Current, b.Full, b.Design, b.ChargeRate/1e3)
	}
	cmd.Println()

	d := data.decision
	cmd.Println(bold("Balancing:"))
	cmd.Printf("  Decision: %s\n", commandText(d.Command))
	cmd.Printf("    %s\n", d.Reason)
	if d.Diff != nil {
		cmd.Printf("  Primary - secondary: %s\n", bold("%+.1f points", *d.Diff))
	}
	cmd.Println()

	cmd.Println(bold("Configuration:"))
	cmd.Printf("  Delay: %s\n", bold("%s", data.config.Delay))
	cmd.Printf("  Hysteresis: %s\n", bold("%.1f points", data.config.Hysteresis))
	cmd.Printf("  smapi root: %s\n", data.config.SMAPIRoot)
}
