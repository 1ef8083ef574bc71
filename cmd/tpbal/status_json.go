package main

import (
	"encoding/json"
	"math"
	"time"

	"github.com/spf13/cobra"

	"github.com/charlie0129/tpbal/pkg/powerinfo"
)

type statusJSON struct {
	ACConnected   *bool               `json:"acConnected"`
	TakenAt       time.Time           `json:"takenAt"`
	Batteries     []statusBatteryJSON `json:"batteries"`
	Decision      statusDecisionJSON  `json:"decision"`
	Configuration statusConfigJSON    `json:"configuration"`
	Firmware      []powerinfo.Battery `json:"firmware,omitempty"`
}

type statusBatteryJSON struct {
	Battery              string   `json:"battery"`
	Dir                  string   `json:"dir"`
	Status               string   `json:"status"`
	Percent              *float64 `json:"percent"`
	RemainingCapacityMwh *int64   `json:"remainingCapacityMwh"`
	LastFullCapacityMwh  *int64   `json:"lastFullCapacityMwh"`
}

type statusDecisionJSON struct {
	Action string   `json:"action"`
	Target string   `json:"target,omitempty"`
	Reason string   `json:"reason"`
	Diff   *float64 `json:"diff"`
}

type statusConfigJSON struct {
	DelaySeconds float64 `json:"delaySeconds"`
	Hysteresis   float64 `json:"hysteresis"`
	SMAPIRoot    string  `json:"smapiRoot"`
}

func roundPtr(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := math.Round(*p*100) / 100
	return &v
}

func buildStatusJSON(data *statusData) statusJSON {
	out := statusJSON{
		ACConnected: data.snapshot.ACConnected,
		TakenAt:     data.snapshot.TakenAt,
		Decision: statusDecisionJSON{
			Action: data.decision.Command.Action.String(),
			Reason: data.decision.Reason,
			Diff:   roundPtr(data.decision.Diff),
		},
		Configuration: statusConfigJSON{
			DelaySeconds: data.config.Delay.Seconds(),
			Hysteresis:   data.config.Hysteresis,
			SMAPIRoot:    data.config.SMAPIRoot,
		},
		Firmware: data.batteries,
	}

	if data.decision.Command.Action == powerinfo.ActionForce {
		out.Decision.Target = data.decision.Command.Target.String()
	}

	for _, id := range powerinfo.BatteryIDs {
		r := data.snapshot.Battery(id)
		out.Batteries = append(out.Batteries, statusBatteryJSON{
			Battery:              id.String(),
			Dir:                  id.Dir(),
			Status:               r.Status.String(),
			Percent:              roundPtr(r.Percentage),
			RemainingCapacityMwh: r.RemainingCapacity,
			LastFullCapacityMwh:  r.LastFullCapacity,
		})
	}

	return out
}

func printStatusJSON(cmd *cobra.Command, data *statusData) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(buildStatusJSON(data))
}
