package events

import "encoding/json"

// Event names
const (
	// Switch is published when a battery is forced to discharge.
	Switch = "balance.switch"
	// Release is published when forced discharge is cleared on both batteries.
	Release = "balance.release"
)

// Event is a generic SSE event from the daemon.
type Event struct {
	Name string          // SSE event name
	Data json.RawMessage // Raw JSON payload
}

// SwitchEvent is the payload of Switch and Release.
type SwitchEvent struct {
	Target  string   `json:"target,omitempty"`
	Reason  string   `json:"reason"`
	Diff    *float64 `json:"diff,omitempty"`
	DryRun  bool     `json:"dryRun,omitempty"`
	Ts      int64    `json:"ts"`
	Applied bool     `json:"applied"`
}

// DecodeAs decodes the event payload into T. An empty payload yields the
// zero value of T.
func DecodeAs[T any](e Event) (T, error) {
	var zero T
	if len(e.Data) == 0 {
		return zero, nil
	}
	var v T
	if err := json.Unmarshal(e.Data, &v); err != nil {
		return zero, err
	}
	return v, nil
}
