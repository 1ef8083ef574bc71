package powerinfo

import (
	"encoding/json"
	"fmt"
)

// Action is what a Command asks the store to do with force_discharge.
type Action int

const (
	// ActionHold leaves both force_discharge flags as they are.
	ActionHold Action = iota
	// ActionRelease clears force_discharge on both batteries.
	ActionRelease
	// ActionForce forces Target to discharge and clears the other battery.
	ActionForce
)

func (a Action) String() string {
	switch a {
	case ActionRelease:
		return "release"
	case ActionForce:
		return "force"
	default:
		return "hold"
	}
}

func (a Action) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

func (a *Action) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	switch s {
	case "hold":
		*a = ActionHold
	case "release":
		*a = ActionRelease
	case "force":
		*a = ActionForce
	default:
		return fmt.Errorf("unknown action %q", s)
	}
	return nil
}

// Command is the outcome of a switch decision. Target is only meaningful
// for ActionForce.
type Command struct {
	Action Action    `json:"action"`
	Target BatteryID `json:"target"`
}

// Hold returns a Command that writes nothing.
func Hold() Command { return Command{Action: ActionHold} }

// Release returns a Command that clears both batteries.
func Release() Command { return Command{Action: ActionRelease} }

// Force returns a Command that forces id to discharge.
func Force(id BatteryID) Command { return Command{Action: ActionForce, Target: id} }

func (c Command) String() string {
	if c.Action == ActionForce {
		return fmt.Sprintf("force %s", c.Target)
	}
	return c.Action.String()
}

// Decision is a Command together with why it was chosen.
type Decision struct {
	Command Command `json:"command"`
	Reason  string  `json:"reason"`
	// Diff is primary minus secondary percentage, nil when either is unknown.
	Diff *float64 `json:"diff"`
}
