// Package powerinfo holds the per-cycle view of both batteries and the
// commands derived from it.
package powerinfo

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// BatteryID identifies one of the two battery bays.
type BatteryID int

const (
	// Primary is the main battery, BAT0.
	Primary BatteryID = iota
	// Secondary is the ultrabay or slice battery, BAT1.
	Secondary
)

// BatteryIDs lists both bays in a fixed order.
var BatteryIDs = []BatteryID{Primary, Secondary}

// Dir returns the smapi subdirectory of the bay.
func (id BatteryID) Dir() string {
	if id == Secondary {
		return "BAT1"
	}
	return "BAT0"
}

// Other returns the opposite bay.
func (id BatteryID) Other() BatteryID {
	if id == Primary {
		return Secondary
	}
	return Primary
}

func (id BatteryID) String() string {
	if id == Secondary {
		return "secondary"
	}
	return "primary"
}

func (id BatteryID) MarshalJSON() ([]byte, error) {
	return json.Marshal(id.String())
}

func (id *BatteryID) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	switch s {
	case "primary":
		*id = Primary
	case "secondary":
		*id = Secondary
	default:
		return fmt.Errorf("unknown battery %q", s)
	}
	return nil
}

// BatteryStatus is what smapi reports a battery is doing.
type BatteryStatus int

const (
	StatusUnknown BatteryStatus = iota
	StatusIdle
	StatusCharging
	StatusDischarging
	StatusEmpty
)

var statusNames = map[BatteryStatus]string{
	StatusUnknown:     "unknown",
	StatusIdle:        "idle",
	StatusCharging:    "charging",
	StatusDischarging: "discharging",
	StatusEmpty:       "empty",
}

// ParseStatus maps the raw content of a state attribute to a BatteryStatus.
// Matching is case-sensitive containment. "discharging" is checked before
// "charging" because it contains it.
func ParseStatus(raw string) BatteryStatus {
	switch {
	case strings.Contains(raw, "idle"):
		return StatusIdle
	case strings.Contains(raw, "discharging"):
		return StatusDischarging
	case strings.Contains(raw, "charging"):
		return StatusCharging
	case strings.Contains(raw, "empty"):
		return StatusEmpty
	default:
		return StatusUnknown
	}
}

func (s BatteryStatus) String() string {
	if n, ok := statusNames[s]; ok {
		return n
	}
	return statusNames[StatusUnknown]
}

func (s BatteryStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *BatteryStatus) UnmarshalJSON(b []byte) error {
	var str string
	if err := json.Unmarshal(b, &str); err != nil {
		return err
	}
	for k, v := range statusNames {
		if v == str {
			*s = k
			return nil
		}
	}
	*s = StatusUnknown
	return nil
}

// Reading is one battery's state in a single cycle. Nil fields were not
// available this cycle.
type Reading struct {
	LastFullCapacity  *int64        `json:"lastFullCapacity"`
	RemainingCapacity *int64        `json:"remainingCapacity"`
	Status            BatteryStatus `json:"status"`
	RawStatus         string        `json:"rawStatus"`
	Percentage        *float64      `json:"percentage"`
}

// NewReading builds a Reading and derives its percentage.
func NewReading(remaining, lastFull *int64, status BatteryStatus, rawStatus string) Reading {
	return Reading{
		LastFullCapacity:  lastFull,
		RemainingCapacity: remaining,
		Status:            status,
		RawStatus:         rawStatus,
		Percentage:        Percentage(remaining, lastFull),
	}
}

// Percentage returns remaining/lastFull in percent, or nil if either is
// missing or lastFull is zero.
func Percentage(remaining, lastFull *int64) *float64 {
	if remaining == nil || lastFull == nil || *lastFull == 0 {
		return nil
	}
	// Multiply first so integer ratios stay exact.
	p := float64(*remaining) * 100 / float64(*lastFull)
	return &p
}

// IsIdle reports whether the battery is neither charging nor discharging.
func (r Reading) IsIdle() bool {
	return r.Status == StatusIdle
}

// Snapshot is the state of both batteries and the AC adapter taken in one
// refresh cycle. It is never modified after construction.
type Snapshot struct {
	ACConnected *bool     `json:"acConnected"`
	Primary     Reading   `json:"primary"`
	Secondary   Reading   `json:"secondary"`
	TakenAt     time.Time `json:"takenAt"`
}

// Battery returns the reading of the given bay.
func (s *Snapshot) Battery(id BatteryID) Reading {
	if id == Secondary {
		return s.Secondary
	}
	return s.Primary
}

// OnAC reports whether the AC adapter is known to be connected. An unknown
// AC state counts as not connected.
func (s *Snapshot) OnAC() bool {
	return s.ACConnected != nil && *s.ACConnected
}
