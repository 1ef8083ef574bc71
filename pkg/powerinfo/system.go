package powerinfo

import (
	"errors"

	"github.com/distatus/battery"
	"github.com/sirupsen/logrus"
)

// BatteryState represents the charging state of a battery as seen by the
// power_supply class, which is independent from smapi.
type BatteryState string

const (
	StateUnknown     BatteryState = "unknown"
	StateEmpty       BatteryState = "empty"
	StateFull        BatteryState = "full"
	StateCharging    BatteryState = "charging"
	StateDischarging BatteryState = "discharging"
	StateIdle        BatteryState = "idle"
)

// Battery is the firmware view of one battery.
// Units:
// - Current, Full, Design: mWh
// - ChargeRate: mW (negative when discharging)
// - Voltage, DesignVoltage: Volts
type Battery struct {
	Index         int          `json:"index"`
	State         BatteryState `json:"state"`
	Current       float64      `json:"current"`
	Full          float64      `json:"full"`
	Design        float64      `json:"design"`
	ChargeRate    float64      `json:"chargeRate"`
	Voltage       float64      `json:"voltage"`
	DesignVoltage float64      `json:"designVoltage"`
}

// ErrNoBattery is returned when the system reports no battery at all.
var ErrNoBattery = errors.New("no battery found")

var getAllBatteries = battery.GetAll

// SystemBatteries returns every battery the OS knows about. Batteries that
// could only be read partially are skipped.
func SystemBatteries() ([]Battery, error) {
	batteries, err := getAllBatteries()
	if len(batteries) == 0 {
		if err == nil {
			err = ErrNoBattery
		}
		return nil, err
	}

	errs, partial := err.(battery.Errors)
	if err != nil && !partial {
		return nil, err
	}

	ret := make([]Battery, 0, len(batteries))
	for i, bat := range batteries {
		if partial && i < len(errs) && errs[i] != nil {
			logrus.WithError(errs[i]).WithField("index", i).Debug("skipping unreadable battery")
			continue
		}
		if bat == nil {
			continue
		}
		rate := bat.ChargeRate
		if bat.State.Raw == battery.Discharging {
			rate = -rate
		}
		ret = append(ret, Battery{
			Index:         i,
			State:         stateOf(bat.State.Raw),
			Current:       bat.Current,
			Full:          bat.Full,
			Design:        bat.Design,
			ChargeRate:    rate,
			Voltage:       bat.Voltage,
			DesignVoltage: bat.DesignVoltage,
		})
	}

	return ret, nil
}

func stateOf(s battery.AgnosticState) BatteryState {
	switch s {
	case battery.Empty:
		return StateEmpty
	case battery.Full:
		return StateFull
	case battery.Charging:
		return StateCharging
	case battery.Discharging:
		return StateDischarging
	case battery.Idle:
		return StateIdle
	default:
		return StateUnknown
	}
}
