package main

import (
	"github.com/fatih/color"

	"github.com/charlie0129/tpbal/pkg/powerinfo"
)

func bool2Text(b bool) string {
	if b {
		return color.New(color.Bold, color.FgGreen).Sprint("✔")
	}
	return color.New(color.Bold, color.FgRed).Sprint("✘")
}

func bold(format string, a ...interface{}) string {
	return color.New(color.Bold).Sprintf(format, a...)
}

func optBool2Text(b *bool) string {
	if b == nil {
		return color.YellowString("?")
	}
	return bool2Text(*b)
}

func percentText(p *float64) string {
	if p == nil {
		return "?%"
	}
	return bold("%.1f%%", *p)
}

func statusText(s powerinfo.BatteryStatus) string {
	switch s {
	case powerinfo.StatusIdle:
		return "idle"
	case powerinfo.StatusCharging:
		return color.GreenString("charging")
	case powerinfo.StatusDischarging:
		return color.RedString("discharging")
	case powerinfo.StatusEmpty:
		return color.RedString("empty")
	}
	return color.YellowString("unknown")
}

func commandText(c powerinfo.Command) string {
	switch c.Action {
	case powerinfo.ActionForce:
		return color.New(color.Bold, color.FgCyan).Sprintf("discharge %s (%s)", c.Target, c.Target.Dir())
	case powerinfo.ActionRelease:
		return color.New(color.Bold, color.FgGreen).Sprint("release both")
	}
	return bold("hold")
}
