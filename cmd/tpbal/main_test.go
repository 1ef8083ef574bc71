package main

import (
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/charlie0129/tpbal/pkg/config"
	"github.com/charlie0129/tpbal/pkg/powerinfo"
)

// captureRun executes the root command with args and returns the
// subcommand that ran.
func captureRun(t *testing.T, args ...string) *cobra.Command {
	t.Helper()

	root := NewCommand()
	var ran *cobra.Command
	for _, c := range root.Commands() {
		if c.Name() == "release" {
			c.RunE = func(cmd *cobra.Command, _ []string) error {
				ran = cmd
				return nil
			}
		}
	}
	root.SetArgs(args)
	require.NoError(t, root.Execute())
	require.NotNil(t, ran)
	return ran
}

func TestLoadConfigFlagsOverrideEnv(t *testing.T) {
	t.Setenv("TPBAL_HYSTERESIS", "7")
	t.Setenv("TPBAL_DELAY", "3s")

	cmd := captureRun(t, "release", "--delay", "250ms", "--smapi-root", "/tmp/smapi")
	conf, err := loadConfig(cmd)
	require.NoError(t, err)

	assert.Equal(t, 250*time.Millisecond, conf.Delay)
	assert.Equal(t, 7.0, conf.Hysteresis)
	assert.Equal(t, "/tmp/smapi", conf.SMAPIRoot)
}

func TestLoadConfigDefaults(t *testing.T) {
	cmd := captureRun(t, "release")
	conf, err := loadConfig(cmd)
	require.NoError(t, err)
	assert.Equal(t, config.Default(), conf)
}

func TestLoadConfigInvalid(t *testing.T) {
	cmd := captureRun(t, "release", "--hysteresis", "150")
	_, err := loadConfig(cmd)
	assert.Error(t, err)
}

func TestDaemonArgs(t *testing.T) {
	root := NewCommand()
	var got []string
	for _, c := range root.Commands() {
		if c.Name() == "install" {
			c.RunE = func(cmd *cobra.Command, _ []string) error {
				got = daemonArgs(cmd)
				return nil
			}
		}
	}
	root.SetArgs([]string{"install", "--hysteresis", "3", "--allow-non-root-access"})
	require.NoError(t, root.Execute())

	assert.Equal(t, []string{"--hysteresis=3"}, got)
}

func TestBuildStatusJSON(t *testing.T) {
	ac := false
	remaining, lastFull := int64(27830), int64(50600)
	diff := 14.999999
	snap := &powerinfo.Snapshot{
		ACConnected: &ac,
		Primary:     powerinfo.NewReading(&remaining, &lastFull, powerinfo.StatusIdle, "idle"),
		Secondary:   powerinfo.NewReading(nil, nil, powerinfo.StatusUnknown, ""),
	}
	conf := config.Default()

	out := buildStatusJSON(&statusData{
		snapshot: snap,
		decision: &powerinfo.Decision{Command: powerinfo.Force(powerinfo.Secondary), Reason: "r", Diff: &diff},
		config:   &conf,
	})

	require.Len(t, out.Batteries, 2)
	assert.Equal(t, "BAT0", out.Batteries[0].Dir)
	require.NotNil(t, out.Batteries[0].Percent)
	assert.Equal(t, 55.0, *out.Batteries[0].Percent)
	assert.Nil(t, out.Batteries[1].Percent)
	assert.Equal(t, "unknown", out.Batteries[1].Status)

	assert.Equal(t, "force", out.Decision.Action)
	assert.Equal(t, "secondary", out.Decision.Target)
	require.NotNil(t, out.Decision.Diff)
	assert.Equal(t, 15.0, *out.Decision.Diff)
	assert.Equal(t, 1.0, out.Configuration.DelaySeconds)
}
