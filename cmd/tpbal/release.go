package main

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/charlie0129/tpbal/pkg/balancer"
	"github.com/charlie0129/tpbal/pkg/smapi"
)

// NewReleaseCommand .
func NewReleaseCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "release",
		Short:   "Stop forced discharge on both batteries",
		GroupID: gAdvanced,
		Long: `Stop forced discharge on both batteries.

This writes 0 to force_discharge of both batteries directly, without going
through the daemon. Use it if the daemon was killed before it could clean up.
A running daemon will force a battery again on its next cycle.

You must run this command as root.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			conf, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			engine := balancer.New(conf, smapi.New(conf.SMAPIRoot))
			if err := engine.StopDischarge(); err != nil {
				return err
			}

			logrus.Info("forced discharge stopped on both batteries")
			return nil
		},
	}
}
