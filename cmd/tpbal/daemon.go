package main

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/charlie0129/tpbal/pkg/daemon"
	"github.com/charlie0129/tpbal/pkg/version"
)

var (
	// alwaysAllowNonRootAccess indicates whether to always allow non-root users to access the tpbal daemon.
	alwaysAllowNonRootAccess = false
	dryRun                   = false
)

// NewDaemonCommand .
func NewDaemonCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "daemon",
		Short:   "Run tpbal daemon in the foreground",
		GroupID: gAdvanced,
		Long: `Run tpbal daemon in the foreground.

The daemon balances the batteries every --delay and serves its state on
--daemon-socket. On SIGINT or SIGTERM it clears force_discharge on both
batteries before exiting.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			conf, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			logrus.WithFields(logrus.Fields{
				"version": version.Version,
				"commit":  version.GitCommit,
			}).Info("tpbal daemon starting")

			return daemon.Run(daemon.Options{
				Config:         conf,
				UnixSocketPath: unixSocketPath,
				AllowNonRoot:   alwaysAllowNonRootAccess,
				DryRun:         dryRun,
			})
		},
	}

	f := cmd.Flags()

	f.BoolVar(&alwaysAllowNonRootAccess, "always-allow-non-root-access", false,
		"Always allow non-root users to access the daemon.")
	f.BoolVar(&dryRun, "dry-run", false,
		"Read tp_smapi and log decisions, but never write force_discharge.")

	return cmd
}
