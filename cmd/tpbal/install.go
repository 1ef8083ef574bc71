package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	daemonutils "github.com/charlie0129/tpbal/pkg/utils/daemon"
)

// daemonArgs returns the global flags the user set explicitly, so the
// installed service runs with the same settings.
func daemonArgs(cmd *cobra.Command) []string {
	var args []string
	cmd.InheritedFlags().VisitAll(func(f *pflag.Flag) {
		if f.Changed {
			args = append(args, fmt.Sprintf("--%s=%s", f.Name, f.Value.String()))
		}
	})
	return args
}

// NewInstallCommand .
func NewInstallCommand() *cobra.Command {
	allowNonRootAccess := false

	cmd := &cobra.Command{
		Use:     "install",
		Short:   "Install tpbal (system-wide)",
		GroupID: gInstallation,
		Long: `Install tpbal daemon as a systemd service (system-wide).

This makes tpbal run in the background and automatically start on boot. You must run this command as root.

Global flags given to this command, such as --hysteresis, are passed on to the installed daemon.

By default, only root user is allowed to access the tpbal daemon. If you want to allow non-root users, i.e., you, to run "tpbal status" or "tpbal watch" without sudo, use the --allow-non-root-access flag.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := loadConfig(cmd); err != nil {
				return err
			}

			args := daemonArgs(cmd)
			if allowNonRootAccess {
				logrus.Info("non-root users are allowed to access the tpbal daemon.")
				args = append(args, "--always-allow-non-root-access")
			} else {
				logrus.Info("only root user is allowed to access the tpbal daemon.")
			}

			err := daemonutils.Install(args...)
			if err != nil {
				// check if current user is root
				if os.Geteuid() != 0 {
					logrus.Errorf("you must run this command as root")
				}
				return fmt.Errorf("failed to install daemon: %v. Are you root?", err)
			}

			logrus.Infof("installation succeeded")

			exePath, _ := os.Executable()

			cmd.Printf("systemd will use current binary (%s) at startup so please make sure you do not move this binary. Once this binary is moved or deleted, you will need to run `tpbal install' again.\n", exePath)

			return nil
		},
	}

	cmd.Flags().BoolVar(&allowNonRootAccess, "allow-non-root-access", false, "Allow non-root users to access tpbal daemon.")

	return cmd
}

// NewUninstallCommand .
func NewUninstallCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "uninstall",
		Short:   "Uninstall tpbal (system-wide)",
		GroupID: gInstallation,
		Long: `Uninstall tpbal daemon from systemd (system-wide).

This stops tpbal, which clears forced discharge on both batteries, and removes the systemd unit.

You must run this command as root.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			err := daemonutils.Uninstall()
			if err != nil {
				// check if current user is root
				if os.Geteuid() != 0 {
					logrus.Errorf("you must run this command as root")
				}
				return fmt.Errorf("failed to uninstall daemon: %v", err)
			}

			cmd.Println("successfully uninstalled")

			return nil
		},
	}
}
