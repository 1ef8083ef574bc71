package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/charlie0129/tpbal/pkg/client"
	"github.com/charlie0129/tpbal/pkg/config"
	"github.com/charlie0129/tpbal/pkg/version"
)

var (
	logLevel       = "info"
	unixSocketPath = client.DefaultSocketPath

	smapiRoot  string
	delay      time.Duration
	hysteresis float64

	apiClient = client.NewClient(unixSocketPath)
)

var (
	gBasic        = "Basic:"
	gAdvanced     = "Advanced:"
	gInstallation = "Installation:"
	commandGroups = []string{
		gBasic,
		gAdvanced,
		gInstallation,
	}
)

func setupLogger() error {
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		return fmt.Errorf("failed to parse log level: %v", err)
	}
	logrus.SetLevel(level)
	logrus.SetFormatter(&logrus.TextFormatter{})
	if term.IsTerminal(int(os.Stderr.Fd())) {
		logrus.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: time.Kitchen,
		})
	}

	return nil
}

func handleCmdError(err error) {
	if errors.Is(err, client.ErrDaemonNotRunning) {
		fmt.Fprintln(os.Stderr, "\nError: tpbal daemon is not running")
		fmt.Fprintln(os.Stderr, "Is the daemon running? Have you installed it?")
	} else if errors.Is(err, client.ErrPermissionDenied) {
		fmt.Fprintln(os.Stderr, "\nError: Permission Denied")
		fmt.Fprintln(os.Stderr, "  - Try running the command again with 'sudo'")
		fmt.Fprintln(os.Stderr, "  - Or reinstall the daemon with the '--allow-non-root-access' flag to grant permissions to your user")
	} else if errors.Is(err, client.ErrNotFound) {
		fmt.Fprintln(os.Stderr, "\nError: the daemon has no data yet")
		fmt.Fprintln(os.Stderr, "It may have just started. Try again in a few seconds.")
	}
}

// loadConfig layers explicitly set command line flags over config.Load.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	conf, err := config.Load()
	if err != nil {
		return conf, err
	}

	flags := cmd.Flags()
	if flags.Changed("smapi-root") {
		conf.SMAPIRoot = smapiRoot
	}
	if flags.Changed("delay") {
		conf.Delay = delay
	}
	if flags.Changed("hysteresis") {
		conf.Hysteresis = hysteresis
	}

	return conf, conf.Validate()
}

func main() {
	cmd := NewCommand()
	if err := cmd.Execute(); err != nil {
		handleCmdError(err)
		os.Exit(1)
	}
}

func NewCommand() *cobra.Command {
	defaults := config.Default()

	cmd := &cobra.Command{
		Use:   "tpbal",
		Short: "tpbal balances discharge between the two batteries of a ThinkPad",
		Long: `tpbal balances discharge between the two batteries of a ThinkPad.

It reads battery state from tp_smapi and forces the fuller, idle battery to
discharge first, so both batteries wear evenly.

Environment variables TPBAL_DELAY, TPBAL_HYSTERESIS and TPBAL_SMAPI_ROOT
provide defaults for the matching flags.`,
		SilenceUsage: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			if err := setupLogger(); err != nil {
				return err
			}
			apiClient = client.NewClient(unixSocketPath)
			return nil
		},
	}

	globalFlags := cmd.PersistentFlags()
	globalFlags.StringVarP(&logLevel, "log-level", "l", "info", "log level (trace, debug, info, warn, error, fatal, panic)")
	globalFlags.StringVar(&unixSocketPath, "daemon-socket", unixSocketPath, "tpbal daemon unix socket path")
	globalFlags.StringVar(&smapiRoot, "smapi-root", defaults.SMAPIRoot, "tp_smapi sysfs directory")
	globalFlags.DurationVar(&delay, "delay", defaults.Delay, "time between two balancing cycles")
	globalFlags.Float64Var(&hysteresis, "hysteresis", defaults.Hysteresis, "percentage points one battery must lead by before switching to it")

	for _, i := range commandGroups {
		cmd.AddGroup(&cobra.Group{
			ID:    i,
			Title: i,
		})
	}

	cmd.AddCommand(
		NewDaemonCommand(),
		NewVersionCommand(),
		NewStatusCommand(),
		NewWatchCommand(),
		NewReleaseCommand(),
		NewInstallCommand(),
		NewUninstallCommand(),
	)

	return cmd
}

// NewVersionCommand .
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "version",
		Short:   "Print version",
		GroupID: gBasic,
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Printf("%s %s\n", version.Version, version.GitCommit)

			daemonVersion, err := apiClient.GetVersion()
			if err != nil {
				logrus.Debugf("could not get daemon version: %v", err)
				return
			}
			if daemonVersion != version.Version {
				logrus.WithFields(logrus.Fields{
					"clientVersion": version.Version,
					"daemonVersion": daemonVersion,
				}).Warn("Version mismatch between client and daemon. Reinstall the daemon with this binary.")
			}
		},
	}
}
