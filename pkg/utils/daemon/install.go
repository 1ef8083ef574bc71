// Package daemon installs tpbal as a systemd service.
package daemon

import (
	_ "embed"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
)

//go:embed tpbal.service
var unitTemplate string

const serviceName = "tpbal.service"

var (
	unitPath = "/etc/systemd/system/" + serviceName

	// systemctl runs systemctl with args. Replaced in tests.
	systemctl = func(args ...string) error {
		out, err := exec.Command("systemctl", args...).CombinedOutput()
		if err != nil {
			return fmt.Errorf("systemctl %s: %w: %s", strings.Join(args, " "), err, strings.TrimSpace(string(out)))
		}
		return nil
	}

	executable = os.Executable
)

// Unit renders the systemd unit that runs exePath as the daemon, with
// daemonArgs appended to the daemon subcommand.
func Unit(exePath string, daemonArgs ...string) string {
	cmdline := exePath + " daemon"
	if len(daemonArgs) > 0 {
		cmdline += " " + strings.Join(daemonArgs, " ")
	}
	return strings.ReplaceAll(unitTemplate, "/path/to/tpbal daemon", cmdline)
}

// Install writes the systemd unit for the current executable, then enables
// and starts it.
func Install(daemonArgs ...string) error {
	exePath, err := executable()
	if err != nil {
		return fmt.Errorf("failed to get the path to the current executable: %w", err)
	}
	exePath, err = filepath.Abs(exePath)
	if err != nil {
		return fmt.Errorf("failed to get the absolute path to the current executable: %w", err)
	}

	err = os.Chmod(exePath, 0755)
	if err != nil {
		return fmt.Errorf("failed to chmod the current executable to 0755: %w", err)
	}

	logrus.Infof("current executable path: %s", exePath)

	unit := Unit(exePath, daemonArgs...)

	logrus.Infof("writing systemd unit to %s", unitPath)

	err = os.MkdirAll(filepath.Dir(unitPath), 0755)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Dir(unitPath), err)
	}

	// warn if the file already exists
	if _, err = os.Stat(unitPath); err == nil {
		logrus.Warnf("%s already exists, overwriting", unitPath)
	}

	err = os.WriteFile(unitPath, []byte(unit), 0644)
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", unitPath, err)
	}

	logrus.Infof("starting tpbal")

	if err := systemctl("daemon-reload"); err != nil {
		return err
	}
	if err := systemctl("enable", "--now", serviceName); err != nil {
		return err
	}

	return nil
}
