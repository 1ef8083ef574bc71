// Package smapi reads and writes the tp_smapi sysfs attributes exposed by
// the kernel under /sys/devices/platform/smapi.
package smapi

import (
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
)

// DefaultRoot is where the tp_smapi module exposes its attributes.
const DefaultRoot = "/sys/devices/platform/smapi"

// Scope selects the directory an attribute lives in. RootScope is the
// smapi root itself, battery scopes are the BAT0/BAT1 subdirectories.
type Scope string

// RootScope addresses attributes directly under the smapi root.
const RootScope Scope = ""

// Attribute is the file name of a single smapi value.
type Attribute string

// Attributes used by tpbal.
const (
	ACConnected       Attribute = "ac_connected"
	State             Attribute = "state"
	RemainingCapacity Attribute = "remaining_capacity"
	LastFullCapacity  Attribute = "last_full_capacity"
	ForceDischarge    Attribute = "force_discharge"
)

// Store performs single textual reads and writes of smapi attributes.
// Implementations must not cache or retry.
type Store interface {
	Read(scope Scope, attr Attribute) (string, error)
	Write(scope Scope, attr Attribute, value string) error
}

var _ Store = &FS{}

// FS is a Store backed by the real sysfs files below Root.
type FS struct {
	Root string
}

// New returns a FS rooted at root. An empty root means DefaultRoot.
func New(root string) *FS {
	if root == "" {
		root = DefaultRoot
	}
	return &FS{Root: root}
}

// Path returns the full path of attr in scope.
func (s *FS) Path(scope Scope, attr Attribute) string {
	return filepath.Join(s.Root, string(scope), string(attr))
}

// Read returns the whole content of the attribute file. Content is returned
// untrimmed; callers decide how to interpret whitespace.
func (s *FS) Read(scope Scope, attr Attribute) (string, error) {
	p := s.Path(scope, attr)

	logrus.WithFields(logrus.Fields{
		"path": p,
	}).Trace("Trying to read from smapi")

	fp, err := os.Open(p)
	if err != nil {
		return "", &IOError{Op: OpOpen, Path: p, Err: err}
	}
	defer closeFile(fp, p)

	b, err := io.ReadAll(fp)
	if err != nil {
		return "", &IOError{Op: OpRead, Path: p, Err: err}
	}

	logrus.WithFields(logrus.Fields{
		"path": p,
		"val":  string(b),
	}).Trace("Read from smapi succeed")

	return string(b), nil
}

// Write truncates the attribute file and writes value to it.
func (s *FS) Write(scope Scope, attr Attribute, value string) error {
	p := s.Path(scope, attr)

	logrus.WithFields(logrus.Fields{
		"path": p,
		"val":  value,
	}).Trace("Trying to write to smapi")

	fp, err := os.OpenFile(p, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return &IOError{Op: OpOpen, Path: p, Err: err}
	}
	defer closeFile(fp, p)

	if _, err := io.WriteString(fp, value); err != nil {
		return &IOError{Op: OpWrite, Path: p, Err: err}
	}

	logrus.WithFields(logrus.Fields{
		"path": p,
		"val":  value,
	}).Trace("Write to smapi succeed")

	return nil
}

// closeFile releases fp. A close failure never changes the outcome of the
// operation that opened the file, it is only logged.
func closeFile(fp *os.File, p string) {
	if err := fp.Close(); err != nil {
		logrus.Warn((&IOError{Op: OpClose, Path: p, Err: err}).Error())
	}
}

var _ Store = DryRun{}

// DryRun wraps a Store so that reads go through and writes are only logged.
type DryRun struct {
	Store
}

func (d DryRun) Write(scope Scope, attr Attribute, value string) error {
	logrus.WithFields(logrus.Fields{
		"scope": scope,
		"attr":  attr,
		"val":   value,
	}).Info("dry run: write skipped")
	return nil
}
