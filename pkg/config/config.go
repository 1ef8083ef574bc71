// Package config holds the tunables of the balancer. Values come from
// built-in defaults, then TPBAL_* environment variables, then CLI flags.
package config

import (
	"strings"
	"time"

	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/charlie0129/tpbal/pkg/smapi"
)

// EnvPrefix is the prefix of environment variables read by Load.
const EnvPrefix = "TPBAL_"

const (
	DefaultDelay      = 1 * time.Second
	DefaultHysteresis = 5.0
)

// Config is the balancer configuration.
type Config struct {
	// Delay is the pause between two refresh/decide cycles.
	Delay time.Duration `json:"delay"`
	// Hysteresis is the minimum gap, in percentage points, between the two
	// batteries before one of them is forced to discharge.
	Hysteresis float64 `json:"hysteresis"`
	// SMAPIRoot is the directory tp_smapi exposes its attributes in.
	SMAPIRoot string `json:"smapiRoot"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Delay:      DefaultDelay,
		Hysteresis: DefaultHysteresis,
		SMAPIRoot:  smapi.DefaultRoot,
	}
}

// Load returns the defaults overridden by TPBAL_DELAY, TPBAL_HYSTERESIS and
// TPBAL_SMAPIROOT. The result is not validated, since CLI flags may still
// override it.
func Load() (Config, error) {
	k := koanf.New(".")

	def := Default()
	for key, val := range map[string]interface{}{
		"delay":      def.Delay.String(),
		"hysteresis": def.Hysteresis,
		"smapiRoot":  def.SMAPIRoot,
	} {
		if err := k.Set(key, val); err != nil {
			return Config{}, pkgerrors.Wrapf(err, "failed to set default %s", key)
		}
	}

	err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil)
	if err != nil {
		return Config{}, pkgerrors.Wrap(err, "failed to load environment")
	}

	var c Config
	err = k.UnmarshalWithConf("", &c, koanf.UnmarshalConf{Tag: "json"})
	if err != nil {
		return Config{}, pkgerrors.Wrap(err, "failed to unmarshal config")
	}

	return c, nil
}

var envKeys = map[string]string{
	"delay":      "delay",
	"hysteresis": "hysteresis",
	"smapiroot":  "smapiRoot",
	"smapi_root": "smapiRoot",
}

// envKey maps TPBAL_SMAPI_ROOT to smapiRoot and so on. Unknown variables
// map to themselves and are ignored by unmarshalling.
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	if k, ok := envKeys[s]; ok {
		return k
	}
	return s
}

// Validate checks that the configuration is usable.
func (c Config) Validate() error {
	if c.Delay <= 0 {
		return pkgerrors.Errorf("delay must be positive, got %s", c.Delay)
	}
	if c.Hysteresis < 0 || c.Hysteresis > 100 {
		return pkgerrors.Errorf("hysteresis must be between 0 and 100, got %g", c.Hysteresis)
	}
	if c.SMAPIRoot == "" {
		return pkgerrors.New("smapi root must not be empty")
	}
	return nil
}

func (c Config) LogrusFields() logrus.Fields {
	return logrus.Fields{
		"delay":      c.Delay.String(),
		"hysteresis": c.Hysteresis,
		"smapiRoot":  c.SMAPIRoot,
	}
}
