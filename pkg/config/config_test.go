package config

import (
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want Config
	}{
		{
			name: "defaults",
			want: Config{Delay: time.Second, Hysteresis: 5, SMAPIRoot: "/sys/devices/platform/smapi"},
		},
		{
			name: "environment overrides",
			env: map[string]string{
				"TPBAL_DELAY":      "3s",
				"TPBAL_HYSTERESIS": "7.5",
				"TPBAL_SMAPI_ROOT": "/tmp/smapi",
			},
			want: Config{Delay: 3 * time.Second, Hysteresis: 7.5, SMAPIRoot: "/tmp/smapi"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			got, err := Load()
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Load() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "default", mutate: func(*Config) {}},
		{name: "zero hysteresis", mutate: func(c *Config) { c.Hysteresis = 0 }},
		{name: "zero delay", mutate: func(c *Config) { c.Delay = 0 }, wantErr: true},
		{name: "negative hysteresis", mutate: func(c *Config) { c.Hysteresis = -1 }, wantErr: true},
		{name: "hysteresis above 100", mutate: func(c *Config) { c.Hysteresis = 101 }, wantErr: true},
		{name: "empty root", mutate: func(c *Config) { c.SMAPIRoot = "" }, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			tt.mutate(&c)
			if err := c.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
