/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	bind           string
	cautionPercent float64
	dangerPercent  float64
	deviceBroker   string
	deviceInterval time.Duration
	deviceRead     string
	deviceWrite    string
	port           int
	prefix         string
	profile        bool
	sensorFull     float64
	sensorHalf     float64
	sensorHigh     float64
	sensorLow      float64
	tlsCert        string
	tlsKey         string
	verbose        bool
	version        bool
}

func (c *Config) validate() error {
	if (c.tlsCert == "") != (c.tlsKey == "") {
		return errors.New("both --tls-cert and --tls-key must be provided together")
	}
	if c.port < 1 || c.port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.port)
	}
	if c.sensorLow >= c.sensorHigh {
		return fmt.Errorf("--sensor-low (%g) must be less than --sensor-high (%g)", c.sensorLow, c.sensorHigh)
	}
	if c.cautionPercent <= 0 || c.cautionPercent >= c.dangerPercent {
		return fmt.Errorf("--caution-percent (%g) must be positive and less than --danger-percent (%g)", c.cautionPercent, c.dangerPercent)
	}
	if c.deviceInterval <= 0 {
		return fmt.Errorf("invalid --device-interval: %s", c.deviceInterval)
	}
	return nil
}

func (c *Config) scheme() string {
	if c.tlsCert != "" && c.tlsKey != "" {
		return "https"
	}
	return "http"
}

func (c *Config) tiers() SensorTiers {
	return SensorTiers{
		Low:  c.sensorLow,
		High: c.sensorHigh,
		Half: c.sensorHalf,
		Full: c.sensorFull,
	}
}

func (c *Config) thresholds() StatusThresholds {
	return StatusThresholds{
		Caution: c.cautionPercent,
		Danger:  c.dangerPercent,
	}
}

func newCmd(cfg *Config) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("BARKEEP")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "barkeep",
		Short:         "A live drinking-status tracker fed by a bluetooth scale, with a built-in chat room.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		Version:       releaseVersion,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.validate(); err != nil {
				return err
			}
			return ServePage(cmd.Context(), cfg, args)
		},
	}

	fs := cmd.Flags()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVarP(&cfg.bind, "bind", "b", "0.0.0.0", "address to bind to (env: BARKEEP_BIND)")
	fs.Float64Var(&cfg.cautionPercent, "caution-percent", 50, "consumption percentage at which status becomes caution (env: BARKEEP_CAUTION_PERCENT)")
	fs.Float64Var(&cfg.dangerPercent, "danger-percent", 100, "consumption percentage at which status becomes danger (env: BARKEEP_DANGER_PERCENT)")
	fs.StringVar(&cfg.deviceBroker, "device-broker", "", "mqtt url of the scale bridge, e.g. tcp://localhost:1883; empty disables the device channel (env: BARKEEP_DEVICE_BROKER)")
	fs.DurationVar(&cfg.deviceInterval, "device-interval", 2*time.Second, "interval between outbound device feedback writes (env: BARKEEP_DEVICE_INTERVAL)")
	fs.StringVar(&cfg.deviceRead, "device-read-topic", "barkeep/scale/weight", "topic carrying inbound weight readings (env: BARKEEP_DEVICE_READ_TOPIC)")
	fs.StringVar(&cfg.deviceWrite, "device-write-topic", "barkeep/scale/feedback", "topic carrying outbound device feedback (env: BARKEEP_DEVICE_WRITE_TOPIC)")
	fs.IntVarP(&cfg.port, "port", "p", 3000, "port to listen on (env: BARKEEP_PORT)")
	fs.StringVar(&cfg.prefix, "prefix", "", "path to prepend to all URLs, for use behind reverse proxy (env: BARKEEP_PREFIX)")
	fs.BoolVar(&cfg.profile, "profile", false, "register net/http/pprof handlers (env: BARKEEP_PROFILE)")
	fs.Float64Var(&cfg.sensorFull, "sensor-full", 1.0, "consumption delta for a reading at or above --sensor-high (env: BARKEEP_SENSOR_FULL)")
	fs.Float64Var(&cfg.sensorHalf, "sensor-half", 0.5, "consumption delta for a reading between the thresholds (env: BARKEEP_SENSOR_HALF)")
	fs.Float64Var(&cfg.sensorHigh, "sensor-high", 0.6, "upper weight threshold; use 18 for uncalibrated raw-unit scales (env: BARKEEP_SENSOR_HIGH)")
	fs.Float64Var(&cfg.sensorLow, "sensor-low", 0.01, "lower weight threshold; use 1 for uncalibrated raw-unit scales (env: BARKEEP_SENSOR_LOW)")
	fs.StringVar(&cfg.tlsCert, "tls-cert", "", "path to tls certificate (env: BARKEEP_TLS_CERT)")
	fs.StringVar(&cfg.tlsKey, "tls-key", "", "path to tls keyfile (env: BARKEEP_TLS_KEY)")
	fs.BoolVarP(&cfg.verbose, "verbose", "v", false, "display additional output (env: BARKEEP_VERBOSE)")
	fs.BoolVarP(&cfg.version, "version", "V", false, "display version and exit (env: BARKEEP_VERSION)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("barkeep v{{.Version}}\n")

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}
