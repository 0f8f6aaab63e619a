package config

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds configuration values loaded from flags, env, or config file.
type Config struct {
	RunID           string
	Seed            int64
	Steps           int
	FeePips         uint32
	TickSpacing     int32
	ProtocolFeeRate uint32
	RewardRate      uint64
	Journal         string
	PgDSN           string
	SnapshotEvery   int
	LogLevel        string
}

// Load merges config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("POOLCTL")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("run-id", "local")
	v.SetDefault("seed", int64(1))
	v.SetDefault("steps", 1000)
	v.SetDefault("fee-pips", uint32(3000))
	v.SetDefault("tick-spacing", int32(60))
	v.SetDefault("protocol-fee-rate", uint32(0))
	v.SetDefault("reward-rate", uint64(0))
	v.SetDefault("journal", "./data/journal.jsonl")
	v.SetDefault("snapshot-every", 100)
	v.SetDefault("log-level", "info")

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	cfg := Config{
		RunID:           v.GetString("run-id"),
		Seed:            v.GetInt64("seed"),
		Steps:           v.GetInt("steps"),
		FeePips:         v.GetUint32("fee-pips"),
		TickSpacing:     v.GetInt32("tick-spacing"),
		ProtocolFeeRate: v.GetUint32("protocol-fee-rate"),
		RewardRate:      v.GetUint64("reward-rate"),
		Journal:         v.GetString("journal"),
		PgDSN:           v.GetString("pg-dsn"),
		SnapshotEvery:   v.GetInt("snapshot-every"),
		LogLevel:        v.GetString("log-level"),
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.FeePips >= 1_000_000 {
		return fmt.Errorf("fee-pips must be below 1000000")
	}
	if c.ProtocolFeeRate > 1_000_000 {
		return fmt.Errorf("protocol-fee-rate must be at most 1000000")
	}
	if c.TickSpacing <= 0 {
		return fmt.Errorf("tick-spacing must be positive")
	}
	return nil
}
