package config

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds configuration values loaded from flags, env, or config file.
type Config struct {
	Tokens       int
	Traders      int
	Swaps        int
	Seed         int64
	InitialMint  string
	Out          string
	PGDSN        string
	FeeRecipient string
	LogLevel     string
}

// Load merges config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SWAPCORE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("tokens", 3)
	v.SetDefault("traders", 2)
	v.SetDefault("swaps", 50)
	v.SetDefault("seed", int64(1))
	v.SetDefault("initial-mint", "1000000000000")
	v.SetDefault("out", "./data/events.jsonl")
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
		Tokens:       v.GetInt("tokens"),
		Traders:      v.GetInt("traders"),
		Swaps:        v.GetInt("swaps"),
		Seed:         v.GetInt64("seed"),
		InitialMint:  v.GetString("initial-mint"),
		Out:          v.GetString("out"),
		PGDSN:        v.GetString("pg-dsn"),
		FeeRecipient: v.GetString("fee-recipient"),
		LogLevel:     v.GetString("log-level"),
	}

	return cfg, nil
}
