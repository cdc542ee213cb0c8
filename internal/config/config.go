// Package config loads and validates orderbookd's runtime configuration.
package config

import (
	"fmt"
	"strings"
	"sync"

	validator "github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config is the full set of knobs for one Book instance plus the process
// wrapping it.
type Config struct {
	Symbol string `mapstructure:"symbol" validate:"required"`

	Price struct {
		Min       float64 `mapstructure:"min" validate:"gt=0"`
		Max       float64 `mapstructure:"max" validate:"gtfield=Min"`
		TickNum   int64   `mapstructure:"tick_num" validate:"gt=0"`
		TickDenom int64   `mapstructure:"tick_denom" validate:"gt=0"`
	} `mapstructure:"price" validate:"required"`

	Dispatch struct {
		QueueSize  int     `mapstructure:"queue_size" validate:"gte=1"`
		MaxBytes   uint64  `mapstructure:"max_bytes"`
		RatePerSec float64 `mapstructure:"rate_per_sec" validate:"gte=0"`
		Burst      int     `mapstructure:"burst" validate:"gte=0"`
	} `mapstructure:"dispatch"`

	Log struct {
		Level string `mapstructure:"level" validate:"oneof=debug info warn error"`
	} `mapstructure:"log"`
}

var (
	loaded *Config
	once   sync.Once
)

// Load reads configuration from configPath (a directory to search, or ""
// for the defaults below), applies ORDERBOOK_-prefixed environment
// overrides, and validates the result.
func Load(configPath string) (*Config, error) {
	var err error
	once.Do(func() {
		loaded = &Config{}
		setDefaults(loaded)

		v := viper.New()
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		if configPath != "" {
			v.AddConfigPath(configPath)
		} else {
			v.AddConfigPath(".")
			v.AddConfigPath("./config")
			v.AddConfigPath("/etc/orderbookd")
		}
		v.AutomaticEnv()
		v.SetEnvPrefix("ORDERBOOK")
		v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
		for _, key := range []string{
			"symbol", "price.min", "price.max", "price.tick_num", "price.tick_denom",
			"dispatch.queue_size", "dispatch.max_bytes", "dispatch.rate_per_sec", "dispatch.burst",
			"log.level",
		} {
			_ = v.BindEnv(key)
		}

		if readErr := v.ReadInConfig(); readErr != nil {
			if _, ok := readErr.(viper.ConfigFileNotFoundError); !ok {
				err = fmt.Errorf("read config: %w", readErr)
				return
			}
		}
		if uErr := v.Unmarshal(loaded); uErr != nil {
			err = fmt.Errorf("unmarshal config: %w", uErr)
			return
		}
		if vErr := validator.New().Struct(loaded); vErr != nil {
			err = fmt.Errorf("invalid config: %w", vErr)
			return
		}
	})
	return loaded, err
}

func setDefaults(c *Config) {
	c.Symbol = "XYZ"
	c.Price.Min = 0.01
	c.Price.Max = 1000.00
	c.Price.TickNum = 1
	c.Price.TickDenom = 100
	c.Dispatch.QueueSize = 1024
	c.Dispatch.MaxBytes = 0
	c.Dispatch.RatePerSec = 0
	c.Dispatch.Burst = 0
	c.Log.Level = "info"
}
