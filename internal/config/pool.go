package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// PoolConfig holds operator-tunable pool fund policy.
type PoolConfig struct {
	// DefaultCounty labels deposits whose client has no county on file.
	DefaultCounty string `mapstructure:"defaultCounty"`
	// LowBalanceThreshold marks counties in summaries whose balance
	// has fallen below this value.
	LowBalanceThreshold decimal.Decimal `mapstructure:"lowBalanceThreshold"`
	// ContributionLockTTLSeconds bounds the per-tenant contribution lock.
	ContributionLockTTLSeconds int `mapstructure:"contributionLockTTLSeconds"`
}

func (c PoolConfig) ContributionLockTTL() time.Duration {
	return time.Duration(c.ContributionLockTTLSeconds) * time.Second
}

func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		DefaultCounty:              "Unknown",
		LowBalanceThreshold:        decimal.Zero,
		ContributionLockTTLSeconds: 10,
	}
}

type PoolConfigHolder struct {
	current atomic.Value // holds PoolConfig
}

func NewPoolConfigHolder() (*PoolConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("pool")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/poolfund/config")
	v.AddConfigPath("/etc/poolfund")
	v.AddConfigPath(".")

	v.SetEnvPrefix("POOLFUND")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultPoolConfig()
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		v.SetDefault("pool.defaultCounty", defaults.DefaultCounty)
		v.SetDefault("pool.lowBalanceThreshold", defaults.LowBalanceThreshold.String())
		v.SetDefault("pool.contributionLockTTLSeconds", defaults.ContributionLockTTLSeconds)
	}

	cfg, err := unmarshalPoolConfig(v, defaults)
	if err != nil {
		return nil, err
	}
	if err := validatePoolConfig(cfg); err != nil {
		return nil, err
	}

	holder := &PoolConfigHolder{}
	holder.current.Store(cfg)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		updated, err := unmarshalPoolConfig(v, defaults)
		if err != nil {
			log.Printf("[pool-config] reload failed: %v", err)
			return
		}
		if err := validatePoolConfig(updated); err != nil {
			log.Printf("[pool-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[pool-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

func (h *PoolConfigHolder) Get() PoolConfig {
	return h.current.Load().(PoolConfig)
}

// NewStaticPoolConfigHolder wraps a fixed config, used by tests.
func NewStaticPoolConfigHolder(cfg PoolConfig) *PoolConfigHolder {
	holder := &PoolConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func unmarshalPoolConfig(v *viper.Viper, defaults PoolConfig) (PoolConfig, error) {
	cfg := defaults

	if raw := strings.TrimSpace(v.GetString("pool.defaultCounty")); raw != "" {
		cfg.DefaultCounty = raw
	}
	if raw := strings.TrimSpace(v.GetString("pool.lowBalanceThreshold")); raw != "" {
		parsed, err := decimal.NewFromString(raw)
		if err != nil {
			return PoolConfig{}, err
		}
		cfg.LowBalanceThreshold = parsed
	}
	if ttl := v.GetInt("pool.contributionLockTTLSeconds"); ttl != 0 {
		cfg.ContributionLockTTLSeconds = ttl
	}

	return cfg, nil
}

func validatePoolConfig(cfg PoolConfig) error {
	if strings.TrimSpace(cfg.DefaultCounty) == "" {
		return errors.New("pool.defaultCounty cannot be empty")
	}
	if cfg.ContributionLockTTLSeconds <= 0 {
		return errors.New("pool.contributionLockTTLSeconds must be positive")
	}
	return nil
}
