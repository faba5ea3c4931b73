// Package conf loads and validates the engine configuration.
package conf

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Default values applied when the config file omits a key.
const (
	defaultDatabasePath    = "glucoguard.db"
	defaultFallbackLocale  = "en"
	defaultCadence         = 5 * time.Minute
	defaultDispatchWorkers = 8
	defaultPrefCacheTTL    = 2 * time.Minute
	defaultMetricsAddr     = ":9090"
)

// minHistoryRetention is the floor for a non-zero history retention. The
// notification log doubles as the cooldown store, so pruning entries younger
// than the longest rule cooldown (14d) would silently re-arm suppressed rules.
const minHistoryRetention = 15 * 24 * time.Hour

// Settings is the root configuration for the engine.
type Settings struct {
	Database DatabaseSettings `mapstructure:"database"`
	Push     PushSettings     `mapstructure:"push"`
	Alerting AlertingSettings `mapstructure:"alerting"`
	Log      LogSettings      `mapstructure:"log"`
	Metrics  MetricsSettings  `mapstructure:"metrics"`
}

// DatabaseSettings configures the backing store.
type DatabaseSettings struct {
	// Path is the SQLite database file path.
	Path string `mapstructure:"path"`
}

// PushSettings configures the delivery channel.
type PushSettings struct {
	// URLTemplate is a shoutrrr service URL with a "{token}" placeholder
	// replaced by each patient's delivery token. Empty means no channel is
	// configured and dispatch degrades to mock mode.
	URLTemplate string `mapstructure:"url_template"`
}

// AlertingSettings configures the rule scheduler and resolvers.
type AlertingSettings struct {
	// DefaultCadence is the evaluation interval for rules without an
	// explicit override in Cadences.
	DefaultCadence Duration `mapstructure:"default_cadence"`
	// Cadences maps rule type name to its evaluation interval.
	Cadences map[string]Duration `mapstructure:"cadences"`
	// FallbackLocale is used when a patient's locale has no translations.
	FallbackLocale string `mapstructure:"fallback_locale"`
	// HistoryRetention prunes notification records older than this. Zero
	// disables pruning entirely.
	HistoryRetention Duration `mapstructure:"history_retention"`
	// DispatchWorkers bounds concurrent candidate pipelines within one tick.
	DispatchWorkers int `mapstructure:"dispatch_workers"`
	// PreferenceCacheTTL bounds staleness of cached preference lookups.
	PreferenceCacheTTL Duration `mapstructure:"preference_cache_ttl"`
}

// LogSettings configures logging output.
type LogSettings struct {
	Level string `mapstructure:"level"`
}

// MetricsSettings configures the Prometheus scrape endpoint.
type MetricsSettings struct {
	// Addr is the listen address for /metrics. Empty disables the endpoint.
	Addr string `mapstructure:"addr"`
}

// Load reads settings from the given config file (optional) and the
// environment (GLUCOGUARD_ prefix), applies defaults, and validates.
func Load(configFile string) (*Settings, error) {
	v := viper.New()
	v.SetDefault("database.path", defaultDatabasePath)
	v.SetDefault("alerting.default_cadence", defaultCadence.String())
	v.SetDefault("alerting.fallback_locale", defaultFallbackLocale)
	v.SetDefault("alerting.dispatch_workers", defaultDispatchWorkers)
	v.SetDefault("alerting.preference_cache_ttl", defaultPrefCacheTTL.String())
	v.SetDefault("metrics.addr", defaultMetricsAddr)
	v.SetDefault("log.level", "info")

	v.SetEnvPrefix("glucoguard")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
		}
	}

	var s Settings
	if err := v.Unmarshal(&s, viper.DecodeHook(DurationDecodeHook())); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate checks cross-field constraints.
func (s *Settings) Validate() error {
	if s.Database.Path == "" {
		return errors.New("database.path must not be empty")
	}
	if s.Alerting.DefaultCadence <= 0 {
		return errors.New("alerting.default_cadence must be positive")
	}
	for rule, cadence := range s.Alerting.Cadences {
		if cadence <= 0 {
			return fmt.Errorf("alerting.cadences.%s must be positive", rule)
		}
	}
	if r := s.Alerting.HistoryRetention.Std(); r != 0 && r < minHistoryRetention {
		return fmt.Errorf("alerting.history_retention %s is below the %s minimum; "+
			"pruning younger entries would reset active cooldowns",
			r, minHistoryRetention)
	}
	if s.Alerting.DispatchWorkers <= 0 {
		return errors.New("alerting.dispatch_workers must be positive")
	}
	return nil
}

// Cadence returns the evaluation interval for the given rule type, falling
// back to the default cadence when no override is configured.
func (a *AlertingSettings) Cadence(ruleType string) time.Duration {
	if d, ok := a.Cadences[ruleType]; ok {
		return d.Std()
	}
	return a.DefaultCadence.Std()
}
