package core

import (
	"fmt"

	"github.com/spf13/viper"
	"github.com/valter-silva-au/growth-brain/pkg/models"
)

// ConfigurationManager loads and validates the engine configuration from the
// .gbrconfig file.
type ConfigurationManager interface {
	LoadGlobalConfig() (*models.GlobalConfig, error)
	ValidateConfig(cfg *models.GlobalConfig) error
}

// viperConfigManager implements ConfigurationManager using Viper to read YAML
// configuration files.
type viperConfigManager struct {
	basePath string
}

// NewConfigurationManager creates a ConfigurationManager that reads
// configuration relative to basePath.
func NewConfigurationManager(basePath string) ConfigurationManager {
	return &viperConfigManager{basePath: basePath}
}

// DefaultGlobalConfig returns a GlobalConfig populated with the engine
// defaults.
func DefaultGlobalConfig() *models.GlobalConfig {
	return &models.GlobalConfig{
		MetricBufferSize:     DefaultBufferSize,
		ActionHistorySize:    DefaultHistorySize,
		FailedActionTTLHours: int(DefaultFailedActionTTL.Hours()),
		DefaultMinSampleSize: 100,
		DefaultConfidence:    0.95,
		FlushIntervalSeconds: 300,
		Thresholds:           DefaultThresholds(),
		Params: models.OptimizationParams{
			CacheTTLSeconds:    300,
			ScanIntervalHours:  6,
			MaxAlertsPerDigest: 10,
			NotifyQuietRatio:   0.5,
		},
	}
}

// LoadGlobalConfig reads the .gbrconfig file from the base path. Missing file
// or missing keys fall back to the defaults.
func (cm *viperConfigManager) LoadGlobalConfig() (*models.GlobalConfig, error) {
	cfg := DefaultGlobalConfig()

	v := viper.New()
	v.SetConfigName(".gbrconfig")
	v.SetConfigType("yaml")
	v.AddConfigPath(cm.basePath)

	v.SetDefault("metrics.buffer_size", cfg.MetricBufferSize)
	v.SetDefault("actions.history_size", cfg.ActionHistorySize)
	v.SetDefault("actions.failed_ttl_hours", cfg.FailedActionTTLHours)
	v.SetDefault("experiments.min_sample_size", cfg.DefaultMinSampleSize)
	v.SetDefault("experiments.confidence", cfg.DefaultConfidence)
	v.SetDefault("flush_interval_seconds", cfg.FlushIntervalSeconds)
	v.SetDefault("slack_webhook_url", cfg.SlackWebhookURL)
	v.SetDefault("thresholds.min_completion_rate", cfg.Thresholds.MinCompletionRate)
	v.SetDefault("thresholds.min_button_ctr", cfg.Thresholds.MinButtonCTR)
	v.SetDefault("thresholds.max_error_rate", cfg.Thresholds.MaxErrorRate)
	v.SetDefault("thresholds.max_response_time_ms", cfg.Thresholds.MaxResponseTimeMS)
	v.SetDefault("thresholds.min_cache_hit_rate", cfg.Thresholds.MinCacheHitRate)
	v.SetDefault("params.cache_ttl_seconds", cfg.Params.CacheTTLSeconds)
	v.SetDefault("params.scan_interval_hours", cfg.Params.ScanIntervalHours)
	v.SetDefault("params.max_alerts_per_digest", cfg.Params.MaxAlertsPerDigest)
	v.SetDefault("params.notify_quiet_ratio", cfg.Params.NotifyQuietRatio)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading .gbrconfig: %w", err)
	}

	cfg.MetricBufferSize = v.GetInt("metrics.buffer_size")
	cfg.ActionHistorySize = v.GetInt("actions.history_size")
	cfg.FailedActionTTLHours = v.GetInt("actions.failed_ttl_hours")
	cfg.DefaultMinSampleSize = v.GetInt("experiments.min_sample_size")
	cfg.DefaultConfidence = v.GetFloat64("experiments.confidence")
	cfg.FlushIntervalSeconds = v.GetInt("flush_interval_seconds")
	cfg.SlackWebhookURL = v.GetString("slack_webhook_url")
	cfg.Thresholds.MinCompletionRate = v.GetFloat64("thresholds.min_completion_rate")
	cfg.Thresholds.MinButtonCTR = v.GetFloat64("thresholds.min_button_ctr")
	cfg.Thresholds.MaxErrorRate = v.GetFloat64("thresholds.max_error_rate")
	cfg.Thresholds.MaxResponseTimeMS = v.GetFloat64("thresholds.max_response_time_ms")
	cfg.Thresholds.MinCacheHitRate = v.GetFloat64("thresholds.min_cache_hit_rate")
	cfg.Params.CacheTTLSeconds = v.GetInt("params.cache_ttl_seconds")
	cfg.Params.ScanIntervalHours = v.GetInt("params.scan_interval_hours")
	cfg.Params.MaxAlertsPerDigest = v.GetInt("params.max_alerts_per_digest")
	cfg.Params.NotifyQuietRatio = v.GetFloat64("params.notify_quiet_ratio")

	if err := cm.ValidateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ValidateConfig rejects configurations the engine cannot run with.
func (cm *viperConfigManager) ValidateConfig(cfg *models.GlobalConfig) error {
	if cfg.MetricBufferSize <= 0 {
		return fmt.Errorf("%w: metrics.buffer_size must be positive", models.ErrValidation)
	}
	if cfg.ActionHistorySize <= 0 {
		return fmt.Errorf("%w: actions.history_size must be positive", models.ErrValidation)
	}
	if cfg.DefaultConfidence <= 0 || cfg.DefaultConfidence >= 1 {
		return fmt.Errorf("%w: experiments.confidence must be in (0,1)", models.ErrValidation)
	}
	if cfg.Thresholds.MaxErrorRate < 0 || cfg.Thresholds.MaxErrorRate > 1 {
		return fmt.Errorf("%w: thresholds.max_error_rate must be in [0,1]", models.ErrValidation)
	}
	return nil
}
