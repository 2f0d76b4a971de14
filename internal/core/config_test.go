package core

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/valter-silva-au/growth-brain/pkg/models"
)

func TestLoadGlobalConfig_MissingFileUsesDefaults(t *testing.T) {
	cm := NewConfigurationManager(t.TempDir())

	cfg, err := cm.LoadGlobalConfig()
	if err != nil {
		t.Fatalf("loading config: %v", err)
	}

	if cfg.MetricBufferSize != DefaultBufferSize {
		t.Errorf("buffer size = %d, want %d", cfg.MetricBufferSize, DefaultBufferSize)
	}
	if cfg.ActionHistorySize != DefaultHistorySize {
		t.Errorf("history size = %d, want %d", cfg.ActionHistorySize, DefaultHistorySize)
	}
	if cfg.DefaultConfidence != 0.95 {
		t.Errorf("confidence = %v, want 0.95", cfg.DefaultConfidence)
	}
	if cfg.Thresholds != DefaultThresholds() {
		t.Errorf("thresholds = %+v", cfg.Thresholds)
	}
	if cfg.Params.CacheTTLSeconds != 300 || cfg.Params.ScanIntervalHours != 6 {
		t.Errorf("params = %+v", cfg.Params)
	}
}

func TestLoadGlobalConfig_FileOverridesAndDefaults(t *testing.T) {
	dir := t.TempDir()
	content := `metrics:
  buffer_size: 500
experiments:
  min_sample_size: 50
thresholds:
  max_error_rate: 0.1
slack_webhook_url: https://hooks.slack.com/services/T000/B000/XXXX
`
	if err := os.WriteFile(filepath.Join(dir, ".gbrconfig"), []byte(content), 0o600); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	cfg, err := NewConfigurationManager(dir).LoadGlobalConfig()
	if err != nil {
		t.Fatalf("loading config: %v", err)
	}

	if cfg.MetricBufferSize != 500 {
		t.Errorf("buffer size = %d, want 500", cfg.MetricBufferSize)
	}
	if cfg.DefaultMinSampleSize != 50 {
		t.Errorf("min sample size = %d, want 50", cfg.DefaultMinSampleSize)
	}
	if cfg.Thresholds.MaxErrorRate != 0.1 {
		t.Errorf("max error rate = %v, want 0.1", cfg.Thresholds.MaxErrorRate)
	}
	if cfg.SlackWebhookURL == "" {
		t.Error("webhook url not loaded")
	}
	// Untouched keys keep their defaults.
	if cfg.ActionHistorySize != DefaultHistorySize {
		t.Errorf("history size = %d, want default", cfg.ActionHistorySize)
	}
	if cfg.Thresholds.MinCompletionRate != 0.60 {
		t.Errorf("min completion rate = %v, want default", cfg.Thresholds.MinCompletionRate)
	}
}

func TestLoadGlobalConfig_RejectsInvalidValues(t *testing.T) {
	dir := t.TempDir()
	content := "metrics:\n  buffer_size: -5\n"
	if err := os.WriteFile(filepath.Join(dir, ".gbrconfig"), []byte(content), 0o600); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	if _, err := NewConfigurationManager(dir).LoadGlobalConfig(); !errors.Is(err, models.ErrValidation) {
		t.Errorf("error = %v, want ErrValidation", err)
	}
}

func TestValidateConfig(t *testing.T) {
	cm := NewConfigurationManager(t.TempDir())

	if err := cm.ValidateConfig(DefaultGlobalConfig()); err != nil {
		t.Errorf("default config rejected: %v", err)
	}

	bad := DefaultGlobalConfig()
	bad.DefaultConfidence = 1.5
	if err := cm.ValidateConfig(bad); !errors.Is(err, models.ErrValidation) {
		t.Errorf("error = %v, want ErrValidation", err)
	}

	bad = DefaultGlobalConfig()
	bad.Thresholds.MaxErrorRate = 2
	if err := cm.ValidateConfig(bad); !errors.Is(err, models.ErrValidation) {
		t.Errorf("error = %v, want ErrValidation", err)
	}
}
