package internal

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/valter-silva-au/growth-brain/internal/core"
	"github.com/valter-silva-au/growth-brain/pkg/models"
)

func TestResolveBasePath_GBRHomeSet(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("GBR_HOME", tmpDir)

	got := ResolveBasePath()
	if got != tmpDir {
		t.Errorf("ResolveBasePath() = %q, want %q", got, tmpDir)
	}
}

func TestResolveBasePath_FindsConfig(t *testing.T) {
	tmpDir := t.TempDir()
	subDir := filepath.Join(tmpDir, "sub", "nested")
	if err := os.MkdirAll(subDir, 0o755); err != nil {
		t.Fatal(err)
	}

	configPath := filepath.Join(tmpDir, ".gbrconfig")
	if err := os.WriteFile(configPath, []byte("metrics:\n  buffer_size: 1000\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	origDir, _ := os.Getwd()
	defer func() { _ = os.Chdir(origDir) }()
	if err := os.Chdir(subDir); err != nil {
		t.Fatal(err)
	}

	t.Setenv("GBR_HOME", "")

	got := ResolveBasePath()
	if got != tmpDir {
		t.Errorf("ResolveBasePath() = %q, want %q (should find .gbrconfig in parent)", got, tmpDir)
	}
}

func TestResolveBasePath_FallbackToCwd(t *testing.T) {
	tmpDir := t.TempDir()
	origDir, _ := os.Getwd()
	defer func() { _ = os.Chdir(origDir) }()
	if err := os.Chdir(tmpDir); err != nil {
		t.Fatal(err)
	}

	t.Setenv("GBR_HOME", "")

	got := ResolveBasePath()
	if got != tmpDir {
		t.Errorf("ResolveBasePath() = %q, want %q (should fall back to cwd)", got, tmpDir)
	}
}

func TestNewApp_Success(t *testing.T) {
	tmpDir := t.TempDir()
	app, err := NewApp(tmpDir)
	if err != nil {
		t.Fatalf("NewApp() error = %v", err)
	}
	defer func() { _ = app.Close() }()

	if app.BasePath != tmpDir {
		t.Errorf("app.BasePath = %q, want %q", app.BasePath, tmpDir)
	}
	if app.Metrics == nil {
		t.Error("app.Metrics is nil")
	}
	if app.Experiments == nil {
		t.Error("app.Experiments is nil")
	}
	if app.Controller == nil {
		t.Error("app.Controller is nil")
	}
	if app.Selector == nil {
		t.Error("app.Selector is nil")
	}
	if app.EventLog == nil {
		t.Error("app.EventLog is nil")
	}
	// No webhook configured: the notifier stays off.
	if app.Notifier != nil {
		t.Error("app.Notifier set without a webhook URL")
	}
}

func TestNewApp_MissingConfigUsesDefaults(t *testing.T) {
	tmpDir := t.TempDir()
	app, err := NewApp(tmpDir)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = app.Close() }()

	if app.Config.MetricBufferSize != core.DefaultBufferSize {
		t.Errorf("buffer size = %d, want default", app.Config.MetricBufferSize)
	}
}

func TestNewApp_InvalidConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, ".gbrconfig")
	if err := os.WriteFile(configPath, []byte("metrics:\n  buffer_size: -1\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := NewApp(tmpDir); err == nil {
		t.Error("expected error for invalid config")
	}
}

func TestApp_StateRoundTrip(t *testing.T) {
	tmpDir := t.TempDir()

	app, err := NewApp(tmpDir)
	if err != nil {
		t.Fatal(err)
	}

	// Build up some engine state.
	app.Metrics.TrackOnboardingStarted("user-1")
	app.Metrics.TrackOnboardingCompleted("user-1", 40*time.Second)
	if _, err := app.Experiments.CreateFromTemplate(core.TemplateOnboardingSteps); err != nil {
		t.Fatal(err)
	}
	if err := app.Experiments.Start(core.TemplateOnboardingSteps); err != nil {
		t.Fatal(err)
	}
	if _, err := app.Experiments.AssignVariant("user-1", core.TemplateOnboardingSteps); err != nil {
		t.Fatal(err)
	}

	if err := app.SaveState(); err != nil {
		t.Fatalf("SaveState() error = %v", err)
	}
	if err := app.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	// A fresh app over the same base path restores everything.
	reloaded, err := NewApp(tmpDir)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = reloaded.Close() }()

	if got := reloaded.Metrics.Count(core.MetricOnboardingStarted, 24*time.Hour); got != 1 {
		t.Errorf("restored started count = %d, want 1", got)
	}
	exp, err := reloaded.Experiments.Get(core.TemplateOnboardingSteps)
	if err != nil {
		t.Fatalf("restored experiment missing: %v", err)
	}
	if exp.Status != models.ExperimentRunning {
		t.Errorf("restored status = %s, want running", exp.Status)
	}
	if v, ok := reloaded.Experiments.AssignedVariant("user-1", core.TemplateOnboardingSteps); !ok || v == "" {
		t.Errorf("restored assignment = %q,%v", v, ok)
	}
}

func TestApp_CorruptStateIsNonFatal(t *testing.T) {
	tmpDir := t.TempDir()
	statePath := filepath.Join(tmpDir, "engine_state.yaml")
	if err := os.WriteFile(statePath, []byte("invalid: yaml: [unclosed"), 0o644); err != nil {
		t.Fatal(err)
	}

	// Persistence failures warn but never prevent startup.
	app, err := NewApp(tmpDir)
	if err != nil {
		t.Fatalf("NewApp() error = %v", err)
	}
	defer func() { _ = app.Close() }()

	if app.Metrics == nil {
		t.Error("app.Metrics is nil")
	}
}
