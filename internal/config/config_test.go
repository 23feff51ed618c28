package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
)

func TestLoadAppliesDefaultsUnderFakeHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	cfg, err := Load(viper.New(), "")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	wantDir := filepath.Join(home, DefaultConfigDir)
	if cfg.ConfigDir != wantDir {
		t.Errorf("expected ConfigDir %q, got %q", wantDir, cfg.ConfigDir)
	}
	if cfg.PolicyPath != filepath.Join(wantDir, DefaultPolicyFile) {
		t.Errorf("expected default policy path, got %q", cfg.PolicyPath)
	}
	if cfg.PolicyPreset != "default" {
		t.Errorf("expected policy_preset default, got %q", cfg.PolicyPreset)
	}
	if _, err := os.Stat(wantDir); err != nil {
		t.Errorf("expected config dir to be created, got %v", err)
	}
}

func TestLoadHonorsEnvironmentOverride(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("JADEGATE_POLICY_PRESET", "strict")

	cfg, err := Load(viper.New(), "")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.PolicyPreset != "strict" {
		t.Errorf("expected JADEGATE_POLICY_PRESET to override the preset, got %q", cfg.PolicyPreset)
	}
}
