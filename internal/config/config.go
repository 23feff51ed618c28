// Package config loads JadeGate's runtime configuration from, in
// ascending priority: built-in defaults, a config file, JADEGATE_*
// environment variables, and CLI flags — the layering viper provides
// out of the box (spec.md §2, ambient config concern).
package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

const (
	// DefaultConfigDir is "~/.jadegate", mirroring the teacher's
	// per-user dotfile convention.
	DefaultConfigDir  = ".jadegate"
	DefaultPolicyFile = "policy.json"
	DefaultAuditFile  = "audit.jsonl"
	DefaultTrustDir   = "trust"
)

// Config is JadeGate's resolved runtime configuration.
type Config struct {
	ConfigDir    string
	PolicyPath   string
	AuditLogPath string
	TrustDir     string
	PolicyPreset string // "default", "permissive", "strict"
	Debug        bool
	MetricsAddr  string // empty disables the metrics HTTP endpoint
}

// Load resolves configuration from defaults, an optional file at
// explicitConfigPath (or ~/.jadegate/config.yaml if empty), JADEGATE_*
// environment variables, and the values already bound to flags in v.
func Load(v *viper.Viper, explicitConfigPath string) (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}
	configDir := filepath.Join(home, DefaultConfigDir)
	if err := os.MkdirAll(configDir, 0o700); err != nil {
		return nil, err
	}

	v.SetEnvPrefix("JADEGATE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	v.SetDefault("policy_path", filepath.Join(configDir, DefaultPolicyFile))
	v.SetDefault("audit_log_path", filepath.Join(configDir, DefaultAuditFile))
	v.SetDefault("trust_dir", filepath.Join(configDir, DefaultTrustDir))
	v.SetDefault("policy_preset", "default")
	v.SetDefault("debug", false)
	v.SetDefault("metrics_addr", "")

	if explicitConfigPath != "" {
		v.SetConfigFile(explicitConfigPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(configDir)
	}
	if err := v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			return nil, err
		}
	}

	cfg := &Config{
		ConfigDir:    configDir,
		PolicyPath:   v.GetString("policy_path"),
		AuditLogPath: v.GetString("audit_log_path"),
		TrustDir:     v.GetString("trust_dir"),
		PolicyPreset: v.GetString("policy_preset"),
		Debug:        v.GetBool("debug"),
		MetricsAddr:  v.GetString("metrics_addr"),
	}
	if err := os.MkdirAll(cfg.TrustDir, 0o700); err != nil {
		return nil, err
	}
	return cfg, nil
}
