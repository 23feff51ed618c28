// Package cli wires JadeGate's cobra command surface: proxy, status,
// policy show/init, cert list, and version (spec.md §6).
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jadegate/jadegate/internal/config"
)

var (
	flagConfigPath string
	flagPolicyPath string
	flagAuditPath  string
	flagTrustDir   string
	flagPreset     string
	flagDebug      bool
	flagMetrics    string

	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "jadegate",
	Short: "JadeGate — a local, network-free security gateway for MCP tool calls",
	Long: `JadeGate sits between an AI agent and the MCP tool servers it invokes.
Every tools/call is evaluated against a declarative policy, a per-session
call graph with anomaly detection, a per-tool circuit breaker, and a
trust-on-first-use capability baseline before it is allowed to reach the
real tool server.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		v := viper.New()
		v.BindPFlag("policy_path", cmd.Flags().Lookup("policy"))
		v.BindPFlag("audit_log_path", cmd.Flags().Lookup("audit-log"))
		v.BindPFlag("trust_dir", cmd.Flags().Lookup("trust-dir"))
		v.BindPFlag("policy_preset", cmd.Flags().Lookup("preset"))
		v.BindPFlag("debug", cmd.Flags().Lookup("debug"))
		v.BindPFlag("metrics_addr", cmd.Flags().Lookup("metrics-addr"))

		loaded, err := config.Load(v, flagConfigPath)
		if err != nil {
			return fmt.Errorf("jadegate: loading config: %w", err)
		}
		cfg = loaded
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfigPath, "config", "", "path to config file (default: ~/.jadegate/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&flagPolicyPath, "policy", "", "path to policy JSON file (default: ~/.jadegate/policy.json)")
	rootCmd.PersistentFlags().StringVar(&flagAuditPath, "audit-log", "", "path to JSONL audit log (default: ~/.jadegate/audit.jsonl)")
	rootCmd.PersistentFlags().StringVar(&flagTrustDir, "trust-dir", "", "path to the trust certificate directory (default: ~/.jadegate/trust)")
	rootCmd.PersistentFlags().StringVar(&flagPreset, "preset", "", "policy preset when no policy file exists: default, permissive, or strict")
	rootCmd.PersistentFlags().BoolVar(&flagDebug, "debug", false, "enable verbose diagnostic logging")
	rootCmd.PersistentFlags().StringVar(&flagMetrics, "metrics-addr", "", "loopback address to expose Prometheus metrics on (e.g. 127.0.0.1:9090); empty disables it")
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
