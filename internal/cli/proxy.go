package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jadegate/jadegate/internal/audit"
	"github.com/jadegate/jadegate/internal/catalog"
	"github.com/jadegate/jadegate/internal/mcpproxy"
	"github.com/jadegate/jadegate/internal/policy"
	"github.com/jadegate/jadegate/internal/runtime"
	"github.com/jadegate/jadegate/internal/telemetry"
	"github.com/jadegate/jadegate/internal/trust"
)

var proxyCmd = &cobra.Command{
	Use:   "proxy -- <upstream-command> [args...]",
	Short: "Launch the MCP stdio proxy in front of an upstream tool server",
	Long: `Starts JadeGate as a transparent MCP stdio proxy between the host
application (stdin/stdout of this process) and an upstream MCP tool server
launched as a subprocess. Every tools/call is evaluated against the policy,
call graph, and circuit breaker before being forwarded.

Usage in a host's MCP config:
  "command": "jadegate proxy -- npx -y @modelcontextprotocol/server-filesystem /path"`,
	Args:               cobra.MinimumNArgs(1),
	RunE:               runProxy,
	DisableFlagParsing: false,
}

func init() {
	rootCmd.AddCommand(proxyCmd)
}

func runProxy(cmd *cobra.Command, args []string) error {
	logger, err := telemetry.NewLogger(cfg.Debug)
	if err != nil {
		return fmt.Errorf("jadegate: logger init: %w", err)
	}
	defer logger.Sync() //nolint:errcheck

	p, err := loadPolicy()
	if err != nil {
		return err
	}

	cats := catalog.Default()

	sink, err := audit.Open(cfg.AuditLogPath)
	if err != nil {
		return fmt.Errorf("jadegate: opening audit log: %w", err)
	}
	defer sink.Close()

	trustStore, err := trust.Open(cfg.TrustDir)
	if err != nil {
		return fmt.Errorf("jadegate: opening trust store: %w", err)
	}
	tofu := trust.NewTrustOnFirstUse(trustStore, cats)

	metrics := telemetry.NewMetrics()
	session := runtime.NewSession(p, cats, sink, metrics)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("jadegate: received shutdown signal")
		cancel()
	}()

	if cfg.MetricsAddr != "" {
		telemetry.ServeMetrics(ctx, cfg.MetricsAddr)
		logger.Infof("jadegate: metrics listening on %s", cfg.MetricsAddr)
	}

	proxy := mcpproxy.New(mcpproxy.Config{
		UpstreamCmd: args,
		Session:     session,
		Categories:  cats,
		Logger:      telemetry.ZapLogAdapter{L: logger},
		TOFU:        tofu,
	})

	logger.Infof("jadegate: proxy starting, session=%s upstream=%v", session.SessionID(), args)
	return proxy.Run(ctx)
}

func loadPolicy() (policy.Policy, error) {
	if p, err := policy.FromFile(cfg.PolicyPath); err == nil {
		return p, nil
	}

	switch cfg.PolicyPreset {
	case "permissive":
		return policy.Permissive(), nil
	case "strict":
		return policy.Strict(), nil
	default:
		return policy.Default(), nil
	}
}
