package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/jadegate/jadegate/internal/trust"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show JadeGate status — config paths, policy preset, trust store summary",
	Long: `Prints where JadeGate is reading its policy and writing its audit log
from, and a summary of the local trust store's certificates.

  jadegate status`,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

// interactive reports whether stdout is an attached terminal — when it
// isn't (piped into a script or a log file), the box-drawing separators
// are dropped since they add nothing but noise for a consuming program.
func interactive() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

func rule(heading string) {
	if interactive() {
		fmt.Println(heading)
		underline := make([]byte, 0, len(heading)*3)
		for range heading {
			underline = append(underline, "─"...)
		}
		fmt.Println(string(underline))
		return
	}
	fmt.Println(heading + ":")
}

func runStatus(cmd *cobra.Command, args []string) error {
	rule("JadeGate status")
	fmt.Printf("  version:       %s\n", Version)
	fmt.Printf("  config dir:    %s\n", cfg.ConfigDir)
	fmt.Printf("  policy path:   %s\n", cfg.PolicyPath)
	fmt.Printf("  audit log:     %s\n", cfg.AuditLogPath)
	fmt.Printf("  trust dir:     %s\n", cfg.TrustDir)
	fmt.Printf("  policy preset: %s\n", cfg.PolicyPreset)
	fmt.Println()

	store, err := trust.Open(cfg.TrustDir)
	if err != nil {
		return fmt.Errorf("jadegate: opening trust store: %w", err)
	}
	summary := store.Summary()
	rule("Trust store")
	fmt.Printf("  total certificates: %d\n", summary.TotalCertificates)
	fmt.Printf("  signed:             %d\n", summary.Signed)
	fmt.Printf("  trusted (>=0.6):    %d\n", summary.Trusted)
	fmt.Printf("  high/critical risk: %d\n", summary.HighRisk)
	return nil
}
