package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/jadegate/jadegate/internal/trust"
)

var certCmd = &cobra.Command{
	Use:   "cert",
	Short: "Inspect JadeGate's stored tool certificates",
}

var certListCmd = &cobra.Command{
	Use:   "list",
	Short: "Tabulate every certificate in the trust store",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := trust.Open(cfg.TrustDir)
		if err != nil {
			return fmt.Errorf("jadegate: opening trust store: %w", err)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 2, 2, ' ', 0)
		fmt.Fprintln(w, "TOOL_ID\tRISK\tTRUST\tSIGNED\tLAST_SEEN")
		for _, c := range store.ListAll() {
			signed := "no"
			if c.Signature != "" {
				signed = "yes"
			}
			fmt.Fprintf(w, "%s\t%s\t%.2f\t%s\t%s\n",
				c.ToolID, c.RiskProfile.Level, c.TrustScore, signed, c.LastSeen.Format("2006-01-02 15:04"))
		}
		return w.Flush()
	},
}

func init() {
	certCmd.AddCommand(certListCmd)
	rootCmd.AddCommand(certCmd)
}
