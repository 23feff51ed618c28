package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jadegate/jadegate/internal/policy"
)

var policyCmd = &cobra.Command{
	Use:   "policy",
	Short: "Inspect or initialize JadeGate's policy",
}

var policyInitOutput string

var policyShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the active policy as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := loadPolicy()
		if err != nil {
			return err
		}
		data, err := json.MarshalIndent(p, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	},
}

var policyInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default policy file",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := policyInitOutput
		if out == "" {
			out = cfg.PolicyPath
		}
		var p policy.Policy
		switch cfg.PolicyPreset {
		case "permissive":
			p = policy.Permissive()
		case "strict":
			p = policy.Strict()
		default:
			p = policy.Default()
		}
		if err := p.Save(out); err != nil {
			return fmt.Errorf("jadegate: writing policy: %w", err)
		}
		fmt.Fprintf(os.Stderr, "jadegate: wrote %s policy to %s\n", cfg.PolicyPreset, out)
		return nil
	},
}

func init() {
	policyInitCmd.Flags().StringVar(&policyInitOutput, "output", "", "path to write the policy file (default: configured policy path)")
	policyCmd.AddCommand(policyShowCmd, policyInitCmd)
	rootCmd.AddCommand(policyCmd)
}
