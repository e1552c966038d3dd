package cmd

import (
	"fmt"

	"github.com/goccy/go-yaml"
	"github.com/spf13/cobra"
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Validates a scenario file",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadScenario(scenarioPath)
		if err != nil {
			return err
		}
		if ok, _ := cmd.Flags().GetBool("print"); ok {
			out, err := yaml.Marshal(cfg)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprint(cmd.OutOrStdout(), string(out))
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Scenario is valid: %d nodes, %d links\n", len(cfg.Nodes), len(cfg.Links))
		return nil
	},
	GroupID: "sim",
}

func init() {
	rootCmd.AddCommand(verifyCmd)
	verifyCmd.Flags().BoolP("print", "p", false, "Print the scenario with defaults filled in")
}
