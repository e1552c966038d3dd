package cmd

import (
	"github.com/spf13/cobra"
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a scenario",
	Long:  `This will boot every node of the scenario, let the mesh run for the configured duration and print the final state of each node.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadScenario(scenarioPath)
		if err != nil {
			return err
		}
		snapshots, err := simulate(cmd, cfg)
		if err != nil {
			return err
		}
		asYaml, _ := cmd.Flags().GetBool("yaml")
		return writeSnapshots(cmd.OutOrStdout(), asYaml, snapshots...)
	},
	GroupID: "sim",
}

func init() {
	rootCmd.AddCommand(runCmd)
	addSimFlags(runCmd)
}
