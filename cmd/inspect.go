package cmd

import (
	"fmt"
	"slices"

	"github.com/encodeous/dodag/core"
	"github.com/encodeous/dodag/state"
	"github.com/spf13/cobra"
)

var inspectCmd = &cobra.Command{
	Use:     "inspect <node>",
	Aliases: []string{"i"},
	Short:   "Runs a scenario and prints the final state of one node",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id := state.NodeId(args[0])
		cfg, err := loadScenario(scenarioPath)
		if err != nil {
			return err
		}
		if cfg.Node(id) == nil {
			return fmt.Errorf("node %s not found in %s", id, scenarioPath)
		}
		snapshots, err := simulate(cmd, cfg)
		if err != nil {
			return err
		}
		idx := slices.IndexFunc(snapshots, func(ns core.NodeSnapshot) bool {
			return ns.Id == id
		})
		asYaml, _ := cmd.Flags().GetBool("yaml")
		return writeSnapshots(cmd.OutOrStdout(), asYaml, snapshots[idx])
	},
	GroupID: "sim",
}

func init() {
	rootCmd.AddCommand(inspectCmd)
	addSimFlags(inspectCmd)
}
