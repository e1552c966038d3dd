package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var scenarioPath = "scenario.yaml"

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "dodag",
	Short: "RPL DODAG simulator",
	Long: `dodag runs the RPL topology maintenance engine on a simulated mesh.
Every node of a scenario runs its own engine and timers, exchanging advertisements and route registrations over an in-process lossy medium.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddGroup(&cobra.Group{
		ID:    "init",
		Title: "Create Scenarios",
	})
	rootCmd.AddGroup(&cobra.Group{
		ID:    "sim",
		Title: "Simulation Commands",
	})
	rootCmd.PersistentFlags().StringVarP(&scenarioPath, "scenario", "s", scenarioPath, "scenario file")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Verbose output")
}
