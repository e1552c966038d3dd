package cmd

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/spf13/cobra"
)

var hostsCmd = &cobra.Command{
	Use:   "hosts",
	Short: "Generates a static hosts override for the addresses nodes autoconfigure from root prefixes",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadScenario(scenarioPath)
		if err != nil {
			return err
		}
		hosts := make(map[string][]string)
		for _, root := range cfg.Nodes {
			if root.Root == nil || !root.Root.Prefix.IsValid() {
				continue
			}
			for _, node := range cfg.Nodes {
				ip := node.LinkAddr.AddrFromPrefix(root.Root.Prefix).String()
				hosts[ip] = append(hosts[ip], string(node.Id))
			}
		}
		sb := strings.Builder{}
		for _, ip := range slices.Sorted(maps.Keys(hosts)) {
			sb.WriteString(ip)
			for _, name := range slices.Sorted(slices.Values(hosts[ip])) {
				sb.WriteString(fmt.Sprintf("\t%s", name))
			}
			sb.WriteString("\n")
		}
		_, err = fmt.Fprint(cmd.OutOrStdout(), sb.String())
		return err
	},
	GroupID: "init",
}

func init() {
	rootCmd.AddCommand(hostsCmd)
}
