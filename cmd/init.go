package cmd

import (
	"fmt"
	"net/netip"
	"strconv"

	"github.com/encodeous/dodag/state"
	"github.com/goccy/go-yaml"
	"github.com/spf13/cobra"
)

var newCmd = &cobra.Command{
	Use:   "new [nodes]",
	Short: "Create a scenario with a single root",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		count := 4
		if len(args) == 1 {
			n, err := strconv.Atoi(args[0])
			if err != nil || n < 1 {
				return fmt.Errorf("invalid node count: %s", args[0])
			}
			count = n
		}
		topology, _ := cmd.Flags().GetString("topology")
		prefix, err := netip.ParsePrefix(cmd.Flag("prefix").Value.String())
		if err != nil {
			return err
		}
		etx, _ := cmd.Flags().GetFloat64("etx")

		cfg, err := newScenario(count, topology, prefix, etx)
		if err != nil {
			return err
		}
		out, err := yaml.Marshal(cfg)
		if err != nil {
			return err
		}
		outPath := cmd.Flag("output").Value.String()
		if outPath == "-" {
			_, err = cmd.OutOrStdout().Write(out)
			return err
		}
		return writeFile(outPath, out)
	},
	GroupID: "init",
}

// newScenario builds count nodes named n0..n(count-1), with n0 as the root of instance 1.
func newScenario(count int, topology string, prefix netip.Prefix, etx float64) (*state.ScenarioCfg, error) {
	if !prefix.Addr().Is6() {
		return nil, fmt.Errorf("prefix %s is not an IPv6 prefix", prefix)
	}
	cfg := &state.ScenarioCfg{}
	for i := range count {
		cfg.Nodes = append(cfg.Nodes, state.NodeCfg{
			Id:       state.NodeId("n" + strconv.Itoa(i)),
			LinkAddr: state.DerivedLinkAddr(i),
		})
	}
	cfg.Nodes[0].Root = &state.RootCfg{
		Instance: 1,
		DagId:    state.DerivedLinkAddr(0).AddrFromPrefix(prefix),
		Prefix:   prefix.Masked(),
	}
	for i := 1; i < count; i++ {
		var from int
		switch topology {
		case "line":
			from = i - 1
		case "star":
			from = 0
		case "tree":
			from = (i - 1) / 2
		default:
			return nil, fmt.Errorf("unknown topology %q, expected line, star or tree", topology)
		}
		cfg.Links = append(cfg.Links, state.LinkCfg{
			From: cfg.Nodes[from].Id,
			To:   cfg.Nodes[i].Id,
			Etx:  etx,
		})
	}
	state.ExpandScenario(cfg)
	return cfg, nil
}

func init() {
	rootCmd.AddCommand(newCmd)
	newCmd.Flags().StringP("output", "o", "scenario.yaml", "scenario output file path, - for stdout")
	newCmd.Flags().String("topology", "line", "line, star or tree")
	newCmd.Flags().String("prefix", "fd00:1::/64", "prefix announced by the root")
	newCmd.Flags().Float64("etx", 1, "etx of every link")
}
