package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/encodeous/dodag/core"
	"github.com/encodeous/dodag/objective"
	"github.com/encodeous/dodag/state"
	"github.com/goccy/go-yaml"
	"github.com/spf13/cobra"
)

func loadScenario(path string) (*state.ScenarioCfg, error) {
	cfg, err := state.LoadScenario(path)
	if err != nil {
		return nil, err
	}
	err = state.ScenarioValidator(cfg, objective.Default().Supported)
	if err != nil {
		return nil, fmt.Errorf("invalid scenario %s: %w", path, err)
	}
	return cfg, nil
}

func logLevel(cmd *cobra.Command) slog.Level {
	if ok, _ := cmd.Flags().GetBool("verbose"); ok {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}

// simulate runs the scenario for its duration, or until interrupted, and returns the
// state of every node at the end of the run.
func simulate(cmd *cobra.Command, cfg *state.ScenarioCfg) ([]core.NodeSnapshot, error) {
	if d, _ := cmd.Flags().GetDuration("duration"); d != 0 {
		cfg.Duration = d
	}
	if addr, _ := cmd.Flags().GetString("debug"); addr != "" {
		core.ServeDebug(addr)
	}
	m, err := core.NewMesh(cfg, logLevel(cmd))
	if err != nil {
		return nil, err
	}
	defer m.Stop()

	if ok, _ := cmd.Flags().GetBool("trace"); ok {
		out := cmd.ErrOrStderr()
		var mu sync.Mutex
		m.Trace(func(ev core.TraceEvent) {
			mu.Lock()
			defer mu.Unlock()
			_, _ = fmt.Fprintln(out, ev.String())
		})
	}
	m.Start()

	ctx, stop := signal.NotifyContext(cmdContext(cmd), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	select {
	case <-time.After(cfg.Duration):
	case <-ctx.Done():
	}
	snapshots, err := m.Snapshots()
	if err != nil {
		return nil, err
	}
	if path, _ := cmd.Flags().GetString("dot"); path != "" {
		if err := writeGraph(cmdContext(cmd), path, snapshots); err != nil {
			return nil, err
		}
	}
	return snapshots, nil
}

func writeSnapshots(w io.Writer, asYaml bool, snapshots ...core.NodeSnapshot) error {
	if asYaml {
		out, err := yaml.Marshal(snapshots)
		if err != nil {
			return err
		}
		_, err = w.Write(out)
		return err
	}
	for i, ns := range snapshots {
		if i != 0 {
			_, _ = fmt.Fprintln(w)
		}
		core.WriteSnapshot(w, ns)
	}
	return nil
}

func addSimFlags(cmd *cobra.Command) {
	cmd.Flags().Duration("duration", 0, "How long to run the scenario, overrides the scenario file")
	cmd.Flags().BoolP("trace", "t", false, "Write engine events to stderr")
	cmd.Flags().Bool("yaml", false, "Output the final state as yaml")
	cmd.Flags().String("debug", "", "Serve metrics and pprof on this address, e.g. localhost:6060")
	cmd.Flags().String("dot", "", "Write the final DODAG as Graphviz DOT, or SVG if the path ends in .svg")
}

// writeGraph exports the parent edges of snapshots to path.
func writeGraph(ctx context.Context, path string, snapshots []core.NodeSnapshot) error {
	dot := core.ToDOT(snapshots)
	if !strings.HasSuffix(path, ".svg") {
		return writeFile(path, []byte(dot))
	}
	svg, err := core.RenderSVG(ctx, dot)
	if err != nil {
		return err
	}
	return writeFile(path, svg)
}

func cmdContext(cmd *cobra.Command) context.Context {
	if cmd.Context() != nil {
		return cmd.Context()
	}
	return context.Background()
}

func writeFile(path string, data []byte) error {
	return os.WriteFile(path, data, 0600)
}
