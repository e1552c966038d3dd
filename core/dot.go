package core

import (
	"bytes"
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/encodeous/dodag/state"
	"github.com/goccy/go-graphviz"
)

// ToDOT draws the preferred parent edges of every current DAG in snapshots as a Graphviz digraph.
// Each edge points from a node to its preferred parent and is labelled with the instance.
func ToDOT(snapshots []NodeSnapshot) string {
	names := make(map[state.LinkAddr]state.NodeId, len(snapshots))
	for _, ns := range snapshots {
		names[ns.LinkAddr] = ns.Id
	}

	var buf bytes.Buffer
	buf.WriteString("digraph dodag {\n")
	buf.WriteString("  rankdir=BT;\n")
	buf.WriteString("  node [shape=box, style=\"rounded,filled\", fillcolor=white];\n")
	buf.WriteString("\n")

	for _, ns := range snapshots {
		lines := []string{string(ns.Id)}
		attrs := make([]string, 0, 2)
		for _, inst := range ns.Instances {
			dag, ok := ns.CurrentDag(inst.Id)
			if !ok {
				continue
			}
			lines = append(lines, fmt.Sprintf("%d: rank %s", inst.Id, dag.Rank))
			// root
			if dag.Joined && !dag.HasPreferred && dag.Rank != state.InfiniteRank {
				attrs = append(attrs, "fillcolor=lightblue")
			}
		}
		if len(lines) == 1 {
			attrs = append(attrs, "style=\"rounded,dashed\"")
		}
		attrs = append([]string{fmt.Sprintf("label=%q", strings.Join(lines, "\n"))}, attrs...)
		fmt.Fprintf(&buf, "  %q [%s];\n", ns.Id, strings.Join(slices.Compact(attrs), ", "))
	}

	buf.WriteString("\n")
	for _, ns := range snapshots {
		for _, inst := range ns.Instances {
			dag, ok := ns.CurrentDag(inst.Id)
			if !ok || !dag.HasPreferred {
				continue
			}
			parent, ok := names[dag.Preferred]
			if !ok {
				parent = state.NodeId(dag.Preferred.String())
			}
			fmt.Fprintf(&buf, "  %q -> %q [label=\"%d\"];\n", ns.Id, parent, inst.Id)
		}
	}

	buf.WriteString("}\n")
	return buf.String()
}

// RenderSVG lays out a DOT graph with Graphviz.
func RenderSVG(ctx context.Context, dot string) ([]byte, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, fmt.Errorf("parse DOT: %w", err)
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, graphviz.SVG, &buf); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return buf.Bytes(), nil
}
