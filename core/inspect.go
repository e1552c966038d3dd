package core

import (
	"fmt"
	"io"
	"net/netip"

	"github.com/encodeous/dodag/netstack"
	"github.com/encodeous/dodag/state"
	"github.com/olekukonko/tablewriter"
)

// NodeSnapshot is a copy of a node's topology state that may be read off the main loop.
type NodeSnapshot struct {
	Id            state.NodeId          `yaml:"id"`
	LinkAddr      state.LinkAddr        `yaml:"link_addr"`
	Instances     []InstanceSnapshot    `yaml:"instances"`
	Parents       []ParentSnapshot      `yaml:"parents"`
	Addrs         []netip.Prefix        `yaml:"addrs"`
	DefaultRoutes []netip.Addr          `yaml:"default_routes"`
	Routes        []netstack.RouteEntry `yaml:"routes"`
	Stats         Stats                 `yaml:"stats"`
}

type InstanceSnapshot struct {
	Id       state.InstanceId `yaml:"id"`
	Ocp      uint16           `yaml:"ocp"`
	Mop      state.Mop        `yaml:"mop"`
	DtsnOut  state.Lollipop   `yaml:"dtsn_out"`
	Interval uint8            `yaml:"interval"`
	Default  bool             `yaml:"default"`
	Dags     []DagSnapshot    `yaml:"dags"`
}

type DagSnapshot struct {
	Id         netip.Addr     `yaml:"id"`
	Version    state.Lollipop `yaml:"version"`
	Rank       state.Rank     `yaml:"rank"`
	MinRank    state.Rank     `yaml:"min_rank"`
	Grounded   bool           `yaml:"grounded"`
	Preference uint8          `yaml:"preference"`
	Joined     bool           `yaml:"joined"`
	Current    bool           `yaml:"current"`
	Prefix     netip.Prefix   `yaml:"prefix,omitempty"`
	// Preferred is the link address of the preferred parent, if HasPreferred.
	Preferred    state.LinkAddr `yaml:"preferred,omitempty"`
	HasPreferred bool           `yaml:"has_preferred"`
}

type ParentSnapshot struct {
	Addr       state.LinkAddr   `yaml:"addr"`
	Dag        netip.Addr       `yaml:"dag"`
	Rank       state.Rank       `yaml:"rank"`
	LinkMetric uint16           `yaml:"link_metric"`
	Dtsn       state.Lollipop   `yaml:"dtsn"`
	Role       state.ParentRole `yaml:"role"`
}

// Snapshot copies the state of the node. It must run on the main loop.
func (n *Node) Snapshot() NodeSnapshot {
	ns := NodeSnapshot{
		Id:            n.env.Id,
		LinkAddr:      n.Stack.LinkAddr,
		Instances:     make([]InstanceSnapshot, 0),
		Parents:       make([]ParentSnapshot, 0),
		Addrs:         n.Stack.Addrs(),
		DefaultRoutes: n.Stack.DefaultRoutes(),
		Routes:        make([]netstack.RouteEntry, 0),
		Stats:         n.Stats,
	}
	for inst := range n.Repo.All() {
		is := InstanceSnapshot{
			Id:       inst.Id,
			Mop:      inst.Mop,
			DtsnOut:  inst.DtsnOut,
			Interval: inst.DioIntCurrent,
			Default:  n.Default == inst,
			Dags:     make([]DagSnapshot, 0),
		}
		if inst.OF != nil {
			is.Ocp = inst.OF.Ocp()
		}
		for dag := range inst.UsedDags() {
			ds := DagSnapshot{
				Id:         dag.Id,
				Version:    dag.Version,
				Rank:       dag.Rank,
				MinRank:    dag.MinRank,
				Grounded:   dag.Grounded,
				Preference: dag.Preference,
				Joined:     dag.Joined,
				Current:    inst.CurrentDag() == dag,
				Prefix:     dag.Prefix.Prefix,
			}
			if p := n.Parent(dag.Preferred); p != nil {
				ds.Preferred = p.Addr
				ds.HasPreferred = true
			}
			is.Dags = append(is.Dags, ds)
			ns.Routes = append(ns.Routes, n.Stack.Routes(dag.Ref)...)
		}
		ns.Instances = append(ns.Instances, is)
	}
	for _, p := range n.Parents.All() {
		ps := ParentSnapshot{
			Addr:       p.Addr,
			Rank:       p.Rank,
			LinkMetric: p.LinkMetric,
			Dtsn:       p.Dtsn,
			Role:       p.Role,
		}
		if dag := n.Repo.Dag(p.Dag); dag != nil {
			ps.Dag = dag.Id
		}
		ns.Parents = append(ns.Parents, ps)
	}
	return ns
}

// CurrentDag returns the active DAG of the instance, if the node has one.
func (ns NodeSnapshot) CurrentDag(id state.InstanceId) (DagSnapshot, bool) {
	for _, inst := range ns.Instances {
		if inst.Id != id {
			continue
		}
		for _, dag := range inst.Dags {
			if dag.Current {
				return dag, true
			}
		}
	}
	return DagSnapshot{}, false
}

func newTable(w io.Writer, header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetAutoWrapText(false)
	table.SetBorder(false)
	table.SetHeaderLine(false)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeader(header)
	return table
}

// WriteSnapshot prints a human readable dump of ns.
func WriteSnapshot(w io.Writer, ns NodeSnapshot) {
	fmt.Fprintf(w, "node %s (%s)\n", ns.Id, ns.LinkAddr)

	dags := newTable(w, "INSTANCE", "DAG", "VERSION", "RANK", "MIN RANK", "JOINED", "PARENT", "PREFIX")
	for _, inst := range ns.Instances {
		for _, dag := range inst.Dags {
			parent := "-"
			if dag.HasPreferred {
				parent = dag.Preferred.String()
			}
			name := dag.Id.String()
			if dag.Current {
				name += "*"
			}
			prefix := "-"
			if dag.Prefix.IsValid() {
				prefix = dag.Prefix.String()
			}
			dags.Append([]string{
				fmt.Sprint(inst.Id), name, fmt.Sprint(dag.Version), dag.Rank.String(),
				dag.MinRank.String(), fmt.Sprint(dag.Joined), parent, prefix,
			})
		}
	}
	dags.Render()

	if len(ns.Parents) != 0 {
		fmt.Fprintln(w)
		parents := newTable(w, "NEIGHBOUR", "DAG", "RANK", "LINK METRIC", "ROLE")
		for _, p := range ns.Parents {
			parents.Append([]string{
				p.Addr.String(), p.Dag.String(), p.Rank.String(), fmt.Sprint(p.LinkMetric), p.Role.String(),
			})
		}
		parents.Render()
	}

	if len(ns.Routes) != 0 || len(ns.DefaultRoutes) != 0 {
		fmt.Fprintln(w)
		routes := newTable(w, "DESTINATION", "NEXT HOP")
		for _, nh := range ns.DefaultRoutes {
			routes.Append([]string{"default", nh.String()})
		}
		for _, r := range ns.Routes {
			routes.Append([]string{r.Prefix.String(), r.Nexthop.String()})
		}
		routes.Render()
	}

	fmt.Fprintf(w, "\nlocal repairs: %d, global repairs: %d, parent switches: %d, overflows: %d\n",
		ns.Stats.LocalRepairs, ns.Stats.GlobalRepairs, ns.Stats.ParentSwitches, ns.Stats.MemOverflows)
}
