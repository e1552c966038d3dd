package state

import (
	"fmt"
	"regexp"
	"slices"
)

var namePattern, _ = regexp.Compile("^[0-9a-z._-]+$")

func NameValidator(s string) error {
	if !namePattern.MatchString(s) {
		return fmt.Errorf("%s is not a valid name, must match pattern %s", s, namePattern.String())
	}
	if len(s) > 100 {
		return fmt.Errorf("len(\"%s\") = %d > 100 is too long", s, len(s))
	}
	return nil
}

func RootConfigValidator(root *RootCfg, supported func(ocp uint16) bool) error {
	if !root.DagId.Is6() {
		return fmt.Errorf("dag id %s is not an IPv6 address", root.DagId)
	}
	if root.Prefix.IsValid() && !root.Prefix.Addr().Is6() {
		return fmt.Errorf("prefix %s is not an IPv6 prefix", root.Prefix)
	}
	if supported != nil && !supported(root.Objective()) {
		return fmt.Errorf("objective code point %d is not supported", root.Objective())
	}
	return nil
}

// TrickleValidator checks that the largest advertisement interval, 2^(imin+doublings) ms,
// stays within MaxDioIntervalExp.
func TrickleValidator(imin, doublings uint8) error {
	if int(imin)+int(doublings) > MaxDioIntervalExp {
		return fmt.Errorf("dio interval min %d + doublings %d exceeds %d", imin, doublings, MaxDioIntervalExp)
	}
	return nil
}

func ScenarioValidator(cfg *ScenarioCfg, supported func(ocp uint16) bool) error {
	params := DefaultRootParams()
	cfg.Timing.Apply(&params)
	if err := TrickleValidator(params.DioIntMin, params.DioIntDoublings); err != nil {
		return fmt.Errorf("timing: %w", err)
	}
	addrs := make([]LinkAddr, 0, len(cfg.Nodes))
	for i, node := range cfg.Nodes {
		err := NameValidator(string(node.Id))
		if err != nil {
			return err
		}
		if cfg.IndexOf(node.Id) != i {
			return fmt.Errorf("duplicate node: %s", node.Id)
		}
		if slices.Contains(addrs, node.LinkAddr) {
			return fmt.Errorf("node %s reuses link address %s", node.Id, node.LinkAddr)
		}
		addrs = append(addrs, node.LinkAddr)
		if node.Root != nil {
			if err := RootConfigValidator(node.Root, supported); err != nil {
				return fmt.Errorf("node %s: %w", node.Id, err)
			}
		}
	}
	nodeRel := make([]Pair[NodeId, NodeId], 0)
	for _, link := range cfg.Links {
		edge := Pair[NodeId, NodeId]{link.From, link.To}
		if slices.Contains(nodeRel, edge) {
			return fmt.Errorf("duplicate link found: %s, %s", edge.V1, edge.V2)
		}
		if link.From == link.To {
			return fmt.Errorf("link from %s to itself", link.From)
		}
		for _, id := range []NodeId{link.From, link.To} {
			if cfg.IndexOf(id) == -1 {
				return fmt.Errorf("node %s not defined", id)
			}
		}
		if link.Etx < 1 {
			return fmt.Errorf("link %s, %s has etx %v < 1", link.From, link.To, link.Etx)
		}
		if link.Loss < 0 || link.Loss >= 1 {
			return fmt.Errorf("link %s, %s has loss %v outside [0, 1)", link.From, link.To, link.Loss)
		}
		nodeRel = append(nodeRel, edge)
		nodeRel = append(nodeRel, Pair[NodeId, NodeId]{edge.V2, edge.V1})
	}
	return nil
}
