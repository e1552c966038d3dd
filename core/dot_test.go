package core

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToDOT(t *testing.T) {
	snapshots := []NodeSnapshot{
		{
			Id:       "root",
			LinkAddr: linkAddr(1),
			Instances: []InstanceSnapshot{{Id: 1, Dags: []DagSnapshot{
				{Id: testDag, Rank: 256, Joined: true, Current: true},
			}}},
		},
		{
			Id:       "leaf",
			LinkAddr: linkAddr(2),
			Instances: []InstanceSnapshot{{Id: 1, Dags: []DagSnapshot{
				{Id: testDag, Rank: 512, Joined: true, Current: true, Preferred: linkAddr(1), HasPreferred: true},
			}}},
		},
		{
			Id:       "orphan",
			LinkAddr: linkAddr(3),
			Instances: []InstanceSnapshot{{Id: 1, Dags: []DagSnapshot{
				{Id: testDag, Rank: 768, Joined: true, Current: true, Preferred: linkAddr(9), HasPreferred: true},
			}}},
		},
		{Id: "detached", LinkAddr: linkAddr(4)},
	}
	dot := ToDOT(snapshots)

	assert.True(t, strings.HasPrefix(dot, "digraph dodag {\n"))
	assert.True(t, strings.HasSuffix(dot, "}\n"))
	assert.Contains(t, dot, `"root" [label="root\n1: rank 256", fillcolor=lightblue];`)
	assert.Contains(t, dot, `"leaf" -> "root" [label="1"];`)
	assert.Contains(t, dot, `"orphan" -> "`+linkAddr(9).String()+`" [label="1"];`)
	assert.Contains(t, dot, `"detached" [label="detached", style="rounded,dashed"];`)
	assert.NotContains(t, dot, `"root" ->`)
	assert.Equal(t, 2, strings.Count(dot, "->"))
}
