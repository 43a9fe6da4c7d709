//go:build integration

package integration

import (
	"strings"
	"testing"
	"time"

	"github.com/encodeous/wireline/core"
	"github.com/encodeous/wireline/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConvergenceLine(t *testing.T) {
	vh := &VirtualHarness{}
	vh.NewNode("a")
	vh.NewNode("b")
	vh.NewNode("c")
	vh.AddLink("a", "b")
	vh.AddLink("b", "c")
	vh.Start()
	defer vh.Stop()

	r := vh.WaitRoute(t, "a", "c", 2)
	assert.Equal(t, state.NodeId("b"), r.NextHop)
	assert.Equal(t, linkName("b"), r.NextHopLink)
	r = vh.WaitRoute(t, "c", "a", 2)
	assert.Equal(t, state.NodeId("b"), r.NextHop)
	vh.WaitRoute(t, "b", "a", 1)
	vh.WaitRoute(t, "b", "c", 1)
}

func TestCostIsHopCount(t *testing.T) {
	vh := &VirtualHarness{}
	for _, id := range []state.NodeId{"a", "b", "c", "d", "e"} {
		vh.NewNode(id)
	}
	// a - b - c - d with a shortcut a - e - d
	vh.AddLink("a", "b")
	vh.AddLink("b", "c")
	vh.AddLink("c", "d")
	vh.AddLink("a", "e")
	vh.AddLink("e", "d")
	vh.Start()
	defer vh.Stop()

	r := vh.WaitRoute(t, "a", "d", 2)
	assert.Equal(t, state.NodeId("e"), r.NextHop)
	vh.WaitRoute(t, "b", "d", 2)
	vh.WaitRoute(t, "a", "c", 2)
}

func TestRerouteAfterLinkFailure(t *testing.T) {
	vh := &VirtualHarness{}
	vh.NewNode("a")
	vh.NewNode("b")
	vh.NewNode("c")
	vh.AddLink("a", "b")
	vh.AddLink("b", "c")
	direct := vh.AddLink("a", "c")
	vh.Start()
	defer vh.Stop()

	r := vh.WaitRoute(t, "a", "c", 1)
	assert.Equal(t, linkName("c"), r.NextHopLink)

	direct.Sever()
	r = vh.WaitRoute(t, "a", "c", 2)
	assert.Equal(t, state.NodeId("b"), r.NextHop)
	r = vh.WaitRoute(t, "c", "a", 2)
	assert.Equal(t, state.NodeId("b"), r.NextHop)

	out, err := vh.Exec("a", "send c detour")
	require.NoError(t, err)
	assert.Contains(t, out, "delivered to c")
}

func TestPartitionMakesNodeUnreachable(t *testing.T) {
	vh := &VirtualHarness{}
	vh.NewNode("a")
	vh.NewNode("b")
	cable := vh.AddLink("a", "b")
	vh.Start()
	defer vh.Stop()
	vh.WaitConverged(t)

	cable.Sever()
	vh.WaitRoute(t, "a", "b", state.INF)
	require.Eventually(t, func() bool {
		return len(vh.States["a"].Neighbours.Snapshot()) == 0
	}, 2*time.Second, 10*time.Millisecond)

	_, err := vh.Exec("a", "send b anyone there")
	assert.ErrorIs(t, err, core.ErrRouteUnreachable)
	_, err = vh.Exec("a", "ping b")
	assert.ErrorIs(t, err, core.ErrRouteUnreachable)
}

func TestTableCommand(t *testing.T) {
	vh := &VirtualHarness{}
	vh.NewNode("a")
	vh.NewNode("b")
	vh.NewNode("c")
	vh.AddLink("a", "b")
	vh.AddLink("b", "c")
	vh.Start()
	defer vh.Stop()
	vh.WaitRoute(t, "a", "c", 2)

	out, err := vh.Exec("a", "table")
	require.NoError(t, err)
	var rows [][]string
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		rows = append(rows, strings.Fields(line))
	}
	assert.Equal(t, [][]string{
		{"Target", "Cost", "NextHop", "Interface"},
		{"a", "0", "a", "LOCAL"},
		{"b", "1", "b", "tty-b"},
		{"c", "2", "b", "tty-b"},
	}, rows)
}
