//go:build e2e

package e2e

import (
	"testing"

	"github.com/encodeous/wireline/state"
	"github.com/stretchr/testify/assert"
)

func TestNodeLossPoisonsRoutes(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping e2e test in short mode")
	}
	t.Parallel()

	h := NewHarness(t)
	h.AddNode("a")
	h.AddNode("b")
	h.AddNode("c")
	h.AddLink("a", "b")
	h.AddLink("b", "c")
	h.StartNodes()
	h.WaitRoute("a", "c", "2")

	h.StopNode("c")
	h.WaitForLog("b", "link down")
	h.WaitRoute("b", "c", state.FormatCost(state.INF))
	h.WaitRoute("a", "c", state.FormatCost(state.INF))

	out := h.Ctl("a", "send c anyone")
	assert.Contains(t, out, "route unreachable")
}
