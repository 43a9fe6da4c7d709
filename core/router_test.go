package core

import (
	"testing"

	"github.com/encodeous/wireline/state"
	"github.com/stretchr/testify/assert"
)

func TestHello_InstallsDirectRoute(t *testing.T) {
	h := NewRouterHarness("A")
	assert.True(t, h.Hello("l1", "B"))
	h.GetActions().AssertContains(t, "RouteAdded", state.NodeId("B"), 1)
	h.AssertTable(t, selfRoute("A"), route("B", 1, "B", "l1"))

	// a second hello changes nothing
	assert.False(t, h.Hello("l1", "B"))
	assert.Empty(t, h.GetActions())
}

func TestHello_ImprovesIndirectRoute(t *testing.T) {
	h := NewRouterHarness("A")
	h.Hello("l1", "B")
	h.Vector("l1", "B", map[state.NodeId]int{"B": 0, "C": 1})
	h.AssertTable(t, selfRoute("A"), route("B", 1, "B", "l1"), route("C", 2, "B", "l1"))
	h.GetActions()

	// C is plugged in directly
	assert.True(t, h.Hello("l2", "C"))
	h.GetActions().AssertContains(t, "RouteImproved", state.NodeId("C"), 1, state.NodeId("C"), state.LinkId("l2"))
	h.AssertTable(t, selfRoute("A"), route("B", 1, "B", "l1"), route("C", 1, "C", "l2"))
}

func TestHello_IgnoresSelf(t *testing.T) {
	h := NewRouterHarness("A")
	assert.False(t, h.Hello("l1", "A"))
	h.AssertTable(t, selfRoute("A"))
}

func TestVector_SelfRouteIsImmutable(t *testing.T) {
	h := NewRouterHarness("A")
	h.Hello("l1", "B")
	assert.False(t, h.Vector("l1", "B", map[state.NodeId]int{"A": 0, "B": 0}))
	h.Vector("l1", "B", map[state.NodeId]int{"A": state.INF, "B": 0})
	h.AssertTable(t, selfRoute("A"), route("B", 1, "B", "l1"))
}

func TestVector_BellmanFord(t *testing.T) {
	// A -l1- B -- C -- D
	h := NewRouterHarness("A")
	h.Hello("l1", "B")
	h.GetActions()

	h.Vector("l1", "B", map[state.NodeId]int{"A": 1, "B": 0, "C": 1, "D": 2})
	a := h.GetActions()
	assert.Equal(t, "RouteAdded C 2 B l1\nRouteAdded D 3 B l1", a.String())
	h.AssertTable(t,
		selfRoute("A"),
		route("B", 1, "B", "l1"),
		route("C", 2, "B", "l1"),
		route("D", 3, "B", "l1"),
	)
}

func TestVector_InfiniteAdvertisementNotInstalled(t *testing.T) {
	h := NewRouterHarness("A")
	h.Hello("l1", "B")
	h.Vector("l1", "B", map[state.NodeId]int{"B": 0, "X": state.INF, "Y": 998})
	h.AssertTable(t, selfRoute("A"), route("B", 1, "B", "l1"))
}

func TestVector_CurrentNextHopIsAuthoritative(t *testing.T) {
	h := NewRouterHarness("A")
	h.Hello("l1", "B")
	h.Vector("l1", "B", map[state.NodeId]int{"B": 0, "C": 1})
	h.GetActions()

	// B's path to C got worse, we follow it
	assert.True(t, h.Vector("l1", "B", map[state.NodeId]int{"B": 0, "C": 4}))
	h.GetActions().AssertContains(t, "RouteUpdated", state.NodeId("C"), 5)

	// and retract when B can no longer reach C
	assert.True(t, h.Vector("l1", "B", map[state.NodeId]int{"B": 0, "C": state.INF}))
	h.GetActions().AssertContains(t, "RouteRetracted", state.NodeId("C"), state.INF)
	h.AssertTable(t, selfRoute("A"), route("B", 1, "B", "l1"), route("C", state.INF, "B", "l1"))
}

func TestVector_SwitchesToCheaperNeighbour(t *testing.T) {
	h := NewRouterHarness("A")
	h.Hello("l1", "B")
	h.Hello("l2", "C")
	h.Vector("l1", "B", map[state.NodeId]int{"B": 0, "D": 3})
	h.GetActions()

	h.Vector("l2", "C", map[state.NodeId]int{"C": 0, "D": 1})
	h.GetActions().AssertContains(t, "RouteImproved", state.NodeId("D"), 2, state.NodeId("C"), state.LinkId("l2"))

	// an equal cost offer does not cause a switch
	assert.False(t, h.Vector("l1", "B", map[state.NodeId]int{"B": 0, "D": 1}))
}

func TestVector_ImplicitWithdrawal(t *testing.T) {
	h := NewRouterHarness("A")
	h.Hello("l1", "B")
	h.Hello("l2", "C")
	h.Vector("l1", "B", map[state.NodeId]int{"B": 0, "D": 1})
	h.Vector("l2", "C", map[state.NodeId]int{"C": 0, "E": 1})
	h.GetActions()

	// B stops advertising D, C's routes are untouched
	assert.True(t, h.Vector("l1", "B", map[state.NodeId]int{"B": 0}))
	a := h.GetActions()
	a.AssertContains(t, "RouteWithdrawn", state.NodeId("D"), state.INF)
	a.AssertNotContains(t, "RouteWithdrawn", state.NodeId("E"))
	h.AssertTable(t,
		selfRoute("A"),
		route("B", 1, "B", "l1"),
		route("C", 1, "C", "l2"),
		route("D", state.INF, "B", "l1"),
		route("E", 2, "C", "l2"),
	)
}

func TestVector_FromSelfIgnored(t *testing.T) {
	h := NewRouterHarness("A")
	assert.False(t, h.Vector("l1", "A", map[state.NodeId]int{"Z": 0}))
}

func TestPoisonLinks(t *testing.T) {
	h := NewRouterHarness("A")
	h.Hello("l1", "B")
	h.Hello("l2", "C")
	h.Vector("l1", "B", map[state.NodeId]int{"B": 0, "D": 1})
	h.GetActions()

	assert.True(t, h.Poison("l1"))
	a := h.GetActions()
	a.AssertContains(t, "RoutePoisoned", state.NodeId("B"), state.INF)
	a.AssertContains(t, "RoutePoisoned", state.NodeId("D"), state.INF)
	h.AssertTable(t,
		selfRoute("A"),
		route("B", state.INF, "B", "l1"),
		route("C", 1, "C", "l2"),
		route("D", state.INF, "B", "l1"),
	)

	// poisoning again is a no-op
	assert.False(t, h.Poison("l1"))

	// the neighbour comes back
	assert.True(t, h.Hello("l1", "B"))
	h.GetActions().AssertContains(t, "RouteImproved", state.NodeId("B"), 1)
}

func TestBuildVector_PoisonReverse(t *testing.T) {
	routes := []state.RouteEntry{
		selfRoute("A"),
		route("B", 1, "B", "l1"),
		route("C", 1, "C", "l2"),
		route("D", 2, "B", "l1"),
		route("E", state.INF, "C", "l2"),
	}
	assert.Equal(t, map[state.NodeId]int{
		"A": 0,
		"B": state.INF,
		"C": 1,
		"D": state.INF,
		"E": state.INF,
	}, BuildVector(routes, "l1"))
	assert.Equal(t, map[state.NodeId]int{
		"A": 0,
		"B": 1,
		"C": state.INF,
		"D": 2,
		"E": state.INF,
	}, BuildVector(routes, "l2"))
}

func TestAddCost(t *testing.T) {
	assert.Equal(t, 3, AddCost(1, 2))
	assert.Equal(t, state.INF, AddCost(1, state.INF))
	assert.Equal(t, state.INF, AddCost(500, 600))
}
