package core

import (
	"fmt"
	"slices"
	"strings"
	"testing"

	"github.com/encodeous/wireline/state"
	"github.com/google/go-cmp/cmp"
)

type HarnessEvent struct {
	Message string
	Args    []any
}

func MakeEvent(msg string, args ...any) HarnessEvent {
	return HarnessEvent{
		Message: msg,
		Args:    args,
	}
}

// RouterHarness records the side effects of the routing algorithm.
type RouterHarness struct {
	actions []HarnessEvent
	table   *state.RoutingTable
}

func NewRouterHarness(self state.NodeId) *RouterHarness {
	return &RouterHarness{table: state.NewRoutingTable(self)}
}

func (h *RouterHarness) RouteChanged(event RouterEvent, prev, cur state.RouteEntry) {
	h.actions = append(h.actions, MakeEvent(event.String(), cur.Dest, cur.Cost, cur.NextHop, cur.NextHopLink))
}

func (h *RouterHarness) Hello(link state.LinkId, neigh state.NodeId) bool {
	return h.table.Update(func(tx *state.RouteTx) {
		ApplyHello(tx, h, link, neigh)
	})
}

func (h *RouterHarness) Vector(link state.LinkId, sender state.NodeId, costs map[state.NodeId]int) bool {
	return h.table.Update(func(tx *state.RouteTx) {
		ApplyVector(tx, h, link, sender, costs)
	})
}

func (h *RouterHarness) Poison(links ...state.LinkId) bool {
	return h.table.Update(func(tx *state.RouteTx) {
		PoisonLinks(tx, h, links)
	})
}

type HarnessEvents []HarnessEvent

func (e HarnessEvents) String() string {
	out := make([]string, 0)
	for _, action := range e {
		cur := action.Message
		for _, arg := range action.Args {
			cur += " " + fmt.Sprint(arg)
		}
		out = append(out, cur)
	}
	slices.Sort(out)
	return strings.Join(out, "\n")
}

func (h *RouterHarness) GetActions() HarnessEvents {
	x := h.actions
	h.actions = make([]HarnessEvent, 0)
	return x
}

func (e HarnessEvents) contains(msg string, args ...any) bool {
	for _, event := range e {
		if event.Message != msg || len(event.Args) < len(args) {
			continue
		}
		if cmp.Equal(event.Args[:len(args)], args) {
			return true
		}
	}
	return false
}

func (e HarnessEvents) AssertContains(t *testing.T, msg string, args ...any) {
	t.Helper()
	if e.contains(msg, args...) {
		return
	}
	t.Fatal("Expected event not found: ", msg, " with args: ", args, " in ", e)
}

func (e HarnessEvents) AssertNotContains(t *testing.T, msg string, args ...any) {
	t.Helper()
	if e.contains(msg, args...) {
		t.Fatal("Unexpected event found: ", msg, " with args: ", args, " in ", e)
	}
}

func (h *RouterHarness) AssertTable(t *testing.T, expected ...state.RouteEntry) {
	t.Helper()
	if diff := cmp.Diff(expected, h.table.Snapshot()); diff != "" {
		t.Fatalf("route table mismatch (-want +got):\n%s", diff)
	}
}

func route(dest state.NodeId, cost int, via state.NodeId, link state.LinkId) state.RouteEntry {
	return state.RouteEntry{Dest: dest, Cost: cost, NextHop: via, NextHopLink: link}
}

func selfRoute(id state.NodeId) state.RouteEntry {
	return route(id, 0, id, state.LocalLink)
}
