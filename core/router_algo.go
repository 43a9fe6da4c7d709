package core

import (
	"slices"
	"strings"

	"github.com/encodeous/wireline/state"
)

type RouterEvent int

// trace events

const (
	RouteAdded RouterEvent = iota
	RouteImproved
	RouteUpdated
	RouteRetracted
	RouteWithdrawn
	RoutePoisoned
)

func (e RouterEvent) String() string {
	switch e {
	case RouteAdded:
		return "RouteAdded"
	case RouteImproved:
		return "RouteImproved"
	case RouteUpdated:
		return "RouteUpdated"
	case RouteRetracted:
		return "RouteRetracted"
	case RouteWithdrawn:
		return "RouteWithdrawn"
	case RoutePoisoned:
		return "RoutePoisoned"
	}
	return "RouterEvent(?)"
}

// Router receives the side effects of the routing algorithm
type Router interface {
	RouteChanged(event RouterEvent, prev, cur state.RouteEntry)
}

func setRoute(tx *state.RouteTx, r Router, event RouterEvent, e state.RouteEntry) {
	prev, _ := tx.Get(e.Dest)
	if tx.Set(e) {
		cur, _ := tx.Get(e.Dest)
		r.RouteChanged(event, prev, cur)
	}
}

// ApplyHello installs a direct route to a neighbour heard on link, unless a
// route of cost 1 or better already exists.
func ApplyHello(tx *state.RouteTx, r Router, link state.LinkId, neigh state.NodeId) {
	if neigh == tx.Self() {
		return
	}
	cur, ok := tx.Get(neigh)
	if ok && cur.Cost <= 1 {
		return
	}
	event := RouteAdded
	if ok {
		event = RouteImproved
	}
	setRoute(tx, r, event, state.RouteEntry{Dest: neigh, Cost: 1, NextHopLink: link, NextHop: neigh})
}

// ApplyVector merges the vector advertised by sender on link (Bellman-Ford, unit link cost).
// Routes through sender that it no longer advertises are withdrawn.
func ApplyVector(tx *state.RouteTx, r Router, link state.LinkId, sender state.NodeId, costs map[state.NodeId]int) {
	if sender == tx.Self() {
		return
	}
	viaSender := func(e state.RouteEntry) bool {
		return e.NextHop == sender && e.NextHopLink == link
	}

	dests := make([]state.NodeId, 0, len(costs))
	for d := range costs {
		dests = append(dests, d)
	}
	slices.SortFunc(dests, func(a, b state.NodeId) int {
		return strings.Compare(string(a), string(b))
	})

	for _, d := range dests {
		if d == tx.Self() {
			continue
		}
		newCost := AddCost(1, costs[d])
		next := state.RouteEntry{Dest: d, Cost: newCost, NextHopLink: link, NextHop: sender}
		cur, ok := tx.Get(d)
		switch {
		case !ok:
			if newCost < state.INF {
				setRoute(tx, r, RouteAdded, next)
			}
		case viaSender(cur):
			// the current next hop is authoritative, even when it got worse
			event := RouteUpdated
			if newCost >= state.INF {
				event = RouteRetracted
			}
			setRoute(tx, r, event, next)
		case newCost < cur.Cost:
			setRoute(tx, r, RouteImproved, next)
		}
	}

	for _, e := range tx.Entries() {
		if _, advertised := costs[e.Dest]; advertised || !viaSender(e) || !e.Usable() {
			continue
		}
		e.Cost = state.INF
		setRoute(tx, r, RouteWithdrawn, e)
	}
}

// PoisonLinks sets every route whose next hop is reached over one of links to state.INF.
func PoisonLinks(tx *state.RouteTx, r Router, links []state.LinkId) {
	for _, e := range tx.Entries() {
		if e.Dest == tx.Self() || !e.Usable() || !slices.Contains(links, e.NextHopLink) {
			continue
		}
		e.Cost = state.INF
		setRoute(tx, r, RoutePoisoned, e)
	}
}

// BuildVector computes the vector advertised on link out. Routes learned over
// out are advertised back as state.INF (poison reverse).
func BuildVector(routes []state.RouteEntry, out state.LinkId) map[state.NodeId]int {
	vec := make(map[state.NodeId]int, len(routes))
	for _, e := range routes {
		cost := e.Cost
		if e.NextHopLink == out {
			cost = state.INF
		}
		vec[e.Dest] = cost
	}
	return vec
}
