package state

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
)

type NodeId string

// LinkId names a link by the address it was opened with, e.g. /dev/ttyUSB0 or tcp://10.0.0.2:9000
type LinkId string

type RouteEntry struct {
	Dest        NodeId
	Cost        int
	NextHopLink LinkId
	NextHop     NodeId
}

func (r RouteEntry) Usable() bool {
	return r.Cost < INF
}

func (r RouteEntry) String() string {
	return fmt.Sprintf("(dest: %s, cost: %s, via: %s on %s)", r.Dest, FormatCost(r.Cost), r.NextHop, r.NextHopLink)
}

func FormatCost(c int) string {
	if c >= INF {
		return "∞"
	}
	return fmt.Sprint(c)
}

// RoutingTable holds exactly one entry per destination. The entry for the
// local node is installed on creation and can never be changed.
type RoutingTable struct {
	mu     sync.RWMutex
	self   NodeId
	routes map[NodeId]RouteEntry
}

func NewRoutingTable(self NodeId) *RoutingTable {
	return &RoutingTable{
		self: self,
		routes: map[NodeId]RouteEntry{
			self: {Dest: self, Cost: 0, NextHopLink: LocalLink, NextHop: self},
		},
	}
}

func (t *RoutingTable) Self() NodeId {
	return t.self
}

func (t *RoutingTable) Lookup(dest NodeId) (RouteEntry, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	r, ok := t.routes[dest]
	return r, ok
}

// Resolve returns the route to dest only if it is usable.
func (t *RoutingTable) Resolve(dest NodeId) (RouteEntry, bool) {
	r, ok := t.Lookup(dest)
	if !ok || !r.Usable() {
		return RouteEntry{}, false
	}
	return r, true
}

// Snapshot returns a copy of the table sorted by destination.
func (t *RoutingTable) Snapshot() []RouteEntry {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return sortedRoutes(t.routes)
}

// Update runs fn with exclusive access to the table and reports whether any entry changed.
func (t *RoutingTable) Update(fn func(tx *RouteTx)) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	tx := &RouteTx{self: t.self, routes: t.routes}
	fn(tx)
	return tx.changed
}

func (t *RoutingTable) String() string {
	sb := strings.Builder{}
	for _, r := range t.Snapshot() {
		sb.WriteString(r.String())
		sb.WriteString("\n")
	}
	return sb.String()
}

// RouteTx is a view of the table that is only valid inside RoutingTable.Update.
type RouteTx struct {
	self    NodeId
	routes  map[NodeId]RouteEntry
	changed bool
}

func (tx *RouteTx) Self() NodeId {
	return tx.self
}

func (tx *RouteTx) Get(dest NodeId) (RouteEntry, bool) {
	r, ok := tx.routes[dest]
	return r, ok
}

// Entries returns the entries sorted by destination.
func (tx *RouteTx) Entries() []RouteEntry {
	return sortedRoutes(tx.routes)
}

// Set stores e, clamping its cost to INF. Entries for the local node are
// ignored. Returns true if the table changed.
func (tx *RouteTx) Set(e RouteEntry) bool {
	if e.Dest == tx.self {
		return false
	}
	e.Cost = min(max(e.Cost, 0), INF)
	if cur, ok := tx.routes[e.Dest]; ok && cur == e {
		return false
	}
	tx.routes[e.Dest] = e
	tx.changed = true
	return true
}

func sortedRoutes(m map[NodeId]RouteEntry) []RouteEntry {
	return slices.SortedFunc(maps.Values(m), func(a, b RouteEntry) int {
		return strings.Compare(string(a.Dest), string(b.Dest))
	})
}
