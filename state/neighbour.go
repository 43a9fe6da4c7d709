package state

import (
	"slices"
	"strings"
	"sync"
	"time"
)

type NeighbourRecord struct {
	Link     LinkId
	Id       NodeId
	LastSeen time.Time
}

// NeighbourTable tracks the node heard on each link, at most one per link.
type NeighbourTable struct {
	mu     sync.Mutex
	byLink map[LinkId]NeighbourRecord
}

func NewNeighbourTable() *NeighbourTable {
	return &NeighbourTable{byLink: make(map[LinkId]NeighbourRecord)}
}

// Upsert records that id was heard on link at now, returning the previous record if any.
func (t *NeighbourTable) Upsert(link LinkId, id NodeId, now time.Time) (NeighbourRecord, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	prev, ok := t.byLink[link]
	t.byLink[link] = NeighbourRecord{Link: link, Id: id, LastSeen: now}
	return prev, ok
}

// Evict removes and returns every record not refreshed within timeout.
func (t *NeighbourTable) Evict(now time.Time, timeout time.Duration) []NeighbourRecord {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []NeighbourRecord
	for link, rec := range t.byLink {
		if now.Sub(rec.LastSeen) > timeout {
			out = append(out, rec)
			delete(t.byLink, link)
		}
	}
	sortNeighbours(out)
	return out
}

func (t *NeighbourTable) Snapshot() []NeighbourRecord {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]NeighbourRecord, 0, len(t.byLink))
	for _, rec := range t.byLink {
		out = append(out, rec)
	}
	sortNeighbours(out)
	return out
}

func sortNeighbours(recs []NeighbourRecord) {
	slices.SortFunc(recs, func(a, b NeighbourRecord) int {
		return strings.Compare(string(a.Link), string(b.Link))
	})
}
