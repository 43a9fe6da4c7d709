package core

import (
	"time"

	"github.com/encodeous/wireline/protocol"
	"github.com/encodeous/wireline/state"
)

// NeighbourTracker handles HELLO beacons and expires silent neighbours.
type NeighbourTracker struct {
	*state.State
}

func (n *NeighbourTracker) Init(s *state.State) error {
	n.State = s
	return nil
}

func (n *NeighbourTracker) Cleanup(s *state.State) error {
	return nil
}

func (n *NeighbourTracker) HandleHello(link state.LinkId, h protocol.Hello) {
	if h.Sender == n.Id {
		n.Log.Warn("heard our own hello, link is looped back", "link", link)
		return
	}
	prev, existed := n.Neighbours.Upsert(link, h.Sender, time.Now())
	if !existed || prev.Id != h.Sender {
		n.Log.Info("neighbour discovered", "neighbour", h.Sender, "link", link)
	}
	dv := Get[*DistanceVector](n.State)
	changed := n.Routes.Update(func(tx *state.RouteTx) {
		ApplyHello(tx, dv, link, h.Sender)
	})
	if changed {
		dv.RoutesChanged()
	}
}

func helloTask(s *state.State) error {
	hello := protocol.Hello{Sender: s.Id}.Encode()
	Get[*LinkMgr](s).Broadcast(func(state.LinkId) string {
		return hello
	})
	return nil
}

func neighbourGc(s *state.State) error {
	// the neighbour lock is released before the routing table is touched
	evicted := s.Neighbours.Evict(time.Now(), state.NeighbourTimeout)
	if len(evicted) != 0 {
		links := make([]state.LinkId, 0, len(evicted))
		for _, rec := range evicted {
			s.Log.Warn("neighbour timed out", "neighbour", rec.Id, "link", rec.Link, "last_seen", rec.LastSeen.Format(time.TimeOnly))
			links = append(links, rec.Link)
		}
		dv := Get[*DistanceVector](s)
		changed := s.Routes.Update(func(tx *state.RouteTx) {
			PoisonLinks(tx, dv, links)
		})
		if changed {
			dv.RoutesChanged()
		}
	}

	Get[*Diagnostics](s).pending.DeleteExpired()
	return nil
}
