package core

import (
	"fmt"

	"github.com/encodeous/wireline/protocol"
	"github.com/encodeous/wireline/state"
)

// DistanceVector owns route computation and vector advertisement.
type DistanceVector struct {
	*state.State
}

func (r *DistanceVector) Init(s *state.State) error {
	s.Log.Debug("init router")
	r.State = s
	return nil
}

func (r *DistanceVector) Cleanup(s *state.State) error {
	return nil
}

func (r *DistanceVector) RouteChanged(event RouterEvent, prev, cur state.RouteEntry) {
	msg := fmt.Sprintf("%s %s", event.String(), cur.Dest)
	args := []any{"cost", state.FormatCost(cur.Cost), "via", cur.NextHop, "link", cur.NextHopLink}
	if prev.Dest != "" {
		args = append(args, "prev_cost", state.FormatCost(prev.Cost), "prev_via", prev.NextHop)
	}
	if state.DBG_log_router {
		r.Log.Info(msg, args...)
	} else {
		r.Log.Debug(msg, args...)
	}
}

// HandleVector processes a DV packet received on link.
func (r *DistanceVector) HandleVector(link state.LinkId, v protocol.Vector) {
	if v.Sender == r.Id {
		return
	}
	changed := r.Routes.Update(func(tx *state.RouteTx) {
		ApplyVector(tx, r, link, v.Sender, v.Costs)
	})
	if changed {
		r.RoutesChanged()
	}
}

// RoutesChanged publishes the new table and sends a triggered update.
func (r *DistanceVector) RoutesChanged() {
	snap := r.Routes.Snapshot()
	Get[*NodeTrace](r.State).Publish(RouteSnapshot{Node: r.Id, Routes: snap})
	r.broadcast(snap)
}

// Advertise sends the current vector on every link.
func (r *DistanceVector) Advertise() {
	r.broadcast(r.Routes.Snapshot())
}

func (r *DistanceVector) broadcast(snap []state.RouteEntry) {
	Get[*LinkMgr](r.State).Broadcast(func(link state.LinkId) string {
		return protocol.Vector{Sender: r.Id, Costs: BuildVector(snap, link)}.Encode()
	})
}

func routerUpdateTask(s *state.State) error {
	Get[*DistanceVector](s).Advertise()
	return nil
}
