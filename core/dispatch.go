package core

import (
	"github.com/encodeous/wireline/perf"
	"github.com/encodeous/wireline/protocol"
	"github.com/encodeous/wireline/state"
)

// handleLine demultiplexes a line received on link to the module that owns its packet type.
func handleLine(s *state.State, from state.LinkId, line string) {
	pkt, err := protocol.Parse(line)
	if err != nil {
		perf.DroppedLines.Add(1)
		s.Log.Debug("dropped line", "link", from, "error", err)
		return
	}
	if state.DBG_log_packets {
		s.Log.Info("recv", "link", from, "line", line)
	}
	switch p := pkt.(type) {
	case protocol.Hello:
		Get[*NeighbourTracker](s).HandleHello(from, p)
	case protocol.Vector:
		Get[*DistanceVector](s).HandleVector(from, p)
	case protocol.Data:
		Get[*Forwarder](s).HandleData(from, p)
	}
}
