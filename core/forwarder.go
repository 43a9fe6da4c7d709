package core

import (
	"fmt"

	"github.com/encodeous/wireline/link"
	"github.com/encodeous/wireline/perf"
	"github.com/encodeous/wireline/protocol"
	"github.com/encodeous/wireline/state"
)

// Forwarder moves DATA packets hop by hop and hands local ones to the upper layers.
type Forwarder struct {
	*state.State
}

func (f *Forwarder) Init(s *state.State) error {
	f.State = s
	return nil
}

func (f *Forwarder) Cleanup(s *state.State) error {
	return nil
}

func (f *Forwarder) HandleData(from state.LinkId, d protocol.Data) {
	if d.Dst == f.Id {
		f.deliver(d)
		return
	}
	d.TTL--
	if d.TTL <= 0 {
		f.Log.Debug("ttl expired", "src", d.Src, "dst", d.Dst, "link", from)
		if protocol.IsEchoRequest(d.Payload) {
			f.timeExceeded(d)
		}
		return
	}
	route, ok := f.Routes.Resolve(d.Dst)
	if !ok {
		f.Log.Debug("no route, dropping packet", "src", d.Src, "dst", d.Dst)
		perf.DroppedLines.Add(1)
		return
	}
	if Get[*LinkMgr](f.State).Write(f.State, route.NextHopLink, d.Encode()) {
		perf.ForwardedPackets.Add(1)
	}
}

func (f *Forwarder) timeExceeded(d protocol.Data) {
	req, err := protocol.ParseEcho(d.Payload)
	if err != nil {
		f.Log.Debug("malformed echo request", "src", d.Src, "error", err)
		return
	}
	reply := protocol.Echo{Kind: protocol.TimeExceeded, Seq: req.Seq, Router: f.Id}
	if err := f.Send(d.Src, reply.Encode(), state.DefaultTTL); err != nil {
		f.Log.Debug("failed to send time exceeded", "dst", d.Src, "error", err)
	}
}

func (f *Forwarder) deliver(d protocol.Data) {
	switch {
	case protocol.IsSegment(d.Payload):
		Get[*Transport](f.State).HandleSegment(d.Src, d.Dst, d.Payload)
	case protocol.IsEcho(d.Payload):
		Get[*Diagnostics](f.State).HandleEcho(d.Src, d.Payload)
	default:
		f.Log.Debug("unknown payload", "src", d.Src)
	}
}

// Send originates a DATA packet. A packet addressed to this node is delivered
// locally without touching any link.
func (f *Forwarder) Send(dst state.NodeId, payload string, ttl int) error {
	d := protocol.Data{Src: f.Id, Dst: dst, TTL: ttl, Payload: payload}
	if dst == f.Id {
		f.deliver(d)
		return nil
	}
	route, ok := f.Routes.Resolve(dst)
	if !ok {
		return fmt.Errorf("%w: %s", ErrRouteUnreachable, dst)
	}
	if !Get[*LinkMgr](f.State).Write(f.State, route.NextHopLink, d.Encode()) {
		return fmt.Errorf("%w: %s", link.ErrLinkUnavailable, route.NextHopLink)
	}
	return nil
}
