package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/encodeous/wireline/perf"
	"github.com/encodeous/wireline/protocol"
	"github.com/encodeous/wireline/state"
	"github.com/jellydator/ttlcache/v3"
)

type probeReply struct {
	echo protocol.Echo
	from state.NodeId
	at   time.Time
	rtt  time.Duration // measured locally
}

// Diagnostics implements ping and traceroute over echo messages.
type Diagnostics struct {
	*state.State
	seq     atomic.Uint32
	pending *ttlcache.Cache[uint32, chan probeReply]
}

type PingStats struct {
	Target   state.NodeId
	Sent     int
	Received int
	Lost     int
	Min      time.Duration
	Max      time.Duration
	Avg      time.Duration
}

func (p PingStats) LossPercent() float64 {
	if p.Sent == 0 {
		return 0
	}
	return float64(p.Lost) * 100 / float64(p.Sent)
}

type TraceHop struct {
	TTL      int
	Router   state.NodeId
	RTT      time.Duration
	TimedOut bool
}

type TraceResult struct {
	Target  state.NodeId
	Hops    []TraceHop
	Reached bool
}

func (d *Diagnostics) Init(s *state.State) error {
	d.State = s
	d.pending = ttlcache.New[uint32, chan probeReply](
		ttlcache.WithTTL[uint32, chan probeReply](state.ProbeExpiry),
		ttlcache.WithDisableTouchOnHit[uint32, chan probeReply](),
	)
	return nil
}

func (d *Diagnostics) Cleanup(s *state.State) error {
	d.pending.DeleteAll()
	return nil
}

// probe sends one echo request and waits for the matching reply or time exceeded.
// ok is false when nothing arrived within timeout.
func (d *Diagnostics) probe(ctx context.Context, target state.NodeId, ttl int, timeout time.Duration) (probeReply, bool, error) {
	seq := d.seq.Add(1)
	ch := make(chan probeReply, 1)
	d.pending.Set(seq, ch, ttlcache.DefaultTTL)
	defer d.pending.Delete(seq)

	sentAt := time.Now()
	req := protocol.Echo{Kind: protocol.EchoRequest, Seq: seq, Sent: sentAt.UnixMicro()}
	if err := Get[*Forwarder](d.State).Send(target, req.Encode(), ttl); err != nil {
		return probeReply{}, false, err
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case r := <-ch:
		r.rtt = r.at.Sub(sentAt)
		return r, true, nil
	case <-timer.C:
		return probeReply{}, false, nil
	case <-ctx.Done():
		return probeReply{}, false, ctx.Err()
	}
}

func (d *Diagnostics) HandleEcho(from state.NodeId, payload string) {
	e, err := protocol.ParseEcho(payload)
	if err != nil {
		d.Log.Debug("dropped echo", "from", from, "error", err)
		return
	}
	switch e.Kind {
	case protocol.EchoRequest:
		reply := protocol.Echo{Kind: protocol.EchoReply, Seq: e.Seq, Sent: e.Sent, Received: time.Now().UnixMicro()}
		if err := Get[*Forwarder](d.State).Send(from, reply.Encode(), state.DefaultTTL); err != nil {
			d.Log.Debug("echo reply not sent", "to", from, "error", err)
		}
	case protocol.EchoReply, protocol.TimeExceeded:
		item := d.pending.Get(e.Seq)
		if item == nil {
			d.Log.Debug("stale echo", "from", from, "kind", e.Kind, "seq", e.Seq)
			return
		}
		select {
		case item.Value() <- probeReply{echo: e, from: from, at: time.Now()}:
		default:
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func ms(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}

// Ping sends count echo requests to target and prints one line per probe to w.
func (d *Diagnostics) Ping(ctx context.Context, target state.NodeId, count int, w io.Writer) (PingStats, error) {
	stats := PingStats{Target: target}
	if _, ok := d.Routes.Resolve(target); !ok {
		return stats, fmt.Errorf("%w: %s", ErrRouteUnreachable, target)
	}
	fmt.Fprintf(w, "PING %s\n", target)
	var total time.Duration
	for i := range count {
		if i > 0 {
			if err := sleepCtx(ctx, state.PingInterval); err != nil {
				return stats, err
			}
		}
		stats.Sent++
		r, ok, err := d.probe(ctx, target, state.DefaultTTL, state.PingTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return stats, err
			}
			stats.Lost++
			fmt.Fprintf(w, "probe %d: %v\n", i+1, err)
			continue
		}
		if !ok {
			stats.Lost++
			fmt.Fprintf(w, "Request timed out.\n")
			continue
		}
		if r.echo.Kind == protocol.TimeExceeded {
			stats.Lost++
			fmt.Fprintf(w, "TTL expired in transit at %s\n", r.echo.Router)
			continue
		}
		rtt := r.at.Sub(time.UnixMicro(r.echo.Sent))
		perf.EchoRtt.Add(ms(rtt))
		stats.Received++
		total += rtt
		if stats.Received == 1 || rtt < stats.Min {
			stats.Min = rtt
		}
		stats.Max = max(stats.Max, rtt)
		fmt.Fprintf(w, "Reply from %s: seq=%d time=%.2fms\n", r.from, r.echo.Seq, ms(rtt))
	}
	if stats.Received > 0 {
		stats.Avg = total / time.Duration(stats.Received)
	}
	fmt.Fprintf(w, "--- %s ping statistics ---\n", target)
	fmt.Fprintf(w, "%d sent, %d received, %.0f%% loss\n", stats.Sent, stats.Received, stats.LossPercent())
	if stats.Received > 0 {
		fmt.Fprintf(w, "rtt min/avg/max = %.2f/%.2f/%.2f ms\n", ms(stats.Min), ms(stats.Avg), ms(stats.Max))
	}
	return stats, nil
}

// Traceroute probes target with increasing TTL until it answers or maxHops is reached.
func (d *Diagnostics) Traceroute(ctx context.Context, target state.NodeId, maxHops int, w io.Writer) (TraceResult, error) {
	res := TraceResult{Target: target}
	if _, ok := d.Routes.Resolve(target); !ok {
		return res, fmt.Errorf("%w: %s", ErrRouteUnreachable, target)
	}
	fmt.Fprintf(w, "traceroute to %s, %d hops max\n", target, maxHops)
	for ttl := 1; ttl <= maxHops; ttl++ {
		r, ok, err := d.probe(ctx, target, ttl, state.TraceTimeout)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, ErrRouteUnreachable) {
				return res, err
			}
			ok = false
		}
		if !ok {
			res.Hops = append(res.Hops, TraceHop{TTL: ttl, TimedOut: true})
			fmt.Fprintf(w, "%2d  *\n", ttl)
			continue
		}
		hop := TraceHop{TTL: ttl, Router: r.from, RTT: r.rtt}
		if r.echo.Kind == protocol.TimeExceeded {
			hop.Router = r.echo.Router
		}
		res.Hops = append(res.Hops, hop)
		fmt.Fprintf(w, "%2d  %s  %.2f ms\n", ttl, hop.Router, ms(hop.RTT))
		if r.echo.Kind == protocol.EchoReply {
			res.Reached = true
			fmt.Fprintf(w, "trace complete\n")
			break
		}
	}
	return res, nil
}
