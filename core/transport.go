package core

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/encodeous/wireline/perf"
	"github.com/encodeous/wireline/protocol"
	"github.com/encodeous/wireline/state"
)

type SendResult struct {
	Target   state.NodeId
	Seq      uint32
	Attempts int
	Elapsed  time.Duration
}

type pendingAck struct {
	target state.NodeId
	seq    uint32
	ch     chan struct{}
}

type session struct {
	syn      uint32 // seq of the SYN that opened the session
	body     string // message carried by that SYN
	expected uint32
}

// Transport is a stop-and-wait reliable transport. At most one message is in
// flight per node, a second Send blocks until the first one finishes.
type Transport struct {
	*state.State
	sendMu      sync.Mutex
	mu          sync.Mutex
	outstanding *pendingAck
	sessions    map[state.NodeId]session
	isn         func() uint32
}

func (t *Transport) Init(s *state.State) error {
	t.State = s
	t.sessions = make(map[state.NodeId]session)
	t.isn = func() uint32 {
		return rand.Uint32N(65536)
	}
	return nil
}

func (t *Transport) Cleanup(s *state.State) error {
	return nil
}

// Send delivers msg to target, retransmitting until a SYN-ACK arrives or the
// attempts are exhausted.
func (t *Transport) Send(ctx context.Context, target state.NodeId, msg string) (SendResult, error) {
	t.sendMu.Lock()
	defer t.sendMu.Unlock()

	res := SendResult{Target: target}
	if _, ok := t.Routes.Resolve(target); !ok {
		return res, fmt.Errorf("%w: %s", ErrRouteUnreachable, target)
	}
	res.Seq = t.isn()
	ack := t.expect(target, res.Seq)
	defer t.release()

	fw := Get[*Forwarder](t.State)
	start := time.Now()
	timer := time.NewTimer(state.RetransmitTimeout)
	defer timer.Stop()

	for res.Attempts < max(t.MaxRetries, 1) {
		res.Attempts++
		seg := protocol.Segment{Seq: res.Seq, Kind: protocol.SegSyn, Body: msg}
		seg.Seal(t.Id, target)
		if res.Attempts > 1 {
			perf.Retransmits.Add(1)
			t.Log.Warn("retransmitting", "target", target, "seq", res.Seq, "attempt", res.Attempts)
		}
		if t.Faults.TakeCorruption() {
			seg.Checksum += 123
			t.Log.Warn("injected checksum corruption", "target", target, "seq", res.Seq)
		}
		if t.Faults.TakeLoss() {
			t.Log.Warn("injected segment loss", "target", target, "seq", res.Seq)
		} else if err := fw.Send(target, seg.Encode(), state.DefaultTTL); err != nil {
			t.Log.Debug("segment not sent", "target", target, "seq", res.Seq, "error", err)
		}

		timer.Reset(state.RetransmitTimeout)
		select {
		case <-ack:
			res.Elapsed = time.Since(start)
			perf.ReliableSendLatency.Add(float64(res.Elapsed.Milliseconds()))
			t.Log.Info("message delivered", "target", target, "seq", res.Seq, "attempts", res.Attempts, "elapsed", res.Elapsed)
			return res, nil
		case <-timer.C:
		case <-ctx.Done():
			res.Elapsed = time.Since(start)
			return res, ctx.Err()
		}
	}
	res.Elapsed = time.Since(start)
	t.Log.Error("giving up", "target", target, "seq", res.Seq, "attempts", res.Attempts)
	return res, fmt.Errorf("%w: %s after %d attempts: %w", ErrSessionFailure, target, res.Attempts, ErrSendTimeout)
}

func (t *Transport) expect(target state.NodeId, seq uint32) <-chan struct{} {
	t.mu.Lock()
	defer t.mu.Unlock()
	p := &pendingAck{target: target, seq: seq, ch: make(chan struct{}, 1)}
	t.outstanding = p
	return p.ch
}

func (t *Transport) release() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.outstanding = nil
}

// HandleSegment processes a transport payload that travelled from one node to
// another. The checksum binds both ids, so a relabelled segment is dropped.
func (t *Transport) HandleSegment(from, to state.NodeId, payload string) {
	seg, err := protocol.ParseSegment(payload)
	if err != nil {
		t.Log.Debug("dropped segment", "from", from, "error", err)
		return
	}
	if err := seg.Verify(from, to); err != nil {
		perf.ChecksumFailures.Add(1)
		t.Log.Warn("dropped corrupt segment", "from", from, "seq", seg.Seq, "error", err)
		return
	}
	switch seg.Kind {
	case protocol.SegSyn:
		t.handleSyn(from, seg)
	case protocol.SegData:
		t.handleData(from, seg)
	case protocol.SegAck, protocol.SegSynAck:
		t.handleAck(from, seg)
	}
}

func (t *Transport) handleSyn(from state.NodeId, seg protocol.Segment) {
	t.mu.Lock()
	cur, ok := t.sessions[from]
	dup := ok && cur.syn == seg.Seq && cur.body == seg.Body
	if !dup {
		t.sessions[from] = session{syn: seg.Seq, body: seg.Body, expected: seg.Seq + 1}
	}
	t.mu.Unlock()

	if dup {
		t.Log.Debug("duplicate syn, acknowledging again", "from", from, "seq", seg.Seq)
	} else {
		t.deliver(from, seg.Body)
	}
	t.reply(from, protocol.SegSynAck, seg.Seq)
}

func (t *Transport) handleData(from state.NodeId, seg protocol.Segment) {
	t.mu.Lock()
	cur, ok := t.sessions[from]
	if !ok {
		t.mu.Unlock()
		t.Log.Debug("data without session", "from", from, "seq", seg.Seq)
		return
	}
	switch {
	case seg.Seq == cur.expected:
		cur.expected++
		t.sessions[from] = cur
		t.mu.Unlock()
		t.deliver(from, seg.Body)
		t.reply(from, protocol.SegAck, seg.Seq)
	case seg.Seq < cur.expected:
		t.mu.Unlock()
		t.reply(from, protocol.SegAck, seg.Seq)
	default:
		t.mu.Unlock()
		t.Log.Debug("data ahead of window", "from", from, "seq", seg.Seq, "expected", cur.expected)
	}
}

func (t *Transport) handleAck(from state.NodeId, seg protocol.Segment) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.outstanding == nil || t.outstanding.target != from || t.outstanding.seq != seg.Seq {
		t.Log.Warn("unexpected acknowledgement", "from", from, "kind", seg.Kind, "seq", seg.Seq)
		return
	}
	select {
	case t.outstanding.ch <- struct{}{}:
	default:
	}
}

func (t *Transport) reply(to state.NodeId, kind protocol.SegmentKind, seq uint32) {
	seg := protocol.Segment{Seq: seq, Kind: kind}
	seg.Seal(t.Id, to)
	if err := Get[*Forwarder](t.State).Send(to, seg.Encode(), state.DefaultTTL); err != nil {
		t.Log.Debug("acknowledgement not sent", "to", to, "seq", seq, "error", err)
	}
}

func (t *Transport) deliver(from state.NodeId, body string) {
	t.Log.Info("message received", "from", from, "body", body)
	Get[*NodeTrace](t.State).Publish(Delivery{From: from, Body: body})
}
