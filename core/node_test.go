package core

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/encodeous/wireline/link"
	"github.com/encodeous/wireline/protocol"
	"github.com/encodeous/wireline/state"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	state.HelloDelay = 50 * time.Millisecond
	state.RouteUpdateDelay = 100 * time.Millisecond
	state.NeighbourTimeout = 300 * time.Millisecond
	state.NeighbourSweepDelay = 20 * time.Millisecond
	state.RetransmitTimeout = 100 * time.Millisecond
	state.PingTimeout = 200 * time.Millisecond
	state.PingInterval = 10 * time.Millisecond
	state.TraceTimeout = 200 * time.Millisecond
	os.Exit(m.Run())
}

// testPeer is the far end of one of the node's links, driven by the test.
type testPeer struct {
	id    state.NodeId
	link  *link.Link
	lines chan string
}

func (p *testPeer) send(t *testing.T, pkt protocol.Packet) {
	t.Helper()
	require.NoError(t, p.link.WriteLine(pkt.Encode()))
}

// announce keeps the node convinced that the peer is alive.
func (p *testPeer) announce(t *testing.T) {
	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(state.HelloDelay)
		defer ticker.Stop()
		for {
			_ = p.link.WriteLine(protocol.Hello{Sender: p.id}.Encode())
			select {
			case <-stop:
				return
			case <-ticker.C:
			}
		}
	}()
	t.Cleanup(func() {
		close(stop)
		wg.Wait()
	})
}

// expect waits for a line matching pred.
func (p *testPeer) expect(t *testing.T, pred func(string) bool) string {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case line := <-p.lines:
			if pred(line) {
				return line
			}
		case <-deadline:
			t.Fatalf("peer %s: expected line not received", p.id)
			return ""
		}
	}
}

// expectNone asserts that no line matching pred arrives within d.
func (p *testPeer) expectNone(t *testing.T, pred func(string) bool, d time.Duration) {
	t.Helper()
	deadline := time.After(d)
	for {
		select {
		case line := <-p.lines:
			if pred(line) {
				t.Fatalf("peer %s: unexpected line %q", p.id, line)
			}
		case <-deadline:
			return
		}
	}
}

func isData(line string) bool {
	return strings.HasPrefix(line, protocol.TagData+protocol.Sep)
}

func parseData(t *testing.T, line string) protocol.Data {
	t.Helper()
	p, err := protocol.Parse(line)
	require.NoError(t, err)
	return p.(protocol.Data)
}

func parseSegmentLine(t *testing.T, line string) protocol.Segment {
	t.Helper()
	seg, err := protocol.ParseSegment(parseData(t, line).Payload)
	require.NoError(t, err)
	return seg
}

func segmentData(src, dst state.NodeId, seq uint32, kind protocol.SegmentKind, body string) protocol.Data {
	seg := protocol.Segment{Seq: seq, Kind: kind, Body: body}
	seg.Seal(src, dst)
	return protocol.Data{Src: src, Dst: dst, TTL: state.DefaultTTL, Payload: seg.Encode()}
}

// startNode runs a node with one pipe link per peer.
func startNode(t *testing.T, cfg state.LocalCfg, peers ...state.NodeId) (*state.State, map[state.NodeId]*testPeer) {
	t.Helper()
	ends := make(map[state.LinkId]*link.PipeEnd)
	out := make(map[state.NodeId]*testPeer)
	for _, id := range peers {
		lid := state.LinkId("pipe:" + string(id))
		near, far := link.Pipe()
		ends[lid] = near
		cfg.Links = append(cfg.Links, lid)
		p := &testPeer{id: id, link: link.New(lid, far), lines: make(chan string, 4096)}
		go func() {
			for line := range p.link.Lines() {
				select {
				case p.lines <- line:
				default:
				}
			}
		}()
		out[id] = p
	}
	dialer := link.Dialer(func(ctx context.Context, id state.LinkId, baud int) (io.ReadWriteCloser, error) {
		return ends[id], nil
	})
	s, err := Setup(cfg, slog.LevelWarn, map[string]any{"dialer": dialer})
	require.NoError(t, err)
	go func() {
		_ = Run(s)
	}()
	t.Cleanup(func() {
		Stop(s)
		for _, p := range out {
			_ = p.link.Close()
		}
	})
	return s, out
}

// connectPeer makes the node learn a direct route to the peer.
func connectPeer(t *testing.T, s *state.State, p *testPeer) {
	t.Helper()
	p.announce(t)
	require.Eventually(t, func() bool {
		_, ok := s.Routes.Resolve(p.id)
		return ok
	}, 2*time.Second, 5*time.Millisecond)
}

func subscribe(t *testing.T, s *state.State) chan any {
	ch := make(chan any, 1024)
	tr := Get[*NodeTrace](s)
	tr.Register(ch)
	t.Cleanup(func() {
		tr.Unregister(ch)
	})
	return ch
}

func nextDelivery(t *testing.T, events chan any) Delivery {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-events:
			if d, ok := ev.(Delivery); ok {
				return d
			}
		case <-deadline:
			t.Fatal("no delivery")
			return Delivery{}
		}
	}
}

func noDelivery(t *testing.T, events chan any, d time.Duration) {
	t.Helper()
	deadline := time.After(d)
	for {
		select {
		case ev := <-events:
			if del, ok := ev.(Delivery); ok {
				t.Fatalf("unexpected delivery %+v", del)
			}
		case <-deadline:
			return
		}
	}
}
