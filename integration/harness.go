//go:build integration

package integration

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/encodeous/wireline/core"
	"github.com/encodeous/wireline/link"
	"github.com/encodeous/wireline/state"
	"github.com/stretchr/testify/require"
)

// VirtualLink is a serial cable between two nodes of the harness.
type VirtualLink struct {
	A, B       state.NodeId
	aEnd, bEnd *link.PipeEnd
}

// Sever cuts the cable, both nodes keep their link open but hear nothing.
func (v *VirtualLink) Sever() {
	v.aEnd.Sever()
}

func linkName(to state.NodeId) state.LinkId {
	return state.LinkId("tty-" + string(to))
}

// VirtualHarness runs several nodes in one process, wired with in-memory lines.
type VirtualHarness struct {
	Level  slog.Level
	nodes  []state.NodeId
	cfgs   map[state.NodeId]*state.LocalCfg
	ends   map[state.NodeId]map[state.LinkId]*link.PipeEnd
	links  []*VirtualLink
	States map[state.NodeId]*state.State
	wg     sync.WaitGroup
}

func (v *VirtualHarness) NewNode(id state.NodeId) {
	if v.cfgs == nil {
		v.cfgs = make(map[state.NodeId]*state.LocalCfg)
		v.ends = make(map[state.NodeId]map[state.LinkId]*link.PipeEnd)
		v.States = make(map[state.NodeId]*state.State)
		v.Level = slog.LevelWarn
	}
	v.nodes = append(v.nodes, id)
	v.cfgs[id] = &state.LocalCfg{Id: id}
	v.ends[id] = make(map[state.LinkId]*link.PipeEnd)
}

// AddLink connects a and b with a new cable.
func (v *VirtualHarness) AddLink(a, b state.NodeId) *VirtualLink {
	aEnd, bEnd := link.Pipe()
	v.cfgs[a].Links = append(v.cfgs[a].Links, linkName(b))
	v.cfgs[b].Links = append(v.cfgs[b].Links, linkName(a))
	v.ends[a][linkName(b)] = aEnd
	v.ends[b][linkName(a)] = bEnd
	vl := &VirtualLink{A: a, B: b, aEnd: aEnd, bEnd: bEnd}
	v.links = append(v.links, vl)
	return vl
}

// Start brings up every node. Errors returned by a main loop are sent on the channel.
func (v *VirtualHarness) Start() chan error {
	errs := make(chan error, len(v.nodes))
	for _, id := range v.nodes {
		ends := v.ends[id]
		dialer := link.Dialer(func(ctx context.Context, lid state.LinkId, baud int) (io.ReadWriteCloser, error) {
			end, ok := ends[lid]
			if !ok {
				return nil, fmt.Errorf("%w: %s", link.ErrLinkUnavailable, lid)
			}
			return end, nil
		})
		s, err := core.Setup(*v.cfgs[id], v.Level, map[string]any{"dialer": dialer})
		if err != nil {
			errs <- err
			continue
		}
		v.States[id] = s
		v.wg.Add(1)
		go func() {
			defer v.wg.Done()
			if err := core.Run(s); err != nil {
				errs <- err
			}
		}()
	}
	return errs
}

func (v *VirtualHarness) Stop() {
	for _, s := range v.States {
		core.Stop(s)
	}
	v.wg.Wait()
	for _, l := range v.links {
		_ = l.aEnd.Close()
		_ = l.bEnd.Close()
	}
}

// Exec runs a shell command on node the same way the interactive shell does.
func (v *VirtualHarness) Exec(node state.NodeId, line string) (string, error) {
	out := &bytes.Buffer{}
	_, err := v.States[node].DispatchWait(func(s *state.State) (any, error) {
		return nil, core.Exec(s, line, out)
	})
	return out.String(), err
}

// WaitRoute waits until node has a route to dest with the given cost.
func (v *VirtualHarness) WaitRoute(t *testing.T, node, dest state.NodeId, cost int) state.RouteEntry {
	t.Helper()
	var r state.RouteEntry
	require.Eventuallyf(t, func() bool {
		r, _ = v.States[node].Routes.Lookup(dest)
		return r.Cost == cost
	}, 5*time.Second, 10*time.Millisecond, "%s never reached %s at cost %d, last %s", node, dest, cost, r)
	return r
}

// WaitConverged waits until every node can reach every other node.
func (v *VirtualHarness) WaitConverged(t *testing.T) {
	t.Helper()
	require.Eventually(t, func() bool {
		for _, a := range v.nodes {
			for _, b := range v.nodes {
				if _, ok := v.States[a].Routes.Resolve(b); !ok {
					return false
				}
			}
		}
		return true
	}, 5*time.Second, 10*time.Millisecond)
}

// Deliveries subscribes to the messages handed to the application on node.
func (v *VirtualHarness) Deliveries(t *testing.T, node state.NodeId) <-chan core.Delivery {
	ch := make(chan any, 1024)
	out := make(chan core.Delivery, 1024)
	tr := core.Get[*core.NodeTrace](v.States[node])
	tr.Register(ch)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case ev := <-ch:
				if d, ok := ev.(core.Delivery); ok {
					out <- d
				}
			case <-done:
				return
			}
		}
	}()
	t.Cleanup(func() {
		close(done)
		tr.Unregister(ch)
	})
	return out
}
