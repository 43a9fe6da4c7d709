package core

import (
	"strings"
	"sync"

	"github.com/dustin/go-broadcast"
	"github.com/encodeous/wireline/state"
)

// LogLine is a formatted log record of the node.
type LogLine string

// RouteSnapshot is published every time the routing table changes.
type RouteSnapshot struct {
	Node   state.NodeId
	Routes []state.RouteEntry
}

// Delivery is a message handed to the application by the reliable transport.
type Delivery struct {
	From state.NodeId
	Body string
}

// NodeTrace fans out LogLine, RouteSnapshot and Delivery events to observers.
// Publishing never blocks, events are dropped when the buffer is full.
type NodeTrace struct {
	broadcast.Broadcaster
	mu     sync.RWMutex
	closed bool
}

func NewNodeTrace() *NodeTrace {
	return &NodeTrace{Broadcaster: broadcast.NewBroadcaster(1024)}
}

func (n *NodeTrace) Init(s *state.State) error {
	return nil
}

func (n *NodeTrace) Publish(ev any) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.closed {
		return
	}
	n.TrySubmit(ev)
}

// Register subscribes ch to future events. It is a no-op once the trace is closed.
func (n *NodeTrace) Register(ch chan<- any) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if !n.closed {
		n.Broadcaster.Register(ch)
	}
}

func (n *NodeTrace) Unregister(ch chan<- any) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if !n.closed {
		n.Broadcaster.Unregister(ch)
	}
}

// Write lets the trace act as the sink of a slog text handler.
func (n *NodeTrace) Write(p []byte) (int, error) {
	n.Publish(LogLine(strings.TrimRight(string(p), "\n")))
	return len(p), nil
}

func (n *NodeTrace) Cleanup(s *state.State) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return nil
	}
	n.closed = true
	return n.Broadcaster.Close()
}
