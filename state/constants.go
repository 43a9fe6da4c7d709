package state

import "time"

const (
	// INF is the cost of an unreachable destination. Costs are clamped to it.
	INF        = 999
	DefaultTTL = 64
	LocalLink  = LinkId("LOCAL")
)

var (
	HelloDelay          = time.Second * 3
	RouteUpdateDelay    = time.Second * 5
	NeighbourTimeout    = time.Second * 10
	NeighbourSweepDelay = time.Second * 1

	// reliable transport
	RetransmitTimeout = time.Second * 3
	DefaultMaxRetries = 30

	// diagnostics
	PingTimeout      = time.Second * 2
	PingInterval     = time.Second * 1
	DefaultPingCount = 4
	TraceTimeout     = time.Second * 3
	DefaultMaxHops   = 15
	ProbeExpiry      = time.Second * 30 // pending probes are dropped by the sweep after this

	// links
	DefaultBaud     = 9600
	LinkReadTimeout = time.Millisecond * 100
	MaxLineLength   = 4096
	TcpDialAttempts = 20
	TcpDialBackoff  = time.Millisecond * 500
)
