package state

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
)

type NyModule interface {
	Init(s *State) error
	Cleanup(s *State) error
}

// State is shared by every goroutine of a node. The tables carry their own
// locks, modules are registered once before any goroutine starts.
type State struct {
	*Env
	Modules     map[string]NyModule
	ModuleOrder []string // init order, cleanup runs in reverse
	Routes      *RoutingTable
	Neighbours  *NeighbourTable
	Faults      *FaultPolicy
}

// Env can be read from any Goroutine
type Env struct {
	DispatchChannel chan func(s *State) error
	LocalCfg
	Context   context.Context
	Cancel    context.CancelCauseFunc
	Log       *slog.Logger
	AuxConfig map[string]any
	Started   atomic.Bool
	Stopping  atomic.Bool
	Stopped   chan struct{}
	tasks     sync.WaitGroup
}

func NewState(cfg LocalCfg, env *Env) *State {
	env.LocalCfg = cfg
	if env.Stopped == nil {
		env.Stopped = make(chan struct{})
	}
	return &State{
		Env:        env,
		Modules:    make(map[string]NyModule),
		Routes:     NewRoutingTable(cfg.Id),
		Neighbours: NewNeighbourTable(),
		Faults:     &FaultPolicy{},
	}
}
