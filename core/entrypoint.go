package core

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path"
	"reflect"
	"syscall"
	"time"

	"github.com/encodeous/tint"
	"github.com/encodeous/wireline/perf"
	"github.com/encodeous/wireline/state"
	slogmulti "github.com/samber/slog-multi"
)

// ServeDebug exposes expvar and /debug/metrics on addr.
func ServeDebug(addr string, log *slog.Logger) {
	if addr == "" {
		return
	}
	go func() {
		log.Info("serving debug endpoints", "addr", addr)
		if err := http.ListenAndServe(addr, nil); err != nil {
			log.Error("debug server stopped", "error", err)
		}
	}()
}

func newLogger(cfg state.LocalCfg, logLevel slog.Level, trace *NodeTrace) (*slog.Logger, error) {
	handlers := make([]slog.Handler, 0)
	handlers = append(handlers,
		tint.NewHandler(os.Stderr, &tint.Options{
			Level:        logLevel,
			AddSource:    false,
			CustomPrefix: string(cfg.Id),
			ReplaceAttr: func(groups []string, attr slog.Attr) slog.Attr {
				if attr.Key == "time" {
					return slog.Attr{}
				}
				return attr
			},
		}))

	if cfg.LogPath != "" {
		err := os.MkdirAll(path.Dir(cfg.LogPath), 0700)
		if err != nil {
			return nil, err
		}
		f, err := os.OpenFile(cfg.LogPath, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0600)
		if err != nil {
			return nil, err
		}
		handlers = append(handlers, slog.NewTextHandler(f, &slog.HandlerOptions{Level: logLevel}))
	}

	// observers of the node trace get the same records as plain text
	handlers = append(handlers, slog.NewTextHandler(trace, &slog.HandlerOptions{Level: logLevel}))

	return slog.New(slogmulti.Fanout(handlers...)), nil
}

// Setup builds the node state, initializes every module and starts the
// background tasks. The node runs once Run is called.
func Setup(cfg state.LocalCfg, logLevel slog.Level, aux map[string]any) (*state.State, error) {
	cfg.ApplyDefaults()
	if err := state.NodeConfigValidator(&cfg); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancelCause(context.Background())

	trace := NewNodeTrace()
	logger, err := newLogger(cfg, logLevel, trace)
	if err != nil {
		cancel(err)
		_ = trace.Close()
		return nil, err
	}

	s := state.NewState(cfg, &state.Env{
		Context:         ctx,
		Cancel:          cancel,
		DispatchChannel: make(chan func(env *state.State) error, 128),
		Log:             logger,
		AuxConfig:       aux,
	})

	s.Log.Info("init modules")
	err = initModules(s, trace)
	if err != nil {
		cancel(err)
		_ = trace.Cleanup(s)
		return nil, err
	}
	s.Log.Info("init modules complete")
	startTasks(s)
	return s, nil
}

// Run runs the main loop until the node is stopped.
func Run(s *state.State) error {
	return MainLoop(s, s.DispatchChannel)
}

// Start runs a node until it receives SIGINT or SIGTERM.
func Start(cfg state.LocalCfg, logLevel slog.Level, aux map[string]any) error {
	s, err := Setup(cfg, logLevel, aux)
	if err != nil {
		return err
	}
	s.Log.Info("wireline has been initialized. To gracefully exit, send SIGINT or Ctrl+C.")
	ServeDebug(cfg.DebugAddr, s.Log)
	HandleSignals(s)
	return Run(s)
}

// HandleSignals cancels the node on SIGINT or SIGTERM.
func HandleSignals(s *state.State) {
	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		defer signal.Stop(c)
		select {
		case <-c:
			s.Cancel(errors.New("received shutdown signal"))
		case <-s.Context.Done():
		}
	}()
}

func initModules(s *state.State, trace *NodeTrace) error {
	var modules []state.NyModule
	modules = append(modules, trace)
	modules = append(modules, &DistanceVector{})
	modules = append(modules, &NeighbourTracker{})
	modules = append(modules, &Forwarder{})
	modules = append(modules, &Transport{})
	modules = append(modules, &Diagnostics{})
	modules = append(modules, &LinkMgr{})
	modules = append(modules, &ControlServer{})

	for _, module := range modules {
		name := reflect.TypeOf(module).String()
		s.Modules[name] = module
		s.ModuleOrder = append(s.ModuleOrder, name)
	}
	for _, module := range modules {
		if err := module.Init(s); err != nil {
			return err
		}
	}
	return nil
}

func startTasks(s *state.State) {
	Get[*LinkMgr](s).Connect(s)
	s.RepeatTask(helloTask, state.HelloDelay)
	s.RepeatTask(routerUpdateTask, state.RouteUpdateDelay)
	s.RepeatTask(neighbourGc, state.NeighbourSweepDelay)
}

func MainLoop(s *state.State, dispatch <-chan func(*state.State) error) error {
	s.Log.Debug("started main loop")
	s.Started.Store(true)
	for {
		select {
		case fun := <-dispatch:
			start := time.Now()
			err := fun(s)
			if err != nil {
				s.Log.Error("error occurred during dispatch: ", "error", err)
				s.Cancel(err)
			}
			perf.DispatchLatency.Add(float64(time.Since(start).Microseconds()))
		case <-s.Context.Done():
			s.Log.Info("stopped main loop", "reason", context.Cause(s.Context).Error())
			Stop(s)
			return nil
		}
	}
}

// Stop cancels the node, joins its goroutines and cleans up modules in reverse
// init order. Concurrent callers wait for the first one to finish.
func Stop(s *state.State) {
	if s.Stopping.Swap(true) {
		<-s.Stopped
		return
	}
	defer close(s.Stopped)
	s.Cancel(context.Canceled)
	s.WaitTasks()
	s.Log.Info("cleaning up modules")
	for i := len(s.ModuleOrder) - 1; i >= 0; i-- {
		name := s.ModuleOrder[i]
		err := s.Modules[name].Cleanup(s)
		if err != nil {
			s.Log.Error("error occurred during Stop: ", "module", name, "error", err)
		}
	}
	s.Log.Info("stopped")
}
