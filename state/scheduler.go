package state

import (
	"fmt"
	"time"
)

// Dispatch Dispatches the function to run on the main thread without waiting for it to complete
func (e *Env) Dispatch(fun func(*State) error) {
	select {
	case e.DispatchChannel <- fun:
	case <-e.Context.Done():
	}
}

// DispatchWait Dispatches the function to run on the main thread and wait for it to complete.
// The error is handed back to the caller and does not stop the main loop.
func (e *Env) DispatchWait(fun func(*State) (any, error)) (any, error) {
	ret := make(chan Pair[any, error], 1)
	wrapped := func(s *State) error {
		res, err := fun(s)
		ret <- Pair[any, error]{res, err}
		return nil
	}
	select {
	case e.DispatchChannel <- wrapped:
	case <-e.Context.Done():
		return nil, e.Context.Err()
	}
	select {
	case res := <-ret:
		return res.V1, res.V2
	case <-e.Context.Done():
		return nil, e.Context.Err()
	}
}

func (s *State) repeatedTask(fun func(*State) error, delay time.Duration) {
	defer s.tasks.Done()
	defer func() {
		if r := recover(); r != nil {
			s.Cancel(fmt.Errorf("panic in task: %v", r))
		}
	}()
	ticker := time.NewTicker(delay)
	defer ticker.Stop()
	for {
		if err := fun(s); err != nil {
			s.Log.Warn("task failed", "error", err)
		}
		select {
		case <-s.Context.Done():
			return
		case <-ticker.C:
		}
	}
}

// RepeatTask runs fun immediately and then every delay on its own goroutine,
// until the node context is cancelled. Tasks must be safe to run concurrently
// with packet handling.
func (s *State) RepeatTask(fun func(*State) error, delay time.Duration) {
	s.tasks.Add(1)
	go s.repeatedTask(fun, delay)
}

// WaitTasks blocks until every task started by RepeatTask has returned.
func (e *Env) WaitTasks() {
	e.tasks.Wait()
}
