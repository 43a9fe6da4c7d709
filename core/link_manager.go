package core

import (
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/encodeous/wireline/link"
	"github.com/encodeous/wireline/perf"
	"github.com/encodeous/wireline/state"
)

// LinkMgr owns every link of the node and runs one reader goroutine per link.
type LinkMgr struct {
	mu    sync.RWMutex
	links map[state.LinkId]*link.Link
	dial  link.Dialer
	wg    sync.WaitGroup
}

func (l *LinkMgr) Init(s *state.State) error {
	l.links = make(map[state.LinkId]*link.Link)
	l.dial = link.Dial
	if d, ok := s.AuxConfig["dialer"]; ok {
		l.dial = d.(link.Dialer)
	}
	return nil
}

// Connect opens every configured link in the background. A link that cannot
// be opened is logged and skipped.
func (l *LinkMgr) Connect(s *state.State) {
	for _, id := range s.Links {
		l.wg.Add(1)
		go l.connect(s, id)
	}
}

func (l *LinkMgr) connect(s *state.State, id state.LinkId) {
	defer l.wg.Done()
	rw, err := l.dial(s.Context, id, s.Baud)
	if err != nil {
		s.Log.Error("failed to open link", "link", id, "error", err)
		return
	}
	lk := link.New(id, rw)

	l.mu.Lock()
	if s.Context.Err() != nil {
		l.mu.Unlock()
		_ = lk.Close()
		return
	}
	l.links[id] = lk
	l.mu.Unlock()
	s.Log.Info("link up", "link", id)

	for line := range lk.Lines() {
		perf.RecvLinesPerSecond.Add(1)
		perf.RecvBytesPerSecond.Add(float64(len(line) + 1))
		handleLine(s, id, line)
	}

	l.mu.Lock()
	if l.links[id] == lk {
		delete(l.links, id)
	}
	l.mu.Unlock()
	_ = lk.Close()
	if s.Context.Err() == nil {
		s.Log.Warn("link down", "link", id)
	}
}

func (l *LinkMgr) get(id state.LinkId) *link.Link {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.links[id]
}

// Write sends line on link id. Failures are logged and reported as false.
func (l *LinkMgr) Write(s *state.State, id state.LinkId, line string) bool {
	lk := l.get(id)
	if lk == nil {
		s.Log.Debug("write to unavailable link", "link", id)
		perf.DroppedLines.Add(1)
		return false
	}
	if strings.ContainsAny(line, "\r\n") {
		s.Log.Warn("refusing to write line containing a line break", "link", id)
		return false
	}
	if err := lk.WriteLine(line); err != nil {
		s.Log.Warn("link write failed", "link", id, "error", err)
		perf.DroppedLines.Add(1)
		return false
	}
	if state.DBG_log_links {
		s.Log.Info("sent", "link", id, "line", line)
	}
	perf.SentLinesPerSecond.Add(1)
	perf.SentBytesPerSecond.Add(float64(len(line) + 1))
	return true
}

// Broadcast writes build(id) on every open link, skipping empty lines.
func (l *LinkMgr) Broadcast(build func(id state.LinkId) string) {
	l.mu.RLock()
	links := slices.Collect(maps.Values(l.links))
	l.mu.RUnlock()
	for _, lk := range links {
		line := build(lk.Id)
		if line == "" {
			continue
		}
		if err := lk.WriteLine(line); err != nil {
			perf.DroppedLines.Add(1)
			continue
		}
		perf.SentLinesPerSecond.Add(1)
		perf.SentBytesPerSecond.Add(float64(len(line) + 1))
	}
}

// Links returns the ids of the open links, sorted.
func (l *LinkMgr) Links() []state.LinkId {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return slices.Sorted(maps.Keys(l.links))
}

func (l *LinkMgr) Stats() []link.Stats {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]link.Stats, 0, len(l.links))
	for _, id := range slices.Sorted(maps.Keys(l.links)) {
		out = append(out, l.links[id].Stats())
	}
	return out
}

func (l *LinkMgr) Cleanup(s *state.State) error {
	l.mu.Lock()
	for _, lk := range l.links {
		_ = lk.Close()
	}
	l.mu.Unlock()
	l.wg.Wait()
	return nil
}
