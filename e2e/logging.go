//go:build e2e

package e2e

import (
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/testcontainers/testcontainers-go"
)

var ansiRegex = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)

func StripAnsi(s string) string {
	return ansiRegex.ReplaceAllString(s, "")
}

// LogWatcher keeps the full log of every node and wakes up waiters on new output.
type LogWatcher struct {
	mu      sync.Mutex
	history map[string]*strings.Builder
	changed chan struct{}
}

func NewLogWatcher() *LogWatcher {
	return &LogWatcher{
		history: make(map[string]*strings.Builder),
		changed: make(chan struct{}),
	}
}

func (w *LogWatcher) Accept(node, content string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	b, ok := w.history[node]
	if !ok {
		b = &strings.Builder{}
		w.history[node] = b
	}
	b.WriteString(content)
	close(w.changed)
	w.changed = make(chan struct{})
}

// Wait blocks until the log of node contains pattern.
func (w *LogWatcher) Wait(node, pattern string, timeout time.Duration) error {
	deadline := time.After(timeout)
	for {
		w.mu.Lock()
		found := false
		if b, ok := w.history[node]; ok {
			found = strings.Contains(b.String(), pattern)
		}
		changed := w.changed
		w.mu.Unlock()
		if found {
			return nil
		}
		select {
		case <-changed:
		case <-deadline:
			return fmt.Errorf("timed out waiting for %q in the log of %s", pattern, node)
		}
	}
}

type nodeLogConsumer struct {
	node    string
	watcher *LogWatcher
}

func (c *nodeLogConsumer) Accept(l testcontainers.Log) {
	content := StripAnsi(string(l.Content))
	fmt.Printf("[%s:%s] %s", c.node, strings.ToLower(l.LogType), content)
	c.watcher.Accept(c.node, content)
}
