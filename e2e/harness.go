//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/docker/docker/pkg/stdcopy"
	"github.com/encodeous/wireline/state"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcnetwork "github.com/testcontainers/testcontainers-go/network"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	imageRepo   = "wireline-debug"
	imageTag    = "latest"
	ImageName   = imageRepo + ":" + imageTag
	CtlSocket   = "/run/wireline.sock"
	WaitTimeout = 1 * time.Minute
	firstPort   = 7000
)

func findRoot() (string, error) {
	wd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	// Traversing up to find go.mod
	rootDir := wd
	for {
		if _, err := os.Stat(filepath.Join(rootDir, "go.mod")); err == nil {
			return rootDir, nil
		}
		parent := filepath.Dir(rootDir)
		if parent == rootDir {
			return "", fmt.Errorf("could not find project root")
		}
		rootDir = parent
	}
}

// nodeReady waits until the node has finished Init and its control socket
// executes commands, so a test can drive it through `wireline ctl` right away.
func nodeReady() wait.Strategy {
	ctl := wait.ForExec([]string{"wireline", "ctl", "--socket", CtlSocket, "--timeout", "2s", "--", "links"}).
		WithExitCodeMatcher(func(code int) bool { return code == 0 }).
		WithPollInterval(200 * time.Millisecond)
	return wait.ForAll(
		wait.ForLog("wireline has been initialized"),
		ctl,
	).WithDeadline(30 * time.Second)
}

// Harness runs every node in its own container. Links are tcp connections
// across a private docker network, one listening side per cable.
type Harness struct {
	t        *testing.T
	mu       sync.Mutex
	ctx      context.Context
	Network  *testcontainers.DockerNetwork
	Nodes    map[string]testcontainers.Container
	Logs     *LogWatcher
	RootDir  string
	cfgs     map[string]*state.LocalCfg
	order    []string
	nextPort int
}

func NewHarness(t *testing.T) *Harness {
	ctx := context.Background()
	rootDir, err := findRoot()
	if err != nil {
		t.Fatal(err)
	}
	newNetwork, err := tcnetwork.New(ctx,
		tcnetwork.WithAttachable(),
		tcnetwork.WithDriver("bridge"))
	if err != nil {
		t.Fatal(err)
	}
	h := &Harness{
		t:        t,
		ctx:      ctx,
		Network:  newNetwork,
		Nodes:    make(map[string]testcontainers.Container),
		Logs:     NewLogWatcher(),
		RootDir:  rootDir,
		cfgs:     make(map[string]*state.LocalCfg),
		nextPort: firstPort,
	}
	t.Cleanup(func() {
		h.Cleanup()
	})
	return h
}

func (h *Harness) AddNode(name string) {
	h.cfgs[name] = &state.LocalCfg{
		Id:        state.NodeId(name),
		CtlSocket: CtlSocket,
	}
	h.order = append(h.order, name)
}

// AddLink cables a to b, a listens and b dials.
func (h *Harness) AddLink(a, b string) {
	port := h.nextPort
	h.nextPort++
	h.cfgs[a].Links = append(h.cfgs[a].Links, state.LinkId(fmt.Sprintf("tcp-listen://0.0.0.0:%d", port)))
	h.cfgs[b].Links = append(h.cfgs[b].Links, state.LinkId(fmt.Sprintf("tcp://%s:%d", a, port)))
}

// StartNodes writes every node config and starts the containers in parallel.
func (h *Harness) StartNodes() {
	dir := h.SetupTestDir()
	var wg sync.WaitGroup
	for _, name := range h.order {
		path := filepath.Join(dir, name+".yaml")
		if err := state.WriteNodeConfig(path, h.cfgs[name]); err != nil {
			h.t.Fatal(err)
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			h.StartNode(name, path)
		}()
	}
	wg.Wait()
}

func (h *Harness) StartNode(name string, nodeConfigPath string) testcontainers.Container {
	h.t.Logf("Starting node %s", name)
	req := testcontainers.ContainerRequest{
		Image:    ImageName,
		Networks: []string{h.Network.Name},
		NetworkAliases: map[string][]string{
			h.Network.Name: {name},
		},
		Files: []testcontainers.ContainerFile{
			{
				HostFilePath:      nodeConfigPath,
				ContainerFilePath: "/app/config/node.yaml",
				FileMode:          0644,
			},
		},
		WaitingFor: nodeReady(),
		LogConsumerCfg: &testcontainers.LogConsumerConfig{
			Consumers: []testcontainers.LogConsumer{
				&nodeLogConsumer{node: name, watcher: h.Logs},
			},
		},
		Name: strings.ReplaceAll(h.t.Name(), "/", "-") + "-" + name,
	}
	cont, err := testcontainers.GenericContainer(h.ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		h.t.Errorf("failed to start container %s: %v", name, err)
		return nil
	}
	h.mu.Lock()
	h.Nodes[name] = cont
	h.mu.Unlock()
	return cont
}

func (h *Harness) node(name string) testcontainers.Container {
	h.mu.Lock()
	defer h.mu.Unlock()
	c, ok := h.Nodes[name]
	if !ok {
		h.t.Fatalf("node %s not found", name)
	}
	return c
}

// StopNode stops the container of name, its peers see the tcp links drop.
func (h *Harness) StopNode(name string) {
	timeout := 5 * time.Second
	if err := h.node(name).Stop(h.ctx, &timeout); err != nil {
		h.t.Fatalf("failed to stop %s: %v", name, err)
	}
}

func (h *Harness) Cleanup() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for name, c := range h.Nodes {
		if err := c.Terminate(h.ctx); err != nil {
			h.t.Logf("failed to terminate container %s: %v", name, err)
		}
	}
	if err := h.Network.Remove(context.Background()); err != nil {
		h.t.Logf("failed to remove network: %v", err)
	}
}

func (h *Harness) Exec(nodeName string, cmd []string) (string, string, error) {
	code, r, err := h.node(nodeName).Exec(h.ctx, cmd)
	if err != nil {
		return "", "", err
	}

	stdoutBuf := new(bytes.Buffer)
	stderrBuf := new(bytes.Buffer)
	// Demultiplex the stream using stdcopy
	_, err = stdcopy.StdCopy(stdoutBuf, stderrBuf, r)
	if err != nil {
		return "", "", fmt.Errorf("failed to copy output: %w", err)
	}

	stdout := StripAnsi(stdoutBuf.String())
	stderr := StripAnsi(stderrBuf.String())
	if code != 0 {
		return stdout, stderr, fmt.Errorf("command exited with code %d: %s\nStderr: %s", code, stdout, stderr)
	}
	return stdout, stderr, nil
}

// Ctl runs a shell command on the node through its control socket.
func (h *Harness) Ctl(nodeName string, command string) string {
	h.t.Helper()
	cmd := append([]string{"wireline", "ctl", "--socket", CtlSocket, "--"}, strings.Fields(command)...)
	stdout, _, err := h.Exec(nodeName, cmd)
	if err != nil {
		h.t.Fatalf("%s: %s: %v", nodeName, command, err)
	}
	return stdout
}

// RouteCost returns the cost column of dest in the output of `table`.
func RouteCost(table, dest string) string {
	for _, line := range strings.Split(table, "\n") {
		f := strings.Fields(line)
		if len(f) >= 2 && f[0] == dest {
			return f[1]
		}
	}
	return ""
}

// WaitRoute polls the routing table of node until dest has cost.
func (h *Harness) WaitRoute(node, dest, cost string) {
	h.t.Helper()
	var table string
	ok := assertEventually(func() bool {
		table = h.Ctl(node, "table")
		return RouteCost(table, dest) == cost
	})
	if !ok {
		h.PrintLogs(node)
		h.t.Fatalf("%s: route to %s never reached cost %s, table:\n%s", node, dest, cost, table)
	}
}

func assertEventually(cond func() bool) bool {
	deadline := time.Now().Add(WaitTimeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(time.Second)
	}
	return false
}

func (h *Harness) WaitForLog(nodeName string, pattern string) {
	h.t.Helper()
	require.NoError(h.t, h.Logs.Wait(nodeName, pattern, WaitTimeout), "waiting for %q on %s", pattern, nodeName)
}

func (h *Harness) PrintLogs(nodeName string) {
	r, err := h.node(nodeName).Logs(h.ctx)
	if err != nil {
		h.t.Logf("failed to get logs for %s: %v", nodeName, err)
		return
	}
	buf := new(bytes.Buffer)
	_, _ = io.Copy(buf, r)
	h.t.Logf("Logs for %s:\n%s", nodeName, buf.String())
}

// SetupTestDir creates a directory for the current test run
func (h *Harness) SetupTestDir() string {
	dir := filepath.Join(h.RootDir, "e2e", "runs", h.t.Name())
	// Clean up previous run
	_ = os.RemoveAll(dir)
	if err := os.MkdirAll(dir, 0755); err != nil {
		h.t.Fatal(err)
	}
	return dir
}
