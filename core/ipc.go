package core

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/encodeous/wireline/state"
)

// ControlServer accepts commands from `wireline ctl` on a unix socket and runs
// them on the main loop. Each connection carries one command line, the reply
// is terminated by a NUL byte.
type ControlServer struct {
	ln net.Listener
	wg sync.WaitGroup
}

func (c *ControlServer) Init(s *state.State) error {
	if s.CtlSocket == "" {
		return nil
	}
	_ = os.Remove(s.CtlSocket)
	ln, err := net.Listen("unix", s.CtlSocket)
	if err != nil {
		return fmt.Errorf("control socket: %w", err)
	}
	c.ln = ln
	c.wg.Add(1)
	go c.serve(s)
	s.Log.Info("control socket listening", "path", s.CtlSocket)
	return nil
}

func (c *ControlServer) serve(s *state.State) {
	defer c.wg.Done()
	for {
		conn, err := c.ln.Accept()
		if err != nil {
			if !errors.Is(err, net.ErrClosed) {
				s.Log.Warn("control socket accept failed", "error", err)
			}
			return
		}
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			defer conn.Close()
			if err := HandleControl(s, bufio.NewReadWriter(bufio.NewReader(conn), bufio.NewWriter(conn))); err != nil {
				s.Log.Debug("control request failed", "error", err)
			}
		}()
	}
}

// HandleControl runs one command read from rw and writes its output.
func HandleControl(s *state.State, rw *bufio.ReadWriter) error {
	line, err := rw.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	line = strings.TrimSpace(line)
	out := &bytes.Buffer{}
	if cmd, _, _ := strings.Cut(line, " "); cmd == "exit" || cmd == "quit" {
		out.WriteString("exit is only available in the interactive shell\n")
	} else {
		_, err = s.DispatchWait(func(s *state.State) (any, error) {
			return nil, Exec(s, line, out)
		})
		if err != nil {
			fmt.Fprintf(out, "error: %v\n", err)
		}
	}
	out.WriteByte(0)
	if _, err := rw.Write(out.Bytes()); err != nil {
		return err
	}
	return rw.Flush()
}

// IPCExec sends line to the node listening on socket and returns its output.
func IPCExec(socket, line string, timeout time.Duration) (string, error) {
	conn, err := net.DialTimeout("unix", socket, timeout)
	if err != nil {
		return "", err
	}
	defer conn.Close()
	rw := bufio.NewReadWriter(bufio.NewReader(conn), bufio.NewWriter(conn))

	_, err = rw.WriteString(line + "\n")
	if err != nil {
		return "", err
	}
	err = rw.Flush()
	if err != nil {
		return "", err
	}

	res, err := rw.ReadString(0)
	if err != nil && err != io.EOF {
		return "", err
	}
	return strings.TrimSuffix(res, "\x00"), nil
}

func (c *ControlServer) Cleanup(s *state.State) error {
	if c.ln == nil {
		return nil
	}
	err := c.ln.Close()
	c.wg.Wait()
	_ = os.Remove(s.CtlSocket)
	return err
}
