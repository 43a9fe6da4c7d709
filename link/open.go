package link

import (
	"context"
	"fmt"
	"io"
	"net"
	"strings"
	"time"

	"github.com/encodeous/wireline/state"
	"go.bug.st/serial"
)

const (
	SchemeTcp       = "tcp://"
	SchemeTcpListen = "tcp-listen://"
)

// Dialer opens the byte stream behind a link id.
type Dialer func(ctx context.Context, id state.LinkId, baud int) (io.ReadWriteCloser, error)

// Dial opens id as a serial device, or as a tcp socket for tcp:// and
// tcp-listen:// addresses. tcp-listen accepts exactly one peer. Errors wrap
// ErrLinkUnavailable.
func Dial(ctx context.Context, id state.LinkId, baud int) (io.ReadWriteCloser, error) {
	s := string(id)
	var (
		rw  io.ReadWriteCloser
		err error
	)
	if addr, ok := strings.CutPrefix(s, SchemeTcp); ok {
		rw, err = dialTcp(ctx, addr)
	} else if addr, ok := strings.CutPrefix(s, SchemeTcpListen); ok {
		rw, err = acceptOne(ctx, addr)
	} else {
		rw, err = openSerial(s, baud)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrLinkUnavailable, id, err)
	}
	return rw, nil
}

func openSerial(name string, baud int) (io.ReadWriteCloser, error) {
	if baud <= 0 {
		baud = state.DefaultBaud
	}
	port, err := serial.Open(name, &serial.Mode{BaudRate: baud})
	if err != nil {
		return nil, err
	}
	// reads poll so the reader notices when the link is closed
	if err := port.SetReadTimeout(state.LinkReadTimeout); err != nil {
		_ = port.Close()
		return nil, err
	}
	return port, nil
}

// dialTcp retries a refused connection a bounded number of times, the peer
// may still be starting its listener.
func dialTcp(ctx context.Context, addr string) (net.Conn, error) {
	var d net.Dialer
	var err error
	for i := range max(state.TcpDialAttempts, 1) {
		if i > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(state.TcpDialBackoff):
			}
		}
		var conn net.Conn
		conn, err = d.DialContext(ctx, "tcp", addr)
		if err == nil {
			return conn, nil
		}
	}
	return nil, err
}

func acceptOne(ctx context.Context, addr string) (net.Conn, error) {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	defer ln.Close()
	stop := context.AfterFunc(ctx, func() {
		_ = ln.Close()
	})
	defer stop()
	conn, err := ln.Accept()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, err
	}
	return conn, nil
}

// Ports lists the serial devices present on this machine.
func Ports() ([]string, error) {
	return serial.GetPortsList()
}
