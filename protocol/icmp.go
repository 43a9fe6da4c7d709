package protocol

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/encodeous/wireline/state"
)

const TagIcmp = "ICMP"

type EchoKind string

const (
	EchoRequest  EchoKind = "ECHO_REQ"
	EchoReply    EchoKind = "ECHO_REP"
	TimeExceeded EchoKind = "TIME_EXC"
)

// Echo is a diagnostic message. Timestamps are unix microseconds.
type Echo struct {
	Kind     EchoKind
	Seq      uint32
	Sent     int64
	Received int64
	Router   state.NodeId
}

func (e Echo) Encode() string {
	fields := []string{TagIcmp, string(e.Kind), strconv.FormatUint(uint64(e.Seq), 10)}
	switch e.Kind {
	case EchoRequest:
		fields = append(fields, strconv.FormatInt(e.Sent, 10))
	case EchoReply:
		fields = append(fields, strconv.FormatInt(e.Sent, 10), strconv.FormatInt(e.Received, 10))
	case TimeExceeded:
		fields = append(fields, string(e.Router))
	}
	return strings.Join(fields, Sep)
}

func ParseEcho(payload string) (Echo, error) {
	parts := strings.Split(payload, Sep)
	if len(parts) < 4 || parts[0] != TagIcmp {
		return Echo{}, fmt.Errorf("%w: not a diagnostic message", ErrMalformedPacket)
	}
	seq, err := strconv.ParseUint(parts[2], 10, 32)
	if err != nil {
		return Echo{}, fmt.Errorf("%w: bad seq %q", ErrMalformedPacket, parts[2])
	}
	e := Echo{Kind: EchoKind(parts[1]), Seq: uint32(seq)}
	switch e.Kind {
	case EchoRequest:
		e.Sent, err = strconv.ParseInt(parts[3], 10, 64)
	case EchoReply:
		if len(parts) != 5 {
			return Echo{}, fmt.Errorf("%w: echo reply has %d fields", ErrMalformedPacket, len(parts))
		}
		e.Sent, err = strconv.ParseInt(parts[3], 10, 64)
		if err == nil {
			e.Received, err = strconv.ParseInt(parts[4], 10, 64)
		}
	case TimeExceeded:
		e.Router = state.NodeId(parts[3])
	default:
		return Echo{}, fmt.Errorf("%w: unknown diagnostic kind %q", ErrMalformedPacket, parts[1])
	}
	if err != nil {
		return Echo{}, fmt.Errorf("%w: %w", ErrMalformedPacket, err)
	}
	return e, nil
}

func IsEcho(payload string) bool {
	return strings.HasPrefix(payload, TagIcmp+Sep)
}

// IsEchoRequest reports whether payload is an echo request, without fully parsing it.
func IsEchoRequest(payload string) bool {
	return strings.HasPrefix(payload, TagIcmp+Sep+string(EchoRequest)+Sep)
}
