package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/encodeous/wireline/state"
)

const (
	TagHello  = "HELLO"
	TagVector = "DV"
	TagData   = "DATA"

	Sep = "|"
)

var ErrMalformedPacket = errors.New("malformed packet")

// Packet is one line on a link.
type Packet interface {
	Encode() string
}

type Hello struct {
	Sender state.NodeId
}

func (h Hello) Encode() string {
	return TagHello + Sep + string(h.Sender)
}

// Vector is a distance vector advertisement. Costs are clamped to state.INF.
type Vector struct {
	Sender state.NodeId
	Costs  map[state.NodeId]int
}

type vectorCost struct {
	Cost *int `json:"cost"`
}

func (v Vector) Encode() string {
	out := make(map[state.NodeId]vectorCost, len(v.Costs))
	for d, c := range v.Costs {
		c := min(max(c, 0), state.INF)
		out[d] = vectorCost{Cost: &c}
	}
	// map keys are sorted by encoding/json, marshalling cannot fail
	body, _ := json.Marshal(out)
	return TagVector + Sep + string(v.Sender) + Sep + string(body)
}

// Data is the only forwarded packet. Payload is the last field and may contain the separator.
type Data struct {
	Src     state.NodeId
	Dst     state.NodeId
	TTL     int
	Payload string
}

func (d Data) Encode() string {
	return strings.Join([]string{TagData, string(d.Src), string(d.Dst), strconv.Itoa(d.TTL), d.Payload}, Sep)
}

// Parse decodes a single line received on a link.
func Parse(line string) (Packet, error) {
	tag, rest, _ := strings.Cut(line, Sep)
	switch tag {
	case TagHello:
		if rest == "" {
			return nil, fmt.Errorf("%w: hello without sender", ErrMalformedPacket)
		}
		return Hello{Sender: state.NodeId(rest)}, nil
	case TagVector:
		sender, body, ok := strings.Cut(rest, Sep)
		if !ok || sender == "" {
			return nil, fmt.Errorf("%w: vector without sender", ErrMalformedPacket)
		}
		costs, err := parseCosts(body)
		if err != nil {
			return nil, err
		}
		return Vector{Sender: state.NodeId(sender), Costs: costs}, nil
	case TagData:
		parts := strings.SplitN(rest, Sep, 4)
		if len(parts) != 4 || parts[0] == "" || parts[1] == "" {
			return nil, fmt.Errorf("%w: data packet has %d fields", ErrMalformedPacket, len(parts))
		}
		ttl, err := strconv.Atoi(parts[2])
		if err != nil {
			return nil, fmt.Errorf("%w: bad ttl %q", ErrMalformedPacket, parts[2])
		}
		return Data{
			Src:     state.NodeId(parts[0]),
			Dst:     state.NodeId(parts[1]),
			TTL:     ttl,
			Payload: parts[3],
		}, nil
	default:
		return nil, fmt.Errorf("%w: unknown tag %q", ErrMalformedPacket, tag)
	}
}

func parseCosts(body string) (map[state.NodeId]int, error) {
	var raw map[state.NodeId]vectorCost
	if err := json.Unmarshal([]byte(body), &raw); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedPacket, err)
	}
	costs := make(map[state.NodeId]int, len(raw))
	for d, c := range raw {
		if d == "" {
			continue
		}
		// a missing cost means the sender cannot reach d
		cost := state.INF
		if c.Cost != nil {
			cost = min(max(*c.Cost, 0), state.INF)
		}
		costs[d] = cost
	}
	return costs, nil
}
