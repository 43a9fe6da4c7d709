package protocol

import (
	"errors"
	"fmt"
	"hash/crc32"
	"strconv"
	"strings"

	"github.com/encodeous/wireline/state"
)

const TagTransport = "TRA"

type SegmentKind string

const (
	SegSyn    SegmentKind = "SYN"
	SegData   SegmentKind = "DAT"
	SegAck    SegmentKind = "ACK"
	SegSynAck SegmentKind = "SAK"
)

func (k SegmentKind) Valid() bool {
	switch k {
	case SegSyn, SegData, SegAck, SegSynAck:
		return true
	}
	return false
}

var ErrChecksumMismatch = errors.New("checksum mismatch")

// Segment is a reliable transport frame carried as a Data payload.
type Segment struct {
	SrcPort  int
	DstPort  int
	Seq      uint32
	Checksum uint32
	Kind     SegmentKind
	Body     string
}

var (
	bodyEscaper   = strings.NewReplacer(`\`, `\\`, "\n", `\n`, "\r", `\r`)
	bodyUnescaper = strings.NewReplacer(`\\`, `\`, `\n`, "\n", `\r`, "\r")
)

// ComputeChecksum is CRC32 (IEEE) over src|dst|seq|kind|body, where src and
// dst are the node ids carried by the enclosing Data packet. The body is
// hashed unescaped.
func (s Segment) ComputeChecksum(src, dst state.NodeId) uint32 {
	return crc32.ChecksumIEEE([]byte(fmt.Sprintf("%s|%s|%d|%s|%s", src, dst, s.Seq, s.Kind, s.Body)))
}

// Seal sets the checksum for a segment travelling from src to dst.
func (s *Segment) Seal(src, dst state.NodeId) {
	s.Checksum = s.ComputeChecksum(src, dst)
}

func (s Segment) Verify(src, dst state.NodeId) error {
	if got := s.ComputeChecksum(src, dst); got != s.Checksum {
		return fmt.Errorf("%w: carried %d, computed %d", ErrChecksumMismatch, s.Checksum, got)
	}
	return nil
}

func (s Segment) Encode() string {
	return strings.Join([]string{
		TagTransport,
		strconv.Itoa(s.SrcPort),
		strconv.Itoa(s.DstPort),
		strconv.FormatUint(uint64(s.Seq), 10),
		strconv.FormatUint(uint64(s.Checksum), 10),
		string(s.Kind),
		bodyEscaper.Replace(s.Body),
	}, Sep)
}

func (s Segment) String() string {
	return fmt.Sprintf("%s seq=%d chk=%d len=%d", s.Kind, s.Seq, s.Checksum, len(s.Body))
}

// ParseSegment decodes a transport payload. The checksum is not verified.
func ParseSegment(payload string) (Segment, error) {
	parts := strings.SplitN(payload, Sep, 7)
	if len(parts) != 7 || parts[0] != TagTransport {
		return Segment{}, fmt.Errorf("%w: not a transport segment", ErrMalformedPacket)
	}
	src, err1 := strconv.Atoi(parts[1])
	dst, err2 := strconv.Atoi(parts[2])
	seq, err3 := strconv.ParseUint(parts[3], 10, 32)
	chk, err4 := strconv.ParseUint(parts[4], 10, 32)
	if err := errors.Join(err1, err2, err3, err4); err != nil {
		return Segment{}, fmt.Errorf("%w: %w", ErrMalformedPacket, err)
	}
	kind := SegmentKind(parts[5])
	if !kind.Valid() {
		return Segment{}, fmt.Errorf("%w: unknown segment kind %q", ErrMalformedPacket, parts[5])
	}
	return Segment{
		SrcPort:  src,
		DstPort:  dst,
		Seq:      uint32(seq),
		Checksum: uint32(chk),
		Kind:     kind,
		Body:     bodyUnescaper.Replace(parts[6]),
	}, nil
}

func IsSegment(payload string) bool {
	return strings.HasPrefix(payload, TagTransport+Sep)
}
