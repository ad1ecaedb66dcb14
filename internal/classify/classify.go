// Package classify turns raw link-layer frames into aggregation
// observations. It is pure: no state, no side effects, and no panics on
// truncated or adversarial input — every failure comes back as a tagged
// error for the capture loop to log and drop.
package classify

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"

	"github.com/whoisthere/whoisthere/internal/stats"
)

const (
	// ipv4FixedLen and ipv6FixedLen are the minimum network headers a
	// frame must carry to classify. Options, extension headers and
	// payload beyond them are never read, so they need not be captured.
	ipv4FixedLen = 20
	ipv6FixedLen = 40
)

var (
	// ErrFrameTooSmall marks frames shorter than the Ethernet header.
	ErrFrameTooSmall = errors.New("frame too small")
	// ErrHeaderTooSmall marks frames whose network-layer header is
	// truncated: under 20 bytes for IPv4, under the fixed 40 for IPv6.
	ErrHeaderTooSmall = errors.New("network header too small")
	// ErrUnsupportedProtocol marks EtherTypes other than IPv4/IPv6.
	ErrUnsupportedProtocol = errors.New("unsupported protocol")
)

// Observation is one classified frame's contribution: which conversation
// it belongs to and how many bytes the network header declared.
type Observation struct {
	Pair stats.Pair
	// Length is the declared length taken from the header itself, not the
	// captured buffer size. The two families declare different things and
	// are deliberately not normalized: IPv4's total-length field covers
	// header plus payload, IPv6's payload-length field covers payload only.
	Length uint64
}

// Classify parses one Ethernet frame down to the network-layer addresses.
// The input buffer is not retained.
func Classify(data []byte) (Observation, error) {
	var eth layers.Ethernet
	if err := eth.DecodeFromBytes(data, gopacket.NilDecodeFeedback); err != nil {
		return Observation{}, fmt.Errorf("%w: %v", ErrFrameTooSmall, err)
	}

	// The network headers are read field-by-field from the fixed header
	// bytes rather than fully decoded: the total-length and payload-length
	// fields are recorded exactly as declared, even when the value is zero
	// or disagrees with the captured size.
	switch eth.EthernetType {
	case layers.EthernetTypeIPv4:
		p := eth.Payload
		if len(p) < ipv4FixedLen {
			return Observation{}, fmt.Errorf(
				"ipv4: %w: %d of %d bytes", ErrHeaderTooSmall, len(p), ipv4FixedLen,
			)
		}

		var src, dst [4]byte
		copy(src[:], p[12:16])
		copy(dst[:], p[16:20])
		return Observation{
			Pair:   stats.PairFrom4(src, dst),
			Length: uint64(binary.BigEndian.Uint16(p[2:4])),
		}, nil

	case layers.EthernetTypeIPv6:
		p := eth.Payload
		if len(p) < ipv6FixedLen {
			return Observation{}, fmt.Errorf(
				"ipv6: %w: %d of %d bytes", ErrHeaderTooSmall, len(p), ipv6FixedLen,
			)
		}

		var src, dst [16]byte
		copy(src[:], p[8:24])
		copy(dst[:], p[24:40])
		return Observation{
			Pair:   stats.PairFrom16(src, dst),
			Length: uint64(binary.BigEndian.Uint16(p[4:6])),
		}, nil

	default:
		return Observation{}, fmt.Errorf(
			"%w: ethertype 0x%04x", ErrUnsupportedProtocol, uint16(eth.EthernetType),
		)
	}
}

// FailureReason maps a classification error onto its stable taxonomy name,
// used as a metrics label. Unknown errors report as "other".
func FailureReason(err error) string {
	switch {
	case errors.Is(err, ErrFrameTooSmall):
		return "frame_too_small"
	case errors.Is(err, ErrHeaderTooSmall):
		return "header_too_small"
	case errors.Is(err, ErrUnsupportedProtocol):
		return "unsupported_protocol"
	default:
		return "other"
	}
}
