package stats

import (
	"fmt"
	"net/netip"
	"strings"
)

// keySeparator joins the two addresses in the textual form of a Pair.
// It is also the key format of the persisted document.
const keySeparator = " -> "

// Pair is an ordered (source, destination) address pair from a single
// address family. It is the aggregation key: direction matters, so
// (A, B) and (B, A) are distinct, and an IPv4 pair never equals an IPv6
// pair even when the textual forms look alike — netip.Addr carries the
// family in its representation, making cross-family equality structurally
// impossible rather than merely avoided.
//
// Pair is immutable and comparable; the zero Pair is invalid.
type Pair struct {
	src netip.Addr
	dst netip.Addr
}

// NewPair builds a Pair from two addresses of the same family.
func NewPair(src, dst netip.Addr) (Pair, error) {
	if !src.IsValid() || !dst.IsValid() {
		return Pair{}, fmt.Errorf("invalid address in pair %s -> %s", src, dst)
	}
	if src.Is4() != dst.Is4() {
		return Pair{}, fmt.Errorf("mixed address families in pair %s -> %s", src, dst)
	}
	return Pair{src: src, dst: dst}, nil
}

// PairFrom4 builds an IPv4 pair from raw header bytes.
func PairFrom4(src, dst [4]byte) Pair {
	return Pair{src: netip.AddrFrom4(src), dst: netip.AddrFrom4(dst)}
}

// PairFrom16 builds an IPv6 pair from raw header bytes.
func PairFrom16(src, dst [16]byte) Pair {
	return Pair{src: netip.AddrFrom16(src), dst: netip.AddrFrom16(dst)}
}

func (p Pair) Source() netip.Addr      { return p.src }
func (p Pair) Destination() netip.Addr { return p.dst }

// Is4 reports whether the pair belongs to the IPv4 family.
func (p Pair) Is4() bool { return p.src.Is4() }

// String renders the pair in the document key format.
func (p Pair) String() string {
	return p.src.String() + keySeparator + p.dst.String()
}

// ParsePair parses the textual document key form "<src> -> <dst>".
// The original format rule applies: a ':' in the source selects IPv6,
// otherwise IPv4; both sides must parse in that same family.
func ParsePair(s string) (Pair, error) {
	srcStr, dstStr, ok := strings.Cut(s, keySeparator)
	if !ok {
		return Pair{}, fmt.Errorf("invalid pair key %q", s)
	}

	src, err := netip.ParseAddr(srcStr)
	if err != nil {
		return Pair{}, fmt.Errorf("invalid source address in key %q: %w", s, err)
	}
	dst, err := netip.ParseAddr(dstStr)
	if err != nil {
		return Pair{}, fmt.Errorf("invalid destination address in key %q: %w", s, err)
	}

	p, err := NewPair(src, dst)
	if err != nil {
		return Pair{}, fmt.Errorf("invalid pair key %q: %w", s, err)
	}
	return p, nil
}
