package classify

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ethFrame(etherType uint16, payload []byte) []byte {
	frame := make([]byte, 14, 14+len(payload))
	copy(frame[0:6], []byte{0xaa, 0xbb, 0xcc, 0x00, 0x00, 0x01})
	copy(frame[6:12], []byte{0xaa, 0xbb, 0xcc, 0x00, 0x00, 0x02})
	binary.BigEndian.PutUint16(frame[12:14], etherType)
	return append(frame, payload...)
}

func ipv4Packet(src, dst [4]byte, totalLength uint16, payload []byte) []byte {
	header := make([]byte, 20, 20+len(payload))
	header[0] = 0x45 // version 4, IHL 5
	binary.BigEndian.PutUint16(header[2:4], totalLength)
	header[8] = 64 // TTL
	header[9] = 6  // TCP
	copy(header[12:16], src[:])
	copy(header[16:20], dst[:])
	return append(header, payload...)
}

func ipv6Packet(src, dst [16]byte, payloadLength uint16, payload []byte) []byte {
	header := make([]byte, 40, 40+len(payload))
	header[0] = 0x60 // version 6
	binary.BigEndian.PutUint16(header[4:6], payloadLength)
	header[6] = 6   // next header: TCP
	header[7] = 64  // hop limit
	copy(header[8:24], src[:])
	copy(header[24:40], dst[:])
	return append(header, payload...)
}

func TestClassifyIPv4(t *testing.T) {
	src := [4]byte{192, 168, 0, 10}
	dst := [4]byte{8, 8, 8, 8}

	// Declared total length deliberately larger than the captured buffer:
	// the declared value wins over the physical size.
	frame := ethFrame(0x0800, ipv4Packet(src, dst, 100, nil))

	obs, err := Classify(frame)
	require.NoError(t, err)
	assert.Equal(t, "192.168.0.10 -> 8.8.8.8", obs.Pair.String())
	assert.Equal(t, uint64(100), obs.Length)
	assert.True(t, obs.Pair.Is4())
}

func TestClassifyIPv6(t *testing.T) {
	src := [16]byte{0x20, 0x01, 0x0d, 0xb8, 15: 0x01}
	dst := [16]byte{0x20, 0x01, 0x0d, 0xb8, 15: 0x02}

	frame := ethFrame(0x86DD, ipv6Packet(src, dst, 60, nil))

	obs, err := Classify(frame)
	require.NoError(t, err)
	assert.Equal(t, "2001:db8::1 -> 2001:db8::2", obs.Pair.String())
	// IPv6 declares payload length only; it is not normalized against the
	// IPv4 header-inclusive convention.
	assert.Equal(t, uint64(60), obs.Length)
	assert.False(t, obs.Pair.Is4())
}

func TestClassifyIPv4DeclaredLengthVerbatim(t *testing.T) {
	src := [4]byte{10, 0, 0, 1}
	dst := [4]byte{10, 0, 0, 2}

	tcs := []struct {
		name        string
		totalLength uint16
	}{
		// A zero total-length field (TSO-style capture) is recorded as
		// zero, never rewritten to the captured buffer size.
		{"zero total length", 0},
		{"total length below header size", 8},
		{"total length beyond capture", 1400},
	}

	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			frame := ethFrame(0x0800, ipv4Packet(src, dst, tc.totalLength, nil))

			obs, err := Classify(frame)
			require.NoError(t, err)
			assert.Equal(t, "10.0.0.1 -> 10.0.0.2", obs.Pair.String())
			assert.Equal(t, uint64(tc.totalLength), obs.Length)
		})
	}
}

func TestClassifyIPv6ExtensionNextHeader(t *testing.T) {
	src := [16]byte{0x20, 0x01, 0x0d, 0xb8, 15: 0x01}
	dst := [16]byte{0x20, 0x01, 0x0d, 0xb8, 15: 0x02}

	// Only the fixed 40-byte header is captured; the hop-by-hop extension
	// it announces is not. Classification reads nothing past the fixed
	// header, so the frame still yields its declared payload length.
	packet := ipv6Packet(src, dst, 60, nil)
	packet[6] = 0 // next header: hop-by-hop options

	obs, err := Classify(ethFrame(0x86DD, packet))
	require.NoError(t, err)
	assert.Equal(t, "2001:db8::1 -> 2001:db8::2", obs.Pair.String())
	assert.Equal(t, uint64(60), obs.Length)
}

func TestClassifyFailures(t *testing.T) {
	v6src := [16]byte{0x20, 0x01, 0x0d, 0xb8, 15: 0x01}
	v6dst := [16]byte{0x20, 0x01, 0x0d, 0xb8, 15: 0x02}

	tcs := []struct {
		name   string
		frame  []byte
		expect error
		reason string
	}{
		{"zero length", nil, ErrFrameTooSmall, "frame_too_small"},
		{"short ethernet", []byte{0xaa, 0xbb, 0xcc}, ErrFrameTooSmall, "frame_too_small"},
		{
			"ipv4 truncated header",
			ethFrame(0x0800, []byte{0x45, 0x00, 0x00}),
			ErrHeaderTooSmall,
			"header_too_small",
		},
		{
			"ipv6 under 40 bytes",
			ethFrame(0x86DD, ipv6Packet(v6src, v6dst, 0, nil)[:39]),
			ErrHeaderTooSmall,
			"header_too_small",
		},
		{
			"arp",
			ethFrame(0x0806, make([]byte, 28)),
			ErrUnsupportedProtocol,
			"unsupported_protocol",
		},
		{
			"unknown ethertype",
			ethFrame(0x88B5, make([]byte, 40)),
			ErrUnsupportedProtocol,
			"unsupported_protocol",
		},
	}

	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Classify(tc.frame)
			require.Error(t, err)
			assert.ErrorIs(t, err, tc.expect)
			assert.Equal(t, tc.reason, FailureReason(err))
		})
	}
}

func TestFailureReasonUnknown(t *testing.T) {
	assert.Equal(t, "other", FailureReason(assert.AnError))
}
