//go:build linux

package capture

import (
	"encoding/binary"
	"errors"
	"fmt"
	"net"
	"time"
	"unsafe"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"golang.org/x/sys/unix"
)

// rawHandle captures through an AF_PACKET socket using standard syscalls
// (via x/sys/unix), which works on all Linux architectures without libpcap.
type rawHandle struct {
	fd  int
	buf []byte
}

// OpenRaw opens a raw socket bound to the interface.
func OpenRaw(iface *net.Interface) (Handle, error) {
	proto := htons(unix.ETH_P_ALL)

	fd, err := unix.Socket(unix.AF_PACKET, unix.SOCK_RAW, int(proto))
	if err != nil {
		return nil, fmt.Errorf("open raw socket: %w", err)
	}

	sll := &unix.SockaddrLinklayer{
		Protocol: proto,
		Ifindex:  iface.Index,
	}
	if err := unix.Bind(fd, sll); err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("bind raw socket to %s: %w", iface.Name, err)
	}

	return &rawHandle{
		fd:  fd,
		buf: make([]byte, 65535),
	}, nil
}

func (h *rawHandle) ReadPacketData() ([]byte, gopacket.CaptureInfo, error) {
	n, _, err := unix.Recvfrom(h.fd, h.buf, 0)
	if err != nil {
		if errors.Is(err, unix.EINTR) || errors.Is(err, unix.EAGAIN) {
			return nil, gopacket.CaptureInfo{}, ErrReadTimeout
		}
		return nil, gopacket.CaptureInfo{}, err
	}

	data := make([]byte, n)
	copy(data, h.buf[:n])

	ci := gopacket.CaptureInfo{
		Timestamp:     time.Now(),
		CaptureLength: n,
		Length:        n,
	}

	return data, ci, nil
}

func (h *rawHandle) LinkType() layers.LinkType {
	return layers.LinkTypeEthernet
}

func (h *rawHandle) Close() {
	_ = unix.Close(h.fd)
}

// --- Endian Utils ---

func nativeEndian() binary.ByteOrder {
	buf := [2]byte{}
	*(*uint16)(unsafe.Pointer(&buf[0])) = uint16(0xABCD)
	switch buf {
	case [2]byte{0xCD, 0xAB}:
		return binary.LittleEndian
	case [2]byte{0xAB, 0xCD}:
		return binary.BigEndian
	default:
		panic("could not determine native endianness")
	}
}

func htons(v uint16) uint16 {
	if nativeEndian() == binary.LittleEndian {
		return (v << 8) | (v >> 8)
	}
	return v
}
