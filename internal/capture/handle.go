package capture

import (
	"errors"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

// ErrReadTimeout marks a read that produced nothing within the backend's
// polling window. It is the only read error the loop retries; the backends
// translate their native idle signals into it.
var ErrReadTimeout = errors.New("capture read timed out")

// Handle is the read side of a capture backend, common to the pcap and the
// Linux raw-socket implementations. Observation never injects packets, so
// there is no write side.
type Handle interface {
	// ReadPacketData blocks until the next frame, a timeout, or an error.
	ReadPacketData() (data []byte, ci gopacket.CaptureInfo, err error)

	LinkType() layers.LinkType

	// Close releases the backend. Closing unblocks a pending read, which
	// is how the process tears the capture goroutine down.
	Close()
}
