package capture

import (
	"fmt"
	"net"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcap"
)

// snapLen bounds captured bytes per frame. Classification reads at most
// the Ethernet header plus one IPv6 fixed header, but a little headroom
// costs nothing.
const snapLen = 3200

// pcapHandle adapts *pcap.Handle to Handle, mapping libpcap's timeout
// signal onto ErrReadTimeout.
type pcapHandle struct {
	inner *pcap.Handle
}

// OpenPcap activates a live pcap capture on the interface.
func OpenPcap(iface *net.Interface) (Handle, error) {
	iHandle, err := pcap.NewInactiveHandle(iface.Name)
	if err != nil {
		return nil, fmt.Errorf("pcap inactive handle for %s: %w", iface.Name, err)
	}

	if err := iHandle.SetSnapLen(snapLen); err != nil {
		iHandle.CleanUp()
		return nil, fmt.Errorf("pcap snaplen: %w", err)
	}

	// In immediate mode, packets are delivered to the application as soon
	// as they arrive, overriding any buffering timeout.
	if err := iHandle.SetImmediateMode(true); err != nil {
		iHandle.CleanUp()
		return nil, fmt.Errorf("pcap immediate mode: %w", err)
	}

	handle, err := iHandle.Activate()
	if err != nil {
		iHandle.CleanUp()
		return nil, fmt.Errorf("pcap activate on %s: %w", iface.Name, err)
	}

	return &pcapHandle{inner: handle}, nil
}

func (h *pcapHandle) ReadPacketData() ([]byte, gopacket.CaptureInfo, error) {
	data, ci, err := h.inner.ReadPacketData()
	if err == pcap.NextErrorTimeoutExpired {
		return nil, ci, ErrReadTimeout
	}
	return data, ci, err
}

func (h *pcapHandle) LinkType() layers.LinkType {
	return h.inner.LinkType()
}

func (h *pcapHandle) Close() {
	h.inner.Close()
}
