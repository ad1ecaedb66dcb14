//go:build !linux

package capture

import (
	"fmt"
	"net"
	"runtime"
)

// OpenRaw reports that the raw backend is Linux-only; other platforms use
// the pcap backend.
func OpenRaw(iface *net.Interface) (Handle, error) {
	return nil, fmt.Errorf("raw capture backend is not supported on %s", runtime.GOOS)
}
