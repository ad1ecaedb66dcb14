// Package system locates the capture interface on the host.
package system

import (
	"fmt"
	"net"

	"github.com/jackpal/gateway"
)

// FindInterface resolves the named interface, or discovers the default
// one when name is empty.
func FindInterface(name string) (*net.Interface, error) {
	if name != "" {
		iface, err := net.InterfaceByName(name)
		if err != nil {
			return nil, fmt.Errorf("no such interface %q: %w", name, err)
		}
		return iface, nil
	}
	return findDefaultInterface()
}

// findDefaultInterface discovers the interface that routes to the default
// gateway, falling back to a UDP dial probe when gateway discovery is
// unavailable on the platform.
func findDefaultInterface() (*net.Interface, error) {
	if ip, err := gateway.DiscoverInterface(); err == nil {
		if iface, err := interfaceByIP(ip); err == nil {
			return iface, nil
		}
	}

	ip, err := probeLocalIP()
	if err != nil {
		return nil, err
	}
	return interfaceByIP(ip)
}

// probeLocalIP dials well-known public resolvers over UDP to learn which
// local address the host would route through. Nothing is sent on the wire.
func probeLocalIP() (net.IP, error) {
	dnsServers := []string{
		"8.8.8.8:53",
		"8.8.4.4:53",
		"1.1.1.1:53",
		"1.0.0.1:53",
		"9.9.9.9:53",
	}

	var conn net.Conn
	var err error
	for _, server := range dnsServers {
		conn, err = net.Dial("udp", server)
		if err == nil {
			break
		}
	}
	if err != nil {
		return nil, fmt.Errorf(
			"could not dial any public DNS to determine default interface: %w", err,
		)
	}
	defer func() { _ = conn.Close() }()

	localAddr, ok := conn.LocalAddr().(*net.UDPAddr)
	if !ok {
		return nil, fmt.Errorf("could not determine local address from UDP connection")
	}
	return localAddr.IP, nil
}

func interfaceByIP(ip net.IP) (*net.Interface, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, fmt.Errorf("could not list network interfaces: %w", err)
	}

	for i := range ifaces {
		addrs, err := ifaces[i].Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			if ipnet, ok := addr.(*net.IPNet); ok && ipnet.IP.Equal(ip) {
				return &ifaces[i], nil
			}
		}
	}

	return nil, fmt.Errorf("no interface carries local IP %s", ip)
}
