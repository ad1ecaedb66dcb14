package config

import (
	"fmt"
	"net"
	"slices"
	"strings"
)

var availableLogLevels = []string{"trace", "debug", "info", "warn", "error"}

var availableBackends = []string{"pcap", "raw"}

func validateIPAddr(v string) error {
	if net.ParseIP(v) == nil {
		return fmt.Errorf("invalid IP address %q", v)
	}
	return nil
}

func validateUint16(v int64) error {
	if v < 0 || v > 65535 {
		return fmt.Errorf("value %d out of range [0, 65535]", v)
	}
	return nil
}

func validateNonNegative(v int64) error {
	if v < 0 {
		return fmt.Errorf("value %d must not be negative", v)
	}
	return nil
}

func validateLogLevel(v string) error {
	if !slices.Contains(availableLogLevels, strings.ToLower(v)) {
		return fmt.Errorf(
			"invalid log level %q, available: %s",
			v, strings.Join(availableLogLevels, ", "),
		)
	}
	return nil
}

func validateBackend(v string) error {
	if !slices.Contains(availableBackends, v) {
		return fmt.Errorf(
			"invalid capture backend %q, available: %s",
			v, strings.Join(availableBackends, ", "),
		)
	}
	return nil
}
