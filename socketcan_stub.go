//go:build !linux

package canfd

import "errors"

// DialSocketCAN is only available on Linux.
func DialSocketCAN(iface string) (Bus, error) {
	return nil, errors.New("canfd: socketcan requires linux")
}
