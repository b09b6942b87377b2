//go:build linux

package main

import (
	"github.com/whjrobotics/canfd"
	"github.com/whjrobotics/canfd/config"
)

// setupInterface configures the CAN interface for FD operation and brings
// it up. Requires CAP_NET_ADMIN.
func setupInterface(cfg config.Config) error {
	if err := canfd.SetInterfaceDown(cfg.Interface); err != nil {
		return canfd.RequireRootOrCapNetAdmin(err)
	}
	opts := canfd.LinuxCANInterfaceOptions{
		Bitrate:     &cfg.Bitrate,
		DataBitrate: &cfg.DataBitrate,
	}
	if err := canfd.ConfigureLinuxCANInterface(cfg.Interface, opts); err != nil {
		return err
	}
	return canfd.RequireRootOrCapNetAdmin(canfd.SetInterfaceUp(cfg.Interface))
}
