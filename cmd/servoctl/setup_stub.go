//go:build !linux

package main

import (
	"errors"

	"github.com/whjrobotics/canfd/config"
)

func setupInterface(cfg config.Config) error {
	return errors.New("interface setup requires linux")
}
