// Package canfd provides core types and utilities for working with
// CAN FD (flexible data-rate) buses in Go.
//
// It includes:
//   - A core Frame type with validation, DLC padding and binary marshaling
//   - An in-memory loopback bus for tests and simulations
//   - A frame multiplexer with composable filters
//   - A Linux SocketCAN driver (linux-only) via raw syscalls
package canfd
