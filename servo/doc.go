// Package servo implements the WHJ joint-servo control protocol over CAN FD.
//
// It provides the parameter catalog for the servo register map, a codec
// between typed commands and CAN FD frames, per-motor session state machines
// and a dispatcher that correlates requests with responses over a shared bus.
package servo
