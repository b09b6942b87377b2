package main

import (
	"fmt"
	"strconv"

	"github.com/google/shlex"

	"github.com/whjrobotics/canfd/servo"
)

type verb int

const (
	verbNone verb = iota
	verbOnline
	verbState
	verbGet
	verbSet
	verbParams
	verbStatus
	verbMonitor
	verbLogStart
	verbLogStop
	verbHelp
	verbExit
)

// action is one parsed console command.
type action struct {
	verb    verb
	motor   servo.MotorID
	param   string
	value   float64
	dir     string
	seconds int
}

// defaultMonitorSeconds is how long `monitor` runs without an argument.
const defaultMonitorSeconds = 10

const usage = `commands:
  online <motor>              handshake with a motor
  state <motor>               read the joint state snapshot
  get <motor> <parameter>     read a parameter
  set <motor> <parameter> <value>
                              write a parameter (engineering units)
  params                      list the parameter catalog
  status                      show session states and counters
  monitor [seconds]           dump live bus traffic (default 10s)
  log start [dir]             start a CSV session log
  log stop                    stop the CSV session log
  help                        show this help
  exit                        quit`

// parseLine tokenizes one console line into an action.
func parseLine(line string) (action, error) {
	tokens, err := shlex.Split(line)
	if err != nil {
		return action{}, fmt.Errorf("parse: %w", err)
	}
	if len(tokens) == 0 {
		return action{verb: verbNone}, nil
	}
	switch tokens[0] {
	case "online":
		m, err := parseMotor(tokens, 2)
		if err != nil {
			return action{}, err
		}
		return action{verb: verbOnline, motor: m}, nil
	case "state":
		m, err := parseMotor(tokens, 2)
		if err != nil {
			return action{}, err
		}
		return action{verb: verbState, motor: m}, nil
	case "get":
		m, err := parseMotor(tokens, 3)
		if err != nil {
			return action{}, err
		}
		return action{verb: verbGet, motor: m, param: tokens[2]}, nil
	case "set":
		m, err := parseMotor(tokens, 4)
		if err != nil {
			return action{}, err
		}
		v, err := strconv.ParseFloat(tokens[3], 64)
		if err != nil {
			return action{}, fmt.Errorf("invalid value %q", tokens[3])
		}
		return action{verb: verbSet, motor: m, param: tokens[2], value: v}, nil
	case "params":
		return action{verb: verbParams}, nil
	case "status":
		return action{verb: verbStatus}, nil
	case "monitor":
		a := action{verb: verbMonitor, seconds: defaultMonitorSeconds}
		if len(tokens) > 1 {
			n, err := strconv.Atoi(tokens[1])
			if err != nil || n < 1 {
				return action{}, fmt.Errorf("invalid duration %q (seconds)", tokens[1])
			}
			a.seconds = n
		}
		return a, nil
	case "log":
		if len(tokens) < 2 {
			return action{}, fmt.Errorf("usage: log start [dir] | log stop")
		}
		switch tokens[1] {
		case "start":
			a := action{verb: verbLogStart}
			if len(tokens) > 2 {
				a.dir = tokens[2]
			}
			return a, nil
		case "stop":
			return action{verb: verbLogStop}, nil
		default:
			return action{}, fmt.Errorf("usage: log start [dir] | log stop")
		}
	case "help":
		return action{verb: verbHelp}, nil
	case "exit", "quit":
		return action{verb: verbExit}, nil
	default:
		return action{}, fmt.Errorf("unknown command %q (try help)", tokens[0])
	}
}

// parseMotor validates the token count for a verb and parses its motor id
// argument.
func parseMotor(tokens []string, want int) (servo.MotorID, error) {
	if len(tokens) < want {
		return 0, fmt.Errorf("usage: %s", usageFor(tokens[0]))
	}
	n, err := strconv.ParseUint(tokens[1], 10, 8)
	if err != nil || n == 0 {
		return 0, fmt.Errorf("invalid motor id %q (valid 1..255)", tokens[1])
	}
	return servo.MotorID(n), nil
}

func usageFor(verb string) string {
	switch verb {
	case "online":
		return "online <motor>"
	case "state":
		return "state <motor>"
	case "get":
		return "get <motor> <parameter>"
	case "set":
		return "set <motor> <parameter> <value>"
	default:
		return verb
	}
}
