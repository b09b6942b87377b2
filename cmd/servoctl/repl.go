package main

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/chzyer/readline"

	"github.com/whjrobotics/canfd"
	"github.com/whjrobotics/canfd/config"
	"github.com/whjrobotics/canfd/servo"
	"github.com/whjrobotics/canfd/servolog"
)

func repl(rl *readline.Instance, d *servo.Dispatcher, logs *servolog.Logger, mux *canfd.Mux, cfg config.Config) {
	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			if len(line) == 0 {
				break
			}
			continue
		} else if err == io.EOF {
			break
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		a, err := parseLine(line)
		if err != nil {
			fmt.Fprintln(rl.Stdout(), "error:", err)
			continue
		}
		if a.verb == verbExit {
			break
		}
		execute(rl.Stdout(), d, logs, mux, cfg, a)
	}
}

func execute(w io.Writer, d *servo.Dispatcher, logs *servolog.Logger, mux *canfd.Mux, cfg config.Config, a action) {
	ctx := context.Background()
	switch a.verb {
	case verbNone:

	case verbOnline:
		fw, err := d.Online(ctx, a.motor)
		if err != nil {
			fmt.Fprintln(w, "error:", err)
			return
		}
		fmt.Fprintf(w, "motor %d online, firmware %s\n", a.motor, fw)

	case verbState:
		st, err := d.State(ctx, a.motor)
		if err != nil {
			fmt.Fprintln(w, "error:", err)
			return
		}
		fmt.Fprintf(w, "motor %d: fault=%s voltage=%.2fV temp=%.1f°C enabled=%t brake=%t position=%.4f° current=%.0fmA\n",
			a.motor, st.Fault, st.Voltage, st.Temperature, st.Enabled, st.BrakeReleased, st.Position, st.Current)

	case verbGet:
		value, raw, err := d.Get(ctx, a.motor, a.param)
		if err != nil {
			fmt.Fprintln(w, "error:", err)
			return
		}
		p, _ := d.Codec().Registry().Lookup(a.param)
		if p.Unit != "" {
			fmt.Fprintf(w, "%s = %g %s (raw %d)\n", a.param, value, p.Unit, raw)
		} else {
			fmt.Fprintf(w, "%s = %g (raw %d)\n", a.param, value, raw)
		}

	case verbSet:
		if err := d.Set(ctx, a.motor, a.param, a.value); err != nil {
			fmt.Fprintln(w, "error:", err)
			return
		}
		fmt.Fprintf(w, "%s = %g ok\n", a.param, a.value)

	case verbParams:
		for _, p := range d.Codec().Registry().Parameters() {
			fmt.Fprintf(w, "%-28s 0x%02X %-4s %-3s %-6s %s\n",
				p.Name, p.Register, p.Type, p.Access, p.Unit, p.Description)
		}

	case verbStatus:
		ids := make([]int, 0, len(cfg.Motors))
		for id := range cfg.Motors {
			ids = append(ids, int(id))
		}
		sort.Ints(ids)
		for _, id := range ids {
			m := servo.MotorID(id)
			fmt.Fprintf(w, "motor %d (%s): %s\n", id, cfg.Motors[uint8(id)], d.SessionState(m))
		}
		fmt.Fprintf(w, "orphans=%d decode_errors=%d\n", d.Orphans(), d.DecodeErrors())

	case verbMonitor:
		monitor(w, mux, time.Duration(a.seconds)*time.Second)

	case verbLogStart:
		dir := a.dir
		if dir == "" {
			dir = cfg.LogDir
		}
		path, err := logs.StartFile(dir)
		if err != nil {
			fmt.Fprintln(w, "error:", err)
			return
		}
		fmt.Fprintf(w, "logging to %s\n", path)

	case verbLogStop:
		if err := logs.Stop(); err != nil {
			fmt.Fprintln(w, "error:", err)
			return
		}
		fmt.Fprintln(w, "logging stopped")

	case verbHelp:
		fmt.Fprintln(w, usage)
	}
}

// monitor dumps bus traffic arriving at this endpoint for the given duration,
// one line per frame, through its own mux subscription so the dispatcher
// keeps running undisturbed.
func monitor(w io.Writer, mux *canfd.Mux, d time.Duration) {
	frames, cancel := mux.Subscribe(nil, 64)
	defer cancel()
	fmt.Fprintf(w, "monitoring bus traffic for %s\n", d)
	timer := time.NewTimer(d)
	defer timer.Stop()
	for {
		select {
		case f, ok := <-frames:
			if !ok {
				fmt.Fprintln(w, "bus closed")
				return
			}
			fmt.Fprintf(w, "%s %s\n", time.Now().Format("15:04:05.000"), f)
		case <-timer.C:
			fmt.Fprintln(w, "monitor done")
			return
		}
	}
}
