package servo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/whjrobotics/canfd"
	"github.com/whjrobotics/canfd/trace"
)

// DefaultRequestTimeout bounds how long a request waits for its response.
const DefaultRequestTimeout = time.Second

// Command completion outcomes, as recorded by session logs.
const (
	OutcomeOK       = "ok"
	OutcomeTimeout  = "timeout"
	OutcomeBusy     = "busy"
	OutcomeOffline  = "offline"
	OutcomeCanceled = "canceled"
	OutcomeError    = "error"
)

// Completion describes a finished command for observers such as session logs.
type Completion struct {
	Time      time.Time
	Motor     MotorID
	Kind      CommandKind
	Parameter string
	Raw       int32
	Value     float64
	Outcome   string
}

// Recorder observes command completions in completion order.
type Recorder interface {
	RecordCompletion(Completion)
}

// DispatcherConfig carries optional dispatcher settings. The zero value
// selects defaults everywhere.
type DispatcherConfig struct {
	// Timeout is the per-request response deadline.
	Timeout time.Duration
	// OfflineThreshold is the number of consecutive timeouts that demote an
	// Online session to Offline.
	OfflineThreshold int
	// Models maps motor ids to hardware models for current scaling.
	Models map[MotorID]Model
	// Mux, when set, supplies inbound frames through a subscription instead
	// of Bus.Receive, leaving further subscriptions free for other consumers
	// such as a bus monitor. The mux must be reading from the same bus.
	Mux *canfd.Mux
	// Logger receives listener-path diagnostics. Defaults to a discard logger.
	Logger *slog.Logger
	// Tracer receives protocol events. Defaults to a no-op tracer.
	Tracer trace.Tracer
	// Recorder observes command completions, e.g. a CSV session log.
	Recorder Recorder
}

type pendingKey struct {
	motor MotorID
	seq   uint8
}

// Dispatcher owns a Bus and mediates all request/response traffic with the
// motors on it. Sessions are created lazily per motor; at most one request
// per motor is in flight at a time. A single background listener decodes
// incoming frames and hands each response to the waiter registered under
// (motor, seq). Responses that match no waiter are counted as orphans, never
// an error.
type Dispatcher struct {
	bus       canfd.Bus
	codec     *Codec
	timeout   time.Duration
	threshold int
	logger    *slog.Logger
	tracer    trace.Tracer

	frames    <-chan canfd.Frame // non-nil when listening through a mux
	cancelSub func()

	recMu    sync.Mutex
	recorder Recorder

	mu       sync.Mutex
	sessions map[MotorID]*Session
	pending  map[pendingKey]chan Response
	closed   bool

	orphans      atomic.Uint64
	decodeErrors atomic.Uint64

	done chan struct{}
}

// NewDispatcher creates a dispatcher over the bus and starts its listener.
// A nil registry selects DefaultRegistry.
func NewDispatcher(bus canfd.Bus, registry *Registry, cfg DispatcherConfig) *Dispatcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultRequestTimeout
	}
	if cfg.OfflineThreshold <= 0 {
		cfg.OfflineThreshold = DefaultOfflineThreshold
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if cfg.Tracer == nil {
		cfg.Tracer = trace.NoopTracer{}
	}
	d := &Dispatcher{
		bus:       bus,
		codec:     NewCodec(registry, cfg.Models),
		timeout:   cfg.Timeout,
		threshold: cfg.OfflineThreshold,
		logger:    cfg.Logger,
		tracer:    cfg.Tracer,
		recorder:  cfg.Recorder,
		sessions:  make(map[MotorID]*Session),
		pending:   make(map[pendingKey]chan Response),
		done:      make(chan struct{}),
	}
	if cfg.Mux != nil {
		// Motor-originated classes all have bit 8 of the arbitration id set.
		d.frames, d.cancelSub = cfg.Mux.Subscribe(canfd.ByMask(0x100, 0x100), 64)
	}
	go d.listen()
	return d
}

// Codec returns the codec the dispatcher encodes with.
func (d *Dispatcher) Codec() *Codec { return d.codec }

// Online performs the handshake with a motor, moving its session through
// Handshaking to Online. It is the only operation allowed while Offline.
func (d *Dispatcher) Online(ctx context.Context, motor MotorID) (FirmwareVersion, error) {
	resp, err := d.do(ctx, Command{Motor: motor, Kind: CmdOnline})
	if err != nil {
		return FirmwareVersion{}, err
	}
	if resp.Kind != RespOnline {
		return FirmwareVersion{}, fmt.Errorf("servo: unexpected %v reply to handshake", resp.Kind)
	}
	return resp.Firmware, nil
}

// Get reads a named parameter, returning the engineering value and the raw
// register counts.
func (d *Dispatcher) Get(ctx context.Context, motor MotorID, parameter string) (float64, int32, error) {
	resp, err := d.do(ctx, Command{Motor: motor, Kind: CmdGet, Parameter: parameter})
	if err != nil {
		return 0, 0, err
	}
	if resp.Kind != RespValue {
		return 0, 0, fmt.Errorf("servo: unexpected %v reply to get", resp.Kind)
	}
	return resp.Value, resp.Raw, nil
}

// Set writes a named parameter from an engineering value.
func (d *Dispatcher) Set(ctx context.Context, motor MotorID, parameter string, value float64) error {
	resp, err := d.do(ctx, Command{Motor: motor, Kind: CmdSet, Parameter: parameter, Value: value})
	if err != nil {
		return err
	}
	if resp.Kind != RespSetAck {
		return fmt.Errorf("servo: unexpected %v reply to set", resp.Kind)
	}
	return nil
}

// State requests a joint state snapshot.
func (d *Dispatcher) State(ctx context.Context, motor MotorID) (JointState, error) {
	resp, err := d.do(ctx, Command{Motor: motor, Kind: CmdState})
	if err != nil {
		return JointState{}, err
	}
	if resp.Kind != RespState {
		return JointState{}, fmt.Errorf("servo: unexpected %v reply to state request", resp.Kind)
	}
	return resp.State, nil
}

// SessionState reports the lifecycle state of a motor. Motors never spoken
// to are Offline.
func (d *Dispatcher) SessionState(motor MotorID) SessionState {
	d.mu.Lock()
	s, ok := d.sessions[motor]
	d.mu.Unlock()
	if !ok {
		return StateOffline
	}
	return s.State()
}

// Orphans reports how many responses arrived with no pending request.
func (d *Dispatcher) Orphans() uint64 { return d.orphans.Load() }

// DecodeErrors reports how many received frames could not be decoded.
func (d *Dispatcher) DecodeErrors() uint64 { return d.decodeErrors.Load() }

// Close shuts the dispatcher down. Outstanding waiters fail with ErrClosed.
func (d *Dispatcher) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		<-d.done
		return nil
	}
	d.closed = true
	d.mu.Unlock()
	err := d.bus.Close()
	if d.cancelSub != nil {
		d.cancelSub()
	}
	<-d.done
	return err
}

func (d *Dispatcher) session(motor MotorID) *Session {
	d.mu.Lock()
	defer d.mu.Unlock()
	s, ok := d.sessions[motor]
	if !ok {
		s = NewSession(motor, d.threshold)
		d.sessions[motor] = s
	}
	return s
}

func (d *Dispatcher) do(ctx context.Context, cmd Command) (Response, error) {
	if err := cmd.Motor.Validate(); err != nil {
		return Response{}, err
	}
	s := d.session(cmd.Motor)
	seq, err := s.begin(cmd.Kind)
	if err != nil {
		d.record(cmd, Response{}, outcomeForError(err))
		return Response{}, err
	}
	if cmd.Kind == CmdOnline {
		d.noteState(cmd.Motor, StateHandshaking)
	}
	frame, err := d.codec.Encode(cmd, seq)
	if err != nil {
		s.release()
		d.record(cmd, Response{}, OutcomeError)
		return Response{}, err
	}

	resp, err := d.exchange(ctx, pendingKey{cmd.Motor, seq}, frame)
	switch {
	case err == nil && resp.Err == nil:
		s.succeed()
		if cmd.Kind == CmdOnline {
			d.noteState(cmd.Motor, StateOnline)
		}
		d.record(cmd, resp, OutcomeOK)
		return resp, nil

	case err == nil:
		// The motor answered, so the session is healthy; the reply itself
		// carries a protocol problem.
		s.succeed()
		if cmd.Kind == CmdOnline {
			d.noteState(cmd.Motor, StateOnline)
		}
		d.record(cmd, resp, OutcomeError)
		return resp, resp.Err

	case errors.Is(err, ErrTimeout):
		offline := s.fail()
		d.logger.Warn("request timed out",
			"motor", uint8(cmd.Motor),
			"kind", cmd.Kind.String(),
			"failures", s.Failures(),
		)
		if offline {
			d.logger.Info("motor offline", "motor", uint8(cmd.Motor))
			d.noteState(cmd.Motor, StateOffline)
		}
		d.record(cmd, Response{}, OutcomeTimeout)
		return Response{}, err

	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		s.release()
		d.record(cmd, Response{}, OutcomeCanceled)
		return Response{}, err

	default:
		s.release()
		d.record(cmd, Response{}, OutcomeError)
		return Response{}, err
	}
}

// exchange registers a waiter under key, sends the frame and waits for the
// correlated response, the request timeout or context cancellation.
func (d *Dispatcher) exchange(ctx context.Context, key pendingKey, frame canfd.Frame) (Response, error) {
	ch := make(chan Response, 1)
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return Response{}, ErrClosed
	}
	d.pending[key] = ch
	d.mu.Unlock()

	ev := trace.New(trace.KindTx)
	ev.Motor = uint8(key.motor)
	ev.Seq = key.seq
	ev.ID = frame.ID
	ev.Len = frame.Len
	d.tracer.Trace(ev)

	if err := d.bus.Send(frame); err != nil {
		d.removePending(key)
		if errors.Is(err, canfd.ErrClosed) {
			return Response{}, ErrClosed
		}
		return Response{}, fmt.Errorf("servo: send: %w", err)
	}

	timer := time.NewTimer(d.timeout)
	defer timer.Stop()
	select {
	case resp, ok := <-ch:
		if !ok {
			return Response{}, ErrClosed
		}
		return resp, nil
	case <-timer.C:
		if !d.removePending(key) {
			// The listener matched this response concurrently; take it.
			if resp, ok := <-ch; ok {
				return resp, nil
			}
			return Response{}, ErrClosed
		}
		tev := trace.New(trace.KindTimeout)
		tev.Motor = uint8(key.motor)
		tev.Seq = key.seq
		tev.ID = frame.ID
		d.tracer.Trace(tev)
		return Response{}, fmt.Errorf("servo: motor %d seq %d: %w", key.motor, key.seq, ErrTimeout)
	case <-ctx.Done():
		d.removePending(key)
		return Response{}, ctx.Err()
	}
}

// removePending unregisters a waiter, reporting whether it was still present.
func (d *Dispatcher) removePending(key pendingKey) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.pending[key]; !ok {
		return false
	}
	delete(d.pending, key)
	return true
}

// nextFrame blocks for the next inbound frame, from the mux subscription when
// one is configured and directly from the bus otherwise.
func (d *Dispatcher) nextFrame() (canfd.Frame, error) {
	if d.frames != nil {
		f, ok := <-d.frames
		if !ok {
			return canfd.Frame{}, canfd.ErrClosed
		}
		return f, nil
	}
	return d.bus.Receive()
}

func (d *Dispatcher) listen() {
	defer close(d.done)
	for {
		f, err := d.nextFrame()
		if err != nil {
			d.mu.Lock()
			d.closed = true
			for k, ch := range d.pending {
				close(ch)
				delete(d.pending, k)
			}
			d.mu.Unlock()
			if !errors.Is(err, canfd.ErrClosed) {
				d.logger.Error("bus receive failed", "error", err)
			}
			return
		}
		resp, derr := d.codec.Decode(f)
		if derr != nil {
			d.decodeErrors.Add(1)
			ev := trace.New(trace.KindDecodeError)
			ev.ID = f.ID
			ev.Len = f.Len
			ev.Detail = derr.Error()
			d.tracer.Trace(ev)
			d.logger.Debug("undecodable frame", "frame", f.String(), "error", derr)
			continue
		}
		d.mu.Lock()
		key := pendingKey{resp.Motor, resp.Seq}
		ch, ok := d.pending[key]
		if ok {
			delete(d.pending, key)
		}
		d.mu.Unlock()
		if !ok {
			d.orphans.Add(1)
			ev := trace.New(trace.KindOrphan)
			ev.Motor = uint8(resp.Motor)
			ev.Seq = resp.Seq
			ev.ID = f.ID
			d.tracer.Trace(ev)
			d.logger.Debug("orphan response",
				"motor", uint8(resp.Motor),
				"seq", resp.Seq,
				"kind", resp.Kind.String(),
			)
			continue
		}
		ev := trace.New(trace.KindRx)
		ev.Motor = uint8(resp.Motor)
		ev.Seq = resp.Seq
		ev.ID = f.ID
		ev.Len = f.Len
		d.tracer.Trace(ev)
		ch <- resp
	}
}

func (d *Dispatcher) noteState(motor MotorID, state SessionState) {
	ev := trace.New(trace.KindStateChange)
	ev.Motor = uint8(motor)
	ev.Detail = state.String()
	d.tracer.Trace(ev)
}

func (d *Dispatcher) record(cmd Command, resp Response, outcome string) {
	d.recMu.Lock()
	defer d.recMu.Unlock()
	if d.recorder == nil {
		return
	}
	c := Completion{
		Time:      time.Now(),
		Motor:     cmd.Motor,
		Kind:      cmd.Kind,
		Parameter: cmd.Parameter,
		Outcome:   outcome,
	}
	switch {
	case resp.Kind == RespValue || resp.Kind == RespSetAck:
		c.Raw = resp.Raw
		c.Value = resp.Value
	case cmd.Kind == CmdSet:
		c.Value = cmd.Value
	}
	d.recorder.RecordCompletion(c)
}

func outcomeForError(err error) string {
	switch {
	case errors.Is(err, ErrBusy):
		return OutcomeBusy
	case errors.Is(err, ErrMotorOffline):
		return OutcomeOffline
	default:
		return OutcomeError
	}
}
