package servo

import (
	"fmt"
	"sync"
)

// SessionState is the lifecycle state of a per-motor session.
type SessionState uint8

const (
	StateOffline SessionState = iota
	StateHandshaking
	StateOnline
)

func (s SessionState) String() string {
	switch s {
	case StateOffline:
		return "offline"
	case StateHandshaking:
		return "handshaking"
	case StateOnline:
		return "online"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

// DefaultOfflineThreshold is the number of consecutive timeouts after which
// an Online session is demoted to Offline.
const DefaultOfflineThreshold = 3

// Session tracks the state of one motor: lifecycle, consecutive failure
// count and the single-flight guard. At most one request per motor may be in
// flight at a time.
type Session struct {
	motor     MotorID
	threshold int

	mu       sync.Mutex
	state    SessionState
	failures int
	busy     bool
	seq      uint8
}

// NewSession creates a session in the Offline state. threshold <= 0 selects
// DefaultOfflineThreshold.
func NewSession(motor MotorID, threshold int) *Session {
	if threshold <= 0 {
		threshold = DefaultOfflineThreshold
	}
	return &Session{motor: motor, threshold: threshold}
}

// State returns the current lifecycle state.
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Failures returns the current consecutive timeout count.
func (s *Session) Failures() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failures
}

// begin acquires the single-flight guard and allocates a sequence number.
// Handshakes are allowed from any state and move the session to
// Handshaking; every other kind requires Online.
func (s *Session) begin(kind CommandKind) (uint8, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busy {
		return 0, fmt.Errorf("motor %d: %w", s.motor, ErrBusy)
	}
	if kind == CmdOnline {
		s.state = StateHandshaking
	} else if s.state != StateOnline {
		return 0, fmt.Errorf("motor %d: %w", s.motor, ErrMotorOffline)
	}
	s.busy = true
	return s.nextSeqLocked(), nil
}

// next allocates an additional sequence number for a multi-exchange
// operation while the guard is held.
func (s *Session) next() uint8 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextSeqLocked()
}

// nextSeqLocked advances the per-motor sequence counter, skipping 0, which
// marks unsolicited traffic on the wire.
func (s *Session) nextSeqLocked() uint8 {
	s.seq++
	if s.seq == 0 {
		s.seq = 1
	}
	return s.seq
}

// succeed records a response, clears the failure count and completes a
// pending handshake.
func (s *Session) succeed() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.busy = false
	s.failures = 0
	if s.state == StateHandshaking {
		s.state = StateOnline
	}
}

// fail records a timeout. A failed handshake goes straight back to Offline;
// an Online session is demoted once the consecutive count reaches the
// threshold. It reports whether the session ended up Offline.
func (s *Session) fail() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.busy = false
	if s.state == StateHandshaking {
		s.state = StateOffline
		s.failures = 0
		return true
	}
	s.failures++
	if s.failures >= s.threshold {
		s.state = StateOffline
		s.failures = 0
		return true
	}
	return false
}

// release drops the single-flight guard without touching the failure count.
// Used when a request is aborted locally (send error, context cancellation).
func (s *Session) release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.busy = false
	if s.state == StateHandshaking {
		s.state = StateOffline
	}
}
