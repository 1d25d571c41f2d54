package cache

import (
	"sync/atomic"

	"github.com/Combine-Capital/lovetree/pkg/logging"
	"github.com/Combine-Capital/lovetree/pkg/metrics"
)

// State is the connection state of a cache client.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateError
	StateReconnecting
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateError:
		return "error"
	case StateReconnecting:
		return "reconnecting"
	default:
		return "unknown"
	}
}

// stateMachine holds the connection state. Transitions are compare-and-swap so two
// goroutines observing the same failure start one reconnect between them.
type stateMachine struct {
	v      atomic.Int32
	logger *logging.Logger
}

func newStateMachine(logger *logging.Logger) *stateMachine {
	s := &stateMachine{logger: logger}
	metrics.SetCacheState(int(StateDisconnected))
	return s
}

func (s *stateMachine) load() State {
	return State(s.v.Load())
}

// set moves to `to` unconditionally.
func (s *stateMachine) set(to State) {
	from := State(s.v.Swap(int32(to)))
	if from != to {
		s.changed(from, to)
	}
}

// transition moves from `from` to `to` and reports whether this call made the move.
func (s *stateMachine) transition(from, to State) bool {
	if !s.v.CompareAndSwap(int32(from), int32(to)) {
		return false
	}
	s.changed(from, to)
	return true
}

func (s *stateMachine) changed(from, to State) {
	metrics.SetCacheState(int(to))
	s.logger.Info().
		Str("from", from.String()).
		Str(logging.CacheState, to.String()).
		Msg("cache state changed")
}
