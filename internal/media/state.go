package media

import "fmt"

type CodecState int

const (
	StateIdle CodecState = iota
	StateRunning
	StateDraining
	StateFlushed
)

func (s CodecState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateDraining:
		return "draining"
	case StateFlushed:
		return "flushed"
	}
	return fmt.Sprintf("CodecState(%d)", int(s))
}

// advance returns the state after sending input. A nil input (draining) is
// reported with eos.
func (s CodecState) advance(eos bool) (CodecState, error) {
	switch s {
	case StateDraining, StateFlushed:
		return s, fmt.Errorf("%w: send while %s", ErrCodec, s)
	}
	if eos {
		return StateDraining, nil
	}
	return StateRunning, nil
}
