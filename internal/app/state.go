package app

// State is the lifecycle state of the live graph snapshot.
type State int32

// Lifecycle states. UNINITIALIZED moves to LOADED after the first successful
// load or build; LOADED moves to REBUILDING for the duration of a rebuild and
// back to LOADED when it ends, successful or not.
const (
	StateUninitialized State = iota
	StateLoaded
	StateRebuilding
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "UNINITIALIZED"
	case StateLoaded:
		return "LOADED"
	case StateRebuilding:
		return "REBUILDING"
	default:
		return "UNKNOWN"
	}
}
