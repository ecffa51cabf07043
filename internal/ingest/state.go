package ingest

// State is the orchestrator's position in a pass.
type State int

const (
	StateIdle State = iota
	StateSessionOpening
	StateListing
	StateDecoding
	StateResolving
	StatePersisting
	StateFanningOut
	StateMarking
	StateClosing
)

var stateNames = [...]string{
	StateIdle:           "idle",
	StateSessionOpening: "session-opening",
	StateListing:        "listing",
	StateDecoding:       "decoding",
	StateResolving:      "resolving",
	StatePersisting:     "persisting",
	StateFanningOut:     "fanning-out",
	StateMarking:        "marking",
	StateClosing:        "closing",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}
