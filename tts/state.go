package tts

// Phase is the playback phase of the pipeline for the current paragraph.
type Phase int

const (
	// PhaseIdle means nothing is being synthesized or played.
	PhaseIdle Phase = iota
	// PhaseSynthesizing means the current sentence is being synthesized and
	// none of its audio is buffered yet.
	PhaseSynthesizing
	// PhaseBuffered means audio for the current sentence is waiting for the
	// output device.
	PhaseBuffered
	// PhasePlaying means audio is being played.
	PhasePlaying
	// PhasePaused means playback is paused by the caller.
	PhasePaused
)

// String returns the string representation of the phase.
func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseSynthesizing:
		return "synthesizing"
	case PhaseBuffered:
		return "buffered"
	case PhasePlaying:
		return "playing"
	case PhasePaused:
		return "paused"
	default:
		return "unknown"
	}
}

// PipelineState is a snapshot of the pipeline published to listeners.
type PipelineState struct {
	Phase         Phase
	SessionID     string
	Paragraph     int // paragraph being played, -1 when idle
	Sentence      int // sentence being played within Paragraph
	BufferedBytes int64
	Processing    int
	Ready         int
	Skipped       int
}

// IsActive returns true if a session is synthesizing or playing.
func (s PipelineState) IsActive() bool {
	return s.Phase != PhaseIdle
}

// StateMachine tracks phase transitions.
type StateMachine struct {
	current     Phase
	transitions map[Phase][]Phase
}

// NewStateMachine creates a new state machine with valid transitions.
func NewStateMachine() *StateMachine {
	return &StateMachine{
		current: PhaseIdle,
		transitions: map[Phase][]Phase{
			PhaseIdle:         {PhaseSynthesizing},
			PhaseSynthesizing: {PhaseBuffered, PhasePlaying, PhasePaused, PhaseIdle},
			PhaseBuffered:     {PhasePlaying, PhaseSynthesizing, PhasePaused, PhaseIdle},
			PhasePlaying:      {PhaseSynthesizing, PhaseBuffered, PhasePaused, PhaseIdle},
			PhasePaused:       {PhaseSynthesizing, PhaseBuffered, PhasePlaying, PhaseIdle},
		},
	}
}

// Allowed reports whether from -> to is a valid transition.
func (sm *StateMachine) Allowed(from, to Phase) bool {
	if from == to {
		return true
	}
	for _, p := range sm.transitions[from] {
		if p == to {
			return true
		}
	}
	return false
}

// Transition moves to the given phase. It returns false, leaving the current
// phase unchanged, when the transition is not allowed.
func (sm *StateMachine) Transition(to Phase) bool {
	if !sm.Allowed(sm.current, to) {
		return false
	}
	sm.current = to
	return true
}

// Reset forces the machine back to idle.
func (sm *StateMachine) Reset() {
	sm.current = PhaseIdle
}

// Current returns the current phase.
func (sm *StateMachine) Current() Phase {
	return sm.current
}
