package transport

// State is the lifecycle position of a per-request transport:
// Created -> Connected -> Handling -> Completed | Aborted.
type State int

const (
	StateCreated State = iota
	StateConnected
	StateHandling
	StateCompleted
	StateAborted
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateConnected:
		return "connected"
	case StateHandling:
		return "handling"
	case StateCompleted:
		return "completed"
	case StateAborted:
		return "aborted"
	}
	return "unknown"
}

// Terminal reports whether the transport has been released.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateAborted
}
