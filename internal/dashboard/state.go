package dashboard

// Phase is the active variant of a RequestState.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseLoading
	PhaseLoaded
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseLoading:
		return "loading"
	case PhaseLoaded:
		return "loaded"
	case PhaseFailed:
		return "failed"
	default:
		return "idle"
	}
}

// RequestState tracks one logical request. Exactly one phase is active; the
// value is only present when Loaded and the error only when Failed.
type RequestState[T any] struct {
	phase Phase
	value T
	err   string
}

// Idle is the state before any request.
func Idle[T any]() RequestState[T] { return RequestState[T]{} }

// Loading drops any previous value or error.
func Loading[T any]() RequestState[T] { return RequestState[T]{phase: PhaseLoading} }

// Loaded holds a successful result.
func Loaded[T any](v T) RequestState[T] { return RequestState[T]{phase: PhaseLoaded, value: v} }

// Failed holds a user-facing error message.
func Failed[T any](msg string) RequestState[T] { return RequestState[T]{phase: PhaseFailed, err: msg} }

func (s RequestState[T]) Phase() Phase { return s.phase }

// Value returns the loaded value, if any.
func (s RequestState[T]) Value() (T, bool) {
	return s.value, s.phase == PhaseLoaded
}

// Err returns the failure message, or "" unless Failed.
func (s RequestState[T]) Err() string { return s.err }
