package coach

import "errors"

// Tagged errors so the transport layer can map each failure mode to its own
// status instead of collapsing everything into one shape.
var (
	ErrSessionNotFound       = errors.New("session not found")
	ErrScenarioNotFound      = errors.New("scenario not found")
	ErrNotEnoughConversation = errors.New("not enough conversation to evaluate")
	ErrUpstream              = errors.New("model inference failed")
	ErrMalformedModelOutput  = errors.New("model returned malformed feedback")
)
