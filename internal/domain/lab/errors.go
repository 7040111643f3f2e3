package lab

import "errors"

// Sentinel errors for workflow commands. Handlers map each kind to an HTTP
// status; callers test with errors.Is.
var (
	ErrNotFound             = errors.New("not found")
	ErrInvalidTransition    = errors.New("invalid transition")
	ErrEmptyTestList        = errors.New("order must contain at least one test")
	ErrIncompleteResult     = errors.New("incomplete result")
	ErrResultNotReady       = errors.New("result not ready")
	ErrOrderAlreadyTerminal = errors.New("order already terminal")
	ErrConflict             = errors.New("concurrent modification")
	ErrUnknownTestType      = errors.New("unknown test type")
	ErrSelfApproval         = errors.New("approver must differ from recorder")
)
