package processor

import (
	"errors"
	"fmt"
)

// ErrInvalidRequest indicates malformed caller input. Not retried.
var ErrInvalidRequest = errors.New("invalid request")

// ProviderError wraps a telephony provider rejection or timeout, carrying
// the provider's status detail.
type ProviderError struct {
	Err error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("telephony provider error: %v", e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// PartialFailure indicates the call was created but a dependent step failed,
// so the call exists at the provider but playback will not happen. It is
// never silently swallowed.
type PartialFailure struct {
	CallControlID string
	Err           error
}

func (e *PartialFailure) Error() string {
	return fmt.Sprintf("call %s created but audio unavailable: %v", e.CallControlID, e.Err)
}

func (e *PartialFailure) Unwrap() error { return e.Err }
