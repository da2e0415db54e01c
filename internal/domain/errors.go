package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors.
var (
	// ErrUnknownModel indicates a pricing lookup miss. Recovered locally by
	// applying default pricing; never surfaced to the caller as fatal.
	ErrUnknownModel = errors.New("tokengate: unknown model pricing")

	// ErrInvalidModelID indicates a syntactically invalid model identifier.
	ErrInvalidModelID = errors.New("tokengate: invalid model id")

	// ErrInsufficientBucket indicates a ledger deduction would overdraw a bucket.
	ErrInsufficientBucket = errors.New("tokengate: insufficient bucket balance")

	// ErrUnknownUser indicates the ledger holds no balance row for the user.
	ErrUnknownUser = errors.New("tokengate: unknown user")
)

// InsufficientTokensError is returned by the pre-authorization gate when the
// combined balance cannot cover the estimated cost. No provider call is made.
type InsufficientTokensError struct {
	Required     int64
	Subscription int64
	Addons       int64
}

func (e *InsufficientTokensError) Error() string {
	return fmt.Sprintf("tokengate: insufficient tokens: required=%d subscription=%d addons=%d",
		e.Required, e.Subscription, e.Addons)
}

// ProviderError wraps a transport-level provider failure (timeout, non-2xx,
// connection error). Status is zero when no HTTP response was received.
type ProviderError struct {
	Provider string
	Model    string
	Status   int
	Message  string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("tokengate: provider=%s model=%s status=%d: %s",
		e.Provider, e.Model, e.Status, e.Message)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// SoftFailureError marks a transport-successful but semantically useless
// response (empty body, "can't see the image"). Escalates straight to model
// fallback; transport retry would not help.
type SoftFailureError struct {
	Provider string
	Model    string
	Reason   string
}

func (e *SoftFailureError) Error() string {
	return fmt.Sprintf("tokengate: soft failure from provider=%s model=%s: %s",
		e.Provider, e.Model, e.Reason)
}

// FallbackExhaustedError is returned when every model in the resolution
// chain failed. Attempted lists the model ids in the order they were tried.
type FallbackExhaustedError struct {
	Attempted []string
	LastErr   error
}

func (e *FallbackExhaustedError) Error() string {
	return fmt.Sprintf("tokengate: all models failed, attempted [%s]",
		strings.Join(e.Attempted, ", "))
}

func (e *FallbackExhaustedError) Unwrap() error {
	return e.LastErr
}

// IsSoftFailure reports whether err requires model fallback rather than
// transport retry.
func IsSoftFailure(err error) bool {
	var soft *SoftFailureError
	return errors.As(err, &soft)
}
