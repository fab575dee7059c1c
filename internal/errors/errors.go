package errors

import (
	stdErrors "errors"
	"fmt"

	"github.com/google/uuid"
)

// rejectMarker is implemented by the registry rejection types (conflict,
// owner mismatch, owner cap) so callers can classify a retryable rejection
// without enumerating each kind. Rejections describe authoritative registry
// state; the advertisement publisher logs them and retries on its next tick.
type rejectMarker interface {
	error
	isReject()
}

// InputError indicates unparseable boundary input (frequency, UUID, JSON).
// Maps to 400 at the HTTP surface and drop-with-log at the gossip surface.
type InputError struct {
	Op  string // boundary operation (e.g. "parse.frequency")
	Err error  // underlying cause (may be nil)
}

func (e *InputError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("invalid input: %s", e.Op)
	}
	return fmt.Sprintf("invalid input: %s: %v", e.Op, e.Err)
}
func (e *InputError) Unwrap() error { return e.Err }

// SignatureError indicates an advertisement or release whose signature does
// not verify under the declared owner key. Fatal to the message.
type SignatureError struct {
	Op  string
	Err error
}

func (e *SignatureError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("invalid signature: %s", e.Op)
	}
	return fmt.Sprintf("invalid signature: %s: %v", e.Op, e.Err)
}
func (e *SignatureError) Unwrap() error { return e.Err }

// ConflictError indicates the frequency is already assigned to a different
// station. Holder identifies the current occupant.
type ConflictError struct {
	Key    string
	Holder uuid.UUID
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("frequency '%s' already assigned to %s", e.Key, e.Holder)
}
func (e *ConflictError) isReject() {}

// OwnerMismatchError indicates the station matches the current entry but the
// advertisement is signed by a different owner key. Not recoverable without
// an expiry.
type OwnerMismatchError struct{}

func (e *OwnerMismatchError) Error() string { return "owner public key mismatch" }
func (e *OwnerMismatchError) isReject()     {}

// OwnerCapError indicates the owner already holds the maximum allowed number
// of frequencies. Resolves once one of the owner's entries expires.
type OwnerCapError struct {
	Max uint32
}

func (e *OwnerCapError) Error() string { return fmt.Sprintf("owner cap exceeded (max %d)", e.Max) }
func (e *OwnerCapError) isReject()     {}

// TransportError wraps I/O failures on IPC, gossip, or HTTP source streams.
// Logged, never fatal to the process.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("transport error: %s", e.Op)
	}
	return fmt.Sprintf("transport error: %s: %v", e.Op, e.Err)
}
func (e *TransportError) Unwrap() error { return e.Err }

// IsInput returns true if err is (or wraps) an InputError.
func IsInput(err error) bool {
	var ie *InputError
	return stdErrors.As(err, &ie)
}

// IsSignature returns true if err is (or wraps) a SignatureError.
func IsSignature(err error) bool {
	var se *SignatureError
	return stdErrors.As(err, &se)
}

// IsReject returns true if the error chain contains any registry rejection
// (ConflictError, OwnerMismatchError, OwnerCapError).
func IsReject(err error) bool {
	if err == nil {
		return false
	}
	var rm rejectMarker
	return stdErrors.As(err, &rm)
}

// AsConflict extracts a ConflictError from the chain, if present.
func AsConflict(err error) (*ConflictError, bool) {
	var ce *ConflictError
	ok := stdErrors.As(err, &ce)
	return ce, ok
}

// Constructors (encourage contextual wrapping with %w when used by callers).
func NewInputError(op string, cause error) error     { return &InputError{Op: op, Err: cause} }
func NewSignatureError(op string, cause error) error { return &SignatureError{Op: op, Err: cause} }
func NewTransportError(op string, cause error) error { return &TransportError{Op: op, Err: cause} }
func NewConflictError(key string, holder uuid.UUID) error {
	return &ConflictError{Key: key, Holder: holder}
}
func NewOwnerMismatchError() error      { return &OwnerMismatchError{} }
func NewOwnerCapError(max uint32) error { return &OwnerCapError{Max: max} }
