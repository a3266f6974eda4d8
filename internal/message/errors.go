package message

import (
	"errors"
	"fmt"
)

var (
	// ErrStore matches every *StoreError via errors.Is.
	ErrStore = errors.New("message store failure")
	// ErrInvalid is returned before any write when the input is incomplete.
	ErrInvalid = errors.New("invalid message")
)

// StoreError reports a failed store operation. The data state is whatever it
// was before the operation; stores never leave partial writes behind.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("message store: %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

func (e *StoreError) Is(target error) bool { return target == ErrStore }

func storeErr(op string, err error) error {
	return &StoreError{Op: op, Err: err}
}

func invalid(reason string) error {
	return fmt.Errorf("%w: %s", ErrInvalid, reason)
}
