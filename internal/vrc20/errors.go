package vrc20

import (
	"errors"
	"fmt"
)

var (
	ErrWrongStandard  = errors.New("vrc20: wrong standard")
	ErrWrongCall      = errors.New("vrc20: wrong call")
	ErrWrongArguments = errors.New("vrc20: wrong arguments")

	ErrUnknownEvent     = errors.New("vrc20: unknown event")
	ErrMessageMismatch  = errors.New("vrc20: message does not match operation")
	ErrUnknownErrorCode = errors.New("vrc20: unknown error code")
)

// ErrorKind classifies a rejected dispatch. Values double as wire codes.
type ErrorKind uint8

const (
	KindWrongStandard  ErrorKind = 1
	KindWrongCall      ErrorKind = 2
	KindWrongArguments ErrorKind = 3
)

func (k ErrorKind) sentinel() error {
	switch k {
	case KindWrongStandard:
		return ErrWrongStandard
	case KindWrongCall:
		return ErrWrongCall
	case KindWrongArguments:
		return ErrWrongArguments
	default:
		return nil
	}
}

func (k ErrorKind) String() string {
	switch k {
	case KindWrongStandard:
		return "wrong_standard"
	case KindWrongCall:
		return "wrong_call"
	case KindWrongArguments:
		return "wrong_arguments"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// DispatchError is returned by Processor for every rejected request.
type DispatchError struct {
	Kind ErrorKind
	Op   OperationID
	Err  error
}

func (e *DispatchError) Error() string {
	msg := "vrc20: dispatch failed"
	if sentinel := e.Kind.sentinel(); sentinel != nil {
		msg = sentinel.Error()
	}
	if e.Kind != KindWrongStandard {
		msg = fmt.Sprintf("%s op=%s", msg, e.Op)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *DispatchError) Is(target error) bool {
	return target != nil && target == e.Kind.sentinel()
}

func (e *DispatchError) Unwrap() error {
	return e.Err
}

// KindOf extracts the ErrorKind from err.
func KindOf(err error) (ErrorKind, bool) {
	var dispatchErr *DispatchError
	if errors.As(err, &dispatchErr) {
		return dispatchErr.Kind, true
	}
	switch {
	case errors.Is(err, ErrWrongStandard):
		return KindWrongStandard, true
	case errors.Is(err, ErrWrongCall):
		return KindWrongCall, true
	case errors.Is(err, ErrWrongArguments):
		return KindWrongArguments, true
	}
	return 0, false
}

// ErrorFromCode maps a wire error code back onto its sentinel.
func ErrorFromCode(code uint8) error {
	if err := ErrorKind(code).sentinel(); err != nil {
		return err
	}
	return fmt.Errorf("%w: %d", ErrUnknownErrorCode, code)
}
