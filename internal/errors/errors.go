package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for different categories
var (
	// ErrNotFound - resource not found (404 on the API surface)
	ErrNotFound = errors.New("not found")

	// ErrInvalidTransition - suggestion is not in a state that allows the requested transition (409)
	ErrInvalidTransition = errors.New("invalid transition")

	// ErrInvalidInput - invalid input (400)
	ErrInvalidInput = errors.New("invalid input")

	// ErrDropped - event rejected by the registry while automation is running
	ErrDropped = errors.New("event dropped")

	// ErrLLM - model call failed after retries
	ErrLLM = errors.New("llm failure")

	// ErrConfiguration - startup-fatal configuration problem
	ErrConfiguration = errors.New("configuration error")

	// ErrTransient - transient error, safe to retry with backoff
	ErrTransient = errors.New("transient error")

	// ErrInternal - internal error
	ErrInternal = errors.New("internal error")
)

func NotFound(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, ErrNotFound)...)
}

func InvalidTransition(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, ErrInvalidTransition)...)
}

func InvalidInput(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, ErrInvalidInput)...)
}

func Internal(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, ErrInternal)...)
}

func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", msg, err)
}
