package transport

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidResponse matches errors where no status code could be obtained.
	ErrInvalidResponse = errors.New("invalid server response")
	// ErrServerError matches errors where the collector answered with a status other than 200/201.
	ErrServerError = errors.New("server error")
	// ErrNetwork matches connection and timeout failures before a response arrived.
	ErrNetwork = errors.New("network error")
)

// Kind classifies a delivery failure.
type Kind int

const (
	KindNetwork Kind = iota + 1
	KindInvalidResponse
	KindServerError
)

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindInvalidResponse:
		return "invalidResponse"
	case KindServerError:
		return "serverError"
	default:
		return "unknown"
	}
}

// Error is returned by every Sender on failure.
type Error struct {
	Kind       Kind
	StatusCode int // only set for KindServerError
	Err        error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindServerError:
		return fmt.Sprintf("server error: %d", e.StatusCode)
	case KindInvalidResponse:
		if e.Err != nil {
			return fmt.Sprintf("invalid server response: %v", e.Err)
		}
		return "invalid server response"
	default:
		return fmt.Sprintf("network error: %v", e.Err)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is lets callers use errors.Is with the package sentinels.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrInvalidResponse:
		return e.Kind == KindInvalidResponse
	case ErrServerError:
		return e.Kind == KindServerError
	case ErrNetwork:
		return e.Kind == KindNetwork
	}
	return false
}

// KindOf returns the Kind of err, or 0 if err did not come from a Sender.
func KindOf(err error) Kind {
	var te *Error
	if errors.As(err, &te) {
		return te.Kind
	}
	return 0
}

// StatusCodeOf returns the HTTP status carried by err, or 0.
func StatusCodeOf(err error) int {
	var te *Error
	if errors.As(err, &te) {
		return te.StatusCode
	}
	return 0
}
