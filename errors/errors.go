package errors

import (
	"errors"
	"fmt"
)

var (
	ErrMissingToken    = fmt.Errorf("missing token")
	ErrUnauthenticated = fmt.Errorf("unauthenticated")

	ErrFrameUnmasked  = fmt.Errorf("inbound frame is not masked")
	ErrFrameFragment  = fmt.Errorf("fragmented frames are not supported")
	ErrFrameTooLarge  = fmt.Errorf("frame length exceeds the addressable range")
	ErrConnClosed     = fmt.Errorf("connection is closed")
	ErrUpgradeHeaders = fmt.Errorf("invalid WebSocket upgrade headers")
)

// Kind classifies domain failures so that each transport boundary
// (WebSocket router, REST handlers) can pick its own representation.
type Kind int

const (
	KindUnknown Kind = iota
	KindBadRequest
	KindForbidden
	KindNotFound
)

type DomainError struct {
	Kind    Kind
	Message string
}

func (e *DomainError) Error() string { return e.Message }

func BadRequest(message string) error {
	return &DomainError{Kind: KindBadRequest, Message: message}
}

func Forbidden(message string) error {
	return &DomainError{Kind: KindForbidden, Message: message}
}

func NotFound(message string) error {
	return &DomainError{Kind: KindNotFound, Message: message}
}

// KindOf extracts the failure kind from an error chain.
// Infrastructure errors carry no kind and map to KindUnknown.
func KindOf(err error) Kind {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Kind
	}
	return KindUnknown
}
