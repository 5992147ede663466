package protocol

import (
	goerrors "github.com/goliatone/go-errors"
)

// Kind identifies one failure class of the protocol.
type Kind string

const (
	KindUnwhitelistedOrigin  Kind = "FRAMELINK_UNWHITELISTED_ORIGIN"
	KindMalformedPayload     Kind = "FRAMELINK_MALFORMED_PAYLOAD"
	KindUnknownEndpoint      Kind = "FRAMELINK_UNKNOWN_ENDPOINT"
	KindInvocationFailed     Kind = "FRAMELINK_INVOCATION_FAILED"
	KindHandshakeExhausted   Kind = "FRAMELINK_HANDSHAKE_EXHAUSTED"
	KindInvalidLegacyAddress Kind = "FRAMELINK_INVALID_LEGACY_ADDRESS"
)

func kindCategory(kind Kind) goerrors.Category {
	switch kind {
	case KindUnwhitelistedOrigin:
		return goerrors.CategoryAuth
	case KindMalformedPayload:
		return goerrors.CategoryBadInput
	case KindUnknownEndpoint:
		return goerrors.CategoryNotFound
	case KindInvalidLegacyAddress:
		return goerrors.CategoryValidation
	case KindInvocationFailed, KindHandshakeExhausted:
		return goerrors.CategoryOperation
	default:
		return goerrors.CategoryInternal
	}
}

// NewError builds a categorised protocol error.
func NewError(kind Kind, message string, metadata map[string]any) error {
	err := goerrors.New(message, kindCategory(kind)).
		WithTextCode(string(kind))
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

// WrapError attaches kind to source. A nil source behaves like NewError.
func WrapError(source error, kind Kind, message string, metadata map[string]any) error {
	if source == nil {
		return NewError(kind, message, metadata)
	}
	err := goerrors.Wrap(source, kindCategory(kind), message).
		WithTextCode(string(kind))
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

// KindOf returns the protocol kind carried by err, or "" for foreign errors.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) || rich == nil {
		return ""
	}
	return Kind(rich.TextCode)
}

// IsKind reports whether err carries kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
