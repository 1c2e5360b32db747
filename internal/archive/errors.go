package archive

import (
	"errors"
	"fmt"
	"strings"

	tele "gopkg.in/telebot.v3"
)

type Kind int

const (
	KindUnexpected Kind = iota
	KindConfiguration
	KindArchiveUnreachable
	KindRemote
)

func (k Kind) String() string {
	switch k {
	case KindConfiguration:
		return "configuration"
	case KindArchiveUnreachable:
		return "archive_unreachable"
	case KindRemote:
		return "remote"
	default:
		return "unexpected"
	}
}

// Error is the classified outcome of a failed search.
type Error struct {
	Kind   Kind
	Detail string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Detail, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

func (e *Error) Unwrap() error { return e.Err }

var ErrNotConfigured = &Error{Kind: KindConfiguration, Detail: "archive channel is not configured"}

// KindOf returns the Kind of a classified error, KindUnexpected otherwise.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindUnexpected
}

// IsNotModified reports Telegram's "message is not modified" rejection, which
// only means an edit raced with an identical one.
func IsNotModified(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, tele.ErrSameMessageContent) ||
		strings.Contains(err.Error(), "message is not modified")
}

func isChatNotFound(err error) bool {
	return errors.Is(err, tele.ErrChatNotFound) ||
		strings.Contains(err.Error(), "chat not found")
}

func isAPIError(err error) bool {
	var apiErr *tele.Error
	if errors.As(err, &apiErr) {
		return true
	}
	// Flood and migration errors are separate types but share the prefix.
	return strings.HasPrefix(err.Error(), "telegram:")
}

// classify maps a raw failure to an *Error. It returns nil for nil and for
// benign "not modified" rejections.
func classify(err error) *Error {
	switch {
	case err == nil, IsNotModified(err):
		return nil
	case isChatNotFound(err):
		return &Error{Kind: KindArchiveUnreachable, Detail: "archive chat not found", Err: err}
	case isAPIError(err):
		return &Error{Kind: KindRemote, Detail: "telegram rejected the request", Err: err}
	default:
		return &Error{Kind: KindUnexpected, Detail: "search failed", Err: err}
	}
}
