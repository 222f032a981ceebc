package datastore

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind discriminates the error taxonomy of spec.md section 7.
type Kind int

const (
	KindNotFound Kind = iota
	KindDuplicate
	KindUniqueConstraintViolation
	KindTypeError
	KindDecode
	KindEncode
	KindIO
	KindTooManyPages
	KindDataWontFit
	KindDatabaseOpened
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "NotFound"
	case KindDuplicate:
		return "Duplicate"
	case KindUniqueConstraintViolation:
		return "UniqueConstraintViolation"
	case KindTypeError:
		return "TypeError"
	case KindDecode:
		return "Decode"
	case KindEncode:
		return "Encode"
	case KindIO:
		return "IO"
	case KindTooManyPages:
		return "TooManyPages"
	case KindDataWontFit:
		return "DataWontFit"
	case KindDatabaseOpened:
		return "DatabaseOpened"
	default:
		return "Unknown"
	}
}

// Error is the error type of the datastore's error taxonomy, returned by
// pkg/datastore operations and by pkg/rdb for conditions such as
// DatabaseOpened. Filesystem, lock-file and commit log errors that
// rdb.Open meets are returned as they come, not wrapped in an *Error.
// IndexName and Value are populated only for
// KindUniqueConstraintViolation.
type Error struct {
	Kind      Kind
	Message   string
	IndexName string
	Value     string
	cause     error
}

func (e *Error) Error() string {
	if e.IndexName != "" {
		return fmt.Sprintf("datastore: %s: %s (index %q, value %s)", e.Kind, e.Message, e.IndexName, e.Value)
	}
	return fmt.Sprintf("datastore: %s: %s", e.Kind, e.Message)
}

// Unwrap exposes the wrapped cause, if any, so pkg/errors' stack-trace
// formatting and errors.Is/As keep working through an *Error.
func (e *Error) Unwrap() error { return e.cause }

// Is reports whether target is a sentinel for the same Kind, so callers
// can write errors.Is(err, datastore.ErrNotFound).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind && t.Message == ""
}

func newError(kind Kind, cause error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), cause: cause}
}

// Sentinels for errors.Is(err, datastore.ErrXxx) comparisons; they carry
// no message so *Error.Is matches any error of the same Kind.
var (
	ErrNotFound                  = &Error{Kind: KindNotFound}
	ErrDuplicate                 = &Error{Kind: KindDuplicate}
	ErrUniqueConstraintViolation = &Error{Kind: KindUniqueConstraintViolation}
	ErrTypeError                 = &Error{Kind: KindTypeError}
	ErrDecode                    = &Error{Kind: KindDecode}
	ErrEncode                    = &Error{Kind: KindEncode}
	ErrIO                        = &Error{Kind: KindIO}
	ErrTooManyPages              = &Error{Kind: KindTooManyPages}
	ErrDataWontFit               = &Error{Kind: KindDataWontFit}
	ErrDatabaseOpened            = &Error{Kind: KindDatabaseOpened}
)

func notFoundf(format string, args ...interface{}) *Error {
	return newError(KindNotFound, nil, format, args...)
}

func duplicatef(format string, args ...interface{}) *Error {
	return newError(KindDuplicate, nil, format, args...)
}

func uniqueViolation(indexName string, value string) *Error {
	return &Error{Kind: KindUniqueConstraintViolation, Message: "insert rejected", IndexName: indexName, Value: value}
}

func typeErrorf(format string, args ...interface{}) *Error {
	return newError(KindTypeError, nil, format, args...)
}

func ioErrorf(cause error, format string, args ...interface{}) *Error {
	return newError(KindIO, errors.Wrap(cause, fmt.Sprintf(format, args...)), format, args...)
}

// NewIOError wraps cause as a KindIO *Error, for packages outside
// pkg/datastore (e.g. pkg/objstore) that need to report a filesystem
// failure through the same error taxonomy.
func NewIOError(cause error, format string, args ...interface{}) error {
	return ioErrorf(cause, format, args...)
}
