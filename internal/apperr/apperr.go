// Package apperr defines the error taxonomy shared by every AppCenter
// component. Services return *Error values (or wrap them) and the HTTP layer
// maps the Kind to a status code and the Code to the response body.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure.
type Kind string

const (
	KindValidation    Kind = "validation"
	KindNotFound      Kind = "not_found"
	KindConflict      Kind = "conflict"
	KindPermission    Kind = "permission"
	KindUnauthorized  Kind = "unauthorized"
	KindFileSystem    Kind = "filesystem"
	KindUpstreamParse Kind = "upstream_parse"
	KindInternal      Kind = "internal"
)

// Error is a typed failure carrying a stable response code and a message that
// is safe to show to end users.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error with the same kind and code, so wrapped instances
// still compare equal to the sentinels below.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Kind == t.Kind && e.Code == t.Code
}

// Wrap returns a copy of e carrying cause.
func (e *Error) Wrap(cause error) *Error {
	return &Error{Kind: e.Kind, Code: e.Code, Message: e.Message, Err: cause}
}

// WithMessage returns a copy of e with a more specific message.
func (e *Error) WithMessage(format string, args ...any) *Error {
	return &Error{Kind: e.Kind, Code: e.Code, Message: fmt.Sprintf(format, args...), Err: e.Err}
}

// Sentinels for the exposed failures. Codes follow the module prefix + HTTP
// status + sequence convention used by the dashboard.
var (
	ErrUnsupportedFileType  = &Error{Kind: KindValidation, Code: "FL4002", Message: "only .ipa or .apk files can be uploaded"}
	ErrMissingFile          = &Error{Kind: KindValidation, Code: "FL4001", Message: "an application file is required"}
	ErrFileTooLarge         = &Error{Kind: KindValidation, Code: "FL4131", Message: "file exceeds the upload size limit"}
	ErrParse                = &Error{Kind: KindUpstreamParse, Code: "FL4003", Message: "unable to parse application file"}
	ErrFileNotFound         = &Error{Kind: KindNotFound, Code: "FL4041", Message: "file not found"}
	ErrFileNotStaged        = &Error{Kind: KindNotFound, Code: "VR4002", Message: "file not found or already processed"}
	ErrFileSystem           = &Error{Kind: KindFileSystem, Code: "FL5001", Message: "file processing failed"}
	ErrMissingField         = &Error{Kind: KindValidation, Code: "VR4001", Message: "version and build number are required"}
	ErrDuplicateVersion     = &Error{Kind: KindConflict, Code: "VR4091", Message: "this version and build number already exist"}
	ErrVersionNotFound      = &Error{Kind: KindNotFound, Code: "VR4041", Message: "version not found"}
	ErrNotFound             = &Error{Kind: KindNotFound, Code: "AP4041", Message: "application not found"}
	ErrValidation           = &Error{Kind: KindValidation, Code: "AP4001", Message: "application data is invalid"}
	ErrDuplicateDownloadKey = &Error{Kind: KindConflict, Code: "AP4091", Message: "download key already exists"}
	ErrUnsupportedPlatform  = &Error{Kind: KindValidation, Code: "AP4002", Message: "only iOS applications support manifest installation"}
	ErrUserNotFound         = &Error{Kind: KindNotFound, Code: "US4041", Message: "user not found"}
	ErrUserExists           = &Error{Kind: KindConflict, Code: "AU4091", Message: "username or email already exists"}
	ErrUserInvalid          = &Error{Kind: KindValidation, Code: "US4001", Message: "user data is invalid"}
	ErrInvalidRole          = &Error{Kind: KindValidation, Code: "US4002", Message: "invalid user role"}
	ErrPasswordTooShort     = &Error{Kind: KindValidation, Code: "AU4002", Message: "password must be at least 6 characters"}
	ErrInvalidCredentials   = &Error{Kind: KindUnauthorized, Code: "AU0401", Message: "invalid username, email or password"}
	ErrPermission           = &Error{Kind: KindPermission, Code: "AU4031", Message: "permission denied"}
	ErrTokenInvalid         = &Error{Kind: KindUnauthorized, Code: "AU0402", Message: "authentication token is missing, invalid or expired"}
	ErrInternal             = &Error{Kind: KindInternal, Code: "SY5001", Message: "internal server error"}
)

// KindOf reports the kind of err, or KindInternal when err carries no *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// IsKind reports whether err carries an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
