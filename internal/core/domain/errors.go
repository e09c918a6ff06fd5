package domain

import "fmt"

// Code is a stable, machine-readable error identifier surfaced across the
// API boundary, independent of its HTTP status mapping.
type Code string

const (
	CodeEmptyID              Code = "empty_id"
	CodeEmptyName            Code = "empty_name"
	CodeEmptyInterval        Code = "empty_interval"
	CodeInvalidTimestamps    Code = "invalid_timestamps"
	CodeInvalidVersion       Code = "invalid_version"
	CodeUnauthorized         Code = "unauthorized"
	CodeMismatchedKinds      Code = "mismatched_kinds"
	CodeInvalidArray         Code = "invalid_array"
	CodeUnknownRootProp      Code = "unknown_root_prop"
	CodeSchemaNotFound       Code = "schema_not_found"
	CodeSchemaAlreadyExists  Code = "schema_already_exists"
	CodeSchemaContainsConfig Code = "schema_contains_configs"
	CodeConfigNotFound       Code = "config_not_found"
	CodeConfigAlreadyExists  Code = "config_already_exists"
	CodePageOutOfRange       Code = "page_out_of_range"
	CodeInvalidPassword      Code = "invalid_password"
	CodeInvalidConfig        Code = "invalid_config"
	CodeInvalidEvent         Code = "invalid_event"
	CodeSerde                Code = "serde"
	CodeDatabase             Code = "database"
)

// Error is the domain's own error type. It carries a stable Code so the API
// layer can map it to an HTTP status without inspecting message text, and an
// optional Diff for invalid_config.
type Error struct {
	Code    Code
	Message string
	Diff    *Diff
	cause   error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return string(e.Code)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// Is makes errors.Is(err, NewError(code)) work for sentinel comparisons by
// code rather than by pointer identity.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

func NewError(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func WrapError(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, cause: cause}
}

func NewInvalidConfigError(diff Diff) *Error {
	return &Error{Code: CodeInvalidConfig, Message: "config does not validate against schema", Diff: &diff}
}

func IsCode(err error, code Code) bool {
	var e *Error
	if ae, ok := err.(*Error); ok {
		e = ae
	} else {
		return false
	}
	return e.Code == code
}
