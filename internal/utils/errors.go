package utils

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies an AppError. The set is closed.
type Kind int

const (
	KindStorage Kind = iota
	KindDrive
	KindOAuth
	KindValidation
	KindNetwork
)

func (k Kind) String() string {
	switch k {
	case KindStorage:
		return "Storage"
	case KindDrive:
		return "Drive"
	case KindOAuth:
		return "OAuth"
	case KindValidation:
		return "Validation"
	case KindNetwork:
		return "Network"
	default:
		return "Unknown"
	}
}

// AppError is the error type returned across the store and its backends.
type AppError struct {
	Kind    Kind
	Message string
	Err     error
}

// Error renders "<Kind> error: <message>".
func (e *AppError) Error() string {
	if e.Err != nil && e.Message == "" {
		return fmt.Sprintf("%s error: %v", e.Kind, e.Err)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s error: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s error: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying cause.
func (e *AppError) Unwrap() error {
	return e.Err
}

// StorageError wraps a local persistence failure.
func StorageError(msg string, err error) error {
	return &AppError{Kind: KindStorage, Message: msg, Err: err}
}

// DriveError wraps a Drive API failure.
func DriveError(msg string, err error) error {
	return &AppError{Kind: KindDrive, Message: msg, Err: err}
}

// OAuthError wraps an authorization failure.
func OAuthError(msg string, err error) error {
	return &AppError{Kind: KindOAuth, Message: msg, Err: err}
}

// ValidationError reports bad input.
func ValidationError(format string, args ...interface{}) error {
	return &AppError{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

// NetworkError wraps a transport failure.
func NetworkError(msg string, err error) error {
	return &AppError{Kind: KindNetwork, Message: msg, Err: err}
}

// KindOf returns the kind of the first AppError in err's chain.
func KindOf(err error) (Kind, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind, true
	}
	return 0, false
}

// IsKind reports whether err carries an AppError of the given kind.
func IsKind(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}

// ErrorWithSuggestion wraps an error with a user-friendly suggestion.
type ErrorWithSuggestion struct {
	Err        error
	Suggestion string
}

// Error implements the error interface.
func (e *ErrorWithSuggestion) Error() string {
	return fmt.Sprintf("%s\n\nSuggestion: %s", e.Err.Error(), e.Suggestion)
}

// GetSuggestion returns the suggestion text.
func (e *ErrorWithSuggestion) GetSuggestion() string {
	return e.Suggestion
}

// Unwrap returns the underlying error for error chain support.
func (e *ErrorWithSuggestion) Unwrap() error {
	return e.Err
}

// WrapWithSuggestion wraps an existing error with a suggestion.
func WrapWithSuggestion(err error, suggestion string) error {
	return &ErrorWithSuggestion{
		Err:        err,
		Suggestion: suggestion,
	}
}

// ErrReminderNotFound is returned when no reminder has the given id.
func ErrReminderNotFound(id int64) error {
	return &ErrorWithSuggestion{
		Err:        ValidationError("reminder %d not found", id),
		Suggestion: "Use 'remindat list' to see reminder ids",
	}
}

// ErrEmptyMessage is returned when a reminder message is blank.
func ErrEmptyMessage() error {
	return &ErrorWithSuggestion{
		Err:        ValidationError("message must not be empty"),
		Suggestion: "Pass the reminder text as an argument, e.g. remindat add \"call Bob\"",
	}
}

// ErrInvalidUrgency returns an error for an unknown urgency string.
func ErrInvalidUrgency(value string, valid []string) error {
	return &ErrorWithSuggestion{
		Err:        ValidationError("invalid urgency: %s", value),
		Suggestion: fmt.Sprintf("Valid options: %s", strings.Join(valid, ", ")),
	}
}

// ErrInvalidListType returns an error for an unknown list name.
func ErrInvalidListType(value string) error {
	return &ErrorWithSuggestion{
		Err:        ValidationError("invalid list: %s", value),
		Suggestion: "Valid options: actual, backlog",
	}
}

// ErrNotLoggedIn is returned when a cloud command runs without a session.
func ErrNotLoggedIn() error {
	return &ErrorWithSuggestion{
		Err:        OAuthError("not logged in to Google Drive", nil),
		Suggestion: "Run 'remindat oauth login' to connect your Drive",
	}
}

// ErrCredentialsNotFound returns an error when OAuth client credentials are missing.
func ErrCredentialsNotFound() error {
	return &ErrorWithSuggestion{
		Err:        OAuthError("OAuth client credentials not configured", nil),
		Suggestion: "Run 'remindat oauth setup --client-id <id>' to store your Google client credentials",
	}
}

// ErrAuthenticationFailed returns an error when authentication fails.
func ErrAuthenticationFailed(err error) error {
	return &ErrorWithSuggestion{
		Err:        OAuthError("authentication failed", err),
		Suggestion: "Run 'remindat oauth login' again; if it keeps failing, check your client credentials",
	}
}

// ErrCloudOffline returns an error for an unreachable Drive with smart suggestions.
func ErrCloudOffline(reason string) error {
	return &ErrorWithSuggestion{
		Err:        NetworkError("Google Drive is unreachable: "+reason, nil),
		Suggestion: getSmartSuggestion(reason),
	}
}

// getSmartSuggestion returns a context-aware suggestion based on the error reason.
func getSmartSuggestion(reason string) string {
	lowerReason := strings.ToLower(reason)

	if strings.Contains(lowerReason, "no such host") || strings.Contains(lowerReason, "dns") {
		return "Check your DNS settings and internet connection"
	}

	if strings.Contains(lowerReason, "connection refused") {
		return "Check if the server is running and accessible"
	}

	if strings.Contains(lowerReason, "timeout") {
		return "The server may be slow or unreachable. Try again later"
	}

	return "Check your internet connection and try again"
}
