package api

import "fmt"

// AuthError indicates the bearer token was rejected. Callers surface it
// as a forced re-login.
type AuthError struct {
	StatusCode int
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication rejected (status %d)", e.StatusCode)
}

// NetworkError indicates a transport-level failure. It is retryable at
// the caller's discretion; nothing in this package retries internally.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Err.Error())
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// AttachmentUploadError blocks the send it was part of; a message is
// never emitted without its attachment.
type AttachmentUploadError struct {
	Err error
}

func (e *AttachmentUploadError) Error() string {
	return fmt.Sprintf("attachment upload failed: %s", e.Err.Error())
}

func (e *AttachmentUploadError) Unwrap() error {
	return e.Err
}
