package errors

import "fmt"

// Config errors

type ErrConfigNotFound struct {
	Path string
}

func (e *ErrConfigNotFound) Error() string {
	return fmt.Sprintf("config file not found: %s", e.Path)
}

type ErrConfigParse struct {
	Err error
}

func (e *ErrConfigParse) Error() string {
	return fmt.Sprintf("failed to parse YAML: %v", e.Err)
}

func (e *ErrConfigParse) Unwrap() error {
	return e.Err
}

type ErrConfigValidation struct {
	Err error
}

func (e *ErrConfigValidation) Error() string {
	return fmt.Sprintf("config validation failed: %v", e.Err)
}

func (e *ErrConfigValidation) Unwrap() error {
	return e.Err
}

// Filesystem errors

type ErrFileRead struct {
	Path string
	Err  error
}

func (e *ErrFileRead) Error() string {
	return fmt.Sprintf("failed to read file %s: %v", e.Path, e.Err)
}

func (e *ErrFileRead) Unwrap() error {
	return e.Err
}

type ErrDirectoryCreate struct {
	Path string
	Err  error
}

func (e *ErrDirectoryCreate) Error() string {
	return fmt.Sprintf("failed to create directory %s: %v", e.Path, e.Err)
}

func (e *ErrDirectoryCreate) Unwrap() error {
	return e.Err
}

// State document errors

type ErrStateCorrupt struct {
	Document string
	Err      error
}

func (e *ErrStateCorrupt) Error() string {
	return fmt.Sprintf("state document %s is corrupt: %v", e.Document, e.Err)
}

func (e *ErrStateCorrupt) Unwrap() error {
	return e.Err
}

type ErrStateWrite struct {
	Document string
	Err      error
}

func (e *ErrStateWrite) Error() string {
	return fmt.Sprintf("failed to write state document %s: %v", e.Document, e.Err)
}

func (e *ErrStateWrite) Unwrap() error {
	return e.Err
}

// Account and credential errors

type ErrAccountNotFound struct {
	Email string
}

func (e *ErrAccountNotFound) Error() string {
	return fmt.Sprintf("account not found: %s", e.Email)
}

// ErrTokenRefresh carries the structured detail from a failed refresh.
// Permanent refusals (invalid_grant, 400/401) must not be retried.
type ErrTokenRefresh struct {
	Email     string
	Detail    string
	Permanent bool
	Err       error
}

func (e *ErrTokenRefresh) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("token refresh failed for %s: %s", e.Email, e.Detail)
	}
	return fmt.Sprintf("token refresh failed for %s: %v", e.Email, e.Err)
}

func (e *ErrTokenRefresh) Unwrap() error {
	return e.Err
}

// Remote API errors

type ErrRequestFailed struct {
	Operation string
	Status    int
	Err       error
}

func (e *ErrRequestFailed) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s failed with status %d", e.Operation, e.Status)
	}
	return fmt.Sprintf("%s failed: %v", e.Operation, e.Err)
}

func (e *ErrRequestFailed) Unwrap() error {
	return e.Err
}

// Database errors

type ErrDatabaseOpen struct {
	Path string
	Err  error
}

func (e *ErrDatabaseOpen) Error() string {
	return fmt.Sprintf("failed to open database %s: %v", e.Path, e.Err)
}

func (e *ErrDatabaseOpen) Unwrap() error {
	return e.Err
}

type ErrDatabaseMigration struct {
	Version int
	Err     error
}

func (e *ErrDatabaseMigration) Error() string {
	return fmt.Sprintf("database migration %d failed: %v", e.Version, e.Err)
}

func (e *ErrDatabaseMigration) Unwrap() error {
	return e.Err
}

type ErrDatabaseQuery struct {
	Operation string
	Err       error
}

func (e *ErrDatabaseQuery) Error() string {
	return fmt.Sprintf("database query failed for operation %s: %v", e.Operation, e.Err)
}

func (e *ErrDatabaseQuery) Unwrap() error {
	return e.Err
}

// Server errors

type ErrServerStart struct {
	Addr string
	Err  error
}

func (e *ErrServerStart) Error() string {
	return fmt.Sprintf("failed to start server on %s: %v", e.Addr, e.Err)
}

func (e *ErrServerStart) Unwrap() error {
	return e.Err
}
