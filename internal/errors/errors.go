// Package errors provides centralized error definitions and error handling
// utilities for the JeredMgr codebase. It defines domain-specific errors,
// semantic error types, error constructors with context wrapping, and error
// classification helpers.
//
// # Error Types
//
// Domain-specific errors represent errors from specific subsystems:
//   - ExternalToolError: an underlying tool invocation failed (docker compose,
//     systemctl, git, a project script)
//   - GitError: errors from the git update engine, carrying captured output
//
// Semantic errors represent common error conditions:
//   - ValidationError: invalid identifier, type, or argument
//   - NotFoundError: missing record or artifact
//   - AlreadyExistsError: record already present
//   - AmbiguousSelectionError: a name resolved to multiple candidates where
//     exactly one is allowed
//   - PermissionDriftError: a secret-bearing file has looser permissions than
//     required (warning severity, never blocking)
//
// # Classification
//
// Every lifecycle operation outcome is Success, Recoverable, or Fatal.
// Recoverable errors are reported and a batch run continues to the next
// target; Fatal errors abort the batch. Use IsFatal to branch.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Re-export standard library functions for convenience.
// This allows callers to import only this package for all error handling.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

// Severity represents the severity level of an error.
type Severity int

const (
	// SeverityWarning is for conditions that are reported but never block.
	SeverityWarning Severity = iota
	// SeverityError is for real failures confined to a single target.
	SeverityError
	// SeverityFatal is for failures that must abort the whole invocation.
	SeverityFatal
)

// String returns the string representation of the severity level.
func (s Severity) String() string {
	switch s {
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// -----------------------------------------------------------------------------
// Sentinel Errors
// -----------------------------------------------------------------------------

// Project store sentinel errors
var (
	// ErrProjectNotFound indicates a project record could not be found.
	ErrProjectNotFound = New("project not found")
	// ErrProjectExists indicates a project record already exists.
	ErrProjectExists = New("project already exists")
	// ErrProjectEnabled indicates an operation requires the project disabled first.
	ErrProjectEnabled = New("project is still enabled")
	// ErrInvalidIdentifier indicates a project id violates the identifier grammar.
	ErrInvalidIdentifier = New("invalid project identifier")
	// ErrUnknownType indicates a record carries an unrecognized project type.
	ErrUnknownType = New("unknown project type")
)

// Git engine sentinel errors
var (
	// ErrNotGitRepository indicates the directory is not a valid working copy.
	ErrNotGitRepository = New("not a git repository")
	// ErrNoUpstream indicates the working copy has no tracking ref.
	ErrNoUpstream = New("no upstream configured")
	// ErrUntrustedHost indicates a credential was refused for a host outside
	// the allowlist.
	ErrUntrustedHost = New("host is not in the trusted host list")
	// ErrNoCredential indicates a credential is required but none is available.
	ErrNoCredential = New("no credential available")
)

// Backend sentinel errors
var (
	// ErrArtifactMissing indicates the backing descriptor or link cannot be located.
	ErrArtifactMissing = New("backend artifact not found")
	// ErrNoStatusProbe indicates the backend has no native status concept.
	ErrNoStatusProbe = New("no status probe available")
	// ErrNonInteractive indicates an operation needed a prompt but the
	// invocation is non-interactive.
	ErrNonInteractive = New("interactive input required but not available")
)

// General sentinel errors
var (
	// ErrConfirmationTimeout indicates a state confirmation poll exhausted
	// its attempts with a definite opposite final state.
	ErrConfirmationTimeout = New("state confirmation timed out")
	// ErrAborted indicates the operator declined a confirmation prompt.
	ErrAborted = New("aborted by operator")
)

// -----------------------------------------------------------------------------
// Base Error Interface
// -----------------------------------------------------------------------------

// ManagerError is the base interface for all JeredMgr errors. It extends the
// standard error interface with classification methods.
type ManagerError interface {
	error

	// Unwrap returns the underlying error, if any.
	Unwrap() error

	// Is reports whether this error matches the target error.
	Is(target error) bool

	// Severity returns the severity level of this error.
	Severity() Severity

	// IsFatal returns true if the error must abort the whole invocation
	// rather than just fail the current target.
	IsFatal() bool
}

// baseError provides common functionality for all error types.
type baseError struct {
	message  string
	cause    error
	severity Severity
}

// Error returns the error message.
func (e *baseError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

// Unwrap returns the underlying error.
func (e *baseError) Unwrap() error {
	return e.cause
}

// Is checks if this error matches the target.
func (e *baseError) Is(target error) bool {
	if e.cause != nil {
		return errors.Is(e.cause, target)
	}
	return false
}

// Severity returns the error severity.
func (e *baseError) Severity() Severity {
	return e.severity
}

// IsFatal returns whether the error aborts the whole invocation.
func (e *baseError) IsFatal() bool {
	return e.severity == SeverityFatal
}

// -----------------------------------------------------------------------------
// Domain-Specific Errors
// -----------------------------------------------------------------------------

// ExternalToolError represents a failed invocation of an underlying tool
// (container runtime, service manager, git, or a project-supplied script).
// The captured combined output is attached for reporting; there is no
// automatic retry beyond the bounded status confirmation poll.
//
// Example:
//
//	err := errors.NewExternalToolError("docker compose up failed", cause).
//		WithTool("docker").WithOutput(string(out))
type ExternalToolError struct {
	baseError
	Tool    string
	Project string
	Output  string
}

// NewExternalToolError creates a new ExternalToolError.
func NewExternalToolError(message string, cause error) *ExternalToolError {
	return &ExternalToolError{
		baseError: baseError{
			message:  message,
			cause:    cause,
			severity: SeverityError,
		},
	}
}

// WithTool adds the tool name to the error context.
func (e *ExternalToolError) WithTool(tool string) *ExternalToolError {
	e.Tool = tool
	return e
}

// WithProject adds the project id to the error context.
func (e *ExternalToolError) WithProject(id string) *ExternalToolError {
	e.Project = id
	return e
}

// WithOutput attaches the tool's captured output.
func (e *ExternalToolError) WithOutput(output string) *ExternalToolError {
	e.Output = strings.TrimSpace(output)
	return e
}

// WithSeverity sets the error severity.
func (e *ExternalToolError) WithSeverity(s Severity) *ExternalToolError {
	e.severity = s
	return e
}

// Error returns the formatted error message.
func (e *ExternalToolError) Error() string {
	var parts []string
	if e.Tool != "" {
		parts = append(parts, fmt.Sprintf("tool=%s", e.Tool))
	}
	if e.Project != "" {
		parts = append(parts, fmt.Sprintf("project=%s", e.Project))
	}

	prefix := "external tool error"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("external tool error [%s]", strings.Join(parts, ", "))
	}

	msg := e.message
	if e.cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.cause)
	}
	if e.Output != "" {
		msg = fmt.Sprintf("%s\noutput: %s", msg, e.Output)
	}

	return fmt.Sprintf("%s: %s", prefix, msg)
}

// Is checks if this error matches the target.
func (e *ExternalToolError) Is(target error) bool {
	if _, ok := target.(*ExternalToolError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// GitError represents errors from the git update engine.
//
// Example:
//
//	err := errors.NewGitError("fetch failed", cause).
//		WithRepository(gitpath).WithGitOutput(string(out))
type GitError struct {
	baseError
	Repository string
	Remote     string
	GitOutput  string
}

// NewGitError creates a new GitError.
func NewGitError(message string, cause error) *GitError {
	return &GitError{
		baseError: baseError{
			message:  message,
			cause:    cause,
			severity: SeverityError,
		},
	}
}

// WithRepository adds a working copy path to the error context.
func (e *GitError) WithRepository(path string) *GitError {
	e.Repository = path
	return e
}

// WithRemote adds a remote URL to the error context. Credentials must be
// redacted by the caller before attaching.
func (e *GitError) WithRemote(url string) *GitError {
	e.Remote = url
	return e
}

// WithGitOutput adds git command output to the error context.
func (e *GitError) WithGitOutput(output string) *GitError {
	e.GitOutput = strings.TrimSpace(output)
	return e
}

// WithSeverity sets the error severity.
func (e *GitError) WithSeverity(s Severity) *GitError {
	e.severity = s
	return e
}

// Error returns the formatted error message.
func (e *GitError) Error() string {
	var parts []string
	if e.Repository != "" {
		parts = append(parts, fmt.Sprintf("repo=%s", e.Repository))
	}
	if e.Remote != "" {
		parts = append(parts, fmt.Sprintf("remote=%s", e.Remote))
	}

	prefix := "git error"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("git error [%s]", strings.Join(parts, ", "))
	}

	msg := e.message
	if e.cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.cause)
	}
	if e.GitOutput != "" {
		msg = fmt.Sprintf("%s\ngit output: %s", msg, e.GitOutput)
	}

	return fmt.Sprintf("%s: %s", prefix, msg)
}

// Is checks if this error matches the target.
func (e *GitError) Is(target error) bool {
	if _, ok := target.(*GitError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Semantic Errors
// -----------------------------------------------------------------------------

// ValidationError represents a bad identifier, type, or argument. These are
// always raised before any side effect and always abort the invocation.
//
// Example:
//
//	err := errors.NewValidationError("id must start with a lowercase letter").
//		WithField("id").WithValue("9lives")
type ValidationError struct {
	baseError
	Field string
	Value any
}

// NewValidationError creates a new ValidationError.
func NewValidationError(message string) *ValidationError {
	return &ValidationError{
		baseError: baseError{
			message:  message,
			severity: SeverityFatal,
		},
	}
}

// WithField adds a field name to the error context.
func (e *ValidationError) WithField(field string) *ValidationError {
	e.Field = field
	return e
}

// WithValue adds the invalid value to the error context.
func (e *ValidationError) WithValue(value any) *ValidationError {
	e.Value = value
	return e
}

// WithCause adds a cause to the error.
func (e *ValidationError) WithCause(cause error) *ValidationError {
	e.cause = cause
	return e
}

// Error returns the formatted error message.
func (e *ValidationError) Error() string {
	var parts []string
	if e.Field != "" {
		parts = append(parts, fmt.Sprintf("field=%s", e.Field))
	}
	if e.Value != nil {
		parts = append(parts, fmt.Sprintf("value=%v", e.Value))
	}

	prefix := "validation error"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("validation error [%s]", strings.Join(parts, ", "))
	}

	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is checks if this error matches the target.
func (e *ValidationError) Is(target error) bool {
	if _, ok := target.(*ValidationError); ok {
		return true
	}
	if errors.Is(target, ErrInvalidIdentifier) {
		return true
	}
	return e.baseError.Is(target)
}

// NotFoundError represents a resource that could not be found.
//
// Example:
//
//	err := errors.NewNotFoundError("project", "webapp")
//	fmt.Println(err) // "project 'webapp' not found"
type NotFoundError struct {
	baseError
	ResourceType string
	ResourceID   string
}

// NewNotFoundError creates a new NotFoundError.
func NewNotFoundError(resourceType, resourceID string) *NotFoundError {
	return &NotFoundError{
		baseError: baseError{
			message:  fmt.Sprintf("%s '%s' not found", resourceType, resourceID),
			severity: SeverityFatal,
		},
		ResourceType: resourceType,
		ResourceID:   resourceID,
	}
}

// WithCause adds a cause to the error.
func (e *NotFoundError) WithCause(cause error) *NotFoundError {
	e.cause = cause
	return e
}

// Error returns the formatted error message.
func (e *NotFoundError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s '%s' not found: %v", e.ResourceType, e.ResourceID, e.cause)
	}
	return fmt.Sprintf("%s '%s' not found", e.ResourceType, e.ResourceID)
}

// Is checks if this error matches the target.
func (e *NotFoundError) Is(target error) bool {
	if _, ok := target.(*NotFoundError); ok {
		return true
	}
	if errors.Is(target, ErrProjectNotFound) {
		return true
	}
	return e.baseError.Is(target)
}

// AlreadyExistsError represents a resource that already exists.
type AlreadyExistsError struct {
	baseError
	ResourceType string
	ResourceID   string
}

// NewAlreadyExistsError creates a new AlreadyExistsError.
func NewAlreadyExistsError(resourceType, resourceID string) *AlreadyExistsError {
	return &AlreadyExistsError{
		baseError: baseError{
			message:  fmt.Sprintf("%s '%s' already exists", resourceType, resourceID),
			severity: SeverityFatal,
		},
		ResourceType: resourceType,
		ResourceID:   resourceID,
	}
}

// WithCause adds a cause to the error.
func (e *AlreadyExistsError) WithCause(cause error) *AlreadyExistsError {
	e.cause = cause
	return e
}

// Error returns the formatted error message.
func (e *AlreadyExistsError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s '%s' already exists: %v", e.ResourceType, e.ResourceID, e.cause)
	}
	return fmt.Sprintf("%s '%s' already exists", e.ResourceType, e.ResourceID)
}

// Is checks if this error matches the target.
func (e *AlreadyExistsError) Is(target error) bool {
	if _, ok := target.(*AlreadyExistsError); ok {
		return true
	}
	if errors.Is(target, ErrProjectExists) {
		return true
	}
	return e.baseError.Is(target)
}

// AmbiguousSelectionError represents a name or pattern that resolved to
// multiple candidates where exactly one is allowed. No default is ever
// chosen on the caller's behalf.
type AmbiguousSelectionError struct {
	baseError
	Pattern    string
	Candidates []string
}

// NewAmbiguousSelectionError creates a new AmbiguousSelectionError.
func NewAmbiguousSelectionError(pattern string, candidates []string) *AmbiguousSelectionError {
	return &AmbiguousSelectionError{
		baseError: baseError{
			message:  fmt.Sprintf("'%s' matches %d projects where exactly one is required", pattern, len(candidates)),
			severity: SeverityFatal,
		},
		Pattern:    pattern,
		Candidates: candidates,
	}
}

// Error returns the formatted error message.
func (e *AmbiguousSelectionError) Error() string {
	return fmt.Sprintf("ambiguous selection: %s: %s", e.message, strings.Join(e.Candidates, ", "))
}

// Is checks if this error matches the target.
func (e *AmbiguousSelectionError) Is(target error) bool {
	if _, ok := target.(*AmbiguousSelectionError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// PermissionDriftError reports that a secret-bearing file has looser
// permissions than required. It is warning severity: callers log it and
// optionally auto-correct, but never block on it.
type PermissionDriftError struct {
	baseError
	Path string
	Mode uint32
	Want uint32
}

// NewPermissionDriftError creates a new PermissionDriftError.
func NewPermissionDriftError(path string, mode, want uint32) *PermissionDriftError {
	return &PermissionDriftError{
		baseError: baseError{
			message:  fmt.Sprintf("permissions on %s are %04o, want %04o", path, mode, want),
			severity: SeverityWarning,
		},
		Path: path,
		Mode: mode,
		Want: want,
	}
}

// Error returns the formatted error message.
func (e *PermissionDriftError) Error() string {
	return "permission drift: " + e.message
}

// Is checks if this error matches the target.
func (e *PermissionDriftError) Is(target error) bool {
	if _, ok := target.(*PermissionDriftError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Error Classification Helpers
// -----------------------------------------------------------------------------

// IsFatal returns true if the error must abort the whole invocation.
// Validation, not-found, already-exists, and ambiguous-selection errors are
// fatal; external tool failures default to recoverable so a batch run can
// continue to its remaining targets.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}

	var mgrErr ManagerError
	if As(err, &mgrErr) {
		return mgrErr.IsFatal()
	}

	return false
}

// IsRecoverable returns true if the error should be reported without
// aborting the remaining batch targets.
func IsRecoverable(err error) bool {
	if err == nil {
		return false
	}
	return !IsFatal(err) && !IsWarning(err)
}

// IsWarning returns true if the error is a warn-and-continue condition.
func IsWarning(err error) bool {
	if err == nil {
		return false
	}

	var mgrErr ManagerError
	if As(err, &mgrErr) {
		return mgrErr.Severity() == SeverityWarning
	}

	return false
}

// GetSeverity returns the severity level of the error.
// Returns SeverityError for errors that don't implement ManagerError.
func GetSeverity(err error) Severity {
	if err == nil {
		return SeverityWarning
	}

	var mgrErr ManagerError
	if As(err, &mgrErr) {
		return mgrErr.Severity()
	}

	return SeverityError
}

// -----------------------------------------------------------------------------
// Convenience Constructors
// -----------------------------------------------------------------------------

// Wrap wraps an error with additional context message.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with a formatted context message.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}
