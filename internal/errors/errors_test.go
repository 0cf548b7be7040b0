package errors

import (
	"fmt"
	"strings"
	"testing"
)

func TestExternalToolError(t *testing.T) {
	cause := New("exit status 1")
	err := NewExternalToolError("compose up failed", cause).
		WithTool("docker").
		WithProject("webapp").
		WithOutput("some captured output\n")

	msg := err.Error()
	if !strings.Contains(msg, "tool=docker") {
		t.Errorf("Error() = %q, want tool context", msg)
	}
	if !strings.Contains(msg, "project=webapp") {
		t.Errorf("Error() = %q, want project context", msg)
	}
	if !strings.Contains(msg, "some captured output") {
		t.Errorf("Error() = %q, want captured output", msg)
	}
	if strings.HasSuffix(msg, "\n") {
		t.Errorf("Error() should trim trailing whitespace from output")
	}

	if !Is(err, cause) {
		t.Error("Is() should match the wrapped cause")
	}
	if IsFatal(err) {
		t.Error("external tool errors should be recoverable by default")
	}
	if !IsRecoverable(err) {
		t.Error("IsRecoverable() should be true for an external tool error")
	}
}

func TestExternalToolErrorSeverityOverride(t *testing.T) {
	err := NewExternalToolError("git clone failed", nil).WithSeverity(SeverityFatal)
	if !IsFatal(err) {
		t.Error("severity override to fatal should be honored")
	}
}

func TestValidationErrorIsFatal(t *testing.T) {
	err := NewValidationError("id must start with a lowercase letter or underscore").
		WithField("id").
		WithValue("9lives")

	if !IsFatal(err) {
		t.Error("validation errors must abort before side effects")
	}
	if !Is(err, ErrInvalidIdentifier) {
		t.Error("validation errors should match ErrInvalidIdentifier")
	}
	if !strings.Contains(err.Error(), "field=id") {
		t.Errorf("Error() = %q, want field context", err.Error())
	}
}

func TestNotFoundError(t *testing.T) {
	err := NewNotFoundError("project", "webapp")

	want := "project 'webapp' not found"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
	if !Is(err, ErrProjectNotFound) {
		t.Error("NotFoundError should match ErrProjectNotFound")
	}
	if !IsFatal(err) {
		t.Error("not-found errors abort the invocation")
	}
}

func TestAlreadyExistsError(t *testing.T) {
	err := NewAlreadyExistsError("project", "webapp")
	if !Is(err, ErrProjectExists) {
		t.Error("AlreadyExistsError should match ErrProjectExists")
	}

	var typed *AlreadyExistsError
	if !As(fmt.Errorf("create: %w", err), &typed) {
		t.Error("As() should find AlreadyExistsError through wrapping")
	}
}

func TestAmbiguousSelectionError(t *testing.T) {
	err := NewAmbiguousSelectionError("alpha*", []string{"alpha", "alphabeta"})

	msg := err.Error()
	if !strings.Contains(msg, "alpha, alphabeta") {
		t.Errorf("Error() = %q, want candidate list", msg)
	}
	if !IsFatal(err) {
		t.Error("ambiguous selection must not pick a default")
	}
}

func TestPermissionDriftIsWarning(t *testing.T) {
	err := NewPermissionDriftError("/tmp/credential", 0o644, 0o600)

	if !IsWarning(err) {
		t.Error("permission drift is warn-only")
	}
	if IsFatal(err) || IsRecoverable(err) {
		t.Error("permission drift should be neither fatal nor recoverable-failure")
	}
	if !strings.Contains(err.Error(), "0644") {
		t.Errorf("Error() = %q, want observed mode", err.Error())
	}
}

func TestGetSeverity(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Severity
	}{
		{"nil", nil, SeverityWarning},
		{"plain", New("boom"), SeverityError},
		{"validation", NewValidationError("bad"), SeverityFatal},
		{"drift", NewPermissionDriftError("f", 0o644, 0o600), SeverityWarning},
		{"tool", NewExternalToolError("x", nil), SeverityError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GetSeverity(tt.err); got != tt.want {
				t.Errorf("GetSeverity() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestWrapNil(t *testing.T) {
	if Wrap(nil, "context") != nil {
		t.Error("Wrap(nil) should return nil")
	}
	if Wrapf(nil, "context %d", 1) != nil {
		t.Error("Wrapf(nil) should return nil")
	}
}

func TestWrapPreservesIs(t *testing.T) {
	err := Wrap(ErrNoUpstream, "compare failed")
	if !Is(err, ErrNoUpstream) {
		t.Error("Wrap should preserve errors.Is matching")
	}
}
