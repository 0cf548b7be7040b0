// Package project provides the project store: one record file per managed
// project, persisted as YAML with owner-only permissions. Records own the
// durable state of a project (everything except its observed run state,
// which is derived on demand by the backends).
package project

import (
	"fmt"
	"regexp"

	"github.com/JeredArc/jeredmgr/internal/errors"
)

// Type identifies the backend technology a project is bound to.
// It is a closed set: records carrying any other type tag load as
// TypeUnknown, which disables every lifecycle operation except removal.
type Type int

const (
	// TypeUnknown is any unrecognized type tag.
	TypeUnknown Type = iota
	// TypeContainer is a docker-compose stack.
	TypeContainer
	// TypeService is an init-system service unit.
	TypeService
	// TypeScripts is a plain script bundle.
	TypeScripts
)

// Type string constants
const (
	typeUnknownStr   = "unknown"
	typeContainerStr = "container"
	typeServiceStr   = "service"
	typeScriptsStr   = "scripts"
)

// String returns the string representation of the Type.
func (t Type) String() string {
	switch t {
	case TypeContainer:
		return typeContainerStr
	case TypeService:
		return typeServiceStr
	case TypeScripts:
		return typeScriptsStr
	case TypeUnknown:
		fallthrough
	default:
		return typeUnknownStr
	}
}

// ParseType parses a type tag. Unrecognized tags yield TypeUnknown with no
// error; callers that require a known type must check explicitly.
func ParseType(s string) Type {
	switch s {
	case typeContainerStr:
		return TypeContainer
	case typeServiceStr:
		return TypeService
	case typeScriptsStr:
		return TypeScripts
	default:
		return TypeUnknown
	}
}

// KnownTypes returns the valid type tags for user-facing messages.
func KnownTypes() []string {
	return []string{typeContainerStr, typeServiceStr, typeScriptsStr}
}

// AuthMode selects how git operations against the project's repository
// authenticate.
type AuthMode int

const (
	// AuthNone performs unauthenticated git operations.
	AuthNone AuthMode = iota
	// AuthGlobal uses the process-wide global credential file.
	AuthGlobal
	// AuthLocal uses a per-project token stored on the record.
	AuthLocal
)

// AuthMode string constants
const (
	authNoneStr   = "none"
	authGlobalStr = "global"
	authLocalStr  = "local"
)

// String returns the string representation of the AuthMode.
func (m AuthMode) String() string {
	switch m {
	case AuthGlobal:
		return authGlobalStr
	case AuthLocal:
		return authLocalStr
	default:
		return authNoneStr
	}
}

// ParseAuthMode parses an auth mode tag, defaulting to AuthNone.
func ParseAuthMode(s string) AuthMode {
	switch s {
	case authGlobalStr:
		return AuthGlobal
	case authLocalStr:
		return AuthLocal
	default:
		return AuthNone
	}
}

// Record is a single project's durable state. It is owned exclusively by
// the Store; all other components receive copies.
type Record struct {
	// ID is the unique, immutable project identifier. It is derived from
	// the record's file name and never stored inside the file.
	ID string

	// Enabled is the only persisted lifecycle state.
	Enabled bool

	// Type binds the project to exactly one backend.
	Type Type

	// RepoURL is the remote source repository; empty for unmanaged sources.
	RepoURL string

	// SubPath optionally selects a subdirectory of the repository as the
	// project path. When set, the working copy is a private full clone and
	// the project path is a symlink alias into <clone>/<SubPath>.
	SubPath string

	// AuthMode selects credential handling for git operations.
	AuthMode AuthMode

	// AuthToken is the per-project token when AuthMode is AuthLocal.
	// The record file's owner-only permissions protect it.
	AuthToken string

	// Path is the project's local directory.
	Path string

	// rawType preserves an unrecognized type tag verbatim so a save does
	// not destroy information a newer version of the tool may understand.
	rawType string

	// extra preserves unknown record fields across load/save round trips.
	extra map[string]any
}

// identifierRe is the project identifier grammar: a lowercase letter or
// underscore, then lowercase letters, digits, or underscores.
var identifierRe = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// ValidateID checks an id against the identifier grammar.
func ValidateID(id string) error {
	if identifierRe.MatchString(id) {
		return nil
	}
	return errors.NewValidationError(
		"must start with a lowercase letter or underscore, followed by lowercase letters, digits, or underscores").
		WithField("id").
		WithValue(id).
		WithCause(errors.ErrInvalidIdentifier)
}

// TypeName returns the type tag to persist: the recognized tag, or the
// original raw tag for an unknown type.
func (r *Record) TypeName() string {
	if r.Type == TypeUnknown && r.rawType != "" {
		return r.rawType
	}
	return r.Type.String()
}

// Manageable reports whether lifecycle operations may run against this
// record. Unknown-typed records are only ever removable.
func (r *Record) Manageable() bool {
	return r.Type != TypeUnknown
}

// Clone returns a deep copy of the record.
func (r *Record) Clone() *Record {
	clone := *r
	if r.extra != nil {
		clone.extra = make(map[string]any, len(r.extra))
		for k, v := range r.extra {
			clone.extra[k] = v
		}
	}
	return &clone
}

// String returns a short description for logs and error messages.
func (r *Record) String() string {
	return fmt.Sprintf("%s (%s)", r.ID, r.TypeName())
}
