package kgraph

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
)

// Sentinel errors for knowledge graph build and retrieval conditions.
// These errors can be used with errors.Is() for error checking.
var (
	// ErrNoPolicies indicates the knowledge base produced no policy nodes.
	// This is the only fatal build condition: no artifact is written and
	// the previous artifact, if any, stays authoritative.
	ErrNoPolicies = errors.New("no policies loaded")

	// ErrArtifactNotFound indicates no graph artifact has been written yet.
	// Readers treat this as "no index yet", never as a query failure.
	ErrArtifactNotFound = errors.New("graph artifact not found")

	// ErrCorruptArtifact indicates the artifact could not be decoded or
	// failed structural validation (unknown version, dangling edge, etc.).
	ErrCorruptArtifact = errors.New("graph artifact corrupt")

	// ErrInvalidConfig indicates the provided configuration is invalid or incomplete.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrGraphFrozen indicates a mutation was attempted on a read-only graph.
	ErrGraphFrozen = errors.New("graph is read-only")

	// ErrNodeNotFound indicates an edge endpoint or lookup referenced an
	// identifier that is not present in the graph.
	ErrNodeNotFound = errors.New("node not found")

	// ErrInvalidStrength indicates an edge strength outside [0,1].
	ErrInvalidStrength = errors.New("edge strength out of range")
)

// Error kinds categorize errors by their type.
const (
	// KindNotFound represents errors where a resource was not found.
	KindNotFound = "not_found"

	// KindValidation represents errors related to input validation.
	KindValidation = "validation"

	// KindBuild represents errors raised while constructing a graph.
	KindBuild = "build"

	// KindStorage represents errors reading or writing the artifact store.
	KindStorage = "storage"

	// KindConfiguration represents errors related to configuration.
	KindConfiguration = "configuration"

	// KindInternal represents internal errors.
	KindInternal = "internal"
)

// Error is a structured error type that wraps underlying errors with
// additional context about the operation that failed and the category of error.
//
// Error supports unwrapping, so errors.Is() and errors.As() see both the
// Error itself and the sentinel it wraps.
//
// Example usage:
//
//	err := &kgraph.Error{
//		Op:   "Builder.Build",
//		Kind: kgraph.KindBuild,
//		Err:  kgraph.ErrNoPolicies,
//	}
type Error struct {
	// Op is the operation that failed (e.g., "Builder.Build", "FileStore.Load").
	Op string

	// Kind categorizes the error (e.g., KindNotFound, KindStorage).
	Kind string

	// Err is the underlying error that caused this error.
	Err error

	// Context provides additional context about the error (optional).
	Context map[string]any
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("kgraph: %s: %s", e.Op, e.Kind)
	}

	if len(e.Context) > 0 {
		return fmt.Sprintf("kgraph: %s (%s): %v [context: %+v]", e.Op, e.Kind, e.Err, e.Context)
	}

	return fmt.Sprintf("kgraph: %s (%s): %v", e.Op, e.Kind, e.Err)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error by Kind (and Op, when the target sets one),
// and otherwise delegates to the wrapped error.
func (e *Error) Is(target error) bool {
	if target == nil {
		return false
	}

	if t, ok := target.(*Error); ok {
		if t.Kind != "" && e.Kind == t.Kind {
			if t.Op == "" || e.Op == t.Op {
				return true
			}
		}
	}

	return errors.Is(e.Err, target)
}

// WithContext returns a copy of the error with the provided context merged in.
// The receiver is left untouched.
//
// Example:
//
//	err := kgraph.NewStorageError("RedisStore.Save", err).WithContext(map[string]any{
//		"key": "kgraph:artifact",
//	})
func (e *Error) WithContext(ctx map[string]any) *Error {
	newErr := *e
	merged := make(map[string]any, len(e.Context)+len(ctx))
	for k, v := range e.Context {
		merged[k] = v
	}
	for k, v := range ctx {
		merged[k] = v
	}
	newErr.Context = merged
	return &newErr
}

// NewNotFoundError creates a new Error with KindNotFound.
func NewNotFoundError(op string, err error) *Error {
	return &Error{Op: op, Kind: KindNotFound, Err: err}
}

// NewValidationError creates a new Error with KindValidation.
func NewValidationError(op string, err error) *Error {
	return &Error{Op: op, Kind: KindValidation, Err: err}
}

// NewBuildError creates a new Error with KindBuild.
func NewBuildError(op string, err error) *Error {
	return &Error{Op: op, Kind: KindBuild, Err: err}
}

// NewStorageError creates a new Error with KindStorage.
func NewStorageError(op string, err error) *Error {
	return &Error{Op: op, Kind: KindStorage, Err: err}
}

// NewConfigurationError creates a new Error with KindConfiguration.
func NewConfigurationError(op string, err error) *Error {
	return &Error{Op: op, Kind: KindConfiguration, Err: err}
}

// NewInternalError creates a new Error with KindInternal.
func NewInternalError(op string, err error) *Error {
	return &Error{Op: op, Kind: KindInternal, Err: err}
}

// CloseWithLog attempts to close the provided resource and logs any error
// at warning level. This is intended for use in defer statements so cleanup
// errors are not silently ignored.
//
// The name parameter should describe the resource being closed (e.g., "artifact
// store", "watcher"). If logger is nil, slog.Default() is used.
//
// Example usage:
//
//	defer kgraph.CloseWithLog(st, logger, "artifact store")
func CloseWithLog(closer io.Closer, logger *slog.Logger, name string) {
	if closer == nil {
		return
	}

	if logger == nil {
		logger = slog.Default()
	}

	if err := closer.Close(); err != nil {
		logger.Warn("failed to close resource",
			"resource", name,
			"error", err)
	}
}
