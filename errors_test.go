package kgraph

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestSentinelErrors verifies that all sentinel errors are defined correctly.
func TestSentinelErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "ErrNoPolicies", err: ErrNoPolicies, want: "no policies loaded"},
		{name: "ErrArtifactNotFound", err: ErrArtifactNotFound, want: "graph artifact not found"},
		{name: "ErrCorruptArtifact", err: ErrCorruptArtifact, want: "graph artifact corrupt"},
		{name: "ErrInvalidConfig", err: ErrInvalidConfig, want: "invalid configuration"},
		{name: "ErrGraphFrozen", err: ErrGraphFrozen, want: "graph is read-only"},
		{name: "ErrNodeNotFound", err: ErrNodeNotFound, want: "node not found"},
		{name: "ErrInvalidStrength", err: ErrInvalidStrength, want: "edge strength out of range"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err == nil {
				t.Fatalf("sentinel error %s is nil", tt.name)
			}
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("error message = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestErrorError(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{
			name: "basic error",
			err:  &Error{Op: "Builder.Build", Kind: KindBuild, Err: ErrNoPolicies},
			want: "kgraph: Builder.Build (build): no policies loaded",
		},
		{
			name: "nil underlying error",
			err:  &Error{Op: "FileStore.Load", Kind: KindStorage},
			want: "kgraph: FileStore.Load: storage",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}

	withCtx := (&Error{Op: "RedisStore.Load", Kind: KindStorage, Err: ErrArtifactNotFound}).
		WithContext(map[string]any{"key": "kgraph:artifact"})
	if !strings.Contains(withCtx.Error(), "key:kgraph:artifact") {
		t.Errorf("Error() = %q, want context rendered", withCtx.Error())
	}
}

func TestErrorIs(t *testing.T) {
	base := NewBuildError("Builder.Build", ErrNoPolicies)
	wrapped := fmt.Errorf("build failed: %w", base)

	assert.True(t, errors.Is(wrapped, ErrNoPolicies), "sentinel should match through wrapping")
	assert.True(t, errors.Is(wrapped, &Error{Kind: KindBuild}), "kind-only target should match")
	assert.True(t, errors.Is(wrapped, &Error{Op: "Builder.Build", Kind: KindBuild}))
	assert.False(t, errors.Is(wrapped, &Error{Op: "Retriever.New", Kind: KindBuild}))
	assert.False(t, errors.Is(wrapped, ErrCorruptArtifact))
	assert.False(t, base.Is(nil))

	var kerr *Error
	if assert.True(t, errors.As(wrapped, &kerr)) {
		assert.Equal(t, "Builder.Build", kerr.Op)
	}
}

func TestErrorWithContextDoesNotMutate(t *testing.T) {
	orig := NewStorageError("EtcdStore.Save", errors.New("boom")).WithContext(map[string]any{"a": 1})
	derived := orig.WithContext(map[string]any{"b": 2})

	assert.Len(t, orig.Context, 1)
	assert.Len(t, derived.Context, 2)
	assert.Equal(t, 1, derived.Context["a"])
}

func TestConstructorsSetKind(t *testing.T) {
	tests := []struct {
		err  *Error
		kind string
	}{
		{NewNotFoundError("op", ErrNodeNotFound), KindNotFound},
		{NewValidationError("op", ErrInvalidStrength), KindValidation},
		{NewBuildError("op", ErrNoPolicies), KindBuild},
		{NewStorageError("op", ErrArtifactNotFound), KindStorage},
		{NewConfigurationError("op", ErrInvalidConfig), KindConfiguration},
		{NewInternalError("op", errors.New("x")), KindInternal},
	}
	for _, tt := range tests {
		t.Run(tt.kind, func(t *testing.T) {
			assert.Equal(t, tt.kind, tt.err.Kind)
			assert.Equal(t, "op", tt.err.Op)
		})
	}
}
