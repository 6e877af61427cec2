package store

import (
	"errors"
	"fmt"
	"testing"
)

func TestIsNotFoundError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{
			name:     "nil error",
			err:      nil,
			expected: false,
		},
		{
			name:     "generic error",
			err:      errors.New("some error"),
			expected: false,
		},
		{
			name:     "ErrNotFound",
			err:      ErrNotFound,
			expected: true,
		},
		{
			name:     "wrapped ErrNotFound",
			err:      fmt.Errorf("failed to do something: %w", ErrNotFound),
			expected: true,
		},
		{
			name:     "ErrStoryNotFound",
			err:      ErrStoryNotFound,
			expected: true,
		},
		{
			name:     "wrapped ErrSceneNotFound",
			err:      fmt.Errorf("failed to find scene: %w", ErrSceneNotFound),
			expected: true,
		},
		{
			name:     "ErrEmailExists is not a not-found error",
			err:      ErrEmailExists,
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsNotFoundError(tt.err); got != tt.expected {
				t.Errorf("IsNotFoundError(%v) = %v, want %v", tt.err, got, tt.expected)
			}
		})
	}
}

func TestIsDuplicateError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{
			name:     "nil error",
			err:      nil,
			expected: false,
		},
		{
			name:     "ErrDuplicate",
			err:      ErrDuplicate,
			expected: true,
		},
		{
			name:     "wrapped ErrEmailExists",
			err:      fmt.Errorf("failed to create user: %w", ErrEmailExists),
			expected: true,
		},
		{
			name:     "ErrStoryNotFound is not a duplicate error",
			err:      ErrStoryNotFound,
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsDuplicateError(tt.err); got != tt.expected {
				t.Errorf("IsDuplicateError(%v) = %v, want %v", tt.err, got, tt.expected)
			}
		})
	}
}

func TestStoreError(t *testing.T) {
	inner := errors.New("connection refused")
	storeErr := NewStoreError("story", "create", "insert failed", inner)

	if !errors.Is(storeErr, inner) {
		t.Error("expected StoreError to unwrap to the inner error")
	}

	want := "create operation on story failed: insert failed: connection refused"
	if storeErr.Error() != want {
		t.Errorf("Error() = %q, want %q", storeErr.Error(), want)
	}

	bare := NewStoreError("scene", "update", "no rows affected", nil)
	want = "update operation on scene failed: no rows affected"
	if bare.Error() != want {
		t.Errorf("Error() = %q, want %q", bare.Error(), want)
	}
}
