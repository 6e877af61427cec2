package domain

import (
	"testing"

	"github.com/google/uuid"
)

func TestNewUser(t *testing.T) {
	t.Parallel()
	user, err := NewUser("Parent@Example.com", "correct-horse-battery")

	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if user.ID == uuid.Nil {
		t.Error("Expected non-nil UUID, got nil UUID")
	}

	if user.Email != "parent@example.com" {
		t.Errorf("Expected lowercased email, got %q", user.Email)
	}

	// Test short password
	_, err = NewUser("parent@example.com", "short")
	if err != ErrPasswordTooShort {
		t.Errorf("Expected error %v, got %v", ErrPasswordTooShort, err)
	}

	// Test invalid email
	_, err = NewUser("not-an-email", "correct-horse-battery")
	if err != ErrInvalidEmail {
		t.Errorf("Expected error %v, got %v", ErrInvalidEmail, err)
	}
}

func TestUserValidateStoredUser(t *testing.T) {
	t.Parallel()
	// A user loaded from storage has a hash but no plaintext password.
	user := User{
		ID:             uuid.New(),
		Email:          "parent@example.com",
		HashedPassword: "$2a$10$abcdefghijklmnopqrstuv",
	}

	if err := user.Validate(); err != nil {
		t.Errorf("Expected no error, got %v", err)
	}

	user.HashedPassword = ""
	if err := user.Validate(); err != ErrEmptyPassword {
		t.Errorf("Expected error %v, got %v", ErrEmptyPassword, err)
	}
}
