package jwtPkg

import (
	"AttendanceBackend/internal/entity"
	"errors"
	"testing"
	"time"
)

const testSecretEnv = "JWT_ACCESS_TOKEN_SECRET"

func TestSignAndVerifyRoundTrip(t *testing.T) {
	t.Setenv(testSecretEnv, "test-secret")

	raw, exp, err := Sign(map[string]interface{}{
		"id":    "01HZX3F7Q2M8V6N4K1B9C0D5EA",
		"email": "lecturer@campus.test",
		"role":  string(entity.RoleFaculty),
	}, time.Hour)
	if err != nil {
		t.Fatalf("Sign returned error: %v", err)
	}
	if exp <= time.Now().Unix() {
		t.Fatalf("expiry %d is not in the future", exp)
	}

	token, err := VerifyToken(raw, testSecretEnv)
	if err != nil {
		t.Fatalf("VerifyToken returned error: %v", err)
	}

	user, err := UserFromToken(token)
	if err != nil {
		t.Fatalf("UserFromToken returned error: %v", err)
	}
	if user.ID != "01HZX3F7Q2M8V6N4K1B9C0D5EA" || user.Email != "lecturer@campus.test" || user.Role != entity.RoleFaculty {
		t.Fatalf("unexpected user %+v", user)
	}
}

func TestVerifyTokenRejectsWrongSecret(t *testing.T) {
	t.Setenv(testSecretEnv, "first")
	raw, _, err := Sign(map[string]interface{}{"id": "a", "email": "b", "role": "student"}, time.Hour)
	if err != nil {
		t.Fatalf("Sign returned error: %v", err)
	}

	t.Setenv(testSecretEnv, "second")
	if _, err := VerifyToken(raw, testSecretEnv); err == nil {
		t.Fatal("expected signature verification to fail")
	}
}

func TestVerifyTokenRejectsEmpty(t *testing.T) {
	t.Setenv(testSecretEnv, "test-secret")
	if _, err := VerifyToken("", testSecretEnv); !errors.Is(err, ErrEmptyToken) {
		t.Fatalf("expected ErrEmptyToken, got %v", err)
	}
}

func TestUserFromTokenRequiresRole(t *testing.T) {
	t.Setenv(testSecretEnv, "test-secret")
	raw, _, err := Sign(map[string]interface{}{"id": "a", "email": "b"}, time.Hour)
	if err != nil {
		t.Fatalf("Sign returned error: %v", err)
	}
	token, err := VerifyToken(raw, testSecretEnv)
	if err != nil {
		t.Fatalf("VerifyToken returned error: %v", err)
	}
	if _, err := UserFromToken(token); !errors.Is(err, ErrMissingClaims) {
		t.Fatalf("expected ErrMissingClaims, got %v", err)
	}
}
