package auth

import (
	"testing"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
)

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("correct horse battery staple")
	if err != nil {
		t.Fatalf("HashPassword failed: %v", err)
	}
	if hash == "correct horse battery staple" {
		t.Fatal("hash equals plaintext")
	}

	if !CheckPassword(hash, "correct horse battery staple") {
		t.Error("expected matching password to verify")
	}
	if CheckPassword(hash, "wrong password") {
		t.Error("expected wrong password to fail")
	}
}

func TestTokenRoundTrip(t *testing.T) {
	m, err := NewManager("test-secret", time.Minute)
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}

	user := &domain.User{
		ID:    "user-001",
		Email: "analyst@example.com",
		Role:  domain.RoleAnalyst,
	}

	token, err := m.IssueToken(user)
	if err != nil {
		t.Fatalf("IssueToken failed: %v", err)
	}

	claims, err := m.ParseToken(token)
	if err != nil {
		t.Fatalf("ParseToken failed: %v", err)
	}
	if claims.UserID != "user-001" {
		t.Errorf("expected user-001, got %s", claims.UserID)
	}
	if claims.Role != domain.RoleAnalyst {
		t.Errorf("expected Analyst role, got %s", claims.Role)
	}
}

func TestTokenValidation(t *testing.T) {
	m, _ := NewManager("test-secret", time.Minute)
	user := &domain.User{ID: "user-001", Email: "a@b.c", Role: domain.RoleViewer}

	t.Run("WrongSecret", func(t *testing.T) {
		other, _ := NewManager("other-secret", time.Minute)
		token, _ := other.IssueToken(user)
		if _, err := m.ParseToken(token); err == nil {
			t.Error("expected token signed with other secret to fail")
		}
	})

	t.Run("Garbage", func(t *testing.T) {
		if _, err := m.ParseToken("not.a.token"); err == nil {
			t.Error("expected garbage token to fail")
		}
	})

	t.Run("Expired", func(t *testing.T) {
		short, _ := NewManager("test-secret", time.Nanosecond)
		token, _ := short.IssueToken(user)
		time.Sleep(time.Millisecond)
		if _, err := m.ParseToken(token); err == nil {
			t.Error("expected expired token to fail")
		}
	})
}

func TestNewManagerRequiresSecret(t *testing.T) {
	if _, err := NewManager("", time.Minute); err == nil {
		t.Error("expected error for empty secret")
	}
}
