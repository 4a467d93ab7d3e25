package utils

import (
	"os"
	"testing"
	"time"

	"github.com/prepdash/prepdash/config"
)

func TestMain(m *testing.M) {
	os.Setenv("JWT_SECRET", "test-secret")
	os.Setenv("DB_USER", "test")
	config.Load()
	os.Exit(m.Run())
}

func TestTokenRoundTrip(t *testing.T) {
	token, err := GenerateToken(42, "alice", time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken returned error: %v", err)
	}

	claims, err := ParseToken(token)
	if err != nil {
		t.Fatalf("ParseToken returned error: %v", err)
	}
	if claims.UserID != 42 || claims.Username != "alice" {
		t.Errorf("claims = %d/%q, want 42/alice", claims.UserID, claims.Username)
	}
}

func TestParseTokenRejectsExpired(t *testing.T) {
	token, err := GenerateToken(42, "alice", -time.Minute)
	if err != nil {
		t.Fatalf("GenerateToken returned error: %v", err)
	}
	if _, err := ParseToken(token); err == nil {
		t.Fatal("expected error for expired token")
	}
}

func TestParseTokenRejectsGarbage(t *testing.T) {
	if _, err := ParseToken("not.a.token"); err == nil {
		t.Fatal("expected error for malformed token")
	}
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("hunter22")
	if err != nil {
		t.Fatalf("HashPassword returned error: %v", err)
	}
	if hash == "hunter22" {
		t.Fatal("hash equals plaintext")
	}
	if !CheckPassword(hash, "hunter22") {
		t.Error("CheckPassword rejected the right password")
	}
	if CheckPassword(hash, "hunter23") {
		t.Error("CheckPassword accepted the wrong password")
	}
}

func TestSanitizeStripsMarkup(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"plain text", "plain text"},
		{"<b>bold</b> move", "bold move"},
		{"<script>alert(1)</script>", ""},
	}
	for _, tc := range tests {
		if got := Sanitize(tc.in); got != tc.want {
			t.Errorf("Sanitize(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestTokenBlacklist(t *testing.T) {
	token := "session-token-1"
	if IsTokenBlacklisted(token) {
		t.Fatal("fresh token already blacklisted")
	}
	BlacklistToken(token, time.Now().Add(time.Minute))
	if !IsTokenBlacklisted(token) {
		t.Error("blacklisted token not reported")
	}
}
