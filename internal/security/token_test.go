package security

import (
	"regexp"
	"testing"
	"time"
)

const testSecret = "test_secret_key_minimum_32_chars"

func TestGenerateIntakeToken(t *testing.T) {
	tests := []struct {
		name   string
		client string
		scopes []string
	}{
		{
			name:   "SMS relay",
			client: "relay-1",
			scopes: []string{ScopeSMS},
		},
		{
			name:   "Operator tool",
			client: "ops",
			scopes: []string{ScopeSMS, ScopeAdmin},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, err := GenerateIntakeToken(tt.client, tt.scopes, time.Hour, testSecret)
			if err != nil {
				t.Fatalf("GenerateIntakeToken() error = %v", err)
			}

			claims, err := ValidateIntakeToken(token, testSecret)
			if err != nil {
				t.Fatalf("ValidateIntakeToken() error = %v", err)
			}

			if claims.Client != tt.client {
				t.Errorf("Client = %q, want %q", claims.Client, tt.client)
			}
			for _, s := range tt.scopes {
				if !claims.HasScope(s) {
					t.Errorf("HasScope(%q) = false, want true", s)
				}
			}
		})
	}
}

func TestGenerateIntakeToken_RequiresClient(t *testing.T) {
	if _, err := GenerateIntakeToken("", nil, time.Hour, testSecret); err == nil {
		t.Error("GenerateIntakeToken() expected error for empty client, got nil")
	}
}

func TestValidateIntakeToken_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		token string
	}{
		{
			name:  "Empty token",
			token: "",
		},
		{
			name:  "Invalid format",
			token: "invalid.token.here",
		},
		{
			name:  "Random string",
			token: "randomstring",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ValidateIntakeToken(tt.token, testSecret)
			if err == nil {
				t.Error("ValidateIntakeToken() expected error for invalid token, got nil")
			}
		})
	}
}

func TestValidateIntakeToken_WrongSecret(t *testing.T) {
	token, err := GenerateIntakeToken("relay-1", []string{ScopeSMS}, time.Hour, testSecret)
	if err != nil {
		t.Fatalf("GenerateIntakeToken() error = %v", err)
	}
	if _, err := ValidateIntakeToken(token, "another_secret_key_minimum_32_chars"); err == nil {
		t.Error("ValidateIntakeToken() accepted a token signed with another secret")
	}
}

func TestValidateIntakeToken_Expired(t *testing.T) {
	token, err := GenerateIntakeToken("relay-1", []string{ScopeSMS}, -time.Minute, testSecret)
	if err != nil {
		t.Fatalf("GenerateIntakeToken() error = %v", err)
	}
	if _, err := ValidateIntakeToken(token, testSecret); err == nil {
		t.Error("ValidateIntakeToken() accepted an expired token")
	}
}

func TestHasScope(t *testing.T) {
	claims := &IntakeClaims{Scopes: []string{ScopeSMS}}
	if claims.HasScope(ScopeAdmin) {
		t.Error("HasScope(admin) = true for an sms-only token")
	}
}

func TestGenerateSecureCode(t *testing.T) {
	pattern := regexp.MustCompile(`^[A-Z0-9]{7}$`)
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		code, err := GenerateSecureCode(7)
		if err != nil {
			t.Fatalf("GenerateSecureCode() error = %v", err)
		}
		if !pattern.MatchString(code) {
			t.Errorf("GenerateSecureCode() = %q, want 7 uppercase alphanumerics", code)
		}
		seen[code] = true
	}
	if len(seen) < 45 {
		t.Errorf("GenerateSecureCode() produced only %d distinct codes out of 50", len(seen))
	}
}
