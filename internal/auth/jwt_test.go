package auth

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// 44-character base64 string, as produced by `openssl rand -base64 32`
const testSecret = "wJ6Qk8Qn1v9Qw1Zb2l8Qk9J3p6Qk8Qn1v9Qw1Zb2l8Qk="

func signClaims(t *testing.T, secret string, claims Claims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return s
}

func TestGenerateTokens(t *testing.T) {
	svc := NewJWTService(testSecret, "")

	tests := []struct {
		name     string
		viewerID int64
		wantErr  error
	}{
		{name: "valid viewer", viewerID: 42},
		{name: "zero viewer", viewerID: 0, wantErr: ErrInvalidViewerID},
		{name: "negative viewer", viewerID: -7, wantErr: ErrInvalidViewerID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			access, err := svc.GenerateAccessToken(tt.viewerID)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("GenerateAccessToken() error = %v, want %v", err, tt.wantErr)
			}
			refresh, err := svc.GenerateRefreshToken(tt.viewerID)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("GenerateRefreshToken() error = %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr == nil && (access == "" || refresh == "") {
				t.Error("expected non-empty tokens")
			}
		})
	}
}

func TestValidateAccessToken(t *testing.T) {
	svc := NewJWTService(testSecret, "")

	access, err := svc.GenerateAccessToken(1234)
	if err != nil {
		t.Fatal(err)
	}
	id, err := svc.ValidateAccessToken(access)
	if err != nil {
		t.Fatalf("ValidateAccessToken() error = %v", err)
	}
	if id != 1234 {
		t.Errorf("viewer ID = %d, want 1234", id)
	}

	refresh, err := svc.GenerateRefreshToken(1234)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := svc.ValidateAccessToken(refresh); !errors.Is(err, ErrWrongTokenType) {
		t.Errorf("refresh token as access: error = %v, want %v", err, ErrWrongTokenType)
	}
}

func TestValidateAccessToken_BadSubject(t *testing.T) {
	svc := NewJWTService(testSecret, "")
	now := time.Now()

	for _, subject := range []string{"", "user-123", "0", "-5"} {
		token := signClaims(t, testSecret, Claims{
			RegisteredClaims: jwt.RegisteredClaims{
				Issuer:    Issuer,
				Subject:   subject,
				IssuedAt:  jwt.NewNumericDate(now),
				ExpiresAt: jwt.NewNumericDate(now.Add(time.Minute)),
			},
			Type: TokenTypeAccess,
		})
		if _, err := svc.ValidateAccessToken(token); !errors.Is(err, ErrInvalidViewerID) {
			t.Errorf("subject %q: error = %v, want %v", subject, err, ErrInvalidViewerID)
		}
	}
}

func TestExpiredToken(t *testing.T) {
	svc := NewJWTService(testSecret, "").WithLeeway(0)

	now := time.Now()
	token := signClaims(t, testSecret, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    Issuer,
			Subject:   "9",
			IssuedAt:  jwt.NewNumericDate(now.Add(-2 * time.Hour)),
			ExpiresAt: jwt.NewNumericDate(now.Add(-1 * time.Hour)),
		},
		Type: TokenTypeAccess,
	})

	if _, err := svc.ValidateToken(token); err != ErrExpiredToken {
		t.Errorf("ValidateToken() error = %v, want %v", err, ErrExpiredToken)
	}
}

func TestTamperedToken(t *testing.T) {
	svc := NewJWTService(testSecret, "")

	validToken, err := svc.GenerateAccessToken(5)
	if err != nil {
		t.Fatalf("Failed to generate access token: %v", err)
	}

	parts := strings.Split(validToken, ".")
	if len(parts) != 3 {
		t.Fatalf("Invalid token format")
	}
	tamperedToken := parts[0] + "." + parts[1] + ".tamperedsignature"

	if _, err := svc.ValidateToken(tamperedToken); err != ErrInvalidToken {
		t.Errorf("ValidateToken() error = %v, want %v", err, ErrInvalidToken)
	}
}

func TestWrongIssuerOrAlgorithm(t *testing.T) {
	svc := NewJWTService(testSecret, "")
	now := time.Now()

	foreign := signClaims(t, testSecret, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "someone-else",
			Subject:   "5",
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Minute)),
		},
		Type: TokenTypeAccess,
	})
	if _, err := svc.ValidateToken(foreign); err != ErrInvalidToken {
		t.Errorf("foreign issuer: error = %v, want %v", err, ErrInvalidToken)
	}

	hs512 := jwt.NewWithClaims(jwt.SigningMethodHS512, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    Issuer,
			Subject:   "5",
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Minute)),
		},
		Type: TokenTypeAccess,
	})
	s, err := hs512.SignedString([]byte(testSecret))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := svc.ValidateToken(s); err != ErrInvalidToken {
		t.Errorf("HS512 token: error = %v, want %v", err, ErrInvalidToken)
	}
}

func TestTokenClaims(t *testing.T) {
	fixed := time.Date(2025, 4, 1, 10, 0, 0, 0, time.UTC)
	svc := NewJWTService(testSecret, "")
	svc.now = func() time.Time { return fixed }

	tests := []struct {
		name     string
		generate func(int64) (string, error)
		typ      string
		ttl      time.Duration
	}{
		{name: "access", generate: svc.GenerateAccessToken, typ: TokenTypeAccess, ttl: AccessTokenExpiry},
		{name: "refresh", generate: svc.GenerateRefreshToken, typ: TokenTypeRefresh, ttl: RefreshTokenExpiry},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, err := tt.generate(77)
			if err != nil {
				t.Fatal(err)
			}
			claims, err := svc.ValidateToken(token)
			if err != nil {
				t.Fatalf("ValidateToken() error = %v", err)
			}
			if claims.Subject != "77" || claims.Issuer != Issuer || claims.Type != tt.typ {
				t.Errorf("unexpected claims %+v", claims)
			}
			if !claims.IssuedAt.Time.Equal(fixed) {
				t.Errorf("IssuedAt = %v, want %v", claims.IssuedAt.Time, fixed)
			}
			if !claims.ExpiresAt.Time.Equal(fixed.Add(tt.ttl)) {
				t.Errorf("ExpiresAt = %v, want %v", claims.ExpiresAt.Time, fixed.Add(tt.ttl))
			}
		})
	}
}

func TestLeewayValidation(t *testing.T) {
	now := time.Now()
	token := signClaims(t, testSecret, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    Issuer,
			Subject:   "3",
			IssuedAt:  jwt.NewNumericDate(now.Add(-1 * time.Hour)),
			ExpiresAt: jwt.NewNumericDate(now.Add(-10 * time.Second)), // Expired 10 seconds ago
		},
		Type: TokenTypeAccess,
	})

	t.Run("with default leeway (30s) - should pass", func(t *testing.T) {
		if _, err := NewJWTService(testSecret, "").ValidateToken(token); err != nil {
			t.Errorf("ValidateToken() error = %v, expected no error (within leeway)", err)
		}
	})

	t.Run("with no leeway - should fail", func(t *testing.T) {
		if _, err := NewJWTService(testSecret, "").WithLeeway(0).ValidateToken(token); err != ErrExpiredToken {
			t.Errorf("ValidateToken() error = %v, want %v", err, ErrExpiredToken)
		}
	})
}

// TestKeyRotation tests the dual-key rotation feature for zero-downtime secret rotation.
func TestKeyRotation(t *testing.T) {
	currentSecret := "current-secret-key-12345678"
	previousSecret := "previous-secret-key-87654321"

	t.Run("token signed with previous secret still validates", func(t *testing.T) {
		oldToken, err := NewJWTService(previousSecret, "").GenerateAccessToken(456)
		if err != nil {
			t.Fatalf("GenerateAccessToken() error = %v", err)
		}

		id, err := NewJWTService(currentSecret, previousSecret).ValidateAccessToken(oldToken)
		if err != nil {
			t.Fatalf("ValidateAccessToken() error = %v, expected old token to validate with previousSecret", err)
		}
		if id != 456 {
			t.Errorf("viewer ID = %d, want 456", id)
		}
	})

	t.Run("new tokens always use current secret", func(t *testing.T) {
		token, err := NewJWTService(currentSecret, previousSecret).GenerateAccessToken(789)
		if err != nil {
			t.Fatalf("GenerateAccessToken() error = %v", err)
		}

		if _, err := NewJWTService(currentSecret, "").ValidateToken(token); err != nil {
			t.Errorf("ValidateToken() error = %v, token should be signed with current secret", err)
		}
		if _, err := NewJWTService(previousSecret, "").ValidateToken(token); err != ErrInvalidToken {
			t.Errorf("ValidateToken() error = %v, want %v", err, ErrInvalidToken)
		}
	})

	t.Run("expired token under previous secret reports expiry", func(t *testing.T) {
		now := time.Now()
		token := signClaims(t, previousSecret, Claims{
			RegisteredClaims: jwt.RegisteredClaims{
				Issuer:    Issuer,
				Subject:   "1",
				ExpiresAt: jwt.NewNumericDate(now.Add(-time.Hour)),
			},
			Type: TokenTypeAccess,
		})
		if _, err := NewJWTService(currentSecret, previousSecret).ValidateToken(token); err != ErrExpiredToken {
			t.Errorf("ValidateToken() error = %v, want %v", err, ErrExpiredToken)
		}
	})

	t.Run("token with wrong secret fails", func(t *testing.T) {
		wrongToken, err := NewJWTService("wrong-secret-key-99999999", "").GenerateAccessToken(1)
		if err != nil {
			t.Fatalf("GenerateAccessToken() error = %v", err)
		}
		if _, err := NewJWTService(currentSecret, previousSecret).ValidateToken(wrongToken); err != ErrInvalidToken {
			t.Errorf("ValidateToken() error = %v, want %v", err, ErrInvalidToken)
		}
	})
}
