package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	testSessionSigningSecret = "secret"
	testSessionIssuer        = "lumen-auth"
	testSessionCookieName    = "app_session"
	testSessionUserID        = "user-123"
	testSessionUserEmail     = "user@example.com"
)

var testClockNow = time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)

func newTestValidator(t *testing.T) *SessionValidator {
	t.Helper()
	validator, err := NewSessionValidator(SessionValidatorConfig{
		SigningSecret: []byte(testSessionSigningSecret),
		Issuer:        testSessionIssuer,
		CookieName:    testSessionCookieName,
		Clock: func() time.Time {
			return testClockNow
		},
	})
	if err != nil {
		t.Fatalf("failed to construct validator: %v", err)
	}
	return validator
}

func signTestToken(t *testing.T, issuer string, expiresAt time.Time, secret string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, SessionClaims{
		UserID:    testSessionUserID,
		UserEmail: testSessionUserEmail,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   testSessionUserID,
			IssuedAt:  jwt.NewNumericDate(testClockNow.Add(-time.Minute)),
			NotBefore: jwt.NewNumericDate(testClockNow.Add(-time.Minute)),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	})
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return signed
}

func TestNewSessionValidatorRequiresConfiguration(t *testing.T) {
	if _, err := NewSessionValidator(SessionValidatorConfig{Issuer: "i", CookieName: "c"}); !errors.Is(err, ErrMissingSessionSigningKey) {
		t.Fatalf("expected missing signing key error, got %v", err)
	}
	if _, err := NewSessionValidator(SessionValidatorConfig{SigningSecret: []byte("s"), CookieName: "c"}); !errors.Is(err, ErrMissingSessionIssuer) {
		t.Fatalf("expected missing issuer error, got %v", err)
	}
	if _, err := NewSessionValidator(SessionValidatorConfig{SigningSecret: []byte("s"), Issuer: "i"}); !errors.Is(err, ErrMissingSessionCookieName) {
		t.Fatalf("expected missing cookie name error, got %v", err)
	}
}

func TestSessionValidatorValidateToken(t *testing.T) {
	validator := newTestValidator(t)
	signed := signTestToken(t, testSessionIssuer, testClockNow.Add(time.Hour), testSessionSigningSecret)

	claims, err := validator.ValidateToken(signed)
	if err != nil {
		t.Fatalf("unexpected validation failure: %v", err)
	}
	if claims.UserID != testSessionUserID {
		t.Fatalf("unexpected user id: %s", claims.UserID)
	}
	if claims.UserEmail != testSessionUserEmail {
		t.Fatalf("unexpected user email: %s", claims.UserEmail)
	}
}

func TestSessionValidatorValidateTokenFailures(t *testing.T) {
	validator := newTestValidator(t)
	testCases := []struct {
		name    string
		token   string
		wantErr error
	}{
		{
			name:    "expired",
			token:   signTestToken(t, testSessionIssuer, testClockNow.Add(-time.Second), testSessionSigningSecret),
			wantErr: ErrExpiredSessionToken,
		},
		{
			name:    "wrong-issuer",
			token:   signTestToken(t, "someone-else", testClockNow.Add(time.Hour), testSessionSigningSecret),
			wantErr: ErrInvalidSessionToken,
		},
		{
			name:    "wrong-secret",
			token:   signTestToken(t, testSessionIssuer, testClockNow.Add(time.Hour), "other-secret"),
			wantErr: ErrInvalidSessionToken,
		},
		{
			name:    "empty",
			token:   "  ",
			wantErr: ErrMissingSessionToken,
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			_, err := validator.ValidateToken(testCase.token)
			if !errors.Is(err, testCase.wantErr) {
				t.Fatalf("expected %v, got %v", testCase.wantErr, err)
			}
		})
	}
}

func TestSessionValidatorValidateRequestSources(t *testing.T) {
	validator := newTestValidator(t)
	signed := signTestToken(t, testSessionIssuer, testClockNow.Add(time.Hour), testSessionSigningSecret)

	cookieRequest := httptest.NewRequest(http.MethodGet, "/student-notes", http.NoBody)
	cookieRequest.AddCookie(&http.Cookie{Name: testSessionCookieName, Value: signed})
	if _, err := validator.ValidateRequest(cookieRequest); err != nil {
		t.Fatalf("cookie session should validate: %v", err)
	}

	bearerRequest := httptest.NewRequest(http.MethodGet, "/student-notes", http.NoBody)
	bearerRequest.Header.Set("Authorization", "Bearer "+signed)
	if _, err := validator.ValidateRequest(bearerRequest); err != nil {
		t.Fatalf("bearer session should validate: %v", err)
	}

	anonymousRequest := httptest.NewRequest(http.MethodGet, "/student-notes", http.NoBody)
	if _, err := validator.ValidateRequest(anonymousRequest); !errors.Is(err, ErrMissingSessionToken) {
		t.Fatalf("expected missing token error, got %v", err)
	}
}

func TestSessionValidatorLeewayToleratesClockSkew(t *testing.T) {
	validator, err := NewSessionValidator(SessionValidatorConfig{
		SigningSecret: []byte(testSessionSigningSecret),
		Issuer:        testSessionIssuer,
		CookieName:    testSessionCookieName,
		Leeway:        30 * time.Second,
		Clock: func() time.Time {
			return testClockNow
		},
	})
	if err != nil {
		t.Fatalf("failed to construct validator: %v", err)
	}

	recentlyExpired := signTestToken(t, testSessionIssuer, testClockNow.Add(-10*time.Second), testSessionSigningSecret)
	if _, err := validator.ValidateToken(recentlyExpired); err != nil {
		t.Fatalf("token inside leeway should validate: %v", err)
	}

	longExpired := signTestToken(t, testSessionIssuer, testClockNow.Add(-time.Minute), testSessionSigningSecret)
	if _, err := validator.ValidateToken(longExpired); !errors.Is(err, ErrExpiredSessionToken) {
		t.Fatalf("expected expired error outside leeway, got %v", err)
	}
}

func TestSessionValidatorAcceptsLowercaseBearerScheme(t *testing.T) {
	validator := newTestValidator(t)
	signed := signTestToken(t, testSessionIssuer, testClockNow.Add(time.Hour), testSessionSigningSecret)

	request := httptest.NewRequest(http.MethodGet, "/purchases", http.NoBody)
	request.Header.Set("Authorization", "bearer "+signed)
	if _, err := validator.ValidateRequest(request); err != nil {
		t.Fatalf("bearer scheme should be case-insensitive: %v", err)
	}
}
