package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt"
	"github.com/stretchr/testify/assert"

	"github.com/quorumhq/boardroom/internal/config"
	"github.com/quorumhq/boardroom/internal/testutil"
)

var testSigningKey = []byte("test-signing-key")

// testToken mints a credential the way the identity provider would.
func testToken(t *testing.T, key []byte, userId int, sessionId string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		userIdClaim:    userId,
		sessionIdClaim: sessionId,
		"exp":          time.Now().Add(time.Hour).Unix(),
	})

	signed, err := token.SignedString(key)
	if err != nil {
		t.Fatalf("failed to sign test token: %v", err)
	}
	return signed
}

func newTestApp(t *testing.T, opts ...func(*BoardroomApp)) *BoardroomApp {
	app := NewBoardroomApp(
		http.NewServeMux(),
		testutil.TestLogger(t),
		nil,
		nil,
		nil,
		&config.Config{
			SigningKey: testSigningKey,
		},
	)
	for _, opt := range opts {
		opt(app)
	}
	return app
}

func TestUserId(t *testing.T) {
	tcases := []struct {
		name     string
		ctx      context.Context
		userId   int
		expected bool
	}{
		{
			name:     "no user ID",
			ctx:      context.Background(),
			expected: false,
		},
		{
			name:     "user ID set",
			ctx:      WithUserId(context.Background(), 42),
			userId:   42,
			expected: true,
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			userId, ok := UserId(tc.ctx)
			assert.Equal(t, tc.expected, ok, "expected UserId to return %v", tc.expected)
			assert.Equal(t, tc.userId, userId, "expected UserId to return %d", tc.userId)
		})
	}
}

func TestSessionId(t *testing.T) {
	_, ok := SessionId(context.Background())
	assert.False(t, ok, "expected no session id on empty context")

	ctx := WithSessionId(context.Background(), "sess-1")
	sessionId, ok := SessionId(ctx)
	assert.True(t, ok, "expected session id to be set")
	assert.Equal(t, "sess-1", sessionId, "expected session id to match")
}

func Test_extractBearerToken(t *testing.T) {
	tcases := []struct {
		name        string
		header      string
		query       string
		expected    string
		expectedErr bool
	}{
		{
			name:     "token in authorization header",
			header:   "Bearer some-token",
			expected: "some-token",
		},
		{
			name:     "case insensitive scheme",
			header:   "bearer some-token",
			expected: "some-token",
		},
		{
			name:        "malformed authorization header",
			header:      "some-token",
			expectedErr: true,
		},
		{
			name:        "wrong scheme",
			header:      "Basic dXNlcjpwYXNz",
			expectedErr: true,
		},
		{
			name:     "token in query parameter",
			query:    "some-token",
			expected: "some-token",
		},
		{
			name:     "header takes precedence over query",
			header:   "Bearer header-token",
			query:    "query-token",
			expected: "header-token",
		},
		{
			name:        "no credential",
			expectedErr: true,
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			target := "/"
			if tc.query != "" {
				target = "/?token=" + tc.query
			}
			req := httptest.NewRequest(http.MethodGet, target, nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}

			token, err := extractBearerToken(req)
			if tc.expectedErr {
				assert.Error(t, err, "expected error extracting token")
			} else {
				assert.NoError(t, err, "expected no error extracting token")
				assert.Equal(t, tc.expected, token, "expected extracted token to match")
			}
		})
	}
}

func Test_extractIdentityFromToken(t *testing.T) {
	app := newTestApp(t)

	t.Run("valid token", func(t *testing.T) {
		tokenString := testToken(t, testSigningKey, 42, "sess-1")

		userId, sessionId, err := app.extractIdentityFromToken(tokenString)
		assert.NoError(t, err, "expected no error extracting identity")
		assert.Equal(t, 42, userId, "expected user id to match token claim")
		assert.Equal(t, "sess-1", sessionId, "expected session id to match token claim")
	})

	t.Run("token signed with wrong key", func(t *testing.T) {
		tokenString := testToken(t, []byte("wrong-key"), 42, "sess-1")

		_, _, err := app.extractIdentityFromToken(tokenString)
		assert.Error(t, err, "expected error for token signed with wrong key")
	})

	t.Run("expired token", func(t *testing.T) {
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			userIdClaim: 42,
			"exp":       time.Now().Add(-time.Hour).Unix(),
		})
		tokenString, err := token.SignedString(testSigningKey)
		if err != nil {
			t.Fatalf("failed to sign test token: %v", err)
		}

		_, _, err = app.extractIdentityFromToken(tokenString)
		assert.Error(t, err, "expected error for expired token")
	})

	t.Run("unexpected signing method", func(t *testing.T) {
		token := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
			userIdClaim: 42,
		})
		tokenString, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
		if err != nil {
			t.Fatalf("failed to sign test token: %v", err)
		}

		_, _, err = app.extractIdentityFromToken(tokenString)
		assert.Error(t, err, "expected error for unsigned token")
	})

	t.Run("missing user id claim", func(t *testing.T) {
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			sessionIdClaim: "sess-1",
			"exp":          time.Now().Add(time.Hour).Unix(),
		})
		tokenString, err := token.SignedString(testSigningKey)
		if err != nil {
			t.Fatalf("failed to sign test token: %v", err)
		}

		_, _, err = app.extractIdentityFromToken(tokenString)
		assert.Error(t, err, "expected error for token without user id claim")
	})
}
