package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt"
)

// Tokens are issued by the external identity provider and only
// verified here. The user-id claim is the account id; the session-id
// claim identifies the provider-side session.
const (
	userIdClaim    = "user-id"
	sessionIdClaim = "session-id"
)

type contextKey string

const (
	userIdKey    contextKey = "user-id"
	sessionIdKey contextKey = "session-id"
)

func WithUserId(ctx context.Context, userId int) context.Context {
	return context.WithValue(ctx, userIdKey, userId)
}

func UserId(ctx context.Context) (int, bool) {
	userId, ok := ctx.Value(userIdKey).(int)
	return userId, ok
}

func WithSessionId(ctx context.Context, sessionId string) context.Context {
	return context.WithValue(ctx, sessionIdKey, sessionId)
}

func SessionId(ctx context.Context) (string, bool) {
	sessionId, ok := ctx.Value(sessionIdKey).(string)
	return sessionId, ok
}

// extractBearerToken pulls the credential from the Authorization
// header, falling back to the token query parameter so websocket
// clients can authenticate at connection time.
func extractBearerToken(r *http.Request) (string, error) {
	if header := r.Header.Get("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			return "", fmt.Errorf("malformed authorization header")
		}
		return parts[1], nil
	}

	if token := r.URL.Query().Get("token"); token != "" {
		return token, nil
	}

	return "", fmt.Errorf("no credential provided")
}

func (s *BoardroomApp) verifyToken(tokenString string) (*jwt.Token, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.signingKey, nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}

	return token, nil
}

// extractIdentityFromToken verifies the credential and returns the
// authenticated user id and session id.
func (s *BoardroomApp) extractIdentityFromToken(tokenString string) (int, string, error) {
	token, err := s.verifyToken(tokenString)
	if err != nil {
		return 0, "", fmt.Errorf("verify token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return 0, "", fmt.Errorf("invalid token claims")
	}

	userId, ok := claims[userIdClaim].(float64)
	if !ok {
		return 0, "", fmt.Errorf("invalid user id claim")
	}

	sessionId, _ := claims[sessionIdClaim].(string)

	return int(userId), sessionId, nil
}
