package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

var (
	// ErrAuthBackendUnavailable is returned when the Auth Service cannot be
	// reached; protected operations fail closed on it.
	ErrAuthBackendUnavailable = errors.New("auth service unavailable")

	// ErrInvalidToken is returned when the Auth Service rejects the token
	ErrInvalidToken = errors.New("invalid or expired token")

	// ErrInvalidAuthResponse is returned when the Auth Service reply cannot
	// be parsed
	ErrInvalidAuthResponse = errors.New("invalid auth service response")
)

const verifyTimeout = 5 * time.Second

// Verifier resolves a bearer token to an identity.
type Verifier interface {
	Verify(ctx context.Context, token string) (TokenUser, error)
}

// Client verifies bearer tokens against the Auth Service user-role endpoint,
// caching successful verifications for a bounded TTL.
type Client struct {
	verifyURL string
	http      *http.Client
	cache     TokenCache
	log       *zap.Logger
}

// NewClient creates an Auth Service client. A nil cache disables caching.
func NewClient(verifyURL string, cache TokenCache, log *zap.Logger) *Client {
	return &Client{
		verifyURL: verifyURL,
		http:      &http.Client{Timeout: verifyTimeout},
		cache:     cache,
		log:       log,
	}
}

type verifyResponse struct {
	UserID        json.Number `json:"user_id"`
	Username      string      `json:"username"`
	Role          string      `json:"role"`
	StudentNumber string      `json:"student_number"`
}

// Verify resolves a raw bearer token to a TokenUser, consulting the cache
// before calling out.
func (c *Client) Verify(ctx context.Context, token string) (TokenUser, error) {
	if c.cache != nil {
		if user, ok := c.cache.Get(token); ok {
			return user, nil
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.verifyURL, nil)
	if err != nil {
		return TokenUser{}, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Warn("Auth service unreachable", zap.Error(err))
		return TokenUser{}, ErrAuthBackendUnavailable
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return TokenUser{}, ErrInvalidToken
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return TokenUser{}, ErrInvalidAuthResponse
	}

	var payload verifyResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		c.log.Warn("Unparsable auth service response", zap.Error(err))
		return TokenUser{}, ErrInvalidAuthResponse
	}

	user := TokenUser{
		ID:            payload.UserID.String(),
		Username:      payload.Username,
		Role:          ParseRole(payload.Role),
		StudentNumber: payload.StudentNumber,
	}
	if user.ID == "" {
		return TokenUser{}, fmt.Errorf("%w: missing user_id", ErrInvalidAuthResponse)
	}

	if c.cache != nil {
		c.cache.Set(token, user)
	}
	return user, nil
}
