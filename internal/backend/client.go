package backend

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/astro-gateway/internal/config"
	"github.com/spec-kit/astro-gateway/internal/domain"
)

const verifyTokenPath = "/auth/verify-token"

type verifyResponse struct {
	User *domain.User `json:"user"`
}

// Client talks to the booking backend's auth endpoints.
type Client struct {
	http   *resty.Client
	logger *zap.Logger
}

// NewClient builds a client. Verification is never retried: a rejected token
// stays rejected and the caller fails closed.
func NewClient(cfg config.BackendConfig, logger *zap.Logger) *Client {
	httpClient := resty.New().
		SetBaseURL(strings.TrimSuffix(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout()).
		SetRetryCount(0).
		SetHeader("Accept", "application/json")
	return &Client{http: httpClient, logger: logger}
}

// VerifyToken calls GET /auth/verify-token with the session token.
func (c *Client) VerifyToken(ctx context.Context, token string) Result {
	if token == "" {
		return Fail(KindUnauthorized, 0, errors.New("empty token"))
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(token).
		Get(verifyTokenPath)
	if err != nil {
		c.logger.Warn("verify token request failed", zap.Error(err))
		return Fail(KindUnavailable, 0, err)
	}

	status := resp.StatusCode()
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return Fail(KindUnauthorized, status, nil)
	case status < 200 || status > 299:
		c.logger.Info("verify token rejected", zap.Int("status", status))
		return Fail(KindRejected, status, nil)
	}

	var body verifyResponse
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		return Fail(KindMalformed, status, err)
	}
	if body.User == nil || body.User.ID == "" {
		return Fail(KindMalformed, status, errors.New("response carries no user"))
	}
	body.User.Role = domain.ParseRole(string(body.User.Role))
	return Ok(body.User)
}
