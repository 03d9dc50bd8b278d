package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/msalah0e/kgraph/internal/ctxlog"
	"github.com/msalah0e/kgraph/internal/vault"
	"github.com/pkg/errors"
)

// Token store keys.
const (
	AccessTokenKey  = vault.AccessToken
	RefreshTokenKey = vault.RefreshToken
)

// refreshWindow is how close to expiry an access token gets refreshed before use.
const refreshWindow = 60 * time.Second

// ErrNoRefreshToken is returned when a refresh is needed but none is stored.
var ErrNoRefreshToken = errors.New("no refresh token stored")

// SetTokens stores a session. An empty refresh token leaves the stored one alone.
func (c *Client) SetTokens(access, refresh string) error {
	if c.Tokens == nil {
		return errors.New("no token store configured")
	}
	if err := c.Tokens.Set(AccessTokenKey, access); err != nil {
		return errors.Wrap(err, "store access token")
	}
	if refresh != "" {
		if err := c.Tokens.Set(RefreshTokenKey, refresh); err != nil {
			return errors.Wrap(err, "store refresh token")
		}
	}
	return nil
}

// ClearTokens removes both tokens. Missing keys are not an error.
func (c *Client) ClearTokens() {
	if c.Tokens == nil {
		return
	}
	_ = c.Tokens.Delete(AccessTokenKey)
	_ = c.Tokens.Delete(RefreshTokenKey)
}

// accessToken returns the stored access token, refreshing it first when it
// expires within refreshWindow.
func (c *Client) accessToken(ctx context.Context) string {
	if c.Tokens == nil {
		return ""
	}
	token, err := c.Tokens.Get(AccessTokenKey)
	if err != nil || token == "" {
		return ""
	}

	if exp, ok := TokenExpiry(token); ok && exp.Sub(c.now()) < refreshWindow {
		fresh, err := c.refresh(ctx, token)
		if err != nil {
			ctxlog.FromContext(ctx).Debug("proactive token refresh failed", "error", err)
			return token
		}
		return fresh
	}
	return token
}

// refresh exchanges the refresh token for a new access token. A rejected
// refresh clears both tokens; transport failures leave them in place.
// If another caller already replaced stale, the stored token is returned.
func (c *Client) refresh(ctx context.Context, stale string) (string, error) {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	if current, err := c.Tokens.Get(AccessTokenKey); err == nil && current != "" && current != stale {
		if exp, ok := TokenExpiry(current); !ok || exp.Sub(c.now()) >= refreshWindow {
			return current, nil
		}
	}

	refreshToken, err := c.Tokens.Get(RefreshTokenKey)
	if err != nil || refreshToken == "" {
		return "", ErrNoRefreshToken
	}

	payload, _ := json.Marshal(map[string]string{"refresh": refreshToken})
	status, body, err := c.send(ctx, http.MethodPost, c.Paths.TokenRefresh, payload, "")
	if err != nil {
		return "", errors.Wrap(err, "refresh token")
	}
	if status < 200 || status > 299 {
		c.ClearTokens()
		return "", parseError(http.MethodPost, c.Paths.TokenRefresh, status, body)
	}

	var resp struct {
		Access  string `json:"access"`
		Refresh string `json:"refresh"`
	}
	if err := json.Unmarshal(body, &resp); err != nil || resp.Access == "" {
		c.ClearTokens()
		return "", errors.Wrap(ErrInvalidPayload, "token refresh response")
	}

	if err := c.SetTokens(resp.Access, resp.Refresh); err != nil {
		return "", err
	}
	return resp.Access, nil
}

// TokenExpiry reads the exp claim of a JWT without verifying its signature.
// Opaque tokens and tokens without exp report false.
func TokenExpiry(token string) (time.Time, bool) {
	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return time.Time{}, false
	}
	exp, err := parsed.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}
