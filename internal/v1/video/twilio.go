// Package video issues third-party video-chat capability tokens. Each town
// maps to one provider room; tokens are scoped to a (town, identity) pair.
package video

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenSource mints a video capability token bound to a town and an identity.
// The town controller depends on this behaviour, not on any provider.
type TokenSource interface {
	GetTokenForTown(ctx context.Context, coveyTownID string, identity string) (string, error)
}

// twilioContentType marks the JWT as a Twilio first-person access token.
const twilioContentType = "twilio-fpa;v=1"

// DefaultTokenTTL is how long minted tokens stay valid. Twilio caps access
// tokens at 24 hours; conversations rarely outlive a session anyway.
const DefaultTokenTTL = 4 * time.Hour

// TwilioTokenSource mints Twilio Video access tokens: HS256 JWTs carrying a
// video grant for the room named after the town ID.
type TwilioTokenSource struct {
	accountSid   string
	apiKeySid    string
	apiKeySecret string
	ttl          time.Duration
	now          func() time.Time
}

// NewTwilioTokenSource creates a source signing with the given API key.
func NewTwilioTokenSource(accountSid, apiKeySid, apiKeySecret string) *TwilioTokenSource {
	return &TwilioTokenSource{
		accountSid:   accountSid,
		apiKeySid:    apiKeySid,
		apiKeySecret: apiKeySecret,
		ttl:          DefaultTokenTTL,
		now:          time.Now,
	}
}

// GetTokenForTown mints a token granting the identity access to the town's
// video room.
func (t *TwilioTokenSource) GetTokenForTown(_ context.Context, coveyTownID string, identity string) (string, error) {
	if t.accountSid == "" || t.apiKeySid == "" || t.apiKeySecret == "" {
		return "", fmt.Errorf("twilio token source is not configured")
	}

	now := t.now()
	claims := jwt.MapClaims{
		"jti": fmt.Sprintf("%s-%d", t.apiKeySid, now.Unix()),
		"iss": t.apiKeySid,
		"sub": t.accountSid,
		"iat": now.Unix(),
		"exp": now.Add(t.ttl).Unix(),
		"grants": map[string]any{
			"identity": identity,
			"video": map[string]any{
				"room": coveyTownID,
			},
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	token.Header["cty"] = twilioContentType

	signed, err := token.SignedString([]byte(t.apiKeySecret))
	if err != nil {
		return "", fmt.Errorf("signing video token: %w", err)
	}
	return signed, nil
}
