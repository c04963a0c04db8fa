// Package auth signs and verifies the HS256 bearer tokens that gate the
// arbiter HTTP surface.
package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

var (
	// ErrInvalidToken indicates the token failed signature checks or had malformed structure.
	ErrInvalidToken = errors.New("invalid token")
	// ErrExpiredToken signals that the token's expiry is in the past.
	ErrExpiredToken = errors.New("token expired")
)

// Audience is the audience claim expected on arbiter tokens when one is present.
const Audience = "arbiter"

// Scopes a token may carry. A token without scopes may call every route.
const (
	ScopeSimulate = "simulate"
	ScopeVerify   = "verify"
	ScopeRead     = "read"
)

// TokenClaims captures the JWT payload used for bearer auth on the arbiter API.
type TokenClaims struct {
	Subject   string
	ExpiresAt time.Time
	IssuedAt  time.Time
	Audience  string
	Scopes    []string
}

// Allows reports whether the claims grant scope.
func (c *TokenClaims) Allows(scope string) bool {
	if c == nil {
		return false
	}
	if len(c.Scopes) == 0 {
		return true
	}
	for _, granted := range c.Scopes {
		if granted == scope {
			return true
		}
	}
	return false
}

// HMACTokenVerifier validates and issues compact JWT-style tokens signed with HS256.
type HMACTokenVerifier struct {
	secret []byte
	now    func() time.Time
	leeway time.Duration
}

// NewHMACTokenVerifier constructs a verifier for the supplied shared secret and clock skew allowance.
func NewHMACTokenVerifier(secret string, leeway time.Duration) (*HMACTokenVerifier, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, errors.New("hmac secret must not be empty")
	}
	if leeway < 0 {
		leeway = 0
	}
	return &HMACTokenVerifier{secret: []byte(secret), now: time.Now, leeway: leeway}, nil
}

// Verify checks the signature, then the claims, and returns them.
func (v *HMACTokenVerifier) Verify(token string) (*TokenClaims, error) {
	if v == nil || len(v.secret) == 0 {
		return nil, errors.New("verifier not initialised")
	}
	payload, err := v.decode(strings.TrimSpace(token))
	if err != nil {
		return nil, err
	}
	return v.claims(payload)
}

// decode splits a compact token, checks the HS256 signature and returns the raw payload.
func (v *HMACTokenVerifier) decode(token string) (tokenPayload, error) {
	var payload tokenPayload
	parts := strings.Split(token, ".")
	if token == "" || len(parts) != 3 {
		return payload, ErrInvalidToken
	}
	var header struct {
		Algorithm string `json:"alg"`
	}
	if err := decodeJSONSegment(parts[0], &header); err != nil {
		return payload, ErrInvalidToken
	}
	//1.- Only HS256 is accepted so a forged "none" header never skips the MAC.
	if header.Algorithm != "HS256" {
		return payload, fmt.Errorf("%w: unexpected algorithm %q", ErrInvalidToken, header.Algorithm)
	}
	signature, err := base64.RawURLEncoding.DecodeString(parts[2])
	if err != nil {
		return payload, ErrInvalidToken
	}
	expected, err := v.sign([]byte(parts[0] + "." + parts[1]))
	if err != nil {
		return payload, err
	}
	if !hmac.Equal(signature, expected) {
		return payload, ErrInvalidToken
	}
	if err := decodeJSONSegment(parts[1], &payload); err != nil {
		return payload, ErrInvalidToken
	}
	return payload, nil
}

// claims applies subject, audience and time checks to a signed payload.
func (v *HMACTokenVerifier) claims(payload tokenPayload) (*TokenClaims, error) {
	switch {
	case strings.TrimSpace(payload.Subject) == "", payload.Expires <= 0:
		return nil, ErrInvalidToken
	case payload.Audience != "" && payload.Audience != Audience:
		return nil, fmt.Errorf("%w: unexpected audience %q", ErrInvalidToken, payload.Audience)
	}
	now := v.now()
	expiresAt := time.Unix(payload.Expires, 0)
	if now.After(expiresAt.Add(v.leeway)) {
		return nil, ErrExpiredToken
	}
	if payload.NotBefore > 0 && now.Add(v.leeway).Before(time.Unix(payload.NotBefore, 0)) {
		return nil, fmt.Errorf("%w: not valid before %d", ErrInvalidToken, payload.NotBefore)
	}
	return &TokenClaims{
		Subject:   payload.Subject,
		ExpiresAt: expiresAt,
		IssuedAt:  time.Unix(payload.Issued, 0),
		Audience:  payload.Audience,
		Scopes:    []string(payload.Scopes),
	}, nil
}

type tokenPayload struct {
	Subject   string    `json:"sub"`
	Expires   int64     `json:"exp"`
	Issued    int64     `json:"iat"`
	NotBefore int64     `json:"nbf,omitempty"`
	Audience  string    `json:"aud,omitempty"`
	Scopes    scopeList `json:"scope,omitempty"`
}

// scopeList accepts either a JSON array or an OAuth style space-delimited string.
type scopeList []string

func (s *scopeList) UnmarshalJSON(data []byte) error {
	var joined string
	if err := json.Unmarshal(data, &joined); err == nil {
		*s = strings.Fields(joined)
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return err
	}
	*s = list
	return nil
}

func decodeJSONSegment(segment string, dst any) error {
	raw, err := base64.RawURLEncoding.DecodeString(segment)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dst)
}

// Issue signs a token for subject that expires after ttl.
func (v *HMACTokenVerifier) Issue(subject string, ttl time.Duration, scopes ...string) (string, error) {
	if v == nil || len(v.secret) == 0 {
		return "", errors.New("verifier not initialised")
	}
	subject = strings.TrimSpace(subject)
	if subject == "" || ttl <= 0 {
		return "", errors.New("subject and positive ttl are required")
	}
	now := v.now()
	payload, err := json.Marshal(tokenPayload{
		Subject:  subject,
		Expires:  now.Add(ttl).Unix(),
		Issued:   now.Unix(),
		Audience: Audience,
		Scopes:   scopes,
	})
	if err != nil {
		return "", err
	}
	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"HS256","typ":"JWT"}`))
	signingInput := header + "." + base64.RawURLEncoding.EncodeToString(payload)
	signature, err := v.sign([]byte(signingInput))
	if err != nil {
		return "", err
	}
	return signingInput + "." + base64.RawURLEncoding.EncodeToString(signature), nil
}

// TokenFromRequest extracts a bearer token from the Authorization header or
// the token query parameter used by browser WebSocket clients.
func TokenFromRequest(r *http.Request) string {
	if r == nil {
		return ""
	}
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(header) > 7 && strings.EqualFold(header[:7], "Bearer ") {
		return strings.TrimSpace(header[7:])
	}
	if header != "" {
		return header
	}
	return strings.TrimSpace(r.URL.Query().Get("token"))
}

func (v *HMACTokenVerifier) sign(payload []byte) ([]byte, error) {
	mac := hmac.New(sha256.New, v.secret)
	if _, err := mac.Write(payload); err != nil {
		return nil, err
	}
	return mac.Sum(nil), nil
}

// WithClock overrides the verifier clock, enabling deterministic unit tests.
func (v *HMACTokenVerifier) WithClock(clock func() time.Time) {
	if clock == nil {
		return
	}
	v.now = clock
}
