// Package capability mints Ably-compatible JWTs that scope realtime access to the
// tracking channels of a caller's orders.
package capability

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"deliveryService/internal/apperr"
	"deliveryService/models"
)

// TTL is the lifetime of every issued token.
const TTL = 3600 * time.Second

const (
	Publish   = "publish"
	Subscribe = "subscribe"
	History   = "history"
	Presence  = "presence"
)

// Key is an API key split into its identifier and secret halves.
type Key struct {
	Name   string
	Secret string
}

// ParseKey splits "name:secret". Anything other than exactly two non-empty parts is
// an InvalidArgument error; the message never echoes the secret.
func ParseKey(raw string) (Key, error) {
	if raw == "" {
		return Key{}, apperr.Invalid("signingKey", "signing key is absent")
	}
	parts := strings.Split(raw, ":")
	if len(parts) != 2 {
		return Key{}, apperr.Invalid("signingKey", "signing key has %d colon-delimited parts, expected 2", len(parts))
	}
	if parts[0] == "" || parts[1] == "" {
		return Key{}, apperr.Invalid("signingKey", "signing key has an empty name or secret")
	}
	return Key{Name: parts[0], Secret: parts[1]}, nil
}

// Channel names the tracking channel of an order.
func Channel(orderID int64) string {
	return "tracking:" + strconv.FormatInt(orderID, 10)
}

// CapabilitiesFor returns the per-channel operations granted to role.
func CapabilitiesFor(role models.Role) ([]string, error) {
	switch role {
	case models.RoleCustomer:
		return []string{Publish, Subscribe, History, Presence}, nil
	case models.RoleRider:
		return []string{Publish, Subscribe}, nil
	default:
		return nil, apperr.New(apperr.Unauthorized, "no realtime capabilities for role %s", role)
	}
}

// Claims is the payload of an issued token.
type Claims struct {
	ClientID   string `json:"x-ably-clientId"`
	Capability string `json:"x-ably-capability"`
	jwt.RegisteredClaims
}

// Token is a verified, decoded token.
type Token struct {
	KeyName   string
	Subject   string
	ClientID  string
	Scope     map[string][]string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Issuer signs tokens. It keeps no record of what it issued.
type Issuer struct {
	now func() time.Time
}

func NewIssuer() *Issuer {
	return &Issuer{now: time.Now}
}

// Issue signs a token for subject granting caps on the tracking channel of each order.
// The header carries the key name as kid; the secret half signs with HS256.
func (i *Issuer) Issue(rawKey, subject string, orderIDs []int64, caps []string) (string, error) {
	key, err := ParseKey(rawKey)
	if err != nil {
		return "", err
	}
	if subject == "" {
		return "", apperr.Invalid("subject", "subject identity is empty")
	}
	if len(caps) == 0 {
		return "", apperr.Invalid("capabilities", "capability list is empty")
	}
	for _, c := range caps {
		if c == "" {
			return "", apperr.Invalid("capabilities", "capability list contains an empty entry")
		}
	}
	scope := make(map[string][]string, len(orderIDs))
	for _, id := range orderIDs {
		if id < 0 {
			return "", apperr.Invalid("orderIds", "order id %d is negative", id)
		}
		scope[Channel(id)] = caps
	}
	capability, err := json.Marshal(scope)
	if err != nil {
		return "", fmt.Errorf("marshal capability: %w", err)
	}

	issued := i.now().Truncate(time.Second)
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		ClientID:   subject,
		Capability: string(capability),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(issued),
			ExpiresAt: jwt.NewNumericDate(issued.Add(TTL)),
		},
	})
	tok.Header["kid"] = key.Name
	signed, err := tok.SignedString([]byte(key.Secret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Decode verifies token against rawKey and returns its contents.
func (i *Issuer) Decode(rawKey, token string) (*Token, error) {
	key, err := ParseKey(rawKey)
	if err != nil {
		return nil, err
	}
	var c Claims
	tok, err := jwt.ParseWithClaims(token, &c, func(t *jwt.Token) (interface{}, error) {
		if kid, _ := t.Header["kid"].(string); kid != key.Name {
			return nil, fmt.Errorf("token kid %q does not match key %q", kid, key.Name)
		}
		return []byte(key.Secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(i.now), jwt.WithIssuedAt())
	if err != nil || !tok.Valid {
		if err == nil {
			err = errors.New("invalid token")
		}
		return nil, err
	}
	if c.IssuedAt == nil || c.ExpiresAt == nil {
		return nil, errors.New("token lacks iat or exp")
	}
	var scope map[string][]string
	if err := json.Unmarshal([]byte(c.Capability), &scope); err != nil {
		return nil, fmt.Errorf("capability claim: %w", err)
	}
	return &Token{
		KeyName:   key.Name,
		Subject:   c.Subject,
		ClientID:  c.ClientID,
		Scope:     scope,
		IssuedAt:  c.IssuedAt.Time,
		ExpiresAt: c.ExpiresAt.Time,
	}, nil
}
