/*
token.go - Bearer tokens

PURPOSE:
  Issues and verifies HS256 JWTs that carry an employee id and role.
  A verified token becomes the generic.Actor the services authorize.

SEE ALSO:
  - api/middleware.go: Authenticate
  - cmd/token/main.go: mints tokens for local use
*/
package auth

import (
	"errors"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/warp/workday/config"
	"github.com/warp/workday/generic"
)

var (
	ErrTokenExpired = errors.New("token expired")
	ErrTokenInvalid = errors.New("token invalid")
)

type Claims struct {
	EmployeeID string `json:"employee_id"`
	Role       string `json:"role"`
	jwtv5.RegisteredClaims
}

// Actor maps verified claims to the caller identity.
func (c *Claims) Actor() generic.Actor {
	return generic.Actor{EmployeeID: generic.EmployeeID(c.EmployeeID), Role: generic.Role(c.Role)}
}

type Manager struct {
	secret []byte
	ttl    time.Duration
	issuer string
	clock  generic.Clock
}

func NewManager(cfg config.AuthConfig, clock generic.Clock) *Manager {
	if clock == nil {
		clock = generic.SystemClock{}
	}
	return &Manager{
		secret: []byte(cfg.JWTSecret),
		ttl:    cfg.TokenTTL,
		issuer: cfg.Issuer,
		clock:  clock,
	}
}

// Issue signs a token for the actor. The role is not checked against the
// employee record; services re-validate every call.
func (m *Manager) Issue(actor generic.Actor) (string, error) {
	if err := actor.Validate(); err != nil {
		return "", err
	}
	now := m.clock.Now()
	claims := Claims{
		EmployeeID: string(actor.EmployeeID),
		Role:       string(actor.Role),
		RegisteredClaims: jwtv5.RegisteredClaims{
			ID:        uuid.New().String(),
			Subject:   string(actor.EmployeeID),
			Issuer:    m.issuer,
			IssuedAt:  jwtv5.NewNumericDate(now),
			ExpiresAt: jwtv5.NewNumericDate(now.Add(m.ttl)),
		},
	}
	return jwtv5.NewWithClaims(jwtv5.SigningMethodHS256, claims).SignedString(m.secret)
}

// Parse verifies signature, issuer and expiry.
func (m *Manager) Parse(tokenString string) (*Claims, error) {
	token, err := jwtv5.ParseWithClaims(tokenString, &Claims{}, func(t *jwtv5.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwtv5.SigningMethodHMAC); !ok {
			return nil, ErrTokenInvalid
		}
		return m.secret, nil
	},
		jwtv5.WithIssuer(m.issuer),
		jwtv5.WithTimeFunc(m.clock.Now),
		jwtv5.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwtv5.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}
	if claims.Actor().Validate() != nil {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}
