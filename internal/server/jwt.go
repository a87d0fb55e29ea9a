package server

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/jonathan/cashback-scout/internal/config"
	"github.com/jonathan/cashback-scout/internal/server/middleware"
)

// Claims identifies the extension install a token was issued to.
type Claims struct {
	ClientID string `json:"client_id"`
	jwt.RegisteredClaims
}

// GetClientID implements middleware.ClientIDGetter.
func (c *Claims) GetClientID() string {
	return c.ClientID
}

// JWTService issues and validates HS256 client tokens.
type JWTService struct {
	config config.AuthConfig
	now    func() time.Time
}

// NewJWTService creates a JWT service with the given configuration.
func NewJWTService(cfg config.AuthConfig) *JWTService {
	return &JWTService{config: cfg, now: time.Now}
}

// AsTokenValidator adapts the service to middleware.TokenValidator.
func (s *JWTService) AsTokenValidator() middleware.TokenValidator {
	return tokenValidator{s}
}

type tokenValidator struct {
	service *JWTService
}

func (v tokenValidator) ValidateToken(tokenString string) (middleware.ClientIDGetter, error) {
	claims, err := v.service.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	return claims, nil
}

// IssueToken signs a token for clientID and returns it with its expiry.
func (s *JWTService) IssueToken(clientID string) (string, time.Time, error) {
	if clientID == "" {
		return "", time.Time{}, &ErrValidation{Field: "client_id", Message: "is required"}
	}
	if s.config.Secret == "" {
		return "", time.Time{}, fmt.Errorf("auth secret is not configured")
	}

	now := s.now()
	expiresAt := now.Add(s.config.TokenTTL())
	claims := &Claims{
		ClientID: clientID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.config.Issuer,
			Subject:   clientID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.config.Secret))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// ValidateToken parses tokenString and checks signature, expiry and issuer.
func (s *JWTService) ValidateToken(tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, &ErrUnauthorized{Reason: "token is empty"}
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	}
	if s.config.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.config.Issuer))
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return []byte(s.config.Secret), nil
	}, opts...)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, &ErrUnauthorized{Reason: "token expired", Cause: err}
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return nil, &ErrUnauthorized{Reason: "invalid token signature", Cause: err}
		case errors.Is(err, jwt.ErrTokenMalformed):
			return nil, &ErrUnauthorized{Reason: "malformed token", Cause: err}
		default:
			return nil, &ErrUnauthorized{Reason: "invalid token", Cause: err}
		}
	}
	if !token.Valid || claims.ClientID == "" {
		return nil, &ErrUnauthorized{Reason: "token is not valid"}
	}
	return claims, nil
}
