// Package middleware provides authentication, logging and rate limiting middleware for the HTTP layer.
package middleware

import (
	"errors"
	"strings"
	"time"

	"confessions/internal/config"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

var cfg *config.Config

// InitMiddleware initializes authentication middleware with the given config.
func InitMiddleware(c *config.Config) {
	cfg = c
}

var (
	errMissingHeader  = errors.New("Authorization header required")
	errHeaderFormat   = errors.New("Invalid authorization header format")
	errInvalidToken   = errors.New("Invalid or expired token")
	errMissingSubject = errors.New("Invalid token structure - missing subject")
)

// ParseSubject verifies an HMAC-signed token and returns its "sub" claim.
func ParseSubject(tokenString, secret string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fiber.NewError(fiber.StatusUnauthorized, "Invalid signing method")
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return "", errInvalidToken
	}

	sub, err := token.Claims.GetSubject()
	if err != nil || strings.TrimSpace(sub) == "" {
		return "", errMissingSubject
	}
	return sub, nil
}

// IssueToken signs a token for userID valid for ttl. Authentication itself
// lives outside this service; this is used by local tooling and tests.
func IssueToken(userID, secret string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

func bearerToken(c *fiber.Ctx) (string, error) {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return "", errMissingHeader
	}
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", errHeaderFormat
	}
	return parts[1], nil
}

func authenticate(c *fiber.Ctx, tokenString string) error {
	sub, err := ParseSubject(tokenString, cfg.JWTSecret)
	if err != nil {
		return err
	}
	c.Locals("userID", sub)
	c.SetUserContext(WithUserID(c.UserContext(), sub))
	return nil
}

// AuthRequired is a middleware that enforces authentication for protected routes.
func AuthRequired(c *fiber.Ctx) error {
	tokenString, err := bearerToken(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": err.Error(),
			"code":  "UNAUTHENTICATED",
		})
	}
	if err := authenticate(c, tokenString); err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": err.Error(),
			"code":  "UNAUTHENTICATED",
		})
	}
	return c.Next()
}

// AuthOptional attaches the user id when a valid bearer token is present and
// otherwise lets the request through as anonymous. Mutating operations are
// gated further down by the session gate.
func AuthOptional(c *fiber.Ctx) error {
	tokenString, err := bearerToken(c)
	if err != nil {
		return c.Next()
	}
	if err := authenticate(c, tokenString); err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": err.Error(),
			"code":  "UNAUTHENTICATED",
		})
	}
	return c.Next()
}
