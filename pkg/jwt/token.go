package jwtPkg

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
)

const (
	ScopeOutboundCalls = "calls:outbound"
	LocalsOperator     = "operator"
)

// Sign issues an HS256 token for an operator allowed to trigger outbound
// calls.
func Sign(secret string, operator string, ttl time.Duration) (string, int64, error) {
	if secret == "" {
		return "", 0, errors.New("token secret not configured")
	}

	expiredAt := time.Now().Add(ttl).Unix()
	claims := jwt.MapClaims{
		"sub":   operator,
		"scope": ScopeOutboundCalls,
		"exp":   expiredAt,
	}

	logrus.WithField("operator", operator).Debug("Creating outbound token")

	to := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	accessToken, err := to.SignedString([]byte(secret))
	if err != nil {
		logrus.WithError(err).Error("Failed to sign token")
		return "", 0, err
	}

	return accessToken, expiredAt, nil
}

func VerifyTokenHeader(c *fiber.Ctx, secret string) (jwt.MapClaims, error) {
	log := logrus.WithField("func", "VerifyTokenHeader")

	header := c.Get("Authorization")
	if header == "" {
		return nil, errors.New("empty Authorization header")
	}

	if !strings.HasPrefix(header, "Bearer ") {
		log.Debug("Invalid Authorization format")
		return nil, errors.New("invalid Authorization format")
	}

	accessToken := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if accessToken == "" {
		return nil, errors.New("empty token")
	}

	if secret == "" {
		log.Error("Outbound API secret not set")
		return nil, errors.New("token secret not configured")
	}

	token, err := jwt.Parse(accessToken, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		log.WithError(err).Debug("Failed to parse JWT token")
		return nil, err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.New("invalid token claims")
	}
	if scope, _ := claims["scope"].(string); scope != ScopeOutboundCalls {
		return nil, errors.New("token lacks outbound scope")
	}

	return claims, nil
}

func GetOperator(c *fiber.Ctx) (string, error) {
	operator, ok := c.Locals(LocalsOperator).(string)
	if !ok || operator == "" {
		return "", fiber.ErrUnauthorized
	}
	return operator, nil
}
