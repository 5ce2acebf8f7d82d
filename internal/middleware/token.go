package middleware

import (
	jwtPkg "VoiceBridge/pkg/jwt"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

type tokenMiddleware struct {
	secret string
}

func newTokenMiddleware(secret string) *tokenMiddleware {
	return &tokenMiddleware{secret: secret}
}

func (m *middleware) NewTokenMiddleware(ctx *fiber.Ctx) error {
	claims, err := jwtPkg.VerifyTokenHeader(ctx, m.token.secret)
	if err != nil {
		m.log.WithFields(logrus.Fields{
			"path":      ctx.Path(),
			"method":    ctx.Method(),
			"client_ip": ctx.IP(),
			"error":     err.Error(),
		}).Warn("Token verification failed")
		return ctx.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Unauthorized, access token invalid or expired",
		})
	}

	operator, _ := claims["sub"].(string)
	if operator == "" {
		m.log.WithField("path", ctx.Path()).Warn("Token has no subject")
		return ctx.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Unauthorized, access token invalid or expired",
		})
	}
	ctx.Locals(jwtPkg.LocalsOperator, operator)

	m.log.WithField("operator", operator).Debug("Authentication successful")
	return ctx.Next()
}
