package middleware

import (
	"fmt"

	"github.com/anjiri1684/social_messaging/apperrors"
	"github.com/gofiber/fiber/v2"
	jwtware "github.com/gofiber/jwt/v3"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
)

const userClaim = "user_id"

func Protected(secret string) fiber.Handler {
	return jwtware.New(jwtware.Config{
		SigningKey:   []byte(secret),
		ErrorHandler: jwtError,
	})
}

// jwtError hands token failures to the app error handler so they render like every
// other error.
func jwtError(_ *fiber.Ctx, err error) error {
	if err.Error() == "Missing or malformed JWT" {
		return apperrors.InvalidRequest("Missing or malformed JWT")
	}
	return apperrors.Unauthorized("Invalid or expired JWT")
}

// CurrentUserID reads the authenticated user from the token Protected stored in locals.
func CurrentUserID(c *fiber.Ctx) (uuid.UUID, error) {
	token, ok := c.Locals("user").(*jwt.Token)
	if !ok {
		return uuid.Nil, apperrors.Unauthorized("Unauthorized")
	}
	return userIDFromClaims(token)
}

// ParseToken validates a raw token string, as sent in a websocket auth frame.
func ParseToken(secret, raw string) (uuid.UUID, error) {
	token, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return uuid.Nil, apperrors.Unauthorized("Invalid or expired JWT")
	}
	return userIDFromClaims(token)
}

// GenerateToken signs an HS256 token for userID.
func GenerateToken(secret string, userID uuid.UUID, claims jwt.MapClaims) (string, error) {
	if claims == nil {
		claims = jwt.MapClaims{}
	}
	claims[userClaim] = userID.String()
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

func userIDFromClaims(token *jwt.Token) (uuid.UUID, error) {
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return uuid.Nil, apperrors.Unauthorized("Unauthorized")
	}
	raw, ok := claims[userClaim].(string)
	if !ok {
		return uuid.Nil, apperrors.Unauthorized("Token has no user")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, apperrors.Unauthorized("Token has no user")
	}
	return id, nil
}
