package handlers

import (
	"errors"
	"strings"

	"github.com/anjiri1684/social_messaging/apperrors"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	"github.com/sirupsen/logrus"
)

var validate = validator.New()

// ErrorHandler renders every error returned by a handler as
// {"status":"error","code":...,"message":...}.
func ErrorHandler(log *logrus.Entry) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			return c.Status(fiberErr.Code).JSON(fiber.Map{
				"status":  "error",
				"code":    strings.ToLower(strings.ReplaceAll(utils.StatusMessage(fiberErr.Code), " ", "_")),
				"message": fiberErr.Message,
			})
		}

		appErr := apperrors.From(err)
		entry := log.WithError(err).WithField("path", c.Path()).WithField("method", c.Method())
		if appErr.Kind == apperrors.KindServerError || appErr.Kind == apperrors.KindUploadFailed {
			entry.Error("Request failed")
		} else {
			entry.Debug("Request rejected")
		}

		return c.Status(appErr.Code).JSON(fiber.Map{
			"status":  "error",
			"code":    appErr.Kind,
			"message": appErr.Public(),
		})
	}
}

func validationError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return apperrors.InvalidRequest("Invalid field: " + verrs[0].Field())
	}
	return apperrors.InvalidRequest("Invalid request")
}
