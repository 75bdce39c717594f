package handlers

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/anjiri1684/social_messaging/apperrors"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorHandler(t *testing.T) {
	log := logrus.New()
	log.SetOutput(io.Discard)
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler(logrus.NewEntry(log))})

	app.Get("/boom", func(c *fiber.Ctx) error { return errors.New("pq: connection refused") })
	app.Get("/forbidden", func(c *fiber.Ctx) error { return apperrors.Forbidden("Permission denied") })
	app.Get("/fiber", func(c *fiber.Ctx) error { return fiber.ErrUpgradeRequired })

	cases := []struct {
		path string
		code int
		body string
	}{
		{"/boom", http.StatusInternalServerError, `{"status":"error","code":"server_error","message":"Server error"}`},
		{"/forbidden", http.StatusForbidden, `{"status":"error","code":"forbidden","message":"Permission denied"}`},
		{"/fiber", http.StatusUpgradeRequired, `{"status":"error","code":"upgrade_required","message":"Upgrade Required"}`},
	}
	for _, tc := range cases {
		t.Run(tc.path, func(t *testing.T) {
			resp, err := app.Test(httptest.NewRequest(http.MethodGet, tc.path, nil), -1)
			require.NoError(t, err)
			defer resp.Body.Close()
			body, err := io.ReadAll(resp.Body)
			require.NoError(t, err)

			assert.Equal(t, tc.code, resp.StatusCode)
			assert.JSONEq(t, tc.body, string(body))
		})
	}
}
