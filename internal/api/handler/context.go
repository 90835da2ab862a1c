package handler

import (
	"fmt"

	"github.com/labstack/echo/v4"

	"github.com/influencerlab/studio/internal/api/middleware"
	"github.com/influencerlab/studio/internal/core/domain"
)

// userID returns the authenticated user injected by the Auth middleware.
// Handlers fail fast here before any service call.
func userID(c echo.Context) (string, error) {
	id, _ := c.Get(middleware.ContextUserID).(string)
	if id == "" {
		return "", domain.ErrUnauthorized
	}
	return id, nil
}

// bind decodes and validates the request body. Both failures surface as
// ErrInvalidRequest so the error handler renders a 400.
func bind(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return fmt.Errorf("%w: invalid payload", domain.ErrInvalidRequest)
	}
	if err := c.Validate(req); err != nil {
		return fmt.Errorf("%w: %s", domain.ErrInvalidRequest, err.Error())
	}
	return nil
}
