package auth

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/workmatch/api/internal/user"
)

// UserReader is the slice of the store Me needs.
type UserReader interface {
	GetUser(ctx context.Context, id string) (user.User, error)
}

// Me returns the authenticated caller's user record.
func Me(users UserReader) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, _ := c.Get("user_id").(string)
		if userID == "" {
			return echo.NewHTTPError(http.StatusUnauthorized, "missing user in token")
		}
		u, err := users.GetUser(c.Request().Context(), userID)
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, u)
	}
}
