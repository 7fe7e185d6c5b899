package http

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
)

// ListRefunds returns the refund ledger, oldest first.
func (h handler) ListRefunds(c echo.Context) error {
	refunds, err := h.refunds.List(c.Request().Context())
	if err != nil {
		return internalError(fmt.Errorf("listing refunds: %w", err))
	}

	return c.JSON(http.StatusOK, refunds)
}
