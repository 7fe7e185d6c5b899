package http

import (
	"net/http"
	"time"

	commonHTTP "github.com/ThreeDotsLabs/go-event-driven/common/http"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

var ErrServerClosed = http.ErrServerClosed

type RouterDeps struct {
	Bookings BookingService
	Catalog  Catalog
	Refunds  Refunds
	Scorer   Scorer
	// Now defaults to time.Now.
	Now func() time.Time
}

func NewRouter(deps RouterDeps) *echo.Echo {
	server := commonHTTP.NewEcho()
	server.Validator = requestValidator{validate: validator.New()}

	server.GET("/health", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	now := deps.Now
	if now == nil {
		now = time.Now
	}

	handler := handler{
		bookings: deps.Bookings,
		catalog:  deps.Catalog,
		refunds:  deps.Refunds,
		scorer:   deps.Scorer,
		now:      now,
	}

	api := server.Group("/api")

	api.GET("/stations", handler.ListStations)
	api.GET("/seats", handler.SeatMap)
	api.GET("/meals", handler.ListMeals)

	api.POST("/bookings", handler.CreateBooking)
	api.GET("/bookings/:code", handler.GetBooking)
	api.DELETE("/bookings/:code", handler.CancelBooking)

	api.GET("/refunds", handler.ListRefunds)

	api.POST("/predict", handler.Predict)

	return server
}

type requestValidator struct {
	validate *validator.Validate
}

func (v requestValidator) Validate(i any) error {
	if err := v.validate.Struct(i); err != nil {
		return &echo.HTTPError{
			Code:     http.StatusBadRequest,
			Message:  err.Error(),
			Internal: err,
		}
	}
	return nil
}
