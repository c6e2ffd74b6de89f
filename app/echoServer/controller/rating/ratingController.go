package rating

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"bookshare/app/echoServer/jwtx"
	"bookshare/app/echoServer/notify"
	ratingsvc "bookshare/service/rating"
)

type Controller struct {
	Svc ratingsvc.Service
	Log *slog.Logger
}

// POST /v1/threads/:id/rating
func (h *Controller) Rate(c echo.Context) error {
	var req RateReq
	if err := c.Bind(&req); err != nil {
		return notify.BadRequest(c, "invalid json")
	}
	if err := c.Validate(req); err != nil {
		return notify.BadRequest(c, "rating must be between 1 and 5")
	}
	r, err := h.Svc.Rate(c.Request().Context(), jwtx.UserID(c), c.Param("id"), req.Rating)
	if err != nil {
		return notify.Error(c, h.Log, "rating create", err)
	}
	return notify.Success(c, http.StatusCreated, "Thanks for rating.", r)
}

// GET /v1/ratings/pending
func (h *Controller) Pending(c echo.Context) error {
	rows, err := h.Svc.Pending(c.Request().Context(), jwtx.UserID(c))
	if err != nil {
		return notify.Error(c, h.Log, "rating pending", err)
	}
	return notify.Data(c, rows)
}

// GET /v1/users/:id/rating
func (h *Controller) Summary(c echo.Context) error {
	sum, err := h.Svc.Summary(c.Request().Context(), c.Param("id"))
	if err != nil {
		return notify.Error(c, h.Log, "rating summary", err)
	}
	return notify.Data(c, sum)
}
