package rental

import (
	"log/slog"

	"github.com/labstack/echo/v4"

	"bookshare/app/echoServer/jwtx"
	"bookshare/app/echoServer/notify"
	rs "bookshare/service/rental"
)

type Controller struct {
	Svc rs.Service
	Log *slog.Logger
}

// GET /v1/rentals/my
func (h *Controller) MyRents(c echo.Context) error {
	out, err := h.Svc.MyRents(c.Request().Context(), jwtx.UserID(c))
	if err != nil {
		return notify.Error(c, h.Log, "my rents", err)
	}
	return notify.Data(c, out)
}
