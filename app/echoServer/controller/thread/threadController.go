package thread

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"bookshare/app/echoServer/jwtx"
	"bookshare/app/echoServer/notify"
	"bookshare/service/directory"
	"bookshare/service/negotiation"
)

type Controller struct {
	Svc negotiation.Service
	Dir directory.Service
	Log *slog.Logger
}

// Start opens or reuses the thread about a book and sends the first message.
// @Summary      Start thread
// @Description  Sends a message about a book, optionally proposing a rent period.
// @Tags         threads
// @Accept       json
// @Produce      json
// @Param        payload  body  StartThreadReq  true  "Request"
// @Success      201  {object}  notify.Envelope
// @Failure      400  {object}  notify.Envelope
// @Failure      404  {object}  notify.Envelope
// @Failure      409  {object}  notify.Envelope "already in progress"
// @Security     BearerAuth
// @Router       /v1/threads [post]
func (h *Controller) Start(c echo.Context) error {
	var req StartThreadReq
	if err := c.Bind(&req); err != nil {
		return notify.BadRequest(c, "invalid json")
	}
	if err := c.Validate(req); err != nil {
		return notify.BadRequest(c, "validation error: "+err.Error())
	}
	from, to := req.window()
	out, err := h.Svc.StartThread(c.Request().Context(), jwtx.UserID(c), negotiation.StartInput{
		BookID:        req.BookID,
		CounterpartID: req.CounterpartID,
		Text:          req.Text,
		From:          from,
		To:            to,
	})
	if err != nil {
		return notify.Error(c, h.Log, "thread start", err)
	}
	return notify.Success(c, http.StatusCreated, "Message sent.", out)
}

// GET /v1/threads
func (h *Controller) Inbox(c echo.Context) error {
	rows, err := h.Dir.Inbox(c.Request().Context(), jwtx.UserID(c))
	if err != nil {
		return notify.Error(c, h.Log, "thread inbox", err)
	}
	return notify.Data(c, rows)
}

// GET /v1/threads/:id
func (h *Controller) Timeline(c echo.Context) error {
	v, err := h.Dir.Timeline(c.Request().Context(), jwtx.UserID(c), c.Param("id"))
	if err != nil {
		return notify.Error(c, h.Log, "thread timeline", err)
	}
	return notify.Data(c, v)
}

// POST /v1/threads/:id/messages
func (h *Controller) Reply(c echo.Context) error {
	var req ReplyReq
	if err := c.Bind(&req); err != nil {
		return notify.BadRequest(c, "invalid json")
	}
	if err := c.Validate(req); err != nil {
		return notify.BadRequest(c, "validation error: "+err.Error())
	}
	msg, err := h.Svc.SendReply(c.Request().Context(), jwtx.UserID(c), c.Param("id"), req.Text)
	if err != nil {
		return notify.Error(c, h.Log, "thread reply", err)
	}
	return notify.Success(c, http.StatusCreated, "Message sent.", msg)
}

// Agree creates the rental from the latest proposed period.
// @Summary  Agree on rent
// @Tags     threads
// @Produce  json
// @Param    id   path  string  true  "Thread id"
// @Success  200  {object}  notify.Envelope
// @Failure  403  {object}  notify.Envelope "not the owner"
// @Failure  409  {object}  notify.Envelope "rental active or decision made"
// @Security BearerAuth
// @Router   /v1/threads/{id}/agree [post]
func (h *Controller) Agree(c echo.Context) error {
	rent, err := h.Svc.AgreeOnRent(c.Request().Context(), jwtx.UserID(c), c.Param("id"))
	if err != nil {
		return notify.Error(c, h.Log, "thread agree", err)
	}
	return notify.Success(c, http.StatusOK, "You agreed to rent the book.", rent)
}

// POST /v1/threads/:id/disagree
func (h *Controller) Disagree(c echo.Context) error {
	if err := h.Svc.DisagreeOnRent(c.Request().Context(), jwtx.UserID(c), c.Param("id")); err != nil {
		return notify.Error(c, h.Log, "thread disagree", err)
	}
	return notify.Success(c, http.StatusOK, "You refused to rent the book.", nil)
}

// POST /v1/threads/:id/close
func (h *Controller) Close(c echo.Context) error {
	if err := h.Svc.CloseDiscussion(c.Request().Context(), jwtx.UserID(c), c.Param("id")); err != nil {
		return notify.Error(c, h.Log, "thread close", err)
	}
	return notify.Success(c, http.StatusOK, "Discussion closed.", nil)
}

// POST /v1/messages/:id/read
func (h *Controller) MarkRead(c echo.Context) error {
	if err := h.Dir.MarkRead(c.Request().Context(), jwtx.UserID(c), c.Param("id")); err != nil {
		return notify.Error(c, h.Log, "message read", err)
	}
	return c.NoContent(http.StatusNoContent)
}

func bookID(c echo.Context) (string, bool) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		return "", false
	}
	return id, true
}

// POST /v1/books/:id/finish
func (h *Controller) Finish(c echo.Context) error {
	id, ok := bookID(c)
	if !ok {
		return notify.BadRequest(c, "invalid id")
	}
	rent, err := h.Svc.FinishRental(c.Request().Context(), jwtx.UserID(c), id)
	if err != nil {
		return notify.Error(c, h.Log, "rental finish", err)
	}
	return notify.Success(c, http.StatusOK, "Return confirmed.", rent)
}

// POST /v1/books/:id/remind
func (h *Controller) Remind(c echo.Context) error {
	id, ok := bookID(c)
	if !ok {
		return notify.BadRequest(c, "invalid id")
	}
	if err := h.Svc.RemindReturn(c.Request().Context(), jwtx.UserID(c), id); err != nil {
		return notify.Error(c, h.Log, "rental remind", err)
	}
	return notify.Success(c, http.StatusOK, "We asked the borrower to contact you.", nil)
}
