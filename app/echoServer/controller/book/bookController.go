package book

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"bookshare/app/echoServer/jwtx"
	"bookshare/app/echoServer/notify"
	"bookshare/model"
	booksvc "bookshare/service/book"
)

type Controller struct {
	Svc booksvc.Service
	Log *slog.Logger
}

func bookID(c echo.Context) (string, bool) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		return "", false
	}
	return id, true
}

// Create lists a new book owned by the caller.
// @Summary      Create book
// @Tags         books
// @Accept       json
// @Produce      json
// @Param        payload  body  CreateBookReq  true  "Book"
// @Success      201  {object}  notify.Envelope
// @Failure      400  {object}  notify.Envelope
// @Security     BearerAuth
// @Router       /v1/books [post]
func (h *Controller) Create(c echo.Context) error {
	var req CreateBookReq
	if err := c.Bind(&req); err != nil {
		return notify.BadRequest(c, "invalid json")
	}
	if err := c.Validate(req); err != nil {
		return notify.BadRequest(c, "validation error: "+err.Error())
	}
	b, err := h.Svc.Create(c.Request().Context(), jwtx.UserID(c), booksvc.CreateInput{
		Title:       req.Title,
		Author:      req.Author,
		Year:        req.Year,
		Genre:       model.Genre(req.Genre),
		Rating:      req.Rating,
		Description: req.Description,
		Image:       req.Image,
		Rent:        req.Rent,
		RentRegion:  req.RentRegion,
	})
	if err != nil {
		return notify.Error(c, h.Log, "book create", err)
	}
	return notify.Success(c, http.StatusCreated, "Book added.", b)
}

// GET /v1/books
func (h *Controller) List(c echo.Context) error {
	rows, err := h.Svc.List(c.Request().Context())
	if err != nil {
		return notify.Error(c, h.Log, "book list", err)
	}
	return notify.Data(c, rows)
}

// GET /v1/books/:id
func (h *Controller) Detail(c echo.Context) error {
	id, ok := bookID(c)
	if !ok {
		return notify.BadRequest(c, "invalid id")
	}
	row, err := h.Svc.Detail(c.Request().Context(), id)
	if err != nil {
		return notify.Error(c, h.Log, "book detail", err)
	}
	return notify.Data(c, row)
}

// GET /v1/books/:id/availability
func (h *Controller) Availability(c echo.Context) error {
	id, ok := bookID(c)
	if !ok {
		return notify.BadRequest(c, "invalid id")
	}
	a, err := h.Svc.Availability(c.Request().Context(), id)
	if err != nil {
		return notify.Error(c, h.Log, "book availability", err)
	}
	return notify.Data(c, a)
}
