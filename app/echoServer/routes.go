package echoServer

import (
	"log/slog"

	"github.com/golang-jwt/jwt/v5"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"

	"bookshare/app/echoServer/controller/book"
	"bookshare/app/echoServer/controller/rating"
	"bookshare/app/echoServer/controller/rental"
	"bookshare/app/echoServer/controller/thread"
	"bookshare/app/echoServer/notify"
)

type C struct {
	Book   *book.Controller
	Thread *thread.Controller
	Rating *rating.Controller
	Rental *rental.Controller

	JWTSecret          string
	RateLimitPerSecond float64
	Log                *slog.Logger
}

func Register(e *echo.Echo, c C) {
	// Auth
	auth := e.Group("/v1")
	auth.Use(echojwt.WithConfig(echojwt.Config{
		SigningKey:    []byte(c.JWTSecret),
		NewClaimsFunc: func(echo.Context) jwt.Claims { return jwt.MapClaims{} },
		TokenLookup:   "header:Authorization:Bearer ",
		ErrorHandler:  func(ctx echo.Context, err error) error { return notify.Unauthorized(ctx) },
	}))
	auth.Use(RequireUser(c.Log))
	auth.Use(WriteLimiter(c.RateLimitPerSecond))

	// Books
	auth.GET("/books", c.Book.List)
	auth.POST("/books", c.Book.Create)
	auth.GET("/books/:id", c.Book.Detail)
	auth.GET("/books/:id/availability", c.Book.Availability)
	auth.POST("/books/:id/finish", c.Thread.Finish)
	auth.POST("/books/:id/remind", c.Thread.Remind)

	// Threads
	auth.POST("/threads", c.Thread.Start)
	auth.GET("/threads", c.Thread.Inbox)
	auth.GET("/threads/:id", c.Thread.Timeline)
	auth.POST("/threads/:id/messages", c.Thread.Reply)
	auth.POST("/threads/:id/agree", c.Thread.Agree)
	auth.POST("/threads/:id/disagree", c.Thread.Disagree)
	auth.POST("/threads/:id/close", c.Thread.Close)
	auth.POST("/messages/:id/read", c.Thread.MarkRead)

	// Ratings
	auth.POST("/threads/:id/rating", c.Rating.Rate)
	auth.GET("/ratings/pending", c.Rating.Pending)
	auth.GET("/users/:id/rating", c.Rating.Summary)

	auth.GET("/rentals/my", c.Rental.MyRents)
}
