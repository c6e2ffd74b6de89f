// Package main bookshare API.
//
// @title           bookshare API
// @version         1.0
// @description     Peer-to-peer book lending: listings, rental negotiation threads, returns and ratings.
// @BasePath        /
// @schemes         http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description  Use:  Bearer <JWT>
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	echoSwagger "github.com/swaggo/echo-swagger"

	"bookshare/app/echoServer"
	bookctrl "bookshare/app/echoServer/controller/book"
	ratingctrl "bookshare/app/echoServer/controller/rating"
	rentalctrl "bookshare/app/echoServer/controller/rental"
	threadctrl "bookshare/app/echoServer/controller/thread"
	"bookshare/app/echoServer/validation"
	"bookshare/config"
	bookrepo "bookshare/repository/book"
	"bookshare/repository/memory"
	messagerepo "bookshare/repository/message"
	ratingrepo "bookshare/repository/rating"
	rentalrepo "bookshare/repository/rental"
	threadrepo "bookshare/repository/thread"
	userrepo "bookshare/repository/user"
	"bookshare/service/availability"
	booksvc "bookshare/service/book"
	"bookshare/service/directory"
	"bookshare/service/negotiation"
	ratingsvc "bookshare/service/rating"
	rentalsvc "bookshare/service/rental"
	"bookshare/util/database"
	"bookshare/util/inflight"
	jwtutil "bookshare/util/jwt"
)

type repos struct {
	books    bookrepo.Repo
	users    userrepo.Repo
	threads  threadrepo.Repo
	messages messagerepo.Repo
	rentals  rentalrepo.Repo
	ratings  ratingrepo.Repo
}

func main() {
	issueFor := flag.String("issue-token", "", "print a signed dev token for this user id and exit")
	flag.Parse()

	cfg := config.Load()
	ctx := context.Background()

	// logger
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(log)

	if *issueFor != "" {
		tok, err := jwtutil.Issue(cfg.JWTSecret, *issueFor, "user", 24*time.Hour)
		if err != nil {
			log.Error("issue token", "err", err)
			os.Exit(1)
		}
		fmt.Println(tok)
		return
	}

	// store
	var r repos
	switch cfg.StoreDriver {
	case config.DriverMemory:
		st := memory.New()
		r = repos{st.Books(), st.Users(), st.Threads(), st.Messages(), st.Rentals(), st.Ratings()}
		log.Warn("using in-memory store, data is lost on restart")
	default:
		db, err := database.New(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Error("db connect failed", "err", err)
			os.Exit(1)
		}
		defer db.Close()
		if cfg.AutoMigrate {
			if err := db.Migrate(ctx); err != nil {
				log.Error("db migrate failed", "err", err)
				os.Exit(1)
			}
		}
		r = repos{
			books:    bookrepo.New(db),
			users:    userrepo.New(db),
			threads:  threadrepo.New(db),
			messages: messagerepo.New(db),
			rentals:  rentalrepo.New(db),
			ratings:  ratingrepo.New(db),
		}
	}

	// in-flight guard and projection cache
	var (
		guard inflight.Guard = inflight.NewLocal()
		cache                = availability.NewLocalCache(cfg.AvailabilityTTL)
	)
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Error("redis connect failed", "addr", cfg.RedisAddr, "err", err)
			os.Exit(1)
		}
		defer rdb.Close()
		guard = inflight.NewRedis(rdb, cfg.InFlightTTL)
		cache = availability.NewRedisCache(rdb, cfg.AvailabilityTTL)
	}

	// services
	proj := availability.NewProjector(r.books, r.rentals, r.messages, cache, log)
	ns := negotiation.New(negotiation.Deps{
		Books:     r.books,
		Threads:   r.threads,
		Messages:  r.messages,
		Rentals:   r.rentals,
		Guard:     guard,
		Projector: proj,
		Log:       log,
	})
	ds := directory.New(r.messages, r.threads, r.books, r.users)
	bs := booksvc.New(r.books, proj)
	rts := ratingsvc.New(r.ratings, r.threads)
	rs := rentalsvc.New(r.rentals)

	// controllers
	bookC := &bookctrl.Controller{Svc: bs, Log: log}
	threadC := &threadctrl.Controller{Svc: ns, Dir: ds, Log: log}
	ratingC := &ratingctrl.Controller{Svc: rts, Log: log}
	rentalC := &rentalctrl.Controller{Svc: rs, Log: log}

	// echo
	e := echo.New()
	e.HideBanner = true
	echoServer.RegisterMiddlewares(e, log)
	e.Validator = validation.New()

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(200, map[string]any{
			"status": "ok",
			"store":  cfg.StoreDriver,
		})
	})

	e.GET("/swagger/*", echoSwagger.WrapHandler)

	echoServer.Register(e, echoServer.C{
		Book:   bookC,
		Thread: threadC,
		Rating: ratingC,
		Rental: rentalC,

		JWTSecret:          cfg.JWTSecret,
		RateLimitPerSecond: cfg.RateLimitPerSecond,
		Log:                log,
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.Port
	}

	log.Info("starting server", "port", port, "env", cfg.Env, "store", cfg.StoreDriver, "redis", cfg.RedisAddr != "")

	e.Logger.Fatal(e.Start(":" + port))
}
