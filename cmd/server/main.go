package main // entry point: wires config, storage, broker and HTTP server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	glog "github.com/labstack/gommon/log"

	"github.com/iliyamo/car-rental-booking/internal/config"
	"github.com/iliyamo/car-rental-booking/internal/database"
	"github.com/iliyamo/car-rental-booking/internal/handler"
	"github.com/iliyamo/car-rental-booking/internal/middleware"
	"github.com/iliyamo/car-rental-booking/internal/model"
	"github.com/iliyamo/car-rental-booking/internal/payment"
	"github.com/iliyamo/car-rental-booking/internal/queue"
	"github.com/iliyamo/car-rental-booking/internal/repository"
	"github.com/iliyamo/car-rental-booking/internal/router"
	"github.com/iliyamo/car-rental-booking/internal/service/booking"
	paysvc "github.com/iliyamo/car-rental-booking/internal/service/payment"
)

func main() {
	// .env is optional; real environment variables win.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("load .env: %v", err)
	}
	cfg := config.Load()

	e := echo.New()
	e.HideBanner = true
	e.Logger.SetLevel(logLevel(cfg.LogLevel))
	e.Validator = handler.NewValidator()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()

	migrateCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := database.Migrate(migrateCtx, db); err != nil {
		cancel()
		log.Fatalf("%v", err)
	}
	cancel()

	// Redis is optional: cache, rate limiter and token cache degrade to
	// pass-through without it.
	rdb := config.NewRedisClient()
	if rdb == nil {
		e.Logger.Warn("redis unavailable; response cache, rate limiting and token cache disabled")
	} else {
		defer rdb.Close()
	}
	cacheCfg := config.LoadCacheConfig()
	limit := middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb)
	cache := middleware.NewRedisCache(cacheCfg, rdb)

	e.Use(echomw.RequestIDWithConfig(echomw.RequestIDConfig{Generator: uuid.NewString}))
	e.Use(echomw.Logger())
	e.Use(echomw.Recover())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: strings.Split(cfg.CORSOrigin, ","),
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))
	// room for one image upload plus the form fields
	e.Use(echomw.BodyLimit(fmt.Sprintf("%dM", cfg.UploadMaxBytes/(1<<20)+1)))

	accounts := repository.NewAccountRepo(db)
	cars := repository.NewCarRepo(db)
	bookings := repository.NewBookingRepo(db)
	payments := repository.NewPaymentRepo()
	txm := repository.NewTxManager(db)
	publisher := queue.NewPublisher(cfg.RabbitURL)

	if err := bootstrapAdmin(cfg, accounts); err != nil {
		log.Fatalf("bootstrap admin: %v", err)
	}

	mpesa := payment.NewClient(config.LoadMpesaConfig(), nil, payment.NewRedisTokenCache(rdb))
	bookingSvc := booking.NewService(txm, cars, accounts, bookings, publisher, e.Logger)
	paymentSvc := paysvc.NewService(txm, bookings, payments, mpesa, publisher, e.Logger)

	admin := handler.NewAdminHandler(cars, bookings, accounts)
	admin.Events = publisher
	admin.ImageDir = cfg.ImageDir
	admin.MaxUpload = cfg.UploadMaxBytes
	admin.PurgeCars = func(ctx context.Context) error { return middleware.PurgeCache(ctx, rdb, cacheCfg.Prefix) }

	router.RegisterRoutes(e, db, cfg.ImageDir)
	router.RegisterAuth(e, handler.NewAuthHandler(cfg, accounts), cfg.JWTSecret, limit)
	router.RegisterPublic(e, handler.NewPublicHandler(cars), handler.NewBookingHandler(bookingSvc),
		handler.NewPaymentHandler(paymentSvc), cache, limit)
	router.RegisterAdmin(e, admin, cfg.JWTSecret)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Booking events are appended to logs/booking.log by an in-process consumer.
	go func() {
		if err := queue.NewConsumer(cfg.RabbitURL).Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			e.Logger.Errorf("booking consumer stopped: %v", err)
		}
	}()

	addr := ":" + cfg.Port
	go func() {
		e.Logger.Infof("listening on %s (env=%s)", addr, cfg.Env)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server: %v", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := e.Shutdown(shutdownCtx); err != nil {
		e.Logger.Errorf("shutdown: %v", err)
	}
}

// bootstrapAdmin creates the ADMIN_EMAIL account with role admin when it
// does not exist yet.  There is no other way to obtain the first admin.
func bootstrapAdmin(cfg config.Config, accounts *repository.AccountRepo) error {
	if cfg.AdminEmail == "" || cfg.AdminPassword == "" {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := accounts.CreateRegistered(ctx, cfg.AdminEmail, cfg.AdminPassword, "", "", model.RoleAdmin, cfg.BcryptCost)
	if errors.Is(err, repository.ErrEmailExists) {
		return nil
	}
	return err
}

func logLevel(s string) glog.Lvl {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return glog.DEBUG
	case "WARN":
		return glog.WARN
	case "ERROR":
		return glog.ERROR
	case "OFF":
		return glog.OFF
	}
	return glog.INFO
}
