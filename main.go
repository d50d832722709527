package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cafe-ordering-api/config"
	"cafe-ordering-api/handlers"
	"cafe-ordering-api/menu"
	"cafe-ordering-api/metrics"
	"cafe-ordering-api/middleware"
	"cafe-ordering-api/models"
	"cafe-ordering-api/notify"
	"cafe-ordering-api/orders"
	"cafe-ordering-api/routes"
	"cafe-ordering-api/seed"
	"cafe-ordering-api/sequence"
	"cafe-ordering-api/storage"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("invalid configuration")
	}
	log := config.NewLogger(cfg)
	gin.SetMode(cfg.GinMode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize database
	db, err := config.OpenDB(cfg, log)
	if err != nil {
		log.WithError(err).Fatal("failed to open database")
	}
	if cfg.SeedOnStart {
		err := seed.Run(ctx, db, seed.Options{
			AdminPassword:    cfg.SeedAdminPass,
			OrderNumberStart: cfg.OrderNumberStart,
		}, log)
		if err != nil {
			log.WithError(err).Fatal("seed failed")
		}
	}
	counter := sequence.NewCounter(models.OrderNumberCounter, cfg.OrderNumberStart)
	if err := counter.Ensure(ctx, db); err != nil {
		log.WithError(err).Fatal("failed to prepare order counter")
	}

	images, err := newImageStore(ctx, cfg)
	if err != nil {
		log.WithError(err).Fatal("failed to set up image storage")
	}

	// Real-time fan-out, relayed through Redis when configured
	hub := notify.NewHub(log)
	var publisher notify.Publisher = hub
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.WithError(err).Fatal("failed to reach redis")
		}
		relay := notify.NewRelay(rdb, cfg.RedisChannel, hub, log)
		go func() {
			if err := relay.Run(ctx); err != nil {
				log.WithError(err).Error("event relay stopped")
			}
		}()
		publisher = relay
		log.WithField("channel", cfg.RedisChannel).Info("event relay enabled")
	}

	h := &handlers.Handler{
		DB:        db,
		Menu:      menu.NewService(db, images, log),
		Orders:    orders.NewService(db, counter, notify.NewOrderEvents(publisher), cfg.ParcelCharge, log),
		Hub:       hub,
		Secret:    []byte(cfg.JWTSecret),
		TokenTTL:  cfg.TokenTTL,
		MaxUpload: cfg.UploadMaxBytes,
		Log:       log,
	}

	r := gin.New()
	if err := r.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		log.WithError(err).Fatal("invalid TRUSTED_PROXIES")
	}
	r.Use(gin.Recovery(), middleware.RequestLogger(log), metrics.Middleware(), middleware.CORS())

	opts := routes.Options{
		LoginRatePerMin: cfg.LoginRatePerMin,
		StaticDir:       cfg.StaticDir,
	}
	if cfg.UploadBackend == config.UploadBackendDisk {
		opts.UploadDir = cfg.UploadDir
		opts.UploadURLPrefix = cfg.UploadURLPrefix
	}
	routes.SetupRoutes(r, h, opts)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.WithField("port", cfg.Port).Info("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server failed")
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("graceful shutdown failed")
	}
}

func newImageStore(ctx context.Context, cfg config.Config) (storage.ImageStore, error) {
	if cfg.UploadBackend == config.UploadBackendS3 {
		return storage.NewS3Store(ctx, cfg.S3Bucket, cfg.S3Region, cfg.S3Endpoint, cfg.S3PublicURL)
	}
	if err := os.MkdirAll(cfg.UploadDir, 0o755); err != nil {
		return nil, err
	}
	return storage.NewDiskStore(cfg.UploadDir, cfg.UploadURLPrefix), nil
}
