package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/rtdickson/event-site/internal/admin"
	"github.com/rtdickson/event-site/internal/api"
	"github.com/rtdickson/event-site/internal/auth"
	"github.com/rtdickson/event-site/internal/config"
	"github.com/rtdickson/event-site/internal/gallery"
	"github.com/rtdickson/event-site/internal/middleware"
	"github.com/rtdickson/event-site/internal/roster"
	"github.com/rtdickson/event-site/internal/seed"
	"github.com/rtdickson/event-site/internal/sms"
	"github.com/rtdickson/event-site/internal/status"
	"github.com/rtdickson/event-site/internal/store"
	"github.com/rtdickson/event-site/internal/weather"
)

func main() {
	cfg := config.Load()

	log.SetFormatter(&log.JSONFormatter{})
	log.SetLevel(log.InfoLevel)

	gin.SetMode(cfg.GinMode)

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0755); err != nil {
		log.WithError(err).Fatal("failed to create db directory")
	}

	boltStore, err := store.NewBoltStore(cfg.DBPath)
	if err != nil {
		log.WithError(err).Fatal("failed to open bolt store")
	}
	defer boltStore.Close()

	ctx := context.Background()
	if err := seed.LoadFromFile(ctx, cfg.SeedFile, boltStore); err != nil {
		log.WithError(err).Fatal("failed to seed data")
	}

	secret := cfg.AuthSecret
	if secret == "" {
		// Sessions won't survive a restart without a configured secret.
		log.Warn("AUTH_SECRET not set, using a random session secret")
		secret = uuid.NewString()
	}
	authSvc := auth.NewService(cfg.GuestPasswordHash, cfg.AdminPasswordHash, []byte(secret))

	var gateway sms.Gateway
	if cfg.SMSAccountSID != "" && cfg.SMSAuthToken != "" {
		gateway = sms.NewClient(cfg.SMSAccountSID, cfg.SMSAuthToken, cfg.SMSFromNumber, cfg.SMSBaseURL)
	} else {
		log.Warn("SMS credentials not set, outbound texts will only be logged")
		gateway = sms.LogGateway{}
	}

	photos, err := gallery.NewDiskStore(cfg.GalleryDir)
	if err != nil {
		log.WithError(err).Fatal("failed to open gallery directory")
	}

	forecast := weather.NewClient(cfg.WeatherLat, cfg.WeatherLon)
	resolver := status.NewResolver(boltStore, boltStore)
	presenter := roster.NewPresenter(boltStore, boltStore, resolver)

	swagger, err := api.GetSwagger()
	if err != nil {
		log.WithError(err).Fatal("failed to load embedded openapi spec")
	}

	validator, err := middleware.NewOpenAPIValidator(swagger)
	if err != nil {
		log.WithError(err).Fatal("failed to create openapi validator")
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.NewRateLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst))
	r.Use(middleware.CORS())
	r.Use(validator)

	handler := api.NewHandler(api.Deps{
		Store:    boltStore,
		Auth:     authSvc,
		Gateway:  gateway,
		Forecast: forecast,
		Photos:   photos,
		SiteName: cfg.SiteName,
		SiteURL:  cfg.SiteURL,
	})
	api.RegisterHandlers(r, handler)

	srv := &http.Server{
		Handler: r,
		Addr:    net.JoinHostPort("0.0.0.0", cfg.Port),
	}

	adminRouter := gin.New()
	adminRouter.Use(gin.Recovery())

	adminHandler := admin.NewHandler(boltStore, authSvc, presenter)
	admin.RegisterHandlers(adminRouter, adminHandler)

	adminSrv := &http.Server{
		Handler: adminRouter,
		Addr:    net.JoinHostPort("0.0.0.0", cfg.AdminPort),
	}

	go func() {
		log.WithField("addr", srv.Addr).Info("starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("server error")
		}
	}()

	go func() {
		log.WithField("addr", adminSrv.Addr).Info("starting admin server")
		if err := adminSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("admin server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.WithField("signal", fmt.Sprintf("%v", sig)).Info("shutting down servers")

	if err := srv.Close(); err != nil {
		log.WithError(err).Error("server close error")
	}
	if err := adminSrv.Close(); err != nil {
		log.WithError(err).Error("admin server close error")
	}
}
