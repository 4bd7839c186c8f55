package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/iliyamo/van-seat-reservation/internal/config"
	"github.com/iliyamo/van-seat-reservation/internal/database"
	"github.com/iliyamo/van-seat-reservation/internal/handler"
	"github.com/iliyamo/van-seat-reservation/internal/jobs"
	"github.com/iliyamo/van-seat-reservation/internal/middleware"
	"github.com/iliyamo/van-seat-reservation/internal/queue"
	"github.com/iliyamo/van-seat-reservation/internal/repository"
	"github.com/iliyamo/van-seat-reservation/internal/router"
	"github.com/iliyamo/van-seat-reservation/internal/service"
)

func main() {
	config.LoadDotEnv()
	cfg := config.Load()

	db, err := database.Open(database.Options{
		Driver:     cfg.DBDriver,
		User:       cfg.DBUser,
		Pass:       cfg.DBPass,
		Host:       cfg.DBHost,
		Port:       cfg.DBPort,
		Name:       cfg.DBName,
		SQLitePath: cfg.SQLitePath,
		AutoSchema: cfg.DBAutoSchema,
	})
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer db.Close()
	store := repository.NewStore(db)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// audit events go to the database and, when enabled, to RabbitMQ
	brokerCfg := config.LoadBrokerConfig()
	var publisher service.AuditPublisher
	if brokerCfg.Enabled {
		publisher = queue.NewPublisher(brokerCfg.URL, brokerCfg.Queue)
		if brokerCfg.Consumer {
			consumer := queue.NewConsumer(brokerCfg.URL, brokerCfg.Queue, brokerCfg.LogPath)
			go func() {
				if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
					log.Printf("reservation-consumer: stopped: %v", err)
				}
			}()
		}
	}
	audit := service.NewAuditLog(store, publisher, nil)
	deps := service.Deps{Store: store, Audit: audit}

	queueEngine := service.NewQueueEngine(deps, service.QueueConfig{
		DefaultVanName:     cfg.DefaultVanName,
		DefaultVanCapacity: cfg.DefaultVanCapacity,
	})
	vans := service.NewVanAdmin(deps)
	schedCfg := config.LoadSchedulerConfig()
	summarizer := service.NewSummarizer(deps, jobs.NewWebhookDelivery(schedCfg.AnalyticsWebhookURL, schedCfg.HealthchecksPingURL))

	if schedCfg.Enabled {
		sched, err := jobs.NewSummaryScheduler(schedCfg.SummaryCron, summarizer)
		if err != nil {
			log.Printf("summary-job: %v; daily summary disabled", err)
		} else {
			sched.Start()
			defer func() {
				if err := sched.Shutdown(); err != nil {
					log.Printf("summary-job: shutdown: %v", err)
				}
			}()
		}
	}

	users := repository.NewAdminUserRepo(db)
	if err := handler.BootstrapAdmin(ctx, users, cfg.AdminEmail, cfg.AdminPassword, cfg.BcryptCost); err != nil {
		log.Fatalf("auth: bootstrap admin: %v", err)
	}

	// redis is optional: without it rate limiting and caching are no-ops
	rdb := config.NewRedisClient(config.LoadRedisConfig())
	if rdb != nil {
		defer rdb.Close()
	}
	limiter := middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb)
	cache := middleware.NewResponseCache(config.LoadCacheConfig(), rdb)

	e := router.New()
	router.RegisterRoutes(e, &handler.HealthHandler{DB: db, Driver: cfg.DBDriver, Redis: rdb, BrokerEnabled: brokerCfg.Enabled})
	router.RegisterAuth(e, handler.NewAuthHandler(cfg, users, repository.NewTokenRepo(db)), cfg.JWTSecret)
	router.RegisterPublic(e, handler.NewPublicHandler(queueEngine, vans), limiter, cache)
	router.RegisterAdmin(e, &handler.AdminHandler{
		Vans:         vans,
		Lifecycle:    service.NewLifecycle(deps),
		Overrides:    service.NewOverrideAdmin(deps),
		Reservations: service.NewReservationAdmin(deps),
		Audit:        audit,
		Summary:      summarizer,
	}, cfg.JWTSecret, cache)

	addr := ":" + cfg.Port
	go func() {
		log.Printf("listening on %s (env=%s, db=%s)", addr, cfg.Env, cfg.DBDriver)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err)
		}
	}()

	<-ctx.Done()
	log.Printf("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Printf("http: shutdown: %v", err)
	}
}
