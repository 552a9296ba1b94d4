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

	"github.com/gin-gonic/gin"

	"github.com/NghiaaPham/ServiceCenter-sub002/internal/app"
	"github.com/NghiaaPham/ServiceCenter-sub002/internal/config"
	dbpkg "github.com/NghiaaPham/ServiceCenter-sub002/internal/db"
	payDomain "github.com/NghiaaPham/ServiceCenter-sub002/internal/domain/payment"
	"github.com/NghiaaPham/ServiceCenter-sub002/internal/infra/archive"
	"github.com/NghiaaPham/ServiceCenter-sub002/internal/infra/cache"
	"github.com/NghiaaPham/ServiceCenter-sub002/internal/infra/gateway"
	"github.com/NghiaaPham/ServiceCenter-sub002/internal/infra/mq"
	"github.com/NghiaaPham/ServiceCenter-sub002/internal/obs"
	"github.com/NghiaaPham/ServiceCenter-sub002/internal/routes"
	ucReconcile "github.com/NghiaaPham/ServiceCenter-sub002/internal/usecase/reconciliation"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := obs.InitTracer(ctx, "service-center-api", cfg.OTLPEndpoint, cfg.Env)
	if err != nil {
		log.Fatalf("failed to init tracer: %v", err)
	}

	db := dbpkg.NewDB(cfg)

	// ======================================================
	// OPTIONAL INTEGRATIONS
	// ======================================================
	var in app.Integrations

	gateways := []payDomain.Gateway{gateway.NewSandbox(cfg.SandboxSecret, cfg.PublicBaseURL)}
	if cfg.MPAccessToken != "" {
		mp, err := gateway.NewMercadoPago(cfg.MPAccessToken, cfg.MPWebhookSecret)
		if err != nil {
			log.Fatalf("failed to init mercadopago: %v", err)
		}
		gateways = append(gateways, mp)
	}
	in.Gateways = payDomain.NewRegistry(gateways...)

	if cfg.RabbitURL != "" {
		pub, err := mq.NewPublisher(cfg.RabbitURL, cfg.MQExchange)
		if err != nil {
			log.Fatalf("failed to connect rabbitmq: %v", err)
		}
		defer pub.Close()
		in.Forwarder = pub
		log.Printf("[mq] forwarding events to %s", cfg.MQExchange)
	}

	if cfg.RedisAddr != "" {
		rdb, err := cache.NewClient(ctx, cfg.RedisAddr, cfg.RedisPassword)
		if err != nil {
			log.Fatalf("failed to connect redis: %v", err)
		}
		defer rdb.Close()
		in.Locker = cache.NewRedisLocker(rdb)
		in.KeyCache = cache.NewRedisIdempotency(rdb, 24*time.Hour)
	}

	if cfg.S3Bucket != "" {
		in.Archiver = archive.NewS3(archive.S3Config{
			Bucket:    cfg.S3Bucket,
			Region:    cfg.S3Region,
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
		})
	}

	container := app.New(db, cfg, in)
	defer container.Close()

	// ======================================================
	// BACKGROUND
	// ======================================================
	scheduler := ucReconcile.NewScheduler(container.Reconciler, cfg.ReconcileInterval)
	scheduler.Start()
	defer scheduler.Stop()

	// ======================================================
	// HTTP
	// ======================================================
	if cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.Default()
	routes.RegisterRoutes(r, container, cfg)

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("Server running on %s", cfg.Addr())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("http shutdown: %v", err)
	}
	if err := shutdownTracer(shutdownCtx); err != nil {
		log.Printf("tracer shutdown: %v", err)
	}
}
