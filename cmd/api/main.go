package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/aws/aws-xray-sdk-go/xray"
	"github.com/gin-gonic/gin"
	flag "github.com/spf13/pflag"
	"github.com/uma-arai/sbcntr-homeservice/internal/auth"
	"github.com/uma-arai/sbcntr-homeservice/internal/common/config"
	"github.com/uma-arai/sbcntr-homeservice/internal/common/database"
	"github.com/uma-arai/sbcntr-homeservice/internal/common/utils"
	"github.com/uma-arai/sbcntr-homeservice/internal/handler"
	"github.com/uma-arai/sbcntr-homeservice/internal/mq"
	"github.com/uma-arai/sbcntr-homeservice/internal/realtime"
	"github.com/uma-arai/sbcntr-homeservice/internal/repository"
	"github.com/uma-arai/sbcntr-homeservice/internal/service/booking"
	"github.com/uma-arai/sbcntr-homeservice/internal/service/notification"
	"github.com/uma-arai/sbcntr-homeservice/internal/service/review"
)

const serviceName = "homeservice-api"

func main() {
	addr := flag.String("addr", "", "待ち受けアドレス (未指定の場合は HTTP_ADDR)")
	flag.Parse()

	cfg, err := config.LoadConfig("")
	if err != nil {
		log.Fatalf("Failed to load config: %v\nStack trace:\n%s", err, debug.Stack())
	}
	if *addr != "" {
		cfg.HTTPAddr = *addr
	}
	if err := cfg.ValidateAPI(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	if cfg.EnableTracing {
		utils.ConfigureTracing()
	}
	if cfg.Env != "LOCAL" {
		gin.SetMode(gin.ReleaseMode)
	}

	conn, err := database.Open(cfg.DB)
	if err != nil {
		log.Fatalf("Failed to connect database: %v", err)
	}
	db := repository.NewDB(conn)
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	bookingRepo := repository.NewBookingRepository(db)
	reviewRepo := repository.NewReviewRepository(db)
	technicianRepo := repository.NewTechnicianRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)

	// ライブ配信。AMQP_URL が設定されていればRabbitMQ経由で全レプリカへ中継する
	registry := realtime.NewRegistry()
	var emitter notification.Emitter = registry
	if cfg.AMQPURL != "" {
		publisher, err := mq.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			log.Fatalf("Failed to create relay publisher: %v", err)
		}
		defer publisher.Close()

		consumer, err := mq.NewConsumer(cfg.AMQPURL, cfg.AMQPExchange, mq.BindingKeys())
		if err != nil {
			log.Fatalf("Failed to create relay consumer: %v", err)
		}
		defer consumer.Close()

		go func() {
			if err := mq.NewRelay(consumer, registry).Run(ctx); err != nil {
				log.Printf("Relay stopped, live delivery from other replicas is disabled: %v", err)
			}
		}()
		emitter = mq.NewRelayEmitter(publisher)
		log.Printf("Live delivery relayed through exchange %s", cfg.AMQPExchange)
	}

	pusher := notification.NewQueuePusher(emitter, cfg.PushQueueSize)
	go pusher.Run(ctx)
	dispatcher := notification.NewDispatcher(notificationRepo, pusher, notification.WithRetention(cfg.NotificationRetention))

	verifier := auth.NewVerifier(cfg.JWTSecret)
	router := handler.NewRouter(handler.Dependencies{
		Verifier:      verifier,
		AuthTimeout:   cfg.HandshakeTimeout,
		Bookings:      booking.NewService(bookingRepo, repository.NewCatalogRepository(db), dispatcher),
		Reviews:       review.NewService(bookingRepo, reviewRepo, technicianRepo, dispatcher),
		Notifications: notification.NewService(notificationRepo),
		Realtime:      realtime.NewHandler(registry, verifier, cfg.HandshakeTimeout, cfg.WSWriteTimeout),
	})

	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: xray.Handler(xray.NewFixedSegmentNamer(serviceName), router),
	}

	errChan := make(chan error, 1)
	go func() {
		log.Printf("%s listening on %s", serviceName, cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Printf("Shutting down")
	case err := <-errChan:
		log.Printf("Server failed: %v", err)
		stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Graceful shutdown failed: %v", err)
		os.Exit(1)
	}
}
