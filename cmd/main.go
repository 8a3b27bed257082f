package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"collections-engine/internal/clients"
	"collections-engine/internal/config"
	"collections-engine/internal/repository"
	"collections-engine/internal/scheduler"
	"collections-engine/internal/service"
	"collections-engine/internal/transport/auth"
	"collections-engine/internal/transport/rest"
	"collections-engine/internal/transport/websocket"
	"collections-engine/pkg/database/postgres"

	"github.com/go-chi/chi/v5"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, using system env or defaults")
	}

	// top-level context which we can cancel on shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	cfg := config.Load()

	db := mustInitPostgres(cfg.Postgres)
	defer postgres.Close(db)

	redisClient := mustInitRedis(cfg.Redis)
	defer redisClient.Close()

	storageClient, err := clients.NewLocalStorage(cfg.DocumentDir, "/files", cfg.PublicURL)
	if err != nil {
		log.Fatalf("storage init error: %v", err)
	}

	s3Client, err := clients.NewS3Client(ctx, clients.S3Config{
		Endpoint:        cfg.S3.Endpoint,
		AccessKeyID:     cfg.S3.AccessKeyID,
		SecretAccessKey: cfg.S3.SecretAccessKey,
		Bucket:          cfg.S3.Bucket,
		UseSSL:          cfg.S3.UseSSL,
		Region:          cfg.S3.Region,
		Prefix:          cfg.S3.Prefix,
	})
	if err != nil {
		log.Fatalf("s3 init error: %v", err)
	}

	wsHub := websocket.NewHub()
	go wsHub.Run(ctx)
	wsClient := clients.NewWebSocketClient(wsHub)

	gateway := clients.NewNotificationClient(
		clients.EmailConfig{
			Host:     cfg.Email.Host,
			Port:     cfg.Email.Port,
			User:     cfg.Email.User,
			Password: cfg.Email.Password,
			From:     cfg.Email.From,
		},
		clients.SMSConfig{
			BaseURL: cfg.SMS.BaseURL,
			APIKey:  cfg.SMS.APIKey,
		},
	)

	taskRepo := repository.NewTaskRepository(db)

	engine := service.NewEngine(taskRepo, gateway, storageClient, s3Client, service.EngineOptions{
		Notifier: wsClient,
	})
	reportSvc := service.NewReportService(taskRepo, redisClient, s3Client, wsClient, nil)

	orchestrator := service.NewOrchestrator(engine, reportSvc, nil, service.OrchestratorConfig{
		ReminderInterval:   cfg.Jobs.ReminderInterval,
		EscalationInterval: cfg.Jobs.EscalationInterval,
		MaintenanceHour:    cfg.Jobs.MaintenanceHour,
		ReportWeekday:      cfg.Jobs.ReportWeekday,
		ReportHour:         cfg.Jobs.ReportHour,
	})

	jobs := scheduler.NewInterval()
	orchestrator.Register(jobs)
	jobs.Start(ctx)
	defer jobs.Stop()

	actorMiddleware := auth.ActorMiddleware()

	handler := rest.NewHandler(engine, engine, engine, reportSvc)
	router := handler.InitRouterWithAuth(actorMiddleware)

	// websocket endpoint lives on the protected router so only identified
	// staff receive engine events
	router.Get("/ws", func(w http.ResponseWriter, r *http.Request) {
		actorID, err := auth.GetActorID(r.Context())
		if err != nil {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		log.Printf("WS connected: actor=%s", actorID)
		wsHub.HandleWebSocket(w, r, actorID)
	})

	// public root router so /health stays reachable without an actor header
	root := chi.NewRouter()
	root.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	root.Mount("/", router)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      root,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	srvErr := make(chan error, 1)
	go func() {
		log.Printf("HTTP server listening on :%s\n", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			srvErr <- err
			return
		}
		srvErr <- nil
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-srvErr:
		if err != nil {
			log.Fatalf("HTTP server error: %v", err)
		}
	case sig := <-stop:
		log.Printf("Shutdown signal received: %v", sig)

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server Shutdown error: %v", err)
		}

		// stop periodic jobs and background services before closing clients
		cancel()
		jobs.Stop()

		log.Println("Shutdown complete")
	}
}

func mustInitPostgres(cfg config.PostgresConfig) *sql.DB {
	db, err := postgres.NewPostgresConnection(postgres.ConnectionInfo{
		Host:     cfg.Host,
		Port:     cfg.Port,
		Username: cfg.User,
		DBName:   cfg.DBName,
		SSLMode:  cfg.SSLMode,
		Password: cfg.Password,
	})
	if err != nil {
		log.Fatalf("postgres init error: %v", err)
	}
	return db
}

func mustInitRedis(cfg config.RedisConfig) *clients.RedisClient {
	client, err := clients.NewRedisClient(clients.RedisConfig{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		MaxRetries:  cfg.MaxRetries,
		DialTimeout: time.Duration(cfg.DialTimeout) * time.Second,
		Timeout:     time.Duration(cfg.Timeout) * time.Second,
		Prefix:      cfg.Prefix,
	})
	if err != nil {
		log.Fatalf("redis init error: %v", err)
	}
	return client
}
