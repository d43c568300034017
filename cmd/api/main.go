package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"estate/api/internal/app"
	"estate/api/internal/config"
	"estate/api/internal/media"
	"estate/api/internal/search"
	"estate/api/internal/session"
	"estate/api/internal/store"
)

func main() {
	cfg := config.Load()
	ctx := context.Background()

	var dataStore app.Store
	switch cfg.StoreDriver {
	case config.DriverMongo:
		mongoStore, err := store.OpenMongo(ctx, cfg.MongoURL, cfg.MongoDatabase)
		if err != nil {
			log.Fatalf("mongo connection failed: %v", err)
		}
		defer mongoStore.Close(context.Background())
		if err := mongoStore.EnsureIndexes(ctx); err != nil {
			log.Fatalf("mongo indexes failed: %v", err)
		}
		log.Printf("Using MongoDB database %s", cfg.MongoDatabase)
		dataStore = mongoStore
	case config.DriverPostgres:
		db, err := store.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("database connection failed: %v", err)
		}
		defer db.Close()
		if err := store.ApplyMigrations(ctx, db, cfg.MigrationsDir); err != nil {
			log.Fatalf("migrations failed: %v", err)
		}
		log.Printf("Using PostgreSQL")
		dataStore = store.NewPostgresStore(db)
	default:
		log.Fatalf("unknown STORE_DRIVER %q", cfg.StoreDriver)
	}

	var opts []app.Option
	if strings.TrimSpace(cfg.RedisURL) != "" {
		log.Printf("Using Redis for refresh token storage")
		redisStore, err := session.NewRedisStore(cfg.RedisURL)
		if err != nil {
			log.Fatalf("redis connection failed: %v", err)
		}
		defer redisStore.Close()
		opts = append(opts, app.WithSessionStore(redisStore))
	}

	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meiliClient := search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey)
		defer meiliClient.Close()
		opts = append(opts, app.WithSearchIndex(meiliClient))
	}

	if strings.TrimSpace(cfg.MinioEndpoint) != "" {
		minioStorage, err := media.NewMinioStorage(ctx, cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL)
		if err != nil {
			log.Fatalf("minio setup failed: %v", err)
		}
		log.Printf("Storing uploads in bucket %s", cfg.MinioBucket)
		opts = append(opts, app.WithUploader(media.NewUploader(minioStorage)))
	} else {
		if err := os.MkdirAll(cfg.UploadDir, 0o755); err != nil {
			log.Fatalf("failed to create upload dir: %v", err)
		}
	}

	service := app.New(cfg, dataStore, opts...)
	if err := service.Bootstrap(ctx); err != nil {
		log.Printf("WARNING: bootstrap error (will retry on next restart): %v", err)
	}

	httpServer := app.NewHTTPServer(service, cfg.CORSOrigin)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("Estate API listening on %s", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}
