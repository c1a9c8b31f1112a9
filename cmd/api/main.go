package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	_ "tts-worker-service/docs"
	"tts-worker-service/internal/repository/postgresql"
	"tts-worker-service/internal/service"
	"tts-worker-service/internal/synthesis"
	httptransport "tts-worker-service/internal/transport/http"
)

// @title TTS Worker Service API
// @version 1.0
// @description Submit text-to-speech and audio post-processing jobs, then poll their status by id.
// @BasePath /
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pgDSN := mustEnv("POSTGRES_DSN")
	redisAddr := mustEnv("REDIS_ADDR")
	providerURL := envOr("TTS_PROVIDER_URL", "https://api.elevenlabs.io")
	providerKey := mustEnv("TTS_API_KEY")
	listenAddr := envOr("LISTEN_ADDR", ":8080")
	maxAttempts := envIntOr("MAX_ATTEMPTS", service.DefaultMaxAttempts)
	queueKey := envOr("REDIS_QUEUE_KEY", "tts:jobs:queue")
	processingKey := envOr("REDIS_PROCESSING_KEY", "tts:jobs:processing")
	scheduledKey := envOr("REDIS_SCHEDULED_KEY", "tts:jobs:scheduled")

	pool, err := postgresql.NewPool(ctx, pgDSN)
	if err != nil {
		log.Fatalf("pg: %v", err)
	}
	defer pool.Close()

	rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatalf("redis: %v", err)
	}

	jobRepo := postgresql.NewJobRepository(pool)
	batchRepo := postgresql.NewBatchRepository(pool)
	metadataRepo := postgresql.NewMetadataRepository(pool)
	presetRepo := postgresql.NewPresetRepository(pool)
	queue := service.NewRedisQueue(rdb, queueKey, processingKey, scheduledKey)

	client := synthesis.NewClient(providerURL, providerKey, synthesis.DefaultTimeout)
	catalog := synthesis.NewCatalog(client, synthesis.DefaultCatalogTTL)

	jobSvc := service.NewJobService(jobRepo, queue, maxAttempts)
	batchSvc := service.NewBatchService(batchRepo, jobRepo, queue, maxAttempts)

	h := httptransport.NewHandler(jobSvc, batchSvc, catalog, metadataRepo, presetRepo)
	srv := &http.Server{
		Addr:    listenAddr,
		Handler: httptransport.Routes(h),
	}

	go func() {
		log.Printf("[api] listening addr=%s", listenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("serve: %v", err)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("[api] shutdown error: %v", err)
	}
	log.Println("[api] stopped")
}

func mustEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		log.Fatalf("missing env: %s", key)
	}
	return v
}

func envOr(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func envIntOr(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}
