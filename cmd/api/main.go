package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/hashicorp/go-hclog"

	domainai "github.com/privoscope/privoscope/internal/domain/ai"
	domainstore "github.com/privoscope/privoscope/internal/domain/store"
	"github.com/privoscope/privoscope/internal/config"
	"github.com/privoscope/privoscope/internal/engine"
	"github.com/privoscope/privoscope/internal/infra/ai/openai"
	"github.com/privoscope/privoscope/internal/infra/httpserver"
	"github.com/privoscope/privoscope/internal/infra/store/minio"
	"github.com/privoscope/privoscope/internal/infra/store/mysql"
	"github.com/privoscope/privoscope/internal/infra/store/postgres"
	"github.com/privoscope/privoscope/internal/infra/store/s3"
	"github.com/privoscope/privoscope/internal/middleware"
	"github.com/privoscope/privoscope/internal/orchestrator"
	"github.com/privoscope/privoscope/internal/scanners"
)

func main() {
	logger := hclog.New(&hclog.LoggerOptions{Name: "privoscope-api", Level: hclog.Info})

	path := "config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		path = v
	}

	cfg, err := config.Load(path)
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	ctx := context.Background()

	store, err := buildStore(ctx, cfg)
	if err != nil {
		log.Fatalf("store init error: %v", err)
	}

	var aiClient *openai.Client
	if cfg.AI.AIEnabled && cfg.AI.AIAPIKey != "" {
		aiClient = openai.NewClient(openai.Config{
			APIKey:      cfg.AI.AIAPIKey,
			ModelID:     cfg.AI.AIModelID,
			MaxTokens:   cfg.AI.AIMaxTokens,
			Temperature: cfg.AI.AITemperature,
			Timeout:     cfg.AI.AITimeout,
			Logger:      logger.Named("ai"),
		})
	}

	eng := engine.New(scanners.New(), engine.WithWorkers(cfg.AI.ScanWorkers), engine.WithLogger(logger.Named("engine")))
	if aiClient != nil {
		eng.SetAIClient(aiClient)
	}
	eng.SetAIEnabled(cfg.AI.AIEnabled)

	var aiIface domainai.Client
	if aiClient != nil {
		aiIface = aiClient
	}
	orch := orchestrator.New(eng, store, aiIface, cfg.AI.AIEnabled, cfg.AI.GlobalDeadline, cfg.AI.IgnoredPathExtra)
	orch.Logger = logger.Named("orchestrator")

	validKeys := apiKeysFromEnv()
	checkers := map[string]middleware.HealthChecker{"store": storePinger{store}}

	mux := httpserver.NewRouter(orch, eng, validKeys, checkers, logger.Named("http"))

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
}

func buildStore(ctx context.Context, cfg *config.Config) (domainstore.ResultStore, error) {
	switch cfg.StoreBackend {
	case "s3":
		db, err := postgres.Connect(ctx, cfg.PostgresDSN())
		if err != nil {
			return nil, err
		}
		blobs, err := s3.New(cfg.S3.Region, cfg.S3.BucketName, cfg.S3.AccessKey, cfg.S3.SecretKey)
		if err != nil {
			return nil, err
		}
		st := postgres.New(db, blobs)
		if err := st.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		return st, nil
	default:
		db, err := mysql.Connect(ctx, cfg.MySQLDSN())
		if err != nil {
			return nil, err
		}
		blobs, err := minio.New(ctx, cfg.Minio.Endpoint, cfg.Minio.Region, cfg.Minio.BucketName, cfg.Minio.AccessKey, cfg.Minio.SecretKey, cfg.Minio.UseSSL)
		if err != nil {
			return nil, err
		}
		st := mysql.New(db, blobs)
		if err := st.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		return st, nil
	}
}

// storePinger adapts whichever backing store implements Ping into a
// middleware.HealthChecker, so /health reflects real DB reachability.
type storePinger struct {
	store domainstore.ResultStore
}

func (p storePinger) Check(ctx context.Context) error {
	pinger, ok := p.store.(interface{ Ping(context.Context) error })
	if !ok {
		return nil
	}
	return pinger.Ping(ctx)
}

// apiKeysFromEnv parses API_KEYS="tenant1:key1,tenant2:key2" into the map
// middleware.APIKeyAuth expects.
func apiKeysFromEnv() map[string]string {
	out := map[string]string{}
	raw := os.Getenv("API_KEYS")
	if raw == "" {
		return out
	}
	for _, pair := range strings.Split(raw, ",") {
		parts := strings.SplitN(strings.TrimSpace(pair), ":", 2)
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			continue
		}
		out[parts[0]] = parts[1]
	}
	return out
}
