package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/redis/go-redis/v9"

	"github.com/ignite/crm-import/internal/api"
	"github.com/ignite/crm-import/internal/config"
	"github.com/ignite/crm-import/internal/notify"
	"github.com/ignite/crm-import/internal/pkg/logger"
	"github.com/ignite/crm-import/internal/platform"
	"github.com/ignite/crm-import/internal/repository/postgres"
	"github.com/ignite/crm-import/internal/service/export"
	"github.com/ignite/crm-import/internal/service/ingest"
	"github.com/ignite/crm-import/internal/service/wizard"
	"github.com/ignite/crm-import/internal/session"
	"github.com/ignite/crm-import/internal/storage"
)

// checkPortAvailable verifies that the target port is not already in use.
func checkPortAvailable(host string, port int) error {
	addr := fmt.Sprintf("%s:%d", host, port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("port %d is already in use (addr %s): %v\n"+
			"  Hint: Run 'lsof -i :%d' to find the blocking process", port, addr, err, port)
	}
	ln.Close()
	return nil
}

// ledger is what the server needs from a job ledger: the driver writes to
// it and the API reads from it.
type ledger interface {
	ingest.Ledger
	api.JobReader
}

func main() {
	log.Println("╔════════════════════════════════════════════════════════════╗")
	log.Println("║  CRM Import Server (cmd/server/main.go)                   ║")
	log.Println("║  CSV mapping wizard API backed by the platform RPC        ║")
	log.Println("╚════════════════════════════════════════════════════════════╝")

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/config.yaml"
	}
	if _, err := os.Stat(configPath); err != nil {
		log.Printf("[config] %s not found, using defaults and environment", configPath)
		configPath = ""
	}
	cfg, err := config.LoadFromEnv(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	logger.SetLevel(logger.ParseLevel(cfg.Logging.Level))
	logger.SetRedactPII(cfg.Logging.RedactEnabled())

	host := cfg.Server.GetHost()
	if err := checkPortAvailable(host, cfg.Server.Port); err != nil {
		log.Fatalf("Pre-flight check FAILED: %v", err)
	}
	log.Printf("Pre-flight check passed: port %d is available", cfg.Server.Port)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client, err := platform.NewClient(cfg.Platform)
	if err != nil {
		log.Fatalf("Failed to initialize platform client: %v", err)
	}
	log.Printf("Platform client ready: %s", cfg.Platform.BaseURL)

	// Session store
	var store session.Store
	var redisClient *redis.Client
	if cfg.Redis.URL != "" {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			redisClient = redis.NewClient(&redis.Options{Addr: cfg.Redis.URL})
		} else {
			redisClient = redis.NewClient(opts)
		}
		pingCtx, pingCancel := context.WithTimeout(ctx, 3*time.Second)
		if err := redisClient.Ping(pingCtx).Err(); err != nil {
			log.Fatalf("Redis connection failed (%s): %v", cfg.Redis.URL, err)
		}
		pingCancel()
		defer redisClient.Close()
		store = session.NewRedisStore(redisClient, cfg.Redis.KeyPrefix, cfg.Upload.SessionTTL())
		log.Printf("Redis connected: sessions expire after %s", cfg.Upload.SessionTTL())
	} else {
		store = session.NewMemoryStore()
		log.Println("Redis not configured (REDIS_URL not set); sessions are kept in memory and lost on restart")
	}

	// Archive and job ledger
	var aws *storage.AWSStorage
	if cfg.Archive.Enabled || cfg.Archive.DynamoDBTable != "" {
		aws, err = storage.NewAWSStorage(ctx, cfg.Archive)
		if err != nil {
			log.Fatalf("Failed to initialize AWS storage: %v", err)
		}
		log.Printf("AWS storage initialized: bucket=%q table=%q", cfg.Archive.S3Bucket, cfg.Archive.DynamoDBTable)
	}
	archive := storage.New(aws)

	var jobs ledger = archive
	var db *sql.DB
	if cfg.Database.URL != "" {
		db, err = sql.Open("postgres", cfg.Database.URL)
		if err != nil {
			log.Fatalf("Failed to open database: %v", err)
		}
		defer db.Close()
		db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
		db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
		db.SetConnMaxLifetime(5 * time.Minute)

		pingCtx, pingCancel := context.WithTimeout(ctx, 3*time.Second)
		if err := db.PingContext(pingCtx); err != nil {
			log.Printf("Warning: database unreachable, job ledger stays in memory: %v", err)
		} else {
			jobs = postgres.NewImportJobRepo(db)
			log.Println("Import job ledger: PostgreSQL")
		}
		pingCancel()
	}

	messages, err := notify.New(cfg.Notifications.Templates)
	if err != nil {
		log.Fatalf("Invalid notification templates: %v", err)
	}

	wizardSvc := wizard.NewService(client, store, client,
		wizard.WithLedger(jobs),
		wizard.WithArchiver(archive),
		wizard.WithMessages(messages),
		wizard.WithChunkSize(cfg.Upload.ChunkSize),
		wizard.WithPrimaryKeyField(cfg.Upload.PrimaryKeyField),
		wizard.WithMaxFileBytes(cfg.Upload.MaxFileBytes()),
		wizard.WithUploadTimeout(cfg.Upload.Timeout()),
	)
	exportSvc := export.NewService(client, messages)

	handlers := api.NewHandlers(wizardSvc, exportSvc, cfg.Upload.MaxFileBytes()).WithJobs(jobs)
	server := api.NewServer(cfg.Server, handlers, api.NewHealthChecker(db, redisClient))

	// Setup graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		addr := server.Addr()
		log.Printf("Starting server on %s", addr)
		if err := server.ListenAndServe(addr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	log.Println("All services initialized, server is ready")

	<-done
	log.Println("Shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	log.Println("Waiting for running uploads to finish...")
	wizardSvc.Wait()
	log.Println("Server stopped")
}
