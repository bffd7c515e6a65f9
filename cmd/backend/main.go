package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"zipdrop/internal/archive"
	"zipdrop/internal/db"
	"zipdrop/internal/server"
	"zipdrop/internal/storage"
)

func main() {
	settings, err := server.LoadSettings(getenvDefault("ZD_CONFIG_FILE", ""), getenvDefault)
	if err != nil {
		log.Printf("service=backend msg=%q err=%v", "invalid_configuration", err)
		os.Exit(1)
	}
	logger := server.SetupLogging(settings.LogLevel, settings.LogFormat)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	root, err := openStorage(ctx, settings)
	if err != nil {
		log.Printf("service=backend msg=%q backend=%s err=%v", "storage_init_failed", settings.StorageBackend, err)
		os.Exit(1)
	}

	// Database is optional: without it the audit trail is disabled.
	var (
		dbConn *sql.DB
		audit  server.AuditStore
	)
	if settings.DatabaseURL != "" {
		dbConn, err = server.OpenDB(ctx, settings.DatabaseURL)
		if err != nil {
			log.Printf("service=backend msg=%q err=%v", "db_connect_failed", err)
			os.Exit(1)
		}
		defer func() { _ = dbConn.Close() }()

		log.Printf("service=backend msg=%q", "running_migrations")
		if err := db.RunMigrations(dbConn); err != nil {
			log.Printf("service=backend msg=%q err=%v", "migration_failed", err)
			os.Exit(1)
		}
		version, _, _ := db.Version(dbConn)
		log.Printf("service=backend msg=%q schema_version=%d", "migrations_complete", version)

		store := server.NewSQLAuditStore(dbConn)
		audit = store
		go server.StartRetentionJob(ctx, server.RetentionConfig{
			Enabled:  true,
			Interval: time.Hour,
			MaxAge:   settings.AuditRetention,
			Store:    store,
		})
	} else {
		logger.Info("audit trail disabled", map[string]any{"reason": "DATABASE_URL not set"})
	}

	build := server.BuildInfo{Version: settings.Version, Commit: settings.Commit}

	srv := server.New(server.Config{
		Addr:           settings.Addr,
		Build:          build,
		Root:           root,
		Extractor:      archive.ZipExtractor{},
		Access:         settings.AccessPolicy(),
		MaxUploadBytes: settings.MaxUploadBytes,
		MaxExtractions: settings.MaxExtractions,
		DB:             dbConn,
		Audit:          audit,
		Logger:         logger,
	})

	// Start the HTTP server in a background goroutine so we can wait for signals.
	errCh := make(chan error, 1)
	go func() {
		log.Printf("service=backend msg=%q addr=%s backend=%s version=%s commit=%s",
			"starting", settings.Addr, settings.StorageBackend, build.Version, build.Commit)
		log.Printf("service=backend msg=%q url=%s", "admin_ready",
			fmt.Sprintf("http://localhost:%d%s", settings.ListenPort(), settings.AdminPath()))
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Printf("service=backend msg=%q signal=%s", "shutting_down", sig.String())
		stop()
		// Give in-flight uploads a chance to finish extracting.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("service=backend msg=%q err=%v", "shutdown_error", err)
			os.Exit(1)
		}
		log.Printf("service=backend msg=%q", "shutdown_complete")
	case err := <-errCh:
		if err != nil {
			log.Printf("service=backend msg=%q err=%v", "server_error", err)
			os.Exit(1)
		}
	}
}

// openStorage builds the Storage Root selected by settings.StorageBackend.
func openStorage(ctx context.Context, settings server.Settings) (storage.Root, error) {
	switch settings.StorageBackend {
	case server.BackendMemory:
		return storage.NewMemory(), nil
	case server.BackendMinIO:
		ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		m, err := storage.NewMinIO(ctx, storage.MinIOConfig{
			Endpoint:  settings.S3Endpoint,
			AccessKey: settings.S3AccessKey,
			SecretKey: settings.S3SecretKey,
			Bucket:    settings.Bucket,
			Prefix:    settings.S3Prefix,
		})
		if err != nil {
			return nil, err
		}
		log.Printf("service=backend msg=%q endpoint=%s bucket=%s", "minio_connected", settings.S3Endpoint, m.Bucket())
		return m, nil
	default:
		return storage.NewDisk(settings.StorageDir)
	}
}

// getenvDefault reads an environment variable and returns a default value if not set.
func getenvDefault(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}
