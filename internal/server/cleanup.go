package server

import (
	"context"
	"log"
	"time"
)

// RetentionConfig configures the audit retention job.
type RetentionConfig struct {
	Enabled  bool
	Interval time.Duration
	MaxAge   time.Duration
	Store    AuditStore
}

// StartRetentionJob periodically prunes audit entries older than MaxAge.
// It blocks until ctx is done.
func StartRetentionJob(ctx context.Context, cfg RetentionConfig) {
	if !cfg.Enabled || cfg.Store == nil {
		log.Printf("service=retention msg=%q", "disabled")
		return
	}

	log.Printf("service=retention msg=%q interval=%s max_age=%s",
		"starting", cfg.Interval, cfg.MaxAge)

	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	// Run immediately on start
	runRetention(ctx, cfg)

	for {
		select {
		case <-ctx.Done():
			log.Printf("service=retention msg=%q", "shutting_down")
			return
		case <-ticker.C:
			runRetention(ctx, cfg)
		}
	}
}

func runRetention(ctx context.Context, cfg RetentionConfig) int64 {
	start := time.Now()
	cutoff := start.Add(-cfg.MaxAge)

	deleted, err := cfg.Store.Prune(ctx, cutoff)
	if err != nil {
		log.Printf("service=retention msg=%q err=%v", "prune_failed", err)
		return 0
	}

	log.Printf("service=retention msg=%q deleted=%d cutoff=%s duration_ms=%d",
		"prune_complete", deleted, cutoff.Format(time.RFC3339), time.Since(start).Milliseconds())
	return deleted
}
