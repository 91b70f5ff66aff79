// Package maintenance runs scheduled housekeeping jobs.
package maintenance

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"steward/internal/config"
	"steward/pkg/logger"
)

// Pruner deletes interaction records resolved before the cutoff.
type Pruner interface {
	Prune(olderThan time.Time) (int64, error)
}

// Retention periodically prunes old interaction records.
type Retention struct {
	cron   *cron.Cron
	pruner Pruner
	maxAge time.Duration
	log    *zerolog.Logger
}

// NewRetention creates a retention sweeper from config. Returns nil
// when retention is disabled.
func NewRetention(cfg config.RetentionConfig, pruner Pruner) (*Retention, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	if cfg.MaxAge <= 0 {
		return nil, fmt.Errorf("retention max_age must be positive, got %s", cfg.MaxAge)
	}

	r := &Retention{
		cron:   cron.New(),
		pruner: pruner,
		maxAge: cfg.MaxAge,
		log:    logger.Component("maintenance"),
	}

	if _, err := r.cron.AddFunc(cfg.Schedule, r.sweep); err != nil {
		return nil, fmt.Errorf("invalid retention schedule %q: %w", cfg.Schedule, err)
	}

	return r, nil
}

// Start begins the schedule.
func (r *Retention) Start() {
	r.cron.Start()
	r.log.Info().Dur("max_age", r.maxAge).Msg("Retention sweep scheduled")
}

// Stop halts the schedule, waiting for a running sweep to finish.
func (r *Retention) Stop() {
	ctx := r.cron.Stop()
	<-ctx.Done()
}

func (r *Retention) sweep() {
	cutoff := time.Now().Add(-r.maxAge)
	n, err := r.pruner.Prune(cutoff)
	if err != nil {
		r.log.Error().Err(err).Msg("Retention sweep failed")
		return
	}
	if n > 0 {
		r.log.Info().Int64("pruned", n).Time("cutoff", cutoff).Msg("Retention sweep completed")
	}
}
