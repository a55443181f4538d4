package runstore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// DefaultPruneInterval is how often a Janitor applies its policy when none is set
const DefaultPruneInterval = 24 * time.Hour

// Retention bounds how much run history a store keeps. Zero fields disable that bound.
type Retention struct {
	MaxAge  time.Duration
	MaxRuns int
}

// Enabled reports whether the policy removes anything at all
func (r Retention) Enabled() bool {
	return r.MaxAge > 0 || r.MaxRuns > 0
}

// Prune deletes runs that started before now-MaxAge and every run beyond the
// newest MaxRuns. It returns how many runs were removed. Runs that vanish
// between listing and deleting are not counted and are not an error.
func Prune(ctx context.Context, store Store, policy Retention, now time.Time) (int, error) {
	if store == nil {
		return 0, errors.New("store is required")
	}
	if !policy.Enabled() {
		return 0, nil
	}

	records, err := store.List(ctx, 0)
	if err != nil {
		return 0, fmt.Errorf("failed to list runs: %w", err)
	}

	var cutoff time.Time
	if policy.MaxAge > 0 {
		cutoff = now.Add(-policy.MaxAge)
	}

	deleted := 0
	var errs []error
	for i, record := range records {
		expired := !cutoff.IsZero() && record.StartedAt.Before(cutoff)
		overflow := policy.MaxRuns > 0 && i >= policy.MaxRuns
		if !expired && !overflow {
			continue
		}

		if err := ctx.Err(); err != nil {
			return deleted, err
		}
		if err := store.Delete(ctx, record.ID); err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			errs = append(errs, fmt.Errorf("run %s: %w", record.ID, err))
			continue
		}
		deleted++
	}
	return deleted, errors.Join(errs...)
}

// Janitor applies a Retention policy on a fixed interval until stopped
type Janitor struct {
	store    Store
	policy   Retention
	interval time.Duration
	logger   zerolog.Logger

	mu      sync.Mutex
	stopCh  chan struct{}
	doneCh  chan struct{}
	running bool
}

// NewJanitor creates a janitor; interval <= 0 uses DefaultPruneInterval
func NewJanitor(store Store, policy Retention, interval time.Duration, logger zerolog.Logger) *Janitor {
	if interval <= 0 {
		interval = DefaultPruneInterval
	}
	return &Janitor{
		store:    store,
		policy:   policy,
		interval: interval,
		logger:   logger.With().Str("component", "runstore.janitor").Logger(),
	}
}

// Start prunes once immediately and then on every tick
func (j *Janitor) Start(ctx context.Context) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.running {
		return fmt.Errorf("janitor is already running")
	}

	j.stopCh = make(chan struct{})
	j.doneCh = make(chan struct{})
	j.running = true
	go j.run(ctx, j.stopCh, j.doneCh)

	j.logger.Info().
		Dur("interval", j.interval).
		Dur("max_age", j.policy.MaxAge).
		Int("max_runs", j.policy.MaxRuns).
		Msg("Run retention started")
	return nil
}

// Stop ends the loop and waits for an in-flight prune to finish
func (j *Janitor) Stop() error {
	j.mu.Lock()
	if !j.running {
		j.mu.Unlock()
		return fmt.Errorf("janitor is not running")
	}
	close(j.stopCh)
	done := j.doneCh
	j.running = false
	j.mu.Unlock()

	<-done
	j.logger.Info().Msg("Run retention stopped")
	return nil
}

// IsRunning reports whether the loop is active
func (j *Janitor) IsRunning() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.running
}

// PruneNow applies the policy once
func (j *Janitor) PruneNow(ctx context.Context) (int, error) {
	deleted, err := Prune(ctx, j.store, j.policy, time.Now())
	if err != nil {
		j.logger.Error().Err(err).Int("deleted", deleted).Msg("Failed to prune run history")
		return deleted, err
	}
	if deleted > 0 {
		j.logger.Info().Int("deleted", deleted).Msg("Pruned run history")
	}
	return deleted, nil
}

func (j *Janitor) run(ctx context.Context, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	_, _ = j.PruneNow(ctx)

	for {
		select {
		case <-ticker.C:
			_, _ = j.PruneNow(ctx)
		case <-stop:
			return
		case <-ctx.Done():
			return
		}
	}
}
