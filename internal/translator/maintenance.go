package translator

import (
	"context"
	"time"

	"glossa/internal/logging"
)

// RunMaintenance drives the periodic sweeps until ctx is cancelled: job
// timeouts, stale chunk reclamation, cache expiry purges, and the retry
// scheduler tick. Intended to run as a single goroutine owned by the
// daemon.
func (s *Service) RunMaintenance(ctx context.Context) {
	timeoutTicker := time.NewTicker(secondsOrDefault(s.cfg.Workflow.TimeoutSweepInterval, 30))
	retryTicker := time.NewTicker(secondsOrDefault(s.cfg.Workflow.RetryPollInterval, 15))
	purgeTicker := time.NewTicker(secondsOrDefault(s.cfg.Cache.PurgeIntervalSeconds, 3600))
	defer timeoutTicker.Stop()
	defer retryTicker.Stop()
	defer purgeTicker.Stop()

	s.logger.Info("maintenance loop started")
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("maintenance loop stopped")
			return
		case <-timeoutTicker.C:
			if n, err := s.SweepTimeouts(ctx); err != nil {
				s.logger.Error("timeout sweep failed", logging.Error(err))
			} else if n > 0 {
				s.logger.Warn("timed out stale jobs", logging.Int64("jobs", n))
			}
			if n, err := s.ReclaimStaleChunks(ctx); err != nil {
				s.logger.Error("stale chunk reclaim failed", logging.Error(err))
			} else if n > 0 {
				s.logger.Warn("reclaimed stale chunks", logging.Int64("chunks", n))
			}
		case <-retryTicker.C:
			if n, err := s.ProcessDueRetries(ctx); err != nil && ctx.Err() == nil {
				s.logger.Error("retry tick failed", logging.Error(err))
			} else if n > 0 {
				s.logger.Info("retry tick repaired chunks", logging.Int("chunks", n))
			}
		case <-purgeTicker.C:
			if n, err := s.PurgeCache(ctx); err != nil {
				s.logger.Error("cache purge failed", logging.Error(err))
			} else if n > 0 {
				s.logger.Info("purged expired cache entries", logging.Int64("entries", n))
			}
		}
	}
}

// SweepTimeouts marks jobs whose wall clock exceeded the configured budget
// as timed out.
func (s *Service) SweepTimeouts(ctx context.Context) (int64, error) {
	budget := time.Duration(s.cfg.Translation.JobTimeoutSeconds) * time.Second
	if budget <= 0 {
		return 0, nil
	}
	cutoff := s.now().UTC().Add(-budget)
	return s.store.TimeoutStaleJobs(ctx, cutoff)
}

// ReclaimStaleChunks returns chunks stuck in processing to the retry state
// so a restarted daemon can pick them up.
func (s *Service) ReclaimStaleChunks(ctx context.Context) (int64, error) {
	cutoffSeconds := s.cfg.Workflow.StaleProcessingCutoff
	if cutoffSeconds <= 0 {
		return 0, nil
	}
	cutoff := s.now().UTC().Add(-time.Duration(cutoffSeconds) * time.Second)
	return s.store.ReclaimStaleChunks(ctx, cutoff)
}

// PurgeCache deletes expired, unpinned cache entries.
func (s *Service) PurgeCache(ctx context.Context) (int64, error) {
	return s.cache.PurgeExpired(ctx)
}

func secondsOrDefault(seconds, fallback int) time.Duration {
	if seconds <= 0 {
		seconds = fallback
	}
	return time.Duration(seconds) * time.Second
}
