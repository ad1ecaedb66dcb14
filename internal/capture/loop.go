package capture

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/whoisthere/whoisthere/internal/classify"
	"github.com/whoisthere/whoisthere/internal/metrics"
	"github.com/whoisthere/whoisthere/internal/persist"
	"github.com/whoisthere/whoisthere/internal/stats"
)

// summaryInterval paces the info-level table summary emitted from the
// capture goroutine.
const summaryInterval = 30 * time.Second

// Loop is the capture execution context: it pulls frames from the handle,
// classifies them, folds observations into the store, and drives
// persistence. It runs on one dedicated goroutine for the process lifetime.
type Loop struct {
	logger  zerolog.Logger
	handle  Handle
	store   *stats.Store
	manager *persist.Manager
	metrics *metrics.Metrics

	// persistEvery batches saves: 0 persists after every observation (the
	// baseline write-after-observation contract), a positive value saves
	// at most once per interval, bounding crash loss to that window.
	persistEvery time.Duration
	lastSave     time.Time
	lastSummary  time.Time
}

func NewLoop(
	logger zerolog.Logger,
	handle Handle,
	store *stats.Store,
	manager *persist.Manager,
	m *metrics.Metrics,
	persistEvery time.Duration,
) *Loop {
	return &Loop{
		logger:       logger,
		handle:       handle,
		store:        store,
		manager:      manager,
		metrics:      m,
		persistEvery: persistEvery,
	}
}

// Run blocks until the context is cancelled or a fatal error occurs.
//
// Error policy: timeout reads retry; any other read error is fatal and
// returned, taking the whole process down with it. Classification failures
// are logged, counted, and dropped. Persistence failures are always fatal.
//
// The read is the loop's only blocking point. Cancellation is observed
// between reads; the owner additionally closes the handle on shutdown,
// which unblocks a pending read.
func (l *Loop) Run(ctx context.Context) error {
	l.logger.Info().
		Str("link_type", l.handle.LinkType().String()).
		Msg("capture loop started")

	l.lastSave = time.Now()
	l.lastSummary = time.Now()

	for {
		if ctx.Err() != nil {
			return nil
		}

		data, _, err := l.handle.ReadPacketData()
		if errors.Is(err, ErrReadTimeout) {
			l.logger.Trace().Msg("read timeout, retrying")
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				// The handle was closed underneath us during shutdown.
				return nil
			}
			return fmt.Errorf("frame source: %w", err)
		}

		l.metrics.FramesTotal.Inc()

		obs, err := classify.Classify(data)
		if err != nil {
			l.metrics.ClassifyFailures.
				WithLabelValues(classify.FailureReason(err)).Inc()
			l.logger.Debug().Err(err).Int("len", len(data)).Msg("frame dropped")
			continue
		}

		l.store.Observe(obs.Pair, obs.Length)
		l.metrics.ObservedBytes.Add(float64(obs.Length))
		l.logger.Debug().
			Stringer("pair", obs.Pair).
			Uint64("declared_len", obs.Length).
			Msg("observation")

		if err := l.maybePersist(); err != nil {
			return err
		}

		l.maybeSummarize()
	}
}

func (l *Loop) maybePersist() error {
	if !l.manager.Enabled() {
		return nil
	}
	if l.persistEvery > 0 && time.Since(l.lastSave) < l.persistEvery {
		return nil
	}

	start := time.Now()
	if err := l.manager.Save(l.store.Snapshot()); err != nil {
		return fmt.Errorf("persist observation: %w", err)
	}
	l.metrics.PersistTotal.Inc()
	l.metrics.PersistSeconds.Observe(time.Since(start).Seconds())
	l.lastSave = start

	return nil
}

func (l *Loop) maybeSummarize() {
	if time.Since(l.lastSummary) < summaryInterval {
		return
	}
	l.lastSummary = time.Now()
	l.logger.Info().Int("pairs", l.store.Len()).Msg("observing")
}
