package application

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"channelwatch/internal/domain/entity"
	"channelwatch/internal/domain/repository"
)

const (
	defaultCheckInterval = 30 * time.Minute
	defaultFetchTimeout  = 30 * time.Second
	defaultStopTimeout   = 5 * time.Second
	defaultConcurrency   = 4
	defaultRecentLimit   = 10

	// batchChunkSize is the number of channels one upstream batch call covers.
	batchChunkSize = 50
)

type SchedulerConfig struct {
	Interval     time.Duration
	FetchTimeout time.Duration
	StopTimeout  time.Duration
	Concurrency  int
	RecentLimit  int
}

func (c SchedulerConfig) withDefaults() SchedulerConfig {
	if c.Interval <= 0 {
		c.Interval = defaultCheckInterval
	}
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = defaultFetchTimeout
	}
	if c.StopTimeout <= 0 {
		c.StopTimeout = defaultStopTimeout
	}
	if c.Concurrency <= 0 {
		c.Concurrency = defaultConcurrency
	}
	if c.RecentLimit <= 0 {
		c.RecentLimit = defaultRecentLimit
	}
	if c.RecentLimit > entity.MaxRecentItems {
		c.RecentLimit = entity.MaxRecentItems
	}
	return c
}

// ChannelFailure records why a channel was skipped in a cycle.
type ChannelFailure struct {
	Channel string `json:"channel"`
	Reason  string `json:"reason"`
}

// CycleReport summarizes one polling cycle.
type CycleReport struct {
	ID        string           `json:"id"`
	StartedAt time.Time        `json:"started_at"`
	Duration  time.Duration    `json:"duration"`
	Channels  int              `json:"channels"`
	Checked   int              `json:"checked"`
	Seeded    int              `json:"seeded"`
	Skipped   int              `json:"skipped"`
	NewItems  int              `json:"new_items"`
	Notified  int              `json:"notified"`
	Failed    int              `json:"failed"`
	Failures  []ChannelFailure `json:"failures,omitempty"`
}

func (r *CycleReport) fail(channel string, err error) {
	r.Failed++
	r.Failures = append(r.Failures, ChannelFailure{Channel: channel, Reason: err.Error()})
}

type pollTarget struct {
	record    *entity.ChannelRecord
	channelID string
}

// Scheduler runs polling cycles on a fixed interval in one background goroutine.
type Scheduler struct {
	cfg        SchedulerConfig
	channels   repository.ChannelRepository
	source     repository.ContentSource
	resolver   *Resolver
	tracker    *StateTracker
	dispatcher *Dispatcher
	logger     *zap.Logger
	now        func() time.Time

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
	last   *CycleReport

	// cycleMu keeps a manual check from overlapping the background loop.
	cycleMu sync.Mutex
}

func NewScheduler(
	cfg SchedulerConfig,
	channels repository.ChannelRepository,
	source repository.ContentSource,
	resolver *Resolver,
	tracker *StateTracker,
	dispatcher *Dispatcher,
	logger *zap.Logger,
) *Scheduler {
	return &Scheduler{
		cfg:        cfg.withDefaults(),
		channels:   channels,
		source:     source,
		resolver:   resolver,
		tracker:    tracker,
		dispatcher: dispatcher,
		logger:     logger,
		now:        time.Now,
	}
}

// Start launches the loop. Calling it while running is a no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.runningLocked() {
		return
	}

	loopCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.cancel = cancel
	s.done = done

	go s.loop(loopCtx, done)

	s.logger.Info("Poll loop started", zap.Duration("interval", s.cfg.Interval))
}

// Stop cancels the loop and waits for it to exit, at most StopTimeout.
// A loop that misses the deadline stays registered, so Running reports it
// and Start will not launch a second one until it exits.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	if done == nil {
		return nil
	}
	cancel()

	timer := time.NewTimer(s.cfg.StopTimeout)
	defer timer.Stop()

	select {
	case <-done:
		s.mu.Lock()
		if s.done == done {
			s.cancel, s.done = nil, nil
		}
		s.mu.Unlock()
		s.logger.Info("Poll loop stopped")
		return nil
	case <-timer.C:
		return repository.ErrStopTimeout
	}
}

func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runningLocked()
}

func (s *Scheduler) runningLocked() bool {
	if s.done == nil {
		return false
	}
	select {
	case <-s.done:
		return false
	default:
		return true
	}
}

// LastReport returns the most recent finished cycle, or nil.
func (s *Scheduler) LastReport() *CycleReport {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

func (s *Scheduler) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	for {
		if _, err := s.RunCycle(ctx); err != nil {
			if errors.Is(err, repository.ErrMissingCredential) {
				s.logger.Error("Stopping poll loop", zap.Error(err))
				return
			}
			if ctx.Err() != nil {
				return
			}
			s.logger.Error("Poll cycle failed", zap.Error(err))
		}

		timer := time.NewTimer(s.cfg.Interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// RunCycle performs one pass over every configured channel.
func (s *Scheduler) RunCycle(ctx context.Context) (*CycleReport, error) {
	s.cycleMu.Lock()
	defer s.cycleMu.Unlock()

	report := &CycleReport{ID: uuid.NewString(), StartedAt: s.now()}
	logger := s.logger.With(zap.String("cycle_id", report.ID))

	if err := s.source.Validate(); err != nil {
		return report, fmt.Errorf("failed to validate content source: %w", err)
	}

	records, err := s.channels.List(ctx)
	if err != nil {
		return report, fmt.Errorf("failed to list channels: %w", err)
	}
	report.Channels = len(records)

	targets := s.resolveTargets(ctx, logger, records, report)
	infos := s.fetch(ctx, logger, targets, report)

	for _, target := range targets {
		if ctx.Err() != nil {
			break
		}
		info, ok := infos[target.channelID]
		if !ok {
			continue
		}
		s.process(ctx, logger, target, info, report)
	}

	report.Duration = s.now().Sub(report.StartedAt)
	s.mu.Lock()
	s.last = report
	s.mu.Unlock()

	logger.Info("Poll cycle finished",
		zap.Int("channels", report.Channels),
		zap.Int("checked", report.Checked),
		zap.Int("seeded", report.Seeded),
		zap.Int("new_items", report.NewItems),
		zap.Int("notified", report.Notified),
		zap.Int("failed", report.Failed),
		zap.Duration("duration", report.Duration),
	)
	return report, ctx.Err()
}

// resolveTargets maps every record to a channel id. A record that cannot be
// resolved is reported and left out; it does not affect the others.
func (s *Scheduler) resolveTargets(ctx context.Context, logger *zap.Logger, records []*entity.ChannelRecord, report *CycleReport) []pollTarget {
	targets := make([]pollTarget, 0, len(records))
	seen := make(map[string]bool, len(records))

	for _, record := range records {
		channelID := record.ChannelID()
		if channelID == "" {
			resolved, err := s.resolver.Resolve(ctx, record.Identifier)
			if err != nil {
				logger.Warn("Skipping unresolved channel", zap.String("identifier", record.Identifier), zap.Error(err))
				report.fail(record.Identifier, err)
				continue
			}
			channelID = resolved
			if err := s.channels.UpdateResolved(ctx, record.Identifier, channelID); err != nil {
				logger.Warn("Failed to persist resolved id", zap.String("identifier", record.Identifier), zap.Error(err))
			}
		}

		if seen[channelID] {
			continue
		}
		seen[channelID] = true
		targets = append(targets, pollTarget{record: record, channelID: channelID})
	}
	return targets
}

func (s *Scheduler) fetch(ctx context.Context, logger *zap.Logger, targets []pollTarget, report *CycleReport) map[string]*entity.ChannelInfo {
	if len(targets) == 0 {
		return nil
	}

	limit := s.cfg.RecentLimit
	if s.tracker.Mode() == entity.PollModeLatestOnly {
		limit = 1
	}

	if batch, ok := s.source.(repository.BatchSource); ok {
		return s.fetchBatch(ctx, logger, batch, targets, limit, report)
	}

	var (
		mu    sync.Mutex
		infos = make(map[string]*entity.ChannelInfo, len(targets))
		g     errgroup.Group
	)
	g.SetLimit(s.cfg.Concurrency)

	for _, target := range targets {
		g.Go(func() error {
			info, err := s.fetchOne(ctx, target.channelID, limit)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				fetchErr := &repository.SourceFetchError{ChannelID: target.channelID, Err: err}
				logger.Warn("Skipping channel", zap.Error(fetchErr))
				report.fail(target.record.Identifier, fetchErr)
				return nil
			}
			infos[target.channelID] = info
			return nil
		})
	}
	_ = g.Wait()

	return infos
}

func (s *Scheduler) fetchOne(ctx context.Context, channelID string, limit int) (*entity.ChannelInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.FetchTimeout)
	defer cancel()

	if limit == 1 {
		item, err := s.source.FetchLatest(ctx, channelID)
		if err != nil {
			return nil, err
		}
		info := &entity.ChannelInfo{ID: channelID}
		if item != nil {
			info.Items = []*entity.PolledItem{item}
		}
		return info, nil
	}
	return s.source.FetchRecent(ctx, channelID, limit)
}

func (s *Scheduler) fetchBatch(ctx context.Context, logger *zap.Logger, batch repository.BatchSource, targets []pollTarget, limit int, report *CycleReport) map[string]*entity.ChannelInfo {
	ids := make([]string, len(targets))
	for i, target := range targets {
		ids[i] = target.channelID
	}

	chunks := (len(ids) + batchChunkSize - 1) / batchChunkSize
	fetchCtx, cancel := context.WithTimeout(ctx, time.Duration(chunks)*s.cfg.FetchTimeout)
	defer cancel()

	infos, err := batch.FetchBatch(fetchCtx, ids, limit)
	if err != nil {
		logger.Error("Batch fetch failed", zap.Int("channels", len(ids)), zap.Error(err))
		infos = nil
	}

	for _, target := range targets {
		if _, ok := infos[target.channelID]; ok {
			continue
		}
		cause := err
		if cause == nil {
			cause = errors.New("channel missing from batch response")
		}
		report.fail(target.record.Identifier, &repository.SourceFetchError{ChannelID: target.channelID, Err: cause})
	}
	return infos
}

func (s *Scheduler) process(ctx context.Context, logger *zap.Logger, target pollTarget, info *entity.ChannelInfo, report *CycleReport) {
	result, err := s.tracker.Reconcile(ctx, target.channelID, info.Items)
	if err != nil {
		logger.Error("Failed to reconcile channel", zap.String("channel_id", target.channelID), zap.Error(err))
		report.fail(target.record.Identifier, err)
		return
	}

	report.Checked++
	switch {
	case result.Skipped:
		report.Skipped++
		return
	case result.FirstObservation:
		report.Seeded++
		return
	case len(result.NewItems) == 0:
		return
	}

	report.NewItems += len(result.NewItems)
	if s.dispatcher.Dispatch(ctx, channelTitle(target, info), result.NewItems) {
		report.Notified++
	}
}

// channelTitle prefers the source title, then the configured label.
func channelTitle(target pollTarget, info *entity.ChannelInfo) string {
	if info.Title != "" {
		return info.Title
	}
	if target.record.Identifier != "" {
		return target.record.Identifier
	}
	return target.channelID
}
