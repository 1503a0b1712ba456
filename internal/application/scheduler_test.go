package application

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"channelwatch/internal/domain/entity"
	"channelwatch/internal/domain/repository"
)

type schedulerFixture struct {
	source    *mockSource
	channels  *mockChannelRepository
	state     *mockKVStore
	lookup    *mockKVStore
	notifier  *mockNotifier
	scheduler *Scheduler
}

func newSchedulerFixture(t *testing.T, mode entity.PollMode, cfg SchedulerConfig, source repository.ContentSource, pairs ...string) *schedulerFixture {
	t.Helper()

	f := &schedulerFixture{
		channels: newMockChannelRepository(pairs...),
		state:    newMockKVStore(),
		lookup:   newMockKVStore(),
		notifier: newMockNotifier(),
	}
	switch s := source.(type) {
	case *mockSource:
		f.source = s
	case *mockBatchSource:
		f.source = s.mockSource
	}

	logger := zap.NewNop()
	f.scheduler = NewScheduler(
		cfg,
		f.channels,
		source,
		NewResolver(source, f.lookup, logger),
		NewStateTracker(f.state, mode, logger),
		NewDispatcher(f.notifier, nil, logger),
		logger,
	)
	return f
}

func TestScheduler_RunCycle_SeedThenNotify(t *testing.T) {
	ctx := context.Background()
	source := newMockSource()
	source.setItems("UC1", "Channel One", "v3", "v2", "v1")
	f := newSchedulerFixture(t, entity.PollModeFullList, SchedulerConfig{}, source, "UC1", "UC1")

	report, err := f.scheduler.RunCycle(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Seeded != 1 || report.NewItems != 0 {
		t.Errorf("expected seeding cycle, got %+v", report)
	}
	if f.notifier.callCount() != 0 {
		t.Error("expected no notification on first observation")
	}

	source.setItems("UC1", "Channel One", "v5", "v4", "v3", "v2")

	report, err = f.scheduler.RunCycle(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.NewItems != 2 || report.Notified != 1 {
		t.Errorf("expected 2 new items in 1 notification, got %+v", report)
	}
	if f.notifier.callCount() != 1 {
		t.Fatalf("expected 1 notification, got %d", f.notifier.callCount())
	}
	call := f.notifier.calls[0]
	if call.channel != "Channel One" || !call.batch {
		t.Errorf("unexpected notification: %+v", call)
	}
	if got := f.state.ids("UC1"); !reflect.DeepEqual(got, []string{"v5", "v4", "v3", "v2", "v1"}) {
		t.Errorf("unexpected state: %v", got)
	}
	if f.scheduler.LastReport() != report {
		t.Error("expected LastReport to return the latest cycle")
	}
}

func TestScheduler_RunCycle_PartialFailureIsolation(t *testing.T) {
	ctx := context.Background()
	source := newMockSource()
	source.setItems("UC1", "One", "a2", "a1")
	source.setItems("UC2", "Two", "b2", "b1")
	source.fetchErr["UC2"] = errors.New("status 503")

	f := newSchedulerFixture(t, entity.PollModeFullList, SchedulerConfig{}, source, "UC1", "", "UC2", "")
	_ = f.state.Set(ctx, "UC1", []string{"a1"})
	_ = f.state.Set(ctx, "UC2", []string{"b1"})

	report, err := f.scheduler.RunCycle(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if report.Failed != 1 || report.Checked != 1 {
		t.Errorf("expected 1 failed and 1 checked channel, got %+v", report)
	}
	if len(report.Failures) != 1 || report.Failures[0].Channel != "UC2" {
		t.Errorf("unexpected failures: %+v", report.Failures)
	}
	if f.notifier.callCount() != 1 {
		t.Errorf("expected healthy channel to be notified, got %d calls", f.notifier.callCount())
	}
	if got := f.state.ids("UC2"); !reflect.DeepEqual(got, []string{"b1"}) {
		t.Errorf("expected failed channel state untouched, got %v", got)
	}
}

func TestScheduler_RunCycle_ResolutionIndependentPerChannel(t *testing.T) {
	ctx := context.Background()
	source := newMockSource()
	source.resolved["@good"] = "UCgood"
	source.setItems("UCgood", "Good", "g1")
	source.setItems("UCplain", "Plain", "p1")

	f := newSchedulerFixture(t, entity.PollModeFullList, SchedulerConfig{}, source,
		"@good", "", "@missing", "", "UCplain", "")

	report, err := f.scheduler.RunCycle(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if report.Seeded != 2 {
		t.Errorf("expected 2 channels seeded, got %+v", report)
	}
	if report.Failed != 1 || report.Failures[0].Channel != "@missing" {
		t.Errorf("expected only @missing to fail, got %+v", report.Failures)
	}
	if got := f.channels.resolvedID("@good"); got != "UCgood" {
		t.Errorf("expected resolved id to be persisted, got %q", got)
	}
	if got := f.channels.resolvedID("@missing"); got != "" {
		t.Errorf("expected unresolved channel to stay empty, got %q", got)
	}
}

func TestScheduler_RunCycle_MissingCredential(t *testing.T) {
	source := newMockSource()
	source.validateErr = fmt.Errorf("YOUTUBE_API_KEY: %w", repository.ErrMissingCredential)
	f := newSchedulerFixture(t, entity.PollModeFullList, SchedulerConfig{}, source, "UC1", "")

	_, err := f.scheduler.RunCycle(context.Background())
	if !errors.Is(err, repository.ErrMissingCredential) {
		t.Errorf("expected ErrMissingCredential, got %v", err)
	}
	if source.fetches != 0 {
		t.Error("expected no fetches without credentials")
	}
}

func TestScheduler_RunCycle_LatestOnlyMode(t *testing.T) {
	ctx := context.Background()
	source := newMockSource()
	source.setItems("UC1", "One", "v4", "v3")

	f := newSchedulerFixture(t, entity.PollModeLatestOnly, SchedulerConfig{}, source, "UC1", "")
	_ = f.state.Set(ctx, "UC1", []string{"v3"})

	report, err := f.scheduler.RunCycle(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.NewItems != 1 {
		t.Errorf("expected 1 new item, got %+v", report)
	}
	if f.notifier.callCount() != 1 || f.notifier.calls[0].batch {
		t.Errorf("expected a single notification, got %+v", f.notifier.calls)
	}
	if got := f.state.ids("UC1"); !reflect.DeepEqual(got, []string{"v4", "v3"}) {
		t.Errorf("unexpected state: %v", got)
	}
}

func TestScheduler_RunCycle_BatchSource(t *testing.T) {
	ctx := context.Background()
	inner := newMockSource()
	inner.setItems("UC1", "One", "a2", "a1")
	inner.setItems("UC2", "Two", "b1")
	source := &mockBatchSource{mockSource: inner, omit: map[string]bool{"UC2": true}}

	f := newSchedulerFixture(t, entity.PollModeFullList, SchedulerConfig{}, source, "UC1", "", "UC2", "")
	_ = f.state.Set(ctx, "UC1", []string{"a1"})

	report, err := f.scheduler.RunCycle(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if source.batchCalls != 1 {
		t.Errorf("expected 1 batch call, got %d", source.batchCalls)
	}
	if report.Notified != 1 || report.Failed != 1 {
		t.Errorf("expected 1 notified and 1 failed channel, got %+v", report)
	}

	source.batchErr = errors.New("quota exceeded")
	report, _ = f.scheduler.RunCycle(ctx)
	if report.Failed != 2 {
		t.Errorf("expected both channels to fail on batch error, got %+v", report)
	}
}

func TestScheduler_RunCycle_DispatchFailureKeepsState(t *testing.T) {
	ctx := context.Background()
	source := newMockSource()
	source.setItems("UC1", "One", "v2", "v1")

	f := newSchedulerFixture(t, entity.PollModeFullList, SchedulerConfig{}, source, "UC1", "")
	_ = f.state.Set(ctx, "UC1", []string{"v1"})
	f.notifier.err = errors.New("smtp down")

	report, _ := f.scheduler.RunCycle(ctx)
	if report.Notified != 0 || report.NewItems != 1 {
		t.Errorf("unexpected report: %+v", report)
	}

	f.notifier.err = nil
	report, _ = f.scheduler.RunCycle(ctx)
	if report.NewItems != 0 {
		t.Error("expected items not to be re-notified after a failed dispatch")
	}
}

func TestScheduler_RunCycle_FetchTimeout(t *testing.T) {
	source := newMockSource()
	source.block = make(chan struct{})
	f := newSchedulerFixture(t, entity.PollModeFullList, SchedulerConfig{FetchTimeout: 20 * time.Millisecond}, source, "UC1", "")

	report, err := f.scheduler.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Failed != 1 {
		t.Errorf("expected the blocked fetch to time out, got %+v", report)
	}
	if len(report.Failures) != 1 || !strings.Contains(report.Failures[0].Reason, context.DeadlineExceeded.Error()) {
		t.Errorf("expected a deadline failure, got %+v", report.Failures)
	}
}

func TestScheduler_RunCycle_BatchFetchTimeout(t *testing.T) {
	inner := newMockSource()
	inner.block = make(chan struct{})
	defer close(inner.block)
	source := &mockBatchSource{mockSource: inner}
	f := newSchedulerFixture(t, entity.PollModeFullList, SchedulerConfig{FetchTimeout: 20 * time.Millisecond}, source, "UC1", "", "UC2", "")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	start := time.Now()
	report, err := f.scheduler.RunCycle(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("expected the batch fetch to be cut off by FetchTimeout, cycle took %v", elapsed)
	}
	if report.Failed != 2 {
		t.Errorf("expected both channels to fail, got %+v", report)
	}
	for _, failure := range report.Failures {
		if !strings.Contains(failure.Reason, context.DeadlineExceeded.Error()) {
			t.Errorf("expected a deadline failure, got %q", failure.Reason)
		}
	}
}

func TestScheduler_StartStop(t *testing.T) {
	source := newMockSource()
	source.setItems("UC1", "One", "v1")
	f := newSchedulerFixture(t, entity.PollModeFullList, SchedulerConfig{Interval: time.Hour}, source, "UC1", "")

	ctx := context.Background()
	f.scheduler.Start(ctx)
	f.scheduler.Start(ctx)

	if !f.scheduler.Running() {
		t.Fatal("expected scheduler to be running")
	}

	deadline := time.Now().Add(2 * time.Second)
	for f.scheduler.LastReport() == nil && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if f.scheduler.LastReport() == nil {
		t.Fatal("expected an immediate first cycle")
	}

	if err := f.scheduler.Stop(); err != nil {
		t.Fatalf("unexpected stop error: %v", err)
	}
	if f.scheduler.Running() {
		t.Error("expected scheduler to be stopped")
	}
	if err := f.scheduler.Stop(); err != nil {
		t.Errorf("expected second stop to be a no-op, got %v", err)
	}
}

func TestScheduler_StopsOnMissingCredential(t *testing.T) {
	source := newMockSource()
	source.validateErr = repository.ErrMissingCredential
	f := newSchedulerFixture(t, entity.PollModeFullList, SchedulerConfig{Interval: time.Millisecond}, source, "UC1", "")

	f.scheduler.Start(context.Background())

	deadline := time.Now().Add(2 * time.Second)
	for f.scheduler.Running() && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if f.scheduler.Running() {
		t.Error("expected the loop to stop on a missing credential")
	}
	if err := f.scheduler.Stop(); err != nil {
		t.Errorf("unexpected stop error: %v", err)
	}
}

func TestScheduler_StopTimeout(t *testing.T) {
	source := newMockSource()
	source.block = make(chan struct{})
	defer close(source.block)

	f := newSchedulerFixture(t, entity.PollModeFullList,
		SchedulerConfig{FetchTimeout: time.Minute, StopTimeout: 10 * time.Millisecond},
		source, "UC1", "")

	// Fetches ignore cancellation for this test by waiting on block first.
	f.scheduler.source = &uncancellableSource{mockSource: source}
	f.scheduler.Start(context.Background())
	time.Sleep(20 * time.Millisecond)

	if err := f.scheduler.Stop(); !errors.Is(err, repository.ErrStopTimeout) {
		t.Errorf("expected ErrStopTimeout, got %v", err)
	}
	if !f.scheduler.Running() {
		t.Error("expected a loop that missed the stop deadline to still report running")
	}

	f.scheduler.Start(context.Background())
	if f.scheduler.done == nil {
		t.Fatal("expected the draining loop to stay registered")
	}
}

func TestScheduler_StartAfterDrainedStop(t *testing.T) {
	source := newMockSource()
	source.block = make(chan struct{})

	f := newSchedulerFixture(t, entity.PollModeFullList,
		SchedulerConfig{Interval: time.Hour, FetchTimeout: time.Minute, StopTimeout: 10 * time.Millisecond},
		source, "UC1", "")
	f.scheduler.source = &uncancellableSource{mockSource: source}

	f.scheduler.Start(context.Background())
	time.Sleep(20 * time.Millisecond)
	first := f.scheduler.done

	if err := f.scheduler.Stop(); !errors.Is(err, repository.ErrStopTimeout) {
		t.Fatalf("expected ErrStopTimeout, got %v", err)
	}
	f.scheduler.Start(context.Background())
	if f.scheduler.done != first {
		t.Fatal("expected Start to refuse while the old loop drains")
	}

	close(source.block)
	deadline := time.Now().Add(2 * time.Second)
	for f.scheduler.Running() && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if err := f.scheduler.Stop(); err != nil {
		t.Fatalf("expected the drained loop to stop cleanly, got %v", err)
	}
	if f.scheduler.Running() {
		t.Error("expected scheduler to be stopped")
	}

	f.scheduler.Start(context.Background())
	if !f.scheduler.Running() {
		t.Error("expected a fresh loop after the old one exited")
	}
	_ = f.scheduler.Stop()
}

type uncancellableSource struct {
	*mockSource
}

func (u *uncancellableSource) FetchRecent(ctx context.Context, channelID string, n int) (*entity.ChannelInfo, error) {
	<-u.block
	return &entity.ChannelInfo{ID: channelID}, nil
}
