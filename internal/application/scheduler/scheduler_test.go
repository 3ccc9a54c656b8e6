package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/hotel-inventory-engine/internal/domain"
	"github.com/jhoicas/hotel-inventory-engine/internal/infrastructure/memory"
	"github.com/jhoicas/hotel-inventory-engine/pkg/logger"
)

func newScheduler(cfg Config) *Scheduler {
	return New(memory.NewKeyedLocker(), nil, cfg, logger.Nop())
}

func TestRunNow_CoalescesConcurrentCalls(t *testing.T) {
	s := newScheduler(Config{})
	started := make(chan struct{}, 4)
	release := make(chan struct{})
	var runs int32
	s.Register("evaluate", func(ctx context.Context, tenantID, arg string) error {
		atomic.AddInt32(&runs, 1)
		started <- struct{}{}
		<-release
		return nil
	}, NoDaily(0))

	done := make(chan error, 1)
	go func() { done <- s.RunNow(context.Background(), "h1", "evaluate", "") }()
	<-started

	// llegadas tardías: se colapsan en un solo seguimiento
	for i := 0; i < 3; i++ {
		require.NoError(t, s.RunNow(context.Background(), "h1", "evaluate", ""))
	}
	release <- struct{}{}
	<-started
	release <- struct{}{}
	require.NoError(t, <-done)

	assert.Equal(t, int32(2), atomic.LoadInt32(&runs))
	st := s.Stats("evaluate")
	assert.Equal(t, 2, st.Runs)
	assert.Equal(t, 3, st.Coalesced)
}

func TestRunNow_DistinctKeysRunIndependently(t *testing.T) {
	s := newScheduler(Config{})
	var seen []string
	s.Register("evaluate-item", func(ctx context.Context, tenantID, arg string) error {
		seen = append(seen, tenantID+"/"+arg)
		return nil
	}, NoDaily(0))

	require.NoError(t, s.RunNow(context.Background(), "h1", "evaluate-item", "towel"))
	require.NoError(t, s.RunNow(context.Background(), "h1", "evaluate-item", "soap"))
	require.NoError(t, s.RunNow(context.Background(), "h2", "evaluate-item", "towel"))
	assert.Equal(t, []string{"h1/towel", "h1/soap", "h2/towel"}, seen)
}

func TestRunNow_Errors(t *testing.T) {
	s := newScheduler(Config{})
	err := s.RunNow(context.Background(), "h1", "nope", "")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	boom := errors.New("boom")
	s.Register("snapshot", func(ctx context.Context, tenantID, arg string) error { return boom }, NoDaily(0))
	assert.ErrorIs(t, s.RunNow(context.Background(), "h1", "snapshot", ""), boom)

	s.Register("panics", func(ctx context.Context, tenantID, arg string) error { panic("x") }, NoDaily(0))
	assert.Error(t, s.RunNow(context.Background(), "h1", "panics", ""))
	assert.Equal(t, 1, s.Stats("panics").Failures)
}

func TestRunNow_SkipsWhenAnotherInstanceHoldsTheLock(t *testing.T) {
	locks := memory.NewKeyedLocker()
	s := New(locks, nil, Config{}, logger.Nop())
	var runs int32
	s.Register("snapshot", func(ctx context.Context, tenantID, arg string) error {
		atomic.AddInt32(&runs, 1)
		return nil
	}, NoDaily(0))

	unlock, err := locks.Lock(context.Background(), slotKey("h1", "snapshot", ""))
	require.NoError(t, err)
	require.NoError(t, s.RunNow(context.Background(), "h1", "snapshot", ""))
	unlock()

	assert.Zero(t, atomic.LoadInt32(&runs))
	assert.Equal(t, 1, s.Stats("snapshot").Skipped)
}

func TestRunNow_JobTimeout(t *testing.T) {
	s := newScheduler(Config{JobTimeout: 20 * time.Millisecond})
	s.Register("refold", func(ctx context.Context, tenantID, arg string) error {
		<-ctx.Done()
		return ctx.Err()
	}, NoDaily(0))
	assert.ErrorIs(t, s.RunNow(context.Background(), "h1", "refold", "towel"), context.DeadlineExceeded)
}

func TestStart_TriggerRunsOnWorkers(t *testing.T) {
	s := newScheduler(Config{Workers: 2})
	ran := make(chan string, 2)
	s.Register("evaluate-item", func(ctx context.Context, tenantID, arg string) error {
		ran <- arg
		return nil
	}, NoDaily(0))

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan error, 1)
	go func() { stopped <- s.Start(ctx) }()

	assert.True(t, s.Trigger("h1", "evaluate-item", "towel"))
	select {
	case arg := <-ran:
		assert.Equal(t, "towel", arg)
	case <-time.After(2 * time.Second):
		t.Fatal("el trabajo encolado no se ejecutó")
	}
	cancel()
	require.NoError(t, <-stopped)
}

func TestStart_TicksFanOutAcrossTenants(t *testing.T) {
	s := newScheduler(Config{Tenants: []string{"h1", "h2"}})
	seen := make(chan string, 16)
	s.Register("evaluate", func(ctx context.Context, tenantID, arg string) error {
		seen <- tenantID
		return nil
	}, NoDaily(10*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = s.Start(ctx) }()

	got := map[string]bool{}
	deadline := time.After(2 * time.Second)
	for len(got) < 2 {
		select {
		case tenant := <-seen:
			got[tenant] = true
		case <-deadline:
			t.Fatalf("tenants ejecutados: %v", got)
		}
	}
}

func TestNextDaily(t *testing.T) {
	before := time.Date(2026, 10, 15, 2, 30, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 10, 15, 3, 0, 0, 0, time.UTC), NextDaily(before, 3))

	exact := time.Date(2026, 10, 15, 3, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 10, 16, 3, 0, 0, 0, time.UTC), NextDaily(exact, 3))

	bogota := time.Date(2026, 10, 14, 23, 0, 0, 0, time.FixedZone("COT", -5*3600))
	assert.Equal(t, time.Date(2026, 10, 15, 7, 0, 0, 0, time.UTC), NextDaily(bogota, 7))
}
