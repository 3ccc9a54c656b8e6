package notification

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/hotel-inventory-engine/internal/application/ports"
	"github.com/jhoicas/hotel-inventory-engine/internal/domain"
	"github.com/jhoicas/hotel-inventory-engine/internal/domain/entity"
	"github.com/jhoicas/hotel-inventory-engine/internal/infrastructure/memory"
	"github.com/jhoicas/hotel-inventory-engine/pkg/clock"
	"github.com/jhoicas/hotel-inventory-engine/pkg/logger"
)

var t0 = time.Date(2026, 10, 15, 8, 0, 0, 0, time.UTC)

type fakeTransport struct {
	mu    sync.Mutex
	multi bool
	sent  []ports.Message
	errs  []error
}

func (f *fakeTransport) Send(_ context.Context, msg ports.Message) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		if err != nil {
			return "", err
		}
	}
	f.sent = append(f.sent, msg)
	return fmt.Sprintf("msg-%d", len(f.sent)), nil
}

func (f *fakeTransport) MultiRecipient() bool { return f.multi }

func (f *fakeTransport) calls() []ports.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]ports.Message(nil), f.sent...)
}

type harness struct {
	d     *Dispatcher
	store *memory.Store
	tr    *fakeTransport
	clk   *clock.Fake
}

func newHarness(t *testing.T, cfg Config, multi bool) *harness {
	t.Helper()
	store := memory.NewStore()
	clk := clock.NewFake(t0)
	tr := &fakeTransport{multi: multi}
	if cfg.CoalesceWindow == 0 {
		cfg.CoalesceWindow = 5 * time.Second
	}
	if cfg.FanInWindow == 0 {
		cfg.FanInWindow = cfg.CoalesceWindow
	}
	d := NewDispatcher(Deps{Tasks: store.Tasks, Alerts: store.Alerts, Transport: tr, Clock: clk}, cfg, logger.Nop())
	for _, id := range []string{"a1", "a2"} {
		require.NoError(t, store.Alerts.Create(context.Background(), &entity.Alert{
			TenantID: "h1", AlertID: id, ItemID: "item-" + id, State: entity.AlertActive, Version: 1, CreatedAt: t0,
		}))
	}
	return &harness{d: d, store: store, tr: tr, clk: clk}
}

func request(alertID string, stage entity.NotificationStage, recipients ...string) entity.NotificationRequest {
	req := entity.NotificationRequest{
		TenantID: "h1", AlertID: alertID, ItemID: "item-" + alertID, Stage: stage, Day: "2026-10-15",
		Subject: string(stage) + " " + alertID, Body: "cuerpo " + alertID,
	}
	for _, r := range recipients {
		req.Recipients = append(req.Recipients, entity.Recipient{ID: r, Address: r + "@hotel.test"})
	}
	return req
}

func (h *harness) task(t *testing.T, alertID string, stage entity.NotificationStage, recipient string) *entity.NotificationTask {
	t.Helper()
	task, err := h.store.Tasks.Get(context.Background(), entity.TaskKey(alertID, stage, "2026-10-15", recipient))
	require.NoError(t, err)
	require.NotNil(t, task)
	return task
}

func TestSubmit_DeliversOnceAfterCoalesceWindow(t *testing.T) {
	h := newHarness(t, Config{}, false)
	ctx := context.Background()
	require.NoError(t, h.d.Submit(ctx, request("a1", entity.StageInitial, "ama")))
	require.NoError(t, h.d.Submit(ctx, request("a1", entity.StageInitial, "ama")))

	rep, err := h.d.RunOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, rep.Calls)

	h.clk.Advance(5 * time.Second)
	rep, err = h.d.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Calls)
	assert.Equal(t, 1, rep.Delivered)

	rep, err = h.d.RunOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, rep.Calls)

	task := h.task(t, "a1", entity.StageInitial, "ama")
	assert.Equal(t, entity.TaskDelivered, task.State)
	assert.Equal(t, "msg-1", task.TransportMessageID)
	assert.Equal(t, 1, task.Attempts)

	a, err := h.store.Alerts.Get(ctx, "h1", "a1")
	require.NoError(t, err)
	require.Len(t, a.NotificationLog, 1)
	assert.Equal(t, "ama", a.NotificationLog[0].Recipient)
	assert.Equal(t, entity.StageInitial, a.NotificationLog[0].Stage)

	// re-enviar la misma etapa tras la entrega no crea otra tarea
	require.NoError(t, h.d.Submit(ctx, request("a1", entity.StageInitial, "ama")))
	h.clk.Advance(time.Minute)
	rep, err = h.d.RunOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, rep.Calls)
	assert.Len(t, h.tr.calls(), 1)
}

func TestRunOnce_RetryBackoffThenFailed(t *testing.T) {
	h := newHarness(t, Config{}, false)
	ctx := context.Background()
	retryable := fmt.Errorf("451 buzón ocupado: %w", domain.ErrTransportRetryable)
	h.tr.errs = []error{retryable, retryable, retryable, retryable, retryable, retryable}

	require.NoError(t, h.d.Submit(ctx, request("a1", entity.StageInitial, "ama")))
	h.clk.Advance(5 * time.Second)

	delays := []time.Duration{30 * time.Second, 60 * time.Second, 120 * time.Second, 240 * time.Second, 480 * time.Second}
	for i, delay := range delays {
		rep, err := h.d.RunOnce(ctx)
		require.NoError(t, err)
		require.Equal(t, 1, rep.Retrying, "intento %d", i+1)
		task := h.task(t, "a1", entity.StageInitial, "ama")
		assert.Equal(t, entity.TaskRetrying, task.State)
		assert.Equal(t, h.clk.Now().Add(delay), task.NextAttemptAt)
		h.clk.Advance(delay)
	}

	rep, err := h.d.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Failed)

	task := h.task(t, "a1", entity.StageInitial, "ama")
	assert.Equal(t, entity.TaskFailed, task.State)
	assert.Equal(t, 6, task.Attempts)
	assert.Contains(t, task.LastError, "buzón ocupado")

	failed, err := h.d.FailedTasks(ctx, "h1", 10)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, task.Key, failed[0].Key)
}

func TestRunOnce_TerminalErrorFailsImmediately(t *testing.T) {
	h := newHarness(t, Config{}, false)
	ctx := context.Background()
	h.tr.errs = []error{fmt.Errorf("550 no existe: %w", domain.ErrTransportTerminal)}

	require.NoError(t, h.d.Submit(ctx, request("a1", entity.StageSupplier, "textiles")))
	h.clk.Advance(5 * time.Second)
	rep, err := h.d.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Failed)
	assert.Equal(t, entity.TaskFailed, h.task(t, "a1", entity.StageSupplier, "textiles").State)
}

func TestRunOnce_EscalationWaitsForInitial(t *testing.T) {
	h := newHarness(t, Config{BackoffBase: 10 * time.Minute, FanInWindow: time.Minute}, false)
	ctx := context.Background()
	h.tr.errs = []error{errors.New("conexión rechazada")}

	require.NoError(t, h.d.Submit(ctx, request("a1", entity.StageInitial, "ama")))
	h.clk.Advance(time.Minute)
	rep, err := h.d.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Retrying)

	require.NoError(t, h.d.Submit(ctx, request("a1", entity.StageEscalation, "ama")))
	h.clk.Advance(5 * time.Second)
	rep, err = h.d.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Held)
	assert.Zero(t, rep.Calls)
	assert.Equal(t, entity.TaskPending, h.task(t, "a1", entity.StageEscalation, "ama").State)

	// la INITIAL vence y sale primero; la ESCALATION va en el mismo envío
	h.clk.Advance(10 * time.Minute)
	rep, err = h.d.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, rep.Delivered)

	calls := h.tr.calls()
	require.Len(t, calls, 1)
	assert.Contains(t, calls[0].Body, "INITIAL a1\n\ncuerpo a1\n\n----\n\nESCALATION a1")
}

func TestRunOnce_EscalationHeldWhenInitialFailsInSameRound(t *testing.T) {
	h := newHarness(t, Config{BackoffBase: 10 * time.Minute, FanInWindow: time.Second}, false)
	ctx := context.Background()

	require.NoError(t, h.d.Submit(ctx, request("a1", entity.StageInitial, "ama")))
	h.clk.Advance(2 * time.Second)
	require.NoError(t, h.d.Submit(ctx, request("a1", entity.StageEscalation, "ama")))
	h.clk.Advance(5 * time.Second)

	h.tr.errs = []error{errors.New("timeout")}
	rep, err := h.d.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Calls)
	assert.Equal(t, 1, rep.Retrying)
	assert.Equal(t, 1, rep.Held)
	assert.Equal(t, entity.TaskPending, h.task(t, "a1", entity.StageEscalation, "ama").State)
}

func TestRunOnce_FanInAcrossPolls(t *testing.T) {
	h := newHarness(t, Config{FanInWindow: 30 * time.Second}, false)
	ctx := context.Background()
	require.NoError(t, h.d.Submit(ctx, request("a1", entity.StageInitial, "ama")))

	// el despachador pasa cada segundo; la segunda alerta llega a los 10 s
	for i := 1; i <= 40; i++ {
		h.clk.Advance(time.Second)
		if i == 10 {
			require.NoError(t, h.d.Submit(ctx, request("a2", entity.StageInitial, "ama")))
		}
		_, err := h.d.RunOnce(ctx)
		require.NoError(t, err)
		if i < 30 {
			require.Empty(t, h.tr.calls(), "segundo %d", i)
		}
	}

	calls := h.tr.calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "Resumen de alertas de inventario (2)", calls[0].Subject)
	assert.Len(t, calls[0].Recipients, 1)
	assert.Equal(t, entity.TaskDelivered, h.task(t, "a1", entity.StageInitial, "ama").State)
	assert.Equal(t, entity.TaskDelivered, h.task(t, "a2", entity.StageInitial, "ama").State)
}

func TestRunOnce_RetryDoesNotWaitForWindow(t *testing.T) {
	h := newHarness(t, Config{FanInWindow: 30 * time.Second, BackoffBase: 10 * time.Second}, false)
	ctx := context.Background()
	h.tr.errs = []error{errors.New("timeout")}

	require.NoError(t, h.d.Submit(ctx, request("a1", entity.StageInitial, "ama")))
	h.clk.Advance(30 * time.Second)
	rep, err := h.d.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Retrying)

	// a2 abre una ventana nueva; el reintento de a1 sale sin esperarla
	require.NoError(t, h.d.Submit(ctx, request("a2", entity.StageInitial, "ama")))
	h.clk.Advance(10 * time.Second)
	rep, err = h.d.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Delivered)
	assert.Equal(t, 1, rep.Held)
	assert.Equal(t, entity.TaskPending, h.task(t, "a2", entity.StageInitial, "ama").State)
}

func TestPlan_MultiRecipientMerge(t *testing.T) {
	for _, multi := range []bool{true, false} {
		t.Run(fmt.Sprintf("multi=%v", multi), func(t *testing.T) {
			h := newHarness(t, Config{}, multi)
			ctx := context.Background()
			require.NoError(t, h.d.Submit(ctx, request("a1", entity.StageInitial, "ama", "gerente")))
			h.clk.Advance(5 * time.Second)

			rep, err := h.d.RunOnce(ctx)
			require.NoError(t, err)
			assert.Equal(t, 2, rep.Delivered)
			if multi {
				require.Len(t, h.tr.calls(), 1)
				assert.Len(t, h.tr.calls()[0].Recipients, 2)
				assert.Equal(t, "INITIAL a1", h.tr.calls()[0].Subject)
			} else {
				assert.Len(t, h.tr.calls(), 2)
			}
		})
	}
}

func TestBatchMessage_IdempotencyKeyIsStable(t *testing.T) {
	a := &entity.NotificationTask{Key: "k1", AlertID: "a1", Stage: entity.StageInitial, Subject: "s", Body: "b"}
	b := &entity.NotificationTask{Key: "k2", AlertID: "a2", Stage: entity.StageInitial, Subject: "s2", Body: "b2"}
	m1 := (&batch{tasks: []*entity.NotificationTask{a, b}}).message()
	m2 := (&batch{tasks: []*entity.NotificationTask{b, a}}).message()
	assert.Equal(t, m1.IdempotencyKey, m2.IdempotencyKey)
	m3 := (&batch{tasks: []*entity.NotificationTask{a}}).message()
	assert.NotEqual(t, m1.IdempotencyKey, m3.IdempotencyKey)
}

func TestRunOnce_StaleSendingBecomesFailed(t *testing.T) {
	h := newHarness(t, Config{SendTimeout: time.Second, StaleAfter: time.Minute}, false)
	ctx := context.Background()
	require.NoError(t, h.d.Submit(ctx, request("a1", entity.StageInitial, "ama")))

	task := h.task(t, "a1", entity.StageInitial, "ama")
	sending := task.Clone()
	sending.State = entity.TaskSending
	sending.Attempts = 1
	require.NoError(t, h.store.Tasks.Update(ctx, sending, task.Version))

	h.clk.Advance(2 * time.Minute)
	rep, err := h.d.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Reaped)
	assert.Zero(t, rep.Calls)
	assert.Equal(t, entity.TaskFailed, h.task(t, "a1", entity.StageInitial, "ama").State)
}

type flakyTasks struct {
	*memory.TaskStore
	down bool
	// failInitial cantidad de reservas de INITIAL que fallan antes de recuperarse
	failInitial int
}

func (f *flakyTasks) Reserve(ctx context.Context, t *entity.NotificationTask) (bool, error) {
	if f.down {
		return false, errors.New("almacén no disponible")
	}
	if t.Stage == entity.StageInitial && f.failInitial > 0 {
		f.failInitial--
		return false, errors.New("almacén no disponible")
	}
	return f.TaskStore.Reserve(ctx, t)
}

func TestSubmit_DefersWhenStoreIsDown(t *testing.T) {
	store := memory.NewStore()
	clk := clock.NewFake(t0)
	tasks := &flakyTasks{TaskStore: store.Tasks, down: true}
	tr := &fakeTransport{}
	d := NewDispatcher(Deps{Tasks: tasks, Alerts: store.Alerts, Transport: tr, Clock: clk}, Config{}, logger.Nop())
	ctx := context.Background()

	require.NoError(t, d.Submit(ctx, request("a1", entity.StageInitial, "ama")))
	assert.Equal(t, 1, d.Deferred())

	tasks.down = false
	clk.Advance(30 * time.Second)
	_, err := d.RunOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, d.Deferred())
	assert.Len(t, tr.calls(), 1)
}

func TestRunOnce_EscalationWaitsForDeferredInitial(t *testing.T) {
	store := memory.NewStore()
	clk := clock.NewFake(t0)
	tasks := &flakyTasks{TaskStore: store.Tasks, failInitial: 2}
	tr := &fakeTransport{}
	cfg := Config{CoalesceWindow: 5 * time.Second, FanInWindow: 5 * time.Second}
	d := NewDispatcher(Deps{Tasks: tasks, Alerts: store.Alerts, Transport: tr, Clock: clk}, cfg, logger.Nop())
	ctx := context.Background()
	require.NoError(t, store.Alerts.Create(ctx, &entity.Alert{
		TenantID: "h1", AlertID: "a1", ItemID: "item-a1", State: entity.AlertActive, Version: 1, CreatedAt: t0,
	}))

	require.NoError(t, d.Submit(ctx, request("a1", entity.StageInitial, "ama")))
	require.Equal(t, 1, d.Deferred())
	clk.Advance(10 * time.Second)
	require.NoError(t, d.Submit(ctx, request("a1", entity.StageEscalation, "ama")))
	clk.Advance(5 * time.Second)

	// la INITIAL sigue sin poder reservarse: la ESCALATION espera
	rep, err := d.RunOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, rep.Calls)
	assert.Equal(t, 1, rep.Held)
	assert.Equal(t, 1, d.Deferred())

	rep, err = d.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, rep.Delivered)
	calls := tr.calls()
	require.Len(t, calls, 2)
	assert.Equal(t, "INITIAL a1", calls[0].Subject)
	assert.Equal(t, "ESCALATION a1", calls[1].Subject)
}

func TestRunOnce_EscalationWithoutInitial(t *testing.T) {
	h := newHarness(t, Config{InitialWait: time.Minute}, false)
	ctx := context.Background()

	// gerente se sumó después del aviso inicial: no lo espera
	require.NoError(t, h.d.Submit(ctx, request("a1", entity.StageInitial, "ama")))
	h.clk.Advance(5 * time.Second)
	_, err := h.d.RunOnce(ctx)
	require.NoError(t, err)
	require.NoError(t, h.d.Submit(ctx, request("a1", entity.StageEscalation, "ama", "gerente")))
	h.clk.Advance(5 * time.Second)
	rep, err := h.d.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, rep.Delivered)
	assert.Zero(t, rep.Held)

	// a2 nunca tuvo aviso inicial: la ESCALATION espera InitialWait
	require.NoError(t, h.d.Submit(ctx, request("a2", entity.StageEscalation, "ama")))
	h.clk.Advance(5 * time.Second)
	rep, err = h.d.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Held)
	assert.Zero(t, rep.Calls)

	h.clk.Advance(time.Minute)
	rep, err = h.d.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Delivered)
	assert.Equal(t, entity.TaskDelivered, h.task(t, "a2", entity.StageEscalation, "ama").State)
}

func TestBackoff(t *testing.T) {
	d := NewDispatcher(Deps{}, Config{BackoffBase: 30 * time.Second, BackoffCap: time.Hour}, logger.Nop())
	assert.Equal(t, 30*time.Second, d.backoff(1))
	assert.Equal(t, 4*time.Minute, d.backoff(4))
	assert.Equal(t, time.Hour, d.backoff(8))
	assert.Equal(t, time.Hour, d.backoff(40))
}
