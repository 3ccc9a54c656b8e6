package http

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/hotel-inventory-engine/internal/application/dto"
	"github.com/jhoicas/hotel-inventory-engine/internal/application/ledger"
	"github.com/jhoicas/hotel-inventory-engine/internal/domain/entity"
	"github.com/jhoicas/hotel-inventory-engine/internal/domain/repository"
	"github.com/jhoicas/hotel-inventory-engine/pkg/jwt"
)

// Operations tabla de operaciones del motor que expone el adaptador. La implementa *engine.Engine.
type Operations interface {
	tenantChecker

	Append(ctx context.Context, entry *entity.LedgerEntry) (*ledger.AppendResult, error)
	GetProjection(ctx context.Context, tenantID, itemID string) (*entity.StockProjection, error)
	History(ctx context.Context, tenantID, itemID string, from, to time.Time) ([]*entity.LedgerEntry, error)
	Refold(ctx context.Context, tenantID, itemID string) (*entity.StockProjection, error)
	SaveItem(ctx context.Context, item *entity.Item) error
	UpdatePolicy(ctx context.Context, tenantID, itemID string, p entity.ReorderPolicy, actorID string) (*entity.Item, error)

	ListAlerts(ctx context.Context, tenantID string, f repository.AlertFilter) ([]*entity.Alert, error)
	AckAlert(ctx context.Context, tenantID, alertID, actorID string) (*entity.Alert, error)
	ResolveAlert(ctx context.Context, tenantID, alertID, actorID string) (*entity.Alert, error)
	DismissAlert(ctx context.Context, tenantID, alertID, actorID, reason string) (*entity.Alert, error)
	Evaluate(ctx context.Context, tenantID string) error

	Snapshot(ctx context.Context, tenantID string, trigger entity.SnapshotTrigger) (*entity.Snapshot, error)
	LatestSnapshot(ctx context.Context, tenantID string) (*entity.Snapshot, error)
	ListSnapshots(ctx context.Context, tenantID string, from, to time.Time) ([]*entity.Snapshot, error)

	Forecast(ctx context.Context, tenantID, itemID string, horizonDays int, confidence float64) (*entity.Forecast, error)
	DetectAnomalies(ctx context.Context, tenantID string) ([]entity.Anomaly, error)
	FailedNotifications(ctx context.Context, tenantID string, limit int) ([]*entity.NotificationTask, error)
	Summary(ctx context.Context, tenantID string) (*dto.DashboardSummaryDTO, error)
}

// RouterDeps dependencias para el router.
type RouterDeps struct {
	Ops       Operations
	JWTSecret string
}

// Router registra las rutas de la API. Todas requieren Bearer Token de un hotel atendido.
func Router(app *fiber.App, deps RouterDeps) {
	app.Get("/health", func(c *fiber.Ctx) error { return c.JSON(fiber.Map{"status": "ok"}) })

	api := app.Group("/api", AuthMiddleware(deps.JWTSecret), RequireTenant(deps.Ops))
	managers := RequireRole(jwt.RoleAdmin, jwt.RoleInventoryManager)
	anyone := RequireRole(jwt.RoleAdmin, jwt.RoleInventoryManager, jwt.RoleStaff)

	inv := NewInventoryHandler(deps.Ops)
	items := api.Group("/items")
	items.Put("/:id", managers, inv.SaveItem)
	items.Put("/:id/policy", managers, inv.UpdatePolicy)
	items.Post("/:id/entries", anyone, inv.Append)
	items.Get("/:id/entries", anyone, inv.History)
	items.Get("/:id/projection", anyone, inv.GetProjection)
	items.Post("/:id/refold", managers, inv.Refold)

	an := NewAnalyticsHandler(deps.Ops)
	items.Get("/:id/forecast", anyone, an.Forecast)
	api.Get("/anomalies", managers, an.Anomalies)

	alerts := NewAlertHandler(deps.Ops)
	ag := api.Group("/alerts")
	ag.Get("/", anyone, alerts.List)
	ag.Post("/evaluate", managers, alerts.Evaluate)
	ag.Post("/:id/ack", managers, alerts.Ack)
	ag.Post("/:id/resolve", managers, alerts.Resolve)
	ag.Post("/:id/dismiss", managers, alerts.Dismiss)

	snaps := NewSnapshotHandler(deps.Ops)
	sg := api.Group("/snapshots")
	sg.Post("/", managers, snaps.Take)
	sg.Get("/latest", anyone, snaps.Latest)
	sg.Get("/", anyone, snaps.List)

	dash := NewDashboardHandler(deps.Ops)
	api.Get("/dashboard/summary", anyone, dash.GetSummary)
	api.Get("/notifications/failed", managers, dash.FailedNotifications)
}
