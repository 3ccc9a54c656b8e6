package http_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/hotel-inventory-engine/internal/application/engine"
	"github.com/jhoicas/hotel-inventory-engine/internal/infrastructure/mail"
	"github.com/jhoicas/hotel-inventory-engine/internal/infrastructure/memory"
	apphttp "github.com/jhoicas/hotel-inventory-engine/internal/interfaces/http"
	"github.com/jhoicas/hotel-inventory-engine/pkg/clock"
	"github.com/jhoicas/hotel-inventory-engine/pkg/config"
	pkgjwt "github.com/jhoicas/hotel-inventory-engine/pkg/jwt"
	"github.com/jhoicas/hotel-inventory-engine/pkg/logger"
)

func newAPI(t *testing.T) *fiber.App {
	t.Helper()
	store := memory.NewStore()
	eng := engine.New(engine.Deps{
		Items:       store.Items,
		Policies:    store.Policies,
		Tx:          memory.NewTxRunner(store.Ledger),
		Ledger:      store.Ledger,
		Projections: store.Projections,
		Alerts:      store.Alerts,
		Snapshots:   store.Snapshots,
		Tasks:       store.Tasks,
		Directory:   store.Directory,
		Locker:      memory.NewKeyedLocker(),
		Transport:   mail.NewLogTransport(logger.Nop()),
		Clock:       clock.NewFake(time.Date(2026, 10, 15, 10, 0, 0, 0, time.UTC)),
	}, config.EngineConfig{
		Tenants:      []string{testTenantID},
		SafetyDays:   3,
		OperatorRole: pkgjwt.RoleInventoryManager,
	}, 0, logger.Nop())

	app := fiber.New()
	apphttp.Router(app, apphttp.RouterDeps{Ops: eng, JWTSecret: testJWTSecret})
	return app
}

func call(t *testing.T, app *fiber.App, method, path, role, body string) (int, map[string]interface{}) {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Authorization", tokenForRole(t, role))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	out := map[string]interface{}{}
	raw, _ := io.ReadAll(resp.Body)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp.StatusCode, out
}

const toallaJSON = `{"name":"Toalla de baño","category":"linen","unit_measure":"und","cost":"3",
	"policy":{"reorder_point":"10","reorder_quantity":"20","max_stock":"80","lead_time_days":2,"auto_reorder_enabled":true}}`

func TestRouter_AppendIdempotente(t *testing.T) {
	app := newAPI(t)
	status, _ := call(t, app, http.MethodPut, "/api/items/toalla", pkgjwt.RoleInventoryManager, toallaJSON)
	require.Equal(t, http.StatusOK, status)

	restock := `{"type":"RESTOCK","quantity":"40","unit_cost":"3","idempotency_key":"compra-77"}`
	status, body := call(t, app, http.MethodPost, "/api/items/toalla/entries", pkgjwt.RoleStaff, restock)
	assert.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "40", body["on_hand"])
	assert.Nil(t, body["duplicate"])

	status, body = call(t, app, http.MethodPost, "/api/items/toalla/entries", pkgjwt.RoleStaff, restock)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["duplicate"])
	assert.Equal(t, "40", body["on_hand"])

	status, body = call(t, app, http.MethodGet, "/api/items/toalla/projection", pkgjwt.RoleStaff, "")
	assert.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 1, body["lastSeq"])
}

func TestRouter_ErroresDeDominio(t *testing.T) {
	app := newAPI(t)
	_, _ = call(t, app, http.MethodPut, "/api/items/toalla", pkgjwt.RoleAdmin, toallaJSON)
	_, _ = call(t, app, http.MethodPost, "/api/items/toalla/entries", pkgjwt.RoleStaff, `{"type":"RESTOCK","quantity":"5","unit_cost":"3"}`)

	tests := []struct {
		name   string
		method string
		path   string
		role   string
		body   string
		status int
		code   string
	}{
		{"artículo desconocido", http.MethodPost, "/api/items/sabana/entries", pkgjwt.RoleStaff, `{"type":"RESTOCK","quantity":"5"}`, http.StatusNotFound, "UNKNOWN_ITEM"},
		{"stock insuficiente", http.MethodPost, "/api/items/toalla/entries", pkgjwt.RoleStaff, `{"type":"CONSUMPTION","quantity":"-10"}`, http.StatusConflict, "INSUFFICIENT_STOCK"},
		{"timestamp inválido", http.MethodPost, "/api/items/toalla/entries", pkgjwt.RoleStaff, `{"type":"RESTOCK","quantity":"1","timestamp":"ayer"}`, http.StatusBadRequest, "INVALID_INPUT"},
		{"cuerpo inválido", http.MethodPost, "/api/items/toalla/entries", pkgjwt.RoleStaff, `{"type":`, http.StatusBadRequest, "INVALID_BODY"},
		{"alerta desconocida", http.MethodPost, "/api/alerts/nope/ack", pkgjwt.RoleInventoryManager, "", http.StatusNotFound, "NOT_FOUND"},
		{"horizonte cero", http.MethodGet, "/api/items/toalla/forecast?horizon=0", pkgjwt.RoleStaff, "", http.StatusBadRequest, "INVALID_INPUT"},
		{"confianza fuera de rango", http.MethodGet, "/api/items/toalla/forecast?confidence=1.5", pkgjwt.RoleStaff, "", http.StatusBadRequest, "INVALID_INPUT"},
		{"sin fotos", http.MethodGet, "/api/snapshots/latest", pkgjwt.RoleStaff, "", http.StatusNotFound, "NOT_FOUND"},
		{"staff no cambia políticas", http.MethodPut, "/api/items/toalla/policy", pkgjwt.RoleStaff, `{}`, http.StatusForbidden, "FORBIDDEN"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := call(t, app, tt.method, tt.path, tt.role, tt.body)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.code, body["code"])
		})
	}
}

func TestRouter_FotoYResumen(t *testing.T) {
	app := newAPI(t)
	_, _ = call(t, app, http.MethodPut, "/api/items/toalla", pkgjwt.RoleAdmin, toallaJSON)
	_, _ = call(t, app, http.MethodPost, "/api/items/toalla/entries", pkgjwt.RoleStaff, `{"type":"RESTOCK","quantity":"40","unit_cost":"3"}`)

	status, _ := call(t, app, http.MethodPost, "/api/snapshots", pkgjwt.RoleInventoryManager, `{"trigger":"MANUAL"}`)
	assert.Equal(t, http.StatusCreated, status)

	status, _ = call(t, app, http.MethodGet, "/api/snapshots/latest", pkgjwt.RoleStaff, "")
	assert.Equal(t, http.StatusOK, status)

	status, body := call(t, app, http.MethodGet, "/api/alerts", pkgjwt.RoleStaff, "")
	assert.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 0, body["total"])

	status, _ = call(t, app, http.MethodGet, "/api/dashboard/summary", pkgjwt.RoleStaff, "")
	assert.Equal(t, http.StatusOK, status)
}

func TestRouter_ListadosPaginadosEnCamelCase(t *testing.T) {
	app := newAPI(t)
	status, body := call(t, app, http.MethodPut, "/api/items/toalla", pkgjwt.RoleAdmin, toallaJSON)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "toalla", body["itemId"])
	assert.Contains(t, body, "policy")
	assert.NotContains(t, body, "ItemID")

	for _, q := range []string{"4", "3", "2"} {
		status, _ = call(t, app, http.MethodPost, "/api/items/toalla/entries", pkgjwt.RoleStaff,
			`{"type":"RESTOCK","quantity":"`+q+`","unit_cost":"3"}`)
		require.Equal(t, http.StatusCreated, status)
	}

	status, body = call(t, app, http.MethodGet,
		"/api/items/toalla/entries?from=2026-10-01T00:00:00Z&to=2026-10-31T00:00:00Z&limit=2&offset=1", pkgjwt.RoleStaff, "")
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 3, body["total"])
	assert.EqualValues(t, 2, body["limit"])
	assert.EqualValues(t, 1, body["offset"])
	entries, ok := body["items"].([]interface{})
	require.True(t, ok)
	require.Len(t, entries, 2)
	first := entries[0].(map[string]interface{})
	assert.EqualValues(t, 2, first["seq"])
	assert.Equal(t, "RESTOCK", first["type"])
	assert.Equal(t, "3", first["quantity"])
	assert.Contains(t, first, "actorId")
	assert.NotContains(t, first, "Seq")

	status, _ = call(t, app, http.MethodPost, "/api/alerts/evaluate", pkgjwt.RoleInventoryManager, "")
	require.Equal(t, http.StatusAccepted, status)

	status, body = call(t, app, http.MethodGet, "/api/alerts", pkgjwt.RoleStaff, "")
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 1, body["total"])
	alerts := body["items"].([]interface{})
	require.Len(t, alerts, 1)
	alert := alerts[0].(map[string]interface{})
	assert.Equal(t, "toalla", alert["itemId"])
	assert.Equal(t, "9", alert["observedOnHand"])
	assert.Equal(t, "ACTIVE", alert["state"])
	assert.NotEmpty(t, alert["alertId"])
	assert.NotContains(t, alert, "AlertID")
	assert.NotContains(t, alert, "ackAt")
}
