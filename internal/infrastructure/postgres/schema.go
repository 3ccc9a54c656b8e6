package postgres

import (
	"context"
	"fmt"
)

// Nombres de constraints que los repos distinguen al traducir errores.
const (
	constraintLedgerIdem = "ledger_entries_idem_key"
	constraintAlertOpen  = "alerts_one_open_per_item"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS items (
		tenant_id          TEXT NOT NULL,
		item_id            TEXT NOT NULL,
		name               TEXT NOT NULL DEFAULT '',
		category           TEXT NOT NULL DEFAULT '',
		unit_measure       TEXT NOT NULL DEFAULT '',
		cost               NUMERIC NOT NULL DEFAULT 0,
		preferred_supplier TEXT NOT NULL DEFAULT '',
		reorder_point      NUMERIC NOT NULL DEFAULT 0,
		reorder_quantity   NUMERIC NOT NULL DEFAULT 0,
		max_stock          NUMERIC NOT NULL DEFAULT 0,
		lead_time_days     INT NOT NULL DEFAULT 0,
		auto_reorder       BOOLEAN NOT NULL DEFAULT FALSE,
		active             BOOLEAN NOT NULL DEFAULT TRUE,
		created_at         TIMESTAMPTZ NOT NULL,
		updated_at         TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (tenant_id, item_id)
	)`,
	`CREATE TABLE IF NOT EXISTS policy_changes (
		id         BIGSERIAL PRIMARY KEY,
		tenant_id  TEXT NOT NULL,
		item_id    TEXT NOT NULL,
		before     JSONB NOT NULL,
		after      JSONB NOT NULL,
		changed_by TEXT NOT NULL,
		changed_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS policy_changes_item_idx ON policy_changes (tenant_id, item_id, changed_at)`,
	`CREATE TABLE IF NOT EXISTS ledger_heads (
		tenant_id TEXT NOT NULL,
		item_id   TEXT NOT NULL,
		last_seq  BIGINT NOT NULL DEFAULT 0,
		PRIMARY KEY (tenant_id, item_id)
	)`,
	`CREATE TABLE IF NOT EXISTS ledger_entries (
		tenant_id       TEXT NOT NULL,
		item_id         TEXT NOT NULL,
		seq             BIGINT NOT NULL,
		ts              TIMESTAMPTZ NOT NULL,
		type            TEXT NOT NULL,
		quantity        NUMERIC NOT NULL,
		unit_cost       NUMERIC NOT NULL DEFAULT 0,
		actor_id        TEXT NOT NULL,
		reference       JSONB NOT NULL DEFAULT '{}',
		location        JSONB NOT NULL DEFAULT '{}',
		metadata        JSONB NOT NULL DEFAULT '{}',
		idempotency_key TEXT,
		PRIMARY KEY (tenant_id, item_id, seq)
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS ` + constraintLedgerIdem + `
		ON ledger_entries (tenant_id, item_id, idempotency_key) WHERE idempotency_key IS NOT NULL`,
	`CREATE INDEX IF NOT EXISTS ledger_entries_ts_idx ON ledger_entries (tenant_id, item_id, ts)`,
	`CREATE TABLE IF NOT EXISTS projections (
		tenant_id    TEXT NOT NULL,
		item_id      TEXT NOT NULL,
		on_hand      NUMERIC NOT NULL,
		last_seq     BIGINT NOT NULL,
		wac          NUMERIC NOT NULL,
		last_updated TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (tenant_id, item_id)
	)`,
	`CREATE TABLE IF NOT EXISTS alerts (
		tenant_id              TEXT NOT NULL,
		alert_id               TEXT NOT NULL,
		item_id                TEXT NOT NULL,
		type                   TEXT NOT NULL,
		priority               TEXT NOT NULL,
		state                  TEXT NOT NULL,
		observed_on_hand       NUMERIC NOT NULL,
		reorder_point          NUMERIC NOT NULL,
		suggested_quantity     NUMERIC NOT NULL,
		estimated_cost         NUMERIC NOT NULL,
		urgency_score          INT NOT NULL,
		expected_delivery_date TIMESTAMPTZ NOT NULL,
		notification_log       JSONB NOT NULL DEFAULT '[]',
		escalation_days        JSONB NOT NULL DEFAULT '[]',
		supplier_notified      BOOLEAN NOT NULL DEFAULT FALSE,
		ack_by                 TEXT NOT NULL DEFAULT '',
		ack_at                 TIMESTAMPTZ,
		resolved_by            TEXT NOT NULL DEFAULT '',
		resolved_at            TIMESTAMPTZ,
		dismissed_by           TEXT NOT NULL DEFAULT '',
		dismissed_at           TIMESTAMPTZ,
		dismiss_reason         TEXT NOT NULL DEFAULT '',
		created_at             TIMESTAMPTZ NOT NULL,
		updated_at             TIMESTAMPTZ NOT NULL,
		version                BIGINT NOT NULL DEFAULT 0,
		PRIMARY KEY (tenant_id, alert_id)
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS ` + constraintAlertOpen + `
		ON alerts (tenant_id, item_id) WHERE state IN ('ACTIVE', 'ACKNOWLEDGED')`,
	`CREATE TABLE IF NOT EXISTS snapshots (
		tenant_id   TEXT NOT NULL,
		snapshot_id TEXT NOT NULL,
		taken_at    TIMESTAMPTZ NOT NULL,
		trigger     TEXT NOT NULL,
		body        JSONB NOT NULL,
		PRIMARY KEY (tenant_id, snapshot_id)
	)`,
	`CREATE INDEX IF NOT EXISTS snapshots_taken_idx ON snapshots (tenant_id, taken_at)`,
	`CREATE TABLE IF NOT EXISTS notification_tasks (
		key                  TEXT PRIMARY KEY,
		tenant_id            TEXT NOT NULL,
		alert_id             TEXT NOT NULL,
		item_id              TEXT NOT NULL,
		stage                TEXT NOT NULL,
		day                  TEXT NOT NULL DEFAULT '',
		recipient_id         TEXT NOT NULL,
		recipient_address    TEXT NOT NULL,
		template             TEXT NOT NULL DEFAULT '',
		subject              TEXT NOT NULL DEFAULT '',
		body                 TEXT NOT NULL DEFAULT '',
		state                TEXT NOT NULL,
		attempts             INT NOT NULL DEFAULT 0,
		next_attempt_at      TIMESTAMPTZ NOT NULL,
		last_error           TEXT NOT NULL DEFAULT '',
		transport_message_id TEXT NOT NULL DEFAULT '',
		created_at           TIMESTAMPTZ NOT NULL,
		updated_at           TIMESTAMPTZ NOT NULL,
		delivered_at         TIMESTAMPTZ,
		version              BIGINT NOT NULL DEFAULT 0
	)`,
	`CREATE INDEX IF NOT EXISTS notification_tasks_due_idx ON notification_tasks (state, next_attempt_at)`,
	`CREATE INDEX IF NOT EXISTS notification_tasks_alert_idx ON notification_tasks (tenant_id, alert_id)`,
	`CREATE TABLE IF NOT EXISTS recipients (
		tenant_id    TEXT NOT NULL,
		role         TEXT NOT NULL,
		recipient_id TEXT NOT NULL,
		address      TEXT NOT NULL,
		PRIMARY KEY (tenant_id, role, recipient_id)
	)`,
}

// Migrate crea las tablas si no existen. Es idempotente.
func Migrate(ctx context.Context, q Querier) error {
	for i, stmt := range schema {
		if _, err := q.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migración %d: %w", i, err)
		}
	}
	return nil
}
