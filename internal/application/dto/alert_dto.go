package dto

// DismissAlertRequest body para POST /api/alerts/:id/dismiss.
type DismissAlertRequest struct {
	Reason string `json:"reason"`
}

// AlertListRequest filtros de GET /api/alerts.
type AlertListRequest struct {
	ItemID   string `query:"item_id"`
	Priority string `query:"priority"`
	State    string `query:"state"`
	OpenOnly bool   `query:"open_only"`
	PageRequest
}

// SnapshotRequest body para POST /api/snapshots.
type SnapshotRequest struct {
	Trigger string `json:"trigger"` // MANUAL por defecto
}
