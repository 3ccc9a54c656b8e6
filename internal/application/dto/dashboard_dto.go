package dto

import "github.com/shopspring/decimal"

// DashboardSummaryDTO respuesta de GET /api/dashboard/summary.
type DashboardSummaryDTO struct {
	OpenAlerts          int            `json:"open_alerts"`
	AlertsByType        map[string]int `json:"alerts_by_type"`
	AlertsByPriority    map[string]int `json:"alerts_by_priority"`
	FailedNotifications int            `json:"failed_notifications"`
	Anomalies           int            `json:"anomalies"`

	// Última foto de inventario; vacío si el tenant aún no tiene fotos
	LastSnapshotAt     string          `json:"last_snapshot_at,omitempty"`
	TotalValue         decimal.Decimal `json:"total_value"`
	LowStockCount      int             `json:"low_stock_count"`
	OutOfStockCount    int             `json:"out_of_stock_count"`
	AvgConsumptionRate float64         `json:"avg_consumption_rate"`

	// Artículos con menor cobertura según el pronóstico
	StockoutRisks []StockoutRiskDTO `json:"stockout_risks"`

	DateLabel string `json:"date_label"` // ej: "Octubre 2026"
}

// StockoutRiskDTO artículo en riesgo de quiebre.
type StockoutRiskDTO struct {
	ItemID                 string          `json:"item_id"`
	OnHand                 decimal.Decimal `json:"on_hand"`
	DaysOfStock            float64         `json:"days_of_stock"`
	PredictedStockoutDate  string          `json:"predicted_stockout_date,omitempty"`
	SuggestedOrderQuantity decimal.Decimal `json:"suggested_order_quantity"`
	ConfidenceScore        int             `json:"confidence_score"`
}
