package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Trend tendencia del consumo en la ventana de análisis.
type Trend string

const (
	TrendIncreasing Trend = "INCREASING"
	TrendDecreasing Trend = "DECREASING"
	TrendStable     Trend = "STABLE"
	TrendVolatile   Trend = "VOLATILE"
)

// ForecastPoint saldo proyectado al final del día d con su intervalo.
type ForecastPoint struct {
	Day             time.Time `json:"day"`
	ProjectedOnHand float64   `json:"projectedOnHand"`
	Lower           float64   `json:"lower"`
	Upper           float64   `json:"upper"`
}

// Forecast pronóstico de demanda de un artículo.
type Forecast struct {
	TenantID               string          `json:"tenantId"`
	ItemID                 string          `json:"itemId"`
	GeneratedAt            time.Time       `json:"generatedAt"`
	HorizonDays            int             `json:"horizonDays"`
	ConfidenceLevel        float64         `json:"confidenceLevel"`
	SampleDays             int             `json:"sampleDays"`
	OnHand                 decimal.Decimal `json:"onHand"`
	AvgDailyConsumption    float64         `json:"avgDailyConsumption"`
	SeasonalMultiplier     float64         `json:"seasonalMultiplier"`
	ProjectedDailyDemand   float64         `json:"projectedDailyDemand"`
	Trend                  Trend           `json:"trend"`
	DemandLower            float64         `json:"demandLower"`
	DemandUpper            float64         `json:"demandUpper"`
	Points                 []ForecastPoint `json:"points"`
	DaysOfStock            *float64        `json:"daysOfStock,omitempty"`
	PredictedStockoutDate  *time.Time      `json:"predictedStockoutDate,omitempty"`
	SuggestedOrderQuantity decimal.Decimal `json:"suggestedOrderQuantity"`
	ConfidenceScore        int             `json:"confidenceScore"`
	Policy                 ReorderPolicy   `json:"policy"`
	PolicyChanges          int             `json:"policyChanges"`
}

// AnomalySeverity severidad por z-score.
type AnomalySeverity string

const (
	AnomalyMedium   AnomalySeverity = "MEDIUM"
	AnomalyHigh     AnomalySeverity = "HIGH"
	AnomalyCritical AnomalySeverity = "CRITICAL"
)

// Anomaly consumo del día fuera de lo normal.
type Anomaly struct {
	TenantID string          `json:"tenantId"`
	ItemID   string          `json:"itemId"`
	Day      time.Time       `json:"day"`
	Observed float64         `json:"observed"`
	Mean     float64         `json:"mean"`
	StdDev   float64         `json:"stdDev"`
	ZScore   float64         `json:"zScore"`
	Severity AnomalySeverity `json:"severity"`
	Spike    bool            `json:"spike"`
}
