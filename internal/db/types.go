package db

import (
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/cashback-scout/internal/orchestrator"
)

// DefaultListLimit and MaxListLimit bound ListDetections.
const (
	DefaultListLimit = 50
	MaxListLimit     = 500
)

// Detection is one stored decision.
type Detection struct {
	ID              uuid.UUID       `json:"id"`
	PageID          string          `json:"page_id"`
	TabID           string          `json:"tab_id,omitempty"`
	URL             string          `json:"url"`
	Platform        string          `json:"platform,omitempty"`
	Brand           string          `json:"brand,omitempty"`
	CashbackPercent *float64        `json:"cashback_percent,omitempty"`
	BrandSupported  bool            `json:"brand_supported"`
	ProductPage     bool            `json:"product_page"`
	PDPScore        int             `json:"pdp_score"`
	Signals         map[string]bool `json:"signals,omitempty"`
	Actionable      bool            `json:"actionable"`
	Notified        bool            `json:"notified"`
	Attempts        int             `json:"attempts"`
	ErrorMessage    string          `json:"error,omitempty"`
	EvaluatedAt     time.Time       `json:"evaluated_at"`
	CreatedAt       time.Time       `json:"created_at"`
}

// DetectionFromDecision flattens a decision into its stored form.
func DetectionFromDecision(d orchestrator.Decision) Detection {
	det := Detection{
		ID:             uuid.New(),
		PageID:         d.PageID,
		TabID:          d.TabID,
		URL:            d.URL,
		Platform:       d.Platform,
		Brand:          d.BrandName(),
		BrandSupported: d.Brand.IsSupported,
		ProductPage:    d.PDP.IsProductPage,
		PDPScore:       d.PDP.Score,
		Signals:        d.PDP.Signals,
		Actionable:     d.Actionable,
		Notified:       d.Notified,
		Attempts:       d.Attempts,
		ErrorMessage:   d.Error,
		EvaluatedAt:    d.EvaluatedAt,
	}
	if d.Brand.Brand != nil {
		pct := d.Brand.Brand.CashbackPercent
		det.CashbackPercent = &pct
	}
	if det.Signals == nil {
		det.Signals = map[string]bool{}
	}
	if det.EvaluatedAt.IsZero() {
		det.EvaluatedAt = time.Now().UTC()
	}
	return det
}

// ClampLimit maps a requested page size into [1, MaxListLimit].
func ClampLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	if limit > MaxListLimit {
		return MaxListLimit
	}
	return limit
}
