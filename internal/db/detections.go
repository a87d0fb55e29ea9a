package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jonathan/cashback-scout/internal/orchestrator"
)

const detectionColumns = `id, page_id, tab_id, url, platform, brand, cashback_percent,
	brand_supported, product_page, pdp_score, signals, actionable, notified,
	attempts, error_message, evaluated_at, created_at`

// Record stores a decision. It satisfies orchestrator.History.
func (db *DB) Record(ctx context.Context, d orchestrator.Decision) error {
	_, err := db.InsertDetection(ctx, DetectionFromDecision(d))
	return err
}

// InsertDetection stores det and returns it with CreatedAt filled in.
func (db *DB) InsertDetection(ctx context.Context, det Detection) (*Detection, error) {
	signalsJSON, err := json.Marshal(det.Signals)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal signals: %w", err)
	}

	err = db.pool.QueryRow(ctx,
		`INSERT INTO detections (id, page_id, tab_id, url, platform, brand, cashback_percent,
		                         brand_supported, product_page, pdp_score, signals, actionable,
		                         notified, attempts, error_message, evaluated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		 RETURNING created_at`,
		det.ID, det.PageID, det.TabID, det.URL, det.Platform, det.Brand, det.CashbackPercent,
		det.BrandSupported, det.ProductPage, det.PDPScore, signalsJSON, det.Actionable,
		det.Notified, det.Attempts, det.ErrorMessage, det.EvaluatedAt,
	).Scan(&det.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert detection: %w", err)
	}
	return &det, nil
}

// GetDetection retrieves a detection by ID. A missing row is (nil, nil).
func (db *DB) GetDetection(ctx context.Context, id uuid.UUID) (*Detection, error) {
	row := db.pool.QueryRow(ctx, `SELECT `+detectionColumns+` FROM detections WHERE id = $1`, id)
	det, err := scanDetection(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get detection: %w", err)
	}
	return det, nil
}

// ListFilter narrows ListDetections.
type ListFilter struct {
	Limit          int
	ActionableOnly bool
	Brand          string
}

// ListDetections returns the most recent detections first.
func (db *DB) ListDetections(ctx context.Context, f ListFilter) ([]Detection, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT `+detectionColumns+`
		 FROM detections
		 WHERE ($1 = FALSE OR actionable)
		   AND ($2 = '' OR brand = $2)
		 ORDER BY evaluated_at DESC
		 LIMIT $3`,
		f.ActionableOnly, f.Brand, ClampLimit(f.Limit),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list detections: %w", err)
	}
	defer rows.Close()

	var out []Detection
	for rows.Next() {
		det, err := scanDetection(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan detection: %w", err)
		}
		out = append(out, *det)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list detections: %w", err)
	}
	return out, nil
}

// BrandCount is a per-brand tally of actionable detections.
type BrandCount struct {
	Brand string `json:"brand"`
	Count int    `json:"count"`
}

// TopBrands returns brands with the most actionable detections.
func (db *DB) TopBrands(ctx context.Context, limit int) ([]BrandCount, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT brand, COUNT(*) FROM detections
		 WHERE actionable AND brand <> ''
		 GROUP BY brand ORDER BY COUNT(*) DESC, brand
		 LIMIT $1`,
		ClampLimit(limit),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to count brands: %w", err)
	}
	defer rows.Close()

	var out []BrandCount
	for rows.Next() {
		var bc BrandCount
		if err := rows.Scan(&bc.Brand, &bc.Count); err != nil {
			return nil, fmt.Errorf("failed to scan brand count: %w", err)
		}
		out = append(out, bc)
	}
	return out, rows.Err()
}

func scanDetection(row pgx.Row) (*Detection, error) {
	var det Detection
	var signalsJSON []byte
	err := row.Scan(&det.ID, &det.PageID, &det.TabID, &det.URL, &det.Platform, &det.Brand,
		&det.CashbackPercent, &det.BrandSupported, &det.ProductPage, &det.PDPScore, &signalsJSON,
		&det.Actionable, &det.Notified, &det.Attempts, &det.ErrorMessage, &det.EvaluatedAt, &det.CreatedAt)
	if err != nil {
		return nil, err
	}
	if len(signalsJSON) > 0 {
		if err := json.Unmarshal(signalsJSON, &det.Signals); err != nil {
			return nil, fmt.Errorf("failed to unmarshal signals: %w", err)
		}
	}
	return &det, nil
}
