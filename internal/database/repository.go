package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"tradingview-agent/internal/alert"
	"tradingview-agent/internal/backtest"
	"tradingview-agent/internal/ensemble"
)

// Repository provides audit and stats persistence over the DB pool.
type Repository struct {
	db *DB
}

// NewRepository creates a new repository
func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// HealthCheck pings the underlying pool.
func (r *Repository) HealthCheck(ctx context.Context) error {
	return r.db.Pool.Ping(ctx)
}

// DecisionRecord is one audited ensemble decision row.
type DecisionRecord struct {
	ID                 string          `json:"id"`
	Ticker             string          `json:"ticker"`
	Pattern            string          `json:"pattern"`
	Interval           string          `json:"interval"`
	Price              *float64        `json:"price,omitempty"`
	Direction          string          `json:"direction"`
	Confidence         string          `json:"confidence"`
	Reasoning          string          `json:"reasoning"`
	ModelDetails       json.RawMessage `json:"model_details"`
	ConsensusBreakdown json.RawMessage `json:"consensus_breakdown"`
	CreatedAt          time.Time       `json:"created_at"`
}

// SaveDecision persists one ensemble decision with its full per-model detail.
func (r *Repository) SaveDecision(ctx context.Context, a *alert.Alert, d *ensemble.EnsembleDecision) error {
	details, err := json.Marshal(d.ModelDetails)
	if err != nil {
		details = []byte("[]")
	}
	breakdown, err := json.Marshal(d.ConsensusBreakdown)
	if err != nil {
		breakdown = []byte("{}")
	}

	query := `
		INSERT INTO ensemble_decisions (
			id, ticker, pattern, interval, price, direction, confidence,
			reasoning, model_details, consensus_breakdown
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err = r.db.Pool.Exec(ctx, query,
		a.ID,
		a.Ticker,
		a.Pattern,
		a.Interval,
		a.Price,
		string(d.Direction),
		string(d.Confidence),
		d.Reasoning,
		details,
		breakdown,
	)
	if err != nil {
		return fmt.Errorf("failed to save decision: %w", err)
	}
	return nil
}

// RecentDecisions retrieves the latest audited decisions, optionally filtered
// by ticker.
func (r *Repository) RecentDecisions(ctx context.Context, limit int, ticker string) ([]DecisionRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT id, ticker, pattern, interval, price, direction, confidence,
			reasoning, model_details, consensus_breakdown, created_at
		FROM ensemble_decisions
		WHERE ($1 = '' OR ticker = $1)
		ORDER BY created_at DESC
		LIMIT $2`

	rows, err := r.db.Pool.Query(ctx, query, ticker, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query decisions: %w", err)
	}
	defer rows.Close()

	var records []DecisionRecord
	for rows.Next() {
		var rec DecisionRecord
		if err := rows.Scan(
			&rec.ID, &rec.Ticker, &rec.Pattern, &rec.Interval, &rec.Price,
			&rec.Direction, &rec.Confidence, &rec.Reasoning,
			&rec.ModelDetails, &rec.ConsensusBreakdown, &rec.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan decision row: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// SaveStats upserts aggregated backtest stats for one (ticker, pattern).
// Implements backtest.StatsStore.
func (r *Repository) SaveStats(ctx context.Context, stats *backtest.Stats) error {
	query := `
		INSERT INTO backtest_stats (ticker, pattern, total_trades, wins, losses, winrate_pct, avg_rr, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		ON CONFLICT (ticker, pattern) DO UPDATE SET
			total_trades = EXCLUDED.total_trades,
			wins = EXCLUDED.wins,
			losses = EXCLUDED.losses,
			winrate_pct = EXCLUDED.winrate_pct,
			avg_rr = EXCLUDED.avg_rr,
			updated_at = NOW()`

	_, err := r.db.Pool.Exec(ctx, query,
		stats.Ticker, stats.Pattern, stats.TotalTrades,
		stats.Wins, stats.Losses, stats.WinratePct, stats.AvgRR,
	)
	if err != nil {
		return fmt.Errorf("failed to save backtest stats: %w", err)
	}
	return nil
}

// GetStats looks up backtest stats; (nil, nil) means no stats recorded.
// Implements backtest.StatsStore.
func (r *Repository) GetStats(ctx context.Context, ticker, pattern string) (*backtest.Stats, error) {
	query := `
		SELECT ticker, pattern, total_trades, wins, losses, winrate_pct, avg_rr
		FROM backtest_stats
		WHERE ticker = $1 AND pattern = $2`

	var stats backtest.Stats
	err := r.db.Pool.QueryRow(ctx, query, ticker, pattern).Scan(
		&stats.Ticker, &stats.Pattern, &stats.TotalTrades,
		&stats.Wins, &stats.Losses, &stats.WinratePct, &stats.AvgRR,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query backtest stats: %w", err)
	}
	return &stats, nil
}
