package trades

import (
	"context"
	"fmt"
	"time"

	"market-structure-engine/internal/database"
)

// Journal persists trade lifecycle events to PostgreSQL. All methods are
// no-ops when no database is configured.
type Journal struct {
	db *database.DB
}

func NewJournal(db *database.DB) *Journal {
	return &Journal{db: db}
}

// Summary aggregates journaled trade performance.
type Summary struct {
	TotalTrades   int     `json:"total_trades"`
	ActiveTrades  int     `json:"active_trades"`
	ClosedTrades  int     `json:"closed_trades"`
	WinningTrades int     `json:"winning_trades"`
	LosingTrades  int     `json:"losing_trades"`
	WinRate       float64 `json:"win_rate"`
	TotalPnL      float64 `json:"total_pnl_percent"`
	AvgWin        float64 `json:"avg_win_percent"`
	AvgLoss       float64 `json:"avg_loss_percent"`
}

// JournalEntry is one row of the trade journal.
type JournalEntry struct {
	ID         string     `json:"id"`
	Symbol     string     `json:"symbol"`
	Action     string     `json:"action"`
	EntryPrice float64    `json:"entry_price"`
	ExitPrice  *float64   `json:"exit_price,omitempty"`
	StopLoss   float64    `json:"stop_loss"`
	TakeProfit float64    `json:"take_profit"`
	Leverage   int        `json:"leverage"`
	Confidence float64    `json:"confidence"`
	PnLPercent *float64   `json:"pnl_percent,omitempty"`
	ExitReason *string    `json:"exit_reason,omitempty"`
	Status     string     `json:"status"`
	EnteredAt  time.Time  `json:"entered_at"`
	ExitedAt   *time.Time `json:"exited_at,omitempty"`
}

// RecordEntry upserts the opening row for a trade.
func (j *Journal) RecordEntry(ctx context.Context, trade *Trade) error {
	if j == nil || j.db == nil || j.db.Pool == nil {
		return nil
	}

	query := `
		INSERT INTO trade_journal (
			id, symbol, action, entry_price, stop_loss, take_profit,
			leverage, confidence, status, entered_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			entry_price = EXCLUDED.entry_price,
			stop_loss = EXCLUDED.stop_loss,
			take_profit = EXCLUDED.take_profit,
			status = EXCLUDED.status,
			updated_at = EXCLUDED.updated_at`

	_, err := j.db.Pool.Exec(ctx, query,
		trade.ID,
		trade.Symbol,
		trade.Action,
		trade.EntryPrice,
		trade.StopLoss,
		trade.TakeProfit,
		trade.Leverage,
		trade.Confidence,
		trade.Status,
		trade.EntryTime,
		time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to record trade entry: %w", err)
	}
	return nil
}

// RecordExit closes the journal row for a completed trade.
func (j *Journal) RecordExit(ctx context.Context, completion *Completion) error {
	if j == nil || j.db == nil || j.db.Pool == nil {
		return nil
	}

	query := `
		UPDATE trade_journal SET
			exit_price = $2,
			pnl_percent = $3,
			exit_reason = $4,
			status = 'CLOSED',
			exited_at = $5,
			updated_at = $5
		WHERE id = $1`

	_, err := j.db.Pool.Exec(ctx, query,
		completion.Trade.ID,
		completion.ExitPrice,
		completion.PnLPercent,
		completion.Status,
		time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to record trade exit: %w", err)
	}
	return nil
}

// GetSummary computes aggregate performance over the journal.
func (j *Journal) GetSummary(ctx context.Context) (*Summary, error) {
	if j == nil || j.db == nil || j.db.Pool == nil {
		return &Summary{}, nil
	}

	query := `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE status = 'ACTIVE'),
			COUNT(*) FILTER (WHERE status = 'CLOSED'),
			COUNT(*) FILTER (WHERE status = 'CLOSED' AND pnl_percent > 0),
			COUNT(*) FILTER (WHERE status = 'CLOSED' AND pnl_percent < 0),
			COALESCE(SUM(pnl_percent) FILTER (WHERE status = 'CLOSED'), 0),
			COALESCE(AVG(pnl_percent) FILTER (WHERE status = 'CLOSED' AND pnl_percent > 0), 0),
			COALESCE(AVG(pnl_percent) FILTER (WHERE status = 'CLOSED' AND pnl_percent < 0), 0)
		FROM trade_journal`

	summary := &Summary{}
	err := j.db.Pool.QueryRow(ctx, query).Scan(
		&summary.TotalTrades,
		&summary.ActiveTrades,
		&summary.ClosedTrades,
		&summary.WinningTrades,
		&summary.LosingTrades,
		&summary.TotalPnL,
		&summary.AvgWin,
		&summary.AvgLoss,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get trade summary: %w", err)
	}

	if summary.ClosedTrades > 0 {
		summary.WinRate = float64(summary.WinningTrades) / float64(summary.ClosedTrades) * 100
	}
	return summary, nil
}

// GetRecentTrades returns the newest journal rows.
func (j *Journal) GetRecentTrades(ctx context.Context, limit int) ([]JournalEntry, error) {
	if j == nil || j.db == nil || j.db.Pool == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 10
	}

	query := `
		SELECT id, symbol, action, entry_price, exit_price, stop_loss,
			take_profit, leverage, confidence, pnl_percent, exit_reason,
			status, entered_at, exited_at
		FROM trade_journal
		ORDER BY entered_at DESC
		LIMIT $1`

	rows, err := j.db.Pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent trades: %w", err)
	}
	defer rows.Close()

	var entries []JournalEntry
	for rows.Next() {
		var e JournalEntry
		err := rows.Scan(
			&e.ID, &e.Symbol, &e.Action, &e.EntryPrice, &e.ExitPrice,
			&e.StopLoss, &e.TakeProfit, &e.Leverage, &e.Confidence,
			&e.PnLPercent, &e.ExitReason, &e.Status, &e.EnteredAt, &e.ExitedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan journal entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
