package journal

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLite persists runs, trades and equity curves in a local database.
type SQLite struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLite{db: db}, nil
}

func (j *SQLite) RecordRun(r RunRecord) error {
	metrics, err := json.Marshal(r.Metrics)
	if err != nil {
		return fmt.Errorf("marshal metrics: %w", err)
	}

	_, err = j.db.Exec(`
		INSERT INTO runs
		(run_id, created, symbol, strategy, config_yaml, start_time, end_time, initial_capital, final_equity, metrics_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.RunID, r.Created, r.Symbol, r.Strategy, r.ConfigYAML,
		r.Start, r.End, r.InitialCapital, r.FinalEquity, string(metrics),
	)
	return err
}

func (j *SQLite) RecordTrade(t TradeRecord) error {
	_, err := j.db.Exec(`
		INSERT INTO trades
		(trade_id, run_id, strategy, side, shares, is_pyramid, entry_price, exit_price, stop_price, entry_time, exit_time, pnl, r_multiple, bars_held, exit_reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.TradeID, t.RunID, t.Strategy, t.Side, t.Shares, t.IsPyramid,
		t.EntryPrice, t.ExitPrice, t.StopPrice, t.EntryTime, t.ExitTime,
		t.PnL, t.RMultiple, t.BarsHeld, t.ExitReason,
	)
	return err
}

func (j *SQLite) RecordEquity(e EquityRecord) error {
	_, err := j.db.Exec(`
		INSERT INTO equity (run_id, time, equity) VALUES (?, ?, ?)`,
		e.RunID, e.Time, e.Equity,
	)
	return err
}

// GetRun returns a single run by id.
func (j *SQLite) GetRun(runID string) (RunRecord, error) {
	var rec RunRecord
	var metrics string

	row := j.db.QueryRow(`
		SELECT run_id, created, symbol, strategy, config_yaml, start_time, end_time, initial_capital, final_equity, metrics_json
		FROM runs
		WHERE run_id = ?`, runID)

	err := row.Scan(
		&rec.RunID,
		&rec.Created,
		&rec.Symbol,
		&rec.Strategy,
		&rec.ConfigYAML,
		&rec.Start,
		&rec.End,
		&rec.InitialCapital,
		&rec.FinalEquity,
		&metrics,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return RunRecord{}, fmt.Errorf("run %q not found", runID)
		}
		return RunRecord{}, err
	}

	if err := json.Unmarshal([]byte(metrics), &rec.Metrics); err != nil {
		return RunRecord{}, fmt.Errorf("unmarshal metrics: %w", err)
	}
	return rec, nil
}

// ListRuns returns the most recent runs, newest first.
func (j *SQLite) ListRuns(limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := j.db.Query(`
		SELECT run_id, created, symbol, strategy, start_time, end_time, initial_capital, final_equity, metrics_json
		FROM runs
		ORDER BY created DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RunRecord
	for rows.Next() {
		var rec RunRecord
		var metrics string
		if err := rows.Scan(
			&rec.RunID,
			&rec.Created,
			&rec.Symbol,
			&rec.Strategy,
			&rec.Start,
			&rec.End,
			&rec.InitialCapital,
			&rec.FinalEquity,
			&metrics,
		); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(metrics), &rec.Metrics); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// ListTradesByRun returns a run's trades in close order.
func (j *SQLite) ListTradesByRun(runID string) ([]TradeRecord, error) {
	rows, err := j.db.Query(`
		SELECT trade_id, run_id, strategy, side, shares, is_pyramid, entry_price, exit_price, stop_price, entry_time, exit_time, pnl, r_multiple, bars_held, exit_reason
		FROM trades
		WHERE run_id = ?
		ORDER BY exit_time ASC`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTrades(rows)
}

// ListTradesClosedBetween returns trades whose exit_time is within [start, end).
func (j *SQLite) ListTradesClosedBetween(start, end time.Time) ([]TradeRecord, error) {
	rows, err := j.db.Query(`
		SELECT trade_id, run_id, strategy, side, shares, is_pyramid, entry_price, exit_price, stop_price, entry_time, exit_time, pnl, r_multiple, bars_held, exit_reason
		FROM trades
		WHERE exit_time >= ? AND exit_time < ?
		ORDER BY exit_time ASC`, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTrades(rows)
}

// EquityCurve returns a run's equity points in time order.
func (j *SQLite) EquityCurve(runID string) ([]EquityRecord, error) {
	rows, err := j.db.Query(`
		SELECT run_id, time, equity
		FROM equity
		WHERE run_id = ?
		ORDER BY time ASC`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []EquityRecord
	for rows.Next() {
		var rec EquityRecord
		if err := rows.Scan(&rec.RunID, &rec.Time, &rec.Equity); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (j *SQLite) Close() error {
	return j.db.Close()
}

func scanTrades(rows *sql.Rows) ([]TradeRecord, error) {
	var out []TradeRecord
	for rows.Next() {
		var rec TradeRecord
		if err := rows.Scan(
			&rec.TradeID,
			&rec.RunID,
			&rec.Strategy,
			&rec.Side,
			&rec.Shares,
			&rec.IsPyramid,
			&rec.EntryPrice,
			&rec.ExitPrice,
			&rec.StopPrice,
			&rec.EntryTime,
			&rec.ExitTime,
			&rec.PnL,
			&rec.RMultiple,
			&rec.BarsHeld,
			&rec.ExitReason,
		); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
