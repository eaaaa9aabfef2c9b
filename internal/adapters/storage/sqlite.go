package storage

// sqlite.go — recorder de ciclos y trades ejecutados.
//
// Estrategia:
//   - `cycles`: resumen ligero por ciclo (fase, sentiment, trades, volumen,
//     margin calls). Siempre 1 fila por ciclo.
//   - `trades`: eventos de trade ejecutados, para los trackers de
//     inventario/float aguas abajo. Solo se insertan, nunca se actualizan.
//   - Prune automático al arrancar: cycles y trades > 7 días. Una simulación
//     no es un histórico: los runs viejos solo ocupan disco.
//
// El engine no sabe que esto existe: el recorder consume snapshots ya
// producidos (ports.Recorder).

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/alejandrodnm/bolsasim/internal/domain"
	_ "modernc.org/sqlite"
)

const schema = `
-- Resumen ligero por ciclo de simulación
CREATE TABLE IF NOT EXISTS cycles (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id        TEXT     NOT NULL,
    cycle         INTEGER  NOT NULL,
    at            DATETIME NOT NULL,
    phase         TEXT     NOT NULL,
    sentiment     REAL     NOT NULL DEFAULT 50,
    trades        INTEGER  NOT NULL DEFAULT 0,
    volume        REAL     NOT NULL DEFAULT 0,
    margin_calls  INTEGER  NOT NULL DEFAULT 0,
    forced_covers INTEGER  NOT NULL DEFAULT 0,
    crashed       INTEGER  NOT NULL DEFAULT 0
);

-- Eventos de trade ejecutados (insert-only)
CREATE TABLE IF NOT EXISTS trades (
    id       INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id   TEXT    NOT NULL,
    cycle    INTEGER NOT NULL,
    symbol   TEXT    NOT NULL,
    side     TEXT    NOT NULL,
    shares   INTEGER NOT NULL,
    price    REAL    NOT NULL,
    agent    TEXT    NOT NULL,
    at       DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_trades_cycle ON trades(run_id, cycle);
CREATE INDEX IF NOT EXISTS idx_trades_symbol ON trades(symbol);
`

const pruneAfter = 7 * 24 * time.Hour

// SQLiteRecorder implementa ports.Recorder sobre un archivo SQLite.
type SQLiteRecorder struct {
	db    *sql.DB
	runID string
	mu    sync.Mutex
}

// NewSQLiteRecorder abre (o crea) la base, aplica el schema y poda runs viejos.
func NewSQLiteRecorder(dsn, runID string) (*SQLiteRecorder, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("storage.NewSQLiteRecorder: open %q: %w", dsn, err)
	}
	// SQLite solo tolera un writer; el loop es single-threaded igualmente.
	db.SetMaxOpenConns(1)

	r := &SQLiteRecorder{db: db, runID: runID}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.ApplySchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	if err := r.Prune(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return r, nil
}

// ApplySchema crea las tablas si no existen.
func (r *SQLiteRecorder) ApplySchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("storage.ApplySchema: %w", err)
	}
	return nil
}

// SaveCycle inserta el resumen de un ciclo.
func (r *SQLiteRecorder) SaveCycle(ctx context.Context, s domain.CycleSummary) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO cycles (run_id, cycle, at, phase, sentiment, trades, volume, margin_calls, forced_covers, crashed)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.runID, s.Cycle, s.At, string(s.Phase), s.Sentiment,
		s.Trades, s.Volume, s.MarginCalls, s.ForcedCovers, boolToInt(s.Crashed),
	)
	if err != nil {
		return fmt.Errorf("storage.SaveCycle: %w", err)
	}
	return nil
}

// SaveTrades inserta los eventos de trade de un ciclo en una transacción.
func (r *SQLiteRecorder) SaveTrades(ctx context.Context, cycle int, events []domain.TradeEvent) error {
	if len(events) == 0 {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage.SaveTrades: begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO trades (run_id, cycle, symbol, side, shares, price, agent, at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("storage.SaveTrades: prepare: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, ev := range events {
		if _, err := stmt.ExecContext(ctx,
			r.runID, cycle, ev.Symbol, string(ev.Side), ev.Shares, ev.Price, ev.Agent, now,
		); err != nil {
			return fmt.Errorf("storage.SaveTrades: insert %s: %w", ev.Symbol, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("storage.SaveTrades: commit: %w", err)
	}
	return nil
}

// Prune borra ciclos y trades más viejos que la ventana de retención.
func (r *SQLiteRecorder) Prune(ctx context.Context) error {
	cutoff := time.Now().Add(-pruneAfter)
	if _, err := r.db.ExecContext(ctx, `DELETE FROM cycles WHERE at < ?`, cutoff); err != nil {
		return fmt.Errorf("storage.Prune: cycles: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, `DELETE FROM trades WHERE at < ?`, cutoff); err != nil {
		return fmt.Errorf("storage.Prune: trades: %w", err)
	}
	return nil
}

// TradeCount devuelve el total de trades registrados en este run (para tests
// y para el resumen final de la CLI).
func (r *SQLiteRecorder) TradeCount(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM trades WHERE run_id = ?`, r.runID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("storage.TradeCount: %w", err)
	}
	return n, nil
}

// Close cierra la base.
func (r *SQLiteRecorder) Close() error {
	return r.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
