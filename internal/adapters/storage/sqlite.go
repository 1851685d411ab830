package storage

// sqlite.go — persistencia de executions y ciclos de agregación.
//
// Estrategia:
//   - `executions`: una fila por execution descriptor, status actualizado
//     in-place. Los amounts van como TEXT (big.Int en decimal) para no
//     perder precisión.
//   - `execution_events`: historial append-only de transiciones de estado.
//   - `cycles`: resumen ligero por llamada GetQuotes (observabilidad).
//   - Prune automático al arrancar: cycles > 30d, executions terminales > 90d.

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/alejandrodnm/swaproute/internal/domain"
	"github.com/alejandrodnm/swaproute/internal/ports"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS executions (
    id         TEXT PRIMARY KEY,
    quote_id   TEXT NOT NULL,
    venue      TEXT NOT NULL,
    chain_id   INTEGER NOT NULL,
    token_in   TEXT NOT NULL,
    token_out  TEXT NOT NULL,
    amount_in  TEXT NOT NULL,
    amount_out TEXT NOT NULL,
    min_out    TEXT NOT NULL,
    target     TEXT NOT NULL,
    payload    BLOB NOT NULL,
    value      TEXT NOT NULL,
    gas_limit  INTEGER NOT NULL,
    status     TEXT NOT NULL,
    created_at DATETIME NOT NULL,
    updated_at DATETIME NOT NULL
);

-- Historial append-only de transiciones de estado
CREATE TABLE IF NOT EXISTS execution_events (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    execution_id TEXT NOT NULL,
    from_status  TEXT NOT NULL,
    to_status    TEXT NOT NULL,
    at           DATETIME NOT NULL
);

-- Resumen ligero por llamada GetQuotes
CREATE TABLE IF NOT EXISTS cycles (
    id             INTEGER PRIMARY KEY AUTOINCREMENT,
    requested_at   DATETIME NOT NULL,
    chain_id       INTEGER NOT NULL,
    token_in       TEXT NOT NULL,
    token_out      TEXT NOT NULL,
    amount_in      TEXT NOT NULL,
    venues_queried INTEGER NOT NULL,
    venues_ok      INTEGER NOT NULL,
    best_venue     TEXT,
    best_net_out   TEXT,
    duration_ms    INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_exec_status ON executions(status);
CREATE INDEX IF NOT EXISTS idx_exec_quote  ON executions(quote_id);
CREATE INDEX IF NOT EXISTS idx_events_exec ON execution_events(execution_id);
CREATE INDEX IF NOT EXISTS idx_cycles_at   ON cycles(requested_at DESC);
`

const (
	retentionCycles    = 30 * 24 * time.Hour
	retentionTerminals = 90 * 24 * time.Hour
)

// SQLiteStorage implementa ports.ExecutionStore y ports.CycleStore sobre
// SQLite (driver pure Go, sin CGo).
type SQLiteStorage struct {
	db *sql.DB
}

var (
	_ ports.ExecutionStore = (*SQLiteStorage)(nil)
	_ ports.CycleStore     = (*SQLiteStorage)(nil)
)

// NewSQLiteStorage abre (o crea) la base de datos en la ruta dada, aplica
// el schema y limpia datos antiguos.
func NewSQLiteStorage(path string) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage.NewSQLiteStorage: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // SQLite es single-writer
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.NewSQLiteStorage: apply schema: %w", err)
	}

	s := &SQLiteStorage{db: db}
	s.pruneOld(context.Background())
	return s, nil
}

// SaveExecution inserta un descriptor recién creado.
func (s *SQLiteStorage) SaveExecution(ctx context.Context, e domain.ExecutionDescriptor) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO executions
			(id, quote_id, venue, chain_id, token_in, token_out, amount_in,
			 amount_out, min_out, target, payload, value, gas_limit, status,
			 created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID,
		e.Quote.ID,
		e.Quote.Venue,
		e.Quote.TokenIn.ChainID,
		e.Quote.TokenIn.Symbol,
		e.Quote.TokenOut.Symbol,
		e.Quote.AmountIn.String(),
		e.Quote.AmountOut.String(),
		e.MinAmountOut.String(),
		e.Target,
		e.Payload,
		e.Value.String(),
		e.GasLimit,
		string(e.Status),
		e.CreatedAt.UTC(),
		e.UpdatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("storage.SaveExecution: insert %s: %w", e.ID, err)
	}
	return nil
}

// RecordTransition registra el evento y actualiza el status de la fila,
// atómicamente.
func (s *SQLiteStorage) RecordTransition(ctx context.Context, execID string, from, to domain.ExecutionStatus, at time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage.RecordTransition: begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO execution_events (execution_id, from_status, to_status, at) VALUES (?, ?, ?, ?)`,
		execID, string(from), string(to), at.UTC(),
	); err != nil {
		return fmt.Errorf("storage.RecordTransition: insert event: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE executions SET status = ?, updated_at = ? WHERE id = ?`,
		string(to), at.UTC(), execID,
	); err != nil {
		return fmt.Errorf("storage.RecordTransition: update status: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("storage.RecordTransition: commit: %w", err)
	}
	return nil
}

// GetExecution reconstruye un descriptor desde su fila. El Quote embebido
// recupera solo los campos persistidos (suficiente para auditar el estado).
func (s *SQLiteStorage) GetExecution(ctx context.Context, id string) (domain.ExecutionDescriptor, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, quote_id, venue, chain_id, token_in, token_out, amount_in,
		       amount_out, min_out, target, payload, value, gas_limit, status,
		       created_at, updated_at
		FROM executions WHERE id = ?`, id)

	var (
		e                                     domain.ExecutionDescriptor
		chainID                               uint64
		tokenIn, tokenOut                     string
		amountIn, amountOut, minOut, valueStr string
		status                                string
	)
	err := row.Scan(
		&e.ID, &e.Quote.ID, &e.Quote.Venue, &chainID, &tokenIn, &tokenOut,
		&amountIn, &amountOut, &minOut, &e.Target, &e.Payload, &valueStr,
		&e.GasLimit, &status, &e.CreatedAt, &e.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ExecutionDescriptor{}, fmt.Errorf("storage.GetExecution: %q: %w", id, domain.ErrExecutionNotFound)
	}
	if err != nil {
		return domain.ExecutionDescriptor{}, fmt.Errorf("storage.GetExecution: scan: %w", err)
	}

	e.Quote.TokenIn = domain.Token{Symbol: tokenIn, ChainID: chainID}
	e.Quote.TokenOut = domain.Token{Symbol: tokenOut, ChainID: chainID}
	e.Quote.AmountIn = mustBig(amountIn)
	e.Quote.AmountOut = mustBig(amountOut)
	e.MinAmountOut = mustBig(minOut)
	e.Value = mustBig(valueStr)
	e.Status = domain.ExecutionStatus(status)
	return e, nil
}

// SaveCycle persiste el resumen de una llamada GetQuotes.
func (s *SQLiteStorage) SaveCycle(ctx context.Context, c ports.AggregationCycle) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cycles
			(requested_at, chain_id, token_in, token_out, amount_in,
			 venues_queried, venues_ok, best_venue, best_net_out, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.RequestedAt.UTC(),
		c.ChainID,
		c.TokenIn,
		c.TokenOut,
		c.AmountIn,
		c.VenuesQueried,
		c.VenuesOK,
		c.BestVenue,
		c.BestNetOut,
		c.Duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("storage.SaveCycle: insert: %w", err)
	}
	return nil
}

// Close cierra la conexión limpiamente.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// pruneOld limpia ciclos antiguos y executions terminales viejas. Best
// effort: un fallo aquí no impide arrancar.
func (s *SQLiteStorage) pruneOld(ctx context.Context) {
	cutCycles := time.Now().UTC().Add(-retentionCycles)
	s.db.ExecContext(ctx, `DELETE FROM cycles WHERE requested_at < ?`, cutCycles)

	cutExec := time.Now().UTC().Add(-retentionTerminals)
	s.db.ExecContext(ctx, `
		DELETE FROM execution_events WHERE execution_id IN
			(SELECT id FROM executions WHERE status IN ('confirmed', 'failed') AND updated_at < ?)`,
		cutExec)
	s.db.ExecContext(ctx, `
		DELETE FROM executions WHERE status IN ('confirmed', 'failed') AND updated_at < ?`,
		cutExec)
}

// mustBig parsea un big.Int decimal persistido por este mismo paquete.
func mustBig(s string) *big.Int {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return big.NewInt(0)
	}
	return v
}
