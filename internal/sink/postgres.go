package sink

// postgres.go implements the database sink. Idempotency by identity is
// a transaction that deletes the file's previous rows before inserting
// the new batch: a reprocessed file replaces its rows, never
// double-counts them.

import (
	"context"
	"fmt"

	"bankpipe/internal/crypt"
	"bankpipe/internal/ledger"
	"bankpipe/internal/record"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresSink writes Records into a transactions table keyed by the
// source file path.
type PostgresSink struct {
	pool  *pgxpool.Pool
	table string
	enc   crypt.Provider
}

// NewPostgresSink wraps a connection pool. The table must have the
// columns written by Write (see insertSQL).
func NewPostgresSink(pool *pgxpool.Pool, table string, enc crypt.Provider) *PostgresSink {
	return &PostgresSink{pool: pool, table: table, enc: enc}
}

// Write implements Sink.
func (s *PostgresSink) Write(ctx context.Context, id ledger.FileIdentity, recs []record.Record) (Ack, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Ack{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	// Replace this identity's previous rows.
	deleteSQL := fmt.Sprintf(`DELETE FROM %s WHERE source_path = $1`, s.table)
	if _, err := tx.Exec(ctx, deleteSQL, id.Path); err != nil {
		return Ack{}, fmt.Errorf("clear previous rows: %w", err)
	}

	insertSQL := fmt.Sprintf(`
		INSERT INTO %s (
			source_path, source_fingerprint,
			txn_date, amount, currency, description, reference,
			iban_emitter, iban_beneficiary, bic, category
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
	`, s.table)

	batch := &pgx.Batch{}
	for _, rec := range recs {
		emitter, beneficiary, err := sensitiveFields(rec, false, s.enc)
		if err != nil {
			return Ack{}, err
		}

		date := pgtype.Date{}
		if rec.Date.Valid {
			date = pgtype.Date{Time: rec.Date.Time, Valid: true}
		}
		amount := pgtype.Text{}
		if rec.Amount.Valid {
			amount = pgtype.Text{String: rec.Amount.Decimal.String(), Valid: true}
		}

		batch.Queue(insertSQL,
			id.Path, id.Fingerprint,
			date, amount, textOrNull(rec.Currency), textOrNull(rec.Description),
			textOrNull(rec.Reference), textOrNull(emitter), textOrNull(beneficiary),
			textOrNull(rec.BIC), textOrNull(rec.Category),
		)
	}

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return Ack{}, fmt.Errorf("insert rows: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return Ack{}, fmt.Errorf("commit: %w", err)
	}

	return Ack{Location: s.table, Records: len(recs)}, nil
}

func textOrNull(s string) pgtype.Text {
	if s == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: s, Valid: true}
}
