package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib" // registra el driver "pgx"

	sharedDomain "github.com/davicafu/orderbus/internal/shared/domain"
)

// DriverName es el nombre con el que pgx se registra en database/sql.
const DriverName = "pgx"

// DeadLetterRepoPostgres implementa la interfaz sharedDomain.DeadLetterRepository.
type DeadLetterRepoPostgres struct {
	db *sql.DB
}

func NewDeadLetterRepoPostgres(db *sql.DB) *DeadLetterRepoPostgres {
	return &DeadLetterRepoPostgres{db: db}
}

// InitPostgres crea la tabla dead_letters si no existe.
func InitPostgres(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS dead_letters (
			id UUID PRIMARY KEY,
			event_id TEXT NOT NULL DEFAULT '',
			topic TEXT NOT NULL,
			msg_key TEXT NOT NULL,
			payload BYTEA NOT NULL,
			attempts INTEGER NOT NULL,
			last_error TEXT NOT NULL DEFAULT '',
			retryable BOOLEAN NOT NULL DEFAULT false,
			created_at TIMESTAMPTZ NOT NULL,
			replayed BOOLEAN NOT NULL DEFAULT false
		)`)
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS idx_dead_letters_pending ON dead_letters (replayed, created_at)`)
	return err
}

func (r *DeadLetterRepoPostgres) Save(ctx context.Context, dl sharedDomain.DeadLetter) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO dead_letters (id, event_id, topic, msg_key, payload, attempts, last_error, retryable, created_at, replayed)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, false)`,
		dl.ID, dl.EventID, dl.Topic, dl.Key, dl.Payload, dl.Attempts, dl.LastError, dl.Retryable, dl.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert dead letter: %w", err)
	}
	return nil
}

// FetchPending obtiene los dead letters no reenviados para Postgres.
func (r *DeadLetterRepoPostgres) FetchPending(ctx context.Context, limit int) ([]sharedDomain.DeadLetter, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, event_id, topic, msg_key, payload, attempts, last_error, retryable, created_at
		 FROM dead_letters WHERE replayed=false ORDER BY created_at LIMIT $1`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var letters []sharedDomain.DeadLetter
	for rows.Next() {
		var dl sharedDomain.DeadLetter
		if err := rows.Scan(&dl.ID, &dl.EventID, &dl.Topic, &dl.Key, &dl.Payload, &dl.Attempts, &dl.LastError, &dl.Retryable, &dl.CreatedAt); err != nil {
			return nil, err
		}
		letters = append(letters, dl)
	}
	return letters, rows.Err()
}

// MarkReplayed marca un dead letter como reenviado para Postgres.
func (r *DeadLetterRepoPostgres) MarkReplayed(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `UPDATE dead_letters SET replayed=true WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get RowsAffected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("dead letter not found: %s", id)
	}
	return nil
}

// Verificación en tiempo de compilación.
var _ sharedDomain.DeadLetterRepository = (*DeadLetterRepoPostgres)(nil)
