package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	// _ "github.com/mattn/go-sqlite3" // better performance but requires gcc
	_ "modernc.org/sqlite"

	sharedDomain "github.com/davicafu/orderbus/internal/shared/domain"
)

// DeadLetterRepoSQLite implementa sharedDomain.DeadLetterRepository para despliegue local.
type DeadLetterRepoSQLite struct {
	db *sql.DB
}

func NewDeadLetterRepoSQLite(db *sql.DB) *DeadLetterRepoSQLite {
	return &DeadLetterRepoSQLite{db: db}
}

// InitSQLite crea la tabla dead_letters si no existe
func InitSQLite(db *sql.DB) error {
	_, err := db.Exec(`
        CREATE TABLE IF NOT EXISTS dead_letters (
            id TEXT PRIMARY KEY,
            event_id TEXT NOT NULL DEFAULT '',
            topic TEXT NOT NULL,
            msg_key TEXT NOT NULL,
            payload BLOB NOT NULL,
            attempts INTEGER NOT NULL,
            last_error TEXT NOT NULL DEFAULT '',
            retryable BOOLEAN NOT NULL DEFAULT 0,
            created_at DATETIME NOT NULL,
            replayed BOOLEAN NOT NULL DEFAULT 0
        )
    `)
	if err != nil {
		return err
	}
	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_dead_letters_pending ON dead_letters (replayed, created_at)`)
	return err
}

func (r *DeadLetterRepoSQLite) Save(ctx context.Context, dl sharedDomain.DeadLetter) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO dead_letters (id, event_id, topic, msg_key, payload, attempts, last_error, retryable, created_at, replayed)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 0)`,
		dl.ID.String(), dl.EventID, dl.Topic, dl.Key, dl.Payload, dl.Attempts, dl.LastError, dl.Retryable, dl.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert dead letter: %w", err)
	}
	return nil
}

// FetchPending obtiene los dead letters no reenviados, más antiguos primero.
func (r *DeadLetterRepoSQLite) FetchPending(ctx context.Context, limit int) ([]sharedDomain.DeadLetter, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, event_id, topic, msg_key, payload, attempts, last_error, retryable, created_at
         FROM dead_letters
         WHERE replayed = 0
         ORDER BY created_at
         LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var letters []sharedDomain.DeadLetter
	for rows.Next() {
		var dl sharedDomain.DeadLetter
		var idStr string // El ID se guarda como TEXT

		if err := rows.Scan(&idStr, &dl.EventID, &dl.Topic, &dl.Key, &dl.Payload, &dl.Attempts, &dl.LastError, &dl.Retryable, &dl.CreatedAt); err != nil {
			return nil, err
		}
		if dl.ID, err = uuid.Parse(idStr); err != nil {
			return nil, fmt.Errorf("invalid UUID in dead_letters row: %w", err)
		}
		letters = append(letters, dl)
	}
	return letters, rows.Err()
}

// MarkReplayed marca un dead letter como reenviado.
func (r *DeadLetterRepoSQLite) MarkReplayed(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `UPDATE dead_letters SET replayed = 1 WHERE id = ?`, id.String())
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
var _ sharedDomain.DeadLetterRepository = (*DeadLetterRepoSQLite)(nil)
