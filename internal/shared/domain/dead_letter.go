package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// DeadLetter representa un evento cuya publicación falló de forma definitiva.
// Se guarda para que un operador decida si volver a enviarlo.
type DeadLetter struct {
	ID        uuid.UUID `json:"id"`
	EventID   string    `json:"event_id"` // id del evento original; el replay lo reutiliza
	Topic     string    `json:"topic"`
	Key       string    `json:"key"`
	Payload   []byte    `json:"payload"` // bytes canónicos, tal cual se enviaron
	Attempts  int       `json:"attempts"`
	LastError string    `json:"last_error"`
	Retryable bool      `json:"retryable"` // el último error era transitorio (se agotaron los intentos)
	CreatedAt time.Time `json:"created_at"`
	Replayed  bool      `json:"replayed"`
}

// DeadLetterRepository define el contrato para la tabla dead_letters.
type DeadLetterRepository interface {
	Save(ctx context.Context, dl DeadLetter) error

	// FetchPending obtiene los dead letters no reenviados, más antiguos primero.
	FetchPending(ctx context.Context, limit int) ([]DeadLetter, error)

	// MarkReplayed marca un dead letter como reenviado con éxito.
	MarkReplayed(ctx context.Context, id uuid.UUID) error
}
