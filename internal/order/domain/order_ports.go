package domain

import (
	"context"
	"errors"
	"fmt"

	sharedEvents "github.com/davicafu/orderbus/internal/shared/events"
)

// ---------- Errores de dominio ----------
var (
	ErrOrderNotFound = errors.New("order not found")
)

// ---------- Interfaces (Ports) ----------

// EventPublisher publica eventos de dominio y no devuelve hasta tener un resultado definitivo.
type EventPublisher interface {
	Publish(ctx context.Context, evt sharedEvents.DomainEvent) (sharedEvents.PublishResult, error)
}

// ---------- Helpers comunes (cache keys, etc.) ----------

// CacheKeyByID forma una key consistente para la proyección de un pedido.
func CacheKeyByID(identifier string) string {
	return fmt.Sprintf("order:id:%s", identifier)
}

// CacheKeyByEvent marca un evento ya aplicado (consumidor idempotente).
func CacheKeyByEvent(eventID string) string {
	return fmt.Sprintf("order:event:%s", eventID)
}
