package domain

import (
	"time"

	sharedBus "github.com/davicafu/orderbus/internal/shared/infra/platform/bus"
)

// Order es la petición de creación ya validada.
type Order struct {
	Identifier string    `json:"identifier"`
	Amount     float64   `json:"amount"`
	CreatedAt  time.Time `json:"created_at"`
}

// PartitionKey: todos los eventos de un mismo pedido comparten key y por tanto orden.
func (o *Order) PartitionKey() string {
	return o.Identifier
}

// CreatedPayload construye el payload del evento order.created.
func (o *Order) CreatedPayload() map[string]interface{} {
	return map[string]interface{}{
		"type":       OrderCreated,
		"identifier": o.Identifier,
		"amount":     o.Amount,
	}
}

// OrderView es la proyección que mantiene el consumidor en cache.
type OrderView struct {
	Identifier string    `json:"identifier"`
	Amount     float64   `json:"amount"`
	Status     string    `json:"status"`
	EventID    string    `json:"event_id"`
	Partition  int       `json:"partition"`
	Offset     int64     `json:"offset"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Verificación estática para asegurar que Order implementa la interfaz
var _ sharedBus.Keyer = (*Order)(nil)
