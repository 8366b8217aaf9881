package events

import (
	"time"

	"github.com/google/uuid"
)

// DomainEvent es la unidad que se publica en el broker.
// Es inmutable: los campos no se exportan y el payload se copia al construir y al leer.
// El id se fija al construir y viaja en la cabecera event_id de todos los intentos de envío,
// así los consumidores pueden descartar los duplicados que produce un reintento.
type DomainEvent struct {
	id        string
	topic     string
	key       string
	payload   map[string]interface{}
	createdAt time.Time
}

// NewDomainEvent construye un evento con createdAt = ahora (UTC).
func NewDomainEvent(topic, key string, payload map[string]interface{}) DomainEvent {
	return NewDomainEventAt(topic, key, payload, time.Now().UTC())
}

// NewDomainEventAt permite fijar createdAt (replays, tests).
func NewDomainEventAt(topic, key string, payload map[string]interface{}, createdAt time.Time) DomainEvent {
	return NewDomainEventWithID(uuid.NewString(), topic, key, payload, createdAt)
}

// NewDomainEventWithID reconstruye un evento ya emitido (dead letters) conservando su id.
func NewDomainEventWithID(id, topic, key string, payload map[string]interface{}, createdAt time.Time) DomainEvent {
	if id == "" {
		id = uuid.NewString()
	}
	return DomainEvent{
		id:        id,
		topic:     topic,
		key:       key,
		payload:   copyMap(payload),
		createdAt: createdAt,
	}
}

func (e DomainEvent) ID() string           { return e.id }
func (e DomainEvent) Topic() string        { return e.topic }
func (e DomainEvent) Key() string          { return e.key }
func (e DomainEvent) CreatedAt() time.Time { return e.createdAt }

// PartitionKey implementa bus.Keyer.
func (e DomainEvent) PartitionKey() string { return e.key }

// Payload devuelve una copia del payload.
func (e DomainEvent) Payload() map[string]interface{} {
	return copyMap(e.payload)
}

func copyMap(src map[string]interface{}) map[string]interface{} {
	if src == nil {
		return nil
	}
	dst := make(map[string]interface{}, len(src))
	for k, v := range src {
		dst[k] = copyValue(v)
	}
	return dst
}

func copyValue(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		return copyMap(val)
	case []interface{}:
		out := make([]interface{}, len(val))
		for i := range val {
			out[i] = copyValue(val[i])
		}
		return out
	case []byte:
		return append([]byte(nil), val...)
	default:
		return val
	}
}

// PublishResult es el resultado de una publicación.
// En caso de error Attempts sigue indicando cuántos envíos se hicieron.
type PublishResult struct {
	AckToken  string `json:"ack_token,omitempty"`
	Partition int    `json:"partition"`
	Attempts  int    `json:"attempts"`
}
