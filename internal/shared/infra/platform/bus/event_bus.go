package bus

import "context"

type Keyer interface {
	PartitionKey() string
}

// Ack es la confirmación del broker para un mensaje.
type Ack struct {
	Token     string
	Partition int // -1 si el broker no lo informa
}

// Envelope es lo que el publisher entrega al broker en cada intento.
// ID es el id del evento: igual en todos los reintentos, se escribe en la cabecera event_id.
type Envelope struct {
	ID    string
	Topic string
	Key   string
	Value []byte
}

// Message es lo que reciben los consumidores (kafka o en memoria).
type Message struct {
	Topic     string
	Key       string
	Value     []byte
	Headers   map[string]string
	Partition int
	Offset    int64
}

// Cabeceras que el cliente añade a cada mensaje.
const (
	HeaderEventID     = "event_id"
	HeaderContentType = "content-type"
)

// BrokerClient es la única conexión lógica con el broker por proceso.
// Se construye en main, se inyecta y se cierra al apagar.
type BrokerClient interface {
	// Connect es idempotente. Devuelve *domain.ConnectionError si se agotan los intentos.
	Connect(ctx context.Context) error

	// Send envía un mensaje. Los mensajes con la misma key van a la misma partición.
	// Los fallos son *domain.SendError.
	Send(ctx context.Context, env Envelope) (Ack, error)

	Close() error

	Connected() bool
}
