package events

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	sharedDomain "github.com/davicafu/orderbus/internal/shared/domain"
	sharedBus "github.com/davicafu/orderbus/internal/shared/infra/platform/bus"
)

const defaultMemorySendTimeout = 5 * time.Second

// InMemoryBroker implementa BrokerClient sin red: cada topic tiene N particiones
// con un log ordenado. Se usa en despliegue local y en tests.
type InMemoryBroker struct {
	partitions  int
	sendTimeout time.Duration
	balancer    kafka.Balancer

	mu          sync.Mutex
	logs        map[string][][]sharedBus.Message // topic -> partición -> mensajes
	subscribers []chan sharedBus.Message
	closed      bool

	done     chan struct{} // se cierra en Close y desbloquea las entregas en curso
	inflight sync.WaitGroup
}

// Verifica en tiempo de compilación que cumple la interfaz
var _ sharedBus.BrokerClient = (*InMemoryBroker)(nil)

// NewInMemoryBroker crea el broker. sendTimeout acota cuánto espera cada Send a que
// los suscriptores acepten el mensaje (<= 0 usa 5s).
func NewInMemoryBroker(partitions int, sendTimeout time.Duration) *InMemoryBroker {
	if partitions < 1 {
		partitions = 1
	}
	if sendTimeout <= 0 {
		sendTimeout = defaultMemorySendTimeout
	}
	return &InMemoryBroker{
		partitions:  partitions,
		sendTimeout: sendTimeout,
		balancer:    &kafka.Hash{}, // mismo reparto que el writer de Kafka
		logs:        make(map[string][][]sharedBus.Message),
		done:        make(chan struct{}),
	}
}

func (b *InMemoryBroker) Connect(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return sharedDomain.ErrClientClosed
	}
	return nil
}

func (b *InMemoryBroker) Connected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return !b.closed
}

// Send añade el mensaje al log de su partición y después lo entrega a los suscriptores
// fuera del lock. Si un suscriptor no acepta el mensaje en sendTimeout el intento falla
// como retryable; el mensaje ya está en el log, igual que un write de Kafka cuyo ack se pierde,
// y el reintento lleva el mismo event_id.
// El log respeta el orden de llegada; el orden de entrega por key lo da el publisher,
// que no solapa envíos de la misma key.
func (b *InMemoryBroker) Send(ctx context.Context, env sharedBus.Envelope) (sharedBus.Ack, error) {
	if err := ctx.Err(); err != nil {
		return sharedBus.Ack{}, &sharedDomain.SendError{Retryable: true, Err: err}
	}

	msg, subs, err := b.record(env)
	if err != nil {
		return sharedBus.Ack{}, err
	}
	defer b.inflight.Done()

	if err := b.deliver(ctx, msg, subs); err != nil {
		return sharedBus.Ack{}, err
	}
	return sharedBus.Ack{Token: fmt.Sprintf("%s/%d/%d", msg.Topic, msg.Partition, msg.Offset), Partition: msg.Partition}, nil
}

// record registra el mensaje en el log y devuelve una foto de los suscriptores.
// Si no hay error, el llamador debe hacer b.inflight.Done().
func (b *InMemoryBroker) record(env sharedBus.Envelope) (sharedBus.Message, []chan sharedBus.Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return sharedBus.Message{}, nil, &sharedDomain.SendError{Retryable: false, Err: sharedDomain.ErrClientClosed}
	}

	parts, ok := b.logs[env.Topic]
	if !ok {
		parts = make([][]sharedBus.Message, b.partitions)
		b.logs[env.Topic] = parts
	}

	eventID := env.ID
	if eventID == "" {
		eventID = uuid.NewString()
	}

	partition := b.PartitionFor(env.Key)
	msg := sharedBus.Message{
		Topic: env.Topic,
		Key:   env.Key,
		Value: append([]byte(nil), env.Value...),
		Headers: map[string]string{
			sharedBus.HeaderEventID:     eventID,
			sharedBus.HeaderContentType: "application/json",
		},
		Partition: partition,
		Offset:    int64(len(parts[partition])),
	}
	parts[partition] = append(parts[partition], msg)

	b.inflight.Add(1)
	return msg, append([]chan sharedBus.Message(nil), b.subscribers...), nil
}

func (b *InMemoryBroker) deliver(ctx context.Context, msg sharedBus.Message, subs []chan sharedBus.Message) error {
	if len(subs) == 0 {
		return nil
	}
	timer := time.NewTimer(b.sendTimeout)
	defer timer.Stop()

	for _, sub := range subs {
		select {
		case sub <- msg:
		case <-timer.C:
			return &sharedDomain.SendError{Retryable: true, Err: fmt.Errorf("in-memory delivery timeout after %s", b.sendTimeout)}
		case <-ctx.Done():
			return &sharedDomain.SendError{Retryable: true, Err: ctx.Err()}
		case <-b.done:
			return &sharedDomain.SendError{Retryable: false, Err: sharedDomain.ErrClientClosed}
		}
	}
	return nil
}

// PartitionFor devuelve la partición asignada a una key.
func (b *InMemoryBroker) PartitionFor(key string) int {
	ids := make([]int, b.partitions)
	for i := range ids {
		ids[i] = i
	}
	return b.balancer.Balance(kafka.Message{Key: []byte(key)}, ids...)
}

// Subscribe registra un nuevo oyente para todos los topics.
// Tras Close devuelve un canal ya cerrado.
func (b *InMemoryBroker) Subscribe(bufferSize int) <-chan sharedBus.Message {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan sharedBus.Message, bufferSize)
	if b.closed {
		close(ch)
		return ch
	}
	b.subscribers = append(b.subscribers, ch)
	return ch
}

// Messages devuelve una copia del log de una partición.
func (b *InMemoryBroker) Messages(topic string, partition int) []sharedBus.Message {
	b.mu.Lock()
	defer b.mu.Unlock()

	parts, ok := b.logs[topic]
	if !ok || partition < 0 || partition >= len(parts) {
		return nil
	}
	return append([]sharedBus.Message(nil), parts[partition]...)
}

// Close rechaza nuevos envíos, corta las entregas en curso y cierra los canales
// de los suscriptores. Es idempotente y no espera a suscriptores lentos.
func (b *InMemoryBroker) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	close(b.done)
	subs := b.subscribers
	b.subscribers = nil
	b.mu.Unlock()

	// Ningún Send puede seguir escribiendo en un canal que vamos a cerrar.
	b.inflight.Wait()
	for _, sub := range subs {
		close(sub)
	}
	return nil
}
