package mocks

import (
	"bytes"
	"context"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/mock"

	sharedEvents "github.com/davicafu/orderbus/internal/shared/events"
	sharedBus "github.com/davicafu/orderbus/internal/shared/infra/platform/bus"
)

// MockBroker simula el BrokerClient
type MockBroker struct {
	mock.Mock
}

var _ sharedBus.BrokerClient = (*MockBroker)(nil)

func (m *MockBroker) Connect(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockBroker) Send(ctx context.Context, env sharedBus.Envelope) (sharedBus.Ack, error) {
	args := m.Called(ctx, env)
	return args.Get(0).(sharedBus.Ack), args.Error(1)
}

// EnvelopeFor casa cualquier envío a topic con esa key.
func EnvelopeFor(topic, key string) interface{} {
	return mock.MatchedBy(func(env sharedBus.Envelope) bool {
		return env.Topic == topic && env.Key == key
	})
}

// EnvelopeWith casa además los bytes exactos del mensaje.
func EnvelopeWith(topic, key string, value []byte) interface{} {
	return mock.MatchedBy(func(env sharedBus.Envelope) bool {
		return env.Topic == topic && env.Key == key && bytes.Equal(env.Value, value)
	})
}

func (m *MockBroker) Close() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockBroker) Connected() bool {
	args := m.Called()
	return args.Bool(0)
}

// MockPublisher simula el EventPublisher visto desde el dominio de pedidos
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, evt sharedEvents.DomainEvent) (sharedEvents.PublishResult, error) {
	args := m.Called(ctx, evt)
	return args.Get(0).(sharedEvents.PublishResult), args.Error(1)
}

// MockMessageReader simula un *kafka.Reader
type MockMessageReader struct {
	mock.Mock
}

func (m *MockMessageReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	args := m.Called(ctx)
	return args.Get(0).(kafka.Message), args.Error(1)
}

func (m *MockMessageReader) CommitMessages(ctx context.Context, msgs ...kafka.Message) error {
	args := m.Called(ctx, msgs)
	return args.Error(0)
}

func (m *MockMessageReader) Config() kafka.ReaderConfig {
	return kafka.ReaderConfig{Topic: "order.events", Brokers: []string{"localhost:9092"}}
}

func (m *MockPublisher) Republish(ctx context.Context, evt sharedEvents.DomainEvent) (sharedEvents.PublishResult, error) {
	args := m.Called(ctx, evt)
	return args.Get(0).(sharedEvents.PublishResult), args.Error(1)
}
