package events

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	sharedDomain "github.com/davicafu/orderbus/internal/shared/domain"
	sharedBus "github.com/davicafu/orderbus/internal/shared/infra/platform/bus"
	sharedUtils "github.com/davicafu/orderbus/internal/shared/infra/utils"
)

func newTestKafkaClient(brokers ...string) *KafkaClient {
	return NewKafkaClient(KafkaClientConfig{
		Brokers:     brokers,
		Connect:     sharedUtils.BackoffPolicy{MaxAttempts: 2, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond},
		SendTimeout: 200 * time.Millisecond,
	}, zap.NewNop())
}

func TestKafkaClient_Classify(t *testing.T) {
	client := newTestKafkaClient("localhost:9092")

	tests := []struct {
		name      string
		err       error
		retryable bool
	}{
		{name: "leader not available", err: kafka.LeaderNotAvailable, retryable: true},
		{name: "not leader", err: kafka.NotLeaderForPartition, retryable: true},
		{name: "unknown topic", err: kafka.UnknownTopicOrPartition, retryable: false},
		{name: "invalid topic", err: kafka.InvalidTopic, retryable: false},
		{name: "message too large", err: kafka.MessageSizeTooLarge, retryable: false},
		{name: "write errors wrapper", err: kafka.WriteErrors{kafka.LeaderNotAvailable}, retryable: true},
		{name: "ack timeout", err: fmt.Errorf("write: %w", context.DeadlineExceeded), retryable: true},
		{name: "caller cancelled", err: context.Canceled, retryable: false},
		{name: "connection dropped", err: io.EOF, retryable: true},
		{name: "unknown error", err: errors.New("boom"), retryable: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sendErr := client.classify(tt.err)
			assert.Equal(t, tt.retryable, sendErr.Retryable)
		})
	}
}

func TestKafkaClient_NetworkErrorMarksDisconnected(t *testing.T) {
	client := newTestKafkaClient("localhost:9092")
	client.connected.Store(true)

	_ = client.classify(io.ErrUnexpectedEOF)

	assert.False(t, client.Connected())
}

func TestKafkaClient_ConnectFailsAfterBoundedAttempts(t *testing.T) {
	// Puerto 1 en loopback: conexión rechazada de inmediato
	client := newTestKafkaClient("127.0.0.1:1")

	err := client.Connect(context.Background())

	var connErr *sharedDomain.ConnectionError
	require.ErrorAs(t, err, &connErr)
	assert.Equal(t, 2, connErr.Attempts)
	assert.Equal(t, "127.0.0.1:1", connErr.Addr)
	assert.False(t, client.Connected())
}

func TestKafkaClient_ConnectWithoutBrokers(t *testing.T) {
	client := newTestKafkaClient()

	var connErr *sharedDomain.ConnectionError
	assert.ErrorAs(t, client.Connect(context.Background()), &connErr)
}

func TestKafkaClient_SendWhileDisconnectedIsRetryable(t *testing.T) {
	client := newTestKafkaClient("127.0.0.1:1")

	_, err := client.Send(context.Background(), sharedBus.Envelope{ID: "evt-1", Topic: "order.events", Key: "A1", Value: []byte(`{}`)})

	var sendErr *sharedDomain.SendError
	require.ErrorAs(t, err, &sendErr)
	assert.True(t, sendErr.Retryable)
	var connErr *sharedDomain.ConnectionError
	assert.ErrorAs(t, err, &connErr)
}

func TestKafkaClient_CloseIsIdempotent(t *testing.T) {
	client := newTestKafkaClient("127.0.0.1:1")

	assert.NoError(t, client.Close())
	assert.NoError(t, client.Close())

	_, err := client.Send(context.Background(), sharedBus.Envelope{ID: "evt-1", Topic: "order.events", Key: "A1", Value: []byte(`{}`)})
	assert.ErrorIs(t, err, sharedDomain.ErrClientClosed)
	assert.False(t, sharedDomain.IsRetryable(err))
	assert.ErrorIs(t, client.Connect(context.Background()), sharedDomain.ErrClientClosed)
}

func TestKafkaMessage_CarriesEventID(t *testing.T) {
	env := sharedBus.Envelope{ID: "evt-1", Topic: "order.events", Key: "A1", Value: []byte(`{}`)}

	first := kafkaMessage(env)
	second := kafkaMessage(env)

	assert.Equal(t, "order.events", first.Topic)
	assert.Equal(t, []byte("A1"), first.Key)
	assert.Equal(t, "evt-1", headersToMap(first.Headers)[sharedBus.HeaderEventID])
	assert.Equal(t, headersToMap(first.Headers)[sharedBus.HeaderEventID], headersToMap(second.Headers)[sharedBus.HeaderEventID],
		"reintentos del mismo evento llevan el mismo event_id")

	anonymous := kafkaMessage(sharedBus.Envelope{Topic: "order.events", Key: "A1"})
	assert.NotEmpty(t, headersToMap(anonymous.Headers)[sharedBus.HeaderEventID])
}
