package events

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	sharedDomain "github.com/davicafu/orderbus/internal/shared/domain"
	sharedBus "github.com/davicafu/orderbus/internal/shared/infra/platform/bus"
	sharedUtils "github.com/davicafu/orderbus/internal/shared/infra/utils"
)

type KafkaClientConfig struct {
	Brokers      []string
	Connect      sharedUtils.BackoffPolicy
	SendTimeout  time.Duration // espera máxima por ack en cada intento
	BatchTimeout time.Duration
	ClientID     string
}

// KafkaClient mantiene un único kafka.Writer de larga duración compartido por todas las
// publicaciones, más una conexión de control usada para comprobar conectividad.
type KafkaClient struct {
	cfg    KafkaClientConfig
	dialer *kafka.Dialer
	log    *zap.Logger

	mu        sync.RWMutex
	writer    *kafka.Writer
	control   *kafka.Conn
	connected atomic.Bool
	closed    atomic.Bool
}

func NewKafkaClient(cfg KafkaClientConfig, log *zap.Logger) *KafkaClient {
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 5 * time.Second
	}
	if cfg.BatchTimeout <= 0 {
		cfg.BatchTimeout = 10 * time.Millisecond
	}
	return &KafkaClient{
		cfg: cfg,
		dialer: &kafka.Dialer{
			Timeout:   cfg.SendTimeout,
			DualStack: true,
			ClientID:  cfg.ClientID,
		},
		log: log,
	}
}

// Connect establece la conexión con reintentos exponenciales acotados.
// Llamarlo ya conectado no hace nada.
func (c *KafkaClient) Connect(ctx context.Context) error {
	if c.closed.Load() {
		return sharedDomain.ErrClientClosed
	}
	if len(c.cfg.Brokers) == 0 {
		return &sharedDomain.ConnectionError{Attempts: 0, Err: errors.New("no kafka brokers configured")}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.connected.Load() {
		return nil
	}

	var lastAddr string
	attempts, err := sharedUtils.Retry(ctx, c.cfg.Connect, func(error) bool { return ctx.Err() == nil }, func(attempt int) error {
		lastAddr = c.cfg.Brokers[(attempt-1)%len(c.cfg.Brokers)]
		err := c.dialLocked(ctx, lastAddr)
		if err != nil {
			c.log.Warn("⚠️ Kafka no disponible, reintentando",
				zap.String("broker", lastAddr),
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
		}
		return err
	})
	if err != nil {
		return &sharedDomain.ConnectionError{Addr: lastAddr, Attempts: attempts, Err: err}
	}

	c.log.Info("✅ Kafka conectado",
		zap.String("broker", lastAddr),
		zap.Strings("brokers", c.cfg.Brokers),
		zap.Int("attempts", attempts),
	)
	return nil
}

// dialLocked abre la conexión de control y crea el writer si todavía no existe.
// Requiere c.mu tomado en escritura.
func (c *KafkaClient) dialLocked(ctx context.Context, addr string) error {
	conn, err := c.dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return err
	}
	if _, err := conn.Brokers(); err != nil {
		_ = conn.Close()
		return err
	}

	if c.control != nil {
		_ = c.control.Close()
	}
	c.control = conn

	if c.writer == nil {
		c.writer = &kafka.Writer{
			Addr:         kafka.TCP(c.cfg.Brokers...),
			Balancer:     &kafka.Hash{}, // misma key -> misma partición
			RequiredAcks: kafka.RequireAll,
			MaxAttempts:  1, // los reintentos los gestiona el publisher
			BatchTimeout: c.cfg.BatchTimeout,
			WriteTimeout: c.cfg.SendTimeout,
			ReadTimeout:  c.cfg.SendTimeout,
			Transport: &kafka.Transport{
				DialTimeout: c.cfg.SendTimeout,
				ClientID:    c.cfg.ClientID,
			},
		}
	}
	c.connected.Store(true)
	return nil
}

// reconnectOnce hace un único intento de reconexión, sin backoff.
// El ritmo de reintentos lo marca el publisher.
func (c *KafkaClient) reconnectOnce(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.connected.Load() {
		return nil
	}
	var lastErr error
	for _, addr := range c.cfg.Brokers {
		if lastErr = c.dialLocked(ctx, addr); lastErr == nil {
			c.log.Info("🔌 Kafka reconectado", zap.String("broker", addr))
			return nil
		}
	}
	return &sharedDomain.ConnectionError{Addr: strings.Join(c.cfg.Brokers, ","), Attempts: 1, Err: lastErr}
}

// Send escribe un mensaje usando el writer compartido.
// kafka-go no devuelve offsets al escribir, así que el ack token es el id del evento.
func (c *KafkaClient) Send(ctx context.Context, env sharedBus.Envelope) (sharedBus.Ack, error) {
	if c.closed.Load() {
		return sharedBus.Ack{}, &sharedDomain.SendError{Retryable: false, Err: sharedDomain.ErrClientClosed}
	}
	if !c.connected.Load() {
		if err := c.reconnectOnce(ctx); err != nil {
			return sharedBus.Ack{}, &sharedDomain.SendError{Retryable: true, Err: err}
		}
	}

	c.mu.RLock()
	writer := c.writer
	c.mu.RUnlock()
	if writer == nil {
		return sharedBus.Ack{}, &sharedDomain.SendError{Retryable: false, Err: sharedDomain.ErrClientClosed}
	}

	msg := kafkaMessage(env)
	msg.Headers = InjectTraceHeaders(ctx, msg.Headers)

	attemptCtx, cancel := context.WithTimeout(ctx, c.cfg.SendTimeout)
	defer cancel()

	if err := writer.WriteMessages(attemptCtx, msg); err != nil {
		sendErr := c.classify(err)
		c.log.Warn("Error publishing to Kafka",
			zap.String("topic", env.Topic),
			zap.String("key", env.Key),
			zap.String("event_id", string(msg.Headers[0].Value)),
			zap.Bool("retryable", sendErr.Retryable),
			zap.Error(err),
		)
		return sharedBus.Ack{}, sendErr
	}

	return sharedBus.Ack{Token: string(msg.Headers[0].Value), Partition: -1}, nil
}

// kafkaMessage construye el mensaje de Kafka. La cabecera event_id va siempre primera.
func kafkaMessage(env sharedBus.Envelope) kafka.Message {
	id := env.ID
	if id == "" {
		id = uuid.NewString()
	}
	return kafka.Message{
		Topic: env.Topic,
		Key:   []byte(env.Key),
		Value: env.Value,
		Headers: []kafka.Header{
			{Key: sharedBus.HeaderEventID, Value: []byte(id)},
			{Key: sharedBus.HeaderContentType, Value: []byte("application/json")},
		},
	}
}

// classify traduce errores de kafka-go a SendError.
// Los errores de red marcan el cliente como desconectado para forzar una reconexión.
func (c *KafkaClient) classify(err error) *sharedDomain.SendError {
	var writeErrs kafka.WriteErrors
	if errors.As(err, &writeErrs) {
		for _, e := range writeErrs {
			if e != nil {
				err = e
				break
			}
		}
	}

	switch {
	case errors.Is(err, kafka.UnknownTopicOrPartition),
		errors.Is(err, kafka.InvalidTopic),
		errors.Is(err, kafka.MessageSizeTooLarge),
		errors.Is(err, kafka.TopicAuthorizationFailed),
		errors.Is(err, kafka.InvalidMessage):
		return &sharedDomain.SendError{Retryable: false, Err: err}
	case errors.Is(err, context.DeadlineExceeded):
		return &sharedDomain.SendError{Retryable: true, Err: fmt.Errorf("ack timeout after %s: %w", c.cfg.SendTimeout, err)}
	case errors.Is(err, context.Canceled):
		return &sharedDomain.SendError{Retryable: false, Err: err}
	}

	var kErr kafka.Error
	if errors.As(err, &kErr) {
		return &sharedDomain.SendError{Retryable: kErr.Temporary(), Err: err}
	}

	if isNetworkError(err) {
		c.connected.Store(false)
		return &sharedDomain.SendError{Retryable: true, Err: err}
	}
	return &sharedDomain.SendError{Retryable: false, Err: err}
}

func isNetworkError(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE)
}

func (c *KafkaClient) Connected() bool {
	return c.connected.Load() && !c.closed.Load()
}

// Close libera writer y conexión de control. Es idempotente.
func (c *KafkaClient) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected.Store(false)

	var errs []error
	if c.writer != nil {
		errs = append(errs, c.writer.Close())
		c.writer = nil
	}
	if c.control != nil {
		errs = append(errs, c.control.Close())
		c.control = nil
	}
	c.log.Info("🛑 Kafka client cerrado")
	return errors.Join(errs...)
}

// Verificación estática
var _ sharedBus.BrokerClient = (*KafkaClient)(nil)
