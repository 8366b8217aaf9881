package events

import (
	"context"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	sharedBus "github.com/davicafu/orderbus/internal/shared/infra/platform/bus"
)

// MessageHandler define la interfaz que debe cumplir cualquier consumidor de eventos (como OrderConsumer).
type MessageHandler interface {
	HandleMessage(ctx context.Context, msg sharedBus.Message) error
}

// MessageReader es la parte de *kafka.Reader que usa el adapter.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Config() kafka.ReaderConfig
}

// ConsumerAdapter es el "oído" que escucha en Kafka.
type ConsumerAdapter struct {
	reader  MessageReader
	handler MessageHandler
	log     *zap.Logger
}

func NewConsumerAdapter(reader MessageReader, handler MessageHandler, log *zap.Logger) *ConsumerAdapter {
	return &ConsumerAdapter{
		reader:  reader,
		handler: handler,
		log:     log,
	}
}

// Start inicia el bucle de consumo de mensajes en una goroutine.
// El offset solo se confirma cuando el handler termina sin error (at-least-once).
func (c *ConsumerAdapter) Start(ctx context.Context) {
	c.log.Info("🎧 Iniciando consumidor de Kafka...",
		zap.String("topic", c.reader.Config().Topic),
		zap.Strings("brokers", c.reader.Config().Brokers),
	)

	go func() {
		for {
			if !c.consumeOne(ctx) {
				return
			}
		}
	}()
}

// consumeOne procesa un mensaje. Devuelve false cuando el consumidor debe parar.
func (c *ConsumerAdapter) consumeOne(ctx context.Context) bool {
	msg, err := c.reader.FetchMessage(ctx)
	if err != nil {
		// Si el contexto se cancela, el error es normal y salimos limpiamente.
		if ctx.Err() != nil {
			c.log.Info("Consumidor de Kafka detenido.", zap.String("topic", c.reader.Config().Topic))
			return false
		}
		c.log.Error("Error al leer mensaje de Kafka", zap.Error(err))
		return true
	}

	msgCtx := ExtractTraceContext(ctx, msg.Headers)
	in := sharedBus.Message{
		Topic:     msg.Topic,
		Key:       string(msg.Key),
		Value:     msg.Value,
		Headers:   headersToMap(msg.Headers),
		Partition: msg.Partition,
		Offset:    msg.Offset,
	}

	if err := c.handler.HandleMessage(msgCtx, in); err != nil {
		// Sin commit: el mensaje se volverá a entregar tras un rebalanceo o reinicio.
		c.log.Warn("⚠️ Error procesando mensaje, no se confirma el offset",
			zap.String("topic", msg.Topic),
			zap.Int("partition", msg.Partition),
			zap.Int64("offset", msg.Offset),
			zap.Error(err),
		)
		return true
	}

	if err := c.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
		c.log.Warn("⚠️ Error confirmando offset", zap.Error(err))
	}
	return true
}

// BackgroundConsumerChan consume del broker en memoria.
func BackgroundConsumerChan(ctx context.Context, ch <-chan sharedBus.Message, handler MessageHandler, log *zap.Logger) {
	go func() {
		for {
			select {
			case <-ctx.Done():
				log.Info("Consumidor en memoria detenido")
				return
			case msg, ok := <-ch:
				if !ok {
					log.Info("Canal del broker en memoria cerrado")
					return
				}
				if err := handler.HandleMessage(ctx, msg); err != nil {
					log.Warn("⚠️ Error procesando mensaje en memoria",
						zap.String("topic", msg.Topic),
						zap.String("key", msg.Key),
						zap.Error(err),
					)
				}
			}
		}
	}()
}
