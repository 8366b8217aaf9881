package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	infraEvents "github.com/davicafu/orderbus/internal/infra/events"
	orderDomain "github.com/davicafu/orderbus/internal/order/domain"
	sharedBus "github.com/davicafu/orderbus/internal/shared/infra/platform/bus"
	sharedCache "github.com/davicafu/orderbus/internal/shared/infra/platform/cache"
	sharedUtils "github.com/davicafu/orderbus/internal/shared/infra/utils"
)

// orderEnvelope solo lee el discriminador del payload.
type orderEnvelope struct {
	Type string `json:"type"`
}

type orderCreated struct {
	Identifier string  `json:"identifier"`
	Amount     float64 `json:"amount"`
}

// OrderConsumer aplica los eventos del topic de pedidos a la proyección en cache.
// Es idempotente: cada event_id se aplica como mucho una vez.
type OrderConsumer struct {
	cache sharedCache.Cache
	ttl   time.Duration
	log   *zap.Logger
}

var _ infraEvents.MessageHandler = (*OrderConsumer)(nil)

func NewOrderConsumer(cache sharedCache.Cache, ttl time.Duration, logger *zap.Logger) *OrderConsumer {
	return &OrderConsumer{
		cache: cache,
		ttl:   ttl,
		log:   logger,
	}
}

func (c *OrderConsumer) HandleMessage(ctx context.Context, msg sharedBus.Message) error {
	var base orderEnvelope
	if err := json.Unmarshal(msg.Value, &base); err != nil {
		c.log.Warn("Failed to unmarshal order event", zap.String("key", msg.Key), zap.Error(err))
		return nil
	}

	switch base.Type {
	case orderDomain.OrderCreated:
		return sharedUtils.UnmarshalAndHandle[orderCreated](c.log, msg.Value, func(evt orderCreated) error {
			return c.withContext(ctx, msg, func(ctxOrder context.Context) error {
				view := orderDomain.OrderView{
					Identifier: evt.Identifier,
					Amount:     evt.Amount,
					Status:     orderDomain.StatusCreated,
					EventID:    eventID(msg),
					Partition:  msg.Partition,
					Offset:     msg.Offset,
					UpdatedAt:  time.Now().UTC(),
				}
				return c.cache.Set(ctxOrder, orderDomain.CacheKeyByID(evt.Identifier), view, c.ttl)
			}, "Order projected from event")
		})

	default:
		c.log.Warn("Unknown event type", zap.String("type", base.Type), zap.String("key", msg.Key))
		return nil
	}
}

// withContext aplica la acción una sola vez por event_id.
// Si la acción falla se libera la marca para que la reentrega vuelva a intentarlo.
func (c *OrderConsumer) withContext(ctx context.Context, msg sharedBus.Message, action func(ctx context.Context) error, successMsg string) error {
	ctxOrder, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()

	id := eventID(msg)
	marker := orderDomain.CacheKeyByEvent(id)

	// ✅ LÓGICA DE IDEMPOTENCIA: marcar antes de aplicar
	first, err := c.cache.SetIfAbsent(ctxOrder, marker, true, c.ttl)
	if err != nil {
		return fmt.Errorf("dedup check for %s: %w", id, err)
	}
	if !first {
		c.log.Info("Evento duplicado ignorado", zap.String("event_id", id), zap.String("key", msg.Key))
		return nil
	}

	if err := action(ctxOrder); err != nil {
		_ = c.cache.Delete(ctxOrder, marker)
		c.log.Warn("Failed to process order event",
			zap.String("event_id", id),
			zap.String("key", msg.Key),
			zap.Error(err),
		)
		return err
	}

	c.log.Info(successMsg,
		zap.String("event_id", id),
		zap.String("key", msg.Key),
		zap.Int("partition", msg.Partition),
		zap.Int64("offset", msg.Offset),
	)
	return nil
}

// eventID usa la cabecera event_id y, si falta, la posición del mensaje en el log.
func eventID(msg sharedBus.Message) string {
	if id := msg.Headers[sharedBus.HeaderEventID]; id != "" {
		return id
	}
	return fmt.Sprintf("%s/%d/%d", msg.Topic, msg.Partition, msg.Offset)
}
