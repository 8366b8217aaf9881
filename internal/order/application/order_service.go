package application

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/davicafu/orderbus/internal/order/domain"
	sharedEvents "github.com/davicafu/orderbus/internal/shared/events"
	sharedCache "github.com/davicafu/orderbus/internal/shared/infra/platform/cache"
)

// CreateOrderCommand es la petición ya decodificada por la capa HTTP.
type CreateOrderCommand struct {
	Identifier string
	Amount     float64
}

// OrderAccepted se devuelve solo cuando el broker confirmó el evento.
type OrderAccepted struct {
	Identifier string `json:"identifier"`
	AckToken   string `json:"-"`
	Partition  int    `json:"-"`
	Attempts   int    `json:"-"`
}

// OrderService define los casos de uso relacionados con Order.
type OrderService struct {
	publisher domain.EventPublisher
	cache     sharedCache.Cache
	topic     string
	log       *zap.Logger
}

func NewOrderService(publisher domain.EventPublisher, cache sharedCache.Cache, topic string, log *zap.Logger) *OrderService {
	if topic == "" {
		topic = domain.DefaultOrderTopic
	}
	return &OrderService{
		publisher: publisher,
		cache:     cache,
		topic:     topic,
		log:       log,
	}
}

// CreateOrder construye el evento order.created con key = identificador y lo publica.
// Nunca devuelve éxito si el publisher no lo confirmó.
func (s *OrderService) CreateOrder(ctx context.Context, cmd CreateOrderCommand) (*OrderAccepted, error) {
	order := &domain.Order{
		Identifier: strings.TrimSpace(cmd.Identifier),
		Amount:     cmd.Amount,
		CreatedAt:  time.Now().UTC(),
	}

	evt := sharedEvents.NewDomainEventAt(s.topic, order.PartitionKey(), order.CreatedPayload(), order.CreatedAt)

	result, err := s.publisher.Publish(ctx, evt)
	if err != nil {
		s.log.Warn("Order not accepted",
			zap.String("identifier", order.Identifier),
			zap.Int("attempts", result.Attempts),
			zap.Error(err),
		)
		return nil, err
	}

	s.log.Info("📦 Order accepted",
		zap.String("identifier", order.Identifier),
		zap.String("ack", result.AckToken),
		zap.Int("attempts", result.Attempts),
	)
	return &OrderAccepted{
		Identifier: order.Identifier,
		AckToken:   result.AckToken,
		Partition:  result.Partition,
		Attempts:   result.Attempts,
	}, nil
}

// GetOrder lee la proyección mantenida por el consumidor.
func (s *OrderService) GetOrder(ctx context.Context, identifier string) (*domain.OrderView, error) {
	if s.cache == nil {
		return nil, domain.ErrOrderNotFound
	}
	var view domain.OrderView
	hit, err := s.cache.Get(ctx, domain.CacheKeyByID(identifier), &view)
	if err != nil {
		return nil, err
	}
	if !hit {
		return nil, domain.ErrOrderNotFound
	}
	return &view, nil
}
