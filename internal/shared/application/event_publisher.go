package application

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	sharedDomain "github.com/davicafu/orderbus/internal/shared/domain"
	sharedEvents "github.com/davicafu/orderbus/internal/shared/events"
	sharedBus "github.com/davicafu/orderbus/internal/shared/infra/platform/bus"
	sharedUtils "github.com/davicafu/orderbus/internal/shared/infra/utils"
)

// PayloadValidator valida un payload contra el schema de su topic.
type PayloadValidator interface {
	Validate(topic string, payload map[string]interface{}) error
}

// publishAttempt solo vive durante una llamada a Publish.
type publishAttempt struct {
	event        sharedEvents.DomainEvent
	attemptCount int
	lastError    error
}

// EventPublisher convierte un DomainEvent en un resultado de publicación definitivo.
// Garantía: at-least-once hacia el broker. Si devuelve éxito el broker confirmó el mensaje;
// si devuelve error no habrá más reintentos automáticos.
type EventPublisher struct {
	broker      sharedBus.BrokerClient
	schemas     PayloadValidator
	deadLetters sharedDomain.DeadLetterRepository // opcional
	policy      sharedUtils.BackoffPolicy
	metrics     *Metrics
	locks       *keyLocker
	log         *zap.Logger
}

func NewEventPublisher(
	broker sharedBus.BrokerClient,
	schemas PayloadValidator,
	deadLetters sharedDomain.DeadLetterRepository,
	policy sharedUtils.BackoffPolicy,
	metrics *Metrics,
	log *zap.Logger,
) *EventPublisher {
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	return &EventPublisher{
		broker:      broker,
		schemas:     schemas,
		deadLetters: deadLetters,
		policy:      policy,
		metrics:     metrics,
		locks:       newKeyLocker(),
		log:         log,
	}
}

// Publish valida, serializa y envía el evento con reintentos acotados.
// Los fallos definitivos se guardan como dead letter si hay repositorio configurado.
func (p *EventPublisher) Publish(ctx context.Context, evt sharedEvents.DomainEvent) (sharedEvents.PublishResult, error) {
	return p.publish(ctx, evt, true)
}

// Republish es Publish sin dead-lettering; lo usa el replayer para no duplicar entradas.
func (p *EventPublisher) Republish(ctx context.Context, evt sharedEvents.DomainEvent) (sharedEvents.PublishResult, error) {
	return p.publish(ctx, evt, false)
}

func (p *EventPublisher) publish(ctx context.Context, evt sharedEvents.DomainEvent, deadLetter bool) (sharedEvents.PublishResult, error) {
	start := time.Now()
	topic := evt.Topic()
	defer func() {
		p.metrics.latency.WithLabelValues(topic).Observe(time.Since(start).Seconds())
	}()

	// 1. Validación: sin llamada de red si falla
	if evt.Key() == "" {
		p.metrics.results.WithLabelValues(topic, outcomeInvalid).Inc()
		return sharedEvents.PublishResult{}, sharedDomain.NewValidationError("key", "required")
	}
	payload := evt.Payload()
	if err := p.schemas.Validate(topic, payload); err != nil {
		p.metrics.results.WithLabelValues(topic, outcomeInvalid).Inc()
		return sharedEvents.PublishResult{}, err
	}

	// 2. Serialización determinista
	value, err := sharedEvents.Marshal(payload)
	if err != nil {
		p.metrics.results.WithLabelValues(topic, outcomeInvalid).Inc()
		return sharedEvents.PublishResult{}, sharedDomain.NewValidationError("payload", err.Error())
	}

	// Misma key: publicaciones en serie, incluidos los reintentos.
	// Si el llamador cancela mientras espera la key, o antes del primer envío, no se manda nada.
	unlock, err := p.locks.Lock(ctx, evt.Key())
	if err != nil {
		p.metrics.results.WithLabelValues(topic, outcomeCancelled).Inc()
		return sharedEvents.PublishResult{}, err
	}
	defer unlock()
	if err := ctx.Err(); err != nil {
		p.metrics.results.WithLabelValues(topic, outcomeCancelled).Inc()
		return sharedEvents.PublishResult{}, err
	}
	// A partir de aquí el envío termina aunque la petición original se cancele.
	sendCtx := context.WithoutCancel(ctx)

	// 3. Envío con reintentos
	// Todos los intentos comparten el id del evento (cabecera event_id).
	env := sharedBus.Envelope{ID: evt.ID(), Topic: topic, Key: evt.Key(), Value: value}
	attempt := &publishAttempt{event: evt}
	var ack sharedBus.Ack
	_, err = sharedUtils.Retry(sendCtx, p.policy, sharedDomain.IsRetryable, func(int) error {
		attempt.attemptCount++
		p.metrics.attempts.WithLabelValues(topic).Inc()

		a, sendErr := p.broker.Send(sendCtx, env)
		if sendErr != nil {
			attempt.lastError = sendErr
			p.log.Debug("Send attempt failed",
				zap.String("topic", topic),
				zap.String("key", evt.Key()),
				zap.String("event_id", evt.ID()),
				zap.Int("attempt", attempt.attemptCount),
				zap.Error(sendErr),
			)
			return sendErr
		}
		ack = a
		return nil
	})

	result := sharedEvents.PublishResult{Attempts: attempt.attemptCount, Partition: -1}
	if err != nil {
		outcome := outcomeRejected
		if sharedDomain.IsRetryable(err) {
			outcome = outcomeExhausted
		}
		p.metrics.results.WithLabelValues(topic, outcome).Inc()
		p.log.Error("❌ Publicación fallida",
			zap.String("topic", topic),
			zap.String("key", evt.Key()),
			zap.String("event_id", evt.ID()),
			zap.String("outcome", outcome),
			zap.Int("attempts", attempt.attemptCount),
			zap.Error(attempt.lastError),
		)
		if deadLetter {
			p.saveDeadLetter(sendCtx, attempt, value)
		}
		return result, fmt.Errorf("publish %s key=%s failed after %d attempts: %w", topic, evt.Key(), attempt.attemptCount, err)
	}

	// 4. Éxito
	p.metrics.results.WithLabelValues(topic, outcomeAcked).Inc()
	result.AckToken = ack.Token
	result.Partition = ack.Partition
	p.log.Debug("Event published successfully",
		zap.String("topic", topic),
		zap.String("key", evt.Key()),
		zap.String("ack", ack.Token),
		zap.Int("attempts", attempt.attemptCount),
	)
	return result, nil
}

func (p *EventPublisher) saveDeadLetter(ctx context.Context, attempt *publishAttempt, value []byte) {
	if p.deadLetters == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	dl := sharedDomain.DeadLetter{
		ID:        uuid.New(),
		EventID:   attempt.event.ID(),
		Topic:     attempt.event.Topic(),
		Key:       attempt.event.Key(),
		Payload:   value,
		Attempts:  attempt.attemptCount,
		Retryable: sharedDomain.IsRetryable(attempt.lastError),
		CreatedAt: time.Now().UTC(),
	}
	if attempt.lastError != nil {
		dl.LastError = attempt.lastError.Error()
	}
	if err := p.deadLetters.Save(ctx, dl); err != nil {
		p.log.Warn("⚠️ No se pudo guardar el dead letter",
			zap.String("topic", dl.Topic),
			zap.String("key", dl.Key),
			zap.Error(err),
		)
	}
}
