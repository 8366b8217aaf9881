package relayer

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	sharedDomain "github.com/davicafu/orderbus/internal/shared/domain"
	sharedEvents "github.com/davicafu/orderbus/internal/shared/events"
)

// Republisher publica de nuevo un evento sin volver a guardarlo como dead letter.
type Republisher interface {
	Republish(ctx context.Context, evt sharedEvents.DomainEvent) (sharedEvents.PublishResult, error)
}

// ReplayReport resume una ejecución de ReplayBatch.
type ReplayReport struct {
	Fetched  int `json:"fetched"`
	Replayed int `json:"replayed"`
	Failed   int `json:"failed"`
}

// Replayer reenvía dead letters pendientes. Solo se ejecuta cuando un operador lo pide.
type Replayer struct {
	repo      sharedDomain.DeadLetterRepository
	publisher Republisher
	batchSize int
	log       *zap.Logger
}

func NewReplayer(repo sharedDomain.DeadLetterRepository, publisher Republisher, batchSize int, log *zap.Logger) *Replayer {
	if batchSize < 1 {
		batchSize = 50
	}
	return &Replayer{
		repo:      repo,
		publisher: publisher,
		batchSize: batchSize,
		log:       log,
	}
}

// Pending lista los dead letters aún no reenviados.
func (r *Replayer) Pending(ctx context.Context) ([]sharedDomain.DeadLetter, error) {
	return r.repo.FetchPending(ctx, r.batchSize)
}

// ReplayBatch reenvía un lote. Solo se marcan los que el broker confirmó;
// los demás siguen pendientes para la siguiente ejecución.
func (r *Replayer) ReplayBatch(ctx context.Context) (ReplayReport, error) {
	var report ReplayReport

	letters, err := r.repo.FetchPending(ctx, r.batchSize)
	if err != nil {
		return report, fmt.Errorf("fetch pending dead letters: %w", err)
	}
	report.Fetched = len(letters)
	if len(letters) > 0 {
		r.log.Info(fmt.Sprintf("📬 %d dead letters encontrados para reenviar", len(letters)))
	}

	for _, dl := range letters {
		if r.replayOne(ctx, dl) {
			report.Replayed++
		} else {
			report.Failed++
		}
	}
	return report, nil
}

func (r *Replayer) replayOne(ctx context.Context, dl sharedDomain.DeadLetter) bool {
	// 1. Reconstruir el evento desde los bytes guardados
	payload, err := sharedEvents.Unmarshal(dl.Payload)
	if err != nil {
		r.log.Error("Error al decodificar payload del dead letter", zap.String("dead_letter_id", dl.ID.String()), zap.Error(err))
		return false
	}
	// Mismo id que el envío original: si aquel llegó a entregarse, el consumidor descarta el duplicado.
	evt := sharedEvents.NewDomainEventWithID(dl.EventID, dl.Topic, dl.Key, payload, dl.CreatedAt)

	// 2. Publicar
	res, err := r.publisher.Republish(ctx, evt)
	if err != nil {
		r.log.Warn("⚠️ No se pudo reenviar dead letter",
			zap.String("dead_letter_id", dl.ID.String()),
			zap.String("key", dl.Key),
			zap.Int("attempts", res.Attempts),
			zap.Error(err),
		)
		return false
	}

	// 3. Marcar como reenviado
	if err := r.repo.MarkReplayed(ctx, dl.ID); err != nil {
		// Ya está en el broker; en el peor caso se reenviará otra vez (at-least-once).
		r.log.Warn("⚠️ No se pudo marcar dead letter como reenviado",
			zap.String("dead_letter_id", dl.ID.String()),
			zap.Error(err),
		)
		return true
	}
	r.log.Info("✅ Dead letter reenviado y marcado",
		zap.String("dead_letter_id", dl.ID.String()),
		zap.String("ack", res.AckToken),
	)
	return true
}
