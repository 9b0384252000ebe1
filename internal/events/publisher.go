package events

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"server/internal/domain"
)

// publishTimeout bounds the broker round trip including the confirm wait.
// It is the only explicit deadline on the generation path.
const publishTimeout = 60 * time.Second

// Broker sends one message body to the persistence queue and does not
// return until the broker has confirmed it, or the context expires.
type Broker interface {
	Publish(ctx context.Context, body []byte) error
}

// AMQPBroker publishes persistent JSON messages to a single declared queue
// and waits on publisher confirms.
type AMQPBroker struct {
	channel *amqp.Channel
	queue   string
}

// NewAMQPBroker wraps a channel that already has confirm mode enabled and
// the target queue declared.
func NewAMQPBroker(channel *amqp.Channel, queue string) *AMQPBroker {
	return &AMQPBroker{channel: channel, queue: queue}
}

func (b *AMQPBroker) Publish(ctx context.Context, body []byte) error {
	confirmation, err := b.channel.PublishWithDeferredConfirmWithContext(ctx, "", b.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish to %s: %w", b.queue, err)
	}
	acked, err := confirmation.WaitContext(ctx)
	if err != nil {
		return fmt.Errorf("await confirm: %w", err)
	}
	if !acked {
		return fmt.Errorf("broker nacked publish to %s", b.queue)
	}
	return nil
}

// Publisher turns domain events into queue envelopes. It mints generation
// ids so the worker can deduplicate redelivered messages.
type Publisher struct {
	broker Broker
	logger zerolog.Logger
	now    func() time.Time
	newID  func() string
}

// Options wires a Publisher. Now and NewID default to the wall clock and
// random UUIDs; tests override them.
type Options struct {
	Broker Broker
	Logger zerolog.Logger
	Now    func() time.Time
	NewID  func() string
}

func NewPublisher(opts Options) *Publisher {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	newID := opts.NewID
	if newID == nil {
		newID = uuid.NewString
	}
	return &Publisher{
		broker: opts.Broker,
		logger: opts.Logger,
		now:    now,
		newID:  newID,
	}
}

// PublishSaveGeneration mints a generation id, wraps the image in a
// SAVE_GENERATION envelope and publishes it. The minted id is returned even
// when the publish fails so callers can log it.
func (p *Publisher) PublishSaveGeneration(ctx context.Context, userID, workflowID, materialID string, image []byte) (string, error) {
	generationID := p.newID()
	stamp := p.now().UTC().Format(time.RFC3339)

	payload := domain.SaveGenerationPayload{
		GenerationID: generationID,
		UserID:       userID,
		WorkflowID:   workflowID,
		MaterialID:   materialID,
		ImageBase64:  base64.StdEncoding.EncodeToString(image),
		CreatedAt:    stamp,
		UpdatedAt:    stamp,
	}
	if err := p.publish(ctx, domain.EventTypeSaveGeneration, payload); err != nil {
		return generationID, err
	}

	p.logger.Debug().
		Str("generation_id", generationID).
		Str("workflow_id", workflowID).
		Int("image_bytes", len(image)).
		Msg("events: save generation published")
	return generationID, nil
}

// PublishCreateWorkflow mirrors a freshly created workflow onto the queue
// so the worker owns the catalog write.
func (p *Publisher) PublishCreateWorkflow(ctx context.Context, wf domain.Workflow) error {
	payload := domain.WorkflowPayload{
		ID:               wf.ID,
		UserID:           wf.UserID,
		Name:             wf.Name,
		SketchBlobPath:   wf.SketchBlobPath,
		Status:           wf.Status,
		GenerationsCount: wf.GenerationsCount,
		CreatedAt:        wf.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:        wf.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if err := p.publish(ctx, domain.EventTypeCreateWorkflow, payload); err != nil {
		return err
	}

	p.logger.Debug().
		Str("workflow_id", wf.ID).
		Msg("events: create workflow published")
	return nil
}

func (p *Publisher) publish(ctx context.Context, eventType string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	body, err := json.Marshal(domain.Envelope{Type: eventType, Payload: raw})
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	if err := p.broker.Publish(ctx, body); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrPublishFailed, err)
	}
	return nil
}
