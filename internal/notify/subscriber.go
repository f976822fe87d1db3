package notify

import (
	"context"
	"fmt"

	"marketplace/internal/events"

	"github.com/rs/zerolog"
)

// Enqueuer accepts messages for asynchronous delivery.
type Enqueuer interface {
	Enqueue(ctx context.Context, msg Message) error
}

// Subscriber turns booking events into queued emails.
type Subscriber struct {
	queue  Enqueuer
	logger *zerolog.Logger
}

func NewSubscriber(queue Enqueuer, logger *zerolog.Logger) *Subscriber {
	return &Subscriber{queue: queue, logger: logger}
}

// Register attaches the subscriber's handlers to bus.
func (s *Subscriber) Register(bus *events.EventBus) {
	bus.Subscribe(events.EventBookingCreated, s.onBookingCreated)
	bus.Subscribe(events.EventBookingStatusChanged, s.onBookingStatusChanged)
}

func (s *Subscriber) onBookingCreated(ctx context.Context, ev *events.Event) error {
	var p events.BookingEventPayload
	if err := ev.Decode(&p); err != nil {
		return fmt.Errorf("decode %s: %w", ev.Type, err)
	}
	if p.ProviderEmail == "" {
		s.logger.Warn().Int64("booking_id", p.BookingID).Msg("Provider has no email, skipping notification")
		return nil
	}
	return s.queue.Enqueue(ctx, BookingCreatedMessage(p))
}

func (s *Subscriber) onBookingStatusChanged(ctx context.Context, ev *events.Event) error {
	var p events.BookingEventPayload
	if err := ev.Decode(&p); err != nil {
		return fmt.Errorf("decode %s: %w", ev.Type, err)
	}
	if p.CustomerEmail == "" {
		s.logger.Warn().Int64("booking_id", p.BookingID).Msg("Customer has no email, skipping notification")
		return nil
	}
	return s.queue.Enqueue(ctx, BookingStatusMessage(p))
}
