// Package consumer feeds order-management events from Kafka into the dispatcher.
package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"github.com/chrisdamba/foodispatch/internal/dispatch"
	"github.com/chrisdamba/foodispatch/internal/models"
)

// Dispatcher is the part of the dispatch service driven by inbound events.
type Dispatcher interface {
	CreateOffer(ctx context.Context, event models.OrderConfirmed) (*models.Offer, error)
	CompleteDelivery(ctx context.Context, orderID string, deliveredAt time.Time) (*models.EarningRecord, error)
	CancelOrder(ctx context.Context, orderID, reason string) error
}

var Topics = []string{
	models.TopicOrderConfirmed,
	models.TopicOrderDelivered,
	models.TopicOrderCancelled,
}

type Processor struct {
	group   sarama.ConsumerGroup
	topics  []string
	handler *Handler
}

func NewProcessor(config models.KafkaConfig, dispatcher Dispatcher) (*Processor, error) {
	cConfig := sarama.NewConfig()
	version, err := sarama.ParseKafkaVersion(config.Version)
	if err != nil {
		return nil, fmt.Errorf("failed to parse kafka version: %w", err)
	}
	cConfig.Version = version
	cConfig.Net.TLS.Enable = false
	cConfig.Consumer.Offsets.Initial = sarama.OffsetOldest
	if config.SessionTimeout > 0 {
		cConfig.Consumer.Group.Session.Timeout = config.SessionTimeout
	}

	group, err := sarama.NewConsumerGroup(config.Brokers, config.GroupID, cConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to start consumer: %w", err)
	}
	return NewProcessorFromGroup(group, dispatcher), nil
}

func NewProcessorFromGroup(group sarama.ConsumerGroup, dispatcher Dispatcher) *Processor {
	return &Processor{
		group:   group,
		topics:  Topics,
		handler: NewHandler(dispatcher),
	}
}

// Run consumes until ctx is cancelled or the group is closed.
func (p *Processor) Run(ctx context.Context) error {
	zap.L().Info("order event processor started", zap.Strings("topics", p.topics))
	for {
		// Consume returns on every rebalance and has to be called again to rejoin
		if err := p.group.Consume(ctx, p.topics, p.handler); err != nil {
			if errors.Is(err, sarama.ErrClosedConsumerGroup) {
				return nil
			}
			return fmt.Errorf("error from consumer: %w", err)
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

func (p *Processor) Close() error {
	return p.group.Close()
}

// Handler implements sarama.ConsumerGroupHandler.
type Handler struct {
	dispatcher Dispatcher
}

func NewHandler(dispatcher Dispatcher) *Handler {
	return &Handler{dispatcher: dispatcher}
}

// errMalformed marks events that can never be applied, however often they are redelivered.
var errMalformed = errors.New("malformed order event")

// settled reports whether a failed event should still be committed.
func settled(err error) bool {
	return errors.Is(err, errMalformed) || dispatch.IsPermanent(err)
}

func (h *Handler) Setup(sarama.ConsumerGroupSession) error {
	return nil
}

func (h *Handler) Cleanup(sarama.ConsumerGroupSession) error {
	return nil
}

func (h *Handler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case message, ok := <-claim.Messages():
			if !ok {
				return nil
			}
			if err := h.Handle(session.Context(), message); err != nil {
				if !settled(err) {
					// unmarked, so the next session starts again from this message
					zap.L().Error("order event failed, leaving it for redelivery",
						zap.String("topic", message.Topic),
						zap.Int32("partition", message.Partition),
						zap.Int64("offset", message.Offset),
						zap.Error(err))
					return fmt.Errorf("process %s offset %d: %w", message.Topic, message.Offset, err)
				}
				zap.L().Error("failed to process order event",
					zap.String("topic", message.Topic),
					zap.Int64("offset", message.Offset),
					zap.Error(err))
			}
			session.MarkMessage(message, "")
		case <-session.Context().Done():
			return nil
		}
	}
}

// Handle applies one event. Redelivered events that find the order already past the
// transition are not errors.
func (h *Handler) Handle(ctx context.Context, message *sarama.ConsumerMessage) error {
	switch message.Topic {
	case models.TopicOrderConfirmed:
		var event models.OrderConfirmed
		if err := json.Unmarshal(message.Value, &event); err != nil {
			return fmt.Errorf("decode order confirmed: %w: %w", errMalformed, err)
		}
		if event.OrderID == "" {
			return fmt.Errorf("order confirmed without order id: %w", errMalformed)
		}
		_, err := h.dispatcher.CreateOffer(ctx, event)
		if errors.Is(err, dispatch.ErrActiveOfferExists) || errors.Is(err, dispatch.ErrOrderNotWaiting) {
			zap.L().Info("duplicate order confirmation ignored", zap.String("order_id", event.OrderID))
			return nil
		}
		return err

	case models.TopicOrderDelivered:
		var event models.DeliveryCompleted
		if err := json.Unmarshal(message.Value, &event); err != nil {
			return fmt.Errorf("decode delivery completed: %w: %w", errMalformed, err)
		}
		deliveredAt := event.DeliveredAt
		if deliveredAt.IsZero() {
			deliveredAt = message.Timestamp
		}
		_, err := h.dispatcher.CompleteDelivery(ctx, event.OrderID, deliveredAt)
		return err

	case models.TopicOrderCancelled:
		var event models.OrderCancelled
		if err := json.Unmarshal(message.Value, &event); err != nil {
			return fmt.Errorf("decode order cancelled: %w: %w", errMalformed, err)
		}
		err := h.dispatcher.CancelOrder(ctx, event.OrderID, event.Reason)
		if errors.Is(err, dispatch.ErrOrderNotWaiting) {
			zap.L().Warn("cancellation after delivery ignored", zap.String("order_id", event.OrderID))
			return nil
		}
		return err

	default:
		zap.L().Warn("message from unexpected topic", zap.String("topic", message.Topic))
		return nil
	}
}
