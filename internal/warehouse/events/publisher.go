package events

import (
	"context"

	"github.com/pharmstock/pharmstock-backend/pkg/logger"
	"github.com/pharmstock/pharmstock-backend/pkg/messaging"
)

// WarehouseEventPublisher publishes warehouse stock and document events
type WarehouseEventPublisher struct {
	publisher *messaging.Publisher
	logger    *logger.Logger
}

// NewWarehouseEventPublisher creates a new warehouse event publisher
func NewWarehouseEventPublisher(rmq *messaging.RabbitMQ, log *logger.Logger) (*WarehouseEventPublisher, error) {
	publisher, err := messaging.NewPublisher(rmq, messaging.ExchangeWarehouseEvents, "warehouse-service", log)
	if err != nil {
		return nil, err
	}

	return &WarehouseEventPublisher{
		publisher: publisher,
		logger:    log,
	}, nil
}

// PublishStockReceived publishes a stock received event
func (p *WarehouseEventPublisher) PublishStockReceived(ctx context.Context, data messaging.StockReceivedEvent) {
	if p == nil {
		return
	}
	if err := p.publisher.Publish(ctx, messaging.EventStockReceived, data); err != nil {
		p.logger.Error().Err(err).Str("document_number", data.DocumentNumber).Msg("failed to publish stock received event")
	}
}

// PublishStockIssued publishes a stock issued event
func (p *WarehouseEventPublisher) PublishStockIssued(ctx context.Context, data messaging.StockIssuedEvent) {
	if p == nil {
		return
	}
	if err := p.publisher.Publish(ctx, messaging.EventStockIssued, data); err != nil {
		p.logger.Error().Err(err).Str("document_number", data.DocumentNumber).Msg("failed to publish stock issued event")
	}
}

// PublishStockAdjusted publishes a stock adjusted event
func (p *WarehouseEventPublisher) PublishStockAdjusted(ctx context.Context, data messaging.StockAdjustedEvent) {
	if p == nil {
		return
	}
	if err := p.publisher.Publish(ctx, messaging.EventStockAdjusted, data); err != nil {
		p.logger.Error().Err(err).Str("document_number", data.DocumentNumber).Msg("failed to publish stock adjusted event")
	}
}

// PublishOrderReceived publishes an order fully received event
func (p *WarehouseEventPublisher) PublishOrderReceived(ctx context.Context, orderID string) {
	if p == nil {
		return
	}
	data := messaging.OrderReceivedEvent{OrderID: orderID}
	if err := p.publisher.Publish(ctx, messaging.EventOrderReceived, data); err != nil {
		p.logger.Error().Err(err).Str("order_id", orderID).Msg("failed to publish order received event")
	}
}

// PublishOutboundApproved publishes an outbound approved event
func (p *WarehouseEventPublisher) PublishOutboundApproved(ctx context.Context, data messaging.OutboundDecisionEvent) {
	if p == nil {
		return
	}
	if err := p.publisher.Publish(ctx, messaging.EventOutboundApproved, data); err != nil {
		p.logger.Error().Err(err).Str("application_id", data.ApplicationID).Msg("failed to publish outbound approved event")
	}
}

// PublishOutboundRejected publishes an outbound rejected event
func (p *WarehouseEventPublisher) PublishOutboundRejected(ctx context.Context, data messaging.OutboundDecisionEvent) {
	if p == nil {
		return
	}
	if err := p.publisher.Publish(ctx, messaging.EventOutboundRejected, data); err != nil {
		p.logger.Error().Err(err).Str("application_id", data.ApplicationID).Msg("failed to publish outbound rejected event")
	}
}
