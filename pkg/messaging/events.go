package messaging

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event types
const (
	// Stock events
	EventStockReceived = "warehouse.stock.received"
	EventStockIssued   = "warehouse.stock.issued"
	EventStockAdjusted = "warehouse.stock.adjusted"

	// Order events
	EventOrderReceived = "warehouse.order.received"

	// Outbound application events
	EventOutboundApproved = "warehouse.outbound.approved"
	EventOutboundRejected = "warehouse.outbound.rejected"
)

// Exchange names
const (
	ExchangeWarehouseEvents = "warehouse.events"
)

// Event is the base event structure
type Event struct {
	ID            string          `json:"id"`
	Type          string          `json:"type"`
	Source        string          `json:"source"`
	Timestamp     time.Time       `json:"timestamp"`
	CorrelationID string          `json:"correlation_id"`
	Data          json.RawMessage `json:"data"`
}

// NewEvent creates a new event with the given type and data
func NewEvent(eventType, source, correlationID string, data interface{}) (*Event, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return &Event{
		ID:            uuid.New().String(),
		Type:          eventType,
		Source:        source,
		Timestamp:     time.Now().UTC(),
		CorrelationID: correlationID,
		Data:          dataBytes,
	}, nil
}

// UnmarshalData unmarshals the event data into the provided struct
func (e *Event) UnmarshalData(v interface{}) error {
	return json.Unmarshal(e.Data, v)
}

// StockReceivedEvent is published when a qualified inbound receipt increases stock
type StockReceivedEvent struct {
	DocumentNumber string `json:"document_number"`
	DrugID         string `json:"drug_id"`
	BatchNumber    string `json:"batch_number"`
	Quantity       int    `json:"quantity"`
	NewQuantity    int    `json:"new_quantity"`
	AdmissionTier  string `json:"admission_tier"`
	OperatorID     string `json:"operator_id"`
}

// StockIssuedEvent is published when an outbound application is executed
type StockIssuedEvent struct {
	DocumentNumber string `json:"document_number"`
	DrugID         string `json:"drug_id"`
	BatchNumber    string `json:"batch_number"`
	Quantity       int    `json:"quantity"`
}

// StockAdjustedEvent is published when an inventory adjustment sets a batch quantity
type StockAdjustedEvent struct {
	DocumentNumber string `json:"document_number"`
	DrugID         string `json:"drug_id"`
	BatchNumber    string `json:"batch_number"`
	QuantityBefore int    `json:"quantity_before"`
	QuantityAfter  int    `json:"quantity_after"`
	Delta          int    `json:"delta"`
	OperatorID     string `json:"operator_id"`
}

// OrderReceivedEvent is published when every line of a purchase order is fully received
type OrderReceivedEvent struct {
	OrderID string `json:"order_id"`
}

// OutboundDecisionEvent is published when an outbound application is approved or rejected
type OutboundDecisionEvent struct {
	ApplicationID  string `json:"application_id"`
	DocumentNumber string `json:"document_number"`
	ApproverID     string `json:"approver_id"`
	Reason         string `json:"reason,omitempty"`
}
