package event

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/erp/stocksync/internal/domain/inventory"
	"github.com/erp/stocksync/internal/domain/shared"
	"github.com/google/uuid"
)

// Envelope is the wire form of a domain event
type Envelope struct {
	EventID       uuid.UUID       `json:"event_id"`
	EventType     string          `json:"event_type"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   uuid.UUID       `json:"aggregate_id"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Payload       json.RawMessage `json:"payload"`
}

// Serializer encodes domain events into envelopes and decodes them back
// into the registered concrete types
type Serializer struct {
	mu    sync.RWMutex
	types map[string]reflect.Type
}

// NewSerializer creates a serializer with no registered types
func NewSerializer() *Serializer {
	return &Serializer{types: make(map[string]reflect.Type)}
}

// NewInventorySerializer creates a serializer that knows every inventory event
func NewInventorySerializer() *Serializer {
	s := NewSerializer()
	s.Register(inventory.EventTypeInventoryUpdated, &inventory.InventoryUpdatedEvent{})
	s.Register(inventory.EventTypeLowStockAlert, &inventory.LowStockAlertEvent{})
	s.Register(inventory.EventTypeTransferCompleted, &inventory.TransferCompletedEvent{})
	return s
}

// Register maps eventType to the concrete type of prototype
func (s *Serializer) Register(eventType string, prototype shared.DomainEvent) {
	t := reflect.TypeOf(prototype)
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	s.mu.Lock()
	s.types[eventType] = t
	s.mu.Unlock()
}

// Encode wraps event in an envelope and marshals it
func (s *Serializer) Encode(event shared.DomainEvent) ([]byte, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", event.EventType(), err)
	}
	return json.Marshal(Envelope{
		EventID:       event.EventID(),
		EventType:     event.EventType(),
		AggregateType: event.AggregateType(),
		AggregateID:   event.AggregateID(),
		OccurredAt:    event.OccurredAt(),
		Payload:       payload,
	})
}

// Decode unmarshals an envelope into its registered event type
func (s *Serializer) Decode(data []byte) (shared.DomainEvent, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("unmarshal envelope: %w", err)
	}

	s.mu.RLock()
	t, ok := s.types[env.EventType]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown event type: %s", env.EventType)
	}

	ptr := reflect.New(t).Interface()
	if err := json.Unmarshal(env.Payload, ptr); err != nil {
		return nil, fmt.Errorf("unmarshal %s payload: %w", env.EventType, err)
	}
	event, ok := ptr.(shared.DomainEvent)
	if !ok {
		return nil, fmt.Errorf("%s does not implement DomainEvent", t)
	}
	return event, nil
}
