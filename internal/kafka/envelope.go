package kafka

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Envelope is the wire shape for every domain event. Version 1.
type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // session or order id
	Payload       json.RawMessage `json:"payload"`
}

func NewEnvelope(producer, eventType, traceID, correlationID string, payload any) Envelope {
	return Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      producer,
		TraceID:       traceID,
		CorrelationID: correlationID,
		Payload:       MustMarshal(payload),
	}
}

// Partition key = aggregate id, so all events of one session/order stay
// ordered within a partition.
func PartitionKey(aggregateID string) []byte { return []byte(aggregateID) }
