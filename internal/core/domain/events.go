package domain

import (
	"encoding/json"
	"time"
)

// Topic names, stable across the event bus and both SchemaRepository
// backends.
const (
	TopicSchemaCreated        = "schema.created"
	TopicSchemaRootPropChange = "schema.root_prop_changed"
	TopicSchemaDeleted        = "schema.deleted"
	TopicConfigCreated        = "config.created"
	TopicConfigDataChanged    = "config.data_changed"
	TopicConfigRevalidated    = "config.revalidated"
	TopicConfigPasswordChange = "config.password_changed"
	TopicConfigPasswordDelete = "config.password_deleted"
	TopicConfigDeleted        = "config.deleted"
	TopicConfigAccessed       = "config.accessed"
	TopicConfigAccessRemoved  = "config.access_removed"
)

// Event is an immutable record of a state change, emitted by an aggregate
// and consumed by handlers. Payload is the JSON-serialized form of a
// topic-specific struct.
type Event struct {
	ID        string
	EntityID  string
	Topic     string
	Payload   []byte
	Timestamp time.Time
}

// NewEvent validates every field is non-empty, matching the domain
// invariant that no event is ever half-built.
func NewEvent(id, entityID, topic string, payload []byte, timestamp time.Time) (Event, error) {
	if id == "" || entityID == "" || topic == "" || len(payload) == 0 {
		return Event{}, NewError(CodeInvalidEvent, "event fields must not be empty")
	}
	return Event{ID: id, EntityID: entityID, Topic: topic, Payload: payload, Timestamp: timestamp}, nil
}

// CreateEvent generates a fresh Id and serializes payload as JSON.
func CreateEvent(entityID, topic string, payload interface{}, now time.Time) (Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, WrapError(CodeSerde, "failed to serialize event payload", err)
	}
	return NewEvent(GenerateId().Value(), entityID, topic, data, now)
}

// DeserializePayload decodes Payload into dest.
func (e Event) DeserializePayload(dest interface{}) error {
	if err := json.Unmarshal(e.Payload, dest); err != nil {
		return WrapError(CodeSerde, "failed to deserialize event payload", err)
	}
	return nil
}

// EventCollector is an in-aggregate FIFO buffer of domain events, drained
// once per save cycle by the application layer. The aggregate only ever
// records into it; it never publishes directly, keeping no ambient global
// state.
type EventCollector struct {
	events []Event
}

// Record appends an event to the buffer.
func (c *EventCollector) Record(e Event) {
	c.events = append(c.events, e)
}

// Events drains and returns the buffered events.
func (c *EventCollector) Events() []Event {
	drained := c.events
	c.events = nil
	return drained
}

// Peek returns the buffered events without draining, useful for tests.
func (c *EventCollector) Peek() []Event {
	return c.events
}
