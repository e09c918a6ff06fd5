package domain

import "time"

// Payload shapes for each event topic, serialized as the Event's JSON
// payload and deserialized again by repository projections and handlers.

type SchemaCreatedPayload struct {
	ID       string      `json:"id"`
	Name     string      `json:"name"`
	RootProp interface{} `json:"root_prop"`
}

type SchemaRootPropChangedPayload struct {
	ID       string      `json:"id"`
	RootProp interface{} `json:"root_prop"`
}

type SchemaDeletedPayload struct {
	ID string `json:"id"`
}

type ConfigCreatedPayload struct {
	ID       string  `json:"id"`
	SchemaID string  `json:"schema_id"`
	Name     string  `json:"name"`
	Data     Value   `json:"data"`
	Valid    bool    `json:"valid"`
	Password *string `json:"password,omitempty"` // bcrypt hash, never raw
}

type ConfigDataChangedPayload struct {
	ID       string `json:"id"`
	SchemaID string `json:"schema_id"`
	Data     Value  `json:"data"`
	Valid    bool   `json:"valid"`
}

type ConfigRevalidatedPayload struct {
	ID       string `json:"id"`
	SchemaID string `json:"schema_id"`
	Valid    bool   `json:"valid"`
}

type ConfigPasswordChangedPayload struct {
	ID       string `json:"id"`
	SchemaID string `json:"schema_id"`
	Password string `json:"password"` // bcrypt hash, never raw
}

type ConfigPasswordDeletedPayload struct {
	ID       string `json:"id"`
	SchemaID string `json:"schema_id"`
}

type ConfigDeletedPayload struct {
	ID       string `json:"id"`
	SchemaID string `json:"schema_id"`
}

// ConfigAccessedPayload carries the full recorded access so event-sourced
// backends can decide insert vs update: Previous is set iff the
// (source,instance) pair had already been seen and was pinged in place.
type ConfigAccessedPayload struct {
	ID        string     `json:"id"`
	SchemaID  string     `json:"schema_id"`
	Source    string     `json:"source"`
	Instance  string     `json:"instance"`
	Timestamp time.Time  `json:"timestamp"`
	Previous  *time.Time `json:"previous,omitempty"`
}

type ConfigAccessRemovedPayload struct {
	ID       string `json:"id"`
	SchemaID string `json:"schema_id"`
	Source   string `json:"source"`
	Instance string `json:"instance"`
}
