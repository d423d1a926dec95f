package realtime

import (
	"encoding/json"

	"github.com/keyforge/keyforge/internal/model"
)

// Inbound event names.
const (
	EventJoin   = "join"
	EventUpdate = "update"
	EventLeave  = "leave"
)

// Outbound event names.
const (
	EventSynced            = "synced"
	EventUpdated           = "updated"
	EventParticipantJoined = "participant_joined"
	EventParticipantLeft   = "participant_left"
	EventError             = "error"
)

// Envelope is the wire frame for every realtime message, both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type JoinPayload struct {
	Token  string `json:"token"`
	UserID string `json:"user_id,omitempty"`
}

type UpdatePayload struct {
	Token string          `json:"token"`
	State json.RawMessage `json:"state"`
}

type SyncedPayload struct {
	ConfigID string          `json:"config_id"`
	State    json.RawMessage `json:"state"`
	Role     model.Role      `json:"role"`
}

type UpdatedPayload struct {
	State     json.RawMessage `json:"state"`
	UpdatedBy string          `json:"updated_by,omitempty"`
}

type ParticipantJoinedPayload struct {
	ConnID string     `json:"conn_id"`
	UserID string     `json:"user_id,omitempty"`
	Role   model.Role `json:"role"`
}

type ParticipantLeftPayload struct {
	ConnID string `json:"conn_id"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

func mustEnvelope(event string, payload interface{}) Envelope {
	data, err := json.Marshal(payload)
	if err != nil {
		// payload types here are all marshalable structs
		panic(err)
	}
	return Envelope{Event: event, Data: data}
}

func errorEnvelope(message string) Envelope {
	return mustEnvelope(EventError, ErrorPayload{Message: message})
}
