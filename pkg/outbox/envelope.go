package outbox

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SchemaVersion is the newest envelope layout consumers understand.
const SchemaVersion = 1

// ActorRef identifies who caused the event.
type ActorRef struct {
	UserID uuid.UUID `json:"userId"`
	Email  string    `json:"email,omitempty"`
	Admin  bool      `json:"admin,omitempty"`
}

// PayloadEnvelope is stored in outbox_events.payload and published as the
// message body unchanged.
type PayloadEnvelope struct {
	Version    int             `json:"version"`
	EventID    string          `json:"eventId"`
	OccurredAt time.Time       `json:"occurredAt"`
	Actor      *ActorRef       `json:"actor,omitempty"`
	Data       json.RawMessage `json:"data"`
}

// seal wraps data for storage. A zero version means SchemaVersion.
func seal(version int, at time.Time, actor *ActorRef, data any) (PayloadEnvelope, error) {
	if version == 0 {
		version = SchemaVersion
	}
	if version < 0 || version > SchemaVersion {
		return PayloadEnvelope{}, fmt.Errorf("unsupported schema version %d", version)
	}
	body, err := json.Marshal(data)
	if err != nil {
		return PayloadEnvelope{}, err
	}
	return PayloadEnvelope{
		Version:    version,
		EventID:    uuid.NewString(),
		OccurredAt: at.UTC(),
		Actor:      actor,
		Data:       body,
	}, nil
}
