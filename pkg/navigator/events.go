package navigator

import (
	"context"
	"time"

	"addrscope/pkg/models"
)

// EventType defines the type of event being broadcast.
type EventType string

const (
	EventRendered        EventType = "rendered"
	EventSessionReplaced EventType = "session_replaced"
	EventStaleDiscarded  EventType = "stale_discarded"
)

// Event is published after every transition of a user's session. Origin names
// the connection that asked for it, when the caller set one.
type Event struct {
	Type    EventType             `json:"type"`
	User    string                `json:"user"`
	Origin  string                `json:"origin,omitempty"`
	Payload *models.RenderPayload `json:"payload,omitempty"`
	Time    time.Time             `json:"time"`
}

// Subscriber is a channel that receives events.
type Subscriber chan Event

type originKey struct{}

// WithOrigin tags the events a transition publishes with origin, so the
// requester can skip the copy it already got as a return value.
func WithOrigin(ctx context.Context, origin string) context.Context {
	return context.WithValue(ctx, originKey{}, origin)
}

func originFrom(ctx context.Context) string {
	s, _ := ctx.Value(originKey{}).(string)
	return s
}
