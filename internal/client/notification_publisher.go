// Package client holds outbound integrations of the hiring workflow service.
package client

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// NotificationPublisher publishes workflow events to NATS for consumption by
// the portal's notification fan-out.
//
// Subject convention: notifications.hiring.<event_type>
// Event types: vaga_submit_for_approval, vaga_manager_approves,
// candidatura_submit_screening, candidatura_send_test, ...
//
// All publish operations are non-fatal: errors are logged but never
// propagated to the caller, so notification failures never interrupt
// workflow operations.
type NotificationPublisher struct {
	nc  *nats.Conn
	log zerolog.Logger
}

// NotificationEvent is the JSON schema published to NATS.
type NotificationEvent struct {
	EventType  string         `json:"event_type"`
	EntityType string         `json:"entity_type"`
	EntityID   string         `json:"entity_id"`
	ActorID    string         `json:"actor_id"`
	Severity   string         `json:"severity,omitempty"`
	Category   string         `json:"category,omitempty"`
	Payload    map[string]any `json:"payload,omitempty"`
}

// NewNotificationPublisher creates a publisher backed by the given NATS
// connection. A nil connection disables publishing.
func NewNotificationPublisher(nc *nats.Conn, log zerolog.Logger) *NotificationPublisher {
	return &NotificationPublisher{nc: nc, log: log}
}

// PublishWorkflowEvent publishes a hiring workflow event.
// Subject: notifications.hiring.<eventType>
func (p *NotificationPublisher) PublishWorkflowEvent(ctx context.Context, eventType, entityType, entityID, actorID string, payload map[string]any) {
	if p.nc == nil {
		return
	}

	event := &NotificationEvent{
		EventType:  eventType,
		EntityType: entityType,
		EntityID:   entityID,
		ActorID:    actorID,
		Severity:   "info",
		Category:   "hiring_workflow",
		Payload:    payload,
	}

	data, err := json.Marshal(event)
	if err != nil {
		p.log.Warn().Err(err).Str("event_type", eventType).Msg("notification: failed to marshal event")
		return
	}

	subject := fmt.Sprintf("notifications.hiring.%s", eventType)
	if err := p.nc.Publish(subject, data); err != nil {
		p.log.Warn().Err(err).
			Str("subject", subject).
			Str("entity_id", entityID).
			Msg("notification: failed to publish NATS event (non-fatal)")
		return
	}

	p.log.Debug().
		Str("subject", subject).
		Str("entity_id", entityID).
		Msg("notification: event published")
}
