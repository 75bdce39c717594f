package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// OutboxEvent is a realtime event recorded in the same transaction as the state change
// it announces. DispatchedAt stays nil until the broadcaster accepted it.
type OutboxEvent struct {
	ID           uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	EventType    string     `gorm:"size:40;not null;index" json:"event_type"`
	AggregateID  uuid.UUID  `gorm:"type:uuid;not null;index" json:"aggregate_id"`
	Payload      string     `gorm:"type:text;not null" json:"payload"`
	Audience     string     `gorm:"type:text;not null" json:"audience"`
	Attempts     int        `gorm:"not null;default:0" json:"attempts"`
	LastError    string     `gorm:"type:text" json:"last_error"`
	DispatchedAt *time.Time `gorm:"index" json:"dispatched_at"`
	CreatedAt    time.Time  `gorm:"index" json:"created_at"`
}

func (e *OutboxEvent) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}

func NewOutboxEvent(eventType string, aggregateID uuid.UUID, payload interface{}, audience []uuid.UUID) (OutboxEvent, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return OutboxEvent{}, err
	}
	if audience == nil {
		audience = []uuid.UUID{}
	}
	members, err := json.Marshal(audience)
	if err != nil {
		return OutboxEvent{}, err
	}
	return OutboxEvent{
		ID:          uuid.New(),
		EventType:   eventType,
		AggregateID: aggregateID,
		Payload:     string(body),
		Audience:    string(members),
	}, nil
}

func (e *OutboxEvent) AudienceIDs() ([]uuid.UUID, error) {
	var ids []uuid.UUID
	if e.Audience == "" {
		return ids, nil
	}
	if err := json.Unmarshal([]byte(e.Audience), &ids); err != nil {
		return nil, err
	}
	return ids, nil
}
