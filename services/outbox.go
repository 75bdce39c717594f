package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/anjiri1684/social_messaging/metrics"
	"github.com/anjiri1684/social_messaging/models"
	"github.com/anjiri1684/social_messaging/websocket"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Broadcaster pushes an event to connected realtime clients.
type Broadcaster interface {
	Publish(ev websocket.Event) error
}

// Outbox records realtime events inside the caller's transaction and publishes them
// once the transaction has committed. Rows whose publication failed are picked up
// again by RelayPending.
type Outbox struct {
	db          *gorm.DB
	broadcaster Broadcaster
	log         *logrus.Entry
	maxAttempts int
	relayDelay  time.Duration
	now         func() time.Time
}

type OutboxOptions struct {
	MaxAttempts int
	// RelayDelay keeps the relay away from rows the inline flush is still handling.
	RelayDelay time.Duration
}

func NewOutbox(db *gorm.DB, broadcaster Broadcaster, log *logrus.Entry, opts OutboxOptions) *Outbox {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 5
	}
	return &Outbox{
		db:          db,
		broadcaster: broadcaster,
		log:         log,
		maxAttempts: opts.MaxAttempts,
		relayDelay:  opts.RelayDelay,
		now:         time.Now,
	}
}

// Enqueue stores events using tx. Callers flush the returned slice after commit.
func (o *Outbox) Enqueue(tx *gorm.DB, events ...models.OutboxEvent) error {
	if len(events) == 0 {
		return nil
	}
	now := o.now()
	for i := range events {
		events[i].CreatedAt = now
	}
	return tx.Create(&events).Error
}

// Flush publishes freshly committed events. Failures are logged and left for the relay.
func (o *Outbox) Flush(ctx context.Context, events []models.OutboxEvent) {
	for i := range events {
		if err := o.dispatch(ctx, &events[i]); err != nil {
			metrics.OutboxDispatched.WithLabelValues("inline", "failed").Inc()
			o.log.WithError(err).
				WithField("event_id", events[i].ID).
				WithField("event", events[i].EventType).
				Warn("Inline event dispatch failed, leaving it to the relay")
			continue
		}
		metrics.OutboxDispatched.WithLabelValues("inline", "ok").Inc()
	}
}

// RelayPending re-publishes up to limit undispatched events, oldest first, and returns
// how many were dispatched.
func (o *Outbox) RelayPending(ctx context.Context, limit int) (int, error) {
	var pending []models.OutboxEvent
	err := o.db.WithContext(ctx).
		Where("dispatched_at IS NULL AND attempts < ? AND created_at <= ?", o.maxAttempts, o.now().Add(-o.relayDelay)).
		Order("created_at asc, id asc").
		Limit(limit).
		Find(&pending).Error
	if err != nil {
		return 0, err
	}

	dispatched := 0
	for i := range pending {
		if err := o.dispatch(ctx, &pending[i]); err != nil {
			metrics.OutboxDispatched.WithLabelValues("relay", "failed").Inc()
			o.log.WithError(err).
				WithField("event_id", pending[i].ID).
				WithField("attempts", pending[i].Attempts).
				Warn("Relay dispatch failed")
			continue
		}
		metrics.OutboxDispatched.WithLabelValues("relay", "ok").Inc()
		dispatched++
	}
	return dispatched, nil
}

func (o *Outbox) dispatch(ctx context.Context, ev *models.OutboxEvent) error {
	audience, err := ev.AudienceIDs()
	if err == nil {
		err = o.broadcaster.Publish(websocket.Event{
			ID:       ev.ID,
			Type:     ev.EventType,
			Data:     json.RawMessage(ev.Payload),
			Audience: audience,
		})
	}

	if err != nil {
		ev.Attempts++
		ev.LastError = err.Error()
		if uerr := o.db.WithContext(ctx).Model(&models.OutboxEvent{}).Where("id = ?", ev.ID).
			Updates(map[string]interface{}{"attempts": ev.Attempts, "last_error": ev.LastError}).Error; uerr != nil {
			o.log.WithError(uerr).WithField("event_id", ev.ID).Error("Failed to record outbox attempt")
		}
		return err
	}

	now := o.now()
	ev.Attempts++
	ev.DispatchedAt = &now
	return o.db.WithContext(ctx).Model(&models.OutboxEvent{}).Where("id = ?", ev.ID).
		Updates(map[string]interface{}{"attempts": ev.Attempts, "dispatched_at": now, "last_error": ""}).Error
}
