// Package dbnotify is the backchannel from postgres: storage announces every
// competition write on a NOTIFY channel, and a Listener here turns those
// announcements into cache invalidations and subscriber callbacks on other
// processes.
package dbnotify

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5/stdlib"

	"github.com/ts4z/knockout/model"
)

// Channel is the postgres NOTIFY channel competition writes land on.
const Channel = "competitions_changes"

const sleepOnErrorTime = 5 * time.Second

// NotificationEvent is the payload storage publishes with each write.
type NotificationEvent struct {
	Owner   model.Address `json:"owner"`
	ID      string        `json:"id"`
	Version int64         `json:"version"`
}

// Payload renders an event the way storage sends it.
func Payload(owner model.Address, id string, version int64) ([]byte, error) {
	return json.Marshal(NotificationEvent{Owner: owner, ID: id, Version: version})
}

// Invalidator drops stale cached copies.  dbcache.CompetitionStorage
// implements this.
type Invalidator interface {
	CacheInvalidate(ctx context.Context, owner model.Address, id string, version int64)
}

// Consumer sees every change event after the cache has been invalidated.
type Consumer interface {
	Consume(ctx context.Context, event *NotificationEvent)
}

// ConsumerFunc adapts a function to Consumer.
type ConsumerFunc func(ctx context.Context, event *NotificationEvent)

func (f ConsumerFunc) Consume(ctx context.Context, event *NotificationEvent) {
	f(ctx, event)
}

type Listener struct {
	db          *sql.DB
	invalidator Invalidator
	consumers   []Consumer
}

// NewListener wires a change-feed listener.  invalidator may be nil if this
// process keeps no cache.
func NewListener(db *sql.DB, invalidator Invalidator, consumers ...Consumer) *Listener {
	return &Listener{
		db:          db,
		invalidator: invalidator,
		consumers:   consumers,
	}
}

// Listen blocks on the NOTIFY channel until ctx is canceled, dispatching each
// event.  The LISTEN must run on a raw pgx connection; database/sql's pooling
// would hand the subscription to whichever connection it felt like.
func (l *Listener) Listen(ctx context.Context) error {
	conn, err := l.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("failed to get connection: %w", err)
	}
	defer conn.Close()

	var pgxConn *stdlib.Conn
	err = conn.Raw(func(driverConn any) error {
		pgxConn = driverConn.(*stdlib.Conn)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to get pgx connection: %w", err)
	}

	if _, err := pgxConn.Conn().Exec(ctx, "LISTEN "+Channel); err != nil {
		return fmt.Errorf("failed to listen on channel %s: %w", Channel, err)
	}

	for {
		notification, err := pgxConn.Conn().WaitForNotification(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("error waiting for notification: %w", err)
		}

		event := &NotificationEvent{}
		if err := json.Unmarshal([]byte(notification.Payload), event); err != nil {
			log.Printf("can't unmarshal notification payload '%s': %v", notification.Payload, err)
			time.Sleep(sleepOnErrorTime)
			continue
		}
		l.dispatch(ctx, event)
	}
}

func (l *Listener) dispatch(ctx context.Context, event *NotificationEvent) {
	if l.invalidator != nil {
		l.invalidator.CacheInvalidate(ctx, event.Owner, event.ID, event.Version)
	}
	for _, c := range l.consumers {
		c.Consume(ctx, event)
	}
}
