package notify

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const relayPublishTimeout = 2 * time.Second

// envelope is what travels over the Redis channel between instances.
type envelope struct {
	EventID    string          `json:"event_id"`
	Event      string          `json:"event"`
	Rooms      []string        `json:"rooms"`
	Data       json.RawMessage `json:"data"`
	OccurredAt time.Time       `json:"occurred_at"`
	Producer   string          `json:"producer"`
}

// Relay publishes events through a Redis channel so that every server
// instance, this one included, delivers them to its local sessions.
type Relay struct {
	rdb      *redis.Client
	channel  string
	hub      *Hub
	producer string
	log      logrus.FieldLogger
}

func NewRelay(rdb *redis.Client, channel string, hub *Hub, log logrus.FieldLogger) *Relay {
	return &Relay{
		rdb:      rdb,
		channel:  channel,
		hub:      hub,
		producer: uuid.NewString(),
		log:      log,
	}
}

// Publish sends the event to Redis in the background and returns at once.
func (r *Relay) Publish(rooms []string, event string, data any) {
	b, err := r.encode(rooms, event, data)
	if err != nil {
		r.log.WithError(err).WithField("event", event).Error("encode relay envelope")
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), relayPublishTimeout)
		defer cancel()
		if err := r.rdb.Publish(ctx, r.channel, b).Err(); err != nil {
			r.log.WithError(err).WithField("event", event).Warn("relay publish failed")
		}
	}()
}

func (r *Relay) encode(rooms []string, event string, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(envelope{
		EventID:    uuid.NewString(),
		Event:      event,
		Rooms:      rooms,
		Data:       raw,
		OccurredAt: time.Now().UTC(),
		Producer:   r.producer,
	})
}

// Run subscribes to the channel and feeds incoming events to the hub until
// ctx is cancelled.
func (r *Relay) Run(ctx context.Context) error {
	sub := r.rdb.Subscribe(ctx, r.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return err
	}
	r.log.WithField("channel", r.channel).Info("relay subscribed")

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return errors.New("relay subscription closed")
			}
			r.handle(msg.Payload)
		}
	}
}

func (r *Relay) handle(payload string) {
	var env envelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		r.log.WithError(err).Warn("drop malformed relay envelope")
		return
	}
	if env.Event == "" || len(env.Rooms) == 0 {
		return
	}
	r.hub.Deliver(env.Rooms, env.Event, env.Data)
}
