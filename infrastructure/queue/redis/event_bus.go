package redis

import (
	"context"
	"encoding/json"

	"github.com/groundgraph/engine/application/ports"
	"github.com/groundgraph/engine/domain/core/valueobjects"
)

// EventBus fans out job lifecycle events over one Redis pub/sub channel per
// job, satisfying persistence/postgres.EventBus. Events are transient
// notifications for live progress streaming (spec.md §4.6 stage 5); the
// durable record of job state lives in Postgres, not here.
type EventBus struct {
	client *Client
}

func NewEventBus(client *Client) *EventBus { return &EventBus{client: client} }

func channelName(jobID valueobjects.JobID) string { return "job-events:" + jobID.String() }

func (b *EventBus) Publish(ctx context.Context, jobID valueobjects.JobID, event ports.JobEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return b.client.rdb.Publish(ctx, channelName(jobID), payload).Err()
}

func (b *EventBus) Subscribe(ctx context.Context, jobID valueobjects.JobID) (<-chan ports.JobEvent, error) {
	sub := b.client.rdb.Subscribe(ctx, channelName(jobID))
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return nil, err
	}

	out := make(chan ports.JobEvent, 16)
	go func() {
		defer close(out)
		defer sub.Close()
		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var event ports.JobEvent
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					continue
				}
				select {
				case out <- event:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
