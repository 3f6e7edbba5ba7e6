package queue

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"contesthub/internal/models"
)

const maxStreamLen = 10000

// Publisher hands claimed scheduled tasks to the workers.
type Publisher struct {
	client redis.Cmdable
	stream string
}

func NewPublisher(client redis.Cmdable, stream string) *Publisher {
	return &Publisher{client: client, stream: stream}
}

func (p *Publisher) Publish(ctx context.Context, task models.ScheduledTask) error {
	_, err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		MaxLen: maxStreamLen,
		Approx: true,
		Values: map[string]any{
			"taskId":   task.ID,
			"kind":     string(task.Kind),
			"dueAt":    task.DueAt.UTC().Format(time.RFC3339),
			"attempts": task.Attempts,
		},
	}).Result()
	return err
}
