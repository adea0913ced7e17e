package scheduler

import (
	"context"
	"errors"
	"time"

	"engagement_backend/platform/config"
	"engagement_backend/platform/db"

	"github.com/hibiken/asynq"
)

const (
	scoreRefreshMaxAge = 24 * time.Hour
	scoreRefreshLimit  = 500
)

type Client struct {
	client *asynq.Client
	queue  string
}

func NewClient(cfg config.SchedulerConfig) (*Client, error) {
	opt, err := redisClientOpt(cfg.GetRedisURL(), cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}
	return newClient(opt, cfg.GetAsynqQueueName()), nil
}

func newClient(opt asynq.RedisConnOpt, queue string) *Client {
	if queue == "" {
		queue = "default"
	}
	return &Client{client: asynq.NewClient(opt), queue: queue}
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// EnqueueReminderPass enqueues a pass for the interval slot containing at.
// It reports false when another process already enqueued that slot.
func (c *Client) EnqueueReminderPass(ctx context.Context, at time.Time, interval time.Duration) (bool, error) {
	slot := at.UTC().Truncate(interval)
	task, err := NewReminderPassTask(ReminderPassPayload{Slot: slot})
	if err != nil {
		return false, err
	}
	return c.enqueueUnique(ctx, task, interval)
}

// EnqueueScoreRefresh enqueues a stale score refresh for the slot containing at.
func (c *Client) EnqueueScoreRefresh(ctx context.Context, at time.Time, interval time.Duration) (bool, error) {
	task, err := NewScoreRefreshTask(ScoreRefreshPayload{
		Slot:   at.UTC().Truncate(interval),
		MaxAge: scoreRefreshMaxAge.String(),
		Limit:  scoreRefreshLimit,
	})
	if err != nil {
		return false, err
	}
	return c.enqueueUnique(ctx, task, interval)
}

func (c *Client) enqueueUnique(ctx context.Context, task *asynq.Task, ttl time.Duration) (bool, error) {
	if ttl < time.Second {
		ttl = time.Second
	}
	_, err := c.client.EnqueueContext(ctx, task, asynq.Queue(c.queue), asynq.Unique(ttl), asynq.MaxRetry(0))
	if errors.Is(err, asynq.ErrDuplicateTask) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func redisClientOpt(redisURL string, tlsInsecure bool) (asynq.RedisClientOpt, error) {
	opt, err := db.RedisOptions(redisURL, tlsInsecure)
	if err != nil {
		return asynq.RedisClientOpt{}, err
	}
	return asynq.RedisClientOpt{
		Addr:      opt.Addr,
		Username:  opt.Username,
		Password:  opt.Password,
		DB:        opt.DB,
		TLSConfig: opt.TLSConfig,
	}, nil
}
