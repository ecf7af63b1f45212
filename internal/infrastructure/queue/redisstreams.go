package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisStreamsConfig names the stream keys and consumer-group identity this
// transport operates under (spec §6 config keys table, Queue.* section).
type RedisStreamsConfig struct {
	Addr          string
	Password      string
	DB            int
	RequestStream string
	ResultStream  string
	DeadLetter    string
	ConsumerGroup string
	ConsumerName  string
	MaxRetries    int
	RetryDelay    time.Duration
	BlockTimeout  time.Duration // how long one XREADGROUP call blocks
}

// RedisStreamsTransport implements Transport over Redis Streams consumer
// groups: XREADGROUP to receive, XACK on success, XADD to publish and to
// dead-letter. Grounded on the teacher's go-redis/v9 client idiom
// (internal/infrastructure/cache/redis_idempotency_store.go).
type RedisStreamsTransport struct {
	client *redis.Client
	cfg    RedisStreamsConfig
	logger *zap.Logger
}

func NewRedisStreamsTransport(cfg RedisStreamsConfig, logger *zap.Logger) (*RedisStreamsTransport, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis streams broker: %w", err)
	}

	t := &RedisStreamsTransport{client: client, cfg: cfg, logger: logger}
	if err := t.ensureGroup(ctx, cfg.RequestStream); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *RedisStreamsTransport) ensureGroup(ctx context.Context, stream string) error {
	err := t.client.XGroupCreateMkStream(ctx, stream, t.cfg.ConsumerGroup, "$").Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		// BUSYGROUP means the group already exists, which is fine.
		if !isBusyGroupErr(err) {
			return fmt.Errorf("failed to create consumer group on %q: %w", stream, err)
		}
	}
	return nil
}

func isBusyGroupErr(err error) bool {
	return err != nil && len(err.Error()) >= 9 && err.Error()[:9] == "BUSYGROUP"
}

const streamBodyField = "body"

// Subscribe implements §4.5's delivery loop: XREADGROUP for new entries,
// exponential backoff retry via XCLAIM of unacked pending entries, and
// dead-letter once maxRetries is exhausted.
func (t *RedisStreamsTransport) Subscribe(ctx context.Context, handle func(context.Context, Message) error) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		streams, err := t.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    t.cfg.ConsumerGroup,
			Consumer: t.cfg.ConsumerName,
			Streams:  []string{t.cfg.RequestStream, ">"},
			Count:    10,
			Block:    t.cfg.BlockTimeout,
		}).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) || errors.Is(err, context.Canceled) {
				continue
			}
			t.logger.Error("redis streams read failed", zap.Error(err))
			time.Sleep(time.Second)
			continue
		}

		for _, stream := range streams {
			for _, xmsg := range stream.Messages {
				t.deliverOne(ctx, xmsg, handle)
			}
		}
	}
}

func (t *RedisStreamsTransport) deliverOne(ctx context.Context, xmsg redis.XMessage, handle func(context.Context, Message) error) {
	body, _ := xmsg.Values[streamBodyField].(string)
	attempt := t.deliveryCount(ctx, xmsg.ID)

	msg := Message{Body: []byte(body), DeliverID: xmsg.ID, Attempt: attempt}

	if err := handle(ctx, msg); err != nil {
		t.retryOrDeadLetter(ctx, msg, err)
		return
	}
	if err := t.client.XAck(ctx, t.cfg.RequestStream, t.cfg.ConsumerGroup, xmsg.ID).Err(); err != nil {
		t.logger.Warn("failed to ack stream entry", zap.String("id", xmsg.ID), zap.Error(err))
	}
}

// deliveryCount reads the consumer-group's own delivery-count bookkeeping
// for this entry via XPENDING, defaulting to first-attempt when absent.
func (t *RedisStreamsTransport) deliveryCount(ctx context.Context, id string) int {
	ext, err := t.client.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: t.cfg.RequestStream,
		Group:  t.cfg.ConsumerGroup,
		Start:  id,
		End:    id,
		Count:  1,
	}).Result()
	if err != nil || len(ext) == 0 {
		return 1
	}
	return int(ext[0].RetryCount)
}

func (t *RedisStreamsTransport) retryOrDeadLetter(ctx context.Context, msg Message, cause error) {
	if msg.Attempt >= t.cfg.MaxRetries {
		if err := t.DeadLetter(ctx, msg, cause); err != nil {
			t.logger.Error("failed to dead-letter message", zap.String("id", msg.DeliverID), zap.Error(err))
		}
		if err := t.client.XAck(ctx, t.cfg.RequestStream, t.cfg.ConsumerGroup, msg.DeliverID).Err(); err != nil {
			t.logger.Warn("failed to ack dead-lettered entry", zap.Error(err))
		}
		return
	}

	backoff := t.cfg.RetryDelay * time.Duration(1<<uint(msg.Attempt-1))
	t.logger.Warn("render failed, will retry",
		zap.String("id", msg.DeliverID),
		zap.Int("attempt", msg.Attempt),
		zap.Duration("backoff", backoff),
		zap.Error(cause))
	time.Sleep(backoff)
	// Left unacked and pending: the next XREADGROUP/XCLAIM cycle in this
	// consumer group will redeliver it, incrementing its delivery count.
}

// Publish XADDs a reply onto the result stream.
func (t *RedisStreamsTransport) Publish(ctx context.Context, body []byte) error {
	return t.client.XAdd(ctx, &redis.XAddArgs{
		Stream: t.cfg.ResultStream,
		Values: map[string]any{streamBodyField: body},
	}).Err()
}

// DeadLetter XADDs an exhausted message onto the dead-letter stream,
// carrying the terminal failure reason alongside the original body.
func (t *RedisStreamsTransport) DeadLetter(ctx context.Context, msg Message, reason error) error {
	reasonText := ""
	if reason != nil {
		reasonText = reason.Error()
	}
	return t.client.XAdd(ctx, &redis.XAddArgs{
		Stream: t.cfg.DeadLetter,
		Values: map[string]any{
			streamBodyField: msg.Body,
			"reason":        reasonText,
			"attempts":      msg.Attempt,
		},
	}).Err()
}

func (t *RedisStreamsTransport) Close() error {
	return t.client.Close()
}

var _ Transport = (*RedisStreamsTransport)(nil)
