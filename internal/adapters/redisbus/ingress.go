package redisbus

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"fxcalc/internal/domain"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const (
	readBlock    = 2 * time.Second
	readCount    = 16
	minBackoff   = 50 * time.Millisecond
	maxBackoff   = 2 * time.Second
	readErrPause = time.Second
	claimMinIdle = time.Minute
)

type Submitter interface {
	Submit(req domain.ConversionRequest) error
}

// Ingress feeds stream entries into the worker pool. An entry is acknowledged only once
// the pool accepted it; while the pool is overloaded the entry is retried with backoff,
// so backpressure propagates to the stream instead of dropping requests.
// On startup entries left unacknowledged by an earlier run are handled first.
type Ingress struct {
	client   *redis.Client
	stream   string
	group    string
	consumer string
	pool     Submitter
	minIdle  time.Duration
}

func (in *Ingress) Run(ctx context.Context) error {
	err := in.client.XGroupCreateMkStream(ctx, in.stream, in.group, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("failed to create consumer group %q: %w", in.group, err)
	}
	logrus.WithFields(logrus.Fields{"stream": in.stream, "group": in.group}).Info("✅ Redis ingress started")

	if !in.recoverPending(ctx) || !in.claimAbandoned(ctx) {
		return nil
	}

	for {
		res, err := in.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    in.group,
			Consumer: in.consumer,
			Streams:  []string{in.stream, ">"},
			Count:    readCount,
			Block:    readBlock,
		}).Result()
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			if !errors.Is(err, redis.Nil) {
				logrus.WithError(err).WithField("stream", in.stream).Error("Error reading from stream")
				if !sleep(ctx, readErrPause) {
					return nil
				}
			}
			continue
		}

		for _, stream := range res {
			for _, msg := range stream.Messages {
				if !in.handle(ctx, msg) {
					return nil
				}
			}
		}
	}
}

// recoverPending re-reads entries delivered to this consumer but never acknowledged.
// It returns false when the ingress must stop.
func (in *Ingress) recoverPending(ctx context.Context) bool {
	cursor := "0"
	recovered := 0
	for {
		res, err := in.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    in.group,
			Consumer: in.consumer,
			Streams:  []string{in.stream, cursor},
			Count:    readCount,
			Block:    -1,
		}).Result()
		if ctx.Err() != nil {
			return false
		}
		if err != nil && !errors.Is(err, redis.Nil) {
			logrus.WithError(err).WithField("stream", in.stream).Error("Error reading pending entries")
			return true
		}

		handled := 0
		for _, stream := range res {
			for _, msg := range stream.Messages {
				if !in.handle(ctx, msg) {
					return false
				}
				cursor = msg.ID
				handled++
			}
		}
		if handled == 0 {
			if recovered > 0 {
				logrus.WithField("entries", recovered).Info("Pending stream entries recovered")
			}
			return true
		}
		recovered += handled
	}
}

// claimAbandoned takes over entries another consumer of the group left pending for
// longer than minIdle. It returns false when the ingress must stop.
func (in *Ingress) claimAbandoned(ctx context.Context) bool {
	start := "0-0"
	for {
		msgs, next, err := in.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
			Stream:   in.stream,
			Group:    in.group,
			Consumer: in.consumer,
			MinIdle:  in.minIdle,
			Start:    start,
			Count:    readCount,
		}).Result()
		if ctx.Err() != nil {
			return false
		}
		if err != nil {
			logrus.WithError(err).WithField("stream", in.stream).Error("Error claiming abandoned entries")
			return true
		}
		for _, msg := range msgs {
			if !in.handle(ctx, msg) {
				return false
			}
		}
		if len(msgs) > 0 {
			logrus.WithField("entries", len(msgs)).Info("Abandoned stream entries claimed")
		}
		if next == "0-0" || next == "" {
			return true
		}
		start = next
	}
}

// handle returns false when the ingress must stop.
func (in *Ingress) handle(ctx context.Context, msg redis.XMessage) bool {
	req, err := DecodeRequest(msg)
	if err != nil {
		logrus.WithError(err).WithField("msg_id", msg.ID).Warn("Dropping malformed request")
		in.ack(ctx, msg.ID)
		return true
	}

	backoff := minBackoff
	for {
		err = in.pool.Submit(req)
		switch {
		case err == nil:
			in.ack(ctx, msg.ID)
			return true
		case errors.Is(err, domain.ErrOverloaded):
			logrus.WithField("request_id", req.ID).WithField("backoff", backoff).Debug("Pool overloaded, retrying")
			if !sleep(ctx, backoff) {
				return false
			}
			backoff = min(backoff*2, maxBackoff)
		case errors.Is(err, domain.ErrPoolClosed):
			// left pending; the next start of this consumer, or a claim by another, picks it up
			return false
		default:
			logrus.WithError(err).WithField("msg_id", msg.ID).Warn("Request rejected")
			in.ack(ctx, msg.ID)
			return true
		}
	}
}

func (in *Ingress) ack(ctx context.Context, id string) {
	if err := in.client.XAck(ctx, in.stream, in.group, id).Err(); err != nil {
		logrus.WithError(err).WithField("msg_id", id).Error("Failed to acknowledge message")
	}
}

// DecodeRequest reads a request from stream fields id, expression and target. The
// entry id stands in for a missing request id so redelivered entries dedupe.
func DecodeRequest(msg redis.XMessage) (domain.ConversionRequest, error) {
	field := func(name string) string {
		if v, ok := msg.Values[name].(string); ok {
			return strings.TrimSpace(v)
		}
		return ""
	}

	req := domain.ConversionRequest{
		ID:         field("id"),
		Expression: field("expression"),
		Target:     domain.NormalizeCode(field("target")),
	}
	if req.ID == "" {
		req.ID = msg.ID
	}
	if req.Expression == "" {
		return domain.ConversionRequest{}, fmt.Errorf("entry %s has no expression", msg.ID)
	}
	if ms, err := redisStreamMillis(msg.ID); err == nil {
		req.SubmittedAt = time.UnixMilli(ms).UTC()
	}
	return req, nil
}

func redisStreamMillis(id string) (int64, error) {
	ts, _, _ := strings.Cut(id, "-")
	return strconv.ParseInt(ts, 10, 64)
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func NewIngress(client *redis.Client, stream, group, consumer string, pool Submitter) *Ingress {
	return &Ingress{client: client, stream: stream, group: group, consumer: consumer, pool: pool, minIdle: claimMinIdle}
}
