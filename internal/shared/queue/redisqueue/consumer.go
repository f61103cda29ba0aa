package redisqueue

import (
	"context"
	"time"

	"github.com/platformplatform/account-api/internal/shared/logutil"
	"github.com/platformplatform/account-api/internal/shared/queue/consumers"
)

type Consumer struct {
	q        *Queue
	consumer consumers.Consumer
	log      logutil.Log
	timeout  time.Duration
}

func NewConsumer(q *Queue, consumer consumers.Consumer, log logutil.Log, timeout time.Duration) *Consumer {
	return &Consumer{
		q:        q,
		consumer: consumer,
		log:      log,
		timeout:  timeout,
	}
}

func (c Consumer) Run(ctx context.Context) {
	if _, err := c.q.RequeueUnacked(); err != nil {
		c.log.Errorf("Failed to requeue unacked messages: %s", err)
	}

	for ctx.Err() == nil {
		c.Poll(ctx, time.Second)
	}
}

// Poll consumes at most one message, it returns true if message was received.
func (c Consumer) Poll(ctx context.Context, wait time.Duration) bool {
	d, err := c.q.TryReceive(wait)
	if err != nil {
		c.log.Errorf("Polling failed: %s", err)
		select {
		case <-ctx.Done():
		case <-time.After(5 * time.Second):
		}
		return false
	}
	if d == nil {
		return false
	}

	msgCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	startedAt := time.Now()
	err = c.consumer.ConsumeMessage(msgCtx, d.Body)
	if consumers.IsHandled(err) {
		if err != nil {
			c.log.Warnf("Dropping message after %d-th attempt: %s", d.Attempt, err)
		} else {
			c.log.Infof("Polling: processed message on %d-th attempt for %s", d.Attempt, time.Since(startedAt))
		}
		if ackErr := c.q.Ack(d); ackErr != nil {
			c.log.Errorf("Failed to ack message: %s", ackErr)
		}
		return true
	}

	c.log.Warnf("Consumer failed on %d-th attempt: %s", d.Attempt, err)
	if retryErr := c.q.Retry(d); retryErr != nil {
		c.log.Errorf("Failed to schedule retry: %s", retryErr)
	}
	return true
}
