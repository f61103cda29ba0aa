package redisqueue

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/garyburd/redigo/redis"
	"github.com/pkg/errors"
	"github.com/platformplatform/account-api/internal/shared/logutil"
	"github.com/platformplatform/account-api/internal/shared/queue"
)

const maxRetryDelay = 12 * time.Hour

// Queue is a redis list with a sorted set of delayed retries. Received messages stay
// in a processing list until they are acked or scheduled for retry.
type Queue struct {
	name string
	pool *redis.Pool
	log  logutil.Log
	now  func() time.Time
}

type envelope struct {
	Attempt int
	Body    json.RawMessage
}

func NewQueue(name string, pool *redis.Pool, log logutil.Log) *Queue {
	return &Queue{
		name: name,
		pool: pool,
		log:  log,
		now:  time.Now,
	}
}

func (q Queue) readyKey() string {
	return fmt.Sprintf("queue:%s:ready", q.name)
}

func (q Queue) delayedKey() string {
	return fmt.Sprintf("queue:%s:delayed", q.name)
}

func (q Queue) processingKey() string {
	return fmt.Sprintf("queue:%s:processing", q.name)
}

func (q Queue) Put(message queue.Message) error {
	body, err := json.Marshal(message)
	if err != nil {
		return errors.Wrap(err, "can't json marshal message")
	}

	data, err := json.Marshal(envelope{Body: body})
	if err != nil {
		return errors.Wrap(err, "can't json marshal envelope")
	}

	conn := q.pool.Get()
	defer conn.Close()

	if _, err = conn.Do("LPUSH", q.readyKey(), data); err != nil {
		return errors.Wrap(err, "can't push message to redis")
	}

	q.log.Infof("Sent message with lock id %s to redis queue %s", message.LockID(), q.name)
	return nil
}

// Delivery is a received message; Attempt starts from 1.
type Delivery struct {
	Attempt int
	Body    []byte

	raw string
}

func (q Queue) TryReceive(wait time.Duration) (*Delivery, error) {
	if err := q.promoteDelayed(); err != nil {
		return nil, err
	}

	conn := q.pool.Get()
	defer conn.Close()

	waitSec := int(wait / time.Second)
	if waitSec < 1 {
		waitSec = 1 // 0 blocks forever
	}

	raw, err := redis.String(conn.Do("BRPOPLPUSH", q.readyKey(), q.processingKey(), waitSec))
	if err == redis.ErrNil {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "can't pop message from redis")
	}

	var e envelope
	if err = json.Unmarshal([]byte(raw), &e); err != nil {
		if _, remErr := conn.Do("LREM", q.processingKey(), 1, raw); remErr != nil {
			q.log.Warnf("Can't drop invalid envelope: %s", remErr)
		}
		return nil, errors.Wrapf(err, "invalid envelope %q", raw)
	}

	return &Delivery{Attempt: e.Attempt + 1, Body: e.Body, raw: raw}, nil
}

// Ack removes processed delivery from the processing list.
func (q Queue) Ack(d *Delivery) error {
	conn := q.pool.Get()
	defer conn.Close()

	if _, err := conn.Do("LREM", q.processingKey(), 1, d.raw); err != nil {
		return errors.Wrap(err, "can't ack message")
	}

	return nil
}

// RequeueUnacked moves messages left in the processing list by a crashed consumer
// back to the ready list. A message being consumed right now by another process
// is delivered twice, consumers must be idempotent.
func (q Queue) RequeueUnacked() (int, error) {
	conn := q.pool.Get()
	defer conn.Close()

	var n int
	for {
		_, err := redis.String(conn.Do("RPOPLPUSH", q.processingKey(), q.readyKey()))
		if err == redis.ErrNil {
			break
		}
		if err != nil {
			return n, errors.Wrap(err, "can't requeue unacked message")
		}
		n++
	}

	if n != 0 {
		q.log.Warnf("Requeued %d unacked messages of redis queue %s", n, q.name)
	}
	return n, nil
}

func retryDelay(attempt int) time.Duration {
	if attempt > 10 {
		return maxRetryDelay
	}

	d := time.Duration(1<<uint(attempt)) * 30 * time.Second
	if d > maxRetryDelay {
		return maxRetryDelay
	}
	return d
}

// Retry schedules failed delivery for a later attempt.
func (q Queue) Retry(d *Delivery) error {
	data, err := json.Marshal(envelope{Attempt: d.Attempt, Body: d.Body})
	if err != nil {
		return errors.Wrap(err, "can't json marshal envelope")
	}

	conn := q.pool.Get()
	defer conn.Close()

	delay := retryDelay(d.Attempt)
	at := q.now().Add(delay).Unix()
	if err = conn.Send("MULTI"); err != nil {
		return errors.Wrap(err, "can't start retry transaction")
	}
	if err = conn.Send("ZADD", q.delayedKey(), at, data); err != nil {
		return errors.Wrap(err, "can't schedule message retry")
	}
	if err = conn.Send("LREM", q.processingKey(), 1, d.raw); err != nil {
		return errors.Wrap(err, "can't schedule message retry")
	}
	if _, err = conn.Do("EXEC"); err != nil {
		return errors.Wrap(err, "can't schedule message retry")
	}

	q.log.Infof("Scheduled retry of message for %d-th attempt in %s", d.Attempt+1, delay)
	return nil
}

func (q Queue) promoteDelayed() error {
	conn := q.pool.Get()
	defer conn.Close()

	now := q.now().Unix()
	due, err := redis.Strings(conn.Do("ZRANGEBYSCORE", q.delayedKey(), "-inf", now))
	if err != nil {
		return errors.Wrap(err, "can't fetch delayed messages")
	}

	for _, m := range due {
		removed, err := redis.Int(conn.Do("ZREM", q.delayedKey(), m))
		if err != nil {
			return errors.Wrap(err, "can't remove delayed message")
		}
		if removed == 0 { // promoted by another consumer
			continue
		}

		if _, err = conn.Do("LPUSH", q.readyKey(), m); err != nil {
			return errors.Wrap(err, "can't promote delayed message")
		}
	}

	return nil
}
