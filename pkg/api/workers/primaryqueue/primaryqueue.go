// Package primaryqueue holds settings shared by consumers of the primary queue.
package primaryqueue

import (
	"time"

	"github.com/pkg/errors"
	"github.com/platformplatform/account-api/internal/shared/config"
	"github.com/platformplatform/account-api/internal/shared/queue/consumers"
	redsync "gopkg.in/redsync.v1"
)

const (
	defaultVisibilityTimeout = time.Minute
	minVisibilityTimeout     = 20 * time.Second
)

// Timeouts of message handling. A consumer gets 3/4 of the visibility timeout
// so the message is acked before the queue redelivers it.
type Timeouts struct {
	Visibility time.Duration
	Consumer   time.Duration
}

func NewTimeouts(visibility time.Duration) Timeouts {
	if visibility < minVisibilityTimeout {
		visibility = minVisibilityTimeout
	}
	return Timeouts{
		Visibility: visibility,
		Consumer:   visibility * 3 / 4,
	}
}

// TimeoutsFromConfig reads PRIMARY_QUEUE_VISIBILITY_TIMEOUT, it must match
// the SQS queue settings.
func TimeoutsFromConfig(cfg config.Config) Timeouts {
	return NewTimeouts(cfg.GetDuration("PRIMARY_QUEUE_VISIBILITY_TIMEOUT", defaultVisibilityTimeout))
}

var DefaultTimeouts = NewTimeouts(defaultVisibilityTimeout)

func RegisterConsumer(consumeFunc interface{}, subqueueID string, timeout time.Duration,
	m *consumers.Multiplexer, df *redsync.Redsync) error {

	consumer, err := consumers.NewReflectConsumer(consumeFunc, timeout, df)
	if err != nil {
		return errors.Wrapf(err, "can't make consumer of %s", subqueueID)
	}

	return m.RegisterConsumer(subqueueID, consumer)
}
