package consumers

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/pkg/errors"
)

// Observer is called after every consumed message with the time it waited in the queue.
type Observer func(subqueueID string, wait time.Duration, err error)

type Multiplexer struct {
	consumers map[string]Consumer
	observer  Observer
	now       func() time.Time
}

func NewMultiplexer() *Multiplexer {
	return &Multiplexer{
		consumers: map[string]Consumer{},
		now:       time.Now,
	}
}

func (m *Multiplexer) SetObserver(o Observer) {
	m.observer = o
}

type envelope struct {
	SubqueueID string
	EnqueuedAt time.Time
	Message    json.RawMessage
}

func (m Multiplexer) consumerNames() []string {
	var ret []string
	for name := range m.consumers {
		ret = append(ret, name)
	}
	sort.Strings(ret)
	return ret
}

func (m *Multiplexer) ConsumeMessage(ctx context.Context, message []byte) error {
	var e envelope
	if err := json.Unmarshal(message, &e); err != nil {
		return errors.Wrap(errors.Wrap(ErrBadMessage, err.Error()), "json unmarshal failed")
	}

	consumer := m.consumers[e.SubqueueID]
	if consumer == nil {
		return errors.Wrapf(ErrPermanent, "no consumer with id %s, registered consumers: %v",
			e.SubqueueID, m.consumerNames())
	}

	err := consumer.ConsumeMessage(ctx, []byte(e.Message))
	if m.observer != nil {
		var wait time.Duration
		if !e.EnqueuedAt.IsZero() {
			wait = m.now().Sub(e.EnqueuedAt)
		}
		m.observer(e.SubqueueID, wait, err)
	}
	return err
}

func (m *Multiplexer) RegisterConsumer(id string, consumer Consumer) error {
	if m.consumers[id] != nil {
		return fmt.Errorf("consumer %s is already registered", id)
	}

	m.consumers[id] = consumer
	return nil
}
