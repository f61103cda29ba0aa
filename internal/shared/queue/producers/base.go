package producers

import (
	"github.com/pkg/errors"
	"github.com/platformplatform/account-api/internal/shared/queue"
)

// Base is embedded by typed producers, they must register it before putting.
type Base struct {
	q  Queue
	id string
}

func (p *Base) Register(m *Multiplexer, queueID string) error {
	if p.q != nil {
		return errors.Errorf("producer is already registered as %s", p.id)
	}

	q, err := m.NewSubqueue(queueID)
	if err != nil {
		return errors.Wrapf(err, "failed to create %s subqueue", queueID)
	}

	p.q = q
	p.id = queueID
	return nil
}

func (p Base) Put(message queue.Message) error {
	if p.q == nil {
		return errors.New("producer isn't registered in a multiplexer")
	}

	if err := p.q.Put(message); err != nil {
		return errors.Wrapf(err, "failed to put message to %s", p.id)
	}
	return nil
}
