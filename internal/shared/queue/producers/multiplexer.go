package producers

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/platformplatform/account-api/internal/shared/queue"
)

type Queue interface {
	Put(message queue.Message) error
}

// Multiplexer lets many logical subqueues share one physical queue.
type Multiplexer struct {
	q Queue

	mu        sync.Mutex
	subqueues map[string]bool

	now func() time.Time
}

func NewMultiplexer(q Queue) *Multiplexer {
	return &Multiplexer{
		q:         q,
		subqueues: map[string]bool{},
		now:       time.Now,
	}
}

// envelope is decoded by consumers.Multiplexer.
type envelope struct {
	SubqueueID string
	EnqueuedAt time.Time
	Message    queue.Message
}

func (e envelope) LockID() string {
	return e.Message.LockID()
}

type subqueue struct {
	id     string
	parent *Multiplexer
}

func (sq subqueue) Put(message queue.Message) error {
	return sq.parent.q.Put(envelope{
		SubqueueID: sq.id,
		EnqueuedAt: sq.parent.now().UTC(),
		Message:    message,
	})
}

func (m *Multiplexer) NewSubqueue(id string) (Queue, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.subqueues[id] {
		return nil, fmt.Errorf("subqueue %s is already registered", id)
	}
	m.subqueues[id] = true

	return &subqueue{
		id:     id,
		parent: m,
	}, nil
}

func (m *Multiplexer) Subqueues() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	var ret []string
	for id := range m.subqueues {
		ret = append(ret, id)
	}
	sort.Strings(ret)
	return ret
}
