package producers

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/platformplatform/account-api/internal/shared/queue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryQueue struct {
	messages []queue.Message
	err      error
}

func (q *memoryQueue) Put(message queue.Message) error {
	if q.err != nil {
		return q.err
	}
	q.messages = append(q.messages, message)
	return nil
}

type eventsMessage struct {
	CustomerID string
}

func (m eventsMessage) LockID() string {
	return m.CustomerID
}

func TestSubqueueWrapsMessage(t *testing.T) {
	mq := &memoryQueue{}
	m := NewMultiplexer(mq)
	m.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }

	var p Base
	assert.Error(t, p.Put(eventsMessage{}))

	require.NoError(t, p.Register(m, "stripe/events"))
	assert.Error(t, p.Register(m, "other"), "registered producer")
	assert.Error(t, (&Base{}).Register(m, "stripe/events"), "duplicated subqueue")
	assert.Equal(t, []string{"stripe/events"}, m.Subqueues())

	require.NoError(t, p.Put(eventsMessage{CustomerID: "cus_1"}))
	require.Len(t, mq.messages, 1)
	assert.Equal(t, "cus_1", mq.messages[0].LockID())

	data, err := json.Marshal(mq.messages[0])
	require.NoError(t, err)
	assert.JSONEq(t, `{"SubqueueID":"stripe/events","EnqueuedAt":"2026-01-02T03:04:05Z","Message":{"CustomerID":"cus_1"}}`,
		string(data))
}

func TestPutErrorNamesSubqueue(t *testing.T) {
	mq := &memoryQueue{err: errors.New("redis is down")}

	var p Base
	require.NoError(t, p.Register(NewMultiplexer(mq), "stripe/events"))

	err := p.Put(eventsMessage{CustomerID: "cus_1"})
	if assert.Error(t, err) {
		assert.Contains(t, err.Error(), "stripe/events")
		assert.Equal(t, mq.err, errors.Cause(err))
	}
}
