package consumer

import (
	"context"
	"testing"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go/aws"
	awssqs "github.com/aws/aws-sdk-go/service/sqs"
	"github.com/pkg/errors"
	"github.com/platformplatform/account-api/internal/shared/logutil"
	"github.com/platformplatform/account-api/internal/shared/queue/consumers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type ack struct {
	handle  string
	count   int
	handled bool
}

type fakeQueue struct {
	messages []*awssqs.Message
	acks     []ack
}

func (q *fakeQueue) TryReceive() (*awssqs.Message, error) {
	if len(q.messages) == 0 {
		return nil, nil
	}
	m := q.messages[0]
	q.messages = q.messages[1:]
	return m, nil
}

func (q *fakeQueue) Ack(receiptHandle string, receiveCount int, handled bool) error {
	q.acks = append(q.acks, ack{receiptHandle, receiveCount, handled})
	return nil
}

type consumerFunc func(ctx context.Context, message []byte) error

func (f consumerFunc) ConsumeMessage(ctx context.Context, message []byte) error {
	return f(ctx, message)
}

// failOn returns errors for some bodies.
func failOn(errs map[string]error) consumers.Consumer {
	return consumerFunc(func(_ context.Context, message []byte) error {
		return errs[string(message)]
	})
}

func message(id, body, count string) *awssqs.Message {
	return &awssqs.Message{
		MessageId:     aws.String(id),
		ReceiptHandle: aws.String("rh_" + id),
		Body:          aws.String(body),
		Attributes: map[string]*string{
			awssqs.MessageSystemAttributeNameApproximateReceiveCount: aws.String(count),
		},
	}
}

func TestPollAcksByResult(t *testing.T) {
	q := &fakeQueue{messages: []*awssqs.Message{
		message("ok", "ok", "1"),
		message("bad", "bad", "2"),
		message("retry", "retry", "3"),
		message("nocount", "ok", ""),
	}}
	c := newSQS(logutil.NewStderrLog("test"), q, failOn(map[string]error{
		"bad":   errors.Wrap(consumers.ErrBadMessage, "no customer"),
		"retry": errors.New("db is down"),
	}), time.Second, false)

	for i := 0; i < 4; i++ {
		assert.Equal(t, time.Duration(0), c.poll(context.Background()))
	}
	assert.Equal(t, []ack{
		{"rh_ok", 1, true},
		{"rh_bad", 2, true},
		{"rh_retry", 3, false},
		{"rh_nocount", 1, true},
	}, q.acks)
}

func TestPollPassesTimeout(t *testing.T) {
	q := &fakeQueue{messages: []*awssqs.Message{message("m", "x", "1")}}
	var deadline time.Time
	c := newSQS(logutil.NewStderrLog("test"), q, consumerFunc(func(ctx context.Context, _ []byte) error {
		deadline, _ = ctx.Deadline()
		return nil
	}), 30*time.Second, false)

	c.poll(context.Background())
	assert.WithinDuration(t, time.Now().Add(30*time.Second), deadline, 5*time.Second)
}

func TestLambdaCallReportsFailedRecords(t *testing.T) {
	c := newSQS(logutil.NewStderrLog("test"), &fakeQueue{}, failOn(map[string]error{
		"retry": errors.New("db is down"),
		"bad":   consumers.ErrBadMessage,
	}), time.Second, true)

	ev := events.SQSEvent{Records: []events.SQSMessage{
		{MessageId: "1", Body: "ok"},
		{MessageId: "2", Body: "bad"},
	}}
	require.NoError(t, c.handleLambdaCall(context.Background(), ev))

	ev.Records = append(ev.Records, events.SQSMessage{MessageId: "3", Body: "retry"})
	err := c.handleLambdaCall(context.Background(), ev)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 3 messages failed: 3")
}
