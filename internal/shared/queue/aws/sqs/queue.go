package sqs

import (
	"encoding/json"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/client"
	"github.com/aws/aws-sdk-go/service/sqs"
	"github.com/aws/aws-sdk-go/service/sqs/sqsiface"
	"github.com/cenkalti/backoff"
	"github.com/pkg/errors"
	"github.com/platformplatform/account-api/internal/shared/logutil"
	"github.com/platformplatform/account-api/internal/shared/queue"
)

const (
	lockIDAttribute = "lock_id"

	maxVisibilityDelay = 12 * time.Hour // sqs limit
	maxReceiveWait     = 20 * time.Second
)

type Options struct {
	VisibilityTimeout time.Duration
	// The n-th failed delivery is retried after 2^n * MinRetryDelay.
	MinRetryDelay time.Duration
	MaxRetryDelay time.Duration
}

func (o *Options) setDefaults() {
	if o.MinRetryDelay == 0 {
		o.MinRetryDelay = time.Minute
	}
	if o.MaxRetryDelay == 0 || o.MaxRetryDelay > maxVisibilityDelay {
		o.MaxRetryDelay = maxVisibilityDelay
	}
}

type Queue struct {
	url    string
	client sqsiface.SQSAPI
	log    logutil.Log
	opts   Options
}

func NewQueue(url string, sess client.ConfigProvider, log logutil.Log, opts Options) *Queue {
	return NewQueueWithClient(url, sqs.New(sess), log, opts)
}

func NewQueueWithClient(url string, c sqsiface.SQSAPI, log logutil.Log, opts Options) *Queue {
	opts.setDefaults()
	return &Queue{
		url:    url,
		client: c,
		log:    log,
		opts:   opts,
	}
}

func (q Queue) Put(message queue.Message) error {
	body, err := json.Marshal(message)
	if err != nil {
		return errors.Wrap(err, "can't json marshal message")
	}

	in := &sqs.SendMessageInput{
		MessageBody: aws.String(string(body)),
		QueueUrl:    aws.String(q.url),
	}
	if lockID := message.LockID(); lockID != "" {
		in.MessageAttributes = map[string]*sqs.MessageAttributeValue{
			lockIDAttribute: {
				DataType:    aws.String("String"),
				StringValue: aws.String(lockID),
			},
		}
	}

	startedAt := time.Now()
	res, err := q.client.SendMessage(in)
	if err != nil {
		return errors.Wrapf(err, "can't send message %s to sqs", message.LockID())
	}

	q.log.Infof("Sent sqs message %s with lock id %s in %s",
		aws.StringValue(res.MessageId), message.LockID(), time.Since(startedAt))
	return nil
}

// TryReceive long-polls for one message, nil means the queue is empty.
func (q Queue) TryReceive() (*sqs.Message, error) {
	result, err := q.client.ReceiveMessage(&sqs.ReceiveMessageInput{
		AttributeNames:        []*string{aws.String(sqs.MessageSystemAttributeNameApproximateReceiveCount)},
		MessageAttributeNames: []*string{aws.String(lockIDAttribute)},
		QueueUrl:              aws.String(q.url),
		MaxNumberOfMessages:   aws.Int64(1),
		VisibilityTimeout:     aws.Int64(int64(q.opts.VisibilityTimeout / time.Second)),
		WaitTimeSeconds:       aws.Int64(int64(maxReceiveWait / time.Second)),
	})
	if err != nil {
		return nil, errors.Wrap(err, "can't receive message from sqs")
	}

	switch len(result.Messages) {
	case 0:
		return nil, nil
	case 1:
		return result.Messages[0], nil
	}
	return nil, errors.Errorf("got %d messages from sqs, asked for one", len(result.Messages))
}

// RetryDelay of a message delivered receiveCount times.
func (q Queue) RetryDelay(receiveCount int) time.Duration {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 2 * q.opts.MinRetryDelay
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxInterval = q.opts.MaxRetryDelay
	b.MaxElapsedTime = 0
	b.Reset()

	if receiveCount < 1 {
		receiveCount = 1
	}

	var d time.Duration
	for i := 0; i < receiveCount && d < q.opts.MaxRetryDelay; i++ {
		d = b.NextBackOff()
	}
	return d
}

// Ack deletes a handled message or hides it until the next retry.
func (q Queue) Ack(receiptHandle string, receiveCount int, handled bool) error {
	if handled {
		_, err := q.client.DeleteMessage(&sqs.DeleteMessageInput{
			QueueUrl:      aws.String(q.url),
			ReceiptHandle: aws.String(receiptHandle),
		})
		if err != nil {
			return errors.Wrapf(err, "can't delete message %s", receiptHandle)
		}

		q.log.Debugf("sqs", "Deleted message %s on attempt %d", receiptHandle, receiveCount)
		return nil
	}

	delay := q.RetryDelay(receiveCount)
	_, err := q.client.ChangeMessageVisibility(&sqs.ChangeMessageVisibilityInput{
		QueueUrl:          aws.String(q.url),
		ReceiptHandle:     aws.String(receiptHandle),
		VisibilityTimeout: aws.Int64(int64(delay / time.Second)),
	})
	if err != nil {
		return errors.Wrapf(err, "can't delay message %s after attempt %d by %s",
			receiptHandle, receiveCount, delay)
	}

	q.log.Infof("Message %s failed on attempt %d, retrying in %s", receiptHandle, receiveCount, delay)
	return nil
}
