package consumer

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/events"
	awslambda "github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go/aws"
	awssqs "github.com/aws/aws-sdk-go/service/sqs"
	"github.com/pkg/errors"
	"github.com/platformplatform/account-api/internal/shared/config"
	"github.com/platformplatform/account-api/internal/shared/logutil"
	"github.com/platformplatform/account-api/internal/shared/queue/aws/sqs"
	"github.com/platformplatform/account-api/internal/shared/queue/consumers"
)

type queue interface {
	TryReceive() (*awssqs.Message, error)
	Ack(receiptHandle string, receiveCount int, handled bool) error
}

// SQS feeds the multiplexer either by polling or, with
// SQS_<NAME>_QUEUE_USE_LAMBDA, from lambda sqs triggers.
type SQS struct {
	q         queue
	log       logutil.Log
	consumer  consumers.Consumer
	useLambda bool
	timeout   time.Duration
}

func NewSQS(log logutil.Log, cfg config.Config, q *sqs.Queue,
	consumer consumers.Consumer, queueName string, timeout time.Duration) *SQS {

	return newSQS(log, q, consumer, timeout,
		cfg.GetBool(fmt.Sprintf("SQS_%s_QUEUE_USE_LAMBDA", strings.ToUpper(queueName)), false))
}

func newSQS(log logutil.Log, q queue, consumer consumers.Consumer, timeout time.Duration, useLambda bool) *SQS {
	return &SQS{
		q:         q,
		log:       log,
		consumer:  consumer,
		useLambda: useLambda,
		timeout:   timeout,
	}
}

func (c SQS) Run(ctx context.Context) {
	if c.useLambda {
		c.log.Infof("Consuming sqs from lambda triggers")
		awslambda.Start(c.handleLambdaCall)
		return
	}

	c.log.Infof("Polling sqs")
	for ctx.Err() == nil {
		if pause := c.poll(ctx); pause != 0 {
			sleep(ctx, pause)
		}
	}
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// poll handles at most one message and returns how long to wait before the next poll.
func (c SQS) poll(ctx context.Context) time.Duration {
	m, err := c.q.TryReceive()
	if err != nil {
		c.log.Errorf("Sqs polling failed: %s", err)
		return 10 * time.Second
	}
	if m == nil {
		return 0 // receive already long-polled
	}

	msgCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	startedAt := time.Now()
	if err = c.handle(msgCtx, m); err != nil {
		c.log.Errorf("Failed to handle sqs message %s: %s", aws.StringValue(m.MessageId), err)
		return time.Second
	}

	c.log.Debugf("sqs", "Handled message %s in %s", aws.StringValue(m.MessageId), time.Since(startedAt))
	return 0
}

func receiveCount(attrs map[string]*string) int {
	v := aws.StringValue(attrs[awssqs.MessageSystemAttributeNameApproximateReceiveCount])
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return 1
	}
	return n
}

func (c SQS) handle(ctx context.Context, m *awssqs.Message) error {
	if m.Body == nil {
		return errors.New("nil message body")
	}

	err := c.consumer.ConsumeMessage(ctx, []byte(*m.Body))
	if err != nil {
		c.log.Warnf("Consuming of message %s failed: %s", aws.StringValue(m.MessageId), err)
	}
	handled := consumers.IsHandled(err)

	if m.ReceiptHandle == nil { // lambda deletes successfully handled messages
		if !handled {
			return errors.Wrap(err, "message wasn't handled")
		}
		return nil
	}

	count := receiveCount(m.Attributes)
	if err = c.q.Ack(*m.ReceiptHandle, count, handled); err != nil {
		return errors.Wrapf(err, "failed to ack message %s", aws.StringValue(m.MessageId))
	}
	return nil
}

// handleLambdaCall handles every record, an error makes lambda redeliver the batch.
func (c SQS) handleLambdaCall(ctx context.Context, sqsEvent events.SQSEvent) error {
	var failed []string
	for _, r := range sqsEvent.Records {
		m := awssqs.Message{
			MessageId: aws.String(r.MessageId),
			Body:      aws.String(r.Body),
			Attributes: map[string]*string{
				awssqs.MessageSystemAttributeNameApproximateReceiveCount: aws.String(
					r.Attributes[awssqs.MessageSystemAttributeNameApproximateReceiveCount]),
			},
		}
		if err := c.handle(ctx, &m); err != nil {
			c.log.Warnf("Lambda trigger: message %s failed: %s", r.MessageId, err)
			failed = append(failed, r.MessageId)
		}
	}

	if len(failed) != 0 {
		return fmt.Errorf("%d of %d messages failed: %s", len(failed), len(sqsEvent.Records),
			strings.Join(failed, ", "))
	}
	return nil
}
