package stripeevents

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"github.com/platformplatform/account-api/internal/shared/logutil"
	"github.com/platformplatform/account-api/internal/shared/queue/consumers"
	"github.com/platformplatform/account-api/internal/shared/queue/producers"
	"github.com/platformplatform/account-api/pkg/api/billing"
	"github.com/platformplatform/account-api/pkg/api/workers/primaryqueue"
	redsync "gopkg.in/redsync.v1"
)

const processQueueID = "stripe/events/process"

type processMessage struct {
	CustomerID string
}

// LockID serializes processing of one customer's events.
func (m processMessage) LockID() string {
	return fmt.Sprintf("%s/%s", processQueueID, m.CustomerID)
}

type ProcessorProducer struct {
	producers.Base
}

func (pp *ProcessorProducer) Register(m *producers.Multiplexer) error {
	return pp.Base.Register(m, processQueueID)
}

func (pp ProcessorProducer) Put(customerID string) error {
	return pp.Base.Put(processMessage{
		CustomerID: customerID,
	})
}

type ProcessorConsumer struct {
	log       logutil.Log
	processor *billing.Processor
	timeouts  primaryqueue.Timeouts
}

func NewProcessorConsumer(log logutil.Log, processor *billing.Processor, timeouts primaryqueue.Timeouts) *ProcessorConsumer {
	return &ProcessorConsumer{
		log:       log,
		processor: processor,
		timeouts:  timeouts,
	}
}

func (pc ProcessorConsumer) Register(m *consumers.Multiplexer, df *redsync.Redsync) error {
	return primaryqueue.RegisterConsumer(pc.consumeMessage, processQueueID, pc.timeouts.Consumer, m, df)
}

func (pc ProcessorConsumer) consumeMessage(ctx context.Context, m *processMessage) error {
	if m.CustomerID == "" {
		return errors.Wrap(consumers.ErrBadMessage, "no customer id")
	}

	res, err := pc.processor.ProcessCustomerEvents(ctx, m.CustomerID)
	if err != nil {
		return errors.Wrapf(err, "processing of customer %s events failed", m.CustomerID)
	}

	if res.Processed != 0 {
		pc.log.Infof("Processed %d events of customer %s: tenant %d is %s",
			res.Processed, m.CustomerID, res.TenantID, res.TenantState)
	}
	return nil
}
