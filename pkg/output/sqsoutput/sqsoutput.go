package sqsoutput

import (
	"context"
	"encoding/json"
	"fmt"
	"github.com/aws/aws-sdk-go/service/sqs"
	"github.com/function61/gokit/logger"
	"github.com/laphir/mitherm/pkg/mithermtypes"
	"github.com/laphir/mitherm/pkg/sqsfacade"
	"time"
)

var log = logger.New("sqs-output")

type output struct {
	queue    *sqsfacade.SQS
	readings chan mithermtypes.ResolvedReading
}

func (o *output) GetReadingsChan() chan<- mithermtypes.ResolvedReading {
	return o.readings
}

func (o *output) processor(ctx context.Context) {
	log.Info("starting")
	defer log.Info("stopped")

	for {
		select {
		case <-ctx.Done():
			return // stop loop
		case firstItem := <-o.readings:
			// try to grab at most a full batch from the channel
			readings := readMoreUnblocking(sqsfacade.MaxItemsPerBatch, firstItem, o.readings)

			batch := []*sqs.SendMessageBatchRequestEntry{}

			for idx, reading := range readings {
				readingAsJson, _ := json.Marshal(reading)

				batch = append(batch, sqsfacade.ToSimpleQueueEntry(string(readingAsJson), idx))
			}

			// group all following readings that arrive within one second
			// to the next batch submit
			nextPossibleQueueSubmit := time.Now().Add(1 * time.Second)

			err := o.queue.Send(ctx, batch, 15*time.Second, func(err error) {
				log.Error(err.Error())
			})
			if err != nil {
				log.Error(fmt.Sprintf("batch lost: %s", err.Error()))
				continue
			}

			// only sleep if we're not submitting at max capacity
			if len(batch) < sqsfacade.MaxItemsPerBatch {
				time.Sleep(time.Until(nextPossibleQueueSubmit))
			} else {
				log.Info(fmt.Sprintf("operating at queue send max capacity: %d", len(batch)))
			}
		}
	}
}

func New(ctx context.Context, conf mithermtypes.SqsOutputConfig) *output {
	out := &output{
		queue:    sqsfacade.New(conf),
		readings: make(chan mithermtypes.ResolvedReading, 16),
	}

	go out.processor(ctx)

	return out
}

// peek into the channel for more items without blocking
func readMoreUnblocking[T any](limit int, firstItem T, ch <-chan T) []T {
	items := []T{firstItem}

	for len(items) < limit {
		select {
		case item := <-ch:
			items = append(items, item)
		default:
			return items
		}
	}

	return items
}
