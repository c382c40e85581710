package queue

import (
	"context"
	"fmt"
	"hash/fnv"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

type MessageHandler func(ctx context.Context, msg jetstream.Msg) error

type Consumer struct {
	nc *nats.Conn
	js jetstream.JetStream
}

func NewConsumer(natsURL string) (*Consumer, error) {
	nc, err := nats.Connect(natsURL,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		return nil, fmt.Errorf("create jetstream context: %w", err)
	}

	return &Consumer{nc: nc, js: js}, nil
}

// workerIndex pins a subject to one worker goroutine. All frames of a video
// stream share one subject, so the whole stream lands on the same worker.
func workerIndex(subject string, workers int) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(subject))
	return int(h.Sum32() % uint32(workers))
}

// ConsumeFrames starts consuming frame tasks from the FRAMES stream. Each
// stream's subject is hashed to a fixed worker goroutine, so frames of one
// video stream are handled serially in arrival order; distinct streams still
// run in parallel across workerCount workers.
//
// Failed frames are terminated, never Nak'd, and MaxDeliver is 1: a
// redelivered frame would land after newer frames of its stream were already
// applied, and a stale observation is worse than a missed one. The session
// state machine absorbs a dropped frame the same way it absorbs a missed
// detection.
func (c *Consumer) ConsumeFrames(ctx context.Context, consumerName string, handler MessageHandler, workerCount int) error {
	stream, err := c.js.Stream(ctx, FramesStreamName)
	if err != nil {
		return fmt.Errorf("get stream %s: %w", FramesStreamName, err)
	}

	cons, err := stream.CreateOrUpdateConsumer(ctx, jetstream.ConsumerConfig{
		Name:          consumerName,
		Durable:       consumerName,
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       30 * time.Second,
		MaxDeliver:    1,
		FilterSubject: FramesSubjectBase + ".>",
	})
	if err != nil {
		return fmt.Errorf("create consumer %s: %w", consumerName, err)
	}

	if workerCount < 1 {
		workerCount = 1
	}

	// One channel per worker. Buffers stay small so a slow stream
	// backpressures the fetch loop instead of queueing frames that will only
	// arrive late.
	workerChans := make([]chan jetstream.Msg, workerCount)
	for i := range workerChans {
		workerChans[i] = make(chan jetstream.Msg, 2)
	}

	// Fetch loop
	go func() {
		defer func() {
			for _, ch := range workerChans {
				close(ch)
			}
		}()

		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			batch, err := cons.Fetch(workerCount*2, jetstream.FetchMaxWait(5*time.Second))
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				slog.Warn("fetch frames error", "error", err)
				time.Sleep(time.Second)
				continue
			}

			for msg := range batch.Messages() {
				select {
				case workerChans[workerIndex(msg.Subject(), workerCount)] <- msg:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	// Workers
	for i := 0; i < workerCount; i++ {
		go func(workerID int, msgs <-chan jetstream.Msg) {
			for msg := range msgs {
				if err := handler(ctx, msg); err != nil {
					slog.Error("process frame error", "worker", workerID, "error", err, "subject", msg.Subject())
					_ = msg.Term()
				} else {
					_ = msg.Ack()
				}
			}
		}(i, workerChans[i])
	}

	slog.Info("frame consumer started", "consumer", consumerName, "workers", workerCount)
	return nil
}

// ConsumeVisits starts consuming visit notices (for the API to broadcast
// over WebSocket).
func (c *Consumer) ConsumeVisits(ctx context.Context, consumerName string, handler MessageHandler) error {
	stream, err := c.js.Stream(ctx, VisitsStreamName)
	if err != nil {
		return fmt.Errorf("get stream %s: %w", VisitsStreamName, err)
	}

	cons, err := stream.CreateOrUpdateConsumer(ctx, jetstream.ConsumerConfig{
		Name:          consumerName,
		Durable:       consumerName,
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       10 * time.Second,
		MaxDeliver:    3,
		FilterSubject: VisitsSubjectBase + ".>",
		DeliverPolicy: jetstream.DeliverNewPolicy,
	})
	if err != nil {
		return fmt.Errorf("create consumer %s: %w", consumerName, err)
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			batch, err := cons.Fetch(10, jetstream.FetchMaxWait(5*time.Second))
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				time.Sleep(time.Second)
				continue
			}

			for msg := range batch.Messages() {
				if err := handler(ctx, msg); err != nil {
					slog.Error("process visit notice error", "error", err)
					_ = msg.Nak()
				} else {
					_ = msg.Ack()
				}
			}
		}
	}()

	slog.Info("visit consumer started", "consumer", consumerName)
	return nil
}

func (c *Consumer) Close() {
	c.nc.Close()
}
