package server

import (
	"context"
	"hash/fnv"
	"sync"

	"github.com/lingoloop/lingoloop/internal/whatsapp"
	"go.uber.org/zap"
)

// Processor handles one inbound message, including sending any reply.
type Processor interface {
	Process(ctx context.Context, msg *whatsapp.InboundMessage)
}

// ProcessorFunc adapts a function to Processor.
type ProcessorFunc func(ctx context.Context, msg *whatsapp.InboundMessage)

func (f ProcessorFunc) Process(ctx context.Context, msg *whatsapp.InboundMessage) { f(ctx, msg) }

// Dispatcher runs messages on a fixed set of workers. Each sender is
// pinned to one worker so a user's messages are handled in arrival order.
type Dispatcher struct {
	queues    []chan *whatsapp.InboundMessage
	processor Processor
	logger    *zap.Logger

	wg        sync.WaitGroup
	startOnce sync.Once
	stopOnce  sync.Once
}

// NewDispatcher creates a dispatcher with workers goroutines sharing
// queueSize slots between them.
func NewDispatcher(p Processor, workers, queueSize int, logger *zap.Logger) *Dispatcher {
	if workers <= 0 {
		workers = 1
	}
	perWorker := max(queueSize/workers, 1)
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &Dispatcher{processor: p, logger: logger}
	d.queues = make([]chan *whatsapp.InboundMessage, workers)
	for i := range d.queues {
		d.queues[i] = make(chan *whatsapp.InboundMessage, perWorker)
	}
	return d
}

// Start launches the workers. They run until Stop is called; ctx is
// passed to every Process call.
func (d *Dispatcher) Start(ctx context.Context) {
	d.startOnce.Do(func() {
		for i, q := range d.queues {
			d.wg.Add(1)
			go d.work(ctx, i, q)
		}
	})
}

func (d *Dispatcher) work(ctx context.Context, id int, q <-chan *whatsapp.InboundMessage) {
	defer d.wg.Done()
	for msg := range q {
		func() {
			defer func() {
				if r := recover(); r != nil {
					d.logger.Error("message processing panicked",
						zap.Int("worker", id),
						zap.String("from", msg.From),
						zap.Any("panic", r))
				}
			}()
			d.processor.Process(ctx, msg)
		}()
	}
}

// Submit queues msg without blocking. It returns false when the sender's
// worker queue is full and the message was dropped.
func (d *Dispatcher) Submit(msg *whatsapp.InboundMessage) bool {
	select {
	case d.queues[d.shard(msg.From)] <- msg:
		return true
	default:
		return false
	}
}

// Stop closes the queues and waits for queued messages to finish. Submit
// must not be called afterwards.
func (d *Dispatcher) Stop() {
	d.stopOnce.Do(func() {
		for _, q := range d.queues {
			close(q)
		}
	})
	d.wg.Wait()
}

func (d *Dispatcher) shard(sender string) int {
	h := fnv.New32a()
	h.Write([]byte(sender))
	return int(h.Sum32() % uint32(len(d.queues)))
}
