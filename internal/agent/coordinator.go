package agent

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/fieldclock/server/internal/models"
	"github.com/fieldclock/server/internal/observability"
)

// DefaultMaxRetries is how many transport failures an operation may
// accumulate before it is parked as needs_attention
const DefaultMaxRetries = 8

// DrainResult summarizes one drain pass
type DrainResult struct {
	Sent           int
	Failed         int
	Rejected       int
	NeedsAttention int
}

// Coordinator owns the single drain loop that moves queued operations to
// the server. All sends happen on one goroutine, in queue order, so a
// clock-out never overtakes its clock-in.
type Coordinator struct {
	queue     *Queue
	transport Transport
	monitor   *ConnectivityMonitor

	maxRetries int
	interval   time.Duration

	kick     chan struct{}
	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	mu       sync.Mutex
	inFlight string

	// onResult is invoked after each terminal outcome, for CLI feedback
	onResult func(op *models.PendingOperation, resp *models.ClockResponse, err error)
}

// NewCoordinator creates a new Coordinator
func NewCoordinator(queue *Queue, transport Transport, monitor *ConnectivityMonitor, maxRetries int, interval time.Duration) *Coordinator {
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	if interval <= 0 {
		interval = time.Minute
	}
	return &Coordinator{
		queue:      queue,
		transport:  transport,
		monitor:    monitor,
		maxRetries: maxRetries,
		interval:   interval,
		kick:       make(chan struct{}, 1),
		stopChan:   make(chan struct{}),
	}
}

// SetResultCallback registers a callback invoked after each send outcome
func (c *Coordinator) SetResultCallback(fn func(op *models.PendingOperation, resp *models.ClockResponse, err error)) {
	c.onResult = fn
}

// Start launches the drain loop. The loop wakes on enqueues, on
// offline-to-online transitions, and on a periodic tick for operations
// waiting out their backoff.
func (c *Coordinator) Start() {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()

		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()

		var edges <-chan struct{}
		if c.monitor != nil {
			edges = c.monitor.OnlineEdges()
		}

		for {
			select {
			case <-c.kick:
				c.drain()
			case <-edges:
				c.drain()
			case <-ticker.C:
				c.drain()
			case <-c.stopChan:
				return
			}
		}
	}()
}

// Stop halts the drain loop and waits for an in-progress pass to finish
func (c *Coordinator) Stop() {
	c.stopOnce.Do(func() {
		close(c.stopChan)
	})
	c.wg.Wait()
}

// Kick wakes the drain loop without blocking
func (c *Coordinator) Kick() {
	select {
	case c.kick <- struct{}{}:
	default:
	}
}

// SubmitOperation enqueues an operation and wakes the drain loop. Returns
// false when an operation with the same event ID is already queued.
func (c *Coordinator) SubmitOperation(ctx context.Context, op *models.PendingOperation) (bool, error) {
	inserted, err := c.queue.Enqueue(ctx, op)
	if err != nil {
		return false, err
	}
	c.Kick()
	return inserted, nil
}

// Cancel removes a queued operation unless it is currently being sent
func (c *Coordinator) Cancel(ctx context.Context, eventID string) (bool, error) {
	c.mu.Lock()
	if c.inFlight == eventID {
		c.mu.Unlock()
		return false, errors.New("operation is being sent")
	}
	c.mu.Unlock()

	return c.queue.Cancel(ctx, eventID)
}

// DrainOnce runs a single drain pass synchronously
func (c *Coordinator) DrainOnce(ctx context.Context) (DrainResult, error) {
	var result DrainResult

	if c.monitor != nil && !c.monitor.IsOnline() {
		return result, nil
	}

	now := time.Now().UTC()
	ops, err := c.queue.ListReady(ctx, now)
	if err != nil {
		return result, err
	}

	for _, op := range ops {
		select {
		case <-c.stopChan:
			return result, nil
		default:
		}

		outcome := c.send(ctx, op)
		switch outcome {
		case sendOK:
			result.Sent++
		case sendRetry:
			result.Failed++
			// A transport failure means the server is unreachable; sending
			// the rest of the queue now would only burn retry budget.
			return result, nil
		case sendRejected:
			result.Rejected++
		case sendParked:
			result.NeedsAttention++
		}
	}

	return result, nil
}

type sendOutcome int

const (
	sendOK sendOutcome = iota
	sendRetry
	sendRejected
	sendParked
)

func (c *Coordinator) send(ctx context.Context, op *models.PendingOperation) sendOutcome {
	c.mu.Lock()
	c.inFlight = op.EventID
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.inFlight = ""
		c.mu.Unlock()
	}()

	log := observability.WithFields(map[string]interface{}{
		"event_id":  op.EventID,
		"operation": op.OperationKind,
	})

	resp, err := c.transport.Submit(ctx, op)
	if err == nil {
		if qErr := c.queue.RecordSuccess(ctx, op.EventID); qErr != nil {
			log.Errorf("Failed to remove acknowledged operation: %v", qErr)
		}
		log.Infof("Operation acknowledged, entry %s", resp.EntryID)
		c.notify(op, resp, nil)
		return sendOK
	}

	var rejection *models.Rejection
	if errors.As(err, &rejection) && !rejection.RetryableOnServer() {
		// Final rejection. Retrying would return the same answer.
		if qErr := c.queue.MarkNeedsAttention(ctx, op.EventID, rejection.Error()); qErr != nil {
			log.Errorf("Failed to park rejected operation: %v", qErr)
		}
		log.Warnf("Operation rejected: %v", rejection)
		c.notify(op, nil, rejection)
		return sendRejected
	}

	now := time.Now().UTC()
	if qErr := c.queue.RecordFailure(ctx, op.EventID, err.Error(), now); qErr != nil {
		log.Errorf("Failed to record operation failure: %v", qErr)
		return sendRetry
	}

	if op.RetryCount+1 >= c.maxRetries {
		if qErr := c.queue.MarkNeedsAttention(ctx, op.EventID, err.Error()); qErr != nil {
			log.Errorf("Failed to park exhausted operation: %v", qErr)
		}
		log.Warnf("Operation exhausted %d retries: %v", c.maxRetries, err)
		c.notify(op, nil, err)
		return sendParked
	}

	log.Warnf("Operation send failed (attempt %d): %v", op.RetryCount+1, err)
	return sendRetry
}

func (c *Coordinator) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	if _, err := c.DrainOnce(ctx); err != nil {
		observability.Errorf("Drain pass failed: %v", err)
	}
}

func (c *Coordinator) notify(op *models.PendingOperation, resp *models.ClockResponse, err error) {
	if c.onResult != nil {
		c.onResult(op, resp, err)
	}
}
