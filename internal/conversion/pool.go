package conversion

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"fxcalc/internal/adapters"
	"fxcalc/internal/domain"

	"github.com/sirupsen/logrus"
)

const deliverTimeout = 5 * time.Second

type Converter interface {
	Convert(req domain.ConversionRequest, track func(domain.State)) (domain.ConversionResult, error)
}

type Config struct {
	Workers        int
	QueueCapacity  int
	RequestTimeout time.Duration
}

type job struct {
	req   domain.ConversionRequest
	state atomic.Int32
}

func (j *job) load() domain.State { return domain.State(j.state.Load()) }

// advance moves the job to s unless it already reached a terminal state.
func (j *job) advance(s domain.State) bool {
	for {
		cur := j.load()
		if cur >= domain.StateCompleted {
			return false
		}
		if j.state.CompareAndSwap(int32(cur), int32(s)) {
			return true
		}
	}
}

// Pool is a fixed set of workers draining a bounded FIFO queue of conversion requests.
// Finished outcomes go to the result cache (the dedup window) and then to the egress
// adapter through a single dispatcher goroutine.
type Pool struct {
	cfg       Config
	converter Converter
	results   adapters.ResultCache
	egress    adapters.Egress

	queue    chan *job
	outbound chan domain.Outcome

	// mu guards closing of queue and outbound against concurrent sends.
	mu        sync.RWMutex
	closed    bool
	outClosed bool

	inflightMu sync.Mutex
	inflight   map[string]*job

	startOnce    sync.Once
	closeOnce    sync.Once
	workers      sync.WaitGroup
	dispatchDone chan struct{}
	now          func() time.Time
}

// Start launches workers and the dispatcher. Cancelling ctx closes the pool gracefully.
func (p *Pool) Start(ctx context.Context) {
	p.startOnce.Do(func() {
		for i := 0; i < p.cfg.Workers; i++ {
			p.workers.Add(1)
			go func(workerID int) {
				defer p.workers.Done()
				p.runWorker(workerID)
			}(i)
		}
		go p.dispatch()

		go func() {
			<-ctx.Done()
			p.Close()
		}()
		logrus.WithFields(logrus.Fields{"workers": p.cfg.Workers, "queue": p.cfg.QueueCapacity}).Info("Conversion pool started")
	})
}

// Submit enqueues req. A request id already answered within the dedup window is
// answered again from the cache; one still in flight is coalesced with the running one.
// A full queue fails immediately with domain.ErrOverloaded.
func (p *Pool) Submit(req domain.ConversionRequest) error {
	if req.ID == "" {
		return domain.ErrRequestIDRequired
	}
	if req.SubmittedAt.IsZero() {
		req.SubmittedAt = p.now()
	}

	if cached, ok := p.results.Get(req.ID); ok {
		logrus.WithField("request_id", req.ID).Debug("Duplicate request answered from dedup window")
		p.redeliver(cached)
		return nil
	}

	j := &job{req: req}
	p.inflightMu.Lock()
	// finish stores the outcome and leaves inflight under this lock, so a run that
	// completed since the lookup above is seen here
	if cached, ok := p.results.Get(req.ID); ok {
		p.inflightMu.Unlock()
		logrus.WithField("request_id", req.ID).Debug("Duplicate request answered from dedup window")
		p.redeliver(cached)
		return nil
	}
	if _, running := p.inflight[req.ID]; running {
		p.inflightMu.Unlock()
		logrus.WithField("request_id", req.ID).Debug("Duplicate request coalesced with in-flight one")
		return nil
	}
	p.inflight[req.ID] = j
	p.inflightMu.Unlock()

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		p.forget(req.ID)
		return domain.ErrPoolClosed
	}
	select {
	case p.queue <- j:
		return nil
	default:
		p.forget(req.ID)
		return domain.ErrOverloaded
	}
}

// Cancel fails a request that no worker has claimed yet.
func (p *Pool) Cancel(requestID string) error {
	p.inflightMu.Lock()
	j, ok := p.inflight[requestID]
	p.inflightMu.Unlock()
	if !ok {
		return domain.ErrResultNotFound
	}
	if !j.state.CompareAndSwap(int32(domain.StateReceived), int32(domain.StateCancelled)) {
		return domain.ErrNotCancelable
	}
	p.finish(j, domain.FailedOutcome(requestID, domain.ErrCancelled, p.now()))
	return nil
}

// Status returns the outcome of a finished request, or the current state of one in flight.
func (p *Pool) Status(requestID string) (domain.Outcome, domain.State, error) {
	if o, ok := p.results.Get(requestID); ok {
		state := domain.StateFailed
		if o.Succeeded() {
			state = domain.StateCompleted
		} else if o.Failure != nil && o.Failure.Reason == domain.ReasonCancelled {
			state = domain.StateCancelled
		}
		return o, state, nil
	}
	p.inflightMu.Lock()
	j, ok := p.inflight[requestID]
	p.inflightMu.Unlock()
	if ok {
		return domain.Outcome{RequestID: requestID, State: j.load().String()}, j.load(), nil
	}
	return domain.Outcome{}, 0, domain.ErrResultNotFound
}

// Close stops intake, lets workers drain the queue and waits until every outcome was
// handed to the egress adapter.
func (p *Pool) Close() {
	p.closeOnce.Do(func() {
		// a pool that never started has no dispatcher to wait for
		p.startOnce.Do(func() { close(p.dispatchDone) })

		p.mu.Lock()
		p.closed = true
		close(p.queue)
		p.mu.Unlock()

		p.workers.Wait()

		p.mu.Lock()
		p.outClosed = true
		close(p.outbound)
		p.mu.Unlock()

		<-p.dispatchDone
		logrus.Info("Conversion pool stopped")
	})
}

func (p *Pool) runWorker(workerID int) {
	for j := range p.queue {
		p.process(workerID, j)
	}
}

func (p *Pool) process(workerID int, j *job) {
	// a cancelled job was already answered by Cancel
	if !j.state.CompareAndSwap(int32(domain.StateReceived), int32(domain.StateTokenizing)) {
		return
	}
	log := logrus.WithFields(logrus.Fields{"request_id": j.req.ID, "worker": workerID})

	type converted struct {
		result domain.ConversionResult
		err    error
	}
	track := func(s domain.State) {
		if j.advance(s) {
			log.WithField("state", s.String()).Trace("Request state changed")
		}
	}

	var (
		res converted
		out domain.Outcome
	)
	if p.cfg.RequestTimeout <= 0 {
		res.result, res.err = p.converter.Convert(j.req, track)
	} else {
		done := make(chan converted, 1)
		go func() {
			r, err := p.converter.Convert(j.req, track)
			done <- converted{result: r, err: err}
		}()

		timer := time.NewTimer(p.cfg.RequestTimeout)
		select {
		case res = <-done:
			timer.Stop()
		case <-timer.C:
			res.err = domain.ErrTimeout
		}
	}

	if res.err != nil {
		out = domain.FailedOutcome(j.req.ID, res.err, p.now())
		log.WithError(res.err).WithField("reason", out.Failure.Reason).Info("Conversion failed")
	} else {
		out = domain.CompletedOutcome(j.req.ID, res.result, p.now())
		log.WithFields(logrus.Fields{
			"target":   res.result.Target,
			"snapshot": res.result.SnapshotVersion,
		}).Debug("Conversion completed")
	}
	p.finish(j, out)
}

func (p *Pool) finish(j *job, out domain.Outcome) {
	final := domain.StateFailed
	switch {
	case out.Succeeded():
		final = domain.StateCompleted
	case out.Failure != nil && out.Failure.Reason == domain.ReasonCancelled:
		final = domain.StateCancelled
	}
	j.state.Store(int32(final))

	p.inflightMu.Lock()
	p.results.Set(out)
	delete(p.inflight, j.req.ID)
	p.inflightMu.Unlock()
	p.emit(out)
}

func (p *Pool) forget(requestID string) {
	p.inflightMu.Lock()
	delete(p.inflight, requestID)
	p.inflightMu.Unlock()
}

func (p *Pool) emit(out domain.Outcome) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.outClosed {
		logrus.WithField("request_id", out.RequestID).Warn("Outcome dropped, pool is closed")
		return
	}
	p.outbound <- out
}

// redeliver never blocks the submitting caller.
func (p *Pool) redeliver(out domain.Outcome) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.outClosed {
		return
	}
	select {
	case p.outbound <- out:
	default:
		logrus.WithField("request_id", out.RequestID).Warn("Outbound queue is full, duplicate answer dropped")
	}
}

func (p *Pool) dispatch() {
	defer close(p.dispatchDone)
	for out := range p.outbound {
		ctx, cancel := context.WithTimeout(context.Background(), deliverTimeout)
		if err := p.egress.Deliver(ctx, out); err != nil {
			logrus.WithError(err).WithField("request_id", out.RequestID).Warn("Outcome wasn't delivered")
		}
		cancel()
	}
}

func NewPool(cfg Config, converter Converter, results adapters.ResultCache, egress adapters.Egress) *Pool {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.QueueCapacity <= 0 {
		cfg.QueueCapacity = 1
	}
	return &Pool{
		cfg:          cfg,
		converter:    converter,
		results:      results,
		egress:       egress,
		queue:        make(chan *job, cfg.QueueCapacity),
		outbound:     make(chan domain.Outcome, cfg.QueueCapacity+cfg.Workers),
		inflight:     make(map[string]*job),
		dispatchDone: make(chan struct{}),
		now:          time.Now,
	}
}
