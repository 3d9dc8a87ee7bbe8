package isolation

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type job struct {
	ctx   context.Context
	req   Request
	reply chan Response
}

// Pool is a fixed set of in-process workers. Each worker is a goroutine
// draining a shared mailbox one request at a time.
type Pool struct {
	handler *Handler
	logger  *zap.Logger

	jobs   chan job
	stopCh chan struct{}
	wg     sync.WaitGroup

	closeOnce sync.Once
}

// NewPool starts size workers backed by handler.
func NewPool(size int, handler *Handler, logger *zap.Logger) *Pool {
	if size < 1 {
		size = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	p := &Pool{
		handler: handler,
		logger:  logger,
		jobs:    make(chan job),
		stopCh:  make(chan struct{}),
	}
	for i := 0; i < size; i++ {
		p.wg.Add(1)
		go p.work(i)
	}
	return p
}

func (p *Pool) work(id int) {
	defer p.wg.Done()
	logger := p.logger.With(zap.Int("worker", id))

	for {
		select {
		case <-p.stopCh:
			return
		case j := <-p.jobs:
			logger.Debug("handling request", zap.String("id", j.req.ID))
			j.reply <- p.handler.Handle(j.ctx, j.req)
		}
	}
}

// Request sends req to the next free worker and waits for its response.
func (p *Pool) Request(ctx context.Context, req Request) (Response, error) {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	j := job{ctx: ctx, req: req, reply: make(chan Response, 1)}
	select {
	case p.jobs <- j:
	case <-p.stopCh:
		return Response{}, ErrWorkerClosed
	case <-ctx.Done():
		return Response{}, ctx.Err()
	}

	select {
	case resp := <-j.reply:
		return check(req, resp)
	case <-p.stopCh:
		return Response{}, ErrWorkerClosed
	}
}

// Close stops the workers once their current request completes.
func (p *Pool) Close() error {
	p.closeOnce.Do(func() {
		close(p.stopCh)
	})
	p.wg.Wait()
	return nil
}
