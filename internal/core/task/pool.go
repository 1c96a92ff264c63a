package task

import (
	"errors"
	"runtime"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Pool runs submitted work on a bounded set of goroutines. Work is collected
// in batches: CompleteTasks waits for everything submitted since the last
// call and returns every error the batch produced.
//
// When all workers are busy the task runs on the submitting goroutine, so a
// task may itself submit tasks without deadlocking the pool.
type Pool struct {
	mu    sync.Mutex
	group *errgroup.Group
	errs  []error
	limit int
	log   *zap.Logger
}

// NewPool creates a pool with the given worker limit. workers <= 0 uses
// GOMAXPROCS.
func NewPool(workers int, log *zap.Logger) *Pool {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Pool{limit: workers, log: log}
}

func (p *Pool) Workers() int { return p.limit }

func (p *Pool) batch() *errgroup.Group {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.group == nil {
		p.group = new(errgroup.Group)
		p.group.SetLimit(p.limit)
	}
	return p.group
}

// RunTask schedules fn.
func (p *Pool) RunTask(fn func() error) {
	run := func() error {
		if err := fn(); err != nil {
			p.mu.Lock()
			p.errs = append(p.errs, err)
			p.mu.Unlock()
			p.log.Error("task failed", zap.Error(err))
			return err
		}
		return nil
	}
	if !p.batch().TryGo(run) {
		_ = run()
	}
}

// CompleteTasks blocks until every task submitted before the call, and every
// task those tasks submit in turn, has finished. It returns their joined
// errors.
func (p *Pool) CompleteTasks() error {
	for {
		p.mu.Lock()
		g := p.group
		p.group = nil
		p.mu.Unlock()
		if g == nil {
			break
		}
		_ = g.Wait()
	}

	p.mu.Lock()
	errs := p.errs
	p.errs = nil
	p.mu.Unlock()
	return errors.Join(errs...)
}
