package parallel

import (
	"runtime"
	"sync"
	"sync/atomic"
)

type (
	WorkerFunc func(func() error)
	WaitFunc   func(done bool) Result
	CancelFunc func()
)

// Result summarises the jobs finished since the pool started.
type Result struct {
	Done, Failed uint64
}

func (r Result) Total() uint64 {
	return r.Done + r.Failed
}

// Pool runs jobs on a fixed number of goroutines. With a single worker jobs
// run inline on the caller.
type Pool struct {
	wg     sync.WaitGroup
	Do     WorkerFunc
	Wait   WaitFunc
	Cancel CancelFunc

	done, failed atomic.Uint64
}

func Start(numWorkers int) *Pool {
	if numWorkers < 1 {
		numWorkers = runtime.GOMAXPROCS(0)
	}

	pool := &Pool{}
	pool.Do = func(f func() error) {
		pool.run(f)
	}
	pool.Wait = func(bool) Result {
		return pool.result()
	}
	pool.Cancel = func() {}

	if numWorkers > 1 {
		workChan := make(chan func() error, numWorkers)

		for range numWorkers {
			pool.wg.Go(func() {
				for f := range workChan {
					pool.run(f)
				}
			})
		}

		pool.Do = func(f func() error) {
			workChan <- f
		}

		pool.Wait = func(done bool) Result {
			if done {
				pool.Cancel()
			}
			pool.wg.Wait()
			return pool.result()
		}
		pool.Cancel = sync.OnceFunc(func() { close(workChan) })
	}

	return pool
}

func (p *Pool) run(f func() error) {
	if err := f(); err != nil {
		p.failed.Add(1)
		return
	}
	p.done.Add(1)
}

func (p *Pool) result() Result {
	return Result{Done: p.done.Load(), Failed: p.failed.Load()}
}
