package query

import (
	"context"

	"github.com/kailas-cloud/imgdex/internal/domain/search/result"
)

// Future is the pending outcome of an asynchronous query.
type Future struct {
	done chan struct{}
	res  result.Result
	err  error
}

func newFuture() *Future {
	return &Future{done: make(chan struct{})}
}

func (f *Future) resolve(res result.Result, err error) {
	f.res, f.err = res, err
	close(f.done)
}

// Done is closed once the result is available.
func (f *Future) Done() <-chan struct{} { return f.done }

// Wait blocks until the query finishes or ctx ends. Cancelling ctx abandons the
// wait only; the query itself runs to completion.
func (f *Future) Wait(ctx context.Context) (result.Result, error) {
	select {
	case <-f.done:
		return f.res, f.err
	case <-ctx.Done():
		return result.Result{}, ctx.Err()
	}
}

// Failed returns a future already resolved with err.
func Failed(err error) *Future {
	f := newFuture()
	f.resolve(result.Result{}, err)
	return f
}
