package query

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kailas-cloud/imgdex/internal/domain"
	"github.com/kailas-cloud/imgdex/internal/domain/search/request"
	"github.com/kailas-cloud/imgdex/internal/domain/search/result"
	"github.com/kailas-cloud/imgdex/internal/metrics"
)

// View is one caller-visible result slot, such as a gallery pane. Every Submit
// supersedes the queries submitted before it; only the newest completed query
// is committed to Current.
type View struct {
	id   string
	exec *Executor
	gen  atomic.Uint64

	mu      sync.Mutex
	current result.Result
	has     bool
}

// NewView creates an empty view bound to the executor.
func (e *Executor) NewView() *View {
	return &View{id: uuid.NewString(), exec: e}
}

// ID returns the view identifier.
func (v *View) ID() string { return v.id }

// Submit starts a query for the view. The returned future fails with
// domain.ErrSuperseded if a newer Submit happened before this query finished.
func (v *View) Submit(ctx context.Context, d request.Description, offset, limit int, force bool) *Future {
	gen := v.gen.Add(1)
	inner := v.exec.Execute(ctx, d, offset, limit, force)

	f := newFuture()
	go func() {
		<-inner.Done()
		f.resolve(v.commit(gen, inner.res, inner.err))
	}()
	return f
}

func (v *View) commit(gen uint64, res result.Result, err error) (result.Result, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if gen != v.gen.Load() {
		metrics.QuerySuperseded.Inc()
		v.exec.logger.Debug("query superseded",
			zap.String("view", v.id), zap.String("fingerprint", res.Fingerprint()), zap.Uint64("generation", gen))
		return result.Result{}, domain.ErrSuperseded
	}
	if err != nil {
		return result.Result{}, err
	}
	v.current, v.has = res, true
	return res, nil
}

// Current returns the last committed result.
func (v *View) Current() (result.Result, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.current, v.has
}

// IsSuperseded reports whether err marks a result dropped for a newer query.
func IsSuperseded(err error) bool { return errors.Is(err, domain.ErrSuperseded) }
