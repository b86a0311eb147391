package workers

import (
	"log/slog"
	"sync"
	"sync/atomic"
)

// Recycler signals when a worker process has finished enough tasks that it
// should drain and exit so the supervisor replaces it.
type Recycler struct {
	max   int64
	count atomic.Int64
	once  sync.Once
	done  chan struct{}
}

// NewRecycler returns a recycler that fires after max terminal tasks. max <= 0
// never fires.
func NewRecycler(max int) *Recycler {
	return &Recycler{max: int64(max), done: make(chan struct{})}
}

func (r *Recycler) TaskFinished() {
	n := r.count.Add(1)
	if r.max > 0 && n >= r.max {
		r.once.Do(func() {
			slog.Info("worker reached task limit, recycling", "tasks", n)
			close(r.done)
		})
	}
}

func (r *Recycler) Done() <-chan struct{} {
	return r.done
}

func (r *Recycler) Count() int64 {
	return r.count.Load()
}
