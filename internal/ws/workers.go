package ws

import "context"

// Pool bounds the number of inbound frames being processed across all
// connections. Submit blocks until a slot is free and until the task returns,
// so each connection still handles its frames one at a time.
type Pool struct {
	slots chan struct{}
}

// NewPool builds a pool with the given concurrency limit. A limit below one
// is treated as one.
func NewPool(limit int) *Pool {
	if limit < 1 {
		limit = 1
	}
	return &Pool{slots: make(chan struct{}, limit)}
}

// Submit runs task on a pool slot and waits for it to finish. It returns
// early only when ctx is cancelled before a slot was acquired.
func (p *Pool) Submit(ctx context.Context, task func()) error {
	select {
	case p.slots <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-p.slots }()
	task()
	return nil
}
