package session

import (
	"context"
	"errors"
	"time"
)

// ErrClosed is returned for work handed to a stopped session.
var ErrClosed = errors.New("session closed")

// queue is the buffer a flusher owns. It is only touched from the flusher
// goroutine.
type queue[I, B any] interface {
	push(item I)
	// take returns the next write. Without force it may decline.
	take(force bool) (B, bool)
	// restore puts a failed write back at the front.
	restore(batch B)
	empty() bool
}

type writeResult[B any] struct {
	batch B
	err   error
}

// flusher is a debounced write-behind actor. Items pushed within one window
// of each other are written together; at most one write is in flight.
type flusher[I, B any] struct {
	name    string
	window  time.Duration
	timeout time.Duration
	q       queue[I, B]
	write   func(ctx context.Context, batch B) error

	in       chan I
	flushReq chan chan error
	quit     chan struct{}
	done     chan struct{}
}

func newFlusher[I, B any](name string, window, timeout time.Duration, q queue[I, B], write func(context.Context, B) error) *flusher[I, B] {
	f := &flusher[I, B]{
		name:     name,
		window:   window,
		timeout:  timeout,
		q:        q,
		write:    write,
		in:       make(chan I, 256),
		flushReq: make(chan chan error),
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go f.loop()
	return f
}

// push hands an item to the actor. Items pushed after stop are dropped.
func (f *flusher[I, B]) push(item I) bool {
	select {
	case f.in <- item:
		return true
	case <-f.done:
		return false
	}
}

// Flush writes everything queued so far and waits for the result.
func (f *flusher[I, B]) Flush(ctx context.Context) error {
	reply := make(chan error, 1)
	select {
	case f.flushReq <- reply:
	case <-f.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *flusher[I, B]) stop() {
	select {
	case <-f.quit:
	default:
		close(f.quit)
	}
	<-f.done
}

func (f *flusher[I, B]) loop() {
	defer close(f.done)

	timer := time.NewTimer(f.window)
	timer.Stop()
	var (
		timerC   <-chan time.Time
		inflight bool
		forcing  bool
		waiters  []chan error
		results  = make(chan writeResult[B], 1)
	)

	arm := func() {
		timer.Reset(f.window)
		timerC = timer.C
	}
	start := func(force bool) bool {
		batch, ok := f.q.take(force)
		if !ok {
			return false
		}
		inflight = true
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), f.timeout)
			defer cancel()
			results <- writeResult[B]{batch: batch, err: f.write(ctx, batch)}
		}()
		return true
	}
	// drain moves items already handed to push into the queue, so a flush
	// covers every push that returned before it was requested.
	drain := func() {
		for {
			select {
			case item := <-f.in:
				f.q.push(item)
			default:
				return
			}
		}
	}
	answer := func(err error) {
		for _, w := range waiters {
			w <- err
		}
		waiters = nil
		forcing = false
	}

	for {
		select {
		case item := <-f.in:
			f.q.push(item)
			if !forcing {
				arm()
			}

		case <-timerC:
			timerC = nil
			drain()
			if !inflight {
				start(false)
			}

		case w := <-f.flushReq:
			drain()
			waiters = append(waiters, w)
			forcing = true
			if !inflight && !start(true) {
				answer(nil)
			}

		case r := <-results:
			inflight = false
			if r.err != nil {
				f.q.restore(r.batch)
				if forcing {
					answer(r.err)
				}
				arm()
				continue
			}
			if forcing {
				drain()
				if !start(true) {
					answer(nil)
				}
			} else if !f.q.empty() {
				arm()
			}

		case <-f.quit:
			timer.Stop()
			if inflight {
				r := <-results
				if r.err != nil {
					f.q.restore(r.batch)
				}
			}
			answer(ErrClosed)
			return
		}
	}
}
