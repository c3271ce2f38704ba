// Package ui provides the single-threaded event loop every piece of UI state
// lives on, plus the place input dialog.
package ui

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog/log"
)

var ErrStopped = errors.New("ui loop stopped")

// Loop runs posted functions one at a time, in order, on the goroutine that
// called Run. Work that touches UI state must go through it.
type Loop struct {
	mu      sync.Mutex
	queue   []func()
	stopped bool

	wake     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

func NewLoop() *Loop {
	return &Loop{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
}

// Post enqueues fn and returns immediately. It reports false once the loop
// has been stopped.
func (l *Loop) Post(fn func()) bool {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return false
	}
	l.queue = append(l.queue, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	return true
}

// Call runs fn on the loop and waits for it to finish.
func (l *Loop) Call(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	if !l.Post(func() { defer close(finished); fn() }) {
		return ErrStopped
	}
	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-l.done:
		return ErrStopped
	}
}

// Run processes posted work until ctx is cancelled or Stop is called.
func (l *Loop) Run(ctx context.Context) error {
	for {
		l.mu.Lock()
		batch := l.queue
		l.queue = nil
		l.mu.Unlock()

		for _, fn := range batch {
			l.run(fn)
		}

		select {
		case <-ctx.Done():
			l.Stop()
			return ctx.Err()
		case <-l.done:
			return nil
		case <-l.wake:
		}
	}
}

func (l *Loop) run(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("ui task panicked")
		}
	}()
	fn()
}

// Stop makes the loop reject new work and return from Run. Work still
// queued is dropped.
func (l *Loop) Stop() {
	l.stopOnce.Do(func() {
		l.mu.Lock()
		l.stopped = true
		l.queue = nil
		l.mu.Unlock()
		close(l.done)
	})
}

func (l *Loop) Done() <-chan struct{} { return l.done }

// Async runs work off the loop and hands its result to done on the loop.
// This is the only way completions reach UI state.
func Async[T any](ctx context.Context, l *Loop, work func(context.Context) (T, error), done func(T, error)) {
	go func() {
		v, err := work(ctx)
		if !l.Post(func() { done(v, err) }) {
			log.Debug().Err(err).Msg("ui loop stopped before completion was delivered")
		}
	}()
}
