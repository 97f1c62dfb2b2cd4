package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"sacco-console/internal/adapters/api"

	"go.uber.org/zap"
)

// UnreadCounter is the call the poller repeats
type UnreadCounter interface {
	UnreadCount(ctx context.Context) (int, error)
}

// NotificationPoller keeps the unread notification count of one visitor
// fresh. It polls at a fixed interval between Start and Stop; a poll that
// fails with an expired session stops the loop.
type NotificationPoller struct {
	counter  UnreadCounter
	interval time.Duration
	log      *zap.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
	count  int
	polled time.Time
}

// NewNotificationPoller creates a stopped poller
func NewNotificationPoller(counter UnreadCounter, interval time.Duration, log *zap.Logger) *NotificationPoller {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &NotificationPoller{counter: counter, interval: interval, log: log}
}

// Start begins polling, with an immediate first poll. Starting a running
// poller does nothing.
func (p *NotificationPoller) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	p.cancel = cancel
	p.done = done
	go p.run(ctx, done)
}

// Stop cancels polling and waits for the loop to exit
func (p *NotificationPoller) Stop() {
	done := p.Cancel()
	if done != nil {
		<-done
	}
}

// Cancel cancels polling without waiting. It is safe to call from inside a
// poll, e.g. from an expiry event raised by the poll's own request.
func (p *NotificationPoller) Cancel() <-chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel == nil {
		return nil
	}
	p.cancel()
	p.cancel = nil
	done := p.done
	p.done = nil
	return done
}

// Running reports whether the poller is active
func (p *NotificationPoller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cancel != nil
}

// Count returns the last polled unread count and when it was taken
func (p *NotificationPoller) Count() (int, time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.count, p.polled
}

func (p *NotificationPoller) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		if !p.poll(ctx) {
			p.release(done)
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// release forgets the loop owning done unless a newer loop replaced it
func (p *NotificationPoller) release(done chan struct{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.done != done {
		return
	}
	p.cancel()
	p.cancel = nil
	p.done = nil
}

func (p *NotificationPoller) poll(ctx context.Context) bool {
	count, err := p.counter.UnreadCount(ctx)
	if err != nil {
		if errors.Is(err, api.ErrUnauthorized) {
			p.log.Debug("notification polling stopped, session rejected")
			return false
		}
		if ctx.Err() == nil {
			p.log.Warn("unread count poll failed", zap.Error(err))
		}
		return true
	}

	p.mu.Lock()
	p.count = count
	p.polled = time.Now()
	p.mu.Unlock()
	return true
}
