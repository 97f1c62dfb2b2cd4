package visitor

import (
	"context"
	"time"

	"sacco-console/internal/adapters/api"
	"sacco-console/internal/core/domain"
	"sacco-console/internal/core/services"
	"sacco-console/internal/core/session"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

const localsKey = "visitor"

// Visitor bundles the services of one browser for the duration of a request
type Visitor struct {
	ID            string
	State         *State
	Tokens        *session.TokenStore
	Pending       *session.PendingStore
	Client        *api.Client
	Auth          *services.AuthService
	System        *services.SystemService
	Notifications *services.NotificationService
	Unlock        *services.UnlockService

	pollInterval time.Duration
	log          *zap.Logger
}

// Attach stores v on the request
func Attach(c *fiber.Ctx, v *Visitor) {
	c.Locals(localsKey, v)
}

// From returns the visitor of the request, or nil outside the visitor
// middleware
func From(c *fiber.Ctx) *Visitor {
	v, _ := c.Locals(localsKey).(*Visitor)
	return v
}

// Logger returns a logger tagged with the visitor id
func (v *Visitor) Logger() *zap.Logger {
	return v.log
}

// Navigate queues a navigation the visitor middleware turns into a 303
func (v *Visitor) Navigate(target string) {
	v.State.Navigate(target)
}

// Resource returns the CRUD service for a catalogue entry
func (v *Visitor) Resource(spec services.ResourceSpec) *services.ResourceService {
	return services.NewResourceService(v.Client, spec)
}

// User returns the signed-in user, if any
func (v *Visitor) User() (*domain.User, bool) {
	return v.Auth.CurrentUser()
}

// Status returns the SystemStatus for this visitor, fetching it once. A
// failed fetch is cached as well, as the fail-safe snapshot; RefreshStatus
// asks again.
func (v *Visitor) Status(ctx context.Context) domain.SystemStatus {
	if status, ok := v.State.CachedStatus(); ok {
		return status
	}
	return v.RefreshStatus(ctx)
}

// RefreshStatus fetches the SystemStatus again
func (v *Visitor) RefreshStatus(ctx context.Context) domain.SystemStatus {
	status, _ := v.System.Status(ctx)
	v.State.SetStatus(status)
	return status
}

// StartPolling starts the unread notification poller if it is not running.
// The poller outlives the request; it is stopped by logout, session expiry
// or pruning.
func (v *Visitor) StartPolling() {
	poller := v.State.pollerOrCreate(func() *services.NotificationPoller {
		return services.NewNotificationPoller(v.Notifications, v.pollInterval, v.log)
	})
	poller.Start(context.Background())
}

// StopPolling stops the poller and waits for it
func (v *Visitor) StopPolling() {
	if p := v.State.currentPoller(); p != nil {
		p.Stop()
	}
}

// UnreadCount returns the last polled unread count
func (v *Visitor) UnreadCount() (int, bool) {
	p := v.State.currentPoller()
	if p == nil {
		return 0, false
	}
	count, at := p.Count()
	return count, !at.IsZero()
}
