package visitor

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"sacco-console/internal/adapters/api"
	"sacco-console/internal/config"
	"sacco-console/internal/core/services"
	"sacco-console/internal/core/session"

	"go.uber.org/zap"
)

// Dependencies are shared by every visitor
type Dependencies struct {
	Config     *config.Config
	Durable    session.Provider
	Transient  session.Provider
	Sealer     *session.Sealer
	Events     *api.Events
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// Registry tracks the State of every active visitor
type Registry struct {
	deps        Dependencies
	log         *zap.Logger
	now         func() time.Time
	unsubscribe func()

	mu     sync.Mutex
	states map[string]*State
}

// NewRegistry creates a registry. Pollers of a visitor whose session
// expired are cancelled as soon as the expiry is published.
func NewRegistry(deps Dependencies) *Registry {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Events == nil {
		deps.Events = api.NewEvents()
	}
	if deps.HTTPClient == nil {
		deps.HTTPClient = api.NewHTTPClient(deps.Config.API.Timeout)
	}

	r := &Registry{
		deps:   deps,
		log:    deps.Logger,
		now:    time.Now,
		states: make(map[string]*State),
	}
	r.unsubscribe = deps.Events.Subscribe(func(ev api.Event) {
		if ev.Type != api.EventTokenExpired {
			return
		}
		if state, ok := r.Get(ev.VisitorID); ok {
			state.cancelPolling()
		}
	})
	return r
}

// Get returns the state of a known visitor
func (r *Registry) Get(id string) (*State, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	state, ok := r.states[id]
	return state, ok
}

// Len returns the number of tracked visitors
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.states)
}

// Open returns the request-scoped view of visitor id, creating its state on
// first sight
func (r *Registry) Open(id string) *Visitor {
	now := r.now()

	r.mu.Lock()
	state, ok := r.states[id]
	if !ok {
		state = newState(id, r.deps.Config.Session.RedirectCooldown, now)
		r.states[id] = state
	}
	r.mu.Unlock()

	state.touch(now)
	return r.bind(state)
}

// Rotate re-keys a visitor after a privilege change. The session and any
// unfinished login move from the old id to the new one and the old id is
// forgotten, so a cookie fixed before login grants nothing afterwards.
func (r *Registry) Rotate(from, to string) (*Visitor, error) {
	now := r.now()
	next := newState(to, r.deps.Config.Session.RedirectCooldown, now)

	r.mu.Lock()
	prev, ok := r.states[from]
	delete(r.states, from)
	r.states[to] = next
	r.mu.Unlock()

	if ok {
		prev.cancelPolling()
		prev.handOver(next)
	}

	tokens := session.NewTokenStore(r.deps.Durable.Scope(from))
	if err := tokens.MoveTo(session.NewTokenStore(r.deps.Durable.Scope(to))); err != nil {
		return nil, fmt.Errorf("move session: %w", err)
	}
	pending := session.NewPendingStore(r.deps.Transient.Scope(from), r.deps.Sealer)
	if err := pending.MoveTo(session.NewPendingStore(r.deps.Transient.Scope(to), r.deps.Sealer)); err != nil {
		return nil, fmt.Errorf("move pending login: %w", err)
	}

	r.log.Debug("visitor rotated", zap.String("from", from), zap.String("to", to))
	return r.bind(next), nil
}

func (r *Registry) bind(state *State) *Visitor {
	log := r.log.With(zap.String("visitor", state.ID))

	tokens := session.NewTokenStore(r.deps.Durable.Scope(state.ID))
	pending := session.NewPendingStore(r.deps.Transient.Scope(state.ID), r.deps.Sealer)

	client := api.NewClient(api.Options{
		BaseURL:    r.deps.Config.API.BaseURL,
		HTTPClient: r.deps.HTTPClient,
		Tokens:     tokens,
		Transient:  pending,
		Guard:      state.guard,
		Navigator:  state,
		Events:     r.deps.Events,
		VisitorID:  state.ID,
		Logger:     log,
	})

	notifications := services.NewNotificationService(client)
	return &Visitor{
		ID:            state.ID,
		State:         state,
		Tokens:        tokens,
		Pending:       pending,
		Client:        client,
		Auth:          services.NewAuthService(client, tokens, pending, log),
		System:        services.NewSystemService(client, log),
		Notifications: notifications,
		Unlock:        services.NewUnlockService(client),
		pollInterval:  r.deps.Config.Session.NotificationInterval,
		log:           log,
	}
}

// Prune forgets visitors idle for longer than idle, stopping their pollers
// and dropping their transient data. Durable sessions are left to storage
// expiry.
func (r *Registry) Prune(idle time.Duration) int {
	cutoff := r.now().Add(-idle)

	r.mu.Lock()
	var stale []*State
	for id, state := range r.states {
		if state.LastSeen().Before(cutoff) {
			stale = append(stale, state)
			delete(r.states, id)
		}
	}
	r.mu.Unlock()

	for _, state := range stale {
		state.cancelPolling()
		if err := r.deps.Transient.Scope(state.ID).Clear(); err != nil {
			r.log.Warn("clear transient state failed", zap.String("visitor", state.ID), zap.Error(err))
		}
	}
	if len(stale) > 0 {
		r.log.Info("pruned idle visitors", zap.Int("count", len(stale)))
	}
	return len(stale)
}

// Close stops every poller and detaches from the event bus
func (r *Registry) Close() {
	r.unsubscribe()

	r.mu.Lock()
	states := make([]*State, 0, len(r.states))
	for _, state := range r.states {
		states = append(states, state)
	}
	r.mu.Unlock()

	for _, state := range states {
		if p := state.currentPoller(); p != nil {
			p.Stop()
		}
	}
}
