// Package accounts implements the Account Registry: a
// set of authenticated client handles with one designated active account,
// routing each subsystem's operations to the correct session.
package accounts

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/megacustom/core/internal/cloudclient"
	"github.com/megacustom/core/internal/events"
)

// Account bundles an authenticated client handle with display metadata.
// The Client field is shared (not copied) across every snapshot returned
// by All/Active: only the Cloud Client adapter holds a live session
// handle, every other subsystem sees the same shared reference.
type Account struct {
	ID          string
	Email       string
	DisplayName string
	Client      cloudclient.Client
}

// ErrNotFound is returned by operations on an unknown account id.
var ErrNotFound = fmt.Errorf("accounts: not found")

// ActiveChanged is published on events.TopicLogin whenever Switch succeeds,
// so subsystems rebind views to the new account's client.
type ActiveChanged struct {
	AccountID string
	Email     string
}

// Registry holds the account set and the single active id.
type Registry struct {
	mu       sync.RWMutex
	byID     map[string]*Account
	activeID string
	bus      *events.Bus
	logger   *slog.Logger
}

// New creates an empty Registry.
func New(bus *events.Bus, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}

	return &Registry{byID: make(map[string]*Account), bus: bus, logger: logger}
}

// RegisterExisting adds an already-authenticated client under a new id,
// making it active if it is the first account registered.
func (r *Registry) RegisterExisting(email, displayName string, client cloudclient.Client) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := uuid.NewString()
	r.byID[id] = &Account{ID: id, Email: email, DisplayName: displayName, Client: client}

	if r.activeID == "" {
		r.activeID = id
	}

	r.logger.Info("accounts: registered", slog.String("account_id", id), slog.String("email", email))

	return id
}

// Switch makes id the active account and publishes ActiveChanged.
func (r *Registry) Switch(id string) error {
	r.mu.Lock()

	acct, ok := r.byID[id]
	if !ok {
		r.mu.Unlock()
		return ErrNotFound
	}

	r.activeID = id
	r.mu.Unlock()

	r.logger.Info("accounts: switched active account", slog.String("account_id", id))

	if r.bus != nil {
		r.bus.Publish(events.Event{
			Topic:   events.TopicLogin,
			Kind:    "ActiveAccountChanged",
			Payload: ActiveChanged{AccountID: acct.ID, Email: acct.Email},
		})
	}

	return nil
}

// All returns every registered account, in no particular order.
func (r *Registry) All() []Account {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Account, 0, len(r.byID))
	for _, a := range r.byID {
		out = append(out, *a)
	}

	return out
}

// Active returns the currently active account, if any.
func (r *Registry) Active() (Account, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.activeID == "" {
		return Account{}, false
	}

	return *r.byID[r.activeID], true
}

// UpdateSession replaces the client handle for id (e.g. after a token
// refresh re-creates the underlying session object).
func (r *Registry) UpdateSession(id string, client cloudclient.Client) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	acct, ok := r.byID[id]
	if !ok {
		return ErrNotFound
	}

	acct.Client = client

	return nil
}

// Remove deletes id from the registry. If id was active and other
// accounts remain, one of them becomes active (arbitrarily) to preserve
// the invariant that exactly one account is active whenever the set is
// non-empty.
func (r *Registry) Remove(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[id]; !ok {
		return ErrNotFound
	}

	delete(r.byID, id)

	if r.activeID != id {
		return nil
	}

	r.activeID = ""
	for other := range r.byID {
		r.activeID = other
		break
	}

	return nil
}

// Get returns the account for id.
func (r *Registry) Get(id string) (Account, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	acct, ok := r.byID[id]
	if !ok {
		return Account{}, false
	}

	return *acct, true
}
