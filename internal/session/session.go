// Package session owns the authenticated CourtReserve session of each
// account and serializes every change to it.
package session

import (
	"context"
	"errors"
	"fmt"
	"net/http/cookiejar"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/example/courtsniper/internal/cookiestore"
	"github.com/example/courtsniper/internal/courtreserve"
	"github.com/example/courtsniper/internal/venue"
)

type State int

const (
	Unauthenticated State = iota
	Authenticated
	Stale
)

func (s State) String() string {
	switch s {
	case Authenticated:
		return "authenticated"
	case Stale:
		return "stale"
	default:
		return "unauthenticated"
	}
}

type Credentials struct {
	Email    string
	Password string
}

// Handle is the session as of one generation. Callers pass it back to
// MarkStale and Reauthenticate so a refresh done by someone else is not
// repeated.
type Handle struct {
	Client     *courtreserve.Client
	Generation uint64
}

type Account struct {
	creds   Credentials
	venue   venue.Profile
	store   cookiestore.Store
	timeout time.Duration
	log     *zap.Logger

	mu     sync.Mutex
	state  State
	client *courtreserve.Client
	gen    uint64
}

func NewAccount(creds Credentials, p venue.Profile, store cookiestore.Store, timeout time.Duration, log *zap.Logger) *Account {
	if log == nil {
		log = zap.NewNop()
	}
	if store == nil {
		store = cookiestore.NewMemoryStore()
	}
	return &Account{
		creds:   creds,
		venue:   p,
		store:   store,
		timeout: timeout,
		log:     log.With(zap.String("actor", creds.Email)),
	}
}

func (a *Account) Email() string { return a.creds.Email }

func (a *Account) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

func (a *Account) handle() Handle {
	return Handle{Client: a.client, Generation: a.gen}
}

func (a *Account) storeKey() string {
	return a.venue.Name + ":" + a.creds.Email
}

// newClient builds a client with an empty jar, optionally seeded from the
// store. It reports whether persisted cookies were found.
func (a *Account) newClient(ctx context.Context, restore bool) (*courtreserve.Client, bool, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, false, err
	}
	c := courtreserve.New(a.venue, jar, a.timeout, a.log)
	if !restore {
		return c, false, nil
	}
	saved, err := a.store.Load(ctx, a.storeKey())
	switch {
	case errors.Is(err, cookiestore.ErrNotFound):
		return c, false, nil
	case err != nil:
		// an unreadable jar is treated as absent
		a.log.Warn("cookie jar unreadable, starting fresh", zap.Error(err))
		return c, false, nil
	}
	cookiestore.Restore(jar, saved)
	return c, len(saved) > 0, nil
}

// login runs the handshake on a fresh client. Callers hold a.mu.
func (a *Account) login(ctx context.Context, hard bool) error {
	if hard {
		if err := a.store.Delete(ctx, a.storeKey()); err != nil {
			a.log.Warn("delete cookie jar", zap.Error(err))
		}
	}
	c, _, err := a.newClient(ctx, !hard)
	if err != nil {
		return err
	}
	if err := c.Login(ctx, a.creds.Email, a.creds.Password); err != nil {
		return err
	}
	a.client = c
	a.gen++
	a.state = Authenticated
	if err := a.store.Save(ctx, a.storeKey(), cookiestore.Snapshot(c.Jar(), c.Sites())); err != nil {
		a.log.Warn("save cookie jar", zap.Error(err))
	}
	a.log.Info("session established", zap.Bool("hard", hard), zap.Uint64("generation", a.gen))
	return nil
}

// EnsureLoggedIn performs the login handshake unless the account is
// already authenticated.
func (a *Account) EnsureLoggedIn(ctx context.Context) (Handle, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state == Authenticated {
		return a.handle(), nil
	}
	if err := a.login(ctx, false); err != nil {
		return Handle{}, fmt.Errorf("login %s: %w", a.creds.Email, err)
	}
	return a.handle(), nil
}

// Session returns the current session. An unauthenticated account with a
// persisted jar resumes it without logging in; otherwise it logs in.
func (a *Account) Session(ctx context.Context) (Handle, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	switch a.state {
	case Authenticated:
		return a.handle(), nil
	case Unauthenticated:
		c, restored, err := a.newClient(ctx, true)
		if err != nil {
			return Handle{}, err
		}
		if restored {
			a.client = c
			a.gen++
			a.state = Authenticated
			a.log.Debug("session restored from cookie jar")
			return a.handle(), nil
		}
	}
	if err := a.login(ctx, false); err != nil {
		return Handle{}, fmt.Errorf("login %s: %w", a.creds.Email, err)
	}
	return a.handle(), nil
}

// MarkStale records that a request made with h failed for session reasons.
func (a *Account) MarkStale(h Handle) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if h.Generation == a.gen && a.state == Authenticated {
		a.state = Stale
		a.log.Info("session marked stale", zap.Uint64("generation", a.gen))
	}
}

// Reauthenticate replaces the session h belongs to. Soft reuses the
// persisted jar for the handshake; hard discards it first. If another
// caller already replaced that session, its result is returned as is.
func (a *Account) Reauthenticate(ctx context.Context, h Handle, hard bool) (Handle, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state == Authenticated && a.gen != h.Generation {
		return a.handle(), nil
	}
	if err := a.login(ctx, hard); err != nil {
		a.state = Stale
		return Handle{}, fmt.Errorf("reauthenticate %s: %w", a.creds.Email, err)
	}
	return a.handle(), nil
}

// WarmUp exercises the session off the hot path. A failed ping triggers a
// hard re-login. Accounts that never logged in are left alone.
func (a *Account) WarmUp(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.client == nil {
		return nil
	}
	err := a.client.Ping(ctx)
	if err == nil && a.state == Authenticated {
		a.log.Debug("session warm")
		return nil
	}
	a.log.Warn("warm-up failed, refreshing session", zap.Error(err), zap.Stringer("state", a.state))
	if err := a.login(ctx, true); err != nil {
		a.state = Stale
		return fmt.Errorf("warm-up %s: %w", a.creds.Email, err)
	}
	return nil
}

// Close flushes the current cookies to the store.
func (a *Account) Close(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.client == nil || a.state != Authenticated {
		return nil
	}
	return a.store.Save(ctx, a.storeKey(), cookiestore.Snapshot(a.client.Jar(), a.client.Sites()))
}
