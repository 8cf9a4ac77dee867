package session

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/spec-kit/astro-gateway/internal/backend"
	"github.com/spec-kit/astro-gateway/internal/domain"
)

// SyncStatus is the outcome kind of a synchronisation.
type SyncStatus string

const (
	// SyncIdle means there was no session cookie; nothing happened.
	SyncIdle SyncStatus = "idle"
	// SyncVerified means the backend confirmed the token and state was applied.
	SyncVerified SyncStatus = "verified"
	// SyncCached means an earlier verification of the same token was reused.
	SyncCached SyncStatus = "cached"
	// SyncStale means verification succeeded but the store changed meanwhile,
	// so the result was dropped.
	SyncStale SyncStatus = "stale"
	// SyncEvicted means verification failed and all client state was purged.
	SyncEvicted SyncStatus = "evicted"
	// SyncLoggedOut is returned by Logout.
	SyncLoggedOut SyncStatus = "logged_out"
)

// Outcome describes what a Sync or Logout did.
type Outcome struct {
	Status   SyncStatus
	User     *domain.User
	Tier     domain.PlanTier
	Redirect string
	Failure  backend.AuthErrorKind
}

// Dependencies groups the collaborators of a Synchronizer.
type Dependencies struct {
	Verifier  Verifier
	Store     *Store
	Cookies   CookieJar
	Local     LocalStore
	Cache     *QueryCache
	Navigator Navigator
	Recorder  Recorder
	Logger    *zap.Logger
}

// Synchronizer reconciles a client's session store with the backend.
type Synchronizer struct {
	deps          Dependencies
	sessionCookie string
	loginPath     string
}

// NewSynchronizer wires a synchronizer for one client.
func NewSynchronizer(deps Dependencies, sessionCookie, loginPath string) (*Synchronizer, error) {
	if deps.Verifier == nil || deps.Store == nil || deps.Cookies == nil || deps.Local == nil {
		return nil, errors.New("session: verifier, store, cookies and local store are required")
	}
	if deps.Cache == nil {
		deps.Cache = NewQueryCache(0, 0)
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &Synchronizer{deps: deps, sessionCookie: sessionCookie, loginPath: loginPath}, nil
}

// Sync verifies the session cookie once and applies the result.
//
// Without a cookie it does nothing. A token verified earlier is served from
// the query cache. On success the user, token and derived tier are stored
// unless the store was mutated while the request was in flight. On any
// failure the store, cookie, persisted tier and query cache are cleared and
// the client is sent to the login page.
func (s *Synchronizer) Sync(ctx context.Context) (Outcome, error) {
	token, ok := s.deps.Cookies.Get(s.sessionCookie)
	if !ok || token == "" {
		return s.done(Outcome{Status: SyncIdle}), nil
	}

	if user, hit := s.deps.Cache.Get(token); hit {
		return s.apply(ctx, s.deps.Store.Generation(), user, token, SyncCached)
	}

	gen := s.deps.Store.Generation()
	res := s.deps.Verifier.VerifyToken(ctx, token)
	if !res.OK() {
		kind := backend.KindMalformed
		if res.Err != nil {
			kind = res.Err.Kind
		}
		s.deps.Logger.Info("session verification failed",
			zap.String("client_id", s.deps.Store.ClientID()),
			zap.String("kind", string(kind)))
		return s.evict(ctx, kind)
	}
	return s.apply(ctx, gen, res.User, token, SyncVerified)
}

// Logout tears down the client's session state.
func (s *Synchronizer) Logout(ctx context.Context) (Outcome, error) {
	err := s.purge(ctx)
	if s.deps.Navigator != nil {
		s.deps.Navigator.Navigate(s.loginPath)
	}
	return s.done(Outcome{Status: SyncLoggedOut, Redirect: s.loginPath}), err
}

func (s *Synchronizer) apply(ctx context.Context, gen uint64, user *domain.User, token string, status SyncStatus) (Outcome, error) {
	applied, ok := s.deps.Store.SetIfGeneration(ctx, gen, user, token)
	if !ok {
		return s.stale()
	}

	// a logout may land between the set and here, even from an event handler
	tier := DeriveTier(user.Subscriptions)
	var setErr error
	committed := s.deps.Store.CommitIfGeneration(applied, func() {
		s.deps.Cache.Add(token, user)
		setErr = s.deps.Local.Set(ctx, TierKey, string(tier))
	})
	if !committed {
		return s.stale()
	}

	var err error
	if setErr != nil {
		err = errors.Join(errors.New("persist plan tier"), setErr)
		s.deps.Logger.Warn("persist plan tier", zap.Error(setErr))
	}
	return s.done(Outcome{Status: status, User: user.Clone(), Tier: tier}), err
}

func (s *Synchronizer) stale() (Outcome, error) {
	s.deps.Logger.Debug("dropping stale verification",
		zap.String("client_id", s.deps.Store.ClientID()))
	return s.done(Outcome{Status: SyncStale}), nil
}

func (s *Synchronizer) evict(ctx context.Context, kind backend.AuthErrorKind) (Outcome, error) {
	err := s.purge(ctx)
	if s.deps.Navigator != nil {
		s.deps.Navigator.Navigate(s.loginPath)
	}
	return s.done(Outcome{Status: SyncEvicted, Redirect: s.loginPath, Failure: kind}), err
}

// purge clears every piece of client state. Each step runs even when an
// earlier one fails.
func (s *Synchronizer) purge(ctx context.Context) error {
	s.deps.Store.ClearCurrentUser(ctx)
	s.deps.Cookies.Delete(s.sessionCookie)
	s.deps.Cache.Purge()
	if err := s.deps.Local.Delete(ctx, TierKey); err != nil {
		s.deps.Logger.Warn("delete plan tier", zap.Error(err))
		return errors.Join(errors.New("delete plan tier"), err)
	}
	return nil
}

func (s *Synchronizer) done(out Outcome) Outcome {
	if s.deps.Recorder != nil {
		s.deps.Recorder.RecordSync(string(out.Status))
	}
	return out
}
