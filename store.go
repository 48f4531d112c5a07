package session

import (
	"context"
	"sync"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-featuregate/gate"
	"github.com/goliatone/go-featuregate/gate/guard"
	"github.com/google/uuid"
)

// FeatureFederatedLogin gates the federated provider login flow.
const FeatureFederatedLogin = "session.login.federated"

// Store owns the process-wide session. It holds exactly one live
// subscription to the identity provider, resolves the backend role for every
// identity change, and publishes immutable snapshots to its own subscribers.
// Single writer; everything else reads.
type Store struct {
	provider     IdentityProvider
	resolver     RoleResolver
	registrar    AccountRegistrar
	logger       Logger
	activitySink ActivitySink
	featureGate  gate.FeatureGate
	now          func() time.Time

	mu        sync.RWMutex
	snap      Snapshot
	epoch     uint64
	settled   chan struct{}
	listeners map[uuid.UUID]func(Snapshot)
	unsub     Unsubscribe
	cancel    context.CancelFunc
	baseCtx   context.Context

	// notifyMu serializes snapshot delivery: whoever applies a state change
	// first also delivers it first, so listeners never observe transitions
	// out of order and are never invoked concurrently.
	notifyMu sync.Mutex
}

// StoreOption customizes store construction.
type StoreOption func(*Store)

// WithLogger overrides the logger used by the store.
func WithLogger(logger Logger) StoreOption {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithActivitySink configures an ActivitySink for emitting session events.
func WithActivitySink(sink ActivitySink) StoreOption {
	return func(s *Store) {
		s.activitySink = normalizeActivitySink(sink)
	}
}

// WithAccountRegistrar configures the backend side-channel invoked after a
// successful registration.
func WithAccountRegistrar(registrar AccountRegistrar) StoreOption {
	return func(s *Store) {
		s.registrar = registrar
	}
}

// WithFeatureGate gates optional flows (currently federated login).
func WithFeatureGate(featureGate gate.FeatureGate) StoreOption {
	return func(s *Store) {
		s.featureGate = featureGate
	}
}

// WithClock injects a custom clock (useful for tests).
func WithClock(clock func() time.Time) StoreOption {
	return func(s *Store) {
		if clock != nil {
			s.now = clock
		}
	}
}

// NewStore returns a session store bound to the given identity provider and
// role resolver. The store starts in the loading state; it settles after
// Start receives the first identity event and its role resolution completes.
func NewStore(provider IdentityProvider, resolver RoleResolver, opts ...StoreOption) *Store {
	s := &Store{
		provider:     provider,
		resolver:     resolver,
		logger:       defLogger{},
		activitySink: noopActivitySink{},
		now:          time.Now,
		snap:         Snapshot{Loading: true},
		settled:      make(chan struct{}),
		listeners:    map[uuid.UUID]func(Snapshot){},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	return s
}

// Start registers the single live subscription with the identity provider.
// Calling Start twice is an error; a store owns exactly one active
// subscription.
func (s *Store) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.unsub != nil {
		s.mu.Unlock()
		return goerrors.New("session store already started", goerrors.CategoryConflict).
			WithCode(goerrors.CodeConflict)
	}
	s.baseCtx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()

	// the provider fires once at registration with the current state
	unsub := s.provider.Subscribe(s.onIdentityChange)

	s.mu.Lock()
	s.unsub = unsub
	s.mu.Unlock()

	return nil
}

// Close tears down the provider subscription and cancels any in-flight role
// resolution. No state update is applied after Close returns.
func (s *Store) Close() {
	s.mu.Lock()
	unsub := s.unsub
	cancel := s.cancel
	s.unsub = nil
	s.cancel = nil
	s.epoch++ // orphan any pending resolution
	s.mu.Unlock()

	if unsub != nil {
		unsub()
	}
	if cancel != nil {
		cancel()
	}
}

// Snapshot returns the current session state.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

// Epoch returns the current identity generation. It moves on every identity
// change; callers (the HTTP pipeline) use it to detect that the identity a
// token was minted under is gone.
func (s *Store) Epoch() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.epoch
}

// Subscribe registers a listener fired with the current snapshot immediately
// and again after every published change.
func (s *Store) Subscribe(fn func(Snapshot)) Unsubscribe {
	if fn == nil {
		return func() {}
	}

	// the initial delivery rides the same dispatch lock as published
	// changes, so it cannot arrive after a snapshot that postdates it
	s.notifyMu.Lock()
	s.mu.Lock()
	id := uuid.New()
	s.listeners[id] = fn
	snap := s.snap
	s.mu.Unlock()

	fn(snap)
	s.notifyMu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

// WaitSettled blocks until the session has finished its current transition
// or the context is done, and returns the settled snapshot.
func (s *Store) WaitSettled(ctx context.Context) (Snapshot, error) {
	for {
		s.mu.RLock()
		snap, ch := s.snap, s.settled
		s.mu.RUnlock()

		if !snap.Loading {
			return snap, nil
		}

		select {
		case <-ctx.Done():
			return snap, ctx.Err()
		case <-ch:
		}
	}
}

// CurrentToken returns a fresh bearer token for the signed-in identity.
func (s *Store) CurrentToken(ctx context.Context) (string, error) {
	if !s.Snapshot().Authenticated() {
		return "", ErrNoActiveIdentity
	}
	return s.provider.CurrentToken(ctx)
}

// Login authenticates with email and password. The store reports loading for
// the duration so route guards do not evaluate a stale session mid-flight. A
// failed login leaves the session exactly as it was.
func (s *Store) Login(ctx context.Context, email, password string) error {
	epoch := s.beginTransition()

	identity, err := s.provider.Login(ctx, email, password)
	if err != nil {
		s.abortTransition(epoch)
		s.logger.Error("Login verify identity error", "error", err)
		s.emitEvent(ctx, ActivityEventLoginFailure, "", map[string]any{
			"email": email,
			"error": err.Error(),
		})
		return err
	}

	s.emitEvent(ctx, ActivityEventLoginSuccess, identity.ID(), map[string]any{
		"email": email,
	})
	return nil
}

// LoginWithProvider runs the federated login flow. Gated behind the
// federated login feature when a gate is configured.
func (s *Store) LoginWithProvider(ctx context.Context) error {
	if s.featureGate != nil {
		if err := requireFeatureGate(ctx, s.featureGate, FeatureFederatedLogin, ErrFederatedLoginDisabled); err != nil {
			return err
		}
	}

	epoch := s.beginTransition()

	identity, err := s.provider.LoginWithProvider(ctx)
	if err != nil {
		s.abortTransition(epoch)
		s.logger.Error("Federated login error", "error", err)
		s.emitEvent(ctx, ActivityEventLoginFailure, "", map[string]any{
			"error":     err.Error(),
			"federated": true,
		})
		return err
	}

	s.emitEvent(ctx, ActivityEventFederatedLogin, identity.ID(), nil)
	return nil
}

// Register creates a new identity and mirrors it to the backend user store.
// A registrar failure is surfaced to the caller but does not tear down the
// freshly created session.
func (s *Store) Register(ctx context.Context, input RegisterInput) error {
	if err := input.Validate(); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid registration input").
			WithCode(goerrors.CodeBadRequest)
	}

	epoch := s.beginTransition()

	identity, err := s.provider.Register(ctx, input)
	if err != nil {
		s.abortTransition(epoch)
		s.logger.Error("Registration error", "error", err)
		s.emitEvent(ctx, ActivityEventLoginFailure, "", map[string]any{
			"email": input.Email,
			"error": err.Error(),
		})
		return err
	}

	s.emitEvent(ctx, ActivityEventRegistration, identity.ID(), map[string]any{
		"email": input.Email,
	})

	if s.registrar != nil {
		if err := s.registrar.RegisterAccount(ctx, input.DisplayName, input.Email, input.PhotoURL); err != nil {
			s.logger.Warn("Account registrar side channel failed", "error", err)
			return goerrors.Wrap(err, goerrors.CategoryInternal, "account registration side channel failed")
		}
	}

	return nil
}

// Logout signs out. The local session clears even when the provider's
// network call fails.
func (s *Store) Logout(ctx context.Context) error {
	snap := s.Snapshot()

	err := s.provider.Logout(ctx)
	if err != nil {
		s.logger.Warn("Provider logout error, local session cleared anyway", "error", err)
	}

	identityID := ""
	if snap.Identity != nil {
		identityID = snap.Identity.ID()
	}
	s.emitEvent(ctx, ActivityEventLogout, identityID, nil)

	return err
}

// ForceLogout terminates the session in response to an authorization failure
// observed at the given epoch. It acts at most once per epoch: concurrent
// failures for the same identity collapse into a single logout. Returns true
// when this call performed the logout.
func (s *Store) ForceLogout(ctx context.Context, epoch uint64) bool {
	s.mu.Lock()
	if epoch != s.epoch {
		s.mu.Unlock()
		return false
	}
	s.epoch++
	snap := s.snap
	s.mu.Unlock()

	identityID := ""
	if snap.Identity != nil {
		identityID = snap.Identity.ID()
	}

	if err := s.provider.Logout(ctx); err != nil {
		s.logger.Warn("Forced logout provider error", "error", err)
	}

	s.emitEvent(ctx, ActivityEventForcedLogout, identityID, map[string]any{
		"epoch": epoch,
	})
	return true
}

// UpdateProfile delegates to the provider then patches the in-memory
// identity locally. The backend role is unaffected by a profile edit, so no
// resolution round trip happens.
func (s *Store) UpdateProfile(ctx context.Context, displayName, photoURL string) error {
	if err := s.provider.UpdateProfile(ctx, displayName, photoURL); err != nil {
		s.logger.Error("Profile update error", "error", err)
		return err
	}

	s.notifyMu.Lock()
	s.mu.Lock()
	if s.snap.Identity == nil {
		s.mu.Unlock()
		s.notifyMu.Unlock()
		return ErrNoActiveIdentity
	}
	s.snap.Identity = profileIdentity{
		base:        s.snap.Identity,
		displayName: displayName,
		photoURL:    photoURL,
	}
	snap := s.snap
	identityID := snap.Identity.ID()
	s.mu.Unlock()

	s.notify(snap)
	s.notifyMu.Unlock()
	s.emitEvent(ctx, ActivityEventProfileUpdated, identityID, nil)
	return nil
}

// onIdentityChange is the single entry point for raw identity events from
// the provider subscription.
func (s *Store) onIdentityChange(identity Identity) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	s.epoch++
	epoch := s.epoch
	ctx := s.baseCtx
	if ctx == nil {
		ctx = context.Background()
	}

	if identity == nil {
		s.snap = Snapshot{Loading: false}
		s.settleLocked()
		snap := s.snap
		s.mu.Unlock()
		s.notify(snap)
		return
	}

	s.snap = Snapshot{Identity: identity, Loading: true}
	s.beginLoadingLocked()
	snap := s.snap
	s.mu.Unlock()
	s.notify(snap)

	go s.resolveRole(ctx, epoch)
}

// resolveRole performs the backend role lookup for the identity published at
// the given epoch. A result arriving after the epoch moved belongs to a
// superseded identity and is discarded; a failure publishes the identity
// with the role unset so the UI never hangs.
func (s *Store) resolveRole(ctx context.Context, epoch uint64) {
	attemptID := uuid.New()

	var role Role
	token, err := s.provider.CurrentToken(ctx)
	if err == nil {
		role, err = s.resolver.ResolveRole(ctx, token)
	}

	s.notifyMu.Lock()
	s.mu.Lock()
	if epoch != s.epoch {
		s.mu.Unlock()
		s.notifyMu.Unlock()
		s.logger.Debug("Discarding role resolution for superseded identity",
			"attempt", attemptID.String(), "epoch", epoch)
		return
	}

	identityID := ""
	if s.snap.Identity != nil {
		identityID = s.snap.Identity.ID()
	}

	if err != nil {
		s.snap.Role = ""
	} else {
		s.snap.Role = role
		resolvedAt := s.now()
		s.snap.ResolvedAt = &resolvedAt
	}
	s.snap.Loading = false
	s.settleLocked()
	snap := s.snap
	s.mu.Unlock()

	s.notify(snap)
	s.notifyMu.Unlock()

	if err != nil {
		s.logger.Warn("Role resolution failed, session continues without role",
			"attempt", attemptID.String(), "error", err)
		s.emitEvent(ctx, ActivityEventRoleUnresolved, identityID, map[string]any{
			"attempt": attemptID.String(),
			"error":   err.Error(),
		})
		return
	}

	s.emitEvent(ctx, ActivityEventRoleResolved, identityID, map[string]any{
		"attempt": attemptID.String(),
		"role":    role,
	})
}

// beginTransition flips the store into loading for the duration of a
// provider call and returns the epoch it was issued at.
func (s *Store) beginTransition() uint64 {
	s.notifyMu.Lock()
	s.mu.Lock()
	s.beginLoadingLocked()
	snap := s.snap
	epoch := s.epoch
	s.mu.Unlock()
	s.notify(snap)
	s.notifyMu.Unlock()
	return epoch
}

// abortTransition settles the store after a failed provider call, unless an
// identity event moved the epoch in the meantime (that event owns the
// lifecycle now).
func (s *Store) abortTransition(epoch uint64) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	if epoch != s.epoch {
		s.mu.Unlock()
		return
	}
	s.snap.Loading = false
	s.settleLocked()
	snap := s.snap
	s.mu.Unlock()
	s.notify(snap)
}

func (s *Store) beginLoadingLocked() {
	if !s.snap.Loading {
		s.settled = make(chan struct{})
	}
	s.snap.Loading = true
}

func (s *Store) settleLocked() {
	select {
	case <-s.settled:
	default:
		close(s.settled)
	}
	s.snap.Loading = false
}

// notify delivers snap to every listener. Callers must hold notifyMu.
func (s *Store) notify(snap Snapshot) {
	s.mu.RLock()
	fns := make([]func(Snapshot), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.mu.RUnlock()

	for _, fn := range fns {
		fn(snap)
	}
}

func (s *Store) emitEvent(ctx context.Context, eventType ActivityEventType, identityID string, metadata map[string]any) {
	sink := normalizeActivitySink(s.activitySink)
	event := ActivityEvent{
		EventType:  eventType,
		IdentityID: identityID,
		Role:       s.Snapshot().Role,
		Metadata:   metadata,
		OccurredAt: s.now(),
	}

	if event.Metadata == nil {
		event.Metadata = map[string]any{}
	}

	if err := sink.Record(ctx, event); err != nil {
		s.logger.Warn("activity sink record error: %v", err)
	}
}

func normalizeFeatureGateError(err error) error {
	if err == nil {
		return nil
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return err
	}

	return goerrors.Wrap(err, goerrors.CategoryAuthz, "Feature gate check failed").
		WithCode(goerrors.CodeForbidden)
}

func requireFeatureGate(ctx context.Context, featureGate gate.FeatureGate, key string, disabledErr error) error {
	return guard.Require(ctx, featureGate, key,
		guard.WithDisabledError(disabledErr),
		guard.WithErrorMapper(normalizeFeatureGateError),
	)
}
