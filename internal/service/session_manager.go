package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"savings-client/internal/dto"
	"savings-client/internal/model"
	"savings-client/internal/pkg/logger"
	"savings-client/pkg/apiclient"
	"savings-client/pkg/events"
	"savings-client/pkg/storage"

	"github.com/go-playground/validator/v10"
)

const (
	SnapshotKey        = "auth_state"
	SnapshotFreshness  = time.Hour
	AuthCheckStaleTime = 5 * time.Minute
	RevalidateDelay    = 100 * time.Millisecond

	authCheckQueryKey = "auth:check"
)

var ErrNotAuthenticated = errors.New("not authenticated")

// AuthAPI is the subset of the REST client the session manager talks to.
type AuthAPI interface {
	CheckAuth(ctx context.Context) (*dto.AuthCheckResponse, error)
	Login(ctx context.Context, req *dto.LoginRequest) (*dto.LoginResponse, error)
	Logout(ctx context.Context, refreshToken string) error
	Register(ctx context.Context, req *dto.RegisterRequest) (*dto.RegisterResponse, error)
}

// Tokens is implemented by storage.TokenStore.
type Tokens interface {
	Token(ctx context.Context) (string, error)
	RefreshToken(ctx context.Context) (string, error)
	HasToken(ctx context.Context) bool
	SetTokens(ctx context.Context, accessToken, refreshToken string) error
	ClearTokens(ctx context.Context) error
}

type EventPublisher interface {
	Publish(ctx context.Context, event events.Event) error
}

type SessionOption func(*SessionManager)

// WithClock replaces time.Now for snapshot freshness checks.
func WithClock(now func() time.Time) SessionOption {
	return func(m *SessionManager) { m.now = now }
}

func WithRevalidateDelay(d time.Duration) SessionOption {
	return func(m *SessionManager) { m.revalidateDelay = d }
}

// SessionManager owns the client's view of who is logged in.
//
// Every transition that changes who the user is (login, logout, rejection)
// bumps an epoch. Server answers are applied only if the epoch they were
// requested under is still current, so a slow check can never undo a newer
// login or logout. Token and snapshot writes happen under the same lock as
// the state change they belong to.
type SessionManager struct {
	api      AuthAPI
	tokens   Tokens
	store    storage.KeyValueStore
	queries  *QueryCache
	bus      EventPublisher
	validate *validator.Validate
	logger   logger.ILogger

	now             func() time.Time
	revalidateDelay time.Duration

	mu      sync.RWMutex
	session model.Session
	epoch   uint64

	initOnce sync.Once

	bgMu     sync.Mutex
	bgCancel context.CancelFunc
	bgDone   chan struct{}

	publishMu     sync.Mutex
	lastPublished *bool
}

func NewSessionManager(api AuthAPI, tokens Tokens, store storage.KeyValueStore, queries *QueryCache, bus EventPublisher, log logger.ILogger, opts ...SessionOption) *SessionManager {
	m := &SessionManager{
		api:             api,
		tokens:          tokens,
		store:           store,
		queries:         queries,
		bus:             bus,
		validate:        validator.New(),
		logger:          log,
		now:             time.Now,
		revalidateDelay: RevalidateDelay,
		session:         model.Session{Phase: model.PhaseUnknown},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Session returns a copy of the current state.
func (m *SessionManager) Session() model.Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s := m.session
	s.User = s.User.Clone()
	return s
}

// Initialize resolves the startup state. A fresh persisted snapshot is
// trusted immediately and revalidated in the background; otherwise a stored
// token is checked against the server before returning. Only the first call
// does any work.
func (m *SessionManager) Initialize(ctx context.Context) model.Session {
	m.initOnce.Do(func() { m.initialize(ctx) })
	return m.Session()
}

func (m *SessionManager) initialize(ctx context.Context) {
	if snap, ok := m.freshSnapshot(ctx); ok {
		m.mu.Lock()
		m.session = model.Session{
			User:            snap.User.Clone(),
			IsAuthenticated: true,
			Initialized:     true,
			Phase:           model.PhaseOptimistic,
		}
		epoch := m.epoch
		m.mu.Unlock()

		m.logger.Info("SessionManager", "Session restored from snapshot", map[string]interface{}{"user_id": snap.User.ID})
		m.publishAuthState(ctx)
		m.scheduleRevalidation(epoch)
		return
	}

	if !m.tokens.HasToken(ctx) {
		m.settleAnonymous(ctx, m.currentEpoch())
		return
	}

	m.mu.Lock()
	m.session.IsLoading = true
	m.mu.Unlock()

	if _, err := m.CheckAuthStatus(ctx); err != nil {
		m.logger.Warn("SessionManager", "Startup auth check failed", map[string]interface{}{"error": err.Error()})
	}

	m.mu.Lock()
	m.session.IsLoading = false
	m.session.Initialized = true
	m.mu.Unlock()
}

// CheckAuthStatus asks the server who the stored token belongs to, reusing a
// cached answer younger than AuthCheckStaleTime. Without a token it settles
// unauthenticated without touching the network. On error the returned
// response is the unauthenticated result that was applied.
func (m *SessionManager) CheckAuthStatus(ctx context.Context) (*dto.AuthCheckResponse, error) {
	epoch := m.currentEpoch()

	if !m.tokens.HasToken(ctx) {
		m.settleAnonymous(ctx, epoch)
		return &dto.AuthCheckResponse{}, nil
	}

	res, err := m.fetchAuthCheck(ctx)
	if err != nil {
		m.reject(ctx, epoch, err)
		return &dto.AuthCheckResponse{}, err
	}
	if !res.IsAuthenticated || res.User == nil {
		m.reject(ctx, epoch, nil)
		return &dto.AuthCheckResponse{}, nil
	}

	m.accept(ctx, epoch, res.User)
	return &dto.AuthCheckResponse{IsAuthenticated: true, User: res.User.Clone()}, nil
}

// RefreshAuth drops the cached auth check and asks the server again.
func (m *SessionManager) RefreshAuth(ctx context.Context) (*dto.AuthCheckResponse, error) {
	m.queries.Invalidate(authCheckQueryKey)
	return m.CheckAuthStatus(ctx)
}

func (m *SessionManager) Login(ctx context.Context, req *dto.LoginRequest) (*dto.LoginResponse, error) {
	if err := m.validate.Struct(req); err != nil {
		return nil, apiclient.NewValidationError(err)
	}

	res, err := m.api.Login(ctx, req)
	if err != nil {
		m.logger.Warn("SessionManager", "Login failed", map[string]interface{}{"login": req.Login, "error": err.Error()})
		return nil, err
	}

	m.cancelRevalidation()

	user := res.User
	m.mu.Lock()
	if err := m.tokens.SetTokens(ctx, res.AccessToken, res.RefreshToken); err != nil {
		m.mu.Unlock()
		return nil, fmt.Errorf("failed to store tokens: %w", err)
	}
	m.epoch++
	m.session = model.Session{
		User:            user.Clone(),
		IsAuthenticated: true,
		Initialized:     true,
		Phase:           model.PhaseValidated,
	}
	m.persistSnapshotLocked(ctx)
	m.mu.Unlock()

	m.queries.Set(authCheckQueryKey, &dto.AuthCheckResponse{IsAuthenticated: true, User: user.Clone()})
	m.logger.Info("SessionManager", "User logged in", map[string]interface{}{"user_id": user.ID})
	m.publishAuthState(ctx)
	return res, nil
}

// Logout clears local credentials first, then tells the server. Remote
// failures are logged and never reported to the caller.
func (m *SessionManager) Logout(ctx context.Context) error {
	m.cancelRevalidation()

	refreshToken, err := m.tokens.RefreshToken(ctx)
	if err != nil {
		m.logger.Warn("SessionManager", "Could not read refresh token", map[string]interface{}{"error": err.Error()})
	}

	m.mu.Lock()
	clearErr := m.tokens.ClearTokens(ctx)
	m.epoch++
	m.session = model.Session{Initialized: true, Phase: model.PhaseAnonymous}
	persistErr := m.persistSnapshotLocked(ctx)
	m.mu.Unlock()

	m.queries.Purge()
	m.publishAuthState(ctx)

	if err := m.api.Logout(ctx, refreshToken); err != nil {
		m.logger.Warn("SessionManager", "Remote logout failed", map[string]interface{}{"error": err.Error()})
	}

	if clearErr != nil {
		return fmt.Errorf("failed to clear tokens: %w", errors.Join(clearErr, persistErr))
	}
	return persistErr
}

func (m *SessionManager) Register(ctx context.Context, req *dto.RegisterRequest) (*dto.RegisterResponse, error) {
	if err := m.validate.Struct(req); err != nil {
		return nil, apiclient.NewValidationError(err)
	}
	return m.api.Register(ctx, req)
}

// UpdateUser applies a local edit to the current profile, persists it and
// announces it on user:updated.
func (m *SessionManager) UpdateUser(ctx context.Context, apply func(*model.UserProfile)) error {
	m.mu.Lock()
	if m.session.User == nil {
		m.mu.Unlock()
		return ErrNotAuthenticated
	}
	user := m.session.User.Clone()
	apply(user)
	user.ID = m.session.User.ID
	m.session.User = user
	persistErr := m.persistSnapshotLocked(ctx)
	m.mu.Unlock()

	m.queries.Set(authCheckQueryKey, &dto.AuthCheckResponse{IsAuthenticated: true, User: user.Clone()})

	if m.bus != nil {
		err := m.bus.Publish(ctx, events.BaseEvent{
			Type: events.TopicUserUpdated,
			Data: map[string]interface{}{
				"user_id":    user.ID,
				"full_name":  user.FullName,
				"avatar_url": user.AvatarURL,
			},
			OccurredAt: m.now(),
		})
		if err != nil {
			m.logger.Error("SessionManager", "Failed to publish user update", map[string]interface{}{"error": err.Error()})
		}
	}
	return persistErr
}

// Dispose stops any pending background revalidation.
func (m *SessionManager) Dispose() {
	m.cancelRevalidation()
}

func (m *SessionManager) fetchAuthCheck(ctx context.Context) (*dto.AuthCheckResponse, error) {
	v, cached, err := m.queries.Fetch(ctx, authCheckQueryKey, func(ctx context.Context) (interface{}, error) {
		return m.api.CheckAuth(ctx)
	})
	if err != nil {
		return nil, err
	}
	if cached {
		m.logger.Debug("SessionManager", "Auth check served from cache", nil)
	}
	res, ok := v.(*dto.AuthCheckResponse)
	if !ok || res == nil {
		return &dto.AuthCheckResponse{}, nil
	}
	return res, nil
}

func (m *SessionManager) accept(ctx context.Context, epoch uint64, user *model.UserProfile) {
	m.mu.Lock()
	if m.epoch != epoch {
		m.mu.Unlock()
		m.logger.Debug("SessionManager", "Discarding stale auth check result", nil)
		return
	}
	m.session = model.Session{
		User:            user.Clone(),
		IsAuthenticated: true,
		Initialized:     true,
		Phase:           model.PhaseValidated,
	}
	m.persistSnapshotLocked(ctx)
	m.mu.Unlock()

	m.publishAuthState(ctx)
}

// reject drops the session and its tokens. cause may be nil when the server
// simply answered "not authenticated".
func (m *SessionManager) reject(ctx context.Context, epoch uint64, cause error) {
	m.mu.Lock()
	if m.epoch != epoch {
		m.mu.Unlock()
		m.logger.Debug("SessionManager", "Discarding stale auth rejection", nil)
		return
	}
	m.epoch++
	if err := m.tokens.ClearTokens(ctx); err != nil {
		m.logger.Error("SessionManager", "Failed to clear rejected tokens", map[string]interface{}{"error": err.Error()})
	}
	m.session = model.Session{Initialized: true, Phase: model.PhaseRejected}
	m.persistSnapshotLocked(ctx)
	m.mu.Unlock()

	m.queries.Invalidate(authCheckQueryKey)

	details := map[string]interface{}{}
	if cause != nil {
		details["error"] = cause.Error()
		details["kind"] = string(apiclient.KindOf(cause))
	}
	m.logger.Info("SessionManager", "Session rejected", details)
	m.publishAuthState(ctx)
}

func (m *SessionManager) settleAnonymous(ctx context.Context, epoch uint64) {
	m.mu.Lock()
	if m.epoch != epoch {
		m.mu.Unlock()
		return
	}
	m.session = model.Session{Initialized: true, Phase: model.PhaseAnonymous}
	m.persistSnapshotLocked(ctx)
	m.mu.Unlock()

	m.publishAuthState(ctx)
}

func (m *SessionManager) scheduleRevalidation(epoch uint64) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	m.bgMu.Lock()
	m.bgCancel, m.bgDone = cancel, done
	m.bgMu.Unlock()

	go func() {
		defer close(done)

		timer := time.NewTimer(m.revalidateDelay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}
		m.revalidate(ctx, epoch)
	}()
}

// revalidate confirms an optimistically restored session. Only a definite
// "no" from the server logs the user out; network trouble keeps the restored
// state.
func (m *SessionManager) revalidate(ctx context.Context, epoch uint64) {
	if !m.tokens.HasToken(ctx) {
		m.reject(ctx, epoch, errors.New("restored session has no stored token"))
		return
	}

	res, err := m.fetchAuthCheck(ctx)
	switch {
	case err != nil && apiclient.IsUnauthorized(err):
		m.reject(ctx, epoch, err)
	case err != nil:
		m.logger.Warn("SessionManager", "Background revalidation failed, keeping restored session", map[string]interface{}{
			"error": err.Error(),
			"kind":  string(apiclient.KindOf(err)),
		})
	case !res.IsAuthenticated || res.User == nil:
		m.reject(ctx, epoch, nil)
	default:
		m.accept(ctx, epoch, res.User)
	}
}

func (m *SessionManager) cancelRevalidation() {
	m.bgMu.Lock()
	cancel, done := m.bgCancel, m.bgDone
	m.bgCancel, m.bgDone = nil, nil
	m.bgMu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

func (m *SessionManager) currentEpoch() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.epoch
}

func (m *SessionManager) freshSnapshot(ctx context.Context) (*model.SessionSnapshot, bool) {
	raw, err := m.store.Get(ctx, SnapshotKey)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			m.logger.Warn("SessionManager", "Could not read session snapshot", map[string]interface{}{"error": err.Error()})
		}
		return nil, false
	}

	var snap model.SessionSnapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		m.logger.Warn("SessionManager", "Ignoring unreadable session snapshot", map[string]interface{}{"error": err.Error()})
		return nil, false
	}
	if !snap.IsAuthenticated || snap.User == nil {
		return nil, false
	}

	age := m.now().Sub(time.UnixMilli(snap.Timestamp))
	if age < 0 || age >= SnapshotFreshness {
		m.logger.Debug("SessionManager", "Session snapshot is stale", map[string]interface{}{"age": age.String()})
		return nil, false
	}
	return &snap, true
}

// persistSnapshotLocked writes the current state. Callers hold m.mu.
func (m *SessionManager) persistSnapshotLocked(ctx context.Context) error {
	payload, err := json.Marshal(model.SessionSnapshot{
		User:            m.session.User,
		IsAuthenticated: m.session.IsAuthenticated,
		Timestamp:       m.now().UnixMilli(),
	})
	if err != nil {
		return fmt.Errorf("failed to encode session snapshot: %w", err)
	}
	if err := m.store.Set(ctx, SnapshotKey, string(payload)); err != nil {
		m.logger.Error("SessionManager", "Failed to persist session snapshot", map[string]interface{}{"error": err.Error()})
		return fmt.Errorf("failed to persist session snapshot: %w", err)
	}
	return nil
}

// publishAuthState announces the current authentication state on
// auth:changed if it differs from the last announcement.
func (m *SessionManager) publishAuthState(ctx context.Context) {
	if m.bus == nil {
		return
	}

	m.publishMu.Lock()
	defer m.publishMu.Unlock()

	isAuthenticated := m.Session().IsAuthenticated
	if m.lastPublished != nil && *m.lastPublished == isAuthenticated {
		return
	}
	if err := m.bus.Publish(ctx, events.NewAuthChanged(isAuthenticated)); err != nil {
		m.logger.Error("SessionManager", "Failed to publish auth change", map[string]interface{}{"error": err.Error()})
		return
	}
	m.lastPublished = &isAuthenticated
}
