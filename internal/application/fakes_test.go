package application_test

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/viralforge/mesh/services/core-platform/M04-credential-lifecycle-service/internal/application"
	"github.com/viralforge/mesh/services/core-platform/M04-credential-lifecycle-service/internal/domain"
	"github.com/viralforge/mesh/services/core-platform/M04-credential-lifecycle-service/internal/ports"
)

var errStoreDown = errors.New("dial tcp 10.0.0.5:5432: connection refused")

type fixture struct {
	service  *application.Service
	store    *memStore
	clock    *fakeClock
	notifier *fakeNotifier
	lockouts *fakeLockouts
}

func newFixture() *fixture {
	return newFixtureWithConfig(application.DefaultConfig())
}

func newFixtureWithConfig(cfg application.Config) *fixture {
	store := newMemStore()
	clock := &fakeClock{now: time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)}
	notifier := &fakeNotifier{}
	lockouts := &fakeLockouts{states: map[string]ports.LockoutState{}}
	svc := application.NewService(application.Dependencies{
		Config:        cfg,
		Users:         &fakeUsers{store},
		Sessions:      &fakeSessions{store},
		Verifications: &fakeVerifications{store},
		Resets:        &fakeResets{store},
		Lockouts:      lockouts,
		Notifier:      notifier,
		Hasher:        &fakeHasher{},
		Tokens:        &fakeTokens{},
		Clock:         clock.Now,
	})
	return &fixture{
		service:  svc,
		store:    store,
		clock:    clock,
		notifier: notifier,
		lockouts: lockouts,
	}
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type memStore struct {
	mu            sync.Mutex
	users         map[uuid.UUID]domain.User
	sessions      map[string]domain.Session
	sessionOrder  []string
	links         map[string]domain.SessionDeactivationLink
	verifications map[string]domain.EmailVerification
	resets        map[string]domain.PasswordResetLink

	failSessionReads bool
	failResetWrites  bool
}

func newMemStore() *memStore {
	return &memStore{
		users:         map[uuid.UUID]domain.User{},
		sessions:      map[string]domain.Session{},
		links:         map[string]domain.SessionDeactivationLink{},
		verifications: map[string]domain.EmailVerification{},
		resets:        map[string]domain.PasswordResetLink{},
	}
}

func (m *memStore) liveUserByEmail(email string) (domain.User, bool) {
	for _, u := range m.users {
		if u.Email == email && u.DeletedAt == nil {
			return u, true
		}
	}
	return domain.User{}, false
}

func (m *memStore) deactivateUserSessions(userID uuid.UUID, at time.Time) int64 {
	var n int64
	for id, s := range m.sessions {
		if s.UserID == userID && s.IsActive {
			s.IsActive = false
			m.sessions[id] = s
			n++
		}
	}
	return n
}

func (m *memStore) session(id string) domain.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions[id]
}

func (m *memStore) verification(email string) domain.EmailVerification {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.verifications[email]
}

func (m *memStore) reset(hash string) domain.PasswordResetLink {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.resets[hash]
}

func (m *memStore) userByEmail(email string) (domain.User, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.liveUserByEmail(email)
}

type fakeUsers struct{ *memStore }

func (r *fakeUsers) CreateVerified(_ context.Context, params ports.CreateUserParams) (domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.verifications[params.Email]
	if !ok || !v.IsVerified {
		return domain.User{}, domain.ErrEmailNotVerified
	}
	if _, taken := r.liveUserByEmail(params.Email); taken {
		return domain.User{}, domain.ErrConflict
	}
	u := domain.User{
		UserID:       params.UserID,
		Email:        params.Email,
		PasswordHash: params.PasswordHash,
		Salt:         params.Salt,
		Name:         params.Name,
		CreatedAt:    params.CreatedAt,
		UpdatedAt:    params.CreatedAt,
	}
	r.users[u.UserID] = u
	delete(r.verifications, params.Email)
	return u, nil
}

func (r *fakeUsers) GetByEmail(_ context.Context, email string) (domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.liveUserByEmail(email); ok {
		return u, nil
	}
	return domain.User{}, domain.ErrNotFound
}

func (r *fakeUsers) GetByID(_ context.Context, userID uuid.UUID) (domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok || u.DeletedAt != nil {
		return domain.User{}, domain.ErrNotFound
	}
	return u, nil
}

func (r *fakeUsers) update(userID uuid.UUID, fn func(*domain.User)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok || u.DeletedAt != nil {
		return domain.ErrNotFound
	}
	fn(&u)
	r.users[userID] = u
	return nil
}

func (r *fakeUsers) UpdateName(_ context.Context, userID uuid.UUID, name string, at time.Time) error {
	return r.update(userID, func(u *domain.User) { u.Name, u.UpdatedAt = name, at })
}

func (r *fakeUsers) UpdateProfileURL(_ context.Context, userID uuid.UUID, profileURL string, at time.Time) error {
	return r.update(userID, func(u *domain.User) { u.ProfileURL, u.UpdatedAt = profileURL, at })
}

func (r *fakeUsers) RotatePassword(_ context.Context, params ports.PasswordRotation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[params.UserID]
	if !ok || u.DeletedAt != nil {
		return domain.ErrNotFound
	}
	u.PasswordHash, u.Salt, u.UpdatedAt = params.PasswordHash, params.Salt, params.RotatedAt
	r.users[u.UserID] = u
	r.deactivateUserSessions(u.UserID, params.RotatedAt)
	return nil
}

func (r *fakeUsers) SoftDelete(_ context.Context, userID uuid.UUID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok || u.DeletedAt != nil {
		return domain.ErrNotFound
	}
	r.deactivateUserSessions(userID, at)
	u.DeletedAt = &at
	r.users[userID] = u
	return nil
}

type fakeSessions struct{ *memStore }

func (r *fakeSessions) CreateExclusive(_ context.Context, params ports.SessionCreateParams) (domain.Session, domain.SessionDeactivationLink, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[params.UserID]; !ok || u.DeletedAt != nil {
		return domain.Session{}, domain.SessionDeactivationLink{}, domain.ErrNotFound
	}
	if _, exists := r.sessions[params.SessionID]; exists {
		return domain.Session{}, domain.SessionDeactivationLink{}, domain.ErrConflict
	}
	if _, exists := r.links[params.LinkHash]; exists {
		return domain.Session{}, domain.SessionDeactivationLink{}, domain.ErrConflict
	}
	r.deactivateUserSessions(params.UserID, params.CreatedAt)
	s := domain.Session{
		SessionID:    params.SessionID,
		UserID:       params.UserID,
		UserAgent:    params.UserAgent,
		IPAddress:    params.IPAddress,
		IsActive:     true,
		LastAccessed: params.CreatedAt,
		ExpiresAt:    params.ExpiresAt,
		CreatedAt:    params.CreatedAt,
	}
	r.sessions[s.SessionID] = s
	r.sessionOrder = append(r.sessionOrder, s.SessionID)
	link := domain.SessionDeactivationLink{
		LinkHash:  params.LinkHash,
		SessionID: params.SessionID,
		CreatedAt: params.CreatedAt,
		UpdatedAt: params.CreatedAt,
	}
	r.links[link.LinkHash] = link
	return s, link, nil
}

func (r *fakeSessions) GetByID(_ context.Context, sessionID string) (domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failSessionReads {
		return domain.Session{}, errStoreDown
	}
	s, ok := r.sessions[sessionID]
	if !ok {
		return domain.Session{}, domain.ErrNotFound
	}
	return s, nil
}

func (r *fakeSessions) ListByUser(_ context.Context, userID uuid.UUID) ([]domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Session
	for i := len(r.sessionOrder) - 1; i >= 0; i-- {
		s := r.sessions[r.sessionOrder[i]]
		if s.UserID == userID {
			out = append(out, s)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *fakeSessions) TouchAccess(_ context.Context, sessionID string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[sessionID]; ok && s.IsActive {
		s.LastAccessed = at
		r.sessions[sessionID] = s
	}
	return nil
}

func (r *fakeSessions) Deactivate(_ context.Context, sessionID string, _ time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[sessionID]
	if !ok || !s.IsActive {
		return false, nil
	}
	s.IsActive = false
	r.sessions[sessionID] = s
	return true, nil
}

func (r *fakeSessions) ExpireIfPast(_ context.Context, sessionID string, now time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[sessionID]
	if !ok || !s.IsActive || !s.ExpiresAt.Before(now) {
		return false, nil
	}
	s.IsActive = false
	r.sessions[sessionID] = s
	return true, nil
}

func (r *fakeSessions) DeactivateAllByUser(_ context.Context, userID uuid.UUID, at time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.deactivateUserSessions(userID, at), nil
}

func (r *fakeSessions) GetDeactivationLink(_ context.Context, linkHash string) (domain.SessionDeactivationLink, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.links[linkHash]
	if !ok {
		return domain.SessionDeactivationLink{}, domain.ErrNotFound
	}
	return l, nil
}

func (r *fakeSessions) ConsumeDeactivationLink(_ context.Context, linkHash string, at time.Time) (domain.SessionDeactivationLink, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.links[linkHash]
	if !ok {
		return domain.SessionDeactivationLink{}, domain.ErrNotFound
	}
	if l.IsUsed {
		return domain.SessionDeactivationLink{}, domain.ErrTokenConsumed
	}
	l.IsUsed, l.UpdatedAt = true, at
	r.links[linkHash] = l
	if s, ok := r.sessions[l.SessionID]; ok {
		s.IsActive = false
		r.sessions[l.SessionID] = s
	}
	return l, nil
}

type fakeVerifications struct{ *memStore }

func (r *fakeVerifications) Get(_ context.Context, email string) (domain.EmailVerification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.verifications[email]
	if !ok {
		return domain.EmailVerification{}, domain.ErrNotFound
	}
	return v, nil
}

func (r *fakeVerifications) Create(_ context.Context, email, code string, at time.Time) (domain.EmailVerification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.verifications[email]; ok {
		return domain.EmailVerification{}, domain.ErrConflict
	}
	v := domain.EmailVerification{Email: email, Code: code, CreatedAt: at, UpdatedAt: at}
	r.verifications[email] = v
	return v, nil
}

func (r *fakeVerifications) Reissue(_ context.Context, email, code string, at, notAfter time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.verifications[email]
	if !ok || v.CreatedAt.After(notAfter) {
		return false, nil
	}
	r.verifications[email] = domain.EmailVerification{Email: email, Code: code, CreatedAt: at, UpdatedAt: at}
	return true, nil
}

func (r *fakeVerifications) RecordAttempt(_ context.Context, email string, at time.Time) (domain.EmailVerification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.verifications[email]
	if !ok {
		return domain.EmailVerification{}, domain.ErrNotFound
	}
	if v.IsVerified {
		return domain.EmailVerification{}, domain.ErrAlreadyVerified
	}
	v.AttemptCount++
	v.UpdatedAt = at
	r.verifications[email] = v
	return v, nil
}

func (r *fakeVerifications) MarkVerified(_ context.Context, email string, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.verifications[email]
	if !ok || v.IsVerified {
		return false, nil
	}
	v.IsVerified, v.UpdatedAt = true, at
	r.verifications[email] = v
	return true, nil
}

type fakeResets struct{ *memStore }

func (r *fakeResets) Issue(_ context.Context, params ports.ResetIssueParams) (ports.ResetIssueResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.liveUserByEmail(params.Email); !ok {
		return ports.ResetIssueResult{}, domain.ErrNotFound
	}
	var newest *domain.PasswordResetLink
	for _, l := range r.resets {
		if l.Email == params.Email && !l.IsUsed && l.IsActive && !l.CreatedAt.Before(params.CooldownStart) {
			if newest == nil || l.CreatedAt.After(newest.CreatedAt) {
				newest = &l
			}
		}
	}
	if newest != nil {
		return ports.ResetIssueResult{Link: *newest, Outstanding: true}, nil
	}
	for hash, l := range r.resets {
		if l.Email == params.Email && !l.IsUsed && l.IsActive {
			l.IsActive, l.UpdatedAt = false, params.IssuedAt
			r.resets[hash] = l
		}
	}
	link := domain.PasswordResetLink{
		LinkHash:  params.LinkHash,
		Email:     params.Email,
		IsActive:  true,
		CreatedAt: params.IssuedAt,
		UpdatedAt: params.IssuedAt,
	}
	r.resets[link.LinkHash] = link
	return ports.ResetIssueResult{Link: link}, nil
}

func (r *fakeResets) GetByHash(_ context.Context, linkHash string) (domain.PasswordResetLink, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.resets[linkHash]
	if !ok {
		return domain.PasswordResetLink{}, domain.ErrNotFound
	}
	return l, nil
}

func (r *fakeResets) ExpireIfStale(_ context.Context, linkHash string, cutoff, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.resets[linkHash]
	if !ok || l.IsUsed || !l.IsActive || !l.CreatedAt.Before(cutoff) {
		return false, nil
	}
	l.IsActive, l.UpdatedAt = false, at
	r.resets[linkHash] = l
	return true, nil
}

// Complete validates everything before the first write, so a failure leaves no trace,
// like the rolled back transaction of the real store.
func (r *fakeResets) Complete(_ context.Context, params ports.ResetCompletion) (uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.resets[params.LinkHash]
	if !ok {
		return uuid.Nil, domain.ErrNotFound
	}
	switch {
	case l.IsUsed:
		return uuid.Nil, domain.ErrTokenConsumed
	case !l.IsActive, l.CreatedAt.Before(params.ValidAfter):
		return uuid.Nil, domain.ErrTokenExpired
	}
	owner, ok := r.liveUserByEmail(l.Email)
	if !ok {
		return uuid.Nil, domain.ErrNotFound
	}
	if r.failResetWrites {
		return uuid.Nil, errStoreDown
	}
	l.IsUsed, l.IsActive, l.UpdatedAt = true, false, params.CompletedAt
	r.resets[l.LinkHash] = l
	owner.PasswordHash, owner.Salt, owner.UpdatedAt = params.PasswordHash, params.Salt, params.CompletedAt
	r.users[owner.UserID] = owner
	r.deactivateUserSessions(owner.UserID, params.CompletedAt)
	return owner.UserID, nil
}

type fakeLockouts struct {
	mu     sync.Mutex
	states map[string]ports.LockoutState
}

func (l *fakeLockouts) Get(_ context.Context, key string) (ports.LockoutState, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.states[key], nil
}

func (l *fakeLockouts) RecordFailure(_ context.Context, key string, now time.Time, threshold int, window time.Duration) (ports.LockoutState, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	st := l.states[key]
	st.FailedCount++
	if threshold > 0 && st.FailedCount >= threshold {
		until := now.Add(window)
		st.LockedUntil = &until
	}
	l.states[key] = st
	return st, nil
}

func (l *fakeLockouts) Clear(_ context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.states, key)
	return nil
}

type fakeNotifier struct {
	mu    sync.Mutex
	sent  []domain.Notification
	fails bool
}

func (n *fakeNotifier) Notify(_ context.Context, note domain.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.fails {
		return errors.New("outbox unavailable")
	}
	n.sent = append(n.sent, note)
	return nil
}

func (n *fakeNotifier) last(kind domain.NotificationKind) (domain.Notification, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for i := len(n.sent) - 1; i >= 0; i-- {
		if n.sent[i].Kind == kind {
			return n.sent[i], true
		}
	}
	return domain.Notification{}, false
}

func (n *fakeNotifier) count(kind domain.NotificationKind) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	total := 0
	for _, note := range n.sent {
		if note.Kind == kind {
			total++
		}
	}
	return total
}

// fakeHasher is deterministic and cheap; it still binds the hash to the salt.
type fakeHasher struct {
	mu sync.Mutex
	n  int
}

func (h *fakeHasher) NewSalt() (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.n++
	return fmt.Sprintf("salt-%04d", h.n), nil
}

func (h *fakeHasher) Hash(password, salt string) (string, error) {
	return "h1$" + salt + "$" + password, nil
}

func (h *fakeHasher) Compare(hash, password, salt string) bool {
	want, _ := h.Hash(password, salt)
	return hash == want
}

type fakeTokens struct {
	mu sync.Mutex
	n  int
}

func (t *fakeTokens) Token() (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.n++
	return fmt.Sprintf("tok%061d", t.n), nil
}

func (t *fakeTokens) Digits(n int) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.n++
	return fmt.Sprintf("%0*d", n, 100000+t.n%900000), nil
}
