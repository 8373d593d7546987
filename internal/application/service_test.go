package application_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/viralforge/mesh/services/core-platform/M04-credential-lifecycle-service/internal/application"
	"github.com/viralforge/mesh/services/core-platform/M04-credential-lifecycle-service/internal/domain"
)

const testPassword = "P@ss1234"

func registerUser(t *testing.T, f *fixture, email, password string) application.UserInfo {
	t.Helper()
	ctx := context.Background()

	if err := f.service.SendVerificationCode(ctx, email); err != nil {
		t.Fatalf("send verification code failed: %v", err)
	}
	note, ok := f.notifier.last(domain.NotificationVerificationCodeIssued)
	if !ok {
		t.Fatalf("expected verification code notification")
	}
	if err := f.service.VerifyCode(ctx, email, note.Data["code"]); err != nil {
		t.Fatalf("verify code failed: %v", err)
	}
	info, err := f.service.CreateAccount(ctx, application.CreateAccountRequest{
		Email:    email,
		Password: password,
		Name:     "alice",
	})
	if err != nil {
		t.Fatalf("create account failed: %v", err)
	}
	return info
}

func login(t *testing.T, f *fixture, email, password string) application.LoginResult {
	t.Helper()
	res, err := f.service.CreateSession(context.Background(), application.LoginRequest{
		Email:     email,
		Password:  password,
		UserAgent: "unit-test",
		IPAddress: "127.0.0.1",
	})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	return res
}

func TestLoginTwiceKeepsOnlyNewestSessionActive(t *testing.T) {
	t.Parallel()

	f := newFixture()
	ctx := context.Background()
	registerUser(t, f, "a@x.com", testPassword)

	first := login(t, f, "a@x.com", testPassword)
	if _, err := f.service.GetSession(ctx, first.SessionID); err != nil {
		t.Fatalf("first session should be active: %v", err)
	}
	f.clock.Advance(time.Second)
	second := login(t, f, "a@x.com", testPassword)
	if first.SessionID == second.SessionID {
		t.Fatalf("expected distinct session ids")
	}

	sessions, err := f.service.ListSessions(ctx, second.SessionID)
	if err != nil {
		t.Fatalf("list sessions failed: %v", err)
	}
	if len(sessions) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(sessions))
	}
	if sessions[0].SessionID != second.SessionID {
		t.Fatalf("expected newest session first")
	}
	active := 0
	for _, s := range sessions {
		if s.IsActive {
			active++
		}
	}
	if active != 1 || !sessions[0].IsActive {
		t.Fatalf("expected exactly the newest session active, got %d active", active)
	}

	if _, err := f.service.ListSessions(ctx, first.SessionID); !errors.Is(err, domain.ErrSessionInactive) {
		t.Fatalf("expected inactive error listing from demoted session, got %v", err)
	}
	if err := f.service.DeactivateSession(ctx, first.SessionID); !errors.Is(err, domain.ErrAlreadyLoggedOut) {
		t.Fatalf("expected already logged out, got %v", err)
	}
}

func TestLoginIssuesDeactivationLinkNotification(t *testing.T) {
	t.Parallel()

	f := newFixture()
	ctx := context.Background()
	user := registerUser(t, f, "notify@example.com", testPassword)
	res := login(t, f, "notify@example.com", testPassword)

	note, ok := f.notifier.last(domain.NotificationSessionCreated)
	if !ok {
		t.Fatalf("expected session created notification")
	}
	if note.Recipient != "notify@example.com" || note.UserID == nil || *note.UserID != user.UserID {
		t.Fatalf("unexpected notification addressing: %+v", note)
	}
	if note.Data["session_id"] != res.SessionID {
		t.Fatalf("notification should carry the session id")
	}
	link, err := f.service.ResolveDeactivationLink(ctx, note.Data["deactivation_link_hash"])
	if err != nil {
		t.Fatalf("resolve deactivation link failed: %v", err)
	}
	if link.SessionID != res.SessionID || link.IsUsed {
		t.Fatalf("unexpected link state: %+v", link)
	}
}

func TestLoginRejectsCredentialsGenerically(t *testing.T) {
	t.Parallel()

	f := newFixture()
	registerUser(t, f, "known@example.com", testPassword)

	cases := []struct {
		name     string
		email    string
		password string
		want     error
	}{
		{name: "unknown email", email: "nobody@example.com", password: testPassword, want: domain.ErrInvalidCredentials},
		{name: "wrong password", email: "known@example.com", password: "Wr0ng!pass", want: domain.ErrInvalidCredentials},
		{name: "malformed email", email: "not-an-email", password: testPassword, want: domain.ErrInvalidInput},
		{name: "empty password", email: "known@example.com", password: "", want: domain.ErrInvalidInput},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.service.CreateSession(context.Background(), application.LoginRequest{
				Email:    tc.email,
				Password: tc.password,
			})
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestExpiredSessionStaysExpired(t *testing.T) {
	t.Parallel()

	f := newFixture()
	ctx := context.Background()
	registerUser(t, f, "expiry@example.com", testPassword)
	res := login(t, f, "expiry@example.com", testPassword)

	f.clock.Advance(31*24*time.Hour + time.Second)
	for i := 0; i < 2; i++ {
		if _, err := f.service.GetSession(ctx, res.SessionID); !errors.Is(err, domain.ErrSessionExpired) {
			t.Fatalf("read %d: expected expired session, got %v", i+1, err)
		}
	}
	if f.store.session(res.SessionID).IsActive {
		t.Fatalf("expired session should have been flipped inactive on read")
	}
}

func TestGetSessionUnknownAndLoggedOut(t *testing.T) {
	t.Parallel()

	f := newFixture()
	ctx := context.Background()
	registerUser(t, f, "logout@example.com", testPassword)
	res := login(t, f, "logout@example.com", testPassword)

	if _, err := f.service.GetSession(ctx, "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := f.service.DeactivateSession(ctx, res.SessionID); err != nil {
		t.Fatalf("logout failed: %v", err)
	}
	if _, err := f.service.GetSession(ctx, res.SessionID); !errors.Is(err, domain.ErrSessionInactive) {
		t.Fatalf("expected inactive session after logout, got %v", err)
	}
	if err := f.service.DeactivateSession(ctx, res.SessionID); !errors.Is(err, domain.ErrAlreadyLoggedOut) {
		t.Fatalf("expected already logged out, got %v", err)
	}
}

func TestDeactivationLinkWorksOnce(t *testing.T) {
	t.Parallel()

	f := newFixture()
	ctx := context.Background()
	registerUser(t, f, "link@example.com", testPassword)
	res := login(t, f, "link@example.com", testPassword)
	note, _ := f.notifier.last(domain.NotificationSessionCreated)
	hash := note.Data["deactivation_link_hash"]

	if err := f.service.ConsumeDeactivationLink(ctx, hash); err != nil {
		t.Fatalf("consume link failed: %v", err)
	}
	if _, err := f.service.GetSession(ctx, res.SessionID); !errors.Is(err, domain.ErrSessionInactive) {
		t.Fatalf("expected session killed by link, got %v", err)
	}
	if err := f.service.ConsumeDeactivationLink(ctx, hash); !errors.Is(err, domain.ErrTokenConsumed) {
		t.Fatalf("expected consumed link, got %v", err)
	}
	info, err := f.service.ResolveDeactivationLink(ctx, hash)
	if err != nil {
		t.Fatalf("resolve used link failed: %v", err)
	}
	if !info.IsUsed {
		t.Fatalf("expected link marked used")
	}
	if _, err := f.service.ResolveDeactivationLink(ctx, "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestSendVerificationCodeCooldown(t *testing.T) {
	t.Parallel()

	f := newFixture()
	ctx := context.Background()
	const email = "cooldown@example.com"

	if err := f.service.SendVerificationCode(ctx, email); err != nil {
		t.Fatalf("first send failed: %v", err)
	}
	if err := f.service.VerifyCode(ctx, email, "000000"); !errors.Is(err, domain.ErrCodeMismatch) {
		t.Fatalf("expected mismatch, got %v", err)
	}

	f.clock.Advance(20 * time.Second)
	err := f.service.SendVerificationCode(ctx, email)
	var rl *domain.RateLimitError
	if !errors.As(err, &rl) {
		t.Fatalf("expected rate limit error, got %v", err)
	}
	if rl.Remaining != 40*time.Second {
		t.Fatalf("expected 40s remaining, got %s", rl.Remaining)
	}
	if !errors.Is(err, domain.ErrRateLimited) {
		t.Fatalf("rate limit error should match ErrRateLimited")
	}

	f.clock.Advance(40 * time.Second)
	if err := f.service.SendVerificationCode(ctx, email); err != nil {
		t.Fatalf("send after cooldown failed: %v", err)
	}
	if got := f.store.verification(email).AttemptCount; got != 0 {
		t.Fatalf("expected attempts reset on resend, got %d", got)
	}
	if n := f.notifier.count(domain.NotificationVerificationCodeIssued); n != 2 {
		t.Fatalf("expected 2 code notifications, got %d", n)
	}
}

func TestSendVerificationCodeRejectsRegisteredEmail(t *testing.T) {
	t.Parallel()

	f := newFixture()
	registerUser(t, f, "taken@example.com", testPassword)
	if err := f.service.SendVerificationCode(context.Background(), "Taken@Example.com"); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected conflict for registered email, got %v", err)
	}
}

func TestVerifyCodeAttemptCeiling(t *testing.T) {
	t.Parallel()

	f := newFixture()
	ctx := context.Background()
	const email = "ceiling@example.com"
	if err := f.service.SendVerificationCode(ctx, email); err != nil {
		t.Fatalf("send failed: %v", err)
	}
	note, _ := f.notifier.last(domain.NotificationVerificationCodeIssued)

	for attempt := 1; attempt <= 4; attempt++ {
		if err := f.service.VerifyCode(ctx, email, "999999"); !errors.Is(err, domain.ErrCodeMismatch) {
			t.Fatalf("attempt %d: expected mismatch, got %v", attempt, err)
		}
	}
	if err := f.service.VerifyCode(ctx, email, "999999"); !errors.Is(err, domain.ErrRateLimited) {
		t.Fatalf("attempt 5: expected rate limit, got %v", err)
	}
	if err := f.service.VerifyCode(ctx, email, note.Data["code"]); !errors.Is(err, domain.ErrRateLimited) {
		t.Fatalf("attempt 6 with correct code: expected rate limit, got %v", err)
	}
	if f.store.verification(email).IsVerified {
		t.Fatalf("record must not be verified past the ceiling")
	}
}

func TestVerifyCodeExpiredStillCountsAttempt(t *testing.T) {
	t.Parallel()

	f := newFixture()
	ctx := context.Background()
	const email = "late@example.com"
	if err := f.service.SendVerificationCode(ctx, email); err != nil {
		t.Fatalf("send failed: %v", err)
	}
	note, _ := f.notifier.last(domain.NotificationVerificationCodeIssued)

	f.clock.Advance(3*time.Minute + time.Second)
	if err := f.service.VerifyCode(ctx, email, note.Data["code"]); !errors.Is(err, domain.ErrTokenExpired) {
		t.Fatalf("expected expired code, got %v", err)
	}
	if got := f.store.verification(email).AttemptCount; got != 1 {
		t.Fatalf("expected expired attempt counted, got %d", got)
	}
}

func TestVerifyCodeValidAtExactTTL(t *testing.T) {
	t.Parallel()

	f := newFixture()
	ctx := context.Background()
	const email = "edge@example.com"
	if err := f.service.SendVerificationCode(ctx, email); err != nil {
		t.Fatalf("send failed: %v", err)
	}
	note, _ := f.notifier.last(domain.NotificationVerificationCodeIssued)

	f.clock.Advance(3 * time.Minute)
	if err := f.service.VerifyCode(ctx, email, note.Data["code"]); err != nil {
		t.Fatalf("code must still verify at exactly its ttl, got %v", err)
	}
}

func TestVerifyCodeSucceedsOnce(t *testing.T) {
	t.Parallel()

	f := newFixture()
	ctx := context.Background()
	const email = "once@example.com"
	if err := f.service.SendVerificationCode(ctx, email); err != nil {
		t.Fatalf("send failed: %v", err)
	}
	note, _ := f.notifier.last(domain.NotificationVerificationCodeIssued)

	if err := f.service.VerifyCode(ctx, email, note.Data["code"]); err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if err := f.service.VerifyCode(ctx, email, note.Data["code"]); !errors.Is(err, domain.ErrAlreadyVerified) {
		t.Fatalf("expected already verified, got %v", err)
	}
	if err := f.service.VerifyCode(ctx, "unknown@example.com", "123456"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found for unknown email, got %v", err)
	}
}

func TestCreateAccountRequiresVerifiedEmail(t *testing.T) {
	t.Parallel()

	f := newFixture()
	ctx := context.Background()

	_, err := f.service.CreateAccount(ctx, application.CreateAccountRequest{
		Email:    "unverified@example.com",
		Password: testPassword,
		Name:     "bob",
	})
	if !errors.Is(err, domain.ErrEmailNotVerified) {
		t.Fatalf("expected email not verified, got %v", err)
	}

	user := registerUser(t, f, "verified@example.com", testPassword)
	if user.UserID == uuid.Nil || user.Email != "verified@example.com" {
		t.Fatalf("unexpected user info: %+v", user)
	}
	if _, ok := f.notifier.last(domain.NotificationAccountCreated); !ok {
		t.Fatalf("expected account created notification")
	}
	if _, err := f.service.CreateAccount(ctx, application.CreateAccountRequest{
		Email:    "verified@example.com",
		Password: testPassword,
		Name:     "bob",
	}); !errors.Is(err, domain.ErrEmailNotVerified) {
		t.Fatalf("verified record should be consumed by account creation, got %v", err)
	}
}

func TestCreateAccountValidatesInput(t *testing.T) {
	t.Parallel()

	f := newFixture()
	cases := []struct {
		name string
		req  application.CreateAccountRequest
	}{
		{name: "bad email", req: application.CreateAccountRequest{Email: "x", Password: testPassword, Name: "ok"}},
		{name: "weak password", req: application.CreateAccountRequest{Email: "a@b.com", Password: "password", Name: "ok"}},
		{name: "bad name", req: application.CreateAccountRequest{Email: "a@b.com", Password: testPassword, Name: "no spaces allowed"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := f.service.CreateAccount(context.Background(), tc.req); !errors.Is(err, domain.ErrInvalidInput) {
				t.Fatalf("expected invalid input, got %v", err)
			}
		})
	}
}

func TestRequestResetCooldownAndReissue(t *testing.T) {
	t.Parallel()

	f := newFixture()
	ctx := context.Background()
	registerUser(t, f, "reset@example.com", testPassword)

	if err := f.service.RequestReset(ctx, "reset@example.com"); err != nil {
		t.Fatalf("request reset failed: %v", err)
	}
	first, _ := f.notifier.last(domain.NotificationResetLinkIssued)

	f.clock.Advance(time.Minute)
	err := f.service.RequestReset(ctx, "reset@example.com")
	var rl *domain.RateLimitError
	if !errors.As(err, &rl) || rl.Remaining != 2*time.Minute {
		t.Fatalf("expected rate limit with 2m remaining, got %v", err)
	}

	f.clock.Advance(2 * time.Minute)
	if err := f.service.RequestReset(ctx, "reset@example.com"); !errors.Is(err, domain.ErrRateLimited) {
		t.Fatalf("link is still valid at exactly its ttl, expected rate limit, got %v", err)
	}

	f.clock.Advance(time.Second)
	if err := f.service.RequestReset(ctx, "reset@example.com"); err != nil {
		t.Fatalf("request after cooldown failed: %v", err)
	}
	second, _ := f.notifier.last(domain.NotificationResetLinkIssued)
	if second.Data["link_hash"] == first.Data["link_hash"] {
		t.Fatalf("expected a fresh link hash")
	}
	if f.store.reset(first.Data["link_hash"]).IsActive {
		t.Fatalf("stale link should be deactivated by the new request")
	}

	if err := f.service.RequestReset(ctx, "ghost@example.com"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found for unknown email, got %v", err)
	}
}

func TestResolveResetLinkLazyExpiry(t *testing.T) {
	t.Parallel()

	f := newFixture()
	ctx := context.Background()
	registerUser(t, f, "lazy@example.com", testPassword)
	if err := f.service.RequestReset(ctx, "lazy@example.com"); err != nil {
		t.Fatalf("request reset failed: %v", err)
	}
	note, _ := f.notifier.last(domain.NotificationResetLinkIssued)
	hash := note.Data["link_hash"]

	info, err := f.service.ResolveResetLink(ctx, hash)
	if err != nil || !info.IsActive || info.IsUsed {
		t.Fatalf("expected fresh active link, got %+v err=%v", info, err)
	}

	f.clock.Advance(3*time.Minute + time.Second)
	info, err = f.service.ResolveResetLink(ctx, hash)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if info.IsActive {
		t.Fatalf("expected link expired on read")
	}
	if f.store.reset(hash).IsActive {
		t.Fatalf("expected lazy expiry persisted")
	}
	if err := f.service.CompleteReset(ctx, hash, "N3w!password"); !errors.Is(err, domain.ErrTokenExpired) {
		t.Fatalf("expected expired link, got %v", err)
	}
}

func TestCompleteResetIsSingleUse(t *testing.T) {
	t.Parallel()

	f := newFixture()
	ctx := context.Background()
	registerUser(t, f, "single@example.com", testPassword)
	old := login(t, f, "single@example.com", testPassword)
	if err := f.service.RequestReset(ctx, "single@example.com"); err != nil {
		t.Fatalf("request reset failed: %v", err)
	}
	note, _ := f.notifier.last(domain.NotificationResetLinkIssued)
	hash := note.Data["link_hash"]

	if err := f.service.CompleteReset(ctx, hash, "N3w!password"); err != nil {
		t.Fatalf("complete reset failed: %v", err)
	}
	if _, err := f.service.GetSession(ctx, old.SessionID); !errors.Is(err, domain.ErrSessionInactive) {
		t.Fatalf("expected sessions logged out by reset, got %v", err)
	}
	user, _ := f.store.userByEmail("single@example.com")

	if err := f.service.CompleteReset(ctx, hash, "An0ther!password"); !errors.Is(err, domain.ErrTokenConsumed) {
		t.Fatalf("expected consumed link, got %v", err)
	}
	after, _ := f.store.userByEmail("single@example.com")
	if after.PasswordHash != user.PasswordHash {
		t.Fatalf("used link must not change the password")
	}
	login(t, f, "single@example.com", "N3w!password")
}

func TestCompleteResetRollsBackOnStoreFailure(t *testing.T) {
	t.Parallel()

	f := newFixture()
	ctx := context.Background()
	registerUser(t, f, "rollback@example.com", testPassword)
	if err := f.service.RequestReset(ctx, "rollback@example.com"); err != nil {
		t.Fatalf("request reset failed: %v", err)
	}
	note, _ := f.notifier.last(domain.NotificationResetLinkIssued)
	hash := note.Data["link_hash"]
	before, _ := f.store.userByEmail("rollback@example.com")

	f.store.mu.Lock()
	f.store.failResetWrites = true
	f.store.mu.Unlock()

	err := f.service.CompleteReset(ctx, hash, "N3w!password")
	if !errors.Is(err, domain.ErrInfrastructure) || !domain.IsRetryable(err) {
		t.Fatalf("expected retryable infrastructure error, got %v", err)
	}
	if f.store.reset(hash).IsUsed {
		t.Fatalf("link must not be marked used when the update failed")
	}
	after, _ := f.store.userByEmail("rollback@example.com")
	if after.PasswordHash != before.PasswordHash {
		t.Fatalf("password must not change when the update failed")
	}
}

func TestChangePasswordLogsOutEverySession(t *testing.T) {
	t.Parallel()

	f := newFixture()
	ctx := context.Background()
	registerUser(t, f, "change@example.com", testPassword)
	res := login(t, f, "change@example.com", testPassword)

	err := f.service.ChangePassword(ctx, application.ChangePasswordRequest{
		SessionID:       res.SessionID,
		CurrentPassword: "Wr0ng!pass",
		NewPassword:     "N3w!password",
	})
	if !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
	err = f.service.ChangePassword(ctx, application.ChangePasswordRequest{
		SessionID:       res.SessionID,
		CurrentPassword: testPassword,
		NewPassword:     "short",
	})
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected password policy error, got %v", err)
	}

	if err := f.service.ChangePassword(ctx, application.ChangePasswordRequest{
		SessionID:       res.SessionID,
		CurrentPassword: testPassword,
		NewPassword:     "N3w!password",
	}); err != nil {
		t.Fatalf("change password failed: %v", err)
	}
	if _, err := f.service.GetSession(ctx, res.SessionID); !errors.Is(err, domain.ErrSessionInactive) {
		t.Fatalf("expected session invalidated, got %v", err)
	}
	if _, err := f.service.CreateSession(ctx, application.LoginRequest{Email: "change@example.com", Password: testPassword}); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("old password should no longer work, got %v", err)
	}
	login(t, f, "change@example.com", "N3w!password")
}

func TestProfileUpdatesRequireActiveSession(t *testing.T) {
	t.Parallel()

	f := newFixture()
	ctx := context.Background()
	user := registerUser(t, f, "profile@example.com", testPassword)
	res := login(t, f, "profile@example.com", testPassword)

	if err := f.service.ChangeName(ctx, res.SessionID, "민수_2"); err != nil {
		t.Fatalf("change name failed: %v", err)
	}
	if err := f.service.ChangeName(ctx, res.SessionID, "bad name!"); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid name, got %v", err)
	}
	if err := f.service.ChangeProfileImage(ctx, res.SessionID, "https://cdn.example.com/a.png"); err != nil {
		t.Fatalf("change profile image failed: %v", err)
	}
	if err := f.service.ChangeProfileImage(ctx, res.SessionID, "ftp://cdn.example.com/a.png"); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid url, got %v", err)
	}

	info, err := f.service.GetAccount(ctx, user.UserID)
	if err != nil {
		t.Fatalf("get account failed: %v", err)
	}
	if info.Name != "민수_2" || info.ProfileURL != "https://cdn.example.com/a.png" {
		t.Fatalf("unexpected profile: %+v", info)
	}

	if err := f.service.DeactivateSession(ctx, res.SessionID); err != nil {
		t.Fatalf("logout failed: %v", err)
	}
	if err := f.service.ChangeName(ctx, res.SessionID, "carol"); !errors.Is(err, domain.ErrSessionInactive) {
		t.Fatalf("expected inactive session, got %v", err)
	}
}

func TestDeleteAccountDeactivatesSessions(t *testing.T) {
	t.Parallel()

	f := newFixture()
	ctx := context.Background()
	registerUser(t, f, "delete@example.com", testPassword)
	res := login(t, f, "delete@example.com", testPassword)

	if err := f.service.DeleteAccount(ctx, "delete@example.com", "Wr0ng!pass"); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
	if err := f.service.DeleteAccount(ctx, "delete@example.com", testPassword); err != nil {
		t.Fatalf("delete account failed: %v", err)
	}
	if _, err := f.service.GetSession(ctx, res.SessionID); !errors.Is(err, domain.ErrSessionInactive) {
		t.Fatalf("expected sessions deactivated, got %v", err)
	}
	if _, ok := f.notifier.last(domain.NotificationAccountDeleted); !ok {
		t.Fatalf("expected account deleted notification")
	}
	if err := f.service.SendVerificationCode(ctx, "delete@example.com"); err != nil {
		t.Fatalf("deleted email should be free for registration: %v", err)
	}
}

func TestDeactivateAllSessions(t *testing.T) {
	t.Parallel()

	f := newFixture()
	ctx := context.Background()
	user := registerUser(t, f, "all@example.com", testPassword)
	login(t, f, "all@example.com", testPassword)

	n, err := f.service.DeactivateAllSessions(ctx, user.UserID)
	if err != nil {
		t.Fatalf("deactivate all failed: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 session deactivated, got %d", n)
	}
	if _, err := f.service.DeactivateAllSessions(ctx, uuid.New()); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found for unknown user, got %v", err)
	}
}

func TestNotificationFailureDoesNotFailLogin(t *testing.T) {
	t.Parallel()

	f := newFixture()
	registerUser(t, f, "quiet@example.com", testPassword)

	f.notifier.mu.Lock()
	f.notifier.fails = true
	f.notifier.mu.Unlock()

	res := login(t, f, "quiet@example.com", testPassword)
	if _, err := f.service.GetSession(context.Background(), res.SessionID); err != nil {
		t.Fatalf("session should exist despite notification failure: %v", err)
	}
}

func TestLoginLockoutAfterRepeatedFailures(t *testing.T) {
	t.Parallel()

	cfg := application.DefaultConfig()
	cfg.FailedLoginThreshold = 3
	cfg.LockoutDuration = 10 * time.Minute
	f := newFixtureWithConfig(cfg)
	ctx := context.Background()
	registerUser(t, f, "locked@example.com", testPassword)

	for i := 0; i < 3; i++ {
		if _, err := f.service.CreateSession(ctx, application.LoginRequest{Email: "locked@example.com", Password: "Wr0ng!pass"}); !errors.Is(err, domain.ErrInvalidCredentials) {
			t.Fatalf("attempt %d: expected invalid credentials, got %v", i+1, err)
		}
	}
	if _, err := f.service.CreateSession(ctx, application.LoginRequest{Email: "locked@example.com", Password: testPassword}); !errors.Is(err, domain.ErrAccountLocked) {
		t.Fatalf("expected locked account, got %v", err)
	}

	f.clock.Advance(10 * time.Minute)
	login(t, f, "locked@example.com", testPassword)
	if st, _ := f.lockouts.Get(ctx, "locked@example.com"); st.FailedCount != 0 {
		t.Fatalf("expected lockout cleared after successful login, got %d", st.FailedCount)
	}
}

func TestCredentialChecksShareLoginLockout(t *testing.T) {
	t.Parallel()

	cfg := application.DefaultConfig()
	cfg.FailedLoginThreshold = 3
	cfg.LockoutDuration = 30 * time.Minute
	f := newFixtureWithConfig(cfg)
	ctx := context.Background()
	user := registerUser(t, f, "guarded@example.com", testPassword)

	if _, err := f.service.CreateSession(ctx, application.LoginRequest{Email: "guarded@example.com", Password: "Wr0ng!pass"}); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
	for i := 0; i < 2; i++ {
		if err := f.service.DeleteAccount(ctx, "Guarded@Example.com", "Wr0ng!pass"); !errors.Is(err, domain.ErrInvalidCredentials) {
			t.Fatalf("delete attempt %d: expected invalid credentials, got %v", i+1, err)
		}
	}
	st, _ := f.lockouts.Get(ctx, "guarded@example.com")
	if st.FailedCount != 3 || st.LockedUntil == nil {
		t.Fatalf("expected delete failures to count towards the lockout, got %+v", st)
	}

	if err := f.service.DeleteAccount(ctx, "guarded@example.com", testPassword); !errors.Is(err, domain.ErrAccountLocked) {
		t.Fatalf("expected locked account on delete, got %v", err)
	}
	if _, err := f.service.ValidateByEmail(ctx, "guarded@example.com", testPassword); !errors.Is(err, domain.ErrAccountLocked) {
		t.Fatalf("expected locked account on credential check, got %v", err)
	}
	if _, err := f.service.CreateSession(ctx, application.LoginRequest{Email: "guarded@example.com", Password: testPassword}); !errors.Is(err, domain.ErrAccountLocked) {
		t.Fatalf("expected locked account on login, got %v", err)
	}
	if _, err := f.service.GetAccount(ctx, user.UserID); err != nil {
		t.Fatalf("account must survive guesses while locked: %v", err)
	}

	f.clock.Advance(30*time.Minute + time.Second)
	if _, err := f.service.ValidateByEmail(ctx, "guarded@example.com", testPassword); err != nil {
		t.Fatalf("credential check after lockout failed: %v", err)
	}
	if st, _ := f.lockouts.Get(ctx, "guarded@example.com"); st.FailedCount != 0 {
		t.Fatalf("expected counter cleared by a successful check, got %d", st.FailedCount)
	}
}

func TestStoreFailureIsInfrastructureError(t *testing.T) {
	t.Parallel()

	f := newFixture()
	f.store.mu.Lock()
	f.store.failSessionReads = true
	f.store.mu.Unlock()

	_, err := f.service.GetSession(context.Background(), "any-session")
	if !errors.Is(err, domain.ErrInfrastructure) {
		t.Fatalf("expected infrastructure error, got %v", err)
	}
	if !errors.Is(err, errStoreDown) {
		t.Fatalf("infrastructure error should wrap the store cause")
	}
}
