package service

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/aussiebroadwan/siteauth/internal/auth/domain"
	"github.com/aussiebroadwan/siteauth/internal/auth/store/drivers/sqlite"
	"github.com/aussiebroadwan/siteauth/pkg/cryptox"
	"github.com/aussiebroadwan/siteauth/pkg/jwtx"
	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/require"
)

const testIssuer = "https://auth.test"

func TestMain(m *testing.M) {
	cryptox.SetPepper("test-pepper")
	os.Exit(m.Run())
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type harness struct {
	clock     *fakeClock
	store     *sqlite.Store
	users     *UserService
	tokens    *TokenIssuer
	ledger    *LedgerService
	twoFactor *TwoFactorService
	gateway   *Gateway
	admin     *AdminService
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	clock := &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	now := Clock(clock.Now)

	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.ApplyMigrations())

	access, err := jwtx.NewEphemeralKeyManager(jwtx.KeyManagerOptions{
		Issuer: testIssuer, Audience: []string{AccessAudience}, TokenType: jwtx.TypeAccess, Now: clock.Now,
	})
	require.NoError(t, err)
	refresh, err := jwtx.NewEphemeralKeyManager(jwtx.KeyManagerOptions{
		Issuer: testIssuer, Audience: []string{RefreshAudience}, TokenType: jwtx.TypeRefresh, Now: clock.Now,
	})
	require.NoError(t, err)

	sealer, err := cryptox.NewSealer([]byte("test-master-key"))
	require.NoError(t, err)

	h := &harness{clock: clock, store: st}
	h.users = &UserService{Store: st, Now: now}
	h.tokens = &TokenIssuer{
		Access: access, Refresh: refresh, Issuer: testIssuer,
		AccessTTL: 15 * time.Minute, RefreshTTL: 7 * 24 * time.Hour, Now: now,
	}
	h.ledger = &LedgerService{Store: st, Now: now}
	h.twoFactor = &TwoFactorService{Store: st, Sealer: sealer, Issuer: "Vulsoft", Now: now}
	h.gateway = &Gateway{
		Store: st, Users: h.users, Tokens: h.tokens, Ledger: h.ledger,
		TwoFactor: h.twoFactor, ChallengeTTL: 5 * time.Minute, Now: now,
	}
	h.admin = &AdminService{Store: st, Now: now}
	return h
}

func (h *harness) register(t *testing.T, email, password string) domain.User {
	t.Helper()
	u, err := h.gateway.Register(context.Background(), RegisterInput{
		Email: email, Password: password, FirstName: "Ada", LastName: "Lovelace",
	})
	require.NoError(t, err)
	return u
}

func (h *harness) code(t *testing.T, secret string) string {
	t.Helper()
	code, err := totp.GenerateCodeCustom(secret, h.clock.Now(), totpValidateOpts)
	require.NoError(t, err)
	return code
}

// enableTwoFactor runs generate + enable and returns the plain secret.
func (h *harness) enableTwoFactor(t *testing.T, userID string) string {
	t.Helper()
	ctx := context.Background()

	enr, err := h.twoFactor.Generate(ctx, userID)
	require.NoError(t, err)
	require.NoError(t, h.twoFactor.Enable(ctx, userID, h.code(t, enr.Secret)))
	return enr.Secret
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
