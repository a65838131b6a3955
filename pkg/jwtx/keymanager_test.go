package jwtx_test

import (
	"strings"
	"testing"
	"time"

	"github.com/aussiebroadwan/siteauth/pkg/cryptox"
	"github.com/aussiebroadwan/siteauth/pkg/jwtx"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

const issuer = "https://auth.test"

type clock struct{ t time.Time }

func (c *clock) Now() time.Time { return c.t }

func newManagers(t *testing.T, c *clock) (access, refresh *jwtx.KeyManager) {
	t.Helper()

	access, err := jwtx.NewEphemeralKeyManager(jwtx.KeyManagerOptions{
		Issuer:    issuer,
		Audience:  []string{"siteauth:access"},
		TokenType: jwtx.TypeAccess,
		Now:       c.Now,
	})
	require.NoError(t, err)

	refresh, err = jwtx.NewEphemeralKeyManager(jwtx.KeyManagerOptions{
		Issuer:    issuer,
		Audience:  []string{"siteauth:refresh"},
		TokenType: jwtx.TypeRefresh,
		Now:       c.Now,
	})
	require.NoError(t, err)
	return access, refresh
}

func TestKeyManager_SignAndVerify(t *testing.T) {
	t.Parallel()

	c := &clock{t: time.Now()}
	access, _ := newManagers(t, c)

	claims := jwtx.NewAccessClaims("user-1", "a@x.com", "admin", issuer,
		[]string{"siteauth:access"}, 15*time.Minute, c.Now())
	tok, err := access.Signer.Sign(claims)
	require.NoError(t, err)

	got, err := access.Verifier.Verify(tok)
	require.NoError(t, err)
	require.Equal(t, "user-1", got.Subject)
	require.Equal(t, "a@x.com", got.Email)
	require.Equal(t, "admin", got.Role)
	require.Equal(t, jwtx.TypeAccess, got.Type)
	require.True(t, strings.HasPrefix(access.Signer.KID(), "access-"))
}

func TestKeyManager_KindsAreNotInterchangeable(t *testing.T) {
	t.Parallel()

	c := &clock{t: time.Now()}
	access, refresh := newManagers(t, c)
	require.False(t, access.SharesKeyWith(refresh))

	refreshTok, err := refresh.Signer.Sign(jwtx.NewRefreshClaims("user-1", issuer,
		[]string{"siteauth:refresh"}, time.Hour, c.Now()))
	require.NoError(t, err)

	_, err = access.Verifier.Verify(refreshTok)
	require.ErrorIs(t, err, jwtx.ErrUnknownKID)

	accessTok, err := access.Signer.Sign(jwtx.NewAccessClaims("user-1", "a@x.com", "user",
		issuer, []string{"siteauth:access"}, time.Hour, c.Now()))
	require.NoError(t, err)

	_, err = refresh.Verifier.Verify(accessTok)
	require.ErrorIs(t, err, jwtx.ErrUnknownKID)
}

func TestKeyManager_RejectsWrongTypeWithSameKey(t *testing.T) {
	t.Parallel()

	c := &clock{t: time.Now()}
	access, _ := newManagers(t, c)

	// Signed by the access key but claiming to be a refresh token.
	tok, err := access.Signer.Sign(jwtx.NewRefreshClaims("user-1", issuer,
		[]string{"siteauth:access"}, time.Hour, c.Now()))
	require.NoError(t, err)

	_, err = access.Verifier.Verify(tok)
	require.ErrorIs(t, err, jwtx.ErrTokenType)
}

func TestKeyManager_Expiry(t *testing.T) {
	t.Parallel()

	c := &clock{t: time.Now()}
	access, _ := newManagers(t, c)

	tok, err := access.Signer.Sign(jwtx.NewAccessClaims("user-1", "a@x.com", "user",
		issuer, []string{"siteauth:access"}, 15*time.Minute, c.Now()))
	require.NoError(t, err)

	c.t = c.t.Add(14 * time.Minute)
	_, err = access.Verifier.Verify(tok)
	require.NoError(t, err)

	c.t = c.t.Add(2 * time.Minute)
	_, err = access.Verifier.Verify(tok)
	require.ErrorIs(t, err, jwtx.ErrExpired)
}

func TestKeyManager_IssuerAndAudience(t *testing.T) {
	t.Parallel()

	c := &clock{t: time.Now()}
	access, _ := newManagers(t, c)

	wrongIss, err := access.Signer.Sign(jwtx.NewAccessClaims("u", "a@x.com", "user",
		"https://evil.test", []string{"siteauth:access"}, time.Hour, c.Now()))
	require.NoError(t, err)
	_, err = access.Verifier.Verify(wrongIss)
	require.ErrorIs(t, err, jwtx.ErrIssuer)

	wrongAud, err := access.Signer.Sign(jwtx.NewAccessClaims("u", "a@x.com", "user",
		issuer, []string{"someone-else"}, time.Hour, c.Now()))
	require.NoError(t, err)
	_, err = access.Verifier.Verify(wrongAud)
	require.ErrorIs(t, err, jwtx.ErrAudience)
}

func TestKeyManager_TamperedAndMalformed(t *testing.T) {
	t.Parallel()

	c := &clock{t: time.Now()}
	access, _ := newManagers(t, c)

	tok, err := access.Signer.Sign(jwtx.NewAccessClaims("u", "a@x.com", "user",
		issuer, []string{"siteauth:access"}, time.Hour, c.Now()))
	require.NoError(t, err)

	parts := strings.Split(tok, ".")
	require.Len(t, parts, 3)
	sig := []byte(parts[2])
	if sig[0] == 'A' {
		sig[0] = 'B'
	} else {
		sig[0] = 'A'
	}
	_, err = access.Verifier.Verify(parts[0] + "." + parts[1] + "." + string(sig))
	require.Error(t, err)

	_, err = access.Verifier.Verify("not.a.jwt")
	require.ErrorIs(t, err, jwtx.ErrMalformed)

	// HS256 with the kid of the real key must be refused outright.
	hs := jwt.NewWithClaims(jwt.SigningMethodHS256, jwtx.NewAccessClaims("u", "a@x.com", "admin",
		issuer, []string{"siteauth:access"}, time.Hour, c.Now()))
	hs.Header["kid"] = access.Signer.KID()
	forged, err := hs.SignedString([]byte("guess"))
	require.NoError(t, err)
	_, err = access.Verifier.Verify(forged)
	require.Error(t, err)
}

func TestNewKeyManagerFromPEM_StableKID(t *testing.T) {
	t.Parallel()

	pemKey, err := cryptox.GenerateEd25519Key()
	require.NoError(t, err)

	opts := jwtx.KeyManagerOptions{Issuer: issuer, TokenType: jwtx.TypeRefresh}
	a, err := jwtx.NewKeyManagerFromPEM(opts, pemKey)
	require.NoError(t, err)
	b, err := jwtx.NewKeyManagerFromPEM(opts, pemKey)
	require.NoError(t, err)

	require.Equal(t, a.Signer.KID(), b.Signer.KID())
	require.True(t, a.SharesKeyWith(b))
	require.True(t, a.IsReady())

	_, err = jwtx.NewKeyManagerFromPEM(jwtx.KeyManagerOptions{TokenType: jwtx.TypeRefresh}, pemKey)
	require.Error(t, err)

	_, err = jwtx.NewKeyManagerFromPEM(opts, []byte("garbage"))
	require.Error(t, err)
}

func TestJWKS_PublishesVerificationKey(t *testing.T) {
	t.Parallel()

	c := &clock{t: time.Now()}
	access, _ := newManagers(t, c)

	set := access.KeySet.PublicJWKS()
	require.Len(t, set.Keys, 1)
	require.Equal(t, "OKP", set.Keys[0].Kty)
	require.Equal(t, access.Signer.KID(), set.Keys[0].Kid)

	pemStr, err := set.Keys[0].PEM()
	require.NoError(t, err)
	require.Contains(t, pemStr, "BEGIN PUBLIC KEY")
}
