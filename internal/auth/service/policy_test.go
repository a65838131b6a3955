package service

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidateEmail(t *testing.T) {
	t.Parallel()

	for _, ok := range []string{"a@x.com", "first.last+tag@example.co.uk"} {
		require.NoError(t, ValidateEmail(ok), ok)
	}
	for _, bad := range []string{"", "plain", "a@b", "Ada <a@x.com>", "a@@x.com", " a@x.com"} {
		require.ErrorIs(t, ValidateEmail(bad), ErrWeakCredential, bad)
	}
}

func TestNormalizeEmail(t *testing.T) {
	t.Parallel()
	require.Equal(t, "ada@example.com", NormalizeEmail("  Ada@Example.COM "))
}

func TestValidatePassword(t *testing.T) {
	t.Parallel()

	require.NoError(t, ValidatePassword("Str0ng!Pass"))

	cases := map[string]string{
		"too short":  "S0!a",
		"no upper":   "str0ng!pass",
		"no lower":   "STR0NG!PASS",
		"no digit":   "Strong!Pass",
		"no symbol":  "Str0ngPass1",
		"too long":   "Aa1!" + strings.Repeat("x", 125),
		"empty":      "",
		"only alpha": "abcdefghIJ",
	}
	for name, pw := range cases {
		t.Run(name, func(t *testing.T) {
			require.ErrorIs(t, ValidatePassword(pw), ErrWeakCredential)
		})
	}
}

func TestNormalizeName(t *testing.T) {
	t.Parallel()

	got, err := NormalizeName("firstName", "  Ada ")
	require.NoError(t, err)
	require.Equal(t, "Ada", got)

	_, err = NormalizeName("firstName", "A")
	require.ErrorIs(t, err, ErrWeakCredential)

	_, err = NormalizeName("lastName", strings.Repeat("x", 51))
	require.ErrorIs(t, err, ErrWeakCredential)
}
