package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aussiebroadwan/siteauth/internal/auth/app"
	"github.com/stretchr/testify/require"
)

func setupEnv(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("AUTH_DATABASE_FILE", filepath.Join(dir, "siteauth.db"))
	t.Setenv("AUTH_PEPPER_FILE", filepath.Join(dir, "pepper"))
	t.Setenv("AUTH_MASTER_KEY_FILE", filepath.Join(dir, "master.key"))
	t.Setenv("AUTH_ACCESS_KEY_FILE", filepath.Join(dir, "access.pem"))
	t.Setenv("AUTH_REFRESH_KEY_FILE", filepath.Join(dir, "refresh.pem"))
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv(passwordEnv, "")
}

func TestCreateAdmin(t *testing.T) {
	setupEnv(t)

	var out bytes.Buffer
	args := []string{"create-admin", "-email", "Ops@Example.com", "-first", "Ops", "-last", "Team"}
	require.NoError(t, run(args, strings.NewReader("Adm1n!Secret\n"), &out))
	require.Contains(t, out.String(), "created admin ops@example.com")

	err := run(args, strings.NewReader("Adm1n!Secret\n"), io.Discard)
	require.ErrorContains(t, err, "already exists")

	// The service started on the same files accepts the new administrator.
	a, err := app.New(app.LoadConfig(), app.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	require.NoError(t, err)
	defer a.Close()

	id := strings.Trim(strings.Fields(out.String())[3], "()")
	u, err := a.Users().GetUserByID(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, "admin", string(u.Role))
	require.True(t, u.EmailVerified)
}

func TestCreateAdminPasswordFromEnv(t *testing.T) {
	setupEnv(t)
	t.Setenv(passwordEnv, "Env!Passw0rd")

	var out bytes.Buffer
	require.NoError(t, run([]string{"create-admin", "-email", "env@example.com", "-first", "Env", "-last", "Admin"}, strings.NewReader(""), &out))
	require.Contains(t, out.String(), "env@example.com")
}

func TestCreateAdminRejects(t *testing.T) {
	setupEnv(t)

	tests := []struct {
		name  string
		args  []string
		stdin string
		want  string
	}{
		{name: "no command", args: nil, want: "usage"},
		{name: "unknown command", args: []string{"drop-tables"}, want: "unknown command"},
		{name: "missing flags", args: []string{"create-admin", "-email", "a@example.com"}, stdin: "Adm1n!Secret\n", want: "required"},
		{name: "no password", args: []string{"create-admin", "-email", "a@example.com", "-first", "Ab", "-last", "Cd"}, want: "no password"},
		{name: "weak password", args: []string{"create-admin", "-email", "a@example.com", "-first", "Ab", "-last", "Cd"}, stdin: "short\n", want: "weak_credential"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := run(tt.args, strings.NewReader(tt.stdin), io.Discard)
			require.ErrorContains(t, err, tt.want)
		})
	}
}
