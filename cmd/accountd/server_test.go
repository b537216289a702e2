package main

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/goliatone/go-account"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func testOptions() *account.Options {
	opts := account.DefaultOptions()
	opts.StoreDSN = "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	opts.BcryptCost = bcrypt.MinCost
	opts.SigningKey = "server-test-secret"
	return opts
}

func TestServerRegistersRoutesAndMetrics(t *testing.T) {
	srv, err := newServer(context.Background(), testOptions(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	defer srv.Close(context.Background())

	req := httptest.NewRequest(http.MethodPost, "/api/v0.1/users",
		strings.NewReader(`{"email":"a@x.com","username":"a","password":"p1"}`))
	req.Header.Set("Content-Type", "application/json")

	res, err := srv.app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, res.StatusCode)

	res, err = srv.app.Test(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, res.StatusCode)

	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `account_activity_events_total{event="user.registered"} 1`)
}

func TestServerRejectsBadBearerBeforeBody(t *testing.T) {
	srv, err := newServer(context.Background(), testOptions(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	defer srv.Close(context.Background())

	req := httptest.NewRequest(http.MethodPatch, "/api/v0.1/users/me", strings.NewReader(`{"username":" "}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer not-a-token")

	res, err := srv.app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)

	res, err = srv.app.Test(httptest.NewRequest(http.MethodGet, "/api/v0.1/unknown", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
}

func TestServerFailsWithInvalidSigningMethod(t *testing.T) {
	opts := testOptions()
	opts.SigningMethod = "RS256"

	_, err := newServer(context.Background(), opts, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.Error(t, err)
}

func TestRootCmdRejectsInvalidConfig(t *testing.T) {
	cmd := NewRootCmd()
	cmd.SetArgs([]string{"--signing-method", "none", "--store-dsn", "file::memory:"})
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)

	err := cmd.Execute()
	require.Error(t, err)
	assert.True(t, account.IsValidationError(err))
}

func TestMigrateCmd(t *testing.T) {
	cmd := NewRootCmd()
	var out strings.Builder
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs([]string{"migrate", "--store-dsn", "file:" + uuid.NewString() + "?mode=memory&cache=shared"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "applied 20250101000000")
	assert.Contains(t, out.String(), "migrations applied")
}
