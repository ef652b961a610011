package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		apiURL, apiToken, resetRemote, keepUsage = "", "", false, false
	})
	err := rootCmd.Execute()
	return out.String(), err
}

func TestQuotaCmd(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		assert.Equal(t, "/api/check-unlock-limit", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"plan":"pro","limit":200,"used":150,"remaining":50,"permitted":true,"period_start":"2026-10-01T00:00:00Z"}`))
	}))
	defer srv.Close()

	out, err := execute(t, "quota", "--api-url", srv.URL, "--token", "employer-jwt")
	require.NoError(t, err)

	assert.Equal(t, "Bearer employer-jwt", gotAuth)
	var snap map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &snap))
	assert.Equal(t, "pro", snap["plan"])
	assert.EqualValues(t, 50, snap["remaining"])
}

func TestQuotaCmd_RequiresAPIURL(t *testing.T) {
	_, err := execute(t, "quota", "--api-url", "", "--token", "x")
	assert.ErrorContains(t, err, "--api-url")
}

func TestResetCmd_Remote(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer cron-secret", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"reset_count":3,"reset_at":"2026-11-01T00:00:05Z"}`))
	}))
	defer srv.Close()

	out, err := execute(t, "reset-monthly-counts", "--remote", "--api-url", srv.URL, "--token", "cron-secret")
	require.NoError(t, err)
	assert.Equal(t, "reset 3 accounts at 2026-11-01T00:00:05Z\n", out)
}

func TestSetPlanCmd_ValidatesArguments(t *testing.T) {
	_, err := execute(t, "set-plan", "not-a-uuid", "pro")
	assert.ErrorContains(t, err, "invalid account id")

	_, err = execute(t, "set-plan", "0b5e6f9c-3c39-4f0e-9d0c-0a4b5f0f7f11", "platinum")
	assert.ErrorContains(t, err, "unknown plan")
}

func TestAnalyzeCmd_RejectsBadCandidateID(t *testing.T) {
	_, err := execute(t, "analyze", "abc", "--api-url", "http://localhost", "--token", "t")
	assert.ErrorContains(t, err, "invalid candidate id")
}

func TestMigrateCmd_RejectsUnknownDirection(t *testing.T) {
	_, err := execute(t, "migrate", "sideways")
	assert.ErrorContains(t, err, "unknown migrate direction")
}
