package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spousedetails/internal/auth"
	"spousedetails/internal/config"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--config", filepath.Join(t.TempDir(), "config.yaml")}, args...))
	err := root.Execute()
	return out.String(), err
}

func TestICSCommand(t *testing.T) {
	dir := t.TempDir()
	out, err := execute(t, "ics", "--title", "Anniversary", "--date", "2024-09-22", "--notes", "Dinner", "--out", dir)
	require.NoError(t, err, out)

	path := filepath.Join(dir, "Anniversary.ics")
	assert.Contains(t, out, path)

	body, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(body), "BEGIN:VCALENDAR\r\n"))
	assert.Contains(t, string(body), "DTSTART;VALUE=DATE:20240922\r\n")
	assert.Contains(t, string(body), "DESCRIPTION:Dinner\r\n")
}

func TestICSCommand_Strict(t *testing.T) {
	_, err := execute(t, "ics", "--title", "Party", "--date", "someday", "--out", t.TempDir(), "--strict")
	assert.Error(t, err)
}

func TestICSCommand_EmptyTitle(t *testing.T) {
	dir := t.TempDir()
	out, err := execute(t, "ics", "--date", "2024-09-22", "--out", dir)
	require.NoError(t, err, out)

	body, err := os.ReadFile(filepath.Join(dir, ".ics"))
	require.NoError(t, err)
	assert.Contains(t, string(body), "\r\nSUMMARY:\r\n")
	assert.Contains(t, string(body), "DESCRIPTION:Reminder from Spouse Details App\r\n")
}

func TestTokenCommand(t *testing.T) {
	t.Setenv("SPOUSEDETAILS_AUTH_MODE", "jwt")
	t.Setenv("SPOUSEDETAILS_JWT_SECRET", "cli-secret")

	out, err := execute(t, "token", "--user", "user-42", "--email", "a@example.com")
	require.NoError(t, err, out)

	v, err := auth.NewJWTVerifier("cli-secret", "", "")
	require.NoError(t, err)
	id, err := v.Verify(context.Background(), strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, "user-42", id.ID)
	assert.Equal(t, "a@example.com", id.Email)

	_, err = execute(t, "token")
	assert.Error(t, err)
}

func TestBuildVerifier(t *testing.T) {
	conf := config.DefaultConfig()
	conf.Auth.JWTSecret = "s"
	v, err := buildVerifier(conf)
	require.NoError(t, err)
	assert.IsType(t, &auth.JWTVerifier{}, v)

	conf.Auth.Mode = config.AuthModeRemote
	conf.Auth.ServiceURL = "http://127.0.0.1:1"
	conf.Auth.ServiceKey = "anon"
	v, err = buildVerifier(conf)
	require.NoError(t, err)
	assert.IsType(t, &auth.RemoteVerifier{}, v)
}

func TestRunServe_RejectsInvalidConfig(t *testing.T) {
	conf := config.DefaultConfig()
	conf.Auth.JWTSecret = ""
	assert.Error(t, runServe(context.Background(), conf))
}
