package config

import (
	"encoding/base64"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/courtsniper/internal/internaltypes"
	"github.com/example/courtsniper/internal/slots"
)

func setAccounts(t *testing.T, n int) {
	t.Helper()
	for i := 1; i <= n; i++ {
		n := strconv.Itoa(i)
		t.Setenv("CR_EMAIL_"+n, "user"+n+"@example.com")
		t.Setenv("CR_PASSWORD_"+n, "pw")
	}
}

func TestFromEnvDefaults(t *testing.T) {
	setAccounts(t, 3)
	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, "sunnyvale", cfg.Venue)
	assert.Equal(t, 10*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, 30*24*time.Hour, cfg.CookieMaxAge)
	require.Len(t, cfg.Accounts, 3)
	assert.Equal(t, "user2@example.com", cfg.Accounts[1].Email)
	assert.Nil(t, cfg.CookieSecret)

	accts, err := cfg.BookingAccounts()
	require.NoError(t, err)
	assert.Len(t, accts, 3)

	cfg.SingleShot = true
	accts, err = cfg.BookingAccounts()
	require.NoError(t, err)
	require.Len(t, accts, 1)
	assert.Equal(t, "user1@example.com", accts[0].Email)
}

func TestFromEnvValues(t *testing.T) {
	secret := []byte("0123456789abcdef0123456789abcdef")
	t.Setenv("COOKIE_SECRET", base64.StdEncoding.EncodeToString(secret))
	t.Setenv("HTTP_TIMEOUT", "4")
	t.Setenv("COOKIE_MAX_AGE", "2h")
	t.Setenv("CR_DURATION", "90")
	t.Setenv("CR_COURT_ID", "7")
	t.Setenv("CR_SINGLE_SHOT", "1")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, secret, cfg.CookieSecret)
	assert.Equal(t, 4*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, 2*time.Hour, cfg.CookieMaxAge)
	assert.Equal(t, 90, cfg.Duration)
	assert.Equal(t, 7, cfg.CourtID)
	assert.True(t, cfg.SingleShot)

	_, err = cfg.BookingAccounts()
	assert.Error(t, err)
}

func TestCookieSecretFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "secret")
	require.NoError(t, os.WriteFile(path, []byte(base64.StdEncoding.EncodeToString([]byte("file-secret-value"))+"\n"), 0o600))
	t.Setenv("COOKIE_SECRET", path)

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, []byte("file-secret-value"), cfg.CookieSecret)
}

func TestFromEnvRejects(t *testing.T) {
	t.Setenv("CR_DURATION", "ninety")
	t.Setenv("NTFY_TOPIC", "courts")
	cfg, err := FromEnv()
	var fe *internaltypes.FormatError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, "CR_DURATION", fe.Field)
	assert.Equal(t, "courts", cfg.NtfyTopic, "notification settings survive a rejected config")

	t.Setenv("CR_DURATION", "")
	t.Setenv("CR_EMAIL_1", "a@example.com")
	_, err = FromEnv()
	assert.ErrorContains(t, err, "CR_PASSWORD_1")
}

func TestTarget(t *testing.T) {
	cfg := Config{Date: "2025-10-09", StartTime: "18:00"}
	tg, err := cfg.Target()
	require.NoError(t, err)
	assert.Equal(t, slots.Clock(18, 0), tg.Start)
	assert.Equal(t, []slots.TimeOfDay{
		slots.Clock(18, 0), slots.Clock(18, 30), slots.Clock(17, 30),
		slots.Clock(19, 0), slots.Clock(17, 0),
	}, tg.Slots)
	assert.Equal(t, []int{120, 90, 60, 30}, tg.Durations)
	assert.Equal(t, time.October, tg.Date.Month())

	cfg.Duration = 60
	cfg.CourtID = 4
	tg, err = cfg.Target()
	require.NoError(t, err)
	assert.Equal(t, []int{60}, tg.Durations)
	assert.Equal(t, 4, tg.PinnedCourt)

	for _, bad := range []Config{
		{StartTime: "18:00"},
		{Date: "10/09/2025", StartTime: "18:00"},
		{Date: "2025-10-09", StartTime: "6pm"},
		{Date: "2025-10-09", StartTime: "18:00", Duration: 45},
	} {
		_, err := bad.Target()
		var fe *internaltypes.FormatError
		assert.True(t, errors.As(err, &fe), "%+v", bad)
	}
}

func TestProfileOverrides(t *testing.T) {
	cfg := Config{Venue: "santa-clara", OrgID: "4242"}
	p, err := cfg.Profile()
	require.NoError(t, err)
	assert.Equal(t, "4242", p.OrgID)
	assert.Equal(t, "16994", p.SchedulerID)

	_, err = Config{Venue: "nowhere"}.Profile()
	assert.ErrorContains(t, err, "unknown venue")
}
