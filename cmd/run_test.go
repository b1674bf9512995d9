package cmd

import (
	"bytes"
	"context"
	"encoding/base64"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/example/courtsniper/internal/config"
	"github.com/example/courtsniper/internal/courtreserve/crtest"
	"github.com/example/courtsniper/internal/internaltypes"
	"github.com/example/courtsniper/internal/session"
	"github.com/example/courtsniper/internal/venue"
)

type ntfyMessage struct {
	tags, body string
}

// testEnv points the whole environment at a fake portal and an ntfy sink,
// and configures accts as CR_EMAIL_n / CR_PASSWORD_n.
func testEnv(t *testing.T, accts ...session.Credentials) (*crtest.Server, func() []ntfyMessage) {
	t.Helper()
	portal := crtest.New()
	t.Cleanup(portal.Close)

	var mu sync.Mutex
	var got []ntfyMessage
	sink := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		mu.Lock()
		got = append(got, ntfyMessage{tags: r.Header.Get("Tags"), body: string(b)})
		mu.Unlock()
	}))
	t.Cleanup(sink.Close)

	doc, err := yaml.Marshal(map[string][]venue.Profile{"venues": {portal.Profile(venue.PerWindow)}})
	require.NoError(t, err)
	venues := filepath.Join(t.TempDir(), "venues.yaml")
	require.NoError(t, os.WriteFile(venues, doc, 0o600))

	for k, v := range map[string]string{
		"CR_VENUE":               "test-venue",
		"CR_VENUES_FILE":         venues,
		"CR_ORG_ID":              "",
		"CR_SCHEDULER_ID":        "",
		"CR_RESERVATION_TYPE_ID": "",
		"CR_DATE":                "2025-10-16",
		"CR_START_TIME":          "18:00",
		"CR_DURATION":            "",
		"CR_COURT_ID":            "",
		"CR_SINGLE_SHOT":         "",
		"CR_COOKIE_DIR":          t.TempDir(),
		"COOKIE_SECRET":          base64.StdEncoding.EncodeToString(bytes.Repeat([]byte{7}, 32)),
		"COOKIE_MAX_AGE":         "",
		"REDIS_URL":              "",
		"NTFY_URL":               sink.URL,
		"NTFY_TOPIC":             "courts",
		"AMQP_URL":               "",
		"HISTORY_DSN":            "",
		"STATUS_ADDR":            "",
		"HTTP_TIMEOUT":           "",
		"LOG_LEVEL":              "error",
		"LOG_FORMAT":             "json",
	} {
		t.Setenv(k, v)
	}
	for i, c := range accts {
		n := strconv.Itoa(i + 1)
		t.Setenv("CR_EMAIL_"+n, c.Email)
		t.Setenv("CR_PASSWORD_"+n, c.Password)
	}
	t.Setenv("CR_EMAIL_"+strconv.Itoa(len(accts)+1), "")

	return portal, func() []ntfyMessage {
		mu.Lock()
		defer mu.Unlock()
		return append([]ntfyMessage(nil), got...)
	}
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

var (
	alice = session.Credentials{Email: "alice@example.com", Password: "pw"}
	bob   = session.Credentials{Email: "bob@example.com", Password: "pw"}
)

func TestRunBadConfigNotifiesWithoutNetwork(t *testing.T) {
	for name, tc := range map[string]struct {
		key, value string
		want       string
	}{
		"start time":  {key: "CR_START_TIME", value: "25:99", want: `"25:99"`},
		"date":        {key: "CR_DATE", value: "2025-13-40", want: "2025-13-40"},
		"duration":    {key: "CR_DURATION", value: "ninety", want: "CR_DURATION"},
		"no accounts": {key: "CR_EMAIL_1", value: "", want: "no accounts configured"},
		"venue":       {key: "CR_VENUE", value: "atlantis", want: `unknown venue "atlantis"`},
	} {
		t.Run(name, func(t *testing.T) {
			portal, sent := testEnv(t, alice)
			portal.AddUser(alice.Email, alice.Password)
			t.Setenv(tc.key, tc.value)
			// would fail differently if the cookie store were opened
			t.Setenv("REDIS_URL", "redis://127.0.0.1:1/0")

			_, err := execute(t, "run", "--single-shot")
			require.Error(t, err)
			assert.ErrorContains(t, err, tc.want)

			msgs := sent()
			require.Len(t, msgs, 1)
			assert.Equal(t, "x", msgs[0].tags)
			assert.Contains(t, msgs[0].body, tc.want)

			assert.Zero(t, portal.Pings.Load())
			assert.Zero(t, portal.Logins.Load())
		})
	}
}

func TestRunBadTimeIsFormatError(t *testing.T) {
	testEnv(t, alice)
	t.Setenv("CR_START_TIME", "6pm")

	_, err := execute(t, "run")
	var fe *internaltypes.FormatError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "6pm", fe.Value)
}

func TestRunEveryLoginFails(t *testing.T) {
	portal, sent := testEnv(t, alice, bob)

	_, err := execute(t, "run")
	require.Error(t, err)
	assert.ErrorContains(t, err, "every account failed to log in")
	assert.Equal(t, int32(2), portal.Logins.Load())
	assert.Empty(t, portal.Submitted())

	msgs := sent()
	require.Len(t, msgs, 1)
	assert.Equal(t, "x", msgs[0].tags)
	assert.Contains(t, msgs[0].body, "every account failed to log in")
}

func TestRunSingleShotBooksWithFirstAccount(t *testing.T) {
	portal, sent := testEnv(t, alice, bob)
	portal.AddUser(alice.Email, alice.Password)
	portal.AddUser(bob.Email, bob.Password)
	portal.SetCourts(func(start string, d int) []int {
		if start == "18:00:00" && d <= 90 {
			return []int{5, 7}
		}
		return nil
	})
	t.Setenv("CR_START_TIME", "07:00")

	out, err := execute(t, "run", "--single-shot", "--start", "18:00")
	require.NoError(t, err)
	assert.Contains(t, out, "booked 1 court(s)")

	forms := portal.Submitted()
	require.Len(t, forms, 1)
	assert.Equal(t, alice.Email, forms[0].Get("_user"))
	assert.Equal(t, int32(1), portal.Logins.Load())

	msgs := sent()
	require.Len(t, msgs, 1)
	assert.Equal(t, "white_check_mark", msgs[0].tags)
}

func TestLoginAllDropsFailedAccounts(t *testing.T) {
	portal, _ := testEnv(t, alice, bob)
	portal.AddUser(alice.Email, alice.Password)

	a := newApp(newRunCmd(), nil)
	defer a.close()
	require.NoError(t, a.prepare(context.Background(), true))

	ok, errs := a.loginAll(context.Background(), a.accounts(a.creds))
	require.Len(t, ok, 1)
	assert.Equal(t, alice.Email, ok[0].Email())
	require.Len(t, errs, 2)
	assert.NoError(t, errs[0])
	assert.ErrorIs(t, errs[1], internaltypes.ErrFatalAuth)
}

func TestTargetFlagsOverrideEnvironment(t *testing.T) {
	var f targetFlags
	cmd := &cobra.Command{Use: "run"}
	f.bind(cmd)
	require.NoError(t, cmd.ParseFlags([]string{"--start", "18:30", "--court", "4", "--single-shot"}))

	cfg := config.Config{
		Venue:     "sunnyvale",
		Date:      "2025-10-16",
		StartTime: "07:00",
		CourtID:   2,
		Duration:  60,
		Accounts:  []session.Credentials{alice, bob},
	}
	f.apply(cmd, &cfg)

	assert.Equal(t, "18:30", cfg.StartTime)
	assert.Equal(t, 4, cfg.CourtID)
	assert.Equal(t, "2025-10-16", cfg.Date, "unset flags keep the environment value")
	assert.Equal(t, 60, cfg.Duration)
	assert.True(t, cfg.SingleShot)

	creds, err := cfg.BookingAccounts()
	require.NoError(t, err)
	assert.Equal(t, []session.Credentials{alice}, creds)
}
