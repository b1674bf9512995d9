package cookiestore

import (
	"context"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var secret = []byte("0123456789abcdef0123456789abcdef")

func newCodec(t *testing.T) *Codec {
	t.Helper()
	c, err := NewCodec(secret, 24*time.Hour)
	require.NoError(t, err)
	return c
}

func TestCodecRejectsShortSecret(t *testing.T) {
	_, err := NewCodec([]byte("short"), time.Hour)
	assert.Error(t, err)
}

func TestCodecRoundTrip(t *testing.T) {
	c := newCodec(t)
	in := []Cookie{{URL: "https://app.courtreserve.com", Name: "a", Value: "1"}}
	enc, err := c.Encode(in)
	require.NoError(t, err)
	assert.NotContains(t, enc, "app.courtreserve.com")

	out, err := c.Decode(enc)
	require.NoError(t, err)
	assert.Equal(t, in, out)

	other, err := NewCodec([]byte("fedcba9876543210fedcba9876543210"), time.Hour)
	require.NoError(t, err)
	_, err = other.Decode(enc)
	assert.Error(t, err)
}

func TestFileStore(t *testing.T) {
	ctx := context.Background()
	s, err := NewFileStore(t.TempDir(), newCodec(t))
	require.NoError(t, err)

	_, err = s.Load(ctx, "a@example.com")
	assert.ErrorIs(t, err, ErrNotFound)

	in := []Cookie{{URL: "https://app.courtreserve.com", Name: "sid", Value: "xyz"}}
	require.NoError(t, s.Save(ctx, "a@example.com", in))

	out, err := s.Load(ctx, "a@example.com")
	require.NoError(t, err)
	assert.Equal(t, in, out)

	require.NoError(t, s.Delete(ctx, "a@example.com"))
	require.NoError(t, s.Delete(ctx, "a@example.com"))
	_, err = s.Load(ctx, "a@example.com")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.Save(ctx, "k", []Cookie{{Name: "n"}}))
	got, err := s.Load(ctx, "k")
	require.NoError(t, err)
	assert.Len(t, got, 1)
	require.NoError(t, s.Delete(ctx, "k"))
	_, err = s.Load(ctx, "k")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSnapshotRestore(t *testing.T) {
	site := "https://app.courtreserve.com"
	u, _ := url.Parse(site)

	jar, _ := cookiejar.New(nil)
	jar.SetCookies(u, []*http.Cookie{{Name: "sid", Value: "abc", Path: "/"}, {Name: "csrf", Value: "t", Path: "/"}})

	snap := Snapshot(jar, []string{site, "https://reservations.courtreserve.com"})
	assert.Len(t, snap, 2)

	fresh, _ := cookiejar.New(nil)
	Restore(fresh, snap)
	got := map[string]string{}
	for _, c := range fresh.Cookies(u) {
		got[c.Name] = c.Value
	}
	assert.Equal(t, map[string]string{"sid": "abc", "csrf": "t"}, got)
}

func TestRedisStore(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_URL")
	if addr == "" {
		t.Skip("TEST_REDIS_URL not set")
	}
	ctx := context.Background()
	client, err := OpenRedis(ctx, addr)
	require.NoError(t, err)
	defer client.Close()

	s := NewRedisStore(client, newCodec(t), time.Minute)
	key := "test-" + time.Now().Format("150405.000")
	in := []Cookie{{URL: "https://app.courtreserve.com", Name: "sid", Value: "1"}}
	require.NoError(t, s.Save(ctx, key, in))
	out, err := s.Load(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, in, out)
	require.NoError(t, s.Delete(ctx, key))
	_, err = s.Load(ctx, key)
	assert.ErrorIs(t, err, ErrNotFound)
}
