// Package cookiestore persists per-account CourtReserve cookie jars between
// runs. Jars are sealed with securecookie before they touch disk or Redis.
package cookiestore

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/securecookie"
	"golang.org/x/crypto/hkdf"

	"github.com/example/courtsniper/internal/internaltypes"
)

// ErrNotFound is returned by Load when no jar has been saved for a key.
var ErrNotFound = internaltypes.ErrNotFound

// Cookie is one cookie as seen for a given site URL.
type Cookie struct {
	URL   string `json:"url"`
	Name  string `json:"name"`
	Value string `json:"value"`
}

type Store interface {
	Load(ctx context.Context, key string) ([]Cookie, error)
	Save(ctx context.Context, key string, cookies []Cookie) error
	Delete(ctx context.Context, key string) error
}

const codecName = "courtsniper_jar"

// Codec seals cookie jars.
type Codec struct {
	sc *securecookie.SecureCookie
}

// NewCodec derives independent hash and block keys from secret.
func NewCodec(secret []byte, maxAge time.Duration) (*Codec, error) {
	if len(secret) < 16 {
		return nil, errors.New("cookie secret must be at least 16 bytes")
	}
	kdf := hkdf.New(sha256.New, secret, nil, []byte("courtsniper cookie jar"))
	hashKey := make([]byte, 32)
	blockKey := make([]byte, 32)
	if _, err := io.ReadFull(kdf, hashKey); err != nil {
		return nil, err
	}
	if _, err := io.ReadFull(kdf, blockKey); err != nil {
		return nil, err
	}
	sc := securecookie.New(hashKey, blockKey)
	sc.SetSerializer(securecookie.JSONEncoder{})
	// jars easily exceed the 4k browser limit
	sc.MaxLength(0)
	sc.MaxAge(int(maxAge.Seconds()))
	return &Codec{sc: sc}, nil
}

func (c *Codec) Encode(cookies []Cookie) (string, error) {
	return c.sc.Encode(codecName, cookies)
}

func (c *Codec) Decode(s string) ([]Cookie, error) {
	var out []Cookie
	if err := c.sc.Decode(codecName, s, &out); err != nil {
		return nil, fmt.Errorf("decode jar: %w", err)
	}
	return out, nil
}

// Snapshot reads the cookies a jar would send to each of sites.
func Snapshot(jar http.CookieJar, sites []string) []Cookie {
	var out []Cookie
	seen := map[string]bool{}
	for _, s := range sites {
		if seen[s] {
			continue
		}
		seen[s] = true
		u, err := url.Parse(s)
		if err != nil {
			continue
		}
		for _, c := range jar.Cookies(u) {
			out = append(out, Cookie{URL: s, Name: c.Name, Value: c.Value})
		}
	}
	return out
}

// Restore puts saved cookies back into jar.
func Restore(jar http.CookieJar, cookies []Cookie) {
	bySite := map[string][]*http.Cookie{}
	var order []string
	for _, c := range cookies {
		if _, ok := bySite[c.URL]; !ok {
			order = append(order, c.URL)
		}
		bySite[c.URL] = append(bySite[c.URL], &http.Cookie{Name: c.Name, Value: c.Value, Path: "/"})
	}
	for _, s := range order {
		u, err := url.Parse(s)
		if err != nil {
			continue
		}
		jar.SetCookies(u, bySite[s])
	}
}
