package config

import (
	"encoding/base64"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/example/courtsniper/internal/internaltypes"
	"github.com/example/courtsniper/internal/session"
	"github.com/example/courtsniper/internal/slots"
	"github.com/example/courtsniper/internal/venue"
)

type Config struct {
	Venue      string
	VenuesFile string

	// identifier overrides applied on top of the venue profile
	OrgID             string
	SchedulerID       string
	ReservationTypeID string

	// booking target
	Date       string
	StartTime  string
	Duration   int
	CourtID    int
	SingleShot bool

	Accounts []session.Credentials

	CookieDir    string
	CookieSecret []byte
	CookieMaxAge time.Duration
	RedisURL     string

	NtfyURL    string
	NtfyTopic  string
	AMQPURL    string
	HistoryDSN string
	StatusAddr string

	HTTPTimeout time.Duration
	LogLevel    string
	LogFormat   string
}

// FromEnv reads the configuration from the environment, after loading a
// .env file from the working directory when one exists. On error the
// returned Config still carries the logging and notification settings so
// the caller can report the failure.
func FromEnv() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Venue:             getenv("CR_VENUE", "sunnyvale"),
		VenuesFile:        os.Getenv("CR_VENUES_FILE"),
		OrgID:             os.Getenv("CR_ORG_ID"),
		SchedulerID:       os.Getenv("CR_SCHEDULER_ID"),
		ReservationTypeID: os.Getenv("CR_RESERVATION_TYPE_ID"),
		Date:              os.Getenv("CR_DATE"),
		StartTime:         os.Getenv("CR_START_TIME"),
		SingleShot:        os.Getenv("CR_SINGLE_SHOT") == "1",
		CookieDir:         getenv("CR_COOKIE_DIR", ".courtsniper/cookies"),
		RedisURL:          os.Getenv("REDIS_URL"),
		NtfyURL:           getenv("NTFY_URL", "https://ntfy.sh"),
		NtfyTopic:         os.Getenv("NTFY_TOPIC"),
		AMQPURL:           os.Getenv("AMQP_URL"),
		HistoryDSN:        os.Getenv("HISTORY_DSN"),
		StatusAddr:        os.Getenv("STATUS_ADDR"),
		LogLevel:          getenv("LOG_LEVEL", "info"),
		LogFormat:         getenv("LOG_FORMAT", "console"),
	}

	var err error
	if cfg.Duration, err = atoi("CR_DURATION"); err != nil {
		return cfg, err
	}
	if cfg.CourtID, err = atoi("CR_COURT_ID"); err != nil {
		return cfg, err
	}
	if cfg.HTTPTimeout, err = duration("HTTP_TIMEOUT", 10*time.Second); err != nil {
		return cfg, err
	}
	if cfg.CookieMaxAge, err = duration("COOKIE_MAX_AGE", 30*24*time.Hour); err != nil {
		return cfg, err
	}

	if s := os.Getenv("COOKIE_SECRET"); s != "" {
		cfg.CookieSecret, err = decodeB64(s)
		if err != nil {
			return cfg, fmt.Errorf("COOKIE_SECRET: %w", err)
		}
	}

	if cfg.Accounts, err = accounts(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// accounts collects CR_EMAIL_n / CR_PASSWORD_n pairs for n = 1, 2, ...
// up to the first missing email.
func accounts() ([]session.Credentials, error) {
	var out []session.Credentials
	for i := 1; ; i++ {
		email := strings.TrimSpace(os.Getenv(fmt.Sprintf("CR_EMAIL_%d", i)))
		if email == "" {
			return out, nil
		}
		pw := os.Getenv(fmt.Sprintf("CR_PASSWORD_%d", i))
		if pw == "" {
			return nil, fmt.Errorf("account %d: CR_PASSWORD_%d is required", i, i)
		}
		out = append(out, session.Credentials{Email: email, Password: pw})
	}
}

// Profile resolves the configured venue and applies identifier overrides.
func (c Config) Profile() (venue.Profile, error) {
	p, err := venue.Resolve(c.Venue, c.VenuesFile)
	if err != nil {
		return venue.Profile{}, err
	}
	if c.OrgID != "" {
		p.OrgID = c.OrgID
	}
	if c.SchedulerID != "" {
		p.SchedulerID = c.SchedulerID
	}
	if c.ReservationTypeID != "" {
		p.ReservationTypeID = c.ReservationTypeID
	}
	return p, p.Validate()
}

// Target is the validated booking request.
type Target struct {
	Date        time.Time
	Start       slots.TimeOfDay
	Slots       []slots.TimeOfDay
	Durations   []int
	PinnedCourt int
}

// Target validates the booking inputs. Every failure is a
// *internaltypes.FormatError so it is reported before any network call.
func (c Config) Target() (Target, error) {
	if c.Date == "" {
		return Target{}, &internaltypes.FormatError{Field: "CR_DATE", Value: ""}
	}
	if c.StartTime == "" {
		return Target{}, &internaltypes.FormatError{Field: "CR_START_TIME", Value: ""}
	}
	date, err := slots.ParseDate(c.Date, time.UTC)
	if err != nil {
		return Target{}, err
	}
	ss, err := slots.GenerateTimeSlots(c.StartTime)
	if err != nil {
		return Target{}, err
	}
	ds, err := slots.Durations(c.Duration)
	if err != nil {
		return Target{}, err
	}
	if c.CourtID < 0 {
		return Target{}, &internaltypes.FormatError{Field: "CR_COURT_ID", Value: strconv.Itoa(c.CourtID)}
	}
	return Target{Date: date, Start: ss[0], Slots: ss, Durations: ds, PinnedCourt: c.CourtID}, nil
}

// BookingAccounts is the account list the run uses: only the first one
// in single-shot mode.
func (c Config) BookingAccounts() ([]session.Credentials, error) {
	if len(c.Accounts) == 0 {
		return nil, fmt.Errorf("no accounts configured: set CR_EMAIL_1 and CR_PASSWORD_1")
	}
	if c.SingleShot {
		return c.Accounts[:1], nil
	}
	return c.Accounts, nil
}

func decodeB64(s string) ([]byte, error) {
	b, err := os.ReadFile(s)
	if err == nil {
		// allow pointing to file path for k8s secret mounts
		s = string(b)
	}
	return base64.StdEncoding.DecodeString(strings.TrimSpace(s))
}

func getenv(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}

func atoi(k string) (int, error) {
	v := os.Getenv(k)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, &internaltypes.FormatError{Field: k, Value: v}
	}
	return n, nil
}

// duration accepts Go duration strings or a bare number of seconds.
func duration(k string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(k)
	if v == "" {
		return def, nil
	}
	if n, err := strconv.Atoi(v); err == nil && n > 0 {
		return time.Duration(n) * time.Second, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return 0, &internaltypes.FormatError{Field: k, Value: v}
	}
	return d, nil
}
