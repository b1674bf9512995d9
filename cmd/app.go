package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/example/courtsniper/internal/config"
	"github.com/example/courtsniper/internal/cookiestore"
	"github.com/example/courtsniper/internal/logging"
	"github.com/example/courtsniper/internal/notify"
	"github.com/example/courtsniper/internal/session"
	"github.com/example/courtsniper/internal/venue"
)

// targetFlags override the booking inputs read from the environment.
type targetFlags struct {
	venue      string
	date       string
	start      string
	duration   int
	court      int
	singleShot bool
}

func (f *targetFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.venue, "venue", "", "venue profile name (CR_VENUE)")
	cmd.Flags().StringVar(&f.date, "date", "", "target date YYYY-MM-DD (CR_DATE)")
	cmd.Flags().StringVar(&f.start, "start", "", "preferred start time HH:MM (CR_START_TIME)")
	cmd.Flags().IntVar(&f.duration, "duration", 0, "only book this many minutes (CR_DURATION)")
	cmd.Flags().IntVar(&f.court, "court", 0, "only book this court id (CR_COURT_ID)")
	cmd.Flags().BoolVar(&f.singleShot, "single-shot", false, "poll once with the first account and exit (CR_SINGLE_SHOT)")
}

func (f *targetFlags) apply(cmd *cobra.Command, cfg *config.Config) {
	fs := cmd.Flags()
	if fs.Changed("venue") {
		cfg.Venue = f.venue
	}
	if fs.Changed("date") {
		cfg.Date = f.date
	}
	if fs.Changed("start") {
		cfg.StartTime = f.start
	}
	if fs.Changed("duration") {
		cfg.Duration = f.duration
	}
	if fs.Changed("court") {
		cfg.CourtID = f.court
	}
	if fs.Changed("single-shot") {
		cfg.SingleShot = f.singleShot
	}
}

// app holds what every command builds from the configuration.
type app struct {
	cfg     config.Config
	cfgErr  error
	log     *zap.Logger
	venue   venue.Profile
	target  config.Target
	creds   []session.Credentials
	cookies cookiestore.Store
	sink    notify.Notifier
	closers []func() error
}

// newApp reads the configuration and builds the logger. A bad
// configuration is kept for prepare to report, so that it can still be
// sent as a notification.
func newApp(cmd *cobra.Command, f *targetFlags) *app {
	cfg, cfgErr := config.FromEnv()
	if f != nil {
		f.apply(cmd, &cfg)
	}
	log, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		cfgErr = errors.Join(cfgErr, err)
		log, _ = logging.New("info", cfg.LogFormat)
	}
	a := &app{cfg: cfg, cfgErr: cfgErr, log: log}
	a.closers = append(a.closers, func() error { _ = log.Sync(); return nil })
	return a
}

// prepare resolves the venue, validates the booking target when asked,
// then opens the cookie store. Input errors surface before any network
// I/O.
func (a *app) prepare(ctx context.Context, withTarget bool) error {
	if a.cfgErr != nil {
		return a.cfgErr
	}
	var err error
	if a.venue, err = a.cfg.Profile(); err != nil {
		return err
	}
	if withTarget {
		if a.target, err = a.cfg.Target(); err != nil {
			return err
		}
		if a.creds, err = a.cfg.BookingAccounts(); err != nil {
			return err
		}
	}
	return a.openCookies(ctx)
}

// openCookies picks Redis when REDIS_URL is set and the sealed file store
// otherwise. Both need COOKIE_SECRET.
func (a *app) openCookies(ctx context.Context) error {
	if len(a.cfg.CookieSecret) == 0 {
		return errors.New("COOKIE_SECRET is required to save sessions (generate one with `courtsniper keys`)")
	}
	codec, err := cookiestore.NewCodec(a.cfg.CookieSecret, a.cfg.CookieMaxAge)
	if err != nil {
		return fmt.Errorf("COOKIE_SECRET: %w", err)
	}
	if a.cfg.RedisURL != "" {
		client, err := cookiestore.OpenRedis(ctx, a.cfg.RedisURL)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, client.Close)
		a.cookies = cookiestore.NewRedisStore(client, codec, a.cfg.CookieMaxAge)
		a.log.Debug("cookie store", zap.String("kind", "redis"))
		return nil
	}
	fs, err := cookiestore.NewFileStore(a.cfg.CookieDir, codec)
	if err != nil {
		return err
	}
	a.cookies = fs
	a.log.Debug("cookie store", zap.String("kind", "file"), zap.String("dir", a.cfg.CookieDir))
	return nil
}

func (a *app) accounts(creds []session.Credentials) []*session.Account {
	out := make([]*session.Account, len(creds))
	for i, c := range creds {
		out[i] = session.NewAccount(c, a.venue, a.cookies, a.cfg.HTTPTimeout, a.log)
	}
	return out
}

// loginAll logs every account in at once and returns the ones that made
// it, in their original order.
func (a *app) loginAll(ctx context.Context, accts []*session.Account) ([]*session.Account, []error) {
	errs := make([]error, len(accts))
	var g errgroup.Group
	for i, acct := range accts {
		i, acct := i, acct
		g.Go(func() error {
			_, errs[i] = acct.EnsureLoggedIn(ctx)
			return nil
		})
	}
	_ = g.Wait()

	var ok []*session.Account
	for i, acct := range accts {
		if errs[i] != nil {
			a.log.Error("login failed, dropping account", zap.String("actor", acct.Email()), zap.Error(errs[i]))
			continue
		}
		ok = append(ok, acct)
	}
	return ok, errs
}

// notifier fans out to ntfy and AMQP when configured. Sends happen in the
// background.
func (a *app) notifier() notify.Notifier {
	if a.sink == nil {
		a.sink = a.newNotifier()
	}
	return a.sink
}

func (a *app) newNotifier() notify.Notifier {
	var sinks notify.Multi
	if a.cfg.NtfyTopic != "" {
		sinks = append(sinks, notify.NewNtfy(a.cfg.NtfyURL, a.cfg.NtfyTopic))
	}
	if a.cfg.AMQPURL != "" {
		pub, err := notify.NewAMQP(a.cfg.AMQPURL, a.log)
		if err != nil {
			a.log.Warn("amqp notifications disabled", zap.Error(err))
		} else {
			sinks = append(sinks, pub)
		}
	}
	if len(sinks) == 0 {
		return notify.Noop{}
	}
	d := notify.NewDispatcher(sinks, a.log)
	a.closers = append(a.closers, d.Close)
	return d
}

// fatal reports err to the notification sinks and waits for delivery.
// It returns err so callers can end the command with it.
func (a *app) fatal(err error) error {
	name := a.venue.Name
	if name == "" {
		name = a.cfg.Venue
	}
	a.log.Error("stopping", zap.String("venue", name), zap.Error(err))
	n := a.notifier()
	_ = n.Notify(context.Background(), notify.Event{Kind: notify.Fatal, Venue: name, Message: "CourtReserve bot stopped: " + err.Error()})
	if cerr := n.Close(); cerr != nil {
		a.log.Debug("close notifier", zap.Error(cerr))
	}
	return err
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && a.log != nil {
			a.log.Debug("close", zap.Error(err))
		}
	}
}
