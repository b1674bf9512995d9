// Package venue describes the CourtReserve facilities the bot can book at:
// their identifiers, endpoints, probe strategy and polling cadence.
package venue

import (
	"fmt"
	"sort"
	"time"
)

type Strategy string

const (
	// WholeDay reads one consolidated snapshot of the whole day.
	WholeDay Strategy = "whole-day"
	// PerWindow asks for free courts one (start, duration) window at a time.
	PerWindow Strategy = "per-window"
)

type Endpoints struct {
	App          string `yaml:"app"`
	API          string `yaml:"api"`
	Reservations string `yaml:"reservations"`
}

// Cadence controls when the poll loop wakes up.
type Cadence struct {
	Interval time.Duration `yaml:"interval"`
	// PrecisionInterval replaces Interval for local hours in
	// [PrecisionFromHour, PrecisionToHour].
	PrecisionInterval time.Duration `yaml:"precision_interval"`
	PrecisionFromHour int           `yaml:"precision_from_hour"`
	PrecisionToHour   int           `yaml:"precision_to_hour"`
	// BurstAttempts probes are made when a check lands on the top of the hour.
	BurstAttempts  int           `yaml:"burst_attempts"`
	BurstPause     time.Duration `yaml:"burst_pause"`
	SessionRefresh time.Duration `yaml:"session_refresh"`
}

type Profile struct {
	Name              string    `yaml:"name"`
	OrgID             string    `yaml:"org_id"`
	SchedulerID       string    `yaml:"scheduler_id"`
	ReservationTypeID string    `yaml:"reservation_type_id"`
	CostTypeID        string    `yaml:"cost_type_id"`
	CourtType         string    `yaml:"court_type"`
	CourtTypeID       string    `yaml:"court_type_id"`
	TimeZone          string    `yaml:"time_zone"`
	StdOffsetHours    int       `yaml:"std_offset_hours"`
	Strategy          Strategy  `yaml:"strategy"`
	Endpoints         Endpoints `yaml:"endpoints"`
	Cadence           Cadence   `yaml:"cadence"`

	// SubmitCourt sends CourtId and EndTime with the reservation.
	SubmitCourt       bool     `yaml:"submit_court"`
	RequiredFields    []string `yaml:"required_fields"`
	DurationDiscovery bool     `yaml:"duration_discovery"`
	ProbeConcurrency  int      `yaml:"probe_concurrency"`
}

var defaultEndpoints = Endpoints{
	App:          "https://app.courtreserve.com",
	API:          "https://api4.courtreserve.com",
	Reservations: "https://reservations.courtreserve.com",
}

var builtin = map[string]Profile{
	"sunnyvale": {
		Name:              "sunnyvale",
		OrgID:             "13233",
		SchedulerID:       "16984",
		ReservationTypeID: "69707",
		CostTypeID:        "141158",
		CourtType:         "Pickleball",
		TimeZone:          "America/Los_Angeles",
		StdOffsetHours:    -8,
		Strategy:          WholeDay,
		Endpoints:         defaultEndpoints,
		Cadence: Cadence{
			Interval:       5 * time.Minute,
			BurstAttempts:  5,
			BurstPause:     500 * time.Millisecond,
			SessionRefresh: 20 * time.Minute,
		},
		RequiredFields: []string{"__RequestVerificationToken"},
	},
	"santa-clara": {
		Name:              "santa-clara",
		OrgID:             "13234",
		SchedulerID:       "16994",
		ReservationTypeID: "69707",
		CourtType:         "Pickleball",
		CourtTypeID:       "9",
		TimeZone:          "America/Los_Angeles",
		StdOffsetHours:    -8,
		Strategy:          PerWindow,
		Endpoints:         defaultEndpoints,
		Cadence: Cadence{
			Interval:          time.Minute,
			PrecisionInterval: 10 * time.Second,
			PrecisionFromHour: 11,
			PrecisionToHour:   12,
			BurstAttempts:     5,
			BurstPause:        500 * time.Millisecond,
			SessionRefresh:    20 * time.Minute,
		},
		SubmitCourt:       true,
		RequiredFields:    []string{"__RequestVerificationToken", "Id", "OrgId", "Date"},
		DurationDiscovery: true,
	},
}

// Builtin returns a copy of the named built-in profile.
func Builtin(name string) (Profile, bool) {
	p, ok := builtin[name]
	if !ok {
		return Profile{}, false
	}
	p.RequiredFields = append([]string(nil), p.RequiredFields...)
	return p, true
}

func BuiltinNames() []string {
	names := make([]string, 0, len(builtin))
	for n := range builtin {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func (p *Profile) applyDefaults() {
	if p.Endpoints.App == "" {
		p.Endpoints.App = defaultEndpoints.App
	}
	if p.Endpoints.API == "" {
		p.Endpoints.API = defaultEndpoints.API
	}
	if p.Endpoints.Reservations == "" {
		p.Endpoints.Reservations = defaultEndpoints.Reservations
	}
	if p.CourtType == "" {
		p.CourtType = "Pickleball"
	}
	if p.TimeZone == "" {
		p.TimeZone = "America/Los_Angeles"
	}
	if p.StdOffsetHours == 0 {
		p.StdOffsetHours = -8
	}
	if p.Cadence.Interval == 0 {
		p.Cadence.Interval = 5 * time.Minute
	}
	if p.Cadence.BurstAttempts == 0 {
		p.Cadence.BurstAttempts = 1
	}
	if p.Cadence.BurstPause == 0 {
		p.Cadence.BurstPause = 500 * time.Millisecond
	}
	if p.Cadence.SessionRefresh == 0 {
		p.Cadence.SessionRefresh = 20 * time.Minute
	}
	if len(p.RequiredFields) == 0 {
		p.RequiredFields = []string{"__RequestVerificationToken"}
	}
}

func (p Profile) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("venue: name is required")
	}
	if p.OrgID == "" {
		return fmt.Errorf("venue %s: org_id is required", p.Name)
	}
	if p.ReservationTypeID == "" {
		return fmt.Errorf("venue %s: reservation_type_id is required", p.Name)
	}
	switch p.Strategy {
	case WholeDay, PerWindow:
	default:
		return fmt.Errorf("venue %s: unknown strategy %q", p.Name, p.Strategy)
	}
	if p.Cadence.Interval <= 0 {
		return fmt.Errorf("venue %s: cadence interval must be positive", p.Name)
	}
	if p.Cadence.PrecisionInterval < 0 || p.Cadence.BurstAttempts < 1 {
		return fmt.Errorf("venue %s: invalid cadence", p.Name)
	}
	return nil
}

// Clock returns the civil-time converter for the venue.
func (p Profile) Clock() USClock {
	return USClock{Std: time.Duration(p.StdOffsetHours) * time.Hour}
}
