package venue

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type file struct {
	Venues []Profile `yaml:"venues"`
}

// Parse decodes a venues document. Unknown keys are rejected.
func Parse(data []byte) ([]Profile, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var f file
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("parse venues: %w", err)
	}
	seen := map[string]bool{}
	out := make([]Profile, 0, len(f.Venues))
	for _, p := range f.Venues {
		if base, ok := Builtin(p.Name); ok && p.Strategy == "" {
			p = overlay(base, p)
		}
		p.applyDefaults()
		if err := p.Validate(); err != nil {
			return nil, err
		}
		if seen[p.Name] {
			return nil, fmt.Errorf("parse venues: duplicate venue %q", p.Name)
		}
		seen[p.Name] = true
		out = append(out, p)
	}
	return out, nil
}

// overlay copies the non-zero identifiers of p onto base, so a venues file
// can retarget a built-in profile without restating it.
func overlay(base, p Profile) Profile {
	if p.OrgID != "" {
		base.OrgID = p.OrgID
	}
	if p.SchedulerID != "" {
		base.SchedulerID = p.SchedulerID
	}
	if p.ReservationTypeID != "" {
		base.ReservationTypeID = p.ReservationTypeID
	}
	if p.Endpoints.App != "" {
		base.Endpoints.App = p.Endpoints.App
	}
	if p.Endpoints.API != "" {
		base.Endpoints.API = p.Endpoints.API
	}
	if p.Endpoints.Reservations != "" {
		base.Endpoints.Reservations = p.Endpoints.Reservations
	}
	if p.ProbeConcurrency != 0 {
		base.ProbeConcurrency = p.ProbeConcurrency
	}
	return base
}

// Resolve finds name in the venues file at path (if any), then among the
// built-in profiles.
func Resolve(name, path string) (Profile, error) {
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Profile{}, fmt.Errorf("read venues file: %w", err)
		}
		ps, err := Parse(data)
		if err != nil {
			return Profile{}, err
		}
		for _, p := range ps {
			if p.Name == name {
				return p, nil
			}
		}
	}
	if p, ok := Builtin(name); ok {
		return p, nil
	}
	return Profile{}, fmt.Errorf("unknown venue %q", name)
}

// All lists the built-in profiles followed by those defined only in the
// venues file. File entries replace built-ins of the same name.
func All(path string) ([]Profile, error) {
	var fromFile []Profile
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read venues file: %w", err)
		}
		if fromFile, err = Parse(data); err != nil {
			return nil, err
		}
	}
	byName := map[string]Profile{}
	for _, p := range fromFile {
		byName[p.Name] = p
	}
	var out []Profile
	for _, n := range BuiltinNames() {
		if p, ok := byName[n]; ok {
			out = append(out, p)
			delete(byName, n)
			continue
		}
		p, _ := Builtin(n)
		out = append(out, p)
	}
	for _, p := range fromFile {
		if _, ok := byName[p.Name]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}
