// Package policy holds the static campaign quota table. The table is loaded
// once at startup and is immutable at runtime; all lookups are pure.
package policy

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"cardmill/pkg/domain"
)

// ErrMisconfigured marks a policy table that must abort startup. The server
// never serves requests with a missing or malformed table.
var ErrMisconfigured = errors.New("quota policy misconfigured")

// Mode selects how usage is accounted against the table.
type Mode string

const (
	// ModePerDate: each date's ceiling binds only that date's own usage.
	ModePerDate Mode = "per-date"
	// ModeCumulative: unused quota from earlier table dates carries forward;
	// total usage through today is bound by total allowance through today.
	ModeCumulative Mode = "cumulative"
)

// UnknownDate selects what a date absent from the table means.
type UnknownDate string

const (
	UnknownDeny  UnknownDate = "deny"
	UnknownAllow UnknownDate = "allow"
)

// Entry is one per-date ceiling in the campaign table.
type Entry struct {
	Date  domain.Date
	Quota int
}

// Policy is the immutable campaign quota table plus its mode flags.
type Policy struct {
	mode       Mode
	unknown    UnknownDate
	hardWindow bool

	entries []Entry // ascending by date
	byDate  map[domain.Date]int
}

type fileEntry struct {
	Date  string `yaml:"date"`
	Quota int    `yaml:"quota"`
}

type policyFile struct {
	Mode        string      `yaml:"mode"`
	UnknownDate string      `yaml:"unknown_date"`
	HardWindow  bool        `yaml:"hard_window"`
	Entries     []fileEntry `yaml:"entries"`
}

// Load reads and validates a policy table from a YAML file. Environment
// variables in ${VAR} form are expanded before parsing.
func Load(path string) (*Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read %q: %v", ErrMisconfigured, path, err)
	}

	expanded := os.ExpandEnv(string(data))

	var pf policyFile
	if err := yaml.Unmarshal([]byte(expanded), &pf); err != nil {
		return nil, fmt.Errorf("%w: parse %q: %v", ErrMisconfigured, path, err)
	}

	entries := make([]Entry, 0, len(pf.Entries))
	for i, fe := range pf.Entries {
		date, err := domain.ParseDate(fe.Date)
		if err != nil {
			return nil, fmt.Errorf("%w: entry[%d]: %v", ErrMisconfigured, i, err)
		}
		entries = append(entries, Entry{Date: date, Quota: fe.Quota})
	}

	mode := Mode(pf.Mode)
	if pf.Mode == "" {
		mode = ModePerDate
	}
	unknown := UnknownDate(pf.UnknownDate)
	if pf.UnknownDate == "" {
		unknown = UnknownDeny
	}

	return New(mode, unknown, pf.HardWindow, entries)
}

// New validates and builds a Policy from an entry list.
func New(mode Mode, unknown UnknownDate, hardWindow bool, entries []Entry) (*Policy, error) {
	switch mode {
	case ModePerDate, ModeCumulative:
	default:
		return nil, fmt.Errorf("%w: invalid mode %q", ErrMisconfigured, mode)
	}
	switch unknown {
	case UnknownDeny, UnknownAllow:
	default:
		return nil, fmt.Errorf("%w: invalid unknown_date %q", ErrMisconfigured, unknown)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: empty campaign table", ErrMisconfigured)
	}

	sorted := make([]Entry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Date.Before(sorted[j].Date)
	})

	byDate := make(map[domain.Date]int, len(sorted))
	for _, e := range sorted {
		if e.Quota < 0 {
			return nil, fmt.Errorf("%w: negative quota %d for %s", ErrMisconfigured, e.Quota, e.Date)
		}
		if _, dup := byDate[e.Date]; dup {
			return nil, fmt.Errorf("%w: duplicate date %s", ErrMisconfigured, e.Date)
		}
		byDate[e.Date] = e.Quota
	}

	return &Policy{
		mode:       mode,
		unknown:    unknown,
		hardWindow: hardWindow,
		entries:    sorted,
		byDate:     byDate,
	}, nil
}

// Mode returns the accounting mode.
func (p *Policy) Mode() Mode { return p.mode }

// HardWindow reports whether dates outside the campaign window are denied
// unconditionally, regardless of leftover quota.
func (p *Policy) HardWindow() bool { return p.hardWindow }

// AllowsUnknownDates reports whether dates absent from the table are
// unlimited (true) or always denied (false).
func (p *Policy) AllowsUnknownDates() bool { return p.unknown == UnknownAllow }

// AllowanceFor returns the per-date ceiling for date. ok is false when the
// date is absent from the table.
func (p *Policy) AllowanceFor(date domain.Date) (quota int, ok bool) {
	quota, ok = p.byDate[date]
	return quota, ok
}

// CumulativeAllowanceThrough sums the ceilings of every table date <= date.
func (p *Policy) CumulativeAllowanceThrough(date domain.Date) int {
	total := 0
	for _, e := range p.entries {
		if e.Date.After(date) {
			break
		}
		total += e.Quota
	}
	return total
}

// InWindow reports whether date falls between the table's first and last
// configured dates, inclusive.
func (p *Policy) InWindow(date domain.Date) bool {
	return !date.Before(p.WindowStart()) && !date.After(p.WindowEnd())
}

// WindowStart returns the earliest configured date.
func (p *Policy) WindowStart() domain.Date { return p.entries[0].Date }

// WindowEnd returns the latest configured date.
func (p *Policy) WindowEnd() domain.Date { return p.entries[len(p.entries)-1].Date }

// Entries returns a copy of the campaign table in date order.
func (p *Policy) Entries() []Entry {
	out := make([]Entry, len(p.entries))
	copy(out, p.entries)
	return out
}
