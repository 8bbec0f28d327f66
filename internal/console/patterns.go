package console

import (
	"regexp"
	"strings"
)

// Outcome is a symbolic label for the semantic result a matched console
// line represents.
type Outcome string

// Outcomes produced by the built-in response specs.
const (
	OutcomePlayers       Outcome = "players"
	OutcomeAdded         Outcome = "added"
	OutcomeAlreadyListed Outcome = "already_listed"
	OutcomeRemoved       Outcome = "removed"
	OutcomeNotListed     Outcome = "not_listed"
	OutcomeUnknownPlayer Outcome = "unknown_player"
)

// Fields are named capture values extracted from a matched line.
type Fields map[string]string

// Matcher tests a cleaned console line and, on success, may extract
// named fields from the capture groups.
type Matcher struct {
	Pattern *regexp.Regexp
	Outcome Outcome
	Extract func(groups []string) Fields
}

// ResponseSpec is an ordered list of matchers for one command family.
// Order matters: matchers can overlap and the first listed wins.
type ResponseSpec struct {
	Family   string
	Matchers []Matcher
}

// MatchLine runs the spec's matchers against a cleaned line in order and
// returns the first hit.
func (s *ResponseSpec) MatchLine(clean string) (Outcome, Fields, bool) {
	for _, m := range s.Matchers {
		groups := m.Pattern.FindStringSubmatch(clean)
		if groups == nil {
			continue
		}
		var fields Fields
		if m.Extract != nil {
			fields = m.Extract(groups)
		}
		return m.Outcome, fields, true
	}
	return "", nil, false
}

// SpecTable maps a command family name to its response spec. Static and
// read-only once built.
type SpecTable map[string]*ResponseSpec

// Get returns the spec for family, or nil when unknown.
func (t SpecTable) Get(family string) *ResponseSpec {
	return t[family]
}

// DefaultSpecs returns the built-in response specs for the vanilla
// console phrases the bridge supports out of the box.
func DefaultSpecs() SpecTable {
	list := &ResponseSpec{
		Family: "list",
		Matchers: []Matcher{
			{
				Pattern: regexp.MustCompile(`There are (\d+) of a max of (\d+) players online:(?:\s*(.*))?$`),
				Outcome: OutcomePlayers,
				Extract: func(groups []string) Fields {
					return Fields{
						"current": groups[1],
						"max":     groups[2],
						"names":   strings.TrimSpace(groups[3]),
					}
				},
			},
		},
	}

	playerField := func(groups []string) Fields {
		return Fields{"player": groups[1]}
	}

	whitelist := &ResponseSpec{
		Family: "whitelist",
		Matchers: []Matcher{
			{
				Pattern: regexp.MustCompile(`Added (\S+) to the whitelist$`),
				Outcome: OutcomeAdded,
				Extract: playerField,
			},
			{
				Pattern: regexp.MustCompile(`Removed (\S+) from the whitelist$`),
				Outcome: OutcomeRemoved,
				Extract: playerField,
			},
			{
				Pattern: regexp.MustCompile(`Player is already whitelisted$`),
				Outcome: OutcomeAlreadyListed,
			},
			{
				Pattern: regexp.MustCompile(`Player is not whitelisted$`),
				Outcome: OutcomeNotListed,
			},
			{
				Pattern: regexp.MustCompile(`That player does not exist$`),
				Outcome: OutcomeUnknownPlayer,
			},
		},
	}

	return SpecTable{
		list.Family:      list,
		whitelist.Family: whitelist,
	}
}

// ParsePlayerNames splits the comma-separated names field of a `list`
// match into individual names. An empty field yields no names.
func ParsePlayerNames(names string) []string {
	if strings.TrimSpace(names) == "" {
		return nil
	}
	parts := strings.Split(names, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if name := strings.TrimSpace(p); name != "" {
			out = append(out, name)
		}
	}
	return out
}
