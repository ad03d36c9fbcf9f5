package broadcast

import "strings"

// Filter selects broadcasts by lifecycle status.
type Filter int

const (
	FilterAll Filter = iota
	FilterUpcoming
	FilterActive
	FilterCompleted
)

// String returns the remote service's status token.
func (f Filter) String() string {
	switch f {
	case FilterUpcoming:
		return "upcoming"
	case FilterActive:
		return "active"
	case FilterCompleted:
		return "completed"
	default:
		return "all"
	}
}

// ParseFilter parses a single status token. Empty means all.
func ParseFilter(s string) (Filter, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "all":
		return FilterAll, nil
	case "upcoming":
		return FilterUpcoming, nil
	case "active":
		return FilterActive, nil
	case "completed":
		return FilterCompleted, nil
	default:
		return FilterAll, Validationf("invalid filter %q (want all, upcoming, active or completed)", s)
	}
}

// ParseFilters parses a comma separated list such as "upcoming,active".
func ParseFilters(raw string) ([]Filter, error) {
	var out []Filter
	for _, part := range strings.Split(raw, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		f, err := ParseFilter(part)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return NormalizeFilters(out), nil
}

// NormalizeFilters collapses duplicates and returns them in canonical order.
// An empty input, or any input containing FilterAll, yields [FilterAll].
func NormalizeFilters(in []Filter) []Filter {
	seen := map[Filter]bool{}
	for _, f := range in {
		if f == FilterAll {
			return []Filter{FilterAll}
		}
		seen[f] = true
	}
	out := make([]Filter, 0, len(seen))
	for _, f := range []Filter{FilterUpcoming, FilterActive, FilterCompleted} {
		if seen[f] {
			out = append(out, f)
		}
	}
	if len(out) == 0 {
		return []Filter{FilterAll}
	}
	return out
}
