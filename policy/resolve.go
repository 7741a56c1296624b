package policy

import (
	"sort"
	"time"
)

// Effective is the fully resolved caching policy for one request.
type Effective struct {
	// Revalidate is the freshness window. Zero disables caching entirely.
	Revalidate time.Duration

	// Tags is the union of route, default and override tags, sorted and
	// deduplicated.
	Tags []string
}

// Resolve merges the route policy with the request scope. Pure function:
// given the same accumulated layers it returns the same result no matter
// how many Defaults/Set calls produced them or in which order.
//
// Precedence for revalidate: override, then default, then route. Tags are
// always the union of all three sources.
func Resolve(route Route, s *Scope) Effective {
	defaults, overrides := s.snapshot()

	revalidate := route.Revalidate
	if defaults.revalidate != nil {
		revalidate = *defaults.revalidate
	}
	if overrides.revalidate != nil {
		revalidate = *overrides.revalidate
	}

	tags := make([]string, 0, len(route.Tags)+len(defaults.tags)+len(overrides.tags))
	tags = append(tags, route.Tags...)
	tags = append(tags, defaults.tags...)
	tags = append(tags, overrides.tags...)

	return Effective{
		Revalidate: revalidate,
		Tags:       dedupe(tags),
	}
}

func dedupe(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		out = append(out, tag)
	}
	sort.Strings(out)
	return out
}
