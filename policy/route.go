package policy

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Route is the caching policy configured for one route pattern.
type Route struct {
	// Pattern is the route pattern the policy applies to.
	//
	// Syntax: "/"-separated segments. ":name" matches exactly one segment,
	// "*" matches the remainder of the path and must be the last segment.
	// Literal segments match verbatim.
	Pattern string

	// Revalidate is the default freshness window for matched paths.
	// Zero disables caching for the route.
	Revalidate time.Duration

	// Tags are the default invalidation tags for matched paths.
	Tags []string
}

type compiledRoute struct {
	route    Route
	segments []string
	literals int
	wildcard bool
}

// Matcher matches request paths against configured routes. At most one
// route matches a path; when patterns overlap, the one with the most
// literal segments wins, deterministically.
type Matcher struct {
	routes []compiledRoute
}

// NewMatcher compiles the configured routes. Malformed patterns, negative
// revalidate intervals and duplicate patterns are fatal.
func NewMatcher(routes map[string]Route) (*Matcher, error) {
	m := &Matcher{routes: make([]compiledRoute, 0, len(routes))}
	seen := make(map[string]bool, len(routes))

	// Map iteration order is random; build deterministically.
	patterns := make([]string, 0, len(routes))
	for pattern := range routes {
		patterns = append(patterns, pattern)
	}
	sort.Strings(patterns)

	for _, pattern := range patterns {
		route := routes[pattern]
		route.Pattern = pattern
		compiled, err := compile(route)
		if err != nil {
			return nil, err
		}
		canonical := canonicalPattern(compiled.segments)
		if seen[canonical] {
			return nil, fmt.Errorf("%w: %q", ErrDuplicatePattern, pattern)
		}
		seen[canonical] = true
		m.routes = append(m.routes, compiled)
	}

	sort.SliceStable(m.routes, func(a, b int) bool {
		ra, rb := m.routes[a], m.routes[b]
		if ra.literals != rb.literals {
			return ra.literals > rb.literals
		}
		if ra.wildcard != rb.wildcard {
			return !ra.wildcard
		}
		return ra.route.Pattern < rb.route.Pattern
	})
	return m, nil
}

func compile(route Route) (compiledRoute, error) {
	pattern := route.Pattern
	if pattern == "" {
		return compiledRoute{}, ErrEmptyPattern
	}
	if !strings.HasPrefix(pattern, "/") {
		return compiledRoute{}, fmt.Errorf("%w: %q", ErrPatternSlash, pattern)
	}
	if route.Revalidate < 0 {
		return compiledRoute{}, fmt.Errorf("%w: %q", ErrNegativeRevalidate, pattern)
	}

	c := compiledRoute{route: route, segments: splitPath(pattern)}
	for i, seg := range c.segments {
		switch {
		case seg == "*":
			if i != len(c.segments)-1 {
				return compiledRoute{}, fmt.Errorf("%w: %q", ErrWildcardPosition, pattern)
			}
			c.wildcard = true
		case strings.HasPrefix(seg, ":"):
			// Named segment; name itself is not used for matching.
		default:
			c.literals++
		}
	}
	return c, nil
}

// Match returns the route for path, or false when no pattern matches.
func (m *Matcher) Match(path string) (Route, bool) {
	segments := splitPath(path)
	for _, c := range m.routes {
		if c.matches(segments) {
			return c.route, true
		}
	}
	return Route{}, false
}

func (c *compiledRoute) matches(segments []string) bool {
	want := c.segments
	if c.wildcard {
		want = want[:len(want)-1]
		if len(segments) < len(want) {
			return false
		}
	} else if len(segments) != len(want) {
		return false
	}
	for i, seg := range want {
		if strings.HasPrefix(seg, ":") {
			if segments[i] == "" {
				return false
			}
			continue
		}
		if seg != segments[i] {
			return false
		}
	}
	return true
}

// canonicalPattern normalizes named segments so "/blog/:slug" and
// "/blog/:id" count as the same pattern.
func canonicalPattern(segments []string) string {
	parts := make([]string, len(segments))
	for i, seg := range segments {
		if strings.HasPrefix(seg, ":") {
			parts[i] = ":"
		} else {
			parts[i] = seg
		}
	}
	return "/" + strings.Join(parts, "/")
}

func splitPath(p string) []string {
	p = strings.Trim(p, "/")
	if p == "" {
		return nil
	}
	return strings.Split(p, "/")
}
