package policy

import "errors"

// Configuration errors. All of them are fatal at construction time.
var (
	// ErrEmptyPattern indicates a route pattern is empty.
	ErrEmptyPattern = errors.New("policy: route pattern is empty")

	// ErrPatternSlash indicates a route pattern does not start with "/".
	ErrPatternSlash = errors.New("policy: route pattern must start with /")

	// ErrWildcardPosition indicates a "*" segment that is not last.
	ErrWildcardPosition = errors.New("policy: wildcard segment must be last")

	// ErrNegativeRevalidate indicates a negative revalidate interval.
	ErrNegativeRevalidate = errors.New("policy: revalidate must not be negative")

	// ErrDuplicatePattern indicates the same pattern was configured twice.
	ErrDuplicatePattern = errors.New("policy: duplicate route pattern")
)
