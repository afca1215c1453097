package versions

import "github.com/Masterminds/semver/v3"

// IsNewerVersion reports whether candidate is strictly greater than current.
// Valid semantic versions are compared as such; anything else (dev builds,
// empty values) falls back to plain string ordering.
func IsNewerVersion(candidate, current string) bool {
	c, errCandidate := semver.NewVersion(candidate)
	cur, errCurrent := semver.NewVersion(current)

	if errCandidate != nil || errCurrent != nil {
		return candidate > current
	}

	return c.GreaterThan(cur)
}
