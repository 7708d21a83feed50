package release

import (
	"fmt"

	"github.com/Masterminds/semver/v3"

	"normative/internal/rules"
)

// BumpFor classifies a change set: any T0 member forces a major release, any
// T1 a minor one, everything else is a patch.
func BumpFor(members []*rules.RegulatoryRule) ReleaseType {
	bump := TypePatch
	for _, r := range members {
		switch r.RiskTier {
		case rules.TierT0:
			return TypeMajor
		case rules.TierT1:
			bump = TypeMinor
		}
	}
	return bump
}

// NextVersion applies the bump to the previous release version. An empty
// previous version starts the line at 0.0.0 before bumping.
func NextVersion(prev string, bump ReleaseType) (string, error) {
	if prev == "" {
		prev = "0.0.0"
	}
	v, err := semver.NewVersion(prev)
	if err != nil {
		return "", fmt.Errorf("parse previous version %q: %w", prev, err)
	}
	var next semver.Version
	switch bump {
	case TypeMajor:
		next = v.IncMajor()
	case TypeMinor:
		next = v.IncMinor()
	case TypePatch:
		next = v.IncPatch()
	default:
		return "", fmt.Errorf("unknown release type %q", bump)
	}
	return next.String(), nil
}
