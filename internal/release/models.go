// Package release assembles approved rules into versioned, content-addressed
// releases. The canonical bundle is snapshotted at cut time and the content
// hash is computed over it; consumers verify the hash before trusting a
// bundle.
package release

import (
	"time"

	"normative/pkg/domain"
)

// ReleaseType is the semver component a release bumps.
type ReleaseType string

const (
	TypeMajor ReleaseType = "major"
	TypeMinor ReleaseType = "minor"
	TypePatch ReleaseType = "patch"
)

// RuleRelease is one immutable release of published rules.
type RuleRelease struct {
	ID          domain.ReleaseID
	Version     string // semver, e.g. "2.1.0"
	ReleaseType ReleaseType
	ContentHash string
	// Bundle is the canonical serialization of the members as they were at
	// cut time. Member rules keep living (a later release closes their
	// effective interval), so integrity checks run against this snapshot,
	// never against re-serialized current rows.
	Bundle    []byte
	Changelog []string
	RuleIDs   []domain.RuleID
	CreatedAt time.Time
}
