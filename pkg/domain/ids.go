// Package domain holds typed identifiers shared across the pipeline.
//
// IDs are distinct types over uuid.UUID so the compiler rejects passing an
// EvidenceID where a RuleID is expected. Parse functions enforce the trust
// boundary invariant: IDs must be valid, non-empty, non-nil UUIDs.
package domain

import (
	"github.com/google/uuid"

	dErrors "normative/pkg/domain-errors"
)

type (
	// EvidenceID identifies one fetched source snapshot.
	EvidenceID uuid.UUID
	// ArtifactID identifies a derived representation of an Evidence.
	ArtifactID uuid.UUID
	// ParseID identifies one versioned structural parse of an Evidence.
	ParseID uuid.UUID
	// PointerID identifies one claimed, quote-grounded fact.
	PointerID uuid.UUID
	// RuleID identifies one version of a regulatory rule.
	RuleID uuid.UUID
	// ConflictID identifies a detected contradiction between two rules.
	ConflictID uuid.UUID
	// ReleaseID identifies an immutable release bundle.
	ReleaseID uuid.UUID
)

func (id EvidenceID) String() string { return uuid.UUID(id).String() }
func (id ArtifactID) String() string { return uuid.UUID(id).String() }
func (id ParseID) String() string    { return uuid.UUID(id).String() }
func (id PointerID) String() string  { return uuid.UUID(id).String() }
func (id RuleID) String() string     { return uuid.UUID(id).String() }
func (id ConflictID) String() string { return uuid.UUID(id).String() }
func (id ReleaseID) String() string  { return uuid.UUID(id).String() }

func (id EvidenceID) IsZero() bool { return uuid.UUID(id) == uuid.Nil }
func (id ParseID) IsZero() bool    { return uuid.UUID(id) == uuid.Nil }
func (id PointerID) IsZero() bool  { return uuid.UUID(id) == uuid.Nil }
func (id RuleID) IsZero() bool     { return uuid.UUID(id) == uuid.Nil }
func (id ReleaseID) IsZero() bool  { return uuid.UUID(id) == uuid.Nil }

// NewEvidenceID returns a fresh random EvidenceID.
func NewEvidenceID() EvidenceID { return EvidenceID(uuid.New()) }

// NewArtifactID returns a fresh random ArtifactID.
func NewArtifactID() ArtifactID { return ArtifactID(uuid.New()) }

// NewParseID returns a fresh random ParseID.
func NewParseID() ParseID { return ParseID(uuid.New()) }

// NewPointerID returns a fresh random PointerID.
func NewPointerID() PointerID { return PointerID(uuid.New()) }

// NewRuleID returns a fresh random RuleID.
func NewRuleID() RuleID { return RuleID(uuid.New()) }

// NewConflictID returns a fresh random ConflictID.
func NewConflictID() ConflictID { return ConflictID(uuid.New()) }

// NewReleaseID returns a fresh random ReleaseID.
func NewReleaseID() ReleaseID { return ReleaseID(uuid.New()) }

func parseID(raw string) (uuid.UUID, error) {
	if raw == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id must not be empty")
	}
	parsed, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "id is not a valid uuid")
	}
	if parsed == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id must not be the nil uuid")
	}
	return parsed, nil
}

// ParseEvidenceID validates and converts a string into an EvidenceID.
func ParseEvidenceID(raw string) (EvidenceID, error) {
	parsed, err := parseID(raw)
	return EvidenceID(parsed), err
}

// ParseParseID validates and converts a string into a ParseID.
func ParseParseID(raw string) (ParseID, error) {
	parsed, err := parseID(raw)
	return ParseID(parsed), err
}

// ParsePointerID validates and converts a string into a PointerID.
func ParsePointerID(raw string) (PointerID, error) {
	parsed, err := parseID(raw)
	return PointerID(parsed), err
}

// ParseRuleID validates and converts a string into a RuleID.
func ParseRuleID(raw string) (RuleID, error) {
	parsed, err := parseID(raw)
	return RuleID(parsed), err
}

// ParseReleaseID validates and converts a string into a ReleaseID.
func ParseReleaseID(raw string) (ReleaseID, error) {
	parsed, err := parseID(raw)
	return ReleaseID(parsed), err
}
