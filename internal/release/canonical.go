package release

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/gowebpki/jcs"

	"normative/internal/rules"
)

// bundleEntry is the canonical serialization of one rule inside a release.
// Field set and formats are frozen: any change breaks every stored content
// hash.
type bundleEntry struct {
	ConceptSlug    string  `json:"conceptSlug"`
	Value          string  `json:"value"`
	ValueType      string  `json:"valueType"`
	EffectiveFrom  string  `json:"effectiveFrom"`
	EffectiveUntil *string `json:"effectiveUntil"`
}

// CanonicalJSON serializes a rule set as the canonical release bundle:
// entries sorted by concept slug, dates as yyyy-mm-dd, bytes normalized per
// RFC 8785.
func CanonicalJSON(members []*rules.RegulatoryRule) ([]byte, error) {
	entries := make([]bundleEntry, 0, len(members))
	for _, r := range members {
		e := bundleEntry{
			ConceptSlug:   r.ConceptSlug,
			Value:         r.Value,
			ValueType:     string(r.ValueType),
			EffectiveFrom: r.EffectiveFrom.UTC().Format("2006-01-02"),
		}
		if r.EffectiveUntil != nil {
			until := r.EffectiveUntil.UTC().Format("2006-01-02")
			e.EffectiveUntil = &until
		}
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].ConceptSlug < entries[j].ConceptSlug })

	raw, err := json.Marshal(entries)
	if err != nil {
		return nil, fmt.Errorf("marshal bundle: %w", err)
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return nil, fmt.Errorf("canonicalize bundle: %w", err)
	}
	return canonical, nil
}

// HashBundle is the sha256 hex digest of canonical bundle bytes.
func HashBundle(canonical []byte) string {
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:])
}

// ContentHash is the sha256 hex digest of the canonical bundle of members.
func ContentHash(members []*rules.RegulatoryRule) (string, error) {
	canonical, err := CanonicalJSON(members)
	if err != nil {
		return "", err
	}
	return HashBundle(canonical), nil
}
