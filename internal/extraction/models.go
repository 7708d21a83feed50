// Package extraction orchestrates the black-box extractor collaborator and
// owns SourcePointer rows. Extraction quality is an external concern; this
// package only enforces the shape of the exchange and the grounding of
// every claimed quote.
package extraction

import (
	"time"

	"normative/internal/grounding"
	"normative/pkg/domain"
)

// SourcePointer is one claimed fact: an extracted value plus the exact quote
// that is supposed to support it. EvidenceID is a soft reference into the
// evidence store; the referenced row may be missing or merged away, which
// callers must treat as a normal case.
//
// Invariant: MatchType must be recomputed whenever the referenced evidence's
// text content changes.
type SourcePointer struct {
	ID             domain.PointerID
	EvidenceID     domain.EvidenceID
	Domain         string // extraction domain, e.g. "vat-rate", "vat-threshold"
	ExtractedValue string
	ExactQuote     string
	ArticleRef     string
	Confidence     float64
	MatchType      grounding.MatchType
	CreatedAt      time.Time
	VerifiedAt     *time.Time
}

// Citable reports whether the pointer may back a rule. NOT_FOUND and
// unverified pointers are never citable.
func (p *SourcePointer) Citable() bool {
	return p.MatchType == grounding.MatchGrounded
}

// Candidate is one raw assertion returned by the extractor collaborator.
type Candidate struct {
	Domain         string  `json:"domain"`
	ExtractedValue string  `json:"extracted_value"`
	ExactQuote     string  `json:"exact_quote"`
	Confidence     float64 `json:"confidence"`
}

// Extraction is the full collaborator response for one evidence.
type Extraction struct {
	Candidates []Candidate `json:"extractions"`
	Warnings   []string    `json:"warnings"`
}
