// Package evidence is the content-addressed store of fetched source
// documents and their derived artifacts. Evidence rows are never physically
// removed; duplicates are merged by migrating references and soft-deleting
// the older row, which keeps the audit trail intact.
package evidence

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"normative/pkg/domain"
)

// ContentClass labels the raw format of a fetched source snapshot.
type ContentClass string

const (
	ClassHTML       ContentClass = "html"
	ClassPDFText    ContentClass = "pdf-text"
	ClassPDFScanned ContentClass = "pdf-scanned"
	ClassJSON       ContentClass = "structured-json"
)

// Evidence is one fetched source snapshot.
//
// Invariant: (SourceURL, ContentHash) is unique among non-deleted rows.
type Evidence struct {
	ID          domain.EvidenceID
	SourceURL   string
	Class       ContentClass
	RawContent  []byte
	ContentHash string // sha256 hex over RawContent
	FetchedAt   time.Time
	Stale       bool
	DeletedAt   *time.Time
}

// Deleted reports whether the row has been soft-deleted (superseded by a
// duplicate merge).
func (e *Evidence) Deleted() bool { return e.DeletedAt != nil }

// ArtifactKind labels a derived representation of an Evidence.
type ArtifactKind string

const (
	ArtifactCleanedText ArtifactKind = "cleaned-text"
	ArtifactOCRText     ArtifactKind = "ocr-text"
	ArtifactParsedText  ArtifactKind = "parsed-text"
)

// Artifact is a derived representation of an Evidence, immutable once created.
type Artifact struct {
	ID          domain.ArtifactID
	EvidenceID  domain.EvidenceID
	Kind        ArtifactKind
	Content     string
	ContentHash string
	// OCRConfidence carries the external OCR collaborator's confidence for
	// ocr-text artifacts; zero for other kinds.
	OCRConfidence float64
	CreatedAt     time.Time
}

// HashContent returns the canonical content hash used for both raw evidence
// bytes and artifact text.
func HashContent(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
