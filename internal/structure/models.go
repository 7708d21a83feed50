// Package structure turns raw source markup into an ordered tree of labeled
// provision nodes with character offsets. The node tree feeds coverage
// measurement and gives extracted facts an article-level address.
package structure

import (
	"time"

	"normative/pkg/domain"
)

// NodeType labels one provision node in the parse tree.
type NodeType string

const (
	NodeRoot      NodeType = "root"
	NodeHeading   NodeType = "heading"
	NodeArticle   NodeType = "article"
	NodeParagraph NodeType = "paragraph"
	NodeItem      NodeType = "item"
)

// ProvisionNode is one node in the structural parse tree.
//
// Invariants: the tree is acyclic and reachable from the single root node;
// Path is unique within a parse and sorts in hierarchical order; nodes are
// emitted depth-first so a parent always precedes its children.
type ProvisionNode struct {
	ParseID     domain.ParseID
	Type        NodeType
	Path        string // dotted, e.g. "art2.par1.item3"
	ParentPath  string // empty for the root
	OrderIndex  int
	Depth       int
	RawText     string
	NormText    string
	StartOffset int // [StartOffset, EndOffset) into the parse's CleanText
	EndOffset   int
}

// Stats aggregates per-parse structure measurements.
type Stats struct {
	NodeCount   int
	NodesByType map[NodeType]int
	// CoveragePercent is the fraction of clean-text characters attributed to
	// at least one non-root node, in percent.
	CoveragePercent float64
}

// Status classifies a parse outcome.
type Status string

const (
	StatusOK      Status = "ok"
	StatusPartial Status = "partial"
	StatusFailed  Status = "failed"
)

// ParsedDocument is one versioned structural parse of an evidence artifact.
//
// Invariant: at most one ParsedDocument per evidence has IsLatest set, and
// creating a new latest parse flips the previous one atomically.
type ParsedDocument struct {
	ID            domain.ParseID
	EvidenceID    domain.EvidenceID
	ParserID      string
	ParserVersion string
	ConfigHash    string
	CleanText     string
	CleanTextHash string
	Stats         Stats
	Warnings      []string
	Status        Status
	IsLatest      bool
	SupersedesID  *domain.ParseID
	CreatedAt     time.Time
}
