package structure

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"

	"normative/internal/evidence"
	"normative/internal/grounding"
	"normative/pkg/domain"
)

// ParserID names this parser implementation in parse version tuples.
const ParserID = "normative-structural"

// ParserVersion changes whenever node emission rules change, so stored
// parses can be told apart from re-parses with newer rules.
const ParserVersion = "1.2.0"

// Config tunes node emission. A parse is versioned by
// (ParserID, ParserVersion, ConfigHash), so config changes produce a new
// parse rather than silently overwriting the old one.
type Config struct {
	// MinBlockLen drops text blocks shorter than this many characters
	// (page furniture, stray punctuation).
	MinBlockLen int `json:"minBlockLen"`
	// CoverageWarnBelow marks the parse partial when coverage drops under
	// this percentage.
	CoverageWarnBelow float64 `json:"coverageWarnBelow"`
}

// DefaultConfig is used by the pipeline runner.
func DefaultConfig() Config {
	return Config{MinBlockLen: 2, CoverageWarnBelow: 60}
}

// Hash returns the canonical hash of the config for parse versioning.
func (c Config) Hash() string {
	b, _ := json.Marshal(c) // struct of scalars, cannot fail
	return evidence.HashContent(b)
}

// Result is the outcome of one parse: the document record plus its nodes in
// emission order.
type Result struct {
	Document *ParsedDocument
	Nodes    []*ProvisionNode
}

// articleRe matches Croatian statute article headings ("Članak 38." etc.).
var articleRe = regexp.MustCompile(`^(?i)(Članak|Article|Čl\.)\s+(\d+[a-z]?)\.?`)

// itemRe matches enumerated items ("1.", "a)", "(3)").
var itemRe = regexp.MustCompile(`^(\d+\.|\(?[a-z0-9]\))\s+`)

// Parse builds the provision node tree for an evidence artifact. HTML
// artifacts are tokenized into visible-text blocks; plain-text artifacts are
// split on blank lines. Nodes are emitted depth-first so a parent lookup by
// path prefix always resolves an already-created node.
func Parse(a *evidence.Artifact, class evidence.ContentClass, cfg Config) (*Result, error) {
	if a == nil {
		return nil, fmt.Errorf("artifact is required")
	}

	var blocks []block
	var warnings []string
	var err error
	if class == evidence.ClassHTML {
		blocks, err = htmlBlocks(a.Content)
		if err != nil {
			return nil, fmt.Errorf("tokenize html: %w", err)
		}
	} else {
		blocks = textBlocks(a.Content)
	}

	// Coverage is measured against the full source text, so blocks dropped
	// below MinBlockLen count against it. HTML measures its visible text:
	// markup is not document text.
	srcChars := 0
	if class == evidence.ClassHTML {
		for _, blk := range blocks {
			srcChars += utf8.RuneCountInString(grounding.Normalize(blk.text))
		}
	} else {
		srcChars = utf8.RuneCountInString(grounding.Normalize(a.Content))
	}

	parseID := domain.NewParseID()
	b := newTreeBuilder(parseID, cfg)
	for _, blk := range blocks {
		if len(strings.TrimSpace(blk.text)) < cfg.MinBlockLen {
			continue
		}
		b.add(blk)
	}
	doc := &ParsedDocument{
		ID:            parseID,
		EvidenceID:    a.EvidenceID,
		ParserID:      ParserID,
		ParserVersion: ParserVersion,
		ConfigHash:    cfg.Hash(),
		CleanText:     b.cleanText(),
		Status:        StatusOK,
	}
	doc.CleanTextHash = evidence.HashContent([]byte(doc.CleanText))
	doc.Stats = b.stats(srcChars)

	if doc.Stats.NodeCount <= 1 {
		doc.Status = StatusFailed
		warnings = append(warnings, "no provision nodes recognized")
	} else if doc.Stats.CoveragePercent < cfg.CoverageWarnBelow {
		doc.Status = StatusPartial
		warnings = append(warnings, fmt.Sprintf("coverage %.1f%% below threshold", doc.Stats.CoveragePercent))
	}
	doc.Warnings = warnings

	return &Result{Document: doc, Nodes: b.nodes}, nil
}

type block struct {
	text    string
	heading bool
}

// htmlBlocks extracts visible text grouped into blocks at block-level tags.
// Script, style and similar invisible subtrees are skipped.
func htmlBlocks(content string) ([]block, error) {
	doc, err := html.Parse(strings.NewReader(content))
	if err != nil {
		return nil, err
	}

	var blocks []block
	var current strings.Builder
	var headingDepth int

	flush := func() {
		text := strings.TrimSpace(current.String())
		current.Reset()
		if text != "" {
			blocks = append(blocks, block{text: text, heading: headingDepth > 0})
		}
	}

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript", "iframe", "head":
				return
			case "h1", "h2", "h3", "h4", "h5", "h6":
				flush()
				headingDepth++
				defer func() { headingDepth--; flush() }()
			case "p", "li", "div", "tr", "section", "article", "br":
				flush()
				defer flush()
			}
		}
		if n.Type == html.TextNode {
			current.WriteString(n.Data)
			current.WriteString(" ")
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	flush()
	return blocks, nil
}

// textBlocks splits plain text (OCR output, PDF text layer) on blank lines.
func textBlocks(content string) []block {
	var blocks []block
	for _, part := range strings.Split(content, "\n\n") {
		text := strings.TrimSpace(part)
		if text != "" {
			blocks = append(blocks, block{text: text})
		}
	}
	return blocks
}

// treeBuilder assigns paths, depths and offsets while accumulating the clean
// text the offsets refer to.
type treeBuilder struct {
	parseID domain.ParseID
	cfg     Config

	nodes      []*ProvisionNode
	text       strings.Builder
	curArticle string // path of the open article, empty before the first one
	artSeq     int
	parSeq     int // resets per article
	itemSeq    int // resets per paragraph
	curPar     string
	attributed int
}

func newTreeBuilder(parseID domain.ParseID, cfg Config) *treeBuilder {
	b := &treeBuilder{parseID: parseID, cfg: cfg}
	b.nodes = append(b.nodes, &ProvisionNode{
		ParseID: parseID,
		Type:    NodeRoot,
		Path:    "doc",
		Depth:   0,
	})
	return b
}

func (b *treeBuilder) add(blk block) {
	norm := grounding.Normalize(blk.text)
	start := b.text.Len()
	b.text.WriteString(norm)
	b.text.WriteString("\n")
	end := start + len(norm)
	b.attributed += utf8.RuneCountInString(norm)

	node := &ProvisionNode{
		ParseID:     b.parseID,
		RawText:     blk.text,
		NormText:    norm,
		StartOffset: start,
		EndOffset:   end,
		OrderIndex:  len(b.nodes),
	}

	switch {
	case articleRe.MatchString(norm):
		b.artSeq++
		b.parSeq = 0
		b.curArticle = fmt.Sprintf("doc.art%d", b.artSeq)
		b.curPar = ""
		node.Type = NodeArticle
		node.Path = b.curArticle
		node.ParentPath = "doc"
		node.Depth = 1
	case blk.heading:
		node.Type = NodeHeading
		node.Path = fmt.Sprintf("doc.h%d", len(b.nodes))
		node.ParentPath = "doc"
		node.Depth = 1
	case itemRe.MatchString(norm) && b.curPar != "":
		b.itemSeq++
		node.Type = NodeItem
		node.Path = fmt.Sprintf("%s.item%d", b.curPar, b.itemSeq)
		node.ParentPath = b.curPar
		node.Depth = pathDepth(node.Path)
	default:
		parent := "doc"
		if b.curArticle != "" {
			parent = b.curArticle
		}
		b.parSeq++
		b.itemSeq = 0
		node.Type = NodeParagraph
		node.Path = fmt.Sprintf("%s.par%d", parent, b.parSeq)
		node.ParentPath = parent
		node.Depth = pathDepth(node.Path)
		b.curPar = node.Path
	}

	b.nodes = append(b.nodes, node)
}

func pathDepth(path string) int {
	return strings.Count(path, ".")
}

func (b *treeBuilder) cleanText() string {
	return strings.TrimRight(b.text.String(), "\n")
}

// stats computes node counts and coverage. srcChars is the normalized
// character count of the source text; characters that never made it into a
// node (dropped blocks, unrecognized furniture) lower the coverage.
func (b *treeBuilder) stats(srcChars int) Stats {
	byType := make(map[NodeType]int)
	for _, n := range b.nodes {
		byType[n.Type]++
	}
	coverage := 0.0
	if srcChars > 0 {
		coverage = 100 * float64(b.attributed) / float64(srcChars)
		if coverage > 100 {
			coverage = 100
		}
	}
	// Root spans the whole document.
	b.nodes[0].EndOffset = b.text.Len()
	return Stats{
		NodeCount:       len(b.nodes),
		NodesByType:     byType,
		CoveragePercent: coverage,
	}
}
