package structure

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"normative/internal/evidence"
	"normative/pkg/domain"
)

const statuteHTML = `<html><head><title>Zakon o PDV-u</title>
<script>ignore()</script></head><body>
<h1>Zakon o porezu na dodanu vrijednost</h1>
<p>Članak 38.</p>
<p>Opća stopa PDV-a iznosi 25%.</p>
<p>Snižene stope primjenjuju se na:</p>
<ul><li>1. isporuke kruha i mlijeka</li><li>2. knjige i novine</li></ul>
<p>Članak 39.</p>
<p>Prag za ulazak u sustav PDV-a iznosi 60.000 eura.</p>
</body></html>`

func parseHTML(t *testing.T, content string) *Result {
	t.Helper()
	a := &evidence.Artifact{
		EvidenceID: domain.NewEvidenceID(),
		Kind:       evidence.ArtifactCleanedText,
		Content:    content,
	}
	res, err := Parse(a, evidence.ClassHTML, DefaultConfig())
	require.NoError(t, err)
	return res
}

func TestParse_HTMLStatute(t *testing.T) {
	res := parseHTML(t, statuteHTML)
	doc := res.Document

	assert.Equal(t, StatusOK, doc.Status)
	assert.Equal(t, evidence.HashContent([]byte(doc.CleanText)), doc.CleanTextHash)
	assert.NotContains(t, doc.CleanText, "ignore()", "script content must not leak into clean text")

	t.Run("articles become depth-1 nodes", func(t *testing.T) {
		var articles []*ProvisionNode
		for _, n := range res.Nodes {
			if n.Type == NodeArticle {
				articles = append(articles, n)
			}
		}
		require.Len(t, articles, 2)
		assert.Equal(t, "doc.art1", articles[0].Path)
		assert.Equal(t, "doc.art2", articles[1].Path)
		assert.Equal(t, 1, articles[0].Depth)
	})

	t.Run("paragraphs nest under their article", func(t *testing.T) {
		found := false
		for _, n := range res.Nodes {
			if n.Type == NodeParagraph && strings.Contains(n.NormText, "60.000") {
				assert.Equal(t, "doc.art2", n.ParentPath)
				found = true
			}
		}
		assert.True(t, found)
	})

	t.Run("list entries become item nodes under the open paragraph", func(t *testing.T) {
		var items []*ProvisionNode
		for _, n := range res.Nodes {
			if n.Type == NodeItem {
				items = append(items, n)
			}
		}
		require.Len(t, items, 2)
		assert.True(t, strings.HasPrefix(items[0].Path, items[0].ParentPath+"."))
	})
}

func TestParse_TreeInvariants(t *testing.T) {
	res := parseHTML(t, statuteHTML)

	t.Run("single root", func(t *testing.T) {
		require.Equal(t, NodeRoot, res.Nodes[0].Type)
		roots := 0
		for _, n := range res.Nodes {
			if n.ParentPath == "" {
				roots++
			}
		}
		assert.Equal(t, 1, roots)
	})

	t.Run("paths are unique", func(t *testing.T) {
		seen := make(map[string]bool)
		for _, n := range res.Nodes {
			assert.False(t, seen[n.Path], "duplicate path %s", n.Path)
			seen[n.Path] = true
		}
	})

	t.Run("parents precede children", func(t *testing.T) {
		created := make(map[string]bool)
		for _, n := range res.Nodes {
			if n.ParentPath != "" {
				assert.True(t, created[n.ParentPath], "parent %s of %s not yet created", n.ParentPath, n.Path)
			}
			created[n.Path] = true
		}
	})

	t.Run("offsets index into clean text", func(t *testing.T) {
		text := res.Document.CleanText
		for _, n := range res.Nodes[1:] {
			require.LessOrEqual(t, n.EndOffset, len(text))
			assert.Equal(t, n.NormText, text[n.StartOffset:n.EndOffset], "node %s", n.Path)
		}
	})

	t.Run("coverage is measured", func(t *testing.T) {
		assert.Greater(t, res.Document.Stats.CoveragePercent, 60.0)
		assert.LessOrEqual(t, res.Document.Stats.CoveragePercent, 100.0)
	})
}

func TestParse_PlainText(t *testing.T) {
	a := &evidence.Artifact{
		EvidenceID: domain.NewEvidenceID(),
		Kind:       evidence.ArtifactOCRText,
		Content:    "Članak 1.\n\nStopa iznosi 25%.\n\nČlanak 2.\n\nPrag iznosi 60.000 eura.",
	}
	res, err := Parse(a, evidence.ClassPDFScanned, DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, StatusOK, res.Document.Status)

	byType := res.Document.Stats.NodesByType
	assert.Equal(t, 2, byType[NodeArticle])
	assert.Equal(t, 2, byType[NodeParagraph])
}

func TestParse_LowCoverageIsPartial(t *testing.T) {
	// Page furniture (issue numbers, page markers) falls under MinBlockLen
	// and never enters a node, so it must count against coverage.
	cfg := DefaultConfig()
	cfg.MinBlockLen = 12
	a := &evidence.Artifact{
		EvidenceID: domain.NewEvidenceID(),
		Kind:       evidence.ArtifactOCRText,
		Content:    "HR 2026-01\n\nNN 73/24\n\nstr. 4\n\nOpća stopa poreza iznosi 25 posto.\n\nstr. 5\n\nNN 73/24",
	}
	res, err := Parse(a, evidence.ClassPDFScanned, cfg)
	require.NoError(t, err)
	assert.Equal(t, StatusPartial, res.Document.Status)
	assert.Less(t, res.Document.Stats.CoveragePercent, 60.0)
	assert.Greater(t, res.Document.Stats.CoveragePercent, 0.0)
	assert.NotEmpty(t, res.Document.Warnings)
}

func TestParse_EmptyDocumentFails(t *testing.T) {
	a := &evidence.Artifact{
		EvidenceID: domain.NewEvidenceID(),
		Kind:       evidence.ArtifactCleanedText,
		Content:    "<html><body></body></html>",
	}
	res, err := Parse(a, evidence.ClassHTML, DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, res.Document.Status)
	assert.NotEmpty(t, res.Document.Warnings)
}

func TestConfigHashVersionsParses(t *testing.T) {
	a := DefaultConfig()
	b := DefaultConfig()
	b.MinBlockLen = 10
	assert.Equal(t, a.Hash(), DefaultConfig().Hash())
	assert.NotEqual(t, a.Hash(), b.Hash())
}
