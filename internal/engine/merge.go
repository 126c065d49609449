package engine

import (
	"errors"
	"fmt"
	"strings"

	"ticket-template/internal/ledger"
	"ticket-template/internal/templates"
)

// Separator joins an applied block to the content before it.
const Separator = "\n\n"

var (
	// ErrArticleMissing means the template's source article does not exist.
	ErrArticleMissing = errors.New("template article not found")
	// ErrArticleEmpty means the source article has no usable content.
	ErrArticleEmpty = errors.New("template article is empty")
)

// ArticleSource resolves the content of a template's source article.
// found=false with a nil error means the article does not exist.
type ArticleSource interface {
	ArticleContent(articleID string) (content string, found bool, err error)
}

// Document is the mutable state the merge engine threads through a batch.
type Document struct {
	Content string
	Used    ledger.Set
}

// Outcome summarises a batch run.
type Outcome struct {
	Applied   []string
	Retracted []Removal
	// Skipped holds templates whose article was missing or empty.
	Skipped []Skip
}

// Removal records one retraction. Chars is 0 when the block was not found.
type Removal struct {
	ID    string
	Chars int
}

type Skip struct {
	ID  string
	Err error
}

// CharsRemoved sums the characters removed over all retractions.
func (o Outcome) CharsRemoved() int {
	total := 0
	for _, r := range o.Retracted {
		total += r.Chars
	}
	return total
}

type article struct {
	text  string
	found bool
}

// Merger splices template blocks in and out of a document. Each source
// article is fetched at most once per Merger, so use one Merger per batch.
type Merger struct {
	source ArticleSource
	cache  map[string]article
}

// NewMerger returns a Merger reading articles from source.
func NewMerger(source ArticleSource) *Merger {
	return &Merger{source: source, cache: make(map[string]article)}
}

// Block returns the trimmed article text a template contributes.
func (m *Merger) Block(t templates.Template) (string, error) {
	a, err := m.load(t.ArticleID)
	if err != nil {
		return "", err
	}
	if !a.found {
		return "", fmt.Errorf("%w: %s", ErrArticleMissing, t.ArticleID)
	}
	if a.text == "" {
		return "", fmt.Errorf("%w: %s", ErrArticleEmpty, t.ArticleID)
	}
	return a.text, nil
}

func (m *Merger) load(articleID string) (article, error) {
	if a, ok := m.cache[articleID]; ok {
		return a, nil
	}
	content, found, err := m.source.ArticleContent(articleID)
	if err != nil {
		return article{}, fmt.Errorf("load article %s: %w", articleID, err)
	}
	a := article{text: strings.TrimSpace(content), found: found}
	m.cache[articleID] = a
	return a, nil
}

// Retract removes the first occurrence of the template block and drops the id
// from the ledger. It returns the number of characters removed; 0 means the
// block was already gone or edited by the user.
func (m *Merger) Retract(doc *Document, t templates.Template) (int, error) {
	a, err := m.load(t.ArticleID)
	if err != nil {
		return 0, err
	}
	removed := 0
	if a.found && a.text != "" {
		doc.Content, removed = removeBlock(doc.Content, a.text)
	}
	doc.Used.Remove(t.ID)
	return removed, nil
}

// Apply appends the template block and records the id in the ledger.
// ErrArticleMissing and ErrArticleEmpty leave the document untouched.
func (m *Merger) Apply(doc *Document, t templates.Template) error {
	block, err := m.Block(t)
	if err != nil {
		return err
	}
	doc.Content = appendBlock(doc.Content, block)
	doc.Used.Add(t.ID)
	return nil
}

// Run processes every retraction, then every application, in list order.
// Templates whose article is missing or empty are skipped, not failed.
func (m *Merger) Run(doc *Document, plan Plan) (Outcome, error) {
	var out Outcome
	for _, t := range plan.Retract {
		n, err := m.Retract(doc, t)
		if err != nil {
			return out, err
		}
		out.Retracted = append(out.Retracted, Removal{ID: t.ID, Chars: n})
	}
	for _, t := range plan.Apply {
		err := m.Apply(doc, t)
		switch {
		case err == nil:
			out.Applied = append(out.Applied, t.ID)
		case errors.Is(err, ErrArticleMissing), errors.Is(err, ErrArticleEmpty):
			out.Skipped = append(out.Skipped, Skip{ID: t.ID, Err: err})
		default:
			return out, err
		}
	}
	return out, nil
}

func appendBlock(content, block string) string {
	if content == "" {
		return block
	}
	return content + Separator + block
}

// removeBlock drops the first verbatim occurrence of block. A neighbouring
// separator goes with it only when the block is a whole paragraph, so text the
// user typed on the same line keeps its own paragraph breaks.
func removeBlock(content, block string) (string, int) {
	idx := strings.Index(content, block)
	if idx < 0 {
		return content, 0
	}
	start, end := idx, idx+len(block)
	after := content[end:]
	paragraphEnd := after == "" || strings.HasPrefix(after, Separator)
	switch {
	case paragraphEnd && strings.HasSuffix(content[:start], Separator):
		start -= len(Separator)
	case start == 0 && strings.HasPrefix(after, Separator):
		end += len(Separator)
	}
	return content[:start] + content[end:], end - start
}
