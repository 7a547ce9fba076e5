package scraper

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/ternarybob/colligo/internal/interfaces"
)

// goqueryPage adapts a parsed goquery document to the RenderedPage
// contract. The fetcher hands over rendered HTML; all selector work
// happens here.
type goqueryPage struct {
	doc *goquery.Document
}

// NewPageFromHTML parses rendered HTML into a queryable page
func NewPageFromHTML(html string) (interfaces.RenderedPage, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse page HTML: %w", err)
	}
	return &goqueryPage{doc: doc}, nil
}

// Query returns elements matching the CSS selector in document order
func (p *goqueryPage) Query(selector string) []interfaces.Element {
	return wrapSelections(p.doc.Find(selector))
}

// goqueryElement wraps a single-node goquery selection
type goqueryElement struct {
	sel *goquery.Selection
}

// Text returns the full visible text of the element
func (e *goqueryElement) Text() string {
	return e.sel.Text()
}

// Attr returns the named attribute, or "" when absent
func (e *goqueryElement) Attr(name string) string {
	return e.sel.AttrOr(name, "")
}

// Query returns child elements matching the CSS selector in document order
func (e *goqueryElement) Query(selector string) []interfaces.Element {
	return wrapSelections(e.sel.Find(selector))
}

func wrapSelections(sel *goquery.Selection) []interfaces.Element {
	elements := make([]interfaces.Element, 0, sel.Length())
	sel.Each(func(i int, s *goquery.Selection) {
		elements = append(elements, &goqueryElement{sel: s})
	})
	return elements
}
