package interfaces

import "context"

// Element is one node of a rendered page. Implementations wrap whatever
// DOM representation the fetcher produced; the extractor only ever reads
// text, attributes, and scoped sub-queries.
type Element interface {
	// Text returns the full visible text of the element
	Text() string
	// Attr returns the named attribute, or "" when absent
	Attr(name string) string
	// Query returns child elements matching the CSS selector, in document order
	Query(selector string) []Element
}

// RenderedPage exposes element queries over one fully rendered listing page
type RenderedPage interface {
	Query(selector string) []Element
}

// PageFetcher fetches and renders one listing page by page number.
// Implementations own browser lifecycle, transport, and headers; callers
// treat fetch failures and render timeouts as recoverable page-level errors.
type PageFetcher interface {
	Fetch(ctx context.Context, pageNum int) (RenderedPage, error)
	Close() error
}
