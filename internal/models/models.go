package models

import "fmt"

// SourceKind tags a stored record as document-derived or product-derived.
type SourceKind string

const (
	SourceDocument SourceKind = "document"
	SourceProduct  SourceKind = "product"
	SourceUnknown  SourceKind = ""
)

// ParseSourceKind normalizes a stored tag value. Anything outside the two
// known kinds maps to SourceUnknown so the router can handle it explicitly.
func ParseSourceKind(s string) SourceKind {
	switch SourceKind(s) {
	case SourceDocument:
		return SourceDocument
	case SourceProduct:
		return SourceProduct
	default:
		return SourceUnknown
	}
}

// NoSequence marks records that have no position in a document corpus,
// i.e. all product records.
const NoSequence = -1

// Record is the storage-agnostic unit persisted by a corpus store. Document
// records carry Text and a Sequence; product records carry the catalog
// fields and embed their combined text.
type Record struct {
	ID       string
	SiteID   string
	Kind     SourceKind
	Sequence int
	Text     string

	Name             string
	Permalink        string
	Description      string
	ShortDescription string
	Price            string
	StockStatus      string

	Embedding []float32
}

// HasSequence reports whether the record holds a resolvable position in its
// site's document corpus.
func (r Record) HasSequence() bool {
	return r.Sequence >= 0
}

// Product is one catalog item as received from the store plugin.
type Product struct {
	Title            string `json:"title"`
	Link             string `json:"link"`
	Description      string `json:"description"`
	ShortDescription string `json:"short_description"`
	Price            string `json:"price"`
	StockStatus      string `json:"stock_status"`
}

// CombinedText derives the text that gets embedded for a product. The
// derivation is deterministic; re-ingestion recomputes the same value for
// identical fields.
func CombinedText(p Product) string {
	return fmt.Sprintf("%s %s %s. The price is %s %s",
		p.Title, p.Description, p.ShortDescription, p.Price, p.StockStatus)
}

// ChatTurn is one prior exchange in the conversation, supplied by the caller.
type ChatTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}
