package model

// SourceDocument is one invoice document handed to the extraction core:
// raw UTF-8 text produced by an OCR collaborator, an optional set of
// positioned blocks, and a supplier hint of possibly low confidence.
type SourceDocument struct {
	// Path is where the document was read from; Name is its base name,
	// used for filename heuristics and for journal attribution.
	Path string `json:"path,omitempty"`
	Name string `json:"name"`

	// SupplierHint comes from the upstream classifier or the fuzzy
	// supplier identifier. It is passed through, never trusted blindly.
	SupplierHint string `json:"supplier_hint,omitempty"`

	// Text is the full extracted text of the pages in scope.
	Text string `json:"text"`

	// Blocks optionally carries positioned text with layout labels.
	// When present, block-locator heuristics prefer them over raw text.
	Blocks []TextBlock `json:"blocks,omitempty"`

	// Relevant is the upstream document-relevance flag. Irrelevant
	// documents short-circuit the core: no record, no journal entry.
	Relevant bool `json:"relevant"`
}

// TextBlock is a positioned span of text on a page.
type TextBlock struct {
	Page  int     `json:"page"`
	Label string  `json:"label,omitempty"`
	Text  string  `json:"text"`
	X0    float64 `json:"x0,omitempty"`
	Y0    float64 `json:"y0,omitempty"`
	X1    float64 `json:"x1,omitempty"`
	Y1    float64 `json:"y1,omitempty"`
}
