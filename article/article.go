// Package article turns raw article HTML into a structured document with
// stable element identifiers, and splices resolved image slots back into
// that same HTML. The annotated HTML and the Document produced by Structure
// always carry identical ids, so a slot addressing "p_4" finds the same
// paragraph in both artifacts.
package article

// Document is the structured view of an article: a title plus the sections
// found in document order.
type Document struct {
	Title    string    `json:"title"`
	Sections []Section `json:"sections"`
}

// Section is a heading plus the paragraphs that follow it, up to the next
// heading.
type Section struct {
	ID         string      `json:"id"`
	Level      int         `json:"level"`
	Heading    string      `json:"heading"`
	Paragraphs []Paragraph `json:"paragraphs"`
}

// Paragraph is a single paragraph-like block with its stable id.
type Paragraph struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// Slot placement positions relative to the target element.
const (
	PositionBefore = "before" // insert as previous sibling
	PositionAfter  = "after"  // insert as next sibling
	PositionInside = "inside" // append as last child
)

// Slot is a suggested image placement: where the image should go and what to
// search for. ParagraphID may be empty, in which case the slot targets the
// section element itself.
type Slot struct {
	SectionID             string      `json:"section_id"`
	ParagraphID           string      `json:"paragraph_id,omitempty"`
	Position              string      `json:"position"`
	ImageType             string      `json:"image_type,omitempty"`
	SearchQuery           string      `json:"search_query"`
	AltTextHint           string      `json:"alt_text_hint,omitempty"`
	CaptionHint           string      `json:"caption_hint,omitempty"`
	Priority              float64     `json:"priority"`
	RecommendedDimensions *Dimensions `json:"recommended_dimensions,omitempty"`
}

// Dimensions is a width/height hint in pixels.
type Dimensions struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// ResolvedSlot is a Slot with a concrete image attached.
type ResolvedSlot struct {
	Slot
	ImageURL string `json:"image_url"`
	AltText  string `json:"alt_text,omitempty"`
	Caption  string `json:"caption,omitempty"`
}

// SlotsPayload is the wire shape of the image_slots artifact.
type SlotsPayload struct {
	Slots []Slot `json:"slots"`
}
