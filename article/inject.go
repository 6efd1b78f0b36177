package article

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// DefaultAltText is used when a resolved slot carries no alt text at all.
const DefaultAltText = "Article illustration"

// Inline styles for injected nodes. The image is bounded to the container
// width with aspect ratio preserved; the caption matches the muted styling
// of the surrounding article chrome.
const (
	imgStyle     = "max-width: 100%; height: auto; display: block; margin: 0 auto;"
	captionStyle = "font-size: 0.875rem; font-style: italic; text-align: center; " +
		"color: #6b7280; margin-top: 0.5rem; padding: 0 1rem; line-height: 1.5;"
)

// InjectReport summarizes what Inject did with each slot.
type InjectReport struct {
	Injected int           `json:"injected"`
	Skipped  []SkippedSlot `json:"skipped,omitempty"`
}

// SkippedSlot records a slot that could not be injected and why. Skipping a
// slot never aborts the batch.
type SkippedSlot struct {
	SectionID   string `json:"section_id"`
	ParagraphID string `json:"paragraph_id,omitempty"`
	Reason      string `json:"reason"`
}

// Inject inserts a captioned image block for every resolved slot into the
// annotated HTML and returns a freshly serialized string; the input is never
// mutated and no existing node is removed or reordered.
//
// Slots are applied in descending priority order, ties broken by their
// original order. Targets are resolved against the tree before any mutation,
// so insertions at different targets cannot interfere; when several slots
// share a target the higher-priority block ends up earlier in the document.
// A slot whose target id does not exist is skipped and logged.
func Inject(annotated string, slots []ResolvedSlot) (string, *InjectReport, error) {
	root, err := html.Parse(strings.NewReader(annotated))
	if err != nil {
		return "", nil, fmt.Errorf("parsing annotated html: %w", err)
	}

	ordered := make([]ResolvedSlot, len(slots))
	copy(ordered, slots)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Priority > ordered[j].Priority
	})

	// Resolve every id against the original tree up front. Insertions only
	// add nodes, so the index stays valid throughout.
	byID := indexByID(root)

	report := &InjectReport{}
	// Tracks the last node inserted after a given anchor so that successive
	// "after" slots on the same target keep priority order in the document.
	afterCursor := make(map[*html.Node]*html.Node)

	for _, slot := range ordered {
		if slot.ImageURL == "" {
			report.Skipped = append(report.Skipped, skipped(slot, "no image resolved"))
			continue
		}

		anchor := resolveTarget(byID, slot)
		if anchor == nil {
			slog.Warn("inject: target id not found, skipping slot",
				"section_id", slot.SectionID, "paragraph_id", slot.ParagraphID)
			report.Skipped = append(report.Skipped, skipped(slot, "target not found"))
			continue
		}

		fig := buildFigure(slot)
		switch slot.Position {
		case PositionBefore:
			anchor.Parent.InsertBefore(fig, anchor)
		case PositionInside:
			anchor.AppendChild(fig)
		default: // "after" and anything unrecognized
			prev := anchor
			if cur, ok := afterCursor[anchor]; ok {
				prev = cur
			}
			prev.Parent.InsertBefore(fig, prev.NextSibling)
			afterCursor[anchor] = fig
		}
		report.Injected++
	}

	var buf strings.Builder
	if err := html.Render(&buf, root); err != nil {
		return "", nil, fmt.Errorf("rendering enhanced html: %w", err)
	}
	return buf.String(), report, nil
}

// resolveTarget looks up the paragraph id when present, falling back to the
// section id.
func resolveTarget(byID map[string]*html.Node, slot ResolvedSlot) *html.Node {
	if slot.ParagraphID != "" {
		if n, ok := byID[slot.ParagraphID]; ok {
			return n
		}
	}
	if slot.SectionID != "" {
		if n, ok := byID[slot.SectionID]; ok {
			return n
		}
	}
	return nil
}

// buildFigure constructs the self-contained image block:
//
//	<figure class="mm-slot image-slot">
//	  <img src=... alt=... style=...>
//	  <figcaption style=...>caption</figcaption>   (only when non-empty)
//	</figure>
func buildFigure(slot ResolvedSlot) *html.Node {
	fig := &html.Node{
		Type:     html.ElementNode,
		Data:     "figure",
		DataAtom: atom.Figure,
		Attr:     []html.Attribute{{Key: "class", Val: "mm-slot image-slot"}},
	}

	alt := slot.AltText
	if alt == "" {
		alt = slot.AltTextHint
	}
	if alt == "" {
		alt = DefaultAltText
	}

	img := &html.Node{
		Type:     html.ElementNode,
		Data:     "img",
		DataAtom: atom.Img,
		Attr: []html.Attribute{
			{Key: "src", Val: slot.ImageURL},
			{Key: "alt", Val: alt},
			{Key: "style", Val: imgStyle},
		},
	}
	fig.AppendChild(img)

	caption := slot.Caption
	if caption == "" {
		caption = slot.CaptionHint
	}
	if caption != "" {
		fc := &html.Node{
			Type:     html.ElementNode,
			Data:     "figcaption",
			DataAtom: atom.Figcaption,
			Attr:     []html.Attribute{{Key: "style", Val: captionStyle}},
		}
		fc.AppendChild(&html.Node{Type: html.TextNode, Data: caption})
		fig.AppendChild(fc)
	}
	return fig
}

func skipped(slot ResolvedSlot, reason string) SkippedSlot {
	return SkippedSlot{
		SectionID:   slot.SectionID,
		ParagraphID: slot.ParagraphID,
		Reason:      reason,
	}
}

func indexByID(root *html.Node) map[string]*html.Node {
	byID := make(map[string]*html.Node)
	var f func(*html.Node)
	f = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if id := getAttr(n, "id"); id != "" {
				if _, exists := byID[id]; !exists {
					byID[id] = n
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			f(c)
		}
	}
	f(root)
	return byID
}
